// Package aiextract extracts booking fields from raw card markup with
// Gemini, as a fallback for markup the selector-based extractor cannot
// parse after a portal UI change.
package aiextract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/stretchops/studio-automation/internal/clubready/extract"
)

const extractionPrompt = `You are given the raw HTML of one booking card from a
fitness studio scheduling page. Extract the booking fields and answer with a
single JSON object, no prose, using exactly these keys:

{"client_name": "", "booking_id": "", "workout_type": "", "flexologist_name": "",
 "phone": "", "booking_time": "", "event_date": "", "first_timer": "YES|NO"}

Rules:
- event_date is the full date/time label exactly as written, whitespace
  trimmed but otherwise unmodified.
- booking_time is only the clock portion of that label.
- booking_id is the numeric reference without any leading # character.
- Use an empty string for anything not present in the markup.`

// Client extracts booking fields from card HTML through Gemini.
type Client struct {
	client  *genai.Client
	modelID string
}

// NewClient creates a Gemini-backed extraction client.
func NewClient(ctx context.Context, apiKey, modelID string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("aiextract: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("aiextract: failed to create gemini client: %w", err)
	}

	return &Client{
		client:  client,
		modelID: modelID,
	}, nil
}

// ExtractCard asks the model for the structured fields of one card.
func (c *Client) ExtractCard(ctx context.Context, cardHTML string) (*extract.BookingRecord, error) {
	if strings.TrimSpace(cardHTML) == "" {
		return nil, errors.New("aiextract: card html is empty")
	}

	model := c.client.GenerativeModel(c.modelID)
	model.SetTemperature(0)
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = genai.NewUserContent(genai.Text(extractionPrompt))

	resp, err := model.GenerateContent(ctx, genai.Text(cardHTML))
	if err != nil {
		return nil, fmt.Errorf("aiextract: gemini extraction failed: %w", err)
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}
	return ParseResponse(text)
}

// Close releases the underlying API client.
func (c *Client) Close() error {
	return c.client.Close()
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", errors.New("aiextract: gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", errors.New("aiextract: gemini returned empty content")
	}

	var builder strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			builder.WriteString(string(text))
		}
	}
	return builder.String(), nil
}

// ParseResponse decodes the model's JSON answer into a record, applying the
// same lowercase normalization the selector path uses. Models sometimes
// wrap JSON in a code fence despite JSON mode; the fence is stripped.
func ParseResponse(text string) (*extract.BookingRecord, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var record extract.BookingRecord
	if err := json.Unmarshal([]byte(text), &record); err != nil {
		return nil, fmt.Errorf("aiextract: decode model response: %w", err)
	}
	if strings.TrimSpace(record.ClientName) == "" {
		return nil, errors.New("aiextract: model response missing client_name")
	}

	record.ClientName = strings.ToLower(strings.TrimSpace(record.ClientName))
	record.EventDate = strings.TrimSpace(record.EventDate)
	record.FirstTimer = normalizeFlag(record.FirstTimer)
	return &record, nil
}

func normalizeFlag(v string) string {
	if strings.EqualFold(strings.TrimSpace(v), "YES") {
		return "YES"
	}
	return "NO"
}
