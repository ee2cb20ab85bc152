package vault

import (
	"errors"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
	}{
		{"simple", "coach", "hunter2"},
		{"single char username", "a", "p@ssw0rd!"},
		{"password with separators", "frontdesk", "ab_cd_lab_ef"},
		{"empty password", "frontdesk", ""},
		{"printable ascii", "studio1", "!\"#$%&'()*+,-./0123456789:;<=>?@ABC"},
		{"email username", "owner@studio.com", "S3cure-Pass"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := Obfuscate(tt.username, tt.password)
			if err != nil {
				t.Fatalf("Obfuscate: %v", err)
			}
			if token == tt.password {
				t.Fatal("token should not equal plaintext password")
			}
			got, err := Reveal(tt.username, token)
			if err != nil {
				t.Fatalf("Reveal: %v", err)
			}
			if got != tt.password {
				t.Fatalf("round trip mismatch: got %q want %q", got, tt.password)
			}
		})
	}
}

func TestRevealWrongUsername(t *testing.T) {
	token, err := Obfuscate("alice", "secret")
	if err != nil {
		t.Fatalf("Obfuscate: %v", err)
	}
	if _, err := Reveal("bob", token); !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestRevealGarbageToken(t *testing.T) {
	cases := []string{
		"not base64 at all!!!",
		"aGVsbG8=", // valid base64, wrong envelope
		"",
	}
	for _, token := range cases {
		if _, err := Reveal("alice", token); !errors.Is(err, ErrInvalidFormat) {
			t.Fatalf("token %q: expected ErrInvalidFormat, got %v", token, err)
		}
	}
}

func TestObfuscateRequiresUsername(t *testing.T) {
	if _, err := Obfuscate("", "pw"); err == nil {
		t.Fatal("expected error for empty username")
	}
	if _, err := Reveal("", "token"); err == nil {
		t.Fatal("expected error for empty username")
	}
}
