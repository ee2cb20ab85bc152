package automation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueueRoundTrip(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx := context.Background()

	require.NoError(t, q.Send(ctx, `{"kind":"sync_bookings"}`))
	require.NoError(t, q.Send(ctx, `{"kind":"submit_notes"}`))

	messages, err := q.Receive(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, `{"kind":"sync_bookings"}`, messages[0].Body)
	assert.NotEmpty(t, messages[0].ID)
	assert.NotEmpty(t, messages[0].ReceiptHandle)

	assert.NoError(t, q.Delete(ctx, messages[0].ReceiptHandle))
}

func TestMemoryQueueReceiveTimesOut(t *testing.T) {
	q := NewMemoryQueue(1)

	start := time.Now()
	messages, err := q.Receive(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Empty(t, messages)
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
}

func TestMemoryQueueReceiveHonorsContext(t *testing.T) {
	q := NewMemoryQueue(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Receive(ctx, 1, 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryQueueRespectsBatchSize(t *testing.T) {
	q := NewMemoryQueue(8)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Send(ctx, "job"))
	}

	messages, err := q.Receive(ctx, 3, 0)
	require.NoError(t, err)
	assert.Len(t, messages, 3)
}
