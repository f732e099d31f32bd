package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry_HandlesUntilSuccess(t *testing.T) {
	calls := 0
	h := Retry(func(context.Context, kafka.Message) error {
		calls++
		if calls < 3 {
			return errors.New("smtp 421")
		}
		return nil
	}, time.Millisecond, 2*time.Millisecond, nil)

	require.NoError(t, h(context.Background(), kafka.Message{Offset: 7}))
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	h := Retry(func(context.Context, kafka.Message) error {
		calls++
		if calls == 2 {
			cancel()
		}
		return errors.New("smtp 421")
	}, time.Millisecond, time.Millisecond, nil)

	err := h(ctx, kafka.Message{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, calls)
}

func TestLane_PinsPartitionToOneWorker(t *testing.T) {
	for p := 0; p < 12; p++ {
		assert.Less(t, lane(p, 4), 4)
	}
	assert.Equal(t, 0, lane(5, 1))
	assert.Equal(t, 1, lane(5, 2))
}
