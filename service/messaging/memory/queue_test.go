package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/artifex/service/messaging"
)

type testPayload struct {
	ID    string
	Count int
}

func TestQueue_PublishConsume(t *testing.T) {
	queue := NewQueue[testPayload](DefaultConfig())
	ctx := context.Background()

	payload := testPayload{ID: "a", Count: 1}
	require.NoError(t, queue.Publish(ctx, &payload))
	payload.Count = 2
	assert.Equal(t, 1, queue.Size())

	message, err := queue.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, queue.Size())
	assert.Equal(t, &testPayload{ID: "a", Count: 1}, message.T(), "publish should copy the payload")

	assert.NoError(t, message.Ack())
	assert.True(t, errors.Is(message.Ack(), messaging.ErrAlreadyProcessed))
	assert.True(t, errors.Is(message.Nack(nil), messaging.ErrAlreadyProcessed))
}

func TestQueue_Nack(t *testing.T) {
	var testCases = []struct {
		description string
		maxRetries  int
		deliveries  int
	}{
		{description: "no retries", maxRetries: 0, deliveries: 1},
		{description: "two retries", maxRetries: 2, deliveries: 3},
	}

	for _, testCase := range testCases {
		config := DefaultConfig()
		config.MaxRetries = testCase.maxRetries
		config.RetryDelay = time.Millisecond
		queue := NewQueue[testPayload](config)
		ctx := context.Background()
		require.NoError(t, queue.Publish(ctx, &testPayload{ID: "x"}), testCase.description)

		deliveries := 0
		for {
			waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
			message, err := queue.Consume(waitCtx)
			cancel()
			if err != nil {
				break
			}
			deliveries++
			assert.NoError(t, message.Nack(fmt.Errorf("failed")), testCase.description)
		}
		assert.Equal(t, testCase.deliveries, deliveries, testCase.description)
		assert.Equal(t, 1, queue.DLQSize(), testCase.description)
		assert.Equal(t, []testPayload{{ID: "x"}}, queue.DeadLetters(), testCase.description)
	}
}

func TestQueue_Concurrency(t *testing.T) {
	queue := NewQueue[testPayload](DefaultConfig())
	ctx := context.Background()
	producers, perProducer := 8, 25

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func(producer int) {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				assert.NoError(t, queue.Publish(ctx, &testPayload{ID: fmt.Sprintf("%d-%d", producer, j)}))
			}
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i := 0; i < producers*perProducer; i++ {
		message, err := queue.Consume(ctx)
		require.NoError(t, err)
		seen[message.T().ID] = true
		assert.NoError(t, message.Ack())
	}
	assert.Len(t, seen, producers*perProducer)
	assert.Equal(t, 0, queue.Size())
}

func TestQueue_ContextCancellation(t *testing.T) {
	queue := NewQueue[testPayload](DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, queue.Publish(ctx, &testPayload{ID: "x"}))

	timeoutCtx, cancelTimeout := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelTimeout()
	_, err := queue.Consume(timeoutCtx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
