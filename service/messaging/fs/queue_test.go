package fs

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/artifex/service/messaging"
)

type testPayload struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

func newTestQueue(t *testing.T, maxRetries int) (*Queue[testPayload], afs.Service) {
	fs := afs.New()
	baseURL := fmt.Sprintf("mem://localhost/queue/%v", time.Now().UnixNano())
	queue, err := NewQueue[testPayload](fs, Config{BaseURL: baseURL, MaxRetries: maxRetries, PollInterval: 5 * time.Millisecond})
	require.NoError(t, err)
	return queue, fs
}

func countFiles(t *testing.T, fs afs.Service, dir string) int {
	objects, err := fs.List(context.Background(), dir)
	require.NoError(t, err)
	count := 0
	for _, object := range objects {
		if !object.IsDir() {
			count++
		}
	}
	return count
}

func TestQueue_Order(t *testing.T) {
	queue, fs := newTestQueue(t, 0)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, queue.Publish(ctx, &testPayload{ID: fmt.Sprintf("m%d", i), Count: i}))
	}
	assert.Equal(t, 5, queue.Size())

	for i := 0; i < 5; i++ {
		message, err := queue.Consume(ctx)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("m%d", i), message.T().ID)
		assert.NoError(t, message.Ack())
		assert.True(t, errors.Is(message.Ack(), messaging.ErrAlreadyProcessed))
	}
	assert.Equal(t, 0, queue.Size())
	assert.Equal(t, 5, countFiles(t, fs, queue.completedDir))
	assert.Equal(t, 0, countFiles(t, fs, queue.processingDir))
}

func TestQueue_NackRetry(t *testing.T) {
	queue, fs := newTestQueue(t, 1)
	ctx := context.Background()
	require.NoError(t, queue.Publish(ctx, &testPayload{ID: "first"}))
	require.NoError(t, queue.Publish(ctx, &testPayload{ID: "second"}))

	message, err := queue.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", message.T().ID)
	require.NoError(t, message.Nack(fmt.Errorf("transport down")))

	message, err = queue.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", message.T().ID, "nacked message keeps its position")
	require.NoError(t, message.Nack(fmt.Errorf("transport down")))
	assert.Equal(t, 1, countFiles(t, fs, queue.dlqDir))

	message, err = queue.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", message.T().ID)
}

func TestQueue_ConsumeWaits(t *testing.T) {
	queue, _ := newTestQueue(t, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	message, err := queue.Consume(ctx)
	assert.Nil(t, message)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = queue.Publish(context.Background(), &testPayload{ID: "late"})
	}()
	waitCtx, cancelWait := context.WithTimeout(context.Background(), time.Second)
	defer cancelWait()
	message, err = queue.Consume(waitCtx)
	require.NoError(t, err)
	assert.Equal(t, "late", message.T().ID)
}

func TestNewQueue(t *testing.T) {
	_, err := NewQueue[testPayload](afs.New(), Config{})
	assert.Error(t, err)
}
