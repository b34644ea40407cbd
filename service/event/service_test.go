package event

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/artifex/service/messaging"
	"github.com/viant/artifex/service/messaging/fs"
)

type outcome struct {
	TaskID string
	OK     bool
}

func TestService_Listener(t *testing.T) {
	var testCases = []struct {
		description string
		vendor      messaging.Vendor
		options     []Option
	}{
		{description: "memory", vendor: messaging.VendorMemory},
		{description: "fs", vendor: messaging.VendorFS, options: []Option{WithNewFsQueueConfig(func(name string) fs.Config {
			return fs.Config{BaseURL: fmt.Sprintf("mem://localhost/events/%v/%v", time.Now().UnixNano(), name), PollInterval: 5 * time.Millisecond}
		})}},
	}

	for _, testCase := range testCases {
		srv, err := New(testCase.vendor, testCase.options...)
		require.NoError(t, err, testCase.description)

		var mux sync.Mutex
		var received []string
		done := make(chan struct{}, 3)
		err = SetListenerOf[outcome](context.Background(), srv, func(ctx context.Context, e *Event[outcome]) {
			mux.Lock()
			received = append(received, e.Data.TaskID)
			mux.Unlock()
			done <- struct{}{}
		})
		require.NoError(t, err, testCase.description)

		publisher, err := PublisherOf[outcome](srv)
		require.NoError(t, err, testCase.description)
		for _, id := range []string{"t1", "t2", "t3"} {
			require.NoError(t, publisher.Publish(context.Background(), NewEvent(&Context{TaskID: id, EventType: "verified"}, outcome{TaskID: id, OK: true})))
		}
		for i := 0; i < 3; i++ {
			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatalf("%v: timed out waiting for events", testCase.description)
			}
		}
		StopListenerOf[outcome](srv)
		mux.Lock()
		assert.Equal(t, []string{"t1", "t2", "t3"}, received, testCase.description)
		mux.Unlock()
	}
}

func TestNew_UnsupportedVendor(t *testing.T) {
	_, err := New("kafka")
	assert.Error(t, err)
	_, err = New(messaging.VendorFS)
	assert.Error(t, err)
}
