package event

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Listener dispatches events of a publisher to handler on a dedicated goroutine
type Listener[T any] struct {
	publisher *Publisher[T]
	handler   func(context.Context, *Event[T])
	cancel    context.CancelFunc
	done      chan struct{}
	once      sync.Once
}

func NewListener[T any](publisher *Publisher[T], handler func(context.Context, *Event[T])) *Listener[T] {
	return &Listener[T]{
		publisher: publisher,
		handler:   handler,
		done:      make(chan struct{}),
	}
}

// Start runs the listener until ctx is done or Stop is called
func (l *Listener[T]) Start(ctx context.Context) {
	ctx, l.cancel = context.WithCancel(ctx)
	go func() {
		defer close(l.done)
		for {
			event, err := l.publisher.Consume(ctx)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, context.Canceled) {
					return
				}
				slog.Warn("failed to consume event", "error", err)
				continue
			}
			if event == nil {
				continue
			}
			l.handler(ctx, event)
		}
	}()
}

// Stop cancels the listener and waits for the running handler to return
func (l *Listener[T]) Stop() {
	l.once.Do(func() {
		if l.cancel == nil {
			close(l.done)
			return
		}
		l.cancel()
	})
	<-l.done
}
