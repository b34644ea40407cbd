// Package reporter turns task transitions into encoded status reports and
// places them on an outbox queue drained by the dispatcher transport.
package reporter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/viant/artifex/internal/clock"
	"github.com/viant/artifex/internal/idgen"
	"github.com/viant/artifex/protocol"
	"github.com/viant/artifex/runtime/task"
	"github.com/viant/artifex/service/messaging"
	"github.com/viant/artifex/service/messaging/memory"
)

// Report is an encoded status message awaiting delivery
type Report struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId"`
	Data      []byte    `json:"data"`
	CreatedAt time.Time `json:"createdAt"`
}

// ErrOutboxFull is returned when a report could not be published within the publish timeout
var ErrOutboxFull = errors.New("reporter: outbox full")

// DefaultPublishTimeout bounds how long Report waits for outbox capacity
const DefaultPublishTimeout = 5 * time.Second

// Service implements task.Reporter
type Service struct {
	processorID    string
	outbox         messaging.Queue[Report]
	publishTimeout time.Duration
	logger         *slog.Logger
}

// Option configures a Service
type Option func(s *Service)

// WithOutbox sets the outbox queue
func WithOutbox(outbox messaging.Queue[Report]) Option {
	return func(s *Service) {
		s.outbox = outbox
	}
}

// WithPublishTimeout bounds the wait for outbox capacity
func WithPublishTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.publishTimeout = timeout
		}
	}
}

// WithLogger sets the logger, slog.Default() by default
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Outbox returns the queue reports are published to
func (s *Service) Outbox() messaging.Queue[Report] {
	return s.outbox
}

// Report encodes transition as a single entry status report.  It waits at most
// the publish timeout for outbox capacity, so an undrained outbox surfaces as
// ErrOutboxFull instead of stalling the task machine.
func (s *Service) Report(ctx context.Context, t *task.Task, transition *task.Transition) error {
	status := &protocol.TaskStatus{
		TaskID:      t.ID,
		ResourceKey: t.ResourceKey,
		State:       string(transition.To),
		Reason:      string(transition.Reason),
		Message:     transition.Message,
		UpdatedAt:   transition.At,
	}
	data, err := protocol.Encode(protocol.NewStatusMessage(s.processorID, status))
	if err != nil {
		return fmt.Errorf("failed to encode status of task %v: %w", t.ID, err)
	}
	report := &Report{ID: idgen.New(), TaskID: t.ID, Data: data, CreatedAt: clock.Now()}
	publishCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
	defer cancel()
	if err = s.outbox.Publish(publishCtx, report); err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: status of task %v dropped after %v", ErrOutboxFull, t.ID, s.publishTimeout)
		}
		return fmt.Errorf("failed to publish status of task %v: %w", t.ID, err)
	}
	s.logger.Debug("status reported", "task_id", t.ID, "state", transition.To, "reason", transition.Reason)
	return nil
}

// New creates a reporter for processorID, by default backed by a memory outbox
func New(processorID string, options ...Option) *Service {
	ret := &Service{processorID: processorID, publishTimeout: DefaultPublishTimeout, logger: slog.Default()}
	for _, opt := range options {
		opt(ret)
	}
	if ret.outbox == nil {
		ret.outbox = memory.NewQueue[Report](memory.DefaultConfig())
	}
	return ret
}

var _ task.Reporter = (*Service)(nil)
