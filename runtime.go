package artifex

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/viant/artifex/model"
	"github.com/viant/artifex/progress"
	"github.com/viant/artifex/protocol"
	"github.com/viant/artifex/runtime/task"
	"github.com/viant/artifex/service/dao"
	"github.com/viant/artifex/service/dao/batch"
	"github.com/viant/artifex/service/fetcher"
	"github.com/viant/artifex/service/messaging"
	"github.com/viant/artifex/service/messaging/dedup"
	"github.com/viant/artifex/service/processor"
	"github.com/viant/artifex/service/reporter"
	"github.com/viant/artifex/service/verifier"
	"github.com/viant/artifex/tracing"
)

// Runtime represents a running processor
type Runtime struct {
	machine   *task.Machine
	queue     *dedup.Queue[model.FetchTask]
	reporter  *reporter.Service
	verifier  *verifier.Service
	processor *processor.Service
	fetcher   *fetcher.Service
	batches   dao.Service[int64, batch.Batch]
	closers   []io.Closer
	logger    *slog.Logger
}

// HandleAssignment accepts an encoded dispatcher assignment of any supported version
func (r *Runtime) HandleAssignment(ctx context.Context, data []byte) (*processor.Receipt, error) {
	return r.processor.HandleAssignment(ctx, data)
}

// Enqueue adds a fetch task, replacing a queued task for the same resource in place
func (r *Runtime) Enqueue(t *model.FetchTask) {
	r.queue.Enqueue(t)
}

// Dequeue removes the oldest fetch task, false when the queue is empty
func (r *Runtime) Dequeue() (*model.FetchTask, bool) {
	return r.queue.Dequeue()
}

// QueueSize returns the number of queued resources
func (r *Runtime) QueueSize() int {
	return r.queue.Size()
}

// Decode decodes a wire message of any supported version into the latest representation
func (r *Runtime) Decode(ctx context.Context, data []byte) (msg *protocol.Message, err error) {
	_, span := tracing.StartSpan(ctx, "protocol.Decode", tracing.KindInternal)
	defer func() { tracing.EndSpan(span, err) }()
	return protocol.Decode(data)
}

// Encode encodes msg with the latest wire version
func (r *Runtime) Encode(msg *protocol.Message) ([]byte, error) {
	return protocol.Encode(msg)
}

// Verify checks a local artifact synchronously
func (r *Runtime) Verify(ctx context.Context, request *verifier.Request) *verifier.Record {
	return r.verifier.Verify(ctx, request)
}

// Task returns a task snapshot
func (r *Runtime) Task(ctx context.Context, id string) (*task.Task, error) {
	return r.machine.Get(ctx, id)
}

// Tasks lists task snapshots matching parameters
func (r *Runtime) Tasks(ctx context.Context, parameters ...*dao.Parameter) ([]*task.Task, error) {
	return r.machine.List(ctx, parameters...)
}

// Batch returns a persisted batch
func (r *Runtime) Batch(ctx context.Context, id int64) (*batch.Batch, error) {
	return r.batches.Load(ctx, id)
}

// Progress returns live counters of a batch still processing
func (r *Runtime) Progress(batchID int64) (progress.Progress, bool) {
	return r.processor.Progress(batchID)
}

// Outbox returns the queue of encoded status reports awaiting delivery
func (r *Runtime) Outbox() messaging.Queue[reporter.Report] {
	return r.reporter.Outbox()
}

// Start starts verification, outcome handling and fetch workers
func (r *Runtime) Start(ctx context.Context) error {
	if err := r.verifier.Start(ctx); err != nil {
		return err
	}
	if err := r.processor.Start(ctx); err != nil {
		r.verifier.Shutdown()
		return err
	}
	if err := r.fetcher.Start(ctx); err != nil {
		r.processor.Shutdown()
		r.verifier.Shutdown()
		return err
	}
	r.logger.Info("runtime started")
	return nil
}

// Shutdown stops workers, waits for in-flight work and releases storage
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.fetcher.Shutdown()
	r.verifier.Shutdown()
	r.processor.Shutdown()
	errs := []error{tracing.Shutdown(ctx)}
	for _, closer := range r.closers {
		errs = append(errs, closer.Close())
	}
	r.logger.Info("runtime stopped")
	return errors.Join(errs...)
}
