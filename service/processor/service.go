package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/viant/artifex/internal/clock"
	"github.com/viant/artifex/model"
	"github.com/viant/artifex/progress"
	"github.com/viant/artifex/protocol"
	"github.com/viant/artifex/runtime/task"
	"github.com/viant/artifex/service/dao"
	"github.com/viant/artifex/service/dao/batch"
	"github.com/viant/artifex/service/event"
	"github.com/viant/artifex/service/messaging/dedup"
	"github.com/viant/artifex/service/verifier"
	"github.com/viant/artifex/tracing"
)

// Config represents processor configuration
type Config struct {
	// ProcessorID identifies this processor when the assignment does not
	ProcessorID string `json:"id,omitempty" yaml:"id,omitempty"`
}

// Receipt summarises an accepted assignment
type Receipt struct {
	BatchID  int64    `json:"batchId"`
	TaskIDs  []string `json:"taskIds"`
	Enqueued int      `json:"enqueued"`
}

type tracked struct {
	progress    *progress.Progress
	processorID string
	createdAt   time.Time
}

// Service handles inbound assignments
type Service struct {
	config    Config
	machine   *task.Machine
	queue     *dedup.Queue[model.FetchTask]
	batches   dao.Service[int64, batch.Batch]
	records   dao.Service[string, verifier.Record]
	events    *event.Service
	logger    *slog.Logger
	mux       sync.RWMutex
	trackers  map[int64]*tracked
	persistMu sync.Mutex
}

// HandleAssignment decodes data and accepts the assignment it carries.
// Decoding errors are returned before anything is queued.
func (s *Service) HandleAssignment(ctx context.Context, data []byte) (receipt *Receipt, err error) {
	ctx, span := tracing.StartSpan(ctx, "processor.HandleAssignment", tracing.KindServer)
	defer func() { tracing.EndSpan(span, err) }()
	msg, err := protocol.Decode(data)
	if err != nil {
		return nil, err
	}
	if msg.Kind != protocol.KindAssignment {
		return nil, fmt.Errorf("%w: expected %v, got %v", protocol.ErrMalformedPayload, protocol.KindAssignment, msg.Kind)
	}
	span.WithAttributes(map[string]string{"assignment.id": msg.Assignment.ID})
	return s.Assign(ctx, msg.Assignment)
}

// Assign registers a batch for assignment, creates and dispatches its tasks
// and queues them for fetching.  A task id already known in a non terminal
// state is left as is; one known in a terminal state is skipped.
func (s *Service) Assign(ctx context.Context, assignment *protocol.Assignment) (*Receipt, error) {
	processorID := assignment.ProcessorID
	if processorID == "" {
		processorID = s.config.ProcessorID
	}
	aBatch := &batch.Batch{AssignmentID: assignment.ID, ProcessorID: processorID, Total: len(assignment.Tasks), State: batch.StateProcessing}
	if err := s.batches.Save(ctx, aBatch); err != nil {
		return nil, fmt.Errorf("failed to save batch for assignment %v: %w", assignment.ID, err)
	}
	tracker := progress.New(aBatch.ID, assignment.ID, nil)
	s.mux.Lock()
	s.trackers[aBatch.ID] = &tracked{progress: tracker, processorID: processorID, createdAt: aBatch.CreatedAt}
	s.mux.Unlock()
	tracker.Update(progress.Delta{Total: len(assignment.Tasks), Pending: len(assignment.Tasks)})
	tracker.OnChange(func(progress.Progress) { s.persist(context.WithoutCancel(ctx), aBatch.ID) })

	receipt := &Receipt{BatchID: aBatch.ID}
	for _, assigned := range assignment.Tasks {
		created, err := s.machine.Create(ctx, &task.Task{ID: assigned.TaskID, BatchID: aBatch.ID, ResourceKey: assigned.ResourceKey})
		if err != nil {
			if created == nil || errors.Is(err, task.ErrTerminalState) {
				s.logger.Warn("task rejected", "task_id", assigned.TaskID, "resource_key", assigned.ResourceKey, "error", err)
				tracker.Update(progress.Delta{Total: -1, Pending: -1})
				continue
			}
		}
		receipt.TaskIDs = append(receipt.TaskIDs, assigned.TaskID)
		if created.BatchID != aBatch.ID {
			s.logger.Info("task already assigned", "task_id", assigned.TaskID, "batch_id", created.BatchID, "state", created.State)
			tracker.Update(progress.Delta{Total: -1, Pending: -1})
			continue
		}
		if !s.dispatch(ctx, assigned.TaskID, tracker) {
			continue
		}
		fetchTask := s.fetchTask(aBatch.ID, processorID, assignment, assigned)
		stale, replaced := s.queue.Replace(fetchTask)
		receipt.Enqueued++
		if replaced && stale.TaskID != fetchTask.TaskID {
			if _, err = s.machine.Fail(ctx, stale.TaskID, model.ReasonSuperseded, fmt.Errorf("superseded by task %v", fetchTask.TaskID)); err != nil {
				s.logger.Warn("failed to supersede task", "task_id", stale.TaskID, "error", err)
			}
		}
	}
	s.persist(ctx, aBatch.ID)
	s.logger.Info("assignment accepted", "assignment_id", assignment.ID, "batch_id", aBatch.ID, "tasks", len(assignment.Tasks), "enqueued", receipt.Enqueued)
	return receipt, nil
}

// dispatch moves a created task to dispatched and reports whether it should be
// queued.  A task whose dispatch was saved but not reported is still queued;
// one that could not be dispatched is failed so its batch can settle.
func (s *Service) dispatch(ctx context.Context, taskID string, tracker *progress.Progress) bool {
	dispatched, err := s.machine.Dispatch(ctx, taskID)
	if err == nil {
		return true
	}
	if dispatched != nil && dispatched.State == task.StateDispatched {
		s.logger.Warn("task dispatched without report", "task_id", taskID, "error", err)
		return true
	}
	s.logger.Error("failed to dispatch task", "task_id", taskID, "error", err)
	failed, failErr := s.machine.Fail(ctx, taskID, model.ReasonFetchIOFailure, fmt.Errorf("dispatch failed: %w", err))
	if failed == nil || failed.State != task.StateError {
		s.logger.Error("failed to fail undispatched task", "task_id", taskID, "error", failErr)
		tracker.Update(progress.Delta{Total: -1, Pending: -1})
	}
	return false
}

func (s *Service) fetchTask(batchID int64, processorID string, assignment *protocol.Assignment, assigned *protocol.TaskAssignment) *model.FetchTask {
	return &model.FetchTask{
		ResourceKey:        assigned.ResourceKey,
		TaskID:             assigned.TaskID,
		BatchID:            batchID,
		Location:           assigned.Location,
		TargetDirectory:    assigned.TargetDirectory,
		ChunkSizeHint:      assigned.ChunkSize,
		DispatcherEndpoint: assignment.DispatcherURL,
		ProcessorIdentity:  processorID,
		Nullable:           assigned.Nullable,
		Checksums:          assigned.Checksums,
		Signature:          assigned.Signature,
		SignatureAlgorithm: assigned.SignatureAlgorithm,
		CreatedAt:          clock.Now(),
	}
}

// OnTransition feeds batch trackers; register it with the task machine
func (s *Service) OnTransition(_ context.Context, t *task.Task, transition *task.Transition) {
	s.mux.RLock()
	entry, ok := s.trackers[t.BatchID]
	s.mux.RUnlock()
	if !ok {
		return
	}
	if delta, ok := deltaOf(transition); ok {
		entry.progress.Update(delta)
	}
}

func deltaOf(transition *task.Transition) (progress.Delta, bool) {
	running := transition.From == task.StateProcessing || transition.From == task.StateVerifying
	switch transition.To {
	case task.StateProcessing:
		return progress.Delta{Pending: -1, Running: 1}, true
	case task.StateFinished:
		return progress.Delta{Running: -1, Finished: 1}, true
	case task.StateError:
		if running {
			return progress.Delta{Running: -1, Failed: 1}, true
		}
		return progress.Delta{Pending: -1, Failed: 1}, true
	}
	return progress.Delta{}, false
}

// persist saves the latest batch counters; trackers of terminal batches are released
func (s *Service) persist(ctx context.Context, batchID int64) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	s.mux.RLock()
	entry, ok := s.trackers[batchID]
	s.mux.RUnlock()
	if !ok {
		return
	}
	snapshot := entry.progress.Snapshot()
	aBatch := &batch.Batch{
		ID:           batchID,
		AssignmentID: snapshot.AssignmentID,
		ProcessorID:  entry.processorID,
		Total:        snapshot.TotalTasks,
		Finished:     snapshot.FinishedTasks,
		Failed:       snapshot.FailedTasks,
		CreatedAt:    entry.createdAt,
	}
	aBatch.Derive()
	if err := s.batches.Save(ctx, aBatch); err != nil {
		s.logger.Error("failed to save batch", "batch_id", batchID, "error", err)
		return
	}
	if aBatch.State != batch.StateProcessing {
		s.mux.Lock()
		delete(s.trackers, batchID)
		s.mux.Unlock()
		s.logger.Info("batch completed", "batch_id", batchID, "state", aBatch.State, "finished", aBatch.Finished, "failed", aBatch.Failed)
	}
}

// Progress returns the counters of an active batch
func (s *Service) Progress(batchID int64) (progress.Progress, bool) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	entry, ok := s.trackers[batchID]
	if !ok {
		return progress.Progress{}, false
	}
	return entry.progress.Snapshot(), true
}

// Start subscribes to verification outcomes
func (s *Service) Start(ctx context.Context) error {
	if s.events == nil {
		return fmt.Errorf("event service is required")
	}
	return event.SetListenerOf[verifier.Outcome](ctx, s.events, s.onOutcome)
}

// Shutdown stops the outcome subscription
func (s *Service) Shutdown() {
	if s.events != nil {
		event.StopListenerOf[verifier.Outcome](s.events)
	}
}

func (s *Service) onOutcome(ctx context.Context, evt *event.Event[verifier.Outcome]) {
	if err := s.Complete(ctx, &evt.Data); err != nil {
		s.logger.Warn("failed to complete task", "task_id", evt.Data.TaskID, "error", err)
	}
}

// Complete resolves the verifying task the outcome refers to
func (s *Service) Complete(ctx context.Context, outcome *verifier.Outcome) error {
	if s.records == nil {
		return fmt.Errorf("verification records are not configured")
	}
	record, err := s.records.Load(ctx, outcome.TaskID)
	if err != nil {
		return fmt.Errorf("failed to load verification record: %w", err)
	}
	_, err = s.machine.Complete(ctx, outcome.TaskID, record)
	return err
}

// New creates a processor; the caller registers OnTransition with machine
func New(machine *task.Machine, queue *dedup.Queue[model.FetchTask], batches dao.Service[int64, batch.Batch], options ...Option) (*Service, error) {
	ret := &Service{
		machine:  machine,
		queue:    queue,
		batches:  batches,
		logger:   slog.Default(),
		trackers: make(map[int64]*tracked),
	}
	for _, opt := range options {
		opt(ret)
	}
	if ret.machine == nil {
		return nil, fmt.Errorf("task machine is required")
	}
	if ret.queue == nil {
		return nil, fmt.Errorf("fetch queue is required")
	}
	if ret.batches == nil {
		return nil, fmt.Errorf("batch store is required")
	}
	return ret, nil
}
