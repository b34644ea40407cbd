// Package task implements the per task lifecycle:
//
//	created -> dispatched -> processing -> verifying -> finished
//
// with error reachable from every non terminal state.  A Machine applies a
// transition and emits its report while holding one lock, so reports leave in
// the order transitions happened and always carry the post transition state.
package task

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/viant/artifex/internal/clock"
	"github.com/viant/artifex/model"
	"github.com/viant/artifex/service/dao"
	"github.com/viant/artifex/service/dao/criteria"
	"github.com/viant/artifex/service/dao/store"
	"github.com/viant/artifex/service/verifier"
)

// Reporter delivers transitions to the dispatcher
type Reporter interface {
	Report(ctx context.Context, task *Task, transition *Transition) error
}

// Listener observes applied transitions
type Listener func(ctx context.Context, task *Task, transition *Transition)

// Machine drives task state
type Machine struct {
	mu        sync.Mutex
	tasks     dao.Service[string, Task]
	reporter  Reporter
	listeners []Listener
	lmu       sync.RWMutex
	logger    *slog.Logger
}

// Option configures a Machine
type Option func(m *Machine)

// WithStore sets task storage
func WithStore(tasks dao.Service[string, Task]) Option {
	return func(m *Machine) {
		m.tasks = tasks
	}
}

// WithReporter sets the transition reporter
func WithReporter(reporter Reporter) Option {
	return func(m *Machine) {
		m.reporter = reporter
	}
}

// WithListeners registers transition listeners
func WithListeners(listeners ...Listener) Option {
	return func(m *Machine) {
		m.listeners = append(m.listeners, listeners...)
	}
}

// WithLogger sets the transition logger
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMachine creates a machine; tasks are kept in memory unless WithStore is used
func NewMachine(options ...Option) *Machine {
	ret := &Machine{logger: slog.Default()}
	for _, opt := range options {
		opt(ret)
	}
	if ret.tasks == nil {
		ret.tasks = store.NewMemoryStore[string, Task](func(t *Task) string { return t.ID }).
			WithFilter(func(t *Task, parameters []*dao.Parameter) bool {
				return criteria.Matches(map[string]string{
					dao.ParamState:   string(t.State),
					dao.ParamBatchID: strconv.FormatInt(t.BatchID, 10),
					dao.ParamTaskID:  t.ID,
				}, parameters)
			})
	}
	return ret
}

// OnTransition registers a listener
func (m *Machine) OnTransition(listener Listener) {
	m.lmu.Lock()
	defer m.lmu.Unlock()
	m.listeners = append(m.listeners, listener)
}

// Create registers a task in the created state.  Re-creating a task that
// exists in a non terminal state returns the existing record; a terminal one
// is rejected with ErrTerminalState.
func (m *Machine) Create(ctx context.Context, t *Task) (*Task, error) {
	if t == nil || t.ID == "" {
		return nil, fmt.Errorf("%w: task id is required", dao.ErrInvalidID)
	}
	m.mu.Lock()
	existing, err := m.load(ctx, t.ID)
	if err == nil {
		m.mu.Unlock()
		if existing.State.IsTerminal() {
			return existing.Clone(), fmt.Errorf("%w: task %v is %v", ErrTerminalState, t.ID, existing.State)
		}
		return existing.Clone(), nil
	}
	if !dao.IsNotFound(err) {
		m.mu.Unlock()
		return nil, err
	}
	now := clock.Now()
	created := &Task{ID: t.ID, BatchID: t.BatchID, ResourceKey: t.ResourceKey, State: StateCreated, CreatedAt: now, UpdatedAt: now}
	transition := &Transition{To: StateCreated, At: now}
	created.History = append(created.History, transition)
	snapshot, err := m.commit(ctx, created, transition)
	m.mu.Unlock()
	if snapshot != nil {
		m.notify(ctx, snapshot, transition)
	}
	return snapshot, err
}

// Dispatch moves created -> dispatched
func (m *Machine) Dispatch(ctx context.Context, taskID string) (*Task, error) {
	return m.Transition(ctx, taskID, StateDispatched, model.ReasonNone, "")
}

// Process moves dispatched -> processing
func (m *Machine) Process(ctx context.Context, taskID string) (*Task, error) {
	return m.Transition(ctx, taskID, StateProcessing, model.ReasonNone, "")
}

// Verify moves processing -> verifying once the artifact is handed off for verification
func (m *Machine) Verify(ctx context.Context, taskID string) (*Task, error) {
	return m.Transition(ctx, taskID, StateVerifying, model.ReasonNone, "")
}

// Complete resolves a verifying task from its verification record:
// verified -> finished, failed -> error carrying the record reason.
func (m *Machine) Complete(ctx context.Context, taskID string, record *verifier.Record) (*Task, error) {
	if record == nil {
		return nil, fmt.Errorf("%w: nil verification record", ErrInvalidTransition)
	}
	status, reason, message := record.State()
	switch status {
	case verifier.StatusVerified:
		if record.Absent {
			message = "artifact absent"
		}
		return m.transitionFrom(ctx, taskID, StateVerifying, StateFinished, model.ReasonNone, message)
	case verifier.StatusFailed:
		return m.transitionFrom(ctx, taskID, StateVerifying, StateError, reason, message)
	}
	return nil, fmt.Errorf("%w: verification of task %v is %v", ErrInvalidTransition, taskID, status)
}

// Fail moves any non terminal task to error
func (m *Machine) Fail(ctx context.Context, taskID string, reason model.Reason, cause error) (*Task, error) {
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	return m.Transition(ctx, taskID, StateError, reason, message)
}

// Transition applies a single transition and reports it
func (m *Machine) Transition(ctx context.Context, taskID string, to State, reason model.Reason, message string) (*Task, error) {
	return m.transitionFrom(ctx, taskID, "", to, reason, message)
}

func (m *Machine) transitionFrom(ctx context.Context, taskID string, from, to State, reason model.Reason, message string) (*Task, error) {
	m.mu.Lock()
	t, err := m.load(ctx, taskID)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	if from != "" && t.State != from && !t.State.IsTerminal() {
		m.mu.Unlock()
		return t.Clone(), fmt.Errorf("%w: task %v is %v, expected %v", ErrInvalidTransition, taskID, t.State, from)
	}
	if err = t.State.check(to); err != nil {
		m.mu.Unlock()
		return t.Clone(), fmt.Errorf("%w: task %v %v -> %v", err, taskID, t.State, to)
	}
	now := clock.Now()
	transition := &Transition{From: t.State, To: to, Reason: reason, Message: message, At: now}
	updated := t.Clone()
	updated.State = to
	updated.Reason = reason
	updated.Message = message
	updated.UpdatedAt = now
	updated.History = append(updated.History, transition)
	snapshot, err := m.commit(ctx, updated, transition)
	m.mu.Unlock()
	if snapshot != nil {
		m.notify(ctx, snapshot, transition)
	}
	return snapshot, err
}

// commit saves t and reports transition; the caller holds m.mu
func (m *Machine) commit(ctx context.Context, t *Task, transition *Transition) (*Task, error) {
	if err := m.tasks.Save(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to save task %v: %w", t.ID, err)
	}
	m.logger.Info("task transition", "task_id", t.ID, "resource_key", t.ResourceKey, "from", transition.From, "to", transition.To, "reason", transition.Reason)
	snapshot := t.Clone()
	if m.reporter == nil {
		return snapshot, nil
	}
	if err := m.reporter.Report(ctx, snapshot, transition); err != nil {
		m.logger.Error("failed to report task transition", "task_id", t.ID, "to", transition.To, "error", err)
		return snapshot, fmt.Errorf("failed to report task %v transition to %v: %w", t.ID, transition.To, err)
	}
	return snapshot, nil
}

func (m *Machine) notify(ctx context.Context, t *Task, transition *Transition) {
	m.lmu.RLock()
	listeners := m.listeners
	m.lmu.RUnlock()
	for _, listener := range listeners {
		listener(ctx, t, transition)
	}
}

func (m *Machine) load(ctx context.Context, taskID string) (*Task, error) {
	t, err := m.tasks.Load(ctx, taskID)
	if err != nil {
		if dao.IsNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load task %v: %w", taskID, err)
	}
	if t == nil {
		return nil, fmt.Errorf("%w: task %v", dao.ErrNotFound, taskID)
	}
	return t, nil
}

// Get returns a copy of the task
func (m *Machine) Get(ctx context.Context, taskID string) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, err := m.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return t.Clone(), nil
}

// List returns copies of tasks matching State, BatchID or TaskID parameters
func (m *Machine) List(ctx context.Context, parameters ...*dao.Parameter) ([]*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tasks, err := m.tasks.List(ctx, parameters...)
	if err != nil {
		return nil, err
	}
	ret := make([]*Task, 0, len(tasks))
	for _, t := range tasks {
		ret = append(ret, t.Clone())
	}
	return ret, nil
}
