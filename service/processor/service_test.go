package processor_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/artifex/model"
	"github.com/viant/artifex/protocol"
	"github.com/viant/artifex/runtime/task"
	"github.com/viant/artifex/service/dao/batch"
	"github.com/viant/artifex/service/dao/store"
	"github.com/viant/artifex/service/event"
	"github.com/viant/artifex/service/messaging"
	"github.com/viant/artifex/service/messaging/dedup"
	"github.com/viant/artifex/service/processor"
	"github.com/viant/artifex/service/verifier"
)

type fixture struct {
	machine *task.Machine
	queue   *dedup.Queue[model.FetchTask]
	batches *batch.Service
	records *store.MemoryStore[string, verifier.Record]
	events  *event.Service
	service *processor.Service
}

func newFixture(t *testing.T, options ...task.Option) *fixture {
	ctx := context.Background()
	batches, err := batch.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = batches.Close() })
	events, err := event.New(messaging.VendorMemory)
	require.NoError(t, err)
	ret := &fixture{
		machine: task.NewMachine(options...),
		queue:   dedup.NewQueue[model.FetchTask]((*model.FetchTask).Key),
		batches: batches,
		records: store.NewMemoryStore[string, verifier.Record](func(r *verifier.Record) string { return r.TaskID }),
		events:  events,
	}
	ret.service, err = processor.New(ret.machine, ret.queue, batches,
		processor.WithConfig(processor.Config{ProcessorID: "proc-1"}),
		processor.WithRecords(ret.records),
		processor.WithEvents(events))
	require.NoError(t, err)
	ret.machine.OnTransition(ret.service.OnTransition)
	return ret
}

func assignment(id string, tasks ...*protocol.TaskAssignment) []byte {
	data, err := protocol.Encode(protocol.NewAssignmentMessage(&protocol.Assignment{ID: id, DispatcherURL: "http://dispatcher:8080", Tasks: tasks}))
	if err != nil {
		panic(err)
	}
	return data
}

func TestService_HandleAssignment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	receipt, err := f.service.HandleAssignment(ctx, assignment("a1",
		&protocol.TaskAssignment{TaskID: "t1", ResourceKey: "r1", Location: "disk://prod/r1", Checksums: map[string]string{"SHA256": "abc"}},
		&protocol.TaskAssignment{TaskID: "t2", ResourceKey: "r2", Location: "disk://prod/r2", Nullable: true},
	))
	require.NoError(t, err)
	assert.True(t, receipt.BatchID > 0)
	assert.Equal(t, []string{"t1", "t2"}, receipt.TaskIDs)
	assert.Equal(t, 2, receipt.Enqueued)
	assert.Equal(t, 2, f.queue.Size())

	queued, ok := f.queue.Peek("r1")
	require.True(t, ok)
	assert.Equal(t, "t1", queued.TaskID)
	assert.Equal(t, receipt.BatchID, queued.BatchID)
	assert.Equal(t, "proc-1", queued.ProcessorIdentity)
	assert.Equal(t, "http://dispatcher:8080", queued.DispatcherEndpoint)
	assert.Equal(t, map[string]string{"SHA256": "abc"}, queued.Checksums)

	for _, id := range receipt.TaskIDs {
		actual, err := f.machine.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, task.StateDispatched, actual.State)
	}
	stored, err := f.batches.Load(ctx, receipt.BatchID)
	require.NoError(t, err)
	assert.Equal(t, "a1", stored.AssignmentID)
	assert.Equal(t, 2, stored.Total)
	assert.Equal(t, batch.StateProcessing, stored.State)

	again, err := f.service.HandleAssignment(ctx, assignment("a2", &protocol.TaskAssignment{TaskID: "t1", ResourceKey: "r1", Location: "disk://prod/r1"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, again.TaskIDs)
	assert.Equal(t, 0, again.Enqueued)
	assert.Equal(t, 2, f.queue.Size())
}

func TestService_HandleAssignment_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	testCases := []struct {
		description string
		data        []byte
		expectedErr error
	}{
		{description: "unsupported version", data: []byte("version: 9\nkind: assignment\n"), expectedErr: protocol.ErrUnsupportedVersion},
		{description: "malformed payload", data: []byte("version: [\n"), expectedErr: protocol.ErrMalformedPayload},
		{description: "status message", data: func() []byte {
			data, _ := protocol.Encode(protocol.NewStatusMessage("p", &protocol.TaskStatus{TaskID: "t1", State: "finished"}))
			return data
		}(), expectedErr: protocol.ErrMalformedPayload},
	}
	for _, testCase := range testCases {
		_, err := f.service.HandleAssignment(ctx, testCase.data)
		assert.ErrorIs(t, err, testCase.expectedErr, testCase.description)
		assert.Equal(t, 0, f.queue.Size(), testCase.description)
	}
	batches, err := f.batches.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestService_Supersede(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.service.HandleAssignment(ctx, assignment("a1",
		&protocol.TaskAssignment{TaskID: "A", ResourceKey: "r1", Location: "disk://prod/v1"},
		&protocol.TaskAssignment{TaskID: "C", ResourceKey: "r2", Location: "disk://prod/r2"},
	))
	require.NoError(t, err)
	_, err = f.service.HandleAssignment(ctx, assignment("a2", &protocol.TaskAssignment{TaskID: "B", ResourceKey: "r1", Location: "disk://prod/v2"}))
	require.NoError(t, err)

	assert.Equal(t, 2, f.queue.Size())
	first, ok := f.queue.Dequeue()
	require.True(t, ok)
	assert.Equal(t, "B", first.TaskID)
	assert.Equal(t, "disk://prod/v2", first.Location)

	stale, err := f.machine.Get(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, task.StateError, stale.State)
	assert.Equal(t, model.ReasonSuperseded, stale.Reason)
}

func TestService_Complete(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t)
	require.NoError(t, f.service.Start(ctx))
	defer f.service.Shutdown()

	receipt, err := f.service.HandleAssignment(ctx, assignment("a1",
		&protocol.TaskAssignment{TaskID: "t1", ResourceKey: "r1", Location: "disk://prod/r1", Nullable: true},
		&protocol.TaskAssignment{TaskID: "t2", ResourceKey: "r2", Location: "disk://prod/r2"},
	))
	require.NoError(t, err)
	verifierService := verifier.New(verifier.WithRecordDAO(f.records))
	publisher, err := event.PublisherOf[verifier.Outcome](f.events)
	require.NoError(t, err)

	for _, id := range receipt.TaskIDs {
		_, err = f.machine.Process(ctx, id)
		require.NoError(t, err)
		_, err = f.machine.Verify(ctx, id)
		require.NoError(t, err)
		fetchTask, ok := f.queue.Peek("r" + id[1:])
		require.True(t, ok)
		record := verifierService.Verify(ctx, verifier.NewRequest(fetchTask, "", true))
		require.NoError(t, f.records.Save(ctx, record))
		require.NoError(t, publisher.Publish(ctx, event.NewEvent(&event.Context{TaskID: id}, *verifier.OutcomeOf(record))))
	}

	assert.Eventually(t, func() bool {
		stored, err := f.batches.Load(ctx, receipt.BatchID)
		return err == nil && stored.State == batch.StateError
	}, 2*time.Second, 10*time.Millisecond)

	finished, err := f.machine.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, task.StateFinished, finished.State)
	failed, err := f.machine.Get(ctx, "t2")
	require.NoError(t, err)
	assert.Equal(t, task.StateError, failed.State)
	assert.Equal(t, model.ReasonArtifactMissing, failed.Reason)

	stored, err := f.batches.Load(ctx, receipt.BatchID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Finished)
	assert.Equal(t, 1, stored.Failed)
	_, active := f.service.Progress(receipt.BatchID)
	assert.False(t, active)
}

func TestService_Supersede_Concurrent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	const producers = 8
	for round := 0; round < 100; round++ {
		resourceKey := fmt.Sprintf("r-%d", round)
		start := make(chan struct{})
		var wg sync.WaitGroup
		for i := 0; i < producers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				_, err := f.service.HandleAssignment(ctx, assignment(fmt.Sprintf("a-%d-%d", round, i),
					&protocol.TaskAssignment{TaskID: fmt.Sprintf("t-%d-%d", round, i), ResourceKey: resourceKey, Location: "disk://prod/" + resourceKey}))
				assert.NoError(t, err)
			}(i)
		}
		close(start)
		wg.Wait()

		queued, ok := f.queue.Peek(resourceKey)
		require.True(t, ok, resourceKey)
		tasks, err := f.machine.List(ctx)
		require.NoError(t, err)
		var dispatched, superseded int
		for _, candidate := range tasks {
			if candidate.ResourceKey != resourceKey {
				continue
			}
			switch candidate.State {
			case task.StateDispatched:
				dispatched++
				assert.Equal(t, queued.TaskID, candidate.ID, resourceKey)
			case task.StateError:
				superseded++
				assert.Equal(t, model.ReasonSuperseded, candidate.Reason, resourceKey)
			}
		}
		require.Equal(t, 1, dispatched, resourceKey)
		require.Equal(t, producers-1, superseded, resourceKey)
	}
	assert.Equal(t, 100, f.queue.Size())
}

func TestService_Supersede_DequeuedTaskKeepsRunning(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.service.HandleAssignment(ctx, assignment("a1", &protocol.TaskAssignment{TaskID: "A", ResourceKey: "r1", Location: "disk://prod/v1"}))
	require.NoError(t, err)
	inFlight, ok := f.queue.Dequeue()
	require.True(t, ok)
	_, err = f.machine.Process(ctx, inFlight.TaskID)
	require.NoError(t, err)

	_, err = f.service.HandleAssignment(ctx, assignment("a2", &protocol.TaskAssignment{TaskID: "B", ResourceKey: "r1", Location: "disk://prod/v2"}))
	require.NoError(t, err)

	running, err := f.machine.Get(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, task.StateProcessing, running.State)
	queued, ok := f.queue.Peek("r1")
	require.True(t, ok)
	assert.Equal(t, "B", queued.TaskID)
}

type reporterFunc func(ctx context.Context, t *task.Task, transition *task.Transition) error

func (f reporterFunc) Report(ctx context.Context, t *task.Task, transition *task.Transition) error {
	return f(ctx, t, transition)
}

type dispatchRejectingStore struct {
	*store.MemoryStore[string, task.Task]
}

func (s *dispatchRejectingStore) Save(ctx context.Context, t *task.Task) error {
	if t.State == task.StateDispatched {
		return errors.New("disk full")
	}
	return s.MemoryStore.Save(ctx, t)
}

func TestService_HandleAssignment_DispatchFailure(t *testing.T) {
	testCases := []struct {
		description      string
		options          []task.Option
		expectedEnqueued int
		expectedState    task.State
		expectedReason   model.Reason
		expectedBatch    string
	}{
		{
			description: "dispatch saved, report failed",
			options: []task.Option{task.WithReporter(reporterFunc(func(ctx context.Context, t *task.Task, transition *task.Transition) error {
				if transition.To == task.StateDispatched {
					return errors.New("outbox unavailable")
				}
				return nil
			}))},
			expectedEnqueued: 1,
			expectedState:    task.StateDispatched,
			expectedBatch:    batch.StateProcessing,
		},
		{
			description: "dispatch not saved",
			options: []task.Option{task.WithStore(&dispatchRejectingStore{
				MemoryStore: store.NewMemoryStore[string, task.Task](func(t *task.Task) string { return t.ID }),
			})},
			expectedState:  task.StateError,
			expectedReason: model.ReasonFetchIOFailure,
			expectedBatch:  batch.StateError,
		},
	}
	for _, testCase := range testCases {
		ctx := context.Background()
		f := newFixture(t, testCase.options...)
		receipt, err := f.service.HandleAssignment(ctx, assignment("a1", &protocol.TaskAssignment{TaskID: "t1", ResourceKey: "r1", Location: "disk://prod/r1"}))
		require.NoError(t, err, testCase.description)
		assert.Equal(t, testCase.expectedEnqueued, receipt.Enqueued, testCase.description)
		assert.Equal(t, testCase.expectedEnqueued, f.queue.Size(), testCase.description)

		actual, err := f.machine.Get(ctx, "t1")
		require.NoError(t, err, testCase.description)
		assert.Equal(t, testCase.expectedState, actual.State, testCase.description)
		assert.Equal(t, testCase.expectedReason, actual.Reason, testCase.description)

		stored, err := f.batches.Load(ctx, receipt.BatchID)
		require.NoError(t, err, testCase.description)
		assert.EqualValues(t, testCase.expectedBatch, stored.State, testCase.description)
	}
}
