package progress

import (
	"context"
	"sync"
	"time"

	"github.com/viant/artifex/internal/clock"
)

// Delta represents an incremental counter change derived from a task
// transition.  Fields are signed and can be either positive or negative.
type Delta struct {
	Total    int
	Finished int
	Failed   int
	Running  int
	Pending  int
}

// Progress keeps task counters of one batch.  It is safe for concurrent use.
type Progress struct {
	BatchID      int64
	AssignmentID string
	StartedAt    time.Time

	TotalTasks    int
	FinishedTasks int
	FailedTasks   int
	RunningTasks  int
	PendingTasks  int

	sync.Mutex
	onChange func(Progress)
}

// Done reports whether every counted task reached a terminal state
func (p *Progress) Done() bool {
	return p.TotalTasks > 0 && p.FinishedTasks+p.FailedTasks >= p.TotalTasks
}

// Update applies the supplied delta.  The onChange callback, if any, receives
// a copy taken under the lock and runs outside of it.
func (p *Progress) Update(d Delta) {
	if p == nil {
		return
	}
	p.Lock()
	p.TotalTasks += d.Total
	p.FinishedTasks += d.Finished
	p.FailedTasks += d.Failed
	p.RunningTasks += d.Running
	p.PendingTasks += d.Pending
	snapshot := p.copy()
	cb := p.onChange
	p.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

// Snapshot returns a copy suitable for read-only inspection
func (p *Progress) Snapshot() Progress {
	if p == nil {
		return Progress{}
	}
	p.Lock()
	defer p.Unlock()
	return p.copy()
}

func (p *Progress) copy() Progress {
	return Progress{
		BatchID:       p.BatchID,
		AssignmentID:  p.AssignmentID,
		StartedAt:     p.StartedAt,
		TotalTasks:    p.TotalTasks,
		FinishedTasks: p.FinishedTasks,
		FailedTasks:   p.FailedTasks,
		RunningTasks:  p.RunningTasks,
		PendingTasks:  p.PendingTasks,
	}
}

// OnChange registers the callback invoked after every Update; nil disables it
func (p *Progress) OnChange(cb func(Progress)) {
	if p == nil {
		return
	}
	p.Lock()
	p.onChange = cb
	p.Unlock()
}

// New creates a tracker for a batch
func New(batchID int64, assignmentID string, onChange func(Progress)) *Progress {
	return &Progress{
		BatchID:      batchID,
		AssignmentID: assignmentID,
		StartedAt:    clock.Now(),
		onChange:     onChange,
	}
}

type trackerKeyT struct{}

var trackerKey trackerKeyT

// WithNewTracker creates a tracker and embeds it in a derived context
func WithNewTracker(ctx context.Context, batchID int64, assignmentID string, onChange func(Progress)) (context.Context, *Progress) {
	if ctx == nil {
		ctx = context.Background()
	}
	tr := New(batchID, assignmentID, onChange)
	return context.WithValue(ctx, trackerKey, tr), tr
}

// FromContext extracts the tracker from ctx
func FromContext(ctx context.Context) (*Progress, bool) {
	if ctx == nil {
		return nil, false
	}
	tr, ok := ctx.Value(trackerKey).(*Progress)
	return tr, ok
}

// GetSnapshot combines FromContext and Snapshot
func GetSnapshot(ctx context.Context) (Progress, bool) {
	if tr, ok := FromContext(ctx); ok {
		return tr.Snapshot(), true
	}
	return Progress{}, false
}

// UpdateCtx applies delta to the tracker carried by ctx, if any
func UpdateCtx(ctx context.Context, d Delta) {
	if tr, ok := FromContext(ctx); ok {
		tr.Update(d)
	}
}
