package batch

import "time"

// Batch states
const (
	StateProcessing = "processing"
	StateFinished   = "finished"
	StateError      = "error"
)

// Batch aggregates the tasks of one dispatcher assignment
type Batch struct {
	ID           int64     `json:"id"`
	AssignmentID string    `json:"assignmentId"`
	ProcessorID  string    `json:"processorId"`
	State        string    `json:"state"`
	Total        int       `json:"total"`
	Finished     int       `json:"finished"`
	Failed       int       `json:"failed"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Pending returns the number of tasks not yet terminal
func (b *Batch) Pending() int {
	if pending := b.Total - b.Finished - b.Failed; pending > 0 {
		return pending
	}
	return 0
}

// Derive recomputes State from the task counters: error once every task is
// terminal and at least one failed, finished once every task finished.
func (b *Batch) Derive() string {
	switch {
	case b.Pending() > 0:
		b.State = StateProcessing
	case b.Failed > 0:
		b.State = StateError
	default:
		b.State = StateFinished
	}
	return b.State
}
