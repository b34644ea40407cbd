package task

import (
	"time"

	"github.com/viant/artifex/model"
)

// Transition records a single state change
type Transition struct {
	From    State        `json:"from,omitempty"`
	To      State        `json:"to"`
	Reason  model.Reason `json:"reason,omitempty"`
	Message string       `json:"message,omitempty"`
	At      time.Time    `json:"at"`
}

// Task is the processor side record of a dispatcher assigned task
type Task struct {
	ID          string        `json:"id"`
	BatchID     int64         `json:"batchId,omitempty"`
	ResourceKey string        `json:"resourceKey"`
	State       State         `json:"state"`
	Reason      model.Reason  `json:"reason,omitempty"`
	Message     string        `json:"message,omitempty"`
	History     []*Transition `json:"history,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// Clone returns a deep copy
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	ret := *t
	ret.History = make([]*Transition, len(t.History))
	for i, transition := range t.History {
		copied := *transition
		ret.History[i] = &copied
	}
	return &ret
}
