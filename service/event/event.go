package event

import (
	"time"

	"github.com/viant/artifex/internal/clock"
)

// Context identifies what an event is about
type Context struct {
	TaskID      string `json:"taskID"`
	BatchID     int64  `json:"batchID,omitempty"`
	ResourceKey string `json:"resourceKey,omitempty"`
	EventType   string `json:"eventType"`
	Source      string `json:"source,omitempty"`
}

type Event[T any] struct {
	Context   *Context               `json:"context"`
	CreatedAt time.Time              `json:"createdAt"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Data      T                      `json:"data"`
}

func NewEvent[T any](context *Context, data T) *Event[T] {
	return &Event[T]{
		Context:   context,
		CreatedAt: clock.Now(),
		Data:      data,
	}
}
