package protocol

import (
	"fmt"
	"time"
)

// Kind names the payload variant carried by a message
type Kind string

const (
	// KindAssignment dispatcher -> processor task assignment
	KindAssignment Kind = "assignment"
	// KindStatus processor -> dispatcher status report
	KindStatus Kind = "status"
)

// Message is the canonical, latest-version envelope.  Exactly one of
// Assignment or Status is set and Kind names which one.
type Message struct {
	Version    int           `json:"version" yaml:"version"`
	Kind       Kind          `json:"kind" yaml:"kind"`
	Assignment *Assignment   `json:"assignment,omitempty" yaml:"assignment,omitempty"`
	Status     *StatusReport `json:"status,omitempty" yaml:"status,omitempty"`
}

// Assignment represents a batch of tasks assigned by the dispatcher
type Assignment struct {
	ID            string            `json:"id" yaml:"id"`
	ProcessorID   string            `json:"processorId,omitempty" yaml:"processorId,omitempty"`
	DispatcherURL string            `json:"dispatcherUrl,omitempty" yaml:"dispatcherUrl,omitempty"`
	Tasks         []*TaskAssignment `json:"tasks" yaml:"tasks"`
}

// TaskAssignment describes one artifact a processor has to fetch and verify
type TaskAssignment struct {
	TaskID             string            `json:"taskId" yaml:"taskId"`
	ResourceKey        string            `json:"resourceKey" yaml:"resourceKey"`
	Location           string            `json:"location" yaml:"location"`
	TargetDirectory    string            `json:"targetDirectory,omitempty" yaml:"targetDirectory,omitempty"`
	ChunkSize          int               `json:"chunkSize,omitempty" yaml:"chunkSize,omitempty"`
	Nullable           bool              `json:"nullable,omitempty" yaml:"nullable,omitempty"`
	Checksums          map[string]string `json:"checksums,omitempty" yaml:"checksums,omitempty"`
	Signature          string            `json:"signature,omitempty" yaml:"signature,omitempty"`
	SignatureAlgorithm string            `json:"signatureAlgorithm,omitempty" yaml:"signatureAlgorithm,omitempty"`
}

// StatusReport carries task state transitions back to the dispatcher
type StatusReport struct {
	ProcessorID string        `json:"processorId,omitempty" yaml:"processorId,omitempty"`
	Reports     []*TaskStatus `json:"reports" yaml:"reports"`
}

// TaskStatus represents a single task state
type TaskStatus struct {
	TaskID      string    `json:"taskId" yaml:"taskId"`
	ResourceKey string    `json:"resourceKey,omitempty" yaml:"resourceKey,omitempty"`
	State       string    `json:"state" yaml:"state"`
	Reason      string    `json:"reason,omitempty" yaml:"reason,omitempty"`
	Message     string    `json:"message,omitempty" yaml:"message,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

// Validate checks that the tagged union is consistent
func (m *Message) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil message", ErrMalformedPayload)
	}
	switch m.Kind {
	case KindAssignment:
		if m.Assignment == nil || m.Status != nil {
			return fmt.Errorf("%w: kind %v requires assignment payload only", ErrMalformedPayload, m.Kind)
		}
		for i, task := range m.Assignment.Tasks {
			if task == nil {
				return fmt.Errorf("%w: task[%d] is empty", ErrMalformedPayload, i)
			}
			if task.TaskID == "" {
				return fmt.Errorf("%w: task[%d]: taskId is required", ErrMalformedPayload, i)
			}
			if task.ResourceKey == "" {
				return fmt.Errorf("%w: task %v: resourceKey is required", ErrMalformedPayload, task.TaskID)
			}
		}
	case KindStatus:
		if m.Status == nil || m.Assignment != nil {
			return fmt.Errorf("%w: kind %v requires status payload only", ErrMalformedPayload, m.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrMalformedPayload, m.Kind)
	}
	return nil
}

// NewAssignmentMessage creates latest-version assignment message
func NewAssignmentMessage(assignment *Assignment) *Message {
	return &Message{Version: Latest(), Kind: KindAssignment, Assignment: assignment}
}

// NewStatusMessage creates latest-version status message
func NewStatusMessage(processorID string, reports ...*TaskStatus) *Message {
	return &Message{Version: Latest(), Kind: KindStatus, Status: &StatusReport{ProcessorID: processorID, Reports: reports}}
}
