package verifier

import "github.com/viant/artifex/model"

// Request asks for verification of an artifact already written to local storage
type Request struct {
	TaskID             string            `json:"taskId"`
	BatchID            int64             `json:"batchId,omitempty"`
	ResourceKey        string            `json:"resourceKey"`
	ArtifactURL        string            `json:"artifactURL"`
	Nullable           bool              `json:"nullable,omitempty"`
	Absent             bool              `json:"absent,omitempty"`
	Checksums          map[string]string `json:"checksums,omitempty"`
	Signature          string            `json:"signature,omitempty"`
	SignatureAlgorithm string            `json:"signatureAlgorithm,omitempty"`
}

// NewRequest creates a verification request for a fetched task
func NewRequest(task *model.FetchTask, artifactURL string, absent bool) *Request {
	return &Request{
		TaskID:             task.TaskID,
		BatchID:            task.BatchID,
		ResourceKey:        task.ResourceKey,
		ArtifactURL:        artifactURL,
		Nullable:           task.Nullable,
		Absent:             absent,
		Checksums:          task.Checksums,
		Signature:          task.Signature,
		SignatureAlgorithm: task.SignatureAlgorithm,
	}
}

// Outcome is published once a record completes
type Outcome struct {
	TaskID     string       `json:"taskId"`
	BatchID    int64        `json:"batchId,omitempty"`
	ArtifactID string       `json:"artifactId"`
	Status     Status       `json:"status"`
	Reason     model.Reason `json:"reason,omitempty"`
	Message    string       `json:"message,omitempty"`
	Absent     bool         `json:"absent,omitempty"`
}

// OutcomeOf returns the outcome of a completed record
func OutcomeOf(r *Record) *Outcome {
	status, reason, message := r.State()
	return &Outcome{
		TaskID:     r.TaskID,
		BatchID:    r.BatchID,
		ArtifactID: r.ArtifactID,
		Status:     status,
		Reason:     reason,
		Message:    message,
		Absent:     r.Absent,
	}
}
