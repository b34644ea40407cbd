package verifier

import (
	"sync"
	"time"

	"github.com/viant/artifex/internal/clock"
	"github.com/viant/artifex/model"
)

// Status is the verification outcome
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusFailed   Status = "failed"
)

// IsTerminal returns true for verified and failed
func (s Status) IsTerminal() bool {
	return s == StatusVerified || s == StatusFailed
}

// Record captures the integrity check of one fetched artifact.  It is
// created pending and completed exactly once; later completions are ignored.
type Record struct {
	ArtifactID         string            `json:"artifactId"`
	TaskID             string            `json:"taskId"`
	BatchID            int64             `json:"batchId,omitempty"`
	ResourceKey        string            `json:"resourceKey"`
	Algorithms         []string          `json:"algorithms,omitempty"`
	Expected           map[string]string `json:"expected,omitempty"`
	Actual             map[string]string `json:"actual,omitempty"`
	SignatureAlgorithm string            `json:"signatureAlgorithm,omitempty"`
	SignatureValid     *bool             `json:"signatureValid,omitempty"`
	Status             Status            `json:"status"`
	Reason             model.Reason      `json:"reason,omitempty"`
	Message            string            `json:"message,omitempty"`
	Absent             bool              `json:"absent,omitempty"`
	CreatedAt          time.Time         `json:"createdAt"`
	CompletedAt        *time.Time        `json:"completedAt,omitempty"`

	mu   sync.RWMutex
	once sync.Once
}

// NewRecord creates a pending record for the request
func NewRecord(request *Request) *Record {
	artifactID := request.ArtifactURL
	if artifactID == "" {
		artifactID = request.ResourceKey
	}
	return &Record{
		ArtifactID:         artifactID,
		TaskID:             request.TaskID,
		BatchID:            request.BatchID,
		ResourceKey:        request.ResourceKey,
		Expected:           request.Checksums,
		SignatureAlgorithm: request.SignatureAlgorithm,
		Status:             StatusPending,
		CreatedAt:          clock.Now(),
	}
}

// State returns status, reason and message
func (r *Record) State() (Status, model.Reason, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Status, r.Reason, r.Message
}

// Verified returns true when the record completed successfully
func (r *Record) Verified() bool {
	status, _, _ := r.State()
	return status == StatusVerified
}

func (r *Record) verify() bool {
	return r.complete(StatusVerified, model.ReasonNone, "")
}

func (r *Record) fail(reason model.Reason, message string) bool {
	return r.complete(StatusFailed, reason, message)
}

func (r *Record) complete(status Status, reason model.Reason, message string) bool {
	completed := false
	r.once.Do(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		now := clock.Now()
		r.Status = status
		r.Reason = reason
		r.Message = message
		r.CompletedAt = &now
		completed = true
	})
	return completed
}
