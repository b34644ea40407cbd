package model

import "time"

// FetchTask represents a pending request to retrieve one artifact.  Two tasks
// are interchangeable for queueing purposes if and only if their ResourceKey
// matches; every other field may be updated by a later submission.
type FetchTask struct {
	ResourceKey        string            `json:"resourceKey" yaml:"resourceKey"`
	TaskID             string            `json:"taskId" yaml:"taskId"`
	BatchID            int64             `json:"batchId,omitempty" yaml:"batchId,omitempty"`
	Location           string            `json:"location" yaml:"location"`
	TargetDirectory    string            `json:"targetDirectory" yaml:"targetDirectory"`
	ChunkSizeHint      int               `json:"chunkSizeHint,omitempty" yaml:"chunkSizeHint,omitempty"`
	DispatcherEndpoint string            `json:"dispatcherEndpoint" yaml:"dispatcherEndpoint"`
	ProcessorIdentity  string            `json:"processorIdentity" yaml:"processorIdentity"`
	Nullable           bool              `json:"nullable,omitempty" yaml:"nullable,omitempty"`
	Checksums          map[string]string `json:"checksums,omitempty" yaml:"checksums,omitempty"`
	Signature          string            `json:"signature,omitempty" yaml:"signature,omitempty"`
	SignatureAlgorithm string            `json:"signatureAlgorithm,omitempty" yaml:"signatureAlgorithm,omitempty"`
	// Timeout overrides the fetch timeout configured on the processor
	Timeout   time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	CreatedAt time.Time     `json:"createdAt" yaml:"createdAt"`
}

// Key returns deduplication key
func (t *FetchTask) Key() string {
	return t.ResourceKey
}

// Clone returns a copy safe to mutate
func (t *FetchTask) Clone() *FetchTask {
	if t == nil {
		return nil
	}
	clone := *t
	if t.Checksums != nil {
		clone.Checksums = make(map[string]string, len(t.Checksums))
		for k, v := range t.Checksums {
			clone.Checksums[k] = v
		}
	}
	return &clone
}
