package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"
	"github.com/viant/artifex/internal/clock"
	"github.com/viant/artifex/internal/idgen"
	"github.com/viant/artifex/service/messaging"
)

// MessageState represents the state of a message in the filesystem queue
type MessageState string

const (
	MessageStatePending    MessageState = "pending"
	MessageStateProcessing MessageState = "processing"
	MessageStateCompleted  MessageState = "completed"
	MessageStateFailed     MessageState = "failed"
)

// Message implements messaging.Message for filesystem queue
type Message[T any] struct {
	ID        string       `json:"id"`
	Data      T            `json:"data"`
	State     MessageState `json:"state"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
	Retries   int          `json:"retries"`

	name      string
	queue     *Queue[T]
	processed bool
	mu        sync.Mutex
}

// T returns the message payload
func (m *Message[T]) T() *T {
	return &m.Data
}

// Ack moves the message to the completed directory
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return messaging.ErrAlreadyProcessed
	}
	m.processed = true
	m.State = MessageStateCompleted
	m.UpdatedAt = clock.Now()
	return m.queue.settle(context.Background(), m, m.queue.completedDir)
}

// Nack returns the message to pending under its original name, so that it
// keeps its position, or moves it to the dead letter directory once retries
// are exhausted.
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return messaging.ErrAlreadyProcessed
	}
	m.processed = true
	if err != nil {
		m.Error = err.Error()
	}
	m.Retries++
	m.UpdatedAt = clock.Now()
	if m.Retries > m.queue.config.MaxRetries {
		m.State = MessageStateFailed
		return m.queue.settle(context.Background(), m, m.queue.dlqDir)
	}
	m.State = MessageStatePending
	return m.queue.settle(context.Background(), m, m.queue.pendingDir)
}

// Config holds configuration for filesystem queue
type Config struct {
	// BaseURL is the queue root, any afs URL (file://, mem://, gs://, s3://)
	BaseURL      string
	MaxRetries   int
	PollInterval time.Duration
}

// DefaultConfig returns a default queue configuration
func DefaultConfig() Config {
	return Config{
		BaseURL:      "/tmp/artifex/queue",
		MaxRetries:   3,
		PollInterval: 100 * time.Millisecond,
	}
}

// Queue implements an ordered, durable messaging.Queue on top of afs.
// Message file names start with a zero padded publish timestamp and sequence,
// so lexical order is publish order.
type Queue[T any] struct {
	fs            afs.Service
	config        Config
	pendingDir    string
	processingDir string
	completedDir  string
	dlqDir        string
	seq           uint64
	mu            sync.Mutex
}

// NewQueue creates a new filesystem-based queue
func NewQueue[T any](fs afs.Service, config Config) (*Queue[T], error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}
	baseURL := strings.TrimRight(config.BaseURL, "/")
	q := &Queue[T]{
		fs:            fs,
		config:        config,
		pendingDir:    url.Join(baseURL, "pending"),
		processingDir: url.Join(baseURL, "processing"),
		completedDir:  url.Join(baseURL, "completed"),
		dlqDir:        url.Join(baseURL, "dlq"),
	}
	ctx := context.Background()
	for _, dir := range []string{q.pendingDir, q.processingDir, q.completedDir, q.dlqDir} {
		if exists, _ := fs.Exists(ctx, dir); exists {
			continue
		}
		if err := fs.Create(ctx, dir, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return q, nil
}

// Publish writes a new message into the pending directory
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	now := clock.Now()
	message := &Message[T]{
		ID:        idgen.New(),
		Data:      *t,
		State:     MessageStatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	name := fmt.Sprintf("%020d-%010d-%s.json", now.UnixNano(), atomic.AddUint64(&q.seq, 1), message.ID)
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return q.upload(ctx, url.Join(q.pendingDir, name), data)
}

// Consume returns the oldest pending message, polling until one is published or ctx is done
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	for {
		message, err := q.next(ctx)
		if err != nil || message != nil {
			return message, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(q.config.PollInterval):
		}
	}
}

// Size returns the number of pending messages
func (q *Queue[T]) Size() int {
	names, err := q.pending(context.Background())
	if err != nil {
		return 0
	}
	return len(names)
}

func (q *Queue[T]) next(ctx context.Context) (*Message[T], error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	names, err := q.pending(ctx)
	if err != nil || len(names) == 0 {
		return nil, err
	}
	name := names[0]
	source := url.Join(q.pendingDir, name)
	message, err := q.read(ctx, source)
	if err != nil {
		_ = q.fs.Move(ctx, source, url.Join(q.dlqDir, "invalid-"+name))
		return nil, err
	}
	message.name = name
	message.queue = q
	message.State = MessageStateProcessing
	message.UpdatedAt = clock.Now()
	data, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	if err = q.upload(ctx, url.Join(q.processingDir, name), data); err != nil {
		return nil, fmt.Errorf("failed to move message %v to processing: %w", name, err)
	}
	if err = q.fs.Delete(ctx, source); err != nil {
		return nil, fmt.Errorf("failed to delete pending message %v: %w", name, err)
	}
	return message, nil
}

func (q *Queue[T]) pending(ctx context.Context) ([]string, error) {
	objects, err := q.fs.List(ctx, q.pendingDir, option.NewRecursive(false))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending messages: %w", err)
	}
	var names []string
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		names = append(names, object.Name())
	}
	sort.Strings(names)
	return names, nil
}

// settle writes the message into dir and removes it from processing
func (q *Queue[T]) settle(ctx context.Context, m *Message[T], dir string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err = q.upload(ctx, url.Join(dir, m.name), data); err != nil {
		return err
	}
	processing := url.Join(q.processingDir, m.name)
	if exists, _ := q.fs.Exists(ctx, processing); exists {
		if err = q.fs.Delete(ctx, processing); err != nil {
			return fmt.Errorf("failed to delete processing message %v: %w", m.name, err)
		}
	}
	return nil
}

func (q *Queue[T]) upload(ctx context.Context, URL string, data []byte) error {
	return q.fs.Upload(ctx, URL, file.DefaultFileOsMode, bytes.NewReader(data))
}

func (q *Queue[T]) read(ctx context.Context, URL string) (*Message[T], error) {
	data, err := q.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read message %s: %w", URL, err)
	}
	message := &Message[T]{}
	if err := json.Unmarshal(data, message); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message %s: %w", URL, err)
	}
	return message, nil
}

var _ messaging.Queue[any] = (*Queue[any])(nil)
var _ messaging.Sizer = (*Queue[any])(nil)
