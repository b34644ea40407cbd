package verifier

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/artifex/model"
	"github.com/viant/artifex/service/dao"
	"github.com/viant/artifex/service/dao/store"
	"github.com/viant/artifex/service/event"
	"github.com/viant/artifex/service/messaging"
	"github.com/viant/artifex/service/messaging/memory"
	"github.com/viant/artifex/tracing"
)

// Config controls verification policy
type Config struct {
	// RequireChecksum fails artifacts delivered without any declared checksum
	RequireChecksum bool `json:"requireChecksum,omitempty" yaml:"requireChecksum,omitempty"`
}

// Service verifies fetched artifacts.  Requests arrive on a queue and each is
// handled on its own goroutine; a failed record is terminal and never retried.
type Service struct {
	config    Config
	fs        afs.Service
	keys      KeySource
	queue     messaging.Queue[Request]
	records   dao.Service[string, Record]
	publisher *event.Publisher[Outcome]
	observers []func(*Record)
	logger    *slog.Logger
	wg        sync.WaitGroup
	cancel    context.CancelFunc
	done      chan struct{}
}

// Queue returns the fetch to verification handoff queue
func (s *Service) Queue() messaging.Queue[Request] {
	return s.queue
}

// Records returns the record store
func (s *Service) Records() dao.Service[string, Record] {
	return s.records
}

// Submit hands a request off for asynchronous verification
func (s *Service) Submit(ctx context.Context, request *Request) error {
	return s.queue.Publish(ctx, request)
}

// Start consumes requests until ctx is done or Shutdown is called
func (s *Service) Start(ctx context.Context) error {
	if s.done != nil {
		return fmt.Errorf("verifier already started")
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		for {
			msg, err := s.queue.Consume(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Warn("failed to consume verification request", "error", err)
				continue
			}
			request := *msg.T()
			_ = msg.Ack()
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.handle(ctx, &request)
			}()
		}
	}()
	return nil
}

// Shutdown stops consuming and waits for running verifications
func (s *Service) Shutdown() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.wg.Wait()
}

func (s *Service) handle(ctx context.Context, request *Request) {
	record := s.Verify(ctx, request)
	if err := s.records.Save(ctx, record); err != nil {
		s.logger.Error("failed to save verification record", "task_id", record.TaskID, "error", err)
	}
	for _, observer := range s.observers {
		observer(record)
	}
	if s.publisher == nil {
		return
	}
	outcome := OutcomeOf(record)
	evt := event.NewEvent(&event.Context{TaskID: record.TaskID, BatchID: record.BatchID, ResourceKey: record.ResourceKey, EventType: string(outcome.Status), Source: "verifier"}, *outcome)
	if err := s.publisher.Publish(context.WithoutCancel(ctx), evt); err != nil {
		s.logger.Error("failed to publish verification outcome", "task_id", record.TaskID, "error", err)
	}
}

// Verify checks request synchronously and returns a completed record
func (s *Service) Verify(ctx context.Context, request *Request) (record *Record) {
	ctx, span := tracing.StartSpan(ctx, "verifier.Verify", tracing.KindInternal)
	record = NewRecord(request)
	defer func() {
		status, reason, _ := record.State()
		span.WithTask(record.TaskID, record.ResourceKey).WithAttributes(map[string]string{"status": string(status), "reason": string(reason)})
		var err error
		if status == StatusFailed {
			err = errors.New(string(reason))
		}
		tracing.EndSpan(span, err)
		s.logger.Info("artifact verified", "task_id", record.TaskID, "resource_key", record.ResourceKey, "status", status, "reason", reason)
	}()

	if request.Absent {
		record.Absent = true
		if request.Nullable {
			record.verify()
			return record
		}
		record.fail(model.ReasonArtifactMissing, "artifact not found")
		return record
	}

	algorithms := make([]string, 0, len(request.Checksums))
	expected := make(map[string]string, len(request.Checksums))
	for name, value := range request.Checksums {
		algorithm, ok := ChecksumAlgorithm(name)
		if !ok {
			record.fail(model.ReasonAlgorithmUnsupported, fmt.Sprintf("unsupported checksum algorithm: %v", name))
			return record
		}
		algorithms = append(algorithms, algorithm)
		expected[algorithm] = strings.ToLower(strings.TrimSpace(value))
	}
	sort.Strings(algorithms)
	record.Algorithms = algorithms
	record.Expected = expected

	var signatureAlgorithm string
	if request.Signature != "" {
		var ok bool
		if signatureAlgorithm, ok = SignatureAlgorithm(request.SignatureAlgorithm); !ok {
			record.fail(model.ReasonAlgorithmUnsupported, fmt.Sprintf("unsupported signature algorithm: %v", request.SignatureAlgorithm))
			return record
		}
		record.SignatureAlgorithm = signatureAlgorithm
	}
	if len(algorithms) == 0 {
		if s.config.RequireChecksum {
			record.fail(model.ReasonChecksumMissing, "no checksum declared")
			return record
		}
		if request.Signature == "" {
			record.verify()
			return record
		}
	}

	hashes := make(map[string]hash.Hash, len(algorithms)+1)
	for _, algorithm := range algorithms {
		hashes[algorithm] = checksums[algorithm]()
	}
	if request.Signature != "" && hashes[SHA256] == nil {
		hashes[SHA256] = sha256.New()
	}
	if err := s.digest(ctx, request.ArtifactURL, hashes); err != nil {
		record.fail(model.ReasonArtifactUnreadable, err.Error())
		return record
	}

	record.Actual = make(map[string]string, len(algorithms))
	var mismatched []string
	for _, algorithm := range algorithms {
		actual := hex.EncodeToString(hashes[algorithm].Sum(nil))
		record.Actual[algorithm] = actual
		if actual != expected[algorithm] {
			mismatched = append(mismatched, algorithm)
		}
	}
	if len(mismatched) > 0 {
		record.fail(model.ReasonChecksumMismatch, fmt.Sprintf("checksum mismatch: %v", strings.Join(mismatched, ",")))
		return record
	}

	if request.Signature != "" {
		valid, message := s.verifySignature(ctx, signatureAlgorithm, hashes[SHA256].Sum(nil), request.Signature)
		record.SignatureValid = &valid
		if !valid {
			record.fail(model.ReasonSignatureInvalid, message)
			return record
		}
	}
	record.verify()
	return record
}

func (s *Service) verifySignature(ctx context.Context, algorithm string, digest []byte, encoded string) (bool, string) {
	if s.keys == nil {
		return false, ErrNoKey.Error()
	}
	key, err := s.keys.PublicKey(ctx)
	if err != nil {
		return false, err.Error()
	}
	if key == nil {
		return false, ErrNoKey.Error()
	}
	signature, err := decodeSignature(encoded)
	if err != nil {
		return false, fmt.Sprintf("invalid signature encoding: %v", err)
	}
	if !verifySignature(algorithm, key, digest, signature) {
		return false, fmt.Sprintf("%v signature does not match", algorithm)
	}
	return true, ""
}

func decodeSignature(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if ret, err := base64.StdEncoding.DecodeString(encoded); err == nil {
		return ret, nil
	}
	return base64.RawStdEncoding.DecodeString(encoded)
}

func (s *Service) digest(ctx context.Context, URL string, hashes map[string]hash.Hash) error {
	if URL == "" {
		return fmt.Errorf("artifact location is empty")
	}
	reader, err := s.fs.OpenURL(ctx, URL)
	if err != nil {
		return fmt.Errorf("failed to open %v: %w", URL, err)
	}
	defer reader.Close()
	writers := make([]io.Writer, 0, len(hashes))
	for _, h := range hashes {
		writers = append(writers, h)
	}
	if _, err = io.Copy(io.MultiWriter(writers...), reader); err != nil {
		return fmt.Errorf("failed to read %v: %w", URL, err)
	}
	return nil
}

// New creates a verifier service
func New(options ...Option) *Service {
	ret := &Service{logger: slog.Default()}
	for _, opt := range options {
		opt(ret)
	}
	if ret.fs == nil {
		ret.fs = afs.New()
	}
	if ret.queue == nil {
		ret.queue = memory.NewQueue[Request](memory.DefaultConfig())
	}
	if ret.records == nil {
		ret.records = store.NewMemoryStore[string, Record](func(r *Record) string { return r.TaskID })
	}
	return ret
}
