// Package fetcher drains the fetch queue: each dequeued task is resolved,
// streamed into its target directory and handed off for verification.
package fetcher

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"github.com/viant/artifex/internal/clock"
	"github.com/viant/artifex/locator"
	"github.com/viant/artifex/model"
	"github.com/viant/artifex/runtime/task"
	"github.com/viant/artifex/service/messaging"
	"github.com/viant/artifex/service/verifier"
	"github.com/viant/artifex/tracing"
	"golang.org/x/time/rate"
)

// Submitter accepts verification requests without waiting for the outcome
type Submitter interface {
	Submit(ctx context.Context, request *verifier.Request) error
}

// Observer is notified after every fetch attempt
type Observer func(t *model.FetchTask, elapsed time.Duration, err error)

// Service runs fetch workers
type Service struct {
	config    Config
	fs        afs.Service
	resolver  *locator.Resolver
	queue     messaging.Queue[model.FetchTask]
	machine   *task.Machine
	submitter Submitter
	limiter   *rate.Limiter
	observers []Observer
	logger    *slog.Logger
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// Start launches Workers goroutines consuming the queue until ctx is done or Shutdown is called
func (s *Service) Start(ctx context.Context) error {
	if s.cancel != nil {
		return fmt.Errorf("fetcher already started")
	}
	ctx, s.cancel = context.WithCancel(ctx)
	for i := 0; i < s.config.Workers; i++ {
		s.wg.Add(1)
		go s.work(ctx, i)
	}
	return nil
}

// Shutdown stops workers and waits for fetches in flight
func (s *Service) Shutdown() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
}

func (s *Service) work(ctx context.Context, worker int) {
	defer s.wg.Done()
	for {
		msg, err := s.queue.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("failed to consume fetch task", "worker", worker, "error", err)
			continue
		}
		fetchTask := msg.T()
		// a dequeued fetch runs to completion even if the worker is asked to stop
		if err = s.Fetch(context.WithoutCancel(ctx), fetchTask); err != nil {
			_ = msg.Nack(err)
			continue
		}
		_ = msg.Ack()
	}
}

// Fetch processes one task: processing, transfer, then verifying and handoff.
// Transfer failures move the task to error and are returned.
func (s *Service) Fetch(ctx context.Context, t *model.FetchTask) (err error) {
	ctx, span := tracing.StartSpan(ctx, "fetcher.Fetch", tracing.KindClient)
	span.WithTask(t.TaskID, t.ResourceKey).WithAttributes(map[string]string{"location": t.Location})
	started := clock.Now()
	defer func() {
		tracing.EndSpan(span, err)
		for _, observer := range s.observers {
			observer(t, clock.Since(started), err)
		}
	}()

	if _, err = s.machine.Process(ctx, t.TaskID); err != nil {
		return fmt.Errorf("failed to start fetch of task %v: %w", t.TaskID, err)
	}
	source, err := s.resolver.ResolveString(t.Location)
	if err != nil {
		return s.fail(ctx, t, model.ReasonMalformedLocation, err)
	}

	timeout := s.config.Timeout
	if t.Timeout > 0 {
		timeout = t.Timeout
	}
	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if s.limiter != nil {
		if err = s.limiter.Wait(fetchCtx); err != nil {
			return s.fail(ctx, t, model.ReasonFetchTimeout, fmt.Errorf("%w: rate limit wait: %v", ErrFetchTimeout, err))
		}
	}

	exists, err := s.fs.Exists(fetchCtx, source)
	if err != nil {
		err = s.classify(fetchCtx, err)
		return s.fail(ctx, t, reasonOf(err), err)
	}
	if !exists {
		if !t.Nullable {
			return s.fail(ctx, t, model.ReasonFetchIOFailure, fmt.Errorf("%w: artifact not found: %v", ErrFetchIO, source))
		}
		s.logger.Info("nullable artifact absent", "task_id", t.TaskID, "resource_key", t.ResourceKey, "source", source)
		return s.handoff(ctx, t, "", true)
	}

	destination, err := s.transfer(fetchCtx, t, source)
	if err != nil {
		err = s.classify(fetchCtx, err)
		return s.fail(ctx, t, reasonOf(err), err)
	}
	s.logger.Info("artifact fetched", "task_id", t.TaskID, "resource_key", t.ResourceKey, "source", source, "destination", destination, "elapsed", clock.Since(started))
	return s.handoff(ctx, t, destination, false)
}

func (s *Service) transfer(ctx context.Context, t *model.FetchTask, source string) (string, error) {
	directory := t.TargetDirectory
	if directory == "" {
		directory = s.config.TargetDirectory
	}
	_, name := url.Split(source, file.Scheme)
	destination := url.Join(directory, name)
	reader, err := s.fs.OpenURL(ctx, source)
	if err != nil {
		return "", fmt.Errorf("failed to open %v: %w", source, err)
	}
	defer reader.Close()
	chunkSize := t.ChunkSizeHint
	if chunkSize <= 0 {
		chunkSize = s.config.ChunkSize
	}
	buffered := bufio.NewReaderSize(&contextReader{ctx: ctx, reader: reader}, chunkSize)
	if err = s.fs.Upload(ctx, destination, file.DefaultFileOsMode, buffered); err != nil {
		return "", fmt.Errorf("failed to write %v: %w", destination, err)
	}
	if err = ctx.Err(); err != nil {
		return "", err
	}
	return destination, nil
}

func (s *Service) classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrFetchTimeout, err)
	}
	if errors.Is(err, ErrFetchIO) || errors.Is(err, ErrFetchTimeout) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrFetchIO, err)
}

func (s *Service) handoff(ctx context.Context, t *model.FetchTask, artifactURL string, absent bool) error {
	if _, err := s.machine.Verify(ctx, t.TaskID); err != nil {
		return fmt.Errorf("failed to hand off task %v: %w", t.TaskID, err)
	}
	if err := s.submitter.Submit(ctx, verifier.NewRequest(t, artifactURL, absent)); err != nil {
		return s.fail(ctx, t, model.ReasonArtifactUnreadable, fmt.Errorf("failed to submit verification: %w", err))
	}
	return nil
}

func (s *Service) fail(ctx context.Context, t *model.FetchTask, reason model.Reason, cause error) error {
	s.logger.Warn("fetch failed", "task_id", t.TaskID, "resource_key", t.ResourceKey, "reason", reason, "error", cause)
	if _, err := s.machine.Fail(ctx, t.TaskID, reason, cause); err != nil {
		s.logger.Error("failed to record fetch failure", "task_id", t.TaskID, "error", err)
	}
	return cause
}

// New creates a fetcher
func New(queue messaging.Queue[model.FetchTask], machine *task.Machine, submitter Submitter, resolver *locator.Resolver, options ...Option) *Service {
	ret := &Service{
		queue:     queue,
		machine:   machine,
		submitter: submitter,
		resolver:  resolver,
		logger:    slog.Default(),
	}
	for _, opt := range options {
		opt(ret)
	}
	ret.config.init()
	if ret.fs == nil {
		ret.fs = afs.New()
	}
	if ret.config.RateLimit > 0 {
		ret.limiter = rate.NewLimiter(rate.Limit(ret.config.RateLimit), ret.config.Burst)
	}
	return ret
}
