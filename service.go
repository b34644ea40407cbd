package artifex

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/viant/afs"
	"github.com/viant/afs/url"
	"github.com/viant/artifex/locator"
	"github.com/viant/artifex/metrics"
	"github.com/viant/artifex/model"
	"github.com/viant/artifex/runtime/task"
	"github.com/viant/artifex/service/dao"
	"github.com/viant/artifex/service/dao/batch"
	"github.com/viant/artifex/service/event"
	"github.com/viant/artifex/service/fetcher"
	"github.com/viant/artifex/service/messaging"
	"github.com/viant/artifex/service/messaging/dedup"
	"github.com/viant/artifex/service/messaging/fs"
	"github.com/viant/artifex/service/messaging/memory"
	"github.com/viant/artifex/service/processor"
	"github.com/viant/artifex/service/reporter"
	"github.com/viant/artifex/service/verifier"
	"github.com/viant/artifex/tracing"
)

const serviceName = "artifex"

// version is reported as service.version on spans
var version = "dev"

// Service wires the artifact processor: assignment intake, fetch queue,
// fetch workers, verification and status reporting.
type Service struct {
	runtime   *Runtime
	config    *Config
	fs        afs.Service
	logger    *slog.Logger
	keys      verifier.KeySource
	batches   dao.Service[int64, batch.Batch]
	redis     *redis.Client
	events    *event.Service
	outbox    messaging.Queue[reporter.Report]
	collector *metrics.Collector
	closers   []io.Closer
}

// Runtime returns the programmatic entry points
func (s *Service) Runtime() *Runtime {
	return s.runtime
}

// Config returns the effective configuration
func (s *Service) Config() *Config {
	return s.config
}

// Metrics returns the metrics collector, nil when metrics are disabled
func (s *Service) Metrics() *metrics.Collector {
	return s.collector
}

func (s *Service) init(ctx context.Context, options []Option) error {
	for _, option := range options {
		option(s)
	}
	if err := s.config.Validate(); err != nil {
		return err
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.fs == nil {
		s.fs = afs.New()
	}
	if s.config.Tracing.Enabled {
		if err := tracing.Init(tracing.Config{Service: serviceName, Version: version, Output: s.config.Tracing.Output}); err != nil {
			return fmt.Errorf("failed to initialise tracing: %w", err)
		}
	}
	if err := s.ensureBaseSetup(ctx); err != nil {
		return err
	}

	r := s.runtime
	r.reporter = reporter.New(s.config.Processor.ID, reporter.WithOutbox(s.outbox), reporter.WithLogger(s.logger))
	r.machine = task.NewMachine(task.WithReporter(r.reporter), task.WithLogger(s.logger))

	var queueOptions []dedup.Option
	var verifierObservers []func(*verifier.Record)
	var fetchObservers []fetcher.Observer
	if s.collector != nil {
		queueOptions = append(queueOptions, dedup.WithHooks(s.collector.QueueHook()))
		verifierObservers = append(verifierObservers, s.collector.ObserveVerification)
		fetchObservers = append(fetchObservers, s.collector.ObserveFetch)
		r.machine.OnTransition(s.collector.OnTransition)
	}
	r.queue = dedup.NewQueue[model.FetchTask]((*model.FetchTask).Key, queueOptions...)

	publisher, err := event.PublisherOf[verifier.Outcome](s.events)
	if err != nil {
		return fmt.Errorf("failed to create outcome publisher: %w", err)
	}
	handoff, err := event.QueueOf[verifier.Request](s.events, "verification")
	if err != nil {
		return fmt.Errorf("failed to create verification queue: %w", err)
	}
	r.verifier = verifier.New(
		verifier.WithConfig(verifier.Config{RequireChecksum: s.config.Verification.RequireChecksum}),
		verifier.WithFS(s.fs),
		verifier.WithKeySource(s.keys),
		verifier.WithQueue(handoff),
		verifier.WithPublisher(publisher),
		verifier.WithObservers(verifierObservers...),
		verifier.WithLogger(s.logger))

	if r.processor, err = processor.New(r.machine, r.queue, s.batches,
		processor.WithConfig(processor.Config{ProcessorID: s.config.Processor.ID}),
		processor.WithRecords(r.verifier.Records()),
		processor.WithEvents(s.events),
		processor.WithLogger(s.logger)); err != nil {
		return err
	}
	r.machine.OnTransition(r.processor.OnTransition)

	fetch := s.config.Fetch
	r.fetcher = fetcher.New(r.queue, r.machine, r.verifier, locator.NewResolver(fetch.Environments),
		fetcher.WithConfig(fetcher.Config{
			Workers:         s.config.Processor.Workers,
			Timeout:         fetch.Timeout,
			RateLimit:       fetch.RateLimit,
			Burst:           fetch.Burst,
			ChunkSize:       fetch.ChunkSize,
			TargetDirectory: fetch.TargetDirectory,
		}),
		fetcher.WithFS(s.fs),
		fetcher.WithObservers(fetchObservers...),
		fetcher.WithLogger(s.logger))
	r.batches = s.batches
	r.closers = s.closers
	r.logger = s.logger
	return nil
}

func (s *Service) ensureBaseSetup(ctx context.Context) error {
	var err error
	if s.collector == nil && s.config.Metrics.Enabled {
		if s.collector, err = metrics.NewCollector(s.config.Metrics.Namespace); err != nil {
			return fmt.Errorf("failed to create metrics: %w", err)
		}
	}
	vendor := messaging.Vendor(s.config.Queue.Vendor)
	if s.events == nil {
		if s.events, err = event.New(vendor, event.WithNewFsQueueConfig(func(name string) fs.Config {
			return fs.Config{BaseURL: url.Join(s.config.Queue.BaseURL, "events", name)}
		})); err != nil {
			return err
		}
	}
	if s.outbox == nil {
		switch vendor {
		case messaging.VendorFS:
			if s.outbox, err = fs.NewQueue[reporter.Report](s.fs, fs.Config{BaseURL: url.Join(s.config.Queue.BaseURL, "outbox")}); err != nil {
				return fmt.Errorf("failed to create outbox: %w", err)
			}
		default:
			s.outbox = memory.NewQueue[reporter.Report](memory.DefaultConfig())
		}
	}
	if s.keys == nil && s.config.Verification.PublicKeyURL != "" {
		s.keys = verifier.NewSecretKeys(s.config.Verification.PublicKeyURL, s.config.Verification.PublicKeySecret)
	}
	if s.redis == nil && s.config.Store.RedisAddress != "" {
		s.redis = redis.NewClient(&redis.Options{Addr: s.config.Store.RedisAddress})
		s.closers = append(s.closers, s.redis)
	}
	if s.batches == nil {
		var options []batch.Option
		if s.redis != nil {
			options = append(options, batch.WithCache(s.redis, s.config.Store.CacheTTL))
		}
		batches, err := batch.Open(ctx, s.config.Store.DSN, options...)
		if err != nil {
			return err
		}
		s.batches = batches
		s.closers = append(s.closers, batches)
	}
	return nil
}

// New creates a service; without options it runs fully in memory
func New(ctx context.Context, options ...Option) (*Service, error) {
	ret := &Service{runtime: &Runtime{}, config: DefaultConfig()}
	if err := ret.init(ctx, options); err != nil {
		for _, closer := range ret.closers {
			_ = closer.Close()
		}
		return nil, err
	}
	return ret, nil
}
