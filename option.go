package artifex

import (
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/viant/afs"
	"github.com/viant/artifex/metrics"
	"github.com/viant/artifex/service/dao"
	"github.com/viant/artifex/service/dao/batch"
	"github.com/viant/artifex/service/event"
	"github.com/viant/artifex/service/messaging"
	"github.com/viant/artifex/service/reporter"
	"github.com/viant/artifex/service/verifier"
)

// Option configures Service
type Option func(s *Service)

// WithConfig sets the configuration
func WithConfig(config *Config) Option {
	return func(s *Service) {
		if config != nil {
			s.config = config
		}
	}
}

// WithFS sets the storage service used for fetching, verification and fs queues
func WithFS(fs afs.Service) Option {
	return func(s *Service) {
		s.fs = fs
	}
}

// WithLogger sets the structured logger shared by all components
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithKeySource sets dispatcher signature key material
func WithKeySource(keys verifier.KeySource) Option {
	return func(s *Service) {
		s.keys = keys
	}
}

// WithBatchDAO sets the batch store
func WithBatchDAO(batches dao.Service[int64, batch.Batch]) Option {
	return func(s *Service) {
		s.batches = batches
	}
}

// WithRedis sets the batch cache client
func WithRedis(client *redis.Client) Option {
	return func(s *Service) {
		s.redis = client
	}
}

// WithEventService sets the event service carrying verification outcomes
func WithEventService(service *event.Service) Option {
	return func(s *Service) {
		s.events = service
	}
}

// WithOutbox sets the status report outbox
func WithOutbox(outbox messaging.Queue[reporter.Report]) Option {
	return func(s *Service) {
		s.outbox = outbox
	}
}

// WithMetrics sets the metrics collector
func WithMetrics(collector *metrics.Collector) Option {
	return func(s *Service) {
		s.collector = collector
	}
}
