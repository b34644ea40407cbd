package processor

import (
	"log/slog"

	"github.com/viant/artifex/service/dao"
	"github.com/viant/artifex/service/event"
	"github.com/viant/artifex/service/verifier"
)

// Option configures a Service
type Option func(*Service)

// WithConfig sets the configuration for the service
func WithConfig(config Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithEvents sets the event service carrying verification outcomes
func WithEvents(events *event.Service) Option {
	return func(s *Service) {
		s.events = events
	}
}

// WithRecords sets the verification record store consulted on outcomes
func WithRecords(records dao.Service[string, verifier.Record]) Option {
	return func(s *Service) {
		s.records = records
	}
}

// WithLogger sets the logger, slog.Default() by default
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}
