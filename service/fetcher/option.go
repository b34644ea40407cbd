package fetcher

import (
	"log/slog"

	"github.com/viant/afs"
)

// Option configures a Service
type Option func(s *Service)

func WithConfig(config Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithFS sets the storage service used for source and destination
func WithFS(fs afs.Service) Option {
	return func(s *Service) {
		s.fs = fs
	}
}

// WithObservers registers fetch observers
func WithObservers(observers ...Observer) Option {
	return func(s *Service) {
		s.observers = append(s.observers, observers...)
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
