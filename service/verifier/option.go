package verifier

import (
	"log/slog"

	"github.com/viant/afs"
	"github.com/viant/artifex/service/dao"
	"github.com/viant/artifex/service/event"
	"github.com/viant/artifex/service/messaging"
)

// Option configures a Service
type Option func(s *Service)

func WithConfig(config Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithFS sets the storage service used to read artifacts
func WithFS(fs afs.Service) Option {
	return func(s *Service) {
		s.fs = fs
	}
}

// WithKeySource sets dispatcher public key material
func WithKeySource(keys KeySource) Option {
	return func(s *Service) {
		s.keys = keys
	}
}

// WithQueue sets the handoff queue
func WithQueue(queue messaging.Queue[Request]) Option {
	return func(s *Service) {
		s.queue = queue
	}
}

// WithRecordDAO sets the record store
func WithRecordDAO(records dao.Service[string, Record]) Option {
	return func(s *Service) {
		s.records = records
	}
}

// WithPublisher sets the outcome publisher
func WithPublisher(publisher *event.Publisher[Outcome]) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

// WithObservers registers callbacks invoked with every completed record
func WithObservers(observers ...func(*Record)) Option {
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
