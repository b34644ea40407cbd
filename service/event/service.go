package event

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/artifex/service/messaging"
	"github.com/viant/artifex/service/messaging/fs"
	"github.com/viant/artifex/service/messaging/memory"
)

// Service owns one queue, publisher and listener per event payload type
type Service struct {
	typedPublishers   map[reflect.Type]any
	typedListeners    map[reflect.Type]any
	mux               sync.RWMutex
	queueVendor       messaging.Vendor
	fsNewQueueConfig  func(name string) fs.Config
	memNewQueueConfig func(name string) memory.Config
}

func New(queueVendor messaging.Vendor, opts ...Option) (*Service, error) {
	ret := &Service{
		queueVendor:       queueVendor,
		typedPublishers:   make(map[reflect.Type]any),
		typedListeners:    make(map[reflect.Type]any),
		memNewQueueConfig: func(string) memory.Config { return memory.DefaultConfig() },
	}
	for _, opt := range opts {
		opt(ret)
	}
	switch queueVendor {
	case messaging.VendorFS:
		if ret.fsNewQueueConfig == nil {
			return nil, fmt.Errorf("fs queue vendor requires fsNewQueueConfig")
		}
	case messaging.VendorMemory:
	default:
		return nil, fmt.Errorf("unsupported queue vendor: %s", queueVendor)
	}
	return ret, nil
}

// Vendor returns the queue vendor
func (s *Service) Vendor() messaging.Vendor {
	return s.queueVendor
}

// QueueOf creates a named queue with the service vendor
func QueueOf[T any](s *Service, name string) (messaging.Queue[T], error) {
	switch s.queueVendor {
	case messaging.VendorFS:
		return fs.NewQueue[T](afs.New(), s.fsNewQueueConfig(name))
	case messaging.VendorMemory:
		return memory.NewQueue[T](s.memNewQueueConfig(name)), nil
	}
	return nil, fmt.Errorf("unsupported queue vendor: %s", s.queueVendor)
}

func keyOf[T any]() reflect.Type {
	var t T
	rType := reflect.TypeOf(t)
	if rType.Kind() == reflect.Ptr {
		rType = rType.Elem()
	}
	return rType
}

// SetListenerOf replaces the listener for T events
func SetListenerOf[T any](ctx context.Context, s *Service, handler func(context.Context, *Event[T])) error {
	publisher, err := PublisherOf[T](s)
	if err != nil {
		return err
	}
	key := keyOf[T]()
	listener := NewListener[T](publisher, handler)
	s.mux.Lock()
	previous, ok := s.typedListeners[key]
	s.typedListeners[key] = listener
	s.mux.Unlock()
	if ok {
		previous.(*Listener[T]).Stop()
	}
	listener.Start(ctx)
	return nil
}

// StopListenerOf stops the listener for T events, if any
func StopListenerOf[T any](s *Service) {
	key := keyOf[T]()
	s.mux.Lock()
	listener, ok := s.typedListeners[key]
	delete(s.typedListeners, key)
	s.mux.Unlock()
	if ok {
		listener.(*Listener[T]).Stop()
	}
}

// PublisherOf returns a publisher for the provided type
func PublisherOf[T any](s *Service) (*Publisher[T], error) {
	key := keyOf[T]()
	s.mux.Lock()
	defer s.mux.Unlock()
	if ret, ok := s.typedPublishers[key]; ok {
		return ret.(*Publisher[T]), nil
	}
	queue, err := QueueOf[Event[T]](s, key.String())
	if err != nil {
		return nil, err
	}
	publisher := NewPublisher[T](queue)
	s.typedPublishers[key] = publisher
	return publisher, nil
}
