package messaging

import (
	"context"
	"errors"
)

// Vendor represents the name of a messaging vendor
type Vendor string

const (
	// VendorMemory keeps messages in process memory
	VendorMemory Vendor = "memory"
	// VendorFS persists messages as files on any afs supported storage
	VendorFS Vendor = "fs"
)

// ErrAlreadyProcessed is returned when a message is acknowledged twice
var ErrAlreadyProcessed = errors.New("message already processed")

// Queue represents an abstract message queue for any payload type
type Queue[T any] interface {
	// Publish adds a new message with payload to the queue
	Publish(ctx context.Context, t *T) error

	// Consume blocks until a single message is available or ctx is done
	Consume(ctx context.Context) (Message[T], error)
}

// Message represents a message retrieved from a queue
type Message[T any] interface {
	// T returns the payload of this message
	T() *T

	// Ack acknowledges successful processing of this message
	Ack() error

	// Nack indicates failure in processing this message
	Nack(err error) error
}

// Sizer is implemented by queues able to report their depth
type Sizer interface {
	Size() int
}
