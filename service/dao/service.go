package dao

import (
	"context"
)

// Service is a key-value style persistence contract.  Save may assign the
// entity key; Load returns ErrNotFound when nothing is stored under id.
type Service[K comparable, T any] interface {
	Save(ctx context.Context, t *T) error

	Load(ctx context.Context, id K) (*T, error)

	Delete(ctx context.Context, id K) error

	List(ctx context.Context, parameters ...*Parameter) ([]*T, error)
}
