package storage

import (
	"context"
	"errors"
)

// ErrNotFound indicates a key does not exist.
var ErrNotFound = errors.New("record not found")

// Store is a durable mapping from string keys to opaque values.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	// List returns the keys starting with prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
	Close() error
}
