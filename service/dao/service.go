package dao

import (
	"context"
)

// Service is a minimal generic persistence contract shared by the approval
// and run bookkeeping stores.
type Service[K comparable, T any] interface {
	Save(ctx context.Context, t *T) error

	Load(ctx context.Context, id K) (*T, error)

	Delete(ctx context.Context, id K) error

	List(ctx context.Context) ([]*T, error)
}
