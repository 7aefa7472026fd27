package collection

import (
	"context"

	"github.com/nerrad567/lpwan-core/internal/store"
)

// DefaultPageSize is used when a caller passes a page size below 1.
const DefaultPageSize = 100

// Lister is the read half of store.Store.
type Lister[T any] interface {
	List(ctx context.Context, q store.Query) ([]T, int, error)
}

// Remover can list and delete records of one type.
type Remover[T any] interface {
	Lister[T]
	Remove(ctx context.Context, id string) error
}

// ListFunc adapts a function to Lister.
type ListFunc[T any] func(ctx context.Context, q store.Query) ([]T, int, error)

// List calls f.
func (f ListFunc[T]) List(ctx context.Context, q store.Query) ([]T, int, error) {
	return f(ctx, q)
}

// Funcs adapts a list and a remove function to Remover.
type Funcs[T any] struct {
	ListFn   ListFunc[T]
	RemoveFn func(ctx context.Context, id string) error
}

// List calls ListFn.
func (f Funcs[T]) List(ctx context.Context, q store.Query) ([]T, int, error) {
	return f.ListFn(ctx, q)
}

// Remove calls RemoveFn.
func (f Funcs[T]) Remove(ctx context.Context, id string) error {
	return f.RemoveFn(ctx, id)
}

func normalisePageSize(n int) int {
	if n < 1 {
		return DefaultPageSize
	}
	return n
}
