package collection

import (
	"context"

	"github.com/nerrad567/lpwan-core/internal/store"
)

// Batch summarises one RemoveMany iteration.
type Batch struct {
	// Removed holds the ids deleted in this iteration.
	Removed []string

	// Remaining is the previous total minus the page size. It is an
	// estimate, not a fresh count, and can be off by less than one page.
	Remaining int
}

// Removal deletes a filtered collection page by page.
type Removal[T store.Entity] struct {
	remover  Remover[T]
	where    store.Where
	pageSize int

	remaining int
	started   bool
	batch     Batch
	err       error
}

// RemoveMany returns a lazy removal over the records matching where.
//
// Every iteration lists up to pageSize matching records from the start of
// the collection, deletes them one by one and reports a Batch. Iteration
// stops once Remaining drops to zero or below. The first delete failure
// aborts the removal and is returned by Err unchanged.
//
// Remove must take a record out of the where filter. A remove that leaves
// the record matching, such as a soft delete, yields the same page again
// and the removal does not end while the total exceeds pageSize.
func RemoveMany[T store.Entity](remover Remover[T], where store.Where, pageSize int) *Removal[T] {
	return &Removal[T]{
		remover:  remover,
		where:    where,
		pageSize: normalisePageSize(pageSize),
	}
}

// Next runs one list-then-delete iteration.
func (r *Removal[T]) Next(ctx context.Context) bool {
	if r.err != nil {
		return false
	}
	if r.started && r.remaining <= 0 {
		return false
	}

	records, total, err := r.remover.List(ctx, store.Query{
		Where:        r.where,
		Limit:        r.pageSize,
		IncludeTotal: true,
	})
	if err != nil {
		r.err = err
		return false
	}
	r.started = true

	removed := make([]string, 0, len(records))
	for _, rec := range records {
		if err := r.remover.Remove(ctx, rec.EntityID()); err != nil {
			r.batch = Batch{Removed: removed, Remaining: total - len(removed)}
			r.err = err
			return false
		}
		removed = append(removed, rec.EntityID())
	}

	r.remaining = total - r.pageSize
	r.batch = Batch{Removed: removed, Remaining: r.remaining}
	return true
}

// Batch returns the summary of the last iteration. After a failed
// iteration it holds the ids removed before the failure.
func (r *Removal[T]) Batch() Batch {
	return r.batch
}

// Err returns the error that aborted the removal, if any.
func (r *Removal[T]) Err() error {
	return r.err
}

// Drain runs r to completion and returns every removed id.
func Drain[T store.Entity](ctx context.Context, r *Removal[T]) ([]string, error) {
	var removed []string
	for r.Next(ctx) {
		removed = append(removed, r.Batch().Removed...)
	}
	if err := r.Err(); err != nil {
		removed = append(removed, r.Batch().Removed...)
		return removed, err
	}
	return removed, nil
}
