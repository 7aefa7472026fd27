package collection

import (
	"context"

	"github.com/nerrad567/lpwan-core/internal/store"
)

// Page is one fetch of a ListAll sequence.
type Page[T any] struct {
	Records []T

	// Total is the matching count reported by this fetch.
	Total int

	// Offset is the offset this page was requested at.
	Offset int
}

// Pages iterates over a filtered collection one page at a time.
//
// Each fetch requests pageSize records at the current offset together with
// the total count. The offset then advances by pageSize whatever the page
// length, and iteration ends once the offset reaches the most recently
// reported total. The total is re-read on every fetch, so the number of
// pages can change if the collection is mutated while iterating.
type Pages[T any] struct {
	lister   Lister[T]
	where    store.Where
	pageSize int

	offset  int
	total   int
	started bool
	page    Page[T]
	err     error
}

// ListAll returns a lazy page sequence over the records matching where.
func ListAll[T any](lister Lister[T], where store.Where, pageSize int) *Pages[T] {
	return &Pages[T]{
		lister:   lister,
		where:    where,
		pageSize: normalisePageSize(pageSize),
	}
}

// Next fetches the next page. It returns false when the sequence is
// exhausted or a fetch failed; check Err to tell the two apart.
func (p *Pages[T]) Next(ctx context.Context) bool {
	if p.err != nil {
		return false
	}
	if p.started && p.offset >= p.total {
		return false
	}

	records, total, err := p.lister.List(ctx, store.Query{
		Where:        p.where,
		Offset:       p.offset,
		Limit:        p.pageSize,
		IncludeTotal: true,
	})
	if err != nil {
		p.err = err
		return false
	}

	p.page = Page[T]{Records: records, Total: total, Offset: p.offset}
	p.started = true
	p.offset += p.pageSize
	p.total = total
	return true
}

// Page returns the page fetched by the last successful Next.
func (p *Pages[T]) Page() Page[T] {
	return p.page
}

// Err returns the fetch error that ended iteration, if any.
func (p *Pages[T]) Err() error {
	return p.err
}

// Collect drains the sequence into a single slice.
func Collect[T any](ctx context.Context, p *Pages[T]) ([]T, error) {
	var out []T
	for p.Next(ctx) {
		out = append(out, p.Page().Records...)
	}
	if err := p.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
