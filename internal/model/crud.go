package model

import (
	"context"
	"fmt"

	"github.com/nerrad567/lpwan-core/internal/collection"
	"github.com/nerrad567/lpwan-core/internal/store"
)

// ListResult is the result of a list operation.
type ListResult[T any] struct {
	Records []T
	Total   int
}

// UpdateArgs are the arguments of update and updateByQuery.
type UpdateArgs struct {
	Where store.Where
	Data  store.Fields

	// Origin is the id of the network the change came from, if any.
	Origin string
}

// PageArgs are the arguments of listAll and removeMany.
type PageArgs struct {
	Where    store.Where
	PageSize int
}

// queryKeyAliases are filter keys accepted by list in place of real columns.
var queryKeyAliases = map[string]string{"search": "name_contains"}

// CRUD returns the generic operations for an entity stored as T:
// create, list, listAll, load, loadByQuery, update, updateByQuery, remove
// and removeMany. Each resolves its store from Env.Store. listAll,
// loadByQuery, updateByQuery and removeMany go through the self view.
func CRUD[T store.Entity](pageSize int) Ops {
	return Ops{
		"create": Op(func(ctx context.Context, env *Env, rec T) (T, error) {
			s, err := StoreOf[T](env)
			if err != nil {
				var zero T
				return zero, err
			}
			return s.Create(ctx, rec)
		}),
		"list": Op(func(ctx context.Context, env *Env, q store.Query) (ListResult[T], error) {
			s, err := StoreOf[T](env)
			if err != nil {
				return ListResult[T]{}, err
			}
			q.Where = renameKeys(q.Where)
			records, total, err := s.List(ctx, q)
			if err != nil {
				return ListResult[T]{}, err
			}
			return ListResult[T]{Records: records, Total: total}, nil
		}),
		"listAll": Op(func(_ context.Context, env *Env, args PageArgs) (*collection.Pages[T], error) {
			return collection.ListAll[T](SelfRemover[T](env), args.Where, pageSizeOr(args.PageSize, pageSize)), nil
		}),
		"load": Op(func(ctx context.Context, env *Env, where store.Where) (T, error) {
			s, err := StoreOf[T](env)
			if err != nil {
				var zero T
				return zero, err
			}
			return s.Load(ctx, where)
		}),
		"loadByQuery": Op(func(ctx context.Context, env *Env, q store.Query) (T, error) {
			return firstMatch[T](ctx, env, q.Where)
		}),
		"update": Op(func(ctx context.Context, env *Env, args UpdateArgs) (T, error) {
			s, err := StoreOf[T](env)
			if err != nil {
				var zero T
				return zero, err
			}
			return s.Update(ctx, args.Where, args.Data)
		}),
		"updateByQuery": Op(func(ctx context.Context, env *Env, args UpdateArgs) (T, error) {
			var zero T
			rec, err := firstMatch[T](ctx, env, args.Where)
			if err != nil {
				return zero, err
			}
			s, err := StoreOf[T](env)
			if err != nil {
				return zero, err
			}
			return s.Update(ctx, store.ByID(rec.EntityID()), args.Data)
		}),
		"remove": Op(func(ctx context.Context, env *Env, id string) (struct{}, error) {
			s, err := StoreOf[T](env)
			if err != nil {
				return struct{}{}, err
			}
			return struct{}{}, s.Remove(ctx, id)
		}),
		"removeMany": Op(func(_ context.Context, env *Env, args PageArgs) (*collection.Removal[T], error) {
			return collection.RemoveMany[T](SelfRemover[T](env), args.Where, pageSizeOr(args.PageSize, pageSize)), nil
		}),
	}
}

// SelfRemover exposes the self view's list and remove operations as a
// collection.Remover.
func SelfRemover[T any](env *Env) collection.Funcs[T] {
	self := env.Self()
	return collection.Funcs[T]{
		ListFn: func(ctx context.Context, q store.Query) ([]T, int, error) {
			res, err := Call[ListResult[T]](ctx, self, "list", q)
			if err != nil {
				return nil, 0, err
			}
			return res.Records, res.Total, nil
		},
		RemoveFn: func(ctx context.Context, id string) error {
			_, err := self.Call(ctx, "remove", id)
			return err
		},
	}
}

// firstMatch lists through the self view and returns the first record,
// or store.ErrNotFound when the filter matches nothing.
func firstMatch[T any](ctx context.Context, env *Env, where store.Where) (T, error) {
	var zero T
	res, err := Call[ListResult[T]](ctx, env.Self(), "list", store.Query{Where: where, Limit: 1})
	if err != nil {
		return zero, err
	}
	if len(res.Records) == 0 {
		return zero, fmt.Errorf("no record matches %v: %w", where, store.ErrNotFound)
	}
	return res.Records[0], nil
}

func renameKeys(where store.Where) store.Where {
	if len(where) == 0 {
		return where
	}
	out := make(store.Where, len(where))
	for k, v := range where {
		if alias, ok := queryKeyAliases[k]; ok {
			k = alias
		}
		out[k] = v
	}
	return out
}

func pageSizeOr(n, fallback int) int {
	if n > 0 {
		return n
	}
	return fallback
}
