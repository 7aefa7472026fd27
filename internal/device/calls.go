package device

import (
	"context"
	"fmt"

	"github.com/nerrad567/lpwan-core/internal/collection"
	"github.com/nerrad567/lpwan-core/internal/model"
	"github.com/nerrad567/lpwan-core/internal/network"
	"github.com/nerrad567/lpwan-core/internal/store"
)

// Cross-model helpers. Calls run on behalf of the current session.

func loadFrom[T any](ctx context.Context, env *model.Env, role, id string) (T, error) {
	var zero T
	m, err := env.Model(role)
	if err != nil {
		return zero, err
	}
	rec, err := model.Call[T](ctx, m, "load", store.ByID(id), model.WithSession(env.Session))
	if err != nil {
		return zero, fmt.Errorf("loading %s %s: %w", role, id, err)
	}
	return rec, nil
}

func listAllFrom[T any](ctx context.Context, env *model.Env, role string, where store.Where) ([]T, error) {
	m, err := env.Model(role)
	if err != nil {
		return nil, err
	}
	pages, err := model.Call[*collection.Pages[T]](ctx, m, "listAll", model.PageArgs{Where: where}, model.WithSession(env.Session))
	if err != nil {
		return nil, err
	}
	records, err := collection.Collect(ctx, pages)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", role, err)
	}
	return records, nil
}

func removeAllFrom[T store.Entity](ctx context.Context, env *model.Env, role string, where store.Where) ([]string, error) {
	m, err := env.Model(role)
	if err != nil {
		return nil, err
	}
	removal, err := model.Call[*collection.Removal[T]](ctx, m, "removeMany", model.PageArgs{Where: where}, model.WithSession(env.Session))
	if err != nil {
		return nil, err
	}
	ids, err := collection.Drain(ctx, removal)
	if err != nil {
		return ids, fmt.Errorf("removing %s: %w", role, err)
	}
	return ids, nil
}

// touchesIdentity reports whether an update changes what networks show.
func touchesIdentity(data store.Fields) bool {
	_, name := data["name"]
	_, description := data["description"]
	return name || description
}

// markStale flags entity as UPDATED on every network of each type except
// origin. Per-network failures are logged and do not fail the call.
func markStale(ctx context.Context, env *model.Env, engine *network.Engine, entity network.EntityRef, networkTypeIDs []string, origin string) error {
	for _, typeID := range networkTypeIDs {
		outcomes, err := engine.MarkStale(ctx, typeID, entity, origin)
		if err != nil {
			return fmt.Errorf("marking %s %s stale: %w", entity.Kind, entity.ID, err)
		}
		for _, failure := range network.Failures(outcomes) {
			env.Log().Warn("deployment status not updated",
				"entity_kind", entity.Kind,
				"entity_id", entity.ID,
				"error", failure,
			)
		}
	}
	return nil
}
