package device

import (
	"context"
	"fmt"

	"github.com/nerrad567/lpwan-core/internal/model"
	"github.com/nerrad567/lpwan-core/internal/network"
	"github.com/nerrad567/lpwan-core/internal/store"
)

func applicationOps(deps Deps) model.Ops {
	a := &applicationModel{deps: deps}
	return model.CRUD[Application](deps.PageSize).With(model.Ops{
		"update": model.Op(a.update),
		"remove": model.Op(a.remove),
		"start":  model.Op(a.start),
		"stop":   model.Op(a.stop),
	})
}

type applicationModel struct {
	deps Deps
}

func (a *applicationModel) update(ctx context.Context, env *model.Env, args model.UpdateArgs) (Application, error) {
	if len(args.Where) == 0 {
		return Application{}, ErrMissingWhere
	}
	s, err := model.StoreOf[Application](env)
	if err != nil {
		return Application{}, err
	}
	rec, err := s.Update(ctx, args.Where, args.Data)
	if err != nil {
		return Application{}, err
	}

	if touchesIdentity(args.Data) {
		links, err := listAllFrom[ApplicationLink](ctx, env, RoleApplicationLink, store.Where{"application_id": rec.ID})
		if err != nil {
			return Application{}, err
		}
		typeIDs := make([]string, len(links))
		for i, l := range links {
			typeIDs[i] = l.NetworkTypeID
		}
		entity := network.EntityRef{Kind: network.KindApplication, ID: rec.ID}
		if err := markStale(ctx, env, a.deps.Engine, entity, typeIDs, args.Origin); err != nil {
			return Application{}, err
		}
	}
	return rec, nil
}

// remove deletes an application after its devices and network type links.
func (a *applicationModel) remove(ctx context.Context, env *model.Env, id string) (struct{}, error) {
	where := store.Where{"application_id": id}
	if _, err := removeAllFrom[Device](ctx, env, RoleDevice, where); err != nil {
		return struct{}{}, err
	}
	if _, err := removeAllFrom[ApplicationLink](ctx, env, RoleApplicationLink, where); err != nil {
		return struct{}{}, err
	}
	entity := network.EntityRef{Kind: network.KindApplication, ID: id}
	if _, err := a.deps.Engine.Deployments().Clear(ctx, entity); err != nil {
		return struct{}{}, fmt.Errorf("clearing deployments of application %s: %w", id, err)
	}

	s, err := model.StoreOf[Application](env)
	if err != nil {
		return struct{}{}, err
	}
	return struct{}{}, s.Remove(ctx, id)
}

func (a *applicationModel) start(ctx context.Context, env *model.Env, id string) (Application, error) {
	return a.setRunning(ctx, env, id, true)
}

func (a *applicationModel) stop(ctx context.Context, env *model.Env, id string) (Application, error) {
	return a.setRunning(ctx, env, id, false)
}

func (a *applicationModel) setRunning(ctx context.Context, env *model.Env, id string, running bool) (Application, error) {
	s, err := model.StoreOf[Application](env)
	if err != nil {
		return Application{}, err
	}
	app, err := s.Update(ctx, store.ByID(id), store.Fields{"running": running})
	if err != nil {
		return Application{}, err
	}
	env.Log().Info("application state changed", "application_id", id, "running", running)
	return app, nil
}
