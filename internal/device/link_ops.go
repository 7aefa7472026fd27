package device

import (
	"context"
	"fmt"

	"github.com/nerrad567/lpwan-core/internal/model"
	"github.com/nerrad567/lpwan-core/internal/network"
	"github.com/nerrad567/lpwan-core/internal/store"
)

// FindArgs are the arguments of findByDevEUI.
type FindArgs struct {
	DevEUI        string
	NetworkTypeID string
}

func linkOps(deps Deps) model.Ops {
	l := &linkModel{deps: deps}
	return model.CRUD[Link](deps.PageSize).With(model.Ops{
		"create":       model.Op(l.create),
		"update":       model.Op(l.update),
		"findByDevEUI": model.Op(findByDevEUI),
	})
}

type linkModel struct {
	deps Deps
}

// create stores the link and registers the device's remote id with the
// networks of the link's type.
func (l *linkModel) create(ctx context.Context, env *model.Env, rec Link) (Link, error) {
	s, err := model.StoreOf[Link](env)
	if err != nil {
		return Link{}, err
	}
	created, err := s.Create(ctx, rec)
	if err != nil {
		return Link{}, err
	}
	if err := l.register(ctx, env, created); err != nil {
		return Link{}, err
	}
	return created, nil
}

// update keeps the dev_eui column in step with network_settings and
// registers a changed remote id.
func (l *linkModel) update(ctx context.Context, env *model.Env, args model.UpdateArgs) (Link, error) {
	if len(args.Where) == 0 {
		return Link{}, ErrMissingWhere
	}
	s, err := model.StoreOf[Link](env)
	if err != nil {
		return Link{}, err
	}
	data := args.Data
	settings, settingsChanged := data["network_settings"].(map[string]any)
	if settingsChanged {
		data = store.Fields{}
		for k, v := range args.Data {
			data[k] = v
		}
		data["dev_eui"] = settingsDevEUI(settings)
	}
	rec, err := s.Update(ctx, args.Where, data)
	if err != nil {
		return Link{}, err
	}
	if settingsChanged {
		if err := l.register(ctx, env, rec); err != nil {
			return Link{}, err
		}
	}
	return rec, nil
}

// register hands the link's remote id to every handler of its network type
// that keeps one. Links without a remote id are skipped and per-network
// failures are logged.
func (l *linkModel) register(ctx context.Context, env *model.Env, link Link) error {
	remoteID, _ := link.NetworkSettings[remoteIDSetting].(string)
	if remoteID == "" {
		return nil
	}
	outcomes, err := network.ForAllNetworks(ctx, l.deps.Engine, link.NetworkTypeID,
		func(ctx context.Context, n network.Network) (bool, error) {
			h, err := l.deps.Handlers.ForNetwork(ctx, n)
			if err != nil {
				return false, err
			}
			r, ok := h.(network.Registrar)
			if !ok {
				return false, nil
			}
			return true, r.Register(ctx, n, link.DeviceID, remoteID)
		})
	if err != nil {
		return fmt.Errorf("registering device %s: %w", link.DeviceID, err)
	}
	for _, o := range outcomes {
		if o.Err != nil {
			env.Log().Warn("device not registered", "device_id", link.DeviceID, "network_id", o.Network.ID, "error", o.Err)
		}
	}
	return nil
}

// findByDevEUI returns the link carrying devEUI on a network type, or nil.
func findByDevEUI(ctx context.Context, env *model.Env, args FindArgs) (*Link, error) {
	devEUI := NormalizeDevEUI(args.DevEUI)
	if devEUI == "" {
		return nil, nil
	}
	res, err := model.Call[model.ListResult[Link]](ctx, env.Self(), "list", store.Query{
		Where: store.Where{"network_type_id": args.NetworkTypeID, "dev_eui": devEUI},
		Limit: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(res.Records) == 0 {
		return nil, nil
	}
	return &res.Records[0], nil
}
