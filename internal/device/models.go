package device

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/lpwan-core/internal/model"
	"github.com/nerrad567/lpwan-core/internal/network"
)

// Model roles registered by Register.
const (
	RoleApplication     = "application"
	RoleProfile         = "deviceProfile"
	RoleDevice          = "device"
	RoleLink            = "deviceNetworkTypeLink"
	RoleApplicationLink = "applicationNetworkTypeLink"
)

// Mailbox is the IP downlink queue.
type Mailbox interface {
	Push(ctx context.Context, devEUI string, payload any) (int, error)
	Drain(ctx context.Context, devEUI string) ([]json.RawMessage, error)
}

// Deps are the collaborators shared by the device models.
type Deps struct {
	Stores   *Stores
	Catalog  *network.Catalog
	Engine   *network.Engine
	Handlers *network.HandlerRegistry
	Mailbox  Mailbox

	// IPNetworkType names the network type served by the mailbox.
	IPNetworkType string

	// PageSize is the default page size of listAll and removeMany.
	PageSize int

	Logger model.Logger
	Tracer model.Tracer
}

// Register builds every device model and adds it to reg.
func Register(reg *model.Registry, deps Deps) error {
	if deps.IPNetworkType == "" {
		deps.IPNetworkType = "IP"
	}

	env := func(s any) model.Env {
		return model.Env{Store: s, Models: reg, Logger: deps.Logger, Tracer: deps.Tracer}
	}

	models := []*model.Model{
		model.Build(model.Spec{
			Role:   RoleApplication,
			Env:    env(deps.Stores.Applications),
			Public: applicationOps(deps),
		}),
		model.Build(model.Spec{
			Role:   RoleProfile,
			Env:    env(deps.Stores.Profiles),
			Public: model.CRUD[Profile](deps.PageSize),
		}),
		model.Build(model.Spec{
			Role:   RoleDevice,
			Env:    env(deps.Stores.Devices),
			Public: deviceOps(deps),
		}),
		model.Build(model.Spec{
			Role:   RoleLink,
			Env:    env(deps.Stores.Links),
			Public: linkOps(deps),
		}),
		model.Build(model.Spec{
			Role:   RoleApplicationLink,
			Env:    env(deps.Stores.ApplicationLinks),
			Public: model.CRUD[ApplicationLink](deps.PageSize),
		}),
	}

	for _, m := range models {
		if err := reg.Register(m); err != nil {
			return fmt.Errorf("registering %s model: %w", m.Role(), err)
		}
	}
	return nil
}
