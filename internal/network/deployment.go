package network

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nerrad567/lpwan-core/internal/collection"
	"github.com/nerrad567/lpwan-core/internal/store"
)

var deploymentSchema = store.Schema[Deployment]{
	Table:   "network_deployments",
	Columns: []string{"id", "network_id", "entity_kind", "entity_id", "status", "created_at", "updated_at"},
	OrderBy: "updated_at, id",
	Values: func(d Deployment) ([]any, error) {
		return []any{d.ID, d.NetworkID, string(d.Entity.Kind), d.Entity.ID, string(d.Status),
			store.FormatTime(d.CreatedAt), store.FormatTime(d.UpdatedAt)}, nil
	},
	Scan: func(row store.Scanner) (Deployment, error) {
		var d Deployment
		var kind, status, created, updated string
		err := row.Scan(&d.ID, &d.NetworkID, &kind, &d.Entity.ID, &status, &created, &updated)
		d.Entity.Kind, d.Status = EntityKind(kind), DeploymentStatus(status)
		d.CreatedAt, d.UpdatedAt = store.ParseTime(created), store.ParseTime(updated)
		return d, err
	},
	Stamp: func(d *Deployment, id string, now time.Time) {
		d.ID, d.CreatedAt, d.UpdatedAt = id, now, now
	},
}

// Deployments stores the reconciliation status of entities per network.
type Deployments struct {
	db    *sql.DB
	table *store.Table[Deployment]
}

// NewDeployments creates the deployments store over db.
func NewDeployments(db *sql.DB) *Deployments {
	return &Deployments{db: db, table: store.NewTable(db, deploymentSchema)}
}

// Set records status for entity on a network, creating the record on first
// use. The write is a single statement, so concurrent sets cannot duplicate
// the (network, entity) record.
func (d *Deployments) Set(ctx context.Context, networkID string, entity EntityRef, status DeploymentStatus) (Deployment, error) {
	if !status.Valid() {
		return Deployment{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	now := store.FormatTime(time.Now())
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO network_deployments (id, network_id, entity_kind, entity_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (network_id, entity_kind, entity_id)
		DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at`,
		store.GenerateID(), networkID, string(entity.Kind), entity.ID, string(status), now, now,
	)
	if err != nil {
		return Deployment{}, fmt.Errorf("setting deployment status: %w", err)
	}
	return d.Get(ctx, networkID, entity)
}

// Get loads the deployment for entity on a network.
func (d *Deployments) Get(ctx context.Context, networkID string, entity EntityRef) (Deployment, error) {
	return d.table.Load(ctx, store.Where{
		"network_id":  networkID,
		"entity_kind": string(entity.Kind),
		"entity_id":   entity.ID,
	})
}

// List implements collection.Lister.
func (d *Deployments) List(ctx context.Context, q store.Query) ([]Deployment, int, error) {
	return d.table.List(ctx, q)
}

// Remove implements collection.Remover.
func (d *Deployments) Remove(ctx context.Context, id string) error {
	return d.table.Remove(ctx, id)
}

// ForEntity returns every deployment of entity.
func (d *Deployments) ForEntity(ctx context.Context, entity EntityRef) ([]Deployment, error) {
	records, _, err := d.table.List(ctx, store.Query{Where: store.Where{
		"entity_kind": string(entity.Kind),
		"entity_id":   entity.ID,
	}})
	return records, err
}

// Stale pages through every deployment awaiting reconciliation.
func (d *Deployments) Stale(pageSize int) *collection.Pages[Deployment] {
	return collection.ListAll[Deployment](d, store.Where{"status": string(StatusUpdated)}, pageSize)
}

// Clear removes every deployment of entity, used when the entity is deleted.
func (d *Deployments) Clear(ctx context.Context, entity EntityRef) (int64, error) {
	return d.table.RemoveWhere(ctx, store.Where{
		"entity_kind": string(entity.Kind),
		"entity_id":   entity.ID,
	})
}
