package network

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/lpwan-core/internal/store"
)

var networkTypeSchema = store.Schema[NetworkType]{
	Table:   "network_types",
	Columns: []string{"id", "name", "created_at", "updated_at"},
	OrderBy: "name",
	Values: func(t NetworkType) ([]any, error) {
		return []any{t.ID, t.Name, store.FormatTime(t.CreatedAt), store.FormatTime(t.UpdatedAt)}, nil
	},
	Scan: func(row store.Scanner) (NetworkType, error) {
		var t NetworkType
		var created, updated string
		err := row.Scan(&t.ID, &t.Name, &created, &updated)
		t.CreatedAt, t.UpdatedAt = store.ParseTime(created), store.ParseTime(updated)
		return t, err
	},
	Stamp: func(t *NetworkType, id string, now time.Time) {
		t.ID, t.CreatedAt, t.UpdatedAt = id, now, now
	},
}

var protocolSchema = store.Schema[Protocol]{
	Table:   "network_protocols",
	Columns: []string{"id", "name", "network_type_id", "handler", "version", "created_at", "updated_at"},
	OrderBy: "created_at, id",
	Values: func(p Protocol) ([]any, error) {
		return []any{p.ID, p.Name, p.NetworkTypeID, p.Handler, p.Version,
			store.FormatTime(p.CreatedAt), store.FormatTime(p.UpdatedAt)}, nil
	},
	Scan: func(row store.Scanner) (Protocol, error) {
		var p Protocol
		var created, updated string
		err := row.Scan(&p.ID, &p.Name, &p.NetworkTypeID, &p.Handler, &p.Version, &created, &updated)
		p.CreatedAt, p.UpdatedAt = store.ParseTime(created), store.ParseTime(updated)
		return p, err
	},
	Stamp: func(p *Protocol, id string, now time.Time) {
		p.ID, p.CreatedAt, p.UpdatedAt = id, now, now
	},
}

var networkSchema = store.Schema[Network]{
	Table: "networks",
	Columns: []string{"id", "name", "network_type_id", "network_protocol_id", "enabled",
		"base_url", "settings", "created_at", "updated_at"},
	OrderBy: "name, id",
	Values: func(n Network) ([]any, error) {
		settings, err := store.EncodeJSON(n.Settings)
		if err != nil {
			return nil, err
		}
		return []any{n.ID, n.Name, n.NetworkTypeID, n.ProtocolID, n.Enabled, n.BaseURL, settings,
			store.FormatTime(n.CreatedAt), store.FormatTime(n.UpdatedAt)}, nil
	},
	Scan: func(row store.Scanner) (Network, error) {
		var n Network
		var settings, created, updated string
		if err := row.Scan(&n.ID, &n.Name, &n.NetworkTypeID, &n.ProtocolID, &n.Enabled,
			&n.BaseURL, &settings, &created, &updated); err != nil {
			return n, err
		}
		n.CreatedAt, n.UpdatedAt = store.ParseTime(created), store.ParseTime(updated)
		return n, store.DecodeJSON(settings, &n.Settings)
	},
	Stamp: func(n *Network, id string, now time.Time) {
		n.ID, n.CreatedAt, n.UpdatedAt = id, now, now
	},
}

// Catalog gives access to the network types, protocols and networks tables.
type Catalog struct {
	Types     *store.Table[NetworkType]
	Protocols *store.Table[Protocol]
	Networks  *store.Table[Network]
}

// NewCatalog creates the catalogue tables over db.
func NewCatalog(db *sql.DB) *Catalog {
	return &Catalog{
		Types:     store.NewTable(db, networkTypeSchema),
		Protocols: store.NewTable(db, protocolSchema),
		Networks:  store.NewTable(db, networkSchema),
	}
}

// TypeByName loads a network type by name.
func (c *Catalog) TypeByName(ctx context.Context, name string) (NetworkType, error) {
	t, err := c.Types.Load(ctx, store.Where{"name": name})
	if errors.Is(err, store.ErrNotFound) {
		return NetworkType{}, fmt.Errorf("%w: %s: %w", ErrNetworkTypeNotFound, name, err)
	}
	return t, err
}

// FirstProtocol returns the oldest protocol configured for a network type.
func (c *Catalog) FirstProtocol(ctx context.Context, networkTypeID string) (Protocol, error) {
	protocols, _, err := c.Protocols.List(ctx, store.Query{
		Where: store.Where{"network_type_id": networkTypeID},
		Limit: 1,
	})
	if err != nil {
		return Protocol{}, fmt.Errorf("listing protocols: %w", err)
	}
	if len(protocols) == 0 {
		return Protocol{}, fmt.Errorf("%w: %s", ErrNoProtocol, networkTypeID)
	}
	return protocols[0], nil
}
