package device

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nerrad567/lpwan-core/internal/store"
)

// devEUISetting is the network settings key carrying a device's EUI.
const devEUISetting = "devEUI"

// remoteIDSetting is the network settings key carrying the id a bridged
// network server knows a device by.
const remoteIDSetting = "remoteId"

var applicationSchema = store.Schema[Application]{
	Table:   "applications",
	Columns: []string{"id", "name", "description", "running", "created_at", "updated_at"},
	OrderBy: "name, id",
	Values: func(a Application) ([]any, error) {
		return []any{a.ID, a.Name, a.Description, a.Running,
			store.FormatTime(a.CreatedAt), store.FormatTime(a.UpdatedAt)}, nil
	},
	Scan: func(row store.Scanner) (Application, error) {
		var a Application
		var created, updated string
		err := row.Scan(&a.ID, &a.Name, &a.Description, &a.Running, &created, &updated)
		a.CreatedAt, a.UpdatedAt = store.ParseTime(created), store.ParseTime(updated)
		return a, err
	},
	Stamp: func(a *Application, id string, now time.Time) {
		a.ID, a.CreatedAt, a.UpdatedAt = id, now, now
	},
}

var profileSchema = store.Schema[Profile]{
	Table:   "device_profiles",
	Columns: []string{"id", "name", "description", "network_type_id", "network_settings", "created_at", "updated_at"},
	OrderBy: "name, id",
	Values: func(p Profile) ([]any, error) {
		settings, err := store.EncodeJSON(p.NetworkSettings)
		if err != nil {
			return nil, err
		}
		return []any{p.ID, p.Name, p.Description, p.NetworkTypeID, settings,
			store.FormatTime(p.CreatedAt), store.FormatTime(p.UpdatedAt)}, nil
	},
	Scan: func(row store.Scanner) (Profile, error) {
		var p Profile
		var settings, created, updated string
		if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.NetworkTypeID, &settings, &created, &updated); err != nil {
			return p, err
		}
		p.CreatedAt, p.UpdatedAt = store.ParseTime(created), store.ParseTime(updated)
		return p, store.DecodeJSON(settings, &p.NetworkSettings)
	},
	Stamp: func(p *Profile, id string, now time.Time) {
		p.ID, p.CreatedAt, p.UpdatedAt = id, now, now
	},
}

var deviceSchema = store.Schema[Device]{
	Table:   "devices",
	Columns: []string{"id", "name", "description", "device_model", "application_id", "created_at", "updated_at"},
	OrderBy: "created_at, id",
	Values: func(d Device) ([]any, error) {
		return []any{d.ID, d.Name, d.Description, d.DeviceModel, d.ApplicationID,
			store.FormatTime(d.CreatedAt), store.FormatTime(d.UpdatedAt)}, nil
	},
	Scan: func(row store.Scanner) (Device, error) {
		var d Device
		var created, updated string
		err := row.Scan(&d.ID, &d.Name, &d.Description, &d.DeviceModel, &d.ApplicationID, &created, &updated)
		d.CreatedAt, d.UpdatedAt = store.ParseTime(created), store.ParseTime(updated)
		return d, err
	},
	Stamp: func(d *Device, id string, now time.Time) {
		d.ID, d.CreatedAt, d.UpdatedAt = id, now, now
	},
}

var linkSchema = store.Schema[Link]{
	Table: "device_network_type_links",
	Columns: []string{"id", "device_id", "network_type_id", "device_profile_id", "enabled",
		"dev_eui", "network_settings", "created_at", "updated_at"},
	OrderBy: "created_at, id",
	Values: func(l Link) ([]any, error) {
		settings, err := store.EncodeJSON(l.NetworkSettings)
		if err != nil {
			return nil, err
		}
		return []any{l.ID, l.DeviceID, l.NetworkTypeID, l.ProfileID, l.Enabled,
			settingsDevEUI(l.NetworkSettings), settings,
			store.FormatTime(l.CreatedAt), store.FormatTime(l.UpdatedAt)}, nil
	},
	Scan: func(row store.Scanner) (Link, error) {
		var l Link
		var settings, created, updated string
		if err := row.Scan(&l.ID, &l.DeviceID, &l.NetworkTypeID, &l.ProfileID, &l.Enabled,
			&l.DevEUI, &settings, &created, &updated); err != nil {
			return l, err
		}
		l.CreatedAt, l.UpdatedAt = store.ParseTime(created), store.ParseTime(updated)
		return l, store.DecodeJSON(settings, &l.NetworkSettings)
	},
	Stamp: func(l *Link, id string, now time.Time) {
		l.ID, l.CreatedAt, l.UpdatedAt = id, now, now
		l.DevEUI = settingsDevEUI(l.NetworkSettings)
	},
}

var applicationLinkSchema = store.Schema[ApplicationLink]{
	Table: "application_network_type_links",
	Columns: []string{"id", "application_id", "network_type_id", "enabled", "network_settings",
		"created_at", "updated_at"},
	OrderBy: "created_at, id",
	Values: func(l ApplicationLink) ([]any, error) {
		settings, err := store.EncodeJSON(l.NetworkSettings)
		if err != nil {
			return nil, err
		}
		return []any{l.ID, l.ApplicationID, l.NetworkTypeID, l.Enabled, settings,
			store.FormatTime(l.CreatedAt), store.FormatTime(l.UpdatedAt)}, nil
	},
	Scan: func(row store.Scanner) (ApplicationLink, error) {
		var l ApplicationLink
		var settings, created, updated string
		if err := row.Scan(&l.ID, &l.ApplicationID, &l.NetworkTypeID, &l.Enabled, &settings, &created, &updated); err != nil {
			return l, err
		}
		l.CreatedAt, l.UpdatedAt = store.ParseTime(created), store.ParseTime(updated)
		return l, store.DecodeJSON(settings, &l.NetworkSettings)
	},
	Stamp: func(l *ApplicationLink, id string, now time.Time) {
		l.ID, l.CreatedAt, l.UpdatedAt = id, now, now
	},
}

// settingsDevEUI returns the normalized devEUI held in network settings.
func settingsDevEUI(settings map[string]any) string {
	s, _ := settings[devEUISetting].(string)
	return NormalizeDevEUI(s)
}

// Stores holds the tables backing the device models.
type Stores struct {
	Applications     *store.Table[Application]
	Profiles         *store.Table[Profile]
	Devices          *store.Table[Device]
	Links            *store.Table[Link]
	ApplicationLinks *store.Table[ApplicationLink]
}

// NewStores creates the device tables over db.
func NewStores(db *sql.DB) *Stores {
	return &Stores{
		Applications:     store.NewTable(db, applicationSchema),
		Profiles:         store.NewTable(db, profileSchema),
		Devices:          store.NewTable(db, deviceSchema),
		Links:            store.NewTable(db, linkSchema),
		ApplicationLinks: store.NewTable(db, applicationLinkSchema),
	}
}

// DevEUI returns the normalized devEUI of a device on a network type.
func (s *Stores) DevEUI(ctx context.Context, deviceID, networkTypeID string) (string, error) {
	link, err := s.Links.Load(ctx, store.Where{
		"device_id":       deviceID,
		"network_type_id": networkTypeID,
	})
	if err != nil {
		return "", fmt.Errorf("loading link of device %s: %w", deviceID, err)
	}
	if link.DevEUI == "" {
		return "", fmt.Errorf("%w: device %s has no devEUI", ErrInvalidDevEUI, deviceID)
	}
	return link.DevEUI, nil
}
