package device

import "time"

// Application groups devices and receives their uplinks while running.
type Application struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Running     bool      `json:"running"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// EntityID implements store.Entity.
func (a Application) EntityID() string { return a.ID }

// Profile is a device profile: network specific defaults shared by devices.
type Profile struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Description     string         `json:"description,omitempty"`
	NetworkTypeID   string         `json:"network_type_id"`
	NetworkSettings map[string]any `json:"network_settings,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// EntityID implements store.Entity.
func (p Profile) EntityID() string { return p.ID }

// Device is a physical end node owned by one application.
type Device struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	DeviceModel   string    `json:"device_model,omitempty"`
	ApplicationID string    `json:"application_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// EntityID implements store.Entity.
func (d Device) EntityID() string { return d.ID }

// Link attaches a device to a network type with a profile and
// network specific settings.
type Link struct {
	ID              string         `json:"id"`
	DeviceID        string         `json:"device_id"`
	NetworkTypeID   string         `json:"network_type_id"`
	ProfileID       string         `json:"device_profile_id,omitempty"`
	Enabled         bool           `json:"enabled"`
	NetworkSettings map[string]any `json:"network_settings,omitempty"`

	// DevEUI is the normalized form of NetworkSettings["devEUI"].
	DevEUI string `json:"dev_eui,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EntityID implements store.Entity.
func (l Link) EntityID() string { return l.ID }

// ApplicationLink attaches an application to a network type.
type ApplicationLink struct {
	ID              string         `json:"id"`
	ApplicationID   string         `json:"application_id"`
	NetworkTypeID   string         `json:"network_type_id"`
	Enabled         bool           `json:"enabled"`
	NetworkSettings map[string]any `json:"network_settings,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// EntityID implements store.Entity.
func (l ApplicationLink) EntityID() string { return l.ID }

// ImportStatus is the per-row outcome of an import.
type ImportStatus string

const (
	ImportOK    ImportStatus = "OK"
	ImportError ImportStatus = "ERROR"
)

// ImportRow is one device of an import request.
type ImportRow struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	DeviceModel string `json:"deviceModel,omitempty"`
	DevEUI      string `json:"devEUI"`
}

// ImportResult reports what happened to one ImportRow.
type ImportResult struct {
	Status   ImportStatus `json:"status"`
	DeviceID string       `json:"deviceId,omitempty"`
	DevEUI   string       `json:"devEUI"`
	Error    string       `json:"error,omitempty"`
	Row      int          `json:"row"`
}
