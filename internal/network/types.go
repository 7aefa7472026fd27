package network

import (
	"encoding/json"
	"time"
)

// NetworkType is a logical category of wireless network, such as IP or LoRa.
type NetworkType struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EntityID implements store.Entity.
func (t NetworkType) EntityID() string { return t.ID }

// Protocol is a versioned handler implementation for a class of network.
type Protocol struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	NetworkTypeID string `json:"network_type_id"`

	// Handler selects the registered handler factory, e.g. "ip" or "mqtt-bridge".
	Handler string `json:"handler"`

	Version   string    `json:"version,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EntityID implements store.Entity.
func (p Protocol) EntityID() string { return p.ID }

// Network is one operator-configured backend instance.
type Network struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	NetworkTypeID string         `json:"network_type_id"`
	ProtocolID    string         `json:"network_protocol_id"`
	Enabled       bool           `json:"enabled"`
	BaseURL       string         `json:"base_url,omitempty"`
	Settings      map[string]any `json:"settings,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// EntityID implements store.Entity.
func (n Network) EntityID() string { return n.ID }

// DeploymentStatus is the reconciliation state of an entity on one network.
type DeploymentStatus string

const (
	// StatusCurrent means the network holds the entity's latest state.
	StatusCurrent DeploymentStatus = "CURRENT"

	// StatusUpdated means the entity changed elsewhere and the network is stale.
	StatusUpdated DeploymentStatus = "UPDATED"
)

// Valid reports whether s is a known status.
func (s DeploymentStatus) Valid() bool {
	return s == StatusCurrent || s == StatusUpdated
}

// EntityKind names the kind of entity a deployment tracks.
type EntityKind string

const (
	KindDevice      EntityKind = "device"
	KindApplication EntityKind = "application"
)

// EntityRef identifies a deployed entity.
type EntityRef struct {
	Kind EntityKind `json:"kind"`
	ID   string     `json:"id"`
}

// Deployment is the reconciliation record for one (network, entity) pair.
type Deployment struct {
	ID        string           `json:"id"`
	NetworkID string           `json:"network_id"`
	Entity    EntityRef        `json:"entity"`
	Status    DeploymentStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// EntityID implements store.Entity.
func (d Deployment) EntityID() string { return d.ID }

// Receipt is a handler's log entry for one dispatched downlink.
type Receipt struct {
	NetworkID string         `json:"network_id"`
	Handler   string         `json:"handler"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// Uplink is device data routed to the owning application.
type Uplink struct {
	ApplicationID   string          `json:"application_id"`
	ApplicationName string          `json:"application_name"`
	DeviceID        string          `json:"device_id"`
	DeviceName      string          `json:"device_name"`
	DevEUI          string          `json:"dev_eui"`
	Payload         json.RawMessage `json:"payload"`
	ReceivedAt      time.Time       `json:"received_at"`
}
