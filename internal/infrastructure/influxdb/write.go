package influxdb

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementUplink   = "device_uplink"
	MeasurementDownlink = "device_downlink"
)

// Uplink describes one device uplink to record.
type Uplink struct {
	ApplicationID string
	DeviceID      string
	DevEUI        string
	NetworkType   string
	Payload       json.RawMessage
	ReceivedAt    time.Time
}

// WriteUplink records an uplink. The write is non-blocking.
//
// Every uplink carries a payload_bytes field. When the payload is a JSON
// object, its top-level numeric and boolean members become fields too.
func (c *Client) WriteUplink(up Uplink) {
	if !c.accepting(MeasurementUplink) {
		return
	}
	c.writeAPI.WritePoint(uplinkPoint(up))
}

// WriteDownlink records the outcome of a downlink sent to one network.
func (c *Client) WriteDownlink(networkID, deviceID, handler string, ok bool) {
	if !c.accepting(MeasurementDownlink) {
		return
	}
	c.writeAPI.WritePoint(downlinkPoint(networkID, deviceID, handler, ok, time.Now()))
}

// WritePoint writes a custom point with full control over tags and fields.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	if !c.accepting(measurement) {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}

// accepting reports whether a point can be queued. A point arriving while
// the client is disconnected is dropped and reported as ErrNotConnected.
func (c *Client) accepting(measurement string) bool {
	if c.IsConnected() {
		return true
	}
	c.report(fmt.Errorf("%w: dropped %s point", ErrNotConnected, measurement))
	return false
}

func uplinkPoint(up Uplink) *write.Point {
	ts := up.ReceivedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	tags := map[string]string{
		"application_id": up.ApplicationID,
		"device_id":      up.DeviceID,
		"dev_eui":        up.DevEUI,
	}
	if up.NetworkType != "" {
		tags["network_type"] = up.NetworkType
	}

	fields := map[string]any{"payload_bytes": len(up.Payload)}
	var members map[string]any
	if json.Unmarshal(up.Payload, &members) == nil {
		for k, v := range members {
			switch v.(type) {
			case float64, bool:
				if k != "payload_bytes" {
					fields[k] = v
				}
			}
		}
	}
	return write.NewPoint(MeasurementUplink, tags, fields, ts)
}

func downlinkPoint(networkID, deviceID, handler string, ok bool, ts time.Time) *write.Point {
	return write.NewPoint(MeasurementDownlink,
		map[string]string{
			"network_id": networkID,
			"device_id":  deviceID,
			"handler":    handler,
		},
		map[string]any{"delivered": ok},
		ts,
	)
}
