package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes. Every topic the core publishes or subscribes to lives
// under TopicPrefix.
const (
	TopicPrefix = "lpwan"

	// TopicPrefixSystem carries core status (LWT and graceful shutdown).
	TopicPrefixSystem = TopicPrefix + "/system"
)

// Topics provides builders for LPWAN Core MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.DownlinkReceived("0011223344556677")
//	// Returns: "lpwan/downlink_received/0011223344556677"
type Topics struct{}

// DownlinkReceived is the wake-up topic for an IP device with queued downlinks.
//
// Example: lpwan/downlink_received/0011223344556677
func (Topics) DownlinkReceived(devEUI string) string {
	return fmt.Sprintf("%s/downlink_received/%s", TopicPrefix, devEUI)
}

// IPUplink is the topic an IP device publishes its uplinks on.
//
// Example: lpwan/uplink/ip/0011223344556677
func (Topics) IPUplink(devEUI string) string {
	return fmt.Sprintf("%s/uplink/ip/%s", TopicPrefix, devEUI)
}

// ApplicationUplink is the topic device data is reported to an application on.
//
// Example: lpwan/application/8b0c.../uplink
func (Topics) ApplicationUplink(applicationID string) string {
	return fmt.Sprintf("%s/application/%s/uplink", TopicPrefix, applicationID)
}

// BridgeCommand is the topic downlinks are handed to a bridged network on.
//
// Example: lpwan/command/{networkID}/{remoteDeviceID}
func (Topics) BridgeCommand(networkID, remoteID string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, networkID, remoteID)
}

// BridgeUplink is the topic a bridged network reports device data on.
//
// Example: lpwan/bridge/{networkID}/uplink/{remoteDeviceID}
func (Topics) BridgeUplink(networkID, remoteID string) string {
	return fmt.Sprintf("%s/bridge/%s/uplink/%s", TopicPrefix, networkID, remoteID)
}

// SystemStatus returns the core status topic.
//
// Example: lpwan/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// AllIPUplinks matches the uplinks of every IP device.
//
// Pattern: lpwan/uplink/ip/+
func (Topics) AllIPUplinks() string {
	return TopicPrefix + "/uplink/ip/+"
}

// AllBridgeUplinks matches the uplinks reported by a bridged network.
//
// Pattern: lpwan/bridge/{networkID}/uplink/+
func (Topics) AllBridgeUplinks(networkID string) string {
	return fmt.Sprintf("%s/bridge/%s/uplink/+", TopicPrefix, networkID)
}

// ParseIPUplinkTopic extracts the devEUI from an IP uplink topic.
func ParseIPUplinkTopic(topic string) (string, error) {
	devEUI, ok := strings.CutPrefix(topic, TopicPrefix+"/uplink/ip/")
	if !ok || devEUI == "" || strings.Contains(devEUI, "/") {
		return "", fmt.Errorf("%w: %q is not an IP uplink topic", ErrInvalidTopic, topic)
	}
	return devEUI, nil
}

// ParseBridgeUplinkTopic extracts the network and remote device ids from a
// bridge uplink topic.
func ParseBridgeUplinkTopic(topic string) (networkID, remoteID string, err error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 5 || parts[0] != TopicPrefix || parts[1] != "bridge" || parts[3] != "uplink" ||
		parts[2] == "" || parts[4] == "" {
		return "", "", fmt.Errorf("%w: %q is not a bridge uplink topic", ErrInvalidTopic, topic)
	}
	return parts[2], parts[4], nil
}
