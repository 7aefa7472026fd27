package mailbox

import (
	"context"
	"fmt"
)

// Publisher is the MQTT capability the notifier needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// MQTTNotifier publishes an empty message on {Prefix}/{devEUI} at QoS 0.
type MQTTNotifier struct {
	Publisher Publisher
	Prefix    string
}

// Notify publishes the wake-up message for devEUI.
func (n MQTTNotifier) Notify(_ context.Context, devEUI string) error {
	if n.Publisher == nil {
		return nil
	}
	topic := fmt.Sprintf("%s/%s", n.Prefix, devEUI)
	if err := n.Publisher.Publish(topic, nil, 0, false); err != nil {
		return fmt.Errorf("publishing %s: %w", topic, err)
	}
	return nil
}
