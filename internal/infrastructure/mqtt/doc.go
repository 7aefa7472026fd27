// Package mqtt provides the MQTT client used by LPWAN Core.
//
// The broker is the message bus between the core, IP devices and bridged
// network servers:
//
//	IP devices ─┐                         ┌─ application consumers
//	            ├── MQTT broker ── Core ──┤
//	Bridges   ──┘                         └─ network server bridges
//
// This package manages:
//   - Connection with auto-reconnect and subscription restoration
//   - Publishing with QoS validation and a payload ceiling
//   - Last Will and Testament on lpwan/system/status
//   - Topic builders for every topic the core uses (see Topics)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllIPUplinks(), 1,
//	    func(topic string, payload []byte) error {
//	        devEUI, _ := mqtt.ParseIPUplinkTopic(topic)
//	        return ingest(devEUI, payload)
//	    })
//
// TLS should be enabled (cfg.Broker.TLS) whenever the broker is not on
// the local host. Payloads are not encrypted beyond the transport.
package mqtt
