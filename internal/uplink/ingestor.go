package uplink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/lpwan-core/internal/infrastructure/mqtt"
)

// ErrInvalidPayload is returned for uplinks whose payload is not JSON.
var ErrInvalidPayload = errors.New("uplink: payload is not valid JSON")

// defaultTimeout bounds the processing of one uplink.
const defaultTimeout = 10 * time.Second

// Network type labels reported to the Recorder.
const (
	labelIP     = "ip"
	labelBridge = "bridge"
)

// Subscriber is the MQTT subscription surface used by the ingestor.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Router delivers uplinks to the device models.
type Router interface {
	ReceiveIPDeviceUplink(ctx context.Context, devEUI string, payload json.RawMessage) error
	ReceiveNetworkUplink(ctx context.Context, networkID, deviceID string, payload json.RawMessage) error
}

// DeviceResolver maps a bridged network's remote id to a core device id.
type DeviceResolver interface {
	ResolveDevice(ctx context.Context, networkID, remoteID string) (string, error)
}

// Recorder observes processed uplinks.
type Recorder interface {
	ObserveUplink(networkType string, err error)
}

// Logger is the logging interface used by the ingestor.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

type noopRecorder struct{}

func (noopRecorder) ObserveUplink(string, error) {}

// Ingestor subscribes to uplink topics and routes what arrives.
//
// Thread Safety: all methods are safe for concurrent use.
type Ingestor struct {
	sub      Subscriber
	router   Router
	qos      byte
	timeout  time.Duration
	logger   Logger
	recorder Recorder

	mu     sync.Mutex
	topics []string
}

// New creates an ingestor. logger and recorder may be nil.
func New(sub Subscriber, router Router, qos byte, logger Logger, recorder Recorder) *Ingestor {
	if logger == nil {
		logger = noopLogger{}
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Ingestor{
		sub:      sub,
		router:   router,
		qos:      qos,
		timeout:  defaultTimeout,
		logger:   logger,
		recorder: recorder,
	}
}

// Start subscribes to the uplinks of every IP device.
func (i *Ingestor) Start() error {
	return i.subscribe(mqtt.Topics{}.AllIPUplinks(), i.handleIP)
}

// AddBridge subscribes to the uplinks reported by a bridged network.
func (i *Ingestor) AddBridge(networkID string, resolver DeviceResolver) error {
	return i.subscribe(mqtt.Topics{}.AllBridgeUplinks(networkID), func(topic string, payload []byte) error {
		return i.handleBridge(resolver, topic, payload)
	})
}

// Stop removes every subscription made by the ingestor.
func (i *Ingestor) Stop() error {
	i.mu.Lock()
	topics := i.topics
	i.topics = nil
	i.mu.Unlock()

	var errs []error
	for _, t := range topics {
		if err := i.sub.Unsubscribe(t); err != nil {
			errs = append(errs, fmt.Errorf("unsubscribing %s: %w", t, err))
		}
	}
	return errors.Join(errs...)
}

func (i *Ingestor) subscribe(topic string, handler mqtt.MessageHandler) error {
	if err := i.sub.Subscribe(topic, i.qos, handler); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	i.mu.Lock()
	i.topics = append(i.topics, topic)
	i.mu.Unlock()
	return nil
}

func (i *Ingestor) handleIP(topic string, payload []byte) (err error) {
	defer func() { i.recorder.ObserveUplink(labelIP, err) }()

	devEUI, err := mqtt.ParseIPUplinkTopic(topic)
	if err != nil {
		return err
	}
	if !json.Valid(payload) {
		return fmt.Errorf("%w: from %s", ErrInvalidPayload, devEUI)
	}

	ctx, cancel := context.WithTimeout(context.Background(), i.timeout)
	defer cancel()

	i.logger.Debug("IP uplink received", "dev_eui", devEUI, "bytes", len(payload))
	return i.router.ReceiveIPDeviceUplink(ctx, devEUI, json.RawMessage(payload))
}

func (i *Ingestor) handleBridge(resolver DeviceResolver, topic string, payload []byte) (err error) {
	defer func() { i.recorder.ObserveUplink(labelBridge, err) }()

	networkID, remoteID, err := mqtt.ParseBridgeUplinkTopic(topic)
	if err != nil {
		return err
	}
	if !json.Valid(payload) {
		return fmt.Errorf("%w: from %s on %s", ErrInvalidPayload, remoteID, networkID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), i.timeout)
	defer cancel()

	deviceID, err := resolver.ResolveDevice(ctx, networkID, remoteID)
	if err != nil {
		return err
	}
	i.logger.Debug("bridge uplink received", "network_id", networkID, "device_id", deviceID)
	return i.router.ReceiveNetworkUplink(ctx, networkID, deviceID, json.RawMessage(payload))
}
