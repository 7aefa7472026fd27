package network

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/lpwan-core/internal/store"
)

// Handler is the capability a protocol implementation exposes to the core.
type Handler interface {
	// SendDownlink delivers a downlink for a device on network n.
	SendDownlink(ctx context.Context, n Network, applicationID, deviceID string, dl Downlink) (Receipt, error)

	// ReceiveUplink forwards device data to its application.
	ReceiveUplink(ctx context.Context, up Uplink) error
}

// Decommissioner is implemented by handlers that keep per-device state on a
// network. It is called when the device is removed.
type Decommissioner interface {
	Decommission(ctx context.Context, n Network, deviceID string) (int64, error)
}

// Registrar is implemented by handlers that keep their own id for a device
// on a network. It is called when a device link names that id.
type Registrar interface {
	Register(ctx context.Context, n Network, deviceID, remoteID string) error
}

// Factory builds the handler for a protocol.
type Factory func(p Protocol) (Handler, error)

// ProtocolLoader loads protocol records.
type ProtocolLoader interface {
	Load(ctx context.Context, where store.Where) (Protocol, error)
}

// HandlerRegistry resolves protocol handlers.
//
// Factories are registered by handler identifier. A handler is built the
// first time one of its protocols is resolved and then cached per protocol.
//
// Thread Safety: all methods are safe for concurrent use.
type HandlerRegistry struct {
	protocols ProtocolLoader

	mu        sync.RWMutex
	factories map[string]Factory
	handlers  map[string]Handler
}

// NewHandlerRegistry creates an empty registry reading protocols from loader.
func NewHandlerRegistry(loader ProtocolLoader) *HandlerRegistry {
	return &HandlerRegistry{
		protocols: loader,
		factories: make(map[string]Factory),
		handlers:  make(map[string]Handler),
	}
}

// Register adds a factory for a handler identifier.
func (r *HandlerRegistry) Register(handlerID string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[handlerID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateHandler, handlerID)
	}
	r.factories[handlerID] = f
	return nil
}

// ForNetwork resolves the handler serving n.
func (r *HandlerRegistry) ForNetwork(ctx context.Context, n Network) (Handler, error) {
	return r.ForProtocol(ctx, n.ProtocolID)
}

// ForProtocol resolves the handler for a protocol id.
func (r *HandlerRegistry) ForProtocol(ctx context.Context, protocolID string) (Handler, error) {
	r.mu.RLock()
	h, ok := r.handlers[protocolID]
	r.mu.RUnlock()
	if ok {
		return h, nil
	}

	// The protocol is loaded without holding the lock.
	p, err := r.protocols.Load(ctx, store.ByID(protocolID))
	if err != nil {
		return nil, fmt.Errorf("loading protocol %s: %w", protocolID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.handlers[protocolID]; ok {
		return h, nil
	}
	factory, ok := r.factories[p.Handler]
	if !ok {
		return nil, fmt.Errorf("%w: %q (protocol %s)", ErrUnknownHandler, p.Handler, p.ID)
	}
	h, err = factory(p)
	if err != nil {
		return nil, fmt.Errorf("building handler %q: %w", p.Handler, err)
	}
	r.handlers[protocolID] = h
	return h, nil
}
