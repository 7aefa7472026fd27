package model

import (
	"fmt"

	"github.com/nerrad567/lpwan-core/internal/store"
)

// Logger is the logging interface used by models.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Session identifies the caller an operation runs on behalf of.
type Session struct {
	UserID string
	Admin  bool
}

// Env is the shared context injected into every operation.
type Env struct {
	// Store is the entity's data-access handle, usually a store.Store[T].
	Store any

	// Models resolves the other entity models.
	Models *Registry

	// Session is the calling identity. Nil for internal calls.
	Session *Session

	Logger Logger
	Tracer Tracer

	// NoTrace suppresses failure tracing for the call.
	NoTrace bool

	self *Model
}

// merge returns e with every non-zero field of over applied.
func (e Env) merge(over Env) Env {
	if over.Store != nil {
		e.Store = over.Store
	}
	if over.Models != nil {
		e.Models = over.Models
	}
	if over.Session != nil {
		e.Session = over.Session
	}
	if over.Logger != nil {
		e.Logger = over.Logger
	}
	if over.Tracer != nil {
		e.Tracer = over.Tracer
	}
	if over.NoTrace {
		e.NoTrace = true
	}
	return e
}

// Log returns the Env's logger, never nil.
func (e *Env) Log() Logger {
	if e.Logger == nil {
		return noopLogger{}
	}
	return e.Logger
}

// Self returns the calling model's self view bound to this Env.
func (e *Env) Self() Self {
	return Self{model: e.self, env: *e}
}

// Model returns another entity model from the registry.
func (e *Env) Model(role string) (*Model, error) {
	if e.Models == nil {
		return nil, fmt.Errorf("%w: resolving %q", ErrNoRegistry, role)
	}
	return e.Models.Get(role)
}

// StoreOf returns the Env's store as a store.Store[T].
func StoreOf[T any](env *Env) (store.Store[T], error) {
	s, ok := env.Store.(store.Store[T])
	if !ok {
		var zero T
		return nil, fmt.Errorf("%w: want store.Store[%T], have %T", ErrNoStore, zero, env.Store)
	}
	return s, nil
}

// CallOption adjusts the Env of a single call.
type CallOption func(*Env)

// WithEnv merges the non-zero fields of over into the call Env.
func WithEnv(over Env) CallOption {
	return func(e *Env) { *e = e.merge(over) }
}

// WithSession runs the call on behalf of s.
func WithSession(s *Session) CallOption {
	return func(e *Env) { e.Session = s }
}

// WithoutTrace suppresses failure tracing for the call.
func WithoutTrace() CallOption {
	return func(e *Env) { e.NoTrace = true }
}
