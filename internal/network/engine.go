package network

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/lpwan-core/internal/collection"
	"github.com/nerrad567/lpwan-core/internal/store"
)

// Logger is the logging interface used by the network package.
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

// Recorder observes per-network fan-out outcomes.
type Recorder interface {
	ObserveDispatch(networkTypeID, networkID string, err error, elapsed time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) ObserveDispatch(string, string, error, time.Duration) {}

// Outcome is the settled result of an operation on one network.
type Outcome[R any] struct {
	Network Network
	Value   R

	// Err wraps ErrUpstream when the network's operation failed.
	Err error
}

// Engine fans operations out over the networks of a type.
//
// Thread Safety: all methods are safe for concurrent use.
type Engine struct {
	networks    collection.Lister[Network]
	deployments *Deployments
	pageSize    int
	logger      Logger
	recorder    Recorder
}

// NewEngine creates a fan-out engine. networks is paged through with
// pageSize whenever a network type is resolved.
func NewEngine(networks collection.Lister[Network], deployments *Deployments, pageSize int, logger Logger) *Engine {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Engine{
		networks:    networks,
		deployments: deployments,
		pageSize:    pageSize,
		logger:      logger,
		recorder:    noopRecorder{},
	}
}

// SetRecorder installs a fan-out observer.
func (e *Engine) SetRecorder(r Recorder) {
	if r == nil {
		r = noopRecorder{}
	}
	e.recorder = r
}

// Deployments returns the engine's deployment store.
func (e *Engine) Deployments() *Deployments {
	return e.deployments
}

// Networks returns every enabled network of a type.
func (e *Engine) Networks(ctx context.Context, networkTypeID string) ([]Network, error) {
	pages := collection.ListAll(e.networks, store.Where{
		"network_type_id": networkTypeID,
		"enabled":         true,
	}, e.pageSize)
	return collection.Collect(ctx, pages)
}

// ForAllNetworks runs op concurrently against every enabled network of a
// type and returns once every call has settled. A failure or panic in one
// network is captured in its Outcome and does not cancel the others. The
// call itself fails only if the networks cannot be resolved.
func ForAllNetworks[R any](ctx context.Context, e *Engine, networkTypeID string, op func(ctx context.Context, n Network) (R, error)) ([]Outcome[R], error) {
	networks, err := e.Networks(ctx, networkTypeID)
	if err != nil {
		return nil, fmt.Errorf("resolving networks of type %s: %w", networkTypeID, err)
	}

	outcomes := make([]Outcome[R], len(networks))
	var wg sync.WaitGroup
	for i, n := range networks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			value, err := runIsolated(ctx, n, op)
			if err != nil {
				err = fmt.Errorf("network %s: %w: %w", n.ID, ErrUpstream, err)
				e.logger.Warn("network operation failed",
					"network_type_id", networkTypeID,
					"network_id", n.ID,
					"error", err,
				)
			}
			e.recorder.ObserveDispatch(networkTypeID, n.ID, err, time.Since(start))
			outcomes[i] = Outcome[R]{Network: n, Value: value, Err: err}
		}()
	}
	wg.Wait()

	return outcomes, nil
}

// runIsolated calls op, turning a panic into an error.
func runIsolated[R any](ctx context.Context, n Network, op func(ctx context.Context, n Network) (R, error)) (value R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in network operation: %v", r)
		}
	}()
	return op(ctx, n)
}

// Failures returns the errors of the failed outcomes.
func Failures[R any](outcomes []Outcome[R]) []error {
	var errs []error
	for _, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errs
}

// MarkStale flags entity as UPDATED on every enabled network of a type
// except origin, the network the change came from. An empty origin flags
// every network. Missing deployment records are created.
func (e *Engine) MarkStale(ctx context.Context, networkTypeID string, entity EntityRef, origin string) ([]Outcome[Deployment], error) {
	return ForAllNetworks(ctx, e, networkTypeID, func(ctx context.Context, n Network) (Deployment, error) {
		if origin != "" && n.ID == origin {
			return Deployment{}, nil
		}
		return e.deployments.Set(ctx, n.ID, entity, StatusUpdated)
	})
}

// MarkCurrent records that a network holds entity's latest state.
func (e *Engine) MarkCurrent(ctx context.Context, n Network, entity EntityRef) (Deployment, error) {
	return e.deployments.Set(ctx, n.ID, entity, StatusCurrent)
}

// ListStale pages through the deployments awaiting reconciliation.
func (e *Engine) ListStale(pageSize int) *collection.Pages[Deployment] {
	if pageSize < 1 {
		pageSize = e.pageSize
	}
	return e.deployments.Stale(pageSize)
}
