package model

import (
	"context"
	"fmt"
	"maps"
	"slices"
)

// Operation is one entry of a model's table.
type Operation func(ctx context.Context, env *Env, args any) (any, error)

// Ops maps operation names to implementations.
type Ops map[string]Operation

// With returns a copy of ops with every entry of over applied on top.
func (ops Ops) With(over Ops) Ops {
	out := make(Ops, len(ops)+len(over))
	maps.Copy(out, ops)
	maps.Copy(out, over)
	return out
}

// Spec describes a model to Build.
type Spec struct {
	Role string
	Env  Env

	// Public operations are callable through the model.
	Public Ops

	// Private operations are only reachable through Env.Self and take
	// precedence over public operations of the same name there.
	Private Ops
}

// Caller invokes named operations.
type Caller interface {
	Call(ctx context.Context, op string, args any, opts ...CallOption) (any, error)
}

// Model is a role's operation table bound to a shared Env.
type Model struct {
	role string
	env  Env
	ops  Ops
	self *Model
}

// Build creates a model from spec.
func Build(spec Spec) *Model {
	public := &Model{
		role: spec.Role,
		env:  spec.Env,
		ops:  Ops{}.With(spec.Public),
	}
	public.self = public

	if len(spec.Private) > 0 {
		self := &Model{
			role: spec.Role,
			env:  spec.Env,
			ops:  public.ops.With(spec.Private),
		}
		self.self = self
		public.self = self
	}
	return public
}

// Role returns the model's role name.
func (m *Model) Role() string {
	return m.role
}

// Operations returns the public operation names, sorted.
func (m *Model) Operations() []string {
	return slices.Sorted(maps.Keys(m.ops))
}

// Call invokes a public operation.
func (m *Model) Call(ctx context.Context, op string, args any, opts ...CallOption) (any, error) {
	env := m.env
	for _, opt := range opts {
		opt(&env)
	}
	return m.invoke(ctx, op, args, env)
}

func (m *Model) invoke(ctx context.Context, op string, args any, env Env) (any, error) {
	fn, ok := m.ops[op]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownOperation, m.role, op)
	}

	env.self = m.self
	result, err := fn(ctx, &env, args)
	if err != nil {
		if !env.NoTrace && env.Tracer != nil {
			env.Tracer.TraceError(ctx, Trace{Role: m.role, Operation: op, Args: args}, err)
		}
		return nil, err
	}
	return result, nil
}

// Self is a model's self view bound to the Env of the call that produced it.
type Self struct {
	model *Model
	env   Env
}

// Call invokes an operation on the self view, private operations first.
// The caller's Env carries over.
func (s Self) Call(ctx context.Context, op string, args any, opts ...CallOption) (any, error) {
	if s.model == nil {
		return nil, fmt.Errorf("%w: %s (no self view)", ErrUnknownOperation, op)
	}
	env := s.env
	for _, opt := range opts {
		opt(&env)
	}
	return s.model.invoke(ctx, op, args, env)
}

// Op adapts a typed function to an Operation. A nil argument is passed as
// the zero value of A.
func Op[A, R any](fn func(ctx context.Context, env *Env, args A) (R, error)) Operation {
	return func(ctx context.Context, env *Env, args any) (any, error) {
		var a A
		if args != nil {
			typed, ok := args.(A)
			if !ok {
				return nil, fmt.Errorf("%w: want %T, got %T", ErrInvalidArgs, a, args)
			}
			a = typed
		}
		r, err := fn(ctx, env, a)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}

// Call invokes op on c and asserts the result type.
func Call[R any](ctx context.Context, c Caller, op string, args any, opts ...CallOption) (R, error) {
	var zero R
	result, err := c.Call(ctx, op, args, opts...)
	if err != nil {
		return zero, err
	}
	if result == nil {
		return zero, nil
	}
	r, ok := result.(R)
	if !ok {
		return zero, fmt.Errorf("%w: %s returned %T, want %T", ErrUnexpectedResult, op, result, zero)
	}
	return r, nil
}
