package router

import "context"

// Data is the payload shared by every stage of a dispatch. Handlers and
// hooks receive the same map, so mutations are visible to later stages.
type Data map[string]any

// Clone returns a shallow copy of d.
func (d Data) Clone() Data {
	out := make(Data, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// HandlerFunc is a closure route handler.
type HandlerFunc func(ctx context.Context, call *Call) error

// HookFunc is a hook target. cause is the error being recovered for
// catch hooks and nil otherwise.
type HookFunc func(ctx context.Context, call *Call, cause error) error

// Capability is the registry's answer to whether an identity may be invoked.
type Capability struct {
	// Invokable is true when the identity may be dispatched.
	Invokable bool

	// Reason explains a refusal.
	Reason string

	// Fallback is true when the class has no such method but accepts any
	// method name through a catch-all handler.
	Fallback bool
}

// Instance is an instantiated handler class.
type Instance interface {
	// Invoke calls method on the instance.
	Invoke(ctx context.Context, method string, call *Call) error
}

// Registry resolves handler identities. The router never inspects handler
// code itself; every question about a class goes through the registry.
type Registry interface {
	// Check reports whether identity may be dispatched.
	Check(identity string) Capability

	// Instantiate creates the handler instance for identity. It may scope
	// hooks on call.
	Instantiate(ctx context.Context, identity string, call *Call) (Instance, error)

	// Lookup returns a hook target registered under identity.
	Lookup(identity string) (HookFunc, bool)

	// IsSubclass reports whether class inherits from parent.
	IsSubclass(class, parent string) bool
}

// emptyRegistry refuses every identity, leaving only closure routes usable.
type emptyRegistry struct{}

func (emptyRegistry) Check(string) Capability {
	return Capability{Reason: "no registry configured"}
}

func (emptyRegistry) Instantiate(_ context.Context, identity string, _ *Call) (Instance, error) {
	return nil, &NotInvokableError{Identity: identity, Reason: "no registry configured"}
}

func (emptyRegistry) Lookup(string) (HookFunc, bool) {
	return nil, false
}

func (emptyRegistry) IsSubclass(string, string) bool {
	return false
}
