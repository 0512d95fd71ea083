package router

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/avaroute/internal/observability"
	"github.com/vyrodovalexey/avaroute/internal/pattern"
)

// Call is a dispatch frame. Frames of nested dispatches link to their
// parent, forming the active call stack of a request.
type Call struct {
	// ID uniquely identifies the frame.
	ID uuid.UUID

	// Identity is the dispatched identity or closure name.
	Identity string

	// Handle is set when a closure is dispatched.
	Handle HandleID

	// Params are the request parameters left after resolution.
	Params map[string]string

	// Data is shared by every stage of the dispatch.
	Data Data

	// Fallback is true when the handler serves the method through a
	// catch-all.
	Fallback bool

	router *Router
	parent *Call

	mu    sync.Mutex
	hooks []*Hook
}

// Parent returns the calling frame, or nil for the outermost dispatch.
func (c *Call) Parent() *Call {
	return c.parent
}

// Depth returns the number of frames below c.
func (c *Call) Depth() int {
	depth := 0
	for p := c.parent; p != nil; p = p.parent {
		depth++
	}
	return depth
}

// Method returns the method segment of the identity.
func (c *Call) Method() string {
	_, _, method := pattern.SplitIdentity(c.Identity, c.router.separator)
	return method
}

// Hook registers hooks scoped to this call. They apply to nested
// dispatches and to hooks collected after instantiation.
func (c *Call) Hook(stage, routePattern string, targets ...string) error {
	hooks, err := c.router.buildHooks(stage, routePattern, len(targets), func(i int, h *Hook) {
		h.Target = targets[i]
	})
	if err != nil {
		return err
	}
	c.addHooks(hooks)
	return nil
}

// HookFunc is like Hook with function targets.
func (c *Call) HookFunc(stage, routePattern string, fns ...HookFunc) error {
	hooks, err := c.router.buildHooks(stage, routePattern, len(fns), func(i int, h *Hook) {
		h.Func = fns[i]
	})
	if err != nil {
		return err
	}
	c.addHooks(hooks)
	return nil
}

func (c *Call) addHooks(hooks []*Hook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, hooks...)
}

// scopedHooks returns the hooks scoped to c and its ancestors.
func (c *Call) scopedHooks() []*Hook {
	var out []*Hook
	for cur := c; cur != nil; cur = cur.parent {
		cur.mu.Lock()
		out = append(out, cur.hooks...)
		cur.mu.Unlock()
	}
	return out
}

type callKey struct{}

// ActiveCall returns the innermost call in ctx, or nil.
func ActiveCall(ctx context.Context) *Call {
	if ctx == nil {
		return nil
	}
	call, _ := ctx.Value(callKey{}).(*Call)
	return call
}

func contextWithCall(ctx context.Context, call *Call) context.Context {
	return context.WithValue(ctx, callKey{}, call)
}

// DispatchOption configures a single dispatch.
type DispatchOption func(*Call)

// WithParams sets the request parameters of the call.
func WithParams(params map[string]string) DispatchOption {
	return func(c *Call) {
		c.Params = params
	}
}

// Dispatch runs target through the hook lifecycle and returns the call
// data. target is an identity template formatted against the active call
// ("%c::index") or a closure name. A target the registry refuses yields a
// *NotInvokableError and no hook runs.
func (r *Router) Dispatch(ctx context.Context, target string, data Data, opts ...DispatchOption) (Data, error) {
	identity := r.Format(ctx, target, false)

	call := &Call{
		ID:       uuid.New(),
		Identity: identity,
		Params:   map[string]string{},
		Data:     data,
		router:   r,
		parent:   ActiveCall(ctx),
	}
	if call.Data == nil {
		call.Data = Data{}
	}
	for _, opt := range opts {
		opt(call)
	}

	if handle, ok := r.closure(identity); ok {
		call.Handle = handle
	} else {
		capability, err := r.checkIdentity(identity)
		if err != nil {
			r.metrics.dispatches.WithLabelValues("refused").Inc()
			return nil, err
		}
		call.Fallback = capability.Fallback
	}

	ctx, span := r.tracer.Start(ctx, "router.Dispatch",
		trace.WithAttributes(
			attribute.String("router.identity", identity),
			attribute.Int("router.depth", call.Depth()),
		),
	)
	defer span.End()

	ctx = contextWithCall(ctx, call)
	ctx = observability.ContextWithHandler(ctx, identity)
	start := time.Now()

	err := r.run(ctx, call)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		if _, isSignal := signalOf(err); isSignal {
			outcome = "signal"
		} else {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	r.metrics.dispatches.WithLabelValues(outcome).Inc()
	r.metrics.dispatchDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	if err != nil {
		return nil, err
	}
	return call.Data, nil
}

// Invokable reports whether target can be dispatched.
func (r *Router) Invokable(target string) bool {
	if _, ok := r.closure(target); ok {
		return true
	}
	_, err := r.checkIdentity(target)
	return err == nil
}

func (r *Router) identityRegex() *regexp.Regexp {
	return regexp.MustCompile(`^[A-Za-z0-9_:` + regexp.QuoteMeta(r.separator) + `]+$`)
}

func (r *Router) checkIdentity(identity string) (Capability, error) {
	if !r.identityPattern.MatchString(identity) {
		return Capability{}, &NotInvokableError{Identity: identity, Reason: "invalid characters"}
	}
	capability := r.registry.Check(identity)
	if !capability.Invokable {
		return capability, &NotInvokableError{Identity: identity, Reason: capability.Reason}
	}
	return capability, nil
}

// run drives the lifecycle of call. The frame lives in ctx, so it is
// dropped on every return path.
func (r *Router) run(ctx context.Context, call *Call) error {
	hooks := r.collectHooks(call.Identity, append(r.globalHooks(), call.parentScopedHooks()...))

	var instance Instance
	if call.Handle == 0 {
		var err error
		instance, err = r.registry.Instantiate(ctx, call.Identity, call)
		if err != nil {
			return fmt.Errorf("instantiate %s: %w", call.Identity, err)
		}
	}
	hooks.merge(r.collectHooks(call.Identity, call.ownHooks()))

	if err := r.runStage(ctx, call, hooks, StageInit); err != nil {
		return err
	}

	if err := r.runStage(ctx, call, hooks, StageBefore); err != nil {
		if err = r.recoverError(ctx, call, hooks, err); err != nil {
			return err
		}
	}

	if err := r.invoke(ctx, call, instance); err != nil {
		if err = r.recoverError(ctx, call, hooks, err); err != nil {
			return err
		}
	}

	if err := r.runStage(ctx, call, hooks, StageAfter); err != nil {
		if err = r.recoverError(ctx, call, hooks, err); err != nil {
			return err
		}
	}

	return r.runStage(ctx, call, hooks, StageFinish)
}

func (r *Router) invoke(ctx context.Context, call *Call, instance Instance) error {
	if call.Handle != 0 {
		r.mu.RLock()
		fn := r.handles[call.Handle]
		r.mu.RUnlock()
		if fn == nil {
			return &NotInvokableError{Identity: call.Identity, Reason: "closure removed"}
		}
		return fn(ctx, call)
	}
	return instance.Invoke(ctx, call.Method(), call)
}

func (c *Call) parentScopedHooks() []*Hook {
	if c.parent == nil {
		return nil
	}
	return c.parent.scopedHooks()
}

func (c *Call) ownHooks() []*Hook {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Hook, len(c.hooks))
	copy(out, c.hooks)
	return out
}

func logDispatchError(ctx context.Context, logger observability.Logger, identity string, err error) {
	logger.WithContext(ctx).Warn("dispatch failed",
		observability.String("identity", identity),
		observability.Strings("kinds", KindChain(err)),
		observability.Error(err),
	)
}
