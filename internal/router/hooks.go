package router

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/vyrodovalexey/avaroute/internal/observability"
	"github.com/vyrodovalexey/avaroute/internal/pattern"
)

// Stage is a dispatch lifecycle stage.
type Stage string

// Lifecycle stages.
const (
	StageInit   Stage = "init"
	StageBefore Stage = "before"
	StageAfter  Stage = "after"
	StageFinish Stage = "finish"

	catchPrefix = "catch:"
)

// CatchStage returns the stage recovering errors of the named kind.
func CatchStage(kind string) Stage {
	return Stage(catchPrefix + kind)
}

// IsCatch reports whether the stage recovers errors.
func (s Stage) IsCatch() bool {
	return strings.HasPrefix(string(s), catchPrefix)
}

var hookPatternSplitRegex = regexp.MustCompile(`\s*,\s*`)

// ParseStage parses a stage name. "catch:Kind" and "catch Kind" both
// select the catch stage for Kind.
func ParseStage(name string) (Stage, error) {
	name = strings.TrimSpace(name)
	switch Stage(strings.ToLower(name)) {
	case StageInit, StageBefore, StageAfter, StageFinish:
		return Stage(strings.ToLower(name)), nil
	}

	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, "catch:") || strings.HasPrefix(lower, "catch ") {
		kind := strings.TrimSpace(name[len("catch "):])
		if kind != "" {
			return CatchStage(kind), nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrInvalidStage, name)
}

// Hook is an interceptor bound to a lifecycle stage and the family of
// identities matched by Pattern.
type Hook struct {
	Stage   Stage
	Pattern *pattern.Callback

	// Target is an identity template formatted against the active call
	// and resolved through the registry. Unused when Func is set.
	Target string
	Func   HookFunc
}

func (h *Hook) String() string {
	if h.Func != nil {
		return fmt.Sprintf("%s %s -> func", h.Stage, h.Pattern)
	}
	return fmt.Sprintf("%s %s -> %s", h.Stage, h.Pattern, h.Target)
}

// Hook registers global hooks running targets at stage for every identity
// matched by routePattern. routePattern is a comma separated list of
// identity templates; a template without "::" applies to every class
// ("show" is "*::show") unless it names a closure.
func (r *Router) Hook(stage, routePattern string, targets ...string) error {
	hooks, err := r.buildHooks(stage, routePattern, len(targets), func(i int, h *Hook) {
		h.Target = targets[i]
	})
	if err != nil {
		return err
	}
	r.addGlobalHooks(hooks)
	return nil
}

// HookFunc is like Hook with function targets.
func (r *Router) HookFunc(stage, routePattern string, fns ...HookFunc) error {
	hooks, err := r.buildHooks(stage, routePattern, len(fns), func(i int, h *Hook) {
		h.Func = fns[i]
	})
	if err != nil {
		return err
	}
	r.addGlobalHooks(hooks)
	return nil
}

// HookScoped registers hooks on the call active in ctx. They apply to
// dispatches nested in that call and are discarded when it returns.
// Without an active call the hooks are registered globally.
func (r *Router) HookScoped(ctx context.Context, stage, routePattern string, targets ...string) error {
	call := ActiveCall(ctx)
	if call == nil {
		return r.Hook(stage, routePattern, targets...)
	}
	return call.Hook(stage, routePattern, targets...)
}

func (r *Router) addGlobalHooks(hooks []*Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, hooks...)

	for _, h := range hooks {
		r.logger.Debug("hook registered", observability.String("hook", h.String()))
	}
}

func (r *Router) buildHooks(stageName, routePattern string, n int, fill func(int, *Hook)) ([]*Hook, error) {
	stage, err := ParseStage(stageName)
	if err != nil {
		return nil, &RegistrationError{Map: stageName, Callback: routePattern, Cause: err}
	}

	var hooks []*Hook
	for _, tpl := range hookPatternSplitRegex.Split(strings.TrimSpace(routePattern), -1) {
		if tpl == "" {
			continue
		}
		if !strings.Contains(tpl, "::") {
			if _, ok := r.closure(tpl); !ok {
				tpl = "*::" + tpl
			}
		}

		cb, err := pattern.ParseCallback(tpl, r.separator)
		if err != nil {
			return nil, &RegistrationError{Map: stageName, Callback: tpl, Cause: err}
		}

		for i := 0; i < n; i++ {
			h := &Hook{Stage: stage, Pattern: cb}
			fill(i, h)
			hooks = append(hooks, h)
		}
	}

	return hooks, nil
}

// hookSet groups hooks by stage in registration order.
type hookSet map[Stage][]*Hook

func (s hookSet) merge(other hookSet) {
	for stage, hooks := range other {
		s[stage] = append(s[stage], hooks...)
	}
}

// collectHooks filters hooks to those applying to identity.
func (r *Router) collectHooks(identity string, hooks []*Hook) hookSet {
	set := make(hookSet)
	for _, h := range hooks {
		if h.Pattern.Accepts(identity, r.registry.IsSubclass) {
			set[h.Stage] = append(set[h.Stage], h)
		}
	}
	return set
}

// globalHooks returns a snapshot of the global hooks.
func (r *Router) globalHooks() []*Hook {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Hook, len(r.hooks))
	copy(out, r.hooks)
	return out
}

// hookTarget resolves the function run for h within call. Identity
// targets are looked up in the registry first, then among closures.
func (r *Router) hookTarget(ctx context.Context, h *Hook) (HookFunc, bool) {
	if h.Func != nil {
		return h.Func, true
	}

	target := r.Format(ctx, h.Target, false)
	if fn, ok := r.registry.Lookup(target); ok {
		return fn, true
	}
	if handle, ok := r.closure(target); ok {
		r.mu.RLock()
		fn := r.handles[handle]
		r.mu.RUnlock()
		if fn != nil {
			return func(ctx context.Context, call *Call, _ error) error {
				return fn(ctx, call)
			}, true
		}
	}

	r.logger.Debug("hook target not found",
		observability.String("stage", string(h.Stage)),
		observability.String("target", target),
	)
	return nil, false
}

// runStage runs the hooks of stage in order, stopping at the first error.
func (r *Router) runStage(ctx context.Context, call *Call, hooks hookSet, stage Stage) error {
	for _, h := range hooks[stage] {
		fn, ok := r.hookTarget(ctx, h)
		if !ok {
			continue
		}
		r.metrics.hookInvocations.WithLabelValues(string(stage)).Inc()
		if err := fn(ctx, call, nil); err != nil {
			return err
		}
	}
	return nil
}

// recoverError offers err to the catch hooks of its kind chain, most
// specific first. The first kind with at least one runnable hook consumes
// the error; the hooks' own errors are returned. Unrecovered errors are
// returned unchanged.
func (r *Router) recoverError(ctx context.Context, call *Call, hooks hookSet, err error) error {
	for _, kind := range KindChain(err) {
		stage := CatchStage(kind)
		called := false

		for _, h := range hooks[stage] {
			fn, ok := r.hookTarget(ctx, h)
			if !ok {
				continue
			}
			called = true
			r.metrics.hookInvocations.WithLabelValues(catchPrefix + "*").Inc()
			if hookErr := fn(ctx, call, err); hookErr != nil {
				return hookErr
			}
		}

		if called {
			r.logger.Debug("error recovered",
				observability.String("identity", call.Identity),
				observability.String("kind", kind),
				observability.Error(err),
			)
			return nil
		}
	}
	return err
}
