package router

import (
	"context"
	"strings"
	"sync"
)

// fakeRegistry is a Registry over plain maps, keyed by full identity.
type fakeRegistry struct {
	mu        sync.Mutex
	methods   map[string]HandlerFunc
	fallbacks map[string]HandlerFunc
	parents   map[string]string
	funcs     map[string]HookFunc
	ctors     map[string]func(ctx context.Context, call *Call) error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		methods:   make(map[string]HandlerFunc),
		fallbacks: make(map[string]HandlerFunc),
		parents:   make(map[string]string),
		funcs:     make(map[string]HookFunc),
		ctors:     make(map[string]func(ctx context.Context, call *Call) error),
	}
}

func (f *fakeRegistry) handle(identity string, fn HandlerFunc) *fakeRegistry {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.methods[identity] = fn
	return f
}

func (f *fakeRegistry) classOf(identity string) string {
	class, _, _ := strings.Cut(identity, "::")
	return class
}

func (f *fakeRegistry) Check(identity string) Capability {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.methods[identity]; ok {
		return Capability{Invokable: true}
	}
	if _, ok := f.fallbacks[f.classOf(identity)]; ok {
		return Capability{Invokable: true, Fallback: true}
	}
	return Capability{Reason: "unknown handler"}
}

func (f *fakeRegistry) Instantiate(ctx context.Context, identity string, call *Call) (Instance, error) {
	f.mu.Lock()
	ctor := f.ctors[f.classOf(identity)]
	f.mu.Unlock()
	if ctor != nil {
		if err := ctor(ctx, call); err != nil {
			return nil, err
		}
	}
	return fakeInstance{registry: f, identity: identity}, nil
}

func (f *fakeRegistry) Lookup(identity string) (HookFunc, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn, ok := f.funcs[identity]
	return fn, ok
}

func (f *fakeRegistry) IsSubclass(class, parent string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for cur := f.parents[class]; cur != ""; cur = f.parents[cur] {
		short := cur
		if i := strings.LastIndex(cur, `\`); i >= 0 {
			short = cur[i+1:]
		}
		if cur == parent || short == parent {
			return true
		}
	}
	return false
}

type fakeInstance struct {
	registry *fakeRegistry
	identity string
}

func (i fakeInstance) Invoke(ctx context.Context, _ string, call *Call) error {
	i.registry.mu.Lock()
	fn, ok := i.registry.methods[i.identity]
	if !ok {
		fn = i.registry.fallbacks[i.registry.classOf(i.identity)]
	}
	i.registry.mu.Unlock()
	return fn(ctx, call)
}

// recorder collects events from handlers and hooks.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return nil
	}
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) handler(event string) HandlerFunc {
	return func(context.Context, *Call) error {
		r.add(event)
		return nil
	}
}

func (r *recorder) hook(event string) HookFunc {
	return func(context.Context, *Call, error) error {
		r.add(event)
		return nil
	}
}

func failWith(err error) HandlerFunc {
	return func(context.Context, *Call) error {
		return err
	}
}
