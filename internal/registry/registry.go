// Package registry provides an in-memory handler registry for the router.
//
// Handler classes are declared as values rather than discovered: a Class
// names its parent, an optional constructor, its instance methods, static
// hook targets and an optional catch-all method. A class is only
// dispatched when it, or one of its ancestors, matches an authorization
// pattern.
package registry

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/vyrodovalexey/avaroute/internal/observability"
	"github.com/vyrodovalexey/avaroute/internal/pattern"
	"github.com/vyrodovalexey/avaroute/internal/router"
)

// Sentinel errors.
var (
	// ErrInvalidClass indicates a class that cannot be registered.
	ErrInvalidClass = errors.New("invalid class")

	// ErrUnknownClass indicates a class that is neither registered nor loadable.
	ErrUnknownClass = errors.New("unknown class")
)

// MethodFunc is an instance method. self is the value returned by the
// class constructor.
type MethodFunc func(ctx context.Context, self any, call *router.Call) error

// Constructor creates the instance of a class. It may register hooks
// scoped to the call.
type Constructor func(ctx context.Context, call *router.Call) (any, error)

// Class describes a handler class.
type Class struct {
	// Name is the namespace qualified class name, e.g. `Admin\Users`.
	Name string

	// Parent is the qualified name of the parent class.
	Parent string

	// New creates instances. When nil the parent constructor is used, and
	// without any constructor the instance is nil.
	New Constructor

	// Methods are the dispatchable instance methods.
	Methods map[string]MethodFunc

	// Statics are hook targets addressed as "Class::name".
	Statics map[string]router.HookFunc

	// Fallback serves any method without an entry in Methods.
	Fallback MethodFunc
}

// Loader returns the class named name when it is not registered yet.
type Loader func(name string) (*Class, bool)

var classNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Registry is a router.Registry backed by declared classes.
type Registry struct {
	mu         sync.RWMutex
	classes    map[string]*Class
	authorized []*regexp.Regexp
	funcs      map[string]router.HookFunc

	loader    Loader
	separator string
	logger    observability.Logger
}

var _ router.Registry = (*Registry)(nil)

// Option is a functional option for configuring a Registry.
type Option func(*Registry)

// WithSeparator sets the namespace separator. It must match the router's.
func WithSeparator(sep string) Option {
	return func(r *Registry) {
		r.separator = sep
	}
}

// WithLoader sets the loader consulted for unknown classes.
func WithLoader(loader Loader) Option {
	return func(r *Registry) {
		r.loader = loader
	}
}

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		classes:   make(map[string]*Class),
		funcs:     make(map[string]router.HookFunc),
		separator: pattern.DefaultSeparator,
		logger:    observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a class. A class registered twice replaces the first.
func (r *Registry) Register(class *Class) error {
	if err := r.validate(class); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.classes[class.Name] = class

	r.logger.Debug("class registered",
		observability.String("class", class.Name),
		observability.String("parent", class.Parent),
		observability.Int("methods", len(class.Methods)),
	)
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(classes ...*Class) {
	for _, class := range classes {
		if err := r.Register(class); err != nil {
			panic(err)
		}
	}
}

func (r *Registry) validate(class *Class) error {
	if class == nil || class.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidClass)
	}
	for _, part := range strings.Split(class.Name, r.separator) {
		if !classNameRegex.MatchString(part) {
			return fmt.Errorf("%w: %q has an invalid segment %q", ErrInvalidClass, class.Name, part)
		}
	}
	if class.Parent == class.Name {
		return fmt.Errorf("%w: %q is its own parent", ErrInvalidClass, class.Name)
	}
	return nil
}

// Authorize allows classes matching pattern, and their subclasses, to be
// dispatched. "*" in pattern matches any sequence of characters; matching
// ignores case and a leading separator.
func (r *Registry) Authorize(patterns ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range patterns {
		p = strings.TrimPrefix(strings.TrimSpace(p), r.separator)
		if p == "" {
			continue
		}
		parts := strings.Split(p, "*")
		for i, part := range parts {
			parts[i] = regexp.QuoteMeta(part)
		}
		r.authorized = append(r.authorized, regexp.MustCompile(`(?i)^`+strings.Join(parts, ".+")+`$`))
	}
}

// RegisterFunc registers a hook target under a plain name.
func (r *Registry) RegisterFunc(name string, fn router.HookFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

// class returns a registered or loaded class.
func (r *Registry) class(name string) (*Class, bool) {
	name = strings.TrimPrefix(name, r.separator)

	r.mu.RLock()
	class, ok := r.classes[name]
	loader := r.loader
	r.mu.RUnlock()
	if ok || loader == nil {
		return class, ok
	}

	class, ok = loader(name)
	if !ok || class == nil {
		return nil, false
	}
	if class.Name == "" {
		class.Name = name
	}
	if err := r.Register(class); err != nil {
		r.logger.Warn("loaded class rejected",
			observability.String("class", name),
			observability.Error(err),
		)
		return nil, false
	}
	r.logger.Debug("class loaded", observability.String("class", name))
	return class, true
}

// ancestry returns class followed by its registered ancestors.
func (r *Registry) ancestry(class *Class) []*Class {
	chain := []*Class{class}
	seen := map[string]bool{class.Name: true}
	for cur := class; cur.Parent != ""; {
		parent, ok := r.class(cur.Parent)
		if !ok || seen[parent.Name] {
			break
		}
		seen[parent.Name] = true
		chain = append(chain, parent)
		cur = parent
	}
	return chain
}

func (r *Registry) isAuthorized(chain []*Class) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, class := range chain {
		for _, re := range r.authorized {
			if re.MatchString(class.Name) {
				return true
			}
		}
	}
	return false
}

// Check reports whether identity may be dispatched.
func (r *Registry) Check(identity string) router.Capability {
	namespace, short, method := pattern.SplitIdentity(identity, r.separator)
	if short == "" {
		return router.Capability{Reason: "identity has no class"}
	}
	if strings.HasPrefix(method, "__") {
		return router.Capability{Reason: "reserved method name"}
	}

	class, ok := r.class(pattern.JoinClass(namespace, short, r.separator))
	if !ok {
		return router.Capability{Reason: "unknown class"}
	}

	chain := r.ancestry(class)
	if !r.isAuthorized(chain) {
		return router.Capability{Reason: "class not authorized"}
	}

	if _, ok := findMethod(chain, method); ok {
		return router.Capability{Invokable: true}
	}
	if findFallback(chain) != nil {
		return router.Capability{Invokable: true, Fallback: true}
	}
	return router.Capability{Reason: "unknown method"}
}

func findMethod(chain []*Class, method string) (MethodFunc, bool) {
	for _, class := range chain {
		if fn, ok := class.Methods[method]; ok && fn != nil {
			return fn, true
		}
	}
	return nil, false
}

func findFallback(chain []*Class) MethodFunc {
	for _, class := range chain {
		if class.Fallback != nil {
			return class.Fallback
		}
	}
	return nil
}

// Instantiate creates the instance serving identity.
func (r *Registry) Instantiate(ctx context.Context, identity string, call *router.Call) (router.Instance, error) {
	namespace, short, _ := pattern.SplitIdentity(identity, r.separator)
	class, ok := r.class(pattern.JoinClass(namespace, short, r.separator))
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClass, identity)
	}

	chain := r.ancestry(class)
	inst := &instance{chain: chain}

	for _, c := range chain {
		if c.New == nil {
			continue
		}
		self, err := c.New(ctx, call)
		if err != nil {
			return nil, err
		}
		inst.self = self
		break
	}

	return inst, nil
}

// Lookup returns the hook target registered under identity: a function
// registered with RegisterFunc, or a static of a class or its ancestors.
func (r *Registry) Lookup(identity string) (router.HookFunc, bool) {
	r.mu.RLock()
	fn, ok := r.funcs[identity]
	r.mu.RUnlock()
	if ok {
		return fn, true
	}

	namespace, short, method := pattern.SplitIdentity(identity, r.separator)
	if short == "" {
		return nil, false
	}
	class, ok := r.class(pattern.JoinClass(namespace, short, r.separator))
	if !ok {
		return nil, false
	}
	for _, c := range r.ancestry(class) {
		if fn, ok := c.Statics[method]; ok && fn != nil {
			return fn, true
		}
	}
	return nil, false
}

// IsSubclass reports whether class strictly inherits from parent. parent
// may be qualified or a bare class name.
func (r *Registry) IsSubclass(class, parent string) bool {
	c, ok := r.class(class)
	if !ok {
		return false
	}
	parent = strings.TrimPrefix(parent, r.separator)
	for _, ancestor := range r.ancestry(c)[1:] {
		if ancestor.Name == parent || shortName(ancestor.Name, r.separator) == parent {
			return true
		}
	}
	return false
}

func shortName(name, sep string) string {
	if i := strings.LastIndex(name, sep); i >= 0 {
		return name[i+len(sep):]
	}
	return name
}

// instance is an instantiated class.
type instance struct {
	chain []*Class
	self  any
}

// Invoke calls method, falling back to the catch-all method.
func (i *instance) Invoke(ctx context.Context, method string, call *router.Call) error {
	if fn, ok := findMethod(i.chain, method); ok {
		return fn(ctx, i.self, call)
	}
	if fb := findFallback(i.chain); fb != nil {
		return fb(ctx, i.self, call)
	}
	return &router.NotInvokableError{Identity: call.Identity, Reason: "unknown method"}
}
