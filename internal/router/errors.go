package router

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors.
var (
	// ErrInvalidRouteMap indicates a route map that cannot be parsed.
	ErrInvalidRouteMap = errors.New("invalid route map")

	// ErrInvalidStage indicates an unknown hook stage.
	ErrInvalidStage = errors.New("invalid hook stage")

	// ErrInvalidName indicates a closure name that cannot be used as an identity.
	ErrInvalidName = errors.New("invalid closure name")

	// ErrDuplicateName indicates a closure name that is already registered.
	ErrDuplicateName = errors.New("duplicate closure name")

	// ErrNotInvokable indicates an identity the registry refuses to invoke.
	ErrNotInvokable = errors.New("handler not invokable")

	// ErrNoRoute indicates that no linkable route serves an identity.
	ErrNoRoute = errors.New("no route for identity")

	// ErrMissingParams indicates that a link lacks required parameters.
	ErrMissingParams = errors.New("missing link parameters")
)

// Kind is a node in an error kind hierarchy. Catch hooks are registered
// per kind name and an error is offered to its kind first, then to each
// ancestor in turn.
type Kind struct {
	name   string
	parent *Kind
}

// NewKind creates a kind. A nil parent makes the kind a child of BaseKind.
func NewKind(name string, parent *Kind) *Kind {
	if parent == nil {
		parent = BaseKind
	}
	return &Kind{name: name, parent: parent}
}

// Name returns the kind name.
func (k *Kind) Name() string {
	return k.name
}

// Parent returns the parent kind, or nil for a root.
func (k *Kind) Parent() *Kind {
	return k.parent
}

// Chain returns the kind name followed by its ancestors, most specific first.
func (k *Kind) Chain() []string {
	var chain []string
	for cur := k; cur != nil; cur = cur.parent {
		chain = append(chain, cur.name)
	}
	return chain
}

// IsA reports whether k is other or descends from it.
func (k *Kind) IsA(other *Kind) bool {
	for cur := k; cur != nil; cur = cur.parent {
		if cur == other {
			return true
		}
	}
	return false
}

// New returns an error of this kind.
func (k *Kind) New(message string) *KindError {
	return &KindError{Kind: k, Message: message}
}

// Errorf returns an error of this kind with a formatted message. A %w verb
// sets the cause.
func (k *Kind) Errorf(format string, args ...any) *KindError {
	err := fmt.Errorf(format, args...)
	return &KindError{Kind: k, Message: err.Error(), Cause: errors.Unwrap(err)}
}

// Wrap returns an error of this kind wrapping err.
func (k *Kind) Wrap(err error) *KindError {
	return &KindError{Kind: k, Message: err.Error(), Cause: err}
}

// Roots of the two kind hierarchies. Control signals live outside the
// error hierarchy so that a catch hook for "error" never consumes them.
var (
	BaseKind   = &Kind{name: "error"}
	signalKind = &Kind{name: "signal"}
)

// Kinded is implemented by errors that belong to a kind hierarchy.
type Kinded interface {
	error
	ErrorKind() *Kind
}

// KindError is an error tagged with a kind.
type KindError struct {
	Kind    *Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *KindError) Error() string {
	return e.Kind.name + ": " + e.Message
}

// Unwrap returns the underlying error.
func (e *KindError) Unwrap() error {
	return e.Cause
}

// ErrorKind returns the kind of the error.
func (e *KindError) ErrorKind() *Kind {
	return e.Kind
}

// KindChain returns the kind chain of err, most specific first. Errors
// without a kind belong to BaseKind.
func KindChain(err error) []string {
	var k Kinded
	if errors.As(err, &k) && k.ErrorKind() != nil {
		return k.ErrorKind().Chain()
	}
	return BaseKind.Chain()
}

// IsKind reports whether err is of kind or one of its descendants.
func IsKind(err error, kind *Kind) bool {
	var k Kinded
	if errors.As(err, &k) && k.ErrorKind() != nil {
		return k.ErrorKind().IsA(kind)
	}
	return kind == BaseKind
}

// Signal kinds.
var (
	KindContinue      = &Kind{name: "continue", parent: signalKind}
	KindNotFound      = &Kind{name: "not-found", parent: signalKind}
	KindForbidden     = &Kind{name: "forbidden", parent: signalKind}
	KindNotAuthorized = &Kind{name: "not-authorized", parent: signalKind}
)

// Signal is a control signal consumed by Serve.
type Signal struct {
	kind *Kind
}

// Error implements the error interface.
func (s *Signal) Error() string {
	return "signal: " + s.kind.name
}

// ErrorKind returns the kind of the signal.
func (s *Signal) ErrorKind() *Kind {
	return s.kind
}

// Control signals. Return them, optionally wrapped, from a handler or hook.
var (
	ErrContinue      error = &Signal{kind: KindContinue}
	ErrNotFound      error = &Signal{kind: KindNotFound}
	ErrForbidden     error = &Signal{kind: KindForbidden}
	ErrNotAuthorized error = &Signal{kind: KindNotAuthorized}
)

func signalOf(err error) (*Signal, bool) {
	var s *Signal
	if errors.As(err, &s) {
		return s, true
	}
	return nil, false
}

// RegistrationError describes a route or hook that failed to register.
type RegistrationError struct {
	Map      string
	Callback string
	Cause    error
}

// Error implements the error interface.
func (e *RegistrationError) Error() string {
	return fmt.Sprintf("failed to register %q -> %q: %v", e.Map, e.Callback, e.Cause)
}

// Unwrap returns the underlying error.
func (e *RegistrationError) Unwrap() error {
	return e.Cause
}

// NotInvokableError is returned by Dispatch when the registry refuses an identity.
type NotInvokableError struct {
	Identity string
	Reason   string
}

// Error implements the error interface.
func (e *NotInvokableError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("handler %q is not invokable", e.Identity)
	}
	return fmt.Sprintf("handler %q is not invokable: %s", e.Identity, e.Reason)
}

// Is checks if the error matches the target.
func (e *NotInvokableError) Is(target error) bool {
	if target == ErrNotInvokable {
		return true
	}
	_, ok := target.(*NotInvokableError)
	return ok
}

// LinkError describes a link that could not be built.
type LinkError struct {
	Key     string
	Missing []string
	Cause   error
}

// Error implements the error interface.
func (e *LinkError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("link %q: %v: %s", e.Key, e.Cause, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("link %q: %v", e.Key, e.Cause)
}

// Unwrap returns the underlying error.
func (e *LinkError) Unwrap() error {
	return e.Cause
}
