package router

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/avaroute/internal/observability"
)

// Status is the result class of Serve.
type Status int

// Serve statuses.
const (
	StatusDispatched Status = iota
	StatusNotFound
	StatusForbidden
	StatusNotAuthorized
	StatusRedirect
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusDispatched:
		return "dispatched"
	case StatusNotFound:
		return "not-found"
	case StatusForbidden:
		return "forbidden"
	case StatusNotAuthorized:
		return "not-authorized"
	case StatusRedirect:
		return "redirect"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

var kindStatus = map[*Kind]Status{
	KindNotFound:      StatusNotFound,
	KindForbidden:     StatusForbidden,
	KindNotAuthorized: StatusNotAuthorized,
}

// Outcome describes how Serve handled a request.
type Outcome struct {
	Status Status

	// Identity is the dispatched identity, or the fallback identity for
	// terminal signals.
	Identity string
	Params   map[string]string
	Data     Data

	// Location and Permanent are set for redirects.
	Location  string
	Permanent bool

	// Handled is false when a terminal signal had no dispatchable
	// fallback and the host must render its default page.
	Handled bool
}

// Serve resolves req and dispatches the first invokable match. Handlers
// returning ErrContinue pass the request to the next matching route;
// ErrNotFound, ErrForbidden and ErrNotAuthorized end the loop with the
// fallback configured for them. Other errors are returned.
func (r *Router) Serve(ctx context.Context, req Request) (*Outcome, error) {
	ctx, span := r.tracer.Start(ctx, "router.Serve",
		trace.WithAttributes(attribute.String("http.path", req.Path)),
	)
	defer span.End()

	if r.trailingSlashRedirect && len(req.Path) > 1 && strings.HasSuffix(req.Path, "/") {
		location := strings.TrimRight(req.Path, "/")
		if location == "" {
			location = "/"
		}
		if req.RawQuery != "" {
			location += "?" + req.RawQuery
		}
		return r.finish(span, &Outcome{Status: StatusRedirect, Location: location, Handled: true}, nil)
	}

	offset := 0
	for {
		res, index := r.Resolve(req, offset)
		if res == nil {
			outcome, err := r.terminate(ctx, KindNotFound)
			return r.finish(span, outcome, err)
		}
		offset = index + 1

		if res.Handle == 0 && !r.Invokable(res.Identity) {
			r.logger.Debug("skipping route with uninvokable identity",
				observability.String("identity", res.Identity),
				observability.Int("index", index),
			)
			continue
		}

		if r.canonicalRedirect && res.Linkable {
			if location, ok := r.canonicalLocation(ctx, req, res); ok {
				return r.finish(span, &Outcome{
					Status:    StatusRedirect,
					Identity:  res.Identity,
					Location:  location,
					Permanent: r.permanentRedirect,
					Handled:   true,
				}, nil)
			}
		}

		data, err := r.Dispatch(ctx, res.Identity, res.Data, WithParams(res.Params))
		if err == nil {
			span.SetAttributes(attribute.String("router.identity", res.Identity))
			return r.finish(span, &Outcome{
				Status:   StatusDispatched,
				Identity: res.Identity,
				Params:   res.Params,
				Data:     data,
				Handled:  true,
			}, nil)
		}

		if sig, ok := signalOf(err); ok {
			r.metrics.signals.WithLabelValues(sig.kind.name).Inc()
			if sig.kind == KindContinue {
				continue
			}
			outcome, err := r.terminate(ctx, sig.kind)
			return r.finish(span, outcome, err)
		}

		logDispatchError(ctx, r.logger, res.Identity, err)
		return r.finish(span, nil, fmt.Errorf("serve %s: %w", res.Identity, err))
	}
}

func (r *Router) finish(span trace.Span, outcome *Outcome, err error) (*Outcome, error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return outcome, err
	}
	span.SetAttributes(attribute.String("router.status", outcome.Status.String()))
	return outcome, nil
}

// terminate dispatches the fallback configured for a terminal signal.
func (r *Router) terminate(ctx context.Context, kind *Kind) (*Outcome, error) {
	outcome := &Outcome{Status: kindStatus[kind]}

	target := r.Fallback(kind)
	if target == "" {
		return outcome, nil
	}
	outcome.Identity = target

	if !r.Invokable(r.Format(ctx, target, false)) {
		r.logger.Warn("fallback is not invokable",
			observability.String("kind", kind.name),
			observability.String("target", target),
		)
		return outcome, nil
	}

	data, err := r.Dispatch(ctx, target, Data{})
	if err != nil {
		logDispatchError(ctx, r.logger, target, err)
		return outcome, fmt.Errorf("fallback %s: %w", target, err)
	}
	outcome.Data = data
	outcome.Handled = true
	return outcome, nil
}

// canonicalLocation returns the link of the resolved identity when its path
// differs from the request path.
func (r *Router) canonicalLocation(ctx context.Context, req Request, res *Resolution) (string, bool) {
	link, err := r.Link(ctx, res.Identity, res.Params)
	if err != nil {
		r.logger.Debug("canonical link failed",
			observability.String("identity", res.Identity),
			observability.Error(err),
		)
		return "", false
	}

	path, _, _ := strings.Cut(link, "?")
	if decoded, err := url.PathUnescape(path); err == nil {
		path = decoded
	}
	if path == req.Path {
		return "", false
	}
	return link, true
}

// Check reports whether some route resolves req to an invokable handler.
func (r *Router) Check(req Request) bool {
	offset := 0
	for {
		res, index := r.Resolve(req, offset)
		if res == nil {
			return false
		}
		if res.Handle != 0 || r.Invokable(res.Identity) {
			return true
		}
		offset = index + 1
	}
}

// SetNotFound sets the identity dispatched for ErrNotFound and unmatched requests.
func (r *Router) SetNotFound(target string) {
	r.SetFallback(KindNotFound, target)
}

// SetForbidden sets the identity dispatched for ErrForbidden.
func (r *Router) SetForbidden(target string) {
	r.SetFallback(KindForbidden, target)
}

// SetNotAuthorized sets the identity dispatched for ErrNotAuthorized.
func (r *Router) SetNotAuthorized(target string) {
	r.SetFallback(KindNotAuthorized, target)
}
