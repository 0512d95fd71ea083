package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/vyrodovalexey/avaroute/internal/observability"
)

func TestRouter_Serve(t *testing.T) {
	t.Parallel()

	reg := newFakeRegistry().
		handle("Widgets::show", func(_ context.Context, call *Call) error {
			call.Data["id"] = call.Params["id"]
			return nil
		}).
		handle(`App\Errors::notFound`, func(_ context.Context, call *Call) error {
			call.Data["page"] = "404"
			return nil
		})
	r := New(WithRegistry(reg))
	require.NoError(t, r.Add("/:class/:id/:method", "*::*", WithData(Data{"layout": "main"})))

	outcome, err := r.Serve(context.Background(), Request{Path: "/widgets/42/show"})
	require.NoError(t, err)
	assert.Equal(t, StatusDispatched, outcome.Status)
	assert.True(t, outcome.Handled)
	assert.Equal(t, "Widgets::show", outcome.Identity)
	assert.Equal(t, map[string]string{"id": "42"}, outcome.Params)
	assert.Equal(t, Data{"layout": "main", "id": "42"}, outcome.Data)

	outcome, err = r.Serve(context.Background(), Request{Path: "/nowhere"})
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, outcome.Status)
	assert.False(t, outcome.Handled)

	r.SetNotFound(`App\Errors::notFound`)
	outcome, err = r.Serve(context.Background(), Request{Path: "/nowhere"})
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, outcome.Status)
	assert.True(t, outcome.Handled)
	assert.Equal(t, `App\Errors::notFound`, outcome.Identity)
	assert.Equal(t, "404", outcome.Data["page"])
}

func TestRouter_Serve_Continue(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	reg := newFakeRegistry().
		handle(`App\Widgets::show`, func(context.Context, *Call) error {
			rec.add("show")
			return ErrContinue
		}).
		handle(`App\Widgets::legacy`, rec.handler("legacy"))
	r := New(WithRegistry(reg))
	require.NoError(t, r.Add("/widgets/:id", `App\Widgets::show`))
	require.NoError(t, r.Add("/widgets/:id", `App\Widgets::show`))
	require.NoError(t, r.Add("/widgets/:id", `App\Widgets::legacy`))

	outcome, err := r.Serve(context.Background(), Request{Path: "/widgets/1"})
	require.NoError(t, err)
	assert.Equal(t, StatusDispatched, outcome.Status)
	assert.Equal(t, `App\Widgets::legacy`, outcome.Identity)
	assert.Equal(t, []string{"show", "show", "legacy"}, rec.get())
}

func TestRouter_Serve_ContinueExhausted(t *testing.T) {
	t.Parallel()

	reg := newFakeRegistry().handle(`App\Widgets::show`, failWith(ErrContinue))
	r := New(WithRegistry(reg))
	require.NoError(t, r.Add("/widgets/:id", `App\Widgets::show`))

	outcome, err := r.Serve(context.Background(), Request{Path: "/widgets/1"})
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, outcome.Status)
}

func TestRouter_Serve_Signals(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		signal     error
		wantStatus Status
		fallback   string
	}{
		{name: "not found", signal: ErrNotFound, wantStatus: StatusNotFound, fallback: "404"},
		{name: "forbidden", signal: ErrForbidden, wantStatus: StatusForbidden, fallback: "403"},
		{name: "not authorized", signal: ErrNotAuthorized, wantStatus: StatusNotAuthorized, fallback: "401"},
		{name: "wrapped", signal: errors.Join(errors.New("denied"), ErrForbidden), wantStatus: StatusForbidden, fallback: "403"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := &recorder{}
			reg := newFakeRegistry().
				handle(`App\Admin::index`, failWith(tt.signal)).
				handle(`App\Admin::other`, rec.handler("other"))
			r := New(WithRegistry(reg))
			require.NoError(t, r.Add("/admin", `App\Admin::index`))
			require.NoError(t, r.Add("/admin", `App\Admin::other`))
			require.NoError(t, r.AddFunc(tt.fallback, "page-"+tt.fallback, rec.handler("fallback")))

			outcome, err := r.Serve(context.Background(), Request{Path: "/admin"})
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, outcome.Status)
			assert.True(t, outcome.Handled)
			assert.Equal(t, "page-"+tt.fallback, outcome.Identity)
			assert.Equal(t, []string{"fallback"}, rec.get(), "terminal signals end the loop")
		})
	}
}

func TestRouter_Serve_SignalFromHook(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	reg := newFakeRegistry().handle(`App\Admin::index`, rec.handler("index"))
	r := New(WithRegistry(reg))
	require.NoError(t, r.Add("/admin", `App\Admin::index`))
	require.NoError(t, r.HookFunc("before", "Admin::*", func(context.Context, *Call, error) error {
		return ErrNotAuthorized
	}))
	require.NoError(t, r.HookFunc("catch:error", "*", rec.hook("catch")))

	outcome, err := r.Serve(context.Background(), Request{Path: "/admin"})
	require.NoError(t, err)
	assert.Equal(t, StatusNotAuthorized, outcome.Status)
	assert.False(t, outcome.Handled)
	assert.Empty(t, rec.get())
}

func TestRouter_Serve_SkipsUninvokable(t *testing.T) {
	t.Parallel()

	reg := newFakeRegistry().handle(`App\Pages::show`, func(context.Context, *Call) error { return nil })
	r := New(WithRegistry(reg))
	require.NoError(t, r.Add("/:class", `App\*::show`))
	require.NoError(t, r.Add("/:page", `App\Pages::show`))

	outcome, err := r.Serve(context.Background(), Request{Path: "/about"})
	require.NoError(t, err)
	assert.Equal(t, StatusDispatched, outcome.Status)
	assert.Equal(t, `App\Pages::show`, outcome.Identity)
	assert.Equal(t, map[string]string{"page": "about"}, outcome.Params)
}

func TestRouter_Serve_Error(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	reg := newFakeRegistry().
		handle(`App\Widgets::show`, failWith(boom)).
		handle(`App\Widgets::other`, func(context.Context, *Call) error { return nil })
	r := New(WithRegistry(reg))
	require.NoError(t, r.Add("/widgets", `App\Widgets::show`))
	require.NoError(t, r.Add("/widgets", `App\Widgets::other`))

	outcome, err := r.Serve(context.Background(), Request{Path: "/widgets"})
	assert.Nil(t, outcome)
	assert.ErrorIs(t, err, boom)
}

func TestRouter_Serve_NestedNotInvokablePropagates(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	reg := newFakeRegistry()
	r := New(WithRegistry(reg))
	nested := func(ctx context.Context, _ *Call) error {
		_, err := r.Dispatch(ctx, `App\Missing::x`, nil)
		return err
	}
	reg.handle(`App\Errors::nested`, nested)
	reg.handle(`App\A::show`, func(ctx context.Context, call *Call) error {
		rec.add("a")
		return nested(ctx, call)
	})
	reg.handle(`App\B::show`, rec.handler("b"))
	require.NoError(t, r.Add("/a", `App\A::show`))
	require.NoError(t, r.Add("/a", `App\B::show`))

	outcome, err := r.Serve(context.Background(), Request{Path: "/a"})
	assert.Nil(t, outcome)
	assert.ErrorIs(t, err, ErrNotInvokable)
	assert.Equal(t, []string{"a"}, rec.get(), "the next route must not run after a handler failed")

	r.SetNotFound(`App\Errors::nested`)
	outcome, err = r.Serve(context.Background(), Request{Path: "/nowhere"})
	assert.ErrorIs(t, err, ErrNotInvokable)
	require.NotNil(t, outcome)
	assert.False(t, outcome.Handled)
}

func TestRouter_Serve_FallbackErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	reg := newFakeRegistry().handle(`App\Errors::broken`, failWith(boom))

	r := New(WithRegistry(reg))
	r.SetNotFound(`App\Errors::missing`)
	outcome, err := r.Serve(context.Background(), Request{Path: "/"})
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, outcome.Status)
	assert.False(t, outcome.Handled)

	r.SetNotFound(`App\Errors::broken`)
	outcome, err = r.Serve(context.Background(), Request{Path: "/"})
	assert.ErrorIs(t, err, boom)
	require.NotNil(t, outcome)
	assert.Equal(t, StatusNotFound, outcome.Status)
}

func TestRouter_Serve_TrailingSlash(t *testing.T) {
	t.Parallel()

	reg := newFakeRegistry().handle(`App\Widgets::index`, func(context.Context, *Call) error { return nil })

	tests := []struct {
		name         string
		opts         []Option
		req          Request
		wantStatus   Status
		wantLocation string
	}{
		{
			name:         "redirect",
			req:          Request{Path: "/widgets/"},
			wantStatus:   StatusRedirect,
			wantLocation: "/widgets",
		},
		{
			name:         "keeps query",
			req:          Request{Path: "/widgets//", RawQuery: "page=2"},
			wantStatus:   StatusRedirect,
			wantLocation: "/widgets?page=2",
		},
		{
			name:       "root",
			req:        Request{Path: "/"},
			wantStatus: StatusDispatched,
		},
		{
			name:       "disabled",
			opts:       []Option{WithoutTrailingSlashRedirect()},
			req:        Request{Path: "/widgets/"},
			wantStatus: StatusDispatched,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := New(append([]Option{WithRegistry(reg)}, tt.opts...)...)
			require.NoError(t, r.Add("/widgets", `App\Widgets::index`))
			require.NoError(t, r.Add("/", `App\Widgets::index`))

			outcome, err := r.Serve(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, outcome.Status)
			assert.Equal(t, tt.wantLocation, outcome.Location)
		})
	}
}

func TestRouter_Serve_CanonicalRedirect(t *testing.T) {
	t.Parallel()

	reg := newFakeRegistry().
		handle(`App\Widgets::show`, func(context.Context, *Call) error { return nil }).
		handle(`App\Docs::index`, func(context.Context, *Call) error { return nil })
	r := New(WithRegistry(reg), WithCanonicalRedirect(true))
	require.NoError(t, r.Add("/widgets/:id", `App\Widgets::show`))
	require.NoError(t, r.Add("/legacy/widgets/:id", `App\Widgets::show`))
	require.NoError(t, r.Add("/docs/*", `App\Docs::index`))

	outcome, err := r.Serve(context.Background(), Request{Path: "/legacy/widgets/7", Query: map[string]string{"ref": "mail"}})
	require.NoError(t, err)
	assert.Equal(t, StatusRedirect, outcome.Status)
	assert.Equal(t, "/widgets/7?ref=mail", outcome.Location)
	assert.True(t, outcome.Permanent)

	outcome, err = r.Serve(context.Background(), Request{Path: "/widgets/7"})
	require.NoError(t, err)
	assert.Equal(t, StatusDispatched, outcome.Status)

	outcome, err = r.Serve(context.Background(), Request{Path: "/docs/a/b"})
	require.NoError(t, err)
	assert.Equal(t, StatusDispatched, outcome.Status, "prefix routes are never redirected")
}

func TestStatus_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "dispatched", StatusDispatched.String())
	assert.Equal(t, "not-found", StatusNotFound.String())
	assert.Equal(t, "forbidden", StatusForbidden.String())
	assert.Equal(t, "not-authorized", StatusNotAuthorized.String())
	assert.Equal(t, "redirect", StatusRedirect.String())
	assert.Equal(t, "status(9)", Status(9).String())
}

func TestRouter_Serve_Spans(t *testing.T) {
	t.Parallel()

	spans := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	var handler string
	reg := newFakeRegistry().
		handle("Widgets::show", func(ctx context.Context, _ *Call) error {
			handler = observability.HandlerFromContext(ctx)
			return nil
		})
	r := New(WithRegistry(reg), WithTracerProvider(provider))
	require.NoError(t, r.Add("/:class/:id/:method", "*::*"))

	_, err := r.Serve(context.Background(), Request{Path: "/widgets/42/show"})
	require.NoError(t, err)
	assert.Equal(t, "Widgets::show", handler)

	ended := spans.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "router.Dispatch", ended[0].Name())
	assert.Equal(t, "router.Serve", ended[1].Name())
	assert.Equal(t, ended[1].SpanContext().SpanID(), ended[0].Parent().SpanID())
}
