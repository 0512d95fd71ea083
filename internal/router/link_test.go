package router

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avaroute/internal/cache"
)

type widget struct {
	ID    int
	Title string `param:"name"`
	Owner *string
	slug  string
}

func (w widget) Slug() string { return "w-" + w.slug }

func (w *widget) Permalink() (string, error) {
	if w.ID == 0 {
		return "", errors.New("unsaved")
	}
	return "p" + w.slug, nil
}

func TestRouter_Link_RoundTrip(t *testing.T) {
	t.Parallel()

	r := New()
	require.NoError(t, r.Add("/:class/:id/:method", "*::*"))

	link, err := r.Link(context.Background(), "Widgets::show id", 42)
	require.NoError(t, err)
	assert.Equal(t, "/widgets/42/show", link)

	res, _ := r.Resolve(Request{Path: link}, 0)
	require.NotNil(t, res)
	assert.Equal(t, "Widgets::show", res.Identity)
	assert.Equal(t, map[string]string{"id": "42"}, res.Params)
}

func TestRouter_Link_NamespacedRoundTrip(t *testing.T) {
	t.Parallel()

	r := New()
	require.NoError(t, r.Add("/:namespace/:class/:method", ""))

	link, err := r.Link(context.Background(), `Admin\UserTools::showAll`)
	require.NoError(t, err)
	assert.Equal(t, "/admin/user-tools/show-all", link)

	res, _ := r.Resolve(Request{Path: link}, 0)
	require.NotNil(t, res)
	assert.Equal(t, `Admin\UserTools::showAll`, res.Identity)
}

func TestRouter_Link(t *testing.T) {
	t.Parallel()

	r := New()
	require.NoError(t, r.Add("/widgets", `App\Widgets::show`))
	require.NoError(t, r.Add("/widgets/:id", `App\Widgets::show`))
	require.NoError(t, r.Add("/posts/:slug", `App\Posts::show`))
	require.NoError(t, r.Add("/docs/:page#:section", `App\Docs::show`))
	require.NoError(t, r.Add("/search?q=:query", `App\Search::index`))
	require.NoError(t, r.Add("/files/*", `App\Files::index`))
	require.NoError(t, r.AddFunc("/hello/:name", "hello", func(context.Context, *Call) error { return nil }))
	r.Alias("widget", `App\Widgets::show id`)

	owner := "gopher"

	tests := []struct {
		name   string
		key    string
		values []any
		want   string
	}{
		{name: "no params", key: `App\Widgets::show`, want: "/widgets"},
		{name: "coverage wins", key: `App\Widgets::show id`, values: []any{7}, want: "/widgets/7"},
		{name: "nil is absent", key: `App\Widgets::show id`, values: []any{nil}, want: "/widgets"},
		{name: "extra params in query", key: `App\Widgets::show id page sort`, values: []any{7, 2, "name"}, want: "/widgets/7?page=2&sort=name"},
		{name: "map values", key: `App\Widgets::show`, values: []any{map[string]string{"id": "7"}}, want: "/widgets/7"},
		{name: "url values", key: `App\Widgets::show id`, values: []any{url.Values{"id": {"7", "8"}}}, want: "/widgets/7"},
		{name: "data values", key: `App\Widgets::show id`, values: []any{Data{"id": 7, "skip": nil}}, want: "/widgets/7"},
		{name: "struct field", key: `App\Widgets::show id:ID`, values: []any{widget{ID: 7}}, want: "/widgets/7"},
		{name: "struct field by name", key: `App\Widgets::show id`, values: []any{&widget{ID: 7}}, want: "/widgets/7"},
		{name: "struct tag", key: `App\Widgets::show id:ID name`, values: []any{widget{ID: 7, Title: "Big"}}, want: "/widgets/7?name=Big"},
		{name: "struct nil pointer field", key: `App\Widgets::show id:ID owner`, values: []any{widget{ID: 7}}, want: "/widgets/7"},
		{name: "struct pointer field", key: `App\Widgets::show id:ID owner`, values: []any{widget{ID: 7, Owner: &owner}}, want: "/widgets/7?owner=gopher"},
		{name: "accessor", key: `App\Posts::show slug:slug()`, values: []any{widget{slug: "intro"}}, want: "/posts/w-intro"},
		{name: "pointer accessor", key: `App\Posts::show slug:permalink()`, values: []any{widget{ID: 1, slug: "intro"}}, want: "/posts/pintro"},
		{name: "default formatter slugs", key: `App\Posts::show slug`, values: []any{"Crème Brûlée Recipe"}, want: "/posts/creme-brulee-recipe"},
		{name: "id formatter escapes", key: `App\Widgets::show id`, values: []any{"a b/c"}, want: "/widgets/a+b%2Fc"},
		{name: "fragment", key: `App\Docs::show page section`, values: []any{"intro", "set up"}, want: "/docs/intro#set+up"},
		{name: "fragment dropped", key: `App\Docs::show page`, values: []any{"intro"}, want: "/docs/intro"},
		{name: "query alias", key: `App\Search::index query`, values: []any{"go lang"}, want: "/search?q=go+lang"},
		{name: "alias key", key: "widget", values: []any{7}, want: "/widgets/7"},
		{name: "closure", key: "hello name", values: []any{"bob"}, want: "/hello/bob"},
		{name: "leading colon", key: `App\Widgets::show :id`, values: []any{7}, want: "/widgets/7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			link, err := r.Link(context.Background(), tt.key, tt.values...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, link)
		})
	}
}

func TestRouter_Link_Errors(t *testing.T) {
	t.Parallel()

	r := New()
	require.NoError(t, r.Add("/widgets/:id", `App\Widgets::show`))
	require.NoError(t, r.Add("/files/*", `App\Files::index`))

	tests := []struct {
		name        string
		key         string
		values      []any
		wantErr     error
		wantMissing []string
	}{
		{name: "empty key", key: " ", wantErr: ErrNoRoute},
		{name: "unknown identity", key: `App\Gadgets::show`, wantErr: ErrNoRoute},
		{name: "prefix routes are not linkable", key: `App\Files::index`, wantErr: ErrNoRoute},
		{name: "missing param", key: `App\Widgets::show`, wantErr: ErrMissingParams, wantMissing: []string{"id"}},
		{name: "struct without field", key: `App\Widgets::show id:Missing`, values: []any{widget{}}, wantErr: ErrMissingParams, wantMissing: []string{"id"}},
		{name: "accessor error", key: `App\Widgets::show id:permalink()`, values: []any{&widget{}}, wantErr: ErrMissingParams, wantMissing: []string{"id"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := r.Link(context.Background(), tt.key, tt.values...)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var linkErr *LinkError
			require.ErrorAs(t, err, &linkErr)
			assert.Equal(t, strings.TrimSpace(tt.key), linkErr.Key)
			assert.Equal(t, tt.wantMissing, linkErr.Missing)
		})
	}

	assert.Panics(t, func() {
		r.MustLink(context.Background(), `App\Gadgets::show`)
	})
}

func TestRouter_Link_Ranking(t *testing.T) {
	t.Parallel()

	r := New()
	require.NoError(t, r.Add("/w/:id", `App\Widgets::show`))
	require.NoError(t, r.Add("/:class/:method/:id", `App\*::*`))
	require.NoError(t, r.Add("/all/:class/:method", `App\*::*`))

	link, err := r.Link(context.Background(), `App\Widgets::show id`, 7)
	require.NoError(t, err)
	assert.Equal(t, "/w/7", link, "smaller distance wins at equal coverage")

	link, err = r.Link(context.Background(), `App\Gadgets::show id`, 7)
	require.NoError(t, err)
	assert.Equal(t, "/gadgets/show/7", link, "greater intersection wins at equal distance")

	link, err = r.Link(context.Background(), `App\Gadgets::show`)
	require.NoError(t, err)
	assert.Equal(t, "/all/gadgets/show", link, "fewer missing params wins at equal distance")
}

func TestLinkCandidate_Replaces(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		best     *linkCandidate
		c        linkCandidate
		want     bool
		unranked bool
	}{
		{name: "first candidate", best: nil, c: linkCandidate{dist: 9, diff: 3}, want: true},
		{name: "closer with no more missing", best: &linkCandidate{dist: 5, diff: 1}, c: linkCandidate{dist: 2, diff: 1}, want: true},
		{name: "closer with more missing", best: &linkCandidate{dist: 5, diff: 0}, c: linkCandidate{dist: 2, diff: 1}, unranked: true},
		{name: "more intersection at equal distance", best: &linkCandidate{dist: 2, sect: 1}, c: linkCandidate{dist: 2, sect: 2}, want: true},
		{name: "more intersection further away", best: &linkCandidate{dist: 2, sect: 1}, c: linkCandidate{dist: 3, sect: 2}, unranked: true},
		{name: "fewer missing at equal distance", best: &linkCandidate{dist: 2, sect: 1, diff: 2}, c: linkCandidate{dist: 2, sect: 1, diff: 1}, want: true},
		{name: "fewer missing but less intersection", best: &linkCandidate{dist: 2, sect: 2, diff: 2}, c: linkCandidate{dist: 2, sect: 1, diff: 1}, unranked: true},
		{name: "identical scores keep first", best: &linkCandidate{dist: 2, sect: 1, diff: 1}, c: linkCandidate{dist: 2, sect: 1, diff: 1}},
		{name: "worse in every score", best: &linkCandidate{dist: 1, sect: 2, diff: 0}, c: linkCandidate{dist: 3, sect: 1, diff: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, tt.c.replaces(tt.best))
			if !tt.want {
				assert.Equal(t, tt.unranked, tt.c.unranked(tt.best))
			}
		})
	}
}

func TestRouter_Link_ParamFormatters(t *testing.T) {
	t.Parallel()

	r := New()
	require.NoError(t, r.Add("/posts/:slug", `App\Posts::show`))
	require.NoError(t, r.Add("/tags/:slug", `App\Tags::show`))

	r.SetParamFormatter(`App\Posts`, "slug", strings.ToUpper)
	r.SetParamFormatter(`App\Tags`, "*", func(s string) string { return "t-" + s })

	assert.Equal(t, "/posts/HELLO", r.MustLink(context.Background(), `App\Posts::show slug`, "hello"))
	assert.Equal(t, "/tags/t-go", r.MustLink(context.Background(), `App\Tags::show slug`, "go"))
}

func TestRouter_Link_FormattedKey(t *testing.T) {
	t.Parallel()

	reg := newFakeRegistry()
	r := New(WithRegistry(reg))
	require.NoError(t, r.Add("/widgets/:id/edit", `App\Widgets::edit`))

	var link string
	reg.handle(`App\Widgets::show`, func(ctx context.Context, call *Call) error {
		var err error
		link, err = r.Link(ctx, "%c::edit id", call.Params["id"])
		return err
	})

	_, err := r.Dispatch(context.Background(), `App\Widgets::show`, nil, WithParams(map[string]string{"id": "3"}))
	require.NoError(t, err)
	assert.Equal(t, "/widgets/3/edit", link)
}

func TestRouter_Link_Cache(t *testing.T) {
	t.Parallel()

	c, err := cache.New(cache.Config{Type: cache.TypeMemory}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	r := New(WithLinkCache(c, time.Minute))
	require.NoError(t, r.Add("/widgets/:id", `App\Widgets::show`))

	ctx := context.Background()
	link, err := r.Link(ctx, `App\Widgets::show id`, 7)
	require.NoError(t, err)
	assert.Equal(t, "/widgets/7", link)

	key := cache.LinkKey(r.cacheScope, r.generation, `App\Widgets::show`, map[string]string{"id": "7"})
	cached, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "/widgets/7", string(cached))

	require.NoError(t, c.Set(ctx, key, []byte("/from-cache"), time.Minute))
	link, err = r.Link(ctx, `App\Widgets::show id`, 7)
	require.NoError(t, err)
	assert.Equal(t, "/from-cache", link)

	require.NoError(t, r.Add("/w/:id", `App\Widgets::show`))
	link, err = r.Link(ctx, `App\Widgets::show id`, 7)
	require.NoError(t, err)
	assert.Equal(t, "/widgets/7", link, "registration invalidates cached links")
}

func TestRouter_Link_DisabledCache(t *testing.T) {
	t.Parallel()

	r := New(WithLinkCache(cache.Disabled(), time.Minute))
	require.NoError(t, r.Add("/widgets/:id", `App\Widgets::show`))

	assert.Equal(t, "/widgets/7", r.MustLink(context.Background(), `App\Widgets::show id`, 7))
}

func TestParseLinkParams(t *testing.T) {
	t.Parallel()

	got := parseLinkParams([]string{"id", ":slug", "name:Title", "path:permalink()", ":"})
	assert.Equal(t, []linkParam{
		{name: "id", property: "id"},
		{name: "slug", property: "slug"},
		{name: "name", property: "Title"},
		{name: "path", property: "permalink", call: true},
	}, got)
}
