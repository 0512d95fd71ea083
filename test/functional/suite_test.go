//go:build functional
// +build functional

/*
Package functional provides functional tests for avaroute. They build the
router from YAML configuration and serve it over a real HTTP listener.
*/
package functional

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avaroute/internal/bootstrap"
	"github.com/vyrodovalexey/avaroute/internal/config"
	"github.com/vyrodovalexey/avaroute/internal/observability"
	"github.com/vyrodovalexey/avaroute/internal/registry"
	"github.com/vyrodovalexey/avaroute/internal/router"
	"github.com/vyrodovalexey/avaroute/internal/server"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testClasses are the handler classes served by every suite.
func testClasses() []*registry.Class {
	return []*registry.Class{
		{
			Name: "Widgets",
			Methods: map[string]registry.MethodFunc{
				"show": func(_ context.Context, _ any, call *router.Call) error {
					call.Data["id"] = call.Params["id"]
					return nil
				},
				"secret": func(context.Context, any, *router.Call) error {
					return router.ErrForbidden
				},
			},
		},
		{
			Name: "Errors",
			Methods: map[string]registry.MethodFunc{
				"missing": func(_ context.Context, _ any, call *router.Call) error {
					call.Data["error"] = "missing"
					return nil
				},
			},
		},
	}
}

// TestSuite holds a running server and the holder behind it.
type TestSuite struct {
	t      *testing.T
	holder *bootstrap.Holder
	server *httptest.Server
}

// NewTestSuite builds cfg and serves it until the test ends.
func NewTestSuite(t *testing.T, cfg *config.Config) *TestSuite {
	t.Helper()

	logger := observability.NopLogger()
	holder, err := bootstrap.NewHolder(cfg, logger, bootstrap.WithClasses(testClasses()...))
	require.NoError(t, err)

	srv := server.New(cfg, holder, server.WithLogger(logger))
	ts := httptest.NewServer(srv.Handler())

	t.Cleanup(func() {
		ts.Close()
		_ = holder.Close()
	})

	return &TestSuite{t: t, holder: holder, server: ts}
}

// Get performs a GET request without following redirects.
func (s *TestSuite) Get(path string, headers map[string]string) (*http.Response, string) {
	s.t.Helper()

	req, err := http.NewRequest(http.MethodGet, s.server.URL+path, nil)
	require.NoError(s.t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)
	return resp, string(body)
}
