package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/vyrodovalexey/avaroute/internal/cache"
	"github.com/vyrodovalexey/avaroute/internal/router"
)

// resolution is the JSON output of the resolve command.
type resolution struct {
	Identity string            `json:"identity"`
	Index    int               `json:"index"`
	Map      string            `json:"map"`
	Params   map[string]string `json:"params,omitempty"`
	Data     router.Data       `json:"data,omitempty"`
	Linkable bool              `json:"linkable"`
}

// runResolve prints the first route matching a path.
func runResolve(flags cliFlags, args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(stderr, "usage: avaroute resolve <path>")
		return exitUsage
	}

	app, err := initApplication(context.Background(), flags, false)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	defer func() { _ = app.holder.Close() }()

	res, _ := app.holder.Router().Resolve(newRequest(args[0], flags.headers), 0)
	if res == nil {
		fmt.Fprintf(stderr, "no route matches %s\n", args[0])
		return exitNegative
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resolution{
		Identity: res.Identity,
		Index:    res.Index,
		Map:      res.Route.Map,
		Params:   res.Params,
		Data:     res.Data,
		Linkable: res.Linkable,
	}); err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	return exitOK
}

// runLink prints the URL of a link key. Values of the form name=value are
// passed by name, other values by position.
func runLink(flags cliFlags, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "usage: avaroute link <key> [values...]")
		return exitUsage
	}

	app, err := initApplication(context.Background(), flags, false)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	defer func() { _ = app.holder.Close() }()

	link, err := app.holder.Router().Link(context.Background(), args[0], linkValues(args[1:])...)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitNegative
	}
	fmt.Fprintln(stdout, link)
	return exitOK
}

// runCheck reports whether a path resolves to an invokable handler.
func runCheck(flags cliFlags, args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(stderr, "usage: avaroute check <path>")
		return exitUsage
	}

	app, err := initApplication(context.Background(), flags, false)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitError
	}
	defer func() { _ = app.holder.Close() }()

	ok := app.holder.Router().Check(newRequest(args[0], flags.headers))
	fmt.Fprintln(stdout, ok)
	if !ok {
		return exitNegative
	}
	return exitOK
}

// newRequest builds a router request from a path with an optional query.
// The request method defaults to GET.
func newRequest(target string, headers headerFlags) router.Request {
	path, rawQuery, _ := strings.Cut(target, "?")

	req := router.Request{
		Path:     path,
		Headers:  map[string]string{"request-method": "GET"},
		Query:    map[string]string{},
		RawQuery: rawQuery,
	}
	if decoded, err := url.PathUnescape(path); err == nil {
		req.Path = decoded
	}
	for name, value := range headers {
		req.Headers[name] = value
	}
	if values, err := url.ParseQuery(rawQuery); err == nil {
		for name := range values {
			req.Query[name] = values.Get(name)
		}
	}
	return req
}

func linkValues(args []string) []any {
	if len(args) == 0 {
		return nil
	}

	named := make(map[string]string, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok {
			named = nil
			break
		}
		named[name] = value
	}
	if named != nil {
		return []any{named}
	}

	values := make([]any, len(args))
	for i, arg := range args {
		values[i] = arg
	}
	return values
}

func isCacheDisabled(err error) bool {
	return errors.Is(err, cache.ErrCacheDisabled)
}
