// Package main is the entry point for avaroute.
//
// Usage:
//
//	avaroute [flags] serve
//	avaroute [flags] resolve <path>
//	avaroute [flags] link <key> [values...]
//	avaroute [flags] check <path>
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// Exit codes.
const (
	exitOK       = 0
	exitError    = 1
	exitUsage    = 2
	exitNegative = 3
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	headers     headerFlags
	showVersion bool
	args        []string
}

// headerFlags collects repeated -header name=value flags.
type headerFlags map[string]string

func (h headerFlags) String() string {
	parts := make([]string, 0, len(h))
	for name, value := range h {
		parts = append(parts, name+"="+value)
	}
	return strings.Join(parts, ",")
}

func (h headerFlags) Set(s string) error {
	name, value, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(name) == "" {
		return fmt.Errorf("header %q must be name=value", s)
	}
	h[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(value)
	return nil
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the exit code.
func run(args []string, stdout, stderr io.Writer) int {
	flags, err := parseFlags(args, stderr)
	if err != nil {
		return exitUsage
	}

	if flags.showVersion {
		printVersion(stdout)
		return exitOK
	}

	if len(flags.args) == 0 {
		fmt.Fprintln(stderr, "missing command: serve, resolve, link or check")
		return exitUsage
	}

	command, rest := flags.args[0], flags.args[1:]
	switch command {
	case "serve":
		return runServe(flags, stderr)
	case "resolve":
		return runResolve(flags, rest, stdout, stderr)
	case "link":
		return runLink(flags, rest, stdout, stderr)
	case "check":
		return runCheck(flags, rest, stdout, stderr)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", command)
		return exitUsage
	}
}

// parseFlags parses command line flags.
func parseFlags(args []string, stderr io.Writer) (cliFlags, error) {
	fset := flag.NewFlagSet("avaroute", flag.ContinueOnError)
	fset.SetOutput(stderr)

	flags := cliFlags{headers: headerFlags{}}
	fset.StringVar(&flags.configPath, "config", getEnvOrDefault("AVAROUTE_CONFIG", ""),
		"Path to configuration file")
	fset.StringVar(&flags.logLevel, "log-level", getEnvOrDefault("AVAROUTE_LOG_LEVEL", ""),
		"Log level (debug, info, warn, error); overrides the configuration")
	fset.StringVar(&flags.logFormat, "log-format", getEnvOrDefault("AVAROUTE_LOG_FORMAT", ""),
		"Log format (json, console); overrides the configuration")
	fset.Var(flags.headers, "header", "Request header name=value for resolve and check (repeatable)")
	fset.BoolVar(&flags.showVersion, "version", false, "Show version information")

	if err := fset.Parse(args); err != nil {
		return flags, err
	}
	flags.args = fset.Args()
	return flags, nil
}

// printVersion prints version information.
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "avaroute version %s\n", version)
	fmt.Fprintf(w, "  Build time: %s\n", buildTime)
	fmt.Fprintf(w, "  Git commit: %s\n", gitCommit)
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
