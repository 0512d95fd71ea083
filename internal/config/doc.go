// Package config provides the configuration model of avaroute.
//
// A configuration file declares the router settings, the route table,
// link aliases, hooks, authorized handler classes, link parameter
// formatters, the link cache and the HTTP host settings.
//
// # Features
//
//   - YAML configuration file loading
//   - Environment variable substitution with ${VAR:-default} syntax
//   - Defaults for every optional section
//   - Validation with detailed, path qualified error reporting
//   - File watching for hot reload
//
// # Configuration Loading
//
//	cfg, err := config.LoadConfig("avaroute.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := config.ValidateConfig(cfg); err != nil {
//	    log.Fatal(err)
//	}
//
// # File Watching
//
//	w, err := config.NewWatcher("avaroute.yaml", func(cfg *config.Config) {
//	    // rebuild the router
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := w.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop()
package config
