// Package bootstrap builds routers from configuration.
//
// Build turns a config.Config into a Snapshot: a router with its tokens,
// routes, aliases, hooks, fallbacks and link parameter formatters, the
// registry of handler classes authorized by the configuration, and the
// link cache. A Holder keeps the active Snapshot and swaps it atomically
// when the configuration is reloaded, so requests in flight finish on the
// router they started with.
package bootstrap
