// Package notifications delivers sync events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. The engine depends only on the simple Service interface, so tests
// and alternative transports plug in without HTTP glue.
package notifications
