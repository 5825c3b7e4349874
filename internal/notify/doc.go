// Package notify delivers lead digests to external destinations.
//
// Sinks are enabled individually in config.toml: the email sink renders an
// HTML digest grouped by theme and sends it over SMTP, while the sheets sink
// appends one row per item to a Google Sheets worksheet. Delivery is
// fire-and-forget from the caller's perspective; a failing sink is logged and
// never blocks the status transition that triggered it.
package notify
