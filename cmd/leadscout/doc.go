// Package main hosts the Leadscout CLI entrypoint and command graph.
//
// The Cobra-based command tree covers pipeline control (detached start,
// foreground run, status with optional watch mode), source ingestion, batch
// enrichment, item review and statistics, digest delivery, health checks, and
// configuration scaffolding. It centralizes configuration resolution, store
// access, and structured logging setup so subcommands can focus on user
// experience instead of wiring.
package main
