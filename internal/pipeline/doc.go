// Package pipeline tracks detached ingestion runs through a singleton state
// record, reconciling that record against the OS process table so crashed
// runs never leave a permanently "running" status behind.
package pipeline
