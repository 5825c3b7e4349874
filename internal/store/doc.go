// Package store persists items, authors, and pipeline run state in SQLite.
//
// Every write goes through short busy-retry loops so concurrent CLI
// invocations and the pipeline process can share the database. The items
// table enforces at most one row per author through a partial unique index;
// admission logic relies on that constraint rather than re-checking.
package store
