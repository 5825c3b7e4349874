// Package ingest admits feed candidates into the store under an
// author-scoped retention policy: each author holds at most one item,
// protected statuses are never displaced, and unprotected items age out
// after the retention window.
package ingest
