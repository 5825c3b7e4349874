package testsupport

import (
	"context"
	"fmt"
	"testing"
	"time"

	"leadscout/internal/config"
	"leadscout/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// SeedItem inserts a minimal item with the given identifier and author for
// tests. The created time defaults to now; override it through the returned
// item before relying on age-sensitive behavior.
func SeedItem(t testing.TB, st *store.Store, id, authorID string) *store.Item {
	t.Helper()

	item := &store.Item{
		ID:         id,
		Source:     "golang",
		AuthorID:   authorID,
		CreatedUTC: time.Now().UTC(),
		Title:      fmt.Sprintf("Test item %s", id),
		Status:     store.StatusOpen,
	}
	if authorID != "" {
		SeedAuthor(t, st, authorID)
	}
	if err := st.InsertItem(context.Background(), item); err != nil {
		t.Fatalf("store.InsertItem: %v", err)
	}
	return item
}

// SeedAuthor upserts a minimal author record for tests.
func SeedAuthor(t testing.TB, st *store.Store, id string) *store.Author {
	t.Helper()

	author := &store.Author{ID: id, Username: id}
	if err := st.UpsertAuthor(context.Background(), author); err != nil {
		t.Fatalf("store.UpsertAuthor: %v", err)
	}
	return author
}
