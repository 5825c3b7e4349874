package store_test

import (
	"context"
	"testing"
	"time"

	"leadscout/internal/store"
	"leadscout/internal/testsupport"
)

func TestOpenAppliesMigrations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := &store.Item{
		ID:         "abc123",
		Source:     "golang",
		CreatedUTC: time.Now().UTC(),
		Title:      "Looking for a code review tool",
	}
	if err := st.InsertItem(ctx, item); err != nil {
		t.Fatalf("InsertItem failed: %v", err)
	}

	fetched, err := st.GetItem(ctx, "abc123")
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if fetched == nil || fetched.Title != "Looking for a code review tool" {
		t.Fatalf("unexpected fetched item: %#v", fetched)
	}
	if fetched.Status != store.StatusOpen {
		t.Fatalf("expected default status new, got %s", fetched.Status)
	}

	exists, err := st.ItemExists(ctx, "abc123")
	if err != nil {
		t.Fatalf("ItemExists failed: %v", err)
	}
	if !exists {
		t.Fatal("expected item to exist")
	}
}

func TestAuthorUniquenessEnforced(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.SeedItem(t, st, "post1", "author1")

	second := &store.Item{
		ID:         "post2",
		Source:     "golang",
		AuthorID:   "author1",
		CreatedUTC: time.Now().UTC(),
	}
	if err := st.InsertItem(ctx, second); err == nil {
		t.Fatal("expected unique constraint violation for duplicate author")
	}
}

func TestInsertAllowsMultipleItemsWithoutAuthor(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	for _, id := range []string{"anon1", "anon2", "anon3"} {
		item := &store.Item{ID: id, Source: "golang", CreatedUTC: time.Now().UTC()}
		if err := st.InsertItem(ctx, item); err != nil {
			t.Fatalf("InsertItem %s failed: %v", id, err)
		}
	}
}

func TestReplaceAuthorItem(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.SeedItem(t, st, "old-post", "author1")

	replacement := &store.Item{
		ID:         "new-post",
		Source:     "golang",
		AuthorID:   "author1",
		CreatedUTC: time.Now().UTC(),
		Title:      "Newer question",
	}
	if err := st.ReplaceAuthorItem(ctx, "author1", replacement); err != nil {
		t.Fatalf("ReplaceAuthorItem failed: %v", err)
	}

	old, err := st.GetItem(ctx, "old-post")
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if old != nil {
		t.Fatal("expected prior item to be removed")
	}

	held, err := st.ItemByAuthor(ctx, "author1")
	if err != nil {
		t.Fatalf("ItemByAuthor failed: %v", err)
	}
	if held == nil || held.ID != "new-post" {
		t.Fatalf("expected replacement item, got %#v", held)
	}
}

func TestUpdateStatusRejectsUnknown(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	testsupport.SeedItem(t, st, "post1", "")
	if _, err := st.UpdateStatus(context.Background(), "post1", store.Status("bogus")); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestUpdateStatusReportsMissingItem(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	updated, err := st.UpdateStatus(context.Background(), "missing", store.StatusAnswered)
	if err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	if updated {
		t.Fatal("expected no rows updated for missing item")
	}
}

func TestReapOlderThanSkipsProtected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	old := time.Now().UTC().Add(-10 * 24 * time.Hour)

	stale := &store.Item{ID: "stale", Source: "golang", CreatedUTC: old}
	if err := st.InsertItem(ctx, stale); err != nil {
		t.Fatalf("InsertItem failed: %v", err)
	}
	protected := &store.Item{ID: "kept", Source: "golang", CreatedUTC: old, Status: store.StatusSelected}
	if err := st.InsertItem(ctx, protected); err != nil {
		t.Fatalf("InsertItem failed: %v", err)
	}
	fresh := &store.Item{ID: "fresh", Source: "golang", CreatedUTC: time.Now().UTC()}
	if err := st.InsertItem(ctx, fresh); err != nil {
		t.Fatalf("InsertItem failed: %v", err)
	}

	cutoff := time.Now().UTC().Add(-5 * 24 * time.Hour)
	reaped, err := st.ReapOlderThan(ctx, cutoff)
	if err != nil {
		t.Fatalf("ReapOlderThan failed: %v", err)
	}
	if reaped != 1 {
		t.Fatalf("expected 1 reaped item, got %d", reaped)
	}

	for id, want := range map[string]bool{"stale": false, "kept": true, "fresh": true} {
		exists, err := st.ItemExists(ctx, id)
		if err != nil {
			t.Fatalf("ItemExists %s failed: %v", id, err)
		}
		if exists != want {
			t.Fatalf("item %s: exists=%v, want %v", id, exists, want)
		}
	}
}

func TestUpsertAuthorMergesFields(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	created := time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC)
	first := &store.Author{
		ID:           "author1",
		Username:     "gopher",
		CreatedUTC:   &created,
		CommentKarma: 100,
	}
	if err := st.UpsertAuthor(ctx, first); err != nil {
		t.Fatalf("UpsertAuthor failed: %v", err)
	}

	// A later sighting without profile details must not erase them.
	sparse := &store.Author{ID: "author1", LinkKarma: 50}
	if err := st.UpsertAuthor(ctx, sparse); err != nil {
		t.Fatalf("UpsertAuthor failed: %v", err)
	}

	merged, err := st.GetAuthor(ctx, "author1")
	if err != nil {
		t.Fatalf("GetAuthor failed: %v", err)
	}
	if merged == nil {
		t.Fatal("expected author")
	}
	if merged.Username != "gopher" {
		t.Fatalf("username lost in merge: %#v", merged)
	}
	if merged.CreatedUTC == nil || !merged.CreatedUTC.Equal(created) {
		t.Fatalf("created time lost in merge: %#v", merged)
	}
	if merged.CommentKarma != 100 || merged.LinkKarma != 50 {
		t.Fatalf("karma not merged: %#v", merged)
	}
}

func TestUpdateAnalysis(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.SeedItem(t, st, "post1", "")

	analysis := store.Analysis{
		RelevanceScore: 8.5,
		Theme:          "code review",
		Summary:        "Asking for automated review tooling",
		Tags:           "tooling, ci",
	}
	if err := st.UpdateAnalysis(ctx, "post1", analysis); err != nil {
		t.Fatalf("UpdateAnalysis failed: %v", err)
	}

	item, err := st.GetItem(ctx, "post1")
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if !item.Analyzed() {
		t.Fatal("expected item to be analyzed")
	}
	if item.RelevanceScore == nil || *item.RelevanceScore != 8.5 {
		t.Fatalf("unexpected relevance score: %#v", item.RelevanceScore)
	}
	if got := item.TagList(); len(got) != 2 || got[0] != "tooling" || got[1] != "ci" {
		t.Fatalf("unexpected tags: %v", got)
	}

	pending, err := st.UnanalyzedItems(ctx, 0)
	if err != nil {
		t.Fatalf("UnanalyzedItems failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no unanalyzed items, got %d", len(pending))
	}
}

func TestPipelineStatusLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	status, err := st.PipelineStatus(ctx)
	if err != nil {
		t.Fatalf("PipelineStatus failed: %v", err)
	}
	if status != nil {
		t.Fatalf("expected no status before first run, got %#v", status)
	}

	started := time.Now().UTC().Truncate(time.Second)
	if err := st.MarkPipelineStarted(ctx, 4242, started); err != nil {
		t.Fatalf("MarkPipelineStarted failed: %v", err)
	}
	status, err = st.PipelineStatus(ctx)
	if err != nil {
		t.Fatalf("PipelineStatus failed: %v", err)
	}
	if status == nil || !status.IsRunning || status.OwnerPID != 4242 {
		t.Fatalf("unexpected running status: %#v", status)
	}
	if status.StartedAt == nil || !status.StartedAt.Equal(started) {
		t.Fatalf("unexpected started time: %#v", status)
	}
	if status.CompletedAt != nil {
		t.Fatal("expected completed time cleared on start")
	}

	completed := started.Add(time.Minute)
	if err := st.MarkPipelineCompleted(ctx, completed); err != nil {
		t.Fatalf("MarkPipelineCompleted failed: %v", err)
	}
	status, err = st.PipelineStatus(ctx)
	if err != nil {
		t.Fatalf("PipelineStatus failed: %v", err)
	}
	if status.IsRunning {
		t.Fatal("expected running flag cleared after completion")
	}
	if status.CompletedAt == nil || !status.CompletedAt.Equal(completed) {
		t.Fatalf("unexpected completed time: %#v", status)
	}
	if status.StartedAt == nil || !status.StartedAt.Equal(started) {
		t.Fatal("expected started time preserved across completion")
	}
	if status.OwnerPID != 0 {
		t.Fatal("expected owner pid cleared after completion")
	}

	if err := st.MarkPipelineStarted(ctx, 4243, completed.Add(time.Hour)); err != nil {
		t.Fatalf("MarkPipelineStarted failed: %v", err)
	}
	if err := st.MarkPipelineFailed(ctx); err != nil {
		t.Fatalf("MarkPipelineFailed failed: %v", err)
	}
	status, err = st.PipelineStatus(ctx)
	if err != nil {
		t.Fatalf("PipelineStatus failed: %v", err)
	}
	if status.IsRunning {
		t.Fatal("expected running flag cleared after failure")
	}
	if status.CompletedAt != nil {
		t.Fatal("expected no completion recorded for failed run")
	}
	if status.OwnerPID != 0 {
		t.Fatal("expected owner pid cleared after failure")
	}
}

func TestListItemsFilters(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	now := time.Now().UTC()
	items := []*store.Item{
		{ID: "a", Source: "golang", CreatedUTC: now.Add(-3 * time.Hour), Status: store.StatusOpen},
		{ID: "b", Source: "programming", CreatedUTC: now.Add(-2 * time.Hour), Status: store.StatusSelected},
		{ID: "c", Source: "golang", CreatedUTC: now.Add(-1 * time.Hour), Status: store.StatusOpen},
	}
	for _, item := range items {
		if err := st.InsertItem(ctx, item); err != nil {
			t.Fatalf("InsertItem %s failed: %v", item.ID, err)
		}
	}

	golang, err := st.ListItems(ctx, store.ListFilter{Source: "golang"})
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if len(golang) != 2 || golang[0].ID != "c" || golang[1].ID != "a" {
		t.Fatalf("unexpected source filter result: %#v", golang)
	}

	selected, err := st.ListItems(ctx, store.ListFilter{Statuses: []store.Status{store.StatusSelected}})
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if len(selected) != 1 || selected[0].ID != "b" {
		t.Fatalf("unexpected status filter result: %#v", selected)
	}

	limited, err := st.ListItems(ctx, store.ListFilter{Limit: 1})
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "c" {
		t.Fatalf("unexpected limit result: %#v", limited)
	}

	sources, err := st.DistinctSources(ctx)
	if err != nil {
		t.Fatalf("DistinctSources failed: %v", err)
	}
	if len(sources) != 2 || sources[0] != "golang" || sources[1] != "programming" {
		t.Fatalf("unexpected sources: %v", sources)
	}
}

func TestCheckHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	testsupport.SeedItem(t, st, "post1", "")

	health, err := st.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || !health.TableExists {
		t.Fatalf("unexpected health: %#v", health)
	}
	if len(health.MissingColumns) != 0 {
		t.Fatalf("unexpected missing columns: %v", health.MissingColumns)
	}
	if !health.IntegrityCheck {
		t.Fatal("expected integrity check to pass")
	}
	if health.TotalItems != 1 {
		t.Fatalf("expected 1 item, got %d", health.TotalItems)
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := store.ParseStatus(" Selected "); !ok || status != store.StatusSelected {
		t.Fatalf("ParseStatus normalization failed: %v %v", status, ok)
	}
	if _, ok := store.ParseStatus("nope"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
	if !store.IsProtected(store.StatusLead) {
		t.Fatal("expected lead to be protected")
	}
	if store.IsProtected(store.StatusOpen) {
		t.Fatal("expected new to be unprotected")
	}
}
