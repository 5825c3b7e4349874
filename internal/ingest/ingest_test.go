package ingest_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"leadscout/internal/feed"
	"leadscout/internal/ingest"
	"leadscout/internal/store"
	"leadscout/internal/testsupport"
)

func newCandidate(id, authorID, title string) feed.Candidate {
	return feed.Candidate{
		ID:         id,
		Source:     "golang",
		AuthorID:   authorID,
		AuthorName: "author-" + authorID,
		CreatedUTC: time.Now().UTC(),
		Title:      title,
		Body:       "body of " + title,
	}
}

func TestAdmitInsertsNewAuthorItem(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	engine := ingest.NewEngine(st, 50, nil, nil)

	ctx := context.Background()
	outcome, err := engine.Admit(ctx, newCandidate("abc", "t2_one", "First question"))
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	if outcome != ingest.OutcomeInserted {
		t.Fatalf("expected inserted, got %s", outcome)
	}

	author, err := st.GetAuthor(ctx, "t2_one")
	if err != nil {
		t.Fatalf("GetAuthor failed: %v", err)
	}
	if author == nil || author.Username != "author-t2_one" {
		t.Fatalf("expected author upserted, got %#v", author)
	}
}

func TestAdmitRejectsUnresolvableAuthor(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	engine := ingest.NewEngine(st, 50, nil, nil)

	ctx := context.Background()
	if _, err := engine.Admit(ctx, newCandidate("anon", "", "Question")); err == nil {
		t.Fatal("expected error for candidate without author")
	}
	exists, err := st.ItemExists(ctx, "anon")
	if err != nil {
		t.Fatalf("ItemExists failed: %v", err)
	}
	if exists {
		t.Fatal("discarded candidate must not reach storage")
	}
}

func TestAdmitDuplicateIDSkips(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	engine := ingest.NewEngine(st, 50, nil, nil)

	ctx := context.Background()
	candidate := newCandidate("abc", "t2_one", "First question")
	if _, err := engine.Admit(ctx, candidate); err != nil {
		t.Fatalf("Admit failed: %v", err)
	}

	outcome, err := engine.Admit(ctx, candidate)
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	if outcome != ingest.OutcomeSkippedDuplicate {
		t.Fatalf("expected duplicate skip, got %s", outcome)
	}
}

func TestAdmitReplacesUnprotectedItem(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	engine := ingest.NewEngine(st, 50, nil, nil)

	ctx := context.Background()
	if _, err := engine.Admit(ctx, newCandidate("old", "t2_one", "Old question")); err != nil {
		t.Fatalf("Admit failed: %v", err)
	}

	outcome, err := engine.Admit(ctx, newCandidate("new", "t2_one", "New question"))
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	if outcome != ingest.OutcomeReplaced {
		t.Fatalf("expected replaced, got %s", outcome)
	}

	gone, err := st.GetItem(ctx, "old")
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if gone != nil {
		t.Fatal("expected prior item removed")
	}
	held, err := st.ItemByAuthor(ctx, "t2_one")
	if err != nil {
		t.Fatalf("ItemByAuthor failed: %v", err)
	}
	if held == nil || held.ID != "new" {
		t.Fatalf("expected replacement held, got %#v", held)
	}
}

func TestAdmitProtectedWinsBeforeContentComparison(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	engine := ingest.NewEngine(st, 50, nil, nil)

	ctx := context.Background()
	original := newCandidate("kept", "t2_one", "Selected question")
	if _, err := engine.Admit(ctx, original); err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	if _, err := st.UpdateStatus(ctx, "kept", store.StatusSelected); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	// Identical content from the same author: protection must be reported,
	// not duplicate suppression.
	identical := newCandidate("dupe", "t2_one", "Selected question")
	outcome, err := engine.Admit(ctx, identical)
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	if outcome != ingest.OutcomeSkippedProtected {
		t.Fatalf("expected protected skip, got %s", outcome)
	}

	// Fresh content loses to a protected item too.
	fresh := newCandidate("fresh", "t2_one", "Another question")
	fresh.AuthorName = "renamed"
	outcome, err = engine.Admit(ctx, fresh)
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	if outcome != ingest.OutcomeSkippedProtected {
		t.Fatalf("expected protected skip, got %s", outcome)
	}

	held, err := st.ItemByAuthor(ctx, "t2_one")
	if err != nil {
		t.Fatalf("ItemByAuthor failed: %v", err)
	}
	if held == nil || held.ID != "kept" {
		t.Fatalf("protected item must survive, got %#v", held)
	}

	author, err := st.GetAuthor(ctx, "t2_one")
	if err != nil {
		t.Fatalf("GetAuthor failed: %v", err)
	}
	if author.Username != "author-t2_one" {
		t.Fatalf("protected skip must not touch the author record, got %q", author.Username)
	}
}

func TestAdmitIdenticalContentSkipsWhenUnprotected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	engine := ingest.NewEngine(st, 50, nil, nil)

	ctx := context.Background()
	if _, err := engine.Admit(ctx, newCandidate("first", "t2_one", "Same question")); err != nil {
		t.Fatalf("Admit failed: %v", err)
	}

	outcome, err := engine.Admit(ctx, newCandidate("second", "t2_one", "Same question"))
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	if outcome != ingest.OutcomeSkippedDuplicate {
		t.Fatalf("expected duplicate skip, got %s", outcome)
	}

	held, err := st.ItemByAuthor(ctx, "t2_one")
	if err != nil {
		t.Fatalf("ItemByAuthor failed: %v", err)
	}
	if held == nil || held.ID != "first" {
		t.Fatalf("original item must survive a content duplicate, got %#v", held)
	}
}

func TestResolveAuthorIDEnforcesLimit(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	engine := ingest.NewEngine(st, 50, nil, nil)

	if _, ok := engine.ResolveAuthorID(strings.Repeat("x", 51)); ok {
		t.Fatal("oversize author id must not resolve")
	}
	if _, ok := engine.ResolveAuthorID("  "); ok {
		t.Fatal("blank author id must not resolve")
	}
	id, ok := engine.ResolveAuthorID(" t2_one ")
	if !ok || id != "t2_one" {
		t.Fatalf("expected trimmed id, got %q ok=%v", id, ok)
	}
}

type fakeFeed struct {
	bySource map[string][]feed.Candidate
	err      error
}

func (f *fakeFeed) FetchNew(_ context.Context, source string, _ int) ([]feed.Candidate, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.bySource[source], nil
}

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) Invalidate() { c.calls++ }

func newOrchestrator(t *testing.T, client feed.Client, inv ingest.Invalidator) (*ingest.Orchestrator, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithSources("golang"))
	st := testsupport.MustOpenStore(t, cfg)
	engine := ingest.NewEngine(st, cfg.Sources.MaxAuthorIDLen, nil, nil)
	reaper := ingest.NewReaper(st, cfg.Sources.RetentionDays, inv, nil)
	return ingest.NewOrchestrator(cfg, client, engine, reaper, nil, inv, nil), st
}

func TestIngestRunCountsOutcomes(t *testing.T) {
	now := time.Now().UTC()
	client := &fakeFeed{bySource: map[string][]feed.Candidate{
		"golang": {
			{ID: "a", Source: "golang", AuthorID: "t2_a", CreatedUTC: now, Title: "one", Body: "b1"},
			{ID: "b", Source: "golang", AuthorID: "t2_b", CreatedUTC: now, Title: "two", Body: "b2"},
			{ID: "c", Source: "golang", CreatedUTC: now, Title: "anon", Body: "b3"},
		},
	}}
	inv := &countingInvalidator{}
	orch, st := newOrchestrator(t, client, inv)

	summary, err := orch.Ingest(context.Background())
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if summary.RunID == "" {
		t.Fatal("expected run id")
	}
	if summary.Fetched != 3 || summary.Inserted != 2 || summary.Discarded != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if inv.calls == 0 {
		t.Fatal("expected cache invalidation after admissions")
	}

	stats, err := st.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[store.StatusOpen] != 2 {
		t.Fatalf("unexpected stats: %v", stats)
	}
}

func TestIngestFreshnessEarlyExit(t *testing.T) {
	now := time.Now().UTC()
	client := &fakeFeed{bySource: map[string][]feed.Candidate{
		"golang": {
			{ID: "fresh", Source: "golang", AuthorID: "t2_f", CreatedUTC: now, Title: "fresh", Body: "b"},
			{ID: "stale", Source: "golang", AuthorID: "t2_s", CreatedUTC: now.Add(-4 * 24 * time.Hour), Title: "stale", Body: "b"},
			{ID: "older", Source: "golang", AuthorID: "t2_o", CreatedUTC: now.Add(-5 * 24 * time.Hour), Title: "older", Body: "b"},
		},
	}}
	orch, st := newOrchestrator(t, client, nil)

	summary, err := orch.Ingest(context.Background())
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if summary.Inserted != 1 {
		t.Fatalf("expected only the fresh item admitted: %+v", summary)
	}
	exists, err := st.ItemExists(context.Background(), "stale")
	if err != nil {
		t.Fatalf("ItemExists failed: %v", err)
	}
	if exists {
		t.Fatal("stale candidate must not be admitted")
	}
}

func TestIngestStopsAtSeenItem(t *testing.T) {
	now := time.Now().UTC()
	client := &fakeFeed{bySource: map[string][]feed.Candidate{
		"golang": {
			{ID: "newest", Source: "golang", AuthorID: "t2_n", CreatedUTC: now, Title: "newest", Body: "b"},
			{ID: "known", Source: "golang", AuthorID: "t2_k", CreatedUTC: now.Add(-time.Hour), Title: "known", Body: "b"},
			{ID: "behind", Source: "golang", AuthorID: "t2_b", CreatedUTC: now.Add(-2 * time.Hour), Title: "behind", Body: "b"},
		},
	}}
	orch, st := newOrchestrator(t, client, nil)

	ctx := context.Background()
	testsupport.SeedItem(t, st, "known", "")

	summary, err := orch.Ingest(ctx)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if summary.Inserted != 1 {
		t.Fatalf("expected only the newest item admitted: %+v", summary)
	}
	exists, err := st.ItemExists(ctx, "behind")
	if err != nil {
		t.Fatalf("ItemExists failed: %v", err)
	}
	if exists {
		t.Fatal("items behind the catch-up point must not be admitted")
	}
}

func TestIngestSourceFailureIsIsolated(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSources("downsource", "golang"))
	st := testsupport.MustOpenStore(t, cfg)
	client := &downFirstFeed{good: map[string][]feed.Candidate{
		"golang": {{ID: "a", Source: "golang", AuthorID: "t2_a", CreatedUTC: time.Now().UTC(), Title: "one", Body: "b"}},
	}}
	engine := ingest.NewEngine(st, cfg.Sources.MaxAuthorIDLen, nil, nil)
	reaper := ingest.NewReaper(st, cfg.Sources.RetentionDays, nil, nil)
	orch := ingest.NewOrchestrator(cfg, client, engine, reaper, nil, nil, nil)

	summary, err := orch.Ingest(context.Background())
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if summary.Errors != 1 {
		t.Fatalf("expected 1 source error, got %+v", summary)
	}
	if summary.Inserted != 1 {
		t.Fatalf("healthy source must still ingest: %+v", summary)
	}
}

type downFirstFeed struct {
	good map[string][]feed.Candidate
}

func (f *downFirstFeed) FetchNew(_ context.Context, source string, _ int) ([]feed.Candidate, error) {
	if candidates, ok := f.good[source]; ok {
		return candidates, nil
	}
	return nil, errors.New("source unavailable")
}

func TestIngestReapsStaleItems(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSources("golang"))
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	old := &store.Item{ID: "ancient", Source: "golang", CreatedUTC: time.Now().UTC().Add(-30 * 24 * time.Hour)}
	if err := st.InsertItem(ctx, old); err != nil {
		t.Fatalf("InsertItem failed: %v", err)
	}

	engine := ingest.NewEngine(st, cfg.Sources.MaxAuthorIDLen, nil, nil)
	reaper := ingest.NewReaper(st, cfg.Sources.RetentionDays, nil, nil)
	orch := ingest.NewOrchestrator(cfg, &fakeFeed{}, engine, reaper, nil, nil, nil)

	summary, err := orch.Ingest(ctx)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if summary.Reaped != 1 {
		t.Fatalf("expected 1 reaped item, got %+v", summary)
	}
}

func TestIngestLockPreventsConcurrentRuns(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSources("golang"))
	st := testsupport.MustOpenStore(t, cfg)
	engine := ingest.NewEngine(st, cfg.Sources.MaxAuthorIDLen, nil, nil)
	reaper := ingest.NewReaper(st, cfg.Sources.RetentionDays, nil, nil)
	orch := ingest.NewOrchestrator(cfg, &fakeFeed{}, engine, reaper, nil, nil, nil)

	lock := flock.New(cfg.IngestLockPath())
	locked, err := lock.TryLock()
	if err != nil || !locked {
		t.Fatalf("could not pre-acquire lock: %v", err)
	}
	defer lock.Unlock()

	if _, err := orch.Ingest(context.Background()); !errors.Is(err, ingest.ErrIngestLocked) {
		t.Fatalf("expected ErrIngestLocked, got %v", err)
	}
}

type stubExtractor struct {
	text string
	err  error
	urls []string
}

func (s *stubExtractor) ExtractImageText(_ context.Context, imageURL string) (string, error) {
	s.urls = append(s.urls, imageURL)
	if s.err != nil {
		return "", s.err
	}
	return s.text, nil
}

func TestIngestTranscribesImagePosts(t *testing.T) {
	now := time.Now().UTC()
	client := &fakeFeed{bySource: map[string][]feed.Candidate{
		"golang": {
			{ID: "img", Source: "golang", AuthorID: "t2_i", CreatedUTC: now, Title: "screenshot", MediaURL: "https://i.example.com/trace.png"},
			{ID: "txt", Source: "golang", AuthorID: "t2_t", CreatedUTC: now, Title: "plain", Body: "b"},
		},
	}}
	cfg := testsupport.NewConfig(t, testsupport.WithSources("golang"))
	st := testsupport.MustOpenStore(t, cfg)
	engine := ingest.NewEngine(st, cfg.Sources.MaxAuthorIDLen, nil, nil)
	reaper := ingest.NewReaper(st, cfg.Sources.RetentionDays, nil, nil)
	extractor := &stubExtractor{text: "panic: runtime error"}
	orch := ingest.NewOrchestrator(cfg, client, engine, reaper, extractor, nil, nil)

	ctx := context.Background()
	summary, err := orch.Ingest(ctx)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if summary.Inserted != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(extractor.urls) != 1 || extractor.urls[0] != "https://i.example.com/trace.png" {
		t.Fatalf("unexpected extractor calls: %v", extractor.urls)
	}

	img, err := st.GetItem(ctx, "img")
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if img.OCRText != "panic: runtime error" {
		t.Fatalf("expected transcription stored, got %q", img.OCRText)
	}
	txt, err := st.GetItem(ctx, "txt")
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if txt.OCRText != "" {
		t.Fatalf("text post must not carry a transcription, got %q", txt.OCRText)
	}
}

func TestIngestTranscriptionFailureDoesNotBlockAdmission(t *testing.T) {
	now := time.Now().UTC()
	client := &fakeFeed{bySource: map[string][]feed.Candidate{
		"golang": {
			{ID: "img", Source: "golang", AuthorID: "t2_i", CreatedUTC: now, Title: "screenshot", MediaURL: "https://i.example.com/trace.jpg"},
		},
	}}
	cfg := testsupport.NewConfig(t, testsupport.WithSources("golang"))
	st := testsupport.MustOpenStore(t, cfg)
	engine := ingest.NewEngine(st, cfg.Sources.MaxAuthorIDLen, nil, nil)
	reaper := ingest.NewReaper(st, cfg.Sources.RetentionDays, nil, nil)
	extractor := &stubExtractor{err: errors.New("model down")}
	orch := ingest.NewOrchestrator(cfg, client, engine, reaper, extractor, nil, nil)

	ctx := context.Background()
	summary, err := orch.Ingest(ctx)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if summary.Inserted != 1 || summary.Errors != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	item, err := st.GetItem(ctx, "img")
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if item == nil || item.OCRText != "" {
		t.Fatalf("expected item admitted without transcription, got %#v", item)
	}
}

type stubProfiles struct {
	profile feed.AuthorProfile
	err     error
}

func (s stubProfiles) FetchAuthorProfile(context.Context, string) (feed.AuthorProfile, error) {
	return s.profile, s.err
}

func TestAdmitPopulatesAuthorProfile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	created := time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC)
	profiles := stubProfiles{profile: feed.AuthorProfile{
		CreatedUTC:   created,
		CommentKarma: 1200,
		LinkKarma:    300,
		IsVerified:   true,
	}}
	engine := ingest.NewEngine(st, 50, profiles, nil)

	ctx := context.Background()
	if _, err := engine.Admit(ctx, newCandidate("abc", "t2_one", "First question")); err != nil {
		t.Fatalf("Admit failed: %v", err)
	}

	author, err := st.GetAuthor(ctx, "t2_one")
	if err != nil {
		t.Fatalf("GetAuthor failed: %v", err)
	}
	if author == nil {
		t.Fatal("expected author upserted")
	}
	if author.CreatedUTC == nil || !author.CreatedUTC.Equal(created) {
		t.Fatalf("unexpected author creation time: %#v", author.CreatedUTC)
	}
	if author.CommentKarma != 1200 || author.LinkKarma != 300 || !author.IsVerified {
		t.Fatalf("unexpected author profile: %#v", author)
	}
}

func TestAdmitProfileLookupFailureIsBestEffort(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	engine := ingest.NewEngine(st, 50, stubProfiles{err: errors.New("about endpoint down")}, nil)

	ctx := context.Background()
	outcome, err := engine.Admit(ctx, newCandidate("abc", "t2_one", "First question"))
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	if outcome != ingest.OutcomeInserted {
		t.Fatalf("expected inserted, got %s", outcome)
	}

	author, err := st.GetAuthor(ctx, "t2_one")
	if err != nil {
		t.Fatalf("GetAuthor failed: %v", err)
	}
	if author == nil || author.Username != "author-t2_one" {
		t.Fatalf("expected author upserted without profile, got %#v", author)
	}
}
