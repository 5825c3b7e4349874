package ingest

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"leadscout/internal/feed"
	"leadscout/internal/logging"
	"leadscout/internal/services"
	"leadscout/internal/store"
)

// Outcome classifies the result of admitting one candidate.
type Outcome string

const (
	// OutcomeInserted means the candidate became a new stored item.
	OutcomeInserted Outcome = "inserted"
	// OutcomeReplaced means the candidate displaced the author's prior item.
	OutcomeReplaced Outcome = "replaced"
	// OutcomeSkippedProtected means the author's prior item holds a
	// protected status and was kept.
	OutcomeSkippedProtected Outcome = "skipped_protected"
	// OutcomeSkippedDuplicate means the candidate is already stored or
	// duplicates the author's existing content.
	OutcomeSkippedDuplicate Outcome = "skipped_duplicate"
)

const maxAuthorIDLen = 50

// Engine admits feed candidates under the one-item-per-author policy.
type Engine struct {
	store          *store.Store
	profiles       feed.ProfileFetcher
	logger         *slog.Logger
	maxAuthorIDLen int
}

// NewEngine builds an admission engine. A nil profile fetcher disables author
// profile lookups; a nil logger disables logging.
func NewEngine(st *store.Store, authorIDLimit int, profiles feed.ProfileFetcher, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	if authorIDLimit <= 0 {
		authorIDLimit = maxAuthorIDLen
	}
	return &Engine{
		store:          st,
		profiles:       profiles,
		logger:         logging.NewComponentLogger(logger, "ingest"),
		maxAuthorIDLen: authorIDLimit,
	}
}

// Seen reports whether an item id is already stored.
func (e *Engine) Seen(ctx context.Context, id string) (bool, error) {
	exists, err := e.store.ItemExists(ctx, id)
	if err != nil {
		return false, services.Wrap(services.ErrStorage, "ingest", "admit", "check existing item", err)
	}
	return exists, nil
}

// ResolveAuthorID normalizes a candidate author id. ok is false when the id
// is empty or longer than the configured limit; such candidates never reach
// storage.
func (e *Engine) ResolveAuthorID(raw string) (string, bool) {
	id := strings.TrimSpace(raw)
	if id == "" || len(id) > e.maxAuthorIDLen {
		return "", false
	}
	return id, true
}

// Admit applies the admission policy to one candidate:
//
//  1. An already-stored item id is a duplicate.
//  2. The author's stored item, if any, decides the candidate's fate.
//  3. No stored item: insert, upserting the author record.
//  4. A protected stored item wins over any candidate, checked before
//     content comparison so protected work is never silently replaced.
//  5. Same title from the same source is a content duplicate.
//  6. Otherwise the candidate replaces the stored item.
func (e *Engine) Admit(ctx context.Context, candidate feed.Candidate) (Outcome, error) {
	exists, err := e.store.ItemExists(ctx, candidate.ID)
	if err != nil {
		return "", services.Wrap(services.ErrStorage, "ingest", "admit", "check existing item", err)
	}
	if exists {
		return OutcomeSkippedDuplicate, nil
	}

	authorID, ok := e.ResolveAuthorID(candidate.AuthorID)
	if !ok {
		return "", services.Wrap(services.ErrValidation, "ingest", "admit", "candidate has no resolvable author", nil)
	}

	existing, err := e.store.ItemByAuthor(ctx, authorID)
	if err != nil {
		return "", services.Wrap(services.ErrStorage, "ingest", "admit", "load author item", err)
	}
	if existing == nil {
		if err := e.upsertAuthor(ctx, authorID, candidate); err != nil {
			return "", err
		}
		if err := e.store.InsertItem(ctx, candidateToItem(candidate, authorID)); err != nil {
			return "", services.Wrap(services.ErrStorage, "ingest", "admit", "insert item", err)
		}
		return OutcomeInserted, nil
	}

	// A skipped candidate leaves the author record untouched too.
	if existing.IsProtected() {
		return OutcomeSkippedProtected, nil
	}

	if sameContent(existing, candidate) {
		return OutcomeSkippedDuplicate, nil
	}

	if err := e.upsertAuthor(ctx, authorID, candidate); err != nil {
		return "", err
	}
	if err := e.store.ReplaceAuthorItem(ctx, authorID, candidateToItem(candidate, authorID)); err != nil {
		return "", services.Wrap(services.ErrStorage, "ingest", "admit", "replace author item", err)
	}
	e.logger.Debug("replaced author item",
		logging.String("author_id", authorID),
		logging.String("previous_item_id", existing.ID),
		logging.String("item_id", candidate.ID))
	return OutcomeReplaced, nil
}

func (e *Engine) upsertAuthor(ctx context.Context, authorID string, candidate feed.Candidate) error {
	author := &store.Author{ID: authorID, Username: candidate.AuthorName}
	if e.profiles != nil && candidate.AuthorName != "" {
		// Profile lookup is best effort; admission proceeds without it.
		profile, err := e.profiles.FetchAuthorProfile(ctx, candidate.AuthorName)
		if err != nil {
			e.logger.Debug("author profile lookup failed",
				logging.String("author_id", authorID),
				logging.Error(err))
		} else {
			if !profile.CreatedUTC.IsZero() {
				created := profile.CreatedUTC
				author.CreatedUTC = &created
			}
			author.CommentKarma = profile.CommentKarma
			author.LinkKarma = profile.LinkKarma
			author.IsVerified = profile.IsVerified
		}
	}
	if err := e.store.UpsertAuthor(ctx, author); err != nil {
		return services.Wrap(services.ErrStorage, "ingest", "admit", "upsert author", err)
	}
	return nil
}

func candidateToItem(candidate feed.Candidate, authorID string) *store.Item {
	created := candidate.CreatedUTC
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return &store.Item{
		ID:           candidate.ID,
		Source:       candidate.Source,
		AuthorID:     authorID,
		CreatedUTC:   created,
		Title:        candidate.Title,
		Body:         candidate.Body,
		OCRText:      candidate.OCRText,
		Flair:        candidate.Flair,
		URL:          candidate.URL,
		UpvoteScore:  candidate.UpvoteScore,
		CommentCount: candidate.CommentCount,
		Status:       store.StatusOpen,
	}
}

func sameContent(existing *store.Item, candidate feed.Candidate) bool {
	return strings.TrimSpace(existing.Title) == strings.TrimSpace(candidate.Title) &&
		strings.TrimSpace(existing.Source) == strings.TrimSpace(candidate.Source)
}
