package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const itemColumns = "id, source, author_id, created_utc, title, body, ocr_text, flair, upvote_score, comment_count, url, status, relevance_score, theme, summary, tags, rationale, analyzed_at, ingested_at"

// GetItem fetches an item by identifier. Returns nil when no row matches.
func (s *Store) GetItem(ctx context.Context, id string) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// ItemExists reports whether an item with the given identifier is stored.
func (s *Store) ItemExists(ctx context.Context, id string) (bool, error) {
	var count int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM items WHERE id = ?`, id)
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("item exists: %w", err)
	}
	return count > 0, nil
}

// ItemByAuthor returns the stored item held by an author, or nil when the
// author holds no item.
func (s *Store) ItemByAuthor(ctx context.Context, authorID string) (*Item, error) {
	if authorID == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE author_id = ? LIMIT 1`, authorID)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("item by author: %w", err)
	}
	return item, nil
}

// InsertItem persists a new item.
func (s *Store) InsertItem(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	if item.Status == "" {
		item.Status = StatusOpen
	}
	if item.IngestedAt.IsZero() {
		item.IngestedAt = time.Now().UTC()
	}
	_, err := s.execRetry(
		ctx,
		`INSERT INTO items (`+itemColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.Source,
		nullableString(item.AuthorID),
		formatTime(item.CreatedUTC),
		nullableString(item.Title),
		nullableString(item.Body),
		nullableString(item.OCRText),
		nullableString(item.Flair),
		item.UpvoteScore,
		item.CommentCount,
		nullableString(item.URL),
		item.Status,
		nullableFloat(item.RelevanceScore),
		nullableString(item.Theme),
		nullableString(item.Summary),
		nullableString(item.Tags),
		nullableString(item.Rationale),
		nullableTime(item.AnalyzedAt),
		formatTime(item.IngestedAt),
	)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

// ReplaceAuthorItem atomically removes the author's stored item and inserts
// the replacement in its place.
func (s *Store) ReplaceAuthorItem(ctx context.Context, authorID string, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	if authorID == "" {
		return errors.New("author id is empty")
	}
	if item.Status == "" {
		item.Status = StatusOpen
	}
	if item.IngestedAt.IsZero() {
		item.IngestedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE author_id = ?`, authorID); err != nil {
		return fmt.Errorf("delete prior item: %w", err)
	}
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO items (`+itemColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.Source,
		nullableString(item.AuthorID),
		formatTime(item.CreatedUTC),
		nullableString(item.Title),
		nullableString(item.Body),
		nullableString(item.OCRText),
		nullableString(item.Flair),
		item.UpvoteScore,
		item.CommentCount,
		nullableString(item.URL),
		item.Status,
		nullableFloat(item.RelevanceScore),
		nullableString(item.Theme),
		nullableString(item.Summary),
		nullableString(item.Tags),
		nullableString(item.Rationale),
		nullableTime(item.AnalyzedAt),
		formatTime(item.IngestedAt),
	); err != nil {
		return fmt.Errorf("insert replacement item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace tx: %w", err)
	}
	return nil
}

// DeleteItem removes an item by identifier.
func (s *Store) DeleteItem(ctx context.Context, id string) (bool, error) {
	res, err := s.execRetry(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// UpdateStatus transitions an item to the given status.
func (s *Store) UpdateStatus(ctx context.Context, id string, status Status) (bool, error) {
	if _, ok := statusSet[status]; !ok {
		return false, fmt.Errorf("unknown status %q", status)
	}
	res, err := s.execRetry(ctx, `UPDATE items SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return false, fmt.Errorf("update status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// UpdateAnalysis records enrichment results for an item.
func (s *Store) UpdateAnalysis(ctx context.Context, id string, analysis Analysis) error {
	analyzedAt := analysis.AnalyzedAt
	if analyzedAt.IsZero() {
		analyzedAt = time.Now().UTC()
	}
	_, err := s.execRetry(
		ctx,
		`UPDATE items
         SET relevance_score = ?, theme = ?, summary = ?, tags = ?, rationale = ?, analyzed_at = ?
         WHERE id = ?`,
		analysis.RelevanceScore,
		nullableString(analysis.Theme),
		nullableString(analysis.Summary),
		nullableString(analysis.Tags),
		nullableString(analysis.Rationale),
		formatTime(analyzedAt),
		id,
	)
	if err != nil {
		return fmt.Errorf("update analysis: %w", err)
	}
	return nil
}

// UnanalyzedItems returns items awaiting enrichment, oldest first.
func (s *Store) UnanalyzedItems(ctx context.Context, limit int) ([]*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE analyzed_at IS NULL ORDER BY ingested_at`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query unanalyzed items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// CountItemsIngestedAfter counts items whose ingestion timestamp is strictly
// after the given instant.
func (s *Store) CountItemsIngestedAfter(ctx context.Context, after time.Time) (int, error) {
	var count int
	row := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM items WHERE ingested_at > ?`,
		formatTime(after),
	)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count recent items: %w", err)
	}
	return count, nil
}

// ReapOlderThan deletes unprotected items created before the cutoff.
func (s *Store) ReapOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	protected := ProtectedStatuses()
	placeholders := makePlaceholders(len(protected))
	args := make([]any, 0, len(protected)+1)
	args = append(args, formatTime(cutoff))
	for _, status := range protected {
		args = append(args, status)
	}
	res, err := s.execRetry(
		ctx,
		`DELETE FROM items WHERE created_utc < ? AND status NOT IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("reap stale items: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of items grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("item stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id           string
		source       string
		authorID     sql.NullString
		createdRaw   sql.NullString
		title        sql.NullString
		body         sql.NullString
		ocrText      sql.NullString
		flair        sql.NullString
		upvoteScore  sql.NullInt64
		commentCount sql.NullInt64
		url          sql.NullString
		statusStr    string
		relevance    sql.NullFloat64
		theme        sql.NullString
		summary      sql.NullString
		tags         sql.NullString
		rationale    sql.NullString
		analyzedRaw  sql.NullString
		ingestedRaw  sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&source,
		&authorID,
		&createdRaw,
		&title,
		&body,
		&ocrText,
		&flair,
		&upvoteScore,
		&commentCount,
		&url,
		&statusStr,
		&relevance,
		&theme,
		&summary,
		&tags,
		&rationale,
		&analyzedRaw,
		&ingestedRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:           id,
		Source:       source,
		AuthorID:     authorID.String,
		Title:        title.String,
		Body:         body.String,
		OCRText:      ocrText.String,
		Flair:        flair.String,
		UpvoteScore:  upvoteScore.Int64,
		CommentCount: commentCount.Int64,
		URL:          url.String,
		Status:       Status(statusStr),
		Theme:        theme.String,
		Summary:      summary.String,
		Tags:         tags.String,
		Rationale:    rationale.String,
	}
	if relevance.Valid {
		score := relevance.Float64
		item.RelevanceScore = &score
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedUTC = created
	}
	if analyzedRaw.Valid {
		if analyzed, err := parseTimeString(analyzedRaw.String); err == nil {
			item.AnalyzedAt = &analyzed
		}
	}
	if ingested, err := parseTimeString(ingestedRaw.String); err == nil {
		item.IngestedAt = ingested
	}
	return item, nil
}
