package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const authorColumns = "id, username, created_utc, comment_karma, link_karma, is_verified, first_seen_at, updated_at"

// GetAuthor fetches an author by identifier. Returns nil when no row matches.
func (s *Store) GetAuthor(ctx context.Context, id string) (*Author, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+authorColumns+` FROM authors WHERE id = ?`, id)
	author, err := scanAuthor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get author: %w", err)
	}
	return author, nil
}

// UpsertAuthor inserts or merges an author record. Existing non-null fields
// are preserved when the incoming record omits them.
func (s *Store) UpsertAuthor(ctx context.Context, author *Author) error {
	if author == nil {
		return errors.New("author is nil")
	}
	if author.ID == "" {
		return errors.New("author id is empty")
	}
	now := time.Now().UTC()
	if author.FirstSeenAt.IsZero() {
		author.FirstSeenAt = now
	}
	author.UpdatedAt = now

	_, err := s.execRetry(
		ctx,
		`INSERT INTO authors (`+authorColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
            username = COALESCE(excluded.username, authors.username),
            created_utc = COALESCE(excluded.created_utc, authors.created_utc),
            comment_karma = MAX(excluded.comment_karma, authors.comment_karma),
            link_karma = MAX(excluded.link_karma, authors.link_karma),
            is_verified = MAX(excluded.is_verified, authors.is_verified),
            updated_at = excluded.updated_at`,
		author.ID,
		nullableString(author.Username),
		nullableTime(author.CreatedUTC),
		author.CommentKarma,
		author.LinkKarma,
		boolToInt(author.IsVerified),
		formatTime(author.FirstSeenAt),
		formatTime(author.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert author: %w", err)
	}
	return nil
}

// CountAuthors returns the number of tracked authors.
func (s *Store) CountAuthors(ctx context.Context) (int, error) {
	var count int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM authors`)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count authors: %w", err)
	}
	return count, nil
}

func scanAuthor(scanner interface{ Scan(dest ...any) error }) (*Author, error) {
	var (
		id           string
		username     sql.NullString
		createdRaw   sql.NullString
		commentKarma sql.NullInt64
		linkKarma    sql.NullInt64
		isVerified   sql.NullInt64
		firstSeenRaw sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&username,
		&createdRaw,
		&commentKarma,
		&linkKarma,
		&isVerified,
		&firstSeenRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	author := &Author{
		ID:           id,
		Username:     username.String,
		CommentKarma: commentKarma.Int64,
		LinkKarma:    linkKarma.Int64,
		IsVerified:   isVerified.Int64 != 0,
	}
	if createdRaw.Valid {
		if created, err := parseTimeString(createdRaw.String); err == nil {
			author.CreatedUTC = &created
		}
	}
	if firstSeen, err := parseTimeString(firstSeenRaw.String); err == nil {
		author.FirstSeenAt = firstSeen
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		author.UpdatedAt = updated
	}
	return author, nil
}
