package store

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// ListItems returns items matching the filter, newest first.
func (s *Store) ListItems(ctx context.Context, filter ListFilter) ([]*Item, error) {
	builder := sq.Select(itemColumns).
		From("items").
		OrderBy("created_utc DESC")

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			statuses[i] = string(status)
		}
		builder = builder.Where(sq.Eq{"status": statuses})
	}
	if filter.Source != "" {
		builder = builder.Where(sq.Eq{"source": filter.Source})
	}
	if filter.MinScore != nil {
		builder = builder.Where(sq.GtOrEq{"relevance_score": *filter.MinScore})
	}
	if filter.Analyzed != nil {
		if *filter.Analyzed {
			builder = builder.Where(sq.NotEq{"analyzed_at": nil})
		} else {
			builder = builder.Where(sq.Eq{"analyzed_at": nil})
		}
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build item query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
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

// DistinctSources returns the sources present in the items table.
func (s *Store) DistinctSources(ctx context.Context) ([]string, error) {
	return s.distinctColumn(ctx, "source")
}

// DistinctThemes returns the enrichment themes present in the items table.
func (s *Store) DistinctThemes(ctx context.Context) ([]string, error) {
	return s.distinctColumn(ctx, "theme")
}

// DistinctFlairs returns the flairs present in the items table.
func (s *Store) DistinctFlairs(ctx context.Context) ([]string, error) {
	return s.distinctColumn(ctx, "flair")
}

func (s *Store) distinctColumn(ctx context.Context, column string) ([]string, error) {
	query, args, err := sq.Select("DISTINCT " + column).
		From("items").
		Where(sq.NotEq{column: nil}).
		OrderBy(column).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build distinct query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("distinct %s: %w", column, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, err
		}
		if value != "" {
			values = append(values, value)
		}
	}
	return values, rows.Err()
}
