package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// Schema files apply in lexical order and are tracked by file name, minus
// the extension, in schema_migrations. The whole upgrade runs in one
// transaction so a failure leaves the database at the previous version.

//go:embed migrations/*.sql
var schemaFS embed.FS

type schemaFile struct {
	version string
	ddl     string
}

func readSchemaFiles() ([]schemaFile, error) {
	names, err := fs.Glob(schemaFS, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list schema files: %w", err)
	}
	sort.Strings(names)

	files := make([]schemaFile, 0, len(names))
	for _, name := range names {
		ddl, err := schemaFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read schema file %s: %w", name, err)
		}
		files = append(files, schemaFile{
			version: strings.TrimSuffix(strings.TrimPrefix(name, "migrations/"), ".sql"),
			ddl:     string(ddl),
		})
	}
	return files, nil
}

func (s *Store) applyMigrations(ctx context.Context) error {
	files, err := readSchemaFiles()
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY)"); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	applied, err := appliedVersions(ctx, tx)
	if err != nil {
		return err
	}

	for _, file := range files {
		if applied[file.version] {
			continue
		}
		if _, err := tx.ExecContext(ctx, file.ddl); err != nil {
			return fmt.Errorf("apply schema %s: %w", file.version, err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", file.version); err != nil {
			return fmt.Errorf("record schema %s: %w", file.version, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema upgrade: %w", err)
	}
	return nil
}

func appliedVersions(ctx context.Context, tx *sql.Tx) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("load applied versions: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan applied version: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied versions: %w", err)
	}
	return applied, nil
}
