package postgres

import (
	"context"
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

type migration struct {
	Version  string
	SQL      string
	Checksum string
}

// Migrate applies every embedded migration not yet recorded in
// schema_migrations, each in its own transaction. It returns the versions it
// applied.
func (db *DB) Migrate(ctx context.Context) ([]string, error) {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			checksum TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied := map[string]string{}
	rows, err := db.QueryxContext(ctx, `SELECT version, checksum FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}
	for rows.Next() {
		var version, checksum string
		if err := rows.Scan(&version, &checksum); err != nil {
			rows.Close()
			return nil, err
		}
		applied[version] = checksum
	}
	rows.Close()

	files, err := loadMigrations(migrationFS)
	if err != nil {
		return nil, err
	}

	var done []string
	for _, m := range files {
		if checksum, ok := applied[m.Version]; ok {
			if checksum != m.Checksum {
				log.Warn().Str("version", m.Version).Msg("applied migration differs from embedded file")
			}
			continue
		}

		err := db.WithTx(ctx, func(tx *sqlx.Tx) error {
			if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, checksum) VALUES ($1, $2)`, m.Version, m.Checksum)
			return err
		})
		if err != nil {
			return done, fmt.Errorf("failed to apply migration %s: %w", m.Version, err)
		}

		log.Info().Str("version", m.Version).Msg("applied migration")
		done = append(done, m.Version)
	}

	return done, nil
}

func loadMigrations(fsys fs.FS) ([]migration, error) {
	paths, err := fs.Glob(fsys, "migrations/*.sql")
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}
	sort.Strings(paths)

	out := make([]migration, 0, len(paths))
	for _, p := range paths {
		body, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", p, err)
		}
		name := strings.TrimSuffix(p[strings.LastIndex(p, "/")+1:], ".sql")
		out = append(out, migration{
			Version:  name,
			SQL:      string(body),
			Checksum: fmt.Sprintf("%x", sha256.Sum256(body)),
		})
	}
	return out, nil
}
