// Package db owns the job registry's Postgres schema and connections.
package db

import (
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"io/fs"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migration is one embedded schema change.
type Migration struct {
	Name     string
	SQL      string
	Checksum string
}

// Migrations returns the embedded migrations in the order they are applied.
func Migrations() ([]Migration, error) {
	names, err := fs.Glob(migrationFS, "migrations/*.sql")
	if err != nil {
		return nil, errors.WithStack(err)
	}
	sort.Strings(names)

	out := make([]Migration, 0, len(names))
	for _, name := range names {
		b, err := migrationFS.ReadFile(name)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", name)
		}
		sum := sha256.Sum256(b)
		out = append(out, Migration{
			Name:     name,
			SQL:      string(b),
			Checksum: hex.EncodeToString(sum[:]),
		})
	}
	return out, nil
}

// Migrate applies every embedded migration not yet recorded in
// schema_migrations. A recorded migration whose checksum changed is an error.
func Migrate(ctx context.Context, conn *pgx.Conn) error {
	_, err := conn.Exec(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
  filename text PRIMARY KEY,
  checksum text NOT NULL,
  applied_at timestamptz NOT NULL DEFAULT now()
)`)
	if err != nil {
		return errors.Wrap(err, "create schema_migrations")
	}

	migrations, err := Migrations()
	if err != nil {
		return err
	}

	applied := map[string]string{}
	rows, err := conn.Query(ctx, `SELECT filename, checksum FROM schema_migrations`)
	if err != nil {
		return errors.Wrap(err, "select schema_migrations")
	}
	for rows.Next() {
		var fn, sum string
		if err := rows.Scan(&fn, &sum); err != nil {
			rows.Close()
			return errors.Wrap(err, "scan schema_migrations")
		}
		applied[fn] = sum
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "select schema_migrations")
	}

	for _, m := range migrations {
		if prev, ok := applied[m.Name]; ok {
			if prev != m.Checksum {
				return errors.Errorf("migration %s already applied with different checksum (got %s, have %s)", m.Name, m.Checksum, prev)
			}
			log.Debugf("migrations: already applied %s", m.Name)
			continue
		}

		log.Infof("migrations: applying %s", m.Name)
		start := time.Now()
		err := pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.SQL); err != nil {
				return errors.Wrapf(err, "exec %s", m.Name)
			}
			if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (filename, checksum) VALUES ($1,$2)`, m.Name, m.Checksum); err != nil {
				return errors.Wrapf(err, "record %s", m.Name)
			}
			return nil
		})
		if err != nil {
			return err
		}
		log.Infof("migrations: applied %s in %s", m.Name, time.Since(start).Round(time.Millisecond))
	}
	return nil
}
