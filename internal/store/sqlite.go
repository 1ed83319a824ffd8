package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteTable keeps the job table in a single sqlite file. Write replaces all
// rows inside one transaction.
type SQLiteTable struct {
	path string
}

func NewSQLiteTable(path string) *SQLiteTable { return &SQLiteTable{path: path} }

func (t *SQLiteTable) Path() string { return t.path }

// openDB opens path with a single connection; sqlite allows one writer.
func openDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates the jobs table; user_version tracks the layout.
func Migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}
	if v >= 1 {
		return tx.Commit()
	}

	if _, err := tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS jobs (
  position INTEGER NOT NULL,
  identity TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  company TEXT NOT NULL,
  location TEXT NOT NULL,
  job_type TEXT NOT NULL,
  url TEXT NOT NULL,
  posted_at TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  first_seen TEXT NOT NULL,
  last_seen TEXT NOT NULL,
  published TEXT NOT NULL DEFAULT 'false',
  post_id TEXT NOT NULL DEFAULT ''
);
`); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
CREATE INDEX IF NOT EXISTS idx_jobs_position
ON jobs(position);
`); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `PRAGMA user_version = 1;`); err != nil {
		return err
	}
	return tx.Commit()
}

func (t *SQLiteTable) Read(ctx context.Context) (*Snapshot, error) {
	// sql.Open would happily create a missing file
	if _, err := os.Stat(t.path); err != nil {
		return nil, err
	}

	db, err := openDB(ctx, t.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `
SELECT identity, title, company, location, job_type, url, posted_at, description,
       status, first_seen, last_seen, published, post_id
FROM jobs
ORDER BY position;`)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer rows.Close()

	out := [][]string{Columns}
	for rows.Next() {
		row := make([]string, len(Columns))
		ptrs := make([]any, len(row))
		for i := range row {
			ptrs[i] = &row[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return snapshotFromRows(out)
}

func (t *SQLiteTable) Write(ctx context.Context, s *Snapshot) error {
	db, err := openDB(ctx, t.path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM jobs;`); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO jobs(position, identity, title, company, location, job_type, url, posted_at, description,
                 status, first_seen, last_seen, published, post_id)
VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?);`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range s.Records() {
		args := []any{i}
		for _, v := range toRow(r) {
			args = append(args, v)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert %s: %w", r.Identity, err)
		}
	}

	return tx.Commit()
}
