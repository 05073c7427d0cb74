package feature

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// Migrations holds the goose migrations for the feature_flags table.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// pgxDB is the subset of *pgxpool.Pool the provider needs.
type pgxDB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

const (
	selectFlagsSQL = `SELECT name, definition, revision, updated_at FROM feature_flags`
	pruneFlagsSQL  = `DELETE FROM feature_flags WHERE NOT (name = ANY($1))`
	upsertFlagSQL  = `INSERT INTO feature_flags (name, definition, revision, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (name) DO UPDATE
SET definition = EXCLUDED.definition, revision = EXCLUDED.revision, updated_at = EXCLUDED.updated_at`
)

// PostgresProvider stores one row per flag. The document version is the
// highest row revision; a save rewrites the whole set in one transaction.
type PostgresProvider struct {
	db pgxDB
}

// NewPostgresProvider returns a provider using db, typically a *pgxpool.Pool
// on which Migrations have been applied.
func NewPostgresProvider(db pgxDB) *PostgresProvider {
	return &PostgresProvider{db: db}
}

// Load reads every flag row.
func (p *PostgresProvider) Load(ctx context.Context) (Document, error) {
	rows, err := p.db.Query(ctx, selectFlagsSQL)
	if err != nil {
		return Document{}, errors.Join(ErrLoadFailed, err)
	}
	defer rows.Close()

	doc := NewDocument()
	for rows.Next() {
		var (
			name      string
			raw       []byte
			revision  int64
			updatedAt time.Time
		)
		if err := rows.Scan(&name, &raw, &revision, &updatedAt); err != nil {
			return Document{}, errors.Join(ErrLoadFailed, err)
		}
		f := &Flag{}
		if err := json.Unmarshal(raw, f); err != nil {
			return Document{}, errors.Join(ErrLoadFailed, err)
		}
		f.Name = name
		doc.Flags[name] = f
		doc.Version = max(doc.Version, revision)
		if updatedAt.After(doc.LastUpdated) {
			doc.LastUpdated = updatedAt
		}
	}
	if err := rows.Err(); err != nil {
		return Document{}, errors.Join(ErrLoadFailed, err)
	}
	return doc, nil
}

// Save replaces the stored flag set with doc.
func (p *PostgresProvider) Save(ctx context.Context, doc Document) (err error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return errors.Join(ErrSaveFailed, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	names := doc.Names()
	if names == nil {
		// A nil slice is sent as NULL and ANY(NULL) matches nothing.
		names = []string{}
	}
	if _, err = tx.Exec(ctx, pruneFlagsSQL, names); err != nil {
		return errors.Join(ErrSaveFailed, err)
	}

	batch := &pgx.Batch{}
	for _, name := range names {
		raw, merr := json.Marshal(doc.Flags[name])
		if merr != nil {
			err = merr
			return errors.Join(ErrSaveFailed, err)
		}
		updatedAt := doc.Flags[name].UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = doc.LastUpdated
		}
		batch.Queue(upsertFlagSQL, name, raw, doc.Version, updatedAt)
	}
	if batch.Len() > 0 {
		if err = tx.SendBatch(ctx, batch).Close(); err != nil {
			return errors.Join(ErrSaveFailed, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return errors.Join(ErrSaveFailed, err)
	}
	return nil
}

// Close is a no-op; the pool is owned by the caller.
func (p *PostgresProvider) Close() error {
	return nil
}
