package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nmckee/stint/internal/db"
)

// SQLiteKVRepo implements KVRepo. INSERT OR REPLACE gives the atomic
// whole-value replace semantics the aggregation cache relies on: a crash
// mid-write leaves either the old or the new complete value.
type SQLiteKVRepo struct {
	db db.DBTX
}

// NewSQLiteKVRepo creates a new SQLiteKVRepo.
func NewSQLiteKVRepo(db db.DBTX) *SQLiteKVRepo {
	return &SQLiteKVRepo{db: db}
}

func (r *SQLiteKVRepo) Get(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading kv %q: %w", key, err)
	}
	return []byte(value), nil
}

func (r *SQLiteKVRepo) Set(ctx context.Context, key string, value []byte) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO kv_store (key, value, updated_at) VALUES (?, ?, ?)`,
		key, string(value), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("writing kv %q: %w", key, err)
	}
	return nil
}

func (r *SQLiteKVRepo) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM kv_store WHERE key = ?`, key); err != nil {
		return fmt.Errorf("deleting kv %q: %w", key, err)
	}
	return nil
}
