package storage

import (
	"context"
	_ "embed"
	"errors"

	"github.com/md-rashed-zaman/apptslots/libs/db"
)

//go:embed schema.sql
var Schema string

// ErrConflict marks an upsert rejected by a uniqueness rule.
var ErrConflict = errors.New("conflict")

// ApplySchema creates missing tables and indexes. It is idempotent.
func ApplySchema(ctx context.Context, pool *db.Pool) error {
	_, err := pool.Exec(ctx, Schema)
	return err
}
