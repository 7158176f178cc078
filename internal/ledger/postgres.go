package ledger

import (
	"context"
	"errors"
	"fmt"

	"slot-settlement/internal/status"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createRecordsTable = `
CREATE TABLE IF NOT EXISTS ledger_records (
	key        TEXT PRIMARY KEY,
	value      BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore runs each instruction in a SERIALIZABLE transaction and
// locks every record it reads with SELECT ... FOR UPDATE.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func NewPostgresStoreFromPool(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, createRecordsTable)
	return err
}

func (s *PostgresStore) Execute(ctx context.Context, fn func(tx *Tx) error) error {
	pgtx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}

	tx := newTx(ctx, func(ctx context.Context, key string) ([]byte, error) {
		var v []byte
		err := pgtx.QueryRow(ctx, `SELECT value FROM ledger_records WHERE key = $1 FOR UPDATE`, key).Scan(&v)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return v, err
	})

	if err := fn(tx); err != nil {
		_ = pgtx.Rollback(ctx)
		return mapPgError(err)
	}

	for _, w := range tx.writes {
		if w.value == nil {
			_, err = pgtx.Exec(ctx, `DELETE FROM ledger_records WHERE key = $1`, w.key)
		} else {
			_, err = pgtx.Exec(ctx, `
				INSERT INTO ledger_records (key, value) VALUES ($1, $2)
				ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
				w.key, w.value)
		}
		if err != nil {
			_ = pgtx.Rollback(ctx)
			return mapPgError(err)
		}
	}

	return mapPgError(pgtx.Commit(ctx))
}

// mapPgError turns serialization failures and deadlocks into the retryable
// concurrency error.
func mapPgError(err error) error {
	if isSerializationFailure(err) {
		return status.ErrConcurrentModification
	}
	return err
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
