package snapshot

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eyecare/clinic/internal/platform/db"
)

// Postgres stores buckets in the clinic_state table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to dsn and ensures the state table exists.
func NewPostgres(ctx context.Context, dsn string, maxConns, minConns int32) (*Postgres, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres snapshot requires a DSN")
	}
	pool, err := db.NewPool(ctx, dsn, maxConns, minConns)
	if err != nil {
		return nil, err
	}
	p := NewPostgresFromPool(pool)
	if err := p.EnsureTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// NewPostgresFromPool wraps an existing pool. Call EnsureTable before first
// use when the pool was not opened by NewPostgres.
func NewPostgresFromPool(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureTable creates clinic_state when missing.
func (p *Postgres) EnsureTable(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS clinic_state (
		bucket TEXT PRIMARY KEY,
		payload JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("ensure clinic_state table: %w", err)
	}
	return nil
}

func (p *Postgres) Load(ctx context.Context) (map[string][]byte, error) {
	rows, err := p.pool.Query(ctx, `SELECT bucket, payload FROM clinic_state`)
	if err != nil {
		return nil, fmt.Errorf("select clinic_state: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out[bucket] = payload
	}
	return out, rows.Err()
}

func (p *Postgres) Save(ctx context.Context, buckets map[string][]byte) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		for bucket, payload := range buckets {
			if _, err := tx.Exec(ctx,
				`INSERT INTO clinic_state (bucket, payload, updated_at) VALUES ($1, $2, now())
				 ON CONFLICT (bucket) DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()`,
				bucket, payload); err != nil {
				return fmt.Errorf("upsert %s: %w", bucket, err)
			}
		}
		return nil
	})
}

func (p *Postgres) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

// Pool exposes the connection pool for health reporting.
func (p *Postgres) Pool() *pgxpool.Pool { return p.pool }

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
