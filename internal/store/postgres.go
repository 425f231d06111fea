// Package store provides the persistence implementations for nodes and
// capsules: Postgres for production and an in-memory store for tests and
// local runs. Both uphold the idempotent-upsert contract.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/structharvest/harvester/internal/capsule"
)

// PostgresConfig controls the connection pool.
type PostgresConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// pgxPool is the subset of pgxpool.Pool the store needs; pgxmock satisfies
// it in tests.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Postgres persists nodes and capsules in PostgreSQL.
//
// Expected schema:
//
//	CREATE TABLE nodes (
//		id UUID PRIMARY KEY,
//		owner_slug TEXT NOT NULL,
//		source_url TEXT NOT NULL,
//		domain TEXT NOT NULL,
//		category TEXT,
//		last_harvested TIMESTAMPTZ NOT NULL,
//		UNIQUE (owner_slug, domain)
//	);
//	CREATE TABLE capsules (
//		node_id UUID NOT NULL REFERENCES nodes (id),
//		fingerprint TEXT NOT NULL,
//		captured_at TIMESTAMPTZ NOT NULL,
//		status TEXT NOT NULL,
//		envelope JSONB NOT NULL,
//		PRIMARY KEY (node_id, fingerprint)
//	);
type Postgres struct {
	pool  pgxPool
	clock capsule.Clock
}

// NewPostgres connects a pool and returns the store.
func NewPostgres(ctx context.Context, cfg PostgresConfig, clock capsule.Clock) (*Postgres, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Postgres{pool: pool, clock: clock}, nil
}

// NewPostgresWithPool constructs a store from an existing pool (testing).
func NewPostgresWithPool(pool pgxPool, clock capsule.Clock) *Postgres {
	return &Postgres{pool: pool, clock: clock}
}

// Close releases the pool.
func (s *Postgres) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// UpsertNode creates or refreshes the node row keyed by (owner, domain).
// Re-running a job returns the same node identifier.
func (s *Postgres) UpsertNode(ctx context.Context, ownerSlug, sourceURL string) (string, error) {
	domain, err := capsule.DeriveDomain(sourceURL)
	if err != nil {
		return "", err
	}
	query := `
INSERT INTO nodes (id, owner_slug, source_url, domain, last_harvested)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (owner_slug, domain) DO UPDATE
SET source_url = EXCLUDED.source_url,
    last_harvested = EXCLUDED.last_harvested
RETURNING id`

	var nodeID string
	err = s.pool.QueryRow(ctx, query,
		uuid.NewString(), ownerSlug, sourceURL, domain, s.clock.Now(),
	).Scan(&nodeID)
	if err != nil {
		return "", fmt.Errorf("upsert node %s/%s: %w", ownerSlug, domain, err)
	}
	return nodeID, nil
}

// InsertCapsule persists an envelope keyed by (node, fingerprint). A retry
// with the same fingerprint updates the existing row; inserted reports
// whether a new row was created.
func (s *Postgres) InsertCapsule(ctx context.Context, nodeID string, env capsule.Envelope, status capsule.Status) (bool, error) {
	payload, err := json.Marshal(env)
	if err != nil {
		return false, fmt.Errorf("marshal envelope: %w", err)
	}
	query := `
INSERT INTO capsules (node_id, fingerprint, captured_at, status, envelope)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (node_id, fingerprint) DO UPDATE
SET captured_at = EXCLUDED.captured_at,
    status = EXCLUDED.status,
    envelope = EXCLUDED.envelope
RETURNING (xmax = 0)`

	var inserted bool
	err = s.pool.QueryRow(ctx, query,
		nodeID, env.Fingerprint, env.CapturedAt, string(status), payload,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("insert capsule %s: %w", env.Fingerprint, err)
	}
	return inserted, nil
}

// UpdateNodeCategory stores the classifier's label.
func (s *Postgres) UpdateNodeCategory(ctx context.Context, nodeID string, category capsule.Category) error {
	if _, err := s.pool.Exec(ctx,
		`UPDATE nodes SET category = $2 WHERE id = $1`,
		nodeID, string(category),
	); err != nil {
		return fmt.Errorf("update node category: %w", err)
	}
	return nil
}
