// Package registry persists trained model artifacts for external
// versioning. The forecasting core never requires it; collaborators that
// want model lineage opt in.
package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/demandcast/backend/internal/contracts"
	"github.com/demandcast/backend/pkg/config"
)

// Repository stores model artifacts in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a connection pool from config and verifies it.
func New(ctx context.Context, cfg config.DatabaseConfig) (*Repository, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for the model registry")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{pool: pool}, nil
}

// NewWithPool wraps an existing pool (used by tests and callers that
// manage their own connections).
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Close releases the connection pool.
func (r *Repository) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

// SaveArtifact stores one trained model artifact and returns its row id.
// Artifacts are append-only: retrains insert new versions, never update.
func (r *Repository) SaveArtifact(ctx context.Context, a contracts.ModelArtifact) (int64, error) {
	query := `
		INSERT INTO forecast.model_artifacts
			(model_id, kind, fitted_state, backtest_error, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	var id int64
	err := r.pool.QueryRow(ctx, query,
		a.ModelID, a.Kind, a.FittedState, a.BacktestError, a.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("save artifact failed: %w", err)
	}
	return id, nil
}

// SaveAll stores every serializable model from a trained set in one batch.
// Models that do not implement contracts.StateMarshaler are skipped.
func (r *Repository) SaveAll(ctx context.Context, trained []contracts.TrainedModel) (int, error) {
	batch := &pgx.Batch{}
	query := `
		INSERT INTO forecast.model_artifacts
			(model_id, kind, fitted_state, backtest_error, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	queued := 0
	for _, tm := range trained {
		marshaler, ok := tm.Model.(contracts.StateMarshaler)
		if !ok {
			continue
		}
		state, err := marshaler.MarshalState()
		if err != nil {
			return 0, fmt.Errorf("marshal state for %s failed: %w", tm.ModelID, err)
		}
		batch.Queue(query, tm.ModelID, tm.Kind, state, tm.BacktestError, tm.CreatedAt)
		queued++
	}
	if queued == 0 {
		return 0, nil
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < queued; i++ {
		if _, err := results.Exec(); err != nil {
			return i, fmt.Errorf("batch insert failed at %d: %w", i, err)
		}
	}
	return queued, nil
}

// Latest returns the most recent artifact for a model id.
func (r *Repository) Latest(ctx context.Context, modelID string) (*contracts.ModelArtifact, error) {
	query := `
		SELECT model_id, kind, fitted_state, backtest_error, created_at
		FROM forecast.model_artifacts
		WHERE model_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	var a contracts.ModelArtifact
	err := r.pool.QueryRow(ctx, query, modelID).Scan(
		&a.ModelID, &a.Kind, &a.FittedState, &a.BacktestError, &a.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load latest artifact failed: %w", err)
	}
	return &a, nil
}

// History returns artifacts for a model id, newest first.
func (r *Repository) History(ctx context.Context, modelID string, limit int) ([]contracts.ModelArtifact, error) {
	query := `
		SELECT model_id, kind, fitted_state, backtest_error, created_at
		FROM forecast.model_artifacts
		WHERE model_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, modelID, limit)
	if err != nil {
		return nil, fmt.Errorf("load artifact history failed: %w", err)
	}
	defer rows.Close()

	var out []contracts.ModelArtifact
	for rows.Next() {
		var a contracts.ModelArtifact
		if err := rows.Scan(&a.ModelID, &a.Kind, &a.FittedState, &a.BacktestError, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan artifact failed: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
