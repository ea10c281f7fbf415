// Copyright (c) 2026 Serina. All rights reserved.
// Author: rin.owada.dev@gmail.com

package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/owarin/serina/internal/platform/apperr"
	"github.com/owarin/serina/internal/platform/database/schema"
	"github.com/owarin/serina/internal/platform/dberr"
	"github.com/owarin/serina/pkg/uuid"
)

// # PostgreSQL Repository

// sourceRepository implements the [Repository] interface using pgx.
type sourceRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed source-config store.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &sourceRepository{pool: pool}
}

// selectColumns is the shared projection for config hydration.
func selectColumns() string {
	t := schema.IngestSource
	return fmt.Sprintf("%s, %s, %s, %s, %s, %s, %s, %s, %s, %s",
		t.ID, t.SeriesID, t.Name, t.SourceIDExt, t.SourceURL,
		t.TrustScore, t.ConsecutiveFails, t.IsActive, t.CreatedAt, t.UpdatedAt)
}

// scanConfig hydrates one row into a [Config].
func scanConfig(row pgx.Row) (*Config, error) {
	var config Config
	err := row.Scan(
		&config.ID,
		&config.SeriesID,
		&config.Name,
		&config.SourceIDExt,
		&config.SourceURL,
		&config.TrustScore,
		&config.ConsecutiveFails,
		&config.IsActive,
		&config.CreatedAt,
		&config.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &config, nil
}

/*
FindByID returns the live configuration with the given ID.
*/
func (repository *sourceRepository) FindByID(ctx context.Context, id string) (*Config, error) {

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 AND %s IS NULL`,
		selectColumns(), schema.IngestSource.Table,
		schema.IngestSource.ID, schema.IngestSource.DeletedAt)

	config, err := scanConfig(repository.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Source")
		}
		return nil, fmt.Errorf("postgres: failed to find source: %w", err)
	}
	return config, nil
}

/*
ListActive returns every live, active configuration, oldest first.
*/
func (repository *sourceRepository) ListActive(ctx context.Context) ([]*Config, error) {

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE %s = TRUE AND %s IS NULL
		ORDER BY %s ASC
	`,
		selectColumns(), schema.IngestSource.Table,
		schema.IngestSource.IsActive, schema.IngestSource.DeletedAt,
		schema.IngestSource.CreatedAt,
	)

	rows, err := repository.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list sources: %w", err)
	}
	defer rows.Close()

	var configs []*Config
	for rows.Next() {
		config, err := scanConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan source: %w", err)
		}
		configs = append(configs, config)
	}

	return configs, rows.Err()
}

/*
Upsert creates or updates the configuration keyed by (seriesID, name).

Description: A unique-key match — live or soft-deleted — is updated in
place, its deletion mark cleared and IsActive restored from the payload.
*/
func (repository *sourceRepository) Upsert(ctx context.Context, config *Config) error {

	if config.ID == "" {
		config.ID = uuid.New()
	}

	t := schema.IngestSource
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (%s, %s)
		DO UPDATE SET
			%s = EXCLUDED.%s, %s = EXCLUDED.%s, %s = EXCLUDED.%s,
			%s = EXCLUDED.%s, %s = NOW(), %s = NULL
		RETURNING %s
	`,
		t.Table,
		t.ID, t.SeriesID, t.Name, t.SourceIDExt, t.SourceURL, t.TrustScore, t.IsActive,
		t.SeriesID, t.Name,
		t.SourceIDExt, t.SourceIDExt, t.SourceURL, t.SourceURL, t.TrustScore, t.TrustScore,
		t.IsActive, t.IsActive, t.UpdatedAt, t.DeletedAt,
		t.ID,
	)

	err := repository.pool.QueryRow(ctx, query,
		config.ID,
		config.SeriesID,
		config.Name,
		config.SourceIDExt,
		config.SourceURL,
		config.TrustScore,
		config.IsActive,
	).Scan(&config.ID)
	if err != nil {
		return dberr.Wrap(err, "source")
	}
	return nil
}

/*
RecordSuccess resets the consecutive failure counter to zero.
*/
func (repository *sourceRepository) RecordSuccess(ctx context.Context, id string) error {

	t := schema.IngestSource
	query := fmt.Sprintf(`UPDATE %s SET %s = 0, %s = NOW() WHERE %s = $1 AND %s IS NULL`,
		t.Table, t.ConsecutiveFails, t.UpdatedAt, t.ID, t.DeletedAt)

	result, err := repository.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("postgres: failed to reset source failures: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("Source")
	}
	return nil
}

/*
RecordFailure atomically increments the consecutive failure counter.

Returns:
  - int: Failure count after the increment
*/
func (repository *sourceRepository) RecordFailure(ctx context.Context, id string) (int, error) {

	t := schema.IngestSource
	query := fmt.Sprintf(`
		UPDATE %s SET %s = %s + 1, %s = NOW()
		WHERE %s = $1 AND %s IS NULL
		RETURNING %s
	`,
		t.Table, t.ConsecutiveFails, t.ConsecutiveFails, t.UpdatedAt,
		t.ID, t.DeletedAt, t.ConsecutiveFails)

	var fails int
	err := repository.pool.QueryRow(ctx, query, id).Scan(&fails)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperr.NotFound("Source")
		}
		return 0, fmt.Errorf("postgres: failed to record source failure: %w", err)
	}
	return fails, nil
}

/*
Deactivate flips IsActive off without hiding the row.
*/
func (repository *sourceRepository) Deactivate(ctx context.Context, id string) error {

	t := schema.IngestSource
	query := fmt.Sprintf(`UPDATE %s SET %s = FALSE, %s = NOW() WHERE %s = $1 AND %s IS NULL`,
		t.Table, t.IsActive, t.UpdatedAt, t.ID, t.DeletedAt)

	result, err := repository.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("postgres: failed to deactivate source: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("Source")
	}
	return nil
}

/*
SoftDelete hides a configuration without physical removal.
*/
func (repository *sourceRepository) SoftDelete(ctx context.Context, id string) error {

	t := schema.IngestSource
	query := fmt.Sprintf(`UPDATE %s SET %s = NOW() WHERE %s = $1 AND %s IS NULL`,
		t.Table, t.DeletedAt, t.ID, t.DeletedAt)

	result, err := repository.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("postgres: failed to delete source: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("Source")
	}
	return nil
}
