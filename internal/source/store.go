// Copyright (c) 2026 Serina. All rights reserved.
// Author: rin.owada.dev@gmail.com

package source

import "context"

// # Source Configuration Data Access

// Repository defines the data access contract for source configurations.
//
// All reads exclude soft-deleted rows; Upsert restores a soft-deleted row
// matching the unique key instead of erroring.
type Repository interface {

	/*
		FindByID returns the live configuration with the given ID.

		Returns:
		  - *Config: Hydrated configuration
		  - error: NOT_FOUND if absent or soft-deleted
	*/
	FindByID(ctx context.Context, id string) (*Config, error)

	/*
		ListActive returns every live, active configuration, ready to poll.
	*/
	ListActive(ctx context.Context) ([]*Config, error)

	/*
		Upsert creates or updates the configuration for its unique key
		(seriesID, name). A soft-deleted row is restored with the new payload,
		preserving its identity.
	*/
	Upsert(ctx context.Context, config *Config) error

	/*
		RecordSuccess resets the consecutive failure counter to zero.
	*/
	RecordSuccess(ctx context.Context, id string) error

	/*
		RecordFailure increments the consecutive failure counter and returns
		the new count.

		Returns:
		  - int: Failure count after the increment
		  - error: NOT_FOUND if the configuration vanished
	*/
	RecordFailure(ctx context.Context, id string) (int, error)

	/*
		Deactivate flips IsActive off. The configuration remains queryable and
		can be re-enabled by a later Upsert.
	*/
	Deactivate(ctx context.Context, id string) error

	/*
		SoftDelete hides a configuration without physical removal.
	*/
	SoftDelete(ctx context.Context, id string) error
}
