// Package repository persists rating records behind the Store contract.
package repository

import (
	"context"

	"github.com/okian/furlong/internal/domain/model"
)

// UpdateFunc derives the next record from the current one. It runs while the
// horse is locked; returning changed=false or an error leaves the stored
// record untouched.
type UpdateFunc func(current model.RatingRecord) (next model.RatingRecord, changed bool, err error)

// Store provides per-horse atomic read-modify-write over rating records.
// Implementations serialize Update calls for the same horse and let
// different horses proceed in parallel.
type Store interface {
	// Create stores the first record of a horse.
	// Returns ErrAlreadyExists if the horse is registered.
	Create(ctx context.Context, rec model.RatingRecord) error

	// Get returns a deep copy of the record, history included.
	// Returns ErrNotFound if the horse is unknown.
	Get(ctx context.Context, horseID string) (model.RatingRecord, error)

	// Update runs fn against the current record and persists its result
	// when fn reports a change. It returns the record as stored afterwards.
	Update(ctx context.Context, horseID string, fn UpdateFunc) (model.RatingRecord, bool, error)

	// Snapshot returns the current state of every record without history.
	// Each record is internally consistent; the set is not a global cut.
	Snapshot(ctx context.Context) ([]model.RatingRecord, error)

	// Count returns the number of registered horses.
	Count(ctx context.Context) (int, error)
}
