package domain

import (
	"context"
	"errors"
)

// ErrMalformedExport reports a tabular export that failed row validation.
var ErrMalformedExport = errors.New("malformed OBD export")

// ErrDuplicateRecord reports an insert that collided with a stored record.
var ErrDuplicateRecord = errors.New("duplicate OBD record")

// Service stores and lists OBD exports. Store failures never affect the
// publish pipeline; callers log and continue.
type Service interface {
	Store(ctx context.Context, vin, location, csvData string) (OBDRecord, error)
	List(ctx context.Context, vin string) ([]OBDRecord, error)
}

// Repository is the persistence boundary for OBD records.
type Repository interface {
	Insert(ctx context.Context, record *OBDRecord) error
	List(ctx context.Context, vin string) ([]OBDRecord, error)
}
