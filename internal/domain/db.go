package domain

import "context"

// Database defines lifecycle operations for the underlying database.
// The implementation owns its migration files, so the stores built on it
// can be swapped as a unit.
type Database interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
