package domain

import "context"

// Snapshot is an immutable copy of the whole Tag Store taken at save time.
type Snapshot struct {
	ID      int64
	Label   string
	Entries []SnapshotEntry
}

// SnapshotEntry is one image as it was when the snapshot was saved.
// Thumbnail may already have been stale at that point.
type SnapshotEntry struct {
	ID        string   `json:"id"`
	Tags      []string `json:"tags"`
	Thumbnail *string  `json:"thumb_url"`
}

// SnapshotSummary lists a snapshot without decoding its payload.
type SnapshotSummary struct {
	ID    int64
	Label string
}

// SnapshotRepository is the Snapshot Store.
type SnapshotRepository interface {
	// Create copies every image record into a new snapshot in one transaction.
	Create(ctx context.Context, label string) (*Snapshot, error)
	// GetByID returns ErrNotFound or a *CorruptSnapshotError when the payload
	// does not decode.
	GetByID(ctx context.Context, id int64) (*Snapshot, error)
	List(ctx context.Context) ([]SnapshotSummary, error)
	Delete(ctx context.Context, id int64) error
}
