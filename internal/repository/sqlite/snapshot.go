package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/msomdec/drive-tagger/internal/domain"
)

// SnapshotRepository implements domain.SnapshotRepository using SQLite.
// Payloads are JSON arrays of {"id","tags","thumb_url"} objects.
type SnapshotRepository struct {
	db *sql.DB
}

// NewSnapshotRepository creates a new SQLite-backed SnapshotRepository.
func NewSnapshotRepository(db *DB) *SnapshotRepository {
	return &SnapshotRepository{db: db.SqlDB}
}

func (r *SnapshotRepository) Create(ctx context.Context, label string) (*domain.Snapshot, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, "SELECT id, tags, thumbnail FROM images ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("read images for snapshot: %w", err)
	}
	images, err := collectImages(rows)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.SnapshotEntry, len(images))
	for i, img := range images {
		entries[i] = domain.SnapshotEntry{ID: img.ID, Tags: img.Tags}
		if img.Thumbnail != "" {
			thumb := img.Thumbnail
			entries[i].Thumbnail = &thumb
		}
	}

	payload, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		"INSERT INTO backups (timestamp, data) VALUES (?, ?)", label, string(payload))
	if err != nil {
		return nil, fmt.Errorf("insert snapshot: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get snapshot id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return &domain.Snapshot{ID: id, Label: label, Entries: entries}, nil
}

func (r *SnapshotRepository) GetByID(ctx context.Context, id int64) (*domain.Snapshot, error) {
	var label, data sql.NullString
	err := r.db.QueryRowContext(ctx,
		"SELECT timestamp, data FROM backups WHERE id = ?", id,
	).Scan(&label, &data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	entries, err := decodePayload(data)
	if err != nil {
		return nil, &domain.CorruptSnapshotError{SnapshotID: id, Err: err}
	}
	return &domain.Snapshot{ID: id, Label: label.String, Entries: entries}, nil
}

func (r *SnapshotRepository) List(ctx context.Context) ([]domain.SnapshotSummary, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, timestamp FROM backups ORDER BY id DESC")
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := []domain.SnapshotSummary{}
	for rows.Next() {
		var (
			s     domain.SnapshotSummary
			label sql.NullString
		)
		if err := rows.Scan(&s.ID, &label); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		s.Label = label.String
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

func (r *SnapshotRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM backups WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return requireAffected(result)
}

func decodePayload(data sql.NullString) ([]domain.SnapshotEntry, error) {
	if !data.Valid {
		return nil, errors.New("payload is null")
	}
	var entries []domain.SnapshotEntry
	if err := json.Unmarshal([]byte(data.String), &entries); err != nil {
		return nil, err
	}
	for i, e := range entries {
		if e.ID == "" {
			return nil, fmt.Errorf("entry %d has no id", i)
		}
	}
	if entries == nil {
		entries = []domain.SnapshotEntry{}
	}
	return entries, nil
}
