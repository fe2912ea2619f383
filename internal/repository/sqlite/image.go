package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/msomdec/drive-tagger/internal/domain"
)

// ImageRepository implements domain.ImageRepository using SQLite.
// Tags are stored as a JSON array to keep their order.
type ImageRepository struct {
	db *sql.DB
}

// NewImageRepository creates a new SQLite-backed ImageRepository.
func NewImageRepository(db *DB) *ImageRepository {
	return &ImageRepository{db: db.SqlDB}
}

type rowScanner interface {
	Scan(dest ...any) error
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *ImageRepository) GetPage(ctx context.Context, page, pageSize int) ([]domain.ImageRecord, error) {
	if page < 1 || pageSize < 1 {
		return []domain.ImageRecord{}, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, tags, thumbnail FROM images ORDER BY id LIMIT ? OFFSET ?`,
		pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("query image page: %w", err)
	}
	return collectImages(rows)
}

func (r *ImageRepository) ListAll(ctx context.Context) ([]domain.ImageRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, tags, thumbnail FROM images ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	return collectImages(rows)
}

func (r *ImageRepository) Get(ctx context.Context, id string) (*domain.ImageRecord, error) {
	return getImage(ctx, r.db, id)
}

func (r *ImageRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM images").Scan(&count); err != nil {
		return 0, fmt.Errorf("count images: %w", err)
	}
	return count, nil
}

func (r *ImageRepository) Upsert(ctx context.Context, id string, tags []string, thumbnail *string) error {
	encoded := encodeTags(domain.NormalizeTags(tags))
	var err error
	if thumbnail == nil {
		_, err = r.db.ExecContext(ctx,
			`INSERT INTO images (id, tags) VALUES (?, ?)
			 ON CONFLICT(id) DO UPDATE SET tags = excluded.tags`,
			id, encoded)
	} else {
		_, err = r.db.ExecContext(ctx,
			`INSERT INTO images (id, tags, thumbnail) VALUES (?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET tags = excluded.tags, thumbnail = excluded.thumbnail`,
			id, encoded, nullString(*thumbnail))
	}
	if err != nil {
		return fmt.Errorf("upsert image %s: %w", id, err)
	}
	return nil
}

func (r *ImageRepository) SetThumbnail(ctx context.Context, id, url string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE images SET thumbnail = ? WHERE id = ?", nullString(url), id)
	if err != nil {
		return fmt.Errorf("set thumbnail: %w", err)
	}
	return requireAffected(result)
}

func (r *ImageRepository) SetThumbnails(ctx context.Context, urls map[string]string) error {
	if len(urls) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "UPDATE images SET thumbnail = ? WHERE id = ?")
	if err != nil {
		return fmt.Errorf("prepare thumbnail update: %w", err)
	}
	defer stmt.Close()

	for id, url := range urls {
		if _, err := stmt.ExecContext(ctx, nullString(url), id); err != nil {
			return fmt.Errorf("update thumbnail %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *ImageRepository) AddTags(ctx context.Context, id string, tags []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rec, err := getImage(ctx, tx, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		_, err = tx.ExecContext(ctx,
			"INSERT INTO images (id, tags) VALUES (?, ?)", id, encodeTags(domain.NormalizeTags(tags)))
		if err != nil {
			return fmt.Errorf("insert image %s: %w", id, err)
		}
	case err != nil:
		return err
	default:
		merged := domain.MergeTags(rec.Tags, tags)
		if slices.Equal(merged, rec.Tags) {
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE images SET tags = ? WHERE id = ?", encodeTags(merged), id); err != nil {
			return fmt.Errorf("update tags %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *ImageRepository) RemoveTag(ctx context.Context, id, tag string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rec, err := getImage(ctx, tx, id)
	if err != nil {
		return err
	}

	kept := slices.DeleteFunc(slices.Clone(rec.Tags), func(t string) bool { return t == tag })
	if len(kept) == len(rec.Tags) {
		return nil
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE images SET tags = ? WHERE id = ?", encodeTags(kept), id); err != nil {
		return fmt.Errorf("update tags %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *ImageRepository) RenameTag(ctx context.Context, oldTag, newTag string) (int, error) {
	if oldTag == "" || newTag == "" || oldTag == newTag {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, "SELECT id, tags, thumbnail FROM images")
	if err != nil {
		return 0, fmt.Errorf("scan images for rename: %w", err)
	}
	records, err := collectImages(rows)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, rec := range records {
		if !slices.Contains(rec.Tags, oldTag) {
			continue
		}
		renamed := make([]string, len(rec.Tags))
		for i, t := range rec.Tags {
			if t == oldTag {
				t = newTag
			}
			renamed[i] = t
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE images SET tags = ? WHERE id = ?", encodeTags(domain.NormalizeTags(renamed)), rec.ID); err != nil {
			return 0, fmt.Errorf("rename tag on %s: %w", rec.ID, err)
		}
		updated++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return updated, nil
}

func (r *ImageRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM images WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete image: %w", err)
	}
	return requireAffected(result)
}

func (r *ImageRepository) DeleteAll(ctx context.Context) (int, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM images")
	if err != nil {
		return 0, fmt.Errorf("delete all images: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

func (r *ImageRepository) ReplaceAll(ctx context.Context, records []domain.ImageRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM images"); err != nil {
		return fmt.Errorf("clear images: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO images (id, tags, thumbnail) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec.ID, encodeTags(rec.Tags), nullString(rec.Thumbnail)); err != nil {
			return fmt.Errorf("insert image %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func getImage(ctx context.Context, q queryRower, id string) (*domain.ImageRecord, error) {
	rec, err := scanImage(q.QueryRowContext(ctx,
		"SELECT id, tags, thumbnail FROM images WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get image %s: %w", id, err)
	}
	return &rec, nil
}

func collectImages(rows *sql.Rows) ([]domain.ImageRecord, error) {
	defer rows.Close()

	images := []domain.ImageRecord{}
	for rows.Next() {
		rec, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		images = append(images, rec)
	}
	return images, rows.Err()
}

func scanImage(s rowScanner) (domain.ImageRecord, error) {
	var (
		rec   domain.ImageRecord
		tags  sql.NullString
		thumb sql.NullString
	)
	if err := s.Scan(&rec.ID, &tags, &thumb); err != nil {
		return rec, err
	}
	decoded, err := decodeTags(tags.String)
	if err != nil {
		return rec, fmt.Errorf("decode tags of %s: %w", rec.ID, err)
	}
	rec.Tags = decoded
	rec.Thumbnail = thumb.String
	return rec, nil
}

func encodeTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(tags)
	return string(b)
}

func decodeTags(s string) ([]string, error) {
	tags := []string{}
	if s == "" {
		return tags, nil
	}
	if err := json.Unmarshal([]byte(s), &tags); err != nil {
		return nil, err
	}
	if tags == nil {
		tags = []string{}
	}
	return tags, nil
}

// nullString stores "" as NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func requireAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
