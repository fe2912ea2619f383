package domain

import (
	"context"
	"strings"
)

// ImageRecord is the tag state of one remote file.
// An empty Thumbnail means "unknown, needs lookup".
type ImageRecord struct {
	ID        string
	Tags      []string
	Thumbnail string
}

// ImageRepository is the Tag Store. Every mutating call is durable on return.
type ImageRepository interface {
	GetPage(ctx context.Context, page, pageSize int) ([]ImageRecord, error)
	Get(ctx context.Context, id string) (*ImageRecord, error)
	ListAll(ctx context.Context) ([]ImageRecord, error)
	Count(ctx context.Context) (int, error)
	// Upsert inserts or replaces the tags of id. A nil thumbnail leaves the
	// stored thumbnail untouched.
	Upsert(ctx context.Context, id string, tags []string, thumbnail *string) error
	SetThumbnail(ctx context.Context, id, url string) error
	// SetThumbnails writes a batch of thumbnails in one transaction.
	// Ids without a record are ignored.
	SetThumbnails(ctx context.Context, urls map[string]string) error
	AddTags(ctx context.Context, id string, tags []string) error
	RemoveTag(ctx context.Context, id, tag string) error
	// RenameTag rewrites oldTag to newTag on every record atomically and
	// returns the number of records touched.
	RenameTag(ctx context.Context, oldTag, newTag string) (int, error)
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int, error)
	// ReplaceAll swaps the whole table for records in one transaction.
	ReplaceAll(ctx context.Context, records []ImageRecord) error
}

// NormalizeTags lowercases and trims tags, dropping empties and duplicates
// while keeping first-occurrence order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// ParseTagList splits a comma-separated tag input.
func ParseTagList(input string) []string {
	return NormalizeTags(strings.Split(input, ","))
}

// MergeTags appends the tags from add that are not already in tags.
func MergeTags(tags, add []string) []string {
	return NormalizeTags(append(append([]string{}, tags...), add...))
}

// TotalPages returns ceil(total/pageSize), never less than 1.
func TotalPages(total, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}
