package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"github.com/msomdec/drive-tagger/internal/domain"
	"github.com/msomdec/drive-tagger/internal/drive"
)

var (
	fileLinkPattern   = regexp.MustCompile(`/d/([a-zA-Z0-9_-]+)`)
	folderLinkPattern = regexp.MustCompile(`/folders/([a-zA-Z0-9_-]+)`)
)

// TagService handles tag edits and link imports for allow-listed callers.
type TagService struct {
	access  *AccessPolicy
	images  domain.ImageRepository
	remote  domain.RemoteFileStore
	refresh *RefreshEngine
}

// NewTagService creates a new TagService.
func NewTagService(access *AccessPolicy, images domain.ImageRepository, remote domain.RemoteFileStore, refresh *RefreshEngine) *TagService {
	return &TagService{access: access, images: images, remote: remote, refresh: refresh}
}

// ImportResult reports what an Import call did.
type ImportResult struct {
	Tagged       []string
	Unrecognized []string
	Refresh      *RefreshResult
}

// Get returns one image record.
func (s *TagService) Get(ctx context.Context, caller, id string) (*domain.ImageRecord, error) {
	if err := s.access.Check(caller); err != nil {
		return nil, err
	}
	return s.images.Get(ctx, id)
}

// AddTags merges tags into the record, creating it if needed.
func (s *TagService) AddTags(ctx context.Context, caller, id string, tags []string) error {
	if err := s.access.Check(caller); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: image id is required", domain.ErrInvalidInput)
	}
	tags = domain.NormalizeTags(tags)
	if len(tags) == 0 {
		return fmt.Errorf("%w: at least one tag is required", domain.ErrInvalidInput)
	}
	return s.images.AddTags(ctx, id, tags)
}

// RemoveTag drops one tag from a record. Removing an absent tag is a no-op.
func (s *TagService) RemoveTag(ctx context.Context, caller, id, tag string) error {
	if err := s.access.Check(caller); err != nil {
		return err
	}
	return s.images.RemoveTag(ctx, id, strings.ToLower(strings.TrimSpace(tag)))
}

// RenameTag renames a tag across the whole store and returns the number of
// records touched.
func (s *TagService) RenameTag(ctx context.Context, caller, oldTag, newTag string) (int, error) {
	if err := s.access.Check(caller); err != nil {
		return 0, err
	}
	oldTag = strings.ToLower(strings.TrimSpace(oldTag))
	newTag = strings.ToLower(strings.TrimSpace(newTag))
	if oldTag == "" || newTag == "" || oldTag == newTag {
		return 0, fmt.Errorf("%w: invalid tag rename", domain.ErrInvalidInput)
	}

	n, err := s.images.RenameTag(ctx, oldTag, newTag)
	if err != nil {
		return 0, fmt.Errorf("rename tag: %w", err)
	}
	slog.Info("tag renamed", "old", oldTag, "new", newTag, "records", n, "by", caller)
	return n, nil
}

// Delete removes one image record.
func (s *TagService) Delete(ctx context.Context, caller, id string) error {
	if err := s.access.Check(caller); err != nil {
		return err
	}
	return s.images.Delete(ctx, id)
}

// DeleteAll removes every image record and returns how many were deleted.
func (s *TagService) DeleteAll(ctx context.Context, caller string) (int, error) {
	if err := s.access.Check(caller); err != nil {
		return 0, err
	}
	n, err := s.images.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	slog.Warn("all images deleted", "count", n, "by", caller)
	return n, nil
}

// AllTags returns the distinct tags of the whole store, sorted.
func (s *TagService) AllTags(ctx context.Context, caller string) ([]string, error) {
	if err := s.access.Check(caller); err != nil {
		return nil, err
	}
	records, err := s.images.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}

	tags := []string{}
	for _, r := range records {
		tags = append(tags, r.Tags...)
	}
	slices.Sort(tags)
	return slices.Compact(tags), nil
}

// Import tags every file named by links. links and tags are comma-separated.
// File links (/d/<id>) tag one file; folder links (/folders/<id>) tag every
// image below the folder. Imported files without a fresh thumbnail are
// refreshed before returning.
func (s *TagService) Import(ctx context.Context, caller string, creds *domain.Credentials, links, tags string) (*ImportResult, error) {
	if err := s.access.Check(caller); err != nil {
		return nil, err
	}
	tagList := domain.ParseTagList(tags)

	var linkList []string
	for _, link := range strings.Split(links, ",") {
		if link = strings.TrimSpace(link); link != "" {
			linkList = append(linkList, link)
		}
	}
	// Folder links need credentials; refuse before tagging anything.
	if !hasCredentials(creds) {
		for _, link := range linkList {
			if fileLinkPattern.MatchString(link) {
				continue
			}
			if folderLinkPattern.MatchString(link) {
				return nil, fmt.Errorf("%w: folder import needs a signed-in drive session", domain.ErrInvalidInput)
			}
		}
	}

	result := &ImportResult{Tagged: []string{}}
	seen := make(map[string]bool)
	for _, link := range linkList {
		var ids []string
		if m := fileLinkPattern.FindStringSubmatch(link); m != nil {
			ids = []string{m[1]}
		} else if m := folderLinkPattern.FindStringSubmatch(link); m != nil {
			found, err := drive.CollectImages(ctx, s.remote, creds, m[1])
			if err != nil {
				return nil, fmt.Errorf("walk folder %s: %w", m[1], err)
			}
			ids = found
		} else {
			result.Unrecognized = append(result.Unrecognized, link)
			continue
		}

		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			if err := s.images.AddTags(ctx, id, tagList); err != nil {
				return nil, fmt.Errorf("tag %s: %w", id, err)
			}
			result.Tagged = append(result.Tagged, id)
		}
	}

	stale, err := s.staleAmong(ctx, result.Tagged)
	if err != nil {
		return nil, err
	}
	result.Refresh, err = s.refresh.Refresh(ctx, creds, stale)
	if err != nil {
		return nil, fmt.Errorf("refresh imported thumbnails: %w", err)
	}
	return result, nil
}

// RefreshStale refreshes every thumbnail in the store that is not fresh.
func (s *TagService) RefreshStale(ctx context.Context, caller string, creds *domain.Credentials, onBatch func(BatchProgress)) (*RefreshResult, error) {
	if err := s.access.Check(caller); err != nil {
		return nil, err
	}
	records, err := s.images.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	return s.refresh.RefreshWithProgress(ctx, creds, staleIDs(records), onBatch)
}

func (s *TagService) staleAmong(ctx context.Context, ids []string) ([]string, error) {
	var stale []string
	for _, id := range ids {
		rec, err := s.images.Get(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", id, err)
		}
		stale = append(stale, staleIDs([]domain.ImageRecord{*rec})...)
	}
	return stale, nil
}
