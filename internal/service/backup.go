package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/msomdec/drive-tagger/internal/domain"
	"github.com/msomdec/drive-tagger/internal/thumbnail"
)

// labelLayout is the default backup label: ISO-8601 with seconds.
const labelLayout = "2006-01-02T15:04:05"

// BackupService saves, lists, deletes and restores snapshots of the Tag Store.
type BackupService struct {
	access    *AccessPolicy
	images    domain.ImageRepository
	snapshots domain.SnapshotRepository
	refresh   *RefreshEngine
	now       func() time.Time
}

// NewBackupService creates a new BackupService.
func NewBackupService(access *AccessPolicy, images domain.ImageRepository, snapshots domain.SnapshotRepository, refresh *RefreshEngine) *BackupService {
	return &BackupService{
		access:    access,
		images:    images,
		snapshots: snapshots,
		refresh:   refresh,
		now:       time.Now,
	}
}

// RestoreResult reports the outcome of a restore.
type RestoreResult struct {
	SnapshotID int64
	Label      string
	Restored   int
	// KeptLive counts thumbnails kept from the live store, FromSnapshot those
	// adopted from the snapshot. Their sum is the carried-over total.
	KeptLive      int
	FromSnapshot  int
	Refreshed     int
	Unresolved    int
	RefreshStatus RefreshStatus
}

// CarriedOver is the number of thumbnails restored without a lookup.
func (r *RestoreResult) CarriedOver() int {
	return r.KeptLive + r.FromSnapshot
}

// Save snapshots the whole store. An empty label defaults to the current time.
func (s *BackupService) Save(ctx context.Context, caller, label string) (*domain.Snapshot, error) {
	if err := s.access.Check(caller); err != nil {
		return nil, err
	}
	label = strings.TrimSpace(label)
	if label == "" {
		label = s.now().Format(labelLayout)
	}

	snap, err := s.snapshots.Create(ctx, label)
	if err != nil {
		return nil, fmt.Errorf("create snapshot: %w", err)
	}
	slog.Info("backup saved", "id", snap.ID, "label", label, "images", len(snap.Entries), "by", caller)
	return snap, nil
}

// List returns all snapshots, newest first.
func (s *BackupService) List(ctx context.Context, caller string) ([]domain.SnapshotSummary, error) {
	if err := s.access.Check(caller); err != nil {
		return nil, err
	}
	return s.snapshots.List(ctx)
}

// Delete removes a snapshot.
func (s *BackupService) Delete(ctx context.Context, caller string, id int64) error {
	if err := s.access.Check(caller); err != nil {
		return err
	}
	return s.snapshots.Delete(ctx, id)
}

// Restore returns the Tag Store to the state recorded in snapshot id.
//
// Tags are taken from the snapshot as-is. For thumbnails a fresh live URL
// wins over a fresh snapshot URL; anything else is cleared and looked up
// after the store has been replaced. The lookup is best-effort: its failure
// is logged and reported as unresolved, it never fails the restore.
//
// A missing or unreadable snapshot returns an error before anything is
// written.
func (s *BackupService) Restore(ctx context.Context, caller string, creds *domain.Credentials, id int64) (*RestoreResult, error) {
	if err := s.access.Check(caller); err != nil {
		return nil, err
	}

	snap, err := s.snapshots.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	live, err := s.images.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("read live images: %w", err)
	}
	liveThumbs := make(map[string]string, len(live))
	for _, r := range live {
		liveThumbs[r.ID] = r.Thumbnail
	}

	plan := planRestore(snap.Entries, liveThumbs)
	if err := s.images.ReplaceAll(ctx, plan.records); err != nil {
		return nil, fmt.Errorf("restore snapshot %d: %w", id, err)
	}

	result := &RestoreResult{
		SnapshotID:    snap.ID,
		Label:         snap.Label,
		Restored:      len(plan.records),
		KeptLive:      plan.keptLive,
		FromSnapshot:  plan.fromSnapshot,
		Unresolved:    len(plan.needsRefresh),
		RefreshStatus: RefreshSkipped,
	}

	if len(plan.needsRefresh) > 0 {
		refreshed, err := s.refresh.Refresh(ctx, creds, plan.needsRefresh)
		if err != nil {
			slog.Warn("thumbnail refresh after restore failed", "snapshot", id, "error", err)
		}
		if refreshed != nil {
			result.RefreshStatus = refreshed.Status
			result.Refreshed = refreshed.Refreshed
			result.Unresolved = len(plan.needsRefresh) - refreshed.Refreshed
		}
	}

	slog.Info("backup restored",
		"id", id, "restored", result.Restored, "carried_over", result.CarriedOver(),
		"refreshed", result.Refreshed, "unresolved", result.Unresolved, "by", caller)
	return result, nil
}

type restorePlan struct {
	records      []domain.ImageRecord
	needsRefresh []string
	keptLive     int
	fromSnapshot int
}

// planRestore decides the record written for every snapshot entry. The
// first entry wins when an id repeats.
func planRestore(entries []domain.SnapshotEntry, liveThumbs map[string]string) restorePlan {
	plan := restorePlan{records: make([]domain.ImageRecord, 0, len(entries))}
	seen := make(map[string]bool, len(entries))

	for _, e := range entries {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true

		rec := domain.ImageRecord{ID: e.ID, Tags: domain.NormalizeTags(e.Tags)}
		liveThumb, isLive := liveThumbs[e.ID]
		switch {
		case isLive && thumbnail.IsFresh(liveThumb):
			rec.Thumbnail = liveThumb
			plan.keptLive++
		case e.Thumbnail != nil && thumbnail.IsFresh(*e.Thumbnail):
			rec.Thumbnail = *e.Thumbnail
			plan.fromSnapshot++
		default:
			plan.needsRefresh = append(plan.needsRefresh, e.ID)
		}
		plan.records = append(plan.records, rec)
	}
	return plan
}
