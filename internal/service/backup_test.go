package service_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/msomdec/drive-tagger/internal/domain"
	"github.com/msomdec/drive-tagger/internal/service"
)

func TestBackup_SaveDefaultLabel(t *testing.T) {
	s := newServices(t, service.RefreshConfig{})
	s.backups.SetClock(func() time.Time { return time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC) })
	seed(t, s.db.Images(), "a", freshURL("a"), "cat")

	snap, err := s.backups.Save(context.Background(), owner, "  ")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if snap.Label != "2024-03-09T14:05:07" {
		t.Errorf("label = %q", snap.Label)
	}
	if len(snap.Entries) != 1 {
		t.Errorf("entries = %d", len(snap.Entries))
	}
}

func TestBackup_ListNewestFirstAndDelete(t *testing.T) {
	s := newServices(t, service.RefreshConfig{})
	ctx := context.Background()
	first, _ := s.backups.Save(ctx, owner, "first")
	second, _ := s.backups.Save(ctx, owner, "second")

	list, err := s.backups.List(ctx, owner)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("unexpected order: %+v", list)
	}

	if err := s.backups.Delete(ctx, owner, first.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.backups.Delete(ctx, owner, first.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestBackup_RoundTrip(t *testing.T) {
	s := newServices(t, service.RefreshConfig{})
	images := s.db.Images()
	ctx := context.Background()
	seed(t, images, "a", freshURL("a"), "cat", "dog")
	seed(t, images, "b", freshURL("b"), "bird")

	snap, err := s.backups.Save(ctx, owner, "before")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := s.tags.RenameTag(ctx, owner, "cat", "kitten"); err != nil {
		t.Fatal(err)
	}
	if err := s.tags.Delete(ctx, owner, "b"); err != nil {
		t.Fatal(err)
	}
	seed(t, images, "c", freshURL("c"), "new")

	result, err := s.backups.Restore(ctx, owner, nil, snap.ID)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if result.Restored != 2 || result.CarriedOver() != 2 || result.Unresolved != 0 {
		t.Errorf("unexpected result: %+v", result)
	}

	all, err := images.ListAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(all); !slices.Equal(got, []string{"a", "b"}) {
		t.Fatalf("restored ids = %v", got)
	}
	if !slices.Equal(all[0].Tags, []string{"cat", "dog"}) {
		t.Errorf("a tags = %v", all[0].Tags)
	}
	if all[1].Thumbnail != freshURL("b") {
		t.Errorf("b thumbnail = %q", all[1].Thumbnail)
	}
}

func TestBackup_RestoreNotFoundLeavesStore(t *testing.T) {
	s := newServices(t, service.RefreshConfig{})
	images := s.db.Images()
	ctx := context.Background()
	seed(t, images, "a", freshURL("a"), "cat")
	seed(t, images, "b", freshURL("b"), "dog")

	_, err := s.backups.Restore(ctx, owner, testCreds, 999)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	n, err := images.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}

func TestBackup_RestoreCorruptSnapshot(t *testing.T) {
	s := newServices(t, service.RefreshConfig{})
	ctx := context.Background()
	seed(t, s.db.Images(), "a", freshURL("a"), "cat")

	res, err := s.db.SqlDB.ExecContext(ctx, `INSERT INTO backups (timestamp, data) VALUES ('bad', '{not json')`)
	if err != nil {
		t.Fatal(err)
	}
	id, _ := res.LastInsertId()

	_, err = s.backups.Restore(ctx, owner, testCreds, id)
	if !errors.Is(err, domain.ErrDataCorruption) {
		t.Fatalf("expected ErrDataCorruption, got %v", err)
	}
	if got := mustGet(t, s.db.Images(), "a").Tags; !slices.Equal(got, []string{"cat"}) {
		t.Errorf("store modified: %v", got)
	}
}

func TestBackup_RestoreThumbnailPrecedence(t *testing.T) {
	s := newServices(t, service.RefreshConfig{})
	images := s.db.Images()
	ctx := context.Background()

	// Snapshot state: every thumbnail fresh except "stale" and "empty".
	seed(t, images, "live", freshURL("snap-live"), "t")
	seed(t, images, "snap", freshURL("snap"), "t")
	seed(t, images, "stale", legacyURL("stale"), "t")
	seed(t, images, "empty", "", "t")
	snap, err := s.backups.Save(ctx, owner, "mixed")
	if err != nil {
		t.Fatal(err)
	}

	// Live state: "live" has a newer fresh link, "snap" has gone stale.
	seed(t, images, "live", freshURL("live"), "t")
	seed(t, images, "snap", legacyURL("snap"), "t")

	s.remote.image("", "stale")
	s.remote.image("", "empty")

	result, err := s.backups.Restore(ctx, owner, testCreds, snap.ID)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if result.KeptLive != 1 || result.FromSnapshot != 1 {
		t.Errorf("kept=%d adopted=%d, want 1/1", result.KeptLive, result.FromSnapshot)
	}
	if result.Refreshed != 2 || result.Unresolved != 0 || result.RefreshStatus != service.RefreshAttempted {
		t.Errorf("unexpected refresh outcome: %+v", result)
	}

	want := map[string]string{
		"live":  freshURL("live"),
		"snap":  freshURL("snap"),
		"stale": freshURL("stale"),
		"empty": freshURL("empty"),
	}
	for id, url := range want {
		if got := mustGet(t, images, id).Thumbnail; got != url {
			t.Errorf("%s thumbnail = %q, want %q", id, got, url)
		}
	}
	if n := s.remote.callCount("live") + s.remote.callCount("snap"); n != 0 {
		t.Errorf("carried-over thumbnails looked up %d times", n)
	}
}

func TestBackup_RestoreWithoutCredentials(t *testing.T) {
	s := newServices(t, service.RefreshConfig{})
	images := s.db.Images()
	ctx := context.Background()
	seed(t, images, "a", legacyURL("a"), "t")
	snap, _ := s.backups.Save(ctx, owner, "x")

	result, err := s.backups.Restore(ctx, owner, nil, snap.ID)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if result.RefreshStatus != service.RefreshSkipped || result.Unresolved != 1 {
		t.Errorf("unexpected result: %+v", result)
	}
	if got := mustGet(t, images, "a").Thumbnail; got != "" {
		t.Errorf("unresolved thumbnail should be cleared, got %q", got)
	}
}

func TestBackup_Unauthorized(t *testing.T) {
	s := newServices(t, service.RefreshConfig{})
	ctx := context.Background()
	if _, err := s.backups.Save(ctx, "x@example.com", ""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("Save: expected ErrUnauthorized, got %v", err)
	}
	if _, err := s.backups.Restore(ctx, "", nil, 1); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("Restore: expected ErrUnauthorized, got %v", err)
	}
}
