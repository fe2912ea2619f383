package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/msomdec/drive-tagger/internal/domain"
	"github.com/msomdec/drive-tagger/internal/service"
	"github.com/msomdec/drive-tagger/internal/thumbnail"
)

func TestRefresh_NoCredentialsSkips(t *testing.T) {
	s := newServices(t, service.RefreshConfig{})
	images := s.db.Images()
	seed(t, images, "a", legacyURL("a"), "cat")
	s.remote.image("", "a")

	for _, creds := range []*domain.Credentials{nil, {}} {
		result, err := s.refresh.Refresh(context.Background(), creds, []string{"a"})
		if err != nil {
			t.Fatalf("Refresh: %v", err)
		}
		if result.Status != service.RefreshSkipped {
			t.Errorf("status = %q, want skipped", result.Status)
		}
	}

	if got := mustGet(t, images, "a").Thumbnail; got != legacyURL("a") {
		t.Errorf("thumbnail changed to %q", got)
	}
	if n := s.remote.totalCalls(); n != 0 {
		t.Errorf("expected no remote calls, got %d", n)
	}
}

func TestRefresh_StoresFreshLinks(t *testing.T) {
	s := newServices(t, service.RefreshConfig{BatchSize: 2})
	images := s.db.Images()
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		seed(t, images, id, "", "x")
		s.remote.image("", id)
	}

	var progress []service.BatchProgress
	result, err := s.refresh.RefreshWithProgress(context.Background(), testCreds,
		[]string{"e", "a", "b", "c", "d", "a", ""}, func(p service.BatchProgress) {
			progress = append(progress, p)
		})
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if result.Status != service.RefreshAttempted {
		t.Errorf("status = %q", result.Status)
	}
	if result.Refreshed != 5 || result.Failed != 0 {
		t.Errorf("refreshed=%d failed=%d, want 5/0", result.Refreshed, result.Failed)
	}
	if len(progress) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(progress))
	}
	last := progress[2]
	if last.Batch != 3 || last.Batches != 3 || last.Total != 5 || last.Refreshed != 5 {
		t.Errorf("last progress = %+v", last)
	}

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		if got := mustGet(t, images, id).Thumbnail; got != freshURL(id) {
			t.Errorf("%s thumbnail = %q", id, got)
		}
		if n := s.remote.callCount(id); n != 1 {
			t.Errorf("%s looked up %d times", id, n)
		}
	}
}

func TestRefresh_FailuresStorePlaceholder(t *testing.T) {
	s := newServices(t, service.RefreshConfig{})
	images := s.db.Images()
	seed(t, images, "ok", "")
	seed(t, images, "missing", "")
	seed(t, images, "broken", "")
	seed(t, images, "nolink", "")
	s.remote.image("", "ok")
	s.remote.errs["broken"] = domain.ErrRemote
	s.remote.files["nolink"] = domain.FileMetadata{ID: "nolink", MimeType: "image/png"}

	result, err := s.refresh.Refresh(context.Background(), testCreds, []string{"ok", "missing", "broken", "nolink"})
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if result.Refreshed != 1 || result.Failed != 3 {
		t.Errorf("refreshed=%d failed=%d, want 1/3", result.Refreshed, result.Failed)
	}
	for _, id := range []string{"missing", "broken", "nolink"} {
		if got := mustGet(t, images, id).Thumbnail; got != thumbnail.Placeholder {
			t.Errorf("%s thumbnail = %q, want placeholder", id, got)
		}
		if result.Resolved[id] != thumbnail.Placeholder {
			t.Errorf("%s resolved = %q", id, result.Resolved[id])
		}
	}
}

func TestRefresh_StaleRemoteLinkIsFailure(t *testing.T) {
	s := newServices(t, service.RefreshConfig{})
	images := s.db.Images()
	seed(t, images, "a", "")
	s.remote.files["a"] = domain.FileMetadata{ID: "a", MimeType: "image/png", PreviewLink: legacyURL("a")}

	result, err := s.refresh.Refresh(context.Background(), testCreds, []string{"a"})
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if result.Failed != 1 {
		t.Errorf("failed = %d, want 1", result.Failed)
	}
	if got := mustGet(t, images, "a").Thumbnail; got != thumbnail.Placeholder {
		t.Errorf("thumbnail = %q", got)
	}
}

func TestRefresh_ItemTimeout(t *testing.T) {
	s := newServices(t, service.RefreshConfig{ItemTimeout: 50 * time.Millisecond})
	images := s.db.Images()
	seed(t, images, "slow", "")
	seed(t, images, "fast", "")
	s.remote.image("", "fast")
	s.remote.image("", "slow")
	s.remote.block["slow"] = true

	start := time.Now()
	result, err := s.refresh.Refresh(context.Background(), testCreds, []string{"slow", "fast"})
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("refresh took %v, timeout not enforced", elapsed)
	}
	if result.Refreshed != 1 || result.Failed != 1 {
		t.Errorf("refreshed=%d failed=%d, want 1/1", result.Refreshed, result.Failed)
	}
	if got := mustGet(t, images, "slow").Thumbnail; got != thumbnail.Placeholder {
		t.Errorf("slow thumbnail = %q", got)
	}
	if got := mustGet(t, images, "fast").Thumbnail; got != freshURL("fast") {
		t.Errorf("fast thumbnail = %q", got)
	}
}

func TestRefresh_CancelledContext(t *testing.T) {
	s := newServices(t, service.RefreshConfig{})
	seed(t, s.db.Images(), "a", "")
	s.remote.image("", "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.refresh.Refresh(ctx, testCreds, []string{"a"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// failingImages fails SetThumbnails from the failOn-th call onwards.
type failingImages struct {
	domain.ImageRepository
	failOn int
	calls  int
}

var errDiskFull = errors.New("disk full")

func (f *failingImages) SetThumbnails(ctx context.Context, urls map[string]string) error {
	f.calls++
	if f.calls >= f.failOn {
		return errDiskFull
	}
	return f.ImageRepository.SetThumbnails(ctx, urls)
}

func TestRefresh_EarlierBatchesSurviveStoreFailure(t *testing.T) {
	s := newServices(t, service.RefreshConfig{BatchSize: 2})
	images := s.db.Images()
	for _, id := range []string{"a", "b", "c", "d"} {
		seed(t, images, id, "", "x")
		s.remote.image("", id)
	}

	engine := service.NewRefreshEngine(&failingImages{ImageRepository: images, failOn: 2}, s.remote,
		service.RefreshConfig{BatchSize: 2})
	result, err := engine.Refresh(context.Background(), testCreds, []string{"d", "c", "b", "a"})
	if !errors.Is(err, errDiskFull) {
		t.Fatalf("expected store error, got %v", err)
	}

	if len(result.Resolved) != 2 || result.Resolved["a"] != freshURL("a") || result.Resolved["b"] != freshURL("b") {
		t.Errorf("resolved = %v, want only the first batch", result.Resolved)
	}
	if result.Refreshed != 2 {
		t.Errorf("refreshed = %d, want 2", result.Refreshed)
	}
	for _, id := range []string{"a", "b"} {
		if got := mustGet(t, images, id).Thumbnail; got != freshURL(id) {
			t.Errorf("%s thumbnail = %q, want persisted fresh link", id, got)
		}
	}
	for _, id := range []string{"c", "d"} {
		if got := mustGet(t, images, id).Thumbnail; got != "" {
			t.Errorf("%s thumbnail = %q, want untouched", id, got)
		}
	}
}
