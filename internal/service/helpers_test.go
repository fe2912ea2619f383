package service_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/msomdec/drive-tagger/internal/domain"
	"github.com/msomdec/drive-tagger/internal/repository/sqlite"
	"github.com/msomdec/drive-tagger/internal/service"
)

const owner = "owner@example.com"

var testCreds = &domain.Credentials{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer"}

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New DB: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func freshURL(id string) string {
	return "https://lh3.googleusercontent.com/drive-storage/" + id + "=s220"
}

func legacyURL(id string) string {
	return "https://drive.google.com/thumbnail?id=" + id
}

func strPtr(s string) *string { return &s }

func seed(t *testing.T, images domain.ImageRepository, id string, thumb string, tags ...string) {
	t.Helper()
	if err := images.Upsert(context.Background(), id, tags, strPtr(thumb)); err != nil {
		t.Fatalf("Upsert %s: %v", id, err)
	}
}

func mustGet(t *testing.T, images domain.ImageRepository, id string) *domain.ImageRecord {
	t.Helper()
	rec, err := images.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get %s: %v", id, err)
	}
	return rec
}

// fakeRemote serves metadata from a map. Ids in block never answer until
// the test ends, whatever the context says.
type fakeRemote struct {
	mu       sync.Mutex
	files    map[string]domain.FileMetadata
	children map[string][]string
	errs     map[string]error
	block    map[string]bool
	calls    map[string]int
	release  chan struct{}
}

func newFakeRemote(t *testing.T) *fakeRemote {
	f := &fakeRemote{
		files:    make(map[string]domain.FileMetadata),
		children: make(map[string][]string),
		errs:     make(map[string]error),
		block:    make(map[string]bool),
		calls:    make(map[string]int),
		release:  make(chan struct{}),
	}
	t.Cleanup(func() { close(f.release) })
	return f
}

// image registers an image whose preview link is fresh.
func (f *fakeRemote) image(parent, id string) {
	f.files[id] = domain.FileMetadata{ID: id, MimeType: "image/jpeg", PreviewLink: freshURL(id)}
	if parent != "" {
		f.children[parent] = append(f.children[parent], id)
	}
}

func (f *fakeRemote) folder(parent, id string) {
	f.files[id] = domain.FileMetadata{ID: id, MimeType: domain.MimeFolder}
	if parent != "" {
		f.children[parent] = append(f.children[parent], id)
	}
}

func (f *fakeRemote) callCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func (f *fakeRemote) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeRemote) GetMetadata(ctx context.Context, _ *domain.Credentials, id string) (*domain.FileMetadata, error) {
	f.mu.Lock()
	f.calls[id]++
	blocked := f.block[id]
	err := f.errs[id]
	meta, ok := f.files[id]
	f.mu.Unlock()

	if blocked {
		<-f.release
		return nil, fmt.Errorf("released")
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &meta, nil
}

func (f *fakeRemote) ListChildren(_ context.Context, _ *domain.Credentials, id string) ([]domain.FileMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.files[id]; !ok {
		return nil, domain.ErrNotFound
	}
	var out []domain.FileMetadata
	for _, c := range f.children[id] {
		out = append(out, f.files[c])
	}
	return out, nil
}

type services struct {
	db      *sqlite.DB
	remote  *fakeRemote
	refresh *service.RefreshEngine
	tags    *service.TagService
	listing *service.ListingService
	backups *service.BackupService
}

func newServices(t *testing.T, cfg service.RefreshConfig) *services {
	t.Helper()
	db := newTestDB(t)
	remote := newFakeRemote(t)
	access := service.NewAccessPolicy([]string{owner})
	refresh := service.NewRefreshEngine(db.Images(), remote, cfg)
	return &services{
		db:      db,
		remote:  remote,
		refresh: refresh,
		tags:    service.NewTagService(access, db.Images(), remote, refresh),
		listing: service.NewListingService(access, db.Images(), refresh),
		backups: service.NewBackupService(access, db.Images(), db.Snapshots(), refresh),
	}
}
