package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/msomdec/drive-tagger/internal/domain"
	"github.com/msomdec/drive-tagger/internal/thumbnail"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultRefreshBatchSize trades round trips against failure attribution:
	// each batch is persisted on its own, so a crash loses at most one batch.
	DefaultRefreshBatchSize   = 10
	DefaultRefreshItemTimeout = 10 * time.Second
	DefaultRefreshConcurrency = 4
)

// RefreshStatus tells a skipped refresh apart from one that ran.
type RefreshStatus string

const (
	RefreshSkipped   RefreshStatus = "skipped"
	RefreshAttempted RefreshStatus = "attempted"
)

// RefreshResult summarises one refresh run.
type RefreshResult struct {
	Status RefreshStatus
	// Resolved maps every looked-up id to the URL that was stored for it:
	// a fresh preview link or the placeholder.
	Resolved  map[string]string
	Refreshed int
	Failed    int
}

// BatchProgress is reported after each persisted batch.
type BatchProgress struct {
	Batch     int `json:"batch"`
	Batches   int `json:"batches"`
	Total     int `json:"total"`
	Refreshed int `json:"refreshed"`
	Failed    int `json:"failed"`
}

// RefreshConfig tunes a RefreshEngine. Zero values take the defaults.
type RefreshConfig struct {
	BatchSize   int
	ItemTimeout time.Duration
	Concurrency int
}

// RefreshEngine resolves stale thumbnails through the Remote File Store and
// writes the results back to the Tag Store.
type RefreshEngine struct {
	images      domain.ImageRepository
	remote      domain.RemoteFileStore
	batchSize   int
	itemTimeout time.Duration
	concurrency int
}

// NewRefreshEngine creates a new RefreshEngine.
func NewRefreshEngine(images domain.ImageRepository, remote domain.RemoteFileStore, cfg RefreshConfig) *RefreshEngine {
	e := &RefreshEngine{
		images:      images,
		remote:      remote,
		batchSize:   cfg.BatchSize,
		itemTimeout: cfg.ItemTimeout,
		concurrency: cfg.Concurrency,
	}
	if e.batchSize <= 0 {
		e.batchSize = DefaultRefreshBatchSize
	}
	if e.itemTimeout <= 0 {
		e.itemTimeout = DefaultRefreshItemTimeout
	}
	if e.concurrency <= 0 {
		e.concurrency = DefaultRefreshConcurrency
	}
	return e
}

// Refresh looks up ids and stores their thumbnails.
func (e *RefreshEngine) Refresh(ctx context.Context, creds *domain.Credentials, ids []string) (*RefreshResult, error) {
	return e.RefreshWithProgress(ctx, creds, ids, nil)
}

// RefreshWithProgress is Refresh with a callback after every batch.
//
// Without credentials nothing is looked up and the result is RefreshSkipped.
// Per-item failures and timeouts store the placeholder and are counted; the
// only returned errors are cancellation of ctx and store failures.
func (e *RefreshEngine) RefreshWithProgress(ctx context.Context, creds *domain.Credentials, ids []string, onBatch func(BatchProgress)) (*RefreshResult, error) {
	result := &RefreshResult{Status: RefreshSkipped, Resolved: map[string]string{}}
	if !hasCredentials(creds) {
		return result, nil
	}
	result.Status = RefreshAttempted

	ids = uniqueIDs(ids)
	batches := slices.Collect(slices.Chunk(ids, e.batchSize))

	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		resolved, failed := e.resolveBatch(ctx, creds, batch)
		if err := e.images.SetThumbnails(ctx, resolved); err != nil {
			return result, fmt.Errorf("persist thumbnail batch %d: %w", i+1, err)
		}

		for id, url := range resolved {
			result.Resolved[id] = url
		}
		result.Failed += failed
		result.Refreshed += len(batch) - failed

		if onBatch != nil {
			onBatch(BatchProgress{
				Batch:     i + 1,
				Batches:   len(batches),
				Total:     len(ids),
				Refreshed: result.Refreshed,
				Failed:    result.Failed,
			})
		}
	}

	slog.Debug("thumbnail refresh finished",
		"ids", len(ids), "refreshed", result.Refreshed, "failed", result.Failed)
	return result, nil
}

func (e *RefreshEngine) resolveBatch(ctx context.Context, creds *domain.Credentials, batch []string) (map[string]string, int) {
	urls := make([]string, len(batch))
	ok := make([]bool, len(batch))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, id := range batch {
		g.Go(func() error {
			urls[i], ok[i] = e.lookup(ctx, creds, id)
			return nil
		})
	}
	g.Wait()

	resolved := make(map[string]string, len(batch))
	failed := 0
	for i, id := range batch {
		resolved[id] = urls[i]
		if !ok[i] {
			failed++
		}
	}
	return resolved, failed
}

type lookupResult struct {
	meta *domain.FileMetadata
	err  error
}

// lookup resolves one id. It returns the placeholder and false on any
// failure, including a remote call that outlives the item timeout.
func (e *RefreshEngine) lookup(ctx context.Context, creds *domain.Credentials, id string) (string, bool) {
	ictx, cancel := context.WithTimeout(ctx, e.itemTimeout)
	defer cancel()

	done := make(chan lookupResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- lookupResult{err: fmt.Errorf("%w: lookup panicked: %v", domain.ErrRemote, r)}
			}
		}()
		meta, err := e.remote.GetMetadata(ictx, creds, id)
		done <- lookupResult{meta: meta, err: err}
	}()

	var res lookupResult
	select {
	case res = <-done:
	case <-ictx.Done():
		res.err = fmt.Errorf("%w: %w", domain.ErrTimeout, ictx.Err())
	}

	if res.err != nil {
		slog.Warn("thumbnail lookup failed", "id", id, "error", res.err)
		return thumbnail.Placeholder, false
	}
	if res.meta == nil || !thumbnail.IsFresh(res.meta.PreviewLink) {
		slog.Warn("remote thumbnail not usable", "id", id)
		return thumbnail.Placeholder, false
	}
	return res.meta.PreviewLink, true
}

func hasCredentials(creds *domain.Credentials) bool {
	return creds != nil && (creds.AccessToken != "" || creds.RefreshToken != "")
}

func uniqueIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// staleIDs returns the ids whose stored thumbnail is not fresh.
func staleIDs(records []domain.ImageRecord) []string {
	var ids []string
	for _, r := range records {
		if !thumbnail.IsFresh(r.Thumbnail) {
			ids = append(ids, r.ID)
		}
	}
	return ids
}
