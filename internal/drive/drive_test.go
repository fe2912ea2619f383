package drive_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/msomdec/drive-tagger/internal/domain"
	"github.com/msomdec/drive-tagger/internal/drive"
	"google.golang.org/api/option"
)

func newFakeDrive(t *testing.T, handler http.HandlerFunc) *drive.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return drive.New(nil, option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
}

func TestGetMetadata(t *testing.T) {
	client := newFakeDrive(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/files/abc") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":            "abc",
			"mimeType":      "image/jpeg",
			"thumbnailLink": "https://lh3.googleusercontent.com/drive-storage/abc=s220",
		})
	})

	meta, err := client.GetMetadata(context.Background(), creds, "abc")
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if meta.ID != "abc" || meta.MimeType != "image/jpeg" {
		t.Errorf("unexpected metadata: %+v", meta)
	}
	if !strings.Contains(meta.PreviewLink, "drive-storage") {
		t.Errorf("preview link = %q", meta.PreviewLink)
	}
}

func TestGetMetadataNotFound(t *testing.T) {
	client := newFakeDrive(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":404,"message":"File not found"}}`))
	})

	_, err := client.GetMetadata(context.Background(), creds, "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetMetadataServerError(t *testing.T) {
	client := newFakeDrive(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"message":"forbidden"}}`))
	})

	_, err := client.GetMetadata(context.Background(), creds, "abc")
	if !errors.Is(err, domain.ErrRemote) {
		t.Errorf("expected ErrRemote, got %v", err)
	}
}

func TestGetMetadataNoCredentials(t *testing.T) {
	client := drive.New(nil)
	_, err := client.GetMetadata(context.Background(), nil, "abc")
	if !errors.Is(err, domain.ErrRemote) {
		t.Errorf("expected ErrRemote, got %v", err)
	}
}

func TestListChildrenPaginates(t *testing.T) {
	var queries []string
	client := newFakeDrive(t, func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("pageToken") == "" {
			json.NewEncoder(w).Encode(map[string]any{
				"nextPageToken": "p2",
				"files": []map[string]any{
					{"id": "a", "mimeType": "image/png"},
					{"id": "s", "mimeType": domain.MimeShortcut, "shortcutDetails": map[string]any{"targetId": "t"}},
				},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"files": []map[string]any{{"id": "b", "mimeType": domain.MimeFolder}},
		})
	})

	got, err := client.ListChildren(context.Background(), creds, "folder1")
	if err != nil {
		t.Fatalf("ListChildren: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 children, got %d", len(got))
	}
	if got[1].ShortcutTargetID != "t" {
		t.Errorf("shortcut target = %q", got[1].ShortcutTargetID)
	}
	if len(queries) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(queries))
	}
	if queries[0] != "'folder1' in parents and trashed = false" {
		t.Errorf("query = %q", queries[0])
	}
}
