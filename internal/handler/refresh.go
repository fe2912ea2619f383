package handler

import (
	"log/slog"
	"net/http"

	"github.com/msomdec/drive-tagger/internal/service"
	"github.com/starfederation/datastar-go/datastar"
)

// RefreshHandler streams a store-wide thumbnail refresh.
type RefreshHandler struct {
	tags *service.TagService
}

// NewRefreshHandler creates a new RefreshHandler.
func NewRefreshHandler(tags *service.TagService) *RefreshHandler {
	return &RefreshHandler{tags: tags}
}

// refreshSignals is the "refresh" signal object patched into the page.
type refreshSignals struct {
	service.BatchProgress
	Running bool   `json:"running"`
	Status  string `json:"status,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HandleRefresh refreshes every non-fresh thumbnail, patching progress
// signals after each persisted batch.
// POST /api/thumbnails/refresh
// Response: text/event-stream of datastar-patch-signals events.
func (h *RefreshHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())

	sse := datastar.NewSSE(w, r)
	patch := func(s refreshSignals) {
		if err := sse.MarshalAndPatchSignals(map[string]any{"refresh": s}); err != nil {
			slog.Warn("patch refresh signals", "error", err)
		}
	}
	patch(refreshSignals{Running: true})

	result, err := h.tags.RefreshStale(r.Context(), session.Email, &session.Credentials, func(p service.BatchProgress) {
		patch(refreshSignals{BatchProgress: p, Running: true})
	})
	if err != nil {
		slog.Error("bulk thumbnail refresh", "error", err)
		patch(refreshSignals{Running: false, Error: "Refresh failed."})
		return
	}

	patch(refreshSignals{
		BatchProgress: service.BatchProgress{Refreshed: result.Refreshed, Failed: result.Failed, Total: result.Refreshed + result.Failed},
		Running:       false,
		Status:        string(result.Status),
	})
}
