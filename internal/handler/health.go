package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/msomdec/drive-tagger/internal/domain"
)

// HandleHealthz responds with 200 and {"status":"ok"} while the database
// answers, and 503 otherwise.
func HandleHealthz(db domain.Database) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			slog.Error("health check", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
