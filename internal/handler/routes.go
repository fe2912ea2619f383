package handler

import (
	"net/http"

	"github.com/msomdec/drive-tagger/internal/domain"
	"github.com/msomdec/drive-tagger/internal/service"
)

// Services bundles what the routes need.
type Services struct {
	DB       domain.Database
	Auth     *service.AuthService
	Tags     *service.TagService
	Listing  *service.ListingService
	Backups  *service.BackupService
	Limiter  *service.TokenBucket
	PageSize int
}

// RegisterRoutes sets up all HTTP routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, svc Services, cookieSecure bool) {
	authHandler := NewAuthHandler(svc.Auth, cookieSecure)
	imageHandler := NewImageHandler(svc.Tags, svc.Listing, svc.PageSize)
	backupHandler := NewBackupHandler(svc.Backups)
	refreshHandler := NewRefreshHandler(svc.Tags)

	requireAuth := func(h http.HandlerFunc) http.Handler {
		return RequireAuth(svc.Auth, h)
	}
	limited := func(h http.HandlerFunc) http.Handler {
		if svc.Limiter == nil {
			return h
		}
		return RateLimit(svc.Limiter, h)
	}

	mux.HandleFunc("GET /healthz", HandleHealthz(svc.DB))

	// Sign-in flow.
	mux.Handle("GET /auth/login", limited(authHandler.HandleLogin))
	mux.Handle("GET /auth/callback", limited(authHandler.HandleCallback))
	mux.HandleFunc("POST /auth/logout", authHandler.HandleLogout)
	mux.Handle("GET /api/me", requireAuth(authHandler.HandleMe))

	// Images and tags.
	mux.Handle("GET /api/images", requireAuth(imageHandler.HandleList))
	mux.Handle("POST /api/images", requireAuth(imageHandler.HandleImport))
	mux.Handle("DELETE /api/images", requireAuth(imageHandler.HandleDeleteAll))
	mux.Handle("GET /api/images/{id}", requireAuth(imageHandler.HandleGet))
	mux.Handle("DELETE /api/images/{id}", requireAuth(imageHandler.HandleDelete))
	mux.Handle("POST /api/images/{id}/tags", requireAuth(imageHandler.HandleAddTags))
	mux.Handle("DELETE /api/images/{id}/tags/{tag}", requireAuth(imageHandler.HandleRemoveTag))
	mux.Handle("GET /api/tags", requireAuth(imageHandler.HandleListTags))
	mux.Handle("POST /api/tags/rename", requireAuth(imageHandler.HandleRenameTag))
	mux.Handle("POST /api/thumbnails/refresh", requireAuth(refreshHandler.HandleRefresh))

	// Backups.
	mux.Handle("GET /api/backups", requireAuth(backupHandler.HandleList))
	mux.Handle("POST /api/backups", requireAuth(backupHandler.HandleSave))
	mux.Handle("DELETE /api/backups/{id}", requireAuth(backupHandler.HandleDelete))
	mux.Handle("POST /api/backups/{id}/restore", requireAuth(backupHandler.HandleRestore))
}
