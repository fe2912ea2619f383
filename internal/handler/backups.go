package handler

import (
	"net/http"
	"strconv"

	"github.com/msomdec/drive-tagger/internal/service"
)

// BackupHandler serves snapshot management.
type BackupHandler struct {
	backups *service.BackupService
}

// NewBackupHandler creates a new BackupHandler.
func NewBackupHandler(backups *service.BackupService) *BackupHandler {
	return &BackupHandler{backups: backups}
}

// HandleList returns all snapshots, newest first.
// GET /api/backups
func (h *BackupHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())
	list, err := h.backups.List(r.Context(), session.Email)
	if err != nil {
		writeServiceError(w, "list backups", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"backups": toSnapshotDTOs(list)})
}

// HandleSave snapshots the whole store.
// POST /api/backups
// Request:  {"label":"before cleanup"} (label optional)
func (h *BackupHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())

	var req struct {
		Label string `json:"label"`
	}
	if r.ContentLength != 0 {
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body.")
			return
		}
	}

	snap, err := h.backups.Save(r.Context(), session.Email, req.Label)
	if err != nil {
		writeServiceError(w, "save backup", err)
		return
	}
	n := len(snap.Entries)
	writeJSON(w, http.StatusCreated, SnapshotDTO{ID: snap.ID, Label: snap.Label, Images: &n})
}

// HandleDelete removes a snapshot.
// DELETE /api/backups/{id}
func (h *BackupHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.backups.Delete(r.Context(), session.Email, id); err != nil {
		writeServiceError(w, "delete backup", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRestore returns the store to a snapshot.
// POST /api/backups/{id}/restore
func (h *BackupHandler) HandleRestore(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	result, err := h.backups.Restore(r.Context(), session.Email, &session.Credentials, id)
	if err != nil {
		writeServiceError(w, "restore backup", err)
		return
	}
	writeJSON(w, http.StatusOK, toRestoreDTO(result))
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid backup id.")
		return 0, false
	}
	return id, true
}
