package handler

import (
	"net/http"
	"strconv"

	"github.com/msomdec/drive-tagger/internal/service"
)

// ImageHandler serves listing, search and tag edits.
type ImageHandler struct {
	tags     *service.TagService
	listing  *service.ListingService
	pageSize int
}

// NewImageHandler creates a new ImageHandler.
func NewImageHandler(tags *service.TagService, listing *service.ListingService, pageSize int) *ImageHandler {
	return &ImageHandler{tags: tags, listing: listing, pageSize: pageSize}
}

// HandleList returns one page of images, optionally filtered.
// GET /api/images?page=2&q=dog,cat
func (h *ImageHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())

	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "Invalid page number.")
			return
		}
		page = n
	}

	p, err := h.listing.ListPage(r.Context(), session.Email, &session.Credentials, page, h.pageSize, r.URL.Query().Get("q"))
	if err != nil {
		writeServiceError(w, "list images", err)
		return
	}
	writeJSON(w, http.StatusOK, toPageDTO(p))
}

// HandleImport tags the files named by Drive links.
// POST /api/images
// Request:  {"links":"https://drive.google.com/...,...","tags":"cat,dog"}
func (h *ImageHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())

	var req struct {
		Links string `json:"links"`
		Tags  string `json:"tags"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	result, err := h.tags.Import(r.Context(), session.Email, &session.Credentials, req.Links, req.Tags)
	if err != nil {
		writeServiceError(w, "import links", err)
		return
	}

	unrecognized := result.Unrecognized
	if unrecognized == nil {
		unrecognized = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tagged":       result.Tagged,
		"unrecognized": unrecognized,
		"refresh":      toRefreshDTO(result.Refresh),
	})
}

// HandleGet returns one image.
// GET /api/images/{id}
func (h *ImageHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())
	rec, err := h.tags.Get(r.Context(), session.Email, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "get image", err)
		return
	}
	writeJSON(w, http.StatusOK, toImageDTO(*rec))
}

// HandleAddTags merges tags into an image, creating it if needed.
// POST /api/images/{id}/tags
// Request:  {"tags":["cat","dog"]}
func (h *ImageHandler) HandleAddTags(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())
	id := r.PathValue("id")

	var req struct {
		Tags []string `json:"tags"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	if err := h.tags.AddTags(r.Context(), session.Email, id, req.Tags); err != nil {
		writeServiceError(w, "add tags", err)
		return
	}
	rec, err := h.tags.Get(r.Context(), session.Email, id)
	if err != nil {
		writeServiceError(w, "get image", err)
		return
	}
	writeJSON(w, http.StatusOK, toImageDTO(*rec))
}

// HandleRemoveTag removes one tag from an image.
// DELETE /api/images/{id}/tags/{tag}
func (h *ImageHandler) HandleRemoveTag(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())
	if err := h.tags.RemoveTag(r.Context(), session.Email, r.PathValue("id"), r.PathValue("tag")); err != nil {
		writeServiceError(w, "remove tag", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDelete removes one image record.
// DELETE /api/images/{id}
func (h *ImageHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())
	if err := h.tags.Delete(r.Context(), session.Email, r.PathValue("id")); err != nil {
		writeServiceError(w, "delete image", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDeleteAll removes every image record.
// DELETE /api/images
// Response: {"deleted": 12}
func (h *ImageHandler) HandleDeleteAll(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())
	n, err := h.tags.DeleteAll(r.Context(), session.Email)
	if err != nil {
		writeServiceError(w, "delete all images", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

// HandleListTags returns every distinct tag.
// GET /api/tags
func (h *ImageHandler) HandleListTags(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())
	tags, err := h.tags.AllTags(r.Context(), session.Email)
	if err != nil {
		writeServiceError(w, "list tags", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

// HandleRenameTag renames a tag across all images.
// POST /api/tags/rename
// Request:  {"from":"cat","to":"kitten"}
// Response: {"renamed": 3}
func (h *ImageHandler) HandleRenameTag(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r.Context())

	var req struct {
		From string `json:"from"`
		To   string `json:"to"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	n, err := h.tags.RenameTag(r.Context(), session.Email, req.From, req.To)
	if err != nil {
		writeServiceError(w, "rename tag", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"renamed": n})
}
