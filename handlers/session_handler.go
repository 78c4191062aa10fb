package handlers

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/camden-git/photosorter/database"
	"github.com/camden-git/photosorter/media"
	"github.com/camden-git/photosorter/services"
	"github.com/camden-git/photosorter/session"
)

// SessionHandler serves the sorting session: batches, photos, years, tags,
// import and export.
type SessionHandler struct {
	Ctrl           *session.Controller
	Batches        *services.BatchService
	Imports        *services.ImportService
	Exports        *services.ExportService
	Store          media.Store // may be nil
	ThumbDB        *sql.DB     // thumbnail index; may be nil
	MaxUploadBytes int64
}

func photoID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

func yearParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_year", "Year must be a number")
		return 0, false
	}
	return year, true
}

// ListPhotos returns the current view: the unsorted photos, or the photos of
// the filtered year.
func (h *SessionHandler) ListPhotos(w http.ResponseWriter, r *http.Request) {
	order := r.URL.Query().Get("sort")
	if !session.IsValidOrder(order) {
		WriteAPIError(w, http.StatusBadRequest, "invalid_sort", fmt.Sprintf("Unknown sort order '%s'", order))
		return
	}
	view, err := h.Ctrl.Visible(r.Context(), order)
	if err != nil {
		writeServiceError(w, "list photos", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *SessionHandler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	p, err := h.Ctrl.Get(r.Context(), photoID(r))
	if err != nil {
		writeServiceError(w, "get photo", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GetOriginal streams the photo bytes as they were loaded.
func (h *SessionHandler) GetOriginal(w http.ResponseWriter, r *http.Request) {
	p, err := h.Ctrl.Get(r.Context(), photoID(r))
	if err != nil {
		writeServiceError(w, "get original", err)
		return
	}
	if p.ContentType != "" {
		w.Header().Set("Content-Type", p.ContentType)
	}
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, p.Name, time.Time{}, bytes.NewReader(p.Data()))
}

// GetThumbnail looks the photo up in the thumbnail index and serves the
// stored file.
func (h *SessionHandler) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	id := photoID(r)
	if h.ThumbDB == nil || h.Store == nil {
		http.NotFound(w, r)
		return
	}
	info, err := database.GetThumbnailInfo(h.ThumbDB, id)
	if errors.Is(err, sql.ErrNoRows) {
		WriteAPIError(w, http.StatusNotFound, "thumbnail_not_ready", "No thumbnail for this photo yet")
		return
	} else if err != nil {
		log.Printf("thumbnail lookup for %s: %v", id, err)
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
		return
	}

	fullPath, err := h.Store.GetFullPath(info.ThumbnailPath)
	if err != nil {
		log.Printf("SECURITY: indexed thumbnail path rejected for %s: %v", id, err)
		WriteAPIError(w, http.StatusForbidden, "forbidden", "Forbidden")
		return
	}
	setCacheHeaders(w, 24*time.Hour)
	http.ServeFile(w, r, fullPath)
}

func (h *SessionHandler) ToggleSelect(w http.ResponseWriter, r *http.Request) {
	p, err := h.Ctrl.ToggleSelect(r.Context(), photoID(r))
	if err != nil {
		writeServiceError(w, "toggle select", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type setTagsRequest struct {
	Tags []string `json:"tags"`
}

// SetPhotoTags replaces the tag list of one photo.
func (h *SessionHandler) SetPhotoTags(w http.ResponseWriter, r *http.Request) {
	var req setTagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_body", "Invalid request body")
		return
	}
	p, err := h.Ctrl.SetTags(r.Context(), photoID(r), req.Tags)
	if err != nil {
		writeServiceError(w, "set tags", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// tagParam reads the {tag} segment. chi matches on RawPath when the request
// has one, and the segment is still escaped in that case.
func tagParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	tag := chi.URLParam(r, "tag")
	var err error
	if r.URL.RawPath != "" {
		tag, err = url.PathUnescape(tag)
	}
	if err != nil || strings.TrimSpace(tag) == "" {
		WriteAPIError(w, http.StatusBadRequest, "invalid_tag", "Invalid tag")
		return "", false
	}
	return strings.TrimSpace(tag), true
}

func (h *SessionHandler) AddPhotoTag(w http.ResponseWriter, r *http.Request) {
	tag, ok := tagParam(w, r)
	if !ok {
		return
	}
	p, err := h.Ctrl.AddTagToPhoto(r.Context(), photoID(r), tag)
	if err != nil {
		writeServiceError(w, "add photo tag", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *SessionHandler) RemovePhotoTag(w http.ResponseWriter, r *http.Request) {
	tag, ok := tagParam(w, r)
	if !ok {
		return
	}
	p, err := h.Ctrl.RemoveTagFromPhoto(r.Context(), photoID(r), tag)
	if err != nil {
		writeServiceError(w, "remove photo tag", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UnassignYear sends a photo back to the unsorted view.
func (h *SessionHandler) UnassignYear(w http.ResponseWriter, r *http.Request) {
	p, err := h.Ctrl.UnassignYear(r.Context(), photoID(r))
	if err != nil {
		writeServiceError(w, "unassign year", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *SessionHandler) ListYears(w http.ResponseWriter, r *http.Request) {
	buckets, err := h.Ctrl.YearBuckets(r.Context())
	if err != nil {
		writeServiceError(w, "list years", err)
		return
	}
	writeJSON(w, http.StatusOK, buckets)
}

// AssignYear is a click on a year tile. While a year filter is active the
// click does nothing and the response reports applied=false.
func (h *SessionHandler) AssignYear(w http.ResponseWriter, r *http.Request) {
	year, ok := yearParam(w, r)
	if !ok {
		return
	}
	res, err := h.Ctrl.AssignYearFromTile(r.Context(), year)
	if err != nil {
		writeServiceError(w, "assign year", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *SessionHandler) ToggleFilter(w http.ResponseWriter, r *http.Request) {
	year, ok := yearParam(w, r)
	if !ok {
		return
	}
	if _, err := h.Ctrl.ToggleFilter(r.Context(), year); err != nil {
		writeServiceError(w, "toggle filter", err)
		return
	}
	h.ListPhotos(w, r)
}

func (h *SessionHandler) ClearFilter(w http.ResponseWriter, r *http.Request) {
	if err := h.Ctrl.ClearFilter(r.Context()); err != nil {
		writeServiceError(w, "clear filter", err)
		return
	}
	h.ListPhotos(w, r)
}

type tagsResponse struct {
	Tags []session.TagState `json:"tags"`
}

// ListTags returns every known tag with its checkbox state for the current
// selection.
func (h *SessionHandler) ListTags(w http.ResponseWriter, r *http.Request) {
	states, err := h.Ctrl.TagStates(r.Context())
	if err != nil {
		writeServiceError(w, "list tags", err)
		return
	}
	writeJSON(w, http.StatusOK, tagsResponse{Tags: states})
}

type addTagRequest struct {
	Name string `json:"name"`
}

func (h *SessionHandler) AddTag(w http.ResponseWriter, r *http.Request) {
	var req addTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_body", "Invalid request body")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		WriteAPIError(w, http.StatusBadRequest, "invalid_tag", "Tag name is required")
		return
	}
	added, err := h.Ctrl.AddTag(r.Context(), name)
	if err != nil {
		writeServiceError(w, "add tag", err)
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	h.writeTags(w, r, status)
}

type selectionRequest struct {
	Checked bool `json:"checked"`
}

// ApplyTagToSelection checks or unchecks a tag for every selected photo.
func (h *SessionHandler) ApplyTagToSelection(w http.ResponseWriter, r *http.Request) {
	tag, ok := tagParam(w, r)
	if !ok {
		return
	}
	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_body", "Invalid request body")
		return
	}
	if _, err := h.Ctrl.ApplyTagToSelection(r.Context(), tag, req.Checked); err != nil {
		writeServiceError(w, "apply tag", err)
		return
	}
	h.writeTags(w, r, http.StatusOK)
}

func (h *SessionHandler) writeTags(w http.ResponseWriter, r *http.Request, status int) {
	states, err := h.Ctrl.TagStates(r.Context())
	if err != nil {
		writeServiceError(w, "list tags", err)
		return
	}
	writeJSON(w, status, tagsResponse{Tags: states})
}
