package handlers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/camden-git/photosorter/models"
	"github.com/camden-git/photosorter/services"
)

func writeAttachment(w http.ResponseWriter, art services.Artifact) {
	w.Header().Set("Content-Type", art.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", art.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(art.Data)))
	w.Header().Set("X-Photo-Count", strconv.Itoa(art.PhotoCount))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(art.Data); err != nil {
		log.Printf("export: writing %s to client: %v", art.Filename, err)
	}
}

// ExportCSV downloads photo_metadata_map.csv for the assigned photos.
func (h *SessionHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	art, err := h.Exports.ExportCSV(r.Context())
	if err != nil {
		writeServiceError(w, "export csv", err)
		return
	}
	writeAttachment(w, art)
}

// ExportArchive downloads the zip of assigned photos with corrected dates.
func (h *SessionHandler) ExportArchive(w http.ResponseWriter, r *http.Request) {
	art, err := h.Exports.ExportArchive(r.Context())
	if err != nil {
		writeServiceError(w, "export archive", err)
		return
	}
	w.Header().Set("X-Unpatched-Count", strconv.Itoa(art.Unpatched))
	writeAttachment(w, art)
}

func (h *SessionHandler) ListExports(w http.ResponseWriter, r *http.Request) {
	records, err := h.Exports.ListExports()
	if err != nil {
		writeServiceError(w, "list exports", err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// DownloadExport serves a previously produced export from the archive store.
func (h *SessionHandler) DownloadExport(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_id", "Invalid export id")
		return
	}
	record, err := h.Exports.GetExport(uint(id))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		WriteAPIError(w, http.StatusNotFound, "export_not_found", "Export not found")
		return
	} else if err != nil {
		writeServiceError(w, "get export", err)
		return
	}
	if record.StoredPath == "" || h.Store == nil {
		WriteAPIError(w, http.StatusNotFound, "export_not_stored", "This export was not kept on disk")
		return
	}

	f, info, err := h.Store.Get(record.StoredPath)
	if err != nil {
		log.Printf("export: opening stored export %d: %v", record.ID, err)
		WriteAPIError(w, http.StatusNotFound, "export_not_stored", "This export is no longer on disk")
		return
	}
	defer f.Close()

	contentType := services.CSVContentType
	if record.Kind == models.ExportKindArchive {
		contentType = services.ArchiveContentType
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", record.Filename))
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	if _, err := io.Copy(w, f); err != nil {
		log.Printf("export: streaming export %d: %v", record.ID, err)
	}
}
