package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime"
	"net/http"
	"strings"

	"github.com/camden-git/photosorter/session"
)

const (
	batchFilesField = "files"
	importFileField = "file"
)

// UploadBatch reads every "files" part of a multipart upload and replaces
// the session's photos with them.
func (h *SessionHandler) UploadBatch(w http.ResponseWriter, r *http.Request) {
	if h.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	}
	reader, err := r.MultipartReader()
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_multipart", "Expected a multipart/form-data upload")
		return
	}

	var files []session.File
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if tooLarge(err) {
				WriteAPIError(w, http.StatusRequestEntityTooLarge, "upload_too_large", "Upload exceeds the size limit")
				return
			}
			log.Printf("batch upload: reading multipart: %v", err)
			WriteAPIError(w, http.StatusBadRequest, "invalid_multipart", "Error reading upload")
			return
		}
		if part.FormName() != batchFilesField || part.FileName() == "" {
			part.Close()
			continue
		}

		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			if tooLarge(err) {
				WriteAPIError(w, http.StatusRequestEntityTooLarge, "upload_too_large", "Upload exceeds the size limit")
				return
			}
			log.Printf("batch upload: reading %s: %v", part.FileName(), err)
			WriteAPIError(w, http.StatusBadRequest, "invalid_multipart", "Error reading upload")
			return
		}

		// browsers send octet-stream for anything they do not recognise; let it be sniffed
		contentType := part.Header.Get("Content-Type")
		if mt, _, err := mime.ParseMediaType(contentType); err != nil || mt == "application/octet-stream" {
			contentType = ""
		}
		files = append(files, session.File{Name: part.FileName(), ContentType: contentType, Data: data})
	}

	if len(files) == 0 {
		WriteAPIError(w, http.StatusBadRequest, "no_files", "No files were uploaded")
		return
	}

	summary, err := h.Batches.LoadFiles(r.Context(), files)
	if err != nil {
		writeServiceError(w, "batch upload", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

// BatchStatus reports background progress for the current batch.
func (h *SessionHandler) BatchStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.Batches.Status(r.Context())
	if err != nil {
		writeServiceError(w, "batch status", err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

type directoryRequest struct {
	Path string `json:"path"`
}

// LoadDirectory loads a directory below the configured root as the new batch.
func (h *SessionHandler) LoadDirectory(w http.ResponseWriter, r *http.Request) {
	var req directoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_body", "Invalid request body")
		return
	}
	summary, err := h.Batches.LoadDirectory(r.Context(), req.Path)
	if err != nil {
		writeServiceError(w, "load directory", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type importResponse struct {
	Message string `json:"message"`
	session.ImportSummary
}

// ImportCSV merges a mapping CSV into the loaded photos. The CSV is either
// the "file" part of a multipart upload or the raw request body.
func (h *SessionHandler) ImportCSV(w http.ResponseWriter, r *http.Request) {
	if h.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	}
	text, err := readImportBody(r)
	if err != nil {
		if tooLarge(err) {
			WriteAPIError(w, http.StatusRequestEntityTooLarge, "upload_too_large", "Upload exceeds the size limit")
			return
		}
		WriteAPIError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	summary, err := h.Imports.ImportCSV(r.Context(), text)
	if err != nil {
		writeServiceError(w, "import csv", err)
		return
	}
	writeJSON(w, http.StatusOK, importResponse{Message: summary.Message(), ImportSummary: summary})
}

func readImportBody(r *http.Request) (string, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		data, err := io.ReadAll(r.Body)
		return string(data), err
	}

	reader, err := r.MultipartReader()
	if err != nil {
		return "", err
	}
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			return "", errors.New("missing 'file' part")
		}
		if err != nil {
			return "", err
		}
		if part.FormName() != importFileField {
			part.Close()
			continue
		}
		data, err := io.ReadAll(part)
		part.Close()
		return string(data), err
	}
}
