package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/camden-git/photosorter/csvmap"
	"github.com/camden-git/photosorter/services"
	"github.com/camden-git/photosorter/session"
)

// APIErrorDetail represents a single error in the standardized error response.
type APIErrorDetail struct {
	Code   string `json:"code"`
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// APIErrorResponse represents the standardized error response body.
type APIErrorResponse struct {
	Errors []APIErrorDetail `json:"errors"`
}

// WriteAPIError writes a standardized error response with the given HTTP status, code, and detail.
func WriteAPIError(w http.ResponseWriter, httpStatus int, code string, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)

	resp := APIErrorResponse{
		Errors: []APIErrorDetail{
			{
				Code:   code,
				Status: strconv.Itoa(httpStatus),
				Detail: detail,
			},
		},
	}

	_ = json.NewEncoder(w).Encode(resp)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("Error encoding JSON response: %v", err)
		}
	}
}

// writeServiceError maps an error from the session or a service onto an API error.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, csvmap.ErrEmptyCSV):
		WriteAPIError(w, http.StatusUnprocessableEntity, "csv_empty", err.Error())
	case errors.Is(err, csvmap.ErrMissingFilenameHeader):
		WriteAPIError(w, http.StatusUnprocessableEntity, "csv_missing_header", err.Error())
	case errors.Is(err, csvmap.ErrNothingAssigned):
		WriteAPIError(w, http.StatusConflict, "no_photos_assigned", "Assign a year to at least one photo before exporting")
	case errors.Is(err, session.ErrPhotoNotFound):
		WriteAPIError(w, http.StatusNotFound, "photo_not_found", err.Error())
	case errors.Is(err, session.ErrYearOutOfRange):
		WriteAPIError(w, http.StatusBadRequest, "year_out_of_range",
			fmt.Sprintf("Year must be between %d and %d", session.MinYear, session.MaxYear))
	case errors.Is(err, services.ErrInvalidDirectory):
		WriteAPIError(w, http.StatusBadRequest, "invalid_directory", err.Error())
	case errors.Is(err, session.ErrControllerStopped), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		WriteAPIError(w, http.StatusServiceUnavailable, "unavailable", "The session is not available")
	default:
		log.Printf("%s: %v", op, err)
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}
