package services

import (
	"context"
	"fmt"
	"log"

	"github.com/camden-git/photosorter/csvmap"
	"github.com/camden-git/photosorter/session"
)

// ImportService applies a previously exported mapping CSV to the session.
type ImportService struct {
	ctrl *session.Controller
}

func NewImportService(ctrl *session.Controller) *ImportService {
	return &ImportService{ctrl: ctrl}
}

// ImportCSV parses text and merges it into the loaded photos. A malformed CSV
// leaves the session untouched.
func (s *ImportService) ImportCSV(ctx context.Context, text string) (session.ImportSummary, error) {
	records, tagsSeen, err := csvmap.Parse(text)
	if err != nil {
		return session.ImportSummary{}, fmt.Errorf("import csv: %w", err)
	}

	summary, err := s.ctrl.MergeFromImport(ctx, records, tagsSeen)
	if err != nil {
		return session.ImportSummary{}, fmt.Errorf("import csv: %w", err)
	}
	log.Printf("import: %s (%d matched, %d tag(s))", summary.Message(), summary.Matched, len(summary.Tags))
	return summary, nil
}
