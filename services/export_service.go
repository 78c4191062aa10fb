package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/camden-git/photosorter/csvmap"
	"github.com/camden-git/photosorter/media"
	"github.com/camden-git/photosorter/models"
	"github.com/camden-git/photosorter/repository"
	"github.com/camden-git/photosorter/session"
	"github.com/camden-git/photosorter/utils"
)

const (
	ArchiveFilename    = "corrected_photos.zip"
	ArchiveContentType = "application/zip"
	CSVContentType     = "text/csv"
)

// Artifact is a produced export file.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
	StoredPath  string // empty when the store is not configured or saving failed
	PhotoCount  int
	Unpatched   int // archive entries stored with their original bytes
}

// ExportService turns the assigned photos into the mapping CSV or the
// corrected photo archive.
type ExportService struct {
	ctrl    *session.Controller
	store   media.Store                          // may be nil
	exports repository.ExportRepositoryInterface // may be nil
	names   csvmap.NameGenerator                 // nil means csvmap.GenerateName
	patch   func(data []byte, year int) ([]byte, error)
}

func NewExportService(ctrl *session.Controller, store media.Store, exports repository.ExportRepositoryInterface) *ExportService {
	return &ExportService{ctrl: ctrl, store: store, exports: exports, patch: media.PatchDateTime}
}

// WithNameGenerator replaces the generator used for rows without a stored new name.
func (s *ExportService) WithNameGenerator(gen csvmap.NameGenerator) *ExportService {
	s.names = gen
	return s
}

func (s *ExportService) assigned(ctx context.Context) ([]session.Photo, error) {
	photos, err := s.ctrl.Assigned(ctx)
	if err != nil {
		return nil, err
	}
	if len(photos) == 0 {
		return nil, csvmap.ErrNothingAssigned
	}
	return photos, nil
}

// ExportCSV renders photo_metadata_map.csv for every assigned photo.
func (s *ExportService) ExportCSV(ctx context.Context) (Artifact, error) {
	photos, err := s.assigned(ctx)
	if err != nil {
		return Artifact{}, fmt.Errorf("export csv: %w", err)
	}

	rows := make([]csvmap.ExportRow, 0, len(photos))
	for _, p := range photos {
		rows = append(rows, csvmap.ExportRow{
			OriginalFilename: p.Name,
			NewFilename:      p.NewName,
			Year:             p.AssignedYear,
			Tags:             p.Tags,
		})
	}
	text, err := csvmap.Serialize(rows, s.names)
	if err != nil {
		return Artifact{}, fmt.Errorf("export csv: %w", err)
	}

	art := Artifact{
		Filename:    csvmap.ExportFilename,
		ContentType: CSVContentType,
		Data:        []byte(text),
		PhotoCount:  len(rows),
	}
	s.persist(ctx, models.ExportKindCSV, &art)
	return art, nil
}

// ExportArchive zips every assigned photo under its original name with its
// EXIF dates set to the assigned year. Photos that cannot be patched are
// stored unchanged.
func (s *ExportService) ExportArchive(ctx context.Context) (Artifact, error) {
	photos, err := s.assigned(ctx)
	if err != nil {
		return Artifact{}, fmt.Errorf("export archive: %w", err)
	}

	entries := make([]utils.ZipEntry, 0, len(photos))
	unpatched := 0
	for _, p := range photos {
		data, err := s.patch(p.Data(), p.AssignedYear)
		if err != nil {
			if errors.Is(err, media.ErrNotPatchable) {
				log.Printf("export: storing %s unmodified: %v", p.Name, err)
			} else {
				log.Printf("export: EXIF rewrite failed for %s, storing it unmodified: %v", p.Name, err)
			}
			data = p.Data()
			unpatched++
		}
		entries = append(entries, utils.ZipEntry{
			Name:     p.Name,
			Data:     data,
			Modified: time.Date(p.AssignedYear, time.January, 1, 0, 0, 0, 0, time.Local),
		})
	}

	zipped, err := utils.CreateZip(entries)
	if err != nil {
		return Artifact{}, fmt.Errorf("export archive: %w", err)
	}

	art := Artifact{
		Filename:    ArchiveFilename,
		ContentType: ArchiveContentType,
		Data:        zipped,
		PhotoCount:  len(entries),
		Unpatched:   unpatched,
	}
	s.persist(ctx, models.ExportKindArchive, &art)
	return art, nil
}

// persist saves the artifact to the store and records it in the ledger.
// Failures are logged; the artifact is still handed to the caller.
func (s *ExportService) persist(ctx context.Context, kind string, art *Artifact) {
	if s.store != nil {
		name := fmt.Sprintf("%d_%s_%s", time.Now().Unix(), uuid.NewString()[:8], art.Filename)
		rel, err := s.store.Save(media.AssetTypeArchive, name, bytes.NewReader(art.Data))
		if err != nil {
			log.Printf("export: failed to store %s: %v", art.Filename, err)
		} else {
			art.StoredPath = rel
		}
	}

	if s.exports == nil {
		return
	}
	batchID, err := s.ctrl.BatchID(ctx)
	if err != nil {
		log.Printf("export: batch id unavailable: %v", err)
	}
	record := &models.ExportRecord{
		Kind:       kind,
		Filename:   art.Filename,
		StoredPath: art.StoredPath,
		SizeBytes:  int64(len(art.Data)),
		PhotoCount: art.PhotoCount,
		Unpatched:  art.Unpatched,
		BatchID:    batchID,
	}
	if err := s.exports.Create(record); err != nil {
		log.Printf("export: failed to record %s export: %v", kind, err)
		return
	}
	log.Printf("export: %s export %d with %d photo(s), %d bytes", kind, record.ID, record.PhotoCount, record.SizeBytes)
}

// ListExports returns the export ledger, newest first.
func (s *ExportService) ListExports() ([]models.ExportRecord, error) {
	if s.exports == nil {
		return []models.ExportRecord{}, nil
	}
	return s.exports.ListAll()
}

// GetExport looks up one ledger entry.
func (s *ExportService) GetExport(id uint) (*models.ExportRecord, error) {
	if s.exports == nil {
		return nil, fmt.Errorf("export %d: ledger not configured", id)
	}
	return s.exports.GetByID(id)
}
