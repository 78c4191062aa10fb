package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/camden-git/photosorter/database"
	"github.com/camden-git/photosorter/media"
	"github.com/camden-git/photosorter/session"
)

// ErrInvalidDirectory is returned for a directory outside the root or not a directory.
var ErrInvalidDirectory = errors.New("invalid directory")

// TaskQueue schedules background work for a freshly loaded batch.
type TaskQueue interface {
	QueueBatch(ctx context.Context, batchID string, photos []session.Photo) int
}

// BatchService loads batches of photos into the session and starts their
// thumbnail and metadata tasks.
type BatchService struct {
	ctrl  *session.Controller
	queue TaskQueue   // may be nil
	store media.Store // may be nil
	db    *sql.DB     // thumbnail index; may be nil
	root  string
}

func NewBatchService(ctrl *session.Controller, queue TaskQueue, store media.Store, db *sql.DB, rootDir string) *BatchService {
	return &BatchService{ctrl: ctrl, queue: queue, store: store, db: db, root: rootDir}
}

// LoadFiles replaces the session's photos with files. Files without a content
// type get one sniffed from their bytes.
func (s *BatchService) LoadFiles(ctx context.Context, files []session.File) (session.LoadSummary, error) {
	for i := range files {
		if files[i].ContentType == "" {
			files[i].ContentType = media.DetectContentType(files[i].Name, files[i].Data)
		}
	}

	summary, err := s.ctrl.LoadBatch(ctx, files)
	if err != nil {
		return session.LoadSummary{}, fmt.Errorf("load batch: %w", err)
	}
	log.Printf("batch: loaded %d photo(s) as batch %s, skipped %d", len(summary.Photos), summary.BatchID, len(summary.Skipped))

	s.dropOldThumbnails(summary.BatchID)

	if s.queue != nil && len(summary.Photos) > 0 {
		go s.queue.QueueBatch(context.Background(), summary.BatchID, summary.Photos)
	}
	return summary, nil
}

func (s *BatchService) dropOldThumbnails(batchID string) {
	if s.db != nil {
		n, err := database.ClearThumbnails(s.db, batchID)
		if err != nil {
			log.Printf("batch: failed to clear thumbnail index: %v", err)
		} else if n > 0 {
			log.Printf("batch: dropped %d indexed thumbnail(s) of earlier batches", n)
		}
	}
	if s.store != nil {
		if err := s.store.Clear(media.AssetTypeThumbnail); err != nil {
			log.Printf("batch: failed to clear thumbnails: %v", err)
		}
	}
}

// BatchStatus is the progress of the current batch's background work.
type BatchStatus struct {
	BatchID           string `json:"batch_id"`
	Photos            int    `json:"photos"`
	ThumbnailsIndexed int    `json:"thumbnails_indexed"`
	MetadataDone      int    `json:"metadata_done"`
}

// Status reports how far the current batch's thumbnail and metadata tasks
// have got. Thumbnails count once they are in the index.
func (s *BatchService) Status(ctx context.Context) (BatchStatus, error) {
	batchID, err := s.ctrl.BatchID(ctx)
	if err != nil {
		return BatchStatus{}, fmt.Errorf("batch status: %w", err)
	}
	photos, err := s.ctrl.Photos(ctx)
	if err != nil {
		return BatchStatus{}, fmt.Errorf("batch status: %w", err)
	}

	status := BatchStatus{BatchID: batchID, Photos: len(photos)}
	for _, p := range photos {
		if p.MetadataStatus == session.StatusDone {
			status.MetadataDone++
		}
	}
	if s.db != nil && batchID != "" {
		n, err := database.CountThumbnails(s.db, batchID)
		if err != nil {
			return BatchStatus{}, fmt.Errorf("batch status: %w", err)
		}
		status.ThumbnailsIndexed = n
	}
	return status, nil
}

// LoadDirectory loads the files of one directory (not recursive) below the
// root directory. Files without an image extension are listed as skipped
// without being read.
func (s *BatchService) LoadDirectory(ctx context.Context, relPath string) (session.LoadSummary, error) {
	dir, err := s.resolve(relPath)
	if err != nil {
		return session.LoadSummary{}, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return session.LoadSummary{}, fmt.Errorf("read directory %s: %w", relPath, err)
	}

	files := make([]session.File, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if !media.IsRasterImage(e.Name()) {
			files = append(files, session.File{Name: e.Name(), ContentType: "application/octet-stream"})
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			log.Printf("batch: skipping unreadable file %s: %v", e.Name(), err)
			continue
		}
		files = append(files, session.File{Name: e.Name(), ContentType: media.DetectContentType(e.Name(), data), Data: data})
	}
	return s.LoadFiles(ctx, files)
}

func (s *BatchService) resolve(relPath string) (string, error) {
	root, err := filepath.Abs(s.root)
	if err != nil {
		return "", fmt.Errorf("root directory: %w", err)
	}
	dir := filepath.Join(root, filepath.Clean("/"+relPath))
	info, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidDirectory, relPath, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrInvalidDirectory, relPath)
	}
	return dir, nil
}
