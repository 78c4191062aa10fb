package workers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/camden-git/photosorter/database"
	"github.com/camden-git/photosorter/media"
	"github.com/camden-git/photosorter/session"
)

// TaskType constants
const (
	TaskThumbnail = "thumbnail"
	TaskMetadata  = "metadata"
)

// ImageJob is one background task for a photo of a batch.
type ImageJob struct {
	BatchID  string
	PhotoID  string
	Name     string
	Data     []byte
	TaskType string
}

func (j ImageJob) pendingKey() string {
	return fmt.Sprintf("%s:%s:%s", j.BatchID, j.PhotoID, j.TaskType)
}

// ResultSink receives task results. session.Controller implements it; every
// method reports false when the batch has been replaced meanwhile.
type ResultSink interface {
	MarkTaskProcessing(ctx context.Context, batchID, id string, thumbnail bool) (bool, error)
	CompleteThumbnail(ctx context.Context, batchID, id, thumbPath string, taskErr error) (bool, error)
	CompleteMetadata(ctx context.Context, batchID, id string, meta session.PhotoMetadata) (bool, error)
}

// Thumbnailer renders and stores a thumbnail, returning its store path.
type Thumbnailer interface {
	GenerateThumbnail(data []byte, name string) (string, error)
}

type ImageProcessor struct {
	JobQueue chan ImageJob
	Sink     ResultSink
	Thumbs   Thumbnailer
	Store    media.Store // removes thumbnails of superseded batches; may be nil
	DB       *sql.DB     // thumbnail index; may be nil
	Wg       sync.WaitGroup
	StopChan chan struct{}
	Pending  map[string]bool
	Mutex    sync.Mutex
	stopOnce sync.Once
}

func NewImageProcessor(sink ResultSink, thumbs Thumbnailer, store media.Store, db *sql.DB, queueSize, numWorkers int) *ImageProcessor {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	proc := &ImageProcessor{
		JobQueue: make(chan ImageJob, queueSize),
		Sink:     sink,
		Thumbs:   thumbs,
		Store:    store,
		DB:       db,
		StopChan: make(chan struct{}),
		Pending:  make(map[string]bool),
	}
	proc.Wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go proc.worker(i)
	}
	log.Printf("Started %d image processing worker(s) with queue size %d", numWorkers, queueSize)
	return proc
}

func (ip *ImageProcessor) worker(id int) {
	defer ip.Wg.Done()

	for {
		select {
		case job := <-ip.JobQueue:
			ip.handle(id, job)
			ip.Mutex.Lock()
			delete(ip.Pending, job.pendingKey())
			ip.Mutex.Unlock()

		case <-ip.StopChan:
			log.Printf("Image worker %d stopping: Stop signal received", id)
			return
		}
	}
}

func (ip *ImageProcessor) handle(id int, job ImageJob) {
	ctx := context.Background()

	current, err := ip.Sink.MarkTaskProcessing(ctx, job.BatchID, job.PhotoID, job.TaskType == TaskThumbnail)
	if err != nil {
		if !errors.Is(err, session.ErrControllerStopped) {
			log.Printf("Worker %d: ERROR marking %s processing for %s: %v. Skipping job.", id, job.TaskType, job.Name, err)
		}
		return
	}
	if !current {
		return
	}

	switch job.TaskType {
	case TaskThumbnail:
		ip.processThumbnailTask(ctx, id, job)
	case TaskMetadata:
		ip.processMetadataTask(ctx, id, job)
	default:
		log.Printf("Worker %d: ERROR unknown task type '%s' for %s", id, job.TaskType, job.Name)
	}
}

func (ip *ImageProcessor) processThumbnailTask(ctx context.Context, id int, job ImageJob) {
	thumbPath, taskErr := ip.Thumbs.GenerateThumbnail(job.Data, job.Name)
	if taskErr != nil {
		log.Printf("Worker %d: ERROR thumbnail for %s: %v", id, job.Name, taskErr)
	}

	applied, err := ip.Sink.CompleteThumbnail(ctx, job.BatchID, job.PhotoID, thumbPath, taskErr)
	if err != nil {
		log.Printf("Worker %d: ERROR recording thumbnail for %s: %v", id, job.Name, err)
	}
	if taskErr != nil {
		return
	}
	if !applied {
		// the batch was replaced while rendering
		if ip.Store != nil {
			if err := ip.Store.Delete(thumbPath); err != nil {
				log.Printf("Worker %d: failed to drop stale thumbnail %s: %v", id, thumbPath, err)
			}
		}
		return
	}
	if ip.DB != nil {
		if err := database.SetThumbnailInfo(ip.DB, job.BatchID, job.PhotoID, thumbPath); err != nil {
			log.Printf("Worker %d: ERROR indexing thumbnail for %s: %v", id, job.Name, err)
		}
	}
}

func (ip *ImageProcessor) processMetadataTask(ctx context.Context, id int, job ImageJob) {
	var result session.PhotoMetadata
	meta, err := media.ReadMetadata(job.Data)
	if err != nil {
		log.Printf("Worker %d: no metadata for %s: %v", id, job.Name, err)
	} else {
		result = photoMetadata(meta)
	}

	if _, err := ip.Sink.CompleteMetadata(ctx, job.BatchID, job.PhotoID, result); err != nil {
		log.Printf("Worker %d: ERROR recording metadata for %s: %v", id, job.Name, err)
	}
}

func photoMetadata(meta *media.Metadata) session.PhotoMetadata {
	out := session.PhotoMetadata{TakenAt: meta.TakenAt}
	if meta.Width != nil {
		out.Width = *meta.Width
	}
	if meta.Height != nil {
		out.Height = *meta.Height
	}
	if meta.CameraMake != nil {
		out.CameraMake = *meta.CameraMake
	}
	if meta.CameraModel != nil {
		out.CameraModel = *meta.CameraModel
	}
	return out
}

// QueueJob queues a task unless the same task is already pending. It blocks
// while the queue is full and gives up when ctx ends or the processor stops.
func (ip *ImageProcessor) QueueJob(ctx context.Context, job ImageJob) bool {
	key := job.pendingKey()

	ip.Mutex.Lock()
	if ip.Pending[key] {
		ip.Mutex.Unlock()
		return false
	}
	ip.Pending[key] = true
	ip.Mutex.Unlock()

	select {
	case ip.JobQueue <- job:
		return true
	case <-ctx.Done():
	case <-ip.StopChan:
	}
	ip.Mutex.Lock()
	delete(ip.Pending, key)
	ip.Mutex.Unlock()
	return false
}

// QueueBatch queues a thumbnail and a metadata task for every photo.
// Returns the number of tasks queued.
func (ip *ImageProcessor) QueueBatch(ctx context.Context, batchID string, photos []session.Photo) int {
	queued := 0
	for _, p := range photos {
		for _, task := range []string{TaskThumbnail, TaskMetadata} {
			job := ImageJob{BatchID: batchID, PhotoID: p.ID, Name: p.Name, Data: p.Data(), TaskType: task}
			if ip.QueueJob(ctx, job) {
				queued++
			}
		}
	}
	log.Printf("Queued %d task(s) for batch %s", queued, batchID)
	return queued
}

// PendingCount reports how many tasks are queued or running.
func (ip *ImageProcessor) PendingCount() int {
	ip.Mutex.Lock()
	defer ip.Mutex.Unlock()
	return len(ip.Pending)
}

func (ip *ImageProcessor) Stop() {
	ip.stopOnce.Do(func() {
		log.Println("Stopping image processor workers...")
		close(ip.StopChan)
	})
	ip.Wg.Wait()
	log.Println("All image processor workers stopped")
}
