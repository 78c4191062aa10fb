package workers_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camden-git/photosorter/database"
	"github.com/camden-git/photosorter/media"
	"github.com/camden-git/photosorter/session"
	"github.com/camden-git/photosorter/workers"
)

type fakeThumbnailer struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
	gate  chan struct{}
}

func (f *fakeThumbnailer) GenerateThumbnail(_ []byte, name string) (string, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	if f.fail[name] {
		return "", errors.New("cannot decode")
	}
	return "thumbnails/" + name, nil
}

func smallJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4)), nil))
	return buf.Bytes()
}

func waitDone(t *testing.T, ctrl *session.Controller, id string) session.Photo {
	t.Helper()
	var p session.Photo
	require.Eventually(t, func() bool {
		var err error
		p, err = ctrl.Get(context.Background(), id)
		require.NoError(t, err)
		thumbDone := p.ThumbnailStatus == session.StatusDone || p.ThumbnailStatus == session.StatusError
		return thumbDone && p.MetadataStatus == session.StatusDone
	}, 2*time.Second, 5*time.Millisecond)
	return p
}

func TestImageProcessor_CompletesBatch(t *testing.T) {
	ctx := context.Background()
	ctrl := session.NewController(nil, nil)
	t.Cleanup(ctrl.Stop)
	db, err := database.InitDB(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	thumbs := &fakeThumbnailer{fail: map[string]bool{"bad.jpg": true}}
	proc := workers.NewImageProcessor(ctrl, thumbs, nil, db, 10, 2)
	t.Cleanup(proc.Stop)

	data := smallJPEG(t)
	summary, err := ctrl.LoadBatch(ctx, []session.File{
		{Name: "good.jpg", ContentType: "image/jpeg", Data: data},
		{Name: "bad.jpg", ContentType: "image/jpeg", Data: data},
	})
	require.NoError(t, err)

	assert.Equal(t, 4, proc.QueueBatch(ctx, summary.BatchID, summary.Photos))

	good := waitDone(t, ctrl, summary.Photos[0].ID)
	assert.Equal(t, session.StatusDone, good.ThumbnailStatus)
	assert.Equal(t, "thumbnails/good.jpg", good.ThumbnailPath)
	assert.Nil(t, good.TakenAt, "plain JPEG has no capture date")
	assert.Equal(t, 4, good.Width)
	assert.Equal(t, 4, good.Height)
	assert.Empty(t, good.CameraMake)

	bad := waitDone(t, ctrl, summary.Photos[1].ID)
	assert.Equal(t, session.StatusError, bad.ThumbnailStatus)
	assert.Equal(t, "cannot decode", bad.ThumbnailError)

	var info database.ThumbnailInfo
	require.Eventually(t, func() bool {
		info, err = database.GetThumbnailInfo(db, good.ID)
		return err == nil
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, summary.BatchID, info.BatchID)
	assert.Equal(t, "thumbnails/good.jpg", info.ThumbnailPath)

	require.Eventually(t, func() bool { return proc.PendingCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestImageProcessor_ReadsCaptureDate(t *testing.T) {
	ctx := context.Background()
	ctrl := session.NewController(nil, nil)
	t.Cleanup(ctrl.Stop)
	proc := workers.NewImageProcessor(ctrl, &fakeThumbnailer{}, nil, nil, 4, 1)
	t.Cleanup(proc.Stop)

	dated, err := media.PatchDateTime(smallJPEG(t), 1994)
	require.NoError(t, err)
	summary, err := ctrl.LoadBatch(ctx, []session.File{{Name: "dated.jpg", ContentType: "image/jpeg", Data: dated}})
	require.NoError(t, err)
	proc.QueueBatch(ctx, summary.BatchID, summary.Photos)

	p := waitDone(t, ctrl, summary.Photos[0].ID)
	require.NotNil(t, p.TakenAt)
	assert.Equal(t, 1994, time.Unix(*p.TakenAt, 0).In(time.Local).Year())
}

func TestImageProcessor_StaleBatchResultsDropped(t *testing.T) {
	ctx := context.Background()
	ctrl := session.NewController(nil, nil)
	t.Cleanup(ctrl.Stop)
	store, err := media.NewLocalStorage(t.TempDir(), map[media.AssetType]string{media.AssetTypeThumbnail: "thumbnails"})
	require.NoError(t, err)

	gate := make(chan struct{})
	thumbs := &fakeThumbnailer{gate: gate}
	proc := workers.NewImageProcessor(ctrl, thumbs, store, nil, 4, 1)
	t.Cleanup(proc.Stop)

	first, err := ctrl.LoadBatch(ctx, []session.File{{Name: "old.jpg", ContentType: "image/jpeg", Data: smallJPEG(t)}})
	require.NoError(t, err)
	require.True(t, proc.QueueJob(ctx, workers.ImageJob{
		BatchID: first.BatchID, PhotoID: first.Photos[0].ID, Name: "old.jpg", TaskType: workers.TaskThumbnail,
	}))
	assert.False(t, proc.QueueJob(ctx, workers.ImageJob{
		BatchID: first.BatchID, PhotoID: first.Photos[0].ID, Name: "old.jpg", TaskType: workers.TaskThumbnail,
	}), "same task is not queued twice")

	second, err := ctrl.LoadBatch(ctx, []session.File{{Name: "new.jpg", ContentType: "image/jpeg", Data: smallJPEG(t)}})
	require.NoError(t, err)
	close(gate)

	require.Eventually(t, func() bool { return proc.PendingCount() == 0 }, time.Second, 5*time.Millisecond)
	p, err := ctrl.Get(ctx, second.Photos[0].ID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusPending, p.ThumbnailStatus)
	_, err = ctrl.Get(ctx, first.Photos[0].ID)
	assert.ErrorIs(t, err, session.ErrPhotoNotFound)
}

func TestImageProcessor_QueueAfterStop(t *testing.T) {
	ctrl := session.NewController(nil, nil)
	t.Cleanup(ctrl.Stop)
	proc := workers.NewImageProcessor(ctrl, &fakeThumbnailer{}, nil, nil, 1, 1)
	proc.Stop()
	proc.Stop()

	// with the only slot taken the job must give up instead of blocking
	proc.JobQueue <- workers.ImageJob{BatchID: "b", PhotoID: "1", TaskType: workers.TaskMetadata}
	ok := proc.QueueJob(context.Background(), workers.ImageJob{BatchID: "b", PhotoID: "2", TaskType: workers.TaskMetadata})
	assert.False(t, ok)
	assert.Zero(t, proc.PendingCount())
}
