package session_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camden-git/photosorter/session"
)

type changeRecorder struct {
	mu      sync.Mutex
	changes []session.Change
}

func (r *changeRecorder) record(c session.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *changeRecorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.changes))
	for _, c := range r.changes {
		out = append(out, c.Kind)
	}
	return out
}

func newController(t *testing.T) (*session.Controller, *changeRecorder) {
	t.Helper()
	rec := &changeRecorder{}
	c := session.NewController(nil, rec.record)
	t.Cleanup(c.Stop)
	return c, rec
}

func TestController_LoadAndAssign(t *testing.T) {
	ctx := context.Background()
	c, rec := newController(t)

	summary, err := c.LoadBatch(ctx, []session.File{jpegFile("a.jpg"), jpegFile("b.jpg")})
	require.NoError(t, err)
	require.NotEmpty(t, summary.BatchID)

	batchID, err := c.BatchID(ctx)
	require.NoError(t, err)
	assert.Equal(t, summary.BatchID, batchID)

	id := summary.Photos[0].ID
	_, err = c.ToggleSelect(ctx, id)
	require.NoError(t, err)
	n, err := c.AssignYear(ctx, 2004)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assigned, err := c.Assigned(ctx)
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	assert.Equal(t, "a.jpg", assigned[0].Name)

	view, err := c.Visible(ctx, session.OrderInput)
	require.NoError(t, err)
	assert.Zero(t, view.FilteredYear)
	require.Len(t, view.Photos, 1)
	assert.Equal(t, "b.jpg", view.Photos[0].Name)

	assert.Equal(t, []string{session.ChangeBatch, session.ChangeState, session.ChangeState}, rec.kinds())
}

func TestController_FailedOperationDoesNotNotify(t *testing.T) {
	ctx := context.Background()
	c, rec := newController(t)

	_, err := c.ToggleSelect(ctx, "missing")
	assert.ErrorIs(t, err, session.ErrPhotoNotFound)
	_, err = c.AssignYear(ctx, 1900)
	assert.ErrorIs(t, err, session.ErrYearOutOfRange)
	_, err = c.Photos(ctx)
	require.NoError(t, err)

	assert.Empty(t, rec.kinds())
}

func TestController_TileAndFilter(t *testing.T) {
	ctx := context.Background()
	c, _ := newController(t)
	summary, err := c.LoadBatch(ctx, []session.File{jpegFile("a.jpg")})
	require.NoError(t, err)
	_, err = c.ToggleSelect(ctx, summary.Photos[0].ID)
	require.NoError(t, err)

	year, err := c.ToggleFilter(ctx, 1999)
	require.NoError(t, err)
	assert.Equal(t, 1999, year)

	res, err := c.AssignYearFromTile(ctx, 2000)
	require.NoError(t, err)
	assert.Equal(t, session.TileResult{}, res)

	require.NoError(t, c.ClearFilter(ctx))
	res, err = c.AssignYearFromTile(ctx, 2000)
	require.NoError(t, err)
	assert.Equal(t, session.TileResult{Assigned: 1, Applied: true}, res)

	buckets, err := c.YearBuckets(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, buckets[2000-session.MinYear].Count)
}

func TestController_TaskCompletionNotifiesOnlyCurrentBatch(t *testing.T) {
	ctx := context.Background()
	c, rec := newController(t)

	first, err := c.LoadBatch(ctx, []session.File{jpegFile("a.jpg")})
	require.NoError(t, err)
	second, err := c.LoadBatch(ctx, []session.File{jpegFile("b.jpg")})
	require.NoError(t, err)

	applied, err := c.CompleteThumbnail(ctx, first.BatchID, first.Photos[0].ID, "thumbnails/a.jpg", nil)
	require.NoError(t, err)
	assert.False(t, applied)

	current, err := c.MarkTaskProcessing(ctx, second.BatchID, second.Photos[0].ID, true)
	require.NoError(t, err)
	assert.True(t, current)
	current, err = c.MarkTaskProcessing(ctx, first.BatchID, first.Photos[0].ID, true)
	require.NoError(t, err)
	assert.False(t, current)
	applied, err = c.CompleteThumbnail(ctx, second.BatchID, second.Photos[0].ID, "thumbnails/b.jpg", nil)
	require.NoError(t, err)
	assert.True(t, applied)

	p, err := c.Get(ctx, second.Photos[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "thumbnails/b.jpg", p.ThumbnailPath)
	assert.Equal(t, []string{session.ChangeBatch, session.ChangeBatch, session.ChangeThumbnail}, rec.kinds())
}

func TestController_TagsThroughLoop(t *testing.T) {
	ctx := context.Background()
	c, _ := newController(t)
	summary, err := c.LoadBatch(ctx, []session.File{jpegFile("a.jpg")})
	require.NoError(t, err)
	id := summary.Photos[0].ID

	added, err := c.AddTag(ctx, "beach")
	require.NoError(t, err)
	assert.True(t, added)
	added, err = c.AddTag(ctx, "beach")
	require.NoError(t, err)
	assert.False(t, added)

	_, err = c.ToggleSelect(ctx, id)
	require.NoError(t, err)
	n, err := c.ApplyTagToSelection(ctx, "beach", true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	states, err := c.TagStates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []session.TagState{{Name: "beach", Checked: true}}, states)

	p, err := c.RemoveTagFromPhoto(ctx, id, "beach")
	require.NoError(t, err)
	assert.Empty(t, p.Tags)
}

func TestController_ConcurrentCallsAreSerialized(t *testing.T) {
	ctx := context.Background()
	c, _ := newController(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.AddTag(ctx, "t")
		}()
	}
	wg.Wait()

	states, err := c.TagStates(ctx)
	require.NoError(t, err)
	assert.Len(t, states, 1)
}

func TestController_Stopped(t *testing.T) {
	c := session.NewController(nil, nil)
	c.Stop()
	c.Stop()

	_, err := c.Photos(context.Background())
	assert.ErrorIs(t, err, session.ErrControllerStopped)
}

func TestController_ContextCancelled(t *testing.T) {
	c, _ := newController(t)
	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_ = c.Do(context.Background(), func(*session.State) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Photos(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
}

func TestController_CancelAfterHandoffStillReturnsResult(t *testing.T) {
	c, _ := newController(t)
	ctx, cancel := context.WithCancel(context.Background())
	running := make(chan struct{})
	release := make(chan struct{})

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.Do(ctx, func(*session.State) error {
			close(running)
			<-release
			return nil
		})
	}()
	<-running
	cancel()
	close(release)

	assert.NoError(t, <-errCh)
}

// Every call that reports success must have been applied and published, and
// every call that reports a context error must have left the state alone.
func TestController_ShortDeadlinesUnderLoad(t *testing.T) {
	c, rec := newController(t)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), time.Microsecond)
			defer cancel()
			added, err := c.AddTag(ctx, fmt.Sprintf("tag-%03d", i))
			if err != nil {
				assert.ErrorIs(t, err, context.DeadlineExceeded)
				return
			}
			assert.True(t, added)
			mu.Lock()
			succeeded++
			mu.Unlock()
		}(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), time.Microsecond)
			defer cancel()
			_, _ = c.Visible(ctx, session.OrderInput)
		}()
	}
	wg.Wait()

	states, err := c.TagStates(context.Background())
	require.NoError(t, err)
	assert.Len(t, states, succeeded)
	assert.Len(t, rec.kinds(), succeeded)
}
