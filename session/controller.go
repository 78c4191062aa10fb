package session

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/camden-git/photosorter/csvmap"
)

// Change kinds published after an operation mutates the session.
const (
	ChangeBatch     = "batch"
	ChangeState     = "state_changed"
	ChangeImport    = "import"
	ChangeThumbnail = "thumbnail"
	ChangeMetadata  = "metadata"
)

// Change tells listeners (the UI) that it should re-render.
type Change struct {
	Kind    string
	BatchID string
	PhotoID string
}

// Controller owns a State and runs every operation on one goroutine, so no
// two mutations interleave. Background tasks post their results back through
// the same loop.
type Controller struct {
	state    *State
	ops      chan func(*State)
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	onChange func(Change)
}

// NewController starts the loop. onChange may be nil; it is called outside
// the loop after each successful mutation.
func NewController(state *State, onChange func(Change)) *Controller {
	if state == nil {
		state = NewState()
	}
	c := &Controller{
		state:    state,
		ops:      make(chan func(*State)),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		onChange: onChange,
	}
	go c.run()
	return c
}

func (c *Controller) run() {
	defer close(c.done)
	for {
		select {
		case op := <-c.ops:
			op(c.state)
		case <-c.stop:
			log.Println("session: controller stopped")
			return
		}
	}
}

// Stop ends the loop. Later calls fail with ErrControllerStopped.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done
}

// Do runs fn on the controller's goroutine and waits for it. ctx only bounds
// the wait for the loop to take fn; once taken, Do returns fn's result even if
// ctx ends meanwhile.
func (c *Controller) Do(ctx context.Context, fn func(*State) error) error {
	errCh := make(chan error, 1)
	op := func(s *State) { errCh <- fn(s) }

	select {
	case c.ops <- op:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrControllerStopped
	}

	// the loop has taken op; its result and writes belong to this call now
	return <-errCh
}

func (c *Controller) notify(ch Change) {
	if c.onChange != nil {
		c.onChange(ch)
	}
}

// call runs fn on the loop and publishes change when fn succeeds and change
// has a kind.
func call[T any](ctx context.Context, c *Controller, change Change, fn func(*State) (T, error)) (T, error) {
	var out T
	err := c.Do(ctx, func(s *State) error {
		var err error
		out, err = fn(s)
		if change.BatchID == "" {
			change.BatchID = s.batchID
		}
		return err
	})
	if err == nil && change.Kind != "" {
		c.notify(change)
	}
	return out, err
}

func read[T any](ctx context.Context, c *Controller, fn func(*State) T) (T, error) {
	return call(ctx, c, Change{}, func(s *State) (T, error) { return fn(s), nil })
}

// LoadBatch replaces the session's photos with files under a fresh batch id.
func (c *Controller) LoadBatch(ctx context.Context, files []File) (LoadSummary, error) {
	batchID := uuid.NewString()
	return call(ctx, c, Change{Kind: ChangeBatch, BatchID: batchID}, func(s *State) (LoadSummary, error) {
		return s.LoadBatch(batchID, files), nil
	})
}

func (c *Controller) ToggleSelect(ctx context.Context, id string) (Photo, error) {
	return call(ctx, c, Change{Kind: ChangeState, PhotoID: id}, func(s *State) (Photo, error) {
		return s.ToggleSelect(id)
	})
}

func (c *Controller) SetTags(ctx context.Context, id string, tags []string) (Photo, error) {
	return call(ctx, c, Change{Kind: ChangeState, PhotoID: id}, func(s *State) (Photo, error) {
		return s.SetTags(id, tags)
	})
}

func (c *Controller) AddTagToPhoto(ctx context.Context, id, tag string) (Photo, error) {
	return call(ctx, c, Change{Kind: ChangeState, PhotoID: id}, func(s *State) (Photo, error) {
		return s.AddTagToPhoto(id, tag)
	})
}

func (c *Controller) RemoveTagFromPhoto(ctx context.Context, id, tag string) (Photo, error) {
	return call(ctx, c, Change{Kind: ChangeState, PhotoID: id}, func(s *State) (Photo, error) {
		return s.RemoveTagFromPhoto(id, tag)
	})
}

func (c *Controller) ApplyTagToSelection(ctx context.Context, tag string, checked bool) (int, error) {
	return call(ctx, c, Change{Kind: ChangeState}, func(s *State) (int, error) {
		return s.ApplyTagToSelection(tag, checked), nil
	})
}

func (c *Controller) AssignYear(ctx context.Context, year int) (int, error) {
	return call(ctx, c, Change{Kind: ChangeState}, func(s *State) (int, error) {
		return s.AssignYear(year)
	})
}

// TileResult is the outcome of a primary click on a year tile.
type TileResult struct {
	Assigned int  `json:"assigned"`
	Applied  bool `json:"applied"`
}

func (c *Controller) AssignYearFromTile(ctx context.Context, year int) (TileResult, error) {
	return call(ctx, c, Change{Kind: ChangeState}, func(s *State) (TileResult, error) {
		n, applied, err := s.AssignYearFromTile(year)
		return TileResult{Assigned: n, Applied: applied}, err
	})
}

func (c *Controller) UnassignYear(ctx context.Context, id string) (Photo, error) {
	return call(ctx, c, Change{Kind: ChangeState, PhotoID: id}, func(s *State) (Photo, error) {
		return s.UnassignYear(id)
	})
}

// MergeFromImport applies parsed CSV records to the session.
func (c *Controller) MergeFromImport(ctx context.Context, records map[string]csvmap.Record, tagsSeen []string) (ImportSummary, error) {
	return call(ctx, c, Change{Kind: ChangeImport}, func(s *State) (ImportSummary, error) {
		return s.MergeFromImport(records, tagsSeen), nil
	})
}

func (c *Controller) ToggleFilter(ctx context.Context, year int) (int, error) {
	return call(ctx, c, Change{Kind: ChangeState}, func(s *State) (int, error) {
		return s.ToggleFilter(year)
	})
}

func (c *Controller) ClearFilter(ctx context.Context) error {
	_, err := call(ctx, c, Change{Kind: ChangeState}, func(s *State) (struct{}, error) {
		s.ClearFilter()
		return struct{}{}, nil
	})
	return err
}

// AddTag registers a tag. Returns false when it was empty or already known.
func (c *Controller) AddTag(ctx context.Context, name string) (bool, error) {
	return call(ctx, c, Change{Kind: ChangeState}, func(s *State) (bool, error) {
		return s.AddTag(name), nil
	})
}

// MarkTaskProcessing flags a thumbnail (thumbnail=true) or metadata task as
// started. Returns false when the batch is no longer current.
func (c *Controller) MarkTaskProcessing(ctx context.Context, batchID, id string, thumbnail bool) (bool, error) {
	return read(ctx, c, func(s *State) bool {
		return s.MarkTaskProcessing(batchID, id, thumbnail)
	})
}

// CompleteThumbnail applies a finished thumbnail task. Returns false when the
// batch was replaced before the task finished.
func (c *Controller) CompleteThumbnail(ctx context.Context, batchID, id, thumbPath string, taskErr error) (bool, error) {
	applied, err := read(ctx, c, func(s *State) bool {
		return s.CompleteThumbnail(batchID, id, thumbPath, taskErr)
	})
	if err == nil && applied {
		c.notify(Change{Kind: ChangeThumbnail, BatchID: batchID, PhotoID: id})
	}
	return applied, err
}

// CompleteMetadata applies a finished EXIF read.
func (c *Controller) CompleteMetadata(ctx context.Context, batchID, id string, meta PhotoMetadata) (bool, error) {
	applied, err := read(ctx, c, func(s *State) bool {
		return s.CompleteMetadata(batchID, id, meta)
	})
	if err == nil && applied {
		c.notify(Change{Kind: ChangeMetadata, BatchID: batchID, PhotoID: id})
	}
	return applied, err
}

func (c *Controller) Get(ctx context.Context, id string) (Photo, error) {
	return call(ctx, c, Change{}, func(s *State) (Photo, error) { return s.Get(id) })
}

func (c *Controller) Photos(ctx context.Context) ([]Photo, error) {
	return read(ctx, c, (*State).Photos)
}

func (c *Controller) Assigned(ctx context.Context) ([]Photo, error) {
	return read(ctx, c, (*State).Assigned)
}

// View is the active view with its filter.
type View struct {
	FilteredYear int     `json:"filtered_year,omitempty"`
	Photos       []Photo `json:"photos"`
}

func (c *Controller) Visible(ctx context.Context, order string) (View, error) {
	return read(ctx, c, func(s *State) View {
		return View{FilteredYear: s.FilteredYear(), Photos: s.Visible(order)}
	})
}

func (c *Controller) YearBuckets(ctx context.Context) ([]YearBucket, error) {
	return read(ctx, c, (*State).YearBuckets)
}

func (c *Controller) TagStates(ctx context.Context) ([]TagState, error) {
	return read(ctx, c, (*State).TagStates)
}

func (c *Controller) BatchID(ctx context.Context) (string, error) {
	return read(ctx, c, (*State).BatchID)
}
