package session

import (
	"fmt"
	"log"
	"slices"
	"sort"
	"strings"

	"github.com/facette/natsort"
	"github.com/google/uuid"

	"github.com/camden-git/photosorter/csvmap"
)

const (
	OrderInput   = "input"
	OrderNameNat = "name_nat"
)

// IsValidOrder checks if a string is a known view ordering
func IsValidOrder(order string) bool {
	switch order {
	case "", OrderInput, OrderNameNat:
		return true
	default:
		return false
	}
}

// State is the whole sorting session: photos, the tag registry and the
// active year filter. It is not safe for concurrent use; Controller owns one
// and serializes every call.
type State struct {
	batchID      string
	photos       []*Photo
	byID         map[string]*Photo
	tags         *TagRegistry
	filteredYear int // 0 = unsorted view
}

func NewState() *State {
	return &State{
		photos: []*Photo{},
		byID:   make(map[string]*Photo),
		tags:   NewTagRegistry(),
	}
}

// LoadSummary describes the outcome of LoadBatch.
type LoadSummary struct {
	BatchID    string   `json:"batch_id"`
	Photos     []Photo  `json:"photos"`
	Skipped    []string `json:"skipped,omitempty"`    // not images
	Duplicates []string `json:"duplicates,omitempty"` // names shared by more than one photo
}

// ImportSummary describes the outcome of MergeFromImport.
type ImportSummary struct {
	Records    int      `json:"records"`
	Matched    int      `json:"matched"`
	Collisions []string `json:"collisions,omitempty"` // names matched by more than one photo
	Tags       []string `json:"tags"`
}

// Message is the status line shown after an import.
func (s ImportSummary) Message() string {
	return fmt.Sprintf("Loaded metadata for %d photos", s.Records)
}

// YearBucket is one year tile with the number of photos assigned to it.
type YearBucket struct {
	Year     int  `json:"year"`
	Count    int  `json:"count"`
	Filtered bool `json:"filtered"`
}

func (s *State) BatchID() string {
	return s.batchID
}

// LoadBatch replaces the collection with the image files of a new batch.
// Files whose content type is not image/* are skipped. The filter returns to
// the unsorted view; the tag registry is kept.
func (s *State) LoadBatch(batchID string, files []File) LoadSummary {
	s.batchID = batchID
	s.photos = make([]*Photo, 0, len(files))
	s.byID = make(map[string]*Photo, len(files))
	s.filteredYear = 0

	summary := LoadSummary{BatchID: batchID, Photos: make([]Photo, 0, len(files))}
	seen := make(map[string]int)
	for _, f := range files {
		if !strings.HasPrefix(f.ContentType, "image/") {
			summary.Skipped = append(summary.Skipped, f.Name)
			continue
		}
		p := &Photo{
			ID:              uuid.NewString(),
			Name:            f.Name,
			Tags:            []string{},
			ContentType:     f.ContentType,
			Size:            len(f.Data),
			ThumbnailStatus: StatusPending,
			MetadataStatus:  StatusPending,
			data:            f.Data,
		}
		s.photos = append(s.photos, p)
		s.byID[p.ID] = p
		summary.Photos = append(summary.Photos, p.clone())

		seen[f.Name]++
		if seen[f.Name] == 2 {
			summary.Duplicates = append(summary.Duplicates, f.Name)
		}
	}
	if len(summary.Duplicates) > 0 {
		log.Printf("session: batch %s has %d duplicated file name(s), CSV import will match all of them: %v", batchID, len(summary.Duplicates), summary.Duplicates)
	}
	return summary
}

func (s *State) photo(id string) (*Photo, error) {
	p, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("photo %s: %w", id, ErrPhotoNotFound)
	}
	return p, nil
}

// ToggleSelect flips the selection flag of one photo.
func (s *State) ToggleSelect(id string) (Photo, error) {
	p, err := s.photo(id)
	if err != nil {
		return Photo{}, err
	}
	p.Selected = !p.Selected
	return p.clone(), nil
}

// SetTags replaces a photo's tags, dropping empties and repeats.
func (s *State) SetTags(id string, tags []string) (Photo, error) {
	p, err := s.photo(id)
	if err != nil {
		return Photo{}, err
	}
	p.Tags = dedupTags(tags)
	return p.clone(), nil
}

func (s *State) AddTagToPhoto(id, tag string) (Photo, error) {
	p, err := s.photo(id)
	if err != nil {
		return Photo{}, err
	}
	p.addTag(strings.TrimSpace(tag))
	return p.clone(), nil
}

func (s *State) RemoveTagFromPhoto(id, tag string) (Photo, error) {
	p, err := s.photo(id)
	if err != nil {
		return Photo{}, err
	}
	p.removeTag(strings.TrimSpace(tag))
	return p.clone(), nil
}

// ApplyTagToSelection adds tag to (checked) or removes it from every
// selected photo. Returns how many photos changed.
func (s *State) ApplyTagToSelection(tag string, checked bool) int {
	tag = strings.TrimSpace(tag)
	changed := 0
	for _, p := range s.photos {
		if !p.Selected {
			continue
		}
		var did bool
		if checked {
			did = p.addTag(tag)
		} else {
			did = p.removeTag(tag)
		}
		if did {
			changed++
		}
	}
	return changed
}

// AssignYear gives year to every selected photo that has none and clears
// their selection. Photos that already have a year keep it, selected or not.
// Returns the number of photos assigned.
func (s *State) AssignYear(year int) (int, error) {
	if !ValidYear(year) {
		return 0, fmt.Errorf("year %d: %w", year, ErrYearOutOfRange)
	}
	assigned := 0
	for _, p := range s.photos {
		if p.Selected && !p.Assigned() {
			p.AssignedYear = year
			p.Selected = false
			assigned++
		}
	}
	return assigned, nil
}

// AssignYearFromTile is a primary click on a year tile: it assigns only while
// the unsorted view is showing. applied is false when a filter blocked it.
func (s *State) AssignYearFromTile(year int) (assigned int, applied bool, err error) {
	if !ValidYear(year) {
		return 0, false, fmt.Errorf("year %d: %w", year, ErrYearOutOfRange)
	}
	if s.filteredYear != 0 {
		return 0, false, nil
	}
	assigned, err = s.AssignYear(year)
	return assigned, err == nil, err
}

// UnassignYear clears a photo's year, returning it to the unsorted view.
func (s *State) UnassignYear(id string) (Photo, error) {
	p, err := s.photo(id)
	if err != nil {
		return Photo{}, err
	}
	p.AssignedYear = 0
	return p.clone(), nil
}

// MergeFromImport overwrites photos whose name matches a record: the new name
// when the record has one, the year when the record has a date, and the tags
// wholesale. The tag registry is rebuilt from tagsSeen and the view returns
// to unsorted. Every photo sharing a matched name is overwritten.
func (s *State) MergeFromImport(records map[string]csvmap.Record, tagsSeen []string) ImportSummary {
	summary := ImportSummary{Records: len(records)}
	hits := make(map[string]int)

	for _, p := range s.photos {
		rec, ok := records[p.Name]
		if !ok {
			continue
		}
		if rec.NewFilename != "" {
			p.NewName = rec.NewFilename
		}
		if rec.HasDate() {
			p.AssignedYear = rec.Year
		}
		p.Tags = slices.Clone(rec.Tags)
		if p.Tags == nil {
			p.Tags = []string{}
		}
		summary.Matched++

		hits[p.Name]++
		if hits[p.Name] == 2 {
			summary.Collisions = append(summary.Collisions, p.Name)
		}
	}
	if len(summary.Collisions) > 0 {
		log.Printf("session: import overwrote several photos sharing a name: %v", summary.Collisions)
	}

	s.tags.RebuildFromImport(tagsSeen)
	s.filteredYear = 0
	summary.Tags = s.tags.List()
	return summary
}

// ToggleFilter shows the bucket for year, or the unsorted view again if year
// is already the filter. Returns the resulting filter (0 = unsorted).
func (s *State) ToggleFilter(year int) (int, error) {
	if !ValidYear(year) {
		return s.filteredYear, fmt.Errorf("year %d: %w", year, ErrYearOutOfRange)
	}
	if s.filteredYear == year {
		s.filteredYear = 0
	} else {
		s.filteredYear = year
	}
	return s.filteredYear, nil
}

func (s *State) ClearFilter() {
	s.filteredYear = 0
}

func (s *State) FilteredYear() int {
	return s.filteredYear
}

// AddTag registers a new tag name.
func (s *State) AddTag(name string) bool {
	return s.tags.Add(name)
}

func (s *State) Tags() []string {
	return s.tags.List()
}

// TagStates reports each registry tag against the current selection.
func (s *State) TagStates() []TagState {
	var selected []*Photo
	for _, p := range s.photos {
		if p.Selected {
			selected = append(selected, p)
		}
	}
	return s.tags.SelectionStates(selected)
}

// MarkTaskProcessing flags a background task as started. Stale batches are ignored.
func (s *State) MarkTaskProcessing(batchID, id string, thumbnail bool) bool {
	p, ok := s.current(batchID, id)
	if !ok {
		return false
	}
	if thumbnail {
		p.ThumbnailStatus = StatusProcessing
	} else {
		p.MetadataStatus = StatusProcessing
	}
	return true
}

// CompleteThumbnail records a finished thumbnail task. Results for a batch
// that has since been replaced are dropped and false is returned.
func (s *State) CompleteThumbnail(batchID, id, thumbPath string, taskErr error) bool {
	p, ok := s.current(batchID, id)
	if !ok {
		return false
	}
	if taskErr != nil {
		p.ThumbnailStatus = StatusError
		p.ThumbnailError = taskErr.Error()
		p.ThumbnailPath = ""
		return true
	}
	p.ThumbnailStatus = StatusDone
	p.ThumbnailError = ""
	p.ThumbnailPath = thumbPath
	return true
}

// CompleteMetadata records what was read from a photo. A failed read passes
// an empty meta and still counts as done.
func (s *State) CompleteMetadata(batchID, id string, meta PhotoMetadata) bool {
	p, ok := s.current(batchID, id)
	if !ok {
		return false
	}
	p.Width, p.Height = meta.Width, meta.Height
	p.CameraMake, p.CameraModel = meta.CameraMake, meta.CameraModel
	p.TakenAt = nil
	if meta.TakenAt != nil {
		ts := *meta.TakenAt
		p.TakenAt = &ts
	}
	p.MetadataStatus = StatusDone
	return true
}

func (s *State) current(batchID, id string) (*Photo, bool) {
	if batchID != s.batchID {
		return nil, false
	}
	p, ok := s.byID[id]
	return p, ok
}

func (s *State) Get(id string) (Photo, error) {
	p, err := s.photo(id)
	if err != nil {
		return Photo{}, err
	}
	return p.clone(), nil
}

// Photos returns every photo in load order.
func (s *State) Photos() []Photo {
	return s.collect(func(*Photo) bool { return true })
}

// Assigned returns photos with a year, in load order.
func (s *State) Assigned() []Photo {
	return s.collect(func(p *Photo) bool { return p.Assigned() })
}

// Unsorted returns photos without a year.
func (s *State) Unsorted() []Photo {
	return s.collect(func(p *Photo) bool { return !p.Assigned() })
}

// InYear returns the photos of one year bucket.
func (s *State) InYear(year int) []Photo {
	return s.collect(func(p *Photo) bool { return p.AssignedYear == year })
}

// Visible returns the photos of the active view: the unsorted view, or the
// filtered year's bucket. order is OrderInput (default) or OrderNameNat.
func (s *State) Visible(order string) []Photo {
	var out []Photo
	if s.filteredYear == 0 {
		out = s.Unsorted()
	} else {
		out = s.InYear(s.filteredYear)
	}
	if order == OrderNameNat {
		sort.SliceStable(out, func(i, j int) bool {
			return natsort.Compare(out[i].Name, out[j].Name)
		})
	}
	return out
}

// YearBuckets returns every year from MinYear to MaxYear with its count.
func (s *State) YearBuckets() []YearBucket {
	counts := make(map[int]int)
	for _, p := range s.photos {
		if p.Assigned() {
			counts[p.AssignedYear]++
		}
	}
	buckets := make([]YearBucket, 0, MaxYear-MinYear+1)
	for y := MinYear; y <= MaxYear; y++ {
		buckets = append(buckets, YearBucket{Year: y, Count: counts[y], Filtered: y == s.filteredYear})
	}
	return buckets
}

func (s *State) collect(keep func(*Photo) bool) []Photo {
	out := []Photo{}
	for _, p := range s.photos {
		if keep(p) {
			out = append(out, p.clone())
		}
	}
	return out
}
