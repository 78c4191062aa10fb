package session

import (
	"slices"
	"strings"
)

// TagRegistry is the ordered list of tag names offered for selection.
type TagRegistry struct {
	names []string
}

func NewTagRegistry() *TagRegistry {
	return &TagRegistry{names: []string{}}
}

// Add appends name if it is non-empty after trimming and not already known.
// Matching is exact and case-sensitive.
func (r *TagRegistry) Add(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" || r.Contains(name) {
		return false
	}
	r.names = append(r.names, name)
	return true
}

// RebuildFromImport discards the registry and replaces it with tags,
// deduplicated in first-seen order.
func (r *TagRegistry) RebuildFromImport(tags []string) {
	r.names = []string{}
	for _, t := range tags {
		if t != "" && !r.Contains(t) {
			r.names = append(r.names, t)
		}
	}
}

// Contains reports whether name is registered, matching exactly.
func (r *TagRegistry) Contains(name string) bool {
	return slices.Contains(r.names, name)
}

func (r *TagRegistry) List() []string {
	return slices.Clone(r.names)
}

// TagState is one row of the tag panel.
type TagState struct {
	Name    string `json:"name"`
	Checked bool   `json:"checked"`
}

// SelectionStates marks a tag checked when every selected photo carries it.
// With nothing selected every tag is checked.
func (r *TagRegistry) SelectionStates(selected []*Photo) []TagState {
	states := make([]TagState, 0, len(r.names))
	for _, name := range r.names {
		checked := true
		for _, p := range selected {
			if !p.hasTag(name) {
				checked = false
				break
			}
		}
		states = append(states, TagState{Name: name, Checked: checked})
	}
	return states
}
