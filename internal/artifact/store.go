// Package artifact holds the named-artifact registry shared by every
// processing stage of a run.
//
// A Store is an append-only, insertion-ordered collection of complex-valued
// matrices. The first element is always the header artifact (HeaderName),
// which never represents a processing result and carries the run summary
// built after post-processing.
//
// The store has a single writer: the stage currently executing. It is not
// safe for concurrent use.
package artifact

import (
	"errors"
	"fmt"
)

// HeaderName is the reserved name of the sentinel artifact at the head of
// every store.
const HeaderName = "metadata"

var (
	// ErrEmptyName is returned when an artifact is appended without a name.
	ErrEmptyName = errors.New("artifact name must not be empty")
	// ErrDuplicateName is returned when a name is already taken in the store.
	ErrDuplicateName = errors.New("artifact name already exists")
	// ErrShapeMismatch is returned when rows*cols disagrees with the buffer length.
	ErrShapeMismatch = errors.New("artifact shape does not match data length")
	// ErrReleased is returned when a store is used after Release.
	ErrReleased = errors.New("artifact store has been released")
)

// Artifact is a named matrix produced during a run. Data may be nil until a
// stage populates it; when non-empty, Rows*Cols == len(Data).
type Artifact struct {
	name string
	Rows int
	Cols int
	Data []complex128
}

// Name returns the artifact's name. Names are fixed at creation.
func (a *Artifact) Name() string { return a.name }

// Len returns the number of stored samples.
func (a *Artifact) Len() int { return len(a.Data) }

// Matrix returns a view of the artifact as a Matrix. The data is shared.
func (a *Artifact) Matrix() Matrix {
	return Matrix{Rows: a.Rows, Cols: a.Cols, Data: a.Data}
}

// Replace swaps the artifact's contents in place. Stages that transform an
// artifact without renaming it (denoising, image pulse compression) use
// this rather than appending a new artifact.
func (a *Artifact) Replace(m Matrix) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("replace %q: %w", a.name, err)
	}
	a.Rows, a.Cols, a.Data = m.Rows, m.Cols, m.Data
	return nil
}

// Store is an insertion-ordered name→artifact mapping with a header
// sentinel. Lookups are O(1) and uniqueness is enforced at insert time.
type Store struct {
	header   *Artifact
	order    []*Artifact
	index    map[string]*Artifact
	released bool
}

// NewStore returns a store containing only the header artifact.
func NewStore() *Store {
	h := &Artifact{name: HeaderName}
	return &Store{
		header: h,
		index:  map[string]*Artifact{HeaderName: h},
	}
}

// Header returns the sentinel artifact.
func (s *Store) Header() *Artifact { return s.header }

// Append creates an artifact named name at the tail of the store and
// returns it. The name is bound at creation so no unnamed artifact can
// ever be observed by a later lookup. A nil data buffer is allowed and
// leaves the artifact in its transient, unpopulated state.
func (s *Store) Append(name string, m Matrix) (*Artifact, error) {
	if s.released {
		return nil, ErrReleased
	}
	if name == "" {
		return nil, ErrEmptyName
	}
	if _, exists := s.index[name]; exists {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("append %q: %w", name, err)
	}

	a := &Artifact{name: name, Rows: m.Rows, Cols: m.Cols, Data: m.Data}
	s.order = append(s.order, a)
	s.index[name] = a
	return a, nil
}

// Lookup returns the artifact registered under name.
//
// Tie-break policy: if two artifacts ever shared a name the first-created
// one would win. Append rejects duplicates, so a second match cannot exist.
func (s *Store) Lookup(name string) (*Artifact, bool) {
	a, ok := s.index[name]
	return a, ok
}

// MustLookup is Lookup for callers that treat absence as a failure.
func (s *Store) MustLookup(name string) (*Artifact, error) {
	a, ok := s.index[name]
	if !ok {
		return nil, fmt.Errorf("artifact %q not found", name)
	}
	return a, nil
}

// Count returns the number of artifacts after the header.
func (s *Store) Count() int { return len(s.order) }

// Artifacts returns the post-header artifacts in creation order.
func (s *Store) Artifacts() []*Artifact {
	out := make([]*Artifact, len(s.order))
	copy(out, s.order)
	return out
}

// Names returns the post-header artifact names in creation order.
func (s *Store) Names() []string {
	names := make([]string, len(s.order))
	for i, a := range s.order {
		names[i] = a.name
	}
	return names
}

// Released reports whether Release has been called.
func (s *Store) Released() bool { return s.released }

// Release drops every artifact buffer and the chain itself. It is safe to
// call more than once; owners defer it so teardown runs on every exit path.
func (s *Store) Release() {
	if s.released {
		return
	}
	for _, a := range s.order {
		a.Data = nil
	}
	s.header.Data = nil
	s.order = nil
	s.index = nil
	s.released = true
}
