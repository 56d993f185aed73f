// Package catalog holds the wheel's ordered prize table.
package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/samber/lo"

	"github.com/kdashto/spinwheel/internal/errors"
)

// Segment is one wedge of the wheel
type Segment struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Color       string `json:"color"`
	Description string `json:"description,omitempty"`
	Value       string `json:"value,omitempty"`
}

// Catalog is an immutable, validated list of segments. A catalog that failed
// validation is still returned by New so callers can surface Err() to users;
// it must not be spun.
type Catalog struct {
	segments []Segment
	err      error
}

type options struct {
	required []string
}

// Option configures catalog validation
type Option func(*options)

// RequireNames makes New fail validation when any of names is absent
func RequireNames(names ...string) Option {
	return func(o *options) {
		o.required = append(o.required, names...)
	}
}

// New validates segments and builds a catalog
func New(segments []Segment, opts ...Option) *Catalog {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	c := &Catalog{segments: append([]Segment(nil), segments...)}
	c.err = validate(c.segments, o)
	return c
}

func validate(segments []Segment, o options) error {
	if len(segments) == 0 {
		return errors.Configuration("no segments provided")
	}

	for i, s := range segments {
		if s.Name == "" {
			return errors.Configurationf("segment %d has no name", i)
		}
		if s.ID == "" {
			return errors.Configurationf("segment '%s' has no id", s.Name)
		}
	}

	if dup := lo.FindDuplicatesBy(segments, func(s Segment) string { return s.Name }); len(dup) > 0 {
		return errors.Configurationf("segment names must be unique, duplicate name: '%s'", dup[0].Name)
	}
	if dup := lo.FindDuplicatesBy(segments, func(s Segment) string { return s.ID }); len(dup) > 0 {
		return errors.Configurationf("segment ids must be unique, duplicate id: '%s'", dup[0].ID)
	}

	names := lo.Map(segments, func(s Segment, _ int) string { return s.Name })
	for _, req := range o.required {
		if !lo.Contains(names, req) {
			return errors.Configurationf("required segment '%s' is missing from the catalog", req)
		}
	}
	return nil
}

// Load reads a JSON array of segments
func Load(r io.Reader, opts ...Option) (*Catalog, error) {
	var segments []Segment
	if err := json.NewDecoder(r).Decode(&segments); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfiguration, "invalid catalog file")
	}
	return New(segments, opts...), nil
}

// LoadFile reads a JSON catalog from path
func LoadFile(path string, opts ...Option) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrConfiguration, fmt.Sprintf("open catalog %s", path))
	}
	defer f.Close()
	return Load(f, opts...)
}

// Err returns the configuration error found at load time, if any
func (c *Catalog) Err() error {
	return c.err
}

// Valid reports whether the catalog can be spun
func (c *Catalog) Valid() bool {
	return c.err == nil && len(c.segments) > 0
}

// Len returns the number of segments
func (c *Catalog) Len() int {
	return len(c.segments)
}

// Segments returns a copy of the segments in wheel order
func (c *Catalog) Segments() []Segment {
	return append([]Segment(nil), c.segments...)
}

// At returns the segment at index i
func (c *Catalog) At(i int) (Segment, bool) {
	if i < 0 || i >= len(c.segments) {
		return Segment{}, false
	}
	return c.segments[i], true
}

// IndexOfName returns the index of the segment named name, or -1
func (c *Catalog) IndexOfName(name string) int {
	_, idx, ok := lo.FindIndexOf(c.segments, func(s Segment) bool { return s.Name == name })
	if !ok {
		return -1
	}
	return idx
}

// IndexOfID returns the index of the segment with the given id, or -1
func (c *Catalog) IndexOfID(id string) int {
	_, idx, ok := lo.FindIndexOf(c.segments, func(s Segment) bool { return s.ID == id })
	if !ok {
		return -1
	}
	return idx
}
