// Package seed produces the initial in-memory library: a generated sample
// library or a YAML seed file. Both are checked against the forest invariants
// before a model ever sees them.
package seed

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mediashelf/mediashelf/internal/library"
)

// Validation errors
var (
	ErrDuplicateID   = errors.New("duplicate entry id")
	ErrMissingParent = errors.New("parent does not exist")
	ErrParentKind    = errors.New("parent is not a folder")
	ErrCycle         = errors.New("folder is its own ancestor")
	ErrMissingName   = errors.New("entry name is empty")
)

// File is the YAML seed document.
type File struct {
	Entries []Node `yaml:"entries"`
}

// Node is a seed entry. Children nest under folders; IDs are optional and
// generated when absent. A flat list with explicit parent ids is also accepted.
type Node struct {
	ID          string    `yaml:"id"`
	Name        string    `yaml:"name"`
	Kind        string    `yaml:"kind"`
	Description string    `yaml:"description"`
	Size        string    `yaml:"size"`
	Thumbnail   string    `yaml:"thumbnail"`
	Parent      string    `yaml:"parent"`
	ModifiedAt  time.Time `yaml:"modifiedAt"`
	Children    []Node    `yaml:"children"`
}

// Options controls id, time and thumbnail generation.
type Options struct {
	Now          func() time.Time
	NewID        func() library.ID
	ThumbnailURL func(id library.ID) string
}

func (o Options) withDefaults() Options {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = library.NewID
	}
	if o.ThumbnailURL == nil {
		o.ThumbnailURL = library.DefaultThumbnailURL
	}
	return o
}

// LoadFile reads and validates a YAML seed file.
func LoadFile(path string, opts Options) ([]library.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data, opts)
}

// Parse decodes and validates a YAML seed document.
func Parse(data []byte, opts Options) ([]library.Entry, error) {
	var doc File
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	return Build(doc.Entries, opts)
}

// Build flattens seed nodes into entries in display order and validates them.
func Build(nodes []Node, opts Options) ([]library.Entry, error) {
	opts = opts.withDefaults()
	now := opts.Now()

	var entries []library.Entry
	var walk func(nodes []Node, parent library.ID) error
	walk = func(nodes []Node, parent library.ID) error {
		for _, n := range nodes {
			kind, err := library.ParseKind(n.Kind)
			if err != nil {
				return fmt.Errorf("entry %q: %w", n.Name, err)
			}
			id := library.ID(n.ID)
			if id.IsRoot() {
				id = opts.NewID()
			}
			parentID := parent
			if n.Parent != "" {
				parentID = library.ID(n.Parent)
			}
			modified := n.ModifiedAt
			if modified.IsZero() {
				modified = now
			}

			e := library.Entry{
				ID:          id,
				Name:        strings.TrimSpace(n.Name),
				Kind:        kind,
				ModifiedAt:  modified,
				Description: n.Description,
				ParentID:    parentID,
			}
			if kind != library.KindFolder {
				e.Size = n.Size
			}
			if kind == library.KindImage {
				e.ThumbnailURL = n.Thumbnail
				if e.ThumbnailURL == "" {
					e.ThumbnailURL = opts.ThumbnailURL(id)
				}
			}
			entries = append(entries, e)

			if len(n.Children) > 0 {
				if kind != library.KindFolder {
					return fmt.Errorf("entry %q: %w", n.Name, ErrParentKind)
				}
				if err := walk(n.Children, id); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := walk(nodes, library.RootID); err != nil {
		return nil, err
	}
	if err := Validate(entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Validate checks names, id uniqueness, parent existence and kind, and acyclicity.
func Validate(entries []library.Entry) error {
	byID := make(map[library.ID]library.Entry, len(entries))
	for _, e := range entries {
		if e.Name == "" {
			return fmt.Errorf("entry %q: %w", e.ID, ErrMissingName)
		}
		if _, dup := byID[e.ID]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateID, e.ID)
		}
		byID[e.ID] = e
	}

	for _, e := range entries {
		if e.ParentID.IsRoot() {
			continue
		}
		parent, ok := byID[e.ParentID]
		if !ok {
			return fmt.Errorf("entry %q: %w: %q", e.Name, ErrMissingParent, e.ParentID)
		}
		if !parent.IsFolder() {
			return fmt.Errorf("entry %q: %w: %q", e.Name, ErrParentKind, parent.Name)
		}
	}

	// Every chain must reach root; done[] memoises ids already proven acyclic.
	done := make(map[library.ID]bool, len(entries))
	for _, e := range entries {
		onPath := make(map[library.ID]bool)
		for cur := e.ID; !cur.IsRoot() && !done[cur]; cur = byID[cur].ParentID {
			if onPath[cur] {
				return fmt.Errorf("%w: %q", ErrCycle, byID[cur].Name)
			}
			onPath[cur] = true
		}
		for id := range onPath {
			done[id] = true
		}
	}
	return nil
}
