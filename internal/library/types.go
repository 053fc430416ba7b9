package library

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Errors returned by the library model
var (
	ErrEntryNotFound     = errors.New("entry not found")
	ErrInvalidBreadcrumb = errors.New("breadcrumb index out of range")
	ErrUnknownKind       = errors.New("unknown entry kind")
	ErrEmptyName         = errors.New("name is required")
	ErrUnknownIntent     = errors.New("unknown intent")
	ErrNoFiles           = errors.New("no files to upload")
)

// RootName is the display name of the root breadcrumb.
const RootName = "Root"

// ID identifies an entry. The zero value is the root sentinel and encodes as JSON null.
type ID string

// RootID is the parent of every root-level entry.
const RootID ID = ""

// IsRoot reports whether id is the root sentinel.
func (id ID) IsRoot() bool {
	return id == RootID
}

func (id ID) MarshalJSON() ([]byte, error) {
	if id.IsRoot() {
		return []byte("null"), nil
	}
	return json.Marshal(string(id))
}

func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = RootID
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*id = ID(s)
	return nil
}

// Kind is the closed set of entry kinds.
type Kind int

const (
	KindFolder Kind = iota
	KindImage
	KindAudio
	KindVideo
	KindDocument
	KindOther
)

var kindNames = [...]string{
	KindFolder:   "folder",
	KindImage:    "image",
	KindAudio:    "audio",
	KindVideo:    "video",
	KindDocument: "document",
	KindOther:    "other",
}

// Kinds lists every kind in declaration order.
func Kinds() []Kind {
	return []Kind{KindFolder, KindImage, KindAudio, KindVideo, KindDocument, KindOther}
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind converts a kind name. Unknown names are an error, never a default.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

func (k Kind) MarshalText() ([]byte, error) {
	if k < 0 || int(k) >= len(kindNames) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return []byte(kindNames[k]), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// KindFilter restricts visible entries to one kind. The zero value matches all kinds.
type KindFilter struct {
	kind *Kind
}

// AllKinds is the filter that matches every entry.
var AllKinds = KindFilter{}

// OnlyKind returns a filter matching a single kind.
func OnlyKind(k Kind) KindFilter {
	return KindFilter{kind: &k}
}

// ParseKindFilter accepts "all", "" or any kind name.
func ParseKindFilter(s string) (KindFilter, error) {
	if s == "" || s == "all" {
		return AllKinds, nil
	}
	k, err := ParseKind(s)
	if err != nil {
		return AllKinds, err
	}
	return OnlyKind(k), nil
}

// IsAll reports whether the filter matches every kind.
func (f KindFilter) IsAll() bool {
	return f.kind == nil
}

// Matches reports whether k passes the filter.
func (f KindFilter) Matches(k Kind) bool {
	return f.kind == nil || *f.kind == k
}

func (f KindFilter) String() string {
	if f.kind == nil {
		return "all"
	}
	return f.kind.String()
}

func (f KindFilter) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *KindFilter) UnmarshalText(text []byte) error {
	parsed, err := ParseKindFilter(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Entry is a file or folder in the library forest.
type Entry struct {
	ID           ID        `json:"id"`
	Name         string    `json:"name"`
	Kind         Kind      `json:"kind"`
	ModifiedAt   time.Time `json:"modifiedAt"`
	Size         string    `json:"size,omitempty"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	Description  string    `json:"description,omitempty"`
	ParentID     ID        `json:"parentId"`
	Path         string    `json:"path,omitempty"`
}

// IsFolder reports whether the entry is a folder.
func (e Entry) IsFolder() bool {
	return e.Kind == KindFolder
}

// Crumb is one step of the breadcrumb trail.
type Crumb struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// RootCrumb is always the first element of a folder history.
func RootCrumb() Crumb {
	return Crumb{ID: RootID, Name: RootName}
}

// RawFile describes an uploaded file before ingestion.
type RawFile struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	ByteSize int64  `json:"byteSize"`
}

// PreviewKind says which modal the presentation layer should render.
type PreviewKind string

const (
	PreviewFolder PreviewKind = "folder"
	PreviewFile   PreviewKind = "file"
)

// Preview is the currently open preview modal.
type Preview struct {
	EntryID ID          `json:"entryId"`
	Kind    PreviewKind `json:"kind"`
}

// PreviewView is a preview with its resolved entry.
type PreviewView struct {
	Preview
	Entry      Entry `json:"entry"`
	ChildCount int   `json:"childCount,omitempty"`
}

// View is the derived, read-only snapshot consumed by the presentation layer.
type View struct {
	CurrentFolderID ID           `json:"currentFolderId"`
	FolderHistory   []Crumb      `json:"folderHistory"`
	Location        string       `json:"location"`
	Query           string       `json:"query"`
	TypeFilter      KindFilter   `json:"typeFilter"`
	Page            int          `json:"page"`
	PageSize        int          `json:"pageSize"`
	TotalPages      int          `json:"totalPages"`
	TotalCount      int          `json:"totalCount"`
	Entries         []Entry      `json:"entries"`
	Selected        []ID         `json:"selected"`
	Busy            bool         `json:"busy"`
	Preview         *PreviewView `json:"preview,omitempty"`
}

// Stats counts entries per kind.
type Stats struct {
	Total  int            `json:"total"`
	ByKind map[string]int `json:"byKind"`
}
