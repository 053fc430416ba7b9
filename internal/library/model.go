// Package library holds the media library state model: the entry forest,
// navigation, search and type filters, pagination, selection and previews,
// together with the derived views the presentation layer renders.
package library

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ChangeFunc is called after every state change, outside the model lock.
type ChangeFunc func(reason string)

// Options configures a Model. Zero values fall back to defaults.
type Options struct {
	PageSize     int
	UploadDelay  time.Duration
	Navigator    Navigator
	ThumbnailURL func(id ID) string
	Now          func() time.Time
	NewID        func() ID
	OnChange     ChangeFunc
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.UploadDelay < 0 {
		o.UploadDelay = 0
	}
	if o.Navigator == nil {
		o.Navigator = NewQueryNavigator(nil)
	}
	if o.ThumbnailURL == nil {
		o.ThumbnailURL = DefaultThumbnailURL
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = NewID
	}
	return o
}

// NewID returns a fresh random entry id.
func NewID() ID {
	return ID(uuid.NewString())
}

// DefaultThumbnailURL points at the placeholder thumbnail endpoint.
func DefaultThumbnailURL(id ID) string {
	return "/api/v1/thumbnails/" + string(id)
}

// Model is the single source of truth for one library session.
type Model struct {
	mu   sync.RWMutex
	opts Options

	entries []*Entry
	index   map[ID]*Entry

	current ID
	history []Crumb

	query       string
	foldedQuery string
	kinds       KindFilter
	page        int

	selected map[ID]struct{}
	preview  *Preview
	busy     int
}

// NewModel creates a model over entries, which are taken in display order.
// Entries are trusted: parent links are not validated here.
func NewModel(entries []Entry, opts Options) *Model {
	m := &Model{
		opts:     opts.withDefaults(),
		entries:  make([]*Entry, 0, len(entries)),
		index:    make(map[ID]*Entry, len(entries)),
		current:  RootID,
		history:  []Crumb{RootCrumb()},
		kinds:    AllKinds,
		page:     1,
		selected: make(map[ID]struct{}),
	}
	for i := range entries {
		e := entries[i]
		m.entries = append(m.entries, &e)
		m.index[e.ID] = &e
	}
	for _, e := range m.entries {
		if e.Path == "" {
			e.Path = m.buildPath(e.ID)
		}
	}
	return m
}

// SetOnChange replaces the change callback.
func (m *Model) SetOnChange(fn ChangeFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opts.OnChange = fn
}

func (m *Model) notify(reason string) {
	m.mu.RLock()
	fn := m.opts.OnChange
	m.mu.RUnlock()
	if fn != nil {
		fn(reason)
	}
}

// prepend inserts entries at the head of the collection, keeping their relative order.
// Caller holds the write lock.
func (m *Model) prepend(entries ...*Entry) {
	next := make([]*Entry, 0, len(entries)+len(m.entries))
	next = append(next, entries...)
	next = append(next, m.entries...)
	m.entries = next
	for _, e := range entries {
		m.index[e.ID] = e
	}
}

// pathOf returns the display path of a folder, or "" for root and unknown ids.
func (m *Model) pathOf(id ID) string {
	if id.IsRoot() {
		return ""
	}
	if e, ok := m.index[id]; ok {
		return e.Path
	}
	return ""
}

// buildPath walks parents to reconstruct a display path, stopping on cycles.
func (m *Model) buildPath(id ID) string {
	var names []string
	visited := make(map[ID]bool)
	for cur := id; !cur.IsRoot() && !visited[cur]; {
		visited[cur] = true
		e, ok := m.index[cur]
		if !ok {
			break
		}
		names = append(names, e.Name)
		cur = e.ParentID
	}
	path := ""
	for i := len(names) - 1; i >= 0; i-- {
		path += "/" + names[i]
	}
	return path
}

// CreateFolder prepends a folder to the current folder. Name validation is the caller's job.
func (m *Model) CreateFolder(name, description string) Entry {
	m.mu.Lock()
	e := &Entry{
		ID:          m.opts.NewID(),
		Name:        name,
		Kind:        KindFolder,
		ModifiedAt:  m.opts.Now(),
		Description: description,
		ParentID:    m.current,
		Path:        m.pathOf(m.current) + "/" + name,
	}
	m.prepend(e)
	created := *e
	m.mu.Unlock()

	m.notify("folder:created")
	return created
}

// Lookup returns a copy of the entry with the given id.
func (m *Model) Lookup(id ID) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.index[id]
	if !ok {
		return Entry{}, ErrEntryNotFound
	}
	return *e, nil
}

// SetSearchQuery updates the search text and returns to page 1.
func (m *Model) SetSearchQuery(q string) {
	m.mu.Lock()
	m.query = q
	m.foldedQuery = foldQuery(q)
	m.page = 1
	m.mu.Unlock()
	m.notify("search")
}

// SetTypeFilter updates the kind filter and returns to page 1.
func (m *Model) SetTypeFilter(f KindFilter) {
	m.mu.Lock()
	m.kinds = f
	m.page = 1
	m.mu.Unlock()
	m.notify("filter")
}

// SetPage moves to page, clamped to [1, TotalPages], and returns the page actually set.
func (m *Model) SetPage(page int) int {
	m.mu.Lock()
	total := TotalPages(len(m.visibleLocked()), m.opts.PageSize)
	if page < 1 {
		page = 1
	}
	if page > total {
		page = total
	}
	m.page = page
	m.mu.Unlock()
	m.notify("page")
	return page
}

// Page returns the current 1-based page.
func (m *Model) Page() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.page
}

// PageSize returns the configured page size.
func (m *Model) PageSize() int {
	return m.opts.PageSize
}

// Query returns the current search text.
func (m *Model) Query() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.query
}

// TypeFilter returns the current kind filter.
func (m *Model) TypeFilter() KindFilter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.kinds
}

// Busy reports whether an ingestion is in flight.
func (m *Model) Busy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.busy > 0
}

// SelectEntry adds or removes id from the selection. The id is not checked.
func (m *Model) SelectEntry(id ID, selected bool) {
	m.mu.Lock()
	if selected {
		m.selected[id] = struct{}{}
	} else {
		delete(m.selected, id)
	}
	m.mu.Unlock()
	m.notify("selection")
}

// ClearSelection empties the selection set.
func (m *Model) ClearSelection() {
	m.mu.Lock()
	m.selected = make(map[ID]struct{})
	m.mu.Unlock()
	m.notify("selection")
}

// Selected returns the selected ids in sorted order.
func (m *Model) Selected() []ID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.selectedLocked()
}

// IsSelected reports whether id is selected.
func (m *Model) IsSelected(id ID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.selected[id]
	return ok
}

func (m *Model) selectedLocked() []ID {
	ids := make([]ID, 0, len(m.selected))
	for id := range m.selected {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// VisibleEntries returns the scope, search and type filtered entries in collection order.
func (m *Model) VisibleEntries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.visibleLocked()
}

func (m *Model) visibleLocked() []Entry {
	return filterEntries(m.entries, m.current, m.foldedQuery, m.kinds)
}

// Paginate returns one page of the visible entries.
func (m *Model) Paginate(page, pageSize int) []Entry {
	return Paginate(m.VisibleEntries(), page, pageSize)
}

// TotalPages returns max(1, ceil(visible/pageSize)).
func (m *Model) TotalPages(pageSize int) int {
	return TotalPages(len(m.VisibleEntries()), pageSize)
}

// OpenPreview opens the folder or file preview for id.
func (m *Model) OpenPreview(id ID) error {
	m.mu.Lock()
	e, ok := m.index[id]
	if !ok {
		m.mu.Unlock()
		return ErrEntryNotFound
	}
	kind := PreviewFile
	if e.IsFolder() {
		kind = PreviewFolder
	}
	m.preview = &Preview{EntryID: id, Kind: kind}
	m.mu.Unlock()
	m.notify("preview:opened")
	return nil
}

// ClosePreview closes any open preview.
func (m *Model) ClosePreview() {
	m.mu.Lock()
	m.preview = nil
	m.mu.Unlock()
	m.notify("preview:closed")
}

// Preview returns the open preview, if any.
func (m *Model) Preview() (Preview, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.preview == nil {
		return Preview{}, false
	}
	return *m.preview, true
}

// View computes the full derived snapshot for the current state.
func (m *Model) View() View {
	m.mu.RLock()
	defer m.mu.RUnlock()

	visible := m.visibleLocked()
	v := View{
		CurrentFolderID: m.current,
		FolderHistory:   append([]Crumb(nil), m.history...),
		Query:           m.query,
		TypeFilter:      m.kinds,
		Page:            m.page,
		PageSize:        m.opts.PageSize,
		TotalPages:      TotalPages(len(visible), m.opts.PageSize),
		TotalCount:      len(visible),
		Entries:         Paginate(visible, m.page, m.opts.PageSize),
		Selected:        m.selectedLocked(),
		Busy:            m.busy > 0,
	}
	if loc, ok := m.opts.Navigator.(interface{ Location() string }); ok {
		v.Location = loc.Location()
	}
	if m.preview != nil {
		if e, ok := m.index[m.preview.EntryID]; ok {
			pv := &PreviewView{Preview: *m.preview, Entry: *e}
			if e.IsFolder() {
				for _, child := range m.entries {
					if child.ParentID == e.ID {
						pv.ChildCount++
					}
				}
			}
			v.Preview = pv
		}
	}
	return v
}

// Stats counts all entries by kind.
func (m *Model) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{Total: len(m.entries), ByKind: make(map[string]int)}
	for _, k := range Kinds() {
		stats.ByKind[k.String()] = 0
	}
	for _, e := range m.entries {
		stats.ByKind[e.Kind.String()]++
	}
	return stats
}

// Entries returns a copy of the whole collection in display order.
func (m *Model) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]Entry, len(m.entries))
	for i, e := range m.entries {
		result[i] = *e
	}
	return result
}
