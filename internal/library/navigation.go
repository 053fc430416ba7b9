package library

// CurrentFolderID returns the folder whose children are in view.
func (m *Model) CurrentFolderID() ID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// FolderHistory returns the breadcrumb trail from root to the current folder.
func (m *Model) FolderHistory() []Crumb {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Crumb(nil), m.history...)
}

// NavigateTo makes id the current folder.
//
// Re-entering a folder already on the trail truncates the trail there instead
// of appending. Unknown ids are accepted: the view is empty but the trail and
// URL still move. displayName names the crumb only when the id does not resolve.
func (m *Model) NavigateTo(id ID, displayName string) {
	m.mu.Lock()
	if id == m.current {
		m.mu.Unlock()
		return
	}

	m.current = id
	if id.IsRoot() {
		m.history = []Crumb{RootCrumb()}
	} else if i := m.crumbIndex(id); i >= 0 {
		m.history = m.history[:i+1]
	} else {
		m.history = append(m.history, Crumb{ID: id, Name: m.crumbName(id, displayName)})
	}
	m.page = 1
	m.preview = nil
	m.writeLocation()
	m.mu.Unlock()

	m.notify("navigate")
}

// NavigateViaBreadcrumb truncates the trail to index and moves there.
func (m *Model) NavigateViaBreadcrumb(index int) error {
	m.mu.Lock()
	if index < 0 || index >= len(m.history) {
		m.mu.Unlock()
		return ErrInvalidBreadcrumb
	}
	m.history = m.history[:index+1]
	m.current = m.history[index].ID
	m.page = 1
	m.preview = nil
	m.writeLocation()
	m.mu.Unlock()

	m.notify("navigate")
	return nil
}

// RebuildHistoryFromFolder reconstructs the trail [root, ..., id] from parent links.
// The walk visits each id at most once, so malformed cyclic data still terminates.
func (m *Model) RebuildHistoryFromFolder(id ID) []Crumb {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rebuildHistoryLocked(id)
}

func (m *Model) rebuildHistoryLocked(id ID) []Crumb {
	var chain []Crumb
	visited := make(map[ID]bool)
	for cur := id; !cur.IsRoot() && !visited[cur]; {
		visited[cur] = true
		e, ok := m.index[cur]
		if !ok {
			if cur == id {
				chain = append(chain, Crumb{ID: id, Name: string(id)})
			}
			break
		}
		chain = append(chain, Crumb{ID: e.ID, Name: e.Name})
		cur = e.ParentID
	}

	history := make([]Crumb, 0, len(chain)+1)
	history = append(history, RootCrumb())
	for i := len(chain) - 1; i >= 0; i-- {
		history = append(history, chain[i])
	}
	return history
}

// InitFromNavigator seeds the navigation state from the folder URL parameter.
// A parameter that does not name an existing folder is removed and the model stays at root.
func (m *Model) InitFromNavigator() {
	m.mu.Lock()
	raw, ok := m.opts.Navigator.Get(FolderParam)
	if !ok || raw == "" {
		m.mu.Unlock()
		return
	}

	id := ID(raw)
	if e, found := m.index[id]; !found || !e.IsFolder() {
		m.opts.Navigator.Delete(FolderParam)
		m.mu.Unlock()
		return
	}

	m.current = id
	m.history = m.rebuildHistoryLocked(id)
	m.page = 1
	m.mu.Unlock()

	m.notify("navigate")
}

func (m *Model) crumbIndex(id ID) int {
	for i, c := range m.history {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (m *Model) crumbName(id ID, displayName string) string {
	if e, ok := m.index[id]; ok {
		return e.Name
	}
	if displayName != "" {
		return displayName
	}
	return string(id)
}

// writeLocation publishes the current folder id; names never go into the URL.
func (m *Model) writeLocation() {
	if m.current.IsRoot() {
		m.opts.Navigator.Delete(FolderParam)
		return
	}
	m.opts.Navigator.Set(FolderParam, string(m.current))
}
