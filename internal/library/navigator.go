package library

import (
	"net/url"
	"sync"
)

// FolderParam is the query parameter that carries the current folder id.
const FolderParam = "folder"

// Navigator is the platform URL/history service the model reads and writes.
type Navigator interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
}

// QueryNavigator keeps URL query state in memory and records every push.
type QueryNavigator struct {
	mu      sync.RWMutex
	values  url.Values
	history []string
}

// NewQueryNavigator creates a navigator seeded with the given query values.
func NewQueryNavigator(initial url.Values) *QueryNavigator {
	values := url.Values{}
	for k, v := range initial {
		values[k] = append([]string(nil), v...)
	}
	return &QueryNavigator{values: values}
}

func (n *QueryNavigator) Get(key string) (string, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if !n.values.Has(key) {
		return "", false
	}
	return n.values.Get(key), true
}

func (n *QueryNavigator) Set(key, value string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.values.Set(key, value)
	n.history = append(n.history, n.values.Encode())
}

func (n *QueryNavigator) Delete(key string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.values.Del(key)
	n.history = append(n.history, n.values.Encode())
}

// Location returns the current query string, prefixed with "?" when non-empty.
func (n *QueryNavigator) Location() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	encoded := n.values.Encode()
	if encoded == "" {
		return ""
	}
	return "?" + encoded
}

// History returns every pushed query string, oldest first.
func (n *QueryNavigator) History() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]string(nil), n.history...)
}
