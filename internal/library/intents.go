package library

import (
	"context"
	"fmt"
	"strings"
)

// Intent names emitted by the presentation layer.
const (
	IntentSelect           = "select"
	IntentOpenFolder       = "openFolder"
	IntentNavigateToFolder = "navigateToFolder"
	IntentBreadcrumb       = "breadcrumb"
	IntentOpenFile         = "openFile"
	IntentClosePreview     = "closePreview"
	IntentSearch           = "search"
	IntentFilter           = "filter"
	IntentPageChange       = "pageChange"
	IntentCreateFolder     = "createFolder"
	IntentUploadFiles      = "uploadFiles"
)

// Intent is a user action from the presentation layer. Only the fields the
// named intent needs are read.
type Intent struct {
	Intent      string    `json:"intent"`
	ID          ID        `json:"id,omitempty"`
	Selected    bool      `json:"selected,omitempty"`
	DisplayName string    `json:"displayName,omitempty"`
	Index       int       `json:"index,omitempty"`
	Query       string    `json:"query,omitempty"`
	Kind        string    `json:"kind,omitempty"`
	Page        int       `json:"page,omitempty"`
	Name        string    `json:"name,omitempty"`
	Description string    `json:"description,omitempty"`
	Files       []RawFile `json:"files,omitempty"`
}

// IntentResult is returned by Dispatch.
type IntentResult struct {
	Intent     string `json:"intent"`
	Entry      *Entry `json:"entry,omitempty"`
	ActivityID string `json:"activityId,omitempty"`
	Page       int    `json:"page,omitempty"`
	View       View   `json:"view"`
}

// Dispatch applies one intent to a session's model.
func (s *Service) Dispatch(ctx context.Context, sessionID string, in Intent) (*IntentResult, error) {
	m := s.Session(sessionID, nil)
	result := &IntentResult{Intent: in.Intent}

	switch in.Intent {
	case IntentSelect:
		m.SelectEntry(in.ID, in.Selected)
	case IntentNavigateToFolder:
		m.NavigateTo(in.ID, in.DisplayName)
	case IntentBreadcrumb:
		if err := m.NavigateViaBreadcrumb(in.Index); err != nil {
			return nil, err
		}
	case IntentOpenFolder, IntentOpenFile:
		// Both open the preview modal; entering a folder is navigateToFolder.
		if err := m.OpenPreview(in.ID); err != nil {
			return nil, fmt.Errorf("open preview %q: %w", in.ID, err)
		}
	case IntentClosePreview:
		m.ClosePreview()
	case IntentSearch:
		m.SetSearchQuery(in.Query)
	case IntentFilter:
		f, err := ParseKindFilter(in.Kind)
		if err != nil {
			return nil, err
		}
		m.SetTypeFilter(f)
	case IntentPageChange:
		result.Page = m.SetPage(in.Page)
	case IntentCreateFolder:
		e, err := s.CreateFolder(sessionID, in.Name, in.Description)
		if err != nil {
			return nil, err
		}
		result.Entry = &e
	case IntentUploadFiles:
		activityID, err := s.Upload(ctx, sessionID, in.Files)
		if err != nil {
			return nil, err
		}
		result.ActivityID = activityID
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownIntent, in.Intent)
	}

	result.View = m.View()
	return result, nil
}

// ValidateFolderName trims name and rejects it when empty.
func ValidateFolderName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", ErrEmptyName
	}
	return trimmed, nil
}
