package library

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultUploadDelay simulates the upload round trip.
const DefaultUploadDelay = 800 * time.Millisecond

// ClassifyMIME maps a MIME type to an entry kind by its top-level type.
func ClassifyMIME(mimeType string) Kind {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case strings.HasPrefix(mt, "image/"):
		return KindImage
	case strings.HasPrefix(mt, "audio/"):
		return KindAudio
	case strings.HasPrefix(mt, "video/"):
		return KindVideo
	default:
		return KindDocument
	}
}

// FormatSize renders a byte count as decimal megabytes with one decimal place.
func FormatSize(bytes int64) string {
	return fmt.Sprintf("%.1f MB", float64(bytes)/1e6)
}

// IngestFiles turns raw uploads into entries after the simulated upload delay.
// Entries go to the folder that was current when the call started. The model is
// busy until the call returns; all files are added together or, when ctx is
// cancelled first, none are.
func (m *Model) IngestFiles(ctx context.Context, files []RawFile) ([]Entry, error) {
	return m.finishIngest(ctx, m.beginIngest(), files)
}

// beginIngest marks the model busy and returns the folder the upload targets.
// Every call must be paired with finishIngest.
func (m *Model) beginIngest() ID {
	m.mu.Lock()
	target := m.current
	m.busy++
	m.mu.Unlock()
	m.notify("upload:started")
	return target
}

// finishIngest waits out the upload delay and commits files into target.
func (m *Model) finishIngest(ctx context.Context, target ID, files []RawFile) ([]Entry, error) {
	if m.opts.UploadDelay > 0 {
		timer := time.NewTimer(m.opts.UploadDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			m.mu.Lock()
			m.busy--
			m.mu.Unlock()
			m.notify("upload:cancelled")
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	m.mu.Lock()
	now := m.opts.Now()
	parentPath := m.pathOf(target)
	created := make([]*Entry, 0, len(files))
	for _, f := range files {
		kind := ClassifyMIME(f.MimeType)
		e := &Entry{
			ID:         m.opts.NewID(),
			Name:       f.Name,
			Kind:       kind,
			ModifiedAt: now,
			Size:       FormatSize(f.ByteSize),
			ParentID:   target,
			Path:       parentPath + "/" + f.Name,
		}
		if kind == KindImage {
			e.ThumbnailURL = m.opts.ThumbnailURL(e.ID)
		}
		created = append(created, e)
	}
	m.prepend(created...)
	m.busy--
	m.mu.Unlock()

	m.notify("upload:completed")

	result := make([]Entry, len(created))
	for i, e := range created {
		result[i] = *e
	}
	return result, nil
}
