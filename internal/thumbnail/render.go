// Package thumbnail renders placeholder previews for image entries. Entries
// carry descriptors only, so each thumbnail is a deterministic swatch derived
// from the entry id.
package thumbnail

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"sync"

	"github.com/disintegration/imaging"
)

const (
	DefaultSize = 160
	MinSize     = 16
	MaxSize     = 512

	maxCached = 512
)

// Renderer produces PNG placeholders and caches them by id and size.
type Renderer struct {
	defaultSize int

	mu    sync.Mutex
	cache map[string][]byte
}

// NewRenderer creates a renderer whose default edge length is size pixels.
func NewRenderer(size int) *Renderer {
	return &Renderer{
		defaultSize: ClampSize(size),
		cache:       make(map[string][]byte),
	}
}

// DefaultSize returns the edge length used when a request names none.
func (r *Renderer) DefaultSize() int {
	return r.defaultSize
}

// ClampSize bounds size to [MinSize, MaxSize]; non-positive sizes use DefaultSize.
func ClampSize(size int) int {
	switch {
	case size <= 0:
		return DefaultSize
	case size < MinSize:
		return MinSize
	case size > MaxSize:
		return MaxSize
	default:
		return size
	}
}

// Render returns the PNG bytes for id at size x size.
func (r *Renderer) Render(id string, size int) ([]byte, error) {
	size = ClampSize(size)
	key := fmt.Sprintf("%s@%d", id, size)

	r.mu.Lock()
	if data, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return data, nil
	}
	r.mu.Unlock()

	img := Placeholder(id, size)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	data := buf.Bytes()

	r.mu.Lock()
	if len(r.cache) >= maxCached {
		for k := range r.cache {
			delete(r.cache, k)
			break
		}
	}
	r.cache[key] = data
	r.mu.Unlock()

	return data, nil
}

// Placeholder draws a two-tone swatch whose colours are derived from id.
func Placeholder(id string, size int) image.Image {
	base := Swatch(id)
	accent := color.NRGBA{
		R: lighten(base.R),
		G: lighten(base.G),
		B: lighten(base.B),
		A: 255,
	}

	img := imaging.New(size, size, base)
	inner := imaging.New(size/2, size/2, accent)
	img = imaging.Paste(img, inner, image.Pt(size/4, size/4))
	return imaging.Blur(img, float64(size)/64)
}

// Swatch returns the base colour for id.
func Swatch(id string) color.NRGBA {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	sum := h.Sum32()
	return color.NRGBA{
		R: uint8(64 + (sum>>16)&0x7f),
		G: uint8(64 + (sum>>8)&0x7f),
		B: uint8(64 + sum&0x7f),
		A: 255,
	}
}

func lighten(c uint8) uint8 {
	return c + (255-c)/2
}
