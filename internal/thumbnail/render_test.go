package thumbnail

import (
	"bytes"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampSize(t *testing.T) {
	assert.Equal(t, DefaultSize, ClampSize(0))
	assert.Equal(t, MinSize, ClampSize(3))
	assert.Equal(t, 200, ClampSize(200))
	assert.Equal(t, MaxSize, ClampSize(4096))
}

func TestRender_DecodesAtRequestedSize(t *testing.T) {
	r := NewRenderer(64)

	data, err := r.Render("photo-1", 48)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 48, img.Bounds().Dx())
	assert.Equal(t, 48, img.Bounds().Dy())

	again, err := r.Render("photo-1", 48)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestSwatch_Deterministic(t *testing.T) {
	assert.Equal(t, Swatch("a"), Swatch("a"))
	assert.NotEqual(t, Swatch("a"), Swatch("b"))
}

type fakeSource map[string]bool

func (f fakeSource) HasImage(_, id string) bool { return f[id] }

func TestHandlers_Get(t *testing.T) {
	e := echo.New()
	h := NewHandlers(NewRenderer(32), fakeSource{"img": true}, zerolog.Nop())

	tests := []struct {
		name     string
		id       string
		query    string
		wantCode int
	}{
		{"known image", "img", "", http.StatusOK},
		{"sized", "img", "?size=64", http.StatusOK},
		{"bad size", "img", "?size=big", http.StatusBadRequest},
		{"unknown", "nope", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/thumbnails/"+tt.id+tt.query, nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			c.SetParamNames("id")
			c.SetParamValues(tt.id)

			err := h.Get(c)
			if tt.wantCode == http.StatusOK {
				require.NoError(t, err)
				assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
				return
			}
			var he *echo.HTTPError
			require.ErrorAs(t, err, &he)
			assert.Equal(t, tt.wantCode, he.Code)
		})
	}
}
