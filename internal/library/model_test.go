package library

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func sequentialIDs(prefix string) func() ID {
	n := 0
	return func() ID {
		n++
		return ID(fmt.Sprintf("%s-%d", prefix, n))
	}
}

func folder(id, name string, parent ID) Entry {
	return Entry{ID: ID(id), Name: name, Kind: KindFolder, ParentID: parent, ModifiedAt: fixedNow}
}

func file(id, name string, kind Kind, parent ID) Entry {
	return Entry{ID: ID(id), Name: name, Kind: kind, ParentID: parent, ModifiedAt: fixedNow, Size: "1.0 MB"}
}

func newTestModel(t *testing.T, entries []Entry, opts Options) *Model {
	t.Helper()
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}
	if opts.NewID == nil {
		opts.NewID = sequentialIDs("new")
	}
	return NewModel(entries, opts)
}

func ids(entries []Entry) []ID {
	out := make([]ID, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func cakesFixture() []Entry {
	return []Entry{
		folder("1", "Cakes", RootID),
		file("2", "a.jpg", KindImage, "1"),
	}
}

func TestVisibleEntries_ScopeFollowsCurrentFolder(t *testing.T) {
	m := newTestModel(t, cakesFixture(), Options{})

	assert.Equal(t, []ID{"1"}, ids(m.VisibleEntries()))

	m.NavigateTo("1", "")
	assert.Equal(t, []ID{"2"}, ids(m.VisibleEntries()))
}

func TestVisibleEntries_NeverLeaksOtherFolders(t *testing.T) {
	entries := []Entry{
		folder("a", "A", RootID),
		folder("b", "B", "a"),
		file("a1", "in-a.txt", KindDocument, "a"),
		file("b1", "in-b.txt", KindDocument, "b"),
		file("r1", "root.txt", KindDocument, RootID),
	}
	m := newTestModel(t, entries, Options{})

	for _, target := range []ID{RootID, "a", "b", "missing"} {
		m.NavigateTo(target, "")
		for _, e := range m.VisibleEntries() {
			assert.Equal(t, m.CurrentFolderID(), e.ParentID, "folder %q", target)
		}
	}
}

func TestSearch_CaseInsensitiveNameOrDescription(t *testing.T) {
	entries := []Entry{
		file("1", "Birthday.JPG", KindImage, RootID),
		{ID: "2", Name: "notes.txt", Kind: KindDocument, Description: "Wedding checklist"},
		file("3", "other.mp3", KindAudio, RootID),
		{ID: "4", Name: "ÉCLAIR.pdf", Kind: KindDocument},
	}
	m := newTestModel(t, entries, Options{})

	m.SetSearchQuery("birthday")
	assert.Equal(t, []ID{"1"}, ids(m.VisibleEntries()))

	m.SetSearchQuery("WEDDING")
	assert.Equal(t, []ID{"2"}, ids(m.VisibleEntries()))

	m.SetSearchQuery("éclair")
	assert.Equal(t, []ID{"4"}, ids(m.VisibleEntries()), "non-ASCII letters fold too")

	m.SetSearchQuery("")
	assert.Len(t, m.VisibleEntries(), 4)
}

func TestTypeFilter_EmptyResultStillHasOnePage(t *testing.T) {
	m := newTestModel(t, cakesFixture(), Options{})

	audio, err := ParseKindFilter("audio")
	require.NoError(t, err)
	m.SetTypeFilter(audio)

	assert.Empty(t, m.VisibleEntries())
	assert.Equal(t, 1, m.TotalPages(DefaultPageSize))
	assert.Equal(t, 1, m.View().TotalPages)
}

func TestSearchAndFilter_ResetPage(t *testing.T) {
	var entries []Entry
	for i := 0; i < 25; i++ {
		entries = append(entries, file(fmt.Sprintf("f%02d", i), fmt.Sprintf("photo-%02d.jpg", i), KindImage, RootID))
	}
	m := newTestModel(t, entries, Options{})

	assert.Equal(t, 3, m.SetPage(3))
	m.SetSearchQuery("photo")
	assert.Equal(t, 1, m.Page())

	m.SetPage(2)
	m.SetTypeFilter(OnlyKind(KindImage))
	assert.Equal(t, 1, m.Page())
}

func TestSetPage_Clamps(t *testing.T) {
	var entries []Entry
	for i := 0; i < 12; i++ {
		entries = append(entries, file(fmt.Sprintf("f%d", i), "x", KindDocument, RootID))
	}
	m := newTestModel(t, entries, Options{})

	assert.Equal(t, 2, m.SetPage(99))
	assert.Equal(t, 1, m.SetPage(-4))
}

func TestPaginate(t *testing.T) {
	var entries []Entry
	for i := 0; i < 23; i++ {
		entries = append(entries, file(fmt.Sprintf("f%02d", i), "x", KindDocument, RootID))
	}
	m := newTestModel(t, entries, Options{})

	assert.Len(t, m.Paginate(1, 10), 10)
	assert.Equal(t, ID("f10"), m.Paginate(2, 10)[0].ID)
	assert.Len(t, m.Paginate(3, 10), 3)
	assert.Empty(t, m.Paginate(4, 10), "no clamping in paginate")
	assert.Empty(t, m.Paginate(0, 10))
	assert.Equal(t, 3, m.TotalPages(10))
	assert.Equal(t, 1, TotalPages(0, 10))
}

func TestPaginate_HugeValuesDoNotOverflow(t *testing.T) {
	entries := []Entry{file("a", "a.txt", KindDocument, RootID), file("b", "b.txt", KindDocument, RootID)}

	assert.Empty(t, Paginate(entries, math.MaxInt, 10))
	assert.Empty(t, Paginate(entries, math.MaxInt/10+2, 10))
	assert.Empty(t, Paginate(nil, 1, 10))
	assert.Equal(t, []ID{"a", "b"}, ids(Paginate(entries, 1, math.MaxInt)))
	assert.Empty(t, Paginate(entries, 2, math.MaxInt))
	assert.Equal(t, 1, TotalPages(2, math.MaxInt))
	assert.Equal(t, 1, TotalPages(1, 1))
	assert.Equal(t, 2, TotalPages(2, 1))
}

func TestNavigateTo_NoOpOnCurrent(t *testing.T) {
	var reasons []string
	m := newTestModel(t, cakesFixture(), Options{OnChange: func(r string) { reasons = append(reasons, r) }})

	m.NavigateTo(RootID, "")
	assert.Empty(t, reasons)

	m.NavigateTo("1", "")
	m.NavigateTo("1", "")
	assert.Equal(t, []string{"navigate"}, reasons)
}

func TestNavigateTo_TruncatesOnReentry(t *testing.T) {
	entries := []Entry{
		folder("a", "A", RootID),
		folder("b", "B", "a"),
		folder("c", "C", "b"),
	}
	m := newTestModel(t, entries, Options{})

	m.NavigateTo("a", "")
	m.NavigateTo("b", "")
	m.NavigateTo("c", "")
	m.NavigateTo("a", "")

	assert.Equal(t, []Crumb{RootCrumb(), {ID: "a", Name: "A"}}, m.FolderHistory())
	assert.Equal(t, ID("a"), m.CurrentFolderID())
}

func TestNavigateTo_RoundTripThroughRoot(t *testing.T) {
	m := newTestModel(t, cakesFixture(), Options{})

	m.NavigateTo("1", "")
	first := m.FolderHistory()

	m.NavigateTo(RootID, "")
	assert.Equal(t, []Crumb{RootCrumb()}, m.FolderHistory())

	m.NavigateTo("1", "")
	assert.Equal(t, first, m.FolderHistory())
}

func TestNavigateTo_UnknownIDMovesTrailAndURL(t *testing.T) {
	nav := NewQueryNavigator(nil)
	m := newTestModel(t, cakesFixture(), Options{Navigator: nav})

	m.NavigateTo("ghost", "Ghost Folder")

	assert.Empty(t, m.VisibleEntries())
	history := m.FolderHistory()
	require.Len(t, history, 2)
	assert.Equal(t, Crumb{ID: "ghost", Name: "Ghost Folder"}, history[1])
	assert.Equal(t, "?folder=ghost", nav.Location())
}

func TestNavigateTo_ResetsPageAndClosesPreview(t *testing.T) {
	entries := append(cakesFixture(), folder("3", "Podcasts", RootID))
	m := newTestModel(t, entries, Options{PageSize: 1})

	m.SetPage(2)
	require.NoError(t, m.OpenPreview("3"))

	m.NavigateTo("1", "")

	assert.Equal(t, 1, m.Page())
	_, open := m.Preview()
	assert.False(t, open)
}

func TestNavigateTo_WritesIdentifierOnly(t *testing.T) {
	nav := NewQueryNavigator(nil)
	m := newTestModel(t, cakesFixture(), Options{Navigator: nav})

	m.NavigateTo("1", "Cakes")
	v, ok := nav.Get(FolderParam)
	require.True(t, ok)
	assert.Equal(t, "1", v)

	m.NavigateTo(RootID, "")
	_, ok = nav.Get(FolderParam)
	assert.False(t, ok)
	assert.Equal(t, []string{"folder=1", ""}, nav.History())
}

func TestNavigateViaBreadcrumb(t *testing.T) {
	entries := []Entry{
		folder("a", "A", RootID),
		folder("b", "B", "a"),
		folder("c", "C", "b"),
	}
	nav := NewQueryNavigator(nil)
	m := newTestModel(t, entries, Options{Navigator: nav})
	m.NavigateTo("a", "")
	m.NavigateTo("b", "")
	m.NavigateTo("c", "")

	for _, i := range []int{2, 1, 0} {
		require.NoError(t, m.NavigateViaBreadcrumb(i))
		history := m.FolderHistory()
		assert.Len(t, history, i+1)
		assert.Equal(t, m.CurrentFolderID(), history[len(history)-1].ID)
	}
	assert.Equal(t, RootID, m.CurrentFolderID())
	assert.Equal(t, "", nav.Location())

	assert.ErrorIs(t, m.NavigateViaBreadcrumb(1), ErrInvalidBreadcrumb)
	assert.ErrorIs(t, m.NavigateViaBreadcrumb(-1), ErrInvalidBreadcrumb)
}

func TestRebuildHistoryFromFolder(t *testing.T) {
	entries := []Entry{
		folder("a", "A", RootID),
		folder("b", "B", "a"),
		folder("c", "C", "b"),
	}
	m := newTestModel(t, entries, Options{})

	assert.Equal(t, []Crumb{
		RootCrumb(),
		{ID: "a", Name: "A"},
		{ID: "b", Name: "B"},
		{ID: "c", Name: "C"},
	}, m.RebuildHistoryFromFolder("c"))
	assert.Equal(t, []Crumb{RootCrumb()}, m.RebuildHistoryFromFolder(RootID))
	assert.Equal(t, []Crumb{RootCrumb(), {ID: "zz", Name: "zz"}}, m.RebuildHistoryFromFolder("zz"))
}

func TestRebuildHistoryFromFolder_TerminatesOnCycle(t *testing.T) {
	entries := []Entry{
		folder("x", "X", "z"),
		folder("y", "Y", "x"),
		folder("z", "Z", "y"),
	}
	m := newTestModel(t, entries, Options{})

	done := make(chan []Crumb, 1)
	go func() { done <- m.RebuildHistoryFromFolder("x") }()

	select {
	case history := <-done:
		assert.Len(t, history, 4, "root plus each folder once")
		assert.Equal(t, ID("x"), history[len(history)-1].ID)
	case <-time.After(time.Second):
		t.Fatal("history rebuild did not terminate on cyclic data")
	}
}

func TestInitFromNavigator(t *testing.T) {
	entries := []Entry{
		folder("a", "A", RootID),
		folder("b", "B", "a"),
		file("f", "f.txt", KindDocument, "b"),
	}

	t.Run("deep link", func(t *testing.T) {
		nav := NewQueryNavigator(url.Values{FolderParam: {"b"}})
		m := newTestModel(t, entries, Options{Navigator: nav})
		m.InitFromNavigator()

		assert.Equal(t, ID("b"), m.CurrentFolderID())
		assert.Equal(t, []Crumb{RootCrumb(), {ID: "a", Name: "A"}, {ID: "b", Name: "B"}}, m.FolderHistory())
		assert.Equal(t, []ID{"f"}, ids(m.VisibleEntries()))
	})

	t.Run("unknown id is dropped", func(t *testing.T) {
		nav := NewQueryNavigator(url.Values{FolderParam: {"Cakes"}})
		m := newTestModel(t, entries, Options{Navigator: nav})
		m.InitFromNavigator()

		assert.Equal(t, RootID, m.CurrentFolderID())
		assert.Equal(t, "", nav.Location())
	})

	t.Run("file id is dropped", func(t *testing.T) {
		nav := NewQueryNavigator(url.Values{FolderParam: {"f"}})
		m := newTestModel(t, entries, Options{Navigator: nav})
		m.InitFromNavigator()

		assert.Equal(t, RootID, m.CurrentFolderID())
	})
}

func TestCreateFolder_PrependsIntoCurrentFolder(t *testing.T) {
	m := newTestModel(t, cakesFixture(), Options{})
	m.NavigateTo("1", "")

	e := m.CreateFolder("Weddings", "Tiered cakes")

	assert.Equal(t, ID("new-1"), e.ID)
	assert.Equal(t, KindFolder, e.Kind)
	assert.Equal(t, ID("1"), e.ParentID)
	assert.Equal(t, "/Cakes/Weddings", e.Path)
	assert.Equal(t, fixedNow, e.ModifiedAt)
	assert.Equal(t, []ID{"new-1", "2"}, ids(m.VisibleEntries()))
}

func TestSelection_PersistsAcrossNavigationAndFilters(t *testing.T) {
	m := newTestModel(t, cakesFixture(), Options{})

	m.SelectEntry("1", true)
	m.SelectEntry("unknown", true)
	m.NavigateTo("1", "")
	m.SetSearchQuery("zzz")

	assert.Equal(t, []ID{"1", "unknown"}, m.Selected())
	assert.True(t, m.IsSelected("1"))

	m.SelectEntry("unknown", false)
	assert.Equal(t, []ID{"1"}, m.Selected())

	m.ClearSelection()
	assert.Empty(t, m.Selected())
}

func TestPreview(t *testing.T) {
	entries := append(cakesFixture(), file("3", "b.jpg", KindImage, "1"))
	m := newTestModel(t, entries, Options{})

	require.NoError(t, m.OpenPreview("1"))
	v := m.View()
	require.NotNil(t, v.Preview)
	assert.Equal(t, PreviewFolder, v.Preview.Kind)
	assert.Equal(t, 2, v.Preview.ChildCount)

	require.NoError(t, m.OpenPreview("2"))
	p, ok := m.Preview()
	require.True(t, ok)
	assert.Equal(t, PreviewFile, p.Kind)

	assert.ErrorIs(t, m.OpenPreview("missing"), ErrEntryNotFound)

	m.ClosePreview()
	assert.Nil(t, m.View().Preview)
}

func TestIngestFiles_ClassifiesAndFormats(t *testing.T) {
	m := newTestModel(t, cakesFixture(), Options{UploadDelay: time.Millisecond})

	created, err := m.IngestFiles(context.Background(), []RawFile{
		{Name: "x.png", MimeType: "image/png", ByteSize: 2_000_000},
	})
	require.NoError(t, err)
	require.Len(t, created, 1)

	e := created[0]
	assert.Equal(t, KindImage, e.Kind)
	assert.Equal(t, "2.0 MB", e.Size)
	assert.NotEmpty(t, e.ThumbnailURL)
	assert.Equal(t, RootID, e.ParentID)
	assert.Equal(t, "/x.png", e.Path)
	assert.Equal(t, e.ID, m.VisibleEntries()[0].ID, "prepended")
}

func TestIngestFiles_KeepsFolderFromCallTime(t *testing.T) {
	m := newTestModel(t, cakesFixture(), Options{UploadDelay: 50 * time.Millisecond})
	m.NavigateTo("1", "")

	done := make(chan []Entry, 1)
	go func() {
		created, err := m.IngestFiles(context.Background(), []RawFile{
			{Name: "song.mp3", MimeType: "audio/mpeg", ByteSize: 3_460_000},
			{Name: "clip.mp4", MimeType: "video/mp4", ByteSize: 10},
			{Name: "notes", MimeType: "", ByteSize: 0},
		})
		assert.NoError(t, err)
		done <- created
	}()

	require.Eventually(t, m.Busy, time.Second, time.Millisecond)
	m.NavigateTo(RootID, "")
	assert.True(t, m.View().Busy)

	created := <-done
	assert.False(t, m.Busy())
	require.Len(t, created, 3)
	for _, e := range created {
		assert.Equal(t, ID("1"), e.ParentID)
		assert.Empty(t, e.ThumbnailURL)
	}
	assert.Equal(t, []Kind{KindAudio, KindVideo, KindDocument}, []Kind{created[0].Kind, created[1].Kind, created[2].Kind})
	assert.Equal(t, "3.5 MB", created[0].Size)
	assert.Equal(t, "0.0 MB", created[2].Size)

	assert.Equal(t, []ID{"1"}, ids(m.VisibleEntries()), "root view untouched")
	m.NavigateTo("1", "")
	assert.Equal(t, []ID{created[0].ID, created[1].ID, created[2].ID, "2"}, ids(m.VisibleEntries()))
}

func TestIngestFiles_CancelledAddsNothing(t *testing.T) {
	var reasons []string
	m := newTestModel(t, cakesFixture(), Options{
		UploadDelay: time.Hour,
		OnChange:    func(r string) { reasons = append(reasons, r) },
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	created, err := m.IngestFiles(ctx, []RawFile{{Name: "a.png", MimeType: "image/png"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, created)
	assert.False(t, m.Busy())
	assert.Len(t, m.Entries(), 2)
	assert.Equal(t, []string{"upload:started", "upload:cancelled"}, reasons)
}

func TestView_Snapshot(t *testing.T) {
	nav := NewQueryNavigator(nil)
	m := newTestModel(t, cakesFixture(), Options{Navigator: nav, PageSize: 5})
	m.NavigateTo("1", "")
	m.SelectEntry("2", true)

	v := m.View()
	assert.Equal(t, ID("1"), v.CurrentFolderID)
	assert.Equal(t, "?folder=1", v.Location)
	assert.Equal(t, 5, v.PageSize)
	assert.Equal(t, 1, v.TotalCount)
	assert.Equal(t, []ID{"2"}, v.Selected)
	assert.True(t, v.TypeFilter.IsAll())
}

func TestStats(t *testing.T) {
	m := newTestModel(t, cakesFixture(), Options{})

	s := m.Stats()
	assert.Equal(t, 2, s.Total)
	assert.Equal(t, 1, s.ByKind["folder"])
	assert.Equal(t, 1, s.ByKind["image"])
	assert.Equal(t, 0, s.ByKind["audio"])
}

func TestNewModel_DerivesPaths(t *testing.T) {
	m := newTestModel(t, []Entry{
		folder("a", "A", RootID),
		folder("b", "B", "a"),
		file("c", "c.txt", KindDocument, "b"),
	}, Options{})

	e, err := m.Lookup("c")
	require.NoError(t, err)
	assert.Equal(t, "/A/B/c.txt", e.Path)

	_, err = m.Lookup("nope")
	assert.ErrorIs(t, err, ErrEntryNotFound)
}
