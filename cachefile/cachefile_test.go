package cachefile_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.senan.xyz/booktag/book"
	"go.senan.xyz/booktag/cachefile"
)

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	rec := cachefile.Record{
		Status: cachefile.StatusSuccess,
		Meta: book.Meta{
			Title:       "Project Hail Mary",
			Authors:     []string{"Andy Weir"},
			Narrators:   []string{"Ray Porter"},
			Genres:      []string{"Science Fiction"},
			Description: "A lone astronaut must save the earth.",
			Rating:      4.67,
			RatingCount: 10_000,
		},
		Cover: []byte("not really a jpeg"),
	}
	require.NoError(t, cachefile.Write(dir, rec.Meta.Title, rec))

	path, ok := cachefile.Path(dir)
	require.True(t, ok)
	assert.Equal(t, "Project Hail Mary.atf", filepath.Base(path))

	got, err := cachefile.Read(dir)
	require.NoError(t, err)
	assert.Equal(t, rec.Status, got.Status)
	assert.Equal(t, rec.Meta, got.Meta)
	assert.Equal(t, rec.Cover, got.Cover)
}

func TestWriteReplacesStaleRecord(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, cachefile.Write(dir, "Old Title", cachefile.Record{Status: cachefile.StatusNotFound}))
	require.NoError(t, cachefile.Write(dir, "New: Title?", cachefile.Record{Status: cachefile.StatusSuccess}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "New Title.atf", entries[0].Name())
}

func TestReadMissing(t *testing.T) {
	t.Parallel()

	_, err := cachefile.Read(t.TempDir())
	assert.ErrorIs(t, err, cachefile.ErrNoRecord)
}

func TestReadCorrupt(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "book.atf"), []byte("SUCCESS\n{not json"), 0666))
	_, err := cachefile.Read(dir)
	assert.ErrorIs(t, err, cachefile.ErrNoRecord)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "book.atf"), []byte("WHATEVER\n{}"), 0666))
	_, err = cachefile.Read(dir)
	assert.ErrorIs(t, err, cachefile.ErrNoRecord)
}

func TestSatisfies(t *testing.T) {
	t.Parallel()

	rec := &cachefile.Record{
		Status: cachefile.StatusSuccess,
		Meta: book.Meta{
			Title:       "Project Hail Mary",
			Authors:     []string{"Andy Weir"},
			Genres:      []string{"Science Fiction"},
			Description: "A lone astronaut.",
		},
	}

	// tag-level aliases map onto payload fields
	assert.True(t, rec.Satisfies([]string{"album", "artist", "grouping", "comment"}, false))
	assert.False(t, rec.Satisfies([]string{"album", "narrator"}, false))
	assert.False(t, rec.Satisfies([]string{"publisher"}, false))

	// placeholder genre is as good as none
	placeholder := *rec
	placeholder.Meta.Genres = []string{"Audiobook"}
	assert.False(t, placeholder.Satisfies([]string{"genre"}, false))

	// cover needs a blob or art already in the file; a bare URL would
	// force a download on the supposedly offline cached path
	assert.False(t, rec.Satisfies([]string{"cover"}, false))
	assert.True(t, rec.Satisfies([]string{"cover"}, true))
	withBlob := *rec
	withBlob.Cover = []byte("img")
	assert.True(t, withBlob.Satisfies([]string{"cover"}, false))
	withURL := *rec
	withURL.Meta.CoverURL = "https://img.example.com/cover.jpg"
	assert.False(t, withURL.Satisfies([]string{"cover"}, false))

	// only SUCCESS records count
	failed := *rec
	failed.Status = cachefile.StatusLowConfidence
	assert.False(t, failed.Satisfies([]string{"album"}, false))
}
