package googlebooks_test

import (
	"context"
	"embed"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.senan.xyz/booktag/book"
	"go.senan.xyz/booktag/clientutil"
	"go.senan.xyz/booktag/googlebooks"
)

//go:embed testdata
var responses embed.FS

func TestSearch(t *testing.T) {
	t.Parallel()

	var c googlebooks.Client
	c.HTTPClient = clientutil.FSClient(responses, "testdata/googlebooks")

	meta, err := c.Search(context.Background(), book.Query{Title: "Project Hail Mary", Author: "Andy Weir"})
	require.NoError(t, err)

	assert.Equal(t, "Project Hail Mary", meta.Title)
	assert.Equal(t, []string{"Andy Weir"}, meta.Authors)
	assert.Equal(t, "Ballantine Books", meta.Publisher)
	assert.Equal(t, "2021-05-04", meta.PublishedDate)
	assert.Equal(t, []string{"Fiction", "Science Fiction"}, meta.Genres)
	assert.Equal(t, "en", meta.Language)
	assert.Equal(t, 4.5, meta.Rating)
	assert.Equal(t, 1234, meta.RatingCount)
	assert.Equal(t, "0593135202", meta.ISBN10)
	assert.Equal(t, "9780593135204", meta.ISBN13)
	assert.Equal(t, "google_books", meta.Source)
	assert.NotContains(t, meta.CoverURL, "&edge=curl")
}

func TestSearchNoResults(t *testing.T) {
	t.Parallel()

	var c googlebooks.Client
	c.HTTPClient = &http.Client{Transport: clientutil.RoundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`{"kind":"books#volumes","totalItems":0}`)),
		}, nil
	})}

	_, err := c.Search(context.Background(), book.Query{Title: "no such book"})
	assert.ErrorIs(t, err, googlebooks.ErrNoResults)

	_, err = c.Search(context.Background(), book.Query{})
	assert.ErrorIs(t, err, googlebooks.ErrNoResults)
}
