package ratings_test

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
	"go.senan.xyz/booktag/ratings"
	"go.senan.xyz/booktag/websearch"
)

//go:embed testdata
var responses embed.FS

func TestGoodreadsLookup(t *testing.T) {
	t.Parallel()

	var g ratings.Goodreads
	g.HTTPClient = clientutil.FSClient(responses, "testdata/goodreads")

	sample, err := g.Lookup(context.Background(), book.Query{Title: "Project Hail Mary", Author: "Andy Weir"})
	require.NoError(t, err)

	// the "Summary of ..." study guide result should have been skipped
	assert.Equal(t, "Goodreads", sample.Source)
	assert.Equal(t, 4.52, sample.Rating)
	assert.Equal(t, 1098234, sample.Votes)
}

func TestGoodreadsLookupNoResults(t *testing.T) {
	t.Parallel()

	var g ratings.Goodreads
	g.HTTPClient = &http.Client{Transport: clientutil.RoundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`<html><body><table class="tableList"></table></body></html>`)),
		}, nil
	})}

	_, err := g.Lookup(context.Background(), book.Query{Title: "no such book"})
	assert.ErrorIs(t, err, ratings.ErrNoRating)
}

func TestAmazonLookup(t *testing.T) {
	t.Parallel()

	client := &http.Client{Transport: clientutil.RoundTripFunc(func(r *http.Request) (*http.Response, error) {
		var path string
		switch {
		case strings.Contains(r.URL.Host, "duckduckgo"):
			path = "testdata/amazon/ddg"
		default:
			path = "testdata/amazon/product"
		}
		data, err := responses.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(string(data))),
		}, nil
	})}

	var a ratings.Amazon
	a.Search = &websearch.DuckDuckGo{HTTPClient: client}
	a.HTTPClient = client

	sample, err := a.Lookup(context.Background(), book.Query{Title: "Project Hail Mary", Author: "Andy Weir"})
	require.NoError(t, err)

	assert.Equal(t, "Amazon", sample.Source)
	assert.Equal(t, 4.7, sample.Rating)
	assert.Equal(t, 245132, sample.Votes)
}
