package booktag_test

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.senan.xyz/booktag"
	"go.senan.xyz/booktag/audible"
	"go.senan.xyz/booktag/audnexus"
	"go.senan.xyz/booktag/book"
	"go.senan.xyz/booktag/cachefile"
	"go.senan.xyz/booktag/clientutil"
	"go.senan.xyz/booktag/googlebooks"
	"go.senan.xyz/booktag/ratings"
	"go.senan.xyz/booktag/tags"
	"go.senan.xyz/booktag/websearch"
)

const audibleSearchBody = `<html><body>
<a href="/pd/Project-Hail-Mary-Audiobook/B08G9PRS1K">Project Hail Mary</a>
</body></html>`

const audnexusBookBody = `{
	"asin": "B08G9PRS1K",
	"title": "Project Hail Mary",
	"authors": [{"name": "Andy Weir"}],
	"narrators": [{"name": "Ray Porter"}],
	"genres": [{"name": "Science Fiction", "type": "genre"}],
	"publisherName": "Audible Studios",
	"releaseDate": "2021-05-04T00:00:00.000Z",
	"language": "english",
	"summary": "Ryland Grace is the sole survivor on a desperate mission.",
	"rating": "4.9"
}`

const audibleProductBody = `<html><body>
<h1 slot="title">Project Hail Mary</h1>
<div class="authorLabel"><a href="/author/Andy-Weir">Andy Weir</a></div>
<script type="application/ld+json">{"aggregateRating": {"ratingValue": 4.8, "ratingCount": 41234}}</script>
</body></html>`

const googleBooksBody = `{
	"items": [{"volumeInfo": {
		"title": "Project Hail Mary",
		"authors": ["Andy Weir"],
		"publisher": "Ballantine Books",
		"publishedDate": "2021-05-04",
		"categories": ["Fiction, Science Fiction"],
		"averageRating": 4.5,
		"ratingsCount": 1234
	}}]
}`

// testConfig wires every provider through one counting transport so
// tests can assert how many network calls a path makes. Bodies are
// keyed by a substring of the request's host and path, so one host can
// serve different pages per endpoint.
func testConfig(bodies map[string]string) (*booktag.Config, *atomic.Int32) {
	var calls atomic.Int32
	client := &http.Client{Transport: clientutil.RoundTripFunc(func(r *http.Request) (*http.Response, error) {
		calls.Add(1)
		for part, body := range bodies {
			if strings.Contains(r.URL.Host+r.URL.Path, part) {
				return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(body))}, nil
			}
		}
		return &http.Response{StatusCode: http.StatusNotFound, Body: io.NopCloser(strings.NewReader(""))}, nil
	})}

	var cfg booktag.Config
	cfg.Providers.Audible = &audible.Client{HTTPClient: client}
	cfg.Providers.Audnexus = &audnexus.Client{HTTPClient: client}
	cfg.Providers.GoogleBooks = &googlebooks.Client{HTTPClient: client}
	cfg.Providers.Search = &websearch.DuckDuckGo{HTTPClient: client}
	return &cfg, &calls
}

func bookDir(t *testing.T, name string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.MkdirAll(dir, 0777))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "01.mp3"), []byte("not really audio"), 0666))
	return dir
}

func TestBuildQuery(t *testing.T) {
	t.Parallel()

	tg := tags.NewTags(
		"album", "Project Hail Mary [Unabridged]",
		"albumartist", "Andy Weir",
	)
	q := booktag.BuildQuery(tg, "/lib/whatever")
	assert.Equal(t, book.Query{Title: "Project Hail Mary", Author: "Andy Weir"}, q)

	q = booktag.BuildQuery(tags.Tags{}, "/lib/Project Hail Mary (Andy Weir)")
	assert.Equal(t, book.Query{Title: "Project Hail Mary", Author: "Andy Weir"}, q)

	q = booktag.BuildQuery(tags.Tags{}, "/lib/Andy Weir - Project Hail Mary")
	assert.Equal(t, book.Query{Title: "Project Hail Mary", Author: "Andy Weir"}, q)

	q = booktag.BuildQuery(tags.Tags{}, "/lib/Project Hail Mary")
	assert.Equal(t, book.Query{Title: "Project Hail Mary"}, q)
}

func TestResolveOneSatisfiedCacheZeroCalls(t *testing.T) {
	t.Parallel()

	dir := bookDir(t, "Project Hail Mary (Andy Weir)")
	require.NoError(t, cachefile.Write(dir, "Project Hail Mary", cachefile.Record{
		Status: cachefile.StatusSuccess,
		Meta: book.Meta{
			Title:       "Project Hail Mary",
			Authors:     []string{"Andy Weir"},
			Genres:      []string{"Science Fiction"},
			Description: "A lone astronaut must save the earth.",
			CoverURL:    "https://img.example.com/cover.jpg",
		},
		Cover: []byte("not really a jpeg"),
	}))

	cfg, calls := testConfig(nil)

	// the dummy file isn't real audio so the tag write fails, but the
	// cached path must still have served everything offline
	res, err := cfg.ResolveOne(context.Background(), dir)
	assert.Error(t, err)
	assert.Equal(t, booktag.StatusCached, res.Status)
	assert.Equal(t, "Project Hail Mary", res.Meta.Title)
	assert.Zero(t, calls.Load(), "a satisfied cache record must not touch the network")

	// the cover came from the cached blob, not the URL
	data, err := os.ReadFile(filepath.Join(dir, "cover.jpg"))
	require.NoError(t, err)
	assert.Equal(t, []byte("not really a jpeg"), data)
}

func TestResolveOneWaterfall(t *testing.T) {
	t.Parallel()

	dir := bookDir(t, "Project Hail Mary (Andy Weir)")
	cfg, _ := testConfig(map[string]string{
		"audible.com": audibleSearchBody,
		"audnex.us":   audnexusBookBody,
		"googleapis":  googleBooksBody,
	})
	cfg.DryRun = true

	res, err := cfg.ResolveOne(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, booktag.StatusResolved, res.Status)
	assert.Equal(t, 1.0, res.Score)

	meta := res.Meta
	assert.Equal(t, "Project Hail Mary", meta.Title)
	assert.Equal(t, []string{"Andy Weir"}, meta.Authors)
	assert.Equal(t, []string{"Ray Porter"}, meta.Narrators)
	assert.Equal(t, "audnexus+google_books", meta.Source)
	assert.Equal(t, "Audible Studios", meta.Publisher)
	assert.ElementsMatch(t, []string{"Science Fiction", "Fiction"}, meta.Genres)
	assert.Equal(t, 4.9, meta.Rating)
	assert.Contains(t, meta.Description, "⭐️ Weighted Rating:")
	assert.Contains(t, meta.Description, "Ryland Grace")

	// dry run leaves no record behind
	_, ok := cachefile.Path(dir)
	assert.False(t, ok)
}

func TestResolveOneWritesCacheDespiteTagFailure(t *testing.T) {
	t.Parallel()

	dir := bookDir(t, "Project Hail Mary (Andy Weir)")
	cfg, _ := testConfig(map[string]string{
		"audible.com": audibleSearchBody,
		"audnex.us":   audnexusBookBody,
	})

	// the dummy file isn't real audio, so tag writing fails, but
	// resolution succeeded and the cache must reflect that
	res, err := cfg.ResolveOne(context.Background(), dir)
	assert.Error(t, err)
	assert.Equal(t, booktag.StatusResolved, res.Status)

	rec, err := cachefile.Read(dir)
	require.NoError(t, err)
	assert.Equal(t, cachefile.StatusSuccess, rec.Status)
	assert.Equal(t, "Project Hail Mary", rec.Meta.Title)
}

func TestResolveOneNotFoundThenSkipped(t *testing.T) {
	t.Parallel()

	dir := bookDir(t, "No Such Book Anywhere (Nobody)")
	cfg, calls := testConfig(nil) // every provider 404s

	_, err := cfg.ResolveOne(context.Background(), dir)
	assert.ErrorIs(t, err, booktag.ErrNotFound)

	rec, err := cachefile.Read(dir)
	require.NoError(t, err)
	assert.Equal(t, cachefile.StatusNotFound, rec.Status)

	calls.Store(0)
	res, err := cfg.ResolveOne(context.Background(), dir)
	assert.ErrorIs(t, err, booktag.ErrSkipped)
	assert.Equal(t, booktag.StatusSkipped, res.Status)
	assert.Zero(t, calls.Load(), "a terminal record must not be retried")
}

func TestResolveOneLowConfidence(t *testing.T) {
	t.Parallel()

	dir := bookDir(t, "Project Hail Mary (Andy Weir)")
	cfg, _ := testConfig(map[string]string{
		"audible.com": audibleSearchBody,
		"audnex.us": `{
			"asin": "B08G9PRS1K",
			"title": "Cooking with Cheese for Beginners",
			"authors": [{"name": "Alice Example"}]
		}`,
	})

	res, err := cfg.ResolveOne(context.Background(), dir)
	assert.ErrorIs(t, err, booktag.ErrLowConfidence)
	assert.Equal(t, booktag.StatusLowConfidence, res.Status)

	rec, err := cachefile.Read(dir)
	require.NoError(t, err)
	assert.Equal(t, cachefile.StatusLowConfidence, rec.Status)
}

func TestResolveOneYesAcceptsLowScore(t *testing.T) {
	t.Parallel()

	dir := bookDir(t, "Project Hail Mary (Andy Weir)")
	cfg, _ := testConfig(map[string]string{
		"audible.com": audibleSearchBody,
		"audnex.us": `{
			"asin": "B08G9PRS1K",
			"title": "Cooking with Cheese for Beginners",
			"authors": [{"name": "Alice Example"}]
		}`,
	})
	cfg.Yes = true
	cfg.DryRun = true

	res, err := cfg.ResolveOne(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, booktag.StatusResolved, res.Status)
	assert.Equal(t, "Cooking with Cheese for Beginners", res.Meta.Title)
	assert.Less(t, res.Score, 0.85)
}

func TestResolveOneSearchFallbackAfterDeadASIN(t *testing.T) {
	t.Parallel()

	// the site search yields an ASIN but both catalog and product page
	// are gone for it; the web search hands back a page URL without an
	// extractable ASIN, which gets scraped directly
	dir := bookDir(t, "Project Hail Mary (Andy Weir)")
	cfg, _ := testConfig(map[string]string{
		"audible.com/search": audibleSearchBody,
		"duckduckgo": `<html><body>
			<a class="result__a" href="https://www.audible.com/webpage/project-hail-mary">Project Hail Mary</a>
		</body></html>`,
		"audible.com/webpage": audibleProductBody,
	})
	cfg.DryRun = true

	res, err := cfg.ResolveOne(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, booktag.StatusResolved, res.Status)
	assert.GreaterOrEqual(t, res.Score, 0.85)
	assert.Equal(t, "Project Hail Mary", res.Meta.Title)
	assert.Equal(t, "audible_scrape", res.Meta.Source)
}

func TestResolveOneThinRatingVerified(t *testing.T) {
	t.Parallel()

	// the catalog reports a rating but no vote count; the retail page
	// carries the real aggregate and its larger count wins
	dir := bookDir(t, "Project Hail Mary (Andy Weir)")
	cfg, _ := testConfig(map[string]string{
		"audible.com/search": audibleSearchBody,
		"audible.com/pd/":    audibleProductBody,
		"audnex.us":          audnexusBookBody,
	})
	cfg.DryRun = true

	res, err := cfg.ResolveOne(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 41234, res.Meta.RatingCount)
	assert.InDelta(t, 4.77, res.Meta.Rating, 0.05)
}

type stubRatingSource struct {
	name   string
	sample ratings.Sample
	calls  atomic.Int32
}

func (s *stubRatingSource) Name() string { return s.name }
func (s *stubRatingSource) Lookup(ctx context.Context, q book.Query) (ratings.Sample, error) {
	s.calls.Add(1)
	return s.sample, nil
}

func TestResolveOneRatingShortCircuit(t *testing.T) {
	t.Parallel()

	dir := bookDir(t, "Project Hail Mary (Andy Weir)")
	cfg, _ := testConfig(map[string]string{
		"audible.com": audibleSearchBody,
		"audnex.us":   audnexusBookBody,
	})
	cfg.DryRun = true

	first := &stubRatingSource{name: "Goodreads", sample: ratings.Sample{Source: "Goodreads", Rating: 4.5, Votes: 100_000}}
	second := &stubRatingSource{name: "Amazon", sample: ratings.Sample{Source: "Amazon", Rating: 4.7, Votes: 50_000}}
	cfg.Providers.Ratings = []ratings.Source{first, second}

	res, err := cfg.ResolveOne(context.Background(), dir)
	require.NoError(t, err)

	assert.EqualValues(t, 1, first.calls.Load())
	assert.Zero(t, second.calls.Load(), "enough votes were gathered, the second scrape must be skipped")
	assert.Equal(t, 100_000, res.Meta.RatingCount)
	assert.InDelta(t, 4.47, res.Meta.Rating, 0.1)
}

func TestResolveBatch(t *testing.T) {
	t.Parallel()

	var dirs []string
	for _, name := range []string{"Book One (Author A)", "Book Two (Author B)"} {
		dir := bookDir(t, name)
		require.NoError(t, cachefile.Write(dir, name, cachefile.Record{
			Status: cachefile.StatusSuccess,
			Meta: book.Meta{
				Title:       name,
				Authors:     []string{"Someone"},
				Genres:      []string{"Fiction"},
				Description: "A description.",
			},
			Cover: []byte("img"),
		}))
		dirs = append(dirs, dir)
	}
	dirs = append(dirs, bookDir(t, "No Such Book Anywhere (Nobody)"))

	cfg, _ := testConfig(nil)
	cfg.DryRun = true

	var progress []booktag.Progress
	resolved, failed := cfg.ResolveBatch(context.Background(), dirs, func(p booktag.Progress) {
		progress = append(progress, p)
	})

	assert.Equal(t, 2, resolved)
	assert.Equal(t, 1, failed)
	require.Len(t, progress, 3)
	assert.Equal(t, 3, progress[2].Done)
	assert.Equal(t, 3, progress[2].Total)
}
