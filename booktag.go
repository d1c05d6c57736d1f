// Package booktag resolves audiobook directories against remote
// bibliographic sources, scores the candidates, merges the survivors,
// and writes the result back to the files and a per-directory cache.
package booktag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"go.senan.xyz/booktag/audible"
	"go.senan.xyz/booktag/audnexus"
	"go.senan.xyz/booktag/book"
	"go.senan.xyz/booktag/cachefile"
	"go.senan.xyz/booktag/covers"
	"go.senan.xyz/booktag/fileutil"
	"go.senan.xyz/booktag/googlebooks"
	"go.senan.xyz/booktag/hook"
	"go.senan.xyz/booktag/match"
	"go.senan.xyz/booktag/ratings"
	"go.senan.xyz/booktag/tags"
	"go.senan.xyz/booktag/websearch"
)

var (
	ErrNoAudioFiles  = errors.New("no audio files in dir")
	ErrNoQuery       = errors.New("not enough tag or filename signal to search")
	ErrNotFound      = errors.New("no provider returned a match")
	ErrLowConfidence = errors.New("best candidate scored too low")
	ErrSkipped       = errors.New("marked unresolvable by a previous run")
)

// Status is the terminal state of one directory's resolution attempt.
type Status string

const (
	StatusCached        Status = "cached"
	StatusResolved      Status = "resolved"
	StatusNotFound      Status = "not-found"
	StatusLowConfidence Status = "low-confidence"
	StatusSkipped       Status = "skipped"
)

type Providers struct {
	Audible     *audible.Client
	Audnexus    *audnexus.Client
	GoogleBooks *googlebooks.Client
	Search      *websearch.DuckDuckGo
	Ratings     []ratings.Source
}

type Config struct {
	Providers    Providers
	GenreAliases book.GenreAliases
	Hooks        []hook.Hook

	// Fields restricts which tags get updated. Empty means all, with
	// DefaultFields deciding when a cache record counts as complete.
	Fields []string

	DryRun       bool
	ForceCover   bool
	ForceRefresh bool

	// Yes accepts the best candidate even when it scores below the
	// confidence threshold.
	Yes bool
}

type Result struct {
	Dir    string
	Query  book.Query
	Status Status
	Score  float64
	Meta   *book.Meta
}

// DefaultFields is the satisfaction bar for cached records when the
// caller didn't restrict fields: a SUCCESS record missing any of
// these is re-resolved.
var DefaultFields = []string{"album", "artist", "genre", "description", "cover"}

func (c *Config) satisfactionFields() []string {
	if len(c.Fields) == 0 {
		return DefaultFields
	}
	return c.Fields
}

var bracketExpr = regexp.MustCompile(`\s*[\(\[][^\)\]]*[\)\]]\s*`)

// BuildQuery derives a search query from a file's tags, falling back
// to directory-name heuristics. Audiobooks keep the book title in the
// album tag.
func BuildQuery(t tags.Tags, dir string) book.Query {
	var q book.Query
	q.Title = firstNonEmpty(t.Get(tags.Album), t.Get(tags.Title))
	q.Author = firstNonEmpty(t.Get(tags.AlbumArtist), t.Get(tags.Artist))

	if q.Title == "" || q.Author == "" {
		name := book.NormSpace(filepath.Base(dir))
		fromName := parseDirName(name)
		if q.Title == "" {
			q.Title = fromName.Title
		}
		if q.Author == "" {
			q.Author = fromName.Author
		}
	}

	// bracketed annotations encode edition noise, not identity
	q.Title = book.NormSpace(bracketExpr.ReplaceAllString(q.Title, " "))
	q.Author = book.NormSpace(q.Author)
	return q
}

var dirAuthorExpr = regexp.MustCompile(`^(.+?)\s*\(([^\)]+)\)$`)

func parseDirName(name string) book.Query {
	if m := dirAuthorExpr.FindStringSubmatch(name); m != nil {
		return book.Query{Title: m[1], Author: m[2]}
	}
	if before, after, ok := strings.Cut(name, " - "); ok {
		return book.Query{Title: after, Author: before}
	}
	return book.Query{Title: name}
}

// ResolveOne runs the full pipeline for a single book directory:
// cache check, provider waterfall, rating aggregation, tag and cover
// writeback, cache update.
func (c *Config) ResolveOne(ctx context.Context, dir string) (*Result, error) {
	paths, err := fileutil.AudioFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("list dir: %w", err)
	}
	if len(paths) == 0 {
		return nil, ErrNoAudioFiles
	}

	fileTags, err := tags.ReadTags(paths[0])
	if err != nil {
		// unreadable tags still leave the directory name to go on
		slog.DebugContext(ctx, "read tags", "path", paths[0], "err", err)
		fileTags = tags.Tags{}
	}

	q := BuildQuery(fileTags, dir)
	res := &Result{Dir: dir, Query: q}
	if q.Title == "" {
		return res, ErrNoQuery
	}

	if rec, err := cachefile.Read(dir); err == nil && !c.ForceRefresh {
		switch rec.Status {
		case cachefile.StatusNotFound, cachefile.StatusLowConfidence:
			res.Status = StatusSkipped
			return res, ErrSkipped
		case cachefile.StatusSuccess:
			if rec.Satisfies(c.satisfactionFields(), covers.HasEmbeddedArt(paths[0])) {
				res.Status = StatusCached
				res.Meta = &rec.Meta
				if err := c.apply(ctx, dir, paths, &rec.Meta, rec.Cover); err != nil {
					return res, err
				}
				return res, nil
			}
		}
	}

	meta, score, err := c.resolveMeta(ctx, q)
	res.Score = score
	switch {
	case errors.Is(err, ErrNotFound):
		res.Status = StatusNotFound
		c.writeCache(ctx, dir, q.Title, cachefile.Record{Status: cachefile.StatusNotFound})
		return res, err
	case errors.Is(err, ErrLowConfidence):
		if c.Yes && meta != nil {
			slog.InfoContext(ctx, "accepting low score candidate", "dir", dir, "candidate", meta.Title, "score", score)
			break
		}
		if score < match.LowConfidenceThreshold {
			res.Status = StatusLowConfidence
			c.writeCache(ctx, dir, q.Title, cachefile.Record{Status: cachefile.StatusLowConfidence})
			return res, err
		}
		// near miss, leave the directory alone so a later run with
		// better tags can retry
		res.Status = StatusSkipped
		return res, err
	case err != nil:
		return res, err
	}

	c.resolveRating(ctx, q, meta)
	if len(c.GenreAliases) > 0 {
		meta.Genres = c.GenreAliases.Apply(meta.Genres)
	}

	var cover []byte
	if meta.CoverURL != "" && c.wantField("cover") {
		if data, err := covers.Download(ctx, nil, meta.CoverURL); err == nil {
			cover = data
		} else {
			slog.DebugContext(ctx, "fetch cover", "url", meta.CoverURL, "err", err)
		}
	}

	res.Status = StatusResolved
	res.Meta = meta

	c.writeCache(ctx, dir, firstNonEmpty(meta.Title, q.Title), cachefile.Record{
		Status: cachefile.StatusSuccess,
		Meta:   *meta,
		Cover:  cover,
	})

	if err := c.apply(ctx, dir, paths, meta, cover); err != nil {
		return res, err
	}
	return res, nil
}

func (c *Config) writeCache(ctx context.Context, dir, nameBase string, rec cachefile.Record) {
	if c.DryRun {
		return
	}
	if err := cachefile.Write(dir, nameBase, rec); err != nil {
		slog.ErrorContext(ctx, "write cache", "dir", dir, "err", err)
	}
}

// resolveMeta walks the provider waterfall until a confident candidate
// appears. Provider failures degrade to "no answer" and the next rung
// is tried.
func (c *Config) resolveMeta(ctx context.Context, q book.Query) (*book.Meta, float64, error) {
	var best *book.Meta
	var bestScore float64

	consider := func(m *book.Meta) bool {
		if m == nil {
			return false
		}
		if score := match.Score(q, *m); best == nil || score > bestScore {
			best, bestScore = m, score
		}
		return bestScore >= match.AcceptThreshold
	}

	var accepted bool
	if asin := c.findASIN(ctx, q); asin != "" {
		accepted = consider(c.byASIN(ctx, asin))
	}
	if !accepted && c.Providers.Search != nil {
		for _, u := range c.searchCandidates(ctx, q) {
			if accepted = consider(c.byCandidateURL(ctx, u)); accepted {
				break
			}
		}
	}
	if !accepted && c.Providers.GoogleBooks != nil {
		m, err := c.Providers.GoogleBooks.Search(ctx, q)
		if err != nil && !errors.Is(err, googlebooks.ErrNoResults) {
			slog.DebugContext(ctx, "google books", "query", q, "err", err)
		}
		if err == nil {
			accepted = consider(m)
		}
	}

	if !accepted {
		if best == nil {
			return nil, 0, ErrNotFound
		}
		slog.InfoContext(ctx, "best candidate rejected",
			"query", q, "candidate", best.Title, "source", best.Source, "score", bestScore)
		return best, bestScore, ErrLowConfidence
	}

	// enrich the accepted candidate with the secondary source
	if c.Providers.GoogleBooks != nil && best.Source != "google_books" {
		if m, err := c.Providers.GoogleBooks.Search(ctx, q); err == nil {
			if match.Score(q, *m) >= match.AcceptThreshold {
				merged := book.Merge(*best, *m)
				best = &merged
			}
		}
	}
	return best, bestScore, nil
}

func (c *Config) findASIN(ctx context.Context, q book.Query) string {
	if c.Providers.Audible == nil {
		return ""
	}
	asin, _, err := c.Providers.Audible.FindASIN(ctx, q)
	if err != nil {
		if !errors.Is(err, audible.ErrNotFound) {
			slog.DebugContext(ctx, "find asin", "query", q, "err", err)
		}
		return ""
	}
	return asin
}

func (c *Config) searchCandidates(ctx context.Context, q book.Query) []string {
	urls, err := c.Providers.Search.Search(ctx, q.String()+" audiobook", "audible.com", 5)
	if err != nil {
		if !errors.Is(err, websearch.ErrNoResults) {
			slog.DebugContext(ctx, "web search", "query", q, "err", err)
		}
		return nil
	}
	return urls
}

// byCandidateURL resolves a search hit, preferring the catalog when the
// URL carries an ASIN, scraping the page directly otherwise.
func (c *Config) byCandidateURL(ctx context.Context, u string) *book.Meta {
	if asin := audible.ExtractASIN(u); asin != "" {
		return c.byASIN(ctx, asin)
	}
	if c.Providers.Audible == nil {
		return nil
	}
	m, err := c.Providers.Audible.Scrape(ctx, u)
	if err != nil {
		if !errors.Is(err, audible.ErrNotFound) {
			slog.DebugContext(ctx, "audible scrape", "url", u, "err", err)
		}
		return nil
	}
	return m
}

// byASIN prefers the structured catalog API, with a page scrape as the
// fallback.
func (c *Config) byASIN(ctx context.Context, asin string) *book.Meta {
	if c.Providers.Audnexus != nil {
		m, err := c.Providers.Audnexus.GetBook(ctx, asin)
		if err == nil {
			return m
		}
		if !errors.Is(err, audnexus.ErrNotFound) {
			slog.DebugContext(ctx, "audnexus", "asin", asin, "err", err)
		}
	}
	if c.Providers.Audible != nil {
		m, err := c.Providers.Audible.Scrape(ctx, c.Providers.Audible.ProductURL(asin))
		if err == nil {
			m.ASIN = asin
			return m
		}
		if !errors.Is(err, audible.ErrNotFound) {
			slog.DebugContext(ctx, "audible scrape", "asin", asin, "err", err)
		}
	}
	return nil
}

// resolveRating gathers rating samples, verifies thin catalog counts
// against the retail page, and folds the aggregate into the
// description.
func (c *Config) resolveRating(ctx context.Context, q book.Query, meta *book.Meta) {
	c.verifyThinRating(ctx, meta)

	var samples []ratings.Sample
	var votes int
	if meta.Rating > 0 {
		samples = append(samples, ratings.Sample{Source: sourceDisplayName(meta.Source), Rating: meta.Rating, Votes: meta.RatingCount})
		votes += meta.RatingCount
	}
	for _, src := range c.Providers.Ratings {
		// enough votes already, skip the slower scraped sources
		if votes >= ratings.VoteThreshold {
			break
		}
		sample, err := src.Lookup(ctx, q)
		if err != nil {
			if !errors.Is(err, ratings.ErrNoRating) {
				slog.DebugContext(ctx, "rating lookup", "source", src.Name(), "query", q, "err", err)
			}
			continue
		}
		samples = append(samples, sample)
		votes += sample.Votes
	}

	rating, total, breakdown := ratings.Aggregate(samples)
	if rating == 0 {
		return
	}
	meta.Rating = rating
	meta.RatingCount = total
	meta.Description = ratings.UpsertHeader(meta.Description, breakdown)
}

// verifyThinRating cross-checks a low catalog vote count against the
// retail page, which aggregates more editions, and keeps the larger
// sample.
func (c *Config) verifyThinRating(ctx context.Context, meta *book.Meta) {
	if c.Providers.Audible == nil || meta.ASIN == "" {
		return
	}
	// the catalog API often reports a rating without any vote count, so
	// a count of zero is the common case, not a reason to skip
	if meta.Rating == 0 || meta.RatingCount >= ratings.VoteThreshold {
		return
	}
	scraped, err := c.Providers.Audible.Scrape(ctx, c.Providers.Audible.ProductURL(meta.ASIN))
	if err != nil {
		return
	}
	if scraped.Rating > 0 && scraped.RatingCount > meta.RatingCount {
		meta.Rating = scraped.Rating
		meta.RatingCount = scraped.RatingCount
	}
}

func sourceDisplayName(source string) string {
	switch source {
	case "audnexus", "audible":
		return "Audible"
	case "google_books":
		return "Google Books"
	}
	return source
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}
