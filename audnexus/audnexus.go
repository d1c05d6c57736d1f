// Package audnexus looks up audiobooks by ASIN against the Audnexus
// aggregation API, the cleanest metadata source we have.
package audnexus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/araddon/dateparse"

	"go.senan.xyz/booktag/book"
	"go.senan.xyz/booktag/clientutil"
)

var ErrNotFound = errors.New("not found")

type Client struct {
	BaseURL   string
	RateLimit time.Duration

	initOnce   sync.Once
	HTTPClient *http.Client
}

type payload struct {
	ASIN        string `json:"asin"`
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle"`
	Description string `json:"description"`
	Summary     string `json:"summary"`
	Authors     []struct {
		Name string `json:"name"`
	} `json:"authors"`
	Narrators []struct {
		Name string `json:"name"`
	} `json:"narrators"`
	Genres []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"genres"`
	SeriesPrimary struct {
		Name     string `json:"name"`
		Position string `json:"position"`
	} `json:"seriesPrimary"`
	PublisherName string          `json:"publisherName"`
	ReleaseDate   string          `json:"releaseDate"`
	Language      string          `json:"language"`
	Image         string          `json:"image"`
	Rating        json.RawMessage `json:"rating"`
	ISBN          string          `json:"isbn"`
}

// GetBook fetches one book by its ASIN. A 404 is ErrNotFound, not a
// failure.
func (c *Client) GetBook(ctx context.Context, asin string) (*book.Meta, error) {
	c.initOnce.Do(func() {
		if c.BaseURL == "" {
			c.BaseURL = `https://api.audnex.us`
		}
		c.HTTPClient = clientutil.Wrap(c.HTTPClient, clientutil.Chain(
			clientutil.WithRateLimit(c.RateLimit),
		))
	})

	u, _ := url.Parse(c.BaseURL)
	u = u.JoinPath("books", asin)

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("req book: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, ErrNotFound
	}

	var data payload
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if data.Title == "" {
		return nil, ErrNotFound
	}

	var meta book.Meta
	meta.Title = book.NormSpace(data.Title)
	meta.Subtitle = book.NormSpace(data.Subtitle)
	meta.Description = book.ShortenDescription(firstNonEmpty(data.Description, data.Summary))
	for _, a := range data.Authors {
		meta.Authors = append(meta.Authors, a.Name)
	}
	for _, n := range data.Narrators {
		meta.Narrators = append(meta.Narrators, n.Name)
	}
	meta.Authors = book.UniqCI(meta.Authors)
	meta.Narrators = book.UniqCI(meta.Narrators)

	// each genre entry is classified genre vs tag by its type field,
	// and exploded into atomic tokens either way
	var genres, tags []string
	for _, g := range data.Genres {
		switch strings.ToLower(book.NormSpace(g.Type)) {
		case "genre":
			genres = append(genres, g.Name)
		default:
			tags = append(tags, g.Name)
		}
	}
	meta.Genres = book.SplitGenres(genres)
	meta.Tags = book.SplitGenres(tags)

	meta.Grouping = book.NormSpace(data.SeriesPrimary.Name)
	meta.Publisher = book.NormSpace(data.PublisherName)
	meta.PublishedDate = normalizeDate(data.ReleaseDate)
	meta.Language = book.NormSpace(data.Language)
	meta.CoverURL = data.Image
	meta.Rating = parseRating(data.Rating)
	meta.ISBN13 = data.ISBN
	meta.ASIN = asin
	meta.Source = "audnexus"
	meta.SourceURL = "https://www.audible.com/pd/" + asin

	return &meta, nil
}

// the API serves rating sometimes as a JSON string, sometimes a number.
func parseRating(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var asNum float64
	if err := json.Unmarshal(raw, &asNum); err == nil {
		return asNum
	}
	var asStr string
	if err := json.Unmarshal(raw, &asStr); err != nil {
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(asStr), 64)
	if err != nil {
		return 0
	}
	return f
}

func normalizeDate(raw string) string {
	if raw == "" {
		return ""
	}
	t, err := dateparse.ParseAny(raw)
	if err != nil {
		return book.NormSpace(raw)
	}
	return t.Format(time.DateOnly)
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}
