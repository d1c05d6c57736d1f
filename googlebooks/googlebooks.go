// Package googlebooks queries the Google Books volumes API, an
// independent bibliographic source used for enrichment and as a last
// resort when the audiobook-specific providers fail.
package googlebooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.senan.xyz/booktag/book"
	"go.senan.xyz/booktag/clientutil"
)

var ErrNoResults = errors.New("no results")

type Client struct {
	BaseURL   string
	APIKey    string
	RateLimit time.Duration

	initOnce   sync.Once
	HTTPClient *http.Client
}

type volumesResponse struct {
	Items []struct {
		VolumeInfo struct {
			Title               string   `json:"title"`
			Subtitle            string   `json:"subtitle"`
			Authors             []string `json:"authors"`
			Publisher           string   `json:"publisher"`
			PublishedDate       string   `json:"publishedDate"`
			Description         string   `json:"description"`
			Categories          []string `json:"categories"`
			Language            string   `json:"language"`
			AverageRating       float64  `json:"averageRating"`
			RatingsCount        int      `json:"ratingsCount"`
			InfoLink            string   `json:"infoLink"`
			IndustryIdentifiers []struct {
				Type       string `json:"type"`
				Identifier string `json:"identifier"`
			} `json:"industryIdentifiers"`
			ImageLinks struct {
				SmallThumbnail string `json:"smallThumbnail"`
				Thumbnail      string `json:"thumbnail"`
			} `json:"imageLinks"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

// Search looks up the best volume for a query using field-scoped
// search terms.
func (c *Client) Search(ctx context.Context, q book.Query) (*book.Meta, error) {
	c.initOnce.Do(func() {
		if c.BaseURL == "" {
			c.BaseURL = `https://www.googleapis.com/books/v1`
		}
		c.HTTPClient = clientutil.Wrap(c.HTTPClient, clientutil.Chain(
			clientutil.WithRateLimit(c.RateLimit),
		))
	})

	if q.Title == "" {
		return nil, ErrNoResults
	}

	parts := []string{fmt.Sprintf("intitle:%q", q.Title)}
	if q.Author != "" {
		parts = append(parts, fmt.Sprintf("inauthor:%q", q.Author))
	}

	urlV := url.Values{}
	urlV.Set("q", strings.Join(parts, " "))
	urlV.Set("maxResults", "1")
	urlV.Set("printType", "books")
	if c.APIKey != "" {
		urlV.Set("key", c.APIKey)
	}

	u, _ := url.Parse(c.BaseURL)
	u = u.JoinPath("volumes")
	u.RawQuery = urlV.Encode()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("req volumes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, ErrNoResults
	}

	var data volumesResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(data.Items) == 0 {
		return nil, ErrNoResults
	}
	vi := data.Items[0].VolumeInfo

	var meta book.Meta
	meta.Title = book.NormSpace(vi.Title)
	meta.Subtitle = book.NormSpace(vi.Subtitle)
	meta.Authors = book.UniqCI(vi.Authors)
	meta.Publisher = book.NormSpace(vi.Publisher)
	meta.PublishedDate = book.NormSpace(vi.PublishedDate)
	meta.Description = book.ShortenDescription(vi.Description)
	meta.Genres = book.SplitGenres(vi.Categories)
	meta.Language = book.NormSpace(vi.Language)
	meta.Rating = vi.AverageRating
	meta.RatingCount = vi.RatingsCount
	meta.Source = "google_books"
	meta.SourceURL = vi.InfoLink

	for _, id := range vi.IndustryIdentifiers {
		switch id.Type {
		case "ISBN_10":
			meta.ISBN10 = id.Identifier
		case "ISBN_13":
			meta.ISBN13 = id.Identifier
		}
	}

	if cover := firstNonEmpty(vi.ImageLinks.Thumbnail, vi.ImageLinks.SmallThumbnail); cover != "" {
		// curl-page-effect thumbnails look bad as covers
		meta.CoverURL = strings.ReplaceAll(cover, "&edge=curl", "")
	}

	return &meta, nil
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}
