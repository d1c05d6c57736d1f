// Package audible resolves books against the Audible retail site, both
// through its own search (to find an ASIN for the catalog API) and by
// scraping product pages directly when the API has no answer.
package audible

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/araddon/dateparse"
	"golang.org/x/net/html"

	"go.senan.xyz/booktag/book"
	"go.senan.xyz/booktag/clientutil"
)

var ErrNotFound = errors.New("not found")

type StatusError int

func (s StatusError) Error() string {
	return fmt.Sprintf("status %d", int(s))
}

var (
	selectSearchResult = cascadia.MustCompile(`a[href*="/pd/"]`)
	selectTitleSlot    = cascadia.MustCompile(`h1[slot="title"]`)
	selectTitleHeading = cascadia.MustCompile(`h1.bc-heading`)
	selectMetadataJSON = cascadia.MustCompile(`adbl-product-metadata script[type="application/json"]`)
	selectLDJSON       = cascadia.MustCompile(`script[type="application/ld+json"]`)
	selectAuthorLinks  = cascadia.MustCompile(`.authorLabel a`)
	selectNarratorLink = cascadia.MustCompile(`.narratorLabel a`)
	selectMetaDesc     = cascadia.MustCompile(`meta[name="description"]`)
	selectDescDiv      = cascadia.MustCompile(`div[class*="productDescription"]`)
	selectCategoryLink = cascadia.MustCompile(`.categoriesLabel a`)
	selectPublisher    = cascadia.MustCompile(`.publisherLabel a`)
	selectReleaseDate  = cascadia.MustCompile(`.releaseDateLabel`)
	selectProductImage = cascadia.MustCompile(`adbl-product-image img`)
	selectInsetImage   = cascadia.MustCompile(`img.bc-image-inset-border`)
)

// ordered product URL patterns, path-embedded form first.
var asinExprs = []*regexp.Regexp{
	regexp.MustCompile(`/pd/[^/]+/([A-Z0-9]{10})`),
	regexp.MustCompile(`/dp/([A-Z0-9]{10})`),
	regexp.MustCompile(`/([A-Z0-9]{10})(?:[/?#]|$)`),
}

// ExtractASIN pulls the 10 character catalog ID out of a product URL,
// or returns "" when the URL has none.
func ExtractASIN(rawURL string) string {
	for _, expr := range asinExprs {
		if m := expr.FindStringSubmatch(rawURL); m != nil {
			return m[1]
		}
	}
	return ""
}

type Client struct {
	BaseURL   string
	RateLimit time.Duration

	initOnce   sync.Once
	HTTPClient *http.Client
}

func (c *Client) init() {
	c.initOnce.Do(func() {
		if c.BaseURL == "" {
			c.BaseURL = `https://www.audible.com`
		}
		c.HTTPClient = clientutil.Wrap(c.HTTPClient, clientutil.Chain(
			clientutil.WithRateLimit(c.RateLimit),
		))
	})
}

// FindASIN searches the site for "title author" and returns the ASIN
// and product URL of the first result. ErrNotFound covers both empty
// results and the site refusing us.
func (c *Client) FindASIN(ctx context.Context, q book.Query) (string, string, error) {
	c.init()

	if q.Title == "" {
		return "", "", ErrNotFound
	}

	u, _ := url.Parse(c.BaseURL)
	u = u.JoinPath("search")
	urlV := url.Values{}
	urlV.Set("keywords", q.String())
	u.RawQuery = urlV.Encode()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("req search: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return "", "", ErrNotFound
	case resp.StatusCode/100 != 2:
		return "", "", fmt.Errorf("search: %w", StatusError(resp.StatusCode))
	}

	node, err := html.Parse(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("parse search: %w", err)
	}

	a := cascadia.Query(node, selectSearchResult)
	if a == nil {
		return "", "", ErrNotFound
	}

	href := attr(a, "href")
	if !strings.HasPrefix(href, "http") {
		href = c.BaseURL + href
	}
	asin := ExtractASIN(href)
	if asin == "" {
		return "", "", ErrNotFound
	}
	return asin, href, nil
}

// ProductURL is the canonical page for an ASIN.
func (c *Client) ProductURL(asin string) string {
	c.init()
	return c.BaseURL + "/pd/" + asin
}

// Scrape reads a product page directly. Structured data blocks are
// preferred, page markup is the fallback.
func (c *Client) Scrape(ctx context.Context, pageURL string) (*book.Meta, error) {
	c.init()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("req page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, ErrNotFound
	}

	node, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	title := nodeText(cascadia.Query(node, selectTitleSlot))
	if title == "" {
		title = nodeText(cascadia.Query(node, selectTitleHeading))
	}
	if title == "" {
		return nil, ErrNotFound
	}

	var meta book.Meta
	meta.Title = title
	meta.Source = "audible_scrape"
	meta.SourceURL = pageURL
	meta.ASIN = ExtractASIN(pageURL)

	if script := cascadia.Query(node, selectMetadataJSON); script != nil {
		var data struct {
			Authors   []struct{ Name string } `json:"authors"`
			Narrators []struct{ Name string } `json:"narrators"`
		}
		if err := json.Unmarshal([]byte(nodeText(script)), &data); err == nil {
			for _, a := range data.Authors {
				meta.Authors = append(meta.Authors, a.Name)
			}
			for _, n := range data.Narrators {
				meta.Narrators = append(meta.Narrators, n.Name)
			}
		}
	}
	if len(meta.Authors) == 0 {
		for _, a := range cascadia.QueryAll(node, selectAuthorLinks) {
			meta.Authors = append(meta.Authors, nodeText(a))
		}
	}
	if len(meta.Narrators) == 0 {
		for _, n := range cascadia.QueryAll(node, selectNarratorLink) {
			meta.Narrators = append(meta.Narrators, nodeText(n))
		}
	}
	meta.Authors = book.UniqCI(meta.Authors)
	meta.Narrators = book.UniqCI(meta.Narrators)

	var desc string
	if m := cascadia.Query(node, selectMetaDesc); m != nil {
		desc = attr(m, "content")
	} else if d := cascadia.Query(node, selectDescDiv); d != nil {
		desc = nodeText(d)
	}
	if _, after, ok := strings.Cut(desc, "Publisher's Summary"); ok {
		desc = after
	}
	meta.Description = book.ShortenDescription(desc)

	var genres []string
	for _, g := range cascadia.QueryAll(node, selectCategoryLink) {
		if name := nodeText(g); !strings.EqualFold(name, "audiobook") {
			genres = append(genres, name)
		}
	}
	meta.Genres = book.SplitGenres(genres)

	if p := cascadia.Query(node, selectPublisher); p != nil {
		meta.Publisher = nodeText(p)
	}
	if d := cascadia.Query(node, selectReleaseDate); d != nil {
		if _, after, ok := strings.Cut(nodeText(d), "Release date:"); ok {
			meta.PublishedDate = normalizeDate(strings.TrimSpace(after))
		}
	}

	if img := cascadia.Query(node, selectProductImage); img != nil {
		meta.CoverURL = attr(img, "src")
	} else if img := cascadia.Query(node, selectInsetImage); img != nil {
		meta.CoverURL = attr(img, "src")
	}

	if rating, count, ok := aggregateRating(node); ok {
		meta.Rating = rating
		meta.RatingCount = count
	}

	return &meta, nil
}

// aggregateRating pulls rating and vote count from any embedded
// structured data block carrying an aggregateRating.
func aggregateRating(node *html.Node) (float64, int, bool) {
	type agg struct {
		RatingValue float64 `json:"ratingValue"`
		RatingCount int     `json:"ratingCount"`
		ReviewCount int     `json:"reviewCount"`
	}
	for _, script := range cascadia.QueryAll(node, selectLDJSON) {
		raw := []byte(nodeText(script))

		var blocks []struct {
			AggregateRating *agg `json:"aggregateRating"`
		}
		if err := json.Unmarshal(raw, &blocks); err != nil {
			var single struct {
				AggregateRating *agg `json:"aggregateRating"`
			}
			if err := json.Unmarshal(raw, &single); err != nil {
				continue
			}
			blocks = append(blocks, single)
		}
		for _, b := range blocks {
			if b.AggregateRating == nil || b.AggregateRating.RatingValue == 0 {
				continue
			}
			count := b.AggregateRating.RatingCount
			if count == 0 {
				count = b.AggregateRating.ReviewCount
			}
			return b.AggregateRating.RatingValue, count, true
		}
	}
	return 0, 0, false
}

func normalizeDate(raw string) string {
	t, err := dateparse.ParseAny(raw)
	if err != nil {
		return raw
	}
	return t.Format(time.DateOnly)
}

func nodeText(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	iterText(n, func(s string) {
		sb.WriteString(s)
	})
	return book.NormSpace(sb.String())
}

func iterText(n *html.Node, f func(string)) {
	if n.Type == html.TextNode {
		f(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		iterText(c, f)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
