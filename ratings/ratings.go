// Package ratings collects star ratings for a book from scraped retail
// and community sites, and combines them into one damped figure.
package ratings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"go.senan.xyz/booktag/book"
	"go.senan.xyz/booktag/clientutil"
	"go.senan.xyz/booktag/websearch"
)

var ErrNoRating = errors.New("no rating found")

// Sample is one provider's rating answer.
type Sample struct {
	Source string  `json:"source"`
	Rating float64 `json:"rating"`
	Votes  int     `json:"count"`
}

// Source looks up one site's rating for a book.
type Source interface {
	Name() string
	Lookup(ctx context.Context, q book.Query) (Sample, error)
}

// search results whose title carries one of these are derivative works
// (study guides and the like), not the book itself. they are only
// allowed through when the query itself asks for one.
var derivativeMarkers = []string{
	"summary", "analysis", "study guide", "workbook", "key takeaways", "companion to",
}

func isDerivative(title string, q book.Query) bool {
	title = strings.ToLower(title)
	query := strings.ToLower(q.String())
	for _, marker := range derivativeMarkers {
		if strings.Contains(title, marker) && !strings.Contains(query, marker) {
			return true
		}
	}
	return false
}

var (
	selectLDJSON         = cascadia.MustCompile(`script[type="application/ld+json"]`)
	selectMetaRating     = cascadia.MustCompile(`meta[itemprop="ratingValue"]`)
	selectMetaCount      = cascadia.MustCompile(`meta[itemprop="ratingCount"]`)
	selectGRBookTitle    = cascadia.MustCompile(`a.bookTitle`)
	selectGRRating       = cascadia.MustCompile(`div.RatingStatistics__rating`)
	selectAmazonStars    = cascadia.MustCompile(`span.a-icon-alt`)
	selectAmazonReviewsN = cascadia.MustCompile(`span#acrCustomerReviewText`)
)

var (
	outOfFiveExpr = regexp.MustCompile(`(?i)(\d\.?\d*)\s*out of\s*5`)
	countExpr     = regexp.MustCompile(`(?i)([\d,]+)\s*ratings?`)
)

// extractRating pulls (rating, votes) from a detail page using an
// ordered strategy: structured data block, then meta tags, then
// visible markup. First hit wins.
func extractRating(node *html.Node) (float64, int, bool) {
	if rating, votes, ok := ldJSONRating(node); ok {
		return rating, votes, true
	}

	if m := cascadia.Query(node, selectMetaRating); m != nil {
		if rating, err := strconv.ParseFloat(attr(m, "content"), 64); err == nil && rating > 0 {
			var votes int
			if c := cascadia.Query(node, selectMetaCount); c != nil {
				votes = parseCount(attr(c, "content"))
			}
			return rating, votes, true
		}
	}

	var rating float64
	if d := cascadia.Query(node, selectGRRating); d != nil {
		rating, _ = strconv.ParseFloat(nodeText(d), 64)
	}
	if rating == 0 {
		for _, s := range cascadia.QueryAll(node, selectAmazonStars) {
			if m := outOfFiveExpr.FindStringSubmatch(nodeText(s)); m != nil {
				rating, _ = strconv.ParseFloat(m[1], 64)
				break
			}
		}
	}
	if rating == 0 {
		return 0, 0, false
	}

	var votes int
	if c := cascadia.Query(node, selectAmazonReviewsN); c != nil {
		votes = parseCount(nodeText(c))
	}
	if votes == 0 {
		if m := countExpr.FindStringSubmatch(allText(node)); m != nil {
			votes = parseCount(m[1])
		}
	}
	return rating, votes, true
}

func ldJSONRating(node *html.Node) (float64, int, bool) {
	type agg struct {
		RatingValue json.RawMessage `json:"ratingValue"`
		RatingCount int             `json:"ratingCount"`
		ReviewCount int             `json:"reviewCount"`
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
			if b.AggregateRating == nil {
				continue
			}
			rating := parseAnyFloat(b.AggregateRating.RatingValue)
			if rating == 0 {
				continue
			}
			votes := b.AggregateRating.RatingCount
			if votes == 0 {
				votes = b.AggregateRating.ReviewCount
			}
			return rating, votes, true
		}
	}
	return 0, 0, false
}

// Goodreads searches the site directly and scrapes the first matching
// book page.
type Goodreads struct {
	BaseURL   string
	RateLimit time.Duration

	initOnce   sync.Once
	HTTPClient *http.Client
}

func (g *Goodreads) Name() string { return "Goodreads" }

func (g *Goodreads) Lookup(ctx context.Context, q book.Query) (Sample, error) {
	g.initOnce.Do(func() {
		if g.BaseURL == "" {
			g.BaseURL = `https://www.goodreads.com`
		}
		g.HTTPClient = clientutil.Wrap(g.HTTPClient, clientutil.Chain(
			clientutil.WithRateLimit(g.RateLimit),
		))
	})

	u, _ := url.Parse(g.BaseURL)
	u = u.JoinPath("search")
	urlV := url.Values{}
	urlV.Set("q", q.String())
	u.RawQuery = urlV.Encode()

	node, err := fetchPage(ctx, g.HTTPClient, u.String())
	if err != nil {
		return Sample{}, err
	}

	var pageURL string
	for _, a := range cascadia.QueryAll(node, selectGRBookTitle) {
		if isDerivative(nodeText(a), q) {
			continue
		}
		href := attr(a, "href")
		if href == "" {
			continue
		}
		if !strings.HasPrefix(href, "http") {
			href = g.BaseURL + href
		}
		pageURL = href
		break
	}
	if pageURL == "" {
		return Sample{}, ErrNoRating
	}

	page, err := fetchPage(ctx, g.HTTPClient, pageURL)
	if err != nil {
		return Sample{}, err
	}
	rating, votes, ok := extractRating(page)
	if !ok {
		return Sample{}, ErrNoRating
	}
	return Sample{Source: g.Name(), Rating: rating, Votes: votes}, nil
}

// Amazon has no usable direct search, so candidate pages come from a
// site-scoped web search.
type Amazon struct {
	Search    *websearch.DuckDuckGo
	Site      string
	RateLimit time.Duration

	initOnce   sync.Once
	HTTPClient *http.Client
}

func (a *Amazon) Name() string { return "Amazon" }

func (a *Amazon) Lookup(ctx context.Context, q book.Query) (Sample, error) {
	a.initOnce.Do(func() {
		if a.Site == "" {
			a.Site = "amazon.com"
		}
		a.HTTPClient = clientutil.Wrap(a.HTTPClient, clientutil.Chain(
			clientutil.WithRateLimit(a.RateLimit),
		))
	})

	urls, err := a.Search.Search(ctx, q.String()+" book", a.Site, 3)
	if errors.Is(err, websearch.ErrNoResults) {
		return Sample{}, ErrNoRating
	} else if err != nil {
		return Sample{}, fmt.Errorf("search: %w", err)
	}

	for _, pageURL := range urls {
		page, err := fetchPage(ctx, a.HTTPClient, pageURL)
		if err != nil {
			continue
		}
		if title := nodeText(cascadia.Query(page, cascadia.MustCompile("title"))); isDerivative(title, q) {
			continue
		}
		if rating, votes, ok := extractRating(page); ok {
			return Sample{Source: a.Name(), Rating: rating, Votes: votes}, nil
		}
	}
	return Sample{}, ErrNoRating
}

func fetchPage(ctx context.Context, client *http.Client, pageURL string) (*html.Node, error) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("req page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, ErrNoRating
	}
	node, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return node, nil
}

func parseCount(s string) int {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	s = strings.TrimSuffix(strings.ToLower(s), " ratings")
	s = strings.TrimSuffix(s, " rating")
	n, _ := strconv.Atoi(strings.Fields(s + " ")[0])
	return n
}

func parseAnyFloat(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0
	}
	f, _ = strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
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

func allText(n *html.Node) string {
	var sb strings.Builder
	iterText(n, func(s string) {
		sb.WriteString(s)
		sb.WriteString(" ")
	})
	return sb.String()
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
