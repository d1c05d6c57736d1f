// Package websearch finds candidate product pages through a general
// web search engine, for providers whose own search is unreliable.
package websearch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"go.senan.xyz/booktag/clientutil"
)

var ErrNoResults = errors.New("no results")

var ddgSelectResult = cascadia.MustCompile(`a.result__a`)

type DuckDuckGo struct {
	BaseURL   string
	RateLimit time.Duration

	initOnce   sync.Once
	HTTPClient *http.Client
}

// Search runs a site-scoped query and returns result URLs belonging to
// that site, best first, at most limit.
func (d *DuckDuckGo) Search(ctx context.Context, query, site string, limit int) ([]string, error) {
	d.initOnce.Do(func() {
		if d.BaseURL == "" {
			d.BaseURL = `https://html.duckduckgo.com/html/`
		}
		d.HTTPClient = clientutil.Wrap(d.HTTPClient, clientutil.Chain(
			clientutil.WithRateLimit(d.RateLimit),
		))
	})

	form := url.Values{}
	form.Set("q", fmt.Sprintf("%s site:%s", query, site))

	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, d.BaseURL, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("req results: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, ErrNoResults
	}

	node, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse results: %w", err)
	}

	var urls []string
	for _, a := range cascadia.QueryAll(node, ddgSelectResult) {
		if limit > 0 && len(urls) >= limit {
			break
		}
		href := attr(a, "href")
		href = resolveRedirect(href)
		if href == "" || !strings.Contains(href, site) {
			continue
		}
		urls = append(urls, href)
	}
	if len(urls) == 0 {
		return nil, ErrNoResults
	}
	return urls, nil
}

// result links are sometimes wrapped in a redirect with the real
// target in the uddg param.
func resolveRedirect(href string) string {
	if !strings.Contains(href, "duckduckgo.com/l/") {
		return href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return ""
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
