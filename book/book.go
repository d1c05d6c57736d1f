// Package book defines the common audiobook metadata shape that all
// providers resolve into, and the rules for combining partial answers
// from several of them.
package book

import (
	"regexp"
	"strings"
)

// Meta is one provider's answer for a book. List fields are
// case-insensitively deduplicated with first-seen order preserved, and
// genre/tag strings are atomic tokens.
type Meta struct {
	Title         string   `json:"title"`
	Subtitle      string   `json:"subtitle,omitempty"`
	Authors       []string `json:"authors,omitempty"`
	Narrators     []string `json:"narrators,omitempty"`
	Publisher     string   `json:"publisher,omitempty"`
	PublishedDate string   `json:"published_date,omitempty"`
	Language      string   `json:"language,omitempty"`
	Description   string   `json:"description,omitempty"`
	Genres        []string `json:"genres,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	ISBN10        string   `json:"isbn10,omitempty"`
	ISBN13        string   `json:"isbn13,omitempty"`
	Rating        float64  `json:"rating,omitempty"`
	RatingCount   int      `json:"rating_count,omitempty"`
	Grouping      string   `json:"grouping,omitempty"`
	Source        string   `json:"source,omitempty"`
	SourceURL     string   `json:"source_url,omitempty"`
	CoverURL      string   `json:"cover_url,omitempty"`
	ASIN          string   `json:"asin,omitempty"`
}

// Query is what we know about a book before asking anyone. Author may
// be empty.
type Query struct {
	Title  string
	Author string
}

func (q Query) String() string {
	if q.Author == "" {
		return q.Title
	}
	return q.Title + " " + q.Author
}

var spaceExpr = regexp.MustCompile(`\s+`)

func NormSpace(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	s = spaceExpr.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// UniqCI dedupes case-insensitively, keeping first-seen order and
// dropping empties.
func UniqCI(values []string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, v := range values {
		v = NormSpace(v)
		if v == "" {
			continue
		}
		k := strings.ToLower(v)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}

const descriptionLimit = 900

func ShortenDescription(s string) string {
	s = NormSpace(s)
	if len(s) <= descriptionLimit {
		return s
	}
	return strings.TrimRight(s[:descriptionLimit], " ") + "..."
}

var genreSepExpr = regexp.MustCompile(`\s*(?:&|,|\band\b)\s*`)

// SplitGenres explodes raw provider genre strings on conjunctions so
// that "Science Fiction & Fantasy" becomes two atomic tokens.
func SplitGenres(raw []string) []string {
	var out []string
	for _, g := range raw {
		for _, part := range genreSepExpr.Split(g, -1) {
			if part = NormSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return UniqCI(out)
}

// Merge combines two provider answers, primary winning on scalar
// conflicts. It is meant to be folded left to right over candidates in
// discovery order.
func Merge(primary, secondary Meta) Meta {
	var m Meta
	m.Title = firstNonEmpty(primary.Title, secondary.Title)
	m.Subtitle = firstNonEmpty(primary.Subtitle, secondary.Subtitle)
	m.Authors = UniqCI(append(append([]string{}, primary.Authors...), secondary.Authors...))
	m.Narrators = UniqCI(append(append([]string{}, primary.Narrators...), secondary.Narrators...))
	m.Publisher = firstNonEmpty(primary.Publisher, secondary.Publisher)
	m.PublishedDate = firstNonEmpty(primary.PublishedDate, secondary.PublishedDate)
	m.Language = firstNonEmpty(primary.Language, secondary.Language)
	m.Description = chooseDescription(primary.Description, secondary.Description)
	m.Genres = SplitGenres(append(append([]string{}, primary.Genres...), secondary.Genres...))
	m.Tags = UniqCI(append(append([]string{}, primary.Tags...), secondary.Tags...))
	m.ISBN10 = firstNonEmpty(primary.ISBN10, secondary.ISBN10)
	m.ISBN13 = firstNonEmpty(primary.ISBN13, secondary.ISBN13)
	m.Grouping = firstNonEmpty(primary.Grouping, secondary.Grouping)
	m.SourceURL = firstNonEmpty(primary.SourceURL, secondary.SourceURL)
	m.CoverURL = firstNonEmpty(primary.CoverURL, secondary.CoverURL)
	m.ASIN = firstNonEmpty(primary.ASIN, secondary.ASIN)

	// rating and count travel together
	if primary.Rating > 0 {
		m.Rating, m.RatingCount = primary.Rating, primary.RatingCount
	} else {
		m.Rating, m.RatingCount = secondary.Rating, secondary.RatingCount
	}

	switch {
	case primary.Source == "":
		m.Source = secondary.Source
	case secondary.Source == "" || primary.Source == secondary.Source:
		m.Source = primary.Source
	default:
		m.Source = primary.Source + "+" + secondary.Source
	}
	return m
}

// chooseDescription keeps the longest description that looks English.
// A longer non-English description loses to a shorter English one.
func chooseDescription(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	aEng, bEng := IsLikelyEnglish(a), IsLikelyEnglish(b)
	switch {
	case aEng && !bEng:
		return a
	case bEng && !aEng:
		return b
	case len(b) > len(a):
		return b
	}
	return a
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}
