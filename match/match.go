// Package match scores how likely a provider candidate is the same
// book as a local query. Scores are in [0,1] and compared against two
// thresholds: one to accept a match for tagging, and a lower one below
// which a directory is marked permanently low confidence.
package match

import (
	"regexp"
	"slices"
	"strings"

	"github.com/rainycape/unidecode"
	"github.com/sergi/go-diff/diffmatchpatch"
	"golang.org/x/text/unicode/norm"

	"go.senan.xyz/booktag/book"
)

const (
	AcceptThreshold        = 0.85
	LowConfidenceThreshold = 0.50
)

const (
	titleWeight  = 0.6
	authorWeight = 0.4
)

// narrator annotation in an author tag is not a mismatch signal.
var narratorPhrases = []string{"as read by", "narrated by", "read by", "performed by", "voice"}

// edition annotations are almost as safe, scored just below narrator.
var editionPhrases = []string{"unabridged", "full cast", "annotated"}

// Score rates a candidate against a query. Zero when either side has
// no title. When the query has no author the title carries the whole
// score, with no penalty.
func Score(q book.Query, m book.Meta) float64 {
	if q.Title == "" || m.Title == "" {
		return 0
	}

	titleSim := titleSimilarity(q.Title, m.Title)

	if q.Author == "" || len(m.Authors) == 0 {
		return titleSim
	}
	authorSim := authorSimilarity(q.Author, m.Authors)

	return titleWeight*titleSim + authorWeight*authorSim
}

func titleSimilarity(a, b string) float64 {
	na, nb := strings.ToLower(NormalizeTitle(a)), strings.ToLower(NormalizeTitle(b))
	if na == "" || nb == "" {
		return 0
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return 1
	}

	// handles "Series - Title" against plain "Title"
	for _, ca := range titleComponents(a) {
		if slices.Contains(titleComponents(b), ca) {
			return 1
		}
	}

	direct := ratio(na, nb)
	sorted := ratio(sortTokens(na), sortTokens(nb))
	return max(direct, sorted, intersectSimilarity(na, nb))
}

func authorSimilarity(queryAuthor string, authors []string) float64 {
	lower := strings.ToLower(queryAuthor)
	for _, p := range narratorPhrases {
		if strings.Contains(lower, p) {
			return 1
		}
	}
	for _, p := range editionPhrases {
		if strings.Contains(lower, p) {
			return 0.95
		}
	}

	qTokens := authorTokens(queryAuthor)
	cTokens := map[string]struct{}{}
	for _, a := range authors {
		for _, t := range authorTokens(a) {
			cTokens[t] = struct{}{}
		}
	}

	if len(qTokens) > 0 {
		all := true
		for _, t := range qTokens {
			if _, ok := cTokens[t]; !ok {
				all = false
				break
			}
		}
		if all {
			return 1
		}
	}

	joined := strings.ToLower(NormalizeAuthor(strings.Join(authors, ", ")))
	return ratio(strings.ToLower(NormalizeAuthor(queryAuthor)), joined)
}

var (
	parentheticalExpr = regexp.MustCompile(`\s*[\(\[][^\)\]]*[\)\]]\s*`)
	editionExpr       = regexp.MustCompile(`(?i),[^,]*\bedition\b`)
	discExpr          = regexp.MustCompile(`(?i)\s*(?:Disc|Disk|CD)\s*\d+\s*`)
	articleExpr       = regexp.MustCompile(`(?i)^(?:The|A|An)\s+`)
	initialsExpr      = regexp.MustCompile(`([A-Z])\. ([A-Z])\.`)
)

var ordinalReplacer = strings.NewReplacer(
	"1st", "first", "2nd", "second", "3rd", "third", "4th", "fourth",
	"5th", "fifth", "6th", "sixth", "7th", "seventh", "8th", "eighth",
	"9th", "ninth", "10th", "tenth",
)

// NormalizeTitle strips edition and packaging noise from a title so
// that only its identity is left. It is idempotent.
func NormalizeTitle(title string) string {
	title = unidecode.Unidecode(norm.NFC.String(title))
	for {
		next := normalizeTitleOnce(title)
		if next == title {
			return title
		}
		title = next
	}
}

func normalizeTitleOnce(title string) string {
	if i := strings.Index(title, ":"); i >= 0 {
		title = title[:i]
	} else if i := strings.Index(title, " - "); i >= 0 {
		title = title[:i]
	}
	title = parentheticalExpr.ReplaceAllString(title, " ")
	title = editionExpr.ReplaceAllString(title, "")
	title = discExpr.ReplaceAllString(title, " ")
	title = articleExpr.ReplaceAllString(title, "")
	title = ordinalReplacer.Replace(title)
	return book.NormSpace(title)
}

// NormalizeAuthor collapses spaced initials so that "George R. R.
// Martin" and "George R.R. Martin" compare equal.
func NormalizeAuthor(author string) string {
	author = unidecode.Unidecode(norm.NFC.String(author))
	for {
		next := initialsExpr.ReplaceAllString(author, "$1.$2.")
		if next == author {
			return book.NormSpace(author)
		}
		author = next
	}
}

var degreeSuffixes = map[string]struct{}{
	"phd": {}, "ph.d": {}, "ph.d.": {}, "md": {}, "m.d": {}, "m.d.": {},
	"ma": {}, "m.a": {}, "m.a.": {}, "mba": {}, "jd": {}, "dds": {},
	"esq": {}, "esq.": {}, "msc": {}, "bsc": {},
}

func authorTokens(s string) []string {
	s = strings.ToLower(NormalizeAuthor(s))
	s = strings.ReplaceAll(s, " and ", ",")
	var tokens []string
	for _, t := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '&' || r == '/' || r == '\\'
	}) {
		if t = stripDegrees(strings.TrimSpace(t)); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

func stripDegrees(name string) string {
	words := strings.Fields(name)
	for len(words) > 0 {
		if _, ok := degreeSuffixes[strings.TrimSuffix(words[len(words)-1], ",")]; !ok {
			break
		}
		words = words[:len(words)-1]
	}
	if len(words) > 0 && (words[0] == "dr" || words[0] == "dr.") {
		words = words[1:]
	}
	return strings.Join(words, " ")
}

func titleComponents(title string) []string {
	var comps []string
	for _, c := range strings.FieldsFunc(title, func(r rune) bool {
		return r == '-' || r == ':'
	}) {
		c = strings.ToLower(book.NormSpace(normalizeTitleOnce(c)))
		if c != "" {
			comps = append(comps, c)
		}
	}
	return comps
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	slices.Sort(tokens)
	return strings.Join(tokens, " ")
}

// intersectSimilarity scores the shared tokens against each full token
// set, which lets a subset title match its superset well.
func intersectSimilarity(a, b string) float64 {
	aTokens, bTokens := strings.Fields(a), strings.Fields(b)
	bSet := map[string]struct{}{}
	for _, t := range bTokens {
		bSet[t] = struct{}{}
	}
	var inter []string
	for _, t := range aTokens {
		if _, ok := bSet[t]; ok {
			inter = append(inter, t)
		}
	}
	if len(inter) == 0 {
		return 0
	}
	slices.Sort(inter)
	interStr := strings.Join(inter, " ")
	return max(ratio(interStr, sortTokens(a)), ratio(interStr, sortTokens(b)))
}

func ratio(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(a, b, false)
	lev := dmp.DiffLevenshtein(diffs)
	denom := max(len([]rune(a)), len([]rune(b)))
	if lev >= denom {
		return 0
	}
	return 1 - float64(lev)/float64(denom)
}
