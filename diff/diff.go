package diff

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"go.senan.xyz/booktag/book"
	"go.senan.xyz/booktag/tags"
)

type Diff struct {
	Field         string
	Before, After string
	Changes       []diffmatchpatch.Diff
}

// DiffMeta compares the tags a book directory already carries against
// freshly resolved metadata, returning a percentage similarity and a
// per-field diff. Fields the resolved metadata doesn't provide are
// skipped, a directory can't lose information it never had.
func DiffMeta(before tags.Tags, meta *book.Meta) (float64, []Diff) {
	dmp := diffmatchpatch.New()

	var charsTotal int
	var charsDiff int
	add := func(f, a, b string) Diff {
		diffs := dmp.DiffMain(a, b, false)
		charsTotal += len([]rune(b))
		charsDiff += dmp.DiffLevenshtein(diffs)
		return Diff{Field: f, Changes: diffs, Before: a, After: b}
	}

	joined := func(key string) string {
		return strings.Join(before.Values(key), "; ")
	}

	var diffs []Diff
	for _, row := range [][2]string{
		{tags.Album, meta.Title},
		{tags.Artist, strings.Join(meta.Authors, "; ")},
		{tags.Composer, strings.Join(meta.Narrators, "; ")},
		{tags.Genre, strings.Join(meta.Genres, "; ")},
		{tags.Publisher, meta.Publisher},
		{tags.Date, meta.PublishedDate},
	} {
		key, after := row[0], row[1]
		if after == "" {
			continue
		}
		diffs = append(diffs, add(key, joined(key), after))
	}

	if charsTotal == 0 {
		return 0, diffs
	}
	score := 100 - (float64(charsDiff) * 100 / float64(charsTotal))
	return score, diffs
}
