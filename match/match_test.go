package match

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"go.senan.xyz/booktag/book"
)

func TestNormalizeTitle(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		in, want string
	}{
		{"The Hobbit: There and Back Again", "Hobbit"},
		{"Dune - A Desert Story", "Dune"},
		{"Frankenstein (Annotated)", "Frankenstein"},
		{"War and Peace Disc 2", "War and Peace"},
		{"The 5th Wave", "fifth Wave"},
		{"A Study in Scarlet", "Study in Scarlet"},
	} {
		assert.Equal(t, tt.want, NormalizeTitle(tt.in), "title %q", tt.in)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	t.Parallel()

	for _, s := range []string{
		"The Hobbit: There and Back Again",
		"The A Team",
		"Dune (Unabridged) Disc 1",
		"The 48 Laws of Power",
		"George R. R. Martin",
		"Wallace D. Wattles as read by Mike DeWitt",
	} {
		assert.Equal(t, NormalizeTitle(s), NormalizeTitle(NormalizeTitle(s)))
		assert.Equal(t, NormalizeAuthor(s), NormalizeAuthor(NormalizeAuthor(s)))
	}
}

func TestNormalizeAuthor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "George R.R. Martin", NormalizeAuthor("George R. R. Martin"))
	assert.Equal(t, "R. Martin", NormalizeAuthor("R. Martin"))
}

func TestScoreSubstringTitle(t *testing.T) {
	t.Parallel()

	q := book.Query{Title: "The Hobbit", Author: "Tolkien"}
	m := book.Meta{Title: "The Hobbit: There and Back Again", Authors: []string{"Tolkien"}}
	assert.GreaterOrEqual(t, Score(q, m), 0.6)
}

func TestScoreNarratorPhrase(t *testing.T) {
	t.Parallel()

	q := book.Query{Title: "The Science of Getting Rich", Author: "Wallace D. Wattles as read by Mike DeWitt"}
	m := book.Meta{Title: "The Science of Getting Rich", Authors: []string{"Wallace D. Wattles"}}
	assert.Equal(t, 1.0, Score(q, m))

	q = book.Query{Title: "The 48 Laws of Power", Author: "Robert Greene AS READ BY Richard Poe"}
	m = book.Meta{Title: "The 48 Laws of Power", Authors: []string{"Robert Greene"}}
	assert.Equal(t, 1.0, Score(q, m))
}

func TestScoreEditionPhrase(t *testing.T) {
	t.Parallel()

	q := book.Query{Title: "War and Peace", Author: "Leo Tolstoy Unabridged"}
	m := book.Meta{Title: "War and Peace", Authors: []string{"Leo Tolstoy"}}
	assert.GreaterOrEqual(t, Score(q, m), 0.95)
}

func TestScoreMissingCoauthorPenalized(t *testing.T) {
	t.Parallel()

	q := book.Query{Title: "Good Omens", Author: "Neil Gaiman and Terry Pratchett"}
	m := book.Meta{Title: "Good Omens", Authors: []string{"Neil Gaiman"}}
	got := Score(q, m)
	assert.Less(t, got, 1.0)
	assert.Greater(t, got, 0.5)
}

func TestScoreUnknownAnnotationUsesFuzzy(t *testing.T) {
	t.Parallel()

	q := book.Query{Title: "The Art of War", Author: "Sun Tzu translated by Thomas Cleary"}
	m := book.Meta{Title: "The Art of War", Authors: []string{"Sun Tzu"}}
	got := Score(q, m)
	assert.Less(t, got, 1.0)
	assert.Greater(t, got, 0.5)
}

func TestScoreExactAuthor(t *testing.T) {
	t.Parallel()

	q := book.Query{Title: "Foundation", Author: "Isaac Asimov"}
	m := book.Meta{Title: "Foundation", Authors: []string{"Isaac Asimov"}}
	assert.Equal(t, 1.0, Score(q, m))
}

func TestScoreAuthorWithDegree(t *testing.T) {
	t.Parallel()

	q := book.Query{Title: "Why We Sleep", Author: "Matthew Walker PhD"}
	m := book.Meta{Title: "Why We Sleep", Authors: []string{"Matthew Walker"}}
	assert.Equal(t, 1.0, Score(q, m))
}

func TestScoreNoAuthorTitleOnly(t *testing.T) {
	t.Parallel()

	q := book.Query{Title: "The Hobbit"}
	m := book.Meta{Title: "The Hobbit", Authors: []string{"J.R.R. Tolkien"}}
	assert.Equal(t, 1.0, Score(q, m))
}

func TestScoreEmptyTitleZero(t *testing.T) {
	t.Parallel()

	assert.Zero(t, Score(book.Query{}, book.Meta{Title: "Some Book"}))
	assert.Zero(t, Score(book.Query{Title: "Some Book"}, book.Meta{}))
}

func TestScoreCollectionNotOvermatched(t *testing.T) {
	t.Parallel()

	q := book.Query{Title: "Harry Potter Complete Collection", Author: "J.K. Rowling"}
	m := book.Meta{Title: "Harry Potter and the Philosopher's Stone", Authors: []string{"J.K. Rowling"}}
	assert.Less(t, Score(q, m), 0.95)

	q = book.Query{Title: "Complete Works", Author: "Shakespeare"}
	m = book.Meta{Title: "Hamlet", Authors: []string{"William Shakespeare"}}
	assert.Less(t, Score(q, m), 0.8)
}

func TestScoreSeriesComponent(t *testing.T) {
	t.Parallel()

	q := book.Query{Title: "The Stormlight Archive - The Way of Kings"}
	m := book.Meta{Title: "The Way of Kings"}
	assert.Equal(t, 1.0, Score(q, m))
}
