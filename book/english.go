package book

import (
	"strings"
	"unicode"
)

// common English function words. a real description can hardly avoid
// them, while machine output in another language hardly contains them.
var englishStopwords = map[string]struct{}{}

// distinctive function words from languages providers commonly serve
// descriptions in. two or more of these is a strong non-English signal
// even when the text mixes in English phrases.
var foreignMarkers = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		the a an and of to in is was it for with on that this you your are
		as be by at from or have not but his her its they we what who will
		about into more when them then there which been has had can`) {
		englishStopwords[w] = struct{}{}
	}
	for _, w := range strings.Fields(`
		yang anda buku dengan untuk pada satu ini saat
		el la los las que usted libro una para por como
		le les livre vous est une dans pour c'est
		der die das und nicht ein eine ist von
		il lo della nel una che di`) {
		foreignMarkers[w] = struct{}{}
	}
}

// IsLikelyEnglish is a cheap guess at whether a description is
// English. Very short strings pass, since there is nothing to judge.
func IsLikelyEnglish(s string) bool {
	s = strings.TrimSpace(s)
	if len([]rune(s)) < 10 {
		return true
	}

	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	if len(words) == 0 {
		return false
	}

	var stop, foreign int
	for _, w := range words {
		if _, ok := englishStopwords[w]; ok {
			stop++
		}
		if _, ok := foreignMarkers[w]; ok {
			foreign++
		}
	}
	if foreign >= 2 {
		return false
	}
	return float64(stop)/float64(len(words)) >= 0.1
}
