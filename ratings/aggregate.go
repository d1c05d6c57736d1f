package ratings

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Bayesian damping parameters. A provider's rating is pulled toward
// BaselineRating in proportion to how few votes back it, so a 5.0 from
// ten readers can't outrank a 4.5 from ten thousand.
const (
	DampingVotes   = 500
	BaselineRating = 2.0

	// VoteThreshold is the point at which a single provider's sample is
	// considered trustworthy enough to stop querying further sources.
	VoteThreshold = 50
)

var votePrinter = message.NewPrinter(language.English)

// Aggregate combines provider samples into a single damped rating,
// rounded to two decimal places, with a human-readable breakdown block
// suitable for the top of a description.
func Aggregate(samples []Sample) (float64, int, string) {
	var kept []Sample
	for _, s := range samples {
		if s.Rating > 0 {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return 0, 0, ""
	}

	var totalVotes int
	for _, s := range kept {
		totalVotes += s.Votes
	}

	var rating float64
	if totalVotes == 0 {
		// nothing to weight by, fall back to a plain mean
		for _, s := range kept {
			rating += s.Rating
		}
		rating /= float64(len(kept))
	} else {
		var weighted float64
		for _, s := range kept {
			if s.Votes == 0 {
				continue
			}
			v := float64(s.Votes)
			damped := (v/(v+DampingVotes))*s.Rating + (DampingVotes/(v+DampingVotes))*BaselineRating
			weighted += damped * v
		}
		rating = weighted / float64(totalVotes)
	}
	rating = math.Round(rating*100) / 100

	var sb strings.Builder
	fmt.Fprintf(&sb, "⭐️ Weighted Rating: %s/5\n", boldDigits(fmt.Sprintf("%.2f", rating)))
	for _, s := range kept {
		fmt.Fprintf(&sb, "   • %s: %.1f (%s votes)\n", s.Source, s.Rating, votePrinter.Sprintf("%d", s.Votes))
	}
	return rating, totalVotes, strings.TrimRight(sb.String(), "\n")
}

// boldDigits maps ASCII digits to their mathematical bold forms so the
// rating stands out in players that render plain-text descriptions.
func boldDigits(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			sb.WriteRune('𝟎' + (r - '0'))
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

var headerPrefixes = []string{"⭐️ Rating:", "⭐️ Weighted Rating:", "⭐ Rating:", "⭐ Weighted Rating:"}

func isHeaderLine(line string) bool {
	for _, p := range headerPrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// UpsertHeader places a rating block at the top of a description. An
// existing block, the header line plus its indented bullet lines, is
// replaced in place so repeated runs don't stack ratings.
func UpsertHeader(description, header string) string {
	if header == "" {
		return description
	}

	lines := strings.Split(description, "\n")
	if len(lines) > 0 && isHeaderLine(lines[0]) {
		end := 1
		for end < len(lines) && strings.HasPrefix(strings.TrimSpace(lines[end]), "•") {
			end++
		}
		rest := strings.TrimLeft(strings.Join(lines[end:], "\n"), "\n")
		if rest == "" {
			return header
		}
		return header + "\n\n" + rest
	}

	if strings.TrimSpace(description) == "" {
		return header
	}
	return header + "\n\n" + description
}
