package history

import (
	"strings"
	"time"
	"unicode"

	"github.com/orsinium-labs/stopwords"

	"arklore/internal/store"
)

// Relatedness scoring weights. Temporal proximity dominates, then shared
// ownership, then lexical overlap, with a bonus for shared proper nouns.
const (
	temporalWeight  = 0.4
	sameOwnerBonus  = 0.3
	crossOwnerBonus = 0.1
	lexicalWeight   = 0.3
	properNounBonus = 0.1
)

var englishStopwords = stopwords.MustGet("en")

// Relatedness scores how likely two summaries belong to the same
// conversation thread, in [0, 1].
func Relatedness(a, b store.Summary) float64 {
	score := temporalDecay(a.Timestamp, b.Timestamp) * temporalWeight

	if a.OwnerKey == b.OwnerKey {
		score += sameOwnerBonus
	} else {
		score += crossOwnerBonus
	}

	aTokens := contentTokens(a.Text)
	bTokens := contentTokens(b.Text)
	score += jaccard(aTokens, bTokens) * lexicalWeight

	score += float64(sharedProperNouns(a.Text, b.Text)) * properNounBonus

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}

// Threads groups summaries into conversation threads: a summary joins the
// current thread while its relatedness to the previous summary stays at or
// above the threshold. Pass threshold <= 0 to use the manager default.
func (m *Manager) Threads(summaries []store.Summary, threshold float64) [][]store.Summary {
	if threshold <= 0 {
		threshold = m.threadThreshold
	}
	if len(summaries) == 0 {
		return nil
	}

	threads := [][]store.Summary{{summaries[0]}}
	for i := 1; i < len(summaries); i++ {
		if Relatedness(summaries[i-1], summaries[i]) >= threshold {
			last := len(threads) - 1
			threads[last] = append(threads[last], summaries[i])
		} else {
			threads = append(threads, []store.Summary{summaries[i]})
		}
	}
	return threads
}

// temporalDecay maps the gap between two timestamps onto a step curve.
func temporalDecay(a, b time.Time) float64 {
	gap := a.Sub(b)
	if gap < 0 {
		gap = -gap
	}
	switch {
	case gap <= 5*time.Minute:
		return 1.0
	case gap <= 15*time.Minute:
		return 0.8
	case gap <= time.Hour:
		return 0.6
	case gap <= 4*time.Hour:
		return 0.3
	default:
		return 0.1
	}
}

// contentTokens lowercases, splits on non-alphanumeric runes, and drops
// stopwords.
func contentTokens(text string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if englishStopwords.Contains(f) {
			continue
		}
		out[f] = struct{}{}
	}
	return out
}

// jaccard computes intersection over union of two token sets.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// sharedProperNouns counts capitalized tokens longer than two characters
// that appear in both texts. These are usually player or creature names,
// the strongest thread signal in game logs.
func sharedProperNouns(a, b string) int {
	aNouns := properNouns(a)
	if len(aNouns) == 0 {
		return 0
	}
	count := 0
	for noun := range properNouns(b) {
		if _, ok := aNouns[noun]; ok {
			count++
		}
	}
	return count
}

func properNouns(text string) map[string]struct{} {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]struct{})
	for _, f := range fields {
		if len(f) <= 2 {
			continue
		}
		first := []rune(f)[0]
		if unicode.IsUpper(first) {
			out[f] = struct{}{}
		}
	}
	return out
}
