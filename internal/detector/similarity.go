package detector

import (
	"strings"
)

// romanToDecimal maps the Roman numerals this engine expects to see in game
// titles (i..xx is more than enough — nobody has shipped "Total War XXI").
var romanToDecimal = map[string]string{
	"i": "1", "ii": "2", "iii": "3", "iv": "4", "v": "5",
	"vi": "6", "vii": "7", "viii": "8", "ix": "9", "x": "10",
	"xi": "11", "xii": "12", "xiii": "13", "xiv": "14", "xv": "15",
	"xvi": "16", "xvii": "17", "xviii": "18", "xix": "19", "xx": "20",
}

// phraseReplacements collapses well-known edition qualifiers to a short
// form so "Definitive Edition" and "DE" score identically against each
// other.
var phraseReplacements = []struct {
	from, to string
}{
	{"definitive edition", "de"},
	{"game of the year", "goty"},
}

// normalizeTitle lowercases, applies phrase replacements, maps standalone
// Roman-numeral tokens to decimal, and collapses non-alphanumerics to
// single spaces.
func normalizeTitle(s string) string {
	s = strings.ToLower(s)
	for _, pr := range phraseReplacements {
		s = strings.ReplaceAll(s, pr.from, pr.to)
	}

	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	collapsed := strings.Join(strings.Fields(b.String()), " ")

	tokens := strings.Fields(collapsed)
	for i, tok := range tokens {
		if dec, ok := romanToDecimal[tok]; ok {
			tokens[i] = dec
		}
	}
	return strings.Join(tokens, " ")
}

// tokenSet returns the unique space-separated tokens of a normalized
// string.
func tokenSet(normalized string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(normalized) {
		set[tok] = struct{}{}
	}
	return set
}

// jaccard computes |a ∩ b| / |a ∪ b| over two token sets. Two empty sets
// score 0 (there is nothing to match).
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

// similarityScore implements §4.3 Phase 2: Jaccard on normalized token
// sets, plus a 0.15 substring-containment bonus, capped at 1.0.
func similarityScore(query, title string) float64 {
	nq := normalizeTitle(query)
	nt := normalizeTitle(title)
	if nq == "" || nt == "" {
		return 0
	}

	score := jaccard(tokenSet(nq), tokenSet(nt))

	if strings.Contains(nq, nt) || strings.Contains(nt, nq) {
		score += 0.15
	}
	if score > 1 {
		score = 1
	}
	return score
}

// buildQuerySet assembles the de-duplicated, order-preserving query set
// described in §4.3 Phase 2: product name, file description, the
// user-supplied game name, the install folder basename, and the
// executable basename.
func buildQuerySet(productName, fileDescription, gameName, installFolderBase, exeBase string) []string {
	ordered := []string{productName, fileDescription, gameName, installFolderBase, exeBase}
	seen := make(map[string]struct{}, len(ordered))
	var out []string
	for _, q := range ordered {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		key := strings.ToLower(q)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, q)
	}
	return out
}

// matchTitle implements §4.3 Phase 2 selection: the entry with the highest
// score across every query, rejecting with no-match at or below 0.45 (a
// score of exactly 0.45 is rejected, 0.46 is accepted), and
// flagging ambiguity when the runner-up is close behind.
func matchTitle(queries []string, titles []string) (bestIdx int, bestScore, runnerUpScore float64, ambiguous bool) {
	bestIdx = -1
	bestScore = -1
	runnerUpScore = -1

	for i, title := range titles {
		var max float64
		for _, q := range queries {
			if s := similarityScore(q, title); s > max {
				max = s
			}
		}
		if max > bestScore {
			runnerUpScore = bestScore
			bestScore = max
			bestIdx = i
		} else if max > runnerUpScore {
			runnerUpScore = max
		}
	}

	// A score of exactly 0.45 is rejected; 0.46 is accepted — the
	// threshold is exclusive on the accept side.
	if bestScore <= 0.45 {
		return -1, bestScore, runnerUpScore, false
	}

	ambiguous = runnerUpScore >= 0.65 && (bestScore-runnerUpScore) <= 0.05
	return bestIdx, bestScore, runnerUpScore, ambiguous
}
