// Package lanematch scores ocean rate-card lanes against the raw
// origin/destination strings on an invoice. Lane locators on rate cards are
// free text ("Shanghai, China", "CNSHA", "Sydney incl. Botany") so exact
// equality is the exception; the matcher falls back through containment,
// extracted city names, and string similarity.
package lanematch

import "strings"

const (
	portExactScore   = 1.0
	portContainScore = 0.95
	containScore     = 0.9
	cityScore        = 0.85
	similarityFloor  = 0.70
	candidateMin     = 0.6
	serviceBonus     = 0.1
)

// Lane is the matchable surface of one ocean rate-card entry.
type Lane struct {
	ID                int64
	Origin            string
	Destination       string
	CitiesOrigin      []string
	CitiesDestination []string
	PortOfLoading     string
	PortOfDischarge   string
	Service           string // FCL or LCL
}

// Locators is the invoice side of a match.
type Locators struct {
	Origin      string
	Destination string
	Service     string
}

// Match is a candidate lane with its score breakdown.
type Match struct {
	Lane             Lane
	OriginScore      float64
	DestinationScore float64
	FinalScore       float64
}

// Score evaluates one lane against the invoice locators. The second return
// is false when either side scores below the candidate threshold.
func Score(inv Locators, lane Lane) (Match, bool) {
	origin := sideScore(inv.Origin, lane.Origin, lane.PortOfLoading, lane.CitiesOrigin)
	dest := sideScore(inv.Destination, lane.Destination, lane.PortOfDischarge, lane.CitiesDestination)

	if origin < candidateMin || dest < candidateMin {
		return Match{}, false
	}

	final := (origin + dest) / 2
	if inv.Service != "" && strings.EqualFold(inv.Service, lane.Service) {
		final += serviceBonus
	}
	if final > 1.0 {
		final = 1.0
	}

	return Match{
		Lane:             lane,
		OriginScore:      origin,
		DestinationScore: dest,
		FinalScore:       final,
	}, true
}

// Rank scores every lane and returns the candidates ordered by final score
// descending. The sort is stable: when two lanes score identically the one
// listed first in the rate card wins, which keeps re-audits deterministic.
func Rank(inv Locators, lanes []Lane) []Match {
	var matches []Match
	for _, lane := range lanes {
		if m, ok := Score(inv, lane); ok {
			matches = append(matches, m)
		}
	}
	// Insertion sort keeps equal scores in input order.
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j].FinalScore > matches[j-1].FinalScore; j-- {
			matches[j], matches[j-1] = matches[j-1], matches[j]
		}
	}
	return matches
}

// sideScore computes the best score for one side (origin or destination) of
// a lane: the port code first, then the lane locator, then each included
// city, taking the maximum.
func sideScore(raw, laneLocator, port string, cities []string) float64 {
	raw = normalize(raw)
	if raw == "" {
		return 0
	}

	if port != "" {
		p := normalize(port)
		if p == raw {
			return portExactScore
		}
		if strings.Contains(p, raw) || strings.Contains(raw, p) {
			return portContainScore
		}
	}

	best := Fuzzy(raw, normalize(laneLocator))
	for _, city := range cities {
		if s := Fuzzy(raw, normalize(city)); s > best {
			best = s
		}
	}
	return best
}

// Fuzzy compares two normalized locator strings: 1.0 when equal, 0.9 when
// one contains the other, 0.85 when their extracted city names match, else
// the Ratcliff/Obershelp similarity with anything under 0.70 scored as zero.
func Fuzzy(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1.0
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return containScore
	}
	if cityOf(a) != "" && cityOf(a) == cityOf(b) {
		return cityScore
	}
	if s := Similarity(a, b); s >= similarityFloor {
		return s
	}
	return 0
}

// cityOf extracts the city portion of a locator: the segment before the
// first comma, e.g. "SHANGHAI, CHINA" -> "SHANGHAI".
func cityOf(s string) string {
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Similarity is the Ratcliff/Obershelp measure: twice the total length of
// all recursively matched blocks divided by the combined length. This is
// the same measure Python's difflib ratio() reports, chosen because lane
// tie-breaking depends on its exact values.
func Similarity(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	matched := matchedLength(a, b)
	return 2 * float64(matched) / float64(len(a)+len(b))
}

// matchedLength finds the longest common substring, then recurses on the
// unmatched left and right remainders.
func matchedLength(a, b string) int {
	ai, bi, size := longestCommonSubstring(a, b)
	if size == 0 {
		return 0
	}
	total := size
	total += matchedLength(a[:ai], b[:bi])
	total += matchedLength(a[ai+size:], b[bi+size:])
	return total
}

// longestCommonSubstring returns the start offsets and length of the longest
// common substring. On equal lengths the leftmost-in-a, then leftmost-in-b
// block wins, matching difflib's find_longest_match tie-breaking.
func longestCommonSubstring(a, b string) (int, int, int) {
	bestA, bestB, bestSize := 0, 0, 0
	// prev[j] = length of common suffix of a[:i] and b[:j].
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > bestSize {
					bestSize = cur[j]
					bestA = i - cur[j]
					bestB = j - cur[j]
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return bestA, bestB, bestSize
}
