package fuzzy

import (
	"strings"
)

// Distance returns the Levenshtein edit distance between two normalized strings.
func Distance(a, b string) int {
	ra := []rune(normalize(a))
	rb := []rune(normalize(b))
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// Tolerance is the edit distance allowed for a query term of the given length.
func Tolerance(term string) int {
	n := len([]rune(term))
	switch {
	case n <= 3:
		return 0
	case n <= 7:
		return 1
	default:
		return 2
	}
}

// Score rates how well query matches the given fields. Zero means no match.
// Every query term must hit some word (substring, prefix or within tolerance).
func Score(query string, fields ...string) float64 {
	terms := strings.Fields(normalize(query))
	if len(terms) == 0 {
		return 0
	}

	var words []string
	var joined []string
	for _, f := range fields {
		nf := normalize(f)
		joined = append(joined, nf)
		words = append(words, strings.FieldsFunc(nf, isSeparator)...)
	}
	haystack := strings.Join(joined, " ")

	score := 0.0
	for _, term := range terms {
		best := 0.0
		if strings.Contains(haystack, term) {
			best = 1.0
		}
		for _, w := range words {
			if best == 1.0 {
				break
			}
			if strings.HasPrefix(w, term) {
				best = max(best, 0.8)
				continue
			}
			if tol := Tolerance(term); tol > 0 {
				if d := Distance(term, w); d <= tol {
					best = max(best, 0.6-0.1*float64(d))
				}
			}
		}
		if best == 0 {
			return 0
		}
		score += best
	}
	return score / float64(len(terms))
}

// Match reports whether every query term matches one of the fields.
func Match(query string, fields ...string) bool {
	return Score(query, fields...) > 0
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func isSeparator(r rune) bool {
	switch r {
	case ' ', ',', '.', ':', ';', '-', '_', '@', '/', '(', ')':
		return true
	}
	return false
}
