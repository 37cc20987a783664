package validator

import "strings"

// levenshtein computes edit distance between a and b.
func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// suggest returns candidates within edit distance 3 or substring-contained
// of name, used for UnknownArg error hints (UnknownRef suggestions come
// from the RefResolver).
func suggest(name string, candidates []string) []string {
	var out []string
	lname := strings.ToLower(name)
	for _, c := range candidates {
		lc := strings.ToLower(c)
		if strings.Contains(lc, lname) || strings.Contains(lname, lc) || levenshtein(lname, lc) <= 3 {
			out = append(out, c)
		}
	}
	return out
}
