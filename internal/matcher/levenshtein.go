package matcher

// LevenshteinDistance computes the classic edit distance between a and b:
// the minimum number of single-rune insertions, deletions, and substitutions
// needed to turn one into the other. Uses two rolling rows so memory stays
// proportional to the shorter string.
func LevenshteinDistance(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	if len(rb) > len(ra) {
		ra, rb = rb, ra
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
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			min := del
			if ins < min {
				min = ins
			}
			if sub < min {
				min = sub
			}
			curr[j] = min
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// LevenshteinSimilarity normalizes edit distance into [0, 1]:
// 1 - distance/maxLen. Two empty strings are considered identical.
func LevenshteinSimilarity(a, b string) float64 {
	la := len([]rune(a))
	lb := len([]rune(b))
	if la == 0 && lb == 0 {
		return 1.0
	}
	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	return 1.0 - float64(LevenshteinDistance(a, b))/float64(maxLen)
}

// IsSimilar reports whether the similarity between a and b clears threshold.
func IsSimilar(a, b string, threshold float64) bool {
	return LevenshteinSimilarity(a, b) >= threshold
}
