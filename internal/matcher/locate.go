package matcher

import "strings"

const (
	// DefaultMinConfidence is the lowest similarity Locate will accept.
	DefaultMinConfidence = 0.7
	// DefaultTolerance gates low-trust fallback candidates more strictly.
	DefaultTolerance = 0.8

	// anchorLen is the number of bytes taken from the fragment's head and
	// tail to seed the candidate search.
	anchorLen = 16
	// maxAnchorHits caps how many occurrences of each anchor are considered.
	maxAnchorHits = 32
	// scanBudget caps the number of windows scored by the fallback stride
	// scan, keeping matching cost independent of document size.
	scanBudget = 200
)

// Match is a located fragment: byte offsets into the source text plus the
// similarity score of the winning window.
type Match struct {
	StartOffset int     `json:"start_offset"`
	EndOffset   int     `json:"end_offset"`
	Confidence  float64 `json:"confidence"`
}

// Options tunes Locate. Zero values fall back to the defaults.
type Options struct {
	MinConfidence float64
	Tolerance     float64
}

type candidate struct {
	start    int
	end      int
	score    float64
	anchored bool
}

// Locate finds the span of sourceText that best matches fragment. The second
// return value is false when no window clears the confidence threshold; that
// is a normal outcome, not an error, and callers are expected to degrade to
// an offset-less result.
//
// The fragment is an approximate quotation, so exact substring search is only
// a fast path. The search is bounded: candidate windows are seeded from
// occurrences of short anchors taken from the fragment's head and tail, with
// a budget-capped stride scan as fallback. Cost scales with fragment size and
// the candidate caps, not with document size squared.
func Locate(fragment, sourceText string, opts Options) (Match, bool) {
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = DefaultMinConfidence
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultTolerance
	}
	if fragment == "" || sourceText == "" {
		return Match{}, false
	}

	// Fast path: verbatim substring.
	if idx := strings.Index(sourceText, fragment); idx >= 0 {
		return Match{StartOffset: idx, EndOffset: idx + len(fragment), Confidence: 1.0}, true
	}

	cands := anchoredCandidates(fragment, sourceText)
	if len(cands) == 0 {
		cands = strideCandidates(fragment, sourceText)
	}

	best := Match{}
	found := false
	for _, c := range cands {
		threshold := opts.MinConfidence
		if !c.anchored {
			// Fallback windows were not pinned by any anchor text, so
			// they must clear the stricter gate.
			threshold = opts.Tolerance
		}
		if c.score < threshold {
			continue
		}
		// Ties prefer the earliest offset.
		if !found || c.score > best.Confidence ||
			(c.score == best.Confidence && c.start < best.StartOffset) {
			best = Match{StartOffset: c.start, EndOffset: c.end, Confidence: c.score}
			found = true
		}
	}
	return best, found
}

// anchoredCandidates seeds windows from exact occurrences of the fragment's
// head and tail. Even when the model paraphrases the middle of a quote, the
// boundary text usually survives verbatim.
func anchoredCandidates(fragment, sourceText string) []candidate {
	n := anchorLen
	if n > len(fragment) {
		n = len(fragment)
	}
	head := fragment[:n]
	tail := fragment[len(fragment)-n:]

	var cands []candidate
	for _, start := range occurrences(sourceText, head, maxAnchorHits) {
		cands = append(cands, scoreWindow(fragment, sourceText, start, true))
	}
	for _, hit := range occurrences(sourceText, tail, maxAnchorHits) {
		start := hit + n - len(fragment)
		if start < 0 {
			start = 0
		}
		cands = append(cands, scoreWindow(fragment, sourceText, start, true))
	}
	return cands
}

// strideCandidates is the fallback when no anchor text matches exactly:
// score windows at a fixed number of positions across the document. The
// stride widens with document size so the budget holds. A coarse pass only
// brackets the target, so the best bracket is refined down to byte
// alignment before it competes against the acceptance gate.
func strideCandidates(fragment, sourceText string) []candidate {
	step := len(fragment) / 2
	if step < 1 {
		step = 1
	}
	if min := len(sourceText) / scanBudget; step < min {
		step = min
	}
	var cands []candidate
	best := candidate{score: -1}
	for start := 0; start < len(sourceText); start += step {
		c := scoreWindow(fragment, sourceText, start, false)
		cands = append(cands, c)
		if c.score > best.score {
			best = c
		}
	}
	if best.score >= 0 {
		cands = append(cands, refineStart(fragment, sourceText, best, step))
	}
	return cands
}

// refineStart re-scores windows around a coarse candidate at shrinking
// strides until the start offset is byte-aligned. Each round covers a
// constant number of windows, so the cost is logarithmic in the stride.
func refineStart(fragment, sourceText string, best candidate, step int) candidate {
	for step > 1 {
		next := step / 4
		if next < 1 {
			next = 1
		}
		center := best.start
		for s := center - step; s <= center+step; s += next {
			if s < 0 || s > len(sourceText) {
				continue
			}
			c := scoreWindow(fragment, sourceText, s, false)
			if c.score > best.score || (c.score == best.score && c.start < best.start) {
				best = c
			}
		}
		step = next
	}
	return best
}

// scoreWindow compares the fragment against a window of equal byte length
// starting at start, nudging the end slightly to tolerate length drift.
func scoreWindow(fragment, sourceText string, start int, anchored bool) candidate {
	if start < 0 {
		start = 0
	}
	if start > len(sourceText) {
		start = len(sourceText)
	}
	slack := len(fragment) / 10
	if slack < 2 {
		slack = 2
	}

	best := candidate{start: start, end: start, anchored: anchored}
	for _, delta := range []int{0, -slack, slack} {
		end := start + len(fragment) + delta
		if end <= start {
			continue
		}
		if end > len(sourceText) {
			end = len(sourceText)
		}
		score := LevenshteinSimilarity(fragment, sourceText[start:end])
		if score > best.score {
			best.end = end
			best.score = score
		}
	}
	return best
}

// occurrences returns up to max start offsets of needle in haystack.
func occurrences(haystack, needle string, max int) []int {
	if needle == "" {
		return nil
	}
	var hits []int
	from := 0
	for len(hits) < max {
		idx := strings.Index(haystack[from:], needle)
		if idx < 0 {
			break
		}
		hits = append(hits, from+idx)
		from += idx + 1
	}
	return hits
}
