// Package chunker implements the deterministic separator-preferring
// sliding-window text splitter (spec component C6), generalized from the
// single sentence-boundary heuristic in the document-chunker reference
// implementation to spec.md §4.6's full separator priority list.
package chunker

import "strings"

// separatorPriority is searched in order; the latest occurrence of the
// first separator found within the target window wins the cut point.
var separatorPriority = []string{"\n\n", "\n", ". ", " ", ""}

// Options configures the splitter. A non-positive TargetChars selects
// DefaultOptions as a whole; with a positive TargetChars, a negative
// OverlapChars or one not below TargetChars falls back to the default
// overlap, and an OverlapChars of 0 is kept as 0.
type Options struct {
	TargetChars  int
	OverlapChars int
}

// DefaultOptions mirrors spec.md §4.6: 500-char target windows with a
// 50-char overlap.
func DefaultOptions() Options {
	return Options{TargetChars: 500, OverlapChars: 50}
}

// Chunk is one window of source text with its contiguous ordinal.
type Chunk struct {
	Ordinal int
	Text    string
}

// Split splits text into ordered, contiguous-ordinal windows per
// spec.md §4.6. The operation is pure and deterministic for given
// options.
func Split(text string, opts Options) []Chunk {
	if opts.TargetChars <= 0 {
		opts = DefaultOptions()
	}
	if opts.OverlapChars < 0 || opts.OverlapChars >= opts.TargetChars {
		opts.OverlapChars = DefaultOptions().OverlapChars
	}

	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}

	const slack = 50
	var raw []string
	start := 0
	for start < n {
		end := start + opts.TargetChars
		if end >= n {
			raw = append(raw, string(runes[start:n]))
			break
		}

		cut := findCut(runes, start, end, slack)
		if cut <= start {
			cut = end
		}
		raw = append(raw, string(runes[start:cut]))

		advance := opts.TargetChars - opts.OverlapChars
		if advance <= 0 {
			advance = opts.TargetChars
		}
		next := start + advance
		if next <= start {
			next = cut
		}
		start = next
	}

	chunks := make([]Chunk, 0, len(raw))
	ordinal := 0
	for _, c := range raw {
		if strings.TrimSpace(c) == "" {
			continue
		}
		chunks = append(chunks, Chunk{Ordinal: ordinal, Text: c})
		ordinal++
	}
	return chunks
}

// findCut locates the latest separator occurrence within
// [target-slack, target+slack] (clamped to the rune slice), preferring
// separators earlier in separatorPriority. Returns 0 if no cut point was
// found within the window.
func findCut(runes []rune, start, target int, slack int) int {
	n := len(runes)
	lo := target - slack
	if lo < start {
		lo = start
	}
	hi := target + slack
	if hi > n {
		hi = n
	}
	if lo >= hi {
		return 0
	}
	window := runes[lo:hi]

	for _, sep := range separatorPriority {
		if sep == "" {
			return target
		}
		idx := lastIndexRunes(window, []rune(sep))
		if idx < 0 {
			continue
		}
		return lo + idx + len([]rune(sep))
	}
	return 0
}

// lastIndexRunes returns the rune index of the last occurrence of sep in
// s, or -1 if sep does not occur.
func lastIndexRunes(s, sep []rune) int {
	if len(sep) == 0 || len(sep) > len(s) {
		return -1
	}
	for i := len(s) - len(sep); i >= 0; i-- {
		if runesEqual(s[i:i+len(sep)], sep) {
			return i
		}
	}
	return -1
}

func runesEqual(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
