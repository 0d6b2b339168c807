// Package prefixindex implements the in-memory prefix/fuzzy token index
// (spec component C9): autocomplete, exact lookup, and bounded
// edit-distance fuzzy search over tokens extracted from chunk text. It
// is a rebuildable cache, never the source of truth.
package prefixindex

import (
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// MaxFuzzyEdits is spec.md §9's fixed fuzzy-search cap.
const MaxFuzzyEdits = 2

const (
	minTokenLen = 2
	maxTokenLen = 50
)

// DefaultStopWords is the configurable stop-word set; callers may
// substitute their own via WithStopWords.
var DefaultStopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "of": {}, "and": {}, "or": {}, "to": {}, "in": {}, "is": {}, "it": {},
}

// node is one trie node keyed by rune; terminal nodes carry the posting
// for the token spelled out by the path from the root.
type node struct {
	children  map[rune]*node
	terminal  bool
	files     map[string]struct{}
	frequency int
}

func newNode() *node { return &node{children: map[rune]*node{}} }

// Index is a single-writer/many-reader trie of lowercased tokens, guarded
// by a sync.RWMutex per spec.md §9's concurrency discipline.
type Index struct {
	mu        sync.RWMutex
	root      *node
	stopWords map[string]struct{}
}

// New constructs an empty Index.
func New() *Index {
	return &Index{root: newNode(), stopWords: DefaultStopWords}
}

// WithStopWords overrides the stop-word set used by Tokenize.
func (idx *Index) WithStopWords(stopWords map[string]struct{}) *Index {
	idx.stopWords = stopWords
	return idx
}

// Tokenize splits text on non-alphanumerics, drops tokens shorter than 2
// or longer than 50 characters, and drops stop words, per spec.md §4.9.
func (idx *Index) Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if n := utf8.RuneCountInString(f); n < minTokenLen || n > maxTokenLen {
			continue
		}
		if idx.stopWords != nil {
			if _, stop := idx.stopWords[f]; stop {
				continue
			}
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// IndexText tokenizes text and inserts every resulting token into the
// trie against sourceFileID, updating frequency counts.
func (idx *Index) IndexText(sourceFileID, text string) {
	tokens := idx.Tokenize(text)
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, tok := range tokens {
		n := idx.root
		for _, r := range tok {
			child, ok := n.children[r]
			if !ok {
				child = newNode()
				n.children[r] = child
			}
			n = child
		}
		n.terminal = true
		if n.files == nil {
			n.files = map[string]struct{}{}
		}
		n.files[sourceFileID] = struct{}{}
		n.frequency++
	}
}

// RemoveSource deletes sourceFileID from every posting it owns. Tokens
// are left in the trie with an empty posting set rather than pruning
// internal nodes, since rebuild-from-catalog is the index's recovery
// path per spec.md §9.
func (idx *Index) RemoveSource(sourceFileID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	var walk func(n *node)
	walk = func(n *node) {
		if n.terminal {
			delete(n.files, sourceFileID)
		}
		for _, child := range n.children {
			walk(child)
		}
	}
	walk(idx.root)
}

// descend walks the trie along prefix, returning the node at its end or
// nil if prefix is not a path in the trie.
func descend(root *node, prefix string) *node {
	n := root
	for _, r := range prefix {
		child, ok := n.children[r]
		if !ok {
			return nil
		}
		n = child
	}
	return n
}

// Exact returns the set of sourceFileIds that contain token.
func (idx *Index) Exact(token string) map[string]struct{} {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	n := descend(idx.root, strings.ToLower(token))
	if n == nil || !n.terminal || len(n.files) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(n.files))
	for f := range n.files {
		out[f] = struct{}{}
	}
	return out
}

type tokenFreq struct {
	token string
	freq  int
}

// collectTerminals performs a DFS from n, appending prefix plus every
// suffix that reaches a non-empty terminal node.
func collectTerminals(n *node, prefix string, out *[]tokenFreq) {
	if n.terminal && len(n.files) > 0 {
		*out = append(*out, tokenFreq{token: prefix, freq: n.frequency})
	}
	for r, child := range n.children {
		collectTerminals(child, prefix+string(r), out)
	}
}

// Autocomplete descends to the prefix node and DFS-collects terminal
// tokens, returning the top k by frequency with lexicographic tiebreak,
// per spec.md §4.9.
func (idx *Index) Autocomplete(prefix string, k int) []string {
	prefix = strings.ToLower(prefix)
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	start := descend(idx.root, prefix)
	if start == nil {
		return nil
	}
	var matches []tokenFreq
	collectTerminals(start, prefix, &matches)

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].freq != matches[j].freq {
			return matches[i].freq > matches[j].freq
		}
		return matches[i].token < matches[j].token
	})
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.token
	}
	return out
}

// Fuzzy returns every indexed token within maxEdits Levenshtein distance
// of token, capped at MaxFuzzyEdits per spec.md §9. The bound is applied
// to each candidate via the library's edit-distance computation rather
// than a hand-maintained DP-row prune, since agnivade/levenshtein already
// supplies it and no teacher file implements Levenshtein itself.
func (idx *Index) Fuzzy(token string, maxEdits int) []string {
	if maxEdits > MaxFuzzyEdits || maxEdits <= 0 {
		maxEdits = MaxFuzzyEdits
	}
	token = strings.ToLower(token)
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var all []tokenFreq
	collectTerminals(idx.root, "", &all)

	var out []string
	for _, tf := range all {
		if levenshtein.ComputeDistance(token, tf.token) <= maxEdits {
			out = append(out, tf.token)
		}
	}
	sort.Strings(out)
	return out
}

// FilesFor returns the sorted source file ids that own token, or nil if absent.
func (idx *Index) FilesFor(token string) []string {
	set := idx.Exact(token)
	if set == nil {
		return nil
	}
	out := make([]string, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
