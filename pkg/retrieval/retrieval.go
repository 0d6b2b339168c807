// Package retrieval implements the Retrieval Composer (spec component
// C10): it routes a query through the prefix index (C9) and/or the
// embedding gateway + vector index (C7/C8), merges the results, and
// fires an async, non-blocking QueryLog write.
//
// Hit scores use the 1/(k+rank) weighting of store-core's
// hybridsearch/search.go rrfFusion. The hybrid merge does not sum or
// re-rank by those scores: semantic hits come first in their kNN order,
// followed by prefix-token hits for source files not already present.
package retrieval

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/nucleus/ingestcore/pkg/embedding"
	"github.com/nucleus/ingestcore/pkg/ingesterr"
	"github.com/nucleus/ingestcore/pkg/prefixindex"
	"github.com/nucleus/ingestcore/pkg/vectorindex"
)

// Mode selects which underlying index(es) a query is routed through.
type Mode string

const (
	ModeAuto     Mode = ""
	ModePrefix   Mode = "prefix"
	ModeSemantic Mode = "semantic"
	ModeHybrid   Mode = "hybrid"
)

// minSemanticQueryLen is spec.md §4.10's length threshold below which a
// query is routed to the prefix index in every Mode except ModeHybrid.
const minSemanticQueryLen = 3

// rrfK is the RRF constant shared by both legs of the fusion, matching
// hybridsearch.DefaultOptions' VectorK/KeywordK default of 60.
const rrfK = 60

// Options configures one Search call.
type Options struct {
	Mode   Mode
	TopK   int
	Filter vectorindex.Filter
}

// Hit is one unified, ranked result. Ordinal is -1 for prefix-only hits
// that never resolved to a specific chunk.
type Hit struct {
	SourceFileID string
	Ordinal      int
	Text         string
	MatchedToken string
	Score        float64
	Origin       string // "prefix", "semantic", or "hybrid"
}

// SearchResponse is the result of one Search call.
type SearchResponse struct {
	Mode Mode
	Hits []Hit
}

// QueryLogger persists a QueryLog row (query_log table). Implementations
// must be safe to call from a goroutine with a detached context.
type QueryLogger interface {
	LogQuery(ctx context.Context, tenantID, text string, vector []float32, resultCount int) error
}

// Composer wires the prefix index, embedding gateway, and vector index
// into spec.md §4.10's search operation.
type Composer struct {
	prefix  *prefixindex.Index
	gateway *embedding.Gateway
	vectors *vectorindex.Store
	logger  QueryLogger
}

// New constructs a Composer. logger may be nil, in which case query
// logging is skipped entirely.
func New(prefix *prefixindex.Index, gateway *embedding.Gateway, vectors *vectorindex.Store, logger QueryLogger) *Composer {
	return &Composer{prefix: prefix, gateway: gateway, vectors: vectors, logger: logger}
}

// Search implements spec.md §4.10's three-mode routing.
func (c *Composer) Search(ctx context.Context, tenantID, query string, opts Options) (*SearchResponse, error) {
	mode := opts.Mode
	trimmed := strings.TrimSpace(query)
	if mode == ModeAuto {
		mode = ModeSemantic
	}
	if mode != ModeHybrid && len(trimmed) < minSemanticQueryLen {
		mode = ModePrefix
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = 10
	}

	var resp *SearchResponse
	var queryVector []float32
	var err error

	switch mode {
	case ModePrefix:
		resp = &SearchResponse{Mode: ModePrefix, Hits: c.prefixHits(trimmed, topK)}
	case ModeSemantic:
		resp, queryVector, err = c.semanticSearch(ctx, tenantID, trimmed, topK, opts.Filter)
	case ModeHybrid:
		resp, queryVector, err = c.hybridSearch(ctx, tenantID, trimmed, topK, opts.Filter)
	default:
		resp, queryVector, err = c.semanticSearch(ctx, tenantID, trimmed, topK, opts.Filter)
	}
	if err != nil {
		return nil, err
	}

	c.logAsync(tenantID, trimmed, queryVector, len(resp.Hits))
	return resp, nil
}

// prefixHits tokenizes query, looks up each token via Exact plus
// Autocomplete, and returns one Hit per (token, sourceFileId) pair per
// spec.md §4.10 step 1.
func (c *Composer) prefixHits(query string, topK int) []Hit {
	if c.prefix == nil {
		return nil
	}
	tokens := c.prefix.Tokenize(query)
	if len(tokens) == 0 {
		tokens = []string{strings.ToLower(query)}
	}

	var hits []Hit
	seen := make(map[string]struct{})
	for _, tok := range tokens {
		candidates := []string{tok}
		candidates = append(candidates, c.prefix.Autocomplete(tok, topK)...)
		for _, cand := range candidates {
			for _, fileID := range c.prefix.FilesFor(cand) {
				key := cand + "|" + fileID
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}
				hits = append(hits, Hit{
					SourceFileID: fileID,
					Ordinal:      -1,
					MatchedToken: cand,
					Origin:       "prefix",
				})
			}
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].MatchedToken != hits[j].MatchedToken {
			return hits[i].MatchedToken < hits[j].MatchedToken
		}
		return hits[i].SourceFileID < hits[j].SourceFileID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

func (c *Composer) semanticSearch(ctx context.Context, tenantID, query string, topK int, filter vectorindex.Filter) (*SearchResponse, []float32, error) {
	if c.gateway == nil || c.vectors == nil {
		return nil, nil, ingesterr.New(ingesterr.Internal, "semantic search requires an embedding gateway and vector index")
	}
	vec, err := c.gateway.Embed(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	knnHits, err := c.vectors.KNN(ctx, tenantID, vec, topK, filter)
	if err != nil {
		return nil, vec, err
	}
	hits := make([]Hit, len(knnHits))
	for i, h := range knnHits {
		hits[i] = Hit{
			SourceFileID: h.SourceFileID,
			Ordinal:      h.Ordinal,
			Text:         h.Text,
			Score:        rrfScore(i+1, rrfK),
			Origin:       "semantic",
		}
	}
	return &SearchResponse{Mode: ModeSemantic, Hits: hits}, vec, nil
}

// hybridSearch runs semantic search and then prefix search, deduplicates
// by sourceFileId, and ranks semantic hits first per spec.md §4.10 step 3.
func (c *Composer) hybridSearch(ctx context.Context, tenantID, query string, topK int, filter vectorindex.Filter) (*SearchResponse, []float32, error) {
	semanticResp, vec, err := c.semanticSearch(ctx, tenantID, query, topK, filter)
	if err != nil {
		return nil, nil, err
	}
	prefixHits := c.prefixHits(query, topK)

	seen := make(map[string]struct{}, len(semanticResp.Hits))
	merged := make([]Hit, 0, len(semanticResp.Hits)+len(prefixHits))
	for _, h := range semanticResp.Hits {
		if _, ok := seen[h.SourceFileID]; ok {
			continue
		}
		h.Origin = "hybrid"
		merged = append(merged, h)
		seen[h.SourceFileID] = struct{}{}
	}
	for rank, h := range prefixHits {
		if _, ok := seen[h.SourceFileID]; ok {
			continue
		}
		seen[h.SourceFileID] = struct{}{}
		h.Score = rrfScore(rank+1, rrfK)
		h.Origin = "hybrid"
		merged = append(merged, h)
	}
	if len(merged) > topK {
		merged = merged[:topK]
	}
	return &SearchResponse{Mode: ModeHybrid, Hits: merged}, vec, nil
}

// rrfScore is hybridsearch.rrfFusion's 1/(k+rank) weighting.
func rrfScore(rank, k int) float64 {
	return 1.0 / float64(k+rank)
}

// logAsync writes a QueryLog row in a detached goroutine; per spec.md
// §4.10, a logging failure must never fail the query that triggered it.
func (c *Composer) logAsync(tenantID, text string, vector []float32, resultCount int) {
	if c.logger == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.logger.LogQuery(ctx, tenantID, text, vector, resultCount); err != nil {
			log.Printf("retrieval: query log write failed tenant=%s err=%v", tenantID, err)
		}
	}()
}
