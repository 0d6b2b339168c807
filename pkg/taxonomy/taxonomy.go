// Package taxonomy implements the closed set of category tags used to
// classify binary artifacts (spec component C1): deterministic
// (extension, mime, magic) matching against a configuration loaded once
// at process start.
package taxonomy

import (
	"fmt"
	"strings"

	"github.com/nucleus/ingestcore/pkg/ingesterr"
)

// FallbackTag is the designated fallback category; the config loader
// fails fast if it is absent.
const FallbackTag = "other"

// MatchedBy records which signal produced a classification decision.
type MatchedBy string

const (
	MatchedExtension MatchedBy = "extension"
	MatchedMime      MatchedBy = "mime"
	MatchedMagic     MatchedBy = "magic"
	MatchedDefault   MatchedBy = "default"
	MatchedManual    MatchedBy = "manual"
)

// Tag is one category in the taxonomy, carrying the ordered signals that
// route bytes into it.
type Tag struct {
	Name         string   `yaml:"category"`
	Extensions   []string `yaml:"extensions"`
	MimePatterns []string `yaml:"mime_patterns"`
	Thumbable    bool     `yaml:"thumbable"`
	Description  string   `yaml:"description"`
}

// Taxonomy is the closed, ordered set of tags. Order is significant: more
// specific tags must precede more general ones, per spec.md §4.1.
type Taxonomy struct {
	Tags []Tag
	byExt  map[string]*Tag
}

// Config is the top-level YAML document shape for a classifier
// configuration file (spec.md §6's declarative list, stored as YAML per
// DESIGN.md's Open Question resolution).
type Config struct {
	Categories []Tag `yaml:"categories"`
}

// New builds a Taxonomy from an already-parsed Config, validating that
// the `other` fallback tag is present.
func New(cfg Config) (*Taxonomy, error) {
	if len(cfg.Categories) == 0 {
		return nil, ingesterr.New(ingesterr.Internal, "classifier configuration has no categories")
	}
	t := &Taxonomy{Tags: cfg.Categories, byExt: map[string]*Tag{}}
	hasFallback := false
	for i := range t.Tags {
		tag := &t.Tags[i]
		if tag.Name == FallbackTag {
			hasFallback = true
		}
		for _, ext := range tag.Extensions {
			ext = strings.ToLower(strings.TrimPrefix(ext, "."))
			if _, exists := t.byExt[ext]; !exists {
				t.byExt[ext] = tag
			}
		}
	}
	if !hasFallback {
		return nil, ingesterr.New(ingesterr.Internal, fmt.Sprintf("classifier configuration missing required fallback tag %q", FallbackTag))
	}
	return t, nil
}

// Result is the outcome of a classification call.
type Result struct {
	Tag       string
	MatchedBy MatchedBy
}

// Classify implements spec.md §4.1's classify(filename, mime, magic)
// operation: pure, deterministic, extension-first then mime-prefix then
// default fallback.
func (t *Taxonomy) Classify(filename, declaredMime, magicMime string) Result {
	ext := strings.ToLower(extOf(filename))
	if ext != "" {
		if tag, ok := t.byExt[ext]; ok {
			return Result{Tag: tag.Name, MatchedBy: MatchedExtension}
		}
	}

	effectiveMime := declaredMime
	matchedBy := MatchedMime
	if magicMime != "" && magicMime != "application/octet-stream" {
		effectiveMime = magicMime
		matchedBy = MatchedMagic
	}
	if effectiveMime == "" {
		effectiveMime = "application/octet-stream"
	}

	for _, tag := range t.Tags {
		for _, pattern := range tag.MimePatterns {
			if strings.HasPrefix(effectiveMime, pattern) {
				return Result{Tag: tag.Name, MatchedBy: matchedBy}
			}
		}
	}

	return Result{Tag: FallbackTag, MatchedBy: MatchedDefault}
}

// Thumbable reports whether the named tag admits thumbnail generation.
// An unknown tag is treated as non-thumbable.
func (t *Taxonomy) Thumbable(tag string) bool {
	for _, candidate := range t.Tags {
		if candidate.Name == tag {
			return candidate.Thumbable
		}
	}
	return false
}

func extOf(filename string) string {
	idx := strings.LastIndexByte(filename, '.')
	if idx < 0 || idx == len(filename)-1 {
		return ""
	}
	return filename[idx+1:]
}
