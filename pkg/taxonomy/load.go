package taxonomy

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads and parses a classifier configuration file from path,
// constructing an immutable Taxonomy. Per spec.md §6, the configuration
// is loaded once at process start; there is no reload path.
func Load(path string) (*Taxonomy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	return New(cfg)
}

// Default returns the built-in taxonomy used when no configuration file
// is supplied, covering the common media categories plus the mandatory
// `other` fallback. Order places specific image/video/audio tags ahead
// of their generic siblings, per spec.md §4.1.
func Default() *Taxonomy {
	cfg := Config{Categories: []Tag{
		{
			Name:         "photos",
			Extensions:   []string{"jpg", "jpeg", "png", "gif", "webp", "heic"},
			MimePatterns: []string{"image/"},
			Thumbable:    true,
			Description:  "Photographic and raster image content.",
		},
		{
			Name:         "videos_mp4",
			Extensions:   []string{"mp4", "m4v"},
			MimePatterns: []string{"video/mp4"},
			Thumbable:    true,
			Description:  "MP4-family video content.",
		},
		{
			Name:         "videos_other",
			Extensions:   []string{"mov", "avi", "mkv", "webm"},
			MimePatterns: []string{"video/"},
			Thumbable:    true,
			Description:  "Other video container formats.",
		},
		{
			Name:         "audio",
			Extensions:   []string{"mp3", "wav", "flac", "ogg", "m4a"},
			MimePatterns: []string{"audio/"},
			Thumbable:    false,
			Description:  "Audio content.",
		},
		{
			Name:         "documents",
			Extensions:   []string{"pdf", "doc", "docx", "txt", "md"},
			MimePatterns: []string{"application/pdf", "text/"},
			Thumbable:    false,
			Description:  "Text and office documents.",
		},
		{
			Name:         "other",
			Extensions:   nil,
			MimePatterns: nil,
			Thumbable:    false,
			Description:  "Fallback category for unrecognized artifacts.",
		},
	}}
	t, err := New(cfg)
	if err != nil {
		// The built-in table always satisfies New's invariants; a
		// failure here is a programming error in this file, not a
		// runtime condition callers should handle.
		panic(err)
	}
	return t
}
