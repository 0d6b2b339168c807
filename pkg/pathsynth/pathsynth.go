// Package pathsynth synthesizes collision-free canonical relative paths
// for ingested media (spec component C2).
package pathsynth

import (
	"fmt"
	"strings"
	"time"

	"github.com/nucleus/ingestcore/pkg/ids"
	"github.com/nucleus/ingestcore/pkg/ingesterr"
)

// MaxRetries bounds the total number of synthesis attempts (the first
// candidate plus re-syntheses after collisions), per spec.md §4.2.
const MaxRetries = 3

// Exists is a caller-supplied existence check used to detect collisions
// at commit time; it should check the real canonical filesystem root.
type Exists func(relativePath string) (bool, error)

// Synthesize produces `<tag>/<YYYY>/<MM>/<DD>/<tenantId>_<YYYYMMDD_HHMMSS>_<rand12>.<ext>`
// per spec.md §4.2, re-synthesizing with a fresh rand12 suffix while
// exists reports a collision, for at most MaxRetries attempts in total.
func Synthesize(tag, tenantID, originalName string, now time.Time, exists Exists) (string, error) {
	now = now.UTC()
	ext := strings.ToLower(extOf(originalName))

	var lastPath string
	for attempt := 0; attempt < MaxRetries; attempt++ {
		candidate := build(tag, tenantID, now, ext)
		if exists == nil {
			return candidate, nil
		}
		taken, err := exists(candidate)
		if err != nil {
			return "", ingesterr.Wrap(ingesterr.StoreUnavailable, "path collision check failed", err)
		}
		if !taken {
			return candidate, nil
		}
		lastPath = candidate
	}
	return "", ingesterr.New(ingesterr.NameCollision, fmt.Sprintf("exhausted %d attempts synthesizing a path, last attempt %q", MaxRetries, lastPath))
}

func build(tag, tenantID string, now time.Time, ext string) string {
	datePath := fmt.Sprintf("%04d/%02d/%02d", now.Year(), now.Month(), now.Day())
	stamp := now.Format("20060102_150405")
	name := fmt.Sprintf("%s_%s_%s", tenantID, stamp, ids.Rand12())
	if ext != "" {
		name += "." + ext
	}
	return fmt.Sprintf("%s/%s/%s", tag, datePath, name)
}

func extOf(filename string) string {
	idx := strings.LastIndexByte(filename, '.')
	if idx < 0 || idx == len(filename)-1 {
		return ""
	}
	return filename[idx+1:]
}
