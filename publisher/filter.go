package publisher

import (
	"fmt"

	"github.com/gobwas/glob"
)

// GlobFilter filters feed events using glob patterns over stream names and
// handling concerns
type GlobFilter struct {
	streamGlobs  []glob.Glob
	concernGlobs []glob.Glob
}

// NewGlobFilter creates a new glob-based filter.
// Empty pattern lists match everything.
func NewGlobFilter(streamPatterns, concernPatterns []string) (*GlobFilter, error) {
	streamGlobs, err := compileGlobs("stream", streamPatterns)
	if err != nil {
		return nil, err
	}
	concernGlobs, err := compileGlobs("concern", concernPatterns)
	if err != nil {
		return nil, err
	}
	return &GlobFilter{streamGlobs: streamGlobs, concernGlobs: concernGlobs}, nil
}

func compileGlobs(what string, patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid %s pattern %q: %w", what, pattern, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

// Match returns true if the stream and concern match the configured
// patterns. Events without a concern are only checked against the stream
// patterns.
func (f *GlobFilter) Match(stream, concern string) bool {
	if !anyMatch(f.streamGlobs, stream) {
		return false
	}
	if concern == "" {
		return true
	}
	return anyMatch(f.concernGlobs, concern)
}

func anyMatch(globs []glob.Glob, s string) bool {
	if len(globs) == 0 {
		return true
	}
	for _, g := range globs {
		if g.Match(s) {
			return true
		}
	}
	return false
}
