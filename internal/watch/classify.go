// Package watch turns filesystem events under an environment root into
// debounced batches of affected environment names.
package watch

import (
	"path/filepath"
	"strings"

	"github.com/moby/patternmatcher"
)

const separator = string(filepath.Separator)

// splitPath splits p on the path separator after stripping trailing
// separators. An absolute path keeps its leading empty segment.
func splitPath(p string) []string {
	return strings.Split(strings.TrimRight(p, separator), separator)
}

// RootDepth returns the number of segments in root.
func RootDepth(root string) int {
	return len(splitPath(root))
}

// Classify returns the name of the top-level child of a root with rootDepth
// segments that owns eventPath. Events on the root itself, or on paths too
// short to lie below it, have no owner.
func Classify(rootDepth int, eventPath string) (string, bool) {
	segments := splitPath(eventPath)
	if len(segments) <= rootDepth {
		return "", false
	}
	name := segments[rootDepth]
	if name == "" {
		return "", false
	}
	return name, true
}

// Classifier maps event paths under one root to environment names, dropping
// names matched by the exclusion patterns.
type Classifier struct {
	root    string
	depth   int
	exclude *patternmatcher.PatternMatcher
}

// NewClassifier creates a Classifier for root. exclude may be nil.
func NewClassifier(root string, exclude *patternmatcher.PatternMatcher) *Classifier {
	return &Classifier{
		root:    root,
		depth:   RootDepth(root),
		exclude: exclude,
	}
}

// Owner returns the environment name for eventPath.
func (c *Classifier) Owner(eventPath string) (string, bool) {
	name, ok := Classify(c.depth, eventPath)
	if !ok {
		return "", false
	}
	if Excluded(c.exclude, name) {
		return "", false
	}
	return name, true
}

// Excluded reports whether name matches one of the exclusion patterns.
func Excluded(pm *patternmatcher.PatternMatcher, name string) bool {
	if pm == nil {
		return false
	}
	matched, err := pm.MatchesOrParentMatches(name)
	return err == nil && matched
}
