// Package ignore provides gitignore-style pattern matching for excluding
// instances by their logical path (Service/Folder/.../Name).
package ignore

import (
	"bufio"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Pattern represents a single exclusion pattern with its properties.
type Pattern struct {
	pattern  string
	negated  bool
	anchored bool // Pattern starts with / (matches from the service level only)
}

// Matcher holds compiled exclusion patterns and provides matching
// functionality. The zero value matches nothing.
type Matcher struct {
	patterns []Pattern
}

// NewMatcher creates a new empty Matcher.
func NewMatcher() *Matcher {
	return &Matcher{}
}

// AddPattern adds a single pattern string to the matcher.
func (m *Matcher) AddPattern(line string) {
	line = strings.TrimSpace(line)

	// Skip empty lines and comments
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}

	p := Pattern{}

	if strings.HasPrefix(line, "!") {
		p.negated = true
		line = line[1:]
	}

	// Logical paths never name directories vs files, so a trailing slash
	// only marks intent; strip it.
	line = strings.TrimSuffix(line, "/")

	if strings.HasPrefix(line, "/") {
		p.anchored = true
		line = line[1:]
	}

	// Patterns without slashes match a name at any depth unless anchored.
	if !p.anchored && !strings.Contains(line, "/") {
		line = "**/" + line
	}

	p.pattern = line
	m.patterns = append(m.patterns, p)
}

// AddPatterns adds multiple pattern strings to the matcher.
func (m *Matcher) AddPatterns(lines []string) {
	for _, line := range lines {
		m.AddPattern(line)
	}
}

// LoadFile loads patterns from a gitignore-style file. A missing file is
// not an error.
func (m *Matcher) LoadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		m.AddPattern(scanner.Text())
	}

	return scanner.Err()
}

// Match checks if a logical path should be excluded. Later patterns win,
// so a negated pattern can re-include what an earlier pattern excluded.
func (m *Matcher) Match(logicalPath string) bool {
	logicalPath = strings.TrimPrefix(logicalPath, "/")

	excluded := false
	for _, p := range m.patterns {
		if m.matchPattern(p.pattern, logicalPath) {
			excluded = !p.negated
		}
	}
	return excluded
}

// matchPattern checks if a logical path matches a single pattern.
func (m *Matcher) matchPattern(pattern, path string) bool {
	matched, _ := doublestar.Match(pattern, path)
	if matched {
		return true
	}

	// A pattern naming a container should also exclude everything inside
	// it, e.g. "StarterGui" excludes "StarterGui/Menu/Open".
	if !strings.HasSuffix(pattern, "/**") {
		matched, _ = doublestar.Match(pattern+"/**", path)
		if matched {
			return true
		}
	}

	return false
}

// Empty reports whether the matcher has no patterns.
func (m *Matcher) Empty() bool {
	return len(m.patterns) == 0
}
