// Package blacklist filters mod file names against user-supplied
// glob patterns.
package blacklist

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/servpack/servpack/internal/robustio"
)

// List is a set of glob patterns. Matching is case-insensitive.
// A nil List matches nothing.
type List struct {
	patterns []string
}

// Load reads a pattern file. One glob per line, blank lines and
// lines starting with # are ignored.
func Load(fpath string) (*List, error) {
	src, err := robustio.ReadFile(fpath)
	if err != nil {
		return nil, err
	}
	l, err := Parse(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", fpath, err)
	}
	return l, nil
}

func Parse(r io.Reader) (*List, error) {
	var l List
	s := bufio.NewScanner(r)
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := l.Add(line); err != nil {
			return nil, err
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return &l, nil
}

// Add appends a pattern, rejecting malformed globs up front.
func (l *List) Add(pattern string) error {
	p := strings.ToLower(pattern)
	if _, err := path.Match(p, ""); err != nil {
		return fmt.Errorf("pattern %q: %w", pattern, err)
	}
	l.patterns = append(l.patterns, p)
	return nil
}

// Len reports the number of patterns.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.patterns)
}

// Match reports whether name matches any pattern.
func (l *List) Match(name string) bool {
	if l == nil {
		return false
	}
	name = strings.ToLower(name)
	for _, p := range l.patterns {
		ok, err := path.Match(p, name)
		if err != nil {
			// Patterns are validated in Add.
			continue
		}
		if ok {
			return true
		}
	}
	return false
}
