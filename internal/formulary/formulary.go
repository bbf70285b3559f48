// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package formulary holds the WHO Essential Medicines List lookup set and the
// offline job that mines it from the list's PDF text.
//
// The set is loaded once at startup from a newline-delimited file of
// lower-cased names and is read-only afterwards, so it is safe to share
// between goroutines without locking.
package formulary

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/cases"
)

// Set is an immutable set of canonical drug names.
type Set struct {
	names map[string]struct{}
	path  string
}

// NewSet builds a set from names. Blank names are ignored.
func NewSet(names ...string) *Set {
	s := &Set{names: make(map[string]struct{}, len(names))}
	folder := cases.Fold()
	for _, n := range names {
		if k := key(folder, n); k != "" {
			s.names[k] = struct{}{}
		}
	}
	return s
}

// Load reads the lookup file at path. A missing file is not an error: Load
// returns an empty set so the pipeline can continue, and every membership
// check reports not found.
func Load(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Set{names: map[string]struct{}{}, path: path}, nil
		}
		return nil, fmt.Errorf("opening formulary %s: %w", path, err)
	}
	defer f.Close()

	s := &Set{names: make(map[string]struct{}), path: path}
	folder := cases.Fold()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if k := key(folder, sc.Text()); k != "" {
			s.names[k] = struct{}{}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading formulary %s: %w", path, err)
	}
	return s, nil
}

// Contains reports whether name is in the set, ignoring case.
func (s *Set) Contains(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.names[key(cases.Fold(), name)]
	return ok
}

// Len returns the number of names in the set.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.names)
}

// Path returns the file the set was loaded from, if any.
func (s *Set) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func key(folder cases.Caser, name string) string {
	return folder.String(strings.TrimSpace(name))
}
