// Package fsdiff isolates renderer output from incidental artifacts by
// diffing before/after snapshots of a working directory.
package fsdiff

import (
	"os"
	"path/filepath"
	"strings"
)

// transientSuffixes are extensions the renderer and its supervision
// leave behind that are never real output: temp files, captured stdout,
// logs and metadata sidecars. Suffix match is case-sensitive.
var transientSuffixes = []string{".temp", ".stdout", ".log", ".xml"}

// Set is a snapshot of a directory's file listing. Membership is by
// exact path string.
type Set map[string]struct{}

// Contains reports whether path is in the set.
func (s Set) Contains(path string) bool {
	_, ok := s[path]
	return ok
}

// Paths returns the set's members as a slice. Order is unspecified;
// callers must not rely on it.
func (s Set) Paths() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	return out
}

// Snapshot lists the files in dir whose base names match pattern
// (filepath.Match syntax), non-recursively. Directories are skipped.
func Snapshot(dir, pattern string) (Set, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, err
	}

	set := make(Set, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		set[m] = struct{}{}
	}
	return set, nil
}

// Diff re-snapshots dir with an unfiltered pattern and returns the
// files present now that were not in before, minus anything with a
// transient suffix. A renderer-created file matching the denylist is
// never reported as output even though it is new.
func Diff(before Set, dir string) (Set, error) {
	after, err := Snapshot(dir, "*")
	if err != nil {
		return nil, err
	}

	diff := make(Set)
	for p := range after {
		if before.Contains(p) {
			continue
		}
		if transient(p) {
			continue
		}
		diff[p] = struct{}{}
	}
	return diff, nil
}

func transient(path string) bool {
	for _, suffix := range transientSuffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}
