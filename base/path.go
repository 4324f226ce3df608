package base

import (
	"strings"
)

// Path is a sequence of path segments, root-relative, no leading/trailing
// slashes. mkdir/write/read/ls/rm/mv all walk a Path one segment at a time.
type Path []string

// NewPath splits a slash-separated string into a Path, dropping empty
// segments produced by leading/trailing/doubled slashes.
func NewPath(s string) (Path, error) {
	if s == "" {
		return Path{}, nil
	}
	parts := strings.Split(s, "/")
	path := make(Path, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		path = append(path, p)
	}
	return path, nil
}

func (p Path) String() string { return strings.Join(p, "/") }

// Shift pops the head segment off the path, returning it and the
// remaining tail. tail is nil when head was the last segment.
func (p Path) Shift() (head string, tail Path) {
	if len(p) == 0 {
		return "", nil
	}
	if len(p) == 1 {
		return p[0], nil
	}
	return p[0], p[1:]
}
