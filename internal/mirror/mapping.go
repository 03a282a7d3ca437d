package mirror

import "strings"

// BranchMapping pairs a source branch with the destination branch it is
// synced to. Both names are non-empty.
type BranchMapping struct {
	Source      string
	Destination string
}

// ParseMapping parses user-supplied "source" or "source:destination" branch
// mapping syntax. A bare branch name maps to the same name on the
// destination.
func ParseMapping(s string) (BranchMapping, error) {
	src, dst, found := strings.Cut(s, ":")
	if !found {
		dst = src
	}
	src, dst = strings.TrimSpace(src), strings.TrimSpace(dst)
	if src == "" || dst == "" || strings.Contains(dst, ":") {
		return BranchMapping{}, &InvalidMappingError{Mapping: s}
	}
	return BranchMapping{Source: src, Destination: dst}, nil
}

func (m BranchMapping) String() string {
	if m.Source == m.Destination {
		return m.Source
	}
	return m.Source + ":" + m.Destination
}
