package mirror

import (
	"regexp"
	"slices"
	"strings"
)

// TagMode controls which tags are synced to the destination.
type TagMode int

const (
	// TagsDisabled syncs no tags; no tag listing or push is performed.
	TagsDisabled TagMode = iota
	// TagsAll syncs every candidate tag.
	TagsAll
	// TagsPattern syncs the tags whose name matches a regular expression.
	TagsPattern
)

func (m TagMode) String() string {
	switch m {
	case TagsAll:
		return "all"
	case TagsPattern:
		return "pattern"
	default:
		return "disabled"
	}
}

// TagSelection is the tag set chosen for one sync run, computed once from
// the advertised candidate tags. Selected tags are pushed with overwrite
// semantics: an existing destination tag of the same name is replaced. Tags
// are treated as mutable pointers here, a deliberate divergence from the
// usual git convention that tags are immutable.
type TagSelection struct {
	Mode TagMode
	Tags []string
}

// SelectTags computes the tag selection. pattern is only consulted for
// TagsPattern. An empty selection is a valid, non-error outcome.
func SelectTags(mode TagMode, pattern *regexp.Regexp, candidates []string) TagSelection {
	sel := TagSelection{Mode: mode}

	switch mode {
	case TagsDisabled:
	case TagsAll:
		sel.Tags = slices.Clone(candidates)
	case TagsPattern:
		for _, tag := range candidates {
			if pattern.MatchString(tag) {
				sel.Tags = append(sel.Tags, tag)
			}
		}
	}

	slices.Sort(sel.Tags)
	return sel
}

// FilterTagRefs turns an advertised ref listing into plain tag names,
// dropping peeled ^{} entries in favor of the annotated tag object itself.
func FilterTagRefs(refs map[string]CommitID) map[string]CommitID {
	tags := make(map[string]CommitID, len(refs))
	for name, commit := range refs {
		if !strings.HasPrefix(name, "refs/tags/") || strings.HasSuffix(name, "^{}") {
			continue
		}
		tags[strings.TrimPrefix(name, "refs/tags/")] = commit
	}
	return tags
}

// TagNames returns the sorted tag names of a filtered listing.
func TagNames(tags map[string]CommitID) []string {
	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
