package mirror

import (
	"slices"
	"strings"
)

// DefaultFallbackBranches is the branch preference order used when the
// requested branch does not exist on the remote.
var DefaultFallbackBranches = []string{"main", "master"}

// ResolveBranch resolves the branch to sync. An exact match always wins: no
// fallback substitution happens for a branch that is present. Otherwise the
// fallback order is scanned and the first entry present in available is
// returned. If nothing matches, a *BranchNotFoundError carrying the full
// available set is returned.
func ResolveBranch(requested string, available []string, fallback []string) (string, error) {
	if slices.Contains(available, requested) {
		return requested, nil
	}

	for _, name := range fallback {
		if slices.Contains(available, name) {
			return name, nil
		}
	}

	return "", &BranchNotFoundError{
		Requested: requested,
		Fallbacks: slices.Clone(fallback),
		Available: slices.Clone(available),
	}
}

// FilterBranchRefs turns an advertised ref listing into plain branch names.
// It strips the refs/heads/ prefix, drops the symbolic HEAD entry and any
// remote-tracking aliases, and on Gerrit remotes drops the refs/for/* and
// refs/changes/* synthetic refs, which are review artifacts rather than
// branches. Commits are carried over so callers keep the name to commit
// association.
func FilterBranchRefs(refs map[string]CommitID, kind RemoteKind) map[string]CommitID {
	branches := make(map[string]CommitID, len(refs))
	for name, commit := range refs {
		if name == "HEAD" || strings.HasPrefix(name, "HEAD ->") {
			continue
		}
		if kind == RemoteGerrit && (strings.HasPrefix(name, "refs/for/") || strings.HasPrefix(name, "refs/changes/")) {
			continue
		}
		if strings.HasPrefix(name, "refs/remotes/") {
			continue
		}
		if !strings.HasPrefix(name, "refs/heads/") {
			continue
		}
		branches[strings.TrimPrefix(name, "refs/heads/")] = commit
	}
	return branches
}

// BranchNames returns the sorted branch names of a filtered listing.
func BranchNames(branches map[string]CommitID) []string {
	names := make([]string, 0, len(branches))
	for name := range branches {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
