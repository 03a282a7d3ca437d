// Package mirror implements the branch and tag reconciliation engine: it
// classifies the destination push model, resolves which branches to sync,
// determines how a source ref and its destination counterpart diverge, and
// decides the push action that is safe to perform. The package contains no
// git transport code; all remote operations go through the Executor
// interface so the decision logic can be tested against an in-memory
// history.
package mirror

import "strings"

// RemoteKind describes the push model of a destination repository.
type RemoteKind int

const (
	// RemoteStandard is a GitHub/GitLab/Gitea-style remote accepting
	// direct branch pushes.
	RemoteStandard RemoteKind = iota
	// RemoteGerrit is a Gerrit remote where changes are submitted to the
	// refs/for/* review queue instead of landing on branches directly.
	RemoteGerrit
)

func (k RemoteKind) String() string {
	switch k {
	case RemoteGerrit:
		return "gerrit"
	default:
		return "standard"
	}
}

// detector is a single URL heuristic. Detection is best-effort: there is no
// authoritative way to probe a remote for its push model, so classification
// relies on well-known Gerrit URL signatures.
type detector struct {
	name  string
	match func(url string) bool
}

var gerritDetectors = []detector{
	{"gerrit-hostname", func(url string) bool {
		return strings.Contains(strings.ToLower(url), "gerrit")
	}},
	{"gerrit-ssh-port", func(url string) bool {
		return strings.Contains(url, ":29418")
	}},
	{"gerrit-r-path", hasGerritPathSegment},
}

// Classify inspects a repository URL and decides whether the remote behaves
// as a Gerrit review queue or a standard remote. It is a pure, total
// function: detectors are applied in order, the first match wins, and no
// match means standard.
func Classify(url string) RemoteKind {
	for _, d := range gerritDetectors {
		if d.match(url) {
			return RemoteGerrit
		}
	}
	return RemoteStandard
}

// hasGerritPathSegment reports whether the URL path contains the canonical
// Gerrit "/r/" prefix segment.
func hasGerritPathSegment(url string) bool {
	rest := url
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[i:]
	} else {
		return false
	}
	return rest == "/r" || strings.HasPrefix(rest, "/r/")
}
