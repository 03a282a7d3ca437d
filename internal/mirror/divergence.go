package mirror

import "context"

// CommitID is a content-addressed commit identifier. Identity comparison is
// by equality; ordering between commits is determined purely by ancestry
// reachability, never by timestamps, since history can be rewritten.
type CommitID string

// RefSnapshot is a named ref and the commit it pointed to when the remote
// was listed. Snapshots are fetched fresh per sync run and never cached
// across runs.
type RefSnapshot struct {
	Name   string
	Commit CommitID
}

// DivergenceState classifies the relationship between a source ref and its
// destination counterpart.
type DivergenceState int

const (
	// DivergenceMissing means the destination ref does not exist. Always
	// safe to create.
	DivergenceMissing DivergenceState = iota
	// DivergenceIdentical means both refs point at the same commit.
	DivergenceIdentical
	// DivergenceFastForward means the destination commit is a strict
	// ancestor of the source commit; an ordinary push suffices.
	DivergenceFastForward
	// DivergenceDestinationAhead means the destination is strictly ahead
	// of the source: there is nothing to sync. Treated as a no-op like
	// Identical, but labelled distinctly because forcing here would lose
	// destination-only commits.
	DivergenceDestinationAhead
	// DivergenceDiverged means the destination holds commits absent from
	// the source, or the histories are unrelated. The unsafe case.
	DivergenceDiverged
)

func (s DivergenceState) String() string {
	switch s {
	case DivergenceMissing:
		return "missing"
	case DivergenceIdentical:
		return "identical"
	case DivergenceFastForward:
		return "fast-forward"
	case DivergenceDestinationAhead:
		return "destination-ahead"
	case DivergenceDiverged:
		return "diverged"
	}
	return "unknown"
}

// DivergenceResult is the outcome of analyzing one branch. MergeBase is set
// for Diverged when the histories share an ancestor; it is empty for
// unrelated histories.
type DivergenceResult struct {
	State     DivergenceState
	MergeBase CommitID
}

// History exposes common-ancestor computation over the fetched commit
// graph. The second return value is false when the two commits share no
// history at all.
type History interface {
	MergeBase(ctx context.Context, a, b CommitID) (CommitID, bool, error)
}

// Analyze classifies the divergence between the source ref and its
// destination counterpart. A nil destination means the branch does not
// exist on the destination yet.
func Analyze(ctx context.Context, source RefSnapshot, destination *RefSnapshot, hist History) (DivergenceResult, error) {
	if destination == nil {
		return DivergenceResult{State: DivergenceMissing}, nil
	}

	if source.Commit == destination.Commit {
		return DivergenceResult{State: DivergenceIdentical}, nil
	}

	base, ok, err := hist.MergeBase(ctx, source.Commit, destination.Commit)
	if err != nil {
		return DivergenceResult{}, err
	}
	if !ok {
		// Unrelated histories diverge by definition.
		return DivergenceResult{State: DivergenceDiverged}, nil
	}

	switch base {
	case destination.Commit:
		return DivergenceResult{State: DivergenceFastForward}, nil
	case source.Commit:
		return DivergenceResult{State: DivergenceDestinationAhead}, nil
	default:
		return DivergenceResult{State: DivergenceDiverged, MergeBase: base}, nil
	}
}
