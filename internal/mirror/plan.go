package mirror

// ForcePolicy controls whether a diverged destination branch may be
// overwritten.
type ForcePolicy int

const (
	// ForceDeny aborts the branch when the destination has diverged. The
	// default: a silent force push would permanently discard
	// destination-only commits.
	ForceDeny ForcePolicy = iota
	// ForceAllow permits overwriting a diverged destination branch.
	ForceAllow
)

// ActionKind enumerates the push actions the planner can decide on.
type ActionKind int

const (
	// ActionNone means the destination is already up to date.
	ActionNone ActionKind = iota
	// ActionCreate creates a branch that does not exist on the
	// destination yet.
	ActionCreate
	// ActionFastForward advances the destination branch without rewriting
	// history.
	ActionFastForward
	// ActionForcePush overwrites the destination branch, discarding
	// destination-only commits.
	ActionForcePush
	// ActionGerritReview submits the source branch to the Gerrit review
	// queue (refs/for/<branch>).
	ActionGerritReview
	// ActionAbort refuses to push; Err carries the reason.
	ActionAbort
)

func (k ActionKind) String() string {
	switch k {
	case ActionNone:
		return "up-to-date"
	case ActionCreate:
		return "create"
	case ActionFastForward:
		return "fast-forward"
	case ActionForcePush:
		return "force-push"
	case ActionGerritReview:
		return "gerrit-review"
	case ActionAbort:
		return "abort"
	}
	return "unknown"
}

// PushAction is the single output artifact of the decision core per branch.
// DestRef is the fully qualified ref to push to on the destination; Force
// marks refspecs that must be allowed to rewrite history. Err is set only
// for ActionAbort.
type PushAction struct {
	Kind    ActionKind
	DestRef string
	Force   bool
	Err     error
}

// Plan combines the remote classification, the divergence result and the
// force policy into a push action. The mapping is deterministic:
//
// Gerrit destinations never receive direct branch pushes. All states,
// including Diverged, submit to refs/for/<branch>: the review queue itself
// arbitrates conflicting history, so Gerrit participation short-circuits
// the divergence decision.
//
// For standard destinations, Diverged is the single safety-critical branch
// point. Unless the caller opted into ForceAllow, the plan is an abort
// carrying a *DestinationModifiedError.
func Plan(kind RemoteKind, div DivergenceResult, destBranch string, force ForcePolicy) PushAction {
	if kind == RemoteGerrit {
		return PushAction{Kind: ActionGerritReview, DestRef: "refs/for/" + destBranch}
	}

	branchRef := "refs/heads/" + destBranch

	switch div.State {
	case DivergenceMissing:
		return PushAction{Kind: ActionCreate, DestRef: branchRef}
	case DivergenceIdentical, DivergenceDestinationAhead:
		return PushAction{Kind: ActionNone}
	case DivergenceFastForward:
		return PushAction{Kind: ActionFastForward, DestRef: branchRef}
	case DivergenceDiverged:
		if force == ForceAllow {
			return PushAction{Kind: ActionForcePush, DestRef: branchRef, Force: true}
		}
		return PushAction{Kind: ActionAbort, Err: newDestinationModifiedError(destBranch)}
	}

	return PushAction{Kind: ActionAbort, Err: newDestinationModifiedError(destBranch)}
}
