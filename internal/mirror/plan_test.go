package mirror

import (
	"errors"
	"testing"
)

func TestPlan(t *testing.T) {
	tests := []struct {
		note     string
		kind     RemoteKind
		state    DivergenceState
		force    ForcePolicy
		expKind  ActionKind
		expRef   string
		expForce bool
	}{
		{"standard missing", RemoteStandard, DivergenceMissing, ForceDeny, ActionCreate, "refs/heads/main", false},
		{"standard identical", RemoteStandard, DivergenceIdentical, ForceDeny, ActionNone, "", false},
		{"standard fast-forward", RemoteStandard, DivergenceFastForward, ForceDeny, ActionFastForward, "refs/heads/main", false},
		{"standard destination ahead", RemoteStandard, DivergenceDestinationAhead, ForceDeny, ActionNone, "", false},
		{"standard diverged denied", RemoteStandard, DivergenceDiverged, ForceDeny, ActionAbort, "", false},
		{"standard diverged allowed", RemoteStandard, DivergenceDiverged, ForceAllow, ActionForcePush, "refs/heads/main", true},
		{"gerrit missing", RemoteGerrit, DivergenceMissing, ForceDeny, ActionGerritReview, "refs/for/main", false},
		{"gerrit diverged", RemoteGerrit, DivergenceDiverged, ForceDeny, ActionGerritReview, "refs/for/main", false},
		{"gerrit identical", RemoteGerrit, DivergenceIdentical, ForceDeny, ActionGerritReview, "refs/for/main", false},
	}

	for _, tc := range tests {
		t.Run(tc.note, func(t *testing.T) {
			act := Plan(tc.kind, DivergenceResult{State: tc.state}, "main", tc.force)
			if act.Kind != tc.expKind {
				t.Errorf("expected action %v, got %v", tc.expKind, act.Kind)
			}
			if act.DestRef != tc.expRef {
				t.Errorf("expected dest ref %q, got %q", tc.expRef, act.DestRef)
			}
			if act.Force != tc.expForce {
				t.Errorf("expected force %v, got %v", tc.expForce, act.Force)
			}
		})
	}
}

func TestPlanAbortError(t *testing.T) {
	act := Plan(RemoteStandard, DivergenceResult{State: DivergenceDiverged}, "release", ForceDeny)

	var dme *DestinationModifiedError
	if !errors.As(act.Err, &dme) {
		t.Fatalf("expected *DestinationModifiedError, got %v", act.Err)
	}
	if dme.Branch != "release" {
		t.Errorf("expected branch release, got %q", dme.Branch)
	}
	if dme.Explanation == "" || dme.Resolution == "" {
		t.Errorf("explanation and resolution must be populated: %+v", dme)
	}
}

// TestPlanNeverForcesUnlessAllowed sweeps every input combination: the only
// plan allowed to rewrite destination history is Diverged with ForceAllow on
// a standard remote.
func TestPlanNeverForcesUnlessAllowed(t *testing.T) {
	states := []DivergenceState{
		DivergenceMissing, DivergenceIdentical, DivergenceFastForward,
		DivergenceDestinationAhead, DivergenceDiverged,
	}

	for _, kind := range []RemoteKind{RemoteStandard, RemoteGerrit} {
		for _, state := range states {
			for _, force := range []ForcePolicy{ForceDeny, ForceAllow} {
				act := Plan(kind, DivergenceResult{State: state}, "main", force)

				allowed := kind == RemoteStandard && state == DivergenceDiverged && force == ForceAllow
				if (act.Force || act.Kind == ActionForcePush) && !allowed {
					t.Errorf("kind=%v state=%v force=%v produced forced action %+v", kind, state, force, act)
				}

				if kind == RemoteGerrit {
					if act.Kind != ActionGerritReview || act.DestRef != "refs/for/main" {
						t.Errorf("gerrit destination must always submit for review, got %+v", act)
					}
				}

				if act.Kind == ActionAbort && act.Err == nil {
					t.Errorf("abort without an error: kind=%v state=%v force=%v", kind, state, force)
				}
				if act.Kind != ActionAbort && act.Err != nil {
					t.Errorf("non-abort carries an error: %+v", act)
				}
			}
		}
	}
}
