package mirror

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gitplane/gitplane/internal/config"
	"github.com/gitplane/gitplane/internal/logging"
)

// fakeExecutor serves canned ref listings and records fetches and pushes.
// Ancestry is answered by an embedded fakeHistory.
type fakeExecutor struct {
	refs    map[string]map[string]CommitID
	listErr map[string]error
	pushErr map[string]error
	hist    *fakeHistory

	fetches map[string][][]string
	pushes  []string
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{
		refs:    map[string]map[string]CommitID{RemoteSource: {}, RemoteDestination: {}},
		listErr: map[string]error{},
		pushErr: map[string]error{},
		hist:    &fakeHistory{parents: map[CommitID][]CommitID{}},
		fetches: map[string][][]string{},
	}
}

func (f *fakeExecutor) ListRefs(_ context.Context, remote string) (map[string]CommitID, error) {
	if err := f.listErr[remote]; err != nil {
		return nil, err
	}
	return f.refs[remote], nil
}

func (f *fakeExecutor) Fetch(_ context.Context, remote string, refspecs []string) error {
	f.fetches[remote] = append(f.fetches[remote], slices.Clone(refspecs))
	return nil
}

func (f *fakeExecutor) Push(_ context.Context, remote string, refspec string) error {
	if remote != RemoteDestination {
		return fmt.Errorf("unexpected push to remote %q", remote)
	}
	if err := f.pushErr[refspec]; err != nil {
		return err
	}
	f.pushes = append(f.pushes, refspec)
	return nil
}

func (f *fakeExecutor) MergeBase(ctx context.Context, a, b CommitID) (CommitID, bool, error) {
	return f.hist.MergeBase(ctx, a, b)
}

func testMirror(t *testing.T, modify func(*config.Mirror)) *config.Mirror {
	t.Helper()
	m := &config.Mirror{
		Name:             "test",
		Source:           config.Remote{URL: "https://src.example.com/repo.git"},
		Destination:      config.Remote{URL: "https://dst.example.com/repo.git"},
		Branches:         config.StringSet{"main"},
		FallbackBranches: config.StringSet{"main", "master"},
	}
	if modify != nil {
		modify(m)
	}
	return m
}

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.Config{Level: logging.LogLevelError})
}

func TestSynchronizerCreatesMissingBranch(t *testing.T) {
	exec := newFakeExecutor()
	exec.refs[RemoteSource] = map[string]CommitID{"refs/heads/main": "c1"}

	s := New(testMirror(t, nil), exec, testLogger())
	res, err := s.Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Branches) != 1 || res.Branches[0].Action != ActionCreate || res.Branches[0].Err != nil {
		t.Fatalf("expected single create result, got %+v", res.Branches)
	}
	if diff := cmp.Diff([]string{"refs/remotes/source/main:refs/heads/main"}, exec.pushes); diff != "" {
		t.Errorf("unexpected pushes (-want +got):\n%s", diff)
	}
	if len(exec.fetches[RemoteDestination]) != 0 {
		t.Errorf("no destination branches exist, nothing to fetch: %v", exec.fetches[RemoteDestination])
	}
	if res.Failed() {
		t.Error("run must not be failed")
	}
}

func TestSynchronizerFastForward(t *testing.T) {
	exec := newFakeExecutor()
	exec.refs[RemoteSource] = map[string]CommitID{"refs/heads/main": "c2"}
	exec.refs[RemoteDestination] = map[string]CommitID{"refs/heads/main": "c1"}
	exec.hist.parents["c2"] = []CommitID{"c1"}

	s := New(testMirror(t, nil), exec, testLogger())
	res, err := s.Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Branches) != 1 || res.Branches[0].Action != ActionFastForward {
		t.Fatalf("expected fast-forward, got %+v", res.Branches)
	}
	if diff := cmp.Diff([]string{"refs/remotes/source/main:refs/heads/main"}, exec.pushes); diff != "" {
		t.Errorf("unexpected pushes (-want +got):\n%s", diff)
	}
	exp := [][]string{{"+refs/heads/main:refs/remotes/destination/main"}}
	if diff := cmp.Diff(exp, exec.fetches[RemoteDestination]); diff != "" {
		t.Errorf("unexpected destination fetches (-want +got):\n%s", diff)
	}
}

func TestSynchronizerIdempotent(t *testing.T) {
	// Source and destination already agree on branches and tags. A run must
	// not push anything.
	exec := newFakeExecutor()
	exec.refs[RemoteSource] = map[string]CommitID{
		"refs/heads/main": "c1",
		"refs/tags/v1.0":  "t1",
	}
	exec.refs[RemoteDestination] = map[string]CommitID{
		"refs/heads/main": "c1",
		"refs/tags/v1.0":  "t1",
	}

	s := New(testMirror(t, func(m *config.Mirror) {
		m.Tags = config.TagSpecAll()
	}), exec, testLogger())

	res, err := s.Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(exec.pushes) != 0 {
		t.Errorf("expected no pushes, got %v", exec.pushes)
	}
	if len(res.Branches) != 1 || res.Branches[0].Action != ActionNone {
		t.Errorf("expected up-to-date branch result, got %+v", res.Branches)
	}
	if res.Failed() || res.Degraded() {
		t.Error("clean run reported as failed or degraded")
	}
}

func TestSynchronizerDivergedDenied(t *testing.T) {
	// main diverged; dev is new on the destination. The diverged branch
	// aborts, the other still syncs, and the run as a whole fails.
	exec := newFakeExecutor()
	exec.refs[RemoteSource] = map[string]CommitID{
		"refs/heads/main": "s1",
		"refs/heads/dev":  "x1",
	}
	exec.refs[RemoteDestination] = map[string]CommitID{"refs/heads/main": "d1"}
	exec.hist.parents["s1"] = []CommitID{"base"}
	exec.hist.parents["d1"] = []CommitID{"base"}

	s := New(testMirror(t, func(m *config.Mirror) {
		m.Branches = config.StringSet{"main", "dev"}
	}), exec, testLogger())

	res, err := s.Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if !res.Failed() {
		t.Fatal("run with an aborted branch must be failed")
	}

	byBranch := map[string]BranchResult{}
	for _, b := range res.Branches {
		byBranch[b.Branch] = b
	}

	var dme *DestinationModifiedError
	if !errors.As(byBranch["main"].Err, &dme) {
		t.Fatalf("expected *DestinationModifiedError for main, got %+v", byBranch["main"])
	}
	if byBranch["main"].Action != ActionAbort {
		t.Errorf("expected abort for main, got %v", byBranch["main"].Action)
	}

	if byBranch["dev"].Err != nil || byBranch["dev"].Action != ActionCreate {
		t.Errorf("dev must still sync, got %+v", byBranch["dev"])
	}
	if diff := cmp.Diff([]string{"refs/remotes/source/dev:refs/heads/dev"}, exec.pushes); diff != "" {
		t.Errorf("unexpected pushes (-want +got):\n%s", diff)
	}
}

func TestSynchronizerDivergedForced(t *testing.T) {
	exec := newFakeExecutor()
	exec.refs[RemoteSource] = map[string]CommitID{"refs/heads/main": "s1"}
	exec.refs[RemoteDestination] = map[string]CommitID{"refs/heads/main": "d1"}
	exec.hist.parents["s1"] = []CommitID{"base"}
	exec.hist.parents["d1"] = []CommitID{"base"}

	s := New(testMirror(t, func(m *config.Mirror) {
		m.ForcePush = true
	}), exec, testLogger())

	res, err := s.Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Branches) != 1 || res.Branches[0].Action != ActionForcePush || res.Branches[0].Err != nil {
		t.Fatalf("expected force-push result, got %+v", res.Branches)
	}
	if diff := cmp.Diff([]string{"+refs/remotes/source/main:refs/heads/main"}, exec.pushes); diff != "" {
		t.Errorf("unexpected pushes (-want +got):\n%s", diff)
	}
}

func TestSynchronizerGerritDestination(t *testing.T) {
	exec := newFakeExecutor()
	exec.refs[RemoteSource] = map[string]CommitID{"refs/heads/main": "c1"}
	exec.refs[RemoteDestination] = map[string]CommitID{
		"refs/heads/main":         "c1",
		"refs/for/main":           "c9",
		"refs/changes/45/12345/1": "c8",
	}

	s := New(testMirror(t, func(m *config.Mirror) {
		m.Destination.URL = "ssh://review.example.com:29418/project"
	}), exec, testLogger())

	res, err := s.Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if res.DestinationKind != RemoteGerrit {
		t.Fatalf("expected gerrit destination, got %v", res.DestinationKind)
	}
	// Even an identical branch goes through the review queue; the queue
	// arbitrates, not the divergence state.
	if len(res.Branches) != 1 || res.Branches[0].Action != ActionGerritReview {
		t.Fatalf("expected gerrit-review result, got %+v", res.Branches)
	}
	if diff := cmp.Diff([]string{"refs/remotes/source/main:refs/for/main"}, exec.pushes); diff != "" {
		t.Errorf("unexpected pushes (-want +got):\n%s", diff)
	}
}

func TestSynchronizerFallbackBranch(t *testing.T) {
	exec := newFakeExecutor()
	exec.refs[RemoteSource] = map[string]CommitID{"refs/heads/master": "c1"}

	s := New(testMirror(t, func(m *config.Mirror) {
		m.Branches = config.StringSet{"trunk"}
	}), exec, testLogger())

	res, err := s.Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(res.Branches) != 1 || res.Branches[0].Branch != "master" || res.Branches[0].Err != nil {
		t.Fatalf("expected fallback to master, got %+v", res.Branches)
	}
	if diff := cmp.Diff([]string{"refs/remotes/source/master:refs/heads/master"}, exec.pushes); diff != "" {
		t.Errorf("unexpected pushes (-want +got):\n%s", diff)
	}
}

func TestSynchronizerExplicitDestinationSurvivesFallback(t *testing.T) {
	// "trunk:release": trunk falls back to main, but the explicitly mapped
	// destination name is kept.
	exec := newFakeExecutor()
	exec.refs[RemoteSource] = map[string]CommitID{"refs/heads/main": "c1"}

	s := New(testMirror(t, func(m *config.Mirror) {
		m.Branches = config.StringSet{"trunk:release"}
	}), exec, testLogger())

	_, err := s.Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{"refs/remotes/source/main:refs/heads/release"}, exec.pushes); diff != "" {
		t.Errorf("unexpected pushes (-want +got):\n%s", diff)
	}
}

func TestSynchronizerBranchNotFound(t *testing.T) {
	exec := newFakeExecutor()
	exec.refs[RemoteSource] = map[string]CommitID{"refs/heads/dev": "c1"}

	s := New(testMirror(t, func(m *config.Mirror) {
		m.Branches = config.StringSet{"trunk", "dev"}
	}), exec, testLogger())

	res, err := s.Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if !res.Failed() {
		t.Fatal("unresolvable branch must fail the run")
	}

	byBranch := map[string]BranchResult{}
	for _, b := range res.Branches {
		byBranch[b.Branch] = b
	}

	var bnf *BranchNotFoundError
	if !errors.As(byBranch["trunk"].Err, &bnf) {
		t.Fatalf("expected *BranchNotFoundError, got %+v", byBranch["trunk"])
	}
	if diff := cmp.Diff([]string{"dev"}, bnf.Available); diff != "" {
		t.Errorf("unexpected available set (-want +got):\n%s", diff)
	}
	if byBranch["dev"].Err != nil {
		t.Errorf("dev must still sync, got %+v", byBranch["dev"])
	}
}

func TestSynchronizerAllBranches(t *testing.T) {
	exec := newFakeExecutor()
	exec.refs[RemoteSource] = map[string]CommitID{
		"refs/heads/main":    "c1",
		"refs/heads/dev":     "c2",
		"refs/heads/wip/x":   "c3",
		"refs/heads/wip/y":   "c4",
		"refs/tags/untagged": "c5",
	}

	s := New(testMirror(t, func(m *config.Mirror) {
		m.Branches = nil
		m.AllBranches = true
		m.ExcludedBranches = config.StringSet{"wip/*"}
	}), exec, testLogger())

	res, err := s.Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	var branches []string
	for _, b := range res.Branches {
		branches = append(branches, b.Branch)
	}
	slices.Sort(branches)
	if diff := cmp.Diff([]string{"dev", "main"}, branches); diff != "" {
		t.Errorf("unexpected branch set (-want +got):\n%s", diff)
	}
}

func TestSynchronizerTags(t *testing.T) {
	exec := newFakeExecutor()
	exec.refs[RemoteSource] = map[string]CommitID{
		"refs/heads/main": "c1",
		"refs/tags/v1.0":  "t1",
		"refs/tags/v1.1":  "t2",
		"refs/tags/v2.0":  "t3",
	}
	exec.refs[RemoteDestination] = map[string]CommitID{
		"refs/heads/main": "c1",
		"refs/tags/v1.1":  "t2", // up to date
	}

	tags, err := config.ParseTagSpec(`^v1\.`)
	if err != nil {
		t.Fatal(err)
	}

	s := New(testMirror(t, func(m *config.Mirror) {
		m.Tags = tags
	}), exec, testLogger())

	res, err := s.Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	// v2.0 excluded by the pattern, v1.1 already current, v1.0 pushed with
	// overwrite semantics.
	if diff := cmp.Diff([]string{"+refs/tags/v1.0:refs/tags/v1.0"}, exec.pushes); diff != "" {
		t.Errorf("unexpected pushes (-want +got):\n%s", diff)
	}
	if len(res.Tags) != 1 || res.Tags[0].Tag != "v1.0" || res.Tags[0].Err != nil {
		t.Errorf("unexpected tag results: %+v", res.Tags)
	}
}

func TestSynchronizerTagFailureIsolation(t *testing.T) {
	exec := newFakeExecutor()
	exec.refs[RemoteSource] = map[string]CommitID{
		"refs/heads/main": "c1",
		"refs/tags/v1.0":  "t1",
		"refs/tags/v2.0":  "t3",
	}
	exec.refs[RemoteDestination] = map[string]CommitID{"refs/heads/main": "c1"}
	exec.pushErr["+refs/tags/v1.0:refs/tags/v1.0"] = errors.New("pre-receive hook declined")

	s := New(testMirror(t, func(m *config.Mirror) {
		m.Tags = config.TagSpecAll()
	}), exec, testLogger())

	res, err := s.Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if res.Failed() {
		t.Error("tag failures must not fail the run")
	}
	if !res.Degraded() {
		t.Error("tag failure must degrade the run")
	}

	if diff := cmp.Diff([]string{"+refs/tags/v2.0:refs/tags/v2.0"}, exec.pushes); diff != "" {
		t.Errorf("remaining tags must still be attempted (-want +got):\n%s", diff)
	}

	var tpe *TagPushError
	if len(res.Tags) != 2 || !errors.As(res.Tags[0].Err, &tpe) || tpe.Tag != "v1.0" {
		t.Errorf("unexpected tag results: %+v", res.Tags)
	}
}

func TestSynchronizerPruneTags(t *testing.T) {
	exec := newFakeExecutor()
	exec.refs[RemoteSource] = map[string]CommitID{"refs/heads/main": "c1"}
	exec.refs[RemoteDestination] = map[string]CommitID{
		"refs/heads/main": "c1",
		"refs/tags/stale": "t9",
	}

	t.Run("additive by default", func(t *testing.T) {
		s := New(testMirror(t, func(m *config.Mirror) {
			m.Tags = config.TagSpecAll()
		}), exec, testLogger())

		res, err := s.Execute(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if len(exec.pushes) != 0 || len(res.Tags) != 0 {
			t.Errorf("additive sync must not touch destination-only tags: pushes=%v tags=%+v", exec.pushes, res.Tags)
		}
	})

	t.Run("prune deletes stale managed tags", func(t *testing.T) {
		s := New(testMirror(t, func(m *config.Mirror) {
			m.Tags = config.TagSpecAll()
			m.PruneTags = true
		}), exec, testLogger())

		res, err := s.Execute(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{":refs/tags/stale"}, exec.pushes); diff != "" {
			t.Errorf("unexpected pushes (-want +got):\n%s", diff)
		}
		if len(res.Tags) != 1 || !res.Tags[0].Deleted || res.Tags[0].Tag != "stale" {
			t.Errorf("unexpected tag results: %+v", res.Tags)
		}
	})
}

func TestSynchronizerUnreachableRemotes(t *testing.T) {
	t.Run("source", func(t *testing.T) {
		exec := newFakeExecutor()
		exec.listErr[RemoteSource] = errors.New("connection refused")

		s := New(testMirror(t, nil), exec, testLogger())
		_, err := s.Execute(context.Background())
		if err == nil || !strings.Contains(err.Error(), "source unreachable") {
			t.Fatalf("expected source unreachable error, got %v", err)
		}
	})

	t.Run("destination", func(t *testing.T) {
		exec := newFakeExecutor()
		exec.refs[RemoteSource] = map[string]CommitID{"refs/heads/main": "c1"}
		exec.listErr[RemoteDestination] = errors.New("connection refused")

		s := New(testMirror(t, nil), exec, testLogger())
		_, err := s.Execute(context.Background())
		if err == nil || !strings.Contains(err.Error(), "destination unreachable") {
			t.Fatalf("expected destination unreachable error, got %v", err)
		}
	})
}
