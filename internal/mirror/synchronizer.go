package mirror

import (
	"context"
	"fmt"
	"time"

	"github.com/gitplane/gitplane/internal/config"
	"github.com/gitplane/gitplane/internal/logging"
	"github.com/gitplane/gitplane/internal/metrics"
	"github.com/gitplane/gitplane/internal/util"
)

// Remote names used with the Executor. The executor maintains one local
// working copy per mirror with these two remotes configured.
const (
	RemoteSource      = "source"
	RemoteDestination = "destination"
)

// Executor provides the git capabilities the decision core needs. The core
// is agnostic to whether they are realized by a native git library or a
// shell-out; internal/gitops provides the go-git implementation, tests use
// an in-memory fake.
//
// Refspecs follow git syntax: a leading "+" allows non-fast-forward
// updates, an empty source side deletes the remote ref. Locally, source
// branches live under refs/remotes/source/* and destination branches under
// refs/remotes/destination/*.
type Executor interface {
	// ListRefs returns the refs currently advertised by the remote, keyed
	// by fully qualified ref name. Never cached; each call asks the remote.
	ListRefs(ctx context.Context, remote string) (map[string]CommitID, error)
	// Fetch fetches the given refspecs from the remote.
	Fetch(ctx context.Context, remote string, refspecs []string) error
	// Push pushes a single refspec to the remote.
	Push(ctx context.Context, remote string, refspec string) error
	// MergeBase computes the common ancestor of two fetched commits. The
	// boolean is false when the commits share no history.
	MergeBase(ctx context.Context, a, b CommitID) (CommitID, bool, error)
}

// BranchResult is the observable per-branch outcome of one sync run.
type BranchResult struct {
	Branch string
	Action ActionKind
	Err    error
}

// TagResult is the observable per-tag outcome of one sync run.
type TagResult struct {
	Tag     string
	Deleted bool
	Err     error
}

// Result aggregates the outcomes of one sync run. The remote git history is
// the only durable state; a Result is reported and discarded.
type Result struct {
	DestinationKind RemoteKind
	Branches        []BranchResult
	Tags            []TagResult
}

// Failed reports whether any branch aborted or failed to push. Tag
// failures do not fail the run; see Degraded.
func (r *Result) Failed() bool {
	for _, b := range r.Branches {
		if b.Err != nil {
			return true
		}
	}
	return false
}

// Degraded reports whether any tag push failed.
func (r *Result) Degraded() bool {
	for _, t := range r.Tags {
		if t.Err != nil {
			return true
		}
	}
	return false
}

// Synchronizer reconciles the branches and tags of one mirror. It owns no
// state across runs: every Execute re-derives ground truth from the
// remotes. Not thread-safe; branch and tag pushes run sequentially against
// a single shared working copy, because concurrent git operations against
// the same working tree are unsafe.
type Synchronizer struct {
	config *config.Mirror
	exec   Executor
	log    *logging.Logger
}

func New(cfg *config.Mirror, exec Executor, log *logging.Logger) *Synchronizer {
	return &Synchronizer{config: cfg, exec: exec, log: log}
}

// Execute runs one full sync: classify the destination, resolve each
// requested branch, analyze divergence, plan and execute pushes, then sync
// tags. One branch's abort does not halt the others; the run-level result
// is a failure if any branch aborted, with partial success preserved per
// branch.
func (s *Synchronizer) Execute(ctx context.Context) (*Result, error) {
	startTime := time.Now()
	metrics.SyncStarted(s.config.Name, s.config.Source.URL, startTime)
	defer metrics.SyncFinished(s.config.Name, s.config.Source.URL, startTime)

	res, err := s.execute(ctx)
	if err != nil {
		return nil, fmt.Errorf("mirror %q: %w", s.config.Name, err)
	}
	return res, nil
}

func (s *Synchronizer) execute(ctx context.Context) (*Result, error) {
	srcKind := Classify(s.config.Source.URL)
	dstKind := Classify(s.config.Destination.URL)
	s.log.Infof("destination %s classified as %s remote", util.MaskURL(s.config.Destination.URL), dstKind)

	result := &Result{DestinationKind: dstKind}

	srcRefs, err := s.exec.ListRefs(ctx, RemoteSource)
	if err != nil {
		return nil, fmt.Errorf("source unreachable: %w", err)
	}
	dstRefs, err := s.exec.ListRefs(ctx, RemoteDestination)
	if err != nil {
		return nil, fmt.Errorf("destination unreachable: %w", err)
	}

	srcBranches := FilterBranchRefs(srcRefs, srcKind)
	dstBranches := FilterBranchRefs(dstRefs, dstKind)

	mappings, failed := s.resolveMappings(srcBranches)
	result.Branches = append(result.Branches, failed...)

	srcTags := FilterTagRefs(srcRefs)
	dstTags := FilterTagRefs(dstRefs)
	selection := s.selectTags(srcTags)

	if err := s.fetch(ctx, mappings, dstBranches, selection); err != nil {
		return nil, err
	}

	for _, m := range mappings {
		result.Branches = append(result.Branches, s.syncBranch(ctx, m, srcBranches, dstBranches, dstKind))
	}

	result.Tags = s.syncTags(ctx, selection, srcTags, dstTags)

	return result, nil
}

// resolveMappings turns the configured branch list (or the full source
// branch list in all-branches mode) into concrete mappings. Resolution
// failures become per-branch results so the remaining branches still sync.
func (s *Synchronizer) resolveMappings(srcBranches map[string]CommitID) ([]BranchMapping, []BranchResult) {
	available := BranchNames(srcBranches)

	if s.config.AllBranches {
		globs := s.config.ExcludedBranchGlobs()
		var mappings []BranchMapping
	next:
		for _, name := range available {
			for _, g := range globs {
				if g.Match(name) {
					s.log.Debugf("branch %q excluded by pattern", name)
					continue next
				}
			}
			mappings = append(mappings, BranchMapping{Source: name, Destination: name})
		}
		return mappings, nil
	}

	var mappings []BranchMapping
	var failed []BranchResult
	for _, entry := range s.config.Branches {
		m, err := ParseMapping(entry)
		if err != nil {
			failed = append(failed, BranchResult{Branch: entry, Action: ActionAbort, Err: err})
			continue
		}

		resolved, err := ResolveBranch(m.Source, available, s.config.FallbackBranches)
		if err != nil {
			failed = append(failed, BranchResult{Branch: m.Source, Action: ActionAbort, Err: err})
			continue
		}
		if resolved != m.Source {
			s.log.Warnf("branch %q not found on source, falling back to %q", m.Source, resolved)
			if m.Destination == m.Source {
				m.Destination = resolved
			}
			m.Source = resolved
		}

		mappings = append(mappings, m)
	}
	return mappings, failed
}

func (s *Synchronizer) selectTags(srcTags map[string]CommitID) TagSelection {
	if s.config.Tags.Disabled() {
		return TagSelection{Mode: TagsDisabled}
	}

	mode := TagsAll
	if s.config.Tags.Pattern() != nil {
		mode = TagsPattern
	}

	sel := SelectTags(mode, s.config.Tags.Pattern(), TagNames(srcTags))
	s.log.Infof("selected %d tags for sync (mode %s)", len(sel.Tags), sel.Mode)
	return sel
}

// fetch pulls the commits backing the branches and tags this run will
// reconcile into the local working copy, so that ancestry computation and
// pushes can operate on local objects.
func (s *Synchronizer) fetch(ctx context.Context, mappings []BranchMapping, dstBranches map[string]CommitID, selection TagSelection) error {
	var srcSpecs []string
	for _, m := range mappings {
		srcSpecs = append(srcSpecs, fmt.Sprintf("+refs/heads/%s:refs/remotes/%s/%s", m.Source, RemoteSource, m.Source))
	}
	for _, tag := range selection.Tags {
		srcSpecs = append(srcSpecs, fmt.Sprintf("+refs/tags/%s:refs/tags/%s", tag, tag))
	}
	if len(srcSpecs) > 0 {
		if err := s.exec.Fetch(ctx, RemoteSource, srcSpecs); err != nil {
			return fmt.Errorf("fetch from source failed: %w", err)
		}
	}

	var dstSpecs []string
	for _, m := range mappings {
		if _, ok := dstBranches[m.Destination]; ok {
			dstSpecs = append(dstSpecs, fmt.Sprintf("+refs/heads/%s:refs/remotes/%s/%s", m.Destination, RemoteDestination, m.Destination))
		}
	}
	if len(dstSpecs) > 0 {
		if err := s.exec.Fetch(ctx, RemoteDestination, dstSpecs); err != nil {
			return fmt.Errorf("fetch from destination failed: %w", err)
		}
	}

	return nil
}

func (s *Synchronizer) syncBranch(ctx context.Context, m BranchMapping, srcBranches, dstBranches map[string]CommitID, dstKind RemoteKind) BranchResult {
	source := RefSnapshot{Name: m.Source, Commit: srcBranches[m.Source]}

	var destination *RefSnapshot
	if commit, ok := dstBranches[m.Destination]; ok {
		destination = &RefSnapshot{Name: m.Destination, Commit: commit}
	}

	div, err := Analyze(ctx, source, destination, s.exec)
	if err != nil {
		metrics.BranchSyncFailed(s.config.Name, m.Source)
		return BranchResult{Branch: m.Source, Action: ActionAbort, Err: fmt.Errorf("divergence analysis for %q failed: %w", m.Source, err)}
	}
	s.log.Debugf("branch %s: %s", m, div.State)

	policy := ForceDeny
	if s.config.ForcePush {
		policy = ForceAllow
	}

	action := Plan(dstKind, div, m.Destination, policy)

	switch action.Kind {
	case ActionNone:
		s.log.Debugf("branch %s is up to date", m)
		return BranchResult{Branch: m.Source, Action: ActionNone}

	case ActionAbort:
		s.log.Warnf("branch %s aborted: %v", m, action.Err)
		metrics.BranchSyncFailed(s.config.Name, m.Source)
		return BranchResult{Branch: m.Source, Action: ActionAbort, Err: action.Err}
	}

	refspec := fmt.Sprintf("refs/remotes/%s/%s:%s", RemoteSource, m.Source, action.DestRef)
	if action.Force {
		refspec = "+" + refspec
	}

	if err := s.exec.Push(ctx, RemoteDestination, refspec); err != nil {
		metrics.BranchSyncFailed(s.config.Name, m.Source)
		return BranchResult{Branch: m.Source, Action: action.Kind, Err: err}
	}

	s.log.Infof("branch %s: %s", m, action.Kind)
	metrics.BranchSynced(s.config.Name, m.Source)
	return BranchResult{Branch: m.Source, Action: action.Kind}
}

// syncTags pushes the selected tags one by one, so that a single failing
// tag does not block the others. Tags already pointing at the same object
// on the destination are skipped, which keeps repeated runs free of
// pushes. With pruning enabled, managed destination tags (those the mode
// or pattern covers) that no longer exist on the source are deleted;
// without it, sync is purely additive.
func (s *Synchronizer) syncTags(ctx context.Context, selection TagSelection, srcTags, dstTags map[string]CommitID) []TagResult {
	if selection.Mode == TagsDisabled {
		return nil
	}

	var results []TagResult
	for _, tag := range selection.Tags {
		if dst, ok := dstTags[tag]; ok && dst == srcTags[tag] {
			s.log.Debugf("tag %q is up to date", tag)
			continue
		}

		// Overwrite semantics: an existing destination tag is replaced.
		refspec := fmt.Sprintf("+refs/tags/%s:refs/tags/%s", tag, tag)
		if err := s.exec.Push(ctx, RemoteDestination, refspec); err != nil {
			err := &TagPushError{Tag: tag, Err: err}
			s.log.Warnf("%v", err)
			metrics.TagPushFailed(s.config.Name)
			results = append(results, TagResult{Tag: tag, Err: err})
			continue
		}
		metrics.TagPushed(s.config.Name)
		results = append(results, TagResult{Tag: tag})
	}

	if s.config.PruneTags {
		managed := SelectTags(selection.Mode, s.config.Tags.Pattern(), TagNames(dstTags))
		for _, tag := range managed.Tags {
			if _, ok := srcTags[tag]; ok {
				continue
			}
			if err := s.exec.Push(ctx, RemoteDestination, ":refs/tags/"+tag); err != nil {
				err := &TagPushError{Tag: tag, Err: err}
				s.log.Warnf("%v", err)
				metrics.TagPushFailed(s.config.Name)
				results = append(results, TagResult{Tag: tag, Deleted: true, Err: err})
				continue
			}
			s.log.Infof("pruned stale tag %q from destination", tag)
			results = append(results, TagResult{Tag: tag, Deleted: true})
		}
	}

	return results
}
