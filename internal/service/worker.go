package service

import (
	"cmp"
	"context"
	"time"

	"github.com/gitplane/gitplane/internal/config"
	"github.com/gitplane/gitplane/internal/gitops"
	"github.com/gitplane/gitplane/internal/logging"
	"github.com/gitplane/gitplane/internal/mirror"
	"github.com/gitplane/gitplane/internal/progress"
)

var (
	defaultInterval = 5 * time.Minute
	errorInterval   = 30 * time.Second
)

// MirrorWorker runs the recurring synchronization of one mirror. It owns
// the mirror's local working copy and re-runs the reconciliation on its
// configured interval, retrying faster after errors. Branch and tag pushes
// within one iteration are strictly sequential; parallelism only exists
// across workers, which never share a working copy.
type MirrorWorker struct {
	dataDir      string
	mirrorConfig *config.Mirror
	repo         *gitops.Repository
	synchronizer *mirror.Synchronizer
	changed      chan struct{}
	done         chan struct{}
	singleShot   bool
	opened       bool
	log          *logging.Logger
	bar          *progress.Bar
	status       Status
	interval     time.Duration
}

func NewMirrorWorker(dataDir string, m *config.Mirror, logger *logging.Logger, bar *progress.Bar) *MirrorWorker {
	repo := gitops.NewRepository(dataDir, m)
	return &MirrorWorker{
		dataDir:      dataDir,
		mirrorConfig: m,
		repo:         repo,
		synchronizer: mirror.New(m, repo, logger),
		log:          logger,
		bar:          bar,
		changed:      make(chan struct{}), done: make(chan struct{}),
		interval: cmp.Or(time.Duration(m.Interval), defaultInterval),
	}
}

func (w *MirrorWorker) WithSingleShot(singleShot bool) *MirrorWorker {
	w.singleShot = singleShot
	return w
}

func (w *MirrorWorker) WithInterval(d config.Duration) *MirrorWorker {
	w.interval = cmp.Or(time.Duration(d), defaultInterval)
	return w
}

func (w *MirrorWorker) Done() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

func (w *MirrorWorker) Status() Status {
	return w.status
}

func (w *MirrorWorker) UpdateConfig(m *config.Mirror) {
	if m == nil || !w.mirrorConfig.Equal(m) {
		w.changeConfiguration()
	}
}

// Execute runs one mirror synchronization iteration and returns the
// deadline for the next one.
func (w *MirrorWorker) Execute(ctx context.Context) time.Time {
	defer w.bar.Add(1)

	// If a configuration change was requested, request the worker to be
	// removed from the pool and signal this worker being done.
	if w.configurationChanged() {
		return w.die(ctx)
	}

	if !w.opened {
		if err := w.repo.Open(); err != nil {
			w.log.Warnf("failed to open working copy for mirror %q: %v", w.mirrorConfig.Name, err)
			return w.report(SyncStateInternalError, err)
		}
		w.opened = true
	}

	result, err := w.synchronizer.Execute(ctx)
	if err != nil {
		w.log.Warnf("failed to synchronize mirror %q: %v", w.mirrorConfig.Name, err)
		return w.report(SyncStateSyncFailed, err)
	}

	for _, b := range result.Branches {
		if b.Err != nil {
			w.log.Warnf("mirror %q branch %q: %v", w.mirrorConfig.Name, b.Branch, b.Err)
		}
	}

	switch {
	case result.Failed():
		return w.report(SyncStateAborted, firstBranchError(result))
	case result.Degraded():
		w.log.Debugf("mirror %q synchronized with tag failures.", w.mirrorConfig.Name)
		return w.report(SyncStateDegraded, nil)
	}

	w.log.Debugf("mirror %q synchronized.", w.mirrorConfig.Name)
	return w.report(SyncStateSuccess, nil)
}

func firstBranchError(result *mirror.Result) error {
	for _, b := range result.Branches {
		if b.Err != nil {
			return b.Err
		}
	}
	return nil
}

func (w *MirrorWorker) report(state SyncState, err error) time.Time {
	interval := w.interval
	w.status = Status{State: state}
	if err != nil {
		w.status.Message = err.Error()
	}

	// Transient failures retry faster. Aborted branches are deterministic
	// outcomes needing operator action, so they wait the full interval.
	if state == SyncStateSyncFailed || state == SyncStateInternalError {
		interval = errorInterval
	}

	if w.singleShot {
		return w.die(context.Background())
	}

	return time.Now().Add(interval)
}

func (w *MirrorWorker) changeConfiguration() {
	select {
	case <-w.changed:
	default:
		close(w.changed)
	}
}

func (w *MirrorWorker) configurationChanged() bool {
	select {
	case <-w.changed:
		return true
	default:
		return false
	}
}

func (w *MirrorWorker) die(ctx context.Context) time.Time {
	w.repo.Close(ctx)
	close(w.done)

	var zero time.Time
	return zero
}
