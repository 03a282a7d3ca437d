package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gitplane/gitplane/internal/config"
	"github.com/gitplane/gitplane/internal/logging"
	"github.com/gitplane/gitplane/internal/pool"
	"github.com/gitplane/gitplane/internal/progress"
	"github.com/gitplane/gitplane/internal/util"
)

// Service schedules one MirrorWorker per configured mirror on a shared
// worker pool. In single-shot mode it waits for every mirror to finish one
// iteration and reports the aggregate outcome; otherwise it runs until the
// context is cancelled.
type Service struct {
	config     *config.Root
	log        *logging.Logger
	singleShot bool
	quiet      bool
	workers    map[string]*MirrorWorker
}

func New(cfg *config.Root, logger *logging.Logger) *Service {
	return &Service{config: cfg, log: logger, workers: map[string]*MirrorWorker{}}
}

func (s *Service) WithSingleShot(singleShot bool) *Service {
	s.singleShot = singleShot
	return s
}

func (s *Service) WithQuiet(quiet bool) *Service {
	s.quiet = quiet
	return s
}

// Run starts the workers and, when configured, the metrics listener. In
// single-shot mode it returns once every mirror completed one iteration;
// the returned error reflects whether any mirror failed.
func (s *Service) Run(ctx context.Context) error {
	svc := s.config.Service
	if svc == nil {
		svc = &config.Service{}
	}

	dataDir := svc.DataDir
	if dataDir == "" {
		dataDir = "data"
	}

	numWorkers := svc.Workers
	if numWorkers <= 0 {
		numWorkers = len(s.config.Mirrors)
	}
	if numWorkers == 0 {
		return errors.New("no mirrors configured")
	}

	if svc.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		server := &http.Server{Addr: svc.MetricsAddr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Errorf("metrics listener: %v", err)
			}
		}()
		defer server.Close()
		s.log.Infof("serving metrics on %s", svc.MetricsAddr)
	}

	bar := progress.New(len(s.config.Mirrors), "syncing", !s.singleShot || s.quiet)

	p := pool.New(numWorkers)
	for _, m := range s.config.SortedMirrors() {
		worker := NewMirrorWorker(
			filepath.Join(dataDir, util.Sha256Hex(m.Name)),
			m,
			s.log.WithField("mirror", m.Name),
			bar,
		).WithSingleShot(s.singleShot).WithInterval(m.Interval)

		s.workers[m.Name] = worker
		p.Add("mirror-"+m.Name, worker.Execute)
	}

	if !s.singleShot {
		<-ctx.Done()
		return ctx.Err()
	}

	if err := s.waitForWorkers(ctx); err != nil {
		return err
	}
	bar.Finish()

	var failed []string
	for name, worker := range s.workers {
		if status := worker.Status(); status.Failed() {
			s.log.Errorf("mirror %q failed: %s: %s", name, status.State, status.Message)
			failed = append(failed, name)
		} else if status.State == SyncStateDegraded {
			s.log.Warnf("mirror %q degraded: %s", name, status.Message)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d mirrors failed", len(failed), len(s.workers))
	}
	return nil
}

// Statuses returns the most recent per-mirror statuses.
func (s *Service) Statuses() map[string]Status {
	statuses := make(map[string]Status, len(s.workers))
	for name, worker := range s.workers {
		statuses[name] = worker.Status()
	}
	return statuses
}

func (s *Service) waitForWorkers(ctx context.Context) error {
	for {
		done := true
		for _, worker := range s.workers {
			if !worker.Done() {
				done = false
				break
			}
		}
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}
