package mirror

import (
	"context"
	"errors"
	"fmt"

	"github.com/gitplane/gitplane/internal/config"
	"github.com/gitplane/gitplane/internal/gitops"
	"github.com/gitplane/gitplane/internal/logging"
	internalmirror "github.com/gitplane/gitplane/internal/mirror"
	pkgsync "github.com/gitplane/gitplane/pkg/sync"
)

// Synchronizer defines the interface for mirror synchronization.
//
// The synchronizer is not thread-safe. Callers should handle concurrency.
type Synchronizer interface {
	// Execute performs one reconciliation of the configured branches and
	// tags. It returns an error when any branch could not be synced; tag
	// failures degrade the run but do not fail it.
	Execute(ctx context.Context) error

	// Close releases any resources held by the synchronizer.
	Close(ctx context.Context)
}

// NewFromConfig creates a Synchronizer for external users from a mirror
// configuration map. This is the recommended constructor for projects
// integrating with this package.
//
// The mirrorConfig map supports the following fields:
//   - "source_url" (string, required): repository to mirror from
//   - "destination_url" (string, required): repository to mirror into
//   - "branches" ([]string, optional): "source" or "source:destination" entries
//   - "all_branches" (bool, optional): mirror every source branch
//   - "tags" (string, optional): "disabled", "true", or a tag name pattern
//   - "force_push" (bool, optional): overwrite diverged destination branches
//   - "source_credential" / "credential" (string, optional): secret names for
//     the source and destination remotes
//
// The provider is required if credentials are named; it is called with the
// credential name to retrieve the actual secret.
func NewFromConfig(path string, mirrorConfig map[string]any, name string, provider pkgsync.SecretProvider) (Synchronizer, error) {
	sourceURL, ok := mirrorConfig["source_url"].(string)
	if !ok || sourceURL == "" {
		return nil, errors.New("mirror config: 'source_url' field is required")
	}
	destinationURL, ok := mirrorConfig["destination_url"].(string)
	if !ok || destinationURL == "" {
		return nil, errors.New("mirror config: 'destination_url' field is required")
	}

	cfg := &config.Mirror{
		Name:             name,
		Source:           config.Remote{URL: sourceURL},
		Destination:      config.Remote{URL: destinationURL},
		FallbackBranches: config.StringSet(internalmirror.DefaultFallbackBranches),
	}

	if branches, ok := mirrorConfig["branches"].([]string); ok {
		cfg.Branches = config.StringSet(branches)
	}
	if all, ok := mirrorConfig["all_branches"].(bool); ok {
		cfg.AllBranches = all
	}
	if force, ok := mirrorConfig["force_push"].(bool); ok {
		cfg.ForcePush = force
	}
	if tags, ok := mirrorConfig["tags"].(string); ok && tags != "" {
		spec, err := config.ParseTagSpec(tags)
		if err != nil {
			return nil, fmt.Errorf("mirror config: %w", err)
		}
		cfg.Tags = spec
	}
	if credName, ok := mirrorConfig["credential"].(string); ok && credName != "" {
		cfg.Destination.Credentials = &config.SecretRef{Name: credName}
	}
	if credName, ok := mirrorConfig["source_credential"].(string); ok && credName != "" {
		cfg.Source.Credentials = &config.SecretRef{Name: credName}
	}

	if !cfg.AllBranches && len(cfg.Branches) == 0 {
		cfg.Branches = config.StringSet{"main"}
	}

	// Credentials are resolved through the provider; without one a named
	// credential could never be satisfied.
	if provider == nil {
		if cfg.Source.Credentials != nil {
			return nil, &internalmirror.AuthenticationMissingError{Remote: internalmirror.RemoteSource}
		}
		if cfg.Destination.Credentials != nil {
			return nil, &internalmirror.AuthenticationMissingError{Remote: internalmirror.RemoteDestination}
		}
	}

	repo := gitops.NewRepository(path, cfg).WithSecretProvider(provider)
	log := logging.NewLogger(logging.Config{Level: logging.LogLevelWarn})

	return &synchronizer{
		repo: repo,
		sync: internalmirror.New(cfg, repo, log),
	}, nil
}

type synchronizer struct {
	repo   *gitops.Repository
	sync   *internalmirror.Synchronizer
	opened bool
}

func (s *synchronizer) Execute(ctx context.Context) error {
	if !s.opened {
		if err := s.repo.Open(); err != nil {
			return err
		}
		s.opened = true
	}

	result, err := s.sync.Execute(ctx)
	if err != nil {
		return err
	}

	if result.Failed() {
		for _, b := range result.Branches {
			if b.Err != nil {
				return b.Err
			}
		}
	}
	return nil
}

func (s *synchronizer) Close(ctx context.Context) {
	s.repo.Close(ctx)
}
