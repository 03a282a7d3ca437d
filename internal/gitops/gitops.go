// Package gitops realizes the mirror.Executor capabilities with go-git. It
// maintains one local bare repository per mirror, with the source and
// destination configured as remotes, and performs the ref listing, fetch,
// push and merge-base operations the decision core asks for. This package
// implements no threadpooling; the caller handles concurrency, and a
// Repository is not thread-safe.
package gitops

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/protocol/packp/capability"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/gitplane/gitplane/internal/config"
	"github.com/gitplane/gitplane/internal/mirror"
	pkgsync "github.com/gitplane/gitplane/pkg/sync"
)

// configFile tracks the mirror configuration a working copy was created
// for, so a config change can wipe and re-clone instead of operating on a
// stale repository.
const configFile = "gitplaneconfig"

func init() {
	// For Azure DevOps compatibility. More details: https://github.com/go-git/go-git/issues/64
	transport.UnsupportedCapabilities = []capability.Capability{
		capability.ThinPack,
	}
}

// Repository is the go-git backed implementation of mirror.Executor. The
// local copy is bare: the mirror engine only moves refs and objects around,
// it never needs a checked out work tree.
type Repository struct {
	path           string
	config         *config.Mirror
	repo           *git.Repository
	gh             github
	secretProvider pkgsync.SecretProvider
}

// NewRepository creates an executor rooted at path. The caller must
// guarantee the path is unique per mirror and not shared between Repository
// instances. The directory is created on first use.
func NewRepository(path string, cfg *config.Mirror) *Repository {
	return &Repository{path: path, config: cfg}
}

// Config returns the mirror configuration the repository was created with.
func (r *Repository) Config() *config.Mirror {
	return r.config
}

// WithSecretProvider configures the repository to resolve credentials
// through an external SecretProvider instead of the config file.
func (r *Repository) WithSecretProvider(provider pkgsync.SecretProvider) *Repository {
	r.secretProvider = provider
	return r
}

// Open initializes or reopens the local working copy. A configuration
// change other than credentials wipes the copy: re-cloning is the easiest
// correct option when, say, the repository URL changed.
func (r *Repository) Open() error {
	if data, err := os.ReadFile(filepath.Join(r.path, configFile)); err == nil {
		previous := config.Mirror{}
		if err := json.Unmarshal(data, &previous); err != nil || !sameRepositories(&previous, r.config) {
			if err := os.RemoveAll(r.path); err != nil {
				return err
			}
		}
	} else if !os.IsNotExist(err) {
		return err
	}

	repo, err := git.PlainOpen(r.path)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		repo, err = git.PlainInit(r.path, true)
		if err != nil {
			return err
		}

		for name, url := range map[string]string{
			mirror.RemoteSource:      r.config.Source.URL,
			mirror.RemoteDestination: r.config.Destination.URL,
		} {
			if _, err := repo.CreateRemote(&gitconfig.RemoteConfig{Name: name, URLs: []string{url}}); err != nil {
				return err
			}
		}

		data, err := json.Marshal(r.config)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(r.path, configFile), data, 0644); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	r.repo = repo
	return nil
}

func (r *Repository) Close(context.Context) {
	// No resources to close.
}

// sameRepositories reports whether two mirror configs address the same
// pair of repositories. Credentials are deliberately not compared: the
// resolved config alone does not carry secret values, only their names.
func sameRepositories(a, b *config.Mirror) bool {
	return a.Source.URL == b.Source.URL && a.Destination.URL == b.Destination.URL
}

// ListRefs asks the remote for its currently advertised refs. The listing
// is always fresh; nothing is trusted from a prior run.
func (r *Repository) ListRefs(ctx context.Context, remoteName string) (map[string]mirror.CommitID, error) {
	remote, err := r.repo.Remote(remoteName)
	if err != nil {
		return nil, err
	}

	auth, err := r.auth(ctx, remoteName)
	if err != nil {
		return nil, err
	}

	refs, err := remote.ListContext(ctx, &git.ListOptions{Auth: auth})
	switch {
	case err == nil:
	case errors.Is(err, transport.ErrEmptyRemoteRepository):
		// A freshly created repository advertises nothing; that is a valid
		// sync target, not an error.
		return map[string]mirror.CommitID{}, nil
	default:
		return nil, fmt.Errorf("list refs on %s: %w", remoteName, err)
	}

	listing := make(map[string]mirror.CommitID, len(refs))
	for _, ref := range refs {
		if ref.Type() != plumbing.HashReference {
			continue
		}
		listing[ref.Name().String()] = mirror.CommitID(ref.Hash().String())
	}
	return listing, nil
}

func (r *Repository) Fetch(ctx context.Context, remoteName string, refspecs []string) error {
	auth, err := r.auth(ctx, remoteName)
	if err != nil {
		return err
	}

	specs := make([]gitconfig.RefSpec, len(refspecs))
	for i, s := range refspecs {
		specs[i] = gitconfig.RefSpec(s)
	}

	if err := r.repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: remoteName,
		Auth:       auth,
		Force:      true,
		Tags:       git.NoTags,
		RefSpecs:   specs,
	}); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return err
	}
	return nil
}

func (r *Repository) Push(ctx context.Context, remoteName string, refspec string) error {
	auth, err := r.auth(ctx, remoteName)
	if err != nil {
		return err
	}

	if err := r.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: remoteName,
		Auth:       auth,
		RefSpecs:   []gitconfig.RefSpec{gitconfig.RefSpec(refspec)},
	}); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return err
	}
	return nil
}

// MergeBase computes the common ancestor of two fetched commits via the
// commit graph. Ancestry is the only ordering used; commit timestamps are
// untrusted since history can be rewritten.
func (r *Repository) MergeBase(ctx context.Context, a, b mirror.CommitID) (mirror.CommitID, bool, error) {
	ca, err := object.GetCommit(r.repo.Storer, plumbing.NewHash(string(a)))
	if err != nil {
		return "", false, fmt.Errorf("commit %s: %w", a, err)
	}
	cb, err := object.GetCommit(r.repo.Storer, plumbing.NewHash(string(b)))
	if err != nil {
		return "", false, fmt.Errorf("commit %s: %w", b, err)
	}

	bases, err := ca.MergeBase(cb)
	if err != nil {
		return "", false, err
	}
	if len(bases) == 0 {
		return "", false, nil
	}
	return mirror.CommitID(bases[0].Hash.String()), true, nil
}

func (r *Repository) credentials(remoteName string) *config.SecretRef {
	if remoteName == mirror.RemoteSource {
		return r.config.Source.Credentials
	}
	return r.config.Destination.Credentials
}
