// Package mirror provides branch and tag mirroring between two git
// repositories for external integrators.
//
// A Synchronizer owns one source/destination repository pair and, on each
// Execute, reconciles the configured branches and tags: new branches are
// created, fast-forwardable branches advanced, and diverged branches either
// force-pushed or refused depending on policy. Gerrit destinations are
// detected from the URL and receive review-queue pushes (refs/for/<branch>)
// instead of direct branch updates.
//
// Authentication supports GitHub App installation tokens, personal access
// tokens, SSH keys with fingerprint validation, and basic HTTP
// authentication, resolved either from the supplied configuration or an
// external sync.SecretProvider.
//
// Example usage:
//
//	cfg := map[string]any{
//	    "source_url":      "https://github.com/myorg/upstream.git",
//	    "destination_url": "https://gitlab.com/myorg/mirror.git",
//	    "branches":        []string{"main", "release"},
//	    "tags":            "^v",
//	    "credential":      "gitlab-token",
//	}
//	syncer, err := mirror.NewFromConfig("/var/lib/gitplane/myorg", cfg, "myorg", provider)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer syncer.Close(ctx)
//	if err := syncer.Execute(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Thread Safety: Synchronizer instances are NOT thread-safe. Each instance
// should be used by a single goroutine. Create separate instances (with
// separate paths) for concurrent operations.
package mirror
