package gitops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gitplane/gitplane/internal/config"
)

func testConfig() *config.Mirror {
	return &config.Mirror{
		Name:        "m",
		Source:      config.Remote{URL: "https://src.example.com/repo.git"},
		Destination: config.Remote{URL: "https://dst.example.com/repo.git"},
	}
}

func TestRepositoryOpen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "copy")
	marker := filepath.Join(dir, "marker")

	r := NewRepository(dir, testConfig())
	if err := r.Open(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(marker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	t.Run("reopen with same config keeps the copy", func(t *testing.T) {
		r := NewRepository(dir, testConfig())
		if err := r.Open(); err != nil {
			t.Fatal(err)
		}
		if _, err := os.Stat(marker); err != nil {
			t.Fatal("working copy was wiped for an unchanged config")
		}
	})

	t.Run("credential change keeps the copy", func(t *testing.T) {
		cfg := testConfig()
		cfg.Source.Credentials = &config.SecretRef{Name: "rotated"}

		r := NewRepository(dir, cfg)
		if err := r.Open(); err != nil {
			t.Fatal(err)
		}
		if _, err := os.Stat(marker); err != nil {
			t.Fatal("working copy was wiped for a credentials-only change")
		}
	})

	t.Run("url change wipes the copy", func(t *testing.T) {
		cfg := testConfig()
		cfg.Source.URL = "https://elsewhere.example.com/repo.git"

		r := NewRepository(dir, cfg)
		if err := r.Open(); err != nil {
			t.Fatal(err)
		}
		if _, err := os.Stat(marker); !os.IsNotExist(err) {
			t.Fatal("working copy must be wiped when the repository URL changes")
		}
	})
}

func TestSameRepositories(t *testing.T) {
	a := testConfig()
	b := testConfig()

	if !sameRepositories(a, b) {
		t.Error("identical configs must compare equal")
	}

	b.ForcePush = true // unrelated to the repository pair
	if !sameRepositories(a, b) {
		t.Error("policy changes must not invalidate the working copy")
	}

	b.Destination.URL = "https://other.example.com/repo.git"
	if sameRepositories(a, b) {
		t.Error("URL change must be detected")
	}
}
