package mirror

import (
	"context"
	"strings"
	"testing"
)

type staticProvider map[string]map[string]any

func (p staticProvider) GetSecret(_ context.Context, name string) (map[string]any, error) {
	return p[name], nil
}

func TestNewFromConfig(t *testing.T) {
	tests := []struct {
		note   string
		config map[string]any
		expErr string
	}{
		{
			note: "minimal",
			config: map[string]any{
				"source_url":      "https://example.com/src.git",
				"destination_url": "https://example.com/dst.git",
			},
		},
		{
			note: "full",
			config: map[string]any{
				"source_url":        "https://example.com/src.git",
				"destination_url":   "https://example.com/dst.git",
				"branches":          []string{"main", "develop:dev"},
				"tags":              `^v\d`,
				"force_push":        true,
				"credential":        "dst-token",
				"source_credential": "src-token",
			},
		},
		{
			note: "all branches",
			config: map[string]any{
				"source_url":      "https://example.com/src.git",
				"destination_url": "https://example.com/dst.git",
				"all_branches":    true,
			},
		},
		{
			note:   "missing source url",
			config: map[string]any{"destination_url": "https://example.com/dst.git"},
			expErr: "'source_url' field is required",
		},
		{
			note:   "missing destination url",
			config: map[string]any{"source_url": "https://example.com/src.git"},
			expErr: "'destination_url' field is required",
		},
		{
			note: "invalid tag pattern",
			config: map[string]any{
				"source_url":      "https://example.com/src.git",
				"destination_url": "https://example.com/dst.git",
				"tags":            "^(unclosed",
			},
			expErr: "failed to compile tag pattern",
		},
	}

	provider := staticProvider{
		"dst-token": {"type": "token_auth", "token": "secret"},
		"src-token": {"type": "token_auth", "token": "secret"},
	}

	for _, tc := range tests {
		t.Run(tc.note, func(t *testing.T) {
			s, err := NewFromConfig(t.TempDir(), tc.config, "test", provider)
			if tc.expErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.expErr) {
					t.Fatalf("expected error containing %q, got %v", tc.expErr, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			defer s.Close(t.Context())
		})
	}
}

func TestNewFromConfigRequiresProviderForCredentials(t *testing.T) {
	_, err := NewFromConfig(t.TempDir(), map[string]any{
		"source_url":      "https://example.com/src.git",
		"destination_url": "https://example.com/dst.git",
		"credential":      "dst-token",
	}, "test", nil)
	if err == nil || !strings.Contains(err.Error(), "requires authentication") {
		t.Fatalf("expected authentication error, got %v", err)
	}
}

func TestNewFromConfigDefaultsToMainBranch(t *testing.T) {
	s, err := NewFromConfig(t.TempDir(), map[string]any{
		"source_url":      "https://example.com/src.git",
		"destination_url": "https://example.com/dst.git",
	}, "test", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close(t.Context())

	sync := s.(*synchronizer)
	if got := sync.repo.Config().Branches; len(got) != 1 || got[0] != "main" {
		t.Errorf("expected default branches [main], got %v", got)
	}
}
