package mirror

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		note string
		url  string
		exp  RemoteKind
	}{
		{"github https", "https://github.com/org/repo.git", RemoteStandard},
		{"gitlab ssh", "git@gitlab.com:org/repo.git", RemoteStandard},
		{"gerrit hostname", "https://gerrit.example.com/project", RemoteGerrit},
		{"gerrit hostname case insensitive", "https://Gerrit.Example.com/project", RemoteGerrit},
		{"gerrit hostname substring", "ssh://review.gerrit-infra.org/project", RemoteGerrit},
		{"gerrit ssh port", "ssh://review.example.com:29418/project", RemoteGerrit},
		{"gerrit r path", "https://review.example.com/r/project", RemoteGerrit},
		{"gerrit r path exact", "https://review.example.com/r", RemoteGerrit},
		{"r in middle of path", "https://example.com/foo/r/project", RemoteStandard},
		{"r prefix of segment", "https://example.com/repos/project", RemoteStandard},
		{"port in path only", "https://example.com/project", RemoteStandard},
		{"empty", "", RemoteStandard},
	}

	for _, tc := range tests {
		t.Run(tc.note, func(t *testing.T) {
			if act := Classify(tc.url); act != tc.exp {
				t.Errorf("Classify(%q) = %v, expected %v", tc.url, act, tc.exp)
			}
		})
	}
}

func TestHasGerritPathSegment(t *testing.T) {
	tests := []struct {
		url string
		exp bool
	}{
		{"https://host/r/project", true},
		{"https://host/r", true},
		{"https://host/repo", false},
		{"https://host", false},
		{"host/r/project", true},
	}

	for _, tc := range tests {
		if act := hasGerritPathSegment(tc.url); act != tc.exp {
			t.Errorf("hasGerritPathSegment(%q) = %v, expected %v", tc.url, act, tc.exp)
		}
	}
}
