package config

import (
	"cmp"
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"regexp"
	"sort"
	"time"

	"github.com/gobwas/glob"
	"github.com/goccy/go-yaml"

	"github.com/gitplane/gitplane/internal/util"
)

// Internal configuration data structures for gitplane.

// Metadata contains metadata about the configuration file itself.
type Metadata struct {
	ExportedFrom string `json:"exported_from"`
	ExportedAt   string `json:"exported_at"`

	_ struct{} `additionalProperties:"false"`
}

// Root is the top-level configuration structure used by gitplane.
type Root struct {
	Metadata Metadata           `json:"metadata"`
	Mirrors  map[string]*Mirror `json:"mirrors,omitempty"`
	Secrets  map[string]*Secret `json:"secrets,omitempty"` // Schema validation overrides Secret to object type.
	Service  *Service           `json:"service,omitempty"`
}

// UnmarshalYAML implements the yaml.Unmarshaler interface for the Root
// struct. This lets us define gitplane resources with mappings where keys
// are the resource names. It also injects the secret store into each secret
// reference so that internal callers can resolve secret values as needed.
func (r *Root) UnmarshalYAML(bs []byte) error {
	type rawRoot Root // avoid recursive calls to UnmarshalYAML by type aliasing
	var raw rawRoot

	if err := yaml.Unmarshal(bs, &raw); err != nil {
		return fmt.Errorf("failed to decode Root: %w", err)
	}

	*r = Root(raw)
	return r.unmarshal(r)
}

func (r *Root) UnmarshalJSON(bs []byte) error {
	type rawRoot Root
	var raw rawRoot

	if err := json.Unmarshal(bs, &raw); err != nil {
		return fmt.Errorf("failed to decode Root: %w", err)
	}

	*r = Root(raw)
	return r.unmarshal(r)
}

func (r *Root) Unmarshal() error {
	return r.unmarshal(r)
}

func (*Root) unmarshal(raw *Root) error {
	for name := range raw.Secrets {
		raw.Secrets[name] = cmp.Or(raw.Secrets[name], &Secret{})
		raw.Secrets[name].Name = name
	}

	for name := range raw.Mirrors {
		raw.Mirrors[name] = cmp.Or(raw.Mirrors[name], &Mirror{})
		m := raw.Mirrors[name]
		m.Name = name
		if m.Source.Credentials != nil {
			m.Source.Credentials.value = raw.Secrets[m.Source.Credentials.Name]
		}
		if m.Destination.Credentials != nil {
			m.Destination.Credentials.value = raw.Secrets[m.Destination.Credentials.Name]
		}
		if len(m.FallbackBranches) == 0 {
			m.FallbackBranches = StringSet{"main", "master"}
		}
	}

	return nil
}

func (r *Root) SortedMirrors() iter.Seq2[int, *Mirror] {
	return iterator(r.Mirrors, func(m *Mirror) string { return m.Name })
}

func (r *Root) SortedSecrets() iter.Seq2[int, *Secret] {
	return iterator(r.Secrets, func(s *Secret) string { return s.Name })
}

func iterator[V any](m map[string]V, name func(V) string) func(func(int, V) bool) {
	names := make([]string, 0, len(m))
	for _, v := range m {
		names = append(names, name(v))
	}

	sort.Strings(names)

	return func(yield func(int, V) bool) {
		for i, name := range names {
			if !yield(i, m[name]) {
				return
			}
		}
	}
}

// ParseFile reads, validates and parses one configuration file.
func ParseFile(filename string) (*Root, error) {
	bs, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	return Parse(bs)
}

// Parse validates the raw configuration against the schema and unmarshals
// it.
func Parse(bs []byte) (*Root, error) {
	if err := Validate(bs); err != nil {
		return nil, err
	}

	var root Root
	if err := yaml.Unmarshal(bs, &root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &root, nil
}

func Validate(data []byte) error {
	var config any
	if err := yaml.Unmarshal(data, &config); err != nil {
		return err
	}

	return rootSchema.Validate(config)
}

// Service holds the settings of the recurring mirroring service.
type Service struct {
	Workers     int    `json:"workers,omitempty"`      // Number of worker goroutines; defaults to the mirror count.
	MetricsAddr string `json:"metrics_addr,omitempty"` // Address to serve /metrics on; empty disables the listener.
	DataDir     string `json:"data_dir,omitempty"`     // Root directory for local working copies.

	_ struct{} `additionalProperties:"false"`
}

func (s *Service) Equal(other *Service) bool {
	return util.FastEqual(s, other, func(s, other *Service) bool {
		return *s == *other
	})
}

// Mirror defines one source to destination repository mirroring relation.
type Mirror struct {
	Name             string    `json:"name"`
	Source           Remote    `json:"source"`
	Destination      Remote    `json:"destination"`
	Branches         StringSet `json:"branches,omitempty"`          // "source" or "source:destination" entries.
	AllBranches      bool      `json:"all_branches,omitempty"`      // Mirror every branch advertised by the source.
	ExcludedBranches StringSet `json:"excluded_branches,omitempty"` // Glob patterns applied in all-branches mode.
	FallbackBranches StringSet `json:"fallback_branches,omitempty"` // Defaults to main, master.
	Tags             TagSpec   `json:"tags,omitzero"`
	PruneTags        bool      `json:"prune_tags,omitempty"` // Delete managed destination tags absent from the source.
	ForcePush        bool      `json:"force_push,omitempty"` // Allow overwriting diverged destination branches.
	Interval         Duration  `json:"sync_interval,omitzero"`

	_ struct{} `additionalProperties:"false"`
}

func (m *Mirror) UnmarshalYAML(bs []byte) error {
	type rawMirror Mirror // avoid recursive calls to UnmarshalYAML by type aliasing
	var raw rawMirror

	if err := yaml.Unmarshal(bs, &raw); err != nil {
		return fmt.Errorf("failed to decode mirror: %w", err)
	}

	*m = Mirror(raw)
	return m.validate()
}

func (m *Mirror) UnmarshalJSON(bs []byte) error {
	type rawMirror Mirror
	var raw rawMirror

	if err := json.Unmarshal(bs, &raw); err != nil {
		return fmt.Errorf("failed to decode mirror: %w", err)
	}

	*m = Mirror(raw)
	return m.validate()
}

func (m *Mirror) validate() error {
	for _, pattern := range m.ExcludedBranches {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("failed to compile excluded branch pattern %q: %w", pattern, err)
		}
	}

	if m.Source.URL == "" {
		return fmt.Errorf("mirror source url is required")
	}
	if m.Destination.URL == "" {
		return fmt.Errorf("mirror destination url is required")
	}

	return nil
}

func (m *Mirror) Equal(other *Mirror) bool {
	return util.FastEqual(m, other, func(m, other *Mirror) bool {
		return m.Name == other.Name &&
			m.Source.Equal(&other.Source) &&
			m.Destination.Equal(&other.Destination) &&
			m.Branches.Equal(other.Branches) &&
			m.AllBranches == other.AllBranches &&
			m.ExcludedBranches.Equal(other.ExcludedBranches) &&
			m.FallbackBranches.Equal(other.FallbackBranches) &&
			m.Tags.Equal(&other.Tags) &&
			m.PruneTags == other.PruneTags &&
			m.ForcePush == other.ForcePush &&
			m.Interval == other.Interval
	})
}

// ExcludedBranchGlobs compiles the excluded branch patterns. Patterns are
// validated at unmarshal time, so compilation cannot fail here.
func (m *Mirror) ExcludedBranchGlobs() []glob.Glob {
	globs := make([]glob.Glob, 0, len(m.ExcludedBranches))
	for _, pattern := range m.ExcludedBranches {
		globs = append(globs, glob.MustCompile(pattern))
	}
	return globs
}

type Mirrors []*Mirror

func (a Mirrors) Equal(b Mirrors) bool {
	return util.SetEqual(a, b, func(m *Mirror) string { return m.Name }, (*Mirror).Equal)
}

// Remote identifies one repository endpoint and the credentials used to
// reach it. A nil Credentials means anonymous access.
type Remote struct {
	URL         string     `json:"url"`
	Credentials *SecretRef `json:"credentials,omitempty"` // Note, JSON schema validation overrides this to string type.

	_ struct{} `additionalProperties:"false"`
}

func (r *Remote) Equal(other *Remote) bool {
	return util.FastEqual(r, other, func(r, other *Remote) bool {
		return r.URL == other.URL && r.Credentials.Equal(other.Credentials)
	})
}

// TagSpec configures tag synchronization. It unmarshals from a YAML boolean
// or string: false or "disabled" disables tag sync, true syncs all tags,
// and any other string is a regular expression selecting tags by name.
type TagSpec struct {
	raw     string
	enabled bool
	pattern *regexp.Regexp
}

// TagSpecAll returns a spec that syncs every tag. Used by tests and the
// public constructor.
func TagSpecAll() TagSpec {
	return TagSpec{raw: "true", enabled: true}
}

// ParseTagSpec parses the string form of a tag spec.
func ParseTagSpec(s string) (TagSpec, error) {
	switch s {
	case "", "disabled", "false":
		return TagSpec{raw: s}, nil
	case "true", "all":
		return TagSpec{raw: s, enabled: true}, nil
	}

	re, err := regexp.Compile(s)
	if err != nil {
		return TagSpec{}, fmt.Errorf("failed to compile tag pattern %q: %w", s, err)
	}
	return TagSpec{raw: s, enabled: true, pattern: re}, nil
}

func (t *TagSpec) Disabled() bool {
	return !t.enabled
}

// Pattern returns the tag name pattern, or nil when all tags are synced.
func (t *TagSpec) Pattern() *regexp.Regexp {
	return t.pattern
}

func (t *TagSpec) String() string {
	return t.raw
}

func (t *TagSpec) Equal(other *TagSpec) bool {
	return util.FastEqual(t, other, func(t, other *TagSpec) bool {
		return t.raw == other.raw
	})
}

func (t TagSpec) MarshalYAML() (any, error) {
	switch t.raw {
	case "":
		return nil, nil
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return t.raw, nil
}

func (t TagSpec) MarshalJSON() ([]byte, error) {
	v, err := t.MarshalYAML()
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func (t *TagSpec) UnmarshalYAML(bs []byte) error {
	var b bool
	if err := yaml.Unmarshal(bs, &b); err == nil {
		*t = TagSpec{raw: fmt.Sprintf("%v", b), enabled: b}
		return nil
	}

	var s string
	if err := yaml.Unmarshal(bs, &s); err != nil {
		return fmt.Errorf("expected boolean or string tag spec: %w", err)
	}

	spec, err := ParseTagSpec(s)
	if err != nil {
		return err
	}
	*t = spec
	return nil
}

func (t *TagSpec) UnmarshalJSON(bs []byte) error {
	var b bool
	if err := json.Unmarshal(bs, &b); err == nil {
		*t = TagSpec{raw: fmt.Sprintf("%v", b), enabled: b}
		return nil
	}

	var s string
	if err := json.Unmarshal(bs, &s); err != nil {
		return fmt.Errorf("expected boolean or string tag spec: %w", err)
	}

	spec, err := ParseTagSpec(s)
	if err != nil {
		return err
	}
	*t = spec
	return nil
}

// Duration marshals as a string like "5m" or "0.5s" instead of an int64.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	val, err := time.ParseDuration(str)
	*d = Duration(val)
	return err
}

func (d *Duration) UnmarshalYAML(bs []byte) error {
	var s string
	if err := yaml.Unmarshal(bs, &s); err != nil {
		return err
	}
	val, err := time.ParseDuration(s)
	*d = Duration(val)
	return err
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

type StringSet []string

func (a StringSet) Equal(b StringSet) bool {
	return util.SetEqual(a, b, func(s string) string { return s }, func(a, b string) bool { return a == b })
}
