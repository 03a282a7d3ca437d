package mirror

import (
	"fmt"
	"sort"
	"strings"
)

// BranchNotFoundError is returned when neither the requested branch nor any
// fallback branch exists on the remote. It always enumerates the branches
// that were available so callers can present actionable diagnostics.
type BranchNotFoundError struct {
	Requested string
	Fallbacks []string
	Available []string
}

func (e *BranchNotFoundError) Error() string {
	available := append([]string(nil), e.Available...)
	sort.Strings(available)

	var b strings.Builder
	fmt.Fprintf(&b, "branch %q not found", e.Requested)
	if len(e.Fallbacks) > 0 {
		fmt.Fprintf(&b, " (fallbacks tried: %s)", strings.Join(e.Fallbacks, ", "))
	}
	if len(available) == 0 {
		b.WriteString("; remote has no branches")
	} else {
		fmt.Fprintf(&b, "; available branches: %s", strings.Join(available, ", "))
	}
	return b.String()
}

// DestinationModifiedError is returned when the destination branch holds
// commits that are absent from the source and force pushing is not allowed.
// Branch, Explanation and Resolution are all mandatory: an operator must be
// able to tell from the error alone what happened and what to do about it.
type DestinationModifiedError struct {
	Branch      string
	Explanation string
	Resolution  string
}

func (e *DestinationModifiedError) Error() string {
	return fmt.Sprintf("destination branch %q modified: %s (resolution: %s)", e.Branch, e.Explanation, e.Resolution)
}

func newDestinationModifiedError(branch string) *DestinationModifiedError {
	return &DestinationModifiedError{
		Branch:      branch,
		Explanation: "destination contains commits that are not present in the source repository; pushing would discard them",
		Resolution:  "merge or rebase the destination branch manually, or enable force_push to overwrite it",
	}
}

// InvalidMappingError is returned for malformed "source:destination" branch
// mapping syntax.
type InvalidMappingError struct {
	Mapping string
}

func (e *InvalidMappingError) Error() string {
	return fmt.Sprintf("invalid branch mapping %q: expected \"source\" or \"source:destination\" with non-empty names", e.Mapping)
}

// AuthenticationMissingError is returned when a remote demands credentials
// but none were configured.
type AuthenticationMissingError struct {
	Remote string
}

func (e *AuthenticationMissingError) Error() string {
	return fmt.Sprintf("remote %q requires authentication but no credentials are configured", e.Remote)
}

// TagPushError wraps the failure of a single tag push. It is non-fatal to
// the run as a whole: remaining tags are still attempted.
type TagPushError struct {
	Tag string
	Err error
}

func (e *TagPushError) Error() string {
	return fmt.Sprintf("failed to push tag %q: %v", e.Tag, e.Err)
}

func (e *TagPushError) Unwrap() error {
	return e.Err
}
