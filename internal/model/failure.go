package model

import (
	"fmt"
	"strings"
)

// ConflictKind classifies why a patch could not be applied.
type ConflictKind int

const (
	// ConflictTip means the patch conflicts with the current tracking
	// branch tip. The author must rebase and re-upload.
	ConflictTip ConflictKind = iota

	// ConflictInflight means the patch conflicts with another patch being
	// tested in the same batch. The author is not at fault and the patch
	// is retried next cycle without notification.
	ConflictInflight
)

func (k ConflictKind) String() string {
	if k == ConflictInflight {
		return "inflight"
	}
	return "tip"
}

// ApplyFailure records one patch that could not be applied, with the
// classification that drives notification and retry behavior.
type ApplyFailure struct {
	Patch  *Patch
	Kind   ConflictKind
	Reason string
}

func (f *ApplyFailure) Error() string {
	return fmt.Sprintf("failed to apply %s (%s conflict): %s", f.Patch, f.Kind, f.Reason)
}

// SubmitError accumulates every patch whose submit attempt failed or
// whose post-submit verification came back unmerged. It is raised only
// after every patch in the batch has been attempted.
type SubmitError struct {
	Patches []*Patch
}

func (e *SubmitError) Error() string {
	ids := make([]string, 0, len(e.Patches))
	for _, p := range e.Patches {
		ids = append(ids, p.String())
	}
	return fmt.Sprintf("failed to submit all changes: could not verify that changes %s were submitted",
		strings.Join(ids, " "))
}
