package model

import (
	"fmt"
	"strings"
)

// InternalPrefix marks an alias as belonging to the access-restricted
// review server. It keeps an internal change and an external change with
// the same raw identity from being mistaken for one another.
const InternalPrefix = "*"

// ChangeID is a review-server-assigned change identity together with its
// visibility scope. Two ChangeIDs are equal only if both the scope and the
// raw value match.
type ChangeID struct {
	Internal bool
	Value    string
}

// ParseAlias parses an alias string into a ChangeID, honoring the internal
// prefix convention.
func ParseAlias(alias string) ChangeID {
	if strings.HasPrefix(alias, InternalPrefix) {
		return ChangeID{Internal: true, Value: alias[len(InternalPrefix):]}
	}
	return ChangeID{Value: alias}
}

// String returns the prefixed alias form of the identity.
func (id ChangeID) String() string {
	if id.Internal {
		return InternalPrefix + id.Value
	}
	return id.Value
}

// Patch represents one proposed change to a single project. It is
// constructed from a review-server query record and is immutable after
// fetch, except for recording apply-failure diagnostics.
type Patch struct {
	Project        string
	TrackingBranch string
	OriginalBranch string
	Internal       bool

	// ChangeID is the raw server-assigned identity, without the internal
	// prefix. Use ID() or LookupAliases() when matching.
	ChangeID string

	// Ref is the remote ref holding the current patch set.
	Ref string

	// SHA1 is the commit hash of the current patch set. It is populated
	// from the query record and confirmed when the patch is fetched.
	SHA1 string

	// GerritNumber and PatchNumber identify the review and patch set on
	// the review server. Empty for patches not backed by a review.
	GerritNumber string
	PatchNumber  string

	Subject    string
	OwnerEmail string
	URL        string

	// Fetched is set once the patch's commit has been materialized into
	// the working checkout.
	Fetched bool

	// ApplyErrorMessage records a diagnostic when the patch fails to
	// apply. It supplements the rejection comment posted to the author.
	ApplyErrorMessage string
}

// NewPatchFromRecord builds a Patch from a review-server query record.
func NewPatchFromRecord(rec *PatchRecord, internal bool) *Patch {
	return &Patch{
		Project:        rec.Project,
		TrackingBranch: rec.Branch,
		Internal:       internal,
		ChangeID:       rec.ID,
		Ref:            rec.CurrentPatchSet.Ref,
		SHA1:           rec.CurrentPatchSet.Revision,
		GerritNumber:   rec.Number,
		PatchNumber:    rec.CurrentPatchSet.Number,
		Subject:        rec.Subject,
		OwnerEmail:     rec.Owner.Email,
		URL:            rec.URL,
	}
}

// ID returns the patch's scoped change identity.
func (p *Patch) ID() ChangeID {
	return ChangeID{Internal: p.Internal, Value: p.ChangeID}
}

// LookupAliases returns every alias by which this patch may be referenced
// as a dependency: its change-id, its commit hash once known, and its
// review number once known. Each alias carries the internal prefix if the
// patch is internal.
func (p *Patch) LookupAliases() []string {
	var aliases []string
	for _, v := range []string{p.ChangeID, p.SHA1, p.GerritNumber} {
		if v == "" {
			continue
		}
		aliases = append(aliases, ChangeID{Internal: p.Internal, Value: v}.String())
	}
	return aliases
}

// MatchesAlias reports whether the given alias refers to this patch.
// The internal prefix must match: an internal alias never matches an
// external patch even if the raw values are equal.
func (p *Patch) MatchesAlias(alias string) bool {
	want := ParseAlias(alias)
	if want.Internal != p.Internal {
		return false
	}
	switch want.Value {
	case "":
		return false
	case p.ChangeID, p.SHA1, p.GerritNumber:
		return true
	}
	return false
}

// String identifies the patch in logs and messages.
func (p *Patch) String() string {
	return fmt.Sprintf("%s:%s", p.Project, p.ID())
}
