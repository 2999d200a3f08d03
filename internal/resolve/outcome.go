// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/mycolist/pkg/types"
)

// Pending outcome kinds. A RejectedError matches each of these with
// errors.Is when at least one of its lines is in that state.
var (
	ErrAmbiguousName            = errors.New("ambiguous name")
	ErrDeprecatedNameUnapproved = errors.New("deprecated name not approved")
	ErrNewNameUnapproved        = errors.New("new name not approved")
)

// Outcome is the result of resolving one line. It is one of Resolved,
// Ambiguous, DeprecatedUnapproved or NewNameUnapproved.
type Outcome interface {
	// sentinel returns the pending error kind, or nil for Resolved.
	sentinel() error
}

// Resolved means the line names a catalog entry, or a new entry that the
// submitter approved. Entry is nil when New is true.
type Resolved struct {
	Entry *types.Name
	New   bool
}

// Ambiguous means several catalog entries match and none was chosen.
// Candidates are in catalog insertion order.
type Ambiguous struct {
	Candidates []types.Name
}

// DeprecatedUnapproved means the only match is deprecated and neither the
// deprecated name nor an alternative was approved. Preferred is the current
// preferred synonym, nil when the group has none.
type DeprecatedUnapproved struct {
	Candidate types.Name
	Preferred *types.Name
}

// Reason explains why a line proposes a new name.
type Reason string

const (
	// ReasonUnknown is a well-formed name absent from the catalog.
	ReasonUnknown Reason = "unknown"

	// ReasonUnparseable is text that does not read as a name. It is never
	// created, even when approved.
	ReasonUnparseable Reason = "unparseable"

	// ReasonSynonym is an "A = B" line whose sides are not already
	// recorded as synonyms. Synonym links are never created by lists.
	ReasonSynonym Reason = "synonym"
)

// NewNameUnapproved means the line does not resolve to an existing entry
// and may not be created as it stands.
type NewNameUnapproved struct {
	Proposed string
	Reason   Reason
}

func (Resolved) sentinel() error             { return nil }
func (Ambiguous) sentinel() error            { return ErrAmbiguousName }
func (DeprecatedUnapproved) sentinel() error { return ErrDeprecatedNameUnapproved }
func (NewNameUnapproved) sentinel() error    { return ErrNewNameUnapproved }

// IsPending reports whether o needs a decision from the submitter.
func IsPending(o Outcome) bool {
	return o.sentinel() != nil
}

// Describe renders an outcome as a one-line prompt for the submitter.
func Describe(key string, o Outcome) string {
	switch o := o.(type) {
	case Resolved:
		if o.New {
			return fmt.Sprintf("%q will be created", key)
		}
		return fmt.Sprintf("%q is #%d %s", key, o.Entry.ID, o.Entry.SearchName)
	case Ambiguous:
		choices := make([]string, len(o.Candidates))
		for i, c := range o.Candidates {
			choices[i] = fmt.Sprintf("#%d %s", c.ID, c.SearchName)
		}
		return fmt.Sprintf("%q is ambiguous, choose one of: %s", key, strings.Join(choices, "; "))
	case DeprecatedUnapproved:
		if o.Preferred == nil {
			return fmt.Sprintf("%q is deprecated; approve it to use it anyway", key)
		}
		return fmt.Sprintf("%q is deprecated; approve it, or choose the preferred #%d %s",
			key, o.Preferred.ID, o.Preferred.SearchName)
	case NewNameUnapproved:
		switch o.Reason {
		case ReasonUnparseable:
			return fmt.Sprintf("%q is not a recognizable name", key)
		case ReasonSynonym:
			return fmt.Sprintf("%q: synonyms cannot be created from a list; enter the names separately", o.Proposed)
		default:
			return fmt.Sprintf("%q is not in the catalog; approve it to create it", key)
		}
	default:
		return fmt.Sprintf("%q: unexpected outcome %T", key, o)
	}
}
