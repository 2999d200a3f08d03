// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"errors"
	"fmt"
	"slices"

	"github.com/pdiddy/mycolist/internal/names"
)

// ErrInvalidChoices reports malformed disambiguation choices or checklist
// entries in a submission.
var ErrInvalidChoices = errors.New("invalid submission choices")

// Choices carries the submitter's decisions for lines that would otherwise
// be pending. Every key is a name key as returned by names.Key, so raw text
// such as "Lepiota  sp" and "Lepiota" address the same line.
type Choices struct {
	// ChosenNames picks one candidate (by entry ID) for an ambiguous key.
	ChosenNames map[string]int64 `json:"chosen_names,omitempty" yaml:"chosen_names,omitempty"`

	// ApprovedNew lists keys that may be created as new catalog entries.
	ApprovedNew []string `json:"approved_new,omitempty" yaml:"approved_new,omitempty"`

	// ApprovedDeprecated lists deprecated keys that may be used as they are.
	ApprovedDeprecated []string `json:"approved_deprecated,omitempty" yaml:"approved_deprecated,omitempty"`

	// ChosenApproved replaces a deprecated key with a non-deprecated entry.
	ChosenApproved map[string]int64 `json:"chosen_approved,omitempty" yaml:"chosen_approved,omitempty"`

	approvedNew        map[string]bool
	approvedDeprecated map[string]bool
}

// Normalize re-keys every entry through the name parser, drops duplicates,
// and validates IDs. It returns ErrInvalidChoices when two spellings of the
// same key disagree or an ID is not positive.
func (c Choices) Normalize() (Choices, error) {
	var (
		out Choices
		err error
	)
	if out.ChosenNames, err = normalizeIDs("chosen name", c.ChosenNames); err != nil {
		return Choices{}, err
	}
	if out.ChosenApproved, err = normalizeIDs("chosen approved name", c.ChosenApproved); err != nil {
		return Choices{}, err
	}
	if out.ApprovedNew, out.approvedNew, err = normalizeSet("approved new name", c.ApprovedNew); err != nil {
		return Choices{}, err
	}
	if out.ApprovedDeprecated, out.approvedDeprecated, err = normalizeSet("approved deprecated name", c.ApprovedDeprecated); err != nil {
		return Choices{}, err
	}
	return out, nil
}

// Empty reports whether no decision is recorded.
func (c Choices) Empty() bool {
	return len(c.ChosenNames) == 0 && len(c.ApprovedNew) == 0 &&
		len(c.ApprovedDeprecated) == 0 && len(c.ChosenApproved) == 0
}

func (c Choices) isApprovedNew(key string) bool {
	return c.approvedNew[key]
}

func (c Choices) isApprovedDeprecated(key string) bool {
	return c.approvedDeprecated[key]
}

func normalizeIDs(what string, in map[string]int64) (map[string]int64, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[string]int64, len(in))
	for raw, id := range in {
		key := names.Key(raw)
		if key == "" {
			return nil, fmt.Errorf("%w: %s with empty text", ErrInvalidChoices, what)
		}
		if id <= 0 {
			return nil, fmt.Errorf("%w: %s %q has id %d", ErrInvalidChoices, what, raw, id)
		}
		if prev, ok := out[key]; ok && prev != id {
			return nil, fmt.Errorf("%w: %s %q chosen as both #%d and #%d", ErrInvalidChoices, what, key, prev, id)
		}
		out[key] = id
	}
	return out, nil
}

func normalizeSet(what string, in []string) ([]string, map[string]bool, error) {
	if len(in) == 0 {
		return nil, nil, nil
	}
	set := make(map[string]bool, len(in))
	var keys []string
	for _, raw := range in {
		key := names.Key(raw)
		if key == "" {
			return nil, nil, fmt.Errorf("%w: %s with empty text", ErrInvalidChoices, what)
		}
		if !set[key] {
			set[key] = true
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	return keys, set, nil
}
