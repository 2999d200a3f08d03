// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package resolve classifies the lines of a species list submission against
// the name catalog and decides whether the submission can be materialized.
//
// Each line resolves independently to an Outcome. A submission is accepted
// only when every line is Resolved; otherwise all pending lines are returned
// together in a RejectedError so the submitter can settle them in one round.
package resolve

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/pdiddy/mycolist/internal/names"
	"github.com/pdiddy/mycolist/internal/store"
	"github.com/pdiddy/mycolist/pkg/types"
)

// Catalog is the read side of the name catalog. *store.Store and *store.Tx
// satisfy it. NameByID returns an error wrapping store.ErrNotFound for
// unknown IDs.
type Catalog interface {
	NameByID(ctx context.Context, id int64) (*types.Name, error)
	NamesByText(ctx context.Context, text string) ([]types.Name, error)
	NamesBySearchName(ctx context.Context, search string) ([]types.Name, error)
	PreferredSynonym(ctx context.Context, groupID int64) (*types.Name, error)
}

// Resolver resolves expressions against a catalog using one submission's
// choices.
type Resolver struct {
	cat     Catalog
	choices Choices
}

// NewResolver returns a Resolver. choices must already be normalized.
func NewResolver(cat Catalog, choices Choices) *Resolver {
	return &Resolver{cat: cat, choices: choices}
}

// ResolveExpression classifies one parsed line.
//
// A line with an author matches on search name, a line without one on text
// name. No match resolves to a new entry only when its key was approved.
// Several matches need a chosen candidate. A single deprecated match needs
// an approved alternative or explicit approval of the deprecated name.
func (r *Resolver) ResolveExpression(ctx context.Context, expr names.Expression) (Outcome, error) {
	if expr.Synonym != nil {
		return r.resolveSynonymLine(ctx, expr)
	}

	key := expr.Key()
	matches, err := r.match(ctx, expr)
	if err != nil {
		return nil, err
	}

	switch len(matches) {
	case 0:
		if r.choices.isApprovedNew(key) {
			return Resolved{New: true}, nil
		}
		return NewNameUnapproved{Proposed: key, Reason: ReasonUnknown}, nil
	case 1:
		return r.single(ctx, key, matches[0])
	default:
		if id, ok := r.choices.ChosenNames[key]; ok {
			for _, c := range matches {
				if c.ID == id {
					return r.single(ctx, key, c)
				}
			}
		}
		return Ambiguous{Candidates: matches}, nil
	}
}

// ResolveID classifies a name picked by ID from a checklist. The same
// deprecation rules apply, keyed by the entry's search name. It returns the
// key alongside the outcome.
func (r *Resolver) ResolveID(ctx context.Context, id int64) (string, Outcome, error) {
	n, err := r.cat.NameByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil, fmt.Errorf("%w: checklist name #%d does not exist", ErrInvalidChoices, id)
	}
	if err != nil {
		return "", nil, fmt.Errorf("looking up checklist name #%d: %w", id, err)
	}
	key := n.SearchName
	o, err := r.single(ctx, key, *n)
	return key, o, err
}

func (r *Resolver) match(ctx context.Context, expr names.Expression) ([]types.Name, error) {
	var (
		found []types.Name
		err   error
	)
	if expr.Author != "" {
		found, err = r.cat.NamesBySearchName(ctx, expr.SearchName())
	} else {
		found, err = r.cat.NamesByText(ctx, expr.TextName())
	}
	if err != nil {
		return nil, fmt.Errorf("matching %q: %w", expr.Key(), err)
	}
	slices.SortFunc(found, func(a, b types.Name) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return found, nil
}

// single applies the deprecation rules to one matched entry.
func (r *Resolver) single(ctx context.Context, key string, n types.Name) (Outcome, error) {
	if !n.Deprecated {
		return Resolved{Entry: &n}, nil
	}

	if altID, ok := r.choices.ChosenApproved[key]; ok {
		alt, err := r.cat.NameByID(ctx, altID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			// An unknown alternative leaves the line pending, as does one
			// outside the deprecated name's synonym group.
		case err != nil:
			return nil, fmt.Errorf("looking up alternative #%d for %q: %w", altID, key, err)
		case !alt.Deprecated && n.SynonymGroupID != 0 && alt.SynonymGroupID == n.SynonymGroupID:
			return Resolved{Entry: alt}, nil
		}
	}

	if r.choices.isApprovedDeprecated(key) {
		return Resolved{Entry: &n}, nil
	}

	pref, err := r.cat.PreferredSynonym(ctx, n.SynonymGroupID)
	if err != nil {
		return nil, fmt.Errorf("looking up preferred synonym of %q: %w", key, err)
	}
	return DeprecatedUnapproved{Candidate: n, Preferred: pref}, nil
}

// resolveSynonymLine accepts "A = B" only when A and B are single catalog
// entries already in the same synonym group; the line then resolves as A.
func (r *Resolver) resolveSynonymLine(ctx context.Context, expr names.Expression) (Outcome, error) {
	rejected := NewNameUnapproved{Proposed: expr.String(), Reason: ReasonSynonym}

	primary := expr
	primary.Synonym = nil
	left, err := r.match(ctx, primary)
	if err != nil {
		return nil, err
	}
	right, err := r.match(ctx, *expr.Synonym)
	if err != nil {
		return nil, err
	}
	if len(left) != 1 || len(right) != 1 {
		return rejected, nil
	}
	group := left[0].SynonymGroupID
	if group == 0 || group != right[0].SynonymGroupID {
		return rejected, nil
	}
	return r.single(ctx, primary.Key(), left[0])
}
