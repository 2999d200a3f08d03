// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/mycolist/internal/names"
	"github.com/pdiddy/mycolist/pkg/types"
)

// Submission is one batch of lines to add to a species list with the
// submitter's decisions.
type Submission struct {
	// ID identifies the submission across resubmissions.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`

	// Lines are raw name lines in list order.
	Lines []string `json:"lines" yaml:"lines"`

	// ChecklistIDs are catalog entries ticked on a checklist. They follow
	// the lines in list order.
	ChecklistIDs []int64 `json:"checklist_ids,omitempty" yaml:"checklist_ids,omitempty"`

	Choices Choices `json:"choices,omitempty" yaml:"choices,omitempty"`
}

// Line is the resolution of one submitted line or checklist ID.
type Line struct {
	// Index is the position in the submission: lines first, then
	// checklist IDs. Blank lines keep their index.
	Index int

	// Text is the normalized line, or the search name of a checklist entry.
	Text string

	// Key addresses this line in Choices.
	Key string

	// Expr is nil when the line did not parse.
	Expr *names.Expression

	Outcome Outcome
}

// Prompt describes what the submitter must decide for this line.
func (l Line) Prompt() string {
	return Describe(l.Key, l.Outcome)
}

// Entry is one line ready for materialization.
type Entry struct {
	Index int
	Key   string

	// Expr is set for every new entry. It may be nil for a checklist entry
	// whose stored name does not parse.
	Expr *names.Expression

	// Name is nil when New is true.
	Name *types.Name
	New  bool
}

// Resolution is the per-line result of a whole submission.
type Resolution struct {
	Submission Submission
	Lines      []Line
}

// Accepted reports whether every line resolved.
func (r *Resolution) Accepted() bool {
	for _, l := range r.Lines {
		if IsPending(l.Outcome) {
			return false
		}
	}
	return true
}

// Pending returns every line that needs a decision, in submission order.
func (r *Resolution) Pending() []Line {
	var pending []Line
	for _, l := range r.Lines {
		if IsPending(l.Outcome) {
			pending = append(pending, l)
		}
	}
	return pending
}

// Entries returns the resolved lines in submission order. It is only
// meaningful when Accepted is true.
func (r *Resolution) Entries() []Entry {
	var entries []Entry
	for _, l := range r.Lines {
		res, ok := l.Outcome.(Resolved)
		if !ok {
			continue
		}
		entries = append(entries, Entry{
			Index: l.Index,
			Key:   l.Key,
			Expr:  l.Expr,
			Name:  res.Entry,
			New:   res.New,
		})
	}
	return entries
}

// Err returns a *RejectedError when any line is pending, else nil.
func (r *Resolution) Err() error {
	pending := r.Pending()
	if len(pending) == 0 {
		return nil
	}
	return &RejectedError{Submission: r.Submission, Pending: pending}
}

// RejectedError carries a rejected submission with all of its pending
// lines so the submitter can answer every prompt at once.
type RejectedError struct {
	Submission Submission
	Pending    []Line
}

func (e *RejectedError) Error() string {
	var ambiguous, deprecated, unapproved int
	for _, l := range e.Pending {
		switch l.Outcome.sentinel() {
		case ErrAmbiguousName:
			ambiguous++
		case ErrDeprecatedNameUnapproved:
			deprecated++
		case ErrNewNameUnapproved:
			unapproved++
		}
	}
	var parts []string
	if ambiguous > 0 {
		parts = append(parts, fmt.Sprintf("%d ambiguous", ambiguous))
	}
	if deprecated > 0 {
		parts = append(parts, fmt.Sprintf("%d deprecated", deprecated))
	}
	if unapproved > 0 {
		parts = append(parts, fmt.Sprintf("%d new", unapproved))
	}
	return fmt.Sprintf("submission rejected: %d line(s) need a decision (%s)",
		len(e.Pending), strings.Join(parts, ", "))
}

// Is matches ErrAmbiguousName, ErrDeprecatedNameUnapproved and
// ErrNewNameUnapproved when any pending line is of that kind.
func (e *RejectedError) Is(target error) bool {
	for _, l := range e.Pending {
		if l.Outcome.sentinel() == target {
			return true
		}
	}
	return false
}

// Resolve resolves every line and checklist ID of sub independently. It
// returns an error only for invalid choices or catalog failures; pending
// lines are reported through the Resolution.
func Resolve(ctx context.Context, cat Catalog, sub Submission) (*Resolution, error) {
	choices, err := sub.Choices.Normalize()
	if err != nil {
		return nil, err
	}
	r := NewResolver(cat, choices)
	res := &Resolution{Submission: sub}

	for i, raw := range sub.Lines {
		text := names.Normalize(raw)
		if text == "" {
			continue
		}
		line := Line{Index: i, Text: text}

		expr, err := names.Parse(text)
		if errors.Is(err, names.ErrUnparseable) {
			line.Key = text
			line.Outcome = NewNameUnapproved{Proposed: text, Reason: ReasonUnparseable}
			res.Lines = append(res.Lines, line)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("parsing line %d: %w", i+1, err)
		}

		line.Key = expr.Key()
		line.Expr = &expr
		if line.Outcome, err = r.ResolveExpression(ctx, expr); err != nil {
			return nil, fmt.Errorf("resolving line %d: %w", i+1, err)
		}
		res.Lines = append(res.Lines, line)
	}

	for j, id := range sub.ChecklistIDs {
		key, outcome, err := r.ResolveID(ctx, id)
		if err != nil {
			return nil, err
		}
		line := Line{Index: len(sub.Lines) + j, Text: key, Key: key, Outcome: outcome}
		if expr, err := names.Parse(key); err == nil {
			line.Expr = &expr
		}
		res.Lines = append(res.Lines, line)
	}

	return res, nil
}
