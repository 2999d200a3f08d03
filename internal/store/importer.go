// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/mycolist/internal/names"
	"github.com/pdiddy/mycolist/pkg/types"
)

// NameRecord is one entry of a catalog import file.
type NameRecord struct {
	// Name is the full name with author, e.g. "Lepiota rachodes (Vittad.) Quél.".
	Name string `yaml:"name" json:"name"`

	// Rank overrides the parsed rank.
	Rank string `yaml:"rank,omitempty" json:"rank,omitempty"`

	Deprecated bool `yaml:"deprecated,omitempty" json:"deprecated,omitempty"`

	// SynonymOf names the preferred synonym. It must already be in the
	// catalog or earlier in the same file.
	SynonymOf string `yaml:"synonym_of,omitempty" json:"synonym_of,omitempty"`
}

// ImportSummary holds counts from a catalog import run.
type ImportSummary struct {
	Created int
	Updated int
	Skipped int
	Failed  int
}

// Total returns the number of records processed.
func (s ImportSummary) Total() int {
	return s.Created + s.Updated + s.Skipped + s.Failed
}

// ImportNames reads a YAML list of NameRecords and brings the catalog in
// line with it. New names are created, deprecation flags and synonym links
// are applied, and records that already match are skipped, so running the
// same file twice changes nothing. Each record commits in its own
// transaction; a failed record is reported on w and does not stop the run.
func (s *Store) ImportNames(ctx context.Context, r io.Reader, w io.Writer, userID int64) (ImportSummary, error) {
	var records []NameRecord
	if err := yaml.NewDecoder(r).Decode(&records); err != nil && !errors.Is(err, io.EOF) {
		return ImportSummary{}, fmt.Errorf("parsing import file: %w", err)
	}

	var summary ImportSummary
	for _, rec := range records {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		var changed, created bool
		err := s.InTx(ctx, func(tx *Tx) error {
			var err error
			created, changed, err = tx.importRecord(ctx, rec, userID)
			return err
		})
		switch {
		case err != nil:
			fmt.Fprintf(w, "failed  %s: %v\n", rec.Name, err)
			summary.Failed++
		case created:
			fmt.Fprintf(w, "created %s\n", rec.Name)
			summary.Created++
		case changed:
			fmt.Fprintf(w, "updated %s\n", rec.Name)
			summary.Updated++
		default:
			fmt.Fprintf(w, "skipped %s\n", rec.Name)
			summary.Skipped++
		}
	}

	fmt.Fprintf(w, "\ncreated: %d, updated: %d, skipped: %d, failed: %d\n",
		summary.Created, summary.Updated, summary.Skipped, summary.Failed)
	return summary, nil
}

func (q *Queries) importRecord(ctx context.Context, rec NameRecord, userID int64) (created, changed bool, err error) {
	expr, err := names.Parse(rec.Name)
	if err != nil {
		return false, false, err
	}
	if expr.Synonym != nil {
		return false, false, fmt.Errorf("use synonym_of instead of %q", rec.Name)
	}
	if rec.Rank != "" {
		rank, ok := types.ParseRank(rec.Rank)
		if !ok {
			return false, false, fmt.Errorf("unknown rank %q", rec.Rank)
		}
		expr.Rank = rank
	}

	name, err := q.lookupSearchName(ctx, expr.SearchName())
	if err != nil {
		return false, false, err
	}
	if name == nil {
		n, err := q.CreateName(ctx, types.Name{
			TextName:   expr.TextName(),
			SearchName: expr.SearchName(),
			Author:     expr.Author,
			Rank:       expr.Rank,
			Deprecated: rec.Deprecated,
			CreatedBy:  userID,
		})
		if err != nil {
			return false, false, err
		}
		if err := q.AppendLog(ctx, types.Target{Type: types.TargetName, ID: n.ID}, types.LogNameCreated, nil); err != nil {
			return false, false, err
		}
		name, created = &n, true
	}

	if rec.SynonymOf != "" {
		pref, err := q.lookupSearchName(ctx, names.Key(rec.SynonymOf))
		if err != nil {
			return false, false, err
		}
		if pref == nil {
			return false, false, fmt.Errorf("synonym %q: %w", rec.SynonymOf, ErrNotFound)
		}
		linked := name.SynonymGroupID != 0 && name.SynonymGroupID == pref.SynonymGroupID
		if !linked || !name.Deprecated || pref.Deprecated {
			if _, err := q.Synonymize(ctx, name.ID, pref.ID); err != nil {
				return false, false, err
			}
			if err := q.AppendLog(ctx, types.Target{Type: types.TargetName, ID: name.ID}, types.LogNameDeprecated,
				map[string]string{"other": pref.SearchName}); err != nil {
				return false, false, err
			}
			return created, true, nil
		}
		return created, false, nil
	}

	if name.Deprecated != rec.Deprecated {
		if rec.Deprecated {
			err = q.Deprecate(ctx, name.ID)
		} else {
			err = q.SetPreferred(ctx, name.ID)
		}
		if err != nil {
			return false, false, err
		}
		tag := types.LogNameApproved
		if rec.Deprecated {
			tag = types.LogNameDeprecated
		}
		if err := q.AppendLog(ctx, types.Target{Type: types.TargetName, ID: name.ID}, tag, nil); err != nil {
			return false, false, err
		}
		return created, true, nil
	}
	return created, false, nil
}

func (q *Queries) lookupSearchName(ctx context.Context, search string) (*types.Name, error) {
	found, err := q.NamesBySearchName(ctx, search)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}
