// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package materialize turns an accepted submission into catalog names,
// observations, namings, votes and list entries.
//
// It writes through a Writer, normally a store transaction owned by the
// caller, so a failure anywhere leaves nothing behind once the caller rolls
// back.
package materialize

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/mycolist/internal/names"
	"github.com/pdiddy/mycolist/internal/resolve"
	"github.com/pdiddy/mycolist/pkg/types"
)

// Writer is the write side of the store. *store.Tx satisfies it.
type Writer interface {
	NamesByText(ctx context.Context, text string) ([]types.Name, error)
	CreateName(ctx context.Context, n types.Name) (types.Name, error)
	CreateObservation(ctx context.Context, o types.Observation) (types.Observation, error)
	CreateNaming(ctx context.Context, n types.Naming) (types.Naming, error)
	CreateVote(ctx context.Context, v types.Vote) (types.Vote, error)
	AppendToList(ctx context.Context, listID, observationID int64) (int, error)
	ListNameIDs(ctx context.Context, listID int64) (map[int64]bool, error)
}

// Metadata describes where the entries go and what they carry.
type Metadata struct {
	UserID int64
	ListID int64

	// Defaults apply to every entry; the list's date and place belong here.
	Defaults Member

	// Overrides replace Defaults field by field for one entry, keyed by the
	// entry's submission index.
	Overrides map[int]Member
}

// Result summarizes one materialization.
type Result struct {
	// Observations are the created observations in list order.
	Observations []types.Observation

	// Created holds every catalog entry created, parents included, in
	// creation order.
	Created []types.Name

	// Reused counts entries that resolved to an existing catalog entry.
	Reused int

	// Skipped counts entries suppressed by the skip duplicate policy.
	Skipped int
}

// Materializer writes accepted entries.
type Materializer struct {
	duplicates  types.DuplicatePolicy
	defaultVote int
	now         func() time.Time
	logger      *zap.Logger
}

// New returns a Materializer configured by cfg. A nil logger disables
// logging.
func New(cfg types.ListsConfig, logger *zap.Logger) *Materializer {
	if logger == nil {
		logger = zap.NewNop()
	}
	duplicates := cfg.Duplicates
	if duplicates == "" {
		duplicates = types.DuplicatesAppend
	}
	vote := cfg.DefaultVote
	if vote == 0 {
		vote = types.VoteMaximum
	}
	return &Materializer{
		duplicates:  duplicates,
		defaultVote: vote,
		now:         time.Now,
		logger:      logger,
	}
}

// Materialize creates approved new names (each distinct key once, after
// any missing parents), then one observation with naming, vote and list
// entry per entry, in input order. Existing list entries are never touched.
func (m *Materializer) Materialize(ctx context.Context, w Writer, entries []resolve.Entry, meta Metadata) (*Result, error) {
	perEntry := make([]fields, len(entries))
	for i, e := range entries {
		f, err := meta.Defaults.Merge(meta.Overrides[e.Index]).resolve(m.defaultVote)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", e.Index+1, err)
		}
		perEntry[i] = f
	}

	result := &Result{}
	r := &run{result: result, bySearch: make(map[string]types.Name)}
	createdByKey := make(map[string]types.Name)
	for _, e := range entries {
		if !e.New {
			continue
		}
		if _, ok := createdByKey[e.Key]; ok {
			continue
		}
		if e.Expr == nil {
			return nil, fmt.Errorf("line %d: new name %q has no parsed form", e.Index+1, e.Key)
		}
		n, err := m.createWithParents(ctx, w, *e.Expr, meta.UserID, r)
		if err != nil {
			return nil, err
		}
		createdByKey[e.Key] = n
	}

	var onList map[int64]bool
	if m.duplicates == types.DuplicatesSkip {
		var err error
		if onList, err = w.ListNameIDs(ctx, meta.ListID); err != nil {
			return nil, err
		}
	}

	for i, e := range entries {
		var name types.Name
		if e.New {
			name = createdByKey[e.Key]
		} else {
			name = *e.Name
			result.Reused++
		}

		if onList != nil {
			if onList[name.ID] {
				result.Skipped++
				m.logger.Debug("skipping duplicate", zap.String("name", name.SearchName), zap.Int64("list", meta.ListID))
				continue
			}
			onList[name.ID] = true
		}

		obs, err := m.observe(ctx, w, name, perEntry[i], meta)
		if err != nil {
			return nil, err
		}
		result.Observations = append(result.Observations, obs)
	}

	return result, nil
}

func (m *Materializer) observe(ctx context.Context, w Writer, name types.Name, f fields, meta Metadata) (types.Observation, error) {
	now := m.now().UTC()
	when := f.when
	if when.IsZero() {
		when = now
	}

	obs, err := w.CreateObservation(ctx, types.Observation{
		NameID:               name.ID,
		UserID:               meta.UserID,
		When:                 when,
		Where:                f.where,
		Notes:                f.notes,
		Lat:                  f.lat,
		Long:                 f.long,
		Alt:                  f.alt,
		IsCollectionLocation: f.isCollectionLocation,
		Specimen:             f.specimen,
		CreatedAt:            now,
	})
	if err != nil {
		return types.Observation{}, err
	}

	naming, err := w.CreateNaming(ctx, types.Naming{
		ObservationID: obs.ID,
		NameID:        name.ID,
		UserID:        meta.UserID,
		CreatedAt:     now,
	})
	if err != nil {
		return types.Observation{}, err
	}

	if _, err := w.CreateVote(ctx, types.Vote{
		NamingID:      naming.ID,
		ObservationID: obs.ID,
		UserID:        meta.UserID,
		Value:         f.vote,
	}); err != nil {
		return types.Observation{}, err
	}

	if _, err := w.AppendToList(ctx, meta.ListID, obs.ID); err != nil {
		return types.Observation{}, err
	}
	return obs, nil
}

// run tracks the names created by one Materialize call.
type run struct {
	result   *Result
	bySearch map[string]types.Name
}

// createWithParents creates the genus of a species and the genus and
// species of an infraspecific name when the catalog lacks them, then the
// name itself.
func (m *Materializer) createWithParents(ctx context.Context, w Writer, expr names.Expression, userID int64, r *run) (types.Name, error) {
	for _, parent := range expr.Parents() {
		existing, err := w.NamesByText(ctx, parent.TextName())
		if err != nil {
			return types.Name{}, err
		}
		if len(existing) > 0 {
			continue
		}
		if _, err := m.create(ctx, w, parent, userID, r); err != nil {
			return types.Name{}, err
		}
	}
	return m.create(ctx, w, expr, userID, r)
}

// create inserts expr unless this run already created it as a parent.
func (m *Materializer) create(ctx context.Context, w Writer, expr names.Expression, userID int64, r *run) (types.Name, error) {
	if n, ok := r.bySearch[expr.SearchName()]; ok {
		return n, nil
	}
	n, err := w.CreateName(ctx, types.Name{
		TextName:   expr.TextName(),
		SearchName: expr.SearchName(),
		Author:     expr.Author,
		Rank:       expr.Rank,
		CreatedBy:  userID,
		CreatedAt:  m.now().UTC(),
	})
	if err != nil {
		return types.Name{}, err
	}
	m.logger.Debug("created name", zap.Int64("id", n.ID), zap.String("name", n.SearchName), zap.String("rank", string(n.Rank)))
	r.result.Created = append(r.result.Created, n)
	r.bySearch[n.SearchName] = n
	return n, nil
}
