// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package materialize

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pdiddy/mycolist/internal/coords"
	"github.com/pdiddy/mycolist/internal/names"
	"github.com/pdiddy/mycolist/internal/resolve"
	"github.com/pdiddy/mycolist/internal/store"
	"github.com/pdiddy/mycolist/pkg/types"
)

type fixture struct {
	store *store.Store
	user  types.User
	list  types.SpeciesList
}

func setup(t *testing.T) *fixture {
	t.Helper()
	s, err := store.Open(types.DatabaseConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	u, err := s.EnsureUser(ctx, "rolf")
	require.NoError(t, err)
	l, err := s.CreateList(ctx, types.SpeciesList{
		Title: "Foray", When: time.Date(2024, 10, 5, 0, 0, 0, 0, time.UTC), Where: "Point Reyes", UserID: u.ID,
	})
	require.NoError(t, err)
	return &fixture{store: s, user: u, list: l}
}

func (f *fixture) name(t *testing.T, text string) types.Name {
	t.Helper()
	expr, err := names.Parse(text)
	require.NoError(t, err)
	n, err := f.store.CreateName(context.Background(), types.Name{
		TextName: expr.TextName(), SearchName: expr.SearchName(), Author: expr.Author, Rank: expr.Rank,
	})
	require.NoError(t, err)
	return n
}

func (f *fixture) meta() Metadata {
	when := f.list.When
	return Metadata{
		UserID:   f.user.ID,
		ListID:   f.list.ID,
		Defaults: Member{When: &when, Where: f.list.Where},
	}
}

// accept resolves lines and materializes them in one transaction.
func (f *fixture) accept(t *testing.T, m *Materializer, choices resolve.Choices, meta Metadata, lines ...string) *Result {
	t.Helper()
	ctx := context.Background()
	var result *Result
	err := f.store.InTx(ctx, func(tx *store.Tx) error {
		res, err := resolve.Resolve(ctx, tx, resolve.Submission{Lines: lines, Choices: choices})
		if err != nil {
			return err
		}
		if err := res.Err(); err != nil {
			return err
		}
		result, err = m.Materialize(ctx, tx, res.Entries(), meta)
		return err
	})
	require.NoError(t, err)
	return result
}

func (f *fixture) entries(t *testing.T) []types.ListEntry {
	t.Helper()
	entries, err := f.store.ListEntries(context.Background(), f.list.ID)
	require.NoError(t, err)
	return entries
}

func TestMaterializeExistingNames(t *testing.T) {
	f := setup(t)
	coprinus := f.name(t, "Coprinus comatus")
	agaricus := f.name(t, "Agaricus campestris")
	m := New(types.ListsConfig{}, zap.NewNop())

	result := f.accept(t, m, resolve.Choices{}, f.meta(), "Coprinus comatus", "Agaricus campestris")
	assert.Len(t, result.Observations, 2)
	assert.Empty(t, result.Created)
	assert.Equal(t, 2, result.Reused)

	entries := f.entries(t)
	require.Len(t, entries, 2)
	assert.Equal(t, coprinus.ID, entries[0].Name.ID)
	assert.Equal(t, agaricus.ID, entries[1].Name.ID)
	assert.Equal(t, 1, entries[0].Position)
	assert.Equal(t, 2, entries[1].Position)
	assert.Equal(t, "Point Reyes", entries[0].Observation.Where)
	assert.Equal(t, f.list.When, entries[0].Observation.When)
	assert.False(t, entries[0].Observation.IsCollectionLocation, "unset member fields leave both flags off")
	assert.False(t, entries[0].Observation.Specimen)

	namings, err := f.store.NamingsFor(context.Background(), entries[0].Observation.ID)
	require.NoError(t, err)
	require.Len(t, namings, 1)
	votes, err := f.store.VotesFor(context.Background(), namings[0].ID)
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.Equal(t, types.VoteMaximum, votes[0].Value)
}

func TestMaterializeDuplicateNewNamesCreateOnce(t *testing.T) {
	f := setup(t)
	m := New(types.ListsConfig{}, nil)

	result := f.accept(t, m, resolve.Choices{ApprovedNew: []string{"Agaricaceae"}}, f.meta(),
		"Agaricaceae", "Agaricaceae")
	require.Len(t, result.Created, 1)
	assert.Equal(t, "Agaricaceae", result.Created[0].SearchName)
	assert.Equal(t, types.RankGenus, result.Created[0].Rank)
	assert.Equal(t, f.user.ID, result.Created[0].CreatedBy)

	entries := f.entries(t)
	require.Len(t, entries, 2)
	assert.Equal(t, result.Created[0].ID, entries[0].Name.ID)
	assert.Equal(t, result.Created[0].ID, entries[1].Name.ID)
}

func TestMaterializeCreatesParents(t *testing.T) {
	t.Run("genus of a species", func(t *testing.T) {
		f := setup(t)
		result := f.accept(t, New(types.ListsConfig{}, nil),
			resolve.Choices{ApprovedNew: []string{"New name"}}, f.meta(), "New name")
		require.Len(t, result.Created, 2)
		assert.Equal(t, "New", result.Created[0].TextName)
		assert.Equal(t, types.RankGenus, result.Created[0].Rank)
		assert.Equal(t, "New name", result.Created[1].TextName)

		entries := f.entries(t)
		require.Len(t, entries, 1)
		assert.Equal(t, "New name", entries[0].Name.TextName)
	})

	t.Run("existing genus is reused", func(t *testing.T) {
		f := setup(t)
		f.name(t, "Amanita")
		result := f.accept(t, New(types.ListsConfig{}, nil),
			resolve.Choices{ApprovedNew: []string{"Amanita novasp"}}, f.meta(), "Amanita novasp")
		require.Len(t, result.Created, 1)
		assert.Equal(t, "Amanita novasp", result.Created[0].TextName)
	})

	t.Run("genus and species of a variety", func(t *testing.T) {
		f := setup(t)
		result := f.accept(t, New(types.ListsConfig{}, nil),
			resolve.Choices{ApprovedNew: []string{"Amanita muscaria var. alba"}}, f.meta(), "Amanita muscaria var. alba")
		require.Len(t, result.Created, 3)
		assert.Equal(t, []string{"Amanita", "Amanita muscaria", "Amanita muscaria var. alba"},
			[]string{result.Created[0].TextName, result.Created[1].TextName, result.Created[2].TextName})
		assert.Equal(t, types.RankVariety, result.Created[2].Rank)
	})

	t.Run("parent also listed as its own line", func(t *testing.T) {
		f := setup(t)
		result := f.accept(t, New(types.ListsConfig{}, nil),
			resolve.Choices{ApprovedNew: []string{"Psathyrella nova", "Psathyrella"}}, f.meta(),
			"Psathyrella nova", "Psathyrella")
		require.Len(t, result.Created, 2)
		entries := f.entries(t)
		require.Len(t, entries, 2)
		assert.Equal(t, "Psathyrella", entries[1].Name.TextName)
	})
}

func TestMaterializeMemberFields(t *testing.T) {
	f := setup(t)
	f.name(t, "Coprinus comatus")
	f.name(t, "Agaricus campestris")

	vote, low := 2, -1
	yes := true
	meta := f.meta()
	meta.Defaults.Notes = "mixed woods"
	meta.Defaults.Vote = &vote
	meta.Defaults.Lat = "12 34 56 N"
	meta.Defaults.Long = "78 9 12 W"
	meta.Defaults.Alt = "345 ft"
	meta.Defaults.IsCollectionLocation = &yes
	meta.Overrides = map[int]Member{1: {Notes: "on dung", Vote: &low}}

	f.accept(t, New(types.ListsConfig{}, nil), resolve.Choices{}, meta, "Coprinus comatus", "Agaricus campestris")

	entries := f.entries(t)
	require.Len(t, entries, 2)
	first, second := entries[0].Observation, entries[1].Observation
	assert.Equal(t, "mixed woods", first.Notes)
	assert.Equal(t, "on dung", second.Notes)
	require.NotNil(t, first.Lat)
	assert.InDelta(t, 12.5822, *first.Lat, 1e-9)
	assert.InDelta(t, -78.1533, *first.Long, 1e-9)
	assert.Equal(t, 105, *first.Alt)
	assert.True(t, first.IsCollectionLocation)
	assert.True(t, second.IsCollectionLocation)
	assert.InDelta(t, 12.5822, *second.Lat, 1e-9, "overrides keep unset defaults")

	ctx := context.Background()
	for i, want := range []int{2, -1} {
		namings, err := f.store.NamingsFor(ctx, entries[i].Observation.ID)
		require.NoError(t, err)
		votes, err := f.store.VotesFor(ctx, namings[0].ID)
		require.NoError(t, err)
		assert.Equal(t, want, votes[0].Value)
	}
}

func TestMaterializeRejectsBadMemberFieldsBeforeWriting(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	meta := f.meta()
	meta.Defaults.Lat = "north-ish"
	meta.Defaults.Long = "12"
	entries := []resolve.Entry{{Index: 0, Key: "Agaricaceae", Expr: &names.Expression{Rank: types.RankGenus, Genus: "Agaricaceae"}, New: true}}

	_, err := New(types.ListsConfig{}, nil).Materialize(ctx, f.store, entries, meta)
	assert.ErrorIs(t, err, coords.ErrInvalid)

	n, err := f.store.CountNames(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	bad := 7
	meta = f.meta()
	meta.Overrides = map[int]Member{0: {Vote: &bad}}
	_, err = New(types.ListsConfig{}, nil).Materialize(ctx, f.store, entries, meta)
	assert.ErrorContains(t, err, "vote 7 outside")

	meta = f.meta()
	meta.Defaults.Lat = "12"
	assert.ErrorIs(t, meta.Defaults.Validate(), coords.ErrInvalid, "latitude without longitude")
}

func TestMaterializeDuplicatePolicies(t *testing.T) {
	t.Run("append", func(t *testing.T) {
		f := setup(t)
		f.name(t, "Coprinus comatus")
		m := New(types.ListsConfig{Duplicates: types.DuplicatesAppend}, nil)

		f.accept(t, m, resolve.Choices{}, f.meta(), "Coprinus comatus", "Coprinus comatus")
		f.accept(t, m, resolve.Choices{}, f.meta(), "Coprinus comatus")
		assert.Len(t, f.entries(t), 3)
	})

	t.Run("skip", func(t *testing.T) {
		f := setup(t)
		f.name(t, "Coprinus comatus")
		f.name(t, "Agaricus campestris")
		m := New(types.ListsConfig{Duplicates: types.DuplicatesSkip}, nil)

		result := f.accept(t, m, resolve.Choices{}, f.meta(), "Coprinus comatus", "Coprinus comatus")
		assert.Len(t, result.Observations, 1)
		assert.Equal(t, 1, result.Skipped)

		result = f.accept(t, m, resolve.Choices{}, f.meta(), "Coprinus comatus", "Agaricus campestris")
		assert.Len(t, result.Observations, 1)
		assert.Equal(t, 1, result.Skipped)

		entries := f.entries(t)
		require.Len(t, entries, 2)
		assert.Equal(t, "Coprinus comatus", entries[0].Name.TextName)
		assert.Equal(t, "Agaricus campestris", entries[1].Name.TextName)
	})
}

func TestMaterializeNameConflict(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.name(t, "Agaricaceae")

	// An entry resolved as new before a concurrent submission created it.
	entries := []resolve.Entry{{Index: 0, Key: "Agaricaceae", Expr: &names.Expression{Rank: types.RankGenus, Genus: "Agaricaceae"}, New: true}}
	err := f.store.InTx(ctx, func(tx *store.Tx) error {
		_, err := New(types.ListsConfig{}, nil).Materialize(ctx, tx, entries, f.meta())
		return err
	})
	assert.ErrorIs(t, err, store.ErrNameConflict)
	assert.Empty(t, f.entries(t))
}

func TestMemberMerge(t *testing.T) {
	yes := true
	one := 1
	base := Member{Where: "Here", Notes: "base", Lat: "1", Long: "2"}
	got := base.Merge(Member{Notes: "line", Vote: &one, Specimen: &yes})
	assert.Equal(t, "Here", got.Where)
	assert.Equal(t, "line", got.Notes)
	assert.Equal(t, "1", got.Lat)
	assert.Equal(t, &one, got.Vote)
	assert.Equal(t, &yes, got.Specimen)
	assert.Nil(t, got.IsCollectionLocation)
}
