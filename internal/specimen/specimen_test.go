// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package specimen

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/mycolist/internal/store"
	"github.com/pdiddy/mycolist/pkg/types"
)

type fixture struct {
	svc   *Service
	store *store.Store
	owner types.User
	obs   types.Observation
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(types.DatabaseConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	u, err := s.EnsureUser(ctx, "rolf")
	require.NoError(t, err)
	n, err := s.CreateName(ctx, types.Name{TextName: "Amanita muscaria", SearchName: "Amanita muscaria", Rank: types.RankSpecies})
	require.NoError(t, err)
	obs, err := s.CreateObservation(ctx, types.Observation{
		NameID: n.ID, UserID: u.ID, When: time.Date(2024, 10, 5, 0, 0, 0, 0, time.UTC), IsCollectionLocation: true,
	})
	require.NoError(t, err)
	return &fixture{svc: NewService(s, nil), store: s, owner: u, obs: obs}
}

func TestAdd(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	first, err := f.svc.Add(ctx, AddRequest{UserID: f.owner.ID, ObservationID: f.obs.ID, HerbariumName: "Fungarium"})
	require.NoError(t, err)
	assert.True(t, first.NewHerbarium)
	assert.Equal(t, fmt.Sprintf("Amanita muscaria [%d]", f.obs.ID), first.Specimen.HerbariumLabel)
	assert.Equal(t, f.obs.When, first.Specimen.When)

	curator, err := f.store.IsCurator(ctx, first.Herbarium.ID, f.owner.ID)
	require.NoError(t, err)
	assert.True(t, curator)

	obs, err := f.store.ObservationByID(ctx, f.obs.ID)
	require.NoError(t, err)
	assert.True(t, obs.Specimen)

	log, err := f.store.Log(ctx, types.Target{Type: types.TargetObservation, ID: f.obs.ID})
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, types.LogSpecimenAdded, log[0].Tag)

	second, err := f.svc.Add(ctx, AddRequest{UserID: f.owner.ID, ObservationID: f.obs.ID, HerbariumName: "Fungarium", Label: "MO-2"})
	require.NoError(t, err)
	assert.False(t, second.NewHerbarium)
	assert.Equal(t, first.Herbarium.ID, second.Herbarium.ID)

	_, err = f.svc.Add(ctx, AddRequest{UserID: f.owner.ID, ObservationID: f.obs.ID, HerbariumName: "Fungarium", Label: "MO-2"})
	assert.ErrorIs(t, err, ErrSpecimenExists)

	_, err = f.svc.Add(ctx, AddRequest{UserID: f.owner.ID, ObservationID: 999, HerbariumName: "Fungarium"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.svc.Add(ctx, AddRequest{UserID: f.owner.ID, ObservationID: f.obs.ID, HerbariumName: "  "})
	assert.ErrorContains(t, err, "herbarium name is required")

	got, err := f.svc.ByHerbarium(ctx, "Fungarium")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, fmt.Sprintf("Amanita muscaria [%d]", f.obs.ID), got[0].HerbariumLabel)
	assert.Equal(t, "MO-2", got[1].HerbariumLabel)

	got, err = f.svc.ByObservation(ctx, f.obs.ID)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = f.svc.ByHerbarium(ctx, "Nowhere")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEdit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	added, err := f.svc.Add(ctx, AddRequest{UserID: f.owner.ID, ObservationID: f.obs.ID, HerbariumName: "Fungarium", Label: "MO-1"})
	require.NoError(t, err)
	_, err = f.svc.Add(ctx, AddRequest{UserID: f.owner.ID, ObservationID: f.obs.ID, HerbariumName: "Fungarium", Label: "MO-2"})
	require.NoError(t, err)
	id := added.Specimen.ID

	tests := []struct {
		name    string
		user    func(t *testing.T) int64
		label   string
		wantErr error
	}{
		{"owner relabels", func(*testing.T) int64 { return f.owner.ID }, "MO-1a", nil},
		{"label held by another specimen", func(*testing.T) int64 { return f.owner.ID }, "MO-2", ErrLabelTaken},
		{"stranger", func(t *testing.T) int64 {
			u, err := f.store.EnsureUser(ctx, "mary")
			require.NoError(t, err)
			return u.ID
		}, "MO-9", ErrCannotEdit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sp, err := f.svc.Edit(ctx, EditRequest{UserID: tt.user(t), SpecimenID: id, Label: tt.label, Notes: "dried"})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.label, sp.HerbariumLabel)
			assert.Equal(t, "dried", sp.Notes)
		})
	}

	t.Run("curator may edit", func(t *testing.T) {
		curator, err := f.store.EnsureUser(ctx, "curator")
		require.NoError(t, err)
		h, err := f.store.CreateHerbarium(ctx, types.Herbarium{Name: "Shared"}, curator.ID)
		require.NoError(t, err)
		sp, err := f.store.CreateSpecimen(ctx, types.Specimen{HerbariumID: h.ID, HerbariumLabel: "S-1", UserID: f.owner.ID})
		require.NoError(t, err)

		edited, err := f.svc.Edit(ctx, EditRequest{UserID: curator.ID, SpecimenID: sp.ID, Label: "S-2"})
		require.NoError(t, err)
		assert.Equal(t, "S-2", edited.HerbariumLabel)
	})

	_, err = f.svc.Edit(ctx, EditRequest{UserID: f.owner.ID, SpecimenID: 999})
	assert.ErrorIs(t, err, store.ErrNotFound)
}
