// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/mycolist/pkg/types"
)

const importFile = `
- name: Macrolepiota rachodes
- name: Lepiota rachodes
  synonym_of: Macrolepiota rachodes
- name: Agaricaceae
  rank: Family
- name: Psalliota
  deprecated: true
- name: This is a bunch of junk
`

func TestImportNames(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	u := mustUser(t, s.Queries, "admin")

	var out bytes.Buffer
	summary, err := s.ImportNames(ctx, strings.NewReader(importFile), &out, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Created)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 5, summary.Total())
	assert.Contains(t, out.String(), "failed  This is a bunch of junk")

	family, err := s.NamesByText(ctx, "Agaricaceae")
	require.NoError(t, err)
	require.Len(t, family, 1)
	assert.Equal(t, types.RankFamily, family[0].Rank)
	assert.Equal(t, u.ID, family[0].CreatedBy)

	lepiota, err := s.NamesByText(ctx, "Lepiota rachodes")
	require.NoError(t, err)
	require.Len(t, lepiota, 1)
	assert.True(t, lepiota[0].Deprecated)
	pref, err := s.PreferredSynonym(ctx, lepiota[0].SynonymGroupID)
	require.NoError(t, err)
	require.NotNil(t, pref)
	assert.Equal(t, "Macrolepiota rachodes", pref.TextName)

	psalliota, err := s.NamesByText(ctx, "Psalliota")
	require.NoError(t, err)
	require.Len(t, psalliota, 1)
	assert.True(t, psalliota[0].Deprecated)

	log, err := s.Log(ctx, types.Target{Type: types.TargetName, ID: lepiota[0].ID})
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, types.LogNameCreated, log[0].Tag)
	assert.Equal(t, types.LogNameDeprecated, log[1].Tag)

	// A second run changes nothing.
	out.Reset()
	summary, err = s.ImportNames(ctx, strings.NewReader(importFile), &out, u.ID)
	require.NoError(t, err)
	assert.Equal(t, ImportSummary{Skipped: 4, Failed: 1}, summary)
	n, err := s.CountNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestImportNamesUpdatesDeprecation(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	mustName(t, s.Queries, "Psalliota", "", types.RankGenus)

	var out bytes.Buffer
	summary, err := s.ImportNames(ctx, strings.NewReader("- name: Psalliota\n  deprecated: true\n"), &out, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Updated)

	summary, err = s.ImportNames(ctx, strings.NewReader("- name: Psalliota\n"), &out, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Updated)
	got, err := s.NamesByText(ctx, "Psalliota")
	require.NoError(t, err)
	assert.False(t, got[0].Deprecated)
}

func TestImportNamesRejectsBadInput(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	_, err := s.ImportNames(ctx, strings.NewReader("name: [unclosed"), &bytes.Buffer{}, 0)
	assert.Error(t, err)

	var out bytes.Buffer
	summary, err := s.ImportNames(ctx, strings.NewReader(`
- name: Boletus edulis
  rank: Tribe
- name: Boletus edulis
  synonym_of: Boletus nonexistent
- name: Boletus edulis = Boletus bulbosus
`), &out, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Failed)
	assert.Contains(t, out.String(), "unknown rank")
	assert.Contains(t, out.String(), "use synonym_of")

	summary, err = s.ImportNames(ctx, strings.NewReader(""), &out, 0)
	require.NoError(t, err)
	assert.Zero(t, summary.Total())
}

// --- export ---

func seedExportList(t *testing.T, s *Store) int64 {
	t.Helper()
	ctx := context.Background()
	u := mustUser(t, s.Queries, "rolf")
	genus := mustName(t, s.Queries, "Agaricus", "", types.RankGenus)
	species := mustName(t, s.Queries, "Coprinus comatus", "(O.F. Müll.) Pers.", types.RankSpecies)
	when := time.Date(2024, 10, 5, 0, 0, 0, 0, time.UTC)

	list, err := s.CreateList(ctx, types.SpeciesList{Title: "Foray", When: when, Where: "Point Reyes", UserID: u.ID})
	require.NoError(t, err)

	lat := 38.0714
	for _, nameID := range []int64{genus.ID, species.ID} {
		obs, err := s.CreateObservation(ctx, types.Observation{
			NameID: nameID, UserID: u.ID, When: when, Where: list.Where, Lat: &lat,
		})
		require.NoError(t, err)
		_, err = s.AppendToList(ctx, list.ID, obs.ID)
		require.NoError(t, err)
	}
	return list.ID
}

func TestExportList(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	listID := seedExportList(t, s)

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, s.ExportList(ctx, listID, FormatYAML, &buf))
		var got ExportList
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, "Foray", got.Title)
		assert.Equal(t, "rolf", got.Owner)
		assert.Equal(t, "2024-10-05", got.When)
		require.Len(t, got.Entries, 2)
		assert.Equal(t, "Agaricus", got.Entries[0].Name)
		assert.Equal(t, 2, got.Entries[1].Position)
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, s.ExportList(ctx, listID, FormatJSON, &buf))
		var got ExportList
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		require.Len(t, got.Entries, 2)
		assert.Equal(t, "(O.F. Müll.) Pers.", got.Entries[1].Author)
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, s.ExportList(ctx, listID, FormatCSV, &buf))
		records, err := csv.NewReader(&buf).ReadAll()
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, csvHeader, records[0])
		assert.Equal(t, "Coprinus comatus", records[2][2])
		assert.Equal(t, "38.0714", records[2][8])
		assert.Equal(t, "", records[2][10])
	})

	t.Run("txt", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, s.ExportList(ctx, listID, FormatTXT, &buf))
		assert.Equal(t, "Agaricus sp.\nCoprinus comatus (O.F. Müll.) Pers.\n", buf.String())
	})

	t.Run("unknown format", func(t *testing.T) {
		err := s.ExportList(ctx, listID, "pdf", &bytes.Buffer{})
		assert.ErrorContains(t, err, "unknown export format")
	})

	t.Run("missing list", func(t *testing.T) {
		err := s.ExportList(ctx, 999, FormatYAML, &bytes.Buffer{})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
