// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package names

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/mycolist/pkg/types"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Expression
	}{
		{
			name: "one word infers genus",
			line: "Agaricaceae",
			want: Expression{Rank: types.RankGenus, Genus: "Agaricaceae"},
		},
		{
			name: "two words infer species",
			line: "Coprinus comatus",
			want: Expression{Rank: types.RankSpecies, Genus: "Coprinus", Species: "comatus"},
		},
		{
			name: "rank keyword sets rank",
			line: "Family Agaricaceae",
			want: Expression{Rank: types.RankFamily, RankGiven: true, Genus: "Agaricaceae"},
		},
		{
			name: "rank keyword is case-insensitive",
			line: "genus Agaricus",
			want: Expression{Rank: types.RankGenus, RankGiven: true, Genus: "Agaricus"},
		},
		{
			name: "author after species",
			line: "Lactarius rubidus (Hesler and Smith) Methven",
			want: Expression{
				Rank: types.RankSpecies, Genus: "Lactarius", Species: "rubidus",
				Author: "(Hesler and Smith) Methven",
			},
		},
		{
			name: "doubled spaces collapse",
			line: "  Lactarius  rubidus  (Hesler and Smith)   Methven ",
			want: Expression{
				Rank: types.RankSpecies, Genus: "Lactarius", Species: "rubidus",
				Author: "(Hesler and Smith) Methven",
			},
		},
		{
			name: "sp suffix is dropped",
			line: "Agaricus sp",
			want: Expression{Rank: types.RankGenus, Genus: "Agaricus"},
		},
		{
			name: "sp. suffix with author",
			line: "Lepiota sp. Author",
			want: Expression{Rank: types.RankGenus, Genus: "Lepiota", Author: "Author"},
		},
		{
			name: "capitalized second word is an author",
			line: "Chlorophyllum Author",
			want: Expression{Rank: types.RankGenus, Genus: "Chlorophyllum", Author: "Author"},
		},
		{
			name: "quoted genus",
			line: `"One"`,
			want: Expression{Rank: types.RankGenus, Genus: `"One"`, Quoted: true},
		},
		{
			name: "quoted genus with sp",
			line: `"Two" sp`,
			want: Expression{Rank: types.RankGenus, Genus: `"Two"`, Quoted: true},
		},
		{
			name: "quoted epithet",
			line: `Agaricus "blah"`,
			want: Expression{Rank: types.RankSpecies, Genus: "Agaricus", Species: `"blah"`, Quoted: true},
		},
		{
			name: "quoted segment keeps spaces",
			line: `Agaricus "big   blah"`,
			want: Expression{Rank: types.RankSpecies, Genus: "Agaricus", Species: `"big blah"`, Quoted: true},
		},
		{
			name: "hyphenated epithet",
			line: "Warnerbros  bugs-bunny",
			want: Expression{Rank: types.RankSpecies, Genus: "Warnerbros", Species: "bugs-bunny"},
		},
		{
			name: "variety",
			line: "Amanita muscaria var. alba Peck",
			want: Expression{
				Rank: types.RankVariety, Genus: "Amanita", Species: "muscaria",
				Marker: "var.", Infra: "alba", Author: "Peck",
			},
		},
		{
			name: "ssp normalizes to subsp.",
			line: "Amanita muscaria ssp flavivolvata",
			want: Expression{
				Rank: types.RankSubspecies, Genus: "Amanita", Species: "muscaria",
				Marker: "subsp.", Infra: "flavivolvata",
			},
		},
		{
			name: "sensu author particle",
			line: "Amanita baccata sensu Borealis",
			want: Expression{
				Rank: types.RankSpecies, Genus: "Amanita", Species: "baccata",
				Author: "sensu Borealis",
			},
		},
		{
			name: "non-ascii author",
			line: "Tapinella atrotomentosa (Batsch) Šutara",
			want: Expression{
				Rank: types.RankSpecies, Genus: "Tapinella", Species: "atrotomentosa",
				Author: "(Batsch) Šutara",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.line)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tt.line, diff)
			}
		})
	}
}

func TestParseSynonymLine(t *testing.T) {
	got, err := Parse("Macrolepiota rachodes = Lepiota rachodes")
	require.NoError(t, err)
	assert.Equal(t, "Macrolepiota rachodes", got.TextName())
	require.NotNil(t, got.Synonym)
	assert.Equal(t, "Lepiota rachodes", got.Synonym.TextName())
	assert.Equal(t, "Macrolepiota rachodes = Lepiota rachodes", got.String())
}

func TestParseFailures(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"empty", "   "},
		{"free prose", "This is a bunch of junk"},
		{"lowercase start", "agaricus campestris"},
		{"unbalanced quote", `"One`},
		{"digits", "12345"},
		{"bad synonym side", "Coprinus comatus = something odd here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.line)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnparseable), "error %v should wrap ErrUnparseable", err)
		})
	}
}

func TestRankInference(t *testing.T) {
	one, err := Parse("Boletus")
	require.NoError(t, err)
	assert.Equal(t, types.RankGenus, one.Rank)

	two, err := Parse("Boletus edulis")
	require.NoError(t, err)
	assert.Equal(t, types.RankSpecies, two.Rank)
}

func TestNames(t *testing.T) {
	e, err := Parse("Lactarius rubidus  (Hesler and Smith) Methven")
	require.NoError(t, err)
	assert.Equal(t, "Lactarius rubidus", e.TextName())
	assert.Equal(t, "Lactarius rubidus (Hesler and Smith) Methven", e.SearchName())
	assert.Equal(t, e.SearchName(), e.Key())
}

func TestKey(t *testing.T) {
	assert.Equal(t, "Psalliota", Key("Psalliota sp."))
	assert.Equal(t, Key("Lepiota sp Author"), Key("Lepiota sp. Author"))
	assert.Equal(t, "This is a bunch of junk", Key("This  is a bunch of junk"))
}

func TestParents(t *testing.T) {
	species, err := Parse("Lactarius rubidus Methven")
	require.NoError(t, err)
	parents := species.Parents()
	require.Len(t, parents, 1)
	assert.Equal(t, "Lactarius", parents[0].SearchName())
	assert.Equal(t, types.RankGenus, parents[0].Rank)

	variety, err := Parse("Amanita muscaria var. alba")
	require.NoError(t, err)
	parents = variety.Parents()
	require.Len(t, parents, 2)
	assert.Equal(t, "Amanita", parents[0].TextName())
	assert.Equal(t, "Amanita muscaria", parents[1].TextName())
	assert.Equal(t, types.RankSpecies, parents[1].Rank)

	genus, err := Parse("Agaricus")
	require.NoError(t, err)
	assert.Empty(t, genus.Parents())

	informal, err := Parse(`"One" "two"`)
	require.NoError(t, err)
	assert.Empty(t, informal.Parents())
}

func TestSplitLines(t *testing.T) {
	text := "\n Warnerbros  bugs-bunny \r\nAgaricus bisporus\r\n\r\n  \nAmanita phalloides"
	assert.Equal(t, []string{
		"Warnerbros bugs-bunny",
		"Agaricus bisporus",
		"Amanita phalloides",
	}, SplitLines(text))
}

func TestNormalizeComposesUnicode(t *testing.T) {
	decomposed := "S\u030cutara"
	assert.Equal(t, "\u0160utara", Normalize(decomposed))
}
