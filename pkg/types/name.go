// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"strings"
	"time"
)

// Rank is the taxonomic rank of a catalog name.
type Rank string

const (
	RankForm       Rank = "Form"
	RankVariety    Rank = "Variety"
	RankSubspecies Rank = "Subspecies"
	RankSpecies    Rank = "Species"
	RankGenus      Rank = "Genus"
	RankFamily     Rank = "Family"
	RankOrder      Rank = "Order"
	RankClass      Rank = "Class"
	RankPhylum     Rank = "Phylum"
	RankKingdom    Rank = "Kingdom"
	RankGroup      Rank = "Group"
)

// AllRanks lists every rank from most to least specific.
var AllRanks = []Rank{
	RankForm, RankVariety, RankSubspecies, RankSpecies, RankGenus,
	RankFamily, RankOrder, RankClass, RankPhylum, RankKingdom, RankGroup,
}

// ParseRank matches a rank keyword case-insensitively.
func ParseRank(s string) (Rank, bool) {
	for _, r := range AllRanks {
		if strings.EqualFold(string(r), s) {
			return r, true
		}
	}
	return "", false
}

// Name is one canonical catalog entry. Entries are never deleted; they are
// deprecated or grouped with synonyms instead.
type Name struct {
	// ID reflects catalog insertion order.
	ID int64 `json:"id" yaml:"id"`

	// TextName is the name without author, e.g. "Lactarius rubidus".
	TextName string `json:"text_name" yaml:"text_name"`

	// SearchName is TextName plus author; unique across the catalog.
	SearchName string `json:"search_name" yaml:"search_name"`

	Author string `json:"author,omitempty" yaml:"author,omitempty"`
	Rank   Rank   `json:"rank" yaml:"rank"`

	// Deprecated names require explicit approval before they are used.
	Deprecated bool `json:"deprecated" yaml:"deprecated"`

	// SynonymGroupID links taxonomically equivalent names. Zero means the
	// name has no synonyms.
	SynonymGroupID int64 `json:"synonym_group_id,omitempty" yaml:"synonym_group_id,omitempty"`

	CreatedBy int64     `json:"created_by,omitempty" yaml:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// DisplayName renders genus-level and higher names with a trailing "sp."
// the way species lists show them.
func (n Name) DisplayName() string {
	text := n.TextName
	if n.Rank == RankGenus {
		text += " sp."
	}
	if n.Author != "" {
		text += " " + n.Author
	}
	return text
}
