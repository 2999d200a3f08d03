// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package names parses lines of free text into taxonomic name expressions.
//
// A line is normalized (Unicode NFC, single spaces), an optional leading
// rank keyword is consumed, and the remaining words are read as genus,
// species epithet, optional infraspecific marker and epithet, and author.
// Quoted words are informal names and bypass the Latin word rules.
package names

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/pdiddy/mycolist/pkg/types"
)

// ErrUnparseable reports a line that does not read as a taxonomic name.
var ErrUnparseable = errors.New("unparseable name")

// infraMarkers maps accepted infraspecific markers to their canonical form
// and rank.
var infraMarkers = map[string]struct {
	canonical string
	rank      types.Rank
}{
	"subsp.": {"subsp.", types.RankSubspecies},
	"subsp":  {"subsp.", types.RankSubspecies},
	"ssp.":   {"subsp.", types.RankSubspecies},
	"ssp":    {"subsp.", types.RankSubspecies},
	"var.":   {"var.", types.RankVariety},
	"var":    {"var.", types.RankVariety},
	"f.":     {"f.", types.RankForm},
	"forma":  {"f.", types.RankForm},
}

// authorParticles may start an author string even though they are lowercase.
var authorParticles = map[string]bool{
	"sensu": true, "auct.": true, "auct": true, "de": true, "van": true,
	"von": true, "ex": true, "in": true, "s.l.": true, "s.s.": true,
	"s.str.": true, "nom.": true, "emend.": true, "non": true,
}

// Expression is the parsed form of one line.
type Expression struct {
	// Rank is the explicit rank keyword when RankGiven, else inferred.
	Rank      types.Rank `json:"rank" yaml:"rank"`
	RankGiven bool       `json:"rank_given,omitempty" yaml:"rank_given,omitempty"`

	// Genus is the first name word: the genus, or the uninomial itself for
	// ranks above genus.
	Genus   string `json:"genus" yaml:"genus"`
	Species string `json:"species,omitempty" yaml:"species,omitempty"`
	Marker  string `json:"marker,omitempty" yaml:"marker,omitempty"`
	Infra   string `json:"infra,omitempty" yaml:"infra,omitempty"`
	Author  string `json:"author,omitempty" yaml:"author,omitempty"`

	// Quoted marks informal, unpublished names.
	Quoted bool `json:"quoted,omitempty" yaml:"quoted,omitempty"`

	// Synonym is the right-hand side of an "A = B" line. It is kept for
	// cross-reference only.
	Synonym *Expression `json:"synonym,omitempty" yaml:"synonym,omitempty"`
}

// TextName returns the name without author.
func (e Expression) TextName() string {
	parts := []string{e.Genus}
	if e.Species != "" {
		parts = append(parts, e.Species)
	}
	if e.Infra != "" {
		parts = append(parts, e.Marker, e.Infra)
	}
	return strings.Join(parts, " ")
}

// SearchName returns the name with author, the canonical catalog form.
func (e Expression) SearchName() string {
	if e.Author == "" {
		return e.TextName()
	}
	return e.TextName() + " " + e.Author
}

// Key is the normalized text used to match catalog entries and to key the
// disambiguation choices of a submission.
func (e Expression) Key() string {
	return e.SearchName()
}

func (e Expression) String() string {
	s := e.SearchName()
	if e.Synonym != nil {
		s += " = " + e.Synonym.SearchName()
	}
	return s
}

// Parents returns the ancestor expressions implied by e, most general
// first: the genus of a species, and the genus and species of an
// infraspecific name. Informal genera have no parents.
func (e Expression) Parents() []Expression {
	if e.Species == "" || strings.HasPrefix(e.Genus, `"`) {
		return nil
	}
	parents := []Expression{{Rank: types.RankGenus, Genus: e.Genus}}
	if e.Infra != "" {
		parents = append(parents, Expression{
			Rank:    types.RankSpecies,
			Genus:   e.Genus,
			Species: e.Species,
			Quoted:  strings.HasPrefix(e.Species, `"`),
		})
	}
	return parents
}

// Normalize applies NFC, trims, and collapses internal whitespace runs so
// that "Lactarius rubidus  (Hesler and Smith) Methven" and its single-spaced
// form compare equal.
func Normalize(line string) string {
	return strings.Join(strings.Fields(norm.NFC.String(line)), " ")
}

// Key returns the matching key for raw user text: the parsed key when the
// text parses, else the normalized text.
func Key(text string) string {
	expr, err := Parse(text)
	if err != nil {
		return Normalize(text)
	}
	return expr.Key()
}

// SplitLines splits free or uploaded text into normalized, non-blank lines.
func SplitLines(text string) []string {
	var lines []string
	for _, raw := range strings.Split(text, "\n") {
		if line := Normalize(raw); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// Parse reads one line. Lines of the form "A = B" return A with Synonym set
// to B.
func Parse(line string) (Expression, error) {
	line = Normalize(line)
	if line == "" {
		return Expression{}, fmt.Errorf("%w: empty line", ErrUnparseable)
	}

	if primary, synonym, ok := strings.Cut(line, "="); ok {
		left, err := parseSingle(strings.TrimSpace(primary))
		if err != nil {
			return Expression{}, err
		}
		right, err := parseSingle(strings.TrimSpace(synonym))
		if err != nil {
			return Expression{}, err
		}
		left.Synonym = &right
		return left, nil
	}

	return parseSingle(line)
}

func parseSingle(line string) (Expression, error) {
	tokens, err := tokenize(line)
	if err != nil {
		return Expression{}, err
	}
	if len(tokens) == 0 {
		return Expression{}, fmt.Errorf("%w: %q", ErrUnparseable, line)
	}

	var e Expression
	if rank, ok := types.ParseRank(tokens[0]); ok && len(tokens) > 1 {
		e.Rank = rank
		e.RankGiven = true
		tokens = tokens[1:]
	}

	genus := tokens[0]
	switch {
	case isQuoted(genus):
		e.Quoted = true
	case !isGenusWord(genus):
		return Expression{}, fmt.Errorf("%w: %q does not start with a genus", ErrUnparseable, line)
	}
	e.Genus = genus
	rest := tokens[1:]

	if len(rest) > 0 && (rest[0] == "sp" || rest[0] == "sp.") {
		rest = rest[1:]
	} else if len(rest) > 0 && (isQuoted(rest[0]) || isEpithet(rest[0])) {
		e.Species = rest[0]
		e.Quoted = e.Quoted || isQuoted(rest[0])
		rest = rest[1:]

		if len(rest) > 1 {
			if m, ok := infraMarkers[rest[0]]; ok && (isEpithet(rest[1]) || isQuoted(rest[1])) {
				e.Marker = m.canonical
				e.Infra = rest[1]
				e.Quoted = e.Quoted || isQuoted(rest[1])
				rest = rest[2:]
				if !e.RankGiven {
					e.Rank = m.rank
				}
			}
		}
	}

	if len(rest) > 0 {
		if !isAuthorStart(rest[0]) {
			return Expression{}, fmt.Errorf("%w: %q has no recognizable author", ErrUnparseable, line)
		}
		e.Author = strings.Join(rest, " ")
	}

	if !e.RankGiven && e.Rank == "" {
		if e.Species != "" {
			e.Rank = types.RankSpecies
		} else {
			e.Rank = types.RankGenus
		}
	}
	return e, nil
}

// tokenize splits on spaces, keeping quoted segments (with their quotes)
// as single tokens.
func tokenize(line string) ([]string, error) {
	var (
		tokens []string
		cur    strings.Builder
		quoted bool
	)
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range line {
		switch {
		case r == '"':
			cur.WriteRune(r)
			quoted = !quoted
		case r == ' ' && !quoted:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	if quoted {
		return nil, fmt.Errorf("%w: unbalanced quote in %q", ErrUnparseable, line)
	}
	flush()
	return tokens, nil
}

func isQuoted(tok string) bool {
	return len(tok) >= 3 && strings.HasPrefix(tok, `"`) && strings.HasSuffix(tok, `"`)
}

// isGenusWord accepts a capitalized Latin word: one uppercase letter
// followed by lowercase letters or hyphens.
func isGenusWord(tok string) bool {
	first, size := utf8.DecodeRuneInString(tok)
	if !unicode.IsUpper(first) || len(tok) == size {
		return false
	}
	for _, r := range tok[size:] {
		if !unicode.IsLower(r) && r != '-' {
			return false
		}
	}
	return true
}

// isEpithet accepts a lowercase word, hyphens allowed ("bugs-bunny").
func isEpithet(tok string) bool {
	first, _ := utf8.DecodeRuneInString(tok)
	if !unicode.IsLower(first) {
		return false
	}
	for _, r := range tok {
		if !unicode.IsLower(r) && r != '-' {
			return false
		}
	}
	return !authorParticles[tok]
}

func isAuthorStart(tok string) bool {
	if authorParticles[tok] {
		return true
	}
	first, _ := utf8.DecodeRuneInString(tok)
	return unicode.IsUpper(first) || first == '('
}
