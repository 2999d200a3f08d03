// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package materialize

import (
	"fmt"
	"time"

	"github.com/pdiddy/mycolist/internal/coords"
	"github.com/pdiddy/mycolist/pkg/types"
)

// Member holds the observation fields applied to the entries of a list.
// Zero values mean "not given": a per-line Member only overrides the
// fields it sets.
type Member struct {
	When  *time.Time `json:"when,omitempty" yaml:"when,omitempty"`
	Where string     `json:"where,omitempty" yaml:"where,omitempty"`
	Notes string     `json:"notes,omitempty" yaml:"notes,omitempty"`

	// Vote is the confidence attached to each naming.
	Vote *int `json:"vote,omitempty" yaml:"vote,omitempty"`

	// Lat, Long and Alt are free text as typed; see package coords.
	Lat  string `json:"lat,omitempty" yaml:"lat,omitempty"`
	Long string `json:"long,omitempty" yaml:"long,omitempty"`
	Alt  string `json:"alt,omitempty" yaml:"alt,omitempty"`

	IsCollectionLocation *bool `json:"is_collection_location,omitempty" yaml:"is_collection_location,omitempty"`
	Specimen             *bool `json:"specimen,omitempty" yaml:"specimen,omitempty"`
}

// Merge returns m with every field set in over replacing its own.
func (m Member) Merge(over Member) Member {
	if over.When != nil {
		m.When = over.When
	}
	if over.Where != "" {
		m.Where = over.Where
	}
	if over.Notes != "" {
		m.Notes = over.Notes
	}
	if over.Vote != nil {
		m.Vote = over.Vote
	}
	if over.Lat != "" {
		m.Lat = over.Lat
	}
	if over.Long != "" {
		m.Long = over.Long
	}
	if over.Alt != "" {
		m.Alt = over.Alt
	}
	if over.IsCollectionLocation != nil {
		m.IsCollectionLocation = over.IsCollectionLocation
	}
	if over.Specimen != nil {
		m.Specimen = over.Specimen
	}
	return m
}

// fields is a Member with coordinates parsed and defaults applied.
type fields struct {
	when                 time.Time
	where                string
	notes                string
	vote                 int
	lat, long            *float64
	alt                  *int
	isCollectionLocation bool
	specimen             bool
}

// Validate checks the vote range and coordinate syntax.
func (m Member) Validate() error {
	_, err := m.resolve(types.VoteMaximum)
	return err
}

func (m Member) resolve(defaultVote int) (fields, error) {
	f := fields{
		where: m.Where,
		notes: m.Notes,
		vote:  defaultVote,
	}
	if m.When != nil {
		f.when = *m.When
	}
	if m.Vote != nil {
		f.vote = *m.Vote
	}
	if f.vote < types.VoteMinimum || f.vote > types.VoteMaximum {
		return fields{}, fmt.Errorf("vote %d outside [%d, %d]", f.vote, types.VoteMinimum, types.VoteMaximum)
	}
	if m.IsCollectionLocation != nil {
		f.isCollectionLocation = *m.IsCollectionLocation
	}
	if m.Specimen != nil {
		f.specimen = *m.Specimen
	}

	var err error
	if f.lat, err = coords.Latitude(m.Lat); err != nil {
		return fields{}, err
	}
	if f.long, err = coords.Longitude(m.Long); err != nil {
		return fields{}, err
	}
	if (f.lat == nil) != (f.long == nil) {
		return fields{}, fmt.Errorf("%w: latitude and longitude must be given together", coords.ErrInvalid)
	}
	if f.alt, err = coords.Altitude(m.Alt); err != nil {
		return fields{}, err
	}
	return f, nil
}
