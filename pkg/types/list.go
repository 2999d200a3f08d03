// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Vote values attached to a naming.
const (
	VoteMinimum = -3
	VoteMaximum = 3
)

// User is a community member. Contribution accumulates score deltas.
type User struct {
	ID           int64     `json:"id" yaml:"id"`
	Login        string    `json:"login" yaml:"login"`
	Contribution int       `json:"contribution" yaml:"contribution"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
}

// SpeciesList is an ordered collection of observations made on one outing
// or for one purpose.
type SpeciesList struct {
	ID        int64     `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	When      time.Time `json:"when" yaml:"when"`
	Where     string    `json:"where" yaml:"where"`
	Notes     string    `json:"notes,omitempty" yaml:"notes,omitempty"`
	UserID    int64     `json:"user_id" yaml:"user_id"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Observation is one sighting of an organism, named by its consensus Name.
type Observation struct {
	ID     int64 `json:"id" yaml:"id"`
	NameID int64 `json:"name_id" yaml:"name_id"`
	UserID int64 `json:"user_id" yaml:"user_id"`

	When  time.Time `json:"when" yaml:"when"`
	Where string    `json:"where" yaml:"where"`
	Notes string    `json:"notes,omitempty" yaml:"notes,omitempty"`

	// Lat and Long are decimal degrees; Alt is meters. Nil when unknown.
	Lat  *float64 `json:"lat,omitempty" yaml:"lat,omitempty"`
	Long *float64 `json:"long,omitempty" yaml:"long,omitempty"`
	Alt  *int     `json:"alt,omitempty" yaml:"alt,omitempty"`

	IsCollectionLocation bool `json:"is_collection_location" yaml:"is_collection_location"`
	Specimen             bool `json:"specimen" yaml:"specimen"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Naming is a user's proposal of a Name for an Observation.
type Naming struct {
	ID            int64     `json:"id" yaml:"id"`
	ObservationID int64     `json:"observation_id" yaml:"observation_id"`
	NameID        int64     `json:"name_id" yaml:"name_id"`
	UserID        int64     `json:"user_id" yaml:"user_id"`
	CreatedAt     time.Time `json:"created_at" yaml:"created_at"`
}

// Vote is a user's confidence in a Naming, between VoteMinimum and VoteMaximum.
type Vote struct {
	ID            int64 `json:"id" yaml:"id"`
	NamingID      int64 `json:"naming_id" yaml:"naming_id"`
	ObservationID int64 `json:"observation_id" yaml:"observation_id"`
	UserID        int64 `json:"user_id" yaml:"user_id"`
	Value         int   `json:"value" yaml:"value"`
}

// ListEntry is an observation as it appears on a species list, joined with
// its name.
type ListEntry struct {
	Position    int         `json:"position" yaml:"position"`
	Observation Observation `json:"observation" yaml:"observation"`
	Name        Name        `json:"name" yaml:"name"`
}
