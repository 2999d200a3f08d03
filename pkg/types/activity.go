// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// TargetType identifies the kind of object an activity log line, interest,
// or specimen refers to.
type TargetType string

const (
	TargetName        TargetType = "name"
	TargetObservation TargetType = "observation"
	TargetSpeciesList TargetType = "species_list"
)

// Target is a typed reference to a stored object.
type Target struct {
	Type TargetType `json:"type" yaml:"type"`
	ID   int64      `json:"id" yaml:"id"`
}

// Activity log tags.
const (
	LogNameCreated        = "log_name_created_at"
	LogNameDeprecated     = "log_name_deprecated"
	LogNameApproved       = "log_name_approved"
	LogObservationCreated = "log_observation_created_at"
	LogListCreated        = "log_species_list_created_at"
	LogListUpdated        = "log_species_list_updated_at"
	LogListDestroyed      = "log_species_list_destroyed"
	LogObservationAdded   = "log_observation_added"
	LogObservationRemoved = "log_observation_removed"
	LogSpecimenAdded      = "log_specimen_added"
)

// LogEntry is one line of an object's activity feed.
type LogEntry struct {
	ID     int64             `json:"id" yaml:"id"`
	Target Target            `json:"target" yaml:"target"`
	Tag    string            `json:"tag" yaml:"tag"`
	Args   map[string]string `json:"args,omitempty" yaml:"args,omitempty"`
	At     time.Time         `json:"at" yaml:"at"`
}

// Interest records whether a user wants (State true) or explicitly does not
// want (State false) notifications about a target.
type Interest struct {
	ID         int64  `json:"id" yaml:"id"`
	UserID     int64  `json:"user_id" yaml:"user_id"`
	Target     Target `json:"target" yaml:"target"`
	State      bool   `json:"state" yaml:"state"`
	TargetName string `json:"target_name,omitempty" yaml:"target_name,omitempty"`
}

// Herbarium is a physical collection of specimens with curators.
type Herbarium struct {
	ID          int64     `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Email       string    `json:"email,omitempty" yaml:"email,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// Specimen is a dried collection held by a herbarium under a unique label.
type Specimen struct {
	ID             int64     `json:"id" yaml:"id"`
	HerbariumID    int64     `json:"herbarium_id" yaml:"herbarium_id"`
	HerbariumLabel string    `json:"herbarium_label" yaml:"herbarium_label"`
	UserID         int64     `json:"user_id" yaml:"user_id"`
	When           time.Time `json:"when" yaml:"when"`
	Notes          string    `json:"notes,omitempty" yaml:"notes,omitempty"`
	ObservationIDs []int64   `json:"observation_ids,omitempty" yaml:"observation_ids,omitempty"`
}
