// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package specimen records dried collections held by herbaria.
package specimen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/mycolist/internal/store"
	"github.com/pdiddy/mycolist/pkg/types"
)

var (
	// ErrSpecimenExists reports a label already used in the herbarium.
	ErrSpecimenExists = errors.New("specimen already exists")

	// ErrLabelTaken reports an edit to a label another specimen holds.
	ErrLabelTaken = errors.New("herbarium label taken")

	// ErrCannotEdit reports an edit by someone who is neither the
	// specimen's owner nor a curator of its herbarium.
	ErrCannotEdit = errors.New("cannot edit specimen")
)

// AddRequest records a specimen of an observation.
type AddRequest struct {
	UserID        int64
	ObservationID int64
	HerbariumName string

	// Label defaults to the observation's name and ID, "Amanita muscaria [12]".
	Label string

	// When defaults to the observation date.
	When  time.Time
	Notes string
}

// AddResult reports a new specimen.
type AddResult struct {
	Specimen  types.Specimen
	Herbarium types.Herbarium

	// NewHerbarium is set when the herbarium was created for this
	// specimen, with the user as its curator.
	NewHerbarium bool
}

// EditRequest changes a specimen. Empty fields keep current values.
type EditRequest struct {
	UserID     int64
	SpecimenID int64
	Label      string
	When       *time.Time
	Notes      string
}

// Service manages specimens.
type Service struct {
	store  *store.Store
	logger *zap.Logger
}

// NewService returns a Service over s.
func NewService(s *store.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: s, logger: logger}
}

// Add creates a specimen for an observation and marks the observation as
// having one. A missing herbarium is created with the user as curator.
func (s *Service) Add(ctx context.Context, req AddRequest) (*AddResult, error) {
	herbariumName := strings.TrimSpace(req.HerbariumName)
	if herbariumName == "" {
		return nil, errors.New("herbarium name is required")
	}

	var result AddResult
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		obs, err := tx.ObservationByID(ctx, req.ObservationID)
		if err != nil {
			return err
		}

		label := strings.TrimSpace(req.Label)
		if label == "" {
			name, err := tx.NameByID(ctx, obs.NameID)
			if err != nil {
				return err
			}
			label = fmt.Sprintf("%s [%d]", name.TextName, obs.ID)
		}

		h, err := tx.HerbariumByName(ctx, herbariumName)
		switch {
		case errors.Is(err, store.ErrNotFound):
			created, err := tx.CreateHerbarium(ctx, types.Herbarium{Name: herbariumName}, req.UserID)
			if err != nil {
				return err
			}
			h = &created
			result.NewHerbarium = true
		case err != nil:
			return err
		default:
			if _, err := tx.SpecimenByLabel(ctx, h.ID, label); err == nil {
				return fmt.Errorf("%w: %s in %s", ErrSpecimenExists, label, h.Name)
			} else if !errors.Is(err, store.ErrNotFound) {
				return err
			}
		}
		result.Herbarium = *h

		when := req.When
		if when.IsZero() {
			when = obs.When
		}
		result.Specimen, err = tx.CreateSpecimen(ctx, types.Specimen{
			HerbariumID:    h.ID,
			HerbariumLabel: label,
			UserID:         req.UserID,
			When:           when,
			Notes:          req.Notes,
			ObservationIDs: []int64{obs.ID},
		})
		if err != nil {
			return err
		}
		if err := tx.SetSpecimen(ctx, obs.ID, true); err != nil {
			return err
		}
		return tx.AppendLog(ctx, types.Target{Type: types.TargetObservation, ID: obs.ID}, types.LogSpecimenAdded,
			map[string]string{"herbarium": h.Name, "label": label})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("specimen added",
		zap.Int64("specimen", result.Specimen.ID),
		zap.String("herbarium", result.Herbarium.Name),
		zap.Bool("new_herbarium", result.NewHerbarium),
	)
	return &result, nil
}

// Edit changes a specimen. Only its owner or a curator of its herbarium
// may edit it, and a new label must be free in the herbarium.
func (s *Service) Edit(ctx context.Context, req EditRequest) (*types.Specimen, error) {
	var sp *types.Specimen
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		var err error
		if sp, err = tx.SpecimenByID(ctx, req.SpecimenID); err != nil {
			return err
		}
		if sp.UserID != req.UserID {
			curator, err := tx.IsCurator(ctx, sp.HerbariumID, req.UserID)
			if err != nil {
				return err
			}
			if !curator {
				return fmt.Errorf("%w %d", ErrCannotEdit, sp.ID)
			}
		}

		label := strings.TrimSpace(req.Label)
		if label != "" && label != sp.HerbariumLabel {
			if _, err := tx.SpecimenByLabel(ctx, sp.HerbariumID, label); err == nil {
				return fmt.Errorf("%w: %s", ErrLabelTaken, label)
			} else if !errors.Is(err, store.ErrNotFound) {
				return err
			}
			sp.HerbariumLabel = label
		}
		if req.When != nil {
			sp.When = *req.When
		}
		if req.Notes != "" {
			sp.Notes = req.Notes
		}
		return tx.UpdateSpecimen(ctx, *sp)
	})
	if err != nil {
		return nil, err
	}
	return sp, nil
}

// ByHerbarium lists the specimens of a named herbarium ordered by label.
func (s *Service) ByHerbarium(ctx context.Context, herbariumName string) ([]types.Specimen, error) {
	h, err := s.store.HerbariumByName(ctx, herbariumName)
	if err != nil {
		return nil, err
	}
	return s.store.SpecimensByHerbarium(ctx, h.ID)
}

// ByObservation lists the specimens taken from an observation.
func (s *Service) ByObservation(ctx context.Context, observationID int64) ([]types.Specimen, error) {
	if _, err := s.store.ObservationByID(ctx, observationID); err != nil {
		return nil, err
	}
	return s.store.SpecimensByObservation(ctx, observationID)
}
