// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package lists

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/pdiddy/mycolist/internal/store"
	"github.com/pdiddy/mycolist/pkg/types"
)

// View is a species list with its entries in position order.
type View struct {
	List    types.SpeciesList `json:"list" yaml:"list"`
	Entries []types.ListEntry `json:"entries" yaml:"entries"`
	Log     []types.LogEntry  `json:"log,omitempty" yaml:"log,omitempty"`
}

// Show returns a list, its entries and its activity log.
func (s *Service) Show(ctx context.Context, listID int64) (*View, error) {
	l, err := s.store.ListByID(ctx, listID)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.ListEntries(ctx, listID)
	if err != nil {
		return nil, err
	}
	log, err := s.store.Log(ctx, listTarget(listID))
	if err != nil {
		return nil, err
	}
	return &View{List: *l, Entries: entries, Log: log}, nil
}

// AddObservation appends an existing observation to a list owned by
// userID and returns its position.
func (s *Service) AddObservation(ctx context.Context, userID, listID, observationID int64) (int, error) {
	var pos int
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		if _, err := ownedList(ctx, tx.Queries, listID, userID); err != nil {
			return err
		}
		if _, err := tx.ObservationByID(ctx, observationID); err != nil {
			return err
		}
		var err error
		if pos, err = tx.AppendToList(ctx, listID, observationID); err != nil {
			return err
		}
		if err := tx.TouchList(ctx, listID); err != nil {
			return err
		}
		return tx.AppendLog(ctx, listTarget(listID), types.LogObservationAdded,
			map[string]string{"observation": strconv.FormatInt(observationID, 10)})
	})
	if err != nil {
		return 0, classify(err)
	}
	s.logger.Info("observation added", zap.Int64("list", listID), zap.Int64("observation", observationID), zap.Int("position", pos))
	return pos, nil
}

// RemoveObservation takes an observation off a list owned by userID. The
// observation itself remains.
func (s *Service) RemoveObservation(ctx context.Context, userID, listID, observationID int64) error {
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		if _, err := ownedList(ctx, tx.Queries, listID, userID); err != nil {
			return err
		}
		removed, err := tx.RemoveFromList(ctx, listID, observationID)
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("observation %d on species list %d: %w", observationID, listID, store.ErrNotFound)
		}
		if err := tx.TouchList(ctx, listID); err != nil {
			return err
		}
		return tx.AppendLog(ctx, listTarget(listID), types.LogObservationRemoved,
			map[string]string{"observation": strconv.FormatInt(observationID, 10)})
	})
	if err != nil {
		return classify(err)
	}
	s.logger.Info("observation removed", zap.Int64("list", listID), zap.Int64("observation", observationID))
	return nil
}

// Delete removes a list owned by userID. Its observations and its activity
// log remain; the log gains a final destroyed line.
func (s *Service) Delete(ctx context.Context, userID, listID int64) error {
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		l, err := ownedList(ctx, tx.Queries, listID, userID)
		if err != nil {
			return err
		}
		if err := tx.AppendLog(ctx, listTarget(listID), types.LogListDestroyed,
			map[string]string{"title": l.Title}); err != nil {
			return err
		}
		return tx.DeleteList(ctx, listID)
	})
	if err != nil {
		return classify(err)
	}
	s.logger.Info("species list deleted", zap.Int64("list", listID))
	return nil
}
