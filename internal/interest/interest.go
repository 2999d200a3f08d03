// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package interest tracks which objects a user wants to hear about.
//
// An interest is on (track), off (ignore), or absent. SetInterest moves
// between the three and reports what changed in a sentence fit for the
// user.
package interest

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/pdiddy/mycolist/internal/store"
	"github.com/pdiddy/mycolist/pkg/types"
)

var (
	// ErrUserMismatch reports a request made on behalf of another user.
	ErrUserMismatch = errors.New("interest belongs to another user")

	// ErrUnknownTarget reports an interest in an object that does not exist.
	ErrUnknownTarget = errors.New("unknown interest target")
)

// State is the requested interest: positive turns it on, negative turns it
// off, zero deletes it.
type State int

const (
	StateOff    State = -1
	StateDelete State = 0
	StateOn     State = 1
)

// Outcome names what SetInterest did.
type Outcome string

const (
	AlreadyDeleted Outcome = "already_deleted"
	DeletedWasOn   Outcome = "deleted_was_on"
	DeletedWasOff  Outcome = "deleted_was_off"
	AlreadyOn      Outcome = "already_on"
	AlreadyOff     Outcome = "already_off"
	TurnedOn       Outcome = "on"
	TurnedOff      Outcome = "off"
)

var messages = map[Outcome]string{
	AlreadyDeleted: "You were not tracking or ignoring %s.",
	DeletedWasOn:   "You are no longer tracking %s.",
	DeletedWasOff:  "You are no longer ignoring %s.",
	AlreadyOn:      "You are already tracking %s.",
	AlreadyOff:     "You are already ignoring %s.",
	TurnedOn:       "You are now tracking %s.",
	TurnedOff:      "You are now ignoring %s.",
}

// Request changes the interest of UserID in Target. OnBehalfOf, when set,
// must equal UserID; it carries the user named in a notification link.
type Request struct {
	UserID     int64
	OnBehalfOf int64
	Target     types.Target
	State      State
}

// Result reports a SetInterest call.
type Result struct {
	Outcome Outcome
	Message string

	// Interest is the saved interest, nil after a delete.
	Interest *types.Interest
}

// Service manages interests.
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

// SetInterest applies req. Deleting an interest in a missing object is
// allowed; turning one on or off is not.
func (s *Service) SetInterest(ctx context.Context, req Request) (*Result, error) {
	if req.OnBehalfOf != 0 && req.OnBehalfOf != req.UserID {
		return nil, ErrUserMismatch
	}

	var result *Result
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		name, err := tx.TargetName(ctx, req.Target)
		switch {
		case errors.Is(err, store.ErrNotFound):
			if req.State != StateDelete {
				return fmt.Errorf("%w: %s %d", ErrUnknownTarget, req.Target.Type, req.Target.ID)
			}
			name = "--"
		case err != nil:
			return err
		}

		current, err := tx.InterestFor(ctx, req.UserID, req.Target)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}

		result, err = apply(ctx, tx, req, current)
		if err != nil {
			return err
		}
		result.Message = fmt.Sprintf(messages[result.Outcome], name)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("interest set",
		zap.Int64("user", req.UserID),
		zap.String("target_type", string(req.Target.Type)),
		zap.Int64("target_id", req.Target.ID),
		zap.String("outcome", string(result.Outcome)),
	)
	return result, nil
}

func apply(ctx context.Context, tx *store.Tx, req Request, current *types.Interest) (*Result, error) {
	if req.State == StateDelete {
		switch {
		case current == nil:
			return &Result{Outcome: AlreadyDeleted}, nil
		case current.State:
			return &Result{Outcome: DeletedWasOn}, tx.DeleteInterest(ctx, current.ID)
		default:
			return &Result{Outcome: DeletedWasOff}, tx.DeleteInterest(ctx, current.ID)
		}
	}

	on := req.State > 0
	if current != nil && current.State == on {
		if on {
			return &Result{Outcome: AlreadyOn, Interest: current}, nil
		}
		return &Result{Outcome: AlreadyOff, Interest: current}, nil
	}

	saved, err := tx.SaveInterest(ctx, types.Interest{UserID: req.UserID, Target: req.Target, State: on})
	if err != nil {
		return nil, err
	}
	if on {
		return &Result{Outcome: TurnedOn, Interest: &saved}, nil
	}
	return &Result{Outcome: TurnedOff, Interest: &saved}, nil
}

// List returns the interests of a user sorted by target type, then target
// name. Interests in objects that no longer exist sort first in their type
// with an empty name.
func (s *Service) List(ctx context.Context, userID int64) ([]types.Interest, error) {
	interests, err := s.store.InterestsOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range interests {
		name, err := s.store.TargetName(ctx, interests[i].Target)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		interests[i].TargetName = name
	}
	slices.SortStableFunc(interests, func(a, b types.Interest) int {
		return cmp.Or(
			cmp.Compare(a.Target.Type, b.Target.Type),
			cmp.Compare(a.TargetName, b.TargetName),
		)
	})
	return interests, nil
}
