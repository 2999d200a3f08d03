// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"fmt"

	"github.com/pdiddy/mycolist/pkg/types"
)

func scanInterest(row scanner) (types.Interest, error) {
	var (
		in         types.Interest
		targetType string
	)
	if err := row.Scan(&in.ID, &in.UserID, &targetType, &in.Target.ID, &in.State); err != nil {
		return types.Interest{}, err
	}
	in.Target.Type = types.TargetType(targetType)
	return in, nil
}

// InterestFor returns the interest of a user in a target.
func (q *Queries) InterestFor(ctx context.Context, userID int64, target types.Target) (*types.Interest, error) {
	in, err := scanInterest(q.queryRow(ctx,
		`SELECT id, user_id, target_type, target_id, state FROM interests
		WHERE user_id = ? AND target_type = ? AND target_id = ?`,
		userID, string(target.Type), target.ID))
	if err != nil {
		return nil, notFound(err, "interest in", target)
	}
	return &in, nil
}

// SaveInterest creates or updates the interest of a user in a target.
func (q *Queries) SaveInterest(ctx context.Context, in types.Interest) (types.Interest, error) {
	err := q.queryRow(ctx,
		`INSERT INTO interests (user_id, target_type, target_id, state) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, target_type, target_id) DO UPDATE SET state = excluded.state
		RETURNING id`,
		in.UserID, string(in.Target.Type), in.Target.ID, in.State,
	).Scan(&in.ID)
	if err != nil {
		return types.Interest{}, fmt.Errorf("saving interest in %s %d: %w", in.Target.Type, in.Target.ID, err)
	}
	return in, nil
}

// DeleteInterest removes an interest.
func (q *Queries) DeleteInterest(ctx context.Context, id int64) error {
	res, err := q.exec(ctx, `DELETE FROM interests WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting interest %d: %w", id, err)
	}
	return requireRow(res, "interest", id)
}

// InterestsOf returns every interest of a user ordered by ID.
func (q *Queries) InterestsOf(ctx context.Context, userID int64) ([]types.Interest, error) {
	rows, err := q.query(ctx,
		`SELECT id, user_id, target_type, target_id, state FROM interests
		WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying interests: %w", err)
	}
	defer rows.Close()

	var interests []types.Interest
	for rows.Next() {
		in, err := scanInterest(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning interest: %w", err)
		}
		interests = append(interests, in)
	}
	return interests, rows.Err()
}

// TargetName returns a display name for a target: the search name of a
// name, the consensus name of an observation, or the title of a list.
func (q *Queries) TargetName(ctx context.Context, target types.Target) (string, error) {
	var query string
	switch target.Type {
	case types.TargetName:
		query = `SELECT search_name FROM names WHERE id = ?`
	case types.TargetObservation:
		query = `SELECT n.search_name FROM observations o JOIN names n ON n.id = o.name_id WHERE o.id = ?`
	case types.TargetSpeciesList:
		query = `SELECT title FROM species_lists WHERE id = ?`
	default:
		return "", fmt.Errorf("target type %q: %w", target.Type, ErrNotFound)
	}

	var name string
	if err := q.queryRow(ctx, query, target.ID).Scan(&name); err != nil {
		return "", notFound(err, string(target.Type), target.ID)
	}
	return name, nil
}
