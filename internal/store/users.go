// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pdiddy/mycolist/pkg/types"
)

const userColumns = `id, login, contribution, created_at`

func scanUser(row scanner) (types.User, error) {
	var (
		u       types.User
		created string
	)
	if err := row.Scan(&u.ID, &u.Login, &u.Contribution, &created); err != nil {
		return types.User{}, err
	}
	u.CreatedAt = parseTime(created)
	return u, nil
}

// EnsureUser returns the user with login, creating it when missing.
func (q *Queries) EnsureUser(ctx context.Context, login string) (types.User, error) {
	if login == "" {
		return types.User{}, fmt.Errorf("ensuring user: empty login")
	}
	if _, err := q.exec(ctx,
		`INSERT INTO users (login, contribution, created_at) VALUES (?, 0, ?)
		ON CONFLICT (login) DO NOTHING`,
		login, formatTime(time.Now()),
	); err != nil {
		return types.User{}, fmt.Errorf("creating user %q: %w", login, err)
	}
	u, err := q.UserByLogin(ctx, login)
	if err != nil {
		return types.User{}, err
	}
	return *u, nil
}

// UserByLogin looks a user up by login.
func (q *Queries) UserByLogin(ctx context.Context, login string) (*types.User, error) {
	u, err := scanUser(q.queryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE login = ?`, login))
	if err != nil {
		return nil, notFound(err, "user", login)
	}
	return &u, nil
}

// UserByID looks a user up by ID.
func (q *Queries) UserByID(ctx context.Context, id int64) (*types.User, error) {
	u, err := scanUser(q.queryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "user", id)
	}
	return &u, nil
}

// AddContribution adds delta to the user's contribution score.
func (q *Queries) AddContribution(ctx context.Context, userID int64, delta int) error {
	if delta == 0 {
		return nil
	}
	res, err := q.exec(ctx,
		`UPDATE users SET contribution = contribution + ? WHERE id = ?`, delta, userID)
	if err != nil {
		return fmt.Errorf("updating contribution of user %d: %w", userID, err)
	}
	return requireRow(res, "user", userID)
}
