// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pdiddy/mycolist/pkg/types"
)

const nameColumns = `id, text_name, search_name, author, name_rank, deprecated, synonym_group_id, created_by, created_at`

func scanName(row scanner) (types.Name, error) {
	var (
		n       types.Name
		rank    string
		created string
	)
	if err := row.Scan(&n.ID, &n.TextName, &n.SearchName, &n.Author, &rank,
		&n.Deprecated, &n.SynonymGroupID, &n.CreatedBy, &created); err != nil {
		return types.Name{}, err
	}
	n.Rank = types.Rank(rank)
	n.CreatedAt = parseTime(created)
	return n, nil
}

func (q *Queries) queryNames(ctx context.Context, query string, args ...any) ([]types.Name, error) {
	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying names: %w", err)
	}
	defer rows.Close()

	var names []types.Name
	for rows.Next() {
		n, err := scanName(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning name: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// NameByID returns the catalog entry with the given ID.
func (q *Queries) NameByID(ctx context.Context, id int64) (*types.Name, error) {
	n, err := scanName(q.queryRow(ctx,
		`SELECT `+nameColumns+` FROM names WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "name", id)
	}
	return &n, nil
}

// NamesByText returns every entry whose text name (no author) equals text,
// ordered by ID.
func (q *Queries) NamesByText(ctx context.Context, text string) ([]types.Name, error) {
	return q.queryNames(ctx,
		`SELECT `+nameColumns+` FROM names WHERE text_name = ? ORDER BY id`, text)
}

// NamesBySearchName returns the entry whose search name equals search. The
// result has at most one element since search names are unique.
func (q *Queries) NamesBySearchName(ctx context.Context, search string) ([]types.Name, error) {
	return q.queryNames(ctx,
		`SELECT `+nameColumns+` FROM names WHERE search_name = ? ORDER BY id`, search)
}

// PreferredSynonym returns the non-deprecated member of a synonym group, or
// nil when the group has none.
func (q *Queries) PreferredSynonym(ctx context.Context, groupID int64) (*types.Name, error) {
	if groupID == 0 {
		return nil, nil
	}
	n, err := scanName(q.queryRow(ctx,
		`SELECT `+nameColumns+` FROM names
		WHERE synonym_group_id = ? AND deprecated = ?
		ORDER BY id LIMIT 1`, groupID, false))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up preferred synonym of group %d: %w", groupID, err)
	}
	return &n, nil
}

// Synonyms returns every member of a synonym group ordered by ID.
func (q *Queries) Synonyms(ctx context.Context, groupID int64) ([]types.Name, error) {
	if groupID == 0 {
		return nil, nil
	}
	return q.queryNames(ctx,
		`SELECT `+nameColumns+` FROM names WHERE synonym_group_id = ? ORDER BY id`, groupID)
}

// CreateName inserts a catalog entry and returns it with its ID. A duplicate
// search name returns ErrNameConflict.
func (q *Queries) CreateName(ctx context.Context, n types.Name) (types.Name, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	err := q.queryRow(ctx,
		`INSERT INTO names (text_name, search_name, author, name_rank, deprecated, synonym_group_id, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (search_name) DO NOTHING
		RETURNING id`,
		n.TextName, n.SearchName, n.Author, string(n.Rank), n.Deprecated,
		n.SynonymGroupID, n.CreatedBy, formatTime(n.CreatedAt),
	).Scan(&n.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Name{}, fmt.Errorf("creating name %q: %w", n.SearchName, ErrNameConflict)
	}
	if err != nil {
		return types.Name{}, fmt.Errorf("creating name %q: %w", n.SearchName, err)
	}
	return n, nil
}

// SearchNames returns up to limit entries whose search name contains
// pattern, ordered by text name.
func (q *Queries) SearchNames(ctx context.Context, pattern string, limit int) ([]types.Name, error) {
	if limit <= 0 {
		limit = 50
	}
	return q.queryNames(ctx,
		`SELECT `+nameColumns+` FROM names
		WHERE search_name LIKE ?
		ORDER BY text_name, id LIMIT ?`, "%"+pattern+"%", limit)
}

// Deprecate marks a name deprecated. When it was the preferred member of a
// synonym group, the group is left without a preferred name until a curator
// calls SetPreferred.
func (q *Queries) Deprecate(ctx context.Context, id int64) error {
	res, err := q.exec(ctx, `UPDATE names SET deprecated = ? WHERE id = ?`, true, id)
	if err != nil {
		return fmt.Errorf("deprecating name %d: %w", id, err)
	}
	return requireRow(res, "name", id)
}

// Synonymize merges the synonym groups of deprecatedID and preferredID,
// deprecates every member except preferredID, and leaves preferredID as the
// group's single non-deprecated entry. It returns the group ID.
func (q *Queries) Synonymize(ctx context.Context, deprecatedID, preferredID int64) (int64, error) {
	if deprecatedID == preferredID {
		return 0, fmt.Errorf("synonymizing name %d with itself", deprecatedID)
	}
	dep, err := q.NameByID(ctx, deprecatedID)
	if err != nil {
		return 0, err
	}
	pref, err := q.NameByID(ctx, preferredID)
	if err != nil {
		return 0, err
	}

	group := pref.SynonymGroupID
	if group == 0 {
		group = dep.SynonymGroupID
	}
	if group == 0 {
		group = pref.ID
	}

	if _, err := q.exec(ctx,
		`UPDATE names SET synonym_group_id = ?
		WHERE id IN (?, ?) OR (synonym_group_id <> 0 AND synonym_group_id IN (?, ?))`,
		group, dep.ID, pref.ID, dep.SynonymGroupID, pref.SynonymGroupID,
	); err != nil {
		return 0, fmt.Errorf("merging synonym groups: %w", err)
	}
	if err := q.SetPreferred(ctx, pref.ID); err != nil {
		return 0, err
	}
	return group, nil
}

// SetPreferred makes id the single non-deprecated entry of its synonym
// group. A name without a group is simply undeprecated.
func (q *Queries) SetPreferred(ctx context.Context, id int64) error {
	n, err := q.NameByID(ctx, id)
	if err != nil {
		return err
	}
	if n.SynonymGroupID != 0 {
		if _, err := q.exec(ctx,
			`UPDATE names SET deprecated = ? WHERE synonym_group_id = ? AND id <> ?`,
			true, n.SynonymGroupID, id,
		); err != nil {
			return fmt.Errorf("deprecating synonyms of %d: %w", id, err)
		}
	}
	if _, err := q.exec(ctx, `UPDATE names SET deprecated = ? WHERE id = ?`, false, id); err != nil {
		return fmt.Errorf("approving name %d: %w", id, err)
	}
	return nil
}

// CountNames returns the catalog size.
func (q *Queries) CountNames(ctx context.Context) (int, error) {
	var n int
	if err := q.queryRow(ctx, `SELECT COUNT(*) FROM names`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting names: %w", err)
	}
	return n, nil
}

func requireRow(res sql.Result, what string, id any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking %s %v: %w", what, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %v: %w", what, id, ErrNotFound)
	}
	return nil
}
