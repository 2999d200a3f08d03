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

const listColumns = `id, title, when_date, place_name, notes, user_id, created_at, updated_at`

func scanList(row scanner) (types.SpeciesList, error) {
	var (
		l                      types.SpeciesList
		when, created, updated string
	)
	if err := row.Scan(&l.ID, &l.Title, &when, &l.Where, &l.Notes, &l.UserID, &created, &updated); err != nil {
		return types.SpeciesList{}, err
	}
	l.When = parseTime(when)
	l.CreatedAt = parseTime(created)
	l.UpdatedAt = parseTime(updated)
	return l, nil
}

// CreateList inserts a species list and returns it with its ID.
func (q *Queries) CreateList(ctx context.Context, l types.SpeciesList) (types.SpeciesList, error) {
	now := time.Now().UTC()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	l.UpdatedAt = l.CreatedAt
	err := q.queryRow(ctx,
		`INSERT INTO species_lists (title, when_date, place_name, notes, user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		l.Title, formatTime(l.When), l.Where, l.Notes, l.UserID,
		formatTime(l.CreatedAt), formatTime(l.UpdatedAt),
	).Scan(&l.ID)
	if err != nil {
		return types.SpeciesList{}, fmt.Errorf("creating species list %q: %w", l.Title, err)
	}
	return l, nil
}

// ListByID returns a species list.
func (q *Queries) ListByID(ctx context.Context, id int64) (*types.SpeciesList, error) {
	l, err := scanList(q.queryRow(ctx,
		`SELECT `+listColumns+` FROM species_lists WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "species list", id)
	}
	return &l, nil
}

// UpdateList saves the title, date, place and notes of a list and bumps
// its update time.
func (q *Queries) UpdateList(ctx context.Context, l types.SpeciesList) error {
	res, err := q.exec(ctx,
		`UPDATE species_lists SET title = ?, when_date = ?, place_name = ?, notes = ?, updated_at = ?
		WHERE id = ?`,
		l.Title, formatTime(l.When), l.Where, l.Notes, formatTime(time.Now()), l.ID,
	)
	if err != nil {
		return fmt.Errorf("updating species list %d: %w", l.ID, err)
	}
	return requireRow(res, "species list", l.ID)
}

// TouchList bumps the update time of a list.
func (q *Queries) TouchList(ctx context.Context, id int64) error {
	res, err := q.exec(ctx,
		`UPDATE species_lists SET updated_at = ? WHERE id = ?`, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("touching species list %d: %w", id, err)
	}
	return requireRow(res, "species list", id)
}

// DeleteList removes a list and its entries. Observations remain.
func (q *Queries) DeleteList(ctx context.Context, id int64) error {
	if _, err := q.exec(ctx, `DELETE FROM list_entries WHERE list_id = ?`, id); err != nil {
		return fmt.Errorf("deleting entries of species list %d: %w", id, err)
	}
	res, err := q.exec(ctx, `DELETE FROM species_lists WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting species list %d: %w", id, err)
	}
	return requireRow(res, "species list", id)
}

// Lists returns the lists owned by userID, or every list when userID is 0,
// newest first.
func (q *Queries) Lists(ctx context.Context, userID int64) ([]types.SpeciesList, error) {
	query := `SELECT ` + listColumns + ` FROM species_lists`
	var args []any
	if userID != 0 {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY id DESC`

	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying species lists: %w", err)
	}
	defer rows.Close()

	var lists []types.SpeciesList
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning species list: %w", err)
		}
		lists = append(lists, l)
	}
	return lists, rows.Err()
}

const observationColumns = `o.id, o.name_id, o.user_id, o.when_date, o.place_name, o.notes,
	o.lat, o.lng, o.alt, o.is_collection_location, o.specimen, o.created_at, o.updated_at`

type observationRow struct {
	o                      types.Observation
	when, created, updated string
	lat, lng               sql.NullFloat64
	alt                    sql.NullInt64
}

func (r *observationRow) dest() []any {
	return []any{
		&r.o.ID, &r.o.NameID, &r.o.UserID, &r.when, &r.o.Where, &r.o.Notes,
		&r.lat, &r.lng, &r.alt, &r.o.IsCollectionLocation, &r.o.Specimen,
		&r.created, &r.updated,
	}
}

func (r *observationRow) observation() types.Observation {
	o := r.o
	o.When = parseTime(r.when)
	o.CreatedAt = parseTime(r.created)
	o.UpdatedAt = parseTime(r.updated)
	if r.lat.Valid {
		v := r.lat.Float64
		o.Lat = &v
	}
	if r.lng.Valid {
		v := r.lng.Float64
		o.Long = &v
	}
	if r.alt.Valid {
		v := int(r.alt.Int64)
		o.Alt = &v
	}
	return o
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

// CreateObservation inserts an observation and returns it with its ID.
func (q *Queries) CreateObservation(ctx context.Context, o types.Observation) (types.Observation, error) {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	o.UpdatedAt = o.CreatedAt
	err := q.queryRow(ctx,
		`INSERT INTO observations (name_id, user_id, when_date, place_name, notes, lat, lng, alt,
			is_collection_location, specimen, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		o.NameID, o.UserID, formatTime(o.When), o.Where, o.Notes,
		nullFloat(o.Lat), nullFloat(o.Long), nullInt(o.Alt),
		o.IsCollectionLocation, o.Specimen,
		formatTime(o.CreatedAt), formatTime(o.UpdatedAt),
	).Scan(&o.ID)
	if err != nil {
		return types.Observation{}, fmt.Errorf("creating observation of name %d: %w", o.NameID, err)
	}
	return o, nil
}

// ObservationByID returns one observation.
func (q *Queries) ObservationByID(ctx context.Context, id int64) (*types.Observation, error) {
	var r observationRow
	err := q.queryRow(ctx,
		`SELECT `+observationColumns+` FROM observations o WHERE o.id = ?`, id,
	).Scan(r.dest()...)
	if err != nil {
		return nil, notFound(err, "observation", id)
	}
	o := r.observation()
	return &o, nil
}

// SetSpecimen records whether an observation has a specimen.
func (q *Queries) SetSpecimen(ctx context.Context, observationID int64, specimen bool) error {
	res, err := q.exec(ctx,
		`UPDATE observations SET specimen = ?, updated_at = ? WHERE id = ?`,
		specimen, formatTime(time.Now()), observationID)
	if err != nil {
		return fmt.Errorf("updating specimen flag of observation %d: %w", observationID, err)
	}
	return requireRow(res, "observation", observationID)
}

// CreateNaming inserts a naming and returns it with its ID.
func (q *Queries) CreateNaming(ctx context.Context, n types.Naming) (types.Naming, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	err := q.queryRow(ctx,
		`INSERT INTO namings (observation_id, name_id, user_id, created_at)
		VALUES (?, ?, ?, ?) RETURNING id`,
		n.ObservationID, n.NameID, n.UserID, formatTime(n.CreatedAt),
	).Scan(&n.ID)
	if err != nil {
		return types.Naming{}, fmt.Errorf("creating naming for observation %d: %w", n.ObservationID, err)
	}
	return n, nil
}

// CreateVote inserts a vote and returns it with its ID.
func (q *Queries) CreateVote(ctx context.Context, v types.Vote) (types.Vote, error) {
	if v.Value < types.VoteMinimum || v.Value > types.VoteMaximum {
		return types.Vote{}, fmt.Errorf("vote %d outside [%d, %d]", v.Value, types.VoteMinimum, types.VoteMaximum)
	}
	err := q.queryRow(ctx,
		`INSERT INTO votes (naming_id, observation_id, user_id, value)
		VALUES (?, ?, ?, ?) RETURNING id`,
		v.NamingID, v.ObservationID, v.UserID, v.Value,
	).Scan(&v.ID)
	if err != nil {
		return types.Vote{}, fmt.Errorf("creating vote for naming %d: %w", v.NamingID, err)
	}
	return v, nil
}

// NamingsFor returns the namings of an observation ordered by ID.
func (q *Queries) NamingsFor(ctx context.Context, observationID int64) ([]types.Naming, error) {
	rows, err := q.query(ctx,
		`SELECT id, observation_id, name_id, user_id, created_at FROM namings
		WHERE observation_id = ? ORDER BY id`, observationID)
	if err != nil {
		return nil, fmt.Errorf("querying namings: %w", err)
	}
	defer rows.Close()

	var namings []types.Naming
	for rows.Next() {
		var (
			n       types.Naming
			created string
		)
		if err := rows.Scan(&n.ID, &n.ObservationID, &n.NameID, &n.UserID, &created); err != nil {
			return nil, fmt.Errorf("scanning naming: %w", err)
		}
		n.CreatedAt = parseTime(created)
		namings = append(namings, n)
	}
	return namings, rows.Err()
}

// VotesFor returns the votes cast on a naming ordered by ID.
func (q *Queries) VotesFor(ctx context.Context, namingID int64) ([]types.Vote, error) {
	rows, err := q.query(ctx,
		`SELECT id, naming_id, observation_id, user_id, value FROM votes
		WHERE naming_id = ? ORDER BY id`, namingID)
	if err != nil {
		return nil, fmt.Errorf("querying votes: %w", err)
	}
	defer rows.Close()

	var votes []types.Vote
	for rows.Next() {
		var v types.Vote
		if err := rows.Scan(&v.ID, &v.NamingID, &v.ObservationID, &v.UserID, &v.Value); err != nil {
			return nil, fmt.Errorf("scanning vote: %w", err)
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}

// AppendToList adds an observation at the end of a list and returns its
// position. Adding an observation already on the list is a no-op that
// returns its existing position.
func (q *Queries) AppendToList(ctx context.Context, listID, observationID int64) (int, error) {
	var pos int
	err := q.queryRow(ctx,
		`SELECT pos FROM list_entries WHERE list_id = ? AND observation_id = ?`,
		listID, observationID).Scan(&pos)
	if err == nil {
		return pos, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("checking list entry: %w", err)
	}

	if err := q.queryRow(ctx,
		`SELECT COALESCE(MAX(pos), 0) + 1 FROM list_entries WHERE list_id = ?`, listID,
	).Scan(&pos); err != nil {
		return 0, fmt.Errorf("finding next position on list %d: %w", listID, err)
	}
	if _, err := q.exec(ctx,
		`INSERT INTO list_entries (list_id, observation_id, pos) VALUES (?, ?, ?)`,
		listID, observationID, pos,
	); err != nil {
		return 0, fmt.Errorf("adding observation %d to list %d: %w", observationID, listID, err)
	}
	return pos, nil
}

// RemoveFromList takes an observation off a list. It reports whether the
// observation was on the list.
func (q *Queries) RemoveFromList(ctx context.Context, listID, observationID int64) (bool, error) {
	res, err := q.exec(ctx,
		`DELETE FROM list_entries WHERE list_id = ? AND observation_id = ?`, listID, observationID)
	if err != nil {
		return false, fmt.Errorf("removing observation %d from list %d: %w", observationID, listID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking removal: %w", err)
	}
	return n > 0, nil
}

// ListEntries returns the observations of a list in position order, each
// joined with its name.
func (q *Queries) ListEntries(ctx context.Context, listID int64) ([]types.ListEntry, error) {
	rows, err := q.query(ctx,
		`SELECT e.pos, `+observationColumns+`,
			n.id, n.text_name, n.search_name, n.author, n.name_rank, n.deprecated,
			n.synonym_group_id, n.created_by, n.created_at
		FROM list_entries e
		JOIN observations o ON o.id = e.observation_id
		JOIN names n ON n.id = o.name_id
		WHERE e.list_id = ?
		ORDER BY e.pos`, listID)
	if err != nil {
		return nil, fmt.Errorf("querying entries of list %d: %w", listID, err)
	}
	defer rows.Close()

	var entries []types.ListEntry
	for rows.Next() {
		var (
			entry       types.ListEntry
			r           observationRow
			rank        string
			nameCreated string
		)
		n := &entry.Name
		dest := append([]any{&entry.Position}, r.dest()...)
		dest = append(dest, &n.ID, &n.TextName, &n.SearchName, &n.Author, &rank,
			&n.Deprecated, &n.SynonymGroupID, &n.CreatedBy, &nameCreated)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning list entry: %w", err)
		}
		entry.Observation = r.observation()
		n.Rank = types.Rank(rank)
		n.CreatedAt = parseTime(nameCreated)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// ListNameIDs returns the set of name IDs observed on a list.
func (q *Queries) ListNameIDs(ctx context.Context, listID int64) (map[int64]bool, error) {
	rows, err := q.query(ctx,
		`SELECT DISTINCT o.name_id FROM list_entries e
		JOIN observations o ON o.id = e.observation_id
		WHERE e.list_id = ?`, listID)
	if err != nil {
		return nil, fmt.Errorf("querying names on list %d: %w", listID, err)
	}
	defer rows.Close()

	ids := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning name id: %w", err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}
