// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pdiddy/mycolist/pkg/types"
)

const herbariumColumns = `id, name, email, description, created_at`

func scanHerbarium(row scanner) (types.Herbarium, error) {
	var (
		h       types.Herbarium
		created string
	)
	if err := row.Scan(&h.ID, &h.Name, &h.Email, &h.Description, &created); err != nil {
		return types.Herbarium{}, err
	}
	h.CreatedAt = parseTime(created)
	return h, nil
}

// HerbariumByName looks a herbarium up by its exact name.
func (q *Queries) HerbariumByName(ctx context.Context, name string) (*types.Herbarium, error) {
	h, err := scanHerbarium(q.queryRow(ctx,
		`SELECT `+herbariumColumns+` FROM herbaria WHERE name = ?`, name))
	if err != nil {
		return nil, notFound(err, "herbarium", name)
	}
	return &h, nil
}

// HerbariumByID looks a herbarium up by ID.
func (q *Queries) HerbariumByID(ctx context.Context, id int64) (*types.Herbarium, error) {
	h, err := scanHerbarium(q.queryRow(ctx,
		`SELECT `+herbariumColumns+` FROM herbaria WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err, "herbarium", id)
	}
	return &h, nil
}

// CreateHerbarium inserts a herbarium with curatorID as its first curator.
func (q *Queries) CreateHerbarium(ctx context.Context, h types.Herbarium, curatorID int64) (types.Herbarium, error) {
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	if err := q.queryRow(ctx,
		`INSERT INTO herbaria (name, email, description, created_at) VALUES (?, ?, ?, ?) RETURNING id`,
		h.Name, h.Email, h.Description, formatTime(h.CreatedAt),
	).Scan(&h.ID); err != nil {
		return types.Herbarium{}, fmt.Errorf("creating herbarium %q: %w", h.Name, err)
	}
	if curatorID != 0 {
		if _, err := q.exec(ctx,
			`INSERT INTO herbarium_curators (herbarium_id, user_id) VALUES (?, ?)`,
			h.ID, curatorID,
		); err != nil {
			return types.Herbarium{}, fmt.Errorf("adding curator to herbarium %q: %w", h.Name, err)
		}
	}
	return h, nil
}

// IsCurator reports whether userID curates the herbarium.
func (q *Queries) IsCurator(ctx context.Context, herbariumID, userID int64) (bool, error) {
	var n int
	if err := q.queryRow(ctx,
		`SELECT COUNT(*) FROM herbarium_curators WHERE herbarium_id = ? AND user_id = ?`,
		herbariumID, userID,
	).Scan(&n); err != nil {
		return false, fmt.Errorf("checking curator of herbarium %d: %w", herbariumID, err)
	}
	return n > 0, nil
}

const specimenColumns = `s.id, s.herbarium_id, s.herbarium_label, s.user_id, s.when_date, s.notes`

func scanSpecimen(row scanner) (types.Specimen, error) {
	var (
		sp   types.Specimen
		when string
	)
	if err := row.Scan(&sp.ID, &sp.HerbariumID, &sp.HerbariumLabel, &sp.UserID, &when, &sp.Notes); err != nil {
		return types.Specimen{}, err
	}
	sp.When = parseTime(when)
	return sp, nil
}

// SpecimenByID returns a specimen with its linked observation IDs.
func (q *Queries) SpecimenByID(ctx context.Context, id int64) (*types.Specimen, error) {
	sp, err := scanSpecimen(q.queryRow(ctx,
		`SELECT `+specimenColumns+` FROM specimens s WHERE s.id = ?`, id))
	if err != nil {
		return nil, notFound(err, "specimen", id)
	}
	if sp.ObservationIDs, err = q.specimenObservations(ctx, sp.ID); err != nil {
		return nil, err
	}
	return &sp, nil
}

// SpecimenByLabel returns the specimen a herbarium holds under label.
func (q *Queries) SpecimenByLabel(ctx context.Context, herbariumID int64, label string) (*types.Specimen, error) {
	sp, err := scanSpecimen(q.queryRow(ctx,
		`SELECT `+specimenColumns+` FROM specimens s WHERE s.herbarium_id = ? AND s.herbarium_label = ?`,
		herbariumID, label))
	if err != nil {
		return nil, notFound(err, "specimen", label)
	}
	if sp.ObservationIDs, err = q.specimenObservations(ctx, sp.ID); err != nil {
		return nil, err
	}
	return &sp, nil
}

// CreateSpecimen inserts a specimen and links its observations.
func (q *Queries) CreateSpecimen(ctx context.Context, sp types.Specimen) (types.Specimen, error) {
	if err := q.queryRow(ctx,
		`INSERT INTO specimens (herbarium_id, herbarium_label, user_id, when_date, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		sp.HerbariumID, sp.HerbariumLabel, sp.UserID, formatTime(sp.When), sp.Notes,
		formatTime(time.Now()),
	).Scan(&sp.ID); err != nil {
		return types.Specimen{}, fmt.Errorf("creating specimen %q: %w", sp.HerbariumLabel, err)
	}
	for _, obsID := range sp.ObservationIDs {
		if err := q.LinkSpecimen(ctx, sp.ID, obsID); err != nil {
			return types.Specimen{}, err
		}
	}
	return sp, nil
}

// UpdateSpecimen saves the herbarium, label, date and notes of a specimen.
func (q *Queries) UpdateSpecimen(ctx context.Context, sp types.Specimen) error {
	res, err := q.exec(ctx,
		`UPDATE specimens SET herbarium_id = ?, herbarium_label = ?, when_date = ?, notes = ?
		WHERE id = ?`,
		sp.HerbariumID, sp.HerbariumLabel, formatTime(sp.When), sp.Notes, sp.ID)
	if err != nil {
		return fmt.Errorf("updating specimen %d: %w", sp.ID, err)
	}
	return requireRow(res, "specimen", sp.ID)
}

// LinkSpecimen attaches an observation to a specimen.
func (q *Queries) LinkSpecimen(ctx context.Context, specimenID, observationID int64) error {
	if _, err := q.exec(ctx,
		`INSERT INTO specimen_observations (specimen_id, observation_id) VALUES (?, ?)
		ON CONFLICT (specimen_id, observation_id) DO NOTHING`,
		specimenID, observationID,
	); err != nil {
		return fmt.Errorf("linking specimen %d to observation %d: %w", specimenID, observationID, err)
	}
	return nil
}

// SpecimensByHerbarium lists a herbarium's specimens ordered by label.
func (q *Queries) SpecimensByHerbarium(ctx context.Context, herbariumID int64) ([]types.Specimen, error) {
	return q.querySpecimens(ctx,
		`SELECT `+specimenColumns+` FROM specimens s WHERE s.herbarium_id = ? ORDER BY s.herbarium_label`,
		herbariumID)
}

// SpecimensByObservation lists the specimens linked to an observation.
func (q *Queries) SpecimensByObservation(ctx context.Context, observationID int64) ([]types.Specimen, error) {
	return q.querySpecimens(ctx,
		`SELECT `+specimenColumns+` FROM specimens s
		JOIN specimen_observations so ON so.specimen_id = s.id
		WHERE so.observation_id = ? ORDER BY s.id`,
		observationID)
}

func (q *Queries) querySpecimens(ctx context.Context, query string, args ...any) ([]types.Specimen, error) {
	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying specimens: %w", err)
	}

	var specimens []types.Specimen
	for rows.Next() {
		sp, err := scanSpecimen(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning specimen: %w", err)
		}
		specimens = append(specimens, sp)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Linked observations are read after the cursor closes; SQLite
	// transactions hold a single connection.
	for i := range specimens {
		if specimens[i].ObservationIDs, err = q.specimenObservations(ctx, specimens[i].ID); err != nil {
			return nil, err
		}
	}
	return specimens, nil
}

func (q *Queries) specimenObservations(ctx context.Context, specimenID int64) ([]int64, error) {
	rows, err := q.query(ctx,
		`SELECT observation_id FROM specimen_observations WHERE specimen_id = ? ORDER BY observation_id`,
		specimenID)
	if err != nil {
		return nil, fmt.Errorf("querying observations of specimen %d: %w", specimenID, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning observation id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
