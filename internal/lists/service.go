// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package lists builds and edits species lists from submitted name lines.
//
// A submission is resolved and materialized inside one store transaction.
// When any line needs a decision the transaction is rolled back and the
// caller receives a *resolve.RejectedError carrying every pending line, so
// the submitter can answer all prompts and resubmit. A name created by a
// concurrent submission between resolution and creation causes one retry.
package lists

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdiddy/mycolist/internal/materialize"
	"github.com/pdiddy/mycolist/internal/metrics"
	"github.com/pdiddy/mycolist/internal/resolve"
	"github.com/pdiddy/mycolist/internal/store"
	"github.com/pdiddy/mycolist/pkg/types"
)

var (
	// ErrCatalogConflict reports a submission whose new names kept
	// colliding with names created concurrently.
	ErrCatalogConflict = errors.New("catalog changed during submission")

	// ErrPersistence reports a storage failure. Nothing was committed.
	ErrPersistence = errors.New("persistence failure")

	// ErrPermission reports a change to a list by someone other than its
	// owner.
	ErrPermission = errors.New("permission denied")
)

const (
	opCreate = "create"
	opEdit   = "edit"
)

// CreateRequest asks for a new species list built from a submission.
type CreateRequest struct {
	UserID int64
	Title  string
	When   time.Time
	Where  string
	Notes  string

	Submission resolve.Submission

	// Member holds the observation fields shared by every entry; the list's
	// date and place are used when Member leaves them unset.
	Member materialize.Member

	// Overrides replace Member fields for single lines, keyed by the line
	// index in the submission.
	Overrides map[int]materialize.Member
}

// EditRequest changes a list's details and appends a submission to it.
// Empty fields keep the list's current values.
type EditRequest struct {
	ListID int64
	UserID int64
	Title  string
	When   *time.Time
	Where  string
	Notes  string

	Submission resolve.Submission
	Member     materialize.Member
	Overrides  map[int]materialize.Member
}

// Report describes an accepted submission.
type Report struct {
	SubmissionID string
	List         types.SpeciesList
	NewList      bool
	Result       *materialize.Result

	// Contribution is the score credited to the submitter.
	Contribution int

	// Retried is set when a name conflict forced a second attempt.
	Retried bool
}

// Service composes resolution and materialization into list operations.
type Service struct {
	store        *store.Store
	score        types.ScoreConfig
	materializer *materialize.Materializer
	logger       *zap.Logger
	metrics      *metrics.ListMetrics

	// afterResolve runs inside the transaction between resolution and
	// materialization. Tests use it to simulate concurrent catalog writes.
	afterResolve func(ctx context.Context, tx *store.Tx) error
}

// NewService returns a Service over s. A nil logger disables logging and a
// nil metrics records nothing.
func NewService(s *store.Store, cfg types.ListsConfig, logger *zap.Logger, m *metrics.ListMetrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	score := cfg.Score
	if score == (types.ScoreConfig{}) {
		score = types.DefaultScoreConfig()
	}
	return &Service{
		store:        s,
		score:        score,
		materializer: materialize.New(cfg, logger),
		logger:       logger,
		metrics:      m,
	}
}

// plan is one submission against one list, independent of whether the
// list is new.
type plan struct {
	operation  string
	userID     int64
	submission resolve.Submission
	member     materialize.Member
	overrides  map[int]materialize.Member

	// prepare creates or updates the list inside the transaction and
	// reports whether it is new.
	prepare func(ctx context.Context, tx *store.Tx) (types.SpeciesList, bool, error)
}

// Create builds a new species list from req. It returns a
// *resolve.RejectedError when any line needs a decision.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Report, error) {
	if req.Title == "" {
		return nil, fmt.Errorf("species list title is required")
	}
	when := req.When
	if when.IsZero() {
		when = time.Now().UTC().Truncate(24 * time.Hour)
	}

	return s.submit(ctx, plan{
		operation:  opCreate,
		userID:     req.UserID,
		submission: req.Submission,
		member:     req.Member,
		overrides:  req.Overrides,
		prepare: func(ctx context.Context, tx *store.Tx) (types.SpeciesList, bool, error) {
			l, err := tx.CreateList(ctx, types.SpeciesList{
				Title:  req.Title,
				When:   when,
				Where:  req.Where,
				Notes:  req.Notes,
				UserID: req.UserID,
			})
			return l, true, err
		},
	})
}

// Edit updates a list owned by req.UserID and appends the submission's
// entries after the existing ones.
func (s *Service) Edit(ctx context.Context, req EditRequest) (*Report, error) {
	return s.submit(ctx, plan{
		operation:  opEdit,
		userID:     req.UserID,
		submission: req.Submission,
		member:     req.Member,
		overrides:  req.Overrides,
		prepare: func(ctx context.Context, tx *store.Tx) (types.SpeciesList, bool, error) {
			l, err := ownedList(ctx, tx.Queries, req.ListID, req.UserID)
			if err != nil {
				return types.SpeciesList{}, false, err
			}
			changed := false
			if req.Title != "" && req.Title != l.Title {
				l.Title, changed = req.Title, true
			}
			if req.When != nil && !req.When.Equal(l.When) {
				l.When, changed = *req.When, true
			}
			if req.Where != "" && req.Where != l.Where {
				l.Where, changed = req.Where, true
			}
			if req.Notes != "" && req.Notes != l.Notes {
				l.Notes, changed = req.Notes, true
			}
			if changed {
				if err := tx.UpdateList(ctx, *l); err != nil {
					return types.SpeciesList{}, false, err
				}
			}
			return *l, false, nil
		},
	})
}

func (s *Service) submit(ctx context.Context, p plan) (*Report, error) {
	start := time.Now()
	if p.submission.ID == "" {
		p.submission.ID = uuid.NewString()
	}
	log := s.logger.With(zap.String("submission", p.submission.ID), zap.String("operation", p.operation))

	if err := validateMembers(p); err != nil {
		s.metrics.RecordSubmission(p.operation, metrics.OutcomeFailed, time.Since(start))
		return nil, err
	}

	report, err := s.attempt(ctx, p)
	if errors.Is(err, store.ErrNameConflict) {
		log.Warn("name created concurrently, retrying submission", zap.Error(err))
		s.metrics.RecordConflictRetry()
		report, err = s.attempt(ctx, p)
		if errors.Is(err, store.ErrNameConflict) {
			err = fmt.Errorf("%w: %w", ErrCatalogConflict, err)
		}
		if report != nil {
			report.Retried = true
		}
	}

	var rejected *resolve.RejectedError
	switch {
	case errors.As(err, &rejected):
		s.metrics.RecordSubmission(p.operation, metrics.OutcomeRejected, time.Since(start))
		for reason, n := range countPending(rejected.Pending) {
			s.metrics.RecordPending(reason, n)
		}
		log.Info("submission needs decisions", zap.Int("pending", len(rejected.Pending)))
		return nil, err
	case err != nil:
		s.metrics.RecordSubmission(p.operation, metrics.OutcomeFailed, time.Since(start))
		log.Error("submission failed", zap.Error(err))
		return nil, err
	}

	s.metrics.RecordSubmission(p.operation, metrics.OutcomeAccepted, time.Since(start))
	s.metrics.RecordMaterialized(len(report.Result.Observations), len(report.Result.Created), report.Result.Skipped)
	if n, err := s.store.CountNames(ctx); err == nil {
		s.metrics.SetCatalogSize(n)
	}
	log.Info("submission accepted",
		zap.Int64("list", report.List.ID),
		zap.Int("observations", len(report.Result.Observations)),
		zap.Int("names_created", len(report.Result.Created)),
		zap.Int("skipped", report.Result.Skipped),
		zap.Int("contribution", report.Contribution),
	)
	report.SubmissionID = p.submission.ID
	return report, nil
}

// attempt runs the whole submission in one transaction.
func (s *Service) attempt(ctx context.Context, p plan) (*Report, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, persistence(err)
	}
	defer tx.Rollback()

	user, err := tx.UserByID(ctx, p.userID)
	if err != nil {
		return nil, classify(err)
	}

	list, isNew, err := p.prepare(ctx, tx)
	if err != nil {
		return nil, classify(err)
	}

	res, err := resolve.Resolve(ctx, tx, p.submission)
	if err != nil {
		return nil, classify(err)
	}
	if err := res.Err(); err != nil {
		return nil, err
	}

	if s.afterResolve != nil {
		if err := s.afterResolve(ctx, tx); err != nil {
			return nil, classify(err)
		}
	}

	defaults := p.member
	if defaults.When == nil {
		when := list.When
		defaults.When = &when
	}
	if defaults.Where == "" {
		defaults.Where = list.Where
	}
	result, err := s.materializer.Materialize(ctx, tx, res.Entries(), materialize.Metadata{
		UserID:    user.ID,
		ListID:    list.ID,
		Defaults:  defaults,
		Overrides: p.overrides,
	})
	if err != nil {
		return nil, classify(err)
	}

	contribution := len(result.Created)*s.score.NewName + len(result.Observations)*s.score.Observation
	if isNew {
		contribution += s.score.NewList
	}
	if err := tx.AddContribution(ctx, user.ID, contribution); err != nil {
		return nil, persistence(err)
	}

	if err := writeLogs(ctx, tx, user.Login, list, isNew, result); err != nil {
		return nil, persistence(err)
	}
	if !isNew && len(result.Observations) > 0 {
		if err := tx.TouchList(ctx, list.ID); err != nil {
			return nil, persistence(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, persistence(err)
	}
	return &Report{List: list, NewList: isNew, Result: result, Contribution: contribution}, nil
}

func writeLogs(ctx context.Context, tx *store.Tx, login string, list types.SpeciesList, isNew bool, result *materialize.Result) error {
	by := map[string]string{"user": login}
	for _, n := range result.Created {
		if err := tx.AppendLog(ctx, types.Target{Type: types.TargetName, ID: n.ID}, types.LogNameCreated, by); err != nil {
			return err
		}
	}
	for _, o := range result.Observations {
		if err := tx.AppendLog(ctx, types.Target{Type: types.TargetObservation, ID: o.ID}, types.LogObservationCreated, by); err != nil {
			return err
		}
	}
	tag := types.LogListUpdated
	if isNew {
		tag = types.LogListCreated
	}
	return tx.AppendLog(ctx, listTarget(list.ID), tag, by)
}

// validateMembers checks every line's merged member fields before any
// transaction starts.
func validateMembers(p plan) error {
	if err := p.member.Validate(); err != nil {
		return fmt.Errorf("member fields: %w", err)
	}
	for index, over := range p.overrides {
		if err := p.member.Merge(over).Validate(); err != nil {
			return fmt.Errorf("line %d: %w", index+1, err)
		}
	}
	return nil
}

// countPending groups pending lines by metrics reason.
func countPending(pending []resolve.Line) map[string]int {
	counts := make(map[string]int)
	for _, l := range pending {
		counts[pendingKind(l.Outcome)]++
	}
	return counts
}

func pendingKind(o resolve.Outcome) string {
	switch o.(type) {
	case resolve.Ambiguous:
		return metrics.PendingAmbiguous
	case resolve.DeprecatedUnapproved:
		return metrics.PendingDeprecated
	default:
		return metrics.PendingNew
	}
}

// classify passes domain errors through and marks everything else as a
// storage failure.
func classify(err error) error {
	switch {
	case errors.Is(err, store.ErrNameConflict),
		errors.Is(err, store.ErrNotFound),
		errors.Is(err, resolve.ErrInvalidChoices),
		errors.Is(err, ErrPermission):
		return err
	}
	return persistence(err)
}

func persistence(err error) error {
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

func listTarget(id int64) types.Target {
	return types.Target{Type: types.TargetSpeciesList, ID: id}
}

func ownedList(ctx context.Context, q *store.Queries, listID, userID int64) (*types.SpeciesList, error) {
	l, err := q.ListByID(ctx, listID)
	if err != nil {
		return nil, err
	}
	if l.UserID != userID {
		return nil, fmt.Errorf("%w: species list %d belongs to user %d", ErrPermission, listID, l.UserID)
	}
	return l, nil
}
