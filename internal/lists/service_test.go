// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package lists

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/pdiddy/mycolist/internal/materialize"
	"github.com/pdiddy/mycolist/internal/metrics"
	"github.com/pdiddy/mycolist/internal/names"
	"github.com/pdiddy/mycolist/internal/resolve"
	"github.com/pdiddy/mycolist/internal/store"
	"github.com/pdiddy/mycolist/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type env struct {
	store    *store.Store
	svc      *Service
	registry *prometheus.Registry
	user     types.User
}

func newEnv(t *testing.T, cfg types.ListsConfig) *env {
	t.Helper()
	s, err := store.Open(types.DatabaseConfig{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	registry := prometheus.NewRegistry()
	m, err := metrics.NewListMetrics(registry)
	require.NoError(t, err)

	u, err := s.EnsureUser(context.Background(), "rolf")
	require.NoError(t, err)
	return &env{store: s, svc: NewService(s, cfg, zap.NewNop(), m), registry: registry, user: u}
}

func (e *env) name(t *testing.T, text string) types.Name {
	t.Helper()
	expr, err := names.Parse(text)
	require.NoError(t, err)
	n, err := e.store.CreateName(context.Background(), types.Name{
		TextName: expr.TextName(), SearchName: expr.SearchName(), Author: expr.Author, Rank: expr.Rank,
	})
	require.NoError(t, err)
	return n
}

func (e *env) contribution(t *testing.T) int {
	t.Helper()
	u, err := e.store.UserByID(context.Background(), e.user.ID)
	require.NoError(t, err)
	return u.Contribution
}

func (e *env) counter(t *testing.T, name string, labels ...string) float64 {
	t.Helper()
	families, err := e.registry.Gather()
	require.NoError(t, err)
	var total float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	metric:
		for _, m := range f.GetMetric() {
			for i := 0; i+1 < len(labels); i += 2 {
				found := false
				for _, lp := range m.GetLabel() {
					if lp.GetName() == labels[i] && lp.GetValue() == labels[i+1] {
						found = true
					}
				}
				if !found {
					continue metric
				}
			}
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func foray() time.Time {
	return time.Date(2024, 10, 5, 0, 0, 0, 0, time.UTC)
}

func TestCreateAccepted(t *testing.T) {
	e := newEnv(t, types.ListsConfig{})
	ctx := context.Background()
	e.name(t, "Coprinus comatus")
	e.name(t, "Agaricus campestris")

	report, err := e.svc.Create(ctx, CreateRequest{
		UserID: e.user.ID, Title: "Foray", When: foray(), Where: "Point Reyes",
		Submission: resolve.Submission{Lines: []string{"Coprinus comatus", "", "Agaricus  campestris"}},
	})
	require.NoError(t, err)
	assert.True(t, report.NewList)
	assert.NotEmpty(t, report.SubmissionID)
	assert.Len(t, report.Result.Observations, 2)
	assert.Equal(t, 5+2*4, report.Contribution)
	assert.Equal(t, 13, e.contribution(t))

	view, err := e.svc.Show(ctx, report.List.ID)
	require.NoError(t, err)
	assert.Equal(t, "Foray", view.List.Title)
	require.Len(t, view.Entries, 2)
	assert.Equal(t, "Coprinus comatus", view.Entries[0].Name.TextName)
	assert.Equal(t, "Point Reyes", view.Entries[0].Observation.Where)
	assert.Equal(t, foray(), view.Entries[0].Observation.When)
	require.Len(t, view.Log, 1)
	assert.Equal(t, types.LogListCreated, view.Log[0].Tag)
	assert.Equal(t, "rolf", view.Log[0].Args["user"])

	obsLog, err := e.store.Log(ctx, types.Target{Type: types.TargetObservation, ID: view.Entries[1].Observation.ID})
	require.NoError(t, err)
	require.Len(t, obsLog, 1)
	assert.Equal(t, types.LogObservationCreated, obsLog[0].Tag)

	assert.Equal(t, float64(1), e.counter(t, "mycolist_submissions_total", "operation", "create", "outcome", "accepted"))
	assert.Equal(t, float64(2), e.counter(t, "mycolist_observations_created_total"))
}

func TestCreateRejectedLeavesNothing(t *testing.T) {
	e := newEnv(t, types.ListsConfig{})
	ctx := context.Background()
	e.name(t, "Coprinus comatus")
	e.name(t, "Lepiota sp. Author")
	e.name(t, "Lepiota sp. Other")

	_, err := e.svc.Create(ctx, CreateRequest{
		UserID: e.user.ID, Title: "Foray",
		Submission: resolve.Submission{Lines: []string{"Coprinus comatus", "Lactarius rubidus", "Lepiota"}},
	})
	var rejected *resolve.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.ErrorIs(t, err, resolve.ErrNewNameUnapproved)
	assert.ErrorIs(t, err, resolve.ErrAmbiguousName)
	assert.Len(t, rejected.Pending, 2)
	assert.NotEmpty(t, rejected.Submission.ID)

	lists, err := e.store.Lists(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, lists)
	assert.Zero(t, e.contribution(t))

	n, err := e.store.CountNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Equal(t, float64(1), e.counter(t, "mycolist_submissions_total", "outcome", "rejected"))
	assert.Equal(t, float64(1), e.counter(t, "mycolist_pending_lines_total", "reason", metrics.PendingAmbiguous))
	assert.Equal(t, float64(1), e.counter(t, "mycolist_pending_lines_total", "reason", metrics.PendingNew))
}

func TestCreateWithApprovedNewName(t *testing.T) {
	e := newEnv(t, types.ListsConfig{})
	ctx := context.Background()

	report, err := e.svc.Create(ctx, CreateRequest{
		UserID: e.user.ID, Title: "Foray",
		Submission: resolve.Submission{
			Lines:   []string{"Lactarius rubidus"},
			Choices: resolve.Choices{ApprovedNew: []string{"Lactarius  rubidus"}},
		},
	})
	require.NoError(t, err)
	require.Len(t, report.Result.Created, 2, "species and its missing genus")
	assert.Equal(t, 5+2*10+4, report.Contribution)

	genus, err := e.store.NamesByText(ctx, "Lactarius")
	require.NoError(t, err)
	require.Len(t, genus, 1)
	log, err := e.store.Log(ctx, types.Target{Type: types.TargetName, ID: genus[0].ID})
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, types.LogNameCreated, log[0].Tag)
}

func TestCreateValidatesInput(t *testing.T) {
	e := newEnv(t, types.ListsConfig{})
	ctx := context.Background()
	e.name(t, "Coprinus comatus")

	_, err := e.svc.Create(ctx, CreateRequest{UserID: e.user.ID, Submission: resolve.Submission{Lines: []string{"Coprinus comatus"}}})
	assert.ErrorContains(t, err, "title is required")

	bad := 9
	_, err = e.svc.Create(ctx, CreateRequest{
		UserID: e.user.ID, Title: "Foray",
		Submission: resolve.Submission{Lines: []string{"Coprinus comatus"}},
		Overrides:  map[int]materialize.Member{0: {Vote: &bad}},
	})
	assert.ErrorContains(t, err, "line 1: vote 9")

	_, err = e.svc.Create(ctx, CreateRequest{
		UserID: e.user.ID, Title: "Foray",
		Submission: resolve.Submission{Lines: []string{"Coprinus comatus"}, ChecklistIDs: []int64{999}},
	})
	assert.ErrorIs(t, err, resolve.ErrInvalidChoices)

	_, err = e.svc.Create(ctx, CreateRequest{
		UserID: 999, Title: "Foray",
		Submission: resolve.Submission{Lines: []string{"Coprinus comatus"}},
	})
	assert.ErrorIs(t, err, store.ErrNotFound)

	lists, err := e.store.Lists(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, lists)
}

func TestEdit(t *testing.T) {
	e := newEnv(t, types.ListsConfig{})
	ctx := context.Background()
	e.name(t, "Coprinus comatus")
	e.name(t, "Agaricus campestris")

	created, err := e.svc.Create(ctx, CreateRequest{
		UserID: e.user.ID, Title: "Foray", When: foray(), Where: "Point Reyes",
		Submission: resolve.Submission{Lines: []string{"Coprinus comatus"}},
	})
	require.NoError(t, err)

	t.Run("owner appends", func(t *testing.T) {
		report, err := e.svc.Edit(ctx, EditRequest{
			ListID: created.List.ID, UserID: e.user.ID, Title: "Fall foray",
			Submission: resolve.Submission{Lines: []string{"Agaricus campestris"}},
		})
		require.NoError(t, err)
		assert.False(t, report.NewList)
		assert.Equal(t, 4, report.Contribution)

		view, err := e.svc.Show(ctx, created.List.ID)
		require.NoError(t, err)
		assert.Equal(t, "Fall foray", view.List.Title)
		assert.Equal(t, "Point Reyes", view.List.Where)
		require.Len(t, view.Entries, 2)
		assert.Equal(t, 2, view.Entries[1].Position)
		assert.Equal(t, "Agaricus campestris", view.Entries[1].Name.TextName)
		assert.Equal(t, types.LogListUpdated, view.Log[len(view.Log)-1].Tag)
	})

	t.Run("other user is refused", func(t *testing.T) {
		other, err := e.store.EnsureUser(ctx, "mary")
		require.NoError(t, err)
		_, err = e.svc.Edit(ctx, EditRequest{
			ListID: created.List.ID, UserID: other.ID,
			Submission: resolve.Submission{Lines: []string{"Agaricus campestris"}},
		})
		assert.ErrorIs(t, err, ErrPermission)
	})

	t.Run("missing list", func(t *testing.T) {
		_, err := e.svc.Edit(ctx, EditRequest{ListID: 999, UserID: e.user.ID})
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestNameConflictRetry(t *testing.T) {
	conflict := func(ctx context.Context, tx *store.Tx) error {
		_, err := tx.CreateName(ctx, types.Name{TextName: "Agaricaceae", SearchName: "Agaricaceae", Rank: types.RankGenus})
		return err
	}
	req := func(e *env) CreateRequest {
		return CreateRequest{
			UserID: e.user.ID, Title: "Foray",
			Submission: resolve.Submission{
				Lines:   []string{"Agaricaceae"},
				Choices: resolve.Choices{ApprovedNew: []string{"Agaricaceae"}},
			},
		}
	}

	t.Run("retried once", func(t *testing.T) {
		e := newEnv(t, types.ListsConfig{})
		attempts := 0
		e.svc.afterResolve = func(ctx context.Context, tx *store.Tx) error {
			attempts++
			if attempts == 1 {
				return conflict(ctx, tx)
			}
			return nil
		}

		report, err := e.svc.Create(context.Background(), req(e))
		require.NoError(t, err)
		assert.True(t, report.Retried)
		assert.Equal(t, 2, attempts)
		assert.Len(t, report.Result.Observations, 1)
		assert.Equal(t, float64(1), e.counter(t, "mycolist_name_conflict_retries_total"))
	})

	t.Run("second conflict gives up", func(t *testing.T) {
		e := newEnv(t, types.ListsConfig{})
		e.svc.afterResolve = conflict

		_, err := e.svc.Create(context.Background(), req(e))
		assert.ErrorIs(t, err, ErrCatalogConflict)
		assert.ErrorIs(t, err, store.ErrNameConflict)

		lists, err := e.store.Lists(context.Background(), 0)
		require.NoError(t, err)
		assert.Empty(t, lists)
	})
}

func TestConcurrentSubmissionsShareNewName(t *testing.T) {
	e := newEnv(t, types.ListsConfig{})
	ctx := context.Background()
	// Holding each transaction open after resolving makes the two
	// submissions overlap.
	e.svc.afterResolve = func(ctx context.Context, tx *store.Tx) error {
		time.Sleep(30 * time.Millisecond)
		return nil
	}
	req := CreateRequest{
		UserID: e.user.ID, Title: "Foray",
		Submission: resolve.Submission{
			Lines:   []string{"Lactarius rubidus"},
			Choices: resolve.Choices{ApprovedNew: []string{"Lactarius rubidus"}},
		},
	}

	var wg sync.WaitGroup
	reports := make([]*Report, 2)
	errs := make([]error, 2)
	for i := range reports {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reports[i], errs[i] = e.svc.Create(ctx, req)
		}()
	}
	wg.Wait()

	created := 0
	for i := range reports {
		require.NoError(t, errs[i])
		assert.Len(t, reports[i].Result.Observations, 1)
		created += len(reports[i].Result.Created)
	}
	assert.Equal(t, 2, created, "species and genus created by one submission only")

	species, err := e.store.NamesByText(ctx, "Lactarius rubidus")
	require.NoError(t, err)
	assert.Len(t, species, 1)
	lists, err := e.store.Lists(ctx, e.user.ID)
	require.NoError(t, err)
	assert.Len(t, lists, 2)
}

func TestPersistenceFailure(t *testing.T) {
	e := newEnv(t, types.ListsConfig{})
	require.NoError(t, e.store.Close())

	_, err := e.svc.Create(context.Background(), CreateRequest{
		UserID: e.user.ID, Title: "Foray",
		Submission: resolve.Submission{Lines: []string{"Coprinus comatus"}},
	})
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Equal(t, float64(1), e.counter(t, "mycolist_submissions_total", "outcome", "failed"))
}

func TestSkipPolicyAcrossEdits(t *testing.T) {
	e := newEnv(t, types.ListsConfig{Duplicates: types.DuplicatesSkip})
	ctx := context.Background()
	e.name(t, "Coprinus comatus")

	created, err := e.svc.Create(ctx, CreateRequest{
		UserID: e.user.ID, Title: "Foray",
		Submission: resolve.Submission{Lines: []string{"Coprinus comatus", "Coprinus comatus"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, created.Result.Skipped)

	edited, err := e.svc.Edit(ctx, EditRequest{
		ListID: created.List.ID, UserID: e.user.ID,
		Submission: resolve.Submission{Lines: []string{"Coprinus comatus"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, edited.Result.Skipped)
	assert.Zero(t, edited.Contribution)
	assert.Equal(t, float64(2), e.counter(t, "mycolist_duplicates_skipped_total"))
}

func TestListOperations(t *testing.T) {
	e := newEnv(t, types.ListsConfig{})
	ctx := context.Background()
	e.name(t, "Coprinus comatus")
	e.name(t, "Agaricus campestris")

	first, err := e.svc.Create(ctx, CreateRequest{
		UserID: e.user.ID, Title: "First",
		Submission: resolve.Submission{Lines: []string{"Coprinus comatus", "Agaricus campestris"}},
	})
	require.NoError(t, err)
	second, err := e.svc.Create(ctx, CreateRequest{UserID: e.user.ID, Title: "Second"})
	require.NoError(t, err)
	obs := first.Result.Observations[1]

	pos, err := e.svc.AddObservation(ctx, e.user.ID, second.List.ID, obs.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	_, err = e.svc.AddObservation(ctx, e.user.ID, second.List.ID, 999)
	assert.ErrorIs(t, err, store.ErrNotFound)

	other, err := e.store.EnsureUser(ctx, "mary")
	require.NoError(t, err)
	_, err = e.svc.AddObservation(ctx, other.ID, second.List.ID, obs.ID)
	assert.ErrorIs(t, err, ErrPermission)

	require.NoError(t, e.svc.RemoveObservation(ctx, e.user.ID, first.List.ID, obs.ID))
	assert.ErrorIs(t, e.svc.RemoveObservation(ctx, e.user.ID, first.List.ID, obs.ID), store.ErrNotFound)

	view, err := e.svc.Show(ctx, first.List.ID)
	require.NoError(t, err)
	assert.Len(t, view.Entries, 1)
	assert.Equal(t, types.LogObservationRemoved, view.Log[len(view.Log)-1].Tag)

	assert.ErrorIs(t, e.svc.Delete(ctx, other.ID, second.List.ID), ErrPermission)
	require.NoError(t, e.svc.Delete(ctx, e.user.ID, second.List.ID))
	_, err = e.svc.Show(ctx, second.List.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	log, err := e.store.Log(ctx, listTarget(second.List.ID))
	require.NoError(t, err)
	assert.Equal(t, types.LogListDestroyed, log[len(log)-1].Tag)
	assert.Equal(t, "Second", log[len(log)-1].Args["title"])

	stillThere, err := e.store.ObservationByID(ctx, obs.ID)
	require.NoError(t, err)
	assert.Equal(t, obs.ID, stillThere.ID)
}

func TestUpload(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"plain", "Coprinus comatus\nAgaricus campestris\n", []string{"Coprinus comatus", "Agaricus campestris"}},
		{"crlf and blanks", "Coprinus comatus\r\n\r\n  Agaricus   campestris \r\n", []string{"Coprinus comatus", "Agaricus campestris"}},
		{"utf-8 bom", "\xef\xbb\xbfCoprinus comatus\n", []string{"Coprinus comatus"}},
		{"utf-16le bom", "\xff\xfeA\x00m\x00a\x00n\x00i\x00t\x00a\x00\n\x00", []string{"Amanita"}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Upload(context.Background(), strings.NewReader(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Upload(ctx, strings.NewReader("Amanita"))
	assert.True(t, errors.Is(err, context.Canceled))
}
