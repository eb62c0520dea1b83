package repository

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"pricing-service/internal/database/sqlite"
	"pricing-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// TEST HELPERS
// ============================================================================

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "pricing.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// fixedClock returns a clock that advances by step on every call.
func fixedClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := current
		current = current.Add(step)
		return now
	}
}

func strPtr(s string) *string { return &s }

func createTestRecord(name, clientType string) models.SubmissionRecord {
	tiered := true
	return models.SubmissionRecord{
		ClientName:          name,
		ClientType:          clientType,
		IndustrySector:      strPtr("Retail"),
		RiskFactors:         strPtr("Unknown data quality"),
		EstimatedStartDate:  models.NewNullDate(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)),
		TieredPricingNeeded: &tiered,
	}
}

func createTestTags() models.TagSet {
	return models.TagSet{
		models.TagDeliverables:   {"Dashboard", "Report"},
		models.TagAudience:       {"Executives"},
		models.TagDataSources:    {"PostgreSQL"},
		models.TagIntegrations:   {"SSO"},
		models.TagInteractivity:  {"Filters"},
		models.TagAccessLevels:   {"Admin", "Viewer"},
		models.TagCustomizations: {"Branding"},
	}
}

// rejectTagValue makes every insert of value into submission_customizations
// fail inside the database.
func rejectTagValue(t *testing.T, db *sqlx.DB, value string) {
	t.Helper()
	_, err := db.Exec(`CREATE TRIGGER reject_customization BEFORE INSERT ON submission_customizations
		WHEN NEW.value = '` + value + `'
		BEGIN SELECT RAISE(ABORT, 'rejected tag value'); END`)
	require.NoError(t, err)
}

func countAllRows(t *testing.T, db *sqlx.DB) (submissions, tags int) {
	t.Helper()
	require.NoError(t, db.Get(&submissions, "SELECT COUNT(*) FROM submissions"))
	for _, category := range models.TagCategories {
		var n int
		require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM "+category.Table()))
		tags += n
	}
	return submissions, tags
}

func countTagRows(t *testing.T, db *sqlx.DB, id int64) int {
	t.Helper()
	total := 0
	for _, category := range models.TagCategories {
		var n int
		require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM "+category.Table()+" WHERE submission_id = ?", id))
		total += n
	}
	return total
}

// ============================================================================
// TEST SUITE 1: CREATE / READ
// ============================================================================

func TestCreate_PersistsRowAndTags(t *testing.T) {
	ctx := context.Background()
	repo := NewSubmissionRepository(newTestDB(t))

	id, err := repo.Create(ctx, createTestRecord("Acme", "B2B"), createTestTags())
	require.NoError(t, err)
	assert.Positive(t, id)

	stored, err := repo.GetByID(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, id, stored.Record.ID)
	assert.Equal(t, "Acme", stored.Record.ClientName)
	require.NotNil(t, stored.Record.IndustrySector)
	assert.Equal(t, "Retail", *stored.Record.IndustrySector)
	assert.Nil(t, stored.Record.CompanySize)
	assert.Equal(t, "2025-02-01", stored.Record.EstimatedStartDate.String())
	assert.False(t, stored.Record.EstimatedEndDate.Valid)
	require.NotNil(t, stored.Record.TieredPricingNeeded)
	assert.True(t, *stored.Record.TieredPricingNeeded)
	assert.Equal(t, stored.Record.CreatedAt, stored.Record.UpdatedAt)

	assert.Equal(t, []string{"Dashboard", "Report"}, stored.Tags[models.TagDeliverables])
	assert.Equal(t, []string{"Admin", "Viewer"}, stored.Tags[models.TagAccessLevels])
}

func TestCreate_KeepsDuplicateTags(t *testing.T) {
	ctx := context.Background()
	repo := NewSubmissionRepository(newTestDB(t))

	tags := models.TagSet{models.TagDeliverables: {"Report", "Report", "report"}}
	id, err := repo.Create(ctx, createTestRecord("Acme", "B2B"), tags)
	require.NoError(t, err)

	stored, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"Report", "Report", "report"}, stored.Tags[models.TagDeliverables])
	assert.Empty(t, stored.Tags[models.TagAudience])
	assert.NotNil(t, stored.Tags[models.TagAudience])
}

func TestCreate_ConcurrentIDsAreUnique(t *testing.T) {
	ctx := context.Background()
	repo := NewSubmissionRepository(newTestDB(t))

	const workers = 8
	ids := make(chan int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := repo.Create(ctx, createTestRecord("Acme", "B2B"), createTestTags())
			assert.NoError(t, err)
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[int64]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, workers)
}

func TestGetByID_NotFound(t *testing.T) {
	repo := NewSubmissionRepository(newTestDB(t))

	_, err := repo.GetByID(context.Background(), 999)
	assert.ErrorIs(t, err, models.ErrSubmissionNotFound)
}

func TestList_NewestFirstWithFilter(t *testing.T) {
	ctx := context.Background()
	repo := NewSubmissionRepository(newTestDB(t))
	repo.now = fixedClock(time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC), time.Minute)

	first, err := repo.Create(ctx, createTestRecord("First", "B2B"), nil)
	require.NoError(t, err)
	second, err := repo.Create(ctx, createTestRecord("Second", "B2B2B"), createTestTags())
	require.NoError(t, err)
	third, err := repo.Create(ctx, createTestRecord("Third", "B2B"), nil)
	require.NoError(t, err)

	all, err := repo.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{third, second, first}, []int64{all[0].Record.ID, all[1].Record.ID, all[2].Record.ID})
	assert.Equal(t, []string{"Dashboard", "Report"}, all[1].Tags[models.TagDeliverables])
	assert.Empty(t, all[0].Tags[models.TagDeliverables])

	b2b, err := repo.List(ctx, ListFilter{ClientType: "B2B"})
	require.NoError(t, err)
	require.Len(t, b2b, 2)
	assert.Equal(t, third, b2b[0].Record.ID)
	assert.Equal(t, first, b2b[1].Record.ID)
}

func TestList_Empty(t *testing.T) {
	repo := NewSubmissionRepository(newTestDB(t))

	all, err := repo.List(context.Background(), ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestList_Filters(t *testing.T) {
	ctx := context.Background()
	repo := NewSubmissionRepository(newTestDB(t))
	repo.now = fixedClock(time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC), 24*time.Hour)

	create := func(name, clientType string, sector *string, withStart bool) int64 {
		record := createTestRecord(name, clientType)
		record.IndustrySector = sector
		if !withStart {
			record.EstimatedStartDate = models.NullDate{}
		}
		id, err := repo.Create(ctx, record, nil)
		require.NoError(t, err)
		return id
	}
	acme := create("Acme Corp", "B2B", strPtr("Retail"), true)         // 2025-01-01 09:00
	globex := create("Globex", "B2B2B", strPtr("Finance"), false)      // 2025-01-02 09:00
	acmeLabs := create("acme labs", "B2B", strPtr("Healthcare"), true) // 2025-01-03 09:00
	initech := create("Initech", "B2B", nil, false)                    // 2025-01-04 09:00

	yes, no := true, false
	tests := []struct {
		name   string
		filter ListFilter
		want   []int64
	}{
		{"industry sector any of", ListFilter{IndustrySectors: []string{"Retail", "Finance"}}, []int64{globex, acme}},
		{"client name ignores case", ListFilter{ClientName: "ACME"}, []int64{acmeLabs, acme}},
		{"created from inclusive", ListFilter{CreatedFrom: time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)}, []int64{initech, acmeLabs, globex}},
		{"created to inclusive", ListFilter{CreatedTo: time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)}, []int64{globex, acme}},
		{"created range", ListFilter{
			CreatedFrom: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
			CreatedTo:   time.Date(2025, 1, 3, 23, 59, 59, 0, time.UTC),
		}, []int64{acmeLabs, globex}},
		{"has start date", ListFilter{HasStartDate: &yes}, []int64{acmeLabs, acme}},
		{"no start date", ListFilter{HasStartDate: &no}, []int64{initech, globex}},
		{"all conditions must match", ListFilter{ClientType: "B2B", ClientName: "acme", IndustrySectors: []string{"Healthcare"}}, []int64{acmeLabs}},
		{"nothing matches", ListFilter{IndustrySectors: []string{"Energy"}}, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(ctx, tt.filter)
			require.NoError(t, err)

			ids := make([]int64, len(got))
			for i, s := range got {
				ids[i] = s.Record.ID
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

// ============================================================================
// TEST SUITE 2: UPDATE
// ============================================================================

func TestUpdate_OnlyPresentFieldsChange(t *testing.T) {
	ctx := context.Background()
	repo := NewSubmissionRepository(newTestDB(t))
	repo.now = fixedClock(time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC), time.Second)

	id, err := repo.Create(ctx, createTestRecord("Acme", "B2B"), createTestTags())
	require.NoError(t, err)
	before, err := repo.GetByID(ctx, id)
	require.NoError(t, err)

	after, err := repo.Update(ctx, id, models.SubmissionPatch{
		Fields: map[string]any{"risk_factors": "Scope creep"},
	})
	require.NoError(t, err)

	require.NotNil(t, after.Record.RiskFactors)
	assert.Equal(t, "Scope creep", *after.Record.RiskFactors)
	assert.True(t, after.Record.UpdatedAt.After(before.Record.UpdatedAt))
	assert.True(t, after.Record.CreatedAt.Equal(before.Record.CreatedAt))

	after.Record.RiskFactors = before.Record.RiskFactors
	after.Record.UpdatedAt = before.Record.UpdatedAt
	assert.Equal(t, before.Record, after.Record)
	assert.Equal(t, before.Tags, after.Tags)
}

func TestUpdate_ReplacesPresentTagCategories(t *testing.T) {
	ctx := context.Background()
	repo := NewSubmissionRepository(newTestDB(t))

	id, err := repo.Create(ctx, createTestRecord("Acme", "B2B"), createTestTags())
	require.NoError(t, err)

	after, err := repo.Update(ctx, id, models.SubmissionPatch{
		Tags: models.TagSet{
			models.TagDeliverables: {"Alerting"},
			models.TagAudience:     {},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Alerting"}, after.Tags[models.TagDeliverables])
	assert.Empty(t, after.Tags[models.TagAudience])
	assert.Equal(t, []string{"Admin", "Viewer"}, after.Tags[models.TagAccessLevels])
}

func TestUpdate_ClearsDate(t *testing.T) {
	ctx := context.Background()
	repo := NewSubmissionRepository(newTestDB(t))

	id, err := repo.Create(ctx, createTestRecord("Acme", "B2B"), nil)
	require.NoError(t, err)

	after, err := repo.Update(ctx, id, models.SubmissionPatch{
		Fields: map[string]any{"estimated_start_date": models.NullDate{}},
	})
	require.NoError(t, err)
	assert.False(t, after.Record.EstimatedStartDate.Valid)
}

func TestUpdate_UpdatedAtNeverMovesBackwards(t *testing.T) {
	ctx := context.Background()
	repo := NewSubmissionRepository(newTestDB(t))
	repo.now = fixedClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), 0)

	id, err := repo.Create(ctx, createTestRecord("Acme", "B2B"), nil)
	require.NoError(t, err)

	repo.now = fixedClock(time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), 0)
	after, err := repo.Update(ctx, id, models.SubmissionPatch{Fields: map[string]any{"next_steps": "Call"}})
	require.NoError(t, err)

	assert.False(t, after.Record.UpdatedAt.Before(after.Record.CreatedAt))
}

func TestUpdate_NotFound(t *testing.T) {
	repo := NewSubmissionRepository(newTestDB(t))

	_, err := repo.Update(context.Background(), 404, models.SubmissionPatch{
		Fields: map[string]any{"risk_factors": "x"},
	})
	assert.ErrorIs(t, err, models.ErrSubmissionNotFound)
}

func TestUpdate_RejectsUnknownColumn(t *testing.T) {
	ctx := context.Background()
	repo := NewSubmissionRepository(newTestDB(t))

	id, err := repo.Create(ctx, createTestRecord("Acme", "B2B"), nil)
	require.NoError(t, err)

	_, err = repo.Update(ctx, id, models.SubmissionPatch{Fields: map[string]any{"id": 7}})
	assert.Error(t, err)

	stored, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, stored.Record.ID)
}

func TestCreate_FailedTagInsertLeavesNothing(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewSubmissionRepository(db)
	rejectTagValue(t, db, "BOOM")

	tags := createTestTags()
	tags[models.TagCustomizations] = []string{"Branding", "BOOM"}

	_, err := repo.Create(ctx, createTestRecord("Acme", "B2B"), tags)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "customizations")

	submissions, tagRows := countAllRows(t, db)
	assert.Zero(t, submissions)
	assert.Zero(t, tagRows)
}

func TestUpdate_FailedTagInsertKeepsPreviousState(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewSubmissionRepository(db)
	repo.now = fixedClock(time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC), time.Second)

	id, err := repo.Create(ctx, createTestRecord("Acme", "B2B"), createTestTags())
	require.NoError(t, err)
	before, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	rejectTagValue(t, db, "BOOM")

	_, err = repo.Update(ctx, id, models.SubmissionPatch{
		Fields: map[string]any{"risk_factors": "Scope creep"},
		Tags: models.TagSet{
			models.TagDeliverables:   {"X"},
			models.TagCustomizations: {"BOOM"},
		},
	})
	require.Error(t, err)

	after, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before.Record, after.Record)
	assert.Equal(t, before.Tags, after.Tags)
	assert.Equal(t, 9, countTagRows(t, db, id))
}

// ============================================================================
// TEST SUITE 3: DELETE
// ============================================================================

func TestDelete_RemovesRowAndAllTags(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewSubmissionRepository(db)

	id, err := repo.Create(ctx, createTestRecord("Acme", "B2B"), createTestTags())
	require.NoError(t, err)
	keep, err := repo.Create(ctx, createTestRecord("Keep", "B2B"), createTestTags())
	require.NoError(t, err)
	require.Equal(t, 9, countTagRows(t, db, id))

	require.NoError(t, repo.Delete(ctx, id))

	assert.Zero(t, countTagRows(t, db, id))
	assert.Equal(t, 9, countTagRows(t, db, keep))
	_, err = repo.GetByID(ctx, id)
	assert.ErrorIs(t, err, models.ErrSubmissionNotFound)
}

func TestDelete_NotFound(t *testing.T) {
	repo := NewSubmissionRepository(newTestDB(t))

	err := repo.Delete(context.Background(), 12)
	assert.ErrorIs(t, err, models.ErrSubmissionNotFound)
}

// ============================================================================
// TEST SUITE 4: AGGREGATES
// ============================================================================

func TestCounts(t *testing.T) {
	ctx := context.Background()
	repo := NewSubmissionRepository(newTestDB(t))
	repo.now = fixedClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), 24*time.Hour)

	for _, clientType := range []string{"B2B", "B2B2B", "B2B"} {
		_, err := repo.Create(ctx, createTestRecord("Acme", clientType), nil)
		require.NoError(t, err)
	}
	deleted, err := repo.Create(ctx, createTestRecord("Gone", "B2B2B"), nil)
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, deleted))

	total, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	recent, err := repo.CountSince(ctx, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(2), recent)

	byType, err := repo.CountBy(ctx, "client_type")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"B2B": 2, "B2B2B": 1}, byType)

	bySize, err := repo.CountBy(ctx, "company_size")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{models.UnspecifiedBucket: 3}, bySize)
}

func TestCountBy_RejectsUnknownColumn(t *testing.T) {
	repo := NewSubmissionRepository(newTestDB(t))

	_, err := repo.CountBy(context.Background(), "client_name; DROP TABLE submissions")
	assert.Error(t, err)
}
