package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pricing-service/internal/models"
	"pricing-service/internal/utils"

	"github.com/jmoiron/sqlx"
)

// SubmissionRepository stores submissions as one scalar row plus one row per
// tag value in the category's table. Queries are written with "?" and rebound
// for the connected driver, so it runs on Postgres and SQLite alike.
type SubmissionRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{
		db: db,
		now: func() time.Time {
			return time.Now().UTC().Truncate(time.Microsecond)
		},
	}
}

// ListFilter narrows List. Zero values match everything and the set fields
// must all match.
type ListFilter struct {
	ClientType      string
	IndustrySectors []string  // any of
	ClientName      string    // case-insensitive substring
	CreatedFrom     time.Time // inclusive
	CreatedTo       time.Time // inclusive
	HasStartDate    *bool
}

func (f ListFilter) conditions() []utils.Condition {
	var conds []utils.Condition
	if f.ClientType != "" {
		conds = append(conds, utils.Condition{Field: "client_type", Operator: "=", Value: f.ClientType})
	}
	if len(f.IndustrySectors) > 0 {
		values := make([]any, len(f.IndustrySectors))
		for i, v := range f.IndustrySectors {
			values[i] = v
		}
		conds = append(conds, utils.Condition{Field: "industry_sector", Operator: "IN", Value: values})
	}
	if f.ClientName != "" {
		conds = append(conds, utils.Condition{
			Field: "LOWER(client_name)", Operator: "LIKE", Value: "%" + strings.ToLower(f.ClientName) + "%",
		})
	}
	if !f.CreatedFrom.IsZero() {
		conds = append(conds, utils.Condition{Field: "created_at", Operator: ">=", Value: f.CreatedFrom.UTC()})
	}
	if !f.CreatedTo.IsZero() {
		conds = append(conds, utils.Condition{Field: "created_at", Operator: "<=", Value: f.CreatedTo.UTC()})
	}
	if f.HasStartDate != nil {
		op := "IS_NULL"
		if *f.HasStartDate {
			op = "IS_NOT_NULL"
		}
		conds = append(conds, utils.Condition{Field: "estimated_start_date", Operator: op})
	}
	return conds
}

var (
	selectColumns  = "id, created_at, updated_at, " + strings.Join(models.SubmissionColumns, ", ")
	allowedColumns = func() map[string]bool {
		m := make(map[string]bool, len(models.SubmissionColumns))
		for _, c := range models.SubmissionColumns {
			m[c] = true
		}
		return m
	}()
	insertQuery = fmt.Sprintf(
		"INSERT INTO submissions (created_at, updated_at, %s) VALUES (:created_at, :updated_at, :%s) RETURNING id",
		strings.Join(models.SubmissionColumns, ", "),
		strings.Join(models.SubmissionColumns, ", :"),
	)
)

// CountableColumns are the scalar columns CountBy may group on.
var CountableColumns = map[string]bool{
	"client_type":             true,
	"industry_sector":         true,
	"company_size":            true,
	"annual_revenue":          true,
	"data_volume":             true,
	"engagement_type":         true,
	"delivery_model":          true,
	"support_plan":            true,
	"budget_range":            true,
	"suggested_pricing_model": true,
}

// ============================================================================
// CREATE OPERATIONS
// ============================================================================

// Create inserts the row and every tag value in one transaction and returns
// the new id.
func (r *SubmissionRepository) Create(ctx context.Context, record models.SubmissionRecord, tags models.TagSet) (int64, error) {
	start := time.Now()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := r.now()
	record.CreatedAt = now
	record.UpdatedAt = now

	query, args, err := sqlx.Named(insertQuery, record)
	if err != nil {
		return 0, fmt.Errorf("failed to bind submission insert: %w", err)
	}

	var id int64
	if err := tx.QueryRowxContext(ctx, r.db.Rebind(query), args...).Scan(&id); err != nil {
		slog.Error("Failed to insert submission", "client_name", record.ClientName, "error", err)
		return 0, fmt.Errorf("failed to insert submission: %w", err)
	}

	for _, category := range models.TagCategories {
		if err := r.insertTags(ctx, tx, id, category, tags.Get(category)); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit submission insert: %w", err)
	}

	slog.Info("Created submission",
		"submission_id", id,
		"client_name", record.ClientName,
		"duration", time.Since(start))
	return id, nil
}

func (r *SubmissionRepository) insertTags(ctx context.Context, tx *sqlx.Tx, submissionID int64, category models.TagCategory, values []string) error {
	if len(values) == 0 {
		return nil
	}

	placeholders := make([]string, 0, len(values))
	args := make([]any, 0, len(values)*2)
	for _, v := range values {
		placeholders = append(placeholders, "(?, ?)")
		args = append(args, submissionID, v)
	}

	query := fmt.Sprintf("INSERT INTO %s (submission_id, value) VALUES %s",
		category.Table(), strings.Join(placeholders, ", "))
	if err := utils.ExecWithCheck(ctx, tx, r.db.Rebind(query), utils.ExecInsert, args...); err != nil {
		return fmt.Errorf("failed to insert %s tags: %w", category, err)
	}
	return nil
}

// ============================================================================
// READ OPERATIONS
// ============================================================================

func (r *SubmissionRepository) GetByID(ctx context.Context, id int64) (*models.StoredSubmission, error) {
	return r.get(ctx, r.db, id)
}

func (r *SubmissionRepository) get(ctx context.Context, q sqlx.QueryerContext, id int64) (*models.StoredSubmission, error) {
	var record models.SubmissionRecord
	query := r.db.Rebind("SELECT " + selectColumns + " FROM submissions WHERE id = ?")
	if err := sqlx.GetContext(ctx, q, &record, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to get submission %d: %w", id, err)
	}

	tags, err := r.loadTags(ctx, q, []int64{id})
	if err != nil {
		return nil, err
	}

	return &models.StoredSubmission{Record: record, Tags: tags[id]}, nil
}

// List returns the submissions matching filter, newest first.
func (r *SubmissionRepository) List(ctx context.Context, filter ListFilter) ([]models.StoredSubmission, error) {
	start := time.Now()

	qb := utils.QueryBuilder{
		TemplateQuery: "SELECT " + selectColumns + " FROM submissions",
		Conditions:    filter.conditions(),
		OrderBy:       []string{"created_at DESC", "id DESC"},
	}

	query, args, err := qb.BuildQueryDynamicFilter()
	if err != nil {
		return nil, fmt.Errorf("failed to build list query: %w", err)
	}

	var records []models.SubmissionRecord
	if err := r.db.SelectContext(ctx, &records, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}

	ids := make([]int64, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}
	tags, err := r.loadTags(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}

	out := make([]models.StoredSubmission, len(records))
	for i, rec := range records {
		out[i] = models.StoredSubmission{Record: rec, Tags: tags[rec.ID]}
	}

	slog.Debug("Listed submissions", "count", len(out), "duration", time.Since(start))
	return out, nil
}

type tagRow struct {
	SubmissionID int64  `db:"submission_id"`
	Value        string `db:"value"`
}

// loadTags reads every category for the given submissions, each in insertion
// order. Every requested id gets a complete TagSet.
func (r *SubmissionRepository) loadTags(ctx context.Context, q sqlx.QueryerContext, ids []int64) (map[int64]models.TagSet, error) {
	out := make(map[int64]models.TagSet, len(ids))
	for _, id := range ids {
		set := make(models.TagSet, len(models.TagCategories))
		for _, category := range models.TagCategories {
			set[category] = []string{}
		}
		out[id] = set
	}
	if len(ids) == 0 {
		return out, nil
	}

	for _, category := range models.TagCategories {
		query, args, err := sqlx.In(
			fmt.Sprintf("SELECT submission_id, value FROM %s WHERE submission_id IN (?) ORDER BY id", category.Table()),
			ids,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to build %s tag query: %w", category, err)
		}

		var rows []tagRow
		if err := sqlx.SelectContext(ctx, q, &rows, r.db.Rebind(query), args...); err != nil {
			return nil, fmt.Errorf("failed to load %s tags: %w", category, err)
		}
		for _, row := range rows {
			out[row.SubmissionID][category] = append(out[row.SubmissionID][category], row.Value)
		}
	}

	return out, nil
}

// ============================================================================
// UPDATE OPERATIONS
// ============================================================================

// Update applies the present columns, replaces each present tag category and
// refreshes updated_at, all in one transaction. It returns the stored state
// after the change.
func (r *SubmissionRepository) Update(ctx context.Context, id int64, patch models.SubmissionPatch) (*models.StoredSubmission, error) {
	start := time.Now()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var previous time.Time
	err = tx.GetContext(ctx, &previous, r.db.Rebind("SELECT updated_at FROM submissions WHERE id = ?"), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to read submission %d: %w", id, err)
	}

	// updated_at never moves backwards, even across clock adjustments.
	now := r.now()
	if now.Before(previous) {
		now = previous
	}

	built, err := utils.BuildDynamicUpdateQuery("submissions", patch.Fields, allowedColumns, "id", id, now)
	if err != nil {
		return nil, fmt.Errorf("failed to build submission update: %w", err)
	}
	if err := utils.ExecWithCheck(ctx, tx, r.db.Rebind(built.Query), utils.ExecUpdate, built.Args...); err != nil {
		if errors.Is(err, utils.ErrNoRowsAffected) {
			return nil, models.ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to update submission %d: %w", id, err)
	}

	for _, category := range models.TagCategories {
		values, ok := patch.Tags[category]
		if !ok {
			continue
		}
		deleteQuery := r.db.Rebind(fmt.Sprintf("DELETE FROM %s WHERE submission_id = ?", category.Table()))
		if _, err := tx.ExecContext(ctx, deleteQuery, id); err != nil {
			return nil, fmt.Errorf("failed to clear %s tags: %w", category, err)
		}
		if err := r.insertTags(ctx, tx, id, category, values); err != nil {
			return nil, err
		}
	}

	stored, err := r.get(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit submission update: %w", err)
	}

	slog.Info("Updated submission",
		"submission_id", id,
		"fields", len(patch.Fields),
		"tag_categories", len(patch.Tags),
		"duration", time.Since(start))
	return stored, nil
}

// ============================================================================
// DELETE OPERATIONS
// ============================================================================

// Delete removes the row and its tag rows. Tag rows are removed explicitly,
// not only through ON DELETE CASCADE.
func (r *SubmissionRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, category := range models.TagCategories {
		query := r.db.Rebind(fmt.Sprintf("DELETE FROM %s WHERE submission_id = ?", category.Table()))
		if _, err := tx.ExecContext(ctx, query, id); err != nil {
			return fmt.Errorf("failed to delete %s tags: %w", category, err)
		}
	}

	err = utils.ExecWithCheck(ctx, tx, r.db.Rebind("DELETE FROM submissions WHERE id = ?"), utils.ExecDelete, id)
	if err != nil {
		if errors.Is(err, utils.ErrNoRowsAffected) {
			return models.ErrSubmissionNotFound
		}
		return fmt.Errorf("failed to delete submission %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit submission delete: %w", err)
	}

	slog.Info("Deleted submission", "submission_id", id)
	return nil
}

// ============================================================================
// AGGREGATES
// ============================================================================

func (r *SubmissionRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM submissions"); err != nil {
		return 0, fmt.Errorf("failed to count submissions: %w", err)
	}
	return total, nil
}

// CountSince counts submissions created at or after since.
func (r *SubmissionRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var total int64
	query := r.db.Rebind("SELECT COUNT(*) FROM submissions WHERE created_at >= ?")
	if err := r.db.GetContext(ctx, &total, query, since.UTC()); err != nil {
		return 0, fmt.Errorf("failed to count recent submissions: %w", err)
	}
	return total, nil
}

// CountBy groups submissions by one of CountableColumns. NULL and empty
// values are counted under models.UnspecifiedBucket.
func (r *SubmissionRepository) CountBy(ctx context.Context, column string) (map[string]int64, error) {
	if !CountableColumns[column] {
		return nil, fmt.Errorf("column %s cannot be counted", column)
	}

	query := fmt.Sprintf(
		"SELECT COALESCE(NULLIF(%s, ''), '%s') AS bucket, COUNT(*) AS total FROM submissions GROUP BY bucket ORDER BY bucket",
		column, models.UnspecifiedBucket,
	)

	var rows []models.GroupCount
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to count submissions by %s: %w", column, err)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Bucket] += row.Total
	}
	return counts, nil
}
