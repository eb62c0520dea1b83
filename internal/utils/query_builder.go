package utils

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Queries built here use "?" placeholders; callers pass them through
// sqlx.Rebind for the active driver.

type QueryBuildResult struct {
	Query string
	Args  []any
}

// BuildDynamicUpdateQuery builds an UPDATE statement from the present fields.
// Parameters:
//   - tableName: table to update
//   - updateData: column -> new value, only the columns being changed
//   - allowedFields: columns that may be updated
//   - whereField / whereValue: row selector
//   - updatedAt: when non-zero, appended as updated_at unless updateData sets it
//
// Columns are emitted in sorted order so the statement is stable for a given
// field set.
func BuildDynamicUpdateQuery(
	tableName string,
	updateData map[string]any,
	allowedFields map[string]bool,
	whereField string,
	whereValue any,
	updatedAt time.Time,
) (*QueryBuildResult, error) {
	fields := make([]string, 0, len(updateData))
	for field := range updateData {
		if !allowedFields[field] {
			return nil, fmt.Errorf("field %s is not allowed to be updated", field)
		}
		fields = append(fields, field)
	}
	sort.Strings(fields)

	setClauses := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+2)
	for _, field := range fields {
		setClauses = append(setClauses, field+" = ?")
		args = append(args, updateData[field])
	}

	if !updatedAt.IsZero() {
		if _, ok := updateData["updated_at"]; !ok {
			setClauses = append(setClauses, "updated_at = ?")
			args = append(args, updatedAt)
		}
	}

	if len(setClauses) == 0 {
		return nil, fmt.Errorf("no fields to update")
	}

	args = append(args, whereValue)
	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s = ?",
		tableName,
		strings.Join(setClauses, ", "),
		whereField,
	)

	return &QueryBuildResult{
		Query: query,
		Args:  args,
	}, nil
}

// Condition is one WHERE predicate of a dynamic filter. Conditions are
// joined with AND.
type Condition struct {
	Field    string // column name or a trusted expression such as LOWER(col)
	Operator string // =, >=, <=, LIKE, IN, IS_NULL, IS_NOT_NULL
	Value    any    // single value, or []any for IN
}

// QueryBuilder appends a WHERE and ORDER BY clause to a template query.
type QueryBuilder struct {
	TemplateQuery string
	Conditions    []Condition
	OrderBy       []string // e.g. []string{"created_at DESC", "id DESC"}
}

// BuildQueryDynamicFilter renders the query and its arguments.
func (qb *QueryBuilder) BuildQueryDynamicFilter() (string, []any, error) {
	if qb.TemplateQuery == "" {
		return "", nil, fmt.Errorf("template query is required")
	}

	query := qb.TemplateQuery
	args := []any{}

	if len(qb.Conditions) > 0 {
		whereParts := make([]string, 0, len(qb.Conditions))

		for _, cond := range qb.Conditions {
			var condStr string

			switch strings.ToUpper(cond.Operator) {
			case "=", ">=", "<=":
				condStr = fmt.Sprintf("%s %s ?", cond.Field, cond.Operator)
				args = append(args, cond.Value)

			case "LIKE":
				condStr = cond.Field + " LIKE ?"
				args = append(args, cond.Value)

			case "IN":
				values, ok := cond.Value.([]any)
				if !ok {
					return "", nil, fmt.Errorf("IN operator requires []any value for field %s", cond.Field)
				}
				if len(values) == 0 {
					return "", nil, fmt.Errorf("IN operator requires at least one value for field %s", cond.Field)
				}
				placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
				condStr = fmt.Sprintf("%s IN (%s)", cond.Field, placeholders)
				args = append(args, values...)

			case "IS_NULL":
				condStr = cond.Field + " IS NULL"

			case "IS_NOT_NULL":
				condStr = cond.Field + " IS NOT NULL"

			default:
				return "", nil, fmt.Errorf("unsupported operator: %s", cond.Operator)
			}

			whereParts = append(whereParts, condStr)
		}

		query += " WHERE " + strings.Join(whereParts, " AND ")
	}

	if len(qb.OrderBy) > 0 {
		validOrders := []string{}
		for _, order := range qb.OrderBy {
			parts := strings.Fields(order)
			switch len(parts) {
			case 0:
				continue
			case 1:
				validOrders = append(validOrders, parts[0]+" ASC")
			case 2:
				dir := strings.ToUpper(parts[1])
				if dir != "ASC" && dir != "DESC" {
					return "", nil, fmt.Errorf("invalid order direction: %s (must be ASC or DESC)", parts[1])
				}
				validOrders = append(validOrders, parts[0]+" "+dir)
			default:
				return "", nil, fmt.Errorf("invalid order format: %s", order)
			}
		}

		if len(validOrders) > 0 {
			query += " ORDER BY " + strings.Join(validOrders, ", ")
		}
	}

	return query, args, nil
}
