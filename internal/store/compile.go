package store

import (
	"fmt"
	"strings"

	"github.com/transifex/jsonapi-server/internal/planner"
	"github.com/transifex/jsonapi-server/pkg/jsonapi"
)

// Query with its bound parameters. Values are never interpolated.
type compiled struct {
	sql    string
	params []interface{}
}

type selectQuery struct {
	table   string
	columns []string
	where   []string
	params  []interface{}
	order   []string
	limit   int
	offset  int
}

func (q *selectQuery) addWhere(clause string, params ...interface{}) {
	q.where = append(q.where, clause)
	q.params = append(q.params, params...)
}

func (q selectQuery) whereClause() string {
	if len(q.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.where, " AND ")
}

func (q selectQuery) compile() compiled {
	columns := "*"
	if len(q.columns) > 0 {
		quoted := make([]string, 0, len(q.columns))
		for _, column := range q.columns {
			quoted = append(quoted, quoteIdent(column))
		}
		columns = strings.Join(quoted, ", ")
	}
	sql := fmt.Sprintf(
		"SELECT %s FROM %s%s", columns, quoteIdent(q.table), q.whereClause(),
	)
	params := append([]interface{}(nil), q.params...)
	if len(q.order) > 0 {
		sql += " ORDER BY " + strings.Join(q.order, ", ")
	}
	if q.limit > 0 {
		sql += " LIMIT ? OFFSET ?"
		params = append(params, q.limit, q.offset)
	}
	return compiled{sql: sql, params: params}
}

func (q selectQuery) compileCount() compiled {
	return compiled{
		sql: fmt.Sprintf(
			"SELECT COUNT(*) FROM %s%s", quoteIdent(q.table), q.whereClause(),
		),
		params: append([]interface{}(nil), q.params...),
	}
}

/*
compilePlan
Turn a fetch plan into a select. 'columns' are the table's real columns, every
identifier in the plan must be one of them. The returned hidden columns were
added to the projection for eager loading only and must not be rendered.
*/
func compilePlan(
	definition ResourceDefinition, plan planner.FetchPlan, columns []string,
) (selectQuery, []string, error) {
	query := selectQuery{table: definition.Table}
	known := func(column string) error {
		for _, item := range columns {
			if item == column {
				return nil
			}
		}
		return fmt.Errorf(
			"column %s does not exist in %s", column, definition.Table,
		)
	}

	var hidden []string
	if plan.Columns != nil {
		for _, column := range plan.Columns {
			if err := known(column); err != nil {
				return selectQuery{}, nil, err
			}
			query.columns = append(query.columns, column)
		}
		extra := []string{definition.RouteKey}
		for _, name := range plan.EagerLoad {
			relation, exists := definition.relation(name)
			if !exists {
				continue
			}
			if relation.Kind == BelongsTo {
				extra = append(extra, relation.ForeignKey)
			} else {
				extra = append(extra, relation.OwnerKey)
			}
		}
		for _, column := range extra {
			if contains(query.columns, column) {
				continue
			}
			if err := known(column); err != nil {
				return selectQuery{}, nil, err
			}
			query.columns = append(query.columns, column)
			hidden = append(hidden, column)
		}
	}

	for _, predicate := range plan.Predicates {
		if err := known(predicate.Column); err != nil {
			return selectQuery{}, nil, err
		}
		switch predicate.Operator {
		case planner.OpEquals:
			query.addWhere(quoteIdent(predicate.Column)+" = ?", predicate.Value)
		default:
			query.addWhere(
				quoteIdent(predicate.Column)+" LIKE ?",
				"%"+predicate.Value+"%",
			)
		}
	}

	for _, application := range plan.Scopes {
		scope, exists := definition.scope(application.Name)
		if !exists {
			return selectQuery{}, nil, fmt.Errorf(
				"scope %s is not defined for %s",
				application.Name, definition.Type,
			)
		}
		params := make([]interface{}, strings.Count(scope.Clause, "?"))
		for i := range params {
			params[i] = application.Value
		}
		query.addWhere("("+scope.Clause+")", params...)
	}

	sorted := false
	for _, ordering := range plan.Order {
		if err := known(ordering.Column); err != nil {
			return selectQuery{}, nil, err
		}
		direction := "ASC"
		if ordering.Direction == jsonapi.Descending {
			direction = "DESC"
		}
		query.order = append(
			query.order, quoteIdent(ordering.Column)+" "+direction,
		)
		if ordering.Column == definition.RouteKey {
			sorted = true
		}
	}
	// Stable pages
	if !sorted {
		query.order = append(
			query.order, quoteIdent(definition.RouteKey)+" ASC",
		)
	}

	if plan.Page.Size > 0 {
		query.limit = plan.Page.Limit()
		query.offset = plan.Page.Offset()
	}

	return query, hidden, nil
}

func contains(haystack []string, needle string) bool {
	for _, item := range haystack {
		if item == needle {
			return true
		}
	}
	return false
}
