package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/transifex/jsonapi-server/internal/document"
	"github.com/transifex/jsonapi-server/internal/planner"
	"github.com/transifex/jsonapi-server/pkg/jsonapi"
	"github.com/transifex/jsonapi-server/pkg/worker_pool"
)

// Page is one page of a listing plus the number of rows across all pages
type Page struct {
	Views []document.ResourceView
	Total int
}

type row map[string]interface{}

func (s *Store) query(
	ctx context.Context, query compiled,
) ([]row, error) {
	rows, err := s.db.QueryContext(ctx, query.sql, query.params...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var result []row
	for rows.Next() {
		values := make([]interface{}, len(names))
		pointers := make([]interface{}, len(names))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}
		item := make(row, len(names))
		for i, name := range names {
			if bytes, ok := values[i].([]byte); ok {
				item[name] = string(bytes)
			} else {
				item[name] = values[i]
			}
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

func (s *Store) count(ctx context.Context, query compiled) (int, error) {
	var total int
	err := s.db.QueryRowContext(ctx, query.sql, query.params...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}
	return total, nil
}

func makeView(
	definition ResourceDefinition, item row, hidden []string,
) document.ResourceView {
	attributes := make(map[string]interface{}, len(item))
	for name, value := range item {
		if !contains(hidden, name) {
			attributes[name] = value
		}
	}
	return document.ResourceView{
		Type:              definition.Type,
		ID:                item[definition.RouteKey],
		RouteKey:          definition.RouteKey,
		Attributes:        attributes,
		RelationshipLinks: definition.RelationshipLinks,
	}
}

// List runs a fetch plan, the page window of the plan applies
func (s *Store) List(ctx context.Context, plan planner.FetchPlan) (Page, error) {
	definition, err := s.definition(plan.Type)
	if err != nil {
		return Page{}, err
	}
	columns, err := s.columns(ctx, definition.Table)
	if err != nil {
		return Page{}, err
	}
	query, hidden, err := compilePlan(definition, plan, columns)
	if err != nil {
		return Page{}, err
	}

	total, err := s.count(ctx, query.compileCount())
	if err != nil {
		return Page{}, err
	}
	rows, err := s.query(ctx, query.compile())
	if err != nil {
		return Page{}, err
	}

	views, err := s.load(ctx, definition, plan.EagerLoad, rows, hidden)
	if err != nil {
		return Page{}, err
	}
	return Page{Views: views, Total: total}, nil
}

/*
Find
Fetch the resource whose route key equals id. Ordering, filters and the page
window of the plan are ignored, projection and eager loads apply.
*/
func (s *Store) Find(
	ctx context.Context, plan planner.FetchPlan, id string,
) (document.ResourceView, error) {
	definition, err := s.definition(plan.Type)
	if err != nil {
		return document.ResourceView{}, err
	}
	columns, err := s.columns(ctx, definition.Table)
	if err != nil {
		return document.ResourceView{}, err
	}
	plan.Order = nil
	plan.Predicates = nil
	plan.Scopes = nil
	plan.Page = planner.Window{}
	query, hidden, err := compilePlan(definition, plan, columns)
	if err != nil {
		return document.ResourceView{}, err
	}
	query.addWhere(quoteIdent(definition.RouteKey)+" = ?", id)

	rows, err := s.query(ctx, query.compile())
	if err != nil {
		return document.ResourceView{}, err
	}
	if len(rows) == 0 {
		return document.ResourceView{}, &jsonapi.NotFoundError{
			Type: definition.Type, Id: id,
		}
	}
	views, err := s.load(ctx, definition, plan.EagerLoad, rows[:1], hidden)
	if err != nil {
		return document.ResourceView{}, err
	}
	return views[0], nil
}

// Related loads one relation of the resource whose route key equals id
func (s *Store) Related(
	ctx context.Context, resourceType, id, relation string,
) (document.Relation, error) {
	definition, err := s.definition(resourceType)
	if err != nil {
		return document.Relation{}, err
	}
	if _, exists := definition.relation(relation); !exists {
		return document.Relation{}, fmt.Errorf(
			"relation '%s' of '%s' is not defined", relation, resourceType,
		)
	}
	view, err := s.Find(ctx, planner.FetchPlan{
		Type:      resourceType,
		RouteKey:  definition.RouteKey,
		EagerLoad: []string{relation},
	}, id)
	if err != nil {
		return document.Relation{}, err
	}
	return view.Relation(relation), nil
}

type loadTask struct {
	store      *Store
	ctx        context.Context
	definition ResourceDefinition
	relation   RelationDefinition
	rows       []row
	result     *loadResult
}

type loadResult struct {
	relations []document.Relation
	err       error
}

func (task loadTask) Run(send func(string), abort func()) {
	relations, err := task.store.loadRelation(
		task.ctx, task.relation, task.rows,
	)
	if err != nil {
		task.result.err = fmt.Errorf(
			"could not load '%s' of '%s': %w",
			task.relation.Name, task.definition.Type, err,
		)
		abort()
		return
	}
	task.result.relations = relations
	send(fmt.Sprintf("loaded %s", task.relation.Name))
}

/*
load
Build views out of rows and eager load the requested relations, one worker
pool task per relation. Relations are attached in the requested order whatever
order the tasks finish in.
*/
func (s *Store) load(
	ctx context.Context,
	definition ResourceDefinition,
	includes []string,
	rows []row,
	hidden []string,
) ([]document.ResourceView, error) {
	views := make([]document.ResourceView, 0, len(rows))
	for _, item := range rows {
		views = append(views, makeView(definition, item, hidden))
	}

	var relations []RelationDefinition
	for _, name := range includes {
		relation, exists := definition.relation(name)
		if exists {
			relations = append(relations, relation)
		}
	}
	if len(relations) == 0 || len(rows) == 0 {
		return views, nil
	}

	results := make([]loadResult, len(relations))
	pool := worker_pool.New(s.Workers, len(relations))
	for i, relation := range relations {
		pool.Add(loadTask{
			store:      s,
			ctx:        ctx,
			definition: definition,
			relation:   relation,
			rows:       rows,
			result:     &results[i],
		})
	}
	pool.Start()
	<-pool.Wait()

	for i, relation := range relations {
		if results[i].err != nil {
			return nil, results[i].err
		}
		for j := range views {
			if views[j].Relations == nil {
				views[j].Relations = make(map[string]document.Relation)
			}
			views[j].Relations[relation.Name] = results[i].relations[j]
		}
	}
	if pool.IsAborted() {
		return nil, fmt.Errorf("eager loading of '%s' aborted", definition.Type)
	}
	return views, nil
}

// One relation value per row, in row order
func (s *Store) loadRelation(
	ctx context.Context, relation RelationDefinition, rows []row,
) ([]document.Relation, error) {
	target, err := s.definition(relation.Target)
	if err != nil {
		return nil, err
	}

	var lookupColumn, ownColumn string
	if relation.Kind == BelongsTo {
		lookupColumn, ownColumn = relation.OwnerKey, relation.ForeignKey
	} else {
		lookupColumn, ownColumn = relation.ForeignKey, relation.OwnerKey
	}

	var keys []interface{}
	seen := make(map[string]bool)
	for _, item := range rows {
		value, exists := item[ownColumn]
		if !exists {
			return nil, fmt.Errorf("column %s was not fetched", ownColumn)
		}
		if value == nil {
			continue
		}
		key := document.StringID(value)
		if !seen[key] {
			seen[key] = true
			keys = append(keys, value)
		}
	}

	grouped := make(map[string][]document.ResourceView)
	if len(keys) > 0 {
		query := selectQuery{table: target.Table}
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(keys)), ", ")
		query.addWhere(
			fmt.Sprintf("%s IN (%s)", quoteIdent(lookupColumn), placeholders),
			keys...,
		)
		query.order = []string{quoteIdent(target.RouteKey) + " ASC"}
		related, err := s.query(ctx, query.compile())
		if err != nil {
			return nil, err
		}
		for _, item := range related {
			key := document.StringID(item[lookupColumn])
			grouped[key] = append(grouped[key], makeView(target, item, nil))
		}
	}

	result := make([]document.Relation, 0, len(rows))
	for _, item := range rows {
		views := grouped[document.StringID(item[ownColumn])]
		if item[ownColumn] == nil {
			views = nil
		}
		if relation.Kind == HasMany {
			result = append(result, document.ToMany(
				append([]document.ResourceView{}, views...),
			))
			continue
		}
		if len(views) == 0 {
			result = append(result, document.ToOne(nil))
		} else {
			view := views[0]
			result = append(result, document.ToOne(&view))
		}
	}
	return result, nil
}

// rowid of the resource whose route key equals id
func (s *Store) rowID(
	ctx context.Context, definition ResourceDefinition, id string,
) (int64, error) {
	var rowID int64
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT rowid FROM %s WHERE %s = ?",
		quoteIdent(definition.Table), quoteIdent(definition.RouteKey),
	), id).Scan(&rowID)
	if err == sql.ErrNoRows {
		return 0, &jsonapi.NotFoundError{Type: definition.Type, Id: id}
	}
	return rowID, err
}

func (s *Store) findByRowID(
	ctx context.Context, definition ResourceDefinition, rowID int64,
) (document.ResourceView, error) {
	query := selectQuery{table: definition.Table}
	query.addWhere("rowid = ?", rowID)
	rows, err := s.query(ctx, query.compile())
	if err != nil {
		return document.ResourceView{}, err
	}
	if len(rows) == 0 {
		return document.ResourceView{}, fmt.Errorf(
			"row %d of %s disappeared", rowID, definition.Table,
		)
	}
	return makeView(definition, rows[0], nil), nil
}
