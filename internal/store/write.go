package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/gosimple/slug"
	"github.com/transifex/jsonapi-server/internal/document"
	"github.com/transifex/jsonapi-server/pkg/jsonapi"
)

/*
Create
Insert a resource. attributes are column values, relationships maps to-one
relation names to the route key of the related resource (nil clears it).
Unknown attributes or relations and missing related resources are reported as
a *jsonapi.ValidationError.
*/
func (s *Store) Create(
	ctx context.Context,
	resourceType string,
	attributes map[string]interface{},
	relationships map[string]*string,
) (document.ResourceView, error) {
	definition, err := s.definition(resourceType)
	if err != nil {
		return document.ResourceView{}, err
	}
	values, err := s.columnValues(ctx, definition, attributes, relationships)
	if err != nil {
		return document.ResourceView{}, err
	}

	if definition.SlugFrom != "" && definition.RouteKey != "id" {
		if _, exists := values[definition.RouteKey]; !exists {
			source, ok := values[definition.SlugFrom].(string)
			if ok && source != "" {
				values[definition.RouteKey] = slug.Make(source)
			}
		}
	}

	names := sortedKeys(values)
	var statement string
	params := make([]interface{}, 0, len(names))
	if len(names) == 0 {
		statement = fmt.Sprintf(
			"INSERT INTO %s DEFAULT VALUES", quoteIdent(definition.Table),
		)
	} else {
		quoted := make([]string, 0, len(names))
		for _, name := range names {
			quoted = append(quoted, quoteIdent(name))
			params = append(params, values[name])
		}
		statement = fmt.Sprintf(
			"INSERT INTO %s (%s) VALUES (%s)",
			quoteIdent(definition.Table),
			strings.Join(quoted, ", "),
			strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", "),
		)
	}

	result, err := s.db.ExecContext(ctx, statement, params...)
	if err != nil {
		return document.ResourceView{}, fmt.Errorf(
			"could not create %s: %w", resourceType, err,
		)
	}
	rowID, err := result.LastInsertId()
	if err != nil {
		return document.ResourceView{}, err
	}
	return s.findByRowID(ctx, definition, rowID)
}

// Update changes the given attributes and to-one relations of the resource
// whose route key equals id, see Create
func (s *Store) Update(
	ctx context.Context,
	resourceType string,
	id string,
	attributes map[string]interface{},
	relationships map[string]*string,
) (document.ResourceView, error) {
	definition, err := s.definition(resourceType)
	if err != nil {
		return document.ResourceView{}, err
	}
	rowID, err := s.rowID(ctx, definition, id)
	if err != nil {
		return document.ResourceView{}, err
	}
	values, err := s.columnValues(ctx, definition, attributes, relationships)
	if err != nil {
		return document.ResourceView{}, err
	}

	names := sortedKeys(values)
	if len(names) > 0 {
		assignments := make([]string, 0, len(names))
		params := make([]interface{}, 0, len(names)+1)
		for _, name := range names {
			assignments = append(assignments, quoteIdent(name)+" = ?")
			params = append(params, values[name])
		}
		params = append(params, rowID)
		_, err = s.db.ExecContext(ctx, fmt.Sprintf(
			"UPDATE %s SET %s WHERE rowid = ?",
			quoteIdent(definition.Table), strings.Join(assignments, ", "),
		), params...)
		if err != nil {
			return document.ResourceView{}, fmt.Errorf(
				"could not update %s %s: %w", resourceType, id, err,
			)
		}
	}
	return s.findByRowID(ctx, definition, rowID)
}

func (s *Store) columnValues(
	ctx context.Context,
	definition ResourceDefinition,
	attributes map[string]interface{},
	relationships map[string]*string,
) (map[string]interface{}, error) {
	columns, err := s.columns(ctx, definition.Table)
	if err != nil {
		return nil, err
	}
	invalid := jsonapi.NewValidationError()
	values := make(map[string]interface{}, len(attributes)+len(relationships))

	for _, name := range sortedKeys(attributes) {
		column := jsonapi.Normalize(name)
		if !contains(columns, column) {
			invalid.Add(name, fmt.Sprintf("The %s field is not allowed.", name))
			continue
		}
		switch attributes[name].(type) {
		case map[string]interface{}, []interface{}:
			invalid.Add(name, fmt.Sprintf("The %s field must be a scalar.", name))
			continue
		}
		values[column] = attributes[name]
	}

	relationNames := make([]string, 0, len(relationships))
	for name := range relationships {
		relationNames = append(relationNames, name)
	}
	sort.Strings(relationNames)
	for _, name := range relationNames {
		field := "relationships." + name
		relation, exists := definition.relation(name)
		if !exists || relation.Kind != BelongsTo {
			invalid.Add(field, fmt.Sprintf("The selected %s is invalid.", name))
			continue
		}
		id := relationships[name]
		if id == nil {
			values[relation.ForeignKey] = nil
			continue
		}
		key, err := s.ownerKey(ctx, relation, *id)
		if err == sql.ErrNoRows {
			invalid.Add(field, fmt.Sprintf("The selected %s is invalid.", name))
			continue
		}
		if err != nil {
			return nil, err
		}
		values[relation.ForeignKey] = key
	}

	if !invalid.Empty() {
		return nil, invalid
	}
	return values, nil
}

// Owner key value of the related resource whose route key equals id
func (s *Store) ownerKey(
	ctx context.Context, relation RelationDefinition, id string,
) (interface{}, error) {
	target, err := s.definition(relation.Target)
	if err != nil {
		return nil, err
	}
	var key interface{}
	err = s.db.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = ?",
		quoteIdent(relation.OwnerKey),
		quoteIdent(target.Table),
		quoteIdent(target.RouteKey),
	), id).Scan(&key)
	return key, err
}

func sortedKeys(values map[string]interface{}) []string {
	result := make([]string, 0, len(values))
	for key := range values {
		result = append(result, key)
	}
	sort.Strings(result)
	return result
}
