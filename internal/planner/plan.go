/*
Package planner checks a parsed query against what the data store actually
holds and turns it into a FetchPlan the store can execute as is.
*/
package planner

import (
	"fmt"
	"math"

	"github.com/transifex/jsonapi-server/pkg/jsonapi"
)

type Operator string

const (
	OpLike   Operator = "LIKE"
	OpEquals Operator = "="
)

type Ordering struct {
	Column    string
	Direction jsonapi.Direction
}

type Predicate struct {
	Column   string
	Operator Operator
	Value    string
}

// ScopeApplication is a named query modifier called with the filter's value
type ScopeApplication struct {
	Name  string
	Value string
}

type Window struct {
	Number int
	Size   int
}

// Offset saturates at math.MaxInt, a page past it is empty
func (w Window) Offset() int {
	if w.Number < 1 || w.Size < 1 {
		return 0
	}
	if w.Number-1 > math.MaxInt/w.Size {
		return math.MaxInt
	}
	return (w.Number - 1) * w.Size
}

func (w Window) Limit() int {
	return w.Size
}

/*
FetchPlan
Ordering, predicates, scopes, eager loads, projection and page window of one
request. A nil Columns means every column.
*/
type FetchPlan struct {
	Type       string
	RouteKey   string
	Order      []Ordering
	Predicates []Predicate
	Scopes     []ScopeApplication
	EagerLoad  []string
	Columns    []string
	Page       Window
}

type FilterMode int

const (
	// Case-insensitive 'LIKE %value%'
	FilterSubstring FilterMode = iota
	FilterExact
)

type options struct {
	filterMode FilterMode
}

type Option func(*options)

func WithFilterMode(mode FilterMode) Option {
	return func(o *options) {
		o.filterMode = mode
	}
}

/*
Plan
Validate intent against schema and build the fetch plan. Allow-list membership
was already checked by jsonapi.ParseQuery, here every sort, filter, include and
sparse field must also exist in the schema. Failures are *jsonapi.InvalidQueryError
with an UnknownField or UnknownRelationship reason.
*/
func Plan(
	intent jsonapi.QueryIntent,
	schema SchemaInfo,
	routeKey string,
	opts ...Option,
) (FetchPlan, error) {
	o := options{filterMode: FilterSubstring}
	for _, opt := range opts {
		opt(&o)
	}

	page := intent.Page()
	plan := FetchPlan{
		Type:     schema.Type,
		RouteKey: routeKey,
		Page:     Window{Number: page.Number, Size: page.Size},
	}

	for _, item := range intent.Sort() {
		if !schema.HasColumn(item.Field) {
			return FetchPlan{}, unknownField("sort", item.Field)
		}
		plan.Order = append(plan.Order, Ordering{
			Column:    item.Field,
			Direction: item.Direction,
		})
	}

	filters := intent.Filters()
	for _, name := range intent.FilterNames() {
		value := filters[name]
		switch {
		case schema.HasScope(name):
			plan.Scopes = append(plan.Scopes, ScopeApplication{
				Name: name, Value: value,
			})
		case schema.HasColumn(name):
			predicate := Predicate{Column: name, Operator: OpLike, Value: value}
			if o.filterMode == FilterExact {
				predicate.Operator = OpEquals
			}
			plan.Predicates = append(plan.Predicates, predicate)
		default:
			return FetchPlan{}, unknownField(jsonapi.FilterKey(name), name)
		}
	}

	for _, include := range intent.Includes() {
		if !schema.HasRelationship(include) {
			return FetchPlan{}, &jsonapi.InvalidQueryError{
				Reason:    jsonapi.UnknownRelationship,
				Parameter: "include",
				Field:     include,
				Detail: fmt.Sprintf(
					"The '%s' relationship does not exist", include,
				),
			}
		}
		plan.EagerLoad = append(plan.EagerLoad, include)
	}

	if fields, restricted := intent.Fields(schema.Type); restricted {
		columns := make([]string, 0, len(fields)+1)
		for _, field := range fields {
			if !schema.HasColumn(field) {
				return FetchPlan{}, unknownField(
					fmt.Sprintf("fields[%s]", schema.Type), field,
				)
			}
			if !contains(columns, field) {
				columns = append(columns, field)
			}
		}
		if routeKey != "" && !contains(columns, routeKey) {
			columns = append(columns, routeKey)
		}
		plan.Columns = columns
	}

	return plan, nil
}

func unknownField(parameter, field string) *jsonapi.InvalidQueryError {
	return &jsonapi.InvalidQueryError{
		Reason:    jsonapi.UnknownField,
		Parameter: parameter,
		Field:     field,
		Detail:    fmt.Sprintf("The '%s' field does not exist", field),
	}
}
