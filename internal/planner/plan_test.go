package planner

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/transifex/jsonapi-server/pkg/jsonapi"
)

var articlesSchema = SchemaInfo{
	Type:          "articles",
	Columns:       []string{"id", "title", "body", "slug", "created_at", "age"},
	Scopes:        []string{"published"},
	Relationships: []string{"category", "comments"},
}

var allowEverything = jsonapi.AllowList{
	Type:     "articles",
	Sorts:    []string{"title", "created-at", "status", "missing"},
	Filters:  []string{"title", "status", "published", "age"},
	Includes: []string{"category", "author"},
}

func parse(t *testing.T, raw map[string]string) jsonapi.QueryIntent {
	t.Helper()
	intent, err := jsonapi.ParseQuery(raw, allowEverything)
	require.NoError(t, err)
	return intent
}

func TestPlanOrdering(t *testing.T) {
	plan, err := Plan(
		parse(t, map[string]string{"sort": "-created-at,title"}),
		articlesSchema, "slug",
	)
	require.NoError(t, err)
	assert.Equal(t, []Ordering{
		{Column: "created_at", Direction: jsonapi.Descending},
		{Column: "title", Direction: jsonapi.Ascending},
	}, plan.Order)
	assert.Equal(t, "articles", plan.Type)
	assert.Equal(t, "slug", plan.RouteKey)
}

func TestPlanRejectsUnknownFields(t *testing.T) {
	testCases := []struct {
		name      string
		raw       map[string]string
		reason    jsonapi.QueryErrorReason
		parameter string
		detail    string
	}{
		{
			"sort",
			map[string]string{"sort": "missing"},
			jsonapi.UnknownField,
			"sort",
			"The 'missing' field does not exist",
		},
		{
			"filter",
			map[string]string{"filter[status]": "active"},
			jsonapi.UnknownField,
			"filter[status]",
			"The 'status' field does not exist",
		},
		{
			"include",
			map[string]string{"include": "author"},
			jsonapi.UnknownRelationship,
			"include",
			"The 'author' relationship does not exist",
		},
		{
			"fields",
			map[string]string{"fields[articles]": "title,summary"},
			jsonapi.UnknownField,
			"fields[articles]",
			"The 'summary' field does not exist",
		},
	}

	for _, testCase := range testCases {
		_, err := Plan(parse(t, testCase.raw), articlesSchema, "slug")
		var invalid *jsonapi.InvalidQueryError
		if !errors.As(err, &invalid) {
			t.Errorf("%s: got %v, expected an InvalidQueryError",
				testCase.name, err)
			continue
		}
		assert.Equal(t, testCase.reason, invalid.Reason, testCase.name)
		assert.Equal(t, testCase.parameter, invalid.Parameter, testCase.name)
		assert.Equal(t, testCase.detail, invalid.Detail, testCase.name)
	}
}

func TestPlanFilters(t *testing.T) {
	intent := parse(t, map[string]string{
		"filter[title]":     "hello",
		"filter[published]": "1",
		"filter[age]":       "3",
	})

	plan, err := Plan(intent, articlesSchema, "slug")
	require.NoError(t, err)
	assert.Equal(t, []Predicate{
		{Column: "age", Operator: OpLike, Value: "3"},
		{Column: "title", Operator: OpLike, Value: "hello"},
	}, plan.Predicates)
	assert.Equal(t, []ScopeApplication{{Name: "published", Value: "1"}},
		plan.Scopes)

	plan, err = Plan(intent, articlesSchema, "slug", WithFilterMode(FilterExact))
	require.NoError(t, err)
	assert.Equal(t, OpEquals, plan.Predicates[0].Operator)
	assert.Equal(t, OpEquals, plan.Predicates[1].Operator)
}

func TestPlanIsDeterministic(t *testing.T) {
	intent := parse(t, map[string]string{
		"filter[title]": "a",
		"filter[age]":   "1",
		"sort":          "title",
	})
	first, err := Plan(intent, articlesSchema, "slug")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Plan(intent, articlesSchema, "slug")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestPlanIncludes(t *testing.T) {
	plan, err := Plan(
		parse(t, map[string]string{"include": "category"}),
		articlesSchema, "slug",
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"category"}, plan.EagerLoad)

	// Without declared relationships the allow-list is trusted
	schema := articlesSchema
	schema.Relationships = nil
	plan, err = Plan(
		parse(t, map[string]string{"include": "author"}), schema, "slug",
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"author"}, plan.EagerLoad)
}

func TestPlanSparseFields(t *testing.T) {
	schema := SchemaInfo{
		Type:    "articles",
		Columns: []string{"title", "body", "slug"},
	}

	plan, err := Plan(
		parse(t, map[string]string{"fields[articles]": "title"}), schema, "slug",
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "slug"}, plan.Columns)

	plan, err = Plan(
		parse(t, map[string]string{"fields[articles]": "slug,title"}),
		schema, "slug",
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"slug", "title"}, plan.Columns)

	plan, err = Plan(
		parse(t, map[string]string{"fields[articles]": ""}), schema, "slug",
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"slug"}, plan.Columns)

	// Other types do not restrict the primary projection
	plan, err = Plan(
		parse(t, map[string]string{"fields[categories]": "name"}),
		schema, "slug",
	)
	require.NoError(t, err)
	assert.Nil(t, plan.Columns)
}

func TestPlanPagination(t *testing.T) {
	plan, err := Plan(
		parse(t, map[string]string{"page[number]": "2", "page[size]": "5"}),
		articlesSchema, "slug",
	)
	require.NoError(t, err)
	assert.Equal(t, Window{Number: 2, Size: 5}, plan.Page)
	assert.Equal(t, 5, plan.Page.Offset())
	assert.Equal(t, 5, plan.Page.Limit())

	plan, err = Plan(
		parse(t, map[string]string{"page[size]": "100000"}),
		articlesSchema, "slug",
	)
	require.NoError(t, err)
	assert.Equal(t, 100000, plan.Page.Size)
}

func TestWindowOffsetSaturates(t *testing.T) {
	testCases := []struct {
		window   Window
		expected int
	}{
		{Window{Number: 1, Size: 15}, 0},
		{Window{Number: 3, Size: 15}, 30},
		{Window{Number: 1 << 62, Size: 15}, math.MaxInt},
		{Window{Number: 2, Size: math.MaxInt}, math.MaxInt},
		{Window{Number: 3, Size: math.MaxInt}, math.MaxInt},
	}
	for _, testCase := range testCases {
		result := testCase.window.Offset()
		if result != testCase.expected {
			t.Errorf("%+v.Offset() = %d, expected %d",
				testCase.window, result, testCase.expected)
		}
	}
}

func TestHasScopeNormalizes(t *testing.T) {
	schema := SchemaInfo{Scopes: []string{"is-draft"}}
	assert.True(t, schema.HasScope("is_draft"))
	assert.False(t, schema.HasScope("draft"))
}
