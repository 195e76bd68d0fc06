package document

import (
	"encoding/json"
	"math"
	"net/url"
	"strconv"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/transifex/jsonapi-server/pkg/jsonapi"
)

var testRoutes = Routes{BaseURL: "https://example.com", Prefix: "api/v1"}

var testAllowList = jsonapi.AllowList{
	Type:     "articles",
	Sorts:    []string{"title"},
	Includes: []string{"category", "comments"},
}

func parse(t *testing.T, raw map[string]string) jsonapi.QueryIntent {
	t.Helper()
	intent, err := jsonapi.ParseQuery(raw, testAllowList)
	require.NoError(t, err)
	return intent
}

func assertGolden(t *testing.T, name string, document jsonapi.Document) {
	t.Helper()
	body, err := json.MarshalIndent(document, "", "  ")
	require.NoError(t, err)
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, body)
}

func getTestCategory() ResourceView {
	return ResourceView{
		Type:       "categories",
		ID:         int64(2),
		RouteKey:   "id",
		Attributes: map[string]interface{}{"name": "News"},
	}
}

func getTestArticle(slug string) ResourceView {
	category := getTestCategory()
	return ResourceView{
		Type:     "articles",
		ID:       slug,
		RouteKey: "slug",
		Attributes: map[string]interface{}{
			"title": "Hello",
			"slug":  slug,
		},
		Relations: map[string]Relation{
			"category": ToOne(&category),
		},
		RelationshipLinks: []string{"category", "comments"},
	}
}

func TestEmptyCollection(t *testing.T) {
	document := BuildMany(testRoutes, parse(t, map[string]string{
		"include": "category",
	}), nil, "")
	assertGolden(t, "empty_collection", document)

	body, err := json.Marshal(document)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data": []}`, string(body))
}

func TestSingleWithInclude(t *testing.T) {
	document := BuildSingle(
		testRoutes,
		parse(t, map[string]string{"include": "category"}),
		getTestArticle("hello-world"),
	)
	assertGolden(t, "article_with_category", document)
}

func TestNotLoadedRelationKeepsLinks(t *testing.T) {
	article := getTestArticle("hello-world")
	article.Relations = map[string]Relation{"category": Unloaded()}

	document := BuildSingle(
		testRoutes,
		parse(t, map[string]string{"include": "category"}),
		article,
	)

	resource, ok := document.Single()
	require.True(t, ok)
	category := resource.Relationships["category"]
	assert.Nil(t, category.Data)
	assert.Equal(t, &jsonapi.Links{
		Self: "https://example.com/api/v1/articles/hello-world/" +
			"relationships/category",
		Related: "https://example.com/api/v1/articles/hello-world/category",
	}, category.Links)
	assert.Empty(t, document.Included)
}

func TestRelationDataOnlyWhenIncluded(t *testing.T) {
	document := BuildSingle(
		testRoutes, parse(t, map[string]string{}), getTestArticle("a"),
	)
	resource, _ := document.Single()
	assert.Nil(t, resource.Relationships["category"].Data)
	assert.NotNil(t, resource.Relationships["category"].Links)
	assert.Empty(t, document.Included)

	// Loaded and included but without declared links
	article := getTestArticle("a")
	article.RelationshipLinks = nil
	article.Relations["comments"] = ToMany(nil)
	document = BuildSingle(
		testRoutes,
		parse(t, map[string]string{"include": "category,comments"}),
		article,
	)
	resource, _ = document.Single()
	assert.Nil(t, resource.Relationships["category"].Links)
	assert.Equal(t, "2", resource.Relationships["category"].Data.One.Id)
	assert.True(t, resource.Relationships["comments"].Data.Plural)
	assert.Empty(t, resource.Relationships["comments"].Data.Many)
}

func TestEmptyToOneRendersNull(t *testing.T) {
	article := getTestArticle("a")
	article.Relations["category"] = ToOne(nil)
	document := BuildSingle(
		testRoutes, parse(t, map[string]string{"include": "category"}), article,
	)

	body, err := json.Marshal(document)
	require.NoError(t, err)
	var payload struct {
		Data struct {
			Relationships map[string]map[string]json.RawMessage
		}
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, "null",
		string(payload.Data.Relationships["category"]["data"]))
}

func TestSparseFieldsHideRouteKey(t *testing.T) {
	article := getTestArticle("hello-world")

	document := BuildSingle(testRoutes, parse(t, map[string]string{
		"fields[articles]": "title",
	}), article)
	resource, _ := document.Single()
	assert.Equal(t, map[string]interface{}{"title": "Hello"}, resource.Attributes)
	assert.Equal(t, "hello-world", resource.Id)

	document = BuildSingle(testRoutes, parse(t, map[string]string{
		"fields[articles]": "title,slug",
	}), article)
	resource, _ = document.Single()
	assert.Equal(t, map[string]interface{}{
		"title": "Hello", "slug": "hello-world",
	}, resource.Attributes)

	document = BuildSingle(testRoutes, parse(t, map[string]string{}), article)
	resource, _ = document.Single()
	assert.Len(t, resource.Attributes, 2)
}

func TestIncludedIsDeduplicated(t *testing.T) {
	first := getTestArticle("first")
	second := getTestArticle("second")
	comment := ResourceView{Type: "comments", ID: 10}
	second.Relations["comments"] = ToMany([]ResourceView{comment, comment})

	document := BuildMany(
		testRoutes,
		parse(t, map[string]string{"include": "comments,category"}),
		[]ResourceView{first, second},
		"https://example.com/api/v1/articles",
	)

	require.Len(t, document.Data, 2)
	assert.Equal(t, "first", document.Data[0].Id)
	assert.Equal(t, "second", document.Data[1].Id)

	var included []string
	for _, item := range document.Included {
		included = append(included, item.Type+":"+item.Id)
	}
	assert.Equal(t, []string{"categories:2", "comments:10"}, included)
	assert.Equal(t, "https://example.com/api/v1/articles",
		document.Links.Self)
}

func TestPagination(t *testing.T) {
	intent := parse(t, map[string]string{
		"page[number]": "2",
		"page[size]":   "5",
		"sort":         "title",
	})
	document := NewBuilder(testRoutes, intent).
		Many([]ResourceView{getTestArticle("a")}, "/api/v1/articles?x=1").
		WithPagination(12).
		Build()

	pageNumber := func(link string) string {
		parsed, err := url.Parse(link)
		require.NoError(t, err)
		assert.Equal(t, "/api/v1/articles", parsed.Path)
		assert.Equal(t, "title", parsed.Query().Get("sort"))
		assert.Equal(t, "5", parsed.Query().Get("page[size]"))
		return parsed.Query().Get("page[number]")
	}
	assert.Equal(t, "1", pageNumber(document.Links.First))
	assert.Equal(t, "3", pageNumber(document.Links.Last))
	assert.Equal(t, "1", pageNumber(document.Links.Prev))
	assert.Equal(t, "3", pageNumber(document.Links.Next))
	assert.Equal(t, jsonapi.PageMeta{Number: 2, Size: 5, Total: 12, Last: 3},
		document.Meta["page"])

	// Re-parsing a pagination link restores the same page
	parsed, err := url.Parse(document.Links.Prev)
	require.NoError(t, err)
	again := parse(t, jsonapi.ValuesToMap(parsed.Query()))
	assert.Equal(t, intent.WithPage(1), again)
}

func TestPaginationWithHugePageSize(t *testing.T) {
	intent := parse(t, map[string]string{
		"page[size]": strconv.Itoa(math.MaxInt),
	})
	document := NewBuilder(testRoutes, intent).
		Many([]ResourceView{getTestArticle("a")}, "/api/v1/articles").
		WithPagination(3).
		Build()

	assert.Equal(t,
		jsonapi.PageMeta{Number: 1, Size: math.MaxInt, Total: 3, Last: 1},
		document.Meta["page"])
	assert.Empty(t, document.Links.Next)
}

func TestPaginationOfEmptyCollection(t *testing.T) {
	document := NewBuilder(testRoutes, parse(t, map[string]string{})).
		Many(nil, "/api/v1/articles").
		WithPagination(0).
		Build()

	assert.Empty(t, document.Links.Prev)
	assert.Empty(t, document.Links.Next)
	assert.Equal(t, jsonapi.PageMeta{Number: 1, Size: 15, Total: 0, Last: 1},
		document.Meta["page"])
}

func TestIdentifiers(t *testing.T) {
	category := getTestCategory()
	body, err := json.Marshal(Identifier(&category))
	require.NoError(t, err)
	assert.JSONEq(t, `{"data": {"type": "categories", "id": "2"}}`, string(body))

	body, err = json.Marshal(Identifier(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"data": null}`, string(body))

	body, err = json.Marshal(Identifiers(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"data": []}`, string(body))
}

func TestStringID(t *testing.T) {
	testCases := []struct {
		id       interface{}
		expected string
	}{
		{nil, ""},
		{"abc", "abc"},
		{[]byte("abc"), "abc"},
		{int64(12), "12"},
		{7, "7"},
		{float64(3), "3"},
	}
	for _, testCase := range testCases {
		assert.Equal(t, testCase.expected, StringID(testCase.id))
	}
}

func TestRoutes(t *testing.T) {
	routes := Routes{Prefix: "/api/v1/"}
	assert.Equal(t, "/api/v1/articles", routes.Collection("articles"))
	assert.Equal(t, "/api/v1/articles/a%20b", routes.Self("articles", "a b"))
	assert.Equal(t, jsonapi.Links{
		Self:    "/api/v1/articles/1/relationships/tags",
		Related: "/api/v1/articles/1/tags",
	}, routes.Relationship("articles", "1", "tags"))
}

func TestReservedNamesAreNotAttributes(t *testing.T) {
	category := getTestCategory()
	category.Attributes["id"] = int64(2)
	category.Attributes["type"] = "local"

	document := BuildSingle(testRoutes, parse(t, map[string]string{}), category)
	resource, _ := document.Single()
	assert.Equal(t, map[string]interface{}{"name": "News"}, resource.Attributes)
}
