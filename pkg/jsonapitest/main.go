/*
Package jsonapitest
Assertions for {json:api} responses recorded with net/http/httptest.

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, jsonapitest.NewRequest("GET", "/api/v1/articles/hello", nil))
	jsonapitest.AssertResource(t, recorder, "articles", "hello",
		"https://example.com/api/v1/articles/hello",
		map[string]interface{}{"title": "Hello"})

Every assertion reports through testify and returns whether it passed.
*/
package jsonapitest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"

	"github.com/stretchr/testify/assert"
	"github.com/transifex/jsonapi-server/pkg/jsonapi"
)

type tHelper interface {
	Helper()
}

func helper(t assert.TestingT) {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
}

/*
NewRequest
Build a request with the {json:api} Accept header. A non-nil body is sent with
the {json:api} Content-Type, strings and byte slices as they are, anything else
marshalled to JSON.
*/
func NewRequest(method, path string, body interface{}) *http.Request {
	var reader io.Reader
	switch value := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(value)
	case []byte:
		reader = bytes.NewReader(value)
	default:
		payload, err := json.Marshal(value)
		if err != nil {
			panic(fmt.Sprintf("jsonapitest: cannot marshal body: %s", err))
		}
		reader = bytes.NewReader(payload)
	}

	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Accept", jsonapi.MediaType)
	if body != nil {
		request.Header.Set("Content-Type", jsonapi.MediaType)
	}
	return request
}

// Decode unmarshals the recorded body into a document
func Decode(t assert.TestingT, recorder *httptest.ResponseRecorder) (jsonapi.Document, bool) {
	helper(t)
	var document jsonapi.Document
	err := json.Unmarshal(recorder.Body.Bytes(), &document)
	return document, assert.NoError(t, err, "body: %s", recorder.Body.String())
}

func decodeErrors(
	t assert.TestingT, recorder *httptest.ResponseRecorder,
) (jsonapi.Error, bool) {
	helper(t)
	var result jsonapi.Error
	if !assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result),
		"body: %s", recorder.Body.String()) {
		return result, false
	}
	return result, assert.NotEmpty(t, result.Errors,
		"Error objects MUST be returned as an array keyed by errors in the "+
			"top level of a JSON:API document: %s", recorder.Body.String())
}

/*
AssertError
Check the body is an error document whose items all carry a title and a
detail. Non-empty title, detail and status must match at least one item, status
must also be the response's status code.
*/
func AssertError(
	t assert.TestingT,
	recorder *httptest.ResponseRecorder,
	title, detail, status string,
) bool {
	helper(t)
	document, ok := decodeErrors(t, recorder)
	if !ok {
		return false
	}
	for _, item := range document.Errors {
		ok = assert.NotEmpty(t, item.Title, "error without title") && ok
		ok = assert.NotEmpty(t, item.Detail, "error without detail") && ok
	}

	matches := func(get func(jsonapi.ErrorItem) string, expected string) bool {
		if expected == "" {
			return true
		}
		for _, item := range document.Errors {
			if get(item) == expected {
				return true
			}
		}
		return assert.Fail(t, fmt.Sprintf(
			"no error has '%s' in %s", expected, recorder.Body.String(),
		))
	}
	ok = matches(func(item jsonapi.ErrorItem) string { return item.Title }, title) && ok
	ok = matches(func(item jsonapi.ErrorItem) string { return item.Detail }, detail) && ok
	ok = matches(func(item jsonapi.ErrorItem) string { return item.Status }, status) && ok
	if status != "" {
		ok = assert.Equal(t, status, strconv.Itoa(recorder.Code)) && ok
	}
	return ok
}

/*
AssertValidationErrors
Check the response is a 422 {json:api} document with an error pointing at
attribute, see jsonapi.ErrorPointer for how attribute names map to pointers.
*/
func AssertValidationErrors(
	t assert.TestingT, recorder *httptest.ResponseRecorder, attribute string,
) bool {
	helper(t)
	document, ok := decodeErrors(t, recorder)
	if !ok {
		return false
	}
	pointer := jsonapi.ErrorPointer(attribute)
	found := false
	for _, item := range document.Errors {
		ok = assert.NotEmpty(t, item.Title, "error without title") && ok
		ok = assert.NotEmpty(t, item.Detail, "error without detail") && ok
		if assert.NotNil(t, item.Source, "error without source") {
			found = found || item.Source.Pointer == pointer
		} else {
			ok = false
		}
	}
	if !found {
		ok = assert.Fail(t, fmt.Sprintf(
			"Failed to find a JSON:API validation error for key: '%s' in %s",
			attribute, recorder.Body.String(),
		))
	}
	ok = assert.Equal(t, jsonapi.MediaType,
		recorder.Header().Get("Content-Type")) && ok
	return assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code) && ok
}

// Values are compared by their JSON rendering, so 2 equals 2.0
func assertJSONValue(
	t assert.TestingT, expected, actual interface{}, name string,
) bool {
	helper(t)
	left, err := json.Marshal(expected)
	if !assert.NoError(t, err) {
		return false
	}
	right, err := json.Marshal(actual)
	if !assert.NoError(t, err) {
		return false
	}
	return assert.JSONEq(t, string(left), string(right), name)
}

/*
AssertResource
Check the primary data is the resource (type, id) with 'links.self' equal to
selfURL and at least the given attributes. A 201 response must also point its
Location header at selfURL.
*/
func AssertResource(
	t assert.TestingT,
	recorder *httptest.ResponseRecorder,
	resourceType, id, selfURL string,
	attributes map[string]interface{},
) bool {
	helper(t)
	document, ok := Decode(t, recorder)
	if !ok {
		return false
	}
	resource, ok := document.Single()
	if !assert.True(t, ok, "expected a single resource: %s",
		recorder.Body.String()) {
		return false
	}

	ok = assert.Equal(t, resourceType, resource.Type)
	ok = assert.Equal(t, id, resource.Id) && ok
	if assert.NotNil(t, resource.Links, "resource without links") {
		ok = assert.Equal(t, selfURL, resource.Links.Self) && ok
	} else {
		ok = false
	}
	for name, expected := range attributes {
		actual, exists := resource.Attributes[name]
		if !assert.True(t, exists, "attribute '%s' is missing", name) {
			ok = false
			continue
		}
		ok = assertJSONValue(t, expected, actual, name) && ok
	}

	if recorder.Code == http.StatusCreated {
		ok = assert.Equal(t, selfURL, recorder.Header().Get("Location")) && ok
	}
	return ok
}

// ResourceRef is a resource expected in a collection
type ResourceRef struct {
	Type string
	Id   string
	Self string
}

/*
AssertResourceCollection
Check every primary resource carries the attribute keys and every expected
resource is part of the primary data with its 'links.self'.
*/
func AssertResourceCollection(
	t assert.TestingT,
	recorder *httptest.ResponseRecorder,
	resources []ResourceRef,
	attributeKeys []string,
) bool {
	helper(t)
	document, ok := Decode(t, recorder)
	if !ok {
		return false
	}
	if !assert.True(t, document.Plural, "expected a collection: %s",
		recorder.Body.String()) {
		return false
	}

	for _, resource := range document.Data {
		for _, key := range attributeKeys {
			_, exists := resource.Attributes[key]
			ok = assert.True(t, exists,
				"attribute '%s' is missing from %s:%s",
				key, resource.Type, resource.Id) && ok
		}
	}
	for _, expected := range resources {
		found := false
		for _, resource := range document.Data {
			if resource.Type == expected.Type && resource.Id == expected.Id &&
				resource.Links != nil && resource.Links.Self == expected.Self {
				found = true
				break
			}
		}
		ok = assert.True(t, found, "%s:%s (%s) is not part of %s",
			expected.Type, expected.Id, expected.Self,
			recorder.Body.String()) && ok
	}
	return ok
}

/*
AssertRelationshipLinks
Check the primary resource, served at selfURL, links every relation to
<selfURL>/relationships/<relation> and <selfURL>/<relation>.
*/
func AssertRelationshipLinks(
	t assert.TestingT,
	recorder *httptest.ResponseRecorder,
	selfURL string,
	relations []string,
) bool {
	helper(t)
	document, ok := Decode(t, recorder)
	if !ok {
		return false
	}
	resource, ok := document.Single()
	if !assert.True(t, ok, "expected a single resource: %s",
		recorder.Body.String()) {
		return false
	}

	for _, relation := range relations {
		relationship, exists := resource.Relationships[relation]
		if !assert.True(t, exists && relationship.Links != nil,
			"relationship '%s' has no links", relation) {
			ok = false
			continue
		}
		ok = assert.Equal(t, jsonapi.Links{
			Self:    fmt.Sprintf("%s/relationships/%s", selfURL, relation),
			Related: fmt.Sprintf("%s/%s", selfURL, relation),
		}, *relationship.Links) && ok
	}
	return ok
}
