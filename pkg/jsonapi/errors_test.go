package jsonapi

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandleSingleErrorResponse(t *testing.T) {
	body := []byte(`{"errors": [{"status": "400",
                                 "code": "bad_request",
                                 "title": "Bad request",
                                 "detail": "Invalid username"}]}`)
	errorResponse := parseErrorResponse(400, body)
	if errorResponse == nil {
		t.Error("Expected error")
		t.FailNow()
	}
	if errorResponse.StatusCode != 400 {
		t.Errorf("Got status code %d, expected 400", errorResponse.StatusCode)
	}
	expectedError := "400, bad_request: Invalid username"
	if errorResponse.Error() != expectedError {
		t.Errorf("Got error '%s', expected %s",
			errorResponse.Error(), expectedError)
	}
}

func TestHandleSingleErrorResponseStructurally(t *testing.T) {
	body := []byte(`{"errors": [{"status": "400",
                                 "code": "bad_request",
                                 "title": "Bad request",
                                 "detail": "Invalid username"}]}`)
	errorResponse := parseErrorResponse(400, body)
	if errorResponse.StatusCode != 400 {
		t.Errorf("Got status code %d, expected 400", errorResponse.StatusCode)
	}
	if errorResponse == nil {
		t.Error("Expected error")
		t.FailNow()
	}
	// Assign errorResponse to an interface of type error
	var err error = errorResponse

	// Type assertion of error interface type to Error type
	data, ok := err.(*Error)
	if !ok {
		t.Error("Could not type-assert errorResponse to *Error type")
	}

	if data.Errors[0].Status != "400" ||
		data.Errors[0].Code != "bad_request" ||
		data.Errors[0].Title != "Bad request" ||
		data.Errors[0].Detail != "Invalid username" {
		t.Error("Could not parse error data properly")
	}
}

func TestHandleDoubleErrorResponse(t *testing.T) {
	body := []byte(`{"errors": [{"status": "409",
                                 "code": "conflict",
                                 "title": "Conflict",
                                 "detail": "username is already taken"},
                                {"status": "409",
                                 "code": "conflict",
                                 "title": "Conflict",
                                 "detail": "email is already taken"}]}`)
	errorResponse := parseErrorResponse(409, body)
	if errorResponse.StatusCode != 409 {
		t.Errorf("Got status code %d, expected 409", errorResponse.StatusCode)
	}
	if errorResponse == nil {
		t.Error("Expected error")
		t.FailNow()
	}
	expectedError := "409, conflict: username is already taken, conflict: " +
		"email is already taken"
	if errorResponse.Error() != expectedError {
		t.Errorf("Got error '%s', expected %s",
			errorResponse.Error(), expectedError)
	}
}

func TestErrorDocumentFor(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		status   int
		expected []ErrorItem
	}{
		{
			"invalid query",
			&InvalidQueryError{
				Reason:    NotAllowed,
				Parameter: "sort",
				Field:     "body",
				Detail:    "The sort field 'body' is not allowed",
			},
			400,
			[]ErrorItem{{
				Status: "400",
				Title:  "Bad Request",
				Detail: "The sort field 'body' is not allowed",
				Source: &ErrorSource{Parameter: "sort"},
			}},
		},
		{
			"validation",
			NewValidationError().
				Add("title", "The title field is required.").
				Add("relationships.category", "The selected category is invalid."),
			422,
			[]ErrorItem{
				{
					Status: "422",
					Title:  "The given data was invalid.",
					Detail: "The title field is required.",
					Source: &ErrorSource{Pointer: "/data/attributes/title"},
				},
				{
					Status: "422",
					Title:  "The given data was invalid.",
					Detail: "The selected category is invalid.",
					Source: &ErrorSource{
						Pointer: "/data/relationships/category/data/id",
					},
				},
			},
		},
		{
			"not found",
			fmt.Errorf("wrapped: %w", &NotFoundError{Type: "articles", Id: "9"}),
			404,
			[]ErrorItem{{
				Status: "404",
				Title:  "Not Found",
				Detail: "No records found with that id.",
			}},
		},
		{
			"unauthenticated",
			&AuthenticationError{},
			401,
			[]ErrorItem{{
				Status: "401",
				Title:  "Unauthenticated",
				Detail: "This action requires authentication.",
			}},
		},
		{
			"http error",
			&HttpError{StatusCode: 409, Message: "Type mismatch"},
			409,
			[]ErrorItem{{Status: "409", Title: "Conflict", Detail: "Type mismatch"}},
		},
		{
			"unknown",
			errors.New("database is locked"),
			500,
			[]ErrorItem{{
				Status: "500",
				Title:  "Internal Server Error",
				Detail: "Server Error",
			}},
		},
	}

	for _, testCase := range testCases {
		status, document := ErrorDocumentFor(
			testCase.err, DefaultDetailOverrides,
		)
		assert.Equal(t, testCase.status, status, testCase.name)
		assert.Equal(t, testCase.status, document.StatusCode, testCase.name)
		assert.Equal(t, testCase.expected, document.Errors, testCase.name)
	}
}

func TestNotFoundWithoutOverrides(t *testing.T) {
	_, document := ErrorDocumentFor(
		&NotFoundError{Type: "articles", Id: "9"}, nil,
	)
	assert.Equal(t,
		"No query results for resource [articles] 9", document.Errors[0].Detail)
}

func TestErrorPointer(t *testing.T) {
	testCases := []struct {
		field    string
		expected string
	}{
		{"title", "/data/attributes/title"},
		{"data.attributes.title", "/data/attributes/title"},
		{"data.type", "/data/type"},
		{"relationships.category", "/data/relationships/category/data/id"},
		{"data", "/data"},
		{"database", "/data/attributes/database"},
		{"relationships_count", "/data/attributes/relationships_count"},
	}
	for _, testCase := range testCases {
		assert.Equal(t, testCase.expected, ErrorPointer(testCase.field))
	}
}
