package jsonapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

/*
Error type for {json:api} error documents.

Servers render it as the response body, clients get it back from a failed
request and can inspect the contents with type assertions.
Example:

	    article := jsonapi.ResourceObject{...}
	    _, err := api.Create(article) // Here the server responds with an error
	    switch e := err.(type) {
	    case *jsonapi.Error:
			for _, errorItem := range e.Errors {
				if errorItem.Status == "422" {
					fmt.Println(errorItem.Source.Pointer, errorItem.Detail)
				}
			}
	    default:
	        fmt.Printf("%s\n", e)
	    }
*/
type Error struct {
	StatusCode int         `json:"-"`
	Errors     []ErrorItem `json:"errors"`
}

type ErrorItem struct {
	Status string       `json:"status,omitempty"`
	Code   string       `json:"code,omitempty"`
	Title  string       `json:"title,omitempty"`
	Detail string       `json:"detail,omitempty"`
	Source *ErrorSource `json:"source,omitempty"`
}

type ErrorSource struct {
	Pointer   string `json:"pointer,omitempty"`
	Parameter string `json:"parameter,omitempty"`
}

func (e *Error) Error() string {
	// 400, : The sort field 'foo' is not allowed
	result := make([]string, 0, len(e.Errors)+1)
	result = append(result, fmt.Sprint(e.StatusCode))
	for _, errorItem := range e.Errors {
		result = append(result,
			fmt.Sprintf("%s: %s", errorItem.Code, errorItem.Detail))
	}
	return strings.Join(result, ", ")
}

func parseErrorResponse(statusCode int, body []byte) *Error {
	if statusCode < 400 {
		return nil
	}
	errorResponse := Error{StatusCode: statusCode}

	// Intentionally ignore parse errors
	_ = json.Unmarshal(body, &errorResponse)

	return &errorResponse
}

type RedirectError struct {
	Location string
}

func (m *RedirectError) Error() string {
	return "jsonapi does not handle redirects. You can access the Location " +
		"header with " +
		"`var e *jsonapi.RedirectError; errors.As(err, &e); e.Location`"
}

type QueryErrorReason int

const (
	// The field is missing from the resource's allow-list
	NotAllowed QueryErrorReason = iota
	// The field is allowed but the data store does not know it
	UnknownField
	UnknownRelationship
	InvalidPage
)

/*
InvalidQueryError
The client sent a sort, filter, include, fields or page parameter that cannot
be served. Always rendered with status 400.
*/
type InvalidQueryError struct {
	Reason    QueryErrorReason
	Parameter string
	Field     string
	Detail    string
}

func (e *InvalidQueryError) Error() string {
	return e.Detail
}

type FieldError struct {
	Field   string
	Message string
}

/*
ValidationError
A create or update document failed validation. Rendered with status 422 and one
error object per failing field.
*/
type ValidationError struct {
	Title  string
	Fields []FieldError
}

const defaultValidationTitle = "The given data was invalid."

func NewValidationError() *ValidationError {
	return &ValidationError{Title: defaultValidationTitle}
}

func (e *ValidationError) Add(field, message string) *ValidationError {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
	return e
}

func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	messages := make([]string, 0, len(e.Fields))
	for _, field := range e.Fields {
		messages = append(messages, field.Message)
	}
	return fmt.Sprintf("%s %s", e.Title, strings.Join(messages, " "))
}

/*
ErrorPointer
Return the JSON pointer of the document member a validation field refers to:

	title                  -> /data/attributes/title
	data.attributes.title  -> /data/attributes/title
	relationships.category -> /data/relationships/category/data/id
*/
func ErrorPointer(field string) string {
	if field == "data" || strings.HasPrefix(field, "data.") {
		return "/" + strings.ReplaceAll(field, ".", "/")
	}
	if strings.HasPrefix(field, "relationships.") {
		return "/data/" + strings.ReplaceAll(field, ".", "/") + "/data/id"
	}
	return "/data/attributes/" + field
}

type NotFoundError struct {
	Type string
	Id   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("No query results for resource [%s] %s", e.Type, e.Id)
}

type AuthenticationError struct{}

func (e *AuthenticationError) Error() string {
	return "This action requires authentication."
}

// HttpError carries any other boundary failure with its status and message
type HttpError struct {
	StatusCode int
	Message    string
}

func (e *HttpError) Error() string {
	if e.Message == "" {
		return http.StatusText(e.StatusCode)
	}
	return e.Message
}

// DetailOverride rewrites the detail of an HTTP error for a status code
type DetailOverride func(detail string) string

var DefaultDetailOverrides = map[int]DetailOverride{
	http.StatusNotFound: func(detail string) string {
		if strings.HasPrefix(detail, "No query results for") {
			return "No records found with that id."
		}
		return detail
	},
}

/*
ErrorDocumentFor
Map an error to the status code and error document it should be rendered with.
Errors that are not part of the taxonomy become a 500 without leaking their
message.
*/
func ErrorDocumentFor(
	err error, overrides map[int]DetailOverride,
) (int, *Error) {
	var invalidQuery *InvalidQueryError
	var validation *ValidationError
	var notFound *NotFoundError
	var authentication *AuthenticationError
	var httpError *HttpError
	var document *Error

	switch {
	case errors.As(err, &invalidQuery):
		item := newErrorItem(http.StatusBadRequest, invalidQuery.Detail)
		if invalidQuery.Parameter != "" {
			item.Source = &ErrorSource{Parameter: invalidQuery.Parameter}
		}
		return http.StatusBadRequest, &Error{
			StatusCode: http.StatusBadRequest,
			Errors:     []ErrorItem{item},
		}

	case errors.As(err, &validation):
		result := Error{StatusCode: http.StatusUnprocessableEntity}
		for _, field := range validation.Fields {
			result.Errors = append(result.Errors, ErrorItem{
				Title:  validation.Title,
				Detail: field.Message,
				Status: strconv.Itoa(http.StatusUnprocessableEntity),
				Source: &ErrorSource{Pointer: ErrorPointer(field.Field)},
			})
		}
		return http.StatusUnprocessableEntity, &result

	case errors.As(err, &notFound):
		return httpErrorDocument(
			http.StatusNotFound, notFound.Error(), overrides,
		)

	case errors.As(err, &authentication):
		item := ErrorItem{
			Title:  "Unauthenticated",
			Detail: authentication.Error(),
			Status: strconv.Itoa(http.StatusUnauthorized),
		}
		return http.StatusUnauthorized, &Error{
			StatusCode: http.StatusUnauthorized,
			Errors:     []ErrorItem{item},
		}

	case errors.As(err, &httpError):
		return httpErrorDocument(
			httpError.StatusCode, httpError.Error(), overrides,
		)

	case errors.As(err, &document):
		return document.StatusCode, document

	default:
		return httpErrorDocument(
			http.StatusInternalServerError, "Server Error", nil,
		)
	}
}

func httpErrorDocument(
	statusCode int, detail string, overrides map[int]DetailOverride,
) (int, *Error) {
	if override, exists := overrides[statusCode]; exists {
		detail = override(detail)
	}
	return statusCode, &Error{
		StatusCode: statusCode,
		Errors:     []ErrorItem{newErrorItem(statusCode, detail)},
	}
}

func newErrorItem(statusCode int, detail string) ErrorItem {
	return ErrorItem{
		Title:  http.StatusText(statusCode),
		Detail: detail,
		Status: strconv.Itoa(statusCode),
	}
}
