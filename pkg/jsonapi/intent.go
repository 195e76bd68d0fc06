package jsonapi

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

type SortField struct {
	Field     string
	Direction Direction
}

type Page struct {
	Number int
	Size   int
}

const (
	DefaultPageNumber = 1
	DefaultPageSize   = 15
)

// AllowList is what a resource type lets clients sort, filter and include by
type AllowList struct {
	Type     string
	Sorts    []string
	Filters  []string
	Includes []string

	// Page size used when the request has no page[size], 0 means
	// DefaultPageSize
	PageSize int
}

/*
QueryIntent is the validated form of a request's sort, filter, include,
fields and page parameters. Sort, filter and field names are normalized
('created-at' becomes 'created_at'). Relationship names in includes are kept
as sent.

A QueryIntent is not modified after ParseQuery returns it; accessors hand out
copies.
*/
type QueryIntent struct {
	sort     []SortField
	filters  map[string]string
	includes []string
	fields   map[string][]string
	page     Page
}

// Normalize converts a client-facing name to its storage form
func Normalize(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

/*
ValuesToMap
Flattens a request's query values into the map ParseQuery expects. The first
value of a repeated parameter wins.
*/
func ValuesToMap(values url.Values) map[string]string {
	result := make(map[string]string, len(values))
	for key, items := range values {
		if len(items) > 0 {
			result[key] = items[0]
		}
	}
	return result
}

/*
ParseQuery
Validate raw query parameters against a resource's allow-list. Only allow-list
membership is checked here, whether the fields actually exist is up to the
planner.

Parameters that are not part of {json:api} query conventions are ignored.
*/
func ParseQuery(raw map[string]string, allow AllowList) (QueryIntent, error) {
	pageSize := allow.PageSize
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	intent := QueryIntent{
		filters: make(map[string]string),
		fields:  make(map[string][]string),
		page:    Page{Number: DefaultPageNumber, Size: pageSize},
	}

	var err error
	if value := strings.TrimSpace(raw["sort"]); value != "" {
		intent.sort, err = parseSort(value, allow)
		if err != nil {
			return QueryIntent{}, err
		}
	}

	// Sorted so that the reported error does not depend on map ordering
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		base, parts, ok := splitBracketKey(key)
		if !ok {
			continue
		}
		value := raw[key]

		switch base {
		case "filter":
			name := strings.Join(parts, "__")
			if !allowed(allow.Filters, name) {
				return QueryIntent{}, &InvalidQueryError{
					Reason:    NotAllowed,
					Parameter: key,
					Field:     name,
					Detail: fmt.Sprintf(
						"The filter '%s' is not allowed in the '%s' resource.",
						name, allow.Type,
					),
				}
			}
			intent.filters[Normalize(name)] = value

		case "fields":
			if len(parts) != 1 {
				continue
			}
			fields := make([]string, 0)
			for _, field := range splitList(value) {
				fields = append(fields, Normalize(field))
			}
			intent.fields[parts[0]] = fields

		case "page":
			if len(parts) != 1 ||
				(parts[0] != "number" && parts[0] != "size") {
				continue
			}
			number, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil || number < 1 {
				return QueryIntent{}, &InvalidQueryError{
					Reason:    InvalidPage,
					Parameter: key,
					Detail: fmt.Sprintf(
						"The %s parameter must be a positive integer.", key,
					),
				}
			}
			if parts[0] == "number" {
				intent.page.Number = number
			} else {
				intent.page.Size = number
			}
		}
	}

	for _, include := range splitList(raw["include"]) {
		if !allowed(allow.Includes, include) {
			return QueryIntent{}, &InvalidQueryError{
				Reason:    NotAllowed,
				Parameter: "include",
				Field:     include,
				Detail: fmt.Sprintf(
					"The include relationship '%s' is not allowed in the "+
						"'%s' resource.",
					include, allow.Type,
				),
			}
		}
		if !stringSliceContains(intent.includes, include) {
			intent.includes = append(intent.includes, include)
		}
	}

	return intent, nil
}

func parseSort(value string, allow AllowList) ([]SortField, error) {
	var result []SortField
	for _, item := range splitList(value) {
		direction := Ascending
		if strings.HasPrefix(item, "-") {
			direction = Descending
		}
		item = strings.TrimLeft(item, "-")

		if !allowed(allow.Sorts, item) {
			return nil, &InvalidQueryError{
				Reason:    NotAllowed,
				Parameter: "sort",
				Field:     item,
				Detail: fmt.Sprintf(
					"The sort field '%s' is not allowed in the '%s' resource.",
					item, allow.Type,
				),
			}
		}
		result = append(result, SortField{
			Field:     Normalize(item),
			Direction: direction,
		})
	}
	return result, nil
}

// filter[age][gt] -> "filter", ["age", "gt"]
func splitBracketKey(key string) (string, []string, bool) {
	start := strings.Index(key, "[")
	if start <= 0 {
		return "", nil, false
	}
	base := key[:start]
	rest := key[start:]
	var parts []string
	for rest != "" {
		if rest[0] != '[' {
			return "", nil, false
		}
		end := strings.Index(rest, "]")
		if end <= 1 {
			return "", nil, false
		}
		parts = append(parts, rest[1:end])
		rest = rest[end+1:]
	}
	return base, parts, true
}

func splitList(value string) []string {
	var result []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}

// Allow-lists may be written in either the client or the storage form
func allowed(allowList []string, name string) bool {
	for _, item := range allowList {
		if item == name || Normalize(item) == Normalize(name) {
			return true
		}
	}
	return false
}

func stringSliceContains(haystack []string, needle string) bool {
	for _, item := range haystack {
		if item == needle {
			return true
		}
	}
	return false
}

func (q QueryIntent) Sort() []SortField {
	return append([]SortField(nil), q.sort...)
}

func (q QueryIntent) Filters() map[string]string {
	result := make(map[string]string, len(q.filters))
	for key, value := range q.filters {
		result[key] = value
	}
	return result
}

// FilterNames returns the filter names in alphabetical order
func (q QueryIntent) FilterNames() []string {
	result := make([]string, 0, len(q.filters))
	for key := range q.filters {
		result = append(result, key)
	}
	sort.Strings(result)
	return result
}

func (q QueryIntent) Includes() []string {
	return append([]string(nil), q.includes...)
}

func (q QueryIntent) HasInclude(name string) bool {
	return stringSliceContains(q.includes, name)
}

/*
Fields
Return the sparse fieldset requested for a resource type. The second return
value is false when the request did not restrict the type at all, an explicit
empty 'fields[type]=' returns an empty slice and true.
*/
func (q QueryIntent) Fields(resourceType string) ([]string, bool) {
	fields, exists := q.fields[resourceType]
	if !exists {
		return nil, false
	}
	return append([]string{}, fields...), true
}

func (q QueryIntent) Page() Page {
	page := q.page
	if page.Number < 1 {
		page.Number = DefaultPageNumber
	}
	if page.Size < 1 {
		page.Size = DefaultPageSize
	}
	return page
}

// WithPage returns a copy of the intent pointing to another page number
func (q QueryIntent) WithPage(number int) QueryIntent {
	result := q
	result.page = q.Page()
	result.page.Number = number
	return result
}

/*
Encode
Render the intent back into query parameters. Parsing the result with the same
allow-list yields an equal intent.
*/
func (q QueryIntent) Encode() string {
	result := make(url.Values)
	if len(q.sort) > 0 {
		items := make([]string, 0, len(q.sort))
		for _, item := range q.sort {
			if item.Direction == Descending {
				items = append(items, "-"+item.Field)
			} else {
				items = append(items, item.Field)
			}
		}
		result.Set("sort", strings.Join(items, ","))
	}
	for name, value := range q.filters {
		result.Set(FilterKey(name), value)
	}
	if len(q.includes) > 0 {
		result.Set("include", strings.Join(q.includes, ","))
	}
	for resourceType, fields := range q.fields {
		result.Set(fmt.Sprintf("fields[%s]", resourceType),
			strings.Join(fields, ","))
	}
	page := q.Page()
	result.Set("page[number]", strconv.Itoa(page.Number))
	result.Set("page[size]", strconv.Itoa(page.Size))
	return result.Encode()
}
