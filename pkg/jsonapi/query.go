package jsonapi

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

type Query struct {
	Filters  map[string]string
	Includes []string
	Sort     []string
	Fields   map[string][]string
	Page     Page
	Extras   map[string]string
}

/*
Encode
Converts a Query object to a string that's ready to be used as GET variables
for {json:api} requests. A zero Page is left out.
*/
func (q Query) Encode() string {
	result := make(url.Values)
	if q.Filters != nil {
		for key, value := range q.Filters {
			result.Add(FilterKey(key), value)
		}
	}
	if q.Includes != nil {
		result.Add("include", strings.Join(q.Includes, ","))
	}
	if len(q.Sort) > 0 {
		result.Add("sort", strings.Join(q.Sort, ","))
	}
	for resourceType, fields := range q.Fields {
		result.Add(fmt.Sprintf("fields[%s]", resourceType),
			strings.Join(fields, ","))
	}
	if q.Page.Number > 0 {
		result.Add("page[number]", strconv.Itoa(q.Page.Number))
	}
	if q.Page.Size > 0 {
		result.Add("page[size]", strconv.Itoa(q.Page.Size))
	}
	if q.Extras != nil {
		for key, value := range q.Extras {
			result.Add(key, value)
		}
	}
	return result.Encode()
}

// FilterKey returns the query parameter of a filter, age__gt -> filter[age][gt]
func FilterKey(name string) string {
	finalKey := "filter"
	for _, part := range strings.Split(name, "__") {
		finalKey = finalKey + fmt.Sprintf("[%s]", part)
	}
	return finalKey
}
