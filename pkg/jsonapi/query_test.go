package jsonapi

import (
	"net/url"
	"strings"
	"testing"
)

func TestEncode(t *testing.T) {
	testCases := []struct {
		query    Query
		expected string
	}{
		{Query{Filters: map[string]string{"color": "red"}},
			"filter[color]=red"},
		{Query{Filters: map[string]string{"age__gt": "15"}},
			"filter[age][gt]=15"},
		{Query{Includes: []string{"aaa", "bbb"}},
			"include=aaa,bbb"},
		{Query{Sort: []string{"-created-at", "title"}},
			"sort=-created-at,title"},
		{Query{Fields: map[string][]string{"articles": {"title"}}},
			"fields[articles]=title"},
		{Query{Page: Page{Number: 2, Size: 5}},
			"page[number]=2&page[size]=5"},
		{Query{Extras: map[string]string{"limit": "15"}}, "limit=15"},
	}

	for _, testCase := range testCases {
		query := testCase.query
		expected := testCase.expected
		expected = url.QueryEscape(expected)
		expected = strings.ReplaceAll(expected, "%3D", "=")
		expected = strings.ReplaceAll(expected, "%26", "&")

		if query.Encode() != expected {
			t.Errorf("Query %v generated querystring '%s', expected '%s'",
				query, query.Encode(), expected)
		}
	}
}

func TestEncodedQueryParses(t *testing.T) {
	query := Query{
		Filters:  map[string]string{"age__gt": "15"},
		Includes: []string{"category"},
		Page:     Page{Number: 3},
	}
	values, err := url.ParseQuery(query.Encode())
	if err != nil {
		t.Fatal(err)
	}
	intent, err := ParseQuery(ValuesToMap(values), articlesAllowList)
	if err != nil {
		t.Fatal(err)
	}
	if intent.Filters()["age__gt"] != "15" || !intent.HasInclude("category") ||
		intent.Page().Number != 3 {
		t.Errorf("Unexpected intent %+v", intent)
	}
}
