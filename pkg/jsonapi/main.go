/*
Package jsonapi
Types and helpers for serving and consuming {json:api} documents.

Parsing query parameters into a validated intent:

    allow := jsonapi.AllowList{
        Type:     "articles",
        Sorts:    []string{"title", "created-at"},
        Filters:  []string{"title", "published"},
        Includes: []string{"category"},
    }
    intent, err := jsonapi.ParseQuery(
        jsonapi.ValuesToMap(request.URL.Query()), allow,
    )
    var e *jsonapi.InvalidQueryError
    if errors.As(err, &e) {
        // e.Reason tells a forbidden field apart from a bad page number
    }

    for _, item := range intent.Sort() {
        fmt.Println(item.Field, item.Direction)
    }

Turning any error into an error document:

    status, document := jsonapi.ErrorDocumentFor(err, jsonapi.DefaultDetailOverrides)

Consuming an API:

    api := jsonapi.Connection{Host: "https://foo.com", Token: "XXX"}

    query := jsonapi.Query{
        Filters: map[string]string{"status": "published"},
        Sort:    []string{"-created-at"},
    }.Encode()
    page, err := api.List("articles", query)
    for {
        for _, article := range page.Data {
            fmt.Println(article.Attributes["title"])
        }
        if page.Next == "" {
            break
        }
        page, err = page.GetNext()
    }
*/
package jsonapi

// MediaType is the content type every {json:api} request and response uses.
const MediaType = "application/vnd.api+json"
