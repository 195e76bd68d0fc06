package apilib

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ktr0731/go-fuzzyfinder"
	"github.com/transifex/jsonapi-server/internal/config"
	"github.com/transifex/jsonapi-server/pkg/jsonapi"
)

// GetConnection returns a client of the server the configuration describes,
// paths are relative to the route prefix
func GetConnection(cfg *config.Config, token string) jsonapi.Connection {
	if token == "" {
		token = cfg.Main.Token
	}
	host := strings.TrimSuffix(cfg.Main.BaseURL, "/")
	if prefix := strings.Trim(cfg.Main.RoutePrefix, "/"); prefix != "" {
		host = host + "/" + prefix
	}
	return jsonapi.Connection{
		Host:    host,
		Token:   token,
		Headers: map[string]string{"User-Agent": "apiserver/" + Version},
	}
}

type GetCommandArguments struct {
	// '<type>', '<type>/<id>' or either with a query string
	Path string
	// Follow 'links.next' and print every page as one collection
	All bool
	// Choose one resource of the collection interactively
	Pick bool
}

func printDocument(out io.Writer, document jsonapi.Document) error {
	body, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(body))
	return err
}

/*
FetchAll
Fetch a collection and every page after it. Included resources of all pages
are merged, each one kept once.
*/
func FetchAll(api *jsonapi.Connection, path string) (jsonapi.Document, error) {
	resourceType, query, _ := strings.Cut(strings.TrimPrefix(path, "/"), "?")
	collection, err := api.List(resourceType, query)
	if err != nil {
		return jsonapi.Document{}, err
	}

	result := jsonapi.Document{Plural: true, Data: []jsonapi.ResourceObject{}}
	seen := make(map[string]bool)
	for {
		result.Data = append(result.Data, collection.Data...)
		for _, item := range collection.Included {
			key := item.Type + ":" + item.Id
			if !seen[key] {
				seen[key] = true
				result.Included = append(result.Included, item)
			}
		}
		if collection.Next == "" {
			break
		}
		collection, err = collection.GetNext()
		if err != nil {
			return jsonapi.Document{}, err
		}
	}
	return result, nil
}

func label(item jsonapi.ResourceObject) string {
	for _, attribute := range []string{"title", "name", "slug"} {
		if value, ok := item.Attributes[attribute].(string); ok && value != "" {
			return fmt.Sprintf("%s:%s (%s)", item.Type, item.Id, value)
		}
	}
	return fmt.Sprintf("%s:%s", item.Type, item.Id)
}

func pick(items []jsonapi.ResourceObject) (jsonapi.ResourceObject, error) {
	if len(items) == 0 {
		return jsonapi.ResourceObject{}, fmt.Errorf("nothing to choose from")
	}
	idx, err := fuzzyfinder.Find(
		items,
		func(i int) string {
			return label(items[i])
		},
		fuzzyfinder.WithPreviewWindow(func(i, w, h int) string {
			if i == -1 {
				return ""
			}
			body, err := json.MarshalIndent(items[i].Attributes, "", "  ")
			if err != nil {
				return ""
			}
			return string(body)
		}),
		fuzzyfinder.WithHeader("Select a resource"),
	)
	if err != nil {
		return jsonapi.ResourceObject{}, err
	}
	return items[idx], nil
}

func GetCommand(
	api *jsonapi.Connection, out io.Writer, arguments GetCommandArguments,
) error {
	path := "/" + strings.TrimPrefix(arguments.Path, "/")

	var (
		document jsonapi.Document
		err      error
	)
	if arguments.All {
		document, err = FetchAll(api, path)
	} else {
		document, err = api.GetDocument(path)
	}
	if err != nil {
		return err
	}

	if arguments.Pick {
		item, err := pick(document.Data)
		if err != nil {
			return err
		}
		document = jsonapi.Document{Data: []jsonapi.ResourceObject{item}}
	}
	return printDocument(out, document)
}
