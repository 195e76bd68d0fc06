/*
Package document renders fetched resources as {json:api} documents.

	doc := document.NewBuilder(routes, intent).
		Many(views, "https://foo.com/api/v1/articles").
		WithPagination(total).
		Build()
*/
package document

import (
	"fmt"
	"strings"

	"github.com/transifex/jsonapi-server/pkg/jsonapi"
)

type Builder struct {
	links  RouteLinkBuilder
	intent jsonapi.QueryIntent

	views    []ResourceView
	plural   bool
	selfPath string

	paginate bool
	total    int
}

func NewBuilder(links RouteLinkBuilder, intent jsonapi.QueryIntent) *Builder {
	return &Builder{links: links, intent: intent}
}

func (b *Builder) Single(view ResourceView) *Builder {
	b.views = []ResourceView{view}
	b.plural = false
	return b
}

// Many sets a collection as primary data, selfPath becomes 'links.self'
func (b *Builder) Many(views []ResourceView, selfPath string) *Builder {
	b.views = views
	b.plural = true
	b.selfPath = selfPath
	return b
}

// WithPagination adds first/last/prev/next links and 'meta.page' to a
// collection, total is the number of resources across all pages
func (b *Builder) WithPagination(total int) *Builder {
	b.paginate = true
	b.total = total
	return b
}

func (b *Builder) Build() jsonapi.Document {
	result := jsonapi.Document{
		Plural: b.plural,
		Data:   make([]jsonapi.ResourceObject, 0, len(b.views)),
	}
	for _, view := range b.views {
		result.Data = append(result.Data, b.render(view, true))
	}
	result.Included = b.included()

	if b.plural && b.selfPath != "" {
		result.Links = &jsonapi.DocumentLinks{Self: b.selfPath}
		if b.paginate {
			b.addPagination(&result)
		}
	}
	return result
}

func (b *Builder) render(
	view ResourceView, primary bool,
) jsonapi.ResourceObject {
	id := view.StringID()
	result := jsonapi.ResourceObject{
		Type:       view.Type,
		Id:         id,
		Attributes: b.attributes(view),
		Links:      &jsonapi.Links{Self: b.links.Self(view.Type, id)},
	}

	relationships := make(map[string]jsonapi.Relationship)
	for _, name := range view.RelationshipLinks {
		links := b.links.Relationship(view.Type, id, name)
		relationships[name] = jsonapi.Relationship{Links: &links}
	}
	if primary {
		for _, name := range b.intent.Includes() {
			relation := view.Relation(name)
			if !relation.Loaded() {
				continue
			}
			data := identifiers(relation)
			item := relationships[name]
			item.Data = &data
			relationships[name] = item
		}
	}
	if len(relationships) > 0 {
		result.Relationships = relationships
	}
	return result
}

// 'id' and 'type' are members of the resource object, never attributes
func (b *Builder) attributes(view ResourceView) map[string]interface{} {
	fields, restricted := b.intent.Fields(view.Type)
	result := make(map[string]interface{}, len(view.Attributes))
	for name, value := range view.Attributes {
		if name == "id" || name == "type" {
			continue
		}
		if !restricted || containsNormalized(fields, name) {
			result[name] = value
		}
	}
	return result
}

func identifiers(relation Relation) jsonapi.RelationshipData {
	if relation.IsMany() {
		result := jsonapi.RelationshipData{
			Plural: true,
			Many:   make([]jsonapi.ResourceIdentifier, 0, len(relation.Many())),
		}
		for _, view := range relation.Many() {
			result.Many = append(result.Many, identifier(view))
		}
		return result
	}
	if relation.One() == nil {
		return jsonapi.RelationshipData{}
	}
	one := identifier(*relation.One())
	return jsonapi.RelationshipData{One: &one}
}

func identifier(view ResourceView) jsonapi.ResourceIdentifier {
	return jsonapi.ResourceIdentifier{Type: view.Type, Id: view.StringID()}
}

// Related resources of every primary resource, each (type, id) appears once
// in the order it was first seen
func (b *Builder) included() []jsonapi.ResourceObject {
	includes := b.intent.Includes()
	if len(includes) == 0 {
		return nil
	}
	var result []jsonapi.ResourceObject
	seen := make(map[string]bool)
	for _, view := range b.views {
		for _, name := range includes {
			for _, related := range view.Relation(name).Resources() {
				key := fmt.Sprintf("%s:%s", related.Type, related.StringID())
				if seen[key] {
					continue
				}
				seen[key] = true
				result = append(result, b.render(related, false))
			}
		}
	}
	return result
}

func (b *Builder) addPagination(result *jsonapi.Document) {
	page := b.intent.Page()
	last := b.total / page.Size
	if b.total%page.Size != 0 {
		last++
	}
	if last < 1 {
		last = 1
	}

	result.Links.First = b.pageLink(1)
	result.Links.Last = b.pageLink(last)
	if page.Number > 1 {
		result.Links.Prev = b.pageLink(page.Number - 1)
	}
	if page.Number < last {
		result.Links.Next = b.pageLink(page.Number + 1)
	}
	result.Meta = map[string]interface{}{
		"page": jsonapi.PageMeta{
			Number: page.Number,
			Size:   page.Size,
			Total:  b.total,
			Last:   last,
		},
	}
}

func (b *Builder) pageLink(number int) string {
	path, _, _ := strings.Cut(b.selfPath, "?")
	return path + "?" + b.intent.WithPage(number).Encode()
}

func containsNormalized(fields []string, name string) bool {
	for _, field := range fields {
		if field == jsonapi.Normalize(name) {
			return true
		}
	}
	return false
}

func BuildSingle(
	links RouteLinkBuilder, intent jsonapi.QueryIntent, view ResourceView,
) jsonapi.Document {
	return NewBuilder(links, intent).Single(view).Build()
}

func BuildMany(
	links RouteLinkBuilder,
	intent jsonapi.QueryIntent,
	views []ResourceView,
	selfPath string,
) jsonapi.Document {
	return NewBuilder(links, intent).Many(views, selfPath).Build()
}

// Identifier renders the data of a to-one relationship endpoint
func Identifier(view *ResourceView) jsonapi.Document {
	if view == nil {
		return jsonapi.Document{}
	}
	return jsonapi.Document{Data: []jsonapi.ResourceObject{{
		Type: view.Type, Id: view.StringID(),
	}}}
}

// Identifiers renders the data of a to-many relationship endpoint
func Identifiers(views []ResourceView) jsonapi.Document {
	result := jsonapi.Document{
		Plural: true,
		Data:   make([]jsonapi.ResourceObject, 0, len(views)),
	}
	for _, view := range views {
		result.Data = append(result.Data, jsonapi.ResourceObject{
			Type: view.Type, Id: view.StringID(),
		})
	}
	return result
}
