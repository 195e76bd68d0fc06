package document

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/transifex/jsonapi-server/pkg/jsonapi"
)

// RouteLinkBuilder produces the canonical URLs of resources and relationships
type RouteLinkBuilder interface {
	Self(resourceType, id string) string
	Relationship(resourceType, id, relation string) jsonapi.Links
}

/*
Routes builds links following the server's route layout:

	<type>.show                 /<prefix>/<type>/<id>
	<type>.relationships.<rel>  /<prefix>/<type>/<id>/relationships/<rel>
	<type>.<rel>                /<prefix>/<type>/<id>/<rel>

BaseURL may be empty, links are then relative.
*/
type Routes struct {
	BaseURL string
	Prefix  string
}

func (r Routes) Collection(resourceType string) string {
	return r.path(resourceType)
}

func (r Routes) Self(resourceType, id string) string {
	return r.path(resourceType, url.PathEscape(id))
}

func (r Routes) Relationship(
	resourceType, id, relation string,
) jsonapi.Links {
	self := r.Self(resourceType, id)
	return jsonapi.Links{
		Self:    fmt.Sprintf("%s/relationships/%s", self, relation),
		Related: fmt.Sprintf("%s/%s", self, relation),
	}
}

func (r Routes) path(parts ...string) string {
	result := strings.TrimSuffix(r.BaseURL, "/")
	if prefix := strings.Trim(r.Prefix, "/"); prefix != "" {
		result = result + "/" + prefix
	}
	return result + "/" + strings.Join(parts, "/")
}
