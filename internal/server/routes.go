package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/transifex/jsonapi-server/internal/config"
)

type action int

const (
	actionIndex action = iota
	actionShow
	actionCreate
	actionUpdate
	actionRelated
	actionRelationship
)

// Route is one endpoint the server answers, Name follows
// <type>.<action> or <type>.relationships.<relation>
type Route struct {
	Method string
	Path   string
	Name   string

	action   action
	resource string
	relation string
}

func basePath(prefix string) string {
	if prefix == "" {
		return ""
	}
	return "/" + strings.Trim(prefix, "/")
}

/*
RouteTable
List the endpoints of every configured resource type, in the order they are
registered:

	GET   /<prefix>/<type>
	POST  /<prefix>/<type>
	GET   /<prefix>/<type>/:id
	PATCH /<prefix>/<type>/:id
	GET   /<prefix>/<type>/:id/<relation>
	GET   /<prefix>/<type>/:id/relationships/<relation>
*/
func RouteTable(cfg *config.Config) []Route {
	base := basePath(cfg.Main.RoutePrefix)
	var result []Route
	for _, resource := range cfg.Resources {
		collection := fmt.Sprintf("%s/%s", base, resource.Type)
		member := collection + "/:id"
		result = append(result,
			Route{http.MethodGet, collection, resource.Type + ".index",
				actionIndex, resource.Type, ""},
			Route{http.MethodPost, collection, resource.Type + ".store",
				actionCreate, resource.Type, ""},
			Route{http.MethodGet, member, resource.Type + ".show",
				actionShow, resource.Type, ""},
			Route{http.MethodPatch, member, resource.Type + ".update",
				actionUpdate, resource.Type, ""},
		)
		for _, relation := range resource.Relations {
			result = append(result,
				Route{
					http.MethodGet,
					fmt.Sprintf("%s/%s", member, relation.Name),
					fmt.Sprintf("%s.%s", resource.Type, relation.Name),
					actionRelated, resource.Type, relation.Name,
				},
				Route{
					http.MethodGet,
					fmt.Sprintf("%s/relationships/%s", member, relation.Name),
					fmt.Sprintf("%s.relationships.%s",
						resource.Type, relation.Name),
					actionRelationship, resource.Type, relation.Name,
				},
			)
		}
	}
	return result
}
