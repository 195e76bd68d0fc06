package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/transifex/jsonapi-server/internal/config"
	"github.com/transifex/jsonapi-server/internal/document"
	"github.com/transifex/jsonapi-server/internal/planner"
	"github.com/transifex/jsonapi-server/pkg/jsonapi"
)

func (s *Server) render(c *gin.Context, status int, result jsonapi.Document) {
	c.Header("Content-Type", jsonapi.MediaType)
	c.JSON(status, result)
}

// URL the client asked for, query string included
func (s *Server) selfURL(c *gin.Context) string {
	return s.cfg.Main.BaseURL + c.Request.URL.RequestURI()
}

func (s *Server) parse(
	c *gin.Context, resource config.Resource,
) (jsonapi.QueryIntent, error) {
	return jsonapi.ParseQuery(
		jsonapi.ValuesToMap(c.Request.URL.Query()),
		resource.AllowList(s.cfg.Main.PageSize),
	)
}

func (s *Server) plan(
	ctx context.Context, resource config.Resource, intent jsonapi.QueryIntent,
) (planner.FetchPlan, error) {
	schema, err := s.store.SchemaInfo(ctx, resource.Type)
	if err != nil {
		return planner.FetchPlan{}, err
	}
	mode := planner.FilterSubstring
	if s.cfg.Main.FilterMode == config.FilterExact {
		mode = planner.FilterExact
	}
	return planner.Plan(
		intent, schema, resource.RouteKey, planner.WithFilterMode(mode),
	)
}

func (s *Server) index(resource config.Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		intent, err := s.parse(c, resource)
		if err != nil {
			fail(c, err)
			return
		}
		plan, err := s.plan(ctx, resource, intent)
		if err != nil {
			fail(c, err)
			return
		}
		page, err := s.store.List(ctx, plan)
		if err != nil {
			fail(c, err)
			return
		}

		s.render(c, http.StatusOK, document.NewBuilder(s.links, intent).
			Many(page.Views, s.selfURL(c)).
			WithPagination(page.Total).
			Build())
	}
}

func (s *Server) show(resource config.Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		intent, err := s.parse(c, resource)
		if err != nil {
			fail(c, err)
			return
		}
		plan, err := s.plan(ctx, resource, intent)
		if err != nil {
			fail(c, err)
			return
		}
		view, err := s.store.Find(ctx, plan, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		s.render(c, http.StatusOK, document.BuildSingle(s.links, intent, view))
	}
}

// The document's resource object must be of the endpoint's type
func checkType(data map[string]interface{}, resourceType string) error {
	if data == nil {
		return jsonapi.NewValidationError().Add(
			"data", "The data field must be a resource object.",
		)
	}
	if data["type"] != resourceType {
		return &jsonapi.HttpError{
			StatusCode: http.StatusConflict,
			Message: fmt.Sprintf(
				"The type '%v' does not match the '%s' resource.",
				data["type"], resourceType,
			),
		}
	}
	return nil
}

// Required attributes must be present on create and may not be blanked on
// update
func checkRequired(
	resource config.Resource, attributes map[string]interface{}, create bool,
) error {
	invalid := jsonapi.NewValidationError()
	for _, name := range resource.RequiredAttributes {
		value, exists := attributes[name]
		if !exists && !create {
			continue
		}
		if !filled(value) {
			invalid.Add(name, fmt.Sprintf("The %s field is required.", name))
		}
	}
	if invalid.Empty() {
		return nil
	}
	return invalid
}

func (s *Server) create(resource config.Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := checkType(ValidatedData(c), resource.Type); err != nil {
			fail(c, err)
			return
		}
		attributes := Attributes(c)
		if err := checkRequired(resource, attributes, true); err != nil {
			fail(c, err)
			return
		}
		relationships, err := Relationships(c)
		if err != nil {
			fail(c, err)
			return
		}

		view, err := s.store.Create(
			c.Request.Context(), resource.Type, attributes, relationships,
		)
		if err != nil {
			fail(c, err)
			return
		}
		c.Header("Location", s.links.Self(resource.Type, view.StringID()))
		s.render(c, http.StatusCreated,
			document.BuildSingle(s.links, jsonapi.QueryIntent{}, view))
	}
}

func (s *Server) update(resource config.Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		data := ValidatedData(c)
		if err := checkType(data, resource.Type); err != nil {
			fail(c, err)
			return
		}
		id := c.Param("id")
		if data["id"] != id {
			fail(c, &jsonapi.HttpError{
				StatusCode: http.StatusConflict,
				Message: fmt.Sprintf(
					"The id '%v' does not match the resource '%s'.",
					data["id"], id,
				),
			})
			return
		}
		attributes := Attributes(c)
		if err := checkRequired(resource, attributes, false); err != nil {
			fail(c, err)
			return
		}
		relationships, err := Relationships(c)
		if err != nil {
			fail(c, err)
			return
		}

		view, err := s.store.Update(
			c.Request.Context(), resource.Type, id, attributes, relationships,
		)
		if err != nil {
			fail(c, err)
			return
		}
		s.render(c, http.StatusOK,
			document.BuildSingle(s.links, jsonapi.QueryIntent{}, view))
	}
}

// GET /<type>/:id/<relation> renders the related resource or collection
func (s *Server) related(resource config.Resource, relation string) gin.HandlerFunc {
	return func(c *gin.Context) {
		loaded, err := s.store.Related(
			c.Request.Context(), resource.Type, c.Param("id"), relation,
		)
		if err != nil {
			fail(c, err)
			return
		}

		var intent jsonapi.QueryIntent
		switch {
		case loaded.IsMany():
			s.render(c, http.StatusOK, document.BuildMany(
				s.links, intent, loaded.Many(), s.selfURL(c),
			))
		case loaded.One() == nil:
			s.render(c, http.StatusOK, jsonapi.Document{})
		default:
			s.render(c, http.StatusOK,
				document.BuildSingle(s.links, intent, *loaded.One()))
		}
	}
}

// GET /<type>/:id/relationships/<relation> renders resource identifiers
func (s *Server) relationship(
	resource config.Resource, relation string,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		loaded, err := s.store.Related(
			c.Request.Context(), resource.Type, c.Param("id"), relation,
		)
		if err != nil {
			fail(c, err)
			return
		}

		var result jsonapi.Document
		if loaded.IsMany() {
			result = document.Identifiers(loaded.Many())
		} else {
			result = document.Identifier(loaded.One())
		}
		result.Links = &jsonapi.DocumentLinks{Self: s.selfURL(c)}
		s.render(c, http.StatusOK, result)
	}
}
