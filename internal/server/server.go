/*
Package server serves the configured resource types over HTTP.

	cfg, _ := config.Load("jsonapi.ini")
	st, _ := store.Open(cfg.Main.Database)
	srv, err := server.New(cfg, st, logger.Get())
	http.ListenAndServe(cfg.Main.Listen, srv.Handler())

Every request below the route prefix goes through ValidateHeaders,
Authenticate and ValidateDocument before reaching a handler. Failures are
collected with c.Error and rendered by RenderErrors.
*/
package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/transifex/jsonapi-server/internal/config"
	"github.com/transifex/jsonapi-server/internal/document"
	"github.com/transifex/jsonapi-server/internal/store"
	"github.com/transifex/jsonapi-server/pkg/jsonapi"
)

type Server struct {
	cfg    *config.Config
	store  *store.Store
	log    *slog.Logger
	links  document.Routes
	engine *gin.Engine
}

// Definition maps a configured resource onto the store's definition of it
func Definition(resource config.Resource) store.ResourceDefinition {
	result := store.ResourceDefinition{
		Type:              resource.Type,
		Table:             resource.Table,
		RouteKey:          resource.RouteKey,
		RelationshipLinks: resource.RelationshipLinks,
		SlugFrom:          resource.SlugFrom,
	}
	for _, relation := range resource.Relations {
		result.Relations = append(result.Relations, store.RelationDefinition{
			Name:       relation.Name,
			Kind:       store.RelationKind(relation.Kind),
			Target:     relation.Target,
			ForeignKey: relation.ForeignKey,
		})
	}
	for _, scope := range resource.Scopes {
		result.Scopes = append(result.Scopes, store.ScopeDefinition{
			Name: scope.Name, Clause: scope.Clause,
		})
	}
	return result
}

/*
New
Define every configured resource type on st and build the router. Relations
must point at configured types.
*/
func New(cfg *config.Config, st *store.Store, log *slog.Logger) (*Server, error) {
	for _, resource := range cfg.Resources {
		for _, relation := range resource.Relations {
			if relation.Name == "relationships" {
				return nil, fmt.Errorf(
					"relation name 'relationships' of '%s' is reserved",
					resource.Type,
				)
			}
			if cfg.FindResource(relation.Target) == nil {
				return nil, fmt.Errorf(
					"relation '%s' of '%s' points at unknown type '%s'",
					relation.Name, resource.Type, relation.Target,
				)
			}
		}
		if err := st.Define(Definition(resource)); err != nil {
			return nil, err
		}
	}

	s := &Server{
		cfg:   cfg,
		store: st,
		log:   log,
		links: document.Routes{
			BaseURL: cfg.Main.BaseURL,
			Prefix:  cfg.Main.RoutePrefix,
		},
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	prefix := cfg.Main.RoutePrefix
	router.Use(
		RequestLogger(log),
		Recovery(prefix, log),
		RenderErrors(prefix, log),
	)
	router.NoRoute(func(c *gin.Context) {
		fail(c, &jsonapi.HttpError{StatusCode: http.StatusNotFound})
	})

	api := router.Group("/",
		ValidateHeaders(),
		Authenticate(cfg.Main.Token),
		ValidateDocument(),
	)
	for _, route := range RouteTable(cfg) {
		resource := cfg.FindResource(route.resource)
		api.Handle(route.Method, route.Path, s.handler(route, *resource))
	}

	s.engine = router
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) handler(route Route, resource config.Resource) gin.HandlerFunc {
	switch route.action {
	case actionIndex:
		return s.index(resource)
	case actionShow:
		return s.show(resource)
	case actionCreate:
		return s.create(resource)
	case actionUpdate:
		return s.update(resource)
	case actionRelated:
		return s.related(resource, route.relation)
	default:
		return s.relationship(resource, route.relation)
	}
}
