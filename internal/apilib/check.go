package apilib

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/pterm/pterm"
	"github.com/transifex/jsonapi-server/internal/config"
	"github.com/transifex/jsonapi-server/internal/planner"
	"github.com/transifex/jsonapi-server/internal/server"
	"github.com/transifex/jsonapi-server/internal/store"
	"github.com/transifex/jsonapi-server/pkg/jsonapi"
	"github.com/transifex/jsonapi-server/pkg/worker_pool"
)

type CheckCommandArguments struct {
	Workers int
	// Where progress lines go, nothing is printed when nil
	Progress io.Writer
}

type Problem struct {
	Resource string
	Message  string
}

type problems struct {
	mu    sync.Mutex
	items []Problem
}

func (p *problems) add(resource, format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items = append(p.items, Problem{resource, fmt.Sprintf(format, args...)})
}

type checkTask struct {
	ctx      context.Context
	cfg      *config.Config
	store    *store.Store
	resource config.Resource
	problems *problems
}

func (task checkTask) Run(send func(string), abort func()) {
	resource := task.resource
	add := func(format string, args ...interface{}) {
		task.problems.add(resource.Type, format, args...)
	}

	send(fmt.Sprintf("%s: inspecting", resource.Type))
	schema, err := task.store.SchemaInfo(task.ctx, resource.Type)
	if err != nil {
		add("%s", err)
		send(fmt.Sprintf("%s: %s", resource.Type, pterm.Red("failed")))
		return
	}

	if !schema.HasColumn(resource.RouteKey) {
		add("route key '%s' is not a column", resource.RouteKey)
	}
	if resource.SlugFrom != "" && !schema.HasColumn(resource.SlugFrom) {
		add("slug_from '%s' is not a column", resource.SlugFrom)
	}
	for _, name := range resource.AllowedSorts {
		if !schema.HasColumn(jsonapi.Normalize(name)) {
			add("sort '%s' is not a column", name)
		}
	}
	for _, name := range resource.AllowedFilters {
		normalized := jsonapi.Normalize(name)
		if !schema.HasScope(normalized) && !schema.HasColumn(normalized) {
			add("filter '%s' is neither a scope nor a column", name)
		}
	}
	for _, name := range resource.RequiredAttributes {
		if !schema.HasColumn(name) {
			add("required attribute '%s' is not a column", name)
		}
	}
	for _, name := range resource.AllowedIncludes {
		if resource.FindRelation(name) == nil {
			add("include '%s' is not a relation", name)
		}
	}
	for _, name := range resource.RelationshipLinks {
		if resource.FindRelation(name) == nil {
			add("relationship link '%s' is not a relation", name)
		}
	}
	for _, relation := range resource.Relations {
		task.checkRelation(schema, relation, add)
	}

	send(fmt.Sprintf("%s: %s", resource.Type, pterm.Green("checked")))
}

func (task checkTask) checkRelation(
	schema planner.SchemaInfo,
	relation config.Relation,
	add func(format string, args ...interface{}),
) {
	if task.cfg.FindResource(relation.Target) == nil {
		add("relation '%s' points at unknown type '%s'",
			relation.Name, relation.Target)
		return
	}
	if relation.Kind == config.BelongsTo {
		if !schema.HasColumn(relation.ForeignKey) {
			add("foreign key '%s' of relation '%s' is not a column",
				relation.ForeignKey, relation.Name)
		}
		return
	}
	target, err := task.store.SchemaInfo(task.ctx, relation.Target)
	if err != nil {
		add("relation '%s': %s", relation.Name, err)
		return
	}
	if !target.HasColumn(relation.ForeignKey) {
		add("foreign key '%s' of relation '%s' is not a column of '%s'",
			relation.ForeignKey, relation.Name, relation.Target)
	}
}

/*
CheckCommand
Compare every configured resource with the tables of the database: route keys,
sorts, filters, required attributes and foreign keys must name existing columns
(or scopes, for filters) and relations must point at configured types. Returns
the problems found, sorted by resource type.
*/
func CheckCommand(
	ctx context.Context,
	cfg *config.Config,
	st *store.Store,
	arguments CheckCommandArguments,
) ([]Problem, error) {
	for _, resource := range cfg.Resources {
		if err := st.Define(server.Definition(resource)); err != nil {
			return nil, err
		}
	}

	workers := arguments.Workers
	if workers < 1 {
		workers = 4
	}
	pool := worker_pool.New(workers, len(cfg.Resources))
	if arguments.Progress != nil {
		pool.WithProgress(arguments.Progress)
	}

	found := &problems{}
	for _, resource := range cfg.Resources {
		pool.Add(checkTask{ctx, cfg, st, resource, found})
	}
	pool.Start()
	<-pool.Wait()

	sort.SliceStable(found.items, func(i, j int) bool {
		return found.items[i].Resource < found.items[j].Resource
	})
	return found.items, nil
}
