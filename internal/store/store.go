package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/transifex/jsonapi-server/internal/planner"
)

type RelationKind string

const (
	// The owner row holds ForeignKey, pointing at the target's OwnerKey
	BelongsTo RelationKind = "belongs_to"
	// Target rows hold ForeignKey, pointing at the owner's OwnerKey
	HasMany RelationKind = "has_many"
)

type RelationDefinition struct {
	Name       string
	Kind       RelationKind
	Target     string
	ForeignKey string
	OwnerKey   string
}

// ScopeDefinition is a boolean SQL clause, every '?' is bound to the filter
// value
type ScopeDefinition struct {
	Name   string
	Clause string
}

type ResourceDefinition struct {
	Type              string
	Table             string
	RouteKey          string
	Relations         []RelationDefinition
	Scopes            []ScopeDefinition
	RelationshipLinks []string

	// When set, a created row without a route key gets one made from this
	// attribute
	SlugFrom string
}

func (d ResourceDefinition) relation(name string) (RelationDefinition, bool) {
	for _, relation := range d.Relations {
		if relation.Name == name {
			return relation, true
		}
	}
	return RelationDefinition{}, false
}

func (d ResourceDefinition) scope(name string) (ScopeDefinition, bool) {
	for _, scope := range d.Scopes {
		if scope.Name == name ||
			strings.ReplaceAll(scope.Name, "-", "_") == name {
			return scope, true
		}
	}
	return ScopeDefinition{}, false
}

// Store serves resource types out of a SQLite database
type Store struct {
	db *sql.DB

	mu          sync.RWMutex
	definitions map[string]ResourceDefinition

	// Workers used to eager load relations
	Workers int
}

// Open creates or opens a SQLite database at the given path. ':memory:' gives
// a private in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One connection, in-memory databases are per connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	return &Store{
		db:          db,
		definitions: make(map[string]ResourceDefinition),
		Workers:     4,
	}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

/*
Define
Register a resource type. Table defaults to the type with '-' replaced by '_',
RouteKey and every relation's OwnerKey default to 'id'.
*/
func (s *Store) Define(definition ResourceDefinition) error {
	if definition.Type == "" {
		return fmt.Errorf("resource definition has no type")
	}
	if definition.Table == "" {
		definition.Table = strings.ReplaceAll(definition.Type, "-", "_")
	}
	if definition.RouteKey == "" {
		definition.RouteKey = "id"
	}
	relations := make([]RelationDefinition, 0, len(definition.Relations))
	for _, relation := range definition.Relations {
		if relation.OwnerKey == "" {
			relation.OwnerKey = "id"
		}
		if relation.Kind != BelongsTo && relation.Kind != HasMany {
			return fmt.Errorf(
				"relation '%s' of '%s' has invalid kind '%s'",
				relation.Name, definition.Type, relation.Kind,
			)
		}
		if relation.ForeignKey == "" {
			return fmt.Errorf(
				"relation '%s' of '%s' has no foreign key",
				relation.Name, definition.Type,
			)
		}
		relations = append(relations, relation)
	}
	definition.Relations = relations

	s.mu.Lock()
	defer s.mu.Unlock()
	s.definitions[definition.Type] = definition
	return nil
}

func (s *Store) Definition(resourceType string) (ResourceDefinition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	definition, exists := s.definitions[resourceType]
	return definition, exists
}

// Types returns the defined resource types in alphabetical order
func (s *Store) Types() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]string, 0, len(s.definitions))
	for resourceType := range s.definitions {
		result = append(result, resourceType)
	}
	sort.Strings(result)
	return result
}

func (s *Store) definition(resourceType string) (ResourceDefinition, error) {
	definition, exists := s.Definition(resourceType)
	if !exists {
		return ResourceDefinition{}, fmt.Errorf(
			"resource type '%s' is not defined", resourceType,
		)
	}
	return definition, nil
}

func (s *Store) columns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(
		ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect table %s: %w", table, err)
	}
	defer rows.Close()

	var result []string
	for rows.Next() {
		var (
			cid          int
			name         string
			columnType   string
			notNull      int
			defaultValue sql.NullString
			primaryKey   int
		)
		err := rows.Scan(
			&cid, &name, &columnType, &notNull, &defaultValue, &primaryKey,
		)
		if err != nil {
			return nil, err
		}
		result = append(result, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("table %s does not exist", table)
	}
	return result, nil
}

// SchemaInfo reports the columns, scopes and relations of a resource type
func (s *Store) SchemaInfo(
	ctx context.Context, resourceType string,
) (planner.SchemaInfo, error) {
	definition, err := s.definition(resourceType)
	if err != nil {
		return planner.SchemaInfo{}, err
	}
	columns, err := s.columns(ctx, definition.Table)
	if err != nil {
		return planner.SchemaInfo{}, err
	}
	result := planner.SchemaInfo{
		Type:          resourceType,
		Columns:       columns,
		Scopes:        make([]string, 0, len(definition.Scopes)),
		Relationships: make([]string, 0, len(definition.Relations)),
	}
	for _, scope := range definition.Scopes {
		result.Scopes = append(result.Scopes, scope.Name)
	}
	for _, relation := range definition.Relations {
		result.Relationships = append(result.Relationships, relation.Name)
	}
	return result, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
