/*
Package config reads and writes the server's ini configuration file:

	[main]
	database = blog.sqlite
	base_url = https://blog.example.com
	route_prefix = api/v1

	[articles]
	route_key = slug
	slug_from = title
	allowed_sorts = title, created-at
	allowed_filters = title, published
	allowed_includes = category, comments
	relationship_links = category, comments
	relation.category = belongs_to categories category_id
	relation.comments = has_many comments article_id
	scope.published = published_at IS NOT NULL AND ? != ''
*/
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/transifex/jsonapi-server/pkg/jsonapi"
	"gopkg.in/ini.v1"
)

const DefaultPath = "jsonapi.ini"

const (
	BelongsTo = "belongs_to"
	HasMany   = "has_many"
)

const (
	FilterSubstring = "substring"
	FilterExact     = "exact"
)

type Main struct {
	Listen      string
	Database    string
	BaseURL     string
	RoutePrefix string
	PageSize    int
	FilterMode  string
	Token       string
	LogLevel    string
	LogFormat   string
}

type Relation struct {
	Name       string
	Kind       string
	Target     string
	ForeignKey string
}

type Scope struct {
	Name   string
	Clause string
}

type Resource struct {
	Type               string
	Table              string
	RouteKey           string
	AllowedSorts       []string
	AllowedFilters     []string
	AllowedIncludes    []string
	RelationshipLinks  []string
	RequiredAttributes []string
	// Attribute the route key is made from when a create leaves it out
	SlugFrom  string
	Relations []Relation
	Scopes    []Scope
}

type Config struct {
	Main      Main
	Resources []Resource
	Path      string
}

func defaultMain() Main {
	return Main{
		Listen:      ":8080",
		BaseURL:     "http://localhost:8080",
		RoutePrefix: "api/v1",
		PageSize:    15,
		FilterMode:  FilterSubstring,
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

// New returns an empty configuration with every default filled in
func New(path string) *Config {
	return &Config{Main: defaultMain(), Path: path}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf(
				"configuration file does not exist, run "+
					"'apiserver make-resource' first: %w",
				err,
			)
		}
		return nil, err
	}
	cfg, err := LoadFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Path = path
	return cfg, nil
}

func LoadFromBytes(data []byte) (*Config, error) {
	result := Config{Main: defaultMain()}

	file, err := ini.Load(data)
	if err != nil {
		return nil, err
	}

	mainSection := file.Section("main")
	setString(mainSection, "listen", &result.Main.Listen)
	setString(mainSection, "database", &result.Main.Database)
	setString(mainSection, "base_url", &result.Main.BaseURL)
	setString(mainSection, "route_prefix", &result.Main.RoutePrefix)
	setString(mainSection, "filter_mode", &result.Main.FilterMode)
	setString(mainSection, "token", &result.Main.Token)
	setString(mainSection, "log_level", &result.Main.LogLevel)
	setString(mainSection, "log_format", &result.Main.LogFormat)
	result.Main.RoutePrefix = strings.Trim(result.Main.RoutePrefix, "/")
	result.Main.BaseURL = strings.TrimSuffix(result.Main.BaseURL, "/")

	if mainSection.HasKey("page_size") {
		pageSize, err := mainSection.Key("page_size").Int()
		if err != nil || pageSize < 1 {
			return nil, fmt.Errorf(
				"invalid page_size '%s'", mainSection.Key("page_size").String(),
			)
		}
		result.Main.PageSize = pageSize
	}
	if result.Main.FilterMode != FilterSubstring &&
		result.Main.FilterMode != FilterExact {
		return nil, fmt.Errorf(
			"invalid filter_mode '%s', expected '%s' or '%s'",
			result.Main.FilterMode, FilterSubstring, FilterExact,
		)
	}

	for _, section := range file.Sections() {
		if section.Name() == "main" || section.Name() == ini.DefaultSection {
			continue
		}
		resource, err := loadResource(section)
		if err != nil {
			return nil, err
		}
		result.Resources = append(result.Resources, resource)
	}

	result.sortResources()

	return &result, nil
}

func loadResource(section *ini.Section) (Resource, error) {
	resource := Resource{
		Type:               section.Name(),
		Table:              strings.ReplaceAll(section.Name(), "-", "_"),
		RouteKey:           "id",
		AllowedSorts:       splitList(section.Key("allowed_sorts").String()),
		AllowedFilters:     splitList(section.Key("allowed_filters").String()),
		AllowedIncludes:    splitList(section.Key("allowed_includes").String()),
		RelationshipLinks:  splitList(section.Key("relationship_links").String()),
		RequiredAttributes: splitList(section.Key("required_attributes").String()),
	}
	setString(section, "table", &resource.Table)
	setString(section, "route_key", &resource.RouteKey)
	setString(section, "slug_from", &resource.SlugFrom)

	for _, key := range section.Keys() {
		switch {
		case strings.HasPrefix(key.Name(), "relation."):
			relation, err := ParseRelation(
				key.Name()[len("relation."):], key.String(),
			)
			if err != nil {
				return Resource{}, fmt.Errorf("[%s] %w", section.Name(), err)
			}
			resource.Relations = append(resource.Relations, relation)

		case strings.HasPrefix(key.Name(), "scope."):
			name := key.Name()[len("scope."):]
			clause := strings.TrimSpace(key.String())
			if name == "" || clause == "" {
				return Resource{}, fmt.Errorf(
					"[%s] invalid scope '%s'", section.Name(), key.Name(),
				)
			}
			resource.Scopes = append(resource.Scopes, Scope{
				Name: name, Clause: clause,
			})
		}
	}
	return resource, nil
}

// ParseRelation reads the value of a relation.<name> key:
//
//	category = belongs_to categories [category_id]
//	comments = has_many comments article_id
func ParseRelation(name, value string) (Relation, error) {
	err := fmt.Errorf("invalid relation '%s = %s'", name, value)
	parts := strings.Fields(value)
	if name == "" || len(parts) < 2 || len(parts) > 3 {
		return Relation{}, err
	}
	// Taken by the /<type>/<id>/relationships/<name> routes
	if name == "relationships" {
		return Relation{}, fmt.Errorf("relation name '%s' is reserved", name)
	}
	relation := Relation{Name: name, Kind: parts[0], Target: parts[1]}
	if len(parts) == 3 {
		relation.ForeignKey = parts[2]
	}
	switch relation.Kind {
	case BelongsTo:
		if relation.ForeignKey == "" {
			relation.ForeignKey = strings.ReplaceAll(name, "-", "_") + "_id"
		}
	case HasMany:
		if relation.ForeignKey == "" {
			return Relation{}, fmt.Errorf(
				"has_many relation '%s' needs a foreign key", name,
			)
		}
	default:
		return Relation{}, err
	}
	return relation, nil
}

func setString(section *ini.Section, key string, target *string) {
	if section.HasKey(key) {
		value := strings.TrimSpace(section.Key(key).String())
		if value != "" {
			*target = value
		}
	}
}

func splitList(value string) []string {
	var result []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}

/*
Save
Write the configuration back to its path. Nothing is written when the file
already holds an equal configuration.
*/
func (cfg *Config) Save() error {
	if cfg.Path == "" {
		return errors.New("configuration has no path")
	}
	existing, err := Load(cfg.Path)
	if err == nil && configsEqual(existing, cfg) {
		return nil
	}
	file, err := os.OpenFile(cfg.Path,
		os.O_RDWR|os.O_CREATE|os.O_TRUNC,
		0644)
	if err != nil {
		return err
	}
	defer file.Close()
	return cfg.SaveToWriter(file)
}

func (cfg *Config) SaveToWriter(out io.Writer) error {
	file := ini.Empty(ini.LoadOptions{})

	main, err := file.NewSection("main")
	if err != nil {
		return err
	}
	defaults := defaultMain()
	mainKeys := []struct {
		name, value, fallback string
	}{
		{"listen", cfg.Main.Listen, defaults.Listen},
		{"database", cfg.Main.Database, ""},
		{"base_url", cfg.Main.BaseURL, defaults.BaseURL},
		{"route_prefix", cfg.Main.RoutePrefix, defaults.RoutePrefix},
		{"page_size", strconv.Itoa(cfg.Main.PageSize),
			strconv.Itoa(defaults.PageSize)},
		{"filter_mode", cfg.Main.FilterMode, defaults.FilterMode},
		{"token", cfg.Main.Token, ""},
		{"log_level", cfg.Main.LogLevel, defaults.LogLevel},
		{"log_format", cfg.Main.LogFormat, defaults.LogFormat},
	}
	for _, key := range mainKeys {
		if key.value == "" || key.value == key.fallback {
			continue
		}
		if _, err := main.NewKey(key.name, key.value); err != nil {
			return err
		}
	}

	for _, resource := range cfg.Resources {
		section, err := file.NewSection(resource.Type)
		if err != nil {
			return err
		}
		table := resource.Table
		if table == strings.ReplaceAll(resource.Type, "-", "_") {
			table = ""
		}
		routeKey := resource.RouteKey
		if routeKey == "id" {
			routeKey = ""
		}
		keys := []struct {
			name, value string
		}{
			{"table", table},
			{"route_key", routeKey},
			{"allowed_sorts", strings.Join(resource.AllowedSorts, ", ")},
			{"allowed_filters", strings.Join(resource.AllowedFilters, ", ")},
			{"allowed_includes", strings.Join(resource.AllowedIncludes, ", ")},
			{"relationship_links",
				strings.Join(resource.RelationshipLinks, ", ")},
			{"required_attributes",
				strings.Join(resource.RequiredAttributes, ", ")},
			{"slug_from", resource.SlugFrom},
		}
		for _, relation := range resource.Relations {
			keys = append(keys, struct{ name, value string }{
				"relation." + relation.Name,
				fmt.Sprintf("%s %s %s",
					relation.Kind, relation.Target, relation.ForeignKey),
			})
		}
		for _, scope := range resource.Scopes {
			keys = append(keys, struct{ name, value string }{
				"scope." + scope.Name, scope.Clause,
			})
		}
		for _, key := range keys {
			if key.value == "" {
				continue
			}
			if _, err := section.NewKey(key.name, key.value); err != nil {
				return err
			}
		}
	}

	_, err = file.WriteTo(out)
	return err
}

func (cfg *Config) sortResources() {
	sort.Slice(cfg.Resources, func(i, j int) bool {
		return cfg.Resources[i].Type < cfg.Resources[j].Type
	})
}

func configsEqual(left, right *Config) bool {
	return reflect.DeepEqual(left.Main, right.Main) &&
		reflect.DeepEqual(left.Resources, right.Resources)
}

func (cfg *Config) FindResource(resourceType string) *Resource {
	for i := range cfg.Resources {
		if cfg.Resources[i].Type == resourceType {
			return &cfg.Resources[i]
		}
	}
	return nil
}

func (cfg *Config) AddResource(resource Resource) error {
	if cfg.FindResource(resource.Type) != nil {
		return fmt.Errorf("resource '%s' already exists", resource.Type)
	}
	if resource.Type == "main" || resource.Type == "" {
		return fmt.Errorf("invalid resource type '%s'", resource.Type)
	}
	cfg.Resources = append(cfg.Resources, resource)
	cfg.sortResources()
	return nil
}

func (r Resource) FindRelation(name string) *Relation {
	for i := range r.Relations {
		if r.Relations[i].Name == name {
			return &r.Relations[i]
		}
	}
	return nil
}

func (r Resource) AllowList(pageSize int) jsonapi.AllowList {
	return jsonapi.AllowList{
		Type:     r.Type,
		Sorts:    r.AllowedSorts,
		Filters:  r.AllowedFilters,
		Includes: r.AllowedIncludes,
		PageSize: pageSize,
	}
}
