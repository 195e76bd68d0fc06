package apilib

import (
	"fmt"
	"strings"

	"github.com/gosimple/slug"
	"github.com/manifoldco/promptui"
	"github.com/pterm/pterm"
	"github.com/transifex/jsonapi-server/internal/config"
)

type MakeResourceCommandArguments struct {
	Type               string
	Table              string
	RouteKey           string
	SlugFrom           string
	AllowedSorts       []string
	AllowedFilters     []string
	AllowedIncludes    []string
	RelationshipLinks  []string
	RequiredAttributes []string
	// Each one as '<name>=<belongs_to|has_many> <target> [foreign key]'
	Relations     []string
	NoInteractive bool
}

func getInputTemplate(str string) *promptui.PromptTemplates {
	var template = &promptui.PromptTemplates{
		Prompt:  fmt.Sprintf("%s {{ . }} ", promptui.IconInitial),
		Valid:   fmt.Sprintf("%s {{ . }} ", promptui.IconGood),
		Invalid: fmt.Sprintf("%s {{ . }} ", promptui.IconBad),
		Success: fmt.Sprintf(`%s {{ "%s:" | faint }} `,
			promptui.IconGood, str),
	}
	return template
}

func validateIdentifier(input string) error {
	if input == "" {
		return nil
	}
	if DefaultTable(input) != input {
		return fmt.Errorf("'%s' is not a valid identifier", input)
	}
	return nil
}

func promptFor(label, selected, defaultValue string) (string, error) {
	prompt := promptui.Prompt{
		Label:     label,
		Default:   defaultValue,
		AllowEdit: true,
		Templates: getInputTemplate(selected),
		Validate:  validateIdentifier,
	}
	result, err := prompt.Run()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(result), nil
}

// DefaultTable is the slug of a resource type with underscores, 'Blog Posts'
// and 'blog-posts' both map to 'blog_posts'
func DefaultTable(resourceType string) string {
	return strings.ReplaceAll(slug.Make(resourceType), "-", "_")
}

func (arguments *MakeResourceCommandArguments) prompt() error {
	var err error
	if arguments.Table == "" {
		arguments.Table, err = promptFor(
			"Which table holds the rows of this resource?",
			"Selected table",
			DefaultTable(arguments.Type),
		)
		if err != nil {
			return err
		}
	}
	if arguments.RouteKey == "" {
		arguments.RouteKey, err = promptFor(
			"Which column identifies a row in URLs?",
			"Selected route key",
			"id",
		)
		if err != nil {
			return err
		}
	}
	if arguments.SlugFrom == "" && arguments.RouteKey != "id" {
		arguments.SlugFrom, err = promptFor(
			"Which attribute should new route keys be made from? "+
				"(leave empty for none)",
			"Selected attribute",
			"",
		)
		if err != nil {
			return err
		}
	}
	return nil
}

/*
MakeResourceCommand
Add a resource section to the configuration and save it. Values missing from
the arguments are asked for unless NoInteractive is set, in which case the
table defaults to the slug of the type and the route key to 'id'.
*/
func MakeResourceCommand(
	cfg *config.Config, arguments MakeResourceCommandArguments,
) (*config.Resource, error) {
	resourceType := slug.Make(arguments.Type)
	if resourceType == "" {
		return nil, fmt.Errorf("invalid resource type '%s'", arguments.Type)
	}
	arguments.Type = resourceType
	if cfg.FindResource(resourceType) != nil {
		return nil, fmt.Errorf("resource '%s' already exists", resourceType)
	}

	if !arguments.NoInteractive {
		if err := arguments.prompt(); err != nil {
			return nil, err
		}
	}
	if arguments.Table == "" {
		arguments.Table = DefaultTable(resourceType)
	}
	if arguments.RouteKey == "" {
		arguments.RouteKey = "id"
	}

	resource := config.Resource{
		Type:               resourceType,
		Table:              arguments.Table,
		RouteKey:           arguments.RouteKey,
		SlugFrom:           arguments.SlugFrom,
		AllowedSorts:       arguments.AllowedSorts,
		AllowedFilters:     arguments.AllowedFilters,
		AllowedIncludes:    arguments.AllowedIncludes,
		RelationshipLinks:  arguments.RelationshipLinks,
		RequiredAttributes: arguments.RequiredAttributes,
	}
	for _, value := range arguments.Relations {
		name, definition, found := strings.Cut(value, "=")
		if !found {
			return nil, fmt.Errorf(
				"invalid relation '%s', expected <name>=<definition>", value,
			)
		}
		relation, err := config.ParseRelation(
			strings.TrimSpace(name), definition,
		)
		if err != nil {
			return nil, err
		}
		resource.Relations = append(resource.Relations, relation)
	}

	if err := cfg.AddResource(resource); err != nil {
		return nil, err
	}
	if err := cfg.Save(); err != nil {
		return nil, err
	}
	pterm.Success.Printfln(
		"Added '%s' (table %s) to %s",
		resource.Type, resource.Table, cfg.Path,
	)
	return cfg.FindResource(resourceType), nil
}
