package apiserver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"
	"github.com/transifex/jsonapi-server/internal/apilib"
	"github.com/transifex/jsonapi-server/internal/config"
	"github.com/urfave/cli/v2"
)

func loadOrCreate(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return config.New(path), nil
	}
	return cfg, err
}

func Main() {
	errorColor := color.New(color.FgRed).SprintfFunc()
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Println("JSON:API server, version=" + c.App.Version)
	}
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Value:   config.DefaultPath,
			Usage:   "Load configuration from `FILE`",
			EnvVars: []string{"JSONAPI_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "token",
			Aliases: []string{"t"},
			Usage:   "The bearer token clients must send",
			EnvVars: []string{"JSONAPI_TOKEN"},
		},
	}
	app := &cli.App{
		Name:                   "apiserver",
		Usage:                  "Serve SQLite tables as {json:api} resources",
		Version:                apilib.Version,
		UseShortOptionHandling: true,
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "apiserver serve [--listen ADDRESS] [--database FILE]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "listen",
						Aliases: []string{"l"},
						Usage:   "Address to listen on",
						EnvVars: []string{"JSONAPI_LISTEN"},
					},
					&cli.StringFlag{
						Name:    "database",
						Aliases: []string{"d"},
						Usage:   "SQLite database `FILE`",
						EnvVars: []string{"JSONAPI_DATABASE"},
					},
					&cli.BoolFlag{
						Name:  "debug",
						Usage: "Log at debug level",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return cli.Exit(errorColor("%s", err), 1)
					}
					arguments := apilib.ServeCommandArguments{
						Listen:   c.String("listen"),
						Database: c.String("database"),
						Token:    c.String("token"),
						Debug:    c.Bool("debug"),
					}
					err = apilib.ServeCommand(context.Background(), cfg, arguments)
					if err != nil {
						return cli.Exit(errorColor("%s", err), 1)
					}
					return nil
				},
			},
			{
				Name:  "routes",
				Usage: "List the endpoints of the configured resources",
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return cli.Exit(errorColor("%s", err), 1)
					}
					err = apilib.RoutesCommand(cfg, os.Stdout,
						apilib.RoutesCommandArguments{Table: apilib.IsTerminal()})
					if err != nil {
						return cli.Exit(errorColor("%s", err), 1)
					}
					return nil
				},
			},
			{
				Name:      "make-resource",
				Aliases:   []string{"mr"},
				Usage:     "Add a resource type to the configuration",
				ArgsUsage: "<type>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "table", Usage: "Database table"},
					&cli.StringFlag{
						Name:  "route-key",
						Usage: "Column that identifies a row in URLs",
					},
					&cli.StringFlag{
						Name:  "slug-from",
						Usage: "Attribute new route keys are made from",
					},
					&cli.StringSliceFlag{Name: "sort", Usage: "Allowed sort"},
					&cli.StringSliceFlag{Name: "filter", Usage: "Allowed filter"},
					&cli.StringSliceFlag{Name: "include", Usage: "Allowed include"},
					&cli.StringSliceFlag{
						Name:  "link",
						Usage: "Relation rendered with relationship links",
					},
					&cli.StringSliceFlag{
						Name:  "required",
						Usage: "Attribute a create must send",
					},
					&cli.StringSliceFlag{
						Name:  "relation",
						Usage: "'<name>=<belongs_to|has_many> <type> [foreign key]'",
					},
					&cli.BoolFlag{
						Name:  "no-interactive",
						Usage: "Do not ask for missing values",
					},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit(
							errorColor("Exactly one resource type is expected"), 1,
						)
					}
					cfg, err := loadOrCreate(c.String("config"))
					if err != nil {
						return cli.Exit(errorColor("%s", err), 1)
					}
					interactive := !c.Bool("no-interactive") &&
						isatty.IsTerminal(os.Stdin.Fd())
					arguments := apilib.MakeResourceCommandArguments{
						Type:               c.Args().First(),
						Table:              c.String("table"),
						RouteKey:           c.String("route-key"),
						SlugFrom:           c.String("slug-from"),
						AllowedSorts:       c.StringSlice("sort"),
						AllowedFilters:     c.StringSlice("filter"),
						AllowedIncludes:    c.StringSlice("include"),
						RelationshipLinks:  c.StringSlice("link"),
						RequiredAttributes: c.StringSlice("required"),
						Relations:          c.StringSlice("relation"),
						NoInteractive:      !interactive,
					}
					_, err = apilib.MakeResourceCommand(cfg, arguments)
					if err != nil {
						return cli.Exit(errorColor("%s", err), 1)
					}
					return nil
				},
			},
			{
				Name:      "get",
				Usage:     "Fetch a document from a running server",
				ArgsUsage: "<type>[/<id>][?<query>]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Follow the next links and print every page",
					},
					&cli.BoolFlag{
						Name:  "pick",
						Usage: "Choose one resource interactively",
					},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit(errorColor("A path is expected"), 1)
					}
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return cli.Exit(errorColor("%s", err), 1)
					}
					api := apilib.GetConnection(cfg, c.String("token"))
					err = apilib.GetCommand(&api, os.Stdout,
						apilib.GetCommandArguments{
							Path: c.Args().First(),
							All:  c.Bool("all"),
							Pick: c.Bool("pick"),
						})
					if err != nil {
						return cli.Exit(errorColor("%s", err), 1)
					}
					return nil
				},
			},
			{
				Name:      "edit",
				Usage:     "Edit the attributes of a resource on a running server",
				ArgsUsage: "<type> <id>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "editor",
						Usage:   "Editor command",
						EnvVars: []string{"EDITOR"},
					},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() != 2 {
						return cli.Exit(
							errorColor("A type and an id are expected"), 1,
						)
					}
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return cli.Exit(errorColor("%s", err), 1)
					}
					api := apilib.GetConnection(cfg, c.String("token"))
					err = apilib.EditCommand(&api, apilib.EditCommandArguments{
						Type:   c.Args().Get(0),
						Id:     c.Args().Get(1),
						Editor: c.String("editor"),
					})
					if err != nil {
						return cli.Exit(errorColor("%s", err), 1)
					}
					return nil
				},
			},
			{
				Name:  "check",
				Usage: "Compare the configuration with the database",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "database",
						Aliases: []string{"d"},
						Usage:   "SQLite database `FILE`",
						EnvVars: []string{"JSONAPI_DATABASE"},
					},
					&cli.IntFlag{
						Name:  "workers",
						Value: 4,
						Usage: "Resources checked at the same time",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return cli.Exit(errorColor("%s", err), 1)
					}
					apilib.ServeCommandArguments{
						Database: c.String("database"),
					}.ApplyOverrides(cfg)
					st, err := apilib.OpenStore(cfg)
					if err != nil {
						return cli.Exit(errorColor("%s", err), 1)
					}
					defer st.Close()

					arguments := apilib.CheckCommandArguments{
						Workers: c.Int("workers"),
					}
					if apilib.IsTerminal() {
						arguments.Progress = os.Stdout
					}
					problems, err := apilib.CheckCommand(
						context.Background(), cfg, st, arguments,
					)
					if err != nil {
						return cli.Exit(errorColor("%s", err), 1)
					}
					for _, problem := range problems {
						pterm.Warning.Printfln(
							"[%s] %s", problem.Resource, problem.Message,
						)
					}
					if len(problems) > 0 {
						return cli.Exit(
							errorColor("%d problem(s) found", len(problems)), 1,
						)
					}
					pterm.Success.Println("Configuration matches the database")
					return nil
				},
			},
			{
				Name:  "update",
				Usage: "Update the apiserver binary to the latest release",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "check",
						Usage: "Only check for a new release",
					},
					&cli.BoolFlag{
						Name:  "no-interactive",
						Usage: "Update without asking",
					},
					&cli.BoolFlag{
						Name:  "debug",
						Usage: "Log the release lookup",
					},
				},
				Action: func(c *cli.Context) error {
					err := apilib.UpdateCommand(apilib.UpdateCommandArguments{
						Version:       apilib.Version,
						NoInteractive: c.Bool("no-interactive"),
						Check:         c.Bool("check"),
						Debug:         c.Bool("debug"),
					})
					if err != nil {
						return cli.Exit(errorColor("%s", err), 1)
					}
					return nil
				},
			},
		},
		Flags: flags,
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
