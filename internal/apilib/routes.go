package apilib

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"
	"github.com/transifex/jsonapi-server/internal/config"
	"github.com/transifex/jsonapi-server/internal/server"
)

type RoutesCommandArguments struct {
	// Render a table instead of tab separated lines
	Table bool
}

// IsTerminal reports whether stdout is attached to a terminal
func IsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func RoutesCommand(
	cfg *config.Config, out io.Writer, arguments RoutesCommandArguments,
) error {
	routes := server.RouteTable(cfg)

	if !arguments.Table {
		for _, route := range routes {
			_, err := fmt.Fprintf(
				out, "%s\t%s\t%s\n", route.Method, route.Path, route.Name,
			)
			if err != nil {
				return err
			}
		}
		return nil
	}

	data := pterm.TableData{{"Method", "Path", "Name"}}
	for _, route := range routes {
		data = append(data, []string{route.Method, route.Path, route.Name})
	}
	rendered, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, rendered)
	return err
}
