package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// backendsCommand creates the backends command.
func (c *CLI) backendsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List name-mapping backends in priority order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := c.newEnv(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer e.Close()

			order := priority(e.cfg, "")
			var rows [][]string
			for i, name := range order {
				if _, ok := e.registry.Get(name); !ok {
					continue
				}
				rows = append(rows, []string{fmt.Sprint(i + 1), name, role(e.cfg.Fallbacks, name)})
			}
			for _, name := range e.registry.Names() {
				if !slices.Contains(order, name) {
					rows = append(rows, []string{"-", name, "available"})
				}
			}
			printTable([]string{"#", "Backend", "Role"}, rows)
			printNextStep("Use a single backend", "condapip install --backend NAME SPEC...")
			return nil
		},
	}
}

func role(fallbacks []string, name string) string {
	if slices.Contains(fallbacks, name) {
		return "fallback"
	}
	return "primary"
}
