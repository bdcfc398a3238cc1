package cli

import (
	"github.com/spf13/cobra"
)

// convertCommand creates the convert command.
func (c *CLI) convertCommand() *cobra.Command {
	var (
		backend string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "convert [flags] SPEC...",
		Short: "Translate PyPI specifiers into conda specifiers",
		Example: `  condapip convert build ib_insync "requests>=2,<3"
  condapip convert --backend cf-graph torch`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			e, err := c.newEnv(ctx, noCache)
			if err != nil {
				return err
			}
			defer e.Close()

			res, err := c.resolver(e, backend)
			if err != nil {
				return err
			}

			sp := startSpinner(ctx, "Resolving packages...")
			resolutions, err := res.ResolveAll(ctx, args)
			sp.Stop()
			if err != nil {
				return err
			}

			rows := make([][]string, len(resolutions))
			for i, r := range resolutions {
				rows[i] = []string{r.PyPISpec, r.CondaSpec, channelLabel(r, e.cfg.Channel()), sourceLabel(r)}
			}
			printTable([]string{"PyPI", "Conda", "Channel", "Source"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&backend, "backend", "", "use only this mapping backend (plus fallbacks)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the response cache")

	return cmd
}
