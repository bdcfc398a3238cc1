package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/condapip/pkg/prefix"
)

// listCommand creates the list command.
func (c *CLI) listCommand() *cobra.Command {
	var (
		path string
		pip  bool
	)

	cmd := &cobra.Command{
		Use:   "list [flags]",
		Short: "List packages installed in a conda environment",
		Long: `List shows the conda records of an environment. With --pip, packages
installed by pip into the environment are included under the pypi channel.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := prefixPath(path)
			if err != nil {
				return err
			}
			data, err := prefix.Load(p, pip)
			if err != nil {
				return err
			}
			if data.Len() == 0 {
				printInfo("No packages installed in %s", p)
				return nil
			}

			records := data.Records()
			rows := make([][]string, len(records))
			for i, r := range records {
				rows[i] = []string{r.Name, r.Version, r.Build, r.ChannelName()}
			}
			printTable([]string{"Name", "Version", "Build", "Channel"}, rows)
			printDetail("%d packages in %s", len(records), p)
			return nil
		},
	}

	cmd.Flags().StringVarP(&path, "prefix", "p", "", "environment to inspect (default $CONDA_PREFIX)")
	cmd.Flags().BoolVar(&pip, "pip", false, "include pip-installed packages")

	return cmd
}
