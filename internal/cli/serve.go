package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/condapip/pkg/server"
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the translation API over HTTP",
		Long: `Serve exposes specifier translation as a JSON API:

  GET  /healthz
  GET  /v1/backends
  GET  /v1/translate?spec=SPEC[&spec=...][&backend=NAME]
  POST /v1/translate  {"specs": [...], "backends": [...]}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			e, err := c.newEnv(ctx, false)
			if err != nil {
				return err
			}
			defer e.Close()

			if addr == "" {
				addr = e.cfg.Server.Addr
			}
			srv := server.New(e.registry, e.cfg.Backends, e.cfg.Fallbacks, c.Logger)
			printInfo("Listening on %s", StyleHighlight.Render("http://"+addr))
			return srv.ListenAndServe(ctx, addr, e.cfg.Server.ReadHeaderTimeout, e.cfg.Server.ShutdownTimeout)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, 127.0.0.1:8765)")

	return cmd
}
