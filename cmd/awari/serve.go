package main

import (
	"github.com/spf13/cobra"

	"github.com/yourusername/awari/pkg/api"
	"github.com/yourusername/awari/pkg/external"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		file     string
		host     string
		port     int
		extAddr  string
		noPrompt bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a finished table over HTTP",
		Long: `serve answers value and evaluation queries on a finished table:

  GET  /api/health
  GET  /api/value?code=N
  POST /api/evaluate       {"board": "2,0,1|0,3,0"}
  GET  /api/ws             WebSocket queries and progress
  GET  /api/progress/stream
  GET  /metrics

With --external the same table is also offered over the line based
external player protocol (version, value, eval, best, set, exit).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.openTable(file)
			if err != nil {
				return err
			}
			defer t.Close()

			sc := a.serverConfig()
			if cmd.Flags().Changed("host") {
				sc.Host = host
			}
			if cmd.Flags().Changed("port") {
				sc.Port = port
			}
			if extAddr != "" {
				opts := external.DefaultServerOptions()
				opts.Addr = extAddr
				opts.PromptEnabled = !noPrompt
				opts.Logger = a.log
				ext := external.NewServer(t, opts)
				if err := ext.Start(); err != nil {
					return err
				}
				defer ext.Stop()
			}

			srv := api.NewServer(t.Geometry(), sc, version, a.log)
			srv.SetTable(t)
			return srv.Run(cmd.Context())
		},
	}
	f := cmd.Flags()
	f.StringVarP(&file, "table", "t", "", "flat table file (default: the configured backend)")
	f.StringVar(&host, "host", "", "host to bind to (use 0.0.0.0 for all interfaces)")
	f.IntVar(&port, "port", 0, "port to listen on")
	f.StringVar(&extAddr, "external", "", "also serve the external player protocol on this address, e.g. :1234")
	f.BoolVar(&noPrompt, "no-prompt", false, "do not send \"> \" prompts on external connections")
	return cmd
}
