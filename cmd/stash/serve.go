package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/acksell/stash/inspect"
)

func (a *app) serveCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"ui"},
		Short:   "Start the inspection API",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("port") {
				port = a.cfg.Port
			}
			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			snips, err := a.snippets(ctx)
			if err != nil {
				return err
			}

			srv := inspect.NewServer(store, snips, inspect.ServerConfig{
				Port:   port,
				Logger: a.log,
			})
			ready := make(chan string, 1)
			go func() {
				if addr, ok := <-ready; ok {
					fmt.Fprintf(a.out, "stash inspect API on http://%s (backend %s), press Ctrl+C to stop\n", addr, a.cfg.Backend)
				}
			}()
			err = srv.Run(ctx, ready)
			close(ready)
			return err
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP port (defaults to config port, 8080)")
	return cmd
}
