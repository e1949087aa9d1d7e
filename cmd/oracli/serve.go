package main

import (
	"github.com/erikwco/oracli/v3/server"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *options) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()
			if addr != "" {
				a.cfg.API.Addr = addr
			}

			srv := server.NewServer(*a.cfg, server.Deps{
				Source:  a.pool,
				Catalog: a.cache,
				Health:  a.health,
			}, &a.log)
			if err := srv.Start(); err != nil {
				return err
			}

			<-cmd.Context().Done()
			return srv.Close()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "overrides the listen address of the config file")
	return cmd
}
