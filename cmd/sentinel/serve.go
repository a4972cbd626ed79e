package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/promptsentinel/sentinel/api"
	"github.com/promptsentinel/sentinel/internal/store"
)

func newServeCmd(st *cliState) *cobra.Command {
	var (
		addr        string
		historyPath string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve run history and on-demand runs over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := store.Open(historyPath)
			if err != nil {
				return err
			}
			defer history.Close()

			srv, err := api.NewServer(history, st.configPath)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "listening on %s\n", addr)
			return srv.Run(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&historyPath, "history", store.DefaultSQLitePath, "history database path")
	return cmd
}
