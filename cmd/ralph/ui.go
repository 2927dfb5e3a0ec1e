package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/ralphtool/ralph/internal/db"
	"github.com/ralphtool/ralph/internal/web"
)

func uiCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:          "ui",
		Short:        "Serve the run status page",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			storeDB, _, closeFn, err := openDB()
			if err != nil {
				return err
			}
			defer closeFn()

			server, err := web.NewServer(db.NewStore(storeDB))
			if err != nil {
				return err
			}

			addr := fmt.Sprintf(":%d", port)
			fmt.Printf("Serving run status on http://localhost%s\n", addr)
			return http.ListenAndServe(addr, server.Routes())
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "port to listen on")
	return cmd
}
