package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ralphtool/ralph/internal/db"
)

func runsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:          "runs",
		Short:        "List recorded runs",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			storeDB, _, closeFn, err := openDB()
			if err != nil {
				return err
			}
			defer closeFn()

			runs, err := db.NewStore(storeDB).ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("no runs recorded")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tCHANGE\tSTATUS\tSTORIES\tSTARTED\tENDED")
			for _, r := range runs {
				ended := "-"
				if r.EndedAt != nil {
					ended = *r.EndedAt
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\t%s\n",
					r.ID, r.Change, r.Status, r.StoriesDone, r.StoriesTotal, r.CreatedAt, ended)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")
	return cmd
}
