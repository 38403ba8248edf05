package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <module-id>",
		Short: "Show compression history for a module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := openStore(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer store.Close()

			history, err := store.GetCompressionHistory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(history) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no compression passes recorded for %s\n", args[0])
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "WHEN\tELIGIBLE\tCOMPRESSED\tDEFERRED\tCACHE HITS\tRATIO\tDURATION")
			for _, ev := range history {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%.0f%%\t%dms\n",
					ev.CreatedAt.Format("2006-01-02 15:04:05"),
					ev.TurnsEligible, ev.TurnsCompressed, ev.TurnsDeferred,
					ev.CacheHits, ev.Ratio()*100, ev.DurationMs)
			}
			return w.Flush()
		},
	}
}
