package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newArchivesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archives",
		Short: "List archived module segments",
		Args:  cobra.NoArgs,
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

			records, err := store.ListArchives(cmd.Context())
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no archived modules")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "MODULE\tTURNS\tCHARS\tARCHIVED AT")
			for _, rec := range records {
				chars := 0
				for _, t := range rec.Turns {
					chars += len(t.Content)
				}
				fmt.Fprintf(w, "%s\t%d\t%d\t%s\n",
					rec.ModuleID, len(rec.Turns), chars,
					rec.ArchivedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}
}
