package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/youssefsiam38/questlog/summary"
)

func newSummaryCmd() *cobra.Command {
	var asHTML bool
	cmd := &cobra.Command{
		Use:   "summary [module-id]",
		Short: "Show living summaries, optionally rendered as HTML",
		Args:  cobra.MaximumNArgs(1),
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

			if len(args) == 1 {
				sum, err := store.GetLivingSummary(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				text := sum.NarrativeText
				if asHTML {
					if text, err = summary.RenderHTML(text); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (visits: %d, last: %s)\n\n%s\n",
					sum.ModuleID, sum.VisitCount,
					sum.LastVisitAt.Format("2006-01-02"), text)
				return nil
			}

			summaries, err := store.ListLivingSummaries(cmd.Context())
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no living summaries")
				return nil
			}
			block := summary.CampaignContext(summaries, "", 0)
			fmt.Fprintln(cmd.OutOrStdout(), block)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asHTML, "html", false, "render the narrative markdown as sanitized HTML")
	return cmd
}
