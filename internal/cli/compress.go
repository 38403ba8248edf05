package cli

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/spf13/cobra"

	"github.com/youssefsiam38/questlog/compress"
	"github.com/youssefsiam38/questlog/model"
	"github.com/youssefsiam38/questlog/storage"
)

// newCompressCmd runs one offline compression pass over a module's stored
// segment. Useful between sessions: the cost is paid up front instead of
// during play.
func newCompressCmd() *cobra.Command {
	var keepRecent int
	var workers int
	cmd := &cobra.Command{
		Use:   "compress <module-id>",
		Short: "Run one compression pass over a module's stored segment",
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

			moduleID := args[0]
			turns, err := store.LoadSegment(cmd.Context(), moduleID)
			if err != nil {
				return err
			}
			if len(turns) <= keepRecent {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to compress")
				return nil
			}

			client := anthropic.NewClient() // ANTHROPIC_API_KEY from env
			cfg := compress.Config{Workers: workers}
			cfg.ApplyDefaults()
			compressor := compress.NewCompressor(
				model.NewAnthropic(&client, v.GetString("model.id")), nil, cfg)
			engine := compress.NewEngine(compressor, cfg.Workers)

			eligible := make([]storage.Turn, 0, len(turns)-keepRecent)
			for _, t := range turns[:len(turns)-keepRecent] {
				if t.Class == storage.ClassStructured || t.Compressed() {
					continue
				}
				eligible = append(eligible, t)
			}
			pass := engine.Run(cmd.Context(), eligible)

			for _, r := range pass.Results {
				if r.Err != nil || r.Compressed == r.Original {
					continue
				}
				for i := range turns {
					if turns[i].Seq != r.Seq {
						continue
					}
					turns[i].Content = r.Compressed
					turns[i].State = storage.StateCompressed
					if err := store.ReplaceTurnContent(cmd.Context(), moduleID, turns[i]); err != nil {
						return err
					}
					break
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"compressed %d/%d turns (%d failed, %d cache hits, ratio %.2f)\n",
				pass.Compressed, len(eligible), pass.Failed, pass.CacheHits, pass.Ratio())
			return nil
		},
	}
	cmd.Flags().IntVar(&keepRecent, "keep-recent", 5, "newest turns to leave verbatim")
	cmd.Flags().IntVar(&workers, "workers", compress.DefaultWorkers, "compression worker count")
	return cmd
}
