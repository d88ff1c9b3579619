package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print usage statistics from the data directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := requireConfig()
		if err != nil {
			return err
		}
		st, err := openStores(cfg)
		if err != nil {
			return err
		}

		s := st.stats.Snapshot()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Total requests: %d\n", s.Total)
		fmt.Fprintf(out, "Satisfied:      %d (%.1f%%)\n", s.Satisfied, s.SatisfiedPercent())
		fmt.Fprintf(out, "AI used:        %d (%.1f%%)\n", s.AIUsed, s.AIUsedPercent())
		fmt.Fprintf(out, "Known users:    %d\n", len(st.users.IDs()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
