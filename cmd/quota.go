package cmd

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"ocrbot/internal/logger"
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Inspect or clear per-user AI quota",
	Long: `AI quota counts are cumulative; the bot never resets them on its own.
Use "quota reset" to give users their AI requests back.`,
}

var quotaShowCmd = &cobra.Command{
	Use:   "show [user-id]",
	Short: "Show used and remaining AI requests",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := requireConfig()
		if err != nil {
			return err
		}
		st, err := openStores(cfg)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if len(args) == 1 {
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%d: used %d, left %s\n", id, st.quota.Used(id), st.quota.Remaining(id))
			return nil
		}

		usage := st.quota.Usage()
		ids := make([]string, 0, len(usage))
		for id := range usage {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, raw := range ids {
			id, err := parseUserID(raw)
			if err != nil {
				continue
			}
			fmt.Fprintf(out, "%d: used %d, left %s\n", id, usage[raw], st.quota.Remaining(id))
		}
		if len(ids) == 0 {
			fmt.Fprintln(out, "No AI requests recorded.")
		}
		return nil
	},
}

var quotaResetCmd = &cobra.Command{
	Use:   "reset [user-id]",
	Short: "Clear AI quota for one user, or for everyone with --all",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.WithComponent("quota")

		all, _ := cmd.Flags().GetBool("all")
		if all == (len(args) == 1) {
			return fmt.Errorf("pass either a user id or --all")
		}

		cfg, err := requireConfig()
		if err != nil {
			return err
		}
		st, err := openStores(cfg)
		if err != nil {
			return err
		}

		if all {
			if err := st.quota.ResetAll(); err != nil {
				return err
			}
			log.Info().Msg("Cleared AI quota for all users")
			fmt.Fprintln(cmd.OutOrStdout(), "AI quota cleared for all users.")
			return nil
		}

		id, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		if err := st.quota.Reset(id); err != nil {
			return err
		}
		log.Info().Int64("user_id", id).Msg("Cleared AI quota")
		fmt.Fprintf(cmd.OutOrStdout(), "AI quota cleared for %d.\n", id)
		return nil
	},
}

func parseUserID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user id %q: %w", raw, err)
	}
	return id, nil
}

func init() {
	rootCmd.AddCommand(quotaCmd)
	quotaCmd.AddCommand(quotaShowCmd, quotaResetCmd)

	quotaResetCmd.Flags().Bool("all", false, "Clear quota for every user")
}
