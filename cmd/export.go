package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ocrbot/internal/logger"
	"ocrbot/internal/sheets"
)

var exportUsersCmd = &cobra.Command{
	Use:   "export-users",
	Short: "Copy the user directory to Google Sheets",
	Long: `Replace the configured worksheet with the current user directory.

Required environment variables:
  GOOGLE_SHEET_URL - URL of the target spreadsheet
  GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS - Service account with edit access`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.WithComponent("export")

		cfg, err := requireConfig()
		if err != nil {
			return err
		}
		if cfg.GoogleSheetURL == "" {
			return fmt.Errorf("GOOGLE_SHEET_URL is required")
		}
		st, err := openStores(cfg)
		if err != nil {
			return err
		}
		lines, err := st.users.Lines()
		if err != nil {
			return fmt.Errorf("failed to read user directory: %w", err)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		svc, err := sheets.NewSheetsService(ctx, cfg.GoogleSheetURL, cfg.GoogleSheetWorksheet)
		if err != nil {
			return err
		}
		rows, err := svc.ExportUsers(ctx, lines)
		if err != nil {
			return err
		}
		log.Info().Int("rows", rows).Str("sheet", cfg.GoogleSheetWorksheet).Msg("User directory exported")
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d users to %s.\n", rows, cfg.GoogleSheetWorksheet)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportUsersCmd)
}
