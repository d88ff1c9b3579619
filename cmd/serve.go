package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"ocrbot/internal/ai"
	"ocrbot/internal/bot"
	"ocrbot/internal/cache"
	"ocrbot/internal/config"
	"ocrbot/internal/flow"
	"ocrbot/internal/logger"
	"ocrbot/internal/ocr"
	"ocrbot/internal/sheets"
	"ocrbot/internal/telegram"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Telegram bot",
	Long: `Connect to Telegram and process updates until interrupted.

Required environment variables:
  TELEGRAM_BOT_TOKEN - Bot API token
  OPENAI_API_KEY     - Key for the AI escalation model
  GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS - Google Cloud credentials for OCR`,
	Example: `  # Run with settings from .env
  ocrbot serve

  # Run with a YAML config and debug logging
  LOG_LEVEL=debug ocrbot serve --config ocrbot.yaml`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	cfg, err := requireConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateBot(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(cfg)
	if err != nil {
		return err
	}

	recognizer, err := ocr.New(ctx, ocr.Options{
		Engine:      cfg.OCREngine,
		ProjectID:   cfg.GoogleCloudProject,
		Location:    cfg.GoogleCloudLocation,
		ProcessorID: cfg.DocumentAIProcessorID,
	})
	if err != nil {
		return fmt.Errorf("failed to create OCR recognizer: %w", err)
	}
	defer func() {
		if closeErr := recognizer.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close OCR recognizer")
		}
	}()

	aiRecognizer, err := ai.NewVisionRecognizer(ai.Config{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.AIBaseURL,
		Model:   cfg.AIModel,
	})
	if err != nil {
		return fmt.Errorf("failed to create AI recognizer: %w", err)
	}

	client, err := telegram.New(cfg.TelegramToken)
	if err != nil {
		return err
	}
	if err := client.RegisterCommands(bot.Menus); err != nil {
		log.Warn().Err(err).Msg("Failed to register command menus")
	}

	downloader, err := telegram.NewDownloader(client.API(), cfg.DownloadDir)
	if err != nil {
		return err
	}

	results := cache.New()
	sweeper := cache.NewSweeper(results, cfg.CacheTTL, cfg.SweepInterval)

	controller := flow.NewController(flow.Deps{
		Messenger:  client,
		Downloader: downloader,
		OCR:        recognizer,
		AI:         aiRecognizer,
		Cache:      results,
		Quota:      st.quota,
		Stats:      st.stats,
		Prefs:      st.prefs,
		Users:      st.users,
	})

	handler := bot.New(bot.Options{
		Flow:      controller,
		Messenger: client,
		Quota:     st.quota,
		Stats:     st.stats,
		Prefs:     st.prefs,
		Users:     st.users,
		Exporter:  userExporter(ctx, cfg),
		ResultTTL: cfg.CacheTTL,
	})

	log.Info().
		Str("engine", cfg.OCREngine).
		Str("model", cfg.AIModel).
		Int("quota_limit", cfg.AIQuotaLimit).
		Dur("ttl", cfg.CacheTTL).
		Msg("Bot starting")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.Run(gctx, handler)
	})
	g.Go(func() error {
		return sweeper.Run(gctx)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	log.Info().Int("pending_results", results.Len()).Msg("Bot stopped")
	return nil
}

// userExporter returns the Sheets exporter, or nil when no sheet is configured
// or it cannot be reached.
func userExporter(ctx context.Context, cfg *config.Config) bot.UserExporter {
	if cfg.GoogleSheetURL == "" {
		return nil
	}
	svc, err := sheets.NewSheetsService(ctx, cfg.GoogleSheetURL, cfg.GoogleSheetWorksheet)
	if err != nil {
		log := logger.WithComponent("serve")
		log.Warn().Err(err).Msg("Sheets export disabled")
		return nil
	}
	return svc
}
