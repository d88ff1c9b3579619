package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"ocrbot/internal/ai"
	"ocrbot/internal/config"
	"ocrbot/internal/logger"
	"ocrbot/internal/ocr"
)

var ocrCmd = &cobra.Command{
	Use:   "ocr [image-file]",
	Short: "Extract text from an image with the bot's OCR engines",
	Long: `Run the bot's local OCR on one image file, optionally followed by the AI model.

This is the same recognition a chat user gets, without Telegram, caches or quota.
Useful to check credentials and compare engines.

Required environment variables:
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS - Inline JSON credentials string
  OPENAI_API_KEY - Only with --ai`,
	Example: `  # Extract text with the default languages
  ocrbot ocr receipt.jpg

  # Hindi only, compare with the AI model, JSON output
  ocrbot ocr sign.png --lang hin --ai --json

  # Save extracted text to file
  ocrbot ocr scan.png -o extracted.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runOCR,
}

// OCROutput represents the JSON output structure when --json flag is used
type OCROutput struct {
	Text               string    `json:"text"`
	AIText             string    `json:"ai_text,omitempty"`
	Language           string    `json:"language,omitempty"`
	Engine             string    `json:"engine"`
	ProcessedAt        time.Time `json:"processed_at"`
	ProcessingDuration string    `json:"processing_duration"`
	FileName           string    `json:"file_name"`
	FileSize           int64     `json:"file_size"`
	MimeType           string    `json:"mime_type"`
}

func init() {
	rootCmd.AddCommand(ocrCmd)

	ocrCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	ocrCmd.Flags().StringP("lang", "l", "", "Language spec such as eng+hin (default: OCR_DEFAULT_LANG)")
	ocrCmd.Flags().Bool("ai", false, "Also run the AI model on the image")
	ocrCmd.Flags().Bool("json", false, "Output as JSON")
	ocrCmd.Flags().Int("timeout", 120, "Processing timeout in seconds")
}

func runOCR(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("ocr")

	cfg, err := requireConfig()
	if err != nil {
		return err
	}

	outputPath, _ := cmd.Flags().GetString("output")
	lang, _ := cmd.Flags().GetString("lang")
	withAI, _ := cmd.Flags().GetBool("ai")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	if lang == "" {
		lang = cfg.DefaultLanguage
	} else if lang, err = ocr.NormalizeLanguageSpec(lang); err != nil {
		return err
	}

	imagePath := args[0]
	log.Info().
		Str("file", imagePath).
		Str("lang", lang).
		Bool("ai", withAI).
		Int("timeout", timeoutSecs).
		Msg("Starting OCR processing")

	fileInfo, mime, err := validateImageFile(imagePath, log)
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	recognizer, err := createRecognizer(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := recognizer.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close OCR recognizer")
		}
	}()

	startTime := time.Now()
	text, err := recognizer.RecognizeText(ctx, imagePath, lang)
	if err != nil {
		return handleOCRError(err, log)
	}

	result := OCROutput{
		Text:        text,
		Language:    lang,
		Engine:      cfg.OCREngine,
		ProcessedAt: time.Now(),
		FileName:    filepath.Base(fileInfo.Name()),
		FileSize:    fileInfo.Size(),
		MimeType:    mime,
	}

	if withAI {
		aiRecognizer, err := ai.NewVisionRecognizer(ai.Config{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.AIBaseURL,
			Model:   cfg.AIModel,
		})
		if err != nil {
			return err
		}
		if result.AIText, err = aiRecognizer.RecognizeTextAI(ctx, imagePath); err != nil {
			return handleOCRError(err, log)
		}
	}
	result.ProcessingDuration = time.Since(startTime).String()

	log.Info().
		Str("duration", result.ProcessingDuration).
		Int("text_length", len(result.Text)).
		Int("ai_text_length", len(result.AIText)).
		Msg("OCR processing completed successfully")

	return outputResults(result, outputPath, jsonOutput, log)
}

// validateImageFile checks that the file exists, is within size limits and
// sniffs its content type.
func validateImageFile(path string, log zerolog.Logger) (os.FileInfo, string, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Error().Str("file", path).Msg("Image file not found")
			return nil, "", fmt.Errorf("image file not found: %s", path)
		}
		if os.IsPermission(err) {
			log.Error().Str("file", path).Msg("Permission denied accessing image file")
			return nil, "", fmt.Errorf("permission denied accessing image file: %s", path)
		}
		return nil, "", fmt.Errorf("error accessing image file: %w", err)
	}

	if !fileInfo.Mode().IsRegular() {
		return nil, "", fmt.Errorf("path is not a regular file: %s", path)
	}
	if fileInfo.Size() == 0 {
		return nil, "", fmt.Errorf("image file is empty: %s", path)
	}
	if fileInfo.Size() > ocr.MaxFileSizeBytes {
		log.Error().
			Str("file", path).
			Int64("size", fileInfo.Size()).
			Int64("max_size", ocr.MaxFileSizeBytes).
			Msg("Image file exceeds maximum size limit")
		return nil, "", fmt.Errorf("image file too large (%d bytes). Maximum size is %d bytes (20MB)",
			fileInfo.Size(), ocr.MaxFileSizeBytes)
	}

	mime, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image file: %w", err)
	}
	if !strings.HasPrefix(mime.String(), "image/") {
		log.Warn().
			Str("file", path).
			Str("mime", mime.String()).
			Msg("File does not look like an image")
	}
	return fileInfo, mime.String(), nil
}

// createContextWithTimeout creates a context with timeout and signal handling
func createContextWithTimeout(timeoutSecs int, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling OCR processing")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// createRecognizer creates the configured local OCR engine
func createRecognizer(ctx context.Context, cfg *config.Config, log zerolog.Logger) (ocr.Recognizer, error) {
	recognizer, err := ocr.New(ctx, ocr.Options{
		Engine:      cfg.OCREngine,
		ProjectID:   cfg.GoogleCloudProject,
		Location:    cfg.GoogleCloudLocation,
		ProcessorID: cfg.DocumentAIProcessorID,
	})
	if err != nil {
		if errors.Is(err, ocr.ErrMissingCredentials) {
			log.Error().Err(err).Msg("Google Cloud credentials validation failed")
			return nil, fmt.Errorf("Google Cloud credentials validation failed. Please verify:\n\n" +
				"1. Credentials file exists and is readable\n" +
				"2. JSON format is valid\n" +
				"3. Service account has proper permissions\n\n" +
				"Original error: %w", err)
		}
		log.Error().Err(err).Msg("Failed to create OCR recognizer")
		return nil, fmt.Errorf("failed to create OCR recognizer: %w", err)
	}

	log.Debug().Str("engine", cfg.OCREngine).Msg("OCR recognizer created successfully")
	return recognizer, nil
}

// handleOCRError provides user-friendly error messages for OCR failures
func handleOCRError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("OCR processing failed")

	errStr := err.Error()

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("OCR processing timed out. Try increasing --timeout")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("OCR processing was canceled")
	case errors.Is(err, ocr.ErrImageTooLarge):
		return fmt.Errorf("image is too large (maximum 20MB)")
	case errors.Is(err, ocr.ErrUnsupportedLanguage):
		return fmt.Errorf("%w. Run with a spec such as --lang eng+hin", err)
	case errors.Is(err, ai.ErrNotAnImage):
		return fmt.Errorf("the AI model only accepts images: %w", err)
	case strings.Contains(errStr, "Unauthenticated") ||
		strings.Contains(errStr, "invalid_grant") ||
		strings.Contains(errStr, "transport: per-RPC creds failed"):
		return fmt.Errorf("Google Cloud authentication failed. Set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS.\n\nOriginal error: %v", err)
	case strings.Contains(errStr, "PERMISSION_DENIED"):
		return fmt.Errorf("permission denied. Please ensure your Google Cloud service account has the 'Cloud Vision API User' role")
	case strings.Contains(errStr, "QUOTA_EXCEEDED") ||
		strings.Contains(errStr, "RESOURCE_EXHAUSTED"):
		return fmt.Errorf("Google Cloud API quota exceeded. Check your project quotas in the Google Cloud Console")
	case errors.Is(err, ocr.ErrOCRFailed):
		return fmt.Errorf("OCR processing failed. This may be due to network issues, API quota limits, or service unavailability: %w", err)
	default:
		return fmt.Errorf("OCR processing failed: %w", err)
	}
}

// outputResults formats and outputs the OCR results
func outputResults(result OCROutput, outputPath string, jsonOutput bool, log zerolog.Logger) error {
	var outputData []byte

	if jsonOutput {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal JSON output")
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
		outputData = append(data, '\n')
	} else {
		var output strings.Builder
		if result.AIText != "" {
			output.WriteString("=== Extracted Text ===\n\n")
		}
		output.WriteString(result.Text)
		output.WriteString("\n")
		if result.AIText != "" {
			output.WriteString("\n=== AI Processed Text ===\n\n")
			output.WriteString(result.AIText)
			output.WriteString("\n")
		}
		outputData = []byte(output.String())
	}

	if outputPath == "" {
		if _, err := os.Stdout.Write(outputData); err != nil {
			log.Error().Err(err).Msg("Failed to write to stdout")
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}

	if err := os.WriteFile(outputPath, outputData, 0o644); err != nil {
		log.Error().
			Err(err).
			Str("output_file", outputPath).
			Msg("Failed to write output file")
		return fmt.Errorf("failed to write output file: %w", err)
	}
	log.Info().
		Str("output_file", outputPath).
		Int("bytes", len(outputData)).
		Msg("OCR results written to file")
	return nil
}
