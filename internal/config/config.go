package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ocrbot/internal/logger"
	"ocrbot/pkg/models"
)

// EnvConfigPath names the env var holding an optional YAML config file.
const EnvConfigPath = "OCRBOT_CONFIG"

type Config struct {
	// Telegram Configuration
	TelegramToken string `yaml:"telegramToken"`
	AdminIDs      string `yaml:"adminIDs"`

	// Storage Configuration
	DataDir     string `yaml:"dataDir"`
	DownloadDir string `yaml:"downloadDir"`

	// Local OCR Configuration
	OCREngine             string `yaml:"ocrEngine"`
	DefaultLanguage       string `yaml:"defaultLanguage"`
	GoogleCloudProject    string `yaml:"googleCloudProject"`
	GoogleCloudLocation   string `yaml:"googleCloudLocation"`
	DocumentAIProcessorID string `yaml:"documentAIProcessorID"`

	// AI Escalation Configuration
	OpenAIAPIKey string `yaml:"openAIAPIKey"`
	AIBaseURL    string `yaml:"aiBaseURL"`
	AIModel      string `yaml:"aiModel"`
	AIQuotaLimit int    `yaml:"aiQuotaLimit"`

	// Result Lifecycle Configuration
	CacheTTL      time.Duration `yaml:"cacheTTL"`
	SweepInterval time.Duration `yaml:"sweepInterval"`

	// Optional: Google Sheets export of the user directory
	GoogleSheetURL       string `yaml:"googleSheetURL"`
	GoogleSheetWorksheet string `yaml:"googleSheetWorksheet"`

	// Logging Configuration
	LogLevel      string `yaml:"logLevel"`
	LogFormat     string `yaml:"logFormat"`
	LogTimeFormat string `yaml:"logTimeFormat"`
	LogOutput     string `yaml:"logOutput"`
}

// Default returns the configuration used when neither a file nor env vars set a key.
func Default() *Config {
	return &Config{
		DataDir:              "data",
		OCREngine:            "vision",
		DefaultLanguage:      "",
		GoogleCloudLocation:  "us",
		AIModel:              "gpt-4o-mini",
		AIQuotaLimit:         5,
		CacheTTL:             30 * time.Minute,
		SweepInterval:        10 * time.Minute,
		GoogleSheetWorksheet: "Users",
		LogLevel:             "info",
		LogFormat:            "console",
		LogTimeFormat:        "2006-01-02T15:04:05Z07:00",
		LogOutput:            "stdout",
	}
}

// Load builds the configuration from defaults, the optional YAML file at path and
// finally the environment, in that order of precedence.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	config.TelegramToken = getEnv("TELEGRAM_BOT_TOKEN", config.TelegramToken)
	config.AdminIDs = getEnv("ADMIN_IDS", config.AdminIDs)
	config.DataDir = getEnv("DATA_DIR", config.DataDir)
	config.DownloadDir = getEnv("DOWNLOAD_DIR", config.DownloadDir)
	config.OCREngine = getEnv("OCR_ENGINE", config.OCREngine)
	config.DefaultLanguage = getEnv("OCR_DEFAULT_LANG", config.DefaultLanguage)
	config.GoogleCloudProject = getEnv("GOOGLE_CLOUD_PROJECT", config.GoogleCloudProject)
	config.GoogleCloudLocation = getEnv("GOOGLE_CLOUD_LOCATION", config.GoogleCloudLocation)
	config.DocumentAIProcessorID = getEnv("DOCUMENT_AI_PROCESSOR_ID", config.DocumentAIProcessorID)
	config.OpenAIAPIKey = getEnv("OPENAI_API_KEY", config.OpenAIAPIKey)
	config.AIBaseURL = getEnv("AI_BASE_URL", config.AIBaseURL)
	config.AIModel = getEnv("AI_MODEL", config.AIModel)
	config.GoogleSheetURL = getEnv("GOOGLE_SHEET_URL", config.GoogleSheetURL)
	config.GoogleSheetWorksheet = getEnv("GOOGLE_SHEET_WORKSHEET", config.GoogleSheetWorksheet)
	config.LogLevel = getEnv("LOG_LEVEL", config.LogLevel)
	config.LogFormat = getEnv("LOG_FORMAT", config.LogFormat)
	config.LogTimeFormat = getEnv("LOG_TIME_FORMAT", config.LogTimeFormat)
	config.LogOutput = getEnv("LOG_OUTPUT", config.LogOutput)

	var err error
	if config.AIQuotaLimit, err = getEnvInt("AI_QUOTA_LIMIT", config.AIQuotaLimit); err != nil {
		return nil, err
	}
	if config.CacheTTL, err = getEnvDuration("CACHE_TTL", config.CacheTTL); err != nil {
		return nil, err
	}
	if config.SweepInterval, err = getEnvDuration("SWEEP_INTERVAL", config.SweepInterval); err != nil {
		return nil, err
	}

	if config.DownloadDir == "" {
		config.DownloadDir = filepath.Join(config.DataDir, "downloads")
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate checks values that every command depends on.
func (c *Config) Validate() error {
	if c.AIQuotaLimit < 0 {
		return fmt.Errorf("AI_QUOTA_LIMIT must not be negative")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	switch c.OCREngine {
	case "vision":
	case "documentai":
		if c.GoogleCloudProject == "" || c.DocumentAIProcessorID == "" {
			return fmt.Errorf("OCR_ENGINE=documentai requires GOOGLE_CLOUD_PROJECT and DOCUMENT_AI_PROCESSOR_ID")
		}
	default:
		return fmt.Errorf("unknown OCR_ENGINE %q (want vision or documentai)", c.OCREngine)
	}
	if _, err := c.Admins(); err != nil {
		return err
	}
	return nil
}

// ValidateBot checks the settings required to run the chat bot.
func (c *Config) ValidateBot() error {
	if c.TelegramToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	if c.OpenAIAPIKey == "" {
		return errors.New("OPENAI_API_KEY is required")
	}
	return nil
}

// Admins parses ADMIN_IDS into an allow-list.
func (c *Config) Admins() (models.AdminSet, error) {
	admins := models.AdminSet{}
	for _, raw := range strings.Split(c.AdminIDs, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_IDS entry %q: %w", raw, err)
		}
		admins[id] = struct{}{}
	}
	return admins, nil
}

// StorePath returns the location of a flat-file store inside DataDir.
func (c *Config) StorePath(name string) string {
	return filepath.Join(c.DataDir, name)
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
