package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	AppName     = "auction-bot"
	EnvFileName = "config.env"
)

const (
	DefaultBaseURL         = "https://www.bidrl.com"
	DefaultMaxItems        = 100
	DefaultDataDir         = "data"
	DefaultTesseractPath   = "tesseract"
	DefaultOCRCrop         = 0.05
	DefaultOpenRouterModel = "anthropic/claude-3-haiku"
	DefaultRetailURL       = "https://www.amazon.com/s"
	DefaultNotifyTopN      = 5
)

// Config holds all runtime settings. Capability booleans decide which
// optional collaborators are wired at startup.
type Config struct {
	AuctionURL string
	BaseURL    string
	MaxItems   int
	HomeIP     string
	DataDir    string
	LogLevel   string

	CheckIP         bool
	HeadlessBrowser bool
	BrowserBin      string

	TesseractPath    string
	TesseractArgs    []string
	OCRSkipLastImage bool
	OCRCropFraction  float64

	GoogleAPIKey string
	GoogleCX     string
	UseGoogleAPI bool

	CloudVisionEnabled     bool
	ObjectDetectionEnabled bool
	ProductSearchEnabled   bool
	RetailSearchEnabled    bool
	RetailSearchURL        string

	LLMEnabled       bool
	LLMProvider      string
	OpenRouterAPIKey string
	OpenRouterModel  string
	GeminiAPIKey     string

	CacheEnabled bool
	MetricsPort  string

	TelegramToken  string
	TelegramChatID int64
	NotifyTopN     int

	ItemDelay  time.Duration
	ImageDelay time.Duration
}

// LoadEnvFile loads environment variables from the config file in the user's
// config directory, then from .env in the working directory. Errors are
// ignored since neither file has to exist.
func LoadEnvFile() {
	if configBase, err := os.UserConfigDir(); err == nil {
		_ = godotenv.Load(filepath.Join(configBase, AppName, EnvFileName))
	}
	_ = godotenv.Load(".env")
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		AuctionURL: os.Getenv("AUCTION_URL"),
		BaseURL:    envString("AUCTION_BASE_URL", DefaultBaseURL),
		HomeIP:     os.Getenv("HOME_IP"),
		DataDir:    envString("DATA_DIR", DefaultDataDir),
		LogLevel:   envString("LOG_LEVEL", "info"),

		CheckIP:         envBool("ENABLE_VPN_CHECK", true),
		HeadlessBrowser: envBool("HEADLESS_BROWSER", true),
		BrowserBin:      os.Getenv("BROWSER_BIN"),

		TesseractPath:    envString("TESSERACT_PATH", DefaultTesseractPath),
		TesseractArgs:    strings.Fields(envString("TESSERACT_CONFIG", "--oem 3 --psm 4")),
		OCRSkipLastImage: envBool("OCR_SKIP_LAST_IMAGE", false),

		GoogleAPIKey: os.Getenv("GOOGLE_API_KEY"),
		GoogleCX:     os.Getenv("GOOGLE_CX"),
		UseGoogleAPI: envBool("USE_GOOGLE_API", false),

		CloudVisionEnabled:     envBool("CLOUD_VISION_ENABLED", false),
		ObjectDetectionEnabled: envBool("OBJECT_DETECTION_ENABLED", true),
		ProductSearchEnabled:   envBool("PRODUCT_SEARCH_ENABLED", false),
		RetailSearchEnabled:    envBool("ENABLE_AMAZON_SEARCH", true),
		RetailSearchURL:        envString("RETAIL_SEARCH_URL", DefaultRetailURL),

		LLMEnabled:       envBool("OPENROUTER_ENABLED", false),
		LLMProvider:      strings.ToLower(envString("LLM_PROVIDER", "openrouter")),
		OpenRouterAPIKey: os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterModel:  envString("OPENROUTER_MODEL", DefaultOpenRouterModel),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),

		CacheEnabled: envBool("CACHE_ENABLED", true),
		MetricsPort:  os.Getenv("METRICS_PORT"),

		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		ItemDelay:  2 * time.Second,
		ImageDelay: 1 * time.Second,
	}

	var err error
	if cfg.MaxItems, err = envInt("MAX_ITEMS", DefaultMaxItems); err != nil {
		return nil, err
	}
	if cfg.NotifyTopN, err = envInt("NOTIFY_TOP_N", DefaultNotifyTopN); err != nil {
		return nil, err
	}
	if cfg.OCRCropFraction, err = envFloat("OCR_CROP_FRACTION", DefaultOCRCrop); err != nil {
		return nil, err
	}
	if raw := os.Getenv("TELEGRAM_CHAT_ID"); raw != "" {
		cfg.TelegramChatID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("TELEGRAM_CHAT_ID must be a valid integer: %w", err)
		}
	}
	if cfg.OCRCropFraction < 0 || cfg.OCRCropFraction >= 1 {
		return nil, fmt.Errorf("OCR_CROP_FRACTION must be in [0, 1), got %v", cfg.OCRCropFraction)
	}

	// Cloud Vision and the search API share the Google key.
	if cfg.GoogleAPIKey == "" {
		cfg.CloudVisionEnabled = false
		cfg.UseGoogleAPI = false
	}
	if cfg.GoogleCX == "" {
		cfg.UseGoogleAPI = false
	}

	return cfg, nil
}

// CheckRequired returns the names of required settings that are missing.
func (c *Config) CheckRequired() []string {
	var missing []string
	if c.AuctionURL == "" {
		missing = append(missing, "AUCTION_URL")
	}
	if c.CheckIP && c.HomeIP == "" {
		missing = append(missing, "HOME_IP")
	}
	if c.LLMEnabled {
		switch c.LLMProvider {
		case "gemini":
			if c.GeminiAPIKey == "" {
				missing = append(missing, "GEMINI_API_KEY")
			}
		default:
			if c.OpenRouterAPIKey == "" {
				missing = append(missing, "OPENROUTER_API_KEY")
			}
		}
	}
	return missing
}

// NotifyEnabled reports whether the Telegram summary should be sent.
func (c *Config) NotifyEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "":
		return def
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return f, nil
}
