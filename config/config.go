package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	OCR       OCRConfig
	Parser    ParserConfig
	Matching  MatchingConfig
	Store     StoreConfig
	Catalog   CatalogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	MaxUploadBytes int64    `mapstructure:"max_upload_bytes"`
}

// OCRConfig holds Tesseract configuration
type OCRConfig struct {
	Languages     []string `mapstructure:"languages"`
	PageSegMode   int      `mapstructure:"page_seg_mode"`
	MaxImageWidth int      `mapstructure:"max_image_width"`
	MinImageWidth int      `mapstructure:"min_image_width"`
}

// ParserConfig holds line parser configuration
type ParserConfig struct {
	MinLineLength int `mapstructure:"min_line_length"`
}

// MatchingConfig holds fuzzy matching configuration
type MatchingConfig struct {
	MinSimilarity      float64 `mapstructure:"min_similarity"`
	MaxAlternatives    int     `mapstructure:"max_alternatives"`
	MinPartialLength   int     `mapstructure:"min_partial_length"`
	EnableDebugLogging bool    `mapstructure:"enable_debug_logging"`
}

// StoreConfig holds Correction Memory persistence configuration
type StoreConfig struct {
	Type string `mapstructure:"type"` // "memory" or "sqlite"
	Path string `mapstructure:"path"`
}

// CatalogConfig points at the product catalog file
type CatalogConfig struct {
	Path  string `mapstructure:"path"`
	Watch bool   `mapstructure:"watch"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute
}

// Load loads configuration from environment variables and config files.
// configFile overrides the search path when non-empty.
func Load(configFile string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/kitchenscan/")
	}

	// Environment variable settings: KITCHENSCAN_MATCHING_MIN_SIMILARITY etc.
	v.SetEnvPrefix("KITCHENSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile exports variables from ./.env without overriding ones already set
func loadEnvFile() error {
	err := gotenv.Load(".env")
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"capacitor://localhost", "http://localhost:*"})
	v.SetDefault("server.max_upload_bytes", 15<<20)

	// OCR defaults
	v.SetDefault("ocr.languages", []string{"fra", "eng"})
	v.SetDefault("ocr.page_seg_mode", 3)
	v.SetDefault("ocr.max_image_width", 2480)
	v.SetDefault("ocr.min_image_width", 1000)

	// Parser defaults
	v.SetDefault("parser.min_line_length", 2)

	// Matching defaults
	v.SetDefault("matching.min_similarity", 0.35)
	v.SetDefault("matching.max_alternatives", 3)
	v.SetDefault("matching.min_partial_length", 3)
	v.SetDefault("matching.enable_debug_logging", false)

	// Store defaults
	v.SetDefault("store.type", "sqlite")
	v.SetDefault("store.path", "./corrections.db")

	// Catalog defaults
	v.SetDefault("catalog.path", "")
	v.SetDefault("catalog.watch", false)

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 60)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Store.Type != "memory" && config.Store.Type != "sqlite" {
		return fmt.Errorf("store type must be 'memory' or 'sqlite', got: %s", config.Store.Type)
	}

	if config.Store.Type == "sqlite" && config.Store.Path == "" {
		return fmt.Errorf("store path is required when store type is 'sqlite'")
	}

	if config.Matching.MinSimilarity <= 0 || config.Matching.MinSimilarity > 1 {
		return fmt.Errorf("matching.min_similarity must be in (0, 1], got: %v", config.Matching.MinSimilarity)
	}

	if config.Matching.MaxAlternatives <= 0 {
		return fmt.Errorf("matching.max_alternatives must be positive, got: %d", config.Matching.MaxAlternatives)
	}

	if config.Catalog.Watch && config.Catalog.Path == "" {
		return fmt.Errorf("catalog.watch requires catalog.path")
	}

	if len(config.OCR.Languages) == 0 {
		return fmt.Errorf("at least one OCR language is required")
	}

	if config.RateLimit.PerIP < 0 {
		return fmt.Errorf("ratelimit.per_ip must not be negative, got: %d", config.RateLimit.PerIP)
	}

	return nil
}
