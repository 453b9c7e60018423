package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Provider ProviderConfig `yaml:"provider"`
	Cache    CacheConfig    `yaml:"cache"`
	Tracker  TrackerConfig  `yaml:"tracker"`
	Image    ImageConfig    `yaml:"image"`
	Augment  AugmentConfig  `yaml:"augment"`
	Whisper  WhisperConfig  `yaml:"whisper"`
	Grok     GrokConfig     `yaml:"grok"`
	Token    TokenConfig    `yaml:"token"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `yaml:"host" envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port         int           `yaml:"port" envconfig:"SERVER_PORT" default:"8440"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT" default:"2m"`
}

// StorageConfig holds filesystem storage configuration. Each record family
// gets its own subdirectory under BasePath.
type StorageConfig struct {
	BasePath  string `yaml:"base_path" envconfig:"STORAGE_PATH" default:"/data/albumproxy"`
	TempPath  string `yaml:"temp_path" envconfig:"STORAGE_TEMP_PATH" default:"/data/albumproxy/tmp"`
	UserAgent string `yaml:"user_agent" envconfig:"DOWNLOAD_USER_AGENT" default:"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"`
}

// ProviderConfig holds upstream album provider configuration.
type ProviderConfig struct {
	BaseURL string        `yaml:"base_url" envconfig:"PROVIDER_BASE_URL"`
	APIKey  string        `yaml:"api_key" envconfig:"PROVIDER_API_KEY"`
	Timeout time.Duration `yaml:"timeout" envconfig:"PROVIDER_TIMEOUT" default:"30s"`
}

// CacheConfig holds TTLs for the disk-backed caches.
type CacheConfig struct {
	AlbumTTL      time.Duration `yaml:"album_ttl" envconfig:"ALBUM_CACHE_TTL" default:"15m"`
	DerivativeTTL time.Duration `yaml:"derivative_ttl" envconfig:"DERIVATIVE_TTL" default:"720h"`
	MappingTTL    time.Duration `yaml:"mapping_ttl" envconfig:"MAPPING_TTL" default:"720h"`
	SweepInterval time.Duration `yaml:"sweep_interval" envconfig:"MAPPING_SWEEP_INTERVAL" default:"6h"`
}

// TrackerConfig holds recently-used token tracking and refresh scheduling.
type TrackerConfig struct {
	MaxTokens       int           `yaml:"max_tokens" envconfig:"TRACKER_MAX_TOKENS" default:"100"`
	TokenTTL        time.Duration `yaml:"token_ttl" envconfig:"TRACKER_TOKEN_TTL" default:"72h"`
	RefreshInterval time.Duration `yaml:"refresh_interval" envconfig:"TRACKER_REFRESH_INTERVAL" default:"10m"`
	BatchSize       int           `yaml:"batch_size" envconfig:"TRACKER_BATCH_SIZE" default:"5"`
	BatchDelay      time.Duration `yaml:"batch_delay" envconfig:"TRACKER_BATCH_DELAY" default:"10s"`
}

// ImageConfig bounds the derivative transform.
type ImageConfig struct {
	MaxWidth  int `yaml:"max_width" envconfig:"IMAGE_MAX_WIDTH" default:"2048"`
	MaxHeight int `yaml:"max_height" envconfig:"IMAGE_MAX_HEIGHT" default:"2048"`
	Quality   int `yaml:"quality" envconfig:"IMAGE_QUALITY" default:"82"`
}

// AugmentConfig holds media augmentation pipeline configuration.
type AugmentConfig struct {
	Concurrency        int           `yaml:"concurrency" envconfig:"AUGMENT_CONCURRENCY" default:"1"`
	MinDurationSec     float64       `yaml:"min_duration_sec" envconfig:"AUGMENT_MIN_DURATION_SEC" default:"10"`
	MinTranscriptChars int           `yaml:"min_transcript_chars" envconfig:"AUGMENT_MIN_TRANSCRIPT_CHARS" default:"25"`
	MarkerDensity      float64       `yaml:"marker_density" envconfig:"AUGMENT_MARKER_DENSITY" default:"0.8"`
	MinMeaningfulWords int           `yaml:"min_meaningful_words" envconfig:"AUGMENT_MIN_MEANINGFUL_WORDS" default:"10"`
	DownloadTimeout    time.Duration `yaml:"download_timeout" envconfig:"AUGMENT_DOWNLOAD_TIMEOUT" default:"60s"`
	ExtractTimeout     time.Duration `yaml:"extract_timeout" envconfig:"AUGMENT_EXTRACT_TIMEOUT" default:"5m"`
}

// WhisperConfig holds transcription API configuration.
type WhisperConfig struct {
	APIKey  string        `yaml:"api_key" envconfig:"WHISPER_API_KEY"`
	BaseURL string        `yaml:"base_url" envconfig:"WHISPER_BASE_URL" default:"https://api.openai.com/v1"`
	Model   string        `yaml:"model" envconfig:"WHISPER_MODEL" default:"whisper-1"`
	Timeout time.Duration `yaml:"timeout" envconfig:"WHISPER_TIMEOUT" default:"5m"`
}

// GrokConfig holds summarization API configuration.
type GrokConfig struct {
	APIKey  string        `yaml:"api_key" envconfig:"GROK_API_KEY"`
	BaseURL string        `yaml:"base_url" envconfig:"GROK_BASE_URL" default:"https://api.x.ai/v1"`
	Model   string        `yaml:"model" envconfig:"GROK_MODEL" default:"grok-beta"`
	Timeout time.Duration `yaml:"timeout" envconfig:"GROK_TIMEOUT" default:"60s"`
}

// TokenConfig controls public share-token resolution. When Secret is empty
// tokens are passed through unmodified.
type TokenConfig struct {
	Secret string `yaml:"secret" envconfig:"TOKEN_SECRET"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set and sane.
func (c *Config) Validate() error {
	if c.Storage.BasePath == "" {
		return fmt.Errorf("STORAGE_PATH is required")
	}
	if c.Augment.Concurrency < 1 {
		return fmt.Errorf("AUGMENT_CONCURRENCY must be at least 1")
	}
	if c.Tracker.BatchSize < 1 {
		return fmt.Errorf("TRACKER_BATCH_SIZE must be at least 1")
	}
	if c.Image.MaxWidth < 1 || c.Image.MaxHeight < 1 {
		return fmt.Errorf("image dimensions must be positive")
	}
	if c.Image.Quality < 1 || c.Image.Quality > 100 {
		return fmt.Errorf("IMAGE_QUALITY must be between 1 and 100")
	}
	if c.Augment.MarkerDensity <= 0 || c.Augment.MarkerDensity > 1 {
		return fmt.Errorf("AUGMENT_MARKER_DENSITY must be in (0, 1]")
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
