package internal

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// Config holds application settings
type Config struct {
	// User configurable settings
	Channel          string
	DatabasePath     string
	LLMProvider      string // "openai" or "ollama"
	ClassifyModel    string
	EmbeddingModel   string
	OllamaBaseURL    string
	OpenAIAPIKey     string
	Taxonomy         []string
	MaxVideos        int
	Workers          int
	MaxAttempts      int
	BackoffBase      time.Duration
	RequestTimeout   time.Duration
	RequestsPerSec   float64
	ReduceDims       int
	ReduceSeed       int64
	MinBucketSize    int
	EmbedExcerptSize int
	Verbose          bool
	Quiet            bool
	Prompt           string

	// Fixed XDG paths (not configurable)
	ConfigDir string
	DataDir   string
	CacheDir  string
}

//go:embed config.toml classify_prompt.txt
var defaultFS embed.FS

// DefaultTaxonomy is the closed label set used when the config does not override it.
var DefaultTaxonomy = []string{
	"politics",
	"entertainment",
	"economics",
	"society",
	"culture",
	"others",
}

// ensureDefaultFile checks if a file exists in the specified directory
// and creates it from the embedded default if it doesn't exist
func ensureDefaultFile(configDir, embedFilename, description string) error {
	filePath := filepath.Join(configDir, embedFilename)

	if FileExists(filePath) {
		return nil
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	defaultContent, err := defaultFS.ReadFile(embedFilename)
	if err != nil {
		return fmt.Errorf("reading embedded default %s: %w", description, err)
	}

	if err := os.WriteFile(filePath, defaultContent, 0644); err != nil {
		return fmt.Errorf("writing default %s: %w", description, err)
	}

	fmt.Printf("Created default %s at %s\n", description, filePath)
	return nil
}

// EnsureDefaultConfig creates the default config file in the XDG config directory if absent.
func EnsureDefaultConfig(configDir string) error {
	return ensureDefaultFile(configDir, "config.toml", "configuration")
}

// EnsureDefaultPrompt creates the default classification prompt template if absent.
func EnsureDefaultPrompt(configDir string) error {
	return ensureDefaultFile(configDir, "classify_prompt.txt", "classification prompt template")
}

// InitConfig initializes Viper and loads configuration
func InitConfig() *Config {
	// XDG standard directories
	configDir := filepath.Join(xdg.ConfigHome, "topicdrift")
	dataDir := filepath.Join(xdg.DataHome, "topicdrift")
	cacheDir := filepath.Join(xdg.CacheHome, "topicdrift")

	v := viper.New()

	// Set default values for configurable settings
	v.SetDefault("channel", "")
	v.SetDefault("database_path", filepath.Join(dataDir, "topicdrift.db"))
	v.SetDefault("llm_provider", "openai")
	v.SetDefault("classify_model", "gpt-4o-mini")
	v.SetDefault("embedding_model", "text-embedding-3-small")
	v.SetDefault("ollama_base_url", "http://localhost:11434/v1")
	v.SetDefault("taxonomy", DefaultTaxonomy)
	v.SetDefault("max_videos", 100)
	v.SetDefault("workers", 4)
	v.SetDefault("max_attempts", 3)
	v.SetDefault("backoff_base", time.Second)
	v.SetDefault("request_timeout", 2*time.Minute)
	v.SetDefault("requests_per_sec", 2.0)
	v.SetDefault("reduce_dims", 2)
	v.SetDefault("reduce_seed", 42)
	v.SetDefault("min_bucket_size", 2)
	v.SetDefault("embed_excerpt_chars", 6000)
	v.SetDefault("verbose", false)
	v.SetDefault("prompt", "") // if empty will use default prompt template

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	// Environment variables
	v.SetEnvPrefix("TOPICDRIFT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("_", "_"))

	// Special case for OpenAI API Key - check both Viper and direct env var
	_ = v.BindEnv("openai_api_key", "OPENAI_API_KEY")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Warning: Error reading config file: %v\n", err)
		}
	}

	config := &Config{
		Channel:          v.GetString("channel"),
		DatabasePath:     v.GetString("database_path"),
		LLMProvider:      strings.ToLower(v.GetString("llm_provider")),
		ClassifyModel:    v.GetString("classify_model"),
		EmbeddingModel:   v.GetString("embedding_model"),
		OllamaBaseURL:    v.GetString("ollama_base_url"),
		OpenAIAPIKey:     v.GetString("openai_api_key"),
		Taxonomy:         v.GetStringSlice("taxonomy"),
		MaxVideos:        v.GetInt("max_videos"),
		Workers:          v.GetInt("workers"),
		MaxAttempts:      v.GetInt("max_attempts"),
		BackoffBase:      v.GetDuration("backoff_base"),
		RequestTimeout:   v.GetDuration("request_timeout"),
		RequestsPerSec:   v.GetFloat64("requests_per_sec"),
		ReduceDims:       v.GetInt("reduce_dims"),
		ReduceSeed:       v.GetInt64("reduce_seed"),
		MinBucketSize:    v.GetInt("min_bucket_size"),
		EmbedExcerptSize: v.GetInt("embed_excerpt_chars"),
		Verbose:          v.GetBool("verbose"),
		Prompt:           v.GetString("prompt"),

		// Fixed XDG paths
		ConfigDir: configDir,
		DataDir:   dataDir,
		CacheDir:  cacheDir,
	}

	if config.Verbose {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	return config
}

// ModelIdentifier is the provider-qualified model string recorded on every
// classification and embedding row.
func (c *Config) ModelIdentifier(model string) string {
	return c.LLMProvider + ":" + model
}

// Validate checks for fatal configuration problems before any per-video work.
func (c *Config) Validate(needChannel bool) error {
	if needChannel && strings.TrimSpace(c.Channel) == "" {
		return fmt.Errorf("channel is not set - add it to config.toml or the TOPICDRIFT_CHANNEL environment variable")
	}
	if len(c.Taxonomy) == 0 {
		return fmt.Errorf("taxonomy is empty - at least one topic label is required")
	}
	if c.LLMProvider != "openai" && c.LLMProvider != "ollama" {
		return fmt.Errorf("unsupported llm_provider %q (supported: openai, ollama)", c.LLMProvider)
	}
	if c.LLMProvider == "openai" && c.OpenAIAPIKey == "" {
		return fmt.Errorf("OpenAI API key is required - set it in config.toml or OPENAI_API_KEY environment variable")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.ReduceDims < 1 || c.ReduceDims > 3 {
		return fmt.Errorf("reduce_dims must be 1-3, got %d", c.ReduceDims)
	}
	return nil
}
