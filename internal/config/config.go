package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Batch run locations
	InputDir       string `yaml:"input_dir" validate:"required"`
	OutputDir      string `yaml:"output_dir" validate:"required"`
	DescriptorFile string `yaml:"descriptor_file" validate:"required"`
	OutputFile     string `yaml:"output_file" validate:"required"`

	// Similarity backend
	SimilarityBackend string  `yaml:"similarity_backend" validate:"oneof=lexical ollama"`
	OllamaBaseURL     string  `yaml:"ollama_base_url" validate:"omitempty,url"`
	EmbedModel        string  `yaml:"embed_model" validate:"required_if=SimilarityBackend ollama"`
	EmbedRateLimit    float64 `yaml:"embed_rate_limit" validate:"gte=0"`
	EmbedCacheSize    int     `yaml:"embed_cache_size" validate:"gte=1"`
	EmbedMaxTokens    int     `yaml:"embed_max_tokens" validate:"gte=0"`

	// Keyword backend
	KeywordBackend  string `yaml:"keyword_backend" validate:"oneof=prose rules claude"`
	AnthropicAPIKey string `yaml:"-" validate:"required_if=KeywordBackend claude"`
	AnthropicModel  string `yaml:"anthropic_model"`

	// Triage
	WorkerCount          int  `yaml:"worker_count" validate:"gte=1,lte=64"`
	SnippetChars         int  `yaml:"snippet_chars" validate:"gte=1"`
	PDFFallbackPdftotext bool `yaml:"pdf_fallback_pdftotext"`

	// HTTP mode
	Port           string        `yaml:"port" validate:"required,numeric"`
	APIKey         string        `yaml:"-"`
	JobWorkers     int           `yaml:"job_workers" validate:"gte=1"`
	MaxQueueSize   int           `yaml:"max_queue_size" validate:"gte=1"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes" validate:"gte=1"`
	JobTTL         time.Duration `yaml:"job_ttl" validate:"gt=0"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		InputDir:       "/app/input",
		OutputDir:      "/app/output",
		DescriptorFile: "persona.json",
		OutputFile:     "output.json",

		SimilarityBackend: "lexical",
		OllamaBaseURL:     "http://localhost:11434",
		EmbedModel:        "nomic-embed-text:latest",
		EmbedCacheSize:    1024,
		EmbedMaxTokens:    2048,

		KeywordBackend: "prose",
		AnthropicModel: "claude-sonnet-4-5-20250929",

		WorkerCount:          1,
		SnippetChars:         500,
		PDFFallbackPdftotext: true,

		Port:           "8090",
		JobWorkers:     4,
		MaxQueueSize:   100,
		MaxUploadBytes: 52428800, // 50MB
		JobTTL:         1 * time.Hour,
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (if path is not empty), then environment variables.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	mergeWithEnv(&cfg)
	return cfg, nil
}

func mergeWithEnv(cfg *Config) {
	cfg.InputDir = envOr("INPUT_DIR", cfg.InputDir)
	cfg.OutputDir = envOr("OUTPUT_DIR", cfg.OutputDir)
	cfg.DescriptorFile = envOr("DESCRIPTOR_FILE", cfg.DescriptorFile)
	cfg.OutputFile = envOr("OUTPUT_FILE", cfg.OutputFile)

	cfg.SimilarityBackend = envOr("SIMILARITY_BACKEND", cfg.SimilarityBackend)
	cfg.OllamaBaseURL = envOr("OLLAMA_BASE_URL", cfg.OllamaBaseURL)
	cfg.EmbedModel = envOr("EMBED_MODEL", cfg.EmbedModel)
	cfg.EmbedRateLimit = envFloat("EMBED_RATE_LIMIT", cfg.EmbedRateLimit)
	cfg.EmbedCacheSize = envInt("EMBED_CACHE_SIZE", cfg.EmbedCacheSize)
	cfg.EmbedMaxTokens = envInt("EMBED_MAX_TOKENS", cfg.EmbedMaxTokens)

	cfg.KeywordBackend = envOr("KEYWORD_BACKEND", cfg.KeywordBackend)
	cfg.AnthropicAPIKey = envOr("ANTHROPIC_API_KEY", cfg.AnthropicAPIKey)
	cfg.AnthropicModel = envOr("ANTHROPIC_MODEL", cfg.AnthropicModel)

	cfg.WorkerCount = envInt("WORKER_COUNT", cfg.WorkerCount)
	cfg.SnippetChars = envInt("SNIPPET_CHARS", cfg.SnippetChars)
	cfg.PDFFallbackPdftotext = envBool("PDF_FALLBACK_PDFTOTEXT", cfg.PDFFallbackPdftotext)

	cfg.Port = envOr("PORT", cfg.Port)
	cfg.APIKey = envOr("DOCTRIAGE_API_KEY", cfg.APIKey)
	cfg.JobWorkers = envInt("JOB_WORKERS", cfg.JobWorkers)
	cfg.MaxQueueSize = envInt("MAX_QUEUE_SIZE", cfg.MaxQueueSize)
	cfg.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)
	cfg.JobTTL = envDuration("JOB_TTL", cfg.JobTTL)
}

var validate = validator.New()

// Validate checks the settings every command needs.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ValidateServe additionally checks the settings the HTTP API needs.
func (c Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("DOCTRIAGE_API_KEY is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
