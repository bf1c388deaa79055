package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LLM providers.
const (
	ProviderGoogleAI  = "googleai"
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
)

type Config struct {
	Port     string
	LogLevel string

	// LLM backend
	LLMProvider        string
	GeminiAPIKey       string
	AnthropicAPIKey    string
	AnthropicMaxTokens int
	OllamaBaseURL      string
	LLMTimeout         time.Duration

	// Models
	CompactModel       string
	LongContextModel   string
	NormalizeModel     string
	ModelWordThreshold int

	// Normalization
	NormalizeMaxAttempts   int
	NormalizeRetryDelay    time.Duration
	NormalizeRateLimit     float64 // requests per second, 0 disables pacing
	MaxConcurrentNormalize int

	// Rendering
	RenderPages bool
	RenderDPI   int

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// PDF
	PDFFallbackPdftotext bool
}

// Load reads configuration. A value comes from the first of: the process
// environment, the .env file (PAGEWISE_ENV_FILE), the YAML file
// (PAGEWISE_CONFIG), the built-in default. YAML keys are the environment
// names in lower case, e.g. "llm_provider: ollama".
func Load() (Config, error) {
	src, err := newSource(envOr("PAGEWISE_ENV_FILE", ".env"), os.Getenv("PAGEWISE_CONFIG"))
	if err != nil {
		return Config{}, err
	}
	return src.load(), nil
}

func (s source) load() Config {
	cfg := Config{
		Port:     s.or("PORT", "8090"),
		LogLevel: s.or("LOG_LEVEL", "info"),

		LLMProvider:        strings.ToLower(s.or("LLM_PROVIDER", ProviderGoogleAI)),
		GeminiAPIKey:       s.or("GEMINI_API_KEY", ""),
		AnthropicAPIKey:    s.or("ANTHROPIC_API_KEY", ""),
		AnthropicMaxTokens: s.intOr("ANTHROPIC_MAX_TOKENS", 8192),
		OllamaBaseURL:      s.or("OLLAMA_BASE_URL", "http://localhost:11434"),
		LLMTimeout:         s.durationOr("LLM_TIMEOUT", 120*time.Second),

		CompactModel:       s.or("COMPACT_MODEL", "learnlm-1.5-pro-experimental"),
		LongContextModel:   s.or("LONG_CONTEXT_MODEL", "gemini-2.0-flash"),
		NormalizeModel:     s.or("NORMALIZE_MODEL", "gemini-2.0-flash"),
		ModelWordThreshold: s.intOr("MODEL_WORD_THRESHOLD", 20000),

		NormalizeMaxAttempts:   s.intOr("NORMALIZE_MAX_ATTEMPTS", 3),
		NormalizeRetryDelay:    s.durationOr("NORMALIZE_RETRY_DELAY", 10*time.Second),
		NormalizeRateLimit:     s.floatOr("NORMALIZE_RATE_LIMIT", 0),
		MaxConcurrentNormalize: s.intOr("MAX_CONCURRENT_NORMALIZE", 1),

		RenderPages: s.boolOr("RENDER_PAGES", true),
		RenderDPI:   s.intOr("RENDER_DPI", 150),

		WorkerCount:  s.intOr("WORKER_COUNT", 1),
		MaxQueueSize: s.intOr("MAX_QUEUE_SIZE", 8),

		MaxUploadBytes: s.int64Or("MAX_UPLOAD_BYTES", 104857600), // 100MB

		JobTTL: s.durationOr("JOB_TTL", 1*time.Hour),

		PDFFallbackPdftotext: s.boolOr("PDF_FALLBACK_PDFTOTEXT", true),
	}

	if cfg.AnthropicMaxTokens <= 0 {
		cfg.AnthropicMaxTokens = 8192
	}
	if cfg.LLMTimeout <= 0 {
		cfg.LLMTimeout = 120 * time.Second
	}
	if cfg.ModelWordThreshold <= 0 {
		cfg.ModelWordThreshold = 20000
	}
	if cfg.NormalizeMaxAttempts <= 0 {
		cfg.NormalizeMaxAttempts = 3
	}
	if cfg.NormalizeRetryDelay < 0 {
		cfg.NormalizeRetryDelay = 10 * time.Second
	}
	if cfg.NormalizeRateLimit < 0 {
		cfg.NormalizeRateLimit = 0
	}
	if cfg.MaxConcurrentNormalize <= 0 {
		cfg.MaxConcurrentNormalize = 1
	}
	if cfg.RenderDPI <= 0 {
		cfg.RenderDPI = 150
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 8
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 104857600
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	switch c.LLMProvider {
	case ProviderGoogleAI:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for provider %q", c.LLMProvider)
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for provider %q", c.LLMProvider)
		}
	case ProviderOllama:
		if c.OllamaBaseURL == "" {
			return fmt.Errorf("OLLAMA_BASE_URL is required for provider %q", c.LLMProvider)
		}
	default:
		return fmt.Errorf("LLM_PROVIDER must be one of %s, %s, %s; got %q",
			ProviderGoogleAI, ProviderOllama, ProviderAnthropic, c.LLMProvider)
	}
	if c.CompactModel == "" || c.LongContextModel == "" || c.NormalizeModel == "" {
		return fmt.Errorf("COMPACT_MODEL, LONG_CONTEXT_MODEL and NORMALIZE_MODEL must be set")
	}
	return nil
}

// knownKeys lists every setting a YAML file may carry.
var knownKeys = map[string]bool{
	"PORT": true, "LOG_LEVEL": true,
	"LLM_PROVIDER": true, "GEMINI_API_KEY": true, "ANTHROPIC_API_KEY": true,
	"ANTHROPIC_MAX_TOKENS": true, "OLLAMA_BASE_URL": true, "LLM_TIMEOUT": true,
	"COMPACT_MODEL": true, "LONG_CONTEXT_MODEL": true, "NORMALIZE_MODEL": true,
	"MODEL_WORD_THRESHOLD": true,
	"NORMALIZE_MAX_ATTEMPTS": true, "NORMALIZE_RETRY_DELAY": true,
	"NORMALIZE_RATE_LIMIT": true, "MAX_CONCURRENT_NORMALIZE": true,
	"RENDER_PAGES": true, "RENDER_DPI": true,
	"WORKER_COUNT": true, "MAX_QUEUE_SIZE": true, "MAX_UPLOAD_BYTES": true,
	"JOB_TTL": true, "PDF_FALLBACK_PDFTOTEXT": true,
}

// source resolves a key against the environment, then dotenv values, then
// the YAML file.
type source struct {
	lookup func(string) (string, bool)
	dotenv map[string]string
	file   map[string]string
}

func newSource(envFile, yamlPath string) (source, error) {
	s := source{lookup: os.LookupEnv}

	if envFile != "" {
		values, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			s.dotenv = values
		case errors.Is(err, os.ErrNotExist):
		default:
			return source{}, fmt.Errorf("read %s: %w", envFile, err)
		}
	}

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			return source{}, fmt.Errorf("read config file: %w", err)
		}
		file, err := parseYAML(data)
		if err != nil {
			return source{}, fmt.Errorf("parse config file %s: %w", yamlPath, err)
		}
		s.file = file
	}
	return s, nil
}

// parseYAML flattens a one-level YAML mapping into upper-case keys.
func parseYAML(data []byte) (map[string]string, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(raw))
	var unknown []string
	for k, v := range raw {
		key := strings.ToUpper(strings.ReplaceAll(k, "-", "_"))
		if !knownKeys[key] {
			unknown = append(unknown, k)
			continue
		}
		switch v.(type) {
		case map[string]any, []any:
			return nil, fmt.Errorf("%s: expected a scalar value", k)
		case nil:
			continue
		}
		out[key] = fmt.Sprint(v)
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown keys: %s", strings.Join(unknown, ", "))
	}
	return out, nil
}

func (s source) get(key string) string {
	if v, ok := s.lookup(key); ok && v != "" {
		return v
	}
	if v := s.dotenv[key]; v != "" {
		return v
	}
	return s.file[key]
}

func (s source) or(key, fallback string) string {
	if v := s.get(key); v != "" {
		return v
	}
	return fallback
}

func (s source) intOr(key string, fallback int) int {
	if v := s.get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func (s source) int64Or(key string, fallback int64) int64 {
	if v := s.get(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func (s source) floatOr(key string, fallback float64) float64 {
	if v := s.get(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func (s source) boolOr(key string, fallback bool) bool {
	if v := s.get(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func (s source) durationOr(key string, fallback time.Duration) time.Duration {
	if v := s.get(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
