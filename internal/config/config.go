// Package config loads the gateway's immutable configuration snapshot from
// the process environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// CompressionLevel is one of the named SynthLang compression presets.
type CompressionLevel string

const (
	LevelLow    CompressionLevel = "low"
	LevelMedium CompressionLevel = "medium"
	LevelHigh   CompressionLevel = "high"
)

// ProviderConfig holds connection details for one upstream LLM provider.
type ProviderConfig struct {
	APIKey  string
	BaseURL string
}

// APIKeyEntry is one statically configured gateway API key and the roles
// it grants, parsed from GATEWAY_API_KEYS.
type APIKeyEntry struct {
	Key   string
	Roles []string
}

// Config is the immutable snapshot of every environment-driven setting
// recognized by the gateway. One Config is built at startup and threaded
// through every component via constructor injection; nothing re-reads the
// environment after Load returns.
type Config struct {
	// Compression
	UseSynthlang              bool
	DefaultUseGzip            bool
	GzipSizeThreshold         int
	SynthlangCompressionLevel CompressionLevel

	// PII
	MaskPIIBeforeLLM bool
	MaskPIIInLogs    bool

	// Cache
	EnableCache             bool
	CacheSimilarityThreshold float64
	CacheMaxItems            int
	CacheEmbeddingModel      string

	// Rate limiting
	DefaultRateLimitQPM int
	PremiumRateLimitQPM int

	// LLM
	DefaultModel      string
	LLMTimeoutSeconds int
	Providers         map[string]ProviderConfig

	// Keyword detection
	EnableKeywordDetection    bool
	KeywordDetectionThreshold float64
	KeywordConfigPath         string

	// Roles
	DefaultRole string
	AdminUsers  map[string]bool
	PremiumUsers map[string]bool

	// Auth
	APIKeys []APIKeyEntry

	// Ambient
	LogFormat string
	LogLevel  string
	AuditSink string

	// Server
	Host       string
	Port       int
	JWTSecret  string
}

// ValidationError collects every configuration problem found by Validate.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

// Load reads every recognized environment variable and returns one
// immutable Config snapshot. Unset variables take the documented defaults.
func Load() (*Config, error) {
	cfg := &Config{
		UseSynthlang:              getBool("USE_SYNTHLANG", true),
		DefaultUseGzip:            getBool("DEFAULT_USE_GZIP", false),
		GzipSizeThreshold:         getInt("GZIP_SIZE_THRESHOLD", 5000),
		SynthlangCompressionLevel: CompressionLevel(getString("SYNTHLANG_COMPRESSION_LEVEL", string(LevelMedium))),

		MaskPIIBeforeLLM: getBool("MASK_PII_BEFORE_LLM", false),
		MaskPIIInLogs:    getBool("MASK_PII_IN_LOGS", true),

		EnableCache:              getBool("ENABLE_CACHE", true),
		CacheSimilarityThreshold: getFloat("CACHE_SIMILARITY_THRESHOLD", 0.95),
		CacheMaxItems:            getInt("CACHE_MAX_ITEMS", 1000),
		CacheEmbeddingModel:      getString("CACHE_EMBEDDING_MODEL", "text-embedding-3-small"),

		DefaultRateLimitQPM: getInt("DEFAULT_RATE_LIMIT_QPM", 60),
		PremiumRateLimitQPM: getInt("PREMIUM_RATE_LIMIT_QPM", 120),

		DefaultModel:      getString("DEFAULT_MODEL", "gpt-4o"),
		LLMTimeoutSeconds: getInt("LLM_TIMEOUT_SECONDS", 30),
		Providers: map[string]ProviderConfig{
			"openai": {
				APIKey:  getString("OPENAI_API_KEY", ""),
				BaseURL: getString("OPENAI_BASE_URL", ""),
			},
			"anthropic": {
				APIKey: getString("ANTHROPIC_API_KEY", ""),
			},
		},

		EnableKeywordDetection:    getBool("ENABLE_KEYWORD_DETECTION", true),
		KeywordDetectionThreshold: getFloat("KEYWORD_DETECTION_THRESHOLD", 0.0),
		KeywordConfigPath:         getString("KEYWORD_CONFIG_PATH", ""),

		DefaultRole:  getString("DEFAULT_ROLE", "basic"),
		AdminUsers:   toSet(getString("ADMIN_USERS", "")),
		PremiumUsers: toSet(getString("PREMIUM_USERS", "")),

		APIKeys: parseAPIKeys(getString("GATEWAY_API_KEYS", "")),

		LogFormat: getString("LOG_FORMAT", "json"),
		LogLevel:  getString("LOG_LEVEL", "info"),
		AuditSink: getString("AUDIT_SINK", "stdout"),

		Host: getString("GATEWAY_HOST", "0.0.0.0"),
		Port: getInt("GATEWAY_PORT", 8080),

		JWTSecret: getString("JWT_SECRET", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field invariants and value ranges, collecting every
// problem found rather than failing on the first one.
func (cfg *Config) Validate() error {
	var issues []string

	switch cfg.SynthlangCompressionLevel {
	case LevelLow, LevelMedium, LevelHigh:
	default:
		issues = append(issues, "SYNTHLANG_COMPRESSION_LEVEL must be \"low\", \"medium\", or \"high\"")
	}

	if cfg.CacheSimilarityThreshold < 0 || cfg.CacheSimilarityThreshold > 1 {
		issues = append(issues, "CACHE_SIMILARITY_THRESHOLD must be within [0,1]")
	}
	if cfg.CacheMaxItems <= 0 {
		issues = append(issues, "CACHE_MAX_ITEMS must be > 0")
	}
	if cfg.GzipSizeThreshold < 0 {
		issues = append(issues, "GZIP_SIZE_THRESHOLD must be >= 0")
	}
	if cfg.DefaultRateLimitQPM <= 0 {
		issues = append(issues, "DEFAULT_RATE_LIMIT_QPM must be > 0")
	}
	if cfg.PremiumRateLimitQPM <= 0 {
		issues = append(issues, "PREMIUM_RATE_LIMIT_QPM must be > 0")
	}
	if cfg.LLMTimeoutSeconds <= 0 {
		issues = append(issues, "LLM_TIMEOUT_SECONDS must be > 0")
	}
	if cfg.KeywordDetectionThreshold < 0 || cfg.KeywordDetectionThreshold > 1 {
		issues = append(issues, "KEYWORD_DETECTION_THRESHOLD must be within [0,1]")
	}
	switch strings.ToLower(cfg.AuditSink) {
	case "stdout", "sqlite", "postgres":
	default:
		issues = append(issues, "AUDIT_SINK must be \"stdout\", \"sqlite\", or \"postgres\"")
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

// LLMTimeout returns the configured LLM timeout as a time.Duration.
func (cfg *Config) LLMTimeout() time.Duration {
	return time.Duration(cfg.LLMTimeoutSeconds) * time.Second
}

func getString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return parsed
}

func getInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return parsed
}

func getFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return parsed
}

// parseAPIKeys parses GATEWAY_API_KEYS, a ';'-separated list of
// "key:role1,role2" entries. A key with no ':' grants no explicit role,
// falling back to DefaultRole downstream. Example:
// "sk-abc:admin;sk-def:premium,basic".
func parseAPIKeys(raw string) []APIKeyEntry {
	var out []APIKeyEntry
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		key, rolesPart, _ := strings.Cut(entry, ":")
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		var roles []string
		for _, r := range strings.Split(rolesPart, ",") {
			r = strings.TrimSpace(r)
			if r != "" {
				roles = append(roles, r)
			}
		}
		out = append(out, APIKeyEntry{Key: key, Roles: roles})
	}
	return out
}

func toSet(csv string) map[string]bool {
	out := make(map[string]bool)
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out[part] = true
		}
	}
	return out
}
