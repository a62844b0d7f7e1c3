package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	filePath := os.Getenv(envKey + "_FILE")
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

const envPrefix = "EPUBCOUNTER"

type Config struct {
	Server      ServerConfig
	Processing  ProcessingConfig
	Anthropic   AnthropicConfig
	HuggingFace HuggingFaceConfig
	Tiktoken    TiktokenConfig
	Redis       RedisConfig
	RateLimit   RateLimitConfig
	Storage     StorageConfig
	Stream      StreamConfig
}

type ServerConfig struct {
	Port        string
	Env         string
	LogLevel    string
	ProjectRoot string
	BodyLimitMB int
}

type ProcessingConfig struct {
	OutputDir  string
	MaxMB      int
	ErrorPause time.Duration
	Tokenizers []string
}

type AnthropicConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Version string
}

type HuggingFaceConfig struct {
	Endpoint string
	Token    string
	CacheDir string
}

type TiktokenConfig struct {
	CacheDir string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled       bool
	ProcessPerMin int
}

// StorageConfig describes the optional S3-compatible bucket results.json is mirrored to.
type StorageConfig struct {
	Enabled         bool
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
	PublicURL       string
}

type StreamConfig struct {
	Heartbeat time.Duration
	Buffer    int
}

// Load reads config.yaml (optional) from "." or "./config", then environment
// variables prefixed with EPUBCOUNTER_. A non-empty file overrides the search.
func Load(file string) (*Config, error) {
	readSecret(envPrefix + "_ANTHROPIC_API_KEY")
	readSecret(envPrefix + "_HUGGINGFACE_TOKEN")
	readSecret(envPrefix + "_REDIS_PASSWORD")
	readSecret(envPrefix + "_STORAGE_SECRET_ACCESS_KEY")

	v := viper.New()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, err
		}
	}

	root, err := projectRoot(v.GetString("server.project_root"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:        v.GetString("server.port"),
			Env:         v.GetString("server.env"),
			LogLevel:    v.GetString("server.log_level"),
			ProjectRoot: root,
			BodyLimitMB: v.GetInt("server.body_limit_mb"),
		},
		Processing: ProcessingConfig{
			OutputDir:  v.GetString("processing.output_dir"),
			MaxMB:      v.GetInt("processing.max_mb"),
			ErrorPause: v.GetDuration("processing.error_pause"),
			Tokenizers: splitList(v.GetStringSlice("processing.tokenizers")),
		},
		Anthropic: AnthropicConfig{
			APIKey:  v.GetString("anthropic.api_key"),
			BaseURL: v.GetString("anthropic.base_url"),
			Model:   v.GetString("anthropic.model"),
			Version: v.GetString("anthropic.version"),
		},
		HuggingFace: HuggingFaceConfig{
			Endpoint: v.GetString("huggingface.endpoint"),
			Token:    v.GetString("huggingface.token"),
			CacheDir: v.GetString("huggingface.cache_dir"),
		},
		Tiktoken: TiktokenConfig{
			CacheDir: v.GetString("tiktoken.cache_dir"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       v.GetBool("ratelimit.enabled"),
			ProcessPerMin: v.GetInt("ratelimit.process_per_min"),
		},
		Storage: StorageConfig{
			Enabled:         v.GetBool("storage.enabled"),
			Endpoint:        v.GetString("storage.endpoint"),
			Region:          v.GetString("storage.region"),
			Bucket:          v.GetString("storage.bucket"),
			AccessKeyID:     v.GetString("storage.access_key_id"),
			SecretAccessKey: v.GetString("storage.secret_access_key"),
			Prefix:          v.GetString("storage.prefix"),
			PublicURL:       v.GetString("storage.public_url"),
		},
		Stream: StreamConfig{
			Heartbeat: v.GetDuration("stream.heartbeat"),
			Buffer:    v.GetInt("stream.buffer"),
		},
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8787")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.project_root", "")
	v.SetDefault("server.body_limit_mb", 1)

	v.SetDefault("processing.output_dir", "./results")
	v.SetDefault("processing.max_mb", 500)
	v.SetDefault("processing.error_pause", "500ms")
	v.SetDefault("processing.tokenizers", []string{"gpt4"})

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.base_url", "https://api.anthropic.com")
	v.SetDefault("anthropic.model", "claude-3-5-sonnet-latest")
	v.SetDefault("anthropic.version", "2023-06-01")

	v.SetDefault("huggingface.endpoint", "https://huggingface.co")
	v.SetDefault("huggingface.token", "")
	v.SetDefault("huggingface.cache_dir", defaultCacheDir("tokenizers"))

	v.SetDefault("tiktoken.cache_dir", "")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.process_per_min", 30)

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.region", "auto")
	v.SetDefault("storage.prefix", "results")

	v.SetDefault("stream.heartbeat", "15s")
	v.SetDefault("stream.buffer", 64)
}

// projectRoot resolves the configured root. Empty and relative values are
// taken from the directory holding the executable, never the working directory.
func projectRoot(configured string) (string, error) {
	if filepath.IsAbs(configured) {
		return filepath.Clean(configured), nil
	}
	base, err := executableDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, configured), nil
}

var executableDir = func() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}

func defaultCacheDir(sub string) string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(".cache", "epub-counter", sub)
	}
	return filepath.Join(dir, "epub-counter", sub)
}

// splitList accepts both YAML lists and a single comma-separated env value.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
