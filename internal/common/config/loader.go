// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml on top and applies
// environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")
	if root := findProjectRoot(); root != "" {
		v.AddConfigPath(filepath.Join(root, "configs"))
	}

	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional per-environment overlay

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func bindEnv(v *viper.Viper) {
	// APIS_GENAI_API_KEY overrides apis.genai.api_key, and so on.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// expandEnvVars resolves ${VAR} placeholders left in string values and string lists.
// List entries that expand to nothing are dropped.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		switch val := v.Get(key).(type) {
		case string:
			if hasPlaceholder(val) {
				v.Set(key, os.ExpandEnv(val))
			}
		case []interface{}:
			expanded := make([]string, 0, len(val))
			changed := false
			for _, item := range val {
				str, ok := item.(string)
				if !ok {
					str = fmt.Sprint(item)
				}
				if hasPlaceholder(str) {
					str = strings.TrimSpace(os.ExpandEnv(str))
					changed = true
				}
				if str != "" {
					expanded = append(expanded, str)
				}
			}
			if changed {
				v.Set(key, expanded)
			}
		}
	}
}

func hasPlaceholder(s string) bool {
	return strings.Contains(s, "${") || (strings.HasPrefix(s, "$") && len(s) > 1)
}

// overrideEmptyConfig fills secrets from the conventional variable names when the config
// file left them blank.
func overrideEmptyConfig(cfg *Config) {
	fill := func(dst *string, envKey string) {
		if *dst == "" {
			if val := os.Getenv(envKey); val != "" {
				*dst = val
			}
		}
	}

	fill(&cfg.APIs.GenAI.APIKey, "GOOGLE_API_KEY")
	fill(&cfg.APIs.Transcription.APIKey, "OPENAI_API_KEY")
	fill(&cfg.Database.Postgres.User, "DB_USER")
	fill(&cfg.Database.Postgres.Password, "DB_PASSWORD")
	fill(&cfg.Database.Redis.Password, "REDIS_PASSWORD")
	fill(&cfg.Notifications.AWS.Region, "AWS_REGION")
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "therapy-connect"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	// Server defaults
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8000"
	}
	if cfg.Server.ReadHeaderTimeout == 0 {
		cfg.Server.ReadHeaderTimeout = 5000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30000
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 25 << 20
	}
	if len(cfg.Server.CORSAllowedOrigins) == 0 {
		cfg.Server.CORSAllowedOrigins = []string{"*"}
	}

	// Audio defaults
	if cfg.Audio.UploadsDir == "" {
		cfg.Audio.UploadsDir = "../pipeline_io/audio_uploads"
	}
	if cfg.Audio.FFmpegBinary == "" {
		cfg.Audio.FFmpegBinary = "ffmpeg"
	}
	if cfg.Audio.TranscodeTimeout == 0 {
		cfg.Audio.TranscodeTimeout = 60000
	}
	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels == 0 {
		cfg.Audio.Channels = 1
	}

	// Collaborator defaults
	if cfg.APIs.Transcription.BaseURL == "" {
		cfg.APIs.Transcription.BaseURL = "http://localhost:9000/v1"
	}
	if cfg.APIs.Transcription.Model == "" {
		cfg.APIs.Transcription.Model = "base"
	}
	if cfg.APIs.Transcription.Timeout == 0 {
		cfg.APIs.Transcription.Timeout = 120000
	}
	if cfg.APIs.Classifier.BaseURL == "" {
		cfg.APIs.Classifier.BaseURL = "http://localhost:8501"
	}
	if cfg.APIs.Classifier.Model == "" {
		cfg.APIs.Classifier.Model = "emotion_bilstm"
	}
	if cfg.APIs.Classifier.Timeout == 0 {
		cfg.APIs.Classifier.Timeout = 10000
	}
	if cfg.APIs.Embedding.BaseURL == "" {
		cfg.APIs.Embedding.BaseURL = "http://localhost:8080"
	}
	if cfg.APIs.Embedding.Timeout == 0 {
		cfg.APIs.Embedding.Timeout = 10000
	}
	if cfg.APIs.GenAI.BaseURL == "" {
		cfg.APIs.GenAI.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.APIs.GenAI.Model == "" {
		cfg.APIs.GenAI.Model = "gemini-2.5-pro"
	}
	if cfg.APIs.GenAI.Timeout == 0 {
		cfg.APIs.GenAI.Timeout = 60000
	}

	// Knowledge base defaults
	if cfg.Knowledge.Index == "" {
		cfg.Knowledge.Index = "therapeutic_knowledge_base"
	}
	if cfg.Knowledge.VectorField == "" {
		cfg.Knowledge.VectorField = "embedding"
	}
	if cfg.Knowledge.TextField == "" {
		cfg.Knowledge.TextField = "text"
	}
	if cfg.Knowledge.TopK == 0 {
		cfg.Knowledge.TopK = 5
	}
	if cfg.Knowledge.NumCandidates < cfg.Knowledge.TopK {
		cfg.Knowledge.NumCandidates = 10 * cfg.Knowledge.TopK
	}

	// Database defaults
	if len(cfg.Database.Elasticsearch.Addresses) == 0 {
		cfg.Database.Elasticsearch.Addresses = []string{"http://localhost:9200"}
	}
	if cfg.Database.Redis.Address == "" {
		cfg.Database.Redis.Address = "localhost:6379"
	}
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	if cfg.Sessions.TTL == 0 {
		cfg.Sessions.TTL = 3600000
	}
	if cfg.History.Timezone == "" {
		cfg.History.Timezone = "UTC"
	}
	if cfg.Notifications.AWS.Region == "" {
		cfg.Notifications.AWS.Region = "us-east-1"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.APIs.GenAI.APIKey == "" {
		return fmt.Errorf("apis.genai.api_key is required (set GOOGLE_API_KEY)")
	}
	if cfg.APIs.Transcription.BaseURL == "" {
		return fmt.Errorf("apis.transcription.base_url is required")
	}
	if cfg.APIs.Classifier.BaseURL == "" {
		return fmt.Errorf("apis.classifier.base_url is required")
	}
	if cfg.APIs.Embedding.BaseURL == "" {
		return fmt.Errorf("apis.embedding.base_url is required")
	}

	if len(cfg.Database.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("database.elasticsearch.addresses is required")
	}

	for name, retries := range map[string]int{
		"transcription": cfg.APIs.Transcription.MaxRetries,
		"classifier":    cfg.APIs.Classifier.MaxRetries,
		"embedding":     cfg.APIs.Embedding.MaxRetries,
		"genai":         cfg.APIs.GenAI.MaxRetries,
	} {
		if retries < 0 {
			return fmt.Errorf("apis.%s.max_retries must not be negative", name)
		}
	}

	if cfg.Sessions.Enabled && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required when sessions are enabled")
	}

	if cfg.History.Enabled {
		if cfg.Database.Postgres.Host == "" {
			return fmt.Errorf("database.postgres.host is required when history is enabled")
		}
		if cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.database is required when history is enabled")
		}
		if cfg.Database.Postgres.User == "" {
			return fmt.Errorf("database.postgres.user is required when history is enabled")
		}
	}
	if _, err := time.LoadLocation(cfg.History.Timezone); err != nil {
		return fmt.Errorf("history.timezone: %w", err)
	}

	if cfg.Notifications.Email.Enabled && !cfg.History.Enabled {
		return fmt.Errorf("notifications.email.enabled requires history.enabled")
	}
	if cfg.Notifications.Email.Enabled && cfg.Notifications.Email.FromEmail == "" {
		return fmt.Errorf("notifications.email.from_email is required when email is enabled")
	}
	if cfg.Notifications.Events.Enabled && cfg.Notifications.Events.TopicARN == "" {
		return fmt.Errorf("notifications.events.topic_arn is required when events are enabled")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
