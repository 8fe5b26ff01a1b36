// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Server        ServerConfig       `mapstructure:"server"`
	Audio         AudioConfig        `mapstructure:"audio"`
	APIs          APIsConfig         `mapstructure:"apis"`
	Knowledge     KnowledgeConfig    `mapstructure:"knowledge"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Sessions      SessionsConfig     `mapstructure:"sessions"`
	History       HistoryConfig      `mapstructure:"history"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address            string   `mapstructure:"address"`
	ReadHeaderTimeout  int      `mapstructure:"read_header_timeout"` // milliseconds
	ShutdownTimeout    int      `mapstructure:"shutdown_timeout"`    // milliseconds
	MaxUploadBytes     int64    `mapstructure:"max_upload_bytes"`
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
}

// AudioConfig controls how uploads are staged on disk before transcription.
type AudioConfig struct {
	UploadsDir       string `mapstructure:"uploads_dir"`
	FFmpegBinary     string `mapstructure:"ffmpeg_binary"`
	Transcode        bool   `mapstructure:"transcode"`
	TranscodeTimeout int    `mapstructure:"transcode_timeout"` // milliseconds
	SampleRate       int    `mapstructure:"sample_rate"`
	Channels         int    `mapstructure:"channels"`
}

// EndpointConfig is shared by every HTTP collaborator.
type EndpointConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	Timeout    int    `mapstructure:"timeout"` // milliseconds
	MaxRetries int    `mapstructure:"max_retries"`
}

// APIsConfig holds settings for the external model services.
type APIsConfig struct {
	Transcription struct {
		EndpointConfig `mapstructure:",squash"`
		Language       string `mapstructure:"language"`
	} `mapstructure:"transcription"`

	Classifier EndpointConfig `mapstructure:"classifier"`
	Embedding  EndpointConfig `mapstructure:"embedding"`

	GenAI struct {
		EndpointConfig  `mapstructure:",squash"`
		Temperature     float64 `mapstructure:"temperature"`
		MaxOutputTokens int     `mapstructure:"max_output_tokens"`
	} `mapstructure:"genai"`
}

// KnowledgeConfig describes the vector index queried for therapeutic context.
type KnowledgeConfig struct {
	Index         string `mapstructure:"index"`
	VectorField   string `mapstructure:"vector_field"`
	TextField     string `mapstructure:"text_field"`
	TopK          int    `mapstructure:"top_k"`
	NumCandidates int    `mapstructure:"num_candidates"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	APIKey    string   `mapstructure:"api_key"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SessionsConfig enables server-side session tokens in Redis.
type SessionsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	TTL     int  `mapstructure:"ttl"` // milliseconds
}

// HistoryConfig enables the saved-session history in PostgreSQL.
type HistoryConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Timezone string `mapstructure:"timezone"`
}

// NotificationConfig holds settings for the summary email and session events.
type NotificationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	Events struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"events"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
