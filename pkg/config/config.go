package config

import (
	"fmt"
	"strings"
	"time"

	"interviewroom-backend/pkg/constants"
	"interviewroom-backend/pkg/env"
)

// Config holds all configuration for the application
type Config struct {
	Server       ServerConfig
	Conversation ConversationConfig
	Session      SessionConfig
	Transport    TransportConfig
	Redis        RedisConfig
	Database     DatabaseConfig
	MinIO        MinIOConfig
	Log          LogConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Environment    string // development, staging, production
	ServiceName    string
	AllowedOrigins []string
}

// ConversationConfig describes the remote conversation service account
type ConversationConfig struct {
	BaseURL                string
	APIKey                 string
	PersonaID              string
	ReplicaID              string
	MaxCallDuration        time.Duration
	ParticipantLeftTimeout time.Duration
	EnableRecording        bool
	HealthCheckInterval    time.Duration
}

// SessionConfig holds the interview session timing knobs
type SessionConfig struct {
	Budget           time.Duration
	AudioGraceDelay  time.Duration
	ClockTick        time.Duration
	OperationTimeout time.Duration
}

// TransportConfig points at the real-time transport event relay
type TransportConfig struct {
	EventsURL string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
	Timeout  time.Duration
}

// DatabaseConfig holds CockroachDB configuration
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MinConns int
}

// MinIOConfig holds MinIO configuration for session exports
type MinIOConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level    string // debug, info, warn, error
	Format   string // json, text
	Output   string // stdout, file
	FilePath string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           env.GetInt("PORT", 8085),
			Environment:    env.GetString("ENV", "development"),
			ServiceName:    env.GetString("SERVICE_NAME", "interview-service"),
			AllowedOrigins: env.GetStringSlice("CORS_ALLOWED_ORIGINS", nil),
		},
		Conversation: ConversationConfig{
			BaseURL:                env.GetString("TAVUS_API_URL", "https://tavusapi.com"),
			APIKey:                 env.GetStringFromFile("TAVUS_API_KEY", ""),
			PersonaID:              env.GetString("TAVUS_PERSONA_ID", ""),
			ReplicaID:              env.GetString("TAVUS_REPLICA_ID", ""),
			MaxCallDuration:        env.GetDuration("MAX_CALL_DURATION", constants.DefaultMaxCallDuration),
			ParticipantLeftTimeout: env.GetDuration("PARTICIPANT_LEFT_TIMEOUT", constants.DefaultParticipantLeftTimeout),
			EnableRecording:        env.GetBool("ENABLE_RECORDING", false),
			HealthCheckInterval:    env.GetDuration("HEALTH_CHECK_INTERVAL", constants.ProviderHealthCheckInterval),
		},
		Session: SessionConfig{
			Budget:           env.GetDuration("SESSION_BUDGET", constants.DefaultSessionBudget),
			AudioGraceDelay:  env.GetDuration("AUDIO_GRACE_DELAY", constants.DefaultAudioGraceDelay),
			ClockTick:        env.GetDuration("CLOCK_TICK", constants.ClockTickInterval),
			OperationTimeout: env.GetDuration("OPERATION_TIMEOUT", constants.DefaultTimeout),
		},
		Transport: TransportConfig{
			EventsURL: env.GetString("TRANSPORT_EVENTS_URL", "ws://localhost:8090/v1/transport"),
		},
		Redis: RedisConfig{
			Enabled:  env.GetBool("REDIS_ENABLED", true),
			Host:     env.GetString("REDIS_HOST", "localhost"),
			Port:     env.GetInt("REDIS_PORT", 6379),
			Password: env.GetStringFromFile("REDIS_PASSWORD", ""),
			DB:       env.GetInt("REDIS_DB", 0),
			PoolSize: env.GetInt("REDIS_POOL_SIZE", 10),
			Timeout:  env.GetDuration("REDIS_TIMEOUT", 5*time.Second),
		},
		Database: DatabaseConfig{
			Enabled:  env.GetBool("DB_ENABLED", false),
			Host:     env.GetString("DB_HOST", "localhost"),
			Port:     env.GetInt("DB_PORT", 26257),
			User:     env.GetString("DB_USER", "root"),
			Password: env.GetStringFromFile("DB_PASSWORD", ""),
			Database: env.GetString("DB_NAME", "interviewroom"),
			SSLMode:  env.GetString("DB_SSL_MODE", "disable"),
			MaxConns: env.GetInt("DB_MAX_CONNS", 10),
			MinConns: env.GetInt("DB_MIN_CONNS", 2),
		},
		MinIO: MinIOConfig{
			Enabled:   env.GetBool("MINIO_ENABLED", false),
			Endpoint:  env.GetString("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: env.GetStringFromFile("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: env.GetStringFromFile("MINIO_SECRET_KEY", "minioadmin"),
			UseSSL:    env.GetBool("MINIO_USE_SSL", false),
			Bucket:    env.GetString("MINIO_BUCKET", "interview-exports"),
		},
		Log: LogConfig{
			Level:    env.GetString("LOG_LEVEL", "info"),
			Format:   env.GetString("LOG_FORMAT", "json"),
			Output:   env.GetString("LOG_OUTPUT", "stdout"),
			FilePath: env.GetString("LOG_FILE_PATH", "/logs/interview.log"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Session.Budget <= 0 {
		return fmt.Errorf("SESSION_BUDGET must be positive")
	}
	if c.Session.ClockTick <= 0 || c.Session.ClockTick > c.Session.Budget {
		return fmt.Errorf("CLOCK_TICK must be positive and not exceed SESSION_BUDGET")
	}
	if c.Session.AudioGraceDelay < 0 {
		return fmt.Errorf("AUDIO_GRACE_DELAY must not be negative")
	}
	if c.Conversation.MaxCallDuration < c.Session.Budget {
		return fmt.Errorf("MAX_CALL_DURATION (%s) must be at least SESSION_BUDGET (%s)",
			c.Conversation.MaxCallDuration, c.Session.Budget)
	}
	if c.Conversation.HealthCheckInterval <= 0 {
		return fmt.Errorf("HEALTH_CHECK_INTERVAL must be positive")
	}
	if !strings.HasPrefix(c.Conversation.BaseURL, "http") {
		return fmt.Errorf("TAVUS_API_URL must be an http(s) URL")
	}

	// Outside production a missing key surfaces per session as CREDENTIAL_INVALID.
	if c.Server.Environment == "production" && c.Conversation.APIKey == "" {
		return fmt.Errorf("TAVUS_API_KEY must be set in production")
	}

	return nil
}
