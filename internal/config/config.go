/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/joho/godotenv"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Event bus backend selection.
type EventBusBackend string

const (
	EventBusMemory EventBusBackend = "memory"
	EventBusRedis  EventBusBackend = "redis"
	EventBusNATS   EventBusBackend = "nats"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment   string
	LogLevel      string
	HTTPBind      string
	HTTPPort      int
	JWTSigningKey string
	DefaultUserID string

	// Conversation catalog; empty DSN disables it.
	DBBackend DatabaseBackend
	DBDSN     string

	// Object storage. S3 is used when a bucket is set, the filesystem otherwise.
	DataRoot       string
	S3Bucket       string
	S3Endpoint     string // For S3-compatible services (MinIO, LocalStack)
	S3UsePathStyle bool

	// AWS analysis services and S3 share these credentials.
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSSessionToken    string

	// Advice and summaries
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// Session cadence
	FrameInterval       time.Duration
	AudioInterval       time.Duration
	MinAudioChunks      int
	AdviceCooldown      time.Duration
	Retention           time.Duration
	AdviceWindow        time.Duration
	AudioSubChunkSize   int
	SampleRateHz        int
	LanguageCode        string
	FinalizeDelay       time.Duration
	PersistOnDisconnect bool
	CallTimeout         time.Duration
	RecordingEnabled    bool
	RecordingMaxBytes   int
	WSReadLimit         int64

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	// Event relay and listing cache
	EventBus      EventBusBackend
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheEnabled  bool
	NATSURL       string
	InstanceID    string

	DotEnvFiles []string
}

// Load reads .env files and environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	loaded, err := loadDotEnv(".env.local", ".env")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Environment:   getEnvAny([]string{"SPEAKEASY_ENV", "NODE_ENV"}, "development"),
		LogLevel:      getEnvAny([]string{"SPEAKEASY_LOG_LEVEL", "LOG_LEVEL"}, ""),
		HTTPBind:      getEnvAny([]string{"SPEAKEASY_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:      getEnvIntAny([]string{"SPEAKEASY_HTTP_PORT", "PORT"}, 3001),
		JWTSigningKey: getEnvAny([]string{"SPEAKEASY_JWT_SIGNING_KEY"}, ""),
		DefaultUserID: getEnvAny([]string{"SPEAKEASY_DEFAULT_USER_ID"}, "anonymous"),

		DBBackend: DatabaseBackend(getEnvAny([]string{"SPEAKEASY_DB_BACKEND"}, string(DatabaseSQLite))),
		DBDSN:     getEnvAny([]string{"SPEAKEASY_DB_DSN"}, ""),

		DataRoot:       getEnvAny([]string{"SPEAKEASY_DATA_ROOT"}, "./data"),
		S3Bucket:       getEnvAny([]string{"SPEAKEASY_S3_BUCKET", "S3_BUCKET_NAME", "S3_BUCKET"}, ""),
		S3Endpoint:     getEnvAny([]string{"SPEAKEASY_S3_ENDPOINT", "S3_ENDPOINT"}, ""),
		S3UsePathStyle: getEnvBoolAny([]string{"SPEAKEASY_S3_USE_PATH_STYLE", "S3_USE_PATH_STYLE"}, false),

		AWSRegion:          getEnvAny([]string{"SPEAKEASY_AWS_REGION", "AWS_REGION", "AWS_DEFAULT_REGION"}, "us-east-1"),
		AWSAccessKeyID:     getEnvAny([]string{"SPEAKEASY_AWS_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"}, ""),
		AWSSecretAccessKey: getEnvAny([]string{"SPEAKEASY_AWS_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"}, ""),
		AWSSessionToken:    getEnvAny([]string{"SPEAKEASY_AWS_SESSION_TOKEN", "AWS_SESSION_TOKEN"}, ""),

		OpenAIAPIKey:  getEnvAny([]string{"SPEAKEASY_OPENAI_API_KEY", "OPENAI_API_KEY"}, ""),
		OpenAIBaseURL: getEnvAny([]string{"SPEAKEASY_OPENAI_BASE_URL", "OPENAI_BASE_URL"}, ""),
		OpenAIModel:   getEnvAny([]string{"SPEAKEASY_OPENAI_MODEL", "OPENAI_MODEL"}, "gpt-4o-mini"),

		FrameInterval:       getEnvDurationMsAny([]string{"SPEAKEASY_FRAME_INTERVAL_MS"}, 2*time.Second),
		AudioInterval:       getEnvDurationMsAny([]string{"SPEAKEASY_AUDIO_INTERVAL_MS"}, 6*time.Second),
		MinAudioChunks:      getEnvIntAny([]string{"SPEAKEASY_MIN_AUDIO_CHUNKS"}, 15),
		AdviceCooldown:      getEnvDurationMsAny([]string{"SPEAKEASY_ADVICE_COOLDOWN_MS"}, 15*time.Second),
		Retention:           getEnvDurationMsAny([]string{"SPEAKEASY_RETENTION_MS"}, 60*time.Second),
		AdviceWindow:        getEnvDurationMsAny([]string{"SPEAKEASY_ADVICE_WINDOW_MS"}, 30*time.Second),
		AudioSubChunkSize:   getEnvIntAny([]string{"SPEAKEASY_AUDIO_SUBCHUNK_BYTES"}, 8192),
		SampleRateHz:        getEnvIntAny([]string{"SPEAKEASY_SAMPLE_RATE_HZ"}, 48000),
		LanguageCode:        getEnvAny([]string{"SPEAKEASY_LANGUAGE_CODE"}, "en-US"),
		FinalizeDelay:       getEnvDurationMsAny([]string{"SPEAKEASY_FINALIZE_DELAY_MS"}, time.Second),
		PersistOnDisconnect: getEnvBoolAny([]string{"SPEAKEASY_PERSIST_ON_DISCONNECT"}, false),
		CallTimeout:         getEnvDurationMsAny([]string{"SPEAKEASY_CALL_TIMEOUT_MS"}, 30*time.Second),
		RecordingEnabled:    getEnvBoolAny([]string{"SPEAKEASY_RECORDING_ENABLED"}, false),
		RecordingMaxBytes:   getEnvIntAny([]string{"SPEAKEASY_RECORDING_MAX_BYTES"}, 64<<20),
		WSReadLimit:         int64(getEnvIntAny([]string{"SPEAKEASY_WS_READ_LIMIT_BYTES"}, 16<<20)),

		TracingEnabled:    getEnvBoolAny([]string{"SPEAKEASY_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"SPEAKEASY_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"SPEAKEASY_TRACING_SAMPLE_RATE"}, 1.0),

		EventBus:      EventBusBackend(getEnvAny([]string{"SPEAKEASY_EVENT_BUS"}, string(EventBusMemory))),
		RedisAddr:     getEnvAny([]string{"SPEAKEASY_REDIS_ADDR", "REDIS_ADDR"}, "localhost:6379"),
		RedisPassword: getEnvAny([]string{"SPEAKEASY_REDIS_PASSWORD", "REDIS_PASSWORD"}, ""),
		RedisDB:       getEnvIntAny([]string{"SPEAKEASY_REDIS_DB"}, 0),
		CacheEnabled:  getEnvBoolAny([]string{"SPEAKEASY_CACHE_ENABLED"}, false),
		NATSURL:       getEnvAny([]string{"SPEAKEASY_NATS_URL", "NATS_URL"}, "nats://127.0.0.1:4222"),
		InstanceID:    getEnvAny([]string{"SPEAKEASY_INSTANCE_ID", "HOSTNAME"}, ""),

		DotEnvFiles: loaded,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DBBackend != DatabasePostgres && c.DBBackend != DatabaseMySQL && c.DBBackend != DatabaseSQLite {
		return fmt.Errorf("unsupported database backend %q", c.DBBackend)
	}

	if c.EventBus != EventBusMemory && c.EventBus != EventBusRedis && c.EventBus != EventBusNATS {
		return fmt.Errorf("unsupported event bus %q", c.EventBus)
	}

	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid http port %d", c.HTTPPort)
	}

	durations := map[string]time.Duration{
		"SPEAKEASY_FRAME_INTERVAL_MS":  c.FrameInterval,
		"SPEAKEASY_AUDIO_INTERVAL_MS":  c.AudioInterval,
		"SPEAKEASY_ADVICE_COOLDOWN_MS": c.AdviceCooldown,
		"SPEAKEASY_RETENTION_MS":       c.Retention,
		"SPEAKEASY_ADVICE_WINDOW_MS":   c.AdviceWindow,
		"SPEAKEASY_CALL_TIMEOUT_MS":    c.CallTimeout,
	}
	for key, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	if c.FinalizeDelay < 0 {
		return fmt.Errorf("SPEAKEASY_FINALIZE_DELAY_MS must not be negative")
	}
	if c.MinAudioChunks <= 0 || c.AudioSubChunkSize <= 0 || c.SampleRateHz <= 0 {
		return fmt.Errorf("audio batching values must be positive")
	}

	if strings.EqualFold(c.Environment, "production") && c.JWTSigningKey == "" {
		return fmt.Errorf("SPEAKEASY_JWT_SIGNING_KEY must be provided in production")
	}
	return nil
}

// IsDevelopment reports whether the process runs in the development environment.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

// CatalogEnabled reports whether a conversation catalog database is configured.
func (c *Config) CatalogEnabled() bool {
	return c.DBDSN != ""
}

// AWS builds the shared AWS configuration. Static keys win over the default chain.
func (c *Config) AWS(ctx context.Context) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(c.AWSRegion),
	}
	if c.AWSAccessKeyID != "" && c.AWSSecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AWSAccessKeyID, c.AWSSecretAccessKey, c.AWSSessionToken),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

// loadDotEnv loads the given files in order, skipping missing ones. Variables already
// present in the environment are never overridden.
func loadDotEnv(paths ...string) ([]string, error) {
	var loaded []string
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return loaded, fmt.Errorf("load %s: %w", p, err)
		}
		loaded = append(loaded, p)
	}
	return loaded, nil
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvDurationMsAny reads a millisecond count from the first set key, or returns def.
func getEnvDurationMsAny(keys []string, def time.Duration) time.Duration {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return time.Duration(parsed) * time.Millisecond
			}
		}
	}
	return def
}
