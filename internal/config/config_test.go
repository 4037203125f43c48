package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SPEAKEASY_ENV", "development")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.HTTPPort != 3001 {
		t.Fatalf("unexpected port: %d", cfg.HTTPPort)
	}
	if cfg.FrameInterval != 2*time.Second || cfg.AudioInterval != 6*time.Second {
		t.Fatalf("unexpected cadence: frame=%s audio=%s", cfg.FrameInterval, cfg.AudioInterval)
	}
	if cfg.AdviceCooldown != 15*time.Second || cfg.Retention != 60*time.Second {
		t.Fatalf("unexpected advice timing: cooldown=%s retention=%s", cfg.AdviceCooldown, cfg.Retention)
	}
	if cfg.MinAudioChunks != 15 || cfg.AudioSubChunkSize != 8192 || cfg.SampleRateHz != 48000 {
		t.Fatalf("unexpected audio batching: %+v", cfg)
	}
	if cfg.PersistOnDisconnect || cfg.RecordingEnabled {
		t.Fatal("expected persist-on-disconnect and recording to default off")
	}
	if cfg.EventBus != EventBusMemory {
		t.Fatalf("unexpected event bus: %q", cfg.EventBus)
	}
	if cfg.CatalogEnabled() {
		t.Fatal("expected catalog disabled without a DSN")
	}
}

func TestLoadProviderFallbackKeys(t *testing.T) {
	t.Setenv("PORT", "4000")
	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("S3_BUCKET_NAME", "conversations")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.HTTPPort != 4000 {
		t.Fatalf("expected PORT fallback, got %d", cfg.HTTPPort)
	}
	if cfg.AWSRegion != "eu-west-1" || cfg.S3Bucket != "conversations" || cfg.OpenAIAPIKey != "sk-test" {
		t.Fatalf("provider keys not honoured: %+v", cfg)
	}

	t.Setenv("SPEAKEASY_HTTP_PORT", "5000")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.HTTPPort != 5000 {
		t.Fatalf("expected primary key to win, got %d", cfg.HTTPPort)
	}
}

func TestLoadMillisecondTunables(t *testing.T) {
	t.Setenv("SPEAKEASY_FRAME_INTERVAL_MS", "500")
	t.Setenv("SPEAKEASY_FINALIZE_DELAY_MS", "0")
	t.Setenv("SPEAKEASY_PERSIST_ON_DISCONNECT", "yes")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.FrameInterval != 500*time.Millisecond {
		t.Fatalf("unexpected frame interval: %s", cfg.FrameInterval)
	}
	if cfg.FinalizeDelay != 0 {
		t.Fatalf("unexpected finalize delay: %s", cfg.FinalizeDelay)
	}
	if !cfg.PersistOnDisconnect {
		t.Fatal("expected persist-on-disconnect enabled")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"db backend":     {"SPEAKEASY_DB_BACKEND", "oracle"},
		"event bus":      {"SPEAKEASY_EVENT_BUS", "kafka"},
		"frame interval": {"SPEAKEASY_FRAME_INTERVAL_MS", "0"},
		"min chunks":     {"SPEAKEASY_MIN_AUDIO_CHUNKS", "-1"},
		"port":           {"SPEAKEASY_HTTP_PORT", "70000"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			if _, err := Load(); err == nil {
				t.Fatalf("expected %s=%s to be rejected", kv[0], kv[1])
			}
		})
	}
}

func TestLoadProductionRequiresSigningKey(t *testing.T) {
	t.Setenv("SPEAKEASY_ENV", "production")
	t.Setenv("SPEAKEASY_JWT_SIGNING_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected production config load to fail without a signing key")
	}

	t.Setenv("SPEAKEASY_JWT_SIGNING_KEY", "supersecret")
	if _, err := Load(); err != nil {
		t.Fatalf("expected production config load with signing key to succeed: %v", err)
	}
}

func TestLoadDotEnvSkipsMissingAndKeepsExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "SPEAKEASY_TEST_DOTENV_NEW=from-file\nSPEAKEASY_TEST_DOTENV_SET=from-file\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("SPEAKEASY_TEST_DOTENV_SET", "from-env")
	t.Cleanup(func() { os.Unsetenv("SPEAKEASY_TEST_DOTENV_NEW") })

	loaded, err := loadDotEnv(filepath.Join(dir, ".env.local"), path)
	if err != nil {
		t.Fatalf("load dotenv: %v", err)
	}
	if len(loaded) != 1 || loaded[0] != path {
		t.Fatalf("unexpected loaded files: %v", loaded)
	}
	if got := os.Getenv("SPEAKEASY_TEST_DOTENV_NEW"); got != "from-file" {
		t.Fatalf("expected value from file, got %q", got)
	}
	if got := os.Getenv("SPEAKEASY_TEST_DOTENV_SET"); got != "from-env" {
		t.Fatalf("existing variable overridden: %q", got)
	}
}
