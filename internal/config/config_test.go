package config

import (
	"strings"
	"testing"
	"time"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "local")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "gateway")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "voice")
	t.Setenv("REDIS_HOST", "localhost")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("JWT_SECRET", "sufficiently-long-test-secret")
	t.Setenv("API_KEY", "test-api-key")
	t.Setenv("SIMULATION_MODE", "true")
}

func TestLoadSimulationMode(t *testing.T) {
	setBaseEnv(t)

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !c.App.SimulationMode {
		t.Fatal("expected simulation mode")
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode default disable, got %q", c.DB.SSLMode)
	}
	if c.Auth.AccessTokenTTL != 15*time.Minute {
		t.Fatalf("expected default access token ttl, got %v", c.Auth.AccessTokenTTL)
	}
	if c.Voice.RequestTimeout != 30*time.Second {
		t.Fatalf("expected default voice timeout, got %v", c.Voice.RequestTimeout)
	}
	if c.Dial.DialTimeout != 15*time.Second {
		t.Fatalf("expected default dial timeout, got %v", c.Dial.DialTimeout)
	}
	if got := c.HTTPAddr(); got != ":8080" {
		t.Fatalf("HTTPAddr = %q", got)
	}
	if got := c.RedisAddr(); got != "localhost:6379" {
		t.Fatalf("RedisAddr = %q", got)
	}
}

func TestLoadRequiresVendorKeysOutsideSimulation(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("SIMULATION_MODE", "false")

	_, err := Load()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"WEBHOOK_BASE_URL", "ELEVENLABS_API_KEY", "DEEPGRAM_API_KEY", "TWILIO_ACCOUNT_SID"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %s: %v", want, err)
		}
	}
}

func TestLoadTwilioProvider(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("SIMULATION_MODE", "false")
	t.Setenv("WEBHOOK_BASE_URL", "https://gw.example.com/")
	t.Setenv("ELEVENLABS_API_KEY", "el-key")
	t.Setenv("DEEPGRAM_API_KEY", "dg-key")
	t.Setenv("TWILIO_ACCOUNT_SID", "ACxxx")
	t.Setenv("TWILIO_AUTH_TOKEN", "token")
	t.Setenv("FROM_PHONE_NUMBER", "+15550000001")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Dial.Provider != "twilio" {
		t.Fatalf("expected twilio default provider, got %q", c.Dial.Provider)
	}
	if got := c.WebhookURL(); got != "https://gw.example.com/webhooks/voice" {
		t.Fatalf("WebhookURL = %q", got)
	}
}

func TestLoadVapiProvider(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("SIMULATION_MODE", "false")
	t.Setenv("WEBHOOK_BASE_URL", "https://gw.example.com")
	t.Setenv("ELEVENLABS_API_KEY", "el-key")
	t.Setenv("DEEPGRAM_API_KEY", "dg-key")
	t.Setenv("VOICE_SERVICE", "vapi")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "VAPI_API_KEY") {
		t.Fatalf("expected vapi key error, got %v", err)
	}

	t.Setenv("VAPI_API_KEY", "vapi-key")
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Dial.Provider != "vapi" {
		t.Fatalf("provider = %q", c.Dial.Provider)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("APP_PORT", "not-a-port")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "APP_PORT") {
		t.Fatalf("expected APP_PORT error, got %v", err)
	}
}

func TestLoadUnknownProviderRejected(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("SIMULATION_MODE", "false")
	t.Setenv("WEBHOOK_BASE_URL", "https://gw.example.com")
	t.Setenv("ELEVENLABS_API_KEY", "el-key")
	t.Setenv("DEEPGRAM_API_KEY", "dg-key")
	t.Setenv("VOICE_SERVICE", "plivo")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "VOICE_SERVICE") {
		t.Fatalf("expected VOICE_SERVICE error, got %v", err)
	}
}

func TestMaxActiveCallsParsed(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("MAX_ACTIVE_CALLS", "25")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Dial.MaxActiveCalls != 25 {
		t.Fatalf("MaxActiveCalls = %d", c.Dial.MaxActiveCalls)
	}
}
