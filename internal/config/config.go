package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the gateway process.
// All values come from env (or an env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App   AppConfig
	DB    DBConfig
	Redis RedisConfig
	Auth  AuthConfig
	Voice VoiceConfig
	Dial  DialConfig
	AMQP  AMQPConfig
}

type AppConfig struct {
	Env  string
	Port int

	// WebhookBaseURL is the public base URL providers call back,
	// e.g. https://gw.example.com. Required outside simulation mode.
	WebhookBaseURL string

	// SimulationMode swaps every external collaborator for a local stand-in.
	SimulationMode bool
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret      string
	JWTIssuer      string
	JWTAudience    string
	AccessTokenTTL time.Duration

	// APIKey gates the token issuance endpoint.
	APIKey string
}

type VoiceConfig struct {
	ElevenLabsAPIKey string
	ElevenLabsVoice  string
	ElevenLabsModel  string

	DeepgramAPIKey string
	DeepgramModel  string

	RequestTimeout time.Duration
}

type DialConfig struct {
	// Provider selects the outbound dialer: "twilio" or "vapi".
	Provider string

	TwilioAccountSID string
	TwilioAuthToken  string
	VapiAPIKey       string

	FromNumber string

	DialTimeout time.Duration

	// MaxActiveCalls caps concurrent outbound calls across instances.
	// Zero disables the cap.
	MaxActiveCalls int
}

type AMQPConfig struct {
	// URL is optional; events are dropped (with a debug log) when empty.
	URL      string
	Exchange string
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	if n, err := mustInt("APP_PORT"); err != nil {
		parseErrs = append(parseErrs, err)
	} else {
		c.App.Port = n
	}
	c.App.WebhookBaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("WEBHOOK_BASE_URL")), "/")
	c.App.SimulationMode = boolEnv("SIMULATION_MODE")

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	if n, err := mustInt("DB_PORT"); err != nil {
		parseErrs = append(parseErrs, err)
	} else {
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	if n, err := mustInt("REDIS_PORT"); err != nil {
		parseErrs = append(parseErrs, err)
	} else {
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")
	c.Auth.APIKey = os.Getenv("API_KEY")

	c.Voice.ElevenLabsAPIKey = strings.TrimSpace(os.Getenv("ELEVENLABS_API_KEY"))
	c.Voice.ElevenLabsVoice = strings.TrimSpace(os.Getenv("ELEVENLABS_VOICE"))
	c.Voice.ElevenLabsModel = strings.TrimSpace(os.Getenv("ELEVENLABS_MODEL"))
	c.Voice.DeepgramAPIKey = strings.TrimSpace(os.Getenv("DEEPGRAM_API_KEY"))
	c.Voice.DeepgramModel = strings.TrimSpace(os.Getenv("DEEPGRAM_MODEL"))
	c.Voice.RequestTimeout = mustDuration("VOICE_REQUEST_TIMEOUT")

	c.Dial.Provider = strings.ToLower(strings.TrimSpace(os.Getenv("VOICE_SERVICE")))
	c.Dial.TwilioAccountSID = strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID"))
	c.Dial.TwilioAuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	c.Dial.VapiAPIKey = os.Getenv("VAPI_API_KEY")
	c.Dial.FromNumber = strings.TrimSpace(os.Getenv("FROM_PHONE_NUMBER"))
	c.Dial.DialTimeout = mustDuration("DIAL_TIMEOUT")
	{
		v := strings.TrimSpace(os.Getenv("MAX_ACTIVE_CALLS"))
		if v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				parseErrs = append(parseErrs, fmt.Errorf("MAX_ACTIVE_CALLS must be an integer, got %q", v))
			}
			c.Dial.MaxActiveCalls = n
		}
	}

	c.AMQP.URL = strings.TrimSpace(os.Getenv("AMQP_URL"))
	c.AMQP.Exchange = strings.TrimSpace(os.Getenv("AMQP_EXCHANGE"))

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Auth.APIKey == "" {
		errs = append(errs, errors.New("API_KEY is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}

	if c.Voice.RequestTimeout <= 0 {
		c.Voice.RequestTimeout = 30 * time.Second
	}
	if c.Dial.DialTimeout <= 0 {
		c.Dial.DialTimeout = 15 * time.Second
	}
	if c.Dial.MaxActiveCalls < 0 {
		errs = append(errs, fmt.Errorf("MAX_ACTIVE_CALLS must be >= 0, got %d", c.Dial.MaxActiveCalls))
	}

	// Vendor credentials are only required when the process actually talks to
	// vendors; simulation mode runs with local stand-ins.
	if !c.App.SimulationMode {
		if c.App.WebhookBaseURL == "" {
			errs = append(errs, errors.New("WEBHOOK_BASE_URL is required outside simulation mode"))
		}
		if c.Voice.ElevenLabsAPIKey == "" {
			errs = append(errs, errors.New("ELEVENLABS_API_KEY is required outside simulation mode"))
		}
		if c.Voice.DeepgramAPIKey == "" {
			errs = append(errs, errors.New("DEEPGRAM_API_KEY is required outside simulation mode"))
		}
		switch c.Dial.Provider {
		case "", "twilio":
			c.Dial.Provider = "twilio"
			if c.Dial.TwilioAccountSID == "" || c.Dial.TwilioAuthToken == "" {
				errs = append(errs, errors.New("TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN are required for the twilio provider"))
			}
			if c.Dial.FromNumber == "" {
				errs = append(errs, errors.New("FROM_PHONE_NUMBER is required for the twilio provider"))
			}
		case "vapi":
			if c.Dial.VapiAPIKey == "" {
				errs = append(errs, errors.New("VAPI_API_KEY is required for the vapi provider"))
			}
		default:
			errs = append(errs, fmt.Errorf("VOICE_SERVICE must be twilio or vapi, got %q", c.Dial.Provider))
		}
	}

	if c.AMQP.URL != "" && c.AMQP.Exchange == "" {
		c.AMQP.Exchange = "voice.calls"
	}

	return joinErrors(errs)
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c *Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// WebhookURL is the full callback endpoint handed to telephony providers.
func (c *Config) WebhookURL() string {
	return c.App.WebhookBaseURL + "/webhooks/voice"
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func boolEnv(key string) bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv(key)), "true")
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
