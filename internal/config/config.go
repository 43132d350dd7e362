package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every subsystem's configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Chat     ChatConfig
	AI       AIConfig
	Sentry   SentryConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	auth, err := loadAuthConfig()
	if err != nil {
		return nil, err
	}

	chat, err := loadChatConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:   server,
		Database: loadDatabaseConfig(),
		Auth:     auth,
		Chat:     chat,
		AI:       ai,
		Sentry: SentryConfig{
			DSN:         strings.TrimSpace(os.Getenv("SENTRY_DSN")),
			Environment: getEnvOrDefault("SENTRY_ENVIRONMENT", "development"),
		},
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr        string
	CORSOrigins string
}

func loadServerConfig() (ServerConfig, error) {
	origins := getEnvOrDefault("CORS_ORIGINS", "*")

	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" verbatim.
		return ServerConfig{Addr: port, CORSOrigins: origins}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, CORSOrigins: origins}, nil
}

// DatabaseConfig describes the PostgreSQL connection.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:     getEnvOrDefault("DB_HOST", "localhost"),
		Port:     getEnvOrDefault("DB_PORT", "5432"),
		User:     getEnvOrDefault("DB_USER", "postgres"),
		Password: strings.TrimSpace(os.Getenv("DB_PASSWORD")),
		Name:     getEnvOrDefault("DB_NAME", "spiritchat"),
		SSLMode:  getEnvOrDefault("DB_SSLMODE", "disable"),
	}
}

// DSN renders the GORM postgres connection string.
func (c DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Name +
		" port=" + c.Port +
		" sslmode=" + c.SSLMode +
		" TimeZone=UTC"
}

// OAuthProvider holds the endpoints for one redirect-based sign-in provider.
type OAuthProvider struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	Scopes       string
}

// Configured reports whether the provider can be offered to clients.
func (p OAuthProvider) Configured() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

// AuthConfig describes token issuance and admin access.
type AuthConfig struct {
	JWTSecret           string
	AccessExpiry        time.Duration
	RefreshExpiry       time.Duration
	RequireVerification bool
	AdminEmails         string
	AdminUserIDs        string
	AdminToken          string
	OAuth               map[string]OAuthProvider
}

func loadAuthConfig() (AuthConfig, error) {
	access, err := parseDurationEnv("JWT_ACCESS_EXPIRY", 15*time.Minute)
	if err != nil {
		return AuthConfig{}, err
	}

	refresh, err := parseDurationEnv("JWT_REFRESH_EXPIRY", 168*time.Hour)
	if err != nil {
		return AuthConfig{}, err
	}

	providers := map[string]OAuthProvider{
		"google": {
			ClientID:     strings.TrimSpace(os.Getenv("OAUTH_GOOGLE_CLIENT_ID")),
			ClientSecret: strings.TrimSpace(os.Getenv("OAUTH_GOOGLE_CLIENT_SECRET")),
			AuthURL:      "https://accounts.google.com/o/oauth2/v2/auth",
			TokenURL:     "https://oauth2.googleapis.com/token",
			UserInfoURL:  "https://openidconnect.googleapis.com/v1/userinfo",
			Scopes:       "openid email profile",
		},
		"github": {
			ClientID:     strings.TrimSpace(os.Getenv("OAUTH_GITHUB_CLIENT_ID")),
			ClientSecret: strings.TrimSpace(os.Getenv("OAUTH_GITHUB_CLIENT_SECRET")),
			AuthURL:      "https://github.com/login/oauth/authorize",
			TokenURL:     "https://github.com/login/oauth/access_token",
			UserInfoURL:  "https://api.github.com/user",
			Scopes:       "user:email",
		},
	}

	requireVerification, err := parseBoolEnv("REQUIRE_EMAIL_VERIFICATION", false)
	if err != nil {
		return AuthConfig{}, err
	}

	return AuthConfig{
		JWTSecret:           strings.TrimSpace(os.Getenv("JWT_SECRET")),
		AccessExpiry:        access,
		RefreshExpiry:       refresh,
		RequireVerification: requireVerification,
		AdminEmails:         strings.TrimSpace(os.Getenv("ADMIN_EMAILS")),
		AdminUserIDs:        strings.TrimSpace(os.Getenv("ADMIN_USER_IDS")),
		AdminToken:          strings.TrimSpace(os.Getenv("ADMIN_TOKEN")),
		OAuth:               providers,
	}, nil
}

// ChatConfig tunes the orchestrator.
type ChatConfig struct {
	// ReplyDelay is the pause before the assistant reply is generated,
	// standing in for model latency.
	ReplyDelay time.Duration
	// DefaultLanguage applies when neither profile nor conversation carries one.
	DefaultLanguage string
	// HintsPath, when set, is where the client-local hint cache lives.
	HintsPath string
}

func loadChatConfig() (ChatConfig, error) {
	delay, err := parseDurationEnv("CHAT_REPLY_DELAY", 2*time.Second)
	if err != nil {
		return ChatConfig{}, err
	}

	return ChatConfig{
		ReplyDelay:      delay,
		DefaultLanguage: getEnvOrDefault("CHAT_DEFAULT_LANGUAGE", "en"),
		HintsPath:       strings.TrimSpace(os.Getenv("CLIENT_HINTS_PATH")),
	}, nil
}

// AIConfig describes the optional model-backed reply path.
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled reports whether the required credentials are present.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel builds a model instance from the configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: provide ARK_API_KEY + ARK_MODEL or the AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
}

// SentryConfig describes error reporting.
type SentryConfig struct {
	DSN         string
	Environment string
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
