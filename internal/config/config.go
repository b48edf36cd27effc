package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration required by the API process.
// All values come from env (optionally seeded from a .env file).
// No business logic should depend on raw environment variables.
type Config struct {
	App        AppConfig
	Store      StoreConfig
	DB         DBConfig
	Dynamo     DynamoConfig
	Redis      RedisConfig
	Auth       AuthConfig
	VoiceAgent VoiceAgentConfig
	OpenAI     OpenAIConfig
	Bedrock    BedrockConfig
	Ingest     IngestConfig
	Insights   InsightsConfig
}

type AppConfig struct {
	Env  string
	Port int
}

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreDynamoDB = "dynamodb"
)

type StoreConfig struct {
	Backend string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type DynamoConfig struct {
	Table   string
	Region  string
	Profile string
}

// RedisConfig is optional. An empty host disables the platform read cache.
type RedisConfig struct {
	Host     string
	Port     int
	CacheTTL time.Duration
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type VoiceAgentConfig struct {
	APIKey  string
	BaseURL string

	// TargetAgentIDs scopes active calls and question statistics.
	// Empty means every agent.
	TargetAgentIDs []string
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Models  []string

	// ContextModel generates the repeat-customer greeting context.
	ContextModel string
}

type BedrockConfig struct {
	Region string
	Models []string
}

type IngestConfig struct {
	Enabled  bool
	Interval time.Duration
	PageSize int
}

type InsightsConfig struct {
	CatalogPath string
	MaxCalls    int
	MinSpacing  time.Duration
}

var (
	defaultOpenAIModels  = []string{"gpt-4o-mini", "gpt-3.5-turbo", "gpt-4"}
	defaultBedrockModels = []string{
		"anthropic.claude-3-5-haiku-20241022-v1:0",
		"anthropic.claude-3-haiku-20240307-v1:0",
		"anthropic.claude-3-sonnet-20240229-v1:0",
	}
)

func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.Store.Backend = strings.ToLower(strings.TrimSpace(os.Getenv("STORE_BACKEND")))

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := optionalInt("DB_PORT", 5432)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Dynamo.Table = strings.TrimSpace(os.Getenv("DYNAMO_TABLE"))
	c.Dynamo.Region = strings.TrimSpace(os.Getenv("AWS_REGION"))
	c.Dynamo.Profile = strings.TrimSpace(os.Getenv("AWS_PROFILE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := optionalInt("REDIS_PORT", 6379)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}
	c.Redis.CacheTTL = mustDuration("REDIS_CACHE_TTL")

	c.readAuth()

	c.VoiceAgent.APIKey = os.Getenv("RETELL_API_KEY")
	c.VoiceAgent.BaseURL = strings.TrimSpace(os.Getenv("RETELL_BASE_URL"))
	c.VoiceAgent.TargetAgentIDs = csv("TARGET_AGENT_IDS")

	c.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	c.OpenAI.BaseURL = strings.TrimSpace(os.Getenv("OPENAI_BASE_URL"))
	c.OpenAI.Models = csv("OPENAI_MODELS")
	c.OpenAI.ContextModel = strings.TrimSpace(os.Getenv("OPENAI_CONTEXT_MODEL"))

	c.Bedrock.Region = strings.TrimSpace(os.Getenv("BEDROCK_REGION"))
	c.Bedrock.Models = csv("BEDROCK_MODELS")

	{
		b, err := optionalBool("INGEST_ENABLED", true)
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.Ingest.Enabled = b
	}
	c.Ingest.Interval = mustDuration("INGEST_INTERVAL")
	{
		n, err := optionalInt("INGEST_PAGE_SIZE", 0)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Ingest.PageSize = n
	}

	c.Insights.CatalogPath = strings.TrimSpace(os.Getenv("QUESTION_CATALOG_PATH"))
	{
		n, err := optionalInt("INSIGHTS_MAX_CALLS", 0)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Insights.MaxCalls = n
	}
	c.Insights.MinSpacing = mustDuration("INSIGHTS_MIN_SPACING")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// LoadAuth reads only the JWT settings, for tools that mint tokens without
// running the API.
func LoadAuth() (AuthConfig, error) {
	if err := loadEnvFile(); err != nil {
		return AuthConfig{}, err
	}
	c := Config{}
	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	c.readAuth()
	if errs := c.validateAuth(); len(errs) > 0 {
		return AuthConfig{}, joinErrors(errs)
	}
	return c.Auth, nil
}

func (c *Config) readAuth() {
	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = mustDuration("JWT_REFRESH_TTL")
}

func (c *Config) validateAuth() []error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
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
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}
	return errs
}

// Validate reports every problem at once and fills defaults in place.
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

	if c.Store.Backend == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("STORE_BACKEND is required in production"))
		} else {
			c.Store.Backend = StoreMemory
		}
	}
	switch c.Store.Backend {
	case StoreMemory:
		if c.IsProduction() {
			errs = append(errs, errors.New("STORE_BACKEND=memory is not allowed in production"))
		}
	case StorePostgres:
		errs = append(errs, c.validateDB()...)
	case StoreDynamoDB:
		if c.Dynamo.Table == "" {
			errs = append(errs, errors.New("DYNAMO_TABLE is required for the dynamodb store"))
		}
		if c.Dynamo.Region == "" {
			errs = append(errs, errors.New("AWS_REGION is required for the dynamodb store"))
		}
	case "":
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be one of memory, postgres, dynamodb, got %q", c.Store.Backend))
	}

	if c.Redis.Host != "" && (c.Redis.Port <= 0 || c.Redis.Port > 65535) {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}
	if c.Redis.CacheTTL <= 0 {
		c.Redis.CacheTTL = time.Minute
	}

	errs = append(errs, c.validateAuth()...)

	if c.VoiceAgent.APIKey == "" {
		errs = append(errs, errors.New("RETELL_API_KEY is required"))
	}
	if c.VoiceAgent.BaseURL == "" {
		c.VoiceAgent.BaseURL = "https://api.retellai.com"
	}

	if c.OpenAI.APIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is required"))
	}
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if len(c.OpenAI.Models) == 0 {
		c.OpenAI.Models = append([]string(nil), defaultOpenAIModels...)
	}
	if c.OpenAI.ContextModel == "" {
		c.OpenAI.ContextModel = "gpt-3.5-turbo"
	}

	if c.Bedrock.Region == "" {
		c.Bedrock.Region = c.Dynamo.Region
	}
	if c.Bedrock.Region == "" {
		c.Bedrock.Region = "us-east-1"
	}
	if len(c.Bedrock.Models) == 0 {
		c.Bedrock.Models = append([]string(nil), defaultBedrockModels...)
	}

	if c.Ingest.Interval <= 0 {
		c.Ingest.Interval = 30 * time.Second
	}
	if c.Ingest.PageSize <= 0 {
		c.Ingest.PageSize = 100
	}
	if c.Ingest.PageSize > 1000 {
		errs = append(errs, fmt.Errorf("INGEST_PAGE_SIZE must be at most 1000, got %d", c.Ingest.PageSize))
	}

	if c.Insights.MaxCalls <= 0 {
		c.Insights.MaxCalls = 100
	}
	if c.Insights.MinSpacing <= 0 {
		c.Insights.MinSpacing = 2 * time.Second
	}

	return joinErrors(errs)
}

func (c *Config) validateDB() []error {
	var errs []error
	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required for the postgres store"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required for the postgres store"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required for the postgres store"))
	}
	if c.DB.SSLMode == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}
	return errs
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
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

// RedisAddr returns "" when Redis is not configured.
func (c Config) RedisAddr() string {
	if c.Redis.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// loadEnvFile seeds the environment from ENV_FILE, or from ./.env when present.
// Variables already set in the process environment win.
func loadEnvFile() error {
	if path := strings.TrimSpace(os.Getenv("ENV_FILE")); path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("ENV_FILE %q: %w", path, err)
		}
		return nil
	}
	if _, err := os.Stat(".env"); err == nil {
		return godotenv.Load(".env")
	}
	return nil
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

func optionalInt(key string, def int) (int, error) {
	if strings.TrimSpace(os.Getenv(key)) == "" {
		return def, nil
	}
	return mustInt(key)
}

func optionalBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("%s must be a boolean, got %q", key, v)
	}
	return b, nil
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

// csv splits a comma separated env var, dropping blanks.
func csv(key string) []string {
	raw := os.Getenv(key)
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
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
