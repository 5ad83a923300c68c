package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/xaenox/mailsift/internal/classifier"
	"github.com/xaenox/mailsift/internal/content"
	"github.com/xaenox/mailsift/internal/extraction"
	"github.com/xaenox/mailsift/internal/models"
	"github.com/xaenox/mailsift/internal/provider"
	"github.com/xaenox/mailsift/internal/storage"
)

type Config struct {
	Providers      map[string]ProviderConfig `mapstructure:"providers"`
	Tasks          TasksConfig               `mapstructure:"tasks"`
	Classification ClassificationConfig      `mapstructure:"classification"`
	Extraction     ExtractionConfig          `mapstructure:"extraction"`
	Worker         WorkerConfig              `mapstructure:"worker"`
	Database       DatabaseConfig            `mapstructure:"database"`
	Redis          RedisConfig               `mapstructure:"redis"`
	Telegram       TelegramConfig            `mapstructure:"telegram"`
	HTTP           HTTPConfig                `mapstructure:"http"`
	Log            LogConfig                 `mapstructure:"log"`
}

type ProviderConfig struct {
	Kind              string        `mapstructure:"kind"`
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model"`
	ModelClassify     string        `mapstructure:"model_classify"`
	ModelExtract      string        `mapstructure:"model_extract"`
	Temperature       float64       `mapstructure:"temperature"`
	MaxTokens         int           `mapstructure:"max_tokens"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequireAuth       *bool         `mapstructure:"require_auth"`
	RetryAttempts     int           `mapstructure:"retry_attempts"`
	RetryDelay        time.Duration `mapstructure:"retry_delay"`
	MaxConcurrent     int           `mapstructure:"max_concurrent"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
}

type TaskConfig struct {
	Provider string `mapstructure:"provider"`
	Fallback string `mapstructure:"fallback"`
}

type TasksConfig struct {
	Classification TaskConfig `mapstructure:"classification"`
	Extraction     TaskConfig `mapstructure:"extraction"`
	Attachment     TaskConfig `mapstructure:"attachment"`
}

type ClassificationConfig struct {
	ConfidenceThreshold float64            `mapstructure:"confidence_threshold"`
	AgreementBoost      float64            `mapstructure:"agreement_boost"`
	DefaultAIConfidence float64            `mapstructure:"default_ai_confidence"`
	HeuristicCeiling    float64            `mapstructure:"heuristic_ceiling"`
	SpamOverridePenalty float64            `mapstructure:"spam_override_penalty"`
	SpamThreshold       int                `mapstructure:"spam_threshold"`
	KeywordsPath        string             `mapstructure:"keywords_path"`
	Weights             classifier.Weights `mapstructure:"weights"`
	Content             content.Bounds     `mapstructure:"content"`
	Verbose             bool               `mapstructure:"verbose"`
}

type ExtractionConfig struct {
	Content content.Bounds `mapstructure:"content"`
}

type WorkerConfig struct {
	BatchSize   int           `mapstructure:"batch_size"`
	Concurrency int           `mapstructure:"concurrency"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
	ErrorDelay  time.Duration `mapstructure:"error_delay"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
	Key string `mapstructure:"key"`
}

type TelegramConfig struct {
	Token        string `mapstructure:"token"`
	ReviewChatID int64  `mapstructure:"review_chat_id"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// envBindings maps configuration keys to the environment variables that
// historically configured them.
var envBindings = map[string]string{
	"providers.openai.api_key":            "OPENAI_API_KEY",
	"providers.openai.model_classify":     "OPENAI_MODEL_CLASSIFY",
	"providers.openai.model_extract":      "OPENAI_MODEL_EXTRACT",
	"providers.openai.temperature":        "OPENAI_TEMPERATURE",
	"providers.openai.max_tokens":         "OPENAI_MAX_TOKENS",
	"providers.openai.timeout":            "OPENAI_TIMEOUT",
	"providers.deepseek.api_key":          "DEEPSEEK_API_KEY",
	"providers.deepseek.base_url":         "DEEPSEEK_API_BASE_URL",
	"providers.deepseek.model_classify":   "DEEPSEEK_MODEL_CLASSIFY",
	"providers.deepseek.model_extract":    "DEEPSEEK_MODEL_EXTRACT",
	"providers.deepseek.timeout":          "DEEPSEEK_TIMEOUT",
	"providers.anthropic.api_key":         "ANTHROPIC_API_KEY",
	"providers.anthropic.model":           "ANTHROPIC_MODEL",
	"providers.custom.api_key":            "CUSTOM_API_KEY",
	"providers.custom.base_url":           "CUSTOM_API_BASE_URL",
	"providers.custom.model":              "CUSTOM_DEFAULT_MODEL",
	"providers.custom.require_auth":       "CUSTOM_REQUIRE_AUTH",
	"providers.custom_no_auth.base_url":   "CUSTOM_NO_AUTH_API_BASE_URL",
	"providers.custom_no_auth.model":      "CUSTOM_NO_AUTH_DEFAULT_MODEL",
	"tasks.classification.provider":       "AI_CLASSIFICATION_PROVIDER",
	"tasks.classification.fallback":       "AI_CLASSIFICATION_FALLBACK",
	"tasks.extraction.provider":           "AI_EXTRACTION_PROVIDER",
	"tasks.extraction.fallback":           "AI_EXTRACTION_FALLBACK",
	"tasks.attachment.provider":           "AI_ATTACHMENT_PROVIDER",
	"tasks.attachment.fallback":           "AI_ATTACHMENT_FALLBACK",
	"classification.confidence_threshold": "CLASSIFICATION_CONFIDENCE_THRESHOLD",
	"classification.spam_threshold":       "SPAM_KEYWORDS_THRESHOLD",
	"classification.verbose":              "ENABLE_CLASSIFICATION_LOGGING",
	"classification.weights.high":         "KEYWORD_WEIGHT_HIGH",
	"classification.weights.medium":       "KEYWORD_WEIGHT_MEDIUM",
	"classification.weights.low":          "KEYWORD_WEIGHT_LOW",
	"classification.content.max_length":   "CONTENT_MAX_LENGTH",
	"classification.content.head_length":  "CONTENT_HEAD_LENGTH",
	"classification.content.tail_length":  "CONTENT_TAIL_LENGTH",
	"worker.batch_size":                   "EMAIL_BATCH_SIZE",
	"telegram.token":                      "TELEGRAM_TOKEN",
	"redis.url":                           "REDIS_URL",
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	// Remove leading slash from path to get database name
	dbName := strings.TrimPrefix(u.Path, "/")

	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   dbName,
		SSLMode:  sslMode,
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("providers.openai.kind", "openai")
	v.SetDefault("providers.openai.model_classify", "gpt-3.5-turbo")
	v.SetDefault("providers.openai.model_extract", "gpt-4")
	v.SetDefault("providers.openai.temperature", 0.1)
	v.SetDefault("providers.openai.max_tokens", 1024)
	v.SetDefault("providers.openai.timeout", 60*time.Second)

	v.SetDefault("providers.deepseek.kind", "deepseek")
	v.SetDefault("providers.deepseek.base_url", "https://api.deepseek.com")
	v.SetDefault("providers.deepseek.model", "deepseek-chat")
	v.SetDefault("providers.deepseek.temperature", 0.1)
	v.SetDefault("providers.deepseek.max_tokens", 1024)
	v.SetDefault("providers.deepseek.timeout", 120*time.Second)

	v.SetDefault("providers.anthropic.kind", "anthropic")
	v.SetDefault("providers.anthropic.model", "claude-3-5-haiku-latest")
	v.SetDefault("providers.anthropic.temperature", 0.1)
	v.SetDefault("providers.anthropic.max_tokens", 1024)

	v.SetDefault("providers.custom.kind", "openai_compatible")
	v.SetDefault("providers.custom.model", "default")
	v.SetDefault("providers.custom.temperature", 0.1)
	v.SetDefault("providers.custom.max_tokens", 1024)
	v.SetDefault("providers.custom.timeout", 120*time.Second)

	v.SetDefault("providers.custom_no_auth.kind", "no_auth")
	v.SetDefault("providers.custom_no_auth.model", "default")
	v.SetDefault("providers.custom_no_auth.temperature", 0.1)
	v.SetDefault("providers.custom_no_auth.max_tokens", 1024)
	v.SetDefault("providers.custom_no_auth.timeout", 120*time.Second)

	v.SetDefault("tasks.classification.provider", "deepseek")
	v.SetDefault("tasks.classification.fallback", "openai")
	v.SetDefault("tasks.extraction.provider", "deepseek")
	v.SetDefault("tasks.extraction.fallback", "openai")
	v.SetDefault("tasks.attachment.provider", "deepseek")
	v.SetDefault("tasks.attachment.fallback", "openai")

	co := classifier.DefaultOptions()
	v.SetDefault("classification.confidence_threshold", co.ConfidenceThreshold)
	v.SetDefault("classification.agreement_boost", co.AgreementBoost)
	v.SetDefault("classification.default_ai_confidence", co.DefaultAIConfidence)
	v.SetDefault("classification.heuristic_ceiling", co.HeuristicCeiling)
	v.SetDefault("classification.spam_override_penalty", co.SpamOverridePenalty)
	v.SetDefault("classification.spam_threshold", 2)
	v.SetDefault("classification.weights.high", classifier.DefaultWeights().High)
	v.SetDefault("classification.weights.medium", classifier.DefaultWeights().Medium)
	v.SetDefault("classification.weights.low", classifier.DefaultWeights().Low)
	v.SetDefault("classification.content.max_length", co.Bounds.MaxLength)
	v.SetDefault("classification.content.head_length", co.Bounds.HeadLength)
	v.SetDefault("classification.content.tail_length", co.Bounds.TailLength)
	v.SetDefault("classification.verbose", false)

	eo := extraction.DefaultOptions()
	v.SetDefault("extraction.content.max_length", eo.Bounds.MaxLength)
	v.SetDefault("extraction.content.head_length", eo.Bounds.HeadLength)
	v.SetDefault("extraction.content.tail_length", eo.Bounds.TailLength)

	v.SetDefault("worker.batch_size", 50)
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.poll_timeout", 5*time.Second)
	v.SetDefault("worker.error_delay", 5*time.Second)

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "mailsift")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", false)

	v.SetDefault("redis.key", "mailsift:messages")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// LoadConfig reads the YAML file at path, when given, on top of the
// built-in defaults and applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Enable environment variable support
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		config.Database = dbConfig
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the tuning constants. Provider bindings are validated by
// the provider registry.
func (c *Config) Validate() error {
	var errs []error
	if err := c.ClassifierOptions().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("classification: %w", err))
	}
	if err := c.Classification.Weights.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("classification.weights: %w", err))
	}
	if c.Classification.SpamThreshold < 1 {
		errs = append(errs, errors.New("classification.spam_threshold must be at least 1"))
	}
	if err := c.Extraction.Content.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("extraction.content: %w", err))
	}
	if c.Worker.BatchSize < 1 {
		errs = append(errs, errors.New("worker.batch_size must be at least 1"))
	}
	if c.Worker.Concurrency < 1 {
		errs = append(errs, errors.New("worker.concurrency must be at least 1"))
	}
	return errors.Join(errs...)
}

func (c *Config) ClassifierOptions() classifier.Options {
	return classifier.Options{
		ConfidenceThreshold: c.Classification.ConfidenceThreshold,
		AgreementBoost:      c.Classification.AgreementBoost,
		DefaultAIConfidence: c.Classification.DefaultAIConfidence,
		HeuristicCeiling:    c.Classification.HeuristicCeiling,
		SpamOverridePenalty: c.Classification.SpamOverridePenalty,
		Bounds:              c.Classification.Content,
		Verbose:             c.Classification.Verbose,
	}
}

func (c *Config) ExtractionOptions() extraction.Options {
	return extraction.Options{
		ConfidenceThreshold: c.Classification.ConfidenceThreshold,
		Bounds:              c.Extraction.Content,
	}
}

// TaskBindings returns the provider names per task type.
func (c *Config) TaskBindings() map[models.TaskType]provider.TaskBinding {
	return map[models.TaskType]provider.TaskBinding{
		models.TaskClassification: {Primary: c.Tasks.Classification.Provider, Fallback: c.Tasks.Classification.Fallback},
		models.TaskExtraction:     {Primary: c.Tasks.Extraction.Provider, Fallback: c.Tasks.Extraction.Fallback},
		models.TaskAttachment:     {Primary: c.Tasks.Attachment.Provider, Fallback: c.Tasks.Attachment.Fallback},
	}
}

// ProviderConfigs returns the providers referenced by a task binding,
// sorted by name. Unreferenced entries are never built, so a default
// provider without credentials does not fail startup. A referenced name
// with no entry is left for the registry to report.
func (c *Config) ProviderConfigs() []provider.Config {
	used := map[string]bool{}
	for _, tb := range c.TaskBindings() {
		if tb.Primary != "" {
			used[tb.Primary] = true
		}
		if tb.Fallback != "" {
			used[tb.Fallback] = true
		}
	}

	var out []provider.Config
	for name, p := range c.Providers {
		if !used[name] {
			continue
		}
		requireAuth := p.Kind != "no_auth"
		if p.RequireAuth != nil {
			requireAuth = *p.RequireAuth
		}
		out = append(out, provider.Config{
			Name:    name,
			Kind:    p.Kind,
			BaseURL: p.BaseURL,
			APIKey:  p.APIKey,
			Model:   p.Model,
			Models: map[models.TaskType]string{
				models.TaskClassification: p.ModelClassify,
				models.TaskExtraction:     p.ModelExtract,
				models.TaskAttachment:     p.ModelExtract,
			},
			Temperature:       p.Temperature,
			MaxTokens:         p.MaxTokens,
			Timeout:           p.Timeout,
			RequireAuth:       requireAuth,
			RetryAttempts:     p.RetryAttempts,
			RetryDelay:        p.RetryDelay,
			MaxConcurrent:     p.MaxConcurrent,
			RequestsPerMinute: p.RequestsPerMinute,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (c DatabaseConfig) Storage() storage.DatabaseConfig {
	return storage.DatabaseConfig{
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		DBName:   c.DBName,
		SSLMode:  c.SSLMode,
	}
}
