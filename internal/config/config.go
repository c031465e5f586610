package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tenkay/filing-pipeline/internal/model"
	"github.com/tenkay/filing-pipeline/internal/ratelimit"
	"github.com/tenkay/filing-pipeline/internal/resilience"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig               `yaml:"store" mapstructure:"store"`
	Blob        BlobConfig                `yaml:"blob" mapstructure:"blob"`
	EDGAR       EDGARConfig               `yaml:"edgar" mapstructure:"edgar"`
	Anthropic   AnthropicConfig           `yaml:"anthropic" mapstructure:"anthropic"`
	Resend      ResendConfig              `yaml:"resend" mapstructure:"resend"`
	Site        SiteConfig                `yaml:"site" mapstructure:"site"`
	RateLimits  map[string]ratelimit.Spec `yaml:"rate_limits" mapstructure:"rate_limits"`
	Retry       RetryConfig               `yaml:"retry" mapstructure:"retry"`
	Circuit     CircuitConfig             `yaml:"circuit" mapstructure:"circuit"`
	Fetch       FetchConfig               `yaml:"fetch" mapstructure:"fetch"`
	Analyze     StageConfig               `yaml:"analyze" mapstructure:"analyze"`
	Generate    StageConfig               `yaml:"generate" mapstructure:"generate"`
	Publish     PublishConfig             `yaml:"publish" mapstructure:"publish"`
	Orchestrate OrchestrateConfig         `yaml:"orchestrate" mapstructure:"orchestrate"`
	Server      ServerConfig              `yaml:"server" mapstructure:"server"`
	Monitoring  MonitoringConfig          `yaml:"monitoring" mapstructure:"monitoring"`
	Log         LogConfig                 `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	// Pool sizing applies to postgres only.
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// BlobConfig configures raw document storage.
type BlobConfig struct {
	Root string `yaml:"root" mapstructure:"root"`
}

// EDGARConfig configures SEC access. EDGAR rejects requests without a
// contact address in the User-Agent.
type EDGARConfig struct {
	BaseURL      string `yaml:"base_url" mapstructure:"base_url"`
	UserAgent    string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxBodyBytes int64  `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	Model       string  `yaml:"model" mapstructure:"model"`
	DeepModel   string  `yaml:"deep_model" mapstructure:"deep_model"`
	MaxTokens   int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// ModelFor returns the model used for an analysis depth.
func (c AnthropicConfig) ModelFor(t model.AnalysisType) string {
	if t == model.AnalysisDeep && c.DeepModel != "" {
		return c.DeepModel
	}
	return c.Model
}

// ResendConfig holds email delivery settings.
type ResendConfig struct {
	Key            string `yaml:"key" mapstructure:"key"`
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	From           string `yaml:"from" mapstructure:"from"`
	ReplyTo        string `yaml:"reply_to" mapstructure:"reply_to"`
	UnsubscribeURL string `yaml:"unsubscribe_url" mapstructure:"unsubscribe_url"`
}

// SiteConfig holds the public site that blog links point at.
type SiteConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
}

// RetryConfig configures retries of transient upstream failures.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"`
}

// Policy converts the settings to a resilience.RetryConfig.
func (c RetryConfig) Policy() resilience.RetryConfig {
	return resilience.NewRetryConfig(c.MaxAttempts, c.InitialBackoff, c.MaxBackoff)
}

// CircuitConfig configures the breaker around email sends.
type CircuitConfig struct {
	FailureThreshold int           `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeout     time.Duration `yaml:"reset_timeout" mapstructure:"reset_timeout"`
}

// Breaker converts the settings to a resilience.CircuitBreakerConfig.
func (c CircuitConfig) Breaker() resilience.CircuitBreakerConfig {
	return resilience.CircuitBreakerConfig{FailureThreshold: c.FailureThreshold, ResetTimeout: c.ResetTimeout}
}

// StageConfig holds batch defaults shared by every stage.
type StageConfig struct {
	Limit   int `yaml:"limit" mapstructure:"limit"`
	Workers int `yaml:"workers" mapstructure:"workers"`
	// Type is the analysis depth; only the analyze stage reads it.
	Type string `yaml:"type" mapstructure:"type"`
}

// FetchConfig configures filing discovery.
type FetchConfig struct {
	StageConfig `yaml:",inline" mapstructure:",squash"`
	Forms       []string `yaml:"forms" mapstructure:"forms"`
	PerCompany  int      `yaml:"per_company" mapstructure:"per_company"`
}

// FilingTypes converts Forms to model values.
func (c FetchConfig) FilingTypes() []model.FilingType {
	out := make([]model.FilingType, 0, len(c.Forms))
	for _, f := range c.Forms {
		out = append(out, model.FilingType(strings.ToUpper(f)))
	}
	return out
}

// PublishConfig configures the email broadcast.
type PublishConfig struct {
	StageConfig `yaml:",inline" mapstructure:",squash"`
	Tier        string `yaml:"tier" mapstructure:"tier"`
}

// OrchestrateConfig configures the overlapping phase run.
type OrchestrateConfig struct {
	Threshold       float64       `yaml:"threshold" mapstructure:"threshold"`
	PollInterval    time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	StatusInterval  time.Duration `yaml:"status_interval" mapstructure:"status_interval"`
	AnalyzeLimit    int           `yaml:"analyze_limit" mapstructure:"analyze_limit"`
	AnalyzeWorkers  int           `yaml:"analyze_workers" mapstructure:"analyze_workers"`
	GenerateLimit   int           `yaml:"generate_limit" mapstructure:"generate_limit"`
	GenerateWorkers int           `yaml:"generate_workers" mapstructure:"generate_workers"`
	ReportFile      string        `yaml:"report_file" mapstructure:"report_file"`
}

// ServerConfig configures the status API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// MonitoringConfig configures the background health check run by serve.
// Alerts are only sent when WebhookURL is set.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	BacklogThreshold     int     `yaml:"backlog_threshold" mapstructure:"backlog_threshold"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. file overrides the
// default search for ./config.yaml when non-empty.
func Load(file string) (*Config, error) {
	v := viper.New()

	// Config file
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("TENKAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only sees keys viper already knows; secrets have no default.
	for _, key := range []string{"store.database_url", "anthropic.key", "resend.key", "resend.from", "site.url", "resend.unsubscribe_url", "monitoring.webhook_url"} {
		_ = v.BindEnv(key)
	}

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("blob.root", "data/filings")
	v.SetDefault("edgar.base_url", "https://www.sec.gov")
	v.SetDefault("edgar.user_agent", "tenkay filing pipeline ops@tenkay.dev")
	v.SetDefault("edgar.timeout_secs", 60)
	v.SetDefault("edgar.max_body_bytes", 64<<20)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.deep_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.temperature", 0.7)
	v.SetDefault("resend.base_url", "https://api.resend.com")
	v.SetDefault("rate_limits.sec.min_interval", "100ms")
	v.SetDefault("rate_limits.llm.min_interval", "500ms")
	v.SetDefault("rate_limits.email.per_second", 2.0)
	v.SetDefault("rate_limits.email.burst", 2)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff", "1s")
	v.SetDefault("retry.max_backoff", "30s")
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout", "30s")
	v.SetDefault("fetch.workers", 3)
	v.SetDefault("fetch.forms", []string{"10-K", "10-Q"})
	v.SetDefault("fetch.per_company", 4)
	v.SetDefault("analyze.limit", 50)
	v.SetDefault("analyze.workers", 3)
	v.SetDefault("analyze.type", "quick")
	v.SetDefault("generate.limit", 50)
	v.SetDefault("generate.workers", 5)
	v.SetDefault("publish.limit", 20)
	v.SetDefault("publish.workers", 2)
	v.SetDefault("publish.tier", "all")
	v.SetDefault("orchestrate.threshold", 0.10)
	v.SetDefault("orchestrate.poll_interval", "100ms")
	v.SetDefault("orchestrate.status_interval", "30s")
	v.SetDefault("orchestrate.analyze_limit", 200)
	v.SetDefault("orchestrate.analyze_workers", 5)
	v.SetDefault("orchestrate.generate_limit", 200)
	v.SetDefault("orchestrate.generate_workers", 3)
	v.SetDefault("server.port", 8080)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.failure_rate_threshold", 0.10)
	v.SetDefault("monitoring.backlog_threshold", 500)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional unless named explicitly)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || file != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is the command name.
func (c *Config) Validate(mode string) error {
	var problems []string
	require := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	storeChecks := func() {
		require(c.Store.Driver == "postgres" || c.Store.Driver == "sqlite", "store.driver must be postgres or sqlite")
		require(c.Store.DatabaseURL != "", "store.database_url is required")
	}

	switch mode {
	case "migrate", "status", "companies", "subscribers", "reset", "serve":
		storeChecks()
		if mode == "serve" {
			require(c.Server.Port > 0 && c.Server.Port < 65536, "server.port must be > 0 and < 65536")
		}
	case "fetch":
		storeChecks()
		require(c.Blob.Root != "", "blob.root is required")
		require(strings.Contains(c.EDGAR.UserAgent, "@"), "edgar.user_agent must include a contact email")
		for _, f := range c.Fetch.FilingTypes() {
			require(f == model.Filing10K || f == model.Filing10Q, "fetch.forms accepts 10-K and 10-Q only")
		}
	case "analyze":
		storeChecks()
		require(c.Anthropic.Key != "", "anthropic.key is required")
		require(c.Anthropic.Model != "", "anthropic.model is required")
		require(c.Anthropic.Temperature >= 0 && c.Anthropic.Temperature <= 1, "anthropic.temperature must be between 0 and 1")
	case "generate":
		storeChecks()
	case "publish":
		storeChecks()
		require(c.Resend.Key != "", "resend.key is required")
		require(c.Resend.From != "", "resend.from is required")
		_, ok := model.ParseTier(c.Publish.Tier)
		require(ok, "publish.tier must be free, paid or all")
	case "orchestrate":
		storeChecks()
		require(c.Anthropic.Key != "", "anthropic.key is required")
		require(c.Orchestrate.Threshold >= 0 && c.Orchestrate.Threshold <= 1, "orchestrate.threshold must be between 0 and 1")
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	require(c.Retry.MaxAttempts >= 1, "retry.max_attempts must be >= 1")

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

// ParseLevel accepts zap level names plus WARNING, case-insensitively.
func ParseLevel(s string) (zapcore.Level, error) {
	if strings.EqualFold(s, "warning") {
		return zapcore.WarnLevel, nil
	}
	level, err := zapcore.ParseLevel(strings.ToLower(s))
	if err != nil {
		return level, eris.Wrap(err, "config: parse log level")
	}
	return level, nil
}
