package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Ingest    IngestConfig    `yaml:"ingest" mapstructure:"ingest"`
	Extract   ExtractConfig   `yaml:"extract" mapstructure:"extract"`
	Parse     ParseConfig     `yaml:"parse" mapstructure:"parse"`
	Tasks     TasksConfig     `yaml:"tasks" mapstructure:"tasks"`
	Scheduler SchedulerConfig `yaml:"scheduler" mapstructure:"scheduler"`
	Events    EventsConfig    `yaml:"events" mapstructure:"events"`
	Monitor   MonitorConfig   `yaml:"monitor" mapstructure:"monitor"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // postgres or sqlite
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// IngestConfig configures claim document intake.
type IngestConfig struct {
	UploadsDir    string    `yaml:"uploads_dir" mapstructure:"uploads_dir"`
	SettleDelayMS int       `yaml:"settle_delay_ms" mapstructure:"settle_delay_ms"`
	FTP           FTPConfig `yaml:"ftp" mapstructure:"ftp"`
	MaxConcurrent int       `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// FTPConfig configures the carrier EDI drop-folder poller.
type FTPConfig struct {
	Enabled          bool   `yaml:"enabled" mapstructure:"enabled"`
	Host             string `yaml:"host" mapstructure:"host"`
	User             string `yaml:"user" mapstructure:"user"`
	Password         string `yaml:"password" mapstructure:"password"`
	RemoteDir        string `yaml:"remote_dir" mapstructure:"remote_dir"`
	PollIntervalSecs int    `yaml:"poll_interval_secs" mapstructure:"poll_interval_secs"`
	TimeoutSecs      int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ExtractConfig configures document text extraction.
type ExtractConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"` // local or ocr
	OCRKey   string `yaml:"ocr_api_key" mapstructure:"ocr_api_key"`
	OCRModel string `yaml:"ocr_model" mapstructure:"ocr_model"`
}

// ParseConfig configures LLM structured-field extraction.
type ParseConfig struct {
	AnthropicKey string `yaml:"anthropic_api_key" mapstructure:"anthropic_api_key"`
	Model        string `yaml:"model" mapstructure:"model"`
	MaxChars     int    `yaml:"max_chars" mapstructure:"max_chars"`
}

// TasksConfig configures the task-tracking board integration.
type TasksConfig struct {
	NotionToken string `yaml:"notion_token" mapstructure:"notion_token"`
	BoardDB     string `yaml:"board_db" mapstructure:"board_db"`
}

// SchedulerConfig configures the workflow transition scheduler.
type SchedulerConfig struct {
	TickSecs            int `yaml:"tick_secs" mapstructure:"tick_secs"`
	TransitionDelaySecs int `yaml:"transition_delay_secs" mapstructure:"transition_delay_secs"`
	ErrorBackoffSecs    int `yaml:"error_backoff_secs" mapstructure:"error_backoff_secs"`
}

// Tick returns the scheduler tick interval.
func (c SchedulerConfig) Tick() time.Duration {
	if c.TickSecs <= 0 {
		return time.Second
	}
	return time.Duration(c.TickSecs) * time.Second
}

// TransitionDelay returns the dwell time between workflow transitions.
func (c SchedulerConfig) TransitionDelay() time.Duration {
	if c.TransitionDelaySecs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TransitionDelaySecs) * time.Second
}

// ErrorBackoff returns the sleep applied after a loop-level scheduler error.
func (c SchedulerConfig) ErrorBackoff() time.Duration {
	if c.ErrorBackoffSecs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.ErrorBackoffSecs) * time.Second
}

// EventsConfig configures the broadcast event bus.
type EventsConfig struct {
	SubscriberBuffer int `yaml:"subscriber_buffer" mapstructure:"subscriber_buffer"`
	HeartbeatSecs    int `yaml:"heartbeat_secs" mapstructure:"heartbeat_secs"`
}

// MonitorConfig configures the background health checker.
type MonitorConfig struct {
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	ErrorRateThreshold   float64 `yaml:"error_rate_threshold" mapstructure:"error_rate_threshold"`
	UnassignedBacklog    int     `yaml:"unassigned_backlog" mapstructure:"unassigned_backlog"`
	UtilizationThreshold float64 `yaml:"utilization_threshold" mapstructure:"utilization_threshold"`
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CLAIMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("ingest.uploads_dir", "uploads")
	v.SetDefault("ingest.settle_delay_ms", 500)
	v.SetDefault("ingest.max_concurrent", 4)
	v.SetDefault("ingest.ftp.poll_interval_secs", 60)
	v.SetDefault("ingest.ftp.timeout_secs", 30)
	v.SetDefault("ingest.ftp.remote_dir", "/claims/inbound")
	v.SetDefault("extract.provider", "local")
	v.SetDefault("extract.ocr_model", "pixtral-large-latest")
	v.SetDefault("parse.model", "claude-haiku-4-5-20251001")
	v.SetDefault("parse.max_chars", 3000)
	v.SetDefault("scheduler.tick_secs", 1)
	v.SetDefault("scheduler.transition_delay_secs", 10)
	v.SetDefault("scheduler.error_backoff_secs", 5)
	v.SetDefault("events.subscriber_buffer", 64)
	v.SetDefault("events.heartbeat_secs", 30)
	v.SetDefault("monitor.check_interval_secs", 300)
	v.SetDefault("monitor.lookback_window_hours", 24)
	v.SetDefault("monitor.error_rate_threshold", 0.2)
	v.SetDefault("monitor.unassigned_backlog", 10)
	v.SetDefault("monitor.utilization_threshold", 0.9)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
