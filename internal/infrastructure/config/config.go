package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cravings/printagent/internal/domain/printing"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. PRINTAGENT_PRINT_STRATEGY
const EnvPrefix = "PRINTAGENT"

// Config holds all application configuration
type Config struct {
	App       AppConfig
	HTTP      HTTPConfig
	Log       LogConfig
	Print     PrintConfig
	Sandbox   SandboxConfig
	Bridge    BridgeConfig
	Native    NativeConfig
	Redis     RedisConfig
	History   HistoryConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Host              string
	Port              string
	ReadTimeout       time.Duration
	IdleTimeout       time.Duration
	MaxBodySize       int64
	RateLimitEnabled  bool
	RateLimitRequests int           // navigations allowed per window
	RateLimitWindow   time.Duration // refill window
	RateLimitBurst    int
	CORSAllowOrigins  []string
	CORSAllowMethods  []string
	CORSAllowHeaders  []string
	TrustedProxies    []string
	SSEMaxClients     int
	SSEHeartbeat      time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// PrintConfig holds the print job pipeline settings
type PrintConfig struct {
	Strategy          string        // native, escpos, image
	Timeout           time.Duration // hard ceiling per job
	CleanupDelay      time.Duration // grace period before a finished job's sandbox is closed
	NotifyOnTimeout   bool          // emit a failure status when a job times out
	DataDir           string        // print settings file and error log live here
	ErrorLog          string        // durable error log path (default: <data_dir>/cravings-log.txt)
	ArtifactDir       string        // staged PDFs, ESC/POS buffers and images
	ArtifactRetention time.Duration
	CleanupInterval   time.Duration
	WatchSettings     bool // reload the settings file when edited externally
}

// SandboxConfig holds the rendering sandbox settings
type SandboxConfig struct {
	ReadyMode         string // handshake, console
	Selector          string
	ChromePath        string
	RemoteURL         string
	WidthHint         int
	Headless          bool
	NoSandbox         bool
	NavigationTimeout time.Duration
}

// BridgeConfig holds the spooling bridge settings
type BridgeConfig struct {
	Binary  string
	Timeout time.Duration
}

// NativeConfig holds the host spooler settings
type NativeConfig struct {
	SpoolCommand string
	ListCommand  string
	Timeout      time.Duration
}

// RedisConfig holds Redis connection settings for the status relay
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	Channel  string
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// HistoryConfig holds the job history store settings
type HistoryConfig struct {
	Enabled   bool
	DSN       string        // SQLite DSN (default: <data_dir>/history.db)
	LogLevel  string        // silent, error, warn, info
	Retention time.Duration // records older than this are pruned
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	DBTraceEnabled    bool    // Trace history queries (otelgorm)
}

// Load loads configuration from a TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with PRINTAGENT_ prefix (e.g., PRINTAGENT_PRINT_STRATEGY)
// 2. .env in the working directory (never overrides real environment)
// 3. config.toml in ., ./config or $XDG_CONFIG_HOME/printagent
// 4. Built-in defaults
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, "printagent"))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Booleans that default to true cannot be told apart from "unset" later.
	v.SetDefault("sandbox.headless", true)
	v.SetDefault("print.watch_settings", true)
	v.SetDefault("history.enabled", true)
	v.SetDefault("http.rate_limit_enabled", true)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		HTTP: HTTPConfig{
			Host:              v.GetString("http.host"),
			Port:              v.GetString("http.port"),
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
			RateLimitBurst:    v.GetInt("http.rate_limit_burst"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:  v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:  v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
			SSEMaxClients:     v.GetInt("http.sse_max_clients"),
			SSEHeartbeat:      v.GetDuration("http.sse_heartbeat"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Print: PrintConfig{
			Strategy:          v.GetString("print.strategy"),
			Timeout:           v.GetDuration("print.timeout"),
			CleanupDelay:      v.GetDuration("print.cleanup_delay"),
			NotifyOnTimeout:   v.GetBool("print.notify_on_timeout"),
			DataDir:           v.GetString("print.data_dir"),
			ErrorLog:          v.GetString("print.error_log"),
			ArtifactDir:       v.GetString("print.artifact_dir"),
			ArtifactRetention: v.GetDuration("print.artifact_retention"),
			CleanupInterval:   v.GetDuration("print.cleanup_interval"),
			WatchSettings:     v.GetBool("print.watch_settings"),
		},
		Sandbox: SandboxConfig{
			ReadyMode:         v.GetString("sandbox.ready_mode"),
			Selector:          v.GetString("sandbox.selector"),
			ChromePath:        v.GetString("sandbox.chrome_path"),
			RemoteURL:         v.GetString("sandbox.remote_url"),
			WidthHint:         v.GetInt("sandbox.width_hint"),
			Headless:          v.GetBool("sandbox.headless"),
			NoSandbox:         v.GetBool("sandbox.no_sandbox"),
			NavigationTimeout: v.GetDuration("sandbox.navigation_timeout"),
		},
		Bridge: BridgeConfig{
			Binary:  v.GetString("bridge.binary"),
			Timeout: v.GetDuration("bridge.timeout"),
		},
		Native: NativeConfig{
			SpoolCommand: v.GetString("native.spool_command"),
			ListCommand:  v.GetString("native.list_command"),
			Timeout:      v.GetDuration("native.timeout"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			Channel:  v.GetString("redis.channel"),
		},
		History: HistoryConfig{
			Enabled:   v.GetBool("history.enabled"),
			DSN:       v.GetString("history.dsn"),
			LogLevel:  v.GetString("history.log_level"),
			Retention: v.GetDuration("history.retention"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "printagent"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "127.0.0.1"
	}
	if cfg.HTTP.Port == "" {
		cfg.HTTP.Port = "8631"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 30
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	if cfg.HTTP.RateLimitBurst == 0 {
		cfg.HTTP.RateLimitBurst = 10
	}
	// An empty origin list means no cross-origin requests are allowed.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "X-Request-ID"}
	}
	if cfg.HTTP.SSEMaxClients == 0 {
		cfg.HTTP.SSEMaxClients = 32
	}
	if cfg.HTTP.SSEHeartbeat == 0 {
		cfg.HTTP.SSEHeartbeat = 30 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Print.Strategy == "" {
		cfg.Print.Strategy = "native"
	}
	if cfg.Print.Timeout == 0 {
		cfg.Print.Timeout = 20 * time.Second
	}
	if cfg.Print.CleanupDelay == 0 {
		cfg.Print.CleanupDelay = 1500 * time.Millisecond
	}
	if cfg.Print.DataDir == "" {
		cfg.Print.DataDir = defaultDataDir()
	}
	if cfg.Print.ArtifactRetention == 0 {
		cfg.Print.ArtifactRetention = 24 * time.Hour
	}
	if cfg.Print.CleanupInterval == 0 {
		cfg.Print.CleanupInterval = time.Hour
	}
	if cfg.Sandbox.ReadyMode == "" {
		cfg.Sandbox.ReadyMode = "handshake"
	}
	if cfg.Sandbox.Selector == "" {
		cfg.Sandbox.Selector = "#printable-content"
	}
	if cfg.Sandbox.NavigationTimeout == 0 {
		cfg.Sandbox.NavigationTimeout = 15 * time.Second
	}
	if cfg.Bridge.Binary == "" {
		cfg.Bridge.Binary = "rawprint"
	}
	if cfg.Bridge.Timeout == 0 {
		cfg.Bridge.Timeout = 15 * time.Second
	}
	if cfg.Native.SpoolCommand == "" {
		cfg.Native.SpoolCommand = "lp"
	}
	if cfg.Native.ListCommand == "" {
		cfg.Native.ListCommand = "lpstat"
	}
	if cfg.Native.Timeout == 0 {
		cfg.Native.Timeout = 15 * time.Second
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.Channel == "" {
		cfg.Redis.Channel = "printagent:status"
	}
	if cfg.History.DSN == "" {
		cfg.History.DSN = filepath.Join(cfg.Print.DataDir, "history.db")
	}
	if cfg.History.LogLevel == "" {
		cfg.History.LogLevel = "warn"
	}
	if cfg.History.Retention == 0 {
		cfg.History.Retention = 30 * 24 * time.Hour
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "printagent"
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return filepath.Join(dir, "printagent")
	}
	return "data"
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if !printing.Strategy(c.Print.Strategy).IsValid() {
		names := make([]string, 0, len(printing.AllStrategies()))
		for _, st := range printing.AllStrategies() {
			names = append(names, st.String())
		}
		return fmt.Errorf("print.strategy must be one of %s, got %q", strings.Join(names, ", "), c.Print.Strategy)
	}
	switch c.Sandbox.ReadyMode {
	case "handshake", "console":
	default:
		return fmt.Errorf("sandbox.ready_mode must be handshake or console, got %q", c.Sandbox.ReadyMode)
	}
	// The escpos strategy decodes the document the page logs, which only
	// the console ready mode captures.
	if c.Print.Strategy == "escpos" && c.Sandbox.ReadyMode != "console" {
		return fmt.Errorf("print.strategy=escpos requires sandbox.ready_mode=console")
	}
	if c.Print.Timeout < 0 || c.Print.CleanupDelay < 0 {
		return fmt.Errorf("print.timeout and print.cleanup_delay cannot be negative")
	}
	if c.Sandbox.WidthHint < 0 {
		return fmt.Errorf("sandbox.width_hint cannot be negative")
	}
	if c.HTTP.RateLimitEnabled && c.HTTP.RateLimitRequests < 0 {
		return fmt.Errorf("http.rate_limit_requests cannot be negative")
	}

	if c.App.Env == "production" {
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	return nil
}

// Address returns the HTTP listen address
func (h HTTPConfig) Address() string {
	return h.Host + ":" + h.Port
}
