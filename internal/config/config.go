package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/climdiff/climdiff/internal/grid"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultEndpoint          = "https://cds.climate.copernicus.eu/api/v2"
	DefaultDataset           = "projections-cmip5-monthly-single-levels"
	DefaultEnsembleMember    = "r1i1p1"
	DefaultFormat            = "zip"
	DefaultPollInterval      = 5 * time.Second
	DefaultTimeout           = 30 * time.Minute
	DefaultHTTPPort          = 8080
	DefaultResultsTTL        = 2 * time.Hour
	DefaultBroadcastInterval = 5 * time.Second
	DefaultHistoryRetention  = 30 * 24 * time.Hour
	DefaultRenderWidth       = 8.0
	DefaultRenderHeight      = 6.0
	DefaultRenderDPI         = 96
	DefaultServiceName       = "climdiff"
)

// Default climatology windows.
var (
	DefaultHistoricalWindow = grid.MonthRange{
		From: grid.Month{Year: 1960, Month: time.January},
		To:   grid.Month{Year: 1979, Month: time.December},
	}
	DefaultProjectionWindow = grid.MonthRange{
		From: grid.Month{Year: 2030, Month: time.January},
		To:   grid.Month{Year: 2049, Month: time.December},
	}
)

// Config is the top-level configuration for the CLI and the server.
// Fields map 1:1 to config.example.yaml.
type Config struct {
	// LogLevel is one of: debug | info | warn | error.
	LogLevel string `yaml:"log_level" env:"CLIMDIFF_LOG_LEVEL"`

	Catalogue CatalogueConfig `yaml:"catalogue"`
	Windows   WindowsConfig   `yaml:"windows"`
	Render    RenderConfig    `yaml:"render"`
	Output    OutputConfig    `yaml:"output"`
	Server    ServerConfig    `yaml:"server"`
	History   HistoryConfig   `yaml:"history"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// CatalogueConfig describes where datasets are retrieved from.
type CatalogueConfig struct {
	// Endpoint is the catalogue API base URL. Ignored when Directory is set.
	Endpoint string `yaml:"endpoint" env:"CLIMDIFF_CATALOGUE_ENDPOINT"`

	// Directory, when set, serves datasets from local archives instead of
	// the remote API (offline mode).
	Directory string `yaml:"directory" env:"CLIMDIFF_CATALOGUE_DIR"`

	// Dataset is the catalogue dataset name.
	Dataset string `yaml:"dataset"`

	// EnsembleMember is the model run requested for every model.
	EnsembleMember string `yaml:"ensemble_member"`

	// Format is the archive format requested from the catalogue.
	Format string `yaml:"format"`

	// PollInterval controls how often a queued request is polled.
	PollInterval time.Duration `yaml:"poll_interval"`

	// Timeout bounds one retrieval, queueing and download included.
	Timeout time.Duration `yaml:"timeout"`

	// CacheDir stores downloaded archives keyed by request. Empty disables caching.
	CacheDir string `yaml:"cache_dir" env:"CLIMDIFF_CACHE_DIR"`

	// ParallelFetch retrieves the historical and projection datasets concurrently.
	ParallelFetch bool `yaml:"parallel_fetch"`

	// Auth configures how climdiff authenticates to the catalogue.
	Auth AuthConfig `yaml:"auth"`

	// TLS holds optional TLS dial options.
	TLS TLSConfig `yaml:"tls"`
}

// AuthConfig specifies the authentication mode for the catalogue or server.
type AuthConfig struct {
	// Mode is one of: mtls | apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// mTLS fields, used when Mode == "mtls".
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// API key fields, used when Mode == "apikey".
	// Header is the HTTP header name to send the key in.
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`

	// Bearer token fields, used when Mode == "bearer".
	TokenEnv string `yaml:"token_env"`

	// Basic auth fields, used when Mode == "basic". For the CDS API the
	// username is the numeric UID and the password is the API key.
	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string {
	if a.TokenEnv == "" {
		return ""
	}
	return os.Getenv(a.TokenEnv)
}

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string {
	if a.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(a.PasswordEnv)
}

// EffectiveHeader returns Header, defaulting to X-API-Key.
func (a AuthConfig) EffectiveHeader() string {
	if a.Header == "" {
		return "X-API-Key"
	}
	return a.Header
}

// TLSConfig holds TLS dial options.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	// Only use this for internal CAs in development environments.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// WindowsConfig holds the calendar spans averaged for each experiment.
type WindowsConfig struct {
	Historical grid.MonthRange `yaml:"historical"`
	Projection grid.MonthRange `yaml:"projection"`
}

// RenderConfig sizes the output figure.
type RenderConfig struct {
	// Width and Height are in inches.
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
	DPI    int     `yaml:"dpi"`
}

// OutputConfig controls where the CLI writes its results.
type OutputConfig struct {
	Dir string `yaml:"dir" env:"CLIMDIFF_OUTPUT_DIR"`
}

// ServerConfig holds HTTP service settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API and WebSocket hub listen on.
	HTTPPort int `yaml:"http_port" env:"CLIMDIFF_HTTP_PORT"`

	// ResultsTTL is how long completed runs stay in memory.
	ResultsTTL time.Duration `yaml:"results_ttl"`

	// BroadcastInterval controls how often the run list is pushed to
	// WebSocket clients.
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`

	// Auth configures REST API authentication. Supported modes: apikey | none.
	Auth AuthConfig `yaml:"auth"`
}

// HistoryConfig configures the run history backend.
type HistoryConfig struct {
	// Backend selects the storage implementation: sqlite, or empty to disable.
	Backend string `yaml:"backend"`

	// Path is the filesystem path for the SQLite database file.
	Path string `yaml:"path" env:"CLIMDIFF_HISTORY_PATH"`

	// Retention is how long history rows are kept before deletion.
	Retention time.Duration `yaml:"retention"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	// OTLPEndpoint is the OTLP/HTTP collector URL. Empty disables tracing.
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"CLIMDIFF_OTLP_ENDPOINT"`
	ServiceName  string `yaml:"service_name"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data)
}

// Parse builds a Config from YAML bytes, then applies the environment
// overlay and validation.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Defaults returns a Config pre-populated with default values.
func Defaults() *Config {
	return &Config{
		LogLevel: "info",
		Catalogue: CatalogueConfig{
			Endpoint:       DefaultEndpoint,
			Dataset:        DefaultDataset,
			EnsembleMember: DefaultEnsembleMember,
			Format:         DefaultFormat,
			PollInterval:   DefaultPollInterval,
			Timeout:        DefaultTimeout,
		},
		Windows: WindowsConfig{
			Historical: DefaultHistoricalWindow,
			Projection: DefaultProjectionWindow,
		},
		Render: RenderConfig{
			Width:  DefaultRenderWidth,
			Height: DefaultRenderHeight,
			DPI:    DefaultRenderDPI,
		},
		Output: OutputConfig{Dir: "."},
		Server: ServerConfig{
			HTTPPort:          DefaultHTTPPort,
			ResultsTTL:        DefaultResultsTTL,
			BroadcastInterval: DefaultBroadcastInterval,
		},
		History: HistoryConfig{
			Retention: DefaultHistoryRetention,
		},
		Telemetry: TelemetryConfig{
			ServiceName: DefaultServiceName,
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level: unknown level %q", cfg.LogLevel)
	}

	c := cfg.Catalogue
	if c.Directory == "" && c.Endpoint == "" {
		return fmt.Errorf("catalogue.endpoint or catalogue.directory is required")
	}
	if c.Dataset == "" {
		return fmt.Errorf("catalogue.dataset is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("catalogue.poll_interval must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("catalogue.timeout must be positive")
	}
	switch c.Auth.Mode {
	case "mtls", "apikey", "bearer", "basic", "none", "":
	default:
		return fmt.Errorf("catalogue.auth: unknown mode %q", c.Auth.Mode)
	}
	if c.Auth.Mode == "apikey" && c.Auth.Header == "" {
		return fmt.Errorf("catalogue.auth: header is required for apikey mode")
	}

	for name, r := range map[string]grid.MonthRange{
		"historical": cfg.Windows.Historical,
		"projection": cfg.Windows.Projection,
	} {
		if r.To.Before(r.From) {
			return fmt.Errorf("windows.%s: %v ends before it starts", name, r)
		}
	}

	if cfg.Render.Width <= 0 || cfg.Render.Height <= 0 || cfg.Render.DPI <= 0 {
		return fmt.Errorf("render: width, height and dpi must be positive")
	}

	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d out of range", cfg.Server.HTTPPort)
	}
	if cfg.Server.ResultsTTL <= 0 {
		return fmt.Errorf("server.results_ttl must be positive")
	}
	if cfg.Server.BroadcastInterval <= 0 {
		return fmt.Errorf("server.broadcast_interval must be positive")
	}
	switch cfg.Server.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth: unknown mode %q", cfg.Server.Auth.Mode)
	}

	switch cfg.History.Backend {
	case "":
	case "sqlite":
		if cfg.History.Path == "" {
			return fmt.Errorf("history.path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("history.backend: unknown backend %q", cfg.History.Backend)
	}
	return nil
}
