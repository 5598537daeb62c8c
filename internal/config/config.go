package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server" envconfig:"SERVER"`
	Security   SecurityConfig   `yaml:"security" envconfig:"SECURITY"`
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	Processing ProcessingConfig `yaml:"processing" envconfig:"PROCESSING"`
	Output     OutputConfig     `yaml:"output" envconfig:"OUTPUT"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" validate:"gte=0"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" validate:"gt=0"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" envconfig:"MAX_BODY_BYTES" validate:"gt=0"`
}

// SecurityConfig contains request limiting configuration
type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" validate:"gt=0"`
	Burst   int     `yaml:"burst" envconfig:"BURST" validate:"min=1"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format   string `yaml:"format" envconfig:"FORMAT"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// ProcessingConfig contains the conversion defaults; CLI flags override them
type ProcessingConfig struct {
	Mode        string `yaml:"mode" envconfig:"MODE" validate:"oneof=protein peptide flat"`
	Average     bool   `yaml:"average" envconfig:"AVERAGE"`
	Division    string `yaml:"division" envconfig:"DIVISION" validate:"oneof=truncate float"`
	SpecCount   string `yaml:"spec_count" envconfig:"SPEC_COUNT" validate:"oneof=merged protein"`
	Counts      string `yaml:"counts" envconfig:"COUNTS" validate:"oneof=original filtered"`
	KeepEmpty   bool   `yaml:"keep_empty" envconfig:"KEEP_EMPTY"`
	DecoyPrefix string `yaml:"decoy_prefix" envconfig:"DECOY_PREFIX"`
	FilterFile  string `yaml:"filter_file" envconfig:"FILTER_FILE"`
	Workers     int    `yaml:"workers" envconfig:"WORKERS" validate:"min=1,max=256"`
}

// OutputConfig controls where and how tables are written
type OutputConfig struct {
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=csv xlsx"`
	Dir    string `yaml:"dir" envconfig:"DIR"`
	BOM    bool   `yaml:"bom" envconfig:"BOM"`
}

// TelemetryConfig controls OpenTelemetry metrics and tracing
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled" envconfig:"ENABLED"`
	ServiceName string `yaml:"service_name" envconfig:"SERVICE_NAME" validate:"required"`
	TraceStdout bool   `yaml:"trace_stdout" envconfig:"TRACE_STDOUT"`
}

var configValidator = validator.New()

// Load builds the configuration from defaults, the config file (if any) and
// CENSUS_* environment variables, in increasing order of precedence.
func Load() (*Config, error) {
	return LoadFrom(getConfigFilePath())
}

// LoadFrom is Load with an explicit config file path. An empty path skips
// the file.
func LoadFrom(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file %s: %w", configFile, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays YAML file values onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks field ranges and normalizes logging settings
func (c *Config) Validate() error {
	// Logs are always structured JSON
	c.Logging.Format = "json"
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = DefaultLogFile
	}

	if err := configValidator.Struct(c); err != nil {
		return err
	}
	return nil
}

// getConfigFilePath returns the path to the config file, or "" if none exists
func getConfigFilePath() string {
	if path := os.Getenv(ConfigFileEnv); path != "" {
		return path
	}

	locations := []string{
		"census2csv.yaml",
		"configs/census2csv.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    2 * time.Minute,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  90 * time.Second,
			MaxBodyBytes:    256 << 20,
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     DefaultRateLimit,
				Burst:   DefaultBurstSize,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: DefaultLogFile,
		},
		Processing: ProcessingConfig{
			Mode:        "protein",
			Division:    "truncate",
			SpecCount:   "merged",
			Counts:      "original",
			DecoyPrefix: DefaultDecoyPrefix,
			Workers:     DefaultWorkers,
		},
		Output: OutputConfig{
			Format: "csv",
		},
		Telemetry: TelemetryConfig{
			ServiceName: AppName,
		},
	}
}
