// Package config loads the application configuration from a YAML file,
// an optional .env file, CONVERTANYTHING_* environment variables and
// command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/codebuildervaibhav/convertanything/internal/backend"
	"github.com/codebuildervaibhav/convertanything/internal/cleanup"
	"github.com/codebuildervaibhav/convertanything/internal/logging"
	"github.com/codebuildervaibhav/convertanything/internal/storage"
	"github.com/codebuildervaibhav/convertanything/internal/validation"
)

// EnvPrefix is prepended to every environment override,
// e.g. CONVERTANYTHING_BACKEND_URL
const EnvPrefix = "CONVERTANYTHING"

// Config represents the application configuration
type Config struct {
	Server  ServerConfig        `mapstructure:"server" yaml:"server"`
	Backend backend.Config      `mapstructure:"backend" yaml:"backend"`
	Workers WorkersConfig       `mapstructure:"workers" yaml:"workers"`
	Storage StorageConfig       `mapstructure:"storage" yaml:"storage"`
	Drive   storage.DriveConfig `mapstructure:"google_drive" yaml:"google_drive"`
	S3      storage.S3Config    `mapstructure:"s3" yaml:"s3"`
	Cleanup cleanup.Config      `mapstructure:"cleanup" yaml:"cleanup"`
	Logging logging.Config      `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig controls the HTTP listener
type ServerConfig struct {
	Host        string `mapstructure:"host" yaml:"host"`
	Port        int    `mapstructure:"port" yaml:"port" validate:"gte=1,lte=65535"`
	BodyLimitMB int    `mapstructure:"body_limit_mb" yaml:"body_limit_mb" validate:"gte=1"`
	CORSOrigins string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// Addr returns host:port
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// WorkersConfig sizes the submission pool
type WorkersConfig struct {
	Count int `mapstructure:"count" yaml:"count" validate:"gte=1"`
}

// StorageConfig locates uploads, saved exports and the history database
type StorageConfig struct {
	TempDir   string `mapstructure:"temp_dir" yaml:"temp_dir" validate:"required"`
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`
	Dated     bool   `mapstructure:"dated" yaml:"dated"`
	Database  string `mapstructure:"database" yaml:"database"`
}

// Options controls where Load looks for its inputs
type Options struct {
	ConfigFile string
	EnvFile    string
	Flags      *pflag.FlagSet
	// FlagKeys maps flag names to config keys, e.g. "backend-url" to
	// "backend.url". Only flags the user set override the config.
	FlagKeys map[string]string
}

var searchPaths = []string{
	"config/config.yaml",
	"config/config.yml",
	"config.yaml",
}

// setDefaults registers every key so environment overrides are seen
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.body_limit_mb", 110)
	v.SetDefault("server.cors_origins", "*")

	v.SetDefault("backend.url", "http://localhost:5000/api")
	v.SetDefault("backend.timeout", 5*time.Minute)

	v.SetDefault("workers.count", 2)

	v.SetDefault("storage.temp_dir", "temp")
	v.SetDefault("storage.output_dir", "outputs")
	v.SetDefault("storage.dated", true)
	v.SetDefault("storage.database", "data/exports.db")

	v.SetDefault("google_drive.enabled", false)
	v.SetDefault("google_drive.credentials_file", "credentials.json")
	v.SetDefault("google_drive.token_file", "token.json")
	v.SetDefault("google_drive.folder_name", "Transcripts")

	v.SetDefault("s3.enabled", false)
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.prefix", "transcripts")
	v.SetDefault("s3.region", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("s3.force_path_style", false)

	v.SetDefault("cleanup.interval", 30*time.Minute)
	v.SetDefault("cleanup.max_file_age", 24*time.Hour)
	v.SetDefault("cleanup.max_session_age", 2*time.Hour)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.no_color", false)
}

// Load builds the configuration and validates it
func Load(opts Options) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// .env values become ordinary environment variables; real env wins
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	} else if opts.EnvFile != "" {
		return nil, fmt.Errorf("env file %s: %w", opts.EnvFile, err)
	}

	configFile := opts.ConfigFile
	if configFile == "" {
		configFile = findConfigFile()
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		for name, key := range opts.FlagKeys {
			f := opts.Flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validation.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// findConfigFile returns the first config file found in the standard
// locations, or "" when there is none
func findConfigFile() string {
	for _, p := range searchPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Dump writes the effective configuration as YAML. Secrets are omitted.
func Dump(w io.Writer, cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}
