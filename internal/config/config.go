package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable override, e.g.
// DSTYLEHUB_DARKTABLE_QUALITY=90.
const EnvPrefix = "DSTYLEHUB"

// Config holds the main configuration for the application.
type Config struct {
	Folders   Folders   `mapstructure:"folders"`
	Darktable Darktable `mapstructure:"darktable"`
	Input     Input     `mapstructure:"input"`
	Pipeline  Pipeline  `mapstructure:"pipeline"`
	Gallery   Gallery   `mapstructure:"gallery"`
	Database  Database  `mapstructure:"database"`
	Kafka     Kafka     `mapstructure:"kafka"`
	Storage   Storage   `mapstructure:"storage"`
	Retry     Retry     `mapstructure:"retry"`
}

// Folders holds the three folders given on the command line.
type Folders struct {
	Styles     string `mapstructure:"styles"`
	BaseImages string `mapstructure:"base_images"`
	Output     string `mapstructure:"output"`
}

// Darktable holds development tool settings.
type Darktable struct {
	Binary  string `mapstructure:"binary"`  // darktable-cli executable
	Width   int    `mapstructure:"width"`   // target width in pixels
	Quality int    `mapstructure:"quality"` // JPEG quality, 0-100
}

// Input holds the accepted file extensions, matched case-sensitively.
type Input struct {
	ImageExtensions []string `mapstructure:"image_extensions"`
	StyleExtensions []string `mapstructure:"style_extensions"`
}

// Pipeline holds batch behaviour settings.
type Pipeline struct {
	OnFailure string `mapstructure:"on_failure"` // "abort" or "continue"
}

// Gallery holds rendering settings.
type Gallery struct {
	Title            string `mapstructure:"title"`
	ThumbnailWidth   int    `mapstructure:"thumbnail_width"` // 0 disables thumbnails
	ThumbnailQuality int    `mapstructure:"thumbnail_quality"`
	PaletteSize      int    `mapstructure:"palette_size"` // 0 disables palettes
	PaletteMethod    string `mapstructure:"palette_method"`
	Captions         bool   `mapstructure:"captions"`
}

// Database holds database master and slave configuration for run history.
type Database struct {
	Enabled bool           `mapstructure:"enabled"`
	Master  DatabaseNode   `mapstructure:"master"`
	Slaves  []DatabaseNode `mapstructure:"slaves"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DatabaseNode holds connection parameters for a single database node.
type DatabaseNode struct {
	Host    string `mapstructure:"host"`
	Port    string `mapstructure:"port"`
	User    string `mapstructure:"user"`
	Pass    string `mapstructure:"pass"`
	Name    string `mapstructure:"name"`
	SSLMode string `mapstructure:"ssl_mode"`
}

// Kafka holds configuration for development events.
type Kafka struct {
	Enabled bool     `mapstructure:"enabled"`
	Topic   string   `mapstructure:"topic"`   // Kafka topic name
	Brokers []string `mapstructure:"brokers"` // List of Kafka broker addresses
}

// Storage holds configuration for publishing galleries to S3-compatible storage.
type Storage struct {
	Enabled    bool   `mapstructure:"enabled"`
	Endpoint   string `mapstructure:"endpoint"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	BucketName string `mapstructure:"bucket_name"`
	UseSSL     bool   `mapstructure:"use_ssl"`
}

// Retry defines retry policy configuration for the sinks.
type Retry struct {
	Attempts int           `mapstructure:"attempts"` // Number of retry attempts
	Delay    time.Duration `mapstructure:"delay"`    // Initial delay between retries
	Backoff  float64       `mapstructure:"backoff"`  // Backoff multiplier for delays
}

// DSN returns the PostgreSQL DSN string for connecting to this database node.
func (n DatabaseNode) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		n.User, n.Pass, n.Host, n.Port, n.Name, n.SSLMode,
	)
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"style-folder":       "folders.styles",
	"base-images-folder": "folders.base_images",
	"output-folder":      "folders.output",
}

// envBindings binds secrets to the conventional variable names used in
// deployment environments, in addition to the DSTYLEHUB_ prefixed ones.
var envBindings = map[string][]string{
	"database.master.host": {"DSTYLEHUB_DATABASE_MASTER_HOST", "DB_HOST"},
	"database.master.port": {"DSTYLEHUB_DATABASE_MASTER_PORT", "DB_PORT"},
	"database.master.user": {"DSTYLEHUB_DATABASE_MASTER_USER", "DB_USER"},
	"database.master.pass": {"DSTYLEHUB_DATABASE_MASTER_PASS", "DB_PASSWORD"},
	"database.master.name": {"DSTYLEHUB_DATABASE_MASTER_NAME", "DB_NAME"},
	"storage.access_key":   {"DSTYLEHUB_STORAGE_ACCESS_KEY", "S3_ACCESS_KEY"},
	"storage.secret_key":   {"DSTYLEHUB_STORAGE_SECRET_KEY", "S3_SECRET_KEY"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("folders.styles", "")
	v.SetDefault("folders.base_images", "")
	v.SetDefault("folders.output", "")

	v.SetDefault("darktable.binary", "darktable-cli")
	v.SetDefault("darktable.width", 1920)
	v.SetDefault("darktable.quality", 70)

	v.SetDefault("input.image_extensions", []string{".NEF"})
	v.SetDefault("input.style_extensions", []string{".dtstyle"})

	v.SetDefault("pipeline.on_failure", "abort")

	v.SetDefault("gallery.title", "darktable style preview")
	v.SetDefault("gallery.thumbnail_width", 480)
	v.SetDefault("gallery.thumbnail_quality", 80)
	v.SetDefault("gallery.palette_size", 5)
	v.SetDefault("gallery.palette_method", "dominantcolor")
	v.SetDefault("gallery.captions", true)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.master.port", "5432")
	v.SetDefault("database.master.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.topic", "developments")
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.bucket_name", "dstylehub")

	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.delay", 500*time.Millisecond)
	v.SetDefault("retry.backoff", 2.0)
}

// Load builds the configuration from defaults, the optional YAML file at
// path, DSTYLEHUB_* environment variables and the command-line flags, in
// increasing priority. A missing file is only an error when required is set.
func Load(path string, required bool, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, envs := range envBindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	if path != "" {
		if err := readFile(v, path, required); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readFile(v *viper.Viper, path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}

	if err := ValidateFile(data); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(string(data))); err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// Validate checks value ranges that environment overrides could violate
// after the file has passed schema validation.
func (c *Config) Validate() error {
	var errs []error

	if c.Darktable.Binary == "" {
		errs = append(errs, errors.New("darktable.binary must not be empty"))
	}
	if c.Darktable.Width <= 0 {
		errs = append(errs, fmt.Errorf("darktable.width must be positive, got %d", c.Darktable.Width))
	}
	if c.Darktable.Quality < 0 || c.Darktable.Quality > 100 {
		errs = append(errs, fmt.Errorf("darktable.quality must be within 0-100, got %d", c.Darktable.Quality))
	}
	if len(c.Input.ImageExtensions) == 0 {
		errs = append(errs, errors.New("input.image_extensions must not be empty"))
	}
	if len(c.Input.StyleExtensions) == 0 {
		errs = append(errs, errors.New("input.style_extensions must not be empty"))
	}
	switch c.Pipeline.OnFailure {
	case "abort", "continue":
	default:
		errs = append(errs, fmt.Errorf("pipeline.on_failure must be abort or continue, got %q", c.Pipeline.OnFailure))
	}
	switch c.Gallery.PaletteMethod {
	case "dominantcolor", "kmeans":
	default:
		errs = append(errs, fmt.Errorf("gallery.palette_method must be dominantcolor or kmeans, got %q", c.Gallery.PaletteMethod))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers must not be empty when kafka is enabled"))
	}
	if c.Storage.Enabled && (c.Storage.Endpoint == "" || c.Storage.BucketName == "") {
		errs = append(errs, errors.New("storage.endpoint and storage.bucket_name are required when storage is enabled"))
	}
	if c.Retry.Attempts < 1 {
		errs = append(errs, fmt.Errorf("retry.attempts must be at least 1, got %d", c.Retry.Attempts))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
