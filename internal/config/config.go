package config

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/viper"

	"github.com/atikulmunna/logtally/internal/aggregator"
)

// EnvPrefix prefixes every environment override (LOGTALLY_REPORT_TOP_N).
const EnvPrefix = "LOGTALLY"

// Config represents the application configuration
type Config struct {
	Input    InputConfig    `mapstructure:"input"`
	Report   ReportConfig   `mapstructure:"report"`
	Output   OutputConfig   `mapstructure:"output"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	AMQP     AMQPConfig     `mapstructure:"amqp"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
}

// InputConfig describes how input files are read and parsed
type InputConfig struct {
	Format          string `mapstructure:"format"`
	Delimiter       string `mapstructure:"delimiter"`
	SkipHeaderLines int    `mapstructure:"skip_header_lines"`
	Strict          bool   `mapstructure:"strict"`
}

// ReportConfig parameterizes the aggregate queries
type ReportConfig struct {
	TopN                int    `mapstructure:"top_n"`
	FailureStatuses     []int  `mapstructure:"failure_statuses"`
	FailureThreshold    int    `mapstructure:"failure_threshold"`
	TimeBucketPrecision string `mapstructure:"time_bucket_precision"`
}

// OutputConfig selects where reports and derived data go
type OutputConfig struct {
	Path         string `mapstructure:"path"`
	Format       string `mapstructure:"format"`
	Color        bool   `mapstructure:"color"`
	ExportDir    string `mapstructure:"export_dir"`
	PartitionDir string `mapstructure:"partition_dir"`
}

// DatabaseConfig represents the table store; an empty DSN disables it
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// RedisConfig represents Redis configuration; an empty Addr disables publishing
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// AMQPConfig represents the block-message publisher; an empty URL disables it
type AMQPConfig struct {
	URL           string `mapstructure:"url"`
	Exchange      string `mapstructure:"exchange"`
	RoutingKey    string `mapstructure:"routing_key"`
	BlockDuration string `mapstructure:"block_duration"`
}

// ServerConfig represents the serve command's HTTP server
type ServerConfig struct {
	Port  int    `mapstructure:"port"`
	Mode  string `mapstructure:"mode"`
	Watch bool   `mapstructure:"watch"`
}

// LogConfig represents logger configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// SetDefaults sets default configuration values
func SetDefaults(v *viper.Viper) {
	v.SetDefault("input.format", "csv")
	v.SetDefault("input.delimiter", ",")
	v.SetDefault("input.skip_header_lines", 1)
	v.SetDefault("input.strict", false)

	d := aggregator.DefaultOptions()
	v.SetDefault("report.top_n", d.TopN)
	v.SetDefault("report.failure_statuses", d.FailureStatuses)
	v.SetDefault("report.failure_threshold", d.FailureThreshold)
	v.SetDefault("report.time_bucket_precision", d.Precision.String())

	v.SetDefault("output.format", "text")
	v.SetDefault("output.color", true)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("redis.prefix", "logtally:")
	v.SetDefault("amqp.exchange", "blocking_exchange")
	v.SetDefault("amqp.block_duration", "5m")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)
}

// Load applies defaults, unmarshals v and validates the result.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	if c.Report.TopN < 0 {
		return fmt.Errorf("report.top_n must be >= 0, got %d", c.Report.TopN)
	}
	if c.Report.FailureThreshold < 0 {
		return fmt.Errorf("report.failure_threshold must be >= 0, got %d", c.Report.FailureThreshold)
	}
	if _, err := aggregator.ParsePrecision(c.Report.TimeBucketPrecision); err != nil {
		return fmt.Errorf("report.time_bucket_precision: %w", err)
	}
	if _, err := c.Delimiter(); err != nil {
		return err
	}
	switch strings.ToLower(c.Input.Format) {
	case "", "csv", "json", "jsonl":
	default:
		return fmt.Errorf("input.format must be csv or json, got %q", c.Input.Format)
	}
	switch strings.ToLower(c.Output.Format) {
	case "", "text", "csv", "json":
	default:
		return fmt.Errorf("output.format must be text, csv or json, got %q", c.Output.Format)
	}
	if _, err := time.ParseDuration(c.AMQP.BlockDuration); err != nil {
		return fmt.Errorf("amqp.block_duration: %w", err)
	}
	switch strings.ToLower(c.Database.Driver) {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("database.driver must be sqlite or mysql, got %q", c.Database.Driver)
	}
	return nil
}

// Delimiter returns the input field delimiter. "tab" and `\t` mean a tab.
func (c *Config) Delimiter() (rune, error) {
	d := c.Input.Delimiter
	switch strings.ToLower(d) {
	case "tab", `\t`:
		return '\t', nil
	case "":
		return ',', nil
	}
	if utf8.RuneCountInString(d) != 1 {
		return 0, fmt.Errorf("input.delimiter must be a single character, got %q", d)
	}
	r, _ := utf8.DecodeRuneInString(d)
	return r, nil
}

// HeaderLines returns how many lines to skip at the top of each input file.
// JSON-lines input has no header row, so it is always 0 there.
func (c *Config) HeaderLines() int {
	switch strings.ToLower(c.Input.Format) {
	case "json", "jsonl":
		return 0
	}
	return c.Input.SkipHeaderLines
}

// ReportOptions converts the report section into aggregator options.
func (c *Config) ReportOptions() (aggregator.Options, error) {
	p, err := aggregator.ParsePrecision(c.Report.TimeBucketPrecision)
	if err != nil {
		return aggregator.Options{}, err
	}
	return aggregator.Options{
		TopN:             c.Report.TopN,
		FailureStatuses:  c.Report.FailureStatuses,
		FailureThreshold: c.Report.FailureThreshold,
		Precision:        p,
	}, nil
}
