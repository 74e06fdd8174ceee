package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultConfigPath = "config/config.yml"

type Config struct {
	App       AppConfig       `yaml:"app"`
	Feed      FeedConfig      `yaml:"feed"`
	Cache     CacheConfig     `yaml:"cache"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// Feed source kinds.
const (
	SourceFTP  = "ftp"
	SourceHTTP = "http"
	SourceS3   = "s3"
)

type FeedConfig struct {
	Source            string        `yaml:"source"`
	NasdaqFile        string        `yaml:"nasdaq_file"`
	OtherFile         string        `yaml:"other_file"`
	Timeout           time.Duration `yaml:"timeout"`
	ExcludeTestIssues bool          `yaml:"exclude_test_issues"`
	FTP               FTPConfig     `yaml:"ftp"`
	HTTP              HTTPConfig    `yaml:"http"`
	S3                S3Config      `yaml:"s3"`
}

type FTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Dir      string `yaml:"dir"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

type HTTPConfig struct {
	BaseURL   string `yaml:"base_url"`
	UserAgent string `yaml:"user_agent"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PathStyle       bool   `yaml:"path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
	// WarmSchedule is a cron expression (with seconds). Empty disables warming.
	WarmSchedule string `yaml:"warm_schedule"`
}

type DashboardConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Address         string        `yaml:"address"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	LogHistory      int           `yaml:"log_history"`
	MetricsHistory  int           `yaml:"metrics_history"`
	ExportRate      float64       `yaml:"export_rate"`
	ExportBurst     int           `yaml:"export_burst"`
	MaxPageSize     int           `yaml:"max_page_size"`
}

type MetricsConfig struct {
	Prometheus bool             `yaml:"prometheus"`
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Region          string        `yaml:"region"`
	Namespace       string        `yaml:"namespace"`
	Dashboard       string        `yaml:"dashboard"`
	PublishInterval time.Duration `yaml:"publish_interval"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

// Default returns the configuration used for keys the file leaves out.
func Default() Config {
	return Config{
		App: AppConfig{Name: "symdir", Version: "dev"},
		Feed: FeedConfig{
			Source:     SourceFTP,
			NasdaqFile: "nasdaqlisted.txt",
			OtherFile:  "otherlisted.txt",
			Timeout:    30 * time.Second,
			FTP: FTPConfig{
				Host:     "ftp.nasdaqtrader.com",
				Port:     21,
				Dir:      "SymbolDirectory",
				User:     "anonymous",
				Password: "anonymous",
			},
			HTTP: HTTPConfig{
				BaseURL:   "https://www.nasdaqtrader.com/dynamic/SymDir",
				UserAgent: "symdir/1.0",
			},
		},
		Cache: CacheConfig{TTL: time.Hour},
		Dashboard: DashboardConfig{
			Enabled:         true,
			Address:         "0.0.0.0:8080",
			RefreshInterval: 30 * time.Second,
			LogHistory:      200,
			MetricsHistory:  200,
			ExportRate:      2,
			ExportBurst:     4,
			MaxPageSize:     1000,
		},
		Metrics: MetricsConfig{
			Prometheus: true,
			CloudWatch: CloudWatchConfig{
				Namespace:       "SymDir",
				Dashboard:       "SymDir",
				PublishInterval: time.Minute,
			},
		},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
	}
}

// LoadConfig reads the YAML file at path on top of Default, applies
// environment overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(&config)

	config.Feed.Source = strings.ToLower(strings.TrimSpace(config.Feed.Source))
	config.Feed.S3.Bucket = strings.TrimSpace(config.Feed.S3.Bucket)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func applyEnvOverrides(config *Config) {
	if v := os.Getenv("FEED_SOURCE"); v != "" {
		config.Feed.Source = strings.TrimSpace(v)
	}
	if v := os.Getenv("FTP_USER"); v != "" {
		config.Feed.FTP.User = strings.TrimSpace(v)
	}
	if v := os.Getenv("FTP_PASSWORD"); v != "" {
		config.Feed.FTP.Password = strings.TrimSpace(v)
	}
	if v := os.Getenv("DASHBOARD_ADDRESS"); v != "" {
		config.Dashboard.Address = strings.TrimSpace(v)
	}

	if v := os.Getenv("AWS_REGION"); v != "" {
		if config.Feed.S3.Region == "" {
			config.Feed.S3.Region = strings.TrimSpace(v)
		}
		if config.Metrics.CloudWatch.Region == "" {
			config.Metrics.CloudWatch.Region = strings.TrimSpace(v)
		}
	}
	if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
		config.Feed.S3.AccessKeyID = strings.TrimSpace(v)
	}
	if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
		config.Feed.S3.SecretAccessKey = strings.TrimSpace(v)
	}
	if v := os.Getenv("S3_BUCKET"); v != "" {
		config.Feed.S3.Bucket = strings.TrimSpace(v)
	}
}

func validateConfig(cfg *Config) error {
	if cfg.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}
	if cfg.App.Version == "" {
		return fmt.Errorf("app.version is required")
	}

	switch cfg.Feed.Source {
	case SourceFTP:
		if cfg.Feed.FTP.Host == "" {
			return fmt.Errorf("feed.ftp.host is required when feed.source is ftp")
		}
	case SourceHTTP:
		if cfg.Feed.HTTP.BaseURL == "" {
			return fmt.Errorf("feed.http.base_url is required when feed.source is http")
		}
	case SourceS3:
		if cfg.Feed.S3.Bucket == "" {
			return fmt.Errorf("feed.s3.bucket is required when feed.source is s3")
		}
		if !isValidS3Bucket(cfg.Feed.S3.Bucket) {
			return fmt.Errorf("feed.s3.bucket '%s' is invalid", cfg.Feed.S3.Bucket)
		}
		if cfg.Feed.S3.Region == "" {
			return fmt.Errorf("feed.s3.region is required when feed.source is s3")
		}
	default:
		return fmt.Errorf("feed.source '%s' is not one of ftp, http, s3", cfg.Feed.Source)
	}

	if cfg.Feed.NasdaqFile == "" || cfg.Feed.OtherFile == "" {
		return fmt.Errorf("feed.nasdaq_file and feed.other_file are required")
	}
	if cfg.Feed.Timeout <= 0 {
		return fmt.Errorf("feed.timeout must be greater than 0")
	}
	if cfg.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be greater than 0")
	}
	if cfg.Dashboard.ExportRate < 0 || cfg.Dashboard.ExportBurst < 0 {
		return fmt.Errorf("dashboard.export_rate and dashboard.export_burst must not be negative")
	}
	if env := AppEnvironment(); env.ProductionLike() && cfg.Dashboard.Enabled && cfg.Dashboard.ExportRate == 0 {
		return fmt.Errorf("dashboard.export_rate must be set in %s", env)
	}

	return nil
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
