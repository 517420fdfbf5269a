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
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
	Crawl    CrawlConfig    `yaml:"crawl" mapstructure:"crawl"`
	Discover DiscoverConfig `yaml:"discover" mapstructure:"discover"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the SQLite database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// FetchConfig configures outbound HTTP behavior shared by every
// network-touching command.
type FetchConfig struct {
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxRetries   int           `yaml:"max_retries" mapstructure:"max_retries"`
	Delay        time.Duration `yaml:"delay" mapstructure:"delay"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// CrawlConfig configures the contact crawl.
type CrawlConfig struct {
	Level        string `yaml:"level" mapstructure:"level"`
	BatchSize    int    `yaml:"batch_size" mapstructure:"batch_size"`
	ContactLinks int    `yaml:"contact_links" mapstructure:"contact_links"`
}

// DiscoverConfig configures site discovery.
type DiscoverConfig struct {
	HopLimit       int      `yaml:"hop_limit" mapstructure:"hop_limit"`
	MaxPages       int      `yaml:"max_pages" mapstructure:"max_pages"`
	Concurrency    int      `yaml:"concurrency" mapstructure:"concurrency"`
	ExcludeDomains []string `yaml:"exclude_domains" mapstructure:"exclude_domains"`
}

// ServerConfig configures the API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("GOVCONTACTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.path", "government_contacts.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (compatible; GovContactsBot/1.0)")
	v.SetDefault("fetch.timeout", 30*time.Second)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.delay", 1*time.Second)
	v.SetDefault("fetch.max_body_bytes", 1<<20)
	v.SetDefault("crawl.level", "state")
	v.SetDefault("crawl.batch_size", 50)
	v.SetDefault("crawl.contact_links", 3)
	v.SetDefault("discover.hop_limit", 1)
	v.SetDefault("discover.max_pages", 100)
	v.SetDefault("discover.concurrency", 1)
	v.SetDefault("discover.exclude_domains", []string{"usa.gov", "www.usa.gov"})

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

// Validate checks the fields a command mode depends on. Modes: "db"
// (anything touching the store), "fetch" (network commands), "serve".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "db":
		if c.Store.Path == "" {
			problems = append(problems, "store.path is required")
		}
	case "fetch":
		if c.Store.Path == "" {
			problems = append(problems, "store.path is required")
		}
		if c.Fetch.Delay < 0 {
			problems = append(problems, "fetch.delay must be >= 0")
		}
		if c.Fetch.MaxRetries < 0 {
			problems = append(problems, "fetch.max_retries must be >= 0")
		}
		if c.Crawl.BatchSize < 1 || c.Crawl.BatchSize > 10000 {
			problems = append(problems, "crawl.batch_size must be between 1 and 10000")
		}
		if c.Discover.HopLimit < 0 || c.Discover.HopLimit > 3 {
			problems = append(problems, "discover.hop_limit must be between 0 and 3")
		}
		if c.Discover.Concurrency < 1 || c.Discover.Concurrency > 32 {
			problems = append(problems, "discover.concurrency must be between 1 and 32")
		}
	case "serve":
		if c.Store.Path == "" {
			problems = append(problems, "store.path is required")
		}
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be > 0 and <= 65535")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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
