package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Minio    MinioConfig    `yaml:"minio"`
	Mineru   MineruConfig   `yaml:"mineru"`
	Reasoner ReasonerConfig `yaml:"reasoner"`
	Store    StoreConfig    `yaml:"store"`
}

type ServerConfig struct {
	Port      int `yaml:"port"`
	RateLimit int `yaml:"rate_limit"` // requests per minute per client IP
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MinioConfig struct {
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	Bucket     string `yaml:"bucket"`
	Region     string `yaml:"region"`
	UseSSL     bool   `yaml:"use_ssl"`
	ExpireDays int    `yaml:"expire_days"`
}

type MineruConfig struct {
	APIURL       string `yaml:"api_url"`
	APIToken     string `yaml:"api_token"`
	ModelVersion string `yaml:"model_version"`
	CallbackURL  string `yaml:"callback_url"`
	Seed         string `yaml:"seed"`
	UID          string `yaml:"uid"` // account uid used in callback checksums
	PollInterval int    `yaml:"poll_interval_seconds"`
	PollAttempts int    `yaml:"poll_attempts"`
}

type ReasonerConfig struct {
	URL            string `yaml:"url"`
	APIToken       string `yaml:"api_token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	RetryAttempts  uint   `yaml:"retry_attempts"`
	RetryDelayMS   int    `yaml:"retry_delay_ms"`
	MaxTextLength  int    `yaml:"max_text_length"`
}

type StoreConfig struct {
	MaxContracts int `yaml:"max_contracts"`
}

// Timeout returns the reasoner request timeout.
func (c ReasonerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RetryDelay returns the pause between reasoner attempts.
func (c ReasonerConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}

var GlobalConfig *Config

// Load reads the YAML config at path, fills defaults and overlays secrets
// from the environment. A .env file in the working directory is loaded
// first when present.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()

	GlobalConfig = &cfg
	return &cfg, nil
}

// Default returns a config with every default applied, for commands that
// run without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = 100
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Minio.ExpireDays == 0 {
		c.Minio.ExpireDays = 7
	}
	if c.Mineru.ModelVersion == "" {
		c.Mineru.ModelVersion = "vlm"
	}
	if c.Mineru.PollInterval == 0 {
		c.Mineru.PollInterval = 5
	}
	if c.Mineru.PollAttempts == 0 {
		c.Mineru.PollAttempts = 60
	}
	if c.Reasoner.TimeoutSeconds == 0 {
		c.Reasoner.TimeoutSeconds = 300
	}
	if c.Reasoner.RetryAttempts == 0 {
		c.Reasoner.RetryAttempts = 3
	}
	if c.Reasoner.RetryDelayMS == 0 {
		c.Reasoner.RetryDelayMS = 2000
	}
	if c.Reasoner.MaxTextLength == 0 {
		c.Reasoner.MaxTextLength = 25000
	}
	if c.Store.MaxContracts == 0 {
		c.Store.MaxContracts = 100
	}
}

// applyEnv lets deployment secrets override whatever the file says.
func (c *Config) applyEnv() {
	overrides := []struct {
		env    string
		target *string
	}{
		{"MINIO_ACCESS_KEY", &c.Minio.AccessKey},
		{"MINIO_SECRET_KEY", &c.Minio.SecretKey},
		{"MINERU_API_TOKEN", &c.Mineru.APIToken},
		{"REASONER_API_TOKEN", &c.Reasoner.APIToken},
		{"RENTGUARD_LOG_LEVEL", &c.Log.Level},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.target = v
		}
	}
}
