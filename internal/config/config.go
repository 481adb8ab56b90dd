package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. BEDOMNING_LLM_MODEL
const EnvPrefix = "BEDOMNING"

// Config holds application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Database DatabaseConfig `mapstructure:"database"`
	Session  SessionConfig  `mapstructure:"session"`
	Document DocumentConfig `mapstructure:"document"`
	Media    MediaConfig    `mapstructure:"media"`
	Prompts  PromptsConfig  `mapstructure:"prompts"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxUploadMB     int64         `mapstructure:"max_upload_mb"`
}

// LLMConfig selects and tunes the completion provider
type LLMConfig struct {
	Provider              string        `mapstructure:"provider"`
	Model                 string        `mapstructure:"model"`
	APIKey                string        `mapstructure:"api_key"`
	BaseURL               string        `mapstructure:"base_url"`
	GoogleCloudProject    string        `mapstructure:"google_cloud_project"`
	GoogleCloudLocation   string        `mapstructure:"google_cloud_location"`
	GoogleCredentialsPath string        `mapstructure:"google_credentials_path"`
	Temperature           float64       `mapstructure:"temperature"`
	Timeout               time.Duration `mapstructure:"timeout"`
	Retries               int           `mapstructure:"retries"`
	StyleHeader           string        `mapstructure:"style_header"`
}

// DatabaseConfig configures report and prompt storage
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// SessionConfig configures the browser session store
type SessionConfig struct {
	Backend    string        `mapstructure:"backend"`
	RedisAddr  string        `mapstructure:"redis_addr"`
	RedisDB    int           `mapstructure:"redis_db"`
	CookieName string        `mapstructure:"cookie_name"`
	TTL        time.Duration `mapstructure:"ttl"`
}

// DocumentConfig configures the Word template
type DocumentConfig struct {
	TemplatePath string  `mapstructure:"template_path"`
	ImageWidthCM float64 `mapstructure:"image_width_cm"`
}

// MediaConfig configures where exported images are written
type MediaConfig struct {
	Dir       string `mapstructure:"dir"`
	URLPrefix string `mapstructure:"url_prefix"`
}

// PromptsConfig names the identity allowed to edit prompt templates
type PromptsConfig struct {
	Owner string `mapstructure:"owner"`
}

// IngestConfig configures CV text extraction
type IngestConfig struct {
	UploadsDir    string `mapstructure:"uploads_dir"`
	PdfToTextPath string `mapstructure:"pdftotext_path"`
	VisionOCR     bool   `mapstructure:"vision_ocr"`
}

// LogConfig configures zap
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig returns a new config with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxUploadMB:     20,
		},
		LLM: LLMConfig{
			Provider:            "openai",
			Model:               "gpt-4o-mini",
			GoogleCloudLocation: "us-central1",
			Temperature:         0.2,
			Timeout:             20 * time.Second,
			Retries:             2,
			StyleHeader:         "Skriv på professionell svenska i tredje person. Var saklig, konkret och undvik överdrifter.",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "bedomning.db",
		},
		Session: SessionConfig{
			Backend:    "memory",
			RedisAddr:  "localhost:6379",
			CookieName: "bedomning_session",
			TTL:        12 * time.Hour,
		},
		Document: DocumentConfig{
			TemplatePath: "templates/bedomning_template.docx",
			ImageWidthCM: 15,
		},
		Media: MediaConfig{
			Dir:       "media",
			URLPrefix: "/media/",
		},
		Prompts: PromptsConfig{
			Owner: "admin",
		},
		Ingest: IngestConfig{
			UploadsDir:    "uploads",
			PdfToTextPath: "pdftotext",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads .env, then config.yaml from the working directory or ./configs, then
// environment overrides
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom loads configuration from a specific file. An empty path searches the
// default locations; a missing file is not an error.
func LoadFrom(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, DefaultConfig())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.LLM.GoogleCloudProject == "" {
		cfg.LLM.GoogleCloudProject = os.Getenv("GOOGLE_CLOUD_PROJECT")
	}

	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys absent from the file
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)

	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.api_key", d.LLM.APIKey)
	v.SetDefault("llm.base_url", d.LLM.BaseURL)
	v.SetDefault("llm.google_cloud_project", d.LLM.GoogleCloudProject)
	v.SetDefault("llm.google_cloud_location", d.LLM.GoogleCloudLocation)
	v.SetDefault("llm.google_credentials_path", d.LLM.GoogleCredentialsPath)
	v.SetDefault("llm.temperature", d.LLM.Temperature)
	v.SetDefault("llm.timeout", d.LLM.Timeout)
	v.SetDefault("llm.retries", d.LLM.Retries)
	v.SetDefault("llm.style_header", d.LLM.StyleHeader)

	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.dsn", d.Database.DSN)

	v.SetDefault("session.backend", d.Session.Backend)
	v.SetDefault("session.redis_addr", d.Session.RedisAddr)
	v.SetDefault("session.redis_db", d.Session.RedisDB)
	v.SetDefault("session.cookie_name", d.Session.CookieName)
	v.SetDefault("session.ttl", d.Session.TTL)

	v.SetDefault("document.template_path", d.Document.TemplatePath)
	v.SetDefault("document.image_width_cm", d.Document.ImageWidthCM)

	v.SetDefault("media.dir", d.Media.Dir)
	v.SetDefault("media.url_prefix", d.Media.URLPrefix)

	v.SetDefault("prompts.owner", d.Prompts.Owner)

	v.SetDefault("ingest.uploads_dir", d.Ingest.UploadsDir)
	v.SetDefault("ingest.pdftotext_path", d.Ingest.PdfToTextPath)
	v.SetDefault("ingest.vision_ocr", d.Ingest.VisionOCR)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai":
		if c.LLM.APIKey == "" {
			return fmt.Errorf("llm.api_key is required for the openai provider")
		}
	case "vertexai":
		if c.LLM.GoogleCloudProject == "" {
			return fmt.Errorf("llm.google_cloud_project is required for the vertexai provider")
		}
		if c.LLM.GoogleCloudLocation == "" {
			return fmt.Errorf("llm.google_cloud_location is required for the vertexai provider")
		}
	default:
		return fmt.Errorf("unknown llm.provider %q", c.LLM.Provider)
	}

	if c.LLM.GoogleCredentialsPath != "" {
		if _, err := os.Stat(c.LLM.GoogleCredentialsPath); err != nil {
			return fmt.Errorf("google credentials file not found: %w", err)
		}
	}

	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("llm.timeout must be positive")
	}
	if c.LLM.Retries < 0 {
		return fmt.Errorf("llm.retries must not be negative")
	}

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}

	switch c.Session.Backend {
	case "memory":
	case "redis":
		if c.Session.RedisAddr == "" {
			return fmt.Errorf("session.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown session.backend %q", c.Session.Backend)
	}

	if c.Document.ImageWidthCM <= 0 {
		return fmt.Errorf("document.image_width_cm must be positive")
	}
	if c.Prompts.Owner == "" {
		return fmt.Errorf("prompts.owner is required")
	}

	return nil
}

// ApplyToEnv applies configuration values to environment variables
func (c *Config) ApplyToEnv() {
	if c.LLM.GoogleCloudProject != "" {
		os.Setenv("GOOGLE_CLOUD_PROJECT", c.LLM.GoogleCloudProject)
	}
	if c.LLM.GoogleCloudLocation != "" {
		os.Setenv("GOOGLE_CLOUD_LOCATION", c.LLM.GoogleCloudLocation)
	}
	if c.LLM.GoogleCredentialsPath != "" {
		os.Setenv("GOOGLE_APPLICATION_CREDENTIALS", c.LLM.GoogleCredentialsPath)
	}
}
