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

type Config struct {
	Server ServerConfig
	Gemini GeminiConfig
	App    AppConfig
	Report ReportConfig
	Log    LogConfig
}

type ServerConfig struct {
	Host        string
	Port        string
	CORSOrigins []string
}

type GeminiConfig struct {
	APIKey  string
	Model   string
	Prompt  string
	Timeout time.Duration
}

type AppConfig struct {
	UploadDir     string
	ReportsDir    string
	PublicDir     string
	MaxUploadSize int64
	MaxJSONSize   int64
}

type ReportConfig struct {
	Title    string
	Compress bool
	FontPath string
}

type LogConfig struct {
	Level string
}

// Addr is the listen address for the HTTP server.
func (c ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// Load reads an optional .env file, then environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetDefault("SERVER_HOST", "")
	v.SetDefault("PORT", "5000")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
	v.SetDefault("GEMINI_API_KEY", "")
	v.SetDefault("GEMINI_MODEL", "gemini-1.5-flash")
	v.SetDefault("GEMINI_TIMEOUT", 60*time.Second)
	v.SetDefault("PROMPT", "")
	v.SetDefault("APP_UPLOAD_DIR", "./upload")
	v.SetDefault("APP_REPORTS_DIR", "./reports")
	v.SetDefault("APP_PUBLIC_DIR", "./public")
	v.SetDefault("APP_MAX_UPLOAD_SIZE", 10*1024*1024) // 10MB
	v.SetDefault("APP_MAX_JSON_SIZE", 10*1024*1024)
	v.SetDefault("REPORT_TITLE", "Plant Analysis Report")
	v.SetDefault("REPORT_COMPRESS", true)
	v.SetDefault("REPORT_FONT_PATH", "")
	v.SetDefault("LOG_LEVEL", "info")

	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Host:        v.GetString("SERVER_HOST"),
			Port:        v.GetString("PORT"),
			CORSOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Gemini: GeminiConfig{
			APIKey:  v.GetString("GEMINI_API_KEY"),
			Model:   v.GetString("GEMINI_MODEL"),
			Prompt:  v.GetString("PROMPT"),
			Timeout: v.GetDuration("GEMINI_TIMEOUT"),
		},
		App: AppConfig{
			UploadDir:     v.GetString("APP_UPLOAD_DIR"),
			ReportsDir:    v.GetString("APP_REPORTS_DIR"),
			PublicDir:     v.GetString("APP_PUBLIC_DIR"),
			MaxUploadSize: v.GetInt64("APP_MAX_UPLOAD_SIZE"),
			MaxJSONSize:   v.GetInt64("APP_MAX_JSON_SIZE"),
		},
		Report: ReportConfig{
			Title:    v.GetString("REPORT_TITLE"),
			Compress: v.GetBool("REPORT_COMPRESS"),
			FontPath: v.GetString("REPORT_FONT_PATH"),
		},
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := createDirs(cfg); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Gemini.APIKey == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY is required"))
	}
	if strings.TrimSpace(c.Gemini.Prompt) == "" {
		errs = append(errs, errors.New("PROMPT is required"))
	}
	// A bare number parses as nanoseconds; require a unit such as "60s".
	if c.Gemini.Timeout < time.Second {
		errs = append(errs, fmt.Errorf("GEMINI_TIMEOUT must be at least 1s with a unit, got %s", c.Gemini.Timeout))
	}
	if c.App.MaxUploadSize <= 0 || c.App.MaxJSONSize <= 0 {
		errs = append(errs, errors.New("body size limits must be positive"))
	}
	return errors.Join(errs...)
}

func createDirs(cfg *Config) error {
	dirs := []string{
		cfg.App.UploadDir,
		cfg.App.ReportsDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
