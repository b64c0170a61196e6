// Package config provides XML-based configuration with environment overrides.
package config

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Pipeline modes.
const (
	ModeSingle    = "single"
	ModeSegmented = "segmented"
)

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"SinText"`

	Server    ServerConfig    `xml:"Server"`
	Storage   StorageConfig   `xml:"Storage"`
	Inference InferenceConfig `xml:"Inference"`
	Pipeline  PipelineConfig  `xml:"Pipeline"`
	Advanced  AdvancedConfig  `xml:"Advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port"`
	BindAddress  string `xml:"BindAddress"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds"`
	// WriteTimeout of 0 disables the deadline; progress streams stay open for
	// as long as the slowest stage.
	WriteTimeout int    `xml:"WriteTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds"`
	BodyLimit    string `xml:"BodyLimit"`
	FrontendDir  string `xml:"FrontendDirectory"`
}

// StorageConfig contains file storage settings
type StorageConfig struct {
	DataDirectory            string `xml:"DataDirectory"`
	UploadsDirectory         string `xml:"UploadsDirectory"`
	ArtifactsDirectory       string `xml:"ArtifactsDirectory"`
	KeepUploads              bool   `xml:"KeepUploads"`
	ArtifactRetentionMinutes int    `xml:"ArtifactRetentionMinutes"`
	CleanupIntervalMinutes   int    `xml:"CleanupIntervalMinutes"`
}

// InferenceConfig contains the LLM provider settings
type InferenceConfig struct {
	BaseURL  string `xml:"BaseURL"`
	APIKey   string `xml:"APIKey,omitempty"`
	Model    string `xml:"Model"`
	SiteURL  string `xml:"SiteURL"`
	SiteName string `xml:"SiteName"`
}

// PipelineConfig controls stage planning
type PipelineConfig struct {
	Mode                string `xml:"Mode"`
	StageTimeoutSeconds int    `xml:"StageTimeoutSeconds"`
	ParallelStages      bool   `xml:"ParallelStages"`
	PromptsFile         string `xml:"PromptsFile,omitempty"`
}

// AdvancedConfig contains logging options
type AdvancedConfig struct {
	LogLevel             string `xml:"LogLevel"`
	LogFormat            string `xml:"LogFormat"`
	EnableRequestLogging bool   `xml:"EnableRequestLogging"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         3000,
			BindAddress:  "localhost",
			EnableCORS:   true,
			AllowOrigins: "http://localhost:8080",
			ReadTimeout:  60,
			WriteTimeout: 0,
			IdleTimeout:  120,
			BodyLimit:    "50M",
		},
		Storage: StorageConfig{
			DataDirectory:            "./data",
			UploadsDirectory:         "./data/uploads/pdf",
			ArtifactsDirectory:       "./data/uploads/docx",
			KeepUploads:              false,
			ArtifactRetentionMinutes: 0,
			CleanupIntervalMinutes:   10,
		},
		Inference: InferenceConfig{
			BaseURL:  "https://openrouter.ai/api/v1",
			Model:    "anthropic/claude-3-sonnet-20240229",
			SiteURL:  "http://localhost:3000",
			SiteName: "Sin-Text",
		},
		Pipeline: PipelineConfig{
			Mode:                ModeSingle,
			StageTimeoutSeconds: 600,
			ParallelStages:      false,
		},
		Advanced: AdvancedConfig{
			LogLevel:             "info",
			LogFormat:            "console",
			EnableRequestLogging: true,
		},
	}
}

// LoadDotEnv loads a .env file into the process environment if one exists.
// Variables already set are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// LoadConfig loads configuration from XML file
func LoadConfig(configPath string) (*AppConfig, error) {
	config := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// First run: write the defaults so operators have a file to edit
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := xml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.applyEnvironmentOverrides()
	config.resolvePaths(filepath.Dir(configPath))

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	// The API key only ever comes from the environment
	clone := *c
	clone.Inference.APIKey = ""

	output, err := xml.MarshalIndent(clone, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- Sin-Text Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *AppConfig) Validate() error {
	var errs []error
	switch c.Pipeline.Mode {
	case ModeSingle, ModeSegmented:
	default:
		errs = append(errs, fmt.Errorf("unknown pipeline mode %q", c.Pipeline.Mode))
	}
	if c.Pipeline.StageTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("stage timeout must be positive"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Server.Port))
	}
	if c.Inference.BaseURL == "" {
		errs = append(errs, errors.New("inference base URL is required"))
	}
	return errors.Join(errs...)
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if origin := os.Getenv("CORS_ORIGIN"); origin != "" {
		c.Server.AllowOrigins = origin
	}
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
		c.Storage.UploadsDirectory = filepath.Join(dataDir, "uploads", "pdf")
		c.Storage.ArtifactsDirectory = filepath.Join(dataDir, "uploads", "docx")
	}

	if v := os.Getenv("OPENROUTER_BASE_URL"); v != "" {
		c.Inference.BaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		c.Inference.APIKey = v
	}
	if v := os.Getenv("OPENROUTER_MODEL"); v != "" {
		c.Inference.Model = v
	}
	if v := os.Getenv("YOUR_SITE_URL"); v != "" {
		c.Inference.SiteURL = v
	}
	if v := os.Getenv("YOUR_SITE_NAME"); v != "" {
		c.Inference.SiteName = v
	}

	if v := os.Getenv("PIPELINE_MODE"); v != "" {
		c.Pipeline.Mode = strings.ToLower(v)
	}
	if v := os.Getenv("STAGE_TIMEOUT_SECONDS"); v != "" {
		if s, err := strconv.Atoi(v); err == nil {
			c.Pipeline.StageTimeoutSeconds = s
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Advanced.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Advanced.LogFormat = v
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	resolve := func(p *string) {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
	resolve(&c.Storage.DataDirectory)
	resolve(&c.Storage.UploadsDirectory)
	resolve(&c.Storage.ArtifactsDirectory)
	resolve(&c.Server.FrontendDir)
	resolve(&c.Pipeline.PromptsFile)
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// StageTimeout returns the per-stage inference deadline.
func (c *AppConfig) StageTimeout() time.Duration {
	return time.Duration(c.Pipeline.StageTimeoutSeconds) * time.Second
}

// ArtifactRetention returns how long generated documents are kept; zero keeps them forever.
func (c *AppConfig) ArtifactRetention() time.Duration {
	return time.Duration(c.Storage.ArtifactRetentionMinutes) * time.Minute
}

// CleanupInterval returns the sweeper tick.
func (c *AppConfig) CleanupInterval() time.Duration {
	if c.Storage.CleanupIntervalMinutes <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.Storage.CleanupIntervalMinutes) * time.Minute
}

// AllowedOrigins splits the comma-separated CORS setting.
func (c *AppConfig) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.Server.AllowOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.UploadsDirectory,
		c.Storage.ArtifactsDirectory,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
