package config

import (
	"encoding/json"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/menta2k/crop-engine/pkg/cropper"
	"github.com/menta2k/crop-engine/pkg/raster"
	"github.com/menta2k/crop-engine/pkg/source"
	"github.com/menta2k/crop-engine/pkg/transform"
)

// EnvPrefix is the prefix for environment overrides, e.g. CROPENGINE_OUTPUT_FORMAT
// or CROPENGINE_ENGINE_MAX_ZOOM
const EnvPrefix = "CROPENGINE"

// Config holds the application configuration
type Config struct {
	Engine EngineConfig `json:"engine"`
	Output OutputConfig `json:"output"`
	Source SourceConfig `json:"source"`
	Server ServerConfig `json:"server"`
}

// EngineConfig holds crop geometry settings
type EngineConfig struct {
	FrameFraction float64 `json:"frame_fraction" split_words:"true"`
	MinZoom       float64 `json:"min_zoom" split_words:"true"`
	MaxZoom       float64 `json:"max_zoom" split_words:"true"`
	MaxParallel   int     `json:"max_parallel" split_words:"true"`
}

// OutputConfig holds encoder settings and CLI output naming
type OutputConfig struct {
	Format     string `json:"format" split_words:"true"`
	Quality    int    `json:"quality" split_words:"true"`
	Lossless   bool   `json:"lossless" split_words:"true"`
	Background string `json:"background" split_words:"true"`
	OutputDir  string `json:"output_dir" split_words:"true"`
	Prefix     string `json:"prefix" split_words:"true"`
	Suffix     string `json:"suffix" split_words:"true"`
}

// SourceConfig holds limits for loading source images
type SourceConfig struct {
	MaxBytes           int64    `json:"max_bytes" split_words:"true"`
	MaxDimension       int      `json:"max_dimension" split_words:"true"`
	HTTPTimeoutSeconds int      `json:"http_timeout_seconds" split_words:"true"`
	UserAgent          string   `json:"user_agent" split_words:"true"`
	SupportedFormats   []string `json:"supported_formats" split_words:"true"`
}

// ServerConfig holds HTTP service settings
type ServerConfig struct {
	Addr                string `json:"addr" split_words:"true"`
	BodyLimit           int    `json:"body_limit" split_words:"true"`
	ReadTimeoutSeconds  int    `json:"read_timeout_seconds" split_words:"true"`
	WriteTimeoutSeconds int    `json:"write_timeout_seconds" split_words:"true"`
}

// Default returns a configuration with default values
func Default() *Config {
	src := source.DefaultConfig()
	return &Config{
		Engine: EngineConfig{
			FrameFraction: 0.8,
			MinZoom:       1,
			MaxZoom:       3,
		},
		Output: OutputConfig{
			Format:     "jpg",
			Quality:    90,
			Background: "#ffffff",
			OutputDir:  "./output",
			Suffix:     "_cropped",
		},
		Source: SourceConfig{
			MaxBytes:           src.MaxBytes,
			MaxDimension:       src.MaxDimension,
			HTTPTimeoutSeconds: int(src.HTTPTimeout / time.Second),
			UserAgent:          src.UserAgent,
			SupportedFormats:   src.SupportedFormats,
		},
		Server: ServerConfig{
			Addr:                ":8080",
			BodyLimit:           32 << 20,
			ReadTimeoutSeconds:  30,
			WriteTimeoutSeconds: 60,
		},
	}
}

// LoadFromFile loads configuration from a JSON file. Fields missing from
// the file keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Load reads the config file if it exists, then applies environment overrides
func Load(filename string) (*Config, error) {
	config := Default()
	if filename != "" {
		if _, err := os.Stat(filename); err == nil {
			if config, err = LoadFromFile(filename); err != nil {
				return nil, err
			}
		}
	}
	if err := config.LoadFromEnv(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadFromEnv overrides fields from CROPENGINE_* environment variables
func (c *Config) LoadFromEnv() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	return nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Engine.FrameFraction <= 0 || c.Engine.FrameFraction > 1 {
		return fmt.Errorf("engine.frame_fraction must be in (0, 1]")
	}

	if err := c.Limits().Validate(); err != nil {
		return fmt.Errorf("engine zoom limits: %w", err)
	}

	if c.Engine.MaxParallel < 0 {
		return fmt.Errorf("engine.max_parallel cannot be negative")
	}

	if _, err := raster.NormalizeFormat(c.Output.Format); err != nil {
		return fmt.Errorf("output.format: %w", err)
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	if _, err := ParseColor(c.Output.Background); err != nil {
		return fmt.Errorf("output.background: %w", err)
	}

	if c.Source.MaxBytes < 0 || c.Source.MaxDimension < 0 {
		return fmt.Errorf("source limits cannot be negative")
	}

	if c.Source.HTTPTimeoutSeconds < 1 {
		return fmt.Errorf("source.http_timeout_seconds must be positive")
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr cannot be empty")
	}

	return nil
}

// Limits returns the zoom limits
func (c *Config) Limits() transform.Limits {
	return transform.Limits{MinZoom: c.Engine.MinZoom, MaxZoom: c.Engine.MaxZoom}
}

// CropperConfig converts the engine section for pkg/cropper
func (c *Config) CropperConfig() cropper.CropConfig {
	return cropper.CropConfig{
		FrameFraction: c.Engine.FrameFraction,
		Limits:        c.Limits(),
		MaxParallel:   c.Engine.MaxParallel,
	}
}

// RasterConfig converts the output section for pkg/raster.
// Call Validate first; an unparsable background falls back to white.
func (c *Config) RasterConfig() raster.Config {
	bg, err := ParseColor(c.Output.Background)
	if err != nil {
		bg = raster.DefaultConfig().Background
	}
	return raster.Config{
		Format:     c.Output.Format,
		Quality:    c.Output.Quality,
		Lossless:   c.Output.Lossless,
		Background: bg,
	}
}

// SourceConfig converts the source section for pkg/source
func (c *Config) SourceConfig() source.Config {
	cfg := source.DefaultConfig()
	cfg.MaxBytes = c.Source.MaxBytes
	cfg.MaxDimension = c.Source.MaxDimension
	cfg.HTTPTimeout = time.Duration(c.Source.HTTPTimeoutSeconds) * time.Second
	if c.Source.UserAgent != "" {
		cfg.UserAgent = c.Source.UserAgent
	}
	if len(c.Source.SupportedFormats) > 0 {
		cfg.SupportedFormats = c.Source.SupportedFormats
	}
	return cfg
}

// ParseColor parses "#rrggbb" or "#rrggbbaa"
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	c := color.NRGBA{A: 255}
	var err error
	switch len(s) {
	case 6:
		_, err = fmt.Sscanf(s, "%02x%02x%02x", &c.R, &c.G, &c.B)
	case 8:
		_, err = fmt.Sscanf(s, "%02x%02x%02x%02x", &c.R, &c.G, &c.B, &c.A)
	default:
		return c, fmt.Errorf("invalid color %q", s)
	}
	if err != nil {
		return c, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return c, nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "crop-engine", "config.json")
}
