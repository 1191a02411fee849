package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration for cexplorer
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Defaults  DefaultsConfig  `yaml:"defaults"`
	Web       WebConfig       `yaml:"web"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Colors    ColorConfig     `yaml:"colors"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServiceConfig describes how to reach the remote compilation service
type ServiceConfig struct {
	URL               string        `yaml:"url"`
	Proxy             string        `yaml:"proxy"` // empty means HTTP(S)_PROXY from the environment
	Language          string        `yaml:"language"`
	Retries           int           `yaml:"retries"`
	AttemptTimeout    time.Duration `yaml:"attempt_timeout"`
	CompilerCacheSize int           `yaml:"compiler_cache_size"`
	MaxConcurrent     int           `yaml:"max_concurrent"`
}

// DefaultsConfig seeds every new instance
type DefaultsConfig struct {
	Compiler  string         `yaml:"compiler"`
	Options   string         `yaml:"options"`
	Presets   []OptionPreset `yaml:"presets"`
	Exec      string         `yaml:"exec"`
	Stdin     string         `yaml:"stdin"`
	CMakeArgs string         `yaml:"cmake_args"`
	Src       string         `yaml:"src"`
	Input     string         `yaml:"input"`
	Output    string         `yaml:"output"`
	Link      string         `yaml:"link"` // short link preloaded by serve
	Filters   FilterConfig   `yaml:"filters"`
}

// OptionPreset picks default compiler options by compiler name
type OptionPreset struct {
	Pattern string `yaml:"pattern"`
	Options string `yaml:"options"`
}

// FilterConfig holds the default filter toggles
type FilterConfig struct {
	SkipAsm      bool `yaml:"skipAsm"`
	BinaryObject bool `yaml:"binaryObject"`
	Binary       bool `yaml:"binary"`
	Execute      bool `yaml:"execute"`
	Intel        bool `yaml:"intel"`
	Demangle     bool `yaml:"demangle"`
	Labels       bool `yaml:"labels"`
	LibraryCode  bool `yaml:"libraryCode"`
	Directives   bool `yaml:"directives"`
	CommentOnly  bool `yaml:"commentOnly"`
	Trim         bool `yaml:"trim"`
	DebugCalls   bool `yaml:"debugCalls"`
}

// WebConfig contains the local view server configuration
type WebConfig struct {
	Port int `yaml:"port"`
}

// WorkspaceConfig tells where sources live and where loaded links are staged
type WorkspaceConfig struct {
	Root       string `yaml:"root"`
	StagingDir string `yaml:"staging_dir"`
}

// ColorConfig maps highlighter token classes to CSS colors
type ColorConfig struct {
	Symbol      string `yaml:"symbol"`
	String      string `yaml:"string"`
	Number      string `yaml:"number"`
	Register    string `yaml:"register"`
	Instruction string `yaml:"instruction"`
	Comment     string `yaml:"comment"`
	Operator    string `yaml:"operator"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string `yaml:"level"` // "info", "debug"
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			URL:               "https://godbolt.org",
			Language:          "c++",
			Retries:           3,
			AttemptTimeout:    60 * time.Second,
			CompilerCacheSize: 16,
			MaxConcurrent:     4,
		},
		Defaults: DefaultsConfig{
			Compiler: "x86-64 gcc 13.2",
			Options:  "-O2 -Wall",
			Input:    InputActive,
			Src:      ".",
			Output:   OutputWebview,
			Filters: FilterConfig{
				Intel:       true,
				Demangle:    true,
				Labels:      true,
				LibraryCode: true,
				Directives:  true,
				CommentOnly: true,
			},
		},
		Web: WebConfig{
			Port: 8081,
		},
		Workspace: WorkspaceConfig{
			Root:       ".",
			StagingDir: ".compiler-explorer",
		},
		Colors: ColorConfig{
			Symbol:      "#61AFEF",
			String:      "#98C379",
			Number:      "#D19A66",
			Register:    "#E06C75",
			Instruction: "#C678DD",
			Comment:     "#7F848E",
			Operator:    "#56B6C2",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from a YAML file and applies the .env overlay
func LoadConfig(filename string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(filename); os.IsNotExist(err) {
		if err := SaveConfig(config, filename); err != nil {
			return nil, fmt.Errorf("failed to create default config file: %w", err)
		}
	} else {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	_ = godotenv.Load()
	config.ApplyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// SaveConfig saves configuration to a YAML file
func SaveConfig(config *Config, filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides file settings with CEXPLORER_* environment variables
func (c *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv("CEXPLORER_URL")); v != "" {
		c.Service.URL = v
	}
	if v := strings.TrimSpace(os.Getenv("CEXPLORER_PROXY")); v != "" {
		c.Service.Proxy = v
	}
	if v := strings.TrimSpace(os.Getenv("CEXPLORER_WEB_PORT")); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Web.Port = port
		}
	}
	if v := strings.TrimSpace(os.Getenv("CEXPLORER_LOG_LEVEL")); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	u, err := url.Parse(c.Service.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid service url: %q", c.Service.URL)
	}
	if c.Service.Proxy != "" {
		if _, err := url.Parse(c.Service.Proxy); err != nil {
			return fmt.Errorf("invalid proxy url %q: %w", c.Service.Proxy, err)
		}
	}
	if c.Service.Language == "" {
		return fmt.Errorf("service language not specified")
	}
	if c.Service.Retries < 0 {
		return fmt.Errorf("invalid retry count: %d", c.Service.Retries)
	}
	if c.Service.AttemptTimeout <= 0 {
		return fmt.Errorf("invalid attempt timeout: %v", c.Service.AttemptTimeout)
	}
	if c.Service.CompilerCacheSize <= 0 {
		return fmt.Errorf("invalid compiler cache size: %d", c.Service.CompilerCacheSize)
	}
	if c.Service.MaxConcurrent <= 0 {
		return fmt.Errorf("invalid max concurrent compiles: %d", c.Service.MaxConcurrent)
	}

	if c.Web.Port <= 0 || c.Web.Port > 65535 {
		return fmt.Errorf("invalid web port: %d", c.Web.Port)
	}

	if c.Defaults.Compiler == "" {
		return fmt.Errorf("default compiler not specified")
	}
	if c.Defaults.Output == "" {
		return fmt.Errorf("default output not specified")
	}
	for _, preset := range c.Defaults.Presets {
		if _, err := regexp.Compile("(?i)" + preset.Pattern); err != nil {
			return fmt.Errorf("invalid option preset pattern %q: %w", preset.Pattern, err)
		}
	}

	if c.Workspace.StagingDir == "" {
		return fmt.Errorf("workspace staging directory not specified")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "info", "debug":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	return nil
}

// OptionsFor returns the default options for a compiler name. Presets are
// checked in order and the last matching one wins.
func (c *Config) OptionsFor(compilerName string) string {
	options := c.Defaults.Options
	for _, preset := range c.Defaults.Presets {
		rx, err := regexp.Compile("(?i)" + preset.Pattern)
		if err != nil {
			continue
		}
		if rx.MatchString(compilerName) {
			options = preset.Options
		}
	}
	return options
}
