package config

import (
	"errors"
	"fmt"
	"os"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"buildwrap/internal/buildsys"
)

// EnvVerbose forces verbose logging when set to a true value.
const EnvVerbose = "BUILDWRAP_VERBOSE"

// Config captures the build tool and distribution configuration for a project.
type Config struct {
	Version      int                `yaml:"version"`
	Tool         ToolConfig         `yaml:"tool"`
	Distribution DistributionConfig `yaml:"distribution"`
	Execution    ExecutionConfig    `yaml:"execution"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// ToolConfig names the wrapped build tool.
type ToolConfig struct {
	Name        string `yaml:"name"`
	DisplayName string `yaml:"display_name"`
}

// Identity converts the tool section into a build system identity.
func (t ToolConfig) Identity() buildsys.Identity {
	return buildsys.Identity{Name: t.Name, DisplayName: t.DisplayName}
}

// DistributionConfig describes where the tool distribution comes from.
type DistributionConfig struct {
	URL            string `yaml:"url"`
	SHA256         string `yaml:"sha256,omitempty"`
	Archive        string `yaml:"archive,omitempty"`
	Version        string `yaml:"version"`
	MinimumVersion string `yaml:"minimum_version,omitempty"`
	Executable     string `yaml:"executable"`
	GitHub         string `yaml:"github,omitempty"`
}

// Archive formats understood by the distribution installer.
const (
	ArchiveZip   = "zip"
	ArchiveTarGz = "tar.gz"
	ArchiveTarXz = "tar.xz"
)

// ArchiveFormat returns the configured archive format, inferring it from the
// URL when unset. It returns "" when the format cannot be determined.
func (d DistributionConfig) ArchiveFormat() string {
	if d.Archive != "" {
		return strings.ToLower(d.Archive)
	}
	name := strings.ToLower(path.Base(d.URL))
	switch {
	case strings.HasSuffix(name, ".zip"):
		return ArchiveZip
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return ArchiveTarGz
	case strings.HasSuffix(name, ".tar.xz"), strings.HasSuffix(name, ".txz"):
		return ArchiveTarXz
	}
	return ""
}

// ArchiveName returns the file name of the downloaded archive.
func (d DistributionConfig) ArchiveName() string {
	name := path.Base(d.URL)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

// ExecutionConfig controls how the tool is launched.
type ExecutionConfig struct {
	Env     map[string]string `yaml:"env,omitempty"`
	Timeout time.Duration     `yaml:"timeout,omitempty"`
}

// Environ returns the configured environment as sorted KEY=VALUE pairs.
func (e ExecutionConfig) Environ() []string {
	if len(e.Env) == 0 {
		return nil
	}
	out := make([]string, 0, len(e.Env))
	for k, v := range e.Env {
		out = append(out, k+"="+v)
	}
	slices.Sort(out)
	return out
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	Verbose bool   `yaml:"verbose"`
	Level   string `yaml:"level,omitempty"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Version: 1,
		Tool: ToolConfig{
			Name:        buildsys.DefaultIdentity.Name,
			DisplayName: buildsys.DefaultIdentity.DisplayName,
		},
		Distribution: DistributionConfig{
			URL:            "https://services.gradle.org/distributions/gradle-8.5-bin.zip",
			Archive:        ArchiveZip,
			Version:        "8.5",
			MinimumVersion: "7.0",
			Executable:     "bin/gradle",
			GitHub:         "gradle/gradle",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML configuration from disk if it exists, otherwise returns
// the default configuration. Environment overrides are applied in both cases.
func Load(path string) (Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			cfg.ApplyDefaults()
			cfg.ApplyEnv(os.LookupEnv)
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(contents)
	if err != nil {
		return Config{}, err
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

// Parse decodes YAML contents on top of an empty config and applies defaults
// to omitted fields.
func Parse(contents []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults ensures nested fields fall back to sensible defaults when the
// YAML omits them. A distribution without a URL takes the whole default
// distribution so a half-specified descriptor never mixes sources.
func (c *Config) ApplyDefaults() {
	defaults := Default()

	if c.Version == 0 {
		c.Version = defaults.Version
	}
	if c.Tool.Name == "" {
		c.Tool.Name = defaults.Tool.Name
	}
	if c.Tool.DisplayName == "" {
		c.Tool.DisplayName = displayName(c.Tool.Name)
	}
	if c.Distribution.URL == "" {
		c.Distribution = defaults.Distribution
	}
	if c.Distribution.Archive == "" {
		c.Distribution.Archive = c.Distribution.ArchiveFormat()
	}
	if c.Distribution.Executable == "" {
		c.Distribution.Executable = path.Join("bin", c.Tool.Name)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
}

// ApplyEnv applies environment overrides using lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvVerbose); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			c.Logging.Verbose = b
		}
	}
}

// Marshal returns the YAML encoding of the configuration.
func (c Config) Marshal() ([]byte, error) {
	buf, err := yaml.Marshal(&c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return buf, nil
}

func displayName(name string) string {
	if name == buildsys.DefaultIdentity.Name {
		return buildsys.DefaultIdentity.DisplayName
	}
	if name == "" {
		return ""
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
