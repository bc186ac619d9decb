package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/vango-dev/ssr/internal/errors"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the name of the JSON configuration file.
	ConfigFileName = "ssr.json"

	// YAMLConfigFileName is the name of the YAML configuration file.
	YAMLConfigFileName = "ssr.yaml"

	// DefaultPort is the default preview server port.
	DefaultPort = 3000

	// DefaultHost is the default preview server host.
	DefaultHost = "localhost"

	// DefaultOutput is the default build output directory.
	DefaultOutput = "dist"

	// DefaultHookTimeout is how long a hook may run before it fails.
	DefaultHookTimeout = 40 * time.Second
)

// Config represents the complete ssr.json configuration.
type Config struct {
	// Name is the project name.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// BaseServer is the URL base the server is mounted on (default "/").
	BaseServer string `json:"baseServer,omitempty" yaml:"baseServer,omitempty"`

	// BaseAssets is the URL base client assets are served from.
	// Empty means BaseServer.
	BaseAssets string `json:"baseAssets,omitempty" yaml:"baseAssets,omitempty"`

	// HookTimeout is the maximum duration of one hook call (e.g. "40s").
	HookTimeout string `json:"hookTimeout,omitempty" yaml:"hookTimeout,omitempty"`

	// Build contains build output configuration.
	Build BuildConfig `json:"build,omitempty" yaml:"build,omitempty"`

	// Prerender contains prerendering configuration.
	Prerender PrerenderConfig `json:"prerender,omitempty" yaml:"prerender,omitempty"`

	// Dev contains preview server configuration.
	Dev DevConfig `json:"dev,omitempty" yaml:"dev,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// BuildConfig contains build output settings.
type BuildConfig struct {
	// Output is the output directory for builds.
	Output string `json:"output,omitempty" yaml:"output,omitempty"`
}

// PrerenderConfig contains prerendering settings.
type PrerenderConfig struct {
	// Partial suppresses warnings about pages that could not be prerendered.
	Partial bool `json:"partial,omitempty" yaml:"partial,omitempty"`

	// NoExtraDir writes /about as about.html instead of about/index.html.
	NoExtraDir bool `json:"noExtraDir,omitempty" yaml:"noExtraDir,omitempty"`

	// Parallel bounds the number of in-flight hook calls and writes.
	Parallel Parallel `json:"parallel,omitempty" yaml:"parallel,omitempty"`
}

// DevConfig contains preview server settings.
type DevConfig struct {
	// Port is the port to run the preview server on.
	Port int `json:"port,omitempty" yaml:"port,omitempty"`

	// Host is the host to bind to.
	Host string `json:"host,omitempty" yaml:"host,omitempty"`
}

// Parallel is the concurrency width of a prerender run.
// The zero value means one worker per CPU; 1 means fully serial.
type Parallel int

// ParallelAuto uses one worker per available CPU.
const ParallelAuto Parallel = 0

// Width resolves p to a positive number of permits.
func (p Parallel) Width() int {
	if p <= ParallelAuto {
		return runtime.NumCPU()
	}
	return int(p)
}

// UnmarshalJSON accepts true (auto), false or 0 (serial), or a positive number.
func (p *Parallel) UnmarshalJSON(data []byte) error {
	return p.parse(strings.TrimSpace(string(data)))
}

// UnmarshalYAML accepts the same values as UnmarshalJSON.
func (p *Parallel) UnmarshalYAML(value *yaml.Node) error {
	return p.parse(value.Value)
}

func (p *Parallel) parse(raw string) error {
	switch raw {
	case "true", "null", "":
		*p = ParallelAuto
		return nil
	case "false", "0":
		*p = 1
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return errors.New("E122").
			WithDetailf("prerender.parallel should be a boolean or a positive number, got %s", raw)
	}
	*p = Parallel(n)
	return nil
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		BaseServer:  "/",
		HookTimeout: DefaultHookTimeout.String(),
		Build: BuildConfig{
			Output: DefaultOutput,
		},
		Dev: DevConfig{
			Port: DefaultPort,
			Host: DefaultHost,
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for ssr.json, then ssr.yaml.
func Load(dir string) (*Config, error) {
	jsonPath := filepath.Join(dir, ConfigFileName)
	if _, err := os.Stat(jsonPath); err == nil {
		return LoadFile(jsonPath)
	}
	return LoadFile(filepath.Join(dir, YAMLConfigFileName))
}

// LoadFile reads configuration from the specified file path. The format is
// picked from the extension.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E121").
				WithDetail("No " + ConfigFileName + " or " + YAMLConfigFileName + " found in " + filepath.Dir(path))
		}
		return nil, errors.New("E120").Wrap(err)
	}

	cfg := New()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.New("E120").
				WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
				WithSuggestion("Check that the file is valid YAML")
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errors.New("E120").
				WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
				WithSuggestion("Check that the file is valid JSON")
		}
	}

	cfg.configPath = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Exists reports whether a config file exists in the given directory.
func Exists(dir string) bool {
	for _, name := range []string{ConfigFileName, YAMLConfigFileName} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// FindProjectRoot walks up directories to find the project root.
// Returns the directory containing ssr.json or ssr.yaml.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("E121").
				WithDetail("No " + ConfigFileName + " found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the project containing the
// working directory. Without a config file it returns defaults rooted at the
// working directory.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		cfg := New()
		cfg.configPath = filepath.Join(wd, ConfigFileName)
		return cfg, nil
	}
	return Load(root)
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.BaseServer == "" {
		c.BaseServer = "/"
	}
	if !strings.HasSuffix(c.BaseServer, "/") {
		c.BaseServer += "/"
	}
	if c.HookTimeout == "" {
		c.HookTimeout = DefaultHookTimeout.String()
	}
	if c.Build.Output == "" {
		c.Build.Output = DefaultOutput
	}
	if c.Dev.Port == 0 {
		c.Dev.Port = DefaultPort
	}
	if c.Dev.Host == "" {
		c.Dev.Host = DefaultHost
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.BaseServer, "/") {
		return errors.New("E122").
			WithDetail("baseServer should start with /, got " + c.BaseServer)
	}
	if _, err := time.ParseDuration(c.HookTimeout); err != nil {
		return errors.New("E122").
			WithDetail("hookTimeout should be a duration like \"40s\", got " + c.HookTimeout)
	}
	if c.Dev.Port < 0 || c.Dev.Port > 65535 {
		return errors.New("E122").
			WithDetail("Port must be between 0 and 65535")
	}
	return nil
}

// HookTimeoutDuration returns the parsed hook timeout.
func (c *Config) HookTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.HookTimeout)
	if err != nil || d <= 0 {
		return DefaultHookTimeout
	}
	return d
}

// AssetsBase returns BaseAssets, or BaseServer when unset.
func (c *Config) AssetsBase() string {
	if c.BaseAssets != "" {
		return c.BaseAssets
	}
	return c.BaseServer
}

// OutputPath returns the path to the build output directory.
func (c *Config) OutputPath() string {
	if filepath.IsAbs(c.Build.Output) {
		return c.Build.Output
	}
	return filepath.Join(c.Dir(), c.Build.Output)
}

// ClientOutputPath returns the directory prerendered files are written to.
func (c *Config) ClientOutputPath() string {
	return filepath.Join(c.OutputPath(), "client")
}

// ManifestPath returns the path of the client build manifest.
func (c *Config) ManifestPath() string {
	return filepath.Join(c.ClientOutputPath(), "manifest.json")
}

// DevAddress returns the address string for the preview server.
func (c *Config) DevAddress() string {
	return c.Dev.Host + ":" + strconv.Itoa(c.Dev.Port)
}
