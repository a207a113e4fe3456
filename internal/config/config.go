// File: internal/config/config.go

package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/berrythewa/datalibrary/internal/ipc"
	"github.com/berrythewa/datalibrary/pkg/utils"
)

// ConfigPaths holds all relevant paths for the application
type ConfigPaths struct {
	BaseDir      string `json:"base_dir" yaml:"base_dir"`           // Base directory for all config files
	ActiveConfig string `json:"active_config" yaml:"active_config"` // Path to active config file
	DataDir      string `json:"data_dir" yaml:"data_dir"`           // Directory for application data
	LibraryFile  string `json:"library_file" yaml:"library_file"`   // Default library database
	LogDir       string `json:"log_dir" yaml:"log_dir"`             // Directory for log files
}

// Config holds all application configuration
type Config struct {
	// ServerID identifies this server instance in logs
	ServerID string `json:"server_id" yaml:"server_id"`

	SystemPaths ConfigPaths `json:"system_paths" yaml:"system_paths"`

	Log     LogConfig     `json:"log" yaml:"log"`
	Server  ServerConfig  `json:"server" yaml:"server"`
	DCC     DCCConfig     `json:"dcc" yaml:"dcc"`
	Library LibraryConfig `json:"library" yaml:"library"`
	Client  ClientConfig  `json:"client" yaml:"client"`
}

// LogConfig holds logging-related configuration
type LogConfig struct {
	Level             string `json:"level" yaml:"level"`
	Format            string `json:"format" yaml:"format"` // "json" or "console"
	EnableFileLogging bool   `json:"enable_file_logging" yaml:"enable_file_logging"`
}

// ServerConfig is where the command server listens
type ServerConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

// Address returns host:port.
func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// DCCConfig describes the host application the server runs in
type DCCConfig struct {
	Name string `json:"name" yaml:"name"`
	// ItemsRoot holds DCC specific item plugins under dccs/<name>/data
	ItemsRoot string `json:"items_root" yaml:"items_root"`
}

// LibraryConfig holds data library options
type LibraryConfig struct {
	DefaultPath   string        `json:"default_path" yaml:"default_path"`
	Watch         bool          `json:"watch" yaml:"watch"`
	WatchDebounce time.Duration `json:"watch_debounce" yaml:"watch_debounce"`
	OpenTimeout   time.Duration `json:"open_timeout" yaml:"open_timeout"`
}

// ClientConfig holds options for talking to a server
type ClientConfig struct {
	Retries    int           `json:"retries" yaml:"retries"`
	RetryDelay time.Duration `json:"retry_delay" yaml:"retry_delay"`
	Timeout    time.Duration `json:"timeout" yaml:"timeout"` // zero waits for the reply
}

// Hooks replaced in tests
var (
	getConfigPath = func() (string, error) {
		paths, err := GetConfigPaths()
		if err != nil {
			return "", err
		}
		return paths.ActiveConfig, nil
	}
	getDefaultDataDir = defaultDataDir
	generateServerID  = utils.GenerateUUID
)

// GetConfigPaths returns the platform-specific configuration paths
func GetConfigPaths() (*ConfigPaths, error) {
	// First check environment variable for base directory
	baseDir := os.Getenv("DATALIBRARY_CONFIG_DIR")
	if baseDir == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return nil, err
		}

		switch runtime.GOOS {
		case "windows":
			baseDir = filepath.Join(configDir, "DataLibrary")
		case "darwin":
			baseDir = filepath.Join(configDir, "com.berrythewa.datalibrary")
		default: // Linux and others
			baseDir = filepath.Join(configDir, "datalibrary")
		}
	}

	dataDir, err := getDefaultDataDir()
	if err != nil {
		return nil, err
	}

	paths := &ConfigPaths{
		BaseDir:      baseDir,
		ActiveConfig: filepath.Join(baseDir, "config.yaml"),
		DataDir:      dataDir,
		LibraryFile:  filepath.Join(dataDir, "library", "data.db"),
		LogDir:       filepath.Join(dataDir, "logs"),
	}

	for _, dir := range []string{paths.BaseDir, paths.DataDir, paths.LogDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	return paths, nil
}

func defaultDataDir() (string, error) {
	if dataDir := os.Getenv("DATALIBRARY_DATA_DIR"); dataDir != "" {
		return dataDir, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	switch runtime.GOOS {
	case "windows":
		if appData, err := os.UserConfigDir(); err == nil {
			return filepath.Join(appData, "DataLibrary", "Data"), nil
		}
		return filepath.Join(homeDir, "AppData", "Local", "DataLibrary"), nil
	case "darwin":
		return filepath.Join(homeDir, "Library", "Application Support", "DataLibrary"), nil
	default:
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			return filepath.Join(xdgDataHome, "datalibrary"), nil
		}
		return filepath.Join(homeDir, ".datalibrary"), nil
	}
}

// DefaultConfig returns a new Config with default values
func DefaultConfig() *Config {
	paths, err := GetConfigPaths()
	if err != nil {
		// Fall back to paths relative to the working directory
		paths = &ConfigPaths{
			BaseDir:      ".",
			ActiveConfig: "config.yaml",
			DataDir:      ".",
			LibraryFile:  filepath.Join("library", "data.db"),
			LogDir:       "logs",
		}
	}

	return &Config{
		ServerID:    generateServerID(),
		SystemPaths: *paths,
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Server: ServerConfig{
			Host: ipc.DefaultHost,
			Port: ipc.DefaultPort,
		},
		DCC: DCCConfig{
			Name: "standalone",
		},
		Library: LibraryConfig{
			DefaultPath:   paths.LibraryFile,
			WatchDebounce: 500 * time.Millisecond,
			OpenTimeout:   time.Second,
		},
		Client: ClientConfig{
			Retries:    3,
			RetryDelay: 500 * time.Millisecond,
		},
	}
}

// Load loads the configuration from the specified file or creates default if not exists
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		var err error
		configPath, err = getConfigPath()
		if err != nil {
			return nil, err
		}
	}

	// Keys missing from the file keep their defaults.
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case os.IsNotExist(err):
		if err := cfg.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	overrideFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	return cfg, nil
}

// Save saves the configuration to the specified file
func (c *Config) Save(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the values a server or client cannot run without.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	switch c.Log.Format {
	case "", "json", "console", "text":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	if c.Client.Retries < 0 {
		return fmt.Errorf("client retries must not be negative")
	}
	return nil
}

// setDataDir moves the data directory and every path kept under it.
func (c *Config) setDataDir(dir string) {
	old := c.SystemPaths.DataDir
	if old == dir {
		return
	}
	c.SystemPaths.DataDir = dir
	c.SystemPaths.LogDir = rebase(c.SystemPaths.LogDir, old, dir)
	c.SystemPaths.LibraryFile = rebase(c.SystemPaths.LibraryFile, old, dir)
	c.Library.DefaultPath = rebase(c.Library.DefaultPath, old, dir)
}

// rebase rewrites path from below from to below to. Paths outside from are
// returned unchanged.
func rebase(path, from, to string) string {
	if path == "" || from == "" {
		return path
	}
	rel, err := filepath.Rel(from, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return filepath.Join(to, rel)
}

// GetActiveConfigPath returns the path to the currently active config
func GetActiveConfigPath() (string, error) {
	return getConfigPath()
}

// overrideFromEnv overrides configuration values from environment variables
func overrideFromEnv(config *Config) {
	if val := os.Getenv("DATALIBRARY_DATA_DIR"); val != "" {
		config.setDataDir(val)
	}
	if val := os.Getenv("DATALIBRARY_HOST"); val != "" {
		config.Server.Host = val
	}
	if val := os.Getenv("DATALIBRARY_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			config.Server.Port = port
		}
	}
	if val := os.Getenv("DATALIBRARY_DCC"); val != "" {
		config.DCC.Name = val
	}
	if val := os.Getenv("DATALIBRARY_ITEMS_ROOT"); val != "" {
		config.DCC.ItemsRoot = val
	}
	if val := os.Getenv("DATALIBRARY_LOG_LEVEL"); val != "" {
		config.Log.Level = val
	}
}
