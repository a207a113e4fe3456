// File: internal/config/config_test.go

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

// useTempPaths points the config hooks at tempDir.
func useTempPaths(t *testing.T, tempDir string) {
	t.Helper()

	origGetConfigPath := getConfigPath
	origGetDefaultDataDir := getDefaultDataDir
	origGenerateServerID := generateServerID
	t.Cleanup(func() {
		getConfigPath = origGetConfigPath
		getDefaultDataDir = origGetDefaultDataDir
		generateServerID = origGenerateServerID
	})

	t.Setenv("DATALIBRARY_CONFIG_DIR", filepath.Join(tempDir, "config"))
	getConfigPath = func() (string, error) {
		return filepath.Join(tempDir, "config.yaml"), nil
	}
	getDefaultDataDir = func() (string, error) {
		return filepath.Join(tempDir, "data"), nil
	}
	generateServerID = func() string {
		return "mock-server-id"
	}
}

func TestLoad(t *testing.T) {
	tempDir := t.TempDir()
	useTempPaths(t, tempDir)

	// Test loading default config when file doesn't exist
	configPath, _ := getConfigPath()
	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if _, err := os.Stat(configPath); err != nil {
		t.Errorf("Load() should write the default config: %v", err)
	}
	if cfg.Server.Port != 28231 {
		t.Errorf("Expected Server.Port 28231, got %d", cfg.Server.Port)
	}
	if cfg.SystemPaths.DataDir != filepath.Join(tempDir, "data") {
		t.Errorf("Expected DataDir %s, got %s", filepath.Join(tempDir, "data"), cfg.SystemPaths.DataDir)
	}
	if cfg.Library.DefaultPath != filepath.Join(tempDir, "data", "library", "data.db") {
		t.Errorf("Unexpected default library path %s", cfg.Library.DefaultPath)
	}
	if cfg.ServerID != "mock-server-id" {
		t.Errorf("Expected ServerID %s, got %s", "mock-server-id", cfg.ServerID)
	}

	// Test loading existing config
	testConfig := DefaultConfig()
	testConfig.ServerID = "existing-server-id"
	testConfig.DCC = DCCConfig{Name: "maya", ItemsRoot: "/opt/items"}
	testConfig.Log.Level = "debug"
	testConfig.Client.RetryDelay = 2 * time.Second
	if err := testConfig.Save(configPath); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	cfg, err = Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if !reflect.DeepEqual(cfg, testConfig) {
		t.Errorf("Loaded config doesn't match saved config. Got %+v, want %+v", cfg, testConfig)
	}
}

func TestLoadPartialConfig(t *testing.T) {
	tempDir := t.TempDir()
	useTempPaths(t, tempDir)

	configPath, _ := getConfigPath()
	if err := os.WriteFile(configPath, []byte("dcc:\n  name: max\nserver:\n  port: 9000\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.DCC.Name != "max" || cfg.Server.Port != 9000 {
		t.Errorf("File values not applied: %+v", cfg)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Expected default host, got %s", cfg.Server.Host)
	}
	if cfg.Client.Retries != 3 {
		t.Errorf("Expected default retries, got %d", cfg.Client.Retries)
	}
}

func TestSave(t *testing.T) {
	tempDir := t.TempDir()
	useTempPaths(t, tempDir)

	testConfig := &Config{
		ServerID: "test-server",
		Server:   ServerConfig{Host: "0.0.0.0", Port: 28231},
		Library: LibraryConfig{
			DefaultPath:   "/libs/main/data.db",
			WatchDebounce: time.Second,
		},
		Log: LogConfig{
			Level: "debug",
		},
	}

	configPath := filepath.Join(tempDir, "nested", "config.yaml")
	if err := testConfig.Save(configPath); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	file, err := os.Open(configPath)
	if err != nil {
		t.Fatalf("Failed to open saved config: %v", err)
	}
	defer file.Close()

	var loadedConfig Config
	if err := yaml.NewDecoder(file).Decode(&loadedConfig); err != nil {
		t.Fatalf("Failed to decode saved config: %v", err)
	}

	if !reflect.DeepEqual(testConfig, &loadedConfig) {
		t.Errorf("Saved config doesn't match original. Got %+v, want %+v", loadedConfig, testConfig)
	}
}

func TestLoadConfigErrorHandling(t *testing.T) {
	tempDir := t.TempDir()
	useTempPaths(t, tempDir)

	// Test loading malformed config
	configPath, _ := getConfigPath()
	if err := os.WriteFile(configPath, []byte("invalid yaml"), 0644); err != nil {
		t.Fatalf("Failed to write invalid config: %v", err)
	}
	if _, err := Load(configPath); err == nil {
		t.Error("Load() should fail with invalid YAML")
	}

	// Test out of range port
	if err := os.WriteFile(configPath, []byte("server:\n  port: 70000\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := Load(configPath); err == nil {
		t.Error("Load() should fail with an invalid port")
	}

	// Test invalid env override on first run
	t.Setenv("DATALIBRARY_PORT", "99999")
	if _, err := Load(filepath.Join(tempDir, "fresh", "config.yaml")); err == nil {
		t.Error("Load() should validate a freshly created config")
	}
	os.Unsetenv("DATALIBRARY_PORT")

	// Test error in getConfigPath
	getConfigPath = func() (string, error) {
		return "", os.ErrPermission
	}
	if _, err := Load(""); err == nil {
		t.Error("Load() should fail when getConfigPath fails")
	}
}

func TestOverrideFromEnv(t *testing.T) {
	tempDir := t.TempDir()
	useTempPaths(t, tempDir)

	t.Setenv("DATALIBRARY_HOST", "10.0.0.5")
	t.Setenv("DATALIBRARY_PORT", "4000")
	t.Setenv("DATALIBRARY_DCC", "maya")
	t.Setenv("DATALIBRARY_ITEMS_ROOT", "/opt/items")
	t.Setenv("DATALIBRARY_LOG_LEVEL", "warn")

	configPath, _ := getConfigPath()
	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if got := cfg.Server.Address(); got != "10.0.0.5:4000" {
		t.Errorf("Expected address 10.0.0.5:4000, got %s", got)
	}
	if cfg.DCC.Name != "maya" || cfg.DCC.ItemsRoot != "/opt/items" {
		t.Errorf("DCC overrides not applied: %+v", cfg.DCC)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Expected log level warn, got %s", cfg.Log.Level)
	}

	// A bad port is ignored.
	t.Setenv("DATALIBRARY_PORT", "not-a-port")
	cfg, err = Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Server.Port != 28231 {
		t.Errorf("Expected default port, got %d", cfg.Server.Port)
	}
}

func TestOverrideDataDir(t *testing.T) {
	tempDir := t.TempDir()
	useTempPaths(t, tempDir)

	configPath, _ := getConfigPath()
	if err := DefaultConfig().Save(configPath); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	dataDir := filepath.Join(tempDir, "elsewhere")
	t.Setenv("DATALIBRARY_DATA_DIR", dataDir)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	wantLibrary := filepath.Join(dataDir, "library", "data.db")
	if cfg.SystemPaths.DataDir != dataDir {
		t.Errorf("Expected data dir %s, got %s", dataDir, cfg.SystemPaths.DataDir)
	}
	if want := filepath.Join(dataDir, "logs"); cfg.SystemPaths.LogDir != want {
		t.Errorf("Expected log dir %s, got %s", want, cfg.SystemPaths.LogDir)
	}
	if cfg.SystemPaths.LibraryFile != wantLibrary {
		t.Errorf("Expected library file %s, got %s", wantLibrary, cfg.SystemPaths.LibraryFile)
	}
	if cfg.Library.DefaultPath != wantLibrary {
		t.Errorf("Expected default library %s, got %s", wantLibrary, cfg.Library.DefaultPath)
	}
}

func TestRebase(t *testing.T) {
	tests := []struct {
		path, from, to, want string
	}{
		{"/data/logs", "/data", "/new", "/new/logs"},
		{"/data", "/data", "/new", "/new"},
		{"/other/lib.db", "/data", "/new", "/other/lib.db"},
		{"", "/data", "/new", ""},
	}
	for _, tt := range tests {
		if got := rebase(tt.path, tt.from, tt.to); got != tt.want {
			t.Errorf("rebase(%q, %q, %q) = %q, want %q", tt.path, tt.from, tt.to, got, tt.want)
		}
	}
}
