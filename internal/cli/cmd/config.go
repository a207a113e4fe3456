package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/berrythewa/datalibrary/internal/config"
)

// newConfigCmd creates the config command
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage datalibrary configuration",
		Long: `Manage datalibrary configuration:
  • Initialize configuration for first-time setup
  • Show current configuration
  • Edit configuration in your preferred editor
  • Validate configuration syntax`,
		// Config commands must work before a config file exists.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg = config.DefaultConfig()
			return setupLogger()
		},
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigEditCmd())
	cmd.AddCommand(newConfigValidateCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

// activeConfigPath honors --config before the default location.
func activeConfigPath() (string, error) {
	if configFile != "" {
		return configFile, nil
	}
	path, err := config.GetActiveConfigPath()
	if err != nil {
		return "", fmt.Errorf("failed to get active config path: %w", err)
	}
	return path, nil
}

func newConfigInitCmd() *cobra.Command {
	var (
		force   bool
		dccName string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration for first-time setup",
		Long: `Initialize datalibrary configuration with sensible defaults.
This creates the configuration directory structure and a default
configuration file. The server listens on 127.0.0.1:28231 by default.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := activeConfigPath()
			if err != nil {
				return err
			}

			if _, err := os.Stat(configPath); err == nil && !force {
				return fmt.Errorf("configuration already exists at %s\nUse --force to overwrite or 'datalibrary config show' to view current config", configPath)
			}

			cfg := config.DefaultConfig()
			if dccName != "" {
				cfg.DCC.Name = dccName
			}

			logger.Info("Initializing datalibrary configuration",
				zap.String("config_path", configPath),
				zap.String("dcc", cfg.DCC.Name))

			if err := cfg.Save(configPath); err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}

			fmt.Printf("✓ Configuration initialized at: %s\n", configPath)
			fmt.Printf("✓ Data directory: %s\n", cfg.SystemPaths.DataDir)
			fmt.Printf("✓ Default library: %s\n", cfg.Library.DefaultPath)
			fmt.Println("\nTo start the server, run: datalibrary server start")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "force overwrite existing configuration")
	cmd.Flags().StringVar(&dccName, "dcc", "", "DCC the server runs in")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := activeConfigPath()
			if err != nil {
				return err
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if useJSON {
				format = "json"
			}
			switch format {
			case "json":
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			case "yaml":
				data, err := yaml.Marshal(cfg)
				if err != nil {
					return fmt.Errorf("failed to marshal config: %w", err)
				}
				fmt.Println(string(data))
				return nil
			default:
				return fmt.Errorf("unsupported format: %s", format)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "yaml", "output format (yaml or json)")
	return cmd
}

func newConfigEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Edit configuration in your preferred editor",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := activeConfigPath()
			if err != nil {
				return err
			}

			// If config doesn't exist, create with defaults
			if _, err := os.Stat(configPath); os.IsNotExist(err) {
				if err := config.DefaultConfig().Save(configPath); err != nil {
					return fmt.Errorf("failed to create default config: %w", err)
				}
				fmt.Println("Created new configuration file with defaults")
			}

			editor := os.Getenv("EDITOR")
			if editor == "" {
				editor = "vim"
			}

			editorCmd := exec.Command(editor, configPath)
			editorCmd.Stdin = os.Stdin
			editorCmd.Stdout = os.Stdout
			editorCmd.Stderr = os.Stderr

			if err := editorCmd.Run(); err != nil {
				return fmt.Errorf("failed to open editor: %w", err)
			}

			if err := validateConfig(configPath); err != nil {
				fmt.Printf("Warning: Configuration validation failed: %v\n", err)
				fmt.Println("The file has been saved, but may contain errors.")
				return nil
			}

			fmt.Println("Configuration updated and validated successfully")
			return nil
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration syntax",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := activeConfigPath()
			if err != nil {
				return err
			}

			if err := validateConfig(configPath); err != nil {
				return fmt.Errorf("configuration validation failed: %w", err)
			}

			fmt.Println("Configuration is valid")
			return nil
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, err := activeConfigPath()
			if err != nil {
				return err
			}
			fmt.Println(configPath)
			return nil
		},
	}
}

func validateConfig(configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := config.DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("invalid YAML syntax: %w", err)
	}

	return cfg.Validate()
}
