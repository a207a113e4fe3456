package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/berrythewa/datalibrary/internal/common"
	"github.com/berrythewa/datalibrary/internal/config"
)

var (
	// Global flags
	configFile string
	verbose    bool
	quiet      bool
	useJSON    bool
	noColor    bool
	detailed   bool
)

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "datalibrary",
		Short: "Data library command server and client for DCC applications",
		Long: `datalibrary lets an asset browser drive a DCC application:
  • A command server runs inside or next to the DCC host
  • Clients save, load, import and reference library data items through it
  • Libraries are indexed folders backed by a small embedded database`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is $HOME/.config/datalibrary/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "minimize output")
	rootCmd.PersistentFlags().BoolVar(&useJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&detailed, "detailed", false, "show item ids, dependencies and metadata")

	rootCmd.AddCommand(
		newServerCmd(),
		newClientCmd(),
		newLibraryCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the command line.
func Execute() error {
	return newRootCmd().Execute()
}

func setup() error {
	loaded, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg = loaded

	return setupLogger()
}

func setupLogger() error {
	switch {
	case verbose:
		cfg.Log.Level = "debug"
	case quiet:
		cfg.Log.Level = "warn"
	}

	var err error
	logger, err = common.NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Debug("Configuration loaded",
		zap.String("server_id", cfg.ServerID),
		zap.String("dcc", cfg.DCC.Name),
		zap.String("address", cfg.Server.Address()))
	return nil
}
