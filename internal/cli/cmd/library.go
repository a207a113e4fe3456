package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/berrythewa/datalibrary/internal/library"
	"github.com/berrythewa/datalibrary/internal/types"
)

// newLibraryCmd works on library files directly, without a server. A
// library opened by a running server is locked until the server switches
// to another library.
func newLibraryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "library",
		Short: "Manage data libraries without a server",
	}

	cmd.AddCommand(
		newLibraryInitCmd(),
		newLibrarySyncCmd(),
		newLibraryListCmd(),
		newLibraryWatchCmd(),
	)
	return cmd
}

// libraryPath returns the argument or the configured default library.
func libraryPath(args []string) string {
	if len(args) > 0 {
		return abs(args[0])
	}
	return cfg.Library.DefaultPath
}

func openLibrary(path string) (*library.Library, error) {
	return library.Load(path, library.Options{
		Logger:  logger.Named("library"),
		Timeout: cfg.Library.OpenTimeout,
	})
}

func newLibraryInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [library]",
		Short: "Create a library database and index its folder",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := openLibrary(libraryPath(args))
			if err != nil {
				return err
			}
			defer lib.Close()

			count, err := lib.Sync(cmd.Context(), "")
			if err != nil {
				return err
			}
			info, err := lib.Info()
			if err != nil {
				return err
			}

			fmt.Printf("✓ Library %s\n", lib.Identifier())
			fmt.Printf("✓ ID: %s\n", info.ID)
			fmt.Printf("✓ Indexed %d items under %s\n", count, lib.Root())
			fmt.Printf("✓ Extensions: %s\n", strings.Join(lib.Registry().Extensions(), " "))
			return nil
		},
	}
}

func newLibrarySyncCmd() *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:   "sync [library]",
		Short: "Re-index a library folder",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := openLibrary(libraryPath(args))
			if err != nil {
				return err
			}
			defer lib.Close()

			count, err := lib.Sync(cmd.Context(), abs(root))
			if err != nil {
				return err
			}
			fmt.Printf("Indexed %d items (%s)\n", count, strings.Join(lib.Registry().Extensions(), " "))
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "folder to index (default is the library folder)")
	return cmd
}

func newLibraryListCmd() *cobra.Command {
	var kind, capability string

	cmd := &cobra.Command{
		Use:   "list [library]",
		Short: "List the items recorded in a library",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := openLibrary(libraryPath(args))
			if err != nil {
				return err
			}
			defer lib.Close()

			records, err := lib.Records()
			if err != nil {
				return err
			}

			out := make([]types.ItemRecord, 0, len(records))
			for _, rec := range records {
				out = append(out, *rec)
			}
			out, err = filterRecords(out, kind, capability)
			if err != nil {
				return err
			}
			return printRecords(out)
		},
	}

	cmd.Flags().StringVarP(&kind, "kind", "k", "", "only list items of this kind")
	cmd.Flags().StringVar(&capability, "capability", "", "only list items supporting this operation")
	return cmd
}

// filterRecords keeps the records matching kind and capability. Empty
// filters match everything.
func filterRecords(records []types.ItemRecord, kind, capability string) ([]types.ItemRecord, error) {
	var want types.Capability
	if capability != "" {
		c, ok := types.ParseCapability(capability)
		if !ok {
			return nil, fmt.Errorf("unknown capability %q", capability)
		}
		want = c
	}

	out := make([]types.ItemRecord, 0, len(records))
	for _, rec := range records {
		if kind != "" && string(rec.Kind) != kind {
			continue
		}
		if want != "" && !slices.Contains(rec.Capabilities, string(want)) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func newLibraryWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch [library]",
		Short: "Keep a library index up to date until interrupted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := openLibrary(libraryPath(args))
			if err != nil {
				return err
			}
			defer lib.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if _, err := lib.Sync(ctx, ""); err != nil {
				return err
			}
			logger.Info("Running until interrupted, press Ctrl+C to stop",
				zap.String("library", lib.Identifier()))
			return lib.Watch(ctx, "", cfg.Library.WatchDebounce)
		},
	}
}
