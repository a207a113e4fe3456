package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/berrythewa/datalibrary/internal/host/standalone"
	"github.com/berrythewa/datalibrary/internal/library"
	"github.com/berrythewa/datalibrary/internal/server"
)

func newServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the data library command server",
		Long: `Run the command server that answers data library requests.

Without a DCC integration the server drives a standalone in-process scene,
which is enough to index, save and load library items from scripts.`,
	}

	cmd.AddCommand(newServerStartCmd())
	return cmd
}

func newServerStartCmd() *cobra.Command {
	var (
		addr      string
		dccName   string
		itemsRoot string
		watch     string
		noHost    bool
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the server in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = cfg.Server.Address()
			}
			if dccName == "" {
				dccName = cfg.DCC.Name
			}
			if itemsRoot == "" {
				itemsRoot = cfg.DCC.ItemsRoot
			}
			if watch == "" && cfg.Library.Watch {
				watch = cfg.Library.DefaultPath
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServer(ctx, serverParams{
				addr:      addr,
				dccName:   dccName,
				itemsRoot: itemsRoot,
				watch:     watch,
				noHost:    noHost,
			})
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (default from config, port 28231)")
	cmd.Flags().StringVar(&dccName, "dcc", "", "DCC name used to locate item plugins")
	cmd.Flags().StringVar(&itemsRoot, "items-root", "", "folder holding dccs/<dcc>/data item plugins")
	cmd.Flags().StringVarP(&watch, "watch", "w", "", "library file whose folder is re-indexed on change")
	cmd.Flags().BoolVar(&noHost, "no-host", false, "serve only the library commands")
	return cmd
}

type serverParams struct {
	addr      string
	dccName   string
	itemsRoot string
	watch     string
	noHost    bool
}

func runServer(ctx context.Context, p serverParams) error {
	opts := library.Options{
		Logger:  logger.Named("library"),
		Timeout: cfg.Library.OpenTimeout,
	}

	srvOpts := server.Options{
		ItemsRoot: p.itemsRoot,
		Logger:    logger.Named("server"),
	}
	if !p.noHost {
		scene := standalone.New(p.dccName, logger.Named("host"))
		opts.Host = scene
		srvOpts.Host = scene
	}
	srvOpts.Cache = server.NewLibraryCache(func(path string) (*library.Library, error) {
		return library.Load(path, opts)
	}, logger.Named("cache"))

	srv := server.New(srvOpts)
	defer srv.Close()

	logger.Info("Starting data library server",
		zap.String("server_id", cfg.ServerID),
		zap.String("addr", p.addr),
		zap.String("dcc", p.dccName),
		zap.Bool("host", !p.noHost),
		zap.Strings("commands", srv.Dispatcher().Commands()))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(ctx, p.addr)
	})

	if p.watch != "" {
		g.Go(func() error {
			return srv.WatchLibrary(ctx, p.watch, cfg.Library.WatchDebounce)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped", zap.Error(err))
		return err
	}
	logger.Info("Server stopped")
	return nil
}
