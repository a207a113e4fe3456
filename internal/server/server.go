// Package server implements the command side of the data library RPC: it
// runs inside the DCC process and answers client requests.
package server

import (
	"context"
	"net"
	"path/filepath"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/berrythewa/datalibrary/internal/host"
	"github.com/berrythewa/datalibrary/internal/ipc"
	"github.com/berrythewa/datalibrary/internal/library"
	"github.com/berrythewa/datalibrary/pkg/utils"
)

// Options configures a Server.
type Options struct {
	// Host is the DCC bridge. Without one only the library commands are
	// served.
	Host host.Host
	// Cache holds the active library.
	Cache *LibraryCache
	// ItemsRoot is the folder holding DCC specific item plugins under
	// dccs/<dcc>/data.
	ItemsRoot string
	Logger    *zap.Logger
}

// Server answers command requests.
type Server struct {
	dispatcher *Dispatcher
	host       host.Host
	cache      *LibraryCache
	itemsRoot  string
	logger     *zap.Logger
}

// New builds a server and registers its command handlers.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Server{
		dispatcher: NewDispatcher(opts.Logger),
		host:       opts.Host,
		cache:      opts.Cache,
		itemsRoot:  opts.ItemsRoot,
		logger:     opts.Logger,
	}

	s.registerLibraryHandlers()
	if s.host != nil {
		s.registerHostHandlers()
	}
	return s
}

// Dispatcher exposes the command router, e.g. to register extra commands.
func (s *Server) Dispatcher() *Dispatcher {
	return s.dispatcher
}

// Handle runs one request. It matches ipc.HandlerFunc.
func (s *Server) Handle(ctx context.Context, req ipc.Request) ipc.Reply {
	return s.dispatcher.Handle(ctx, req)
}

// Serve answers requests arriving on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	return ipc.Serve(ctx, ln, s.Handle, s.logger)
}

// ListenAndServe listens on addr and answers requests until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	return ipc.ListenAndServe(ctx, addr, s.Handle, s.logger)
}

// WatchLibrary re-indexes the folder of the library at libraryPath when
// files below it change, until ctx is done. Syncs run as sync_library
// commands so they share the dispatcher and library cache with clients.
func (s *Server) WatchLibrary(ctx context.Context, libraryPath string, debounce time.Duration) error {
	libraryPath = utils.NormalizePath(libraryPath)
	req := ipc.NewRequest(ipc.CmdSyncLibrary, map[string]interface{}{"library_path": libraryPath})

	return library.WatchTree(ctx, filepath.Dir(libraryPath), debounce, s.logger, func(ctx context.Context) {
		reply := s.Handle(ctx, req)
		if ok, _ := reply.Success(); !ok {
			s.logger.Warn("Library resync failed",
				zap.String("library", libraryPath),
				zap.String("message", reply.Message()))
		}
	}, libraryPath)
}

// Close releases the cached library.
func (s *Server) Close() error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Close()
}

// decodeArgs fills out from request data using mapstructure tags.
func decodeArgs(data ipc.Request, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(map[string]interface{}(data))
}
