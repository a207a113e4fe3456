package server

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/berrythewa/datalibrary/internal/ipc"
)

// HandlerFunc runs one command. data is the request without "cmd". The
// handler fills reply; a returned error turns the reply into a failure.
type HandlerFunc func(ctx context.Context, data ipc.Request, reply ipc.Reply) error

// FallbackFunc handles commands with no registered handler. It must
// always set "success".
type FallbackFunc func(ctx context.Context, cmd string, data ipc.Request, reply ipc.Reply) error

// Dispatcher routes requests by command name. Commands run one at a time.
type Dispatcher struct {
	mu       sync.Mutex
	handlers map[string]HandlerFunc
	fallback FallbackFunc
	logger   *zap.Logger
}

// NewDispatcher returns a dispatcher that falls back to BaseFallback.
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		fallback: BaseFallback,
		logger:   logger,
	}
}

// Register binds name to fn, replacing any previous handler.
func (d *Dispatcher) Register(name string, fn HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[name] = fn
}

// SetFallback replaces the handler for unknown commands.
func (d *Dispatcher) SetFallback(fn FallbackFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fallback = fn
}

// Commands returns the registered command names.
func (d *Dispatcher) Commands() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handle runs the handler for req and returns its reply. The reply always
// carries "success".
func (d *Dispatcher) Handle(ctx context.Context, req ipc.Request) ipc.Reply {
	cmd := req.Command()
	data := req.Args()
	reply := ipc.NewReply()

	d.mu.Lock()
	defer d.mu.Unlock()

	start := time.Now()
	err := d.run(ctx, cmd, data, reply)
	if err != nil {
		reply.Fail("%v", err)
	}
	if _, ok := reply.Success(); !ok {
		reply.Fail("command %q did not report a result", cmd)
	}

	success, _ := reply.Success()
	fields := []zap.Field{
		zap.String("cmd", cmd),
		zap.Bool("success", success),
		zap.Duration("took", time.Since(start)),
	}
	if !success {
		d.logger.Info("Command failed", append(fields, zap.String("message", reply.Message()))...)
	} else {
		d.logger.Debug("Command handled", fields...)
	}
	return reply
}

func (d *Dispatcher) run(ctx context.Context, cmd string, data ipc.Request, reply ipc.Reply) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Command handler panicked",
				zap.String("cmd", cmd),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("command %q failed: %v", cmd, r)
		}
	}()

	if handler, ok := d.handlers[cmd]; ok {
		return handler(ctx, data, reply)
	}
	if d.fallback == nil {
		return fmt.Errorf("unknown command %q", cmd)
	}
	return d.fallback(ctx, cmd, data, reply)
}

// BaseFallback answers the generic commands every server understands and
// rejects everything else.
func BaseFallback(ctx context.Context, cmd string, data ipc.Request, reply ipc.Reply) error {
	switch cmd {
	case ipc.CmdPing:
		reply.Succeed("pong")
	case ipc.CmdEcho:
		reply.SucceedWith(map[string]interface{}(data))
	case "":
		reply.Fail("request has no command")
	default:
		reply.Fail("Unknown command %q", cmd)
	}
	return nil
}
