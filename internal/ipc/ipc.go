package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultPort is the service port used by both the Maya and 3ds Max
	// server variants.
	DefaultPort = 28231

	// DefaultHost is the interface the server binds to by default.
	DefaultHost = "127.0.0.1"

	defaultDialTimeout = 5 * time.Second
)

// DefaultAddress is host:port of a server on the local machine.
var DefaultAddress = net.JoinHostPort(DefaultHost, strconv.Itoa(DefaultPort))

// ErrConnect marks failures that happened before the request was written.
// Only those are safe to retry.
var ErrConnect = errors.New("failed to connect to server")

// HandlerFunc serves one decoded request.
type HandlerFunc func(ctx context.Context, req Request) Reply

// SendRequest connects to the server, sends a request, and returns the reply.
func SendRequest(ctx context.Context, addr string, req Request) (Reply, error) {
	if addr == "" {
		addr = DefaultAddress
	}

	dialer := net.Dialer{Timeout: defaultDialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return nil, fmt.Errorf("failed to set deadline: %w", err)
		}
	}

	enc := json.NewEncoder(conn)
	dec := json.NewDecoder(conn)

	if err := enc.Encode(req); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	var reply Reply
	if err := dec.Decode(&reply); err != nil {
		return nil, fmt.Errorf("failed to decode reply: %w", err)
	}
	return reply, nil
}

// ListenAndServe listens on addr and serves requests until ctx is done.
func ListenAndServe(ctx context.Context, addr string, handler HandlerFunc, logger *zap.Logger) error {
	if addr == "" {
		addr = DefaultAddress
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return Serve(ctx, ln, handler, logger)
}

// Serve accepts connections on ln until ctx is done or ln is closed. Each
// connection carries exactly one request and one reply. Serve returns only
// after every accepted connection has been answered.
func Serve(ctx context.Context, ln net.Listener, handler HandlerFunc, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			ln.Close()
		case <-done:
		}
	}()

	logger.Info("Command server listening", zap.String("address", ln.Addr().String()))

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				logger.Info("Command server stopped")
				return nil
			}
			logger.Warn("Failed to accept connection", zap.Error(err))
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			handleConn(ctx, conn, handler, logger)
		}()
	}
}

func handleConn(ctx context.Context, conn net.Conn, handler HandlerFunc, logger *zap.Logger) {
	defer conn.Close()

	// A peer that never sends its request must not hold up shutdown.
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()
	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)

	var req Request
	if err := dec.Decode(&req); err != nil {
		reply := NewReply()
		reply.Fail("invalid request: %v", err)
		if err := enc.Encode(reply); err != nil {
			logger.Debug("Failed to write error reply", zap.Error(err))
		}
		return
	}

	reply := handler(ctx, req)
	if reply == nil {
		reply = NewReply()
		reply.Fail("empty reply")
	}
	if err := enc.Encode(reply); err != nil {
		logger.Warn("Failed to write reply",
			zap.String("cmd", req.Command()),
			zap.Error(err))
	}
}
