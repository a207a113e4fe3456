// Package client provides typed wrappers around the data library commands.
package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/berrythewa/datalibrary/internal/ipc"
)

const (
	defaultRetries    = 3
	defaultRetryDelay = 500 * time.Millisecond
)

// Sender delivers one request and returns the raw reply.
type Sender interface {
	Send(ctx context.Context, req ipc.Request) (ipc.Reply, error)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, req ipc.Request) (ipc.Reply, error)

func (f SenderFunc) Send(ctx context.Context, req ipc.Request) (ipc.Reply, error) {
	return f(ctx, req)
}

type tcpSender struct {
	addr string
}

func (s tcpSender) Send(ctx context.Context, req ipc.Request) (ipc.Reply, error) {
	return ipc.SendRequest(ctx, s.addr, req)
}

// Option configures a Client.
type Option func(*Client)

// WithRetries sets how many times a request is attempted before giving up.
func WithRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.retries = n
		}
	}
}

// WithRetryDelay sets the pause between attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.retryDelay = d
		}
	}
}

// WithTimeout bounds each attempt. Zero, the default, blocks until the
// server replies. A request that timed out after being written is not
// retried, so the server may still complete it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client sends commands to a data library server.
type Client struct {
	sender     Sender
	retries    int
	retryDelay time.Duration
	timeout    time.Duration
	logger     *zap.Logger
}

// New returns a client talking TCP to addr. An empty addr means the
// server on the local machine.
func New(addr string, opts ...Option) *Client {
	if addr == "" {
		addr = ipc.DefaultAddress
	}
	return NewWithSender(tcpSender{addr: addr}, opts...)
}

// NewWithSender returns a client using sender as its transport.
func NewWithSender(sender Sender, opts ...Option) *Client {
	c := &Client{
		sender:     sender,
		retries:    defaultRetries,
		retryDelay: defaultRetryDelay,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// send delivers req, retrying only failures to reach the server. Once a
// request is written it is never sent again, so mutating commands run at
// most once.
func (c *Client) send(ctx context.Context, req ipc.Request) (ipc.Reply, error) {
	var lastErr error
	for i := 0; i < c.retries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}

		reply, err := c.attempt(ctx, req)
		if err == nil {
			return reply, nil
		}
		if !errors.Is(err, ipc.ErrConnect) {
			return nil, err
		}
		lastErr = err
		c.logger.Debug("Request attempt failed",
			zap.String("cmd", req.Command()),
			zap.Int("attempt", i+1),
			zap.Error(err))
	}
	return nil, fmt.Errorf("failed after %d retries: %w", c.retries, lastErr)
}

func (c *Client) attempt(ctx context.Context, req ipc.Request) (ipc.Reply, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.sender.Send(ctx, req)
}

// call sends cmd and decodes the reply.
func (c *Client) call(ctx context.Context, cmd string, args map[string]interface{}) (Result, error) {
	reply, err := c.send(ctx, ipc.NewRequest(cmd, args))
	if err != nil {
		return Result{}, err
	}

	result, ok := decodeReply(reply)
	if !ok {
		c.logger.Warn("Invalid reply from server", zap.String("cmd", cmd), zap.Any("reply", reply))
	}
	return result, nil
}
