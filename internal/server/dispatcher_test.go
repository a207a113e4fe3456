package server

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berrythewa/datalibrary/internal/ipc"
)

func TestDispatcher(t *testing.T) {
	ctx := context.Background()

	t.Run("RoutesByCommand", func(t *testing.T) {
		d := NewDispatcher(nil)
		var got ipc.Request
		d.Register("greet", func(ctx context.Context, data ipc.Request, reply ipc.Reply) error {
			got = data
			reply.SucceedWith("hello " + data["name"].(string))
			return nil
		})

		reply := d.Handle(ctx, ipc.NewRequest("greet", map[string]interface{}{"name": "bob"}))
		success, ok := reply.Success()
		require.True(t, ok)
		assert.True(t, success)
		result, _ := reply.Result()
		assert.Equal(t, "hello bob", result)

		_, hasCmd := got[ipc.KeyCommand]
		assert.False(t, hasCmd, "handler data must not carry the command")
	})

	t.Run("UnknownCommand", func(t *testing.T) {
		d := NewDispatcher(nil)
		reply := d.Handle(ctx, ipc.NewRequest("does_not_exist", nil))

		success, ok := reply.Success()
		require.True(t, ok)
		assert.False(t, success)
		assert.Equal(t, `Unknown command "does_not_exist"`, reply.Message())
	})

	t.Run("MissingCommand", func(t *testing.T) {
		d := NewDispatcher(nil)
		reply := d.Handle(ctx, ipc.Request{})

		success, _ := reply.Success()
		assert.False(t, success)
		assert.Equal(t, "request has no command", reply.Message())
	})

	t.Run("PingAndEcho", func(t *testing.T) {
		d := NewDispatcher(nil)

		reply := d.Handle(ctx, ipc.NewRequest(ipc.CmdPing, nil))
		result, _ := reply.Result()
		assert.Equal(t, "pong", result)

		reply = d.Handle(ctx, ipc.NewRequest(ipc.CmdEcho, map[string]interface{}{"a": 1}))
		result, _ = reply.Result()
		assert.Equal(t, map[string]interface{}{"a": 1}, result)
	})

	t.Run("HandlerErrorBecomesFailure", func(t *testing.T) {
		d := NewDispatcher(nil)
		d.Register("boom", func(ctx context.Context, data ipc.Request, reply ipc.Reply) error {
			reply.Succeed("partial")
			return errors.New("disk full")
		})

		reply := d.Handle(ctx, ipc.NewRequest("boom", nil))
		success, _ := reply.Success()
		assert.False(t, success)
		assert.Equal(t, "disk full", reply.Message())
		_, hasResult := reply.Result()
		assert.False(t, hasResult)
	})

	t.Run("PanicIsRecovered", func(t *testing.T) {
		d := NewDispatcher(nil)
		d.Register("panic", func(ctx context.Context, data ipc.Request, reply ipc.Reply) error {
			panic("broken handler")
		})

		reply := d.Handle(ctx, ipc.NewRequest("panic", nil))
		success, _ := reply.Success()
		assert.False(t, success)
		assert.Contains(t, reply.Message(), "broken handler")

		// The dispatcher stays usable afterwards.
		reply = d.Handle(ctx, ipc.NewRequest(ipc.CmdPing, nil))
		success, _ = reply.Success()
		assert.True(t, success)
	})

	t.Run("SilentHandlerGetsFailure", func(t *testing.T) {
		d := NewDispatcher(nil)
		d.Register("quiet", func(ctx context.Context, data ipc.Request, reply ipc.Reply) error {
			return nil
		})

		reply := d.Handle(ctx, ipc.NewRequest("quiet", nil))
		success, ok := reply.Success()
		require.True(t, ok)
		assert.False(t, success)
		assert.Contains(t, reply.Message(), "quiet")
	})

	t.Run("CustomFallback", func(t *testing.T) {
		d := NewDispatcher(nil)
		d.SetFallback(func(ctx context.Context, cmd string, data ipc.Request, reply ipc.Reply) error {
			reply.SucceedWith(cmd)
			return nil
		})

		reply := d.Handle(ctx, ipc.NewRequest("anything", nil))
		result, _ := reply.Result()
		assert.Equal(t, "anything", result)
	})

	t.Run("Commands", func(t *testing.T) {
		d := NewDispatcher(nil)
		noop := func(ctx context.Context, data ipc.Request, reply ipc.Reply) error { return nil }
		d.Register("b", noop)
		d.Register("a", noop)
		assert.Equal(t, []string{"a", "b"}, d.Commands())
	})
}
