package dispatch

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"relaybot/internal/command"
	"relaybot/internal/event"
	logx "relaybot/pkg/logx"
)

type Middleware func(next command.HandlerFunc) command.HandlerFunc

// Chain wraps h so that m[0] runs first.
func Chain(h command.HandlerFunc, m ...Middleware) command.HandlerFunc {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

func Timeout(d time.Duration) Middleware {
	return func(next command.HandlerFunc) command.HandlerFunc {
		return func(ctx context.Context, inv event.Invocation) error {
			if d <= 0 {
				return next(ctx, inv)
			}
			cctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(cctx, inv)
		}
	}
}

// Recover turns a handler panic into an error.
func Recover(log logx.Logger) Middleware {
	return func(next command.HandlerFunc) command.HandlerFunc {
		return func(ctx context.Context, inv event.Invocation) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic recovered", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
					err = fmt.Errorf("panic: %v", r)
				}
			}()
			return next(ctx, inv)
		}
	}
}

func RequestLog(log logx.Logger, meta *command.Meta) Middleware {
	return func(next command.HandlerFunc) command.HandlerFunc {
		return func(ctx context.Context, inv event.Invocation) error {
			start := time.Now()
			err := next(ctx, inv)
			d := time.Since(start)

			fields := []logx.Field{
				logx.String("cmd", meta.Name),
				logx.String("group", meta.Group),
				logx.String("via", inv.Kind().String()),
				logx.String("user_id", inv.User().ID),
				logx.String("channel_id", inv.Channel()),
				logx.Duration("dur", d),
			}
			switch {
			case err != nil:
				log.Warn("command failed", append(fields, logx.Err(err))...)
			case d >= 750*time.Millisecond:
				log.Info("command ok", fields...)
			default:
				log.Debug("command ok", fields...)
			}
			return err
		}
	}
}
