package runtime

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	loggingpkg "github.com/drblury/pubsubflow/internal/runtime/logging"
)

// HandlerContext describes one handler invocation to hooks.
type HandlerContext struct {
	HandlerName     string
	SubscriptionURI string
	MessageUUID     string
	Metadata        message.Metadata
	Context         context.Context
	StartedAt       time.Time
	// Duration is only set for OnDone and OnError.
	Duration time.Duration
}

// HandlerHooks are called around every handler invocation. Nil hooks are skipped.
type HandlerHooks struct {
	OnStart func(HandlerContext)
	OnDone  func(HandlerContext)
	OnError func(HandlerContext, error)
}

// Merge returns hooks that call h first, then other.
func (h HandlerHooks) Merge(other HandlerHooks) HandlerHooks {
	return HandlerHooks{
		OnStart: chainHooks(h.OnStart, other.OnStart),
		OnDone:  chainHooks(h.OnDone, other.OnDone),
		OnError: chainErrorHooks(h.OnError, other.OnError),
	}
}

func chainHooks(a, b func(HandlerContext)) func(HandlerContext) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx HandlerContext) {
		a(ctx)
		b(ctx)
	}
}

func chainErrorHooks(a, b func(HandlerContext, error)) func(HandlerContext, error) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx HandlerContext, err error) {
		a(ctx, err)
		b(ctx, err)
	}
}

func (h HandlerHooks) start(ctx HandlerContext) {
	if h.OnStart != nil {
		h.OnStart(ctx)
	}
}

func (h HandlerHooks) finish(ctx HandlerContext, err error) {
	if err != nil {
		if h.OnError != nil {
			h.OnError(ctx, err)
		}
		return
	}
	if h.OnDone != nil {
		h.OnDone(ctx)
	}
}

// LoggingHooks logs handler completions at debug level and failures at error level.
func LoggingHooks(logger loggingpkg.ServiceLogger) HandlerHooks {
	fields := func(ctx HandlerContext) loggingpkg.LogFields {
		return loggingpkg.LogFields{
			"handler":      ctx.HandlerName,
			"subscription": ctx.SubscriptionURI,
			"message_uuid": ctx.MessageUUID,
			"duration_ms":  ctx.Duration.Milliseconds(),
		}
	}
	return HandlerHooks{
		OnDone: func(ctx HandlerContext) {
			logger.Debug("Handler completed", fields(ctx))
		},
		OnError: func(ctx HandlerContext, err error) {
			logger.Error("Handler failed", err, fields(ctx))
		},
	}
}
