package health

import (
	"github.com/collabodraw/live/internal/global"
	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

type Status struct {
	Nats    string `json:"nats,omitempty"`
	Dropped uint64 `json:"dropped_messages"`
}

func check(gCtx global.Context) (Status, bool) {
	var (
		status Status
		ok     = true
	)

	if n := gCtx.Inst().Nats; n != nil {
		status.Nats = "connected"

		if !n.Connected() {
			status.Nats = "disconnected"
			ok = false

			zap.S().Warnw("nats is not connected")
		}
	}

	if h := gCtx.Inst().Hub; h != nil {
		status.Dropped = h.Dropped()
	}

	return status, ok
}

func New(gCtx global.Context) <-chan struct{} {
	done := make(chan struct{})

	srv := fasthttp.Server{
		Handler: func(ctx *fasthttp.RequestCtx) {
			defer func() {
				if err := recover(); err != nil {
					zap.S().Errorw("panic in health",
						"panic", err,
					)
				}
			}()

			status, ok := check(gCtx)
			if !ok {
				ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
			}

			b, _ := jsoniter.Marshal(status)

			ctx.SetContentType("application/json")
			ctx.SetBody(b)
		},
	}

	go func() {
		defer close(done)
		zap.S().Infow("Health enabled",
			"bind", gCtx.Config().Health.Bind,
		)
		if err := srv.ListenAndServe(gCtx.Config().Health.Bind); err != nil {
			zap.S().Fatalw("failed to bind health",
				"error", err,
			)
		}
	}()

	go func() {
		<-gCtx.Done()
		_ = srv.Shutdown()
	}()

	return done
}
