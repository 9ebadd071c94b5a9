package ws

import (
	"fmt"
	"net"
	"time"

	"github.com/collabodraw/live/data/model"
	"github.com/collabodraw/live/internal/api/rest/rest"
	"github.com/collabodraw/live/internal/global"
	"github.com/collabodraw/live/internal/middleware"
	"github.com/fasthttp/websocket"
	"github.com/seventv/common/errors"
	"github.com/seventv/common/utils"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

type Server struct {
	gctx     global.Context
	upgrader websocket.FastHTTPUpgrader
	doAuth   middleware.Middleware
}

func New(gctx global.Context) error {
	port := gctx.Config().Http.Ports.WS
	if port == 0 {
		port = 3001
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", gctx.Config().Http.Addr, port))
	if err != nil {
		return err
	}

	return Serve(gctx, ln)
}

// Serve accepts websocket connections on ln until the global context is canceled
func Serve(gctx global.Context, ln net.Listener) error {
	s := &Server{
		gctx: gctx,
		upgrader: websocket.FastHTTPUpgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin(gctx),
		},
		doAuth: middleware.Auth(gctx),
	}

	srv := &fasthttp.Server{
		Handler:            s.handler,
		ReadTimeout:        time.Second * 30,
		MaxRequestBodySize: int(4 * 1024),
		CloseOnShutdown:    true,
	}

	go func() {
		<-gctx.Done()

		_ = srv.Shutdown()
	}()

	return srv.Serve(ln)
}

func checkOrigin(gctx global.Context) func(ctx *fasthttp.RequestCtx) bool {
	return func(ctx *fasthttp.RequestCtx) bool {
		allowed := gctx.Config().Http.AllowedOrigins
		if len(allowed) == 0 {
			return true
		}

		origin := utils.B2S(ctx.Request.Header.Peek("Origin"))

		return origin == "" || utils.Contains(allowed, origin)
	}
}

func (s *Server) handler(ctx *fasthttp.RequestCtx) {
	if !websocket.FastHTTPIsWebSocketUpgrade(ctx) {
		writeError(ctx, errors.ErrInvalidRequest().SetDetail("Expected a websocket upgrade"))
		return
	}

	if err := s.doAuth(ctx); err != nil {
		writeError(ctx, err)
		return
	}

	actor, _ := ctx.UserValue(string(rest.ActorKey)).(model.Identity)
	ip := ctx.RemoteIP().String()

	err := s.upgrader.Upgrade(ctx, func(c *websocket.Conn) {
		conn := newConn(s.gctx, c, actor)

		zap.S().Debugw("websocket connected",
			"connection_id", conn.id,
			"user_id", actor.UserID,
			"ip", ip,
		)

		conn.run()

		zap.S().Debugw("websocket disconnected",
			"connection_id", conn.id,
			"user_id", actor.UserID,
		)
	})
	if err != nil {
		zap.S().Debugw("websocket upgrade failed",
			"error", err,
			"ip", ip,
		)
	}
}

func writeError(ctx *fasthttp.RequestCtx, err errors.APIError) {
	status := rest.HttpStatusCode(err.ExpectedHTTPStatus())

	b, _ := encoder.Marshal(rest.APIErrorResponse{
		Status:     status.String(),
		StatusCode: status,
		Error:      err.Message(),
		ErrorCode:  err.Code(),
		Details:    err.GetFields(),
	})

	ctx.SetStatusCode(int(status))
	ctx.SetContentType("application/json")
	ctx.SetBody(b)
}
