package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/collabodraw/live/data/events"
	"github.com/collabodraw/live/data/model"
	"github.com/collabodraw/live/internal/global"
	"github.com/collabodraw/live/internal/svc/broadcast"
	"github.com/fasthttp/websocket"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/seventv/common/utils"
	"go.uber.org/zap"
)

var encoder = jsoniter.ConfigCompatibleWithStandardLibrary

const writeWait = 10 * time.Second

type conn struct {
	gctx  global.Context
	ws    *websocket.Conn
	id    string
	actor model.Identity

	heartbeat time.Duration
	out       chan events.Message[json.RawMessage]
	closeOnce sync.Once

	mx   sync.Mutex
	subs map[model.BoardID]*boardSubscription
	seq  uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type boardSubscription struct {
	cancel context.CancelFunc
}

func newConn(gctx global.Context, ws *websocket.Conn, actor model.Identity) *conn {
	heartbeat := gctx.Config().Http.WS.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}

	buffer := gctx.Config().Http.WS.SendBuffer
	if buffer <= 0 {
		buffer = 256
	}

	ctx, cancel := context.WithCancel(gctx)

	return &conn{
		gctx:      gctx,
		ws:        ws,
		id:        uuid.NewString(),
		actor:     actor,
		heartbeat: heartbeat,
		out:       make(chan events.Message[json.RawMessage], buffer),
		subs:      map[model.BoardID]*boardSubscription{},
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (c *conn) run() {
	if m := c.gctx.Inst().Prometheus; m != nil {
		m.ConnectionOpened()
		defer m.ConnectionClosed()
	}

	c.wg.Add(1)

	go c.writeLoop()

	hello := events.HelloPayload{
		HeartbeatInterval: uint32(c.heartbeat / time.Millisecond),
		SessionID:         c.id,
	}

	if c.actor.Known() {
		hello.Actor = &events.IdentityPayload{
			UserID:   int64(c.actor.UserID),
			Username: c.actor.Username,
		}
	}

	c.send(events.NewMessage(events.OpcodeHello, hello).ToRaw())

	c.readLoop()

	c.cancel()
	c.wg.Wait()

	_ = c.ws.Close()
}

func (c *conn) readLoop() {
	_ = c.ws.SetReadDeadline(time.Now().Add(c.heartbeat * 3))

	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.heartbeat * 3))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && c.ctx.Err() == nil {
				zap.S().Debugw("websocket read failed",
					"error", err,
					"connection_id", c.id,
				)
			}

			return
		}

		_ = c.ws.SetReadDeadline(time.Now().Add(c.heartbeat * 3))

		var msg events.Message[json.RawMessage]
		if err := encoder.Unmarshal(data, &msg); err != nil {
			c.close(events.CloseCodeInvalidPayload)
			return
		}

		if !c.handle(msg) {
			return
		}
	}
}

// handle returns false when the connection must end
func (c *conn) handle(msg events.Message[json.RawMessage]) bool {
	switch msg.Op {
	case events.OpcodeHeartbeat:
		c.send(events.NewMessage(events.OpcodeHeartbeat, json.RawMessage("{}")).ToRaw())
	case events.OpcodeSubscribe:
		m, err := events.ConvertMessage[events.SubscribePayload](msg)
		if err != nil {
			c.close(events.CloseCodeInvalidPayload)
			return false
		}

		c.subscribe(model.BoardID(m.Data.BoardID))
	case events.OpcodeUnsubscribe:
		m, err := events.ConvertMessage[events.SubscribePayload](msg)
		if err != nil {
			c.close(events.CloseCodeInvalidPayload)
			return false
		}

		c.unsubscribe(model.BoardID(m.Data.BoardID))
		c.ack("unsubscribe", m.Data)
	case events.OpcodeAction:
		m, err := events.ConvertMessage[events.ActionPayload](msg)
		if err != nil {
			c.close(events.CloseCodeInvalidPayload)
			return false
		}

		c.action(m.Data)
	default:
		c.close(events.CloseCodeUnknownOperation)
		return false
	}

	return true
}

func (c *conn) subscribe(boardID model.BoardID) {
	if err := c.gctx.Inst().Dispatch.Authorize(c.ctx, boardID, c.actor); err != nil {
		c.sendError(err.Error())
		return
	}

	hub := c.gctx.Inst().Hub

	c.mx.Lock()
	_, exists := c.subs[boardID]

	if !exists {
		ctx, cancel := context.WithCancel(c.ctx)
		c.subs[boardID] = &boardSubscription{cancel: cancel}

		for _, channel := range c.gctx.Inst().Dispatch.Channels(boardID) {
			sub := hub.Subscribe(channel, cap(c.out))

			c.wg.Add(1)

			go c.forward(ctx, sub.C(), sub.Unsubscribe)
		}
	}
	c.mx.Unlock()

	c.ack("subscribe", events.SubscribePayload{BoardID: int64(boardID)})
}

func (c *conn) unsubscribe(boardID model.BoardID) {
	c.mx.Lock()
	defer c.mx.Unlock()

	if s, ok := c.subs[boardID]; ok {
		s.cancel()
		delete(c.subs, boardID)
	}
}

func (c *conn) forward(ctx context.Context, ch <-chan broadcast.Message, unsubscribe func()) {
	defer c.wg.Done()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}

			c.send(events.NewMessage(events.OpcodeDispatch, events.DispatchPayload{
				Channel: m.Channel,
				Body:    m.Payload,
			}).ToRaw())
		}
	}
}

func (c *conn) action(p events.ActionPayload) {
	if !p.Action.Valid() {
		c.sendError("unknown action " + string(p.Action))
		return
	}

	cmd := events.Command[json.RawMessage]{
		Action:       p.Action,
		BoardID:      model.BoardID(p.BoardID),
		Actor:        c.actor,
		ConnectionID: c.id,
		Body:         p.Body,
	}

	if err := c.gctx.Inst().Dispatch.Handle(c.ctx, cmd); err != nil {
		c.sendError(err.Error())
		return
	}

	c.ack(string(p.Action), events.SubscribePayload{BoardID: p.BoardID})
}

func (c *conn) ack(command string, data any) {
	b, _ := encoder.Marshal(data)

	c.send(events.NewMessage(events.OpcodeAck, events.AckPayload{
		Command: command,
		Data:    b,
	}).ToRaw())
}

func (c *conn) sendError(message string) {
	c.send(events.NewMessage(events.OpcodeError, events.ErrorPayload{
		Message: message,
	}).ToRaw())
}

// send queues a frame. A connection too slow to drain its queue loses the frame.
func (c *conn) send(msg events.Message[json.RawMessage]) {
	c.mx.Lock()
	c.seq++
	msg.Sequence = c.seq
	c.mx.Unlock()

	select {
	case c.out <- msg:
	case <-c.ctx.Done():
	default:
		zap.S().Debugw("dropped frame for slow connection",
			"connection_id", c.id,
			"op", msg.Op.String(),
		)
	}
}

func (c *conn) close(code events.CloseCode) {
	c.writeClose(code)
	c.cancel()
}

func (c *conn) writeLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			c.writeClose(utils.Ternary(c.gctx.Err() != nil, events.CloseCodeRestart, 0))

			// give the peer a moment to answer the close frame
			_ = c.ws.SetReadDeadline(time.Now().Add(writeWait))

			return
		case msg := <-c.out:
			b, err := encoder.Marshal(msg)
			if err != nil {
				zap.S().Errorw("failed to encode frame",
					"error", err,
					"op", msg.Op.String(),
				)

				continue
			}

			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
				c.cancel()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.cancel()
				return
			}

			c.send(events.NewMessage(events.OpcodeHeartbeat, json.RawMessage("{}")).ToRaw())
		}
	}
}

// writeClose sends the close frame once, code 0 means a normal closure
func (c *conn) writeClose(code events.CloseCode) {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if code != 0 {
			msg = websocket.FormatCloseMessage(int(code), code.String())
		}

		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	})
}
