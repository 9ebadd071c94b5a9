package eventbridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/collabodraw/live/data/events"
	"github.com/collabodraw/live/internal/dispatch"
	"github.com/collabodraw/live/internal/global"
	jsoniter "github.com/json-iterator/go"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

var encoder = jsoniter.ConfigCompatibleWithStandardLibrary

const commandTimeout = 10 * time.Second

var ErrNoNats = errors.New("eventbridge: nats is not connected")

func handle(gctx global.Context, body []byte) error {
	var cmd events.Command[json.RawMessage]
	if err := encoder.Unmarshal(body, &cmd); err != nil {
		return err
	}

	if !cmd.Action.Valid() {
		return fmt.Errorf("%w: %q", dispatch.ErrUnknownAction, cmd.Action)
	}

	ctx, cancel := global.WithTimeout(gctx, commandTimeout)
	defer cancel()

	return gctx.Inst().Dispatch.Handle(ctx, cmd)
}

// relay delivers an envelope published by another node to this node's connections
func relay(gctx global.Context, channelOf func(subject string) (string, bool), msg *nats.Msg) bool {
	if msg.Subject == gctx.Config().Nats.BridgeSubject {
		return false
	}

	channel, ok := channelOf(msg.Subject)
	if !ok {
		return false
	}

	_ = gctx.Inst().Hub.Publish(gctx, channel, msg.Data)

	return true
}

// The bridge lets other services submit actions over NATS, and relays envelopes published by other nodes
// to this node's websocket connections. Each command is handled by a single node of the queue group.
func New(gctx global.Context) (<-chan struct{}, error) {
	n := gctx.Inst().Nats
	if n == nil {
		return nil, ErrNoNats
	}

	cfg := gctx.Config().Nats

	queue := cfg.BridgeQueue
	if queue == "" {
		queue = "live-bridge"
	}

	envelopes := make(chan *nats.Msg, 16384)
	commands := make(chan *nats.Msg, 1024)

	relaySub, err := n.Conn().ChanSubscribe(n.Wildcard(), envelopes)
	if err != nil {
		return nil, err
	}

	commandSub, err := n.Conn().ChanQueueSubscribe(cfg.BridgeSubject, queue, commands)
	if err != nil {
		_ = relaySub.Unsubscribe()
		return nil, err
	}

	done := make(chan struct{})

	go func() {
		defer close(done)
		defer func() {
			_ = relaySub.Unsubscribe()
			_ = commandSub.Unsubscribe()
		}()

		for {
			select {
			case <-gctx.Done():
				return
			case msg := <-envelopes:
				relay(gctx, n.Channel, msg)
			case msg := <-commands:
				go func(body []byte) {
					err := handle(gctx, body)

					if m := gctx.Inst().Prometheus; m != nil {
						m.BridgeMessage(err == nil)
					}

					if err != nil {
						zap.S().Errorw("event bridge command failed",
							"error", err,
							"msg", string(body),
						)
					}
				}(msg.Data)
			}
		}
	}()

	return done, nil
}
