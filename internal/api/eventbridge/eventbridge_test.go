package eventbridge

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/collabodraw/live/data/model"
	"github.com/collabodraw/live/internal/configure"
	"github.com/collabodraw/live/internal/dispatch"
	"github.com/collabodraw/live/internal/global"
	"github.com/collabodraw/live/internal/svc/broadcast"
	"github.com/collabodraw/live/internal/svc/cursors"
	"github.com/collabodraw/live/internal/svc/eventlog"
	"github.com/collabodraw/live/internal/svc/sessions"
	"github.com/collabodraw/live/internal/testutil"
	"github.com/nats-io/nats.go"
)

func newContext(t *testing.T) (global.Context, *broadcast.MockInstance) {
	t.Helper()

	config := configure.Default()
	gctx := global.New(context.Background(), &config)

	bus := broadcast.NewMock()

	d, err := dispatch.New(dispatch.Options{
		Sessions:  sessions.New(sessions.Options{}),
		Cursors:   cursors.New(cursors.Options{}),
		EventLog:  eventlog.New(eventlog.Options{}),
		Broadcast: bus,
	})
	testutil.IsNil(t, err, "dispatcher")

	gctx.Inst().Dispatch = d

	return gctx, bus
}

func TestHandleCommand(t *testing.T) {
	gctx, bus := newContext(t)

	err := handle(gctx, []byte(`{"action":"join","board_id":4,"actor":{"userId":9,"username":"remote"}}`))
	testutil.IsNil(t, err, "join")

	err = handle(gctx, []byte(`{"action":"cursor","board_id":4,"actor":{"userId":9,"username":"remote"},"body":{"x":3,"y":4}}`))
	testutil.IsNil(t, err, "cursor")

	testutil.AssertSlice(t, []model.Participant{{UserID: 9, Username: "remote"}}, gctx.Inst().Dispatch.Participants(4), "joined")
	testutil.Assert(t, 1, len(bus.Messages("board.4.cursors")), "cursor broadcast")
}

func TestHandleBadCommand(t *testing.T) {
	gctx, bus := newContext(t)

	testutil.IsNotNil(t, handle(gctx, []byte(`not json`)), "malformed")
	err := handle(gctx, []byte(`{"action":"shout","board_id":4}`))
	testutil.Assert(t, true, errors.Is(err, dispatch.ErrUnknownAction), "unknown action")
	testutil.Assert(t, 0, len(bus.Channels()), "nothing broadcast")
}

func TestNewWithoutNats(t *testing.T) {
	gctx, _ := newContext(t)

	_, err := New(gctx)
	testutil.Assert(t, ErrNoNats, err, "nats required")
}

func TestRelay(t *testing.T) {
	gctx, _ := newContext(t)

	hub := broadcast.NewHub()
	gctx.Inst().Hub = hub

	sub := hub.Subscribe("board.1.elements", 4)
	defer sub.Unsubscribe()

	channelOf := func(subject string) (string, bool) {
		if !strings.HasPrefix(subject, "live.") {
			return "", false
		}

		return strings.TrimPrefix(subject, "live."), true
	}

	ok := relay(gctx, channelOf, &nats.Msg{Subject: "live.board.1.elements", Data: []byte(`{"type":"element"}`)})
	testutil.Assert(t, true, ok, "relayed")

	select {
	case msg := <-sub.C():
		testutil.Assert(t, "board.1.elements", msg.Channel, "channel")
		testutil.Assert(t, `{"type":"element"}`, string(msg.Payload), "payload")
	case <-time.After(time.Second):
		t.Fatal("envelope was not relayed to the hub")
	}

	ok = relay(gctx, channelOf, &nats.Msg{Subject: gctx.Config().Nats.BridgeSubject, Data: []byte(`{}`)})
	testutil.Assert(t, false, ok, "commands are not relayed")

	ok = relay(gctx, channelOf, &nats.Msg{Subject: "other.board.1.elements", Data: []byte(`{}`)})
	testutil.Assert(t, false, ok, "outside the prefix")

	testutil.Assert(t, 0, len(sub.C()), "nothing else delivered")
}
