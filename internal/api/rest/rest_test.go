package rest

import (
	"context"
	stdjson "encoding/json"
	"net"
	"testing"
	"time"

	"github.com/collabodraw/live/data/events"
	"github.com/collabodraw/live/data/model"
	"github.com/collabodraw/live/internal/api/rest/rest"
	"github.com/collabodraw/live/internal/configure"
	"github.com/collabodraw/live/internal/dispatch"
	"github.com/collabodraw/live/internal/global"
	"github.com/collabodraw/live/internal/svc/access"
	"github.com/collabodraw/live/internal/svc/auth"
	"github.com/collabodraw/live/internal/svc/broadcast"
	"github.com/collabodraw/live/internal/svc/cursors"
	"github.com/collabodraw/live/internal/svc/eventlog"
	"github.com/collabodraw/live/internal/svc/sessions"
	"github.com/collabodraw/live/internal/testutil"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

var alice = model.Identity{UserID: 1, Username: "alice"}

type onlyBoard7 struct{}

func (onlyBoard7) CanRead(ctx context.Context, boardID model.BoardID, user model.Identity) (bool, error) {
	return boardID == 7, nil
}

type server struct {
	gctx   global.Context
	client *fasthttp.Client
	token  string
}

func newServer(t *testing.T) *server {
	t.Helper()

	config := configure.Default()

	gctx, cancel := global.WithCancel(global.New(context.Background(), &config))

	inst := gctx.Inst()
	inst.Sessions = sessions.New(sessions.Options{})
	inst.Cursors = cursors.New(cursors.Options{})
	inst.EventLog = eventlog.New(eventlog.Options{})
	inst.Broadcast = broadcast.NewMock()
	inst.Access = access.Instance(onlyBoard7{})
	inst.Auth = auth.New(auth.AuthorizerOptions{JWTSecret: "test"})

	d, err := dispatch.New(dispatch.Options{
		Sessions:  inst.Sessions,
		Cursors:   inst.Cursors,
		EventLog:  inst.EventLog,
		Broadcast: inst.Broadcast,
		Access:    inst.Access,
	})
	testutil.IsNil(t, err, "dispatcher")

	inst.Dispatch = d

	ln := fasthttputil.NewInmemoryListener()

	go func() {
		_ = Serve(gctx, ln)
	}()

	t.Cleanup(cancel)

	token, _, err := inst.Auth.CreateAccessToken(alice, time.Hour)
	testutil.IsNil(t, err, "token")

	return &server{
		gctx: gctx,
		client: &fasthttp.Client{
			Dial: func(addr string) (net.Conn, error) {
				return ln.Dial()
			},
		},
		token: token,
	}
}

func (s *server) get(t *testing.T, path string, authed bool) (int, []byte) {
	t.Helper()

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()

	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.SetRequestURI("http://live.local" + path)

	if authed {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	testutil.IsNil(t, s.client.DoTimeout(req, resp, time.Second*5), "request "+path)

	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())

	return resp.StatusCode(), body
}

func TestRoutesRegistered(t *testing.T) {
	s := newServer(t)

	status, body := s.get(t, "/v1", false)
	testutil.Assert(t, 200, status, "version root")

	var root struct {
		Online bool `json:"online"`
	}

	testutil.IsNil(t, json.Unmarshal(body, &root), "decode root")
	testutil.Assert(t, true, root.Online, "online")

	status, _ = s.get(t, "/v1/live/7", true)
	testutil.Assert(t, 200, status, "live events")

	status, _ = s.get(t, "/v1/boards/board-7", true)
	testutil.Assert(t, 200, status, "board summary")

	status, _ = s.get(t, "/v1/boards/board-7/cursors", true)
	testutil.Assert(t, 200, status, "nested cursors route")

	status, _ = s.get(t, "/v1/boards/board-7/participants", true)
	testutil.Assert(t, 200, status, "nested participants route")
}

func TestLiveEvents(t *testing.T) {
	s := newServer(t)

	status, body := s.get(t, "/v1/live/7", true)
	testutil.Assert(t, 200, status, "empty board")

	var res struct {
		Success bool                 `json:"success"`
		Events  []stdjson.RawMessage `json:"events"`
	}

	testutil.IsNil(t, json.Unmarshal(body, &res), "decode")
	testutil.Assert(t, true, res.Success, "success")
	testutil.Assert(t, 0, len(res.Events), "no events")

	s.gctx.Inst().Dispatch.Element(context.Background(), 7, alice, "", events.ElementBody{
		Kind:    events.ElementKindSticky,
		Payload: stdjson.RawMessage(`{"text":"hello"}`),
	})

	status, body = s.get(t, "/v1/live/board-7", true)
	testutil.Assert(t, 200, status, "prefixed board id")
	testutil.IsNil(t, json.Unmarshal(body, &res), "decode")
	testutil.Assert(t, 1, len(res.Events), "one event")

	var env events.ElementEnvelope
	testutil.IsNil(t, json.Unmarshal(res.Events[0], &env), "decode envelope")
	testutil.Assert(t, "alice", env.By, "author")
}

func TestLiveEventsErrors(t *testing.T) {
	s := newServer(t)

	status, body := s.get(t, "/v1/live/7", false)
	testutil.Assert(t, 401, status, "guest")

	var res rest.APIErrorResponse
	testutil.IsNil(t, json.Unmarshal(body, &res), "decode error")
	testutil.Assert(t, rest.Unauthorized, res.StatusCode, "status code in body")

	status, _ = s.get(t, "/v1/live/8", true)
	testutil.Assert(t, 403, status, "no access")

	status, _ = s.get(t, "/v1/live/abc", true)
	testutil.Assert(t, 400, status, "bad board id")

	status, _ = s.get(t, "/v1/nowhere", true)
	testutil.Assert(t, 404, status, "unknown route")
}

func TestBadToken(t *testing.T) {
	s := newServer(t)
	s.token = "not.a.token"

	status, _ := s.get(t, "/v1/live/7", true)
	testutil.Assert(t, 401, status, "rejected token")
}

func TestBoardPresence(t *testing.T) {
	s := newServer(t)

	d := s.gctx.Inst().Dispatch
	d.Join(context.Background(), 7, alice)
	d.Cursor(context.Background(), 7, alice, "", 12, 34)

	status, body := s.get(t, "/v1/boards/7/participants", true)
	testutil.Assert(t, 200, status, "participants")

	var participants events.ParticipantsEnvelope
	testutil.IsNil(t, json.Unmarshal(body, &participants), "decode participants")
	testutil.AssertSlice(t, []model.Participant{{UserID: 1, Username: "alice"}}, participants.Items, "items")

	status, body = s.get(t, "/v1/boards/7/cursors", true)
	testutil.Assert(t, 200, status, "cursors")

	var positions struct {
		Items []cursors.Position `json:"items"`
	}

	testutil.IsNil(t, json.Unmarshal(body, &positions), "decode cursors")
	testutil.Assert(t, 1, len(positions.Items), "one cursor")
	testutil.Assert(t, 12.0, positions.Items[0].X, "x")

	status, body = s.get(t, "/v1/boards/7", true)
	testutil.Assert(t, 200, status, "summary")

	var summary struct {
		Channels []string `json:"channels"`
	}

	testutil.IsNil(t, json.Unmarshal(body, &summary), "decode summary")
	testutil.Assert(t, "board.7.participants", summary.Channels[0], "channels")

	status, _ = s.get(t, "/v1/boards/8/cursors", true)
	testutil.Assert(t, 403, status, "no access")
}
