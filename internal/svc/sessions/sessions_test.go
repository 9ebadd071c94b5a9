package sessions

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/collabodraw/live/data/model"
	"github.com/collabodraw/live/internal/testutil"
)

type clock struct {
	mx sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mx.Lock()
	defer c.mx.Unlock()

	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mx.Lock()
	c.t = c.t.Add(d)
	c.mx.Unlock()
}

var (
	alice = model.Identity{UserID: 1, Username: "alice"}
	bob   = model.Identity{UserID: 2, Username: "bob"}
	carol = model.Identity{UserID: 3, Username: "carol"}
)

func TestJoinIsIdempotent(t *testing.T) {
	c := newClock()
	s := New(Options{Now: c.Now})

	testutil.Assert(t, true, s.Join(7, alice), "first join creates")

	first, ok := s.Session(7, alice.UserID)
	testutil.Assert(t, true, ok, "session exists")

	c.Advance(time.Second)
	testutil.Assert(t, false, s.Join(7, alice), "second join is a no-op")

	again, _ := s.Session(7, alice.UserID)
	testutil.Assert(t, first.ConnectedAt, again.ConnectedAt, "connectedAt unchanged")
	testutil.Assert(t, first.ConnectedAt, again.LastSeenAt, "lastSeenAt unchanged")
}

func TestJoinIgnoresUnidentified(t *testing.T) {
	s := New(Options{})

	testutil.Assert(t, false, s.Join(7, model.Identity{}), "guest join")
	testutil.Assert(t, 0, len(s.ActiveParticipants(7)), "no participants")
}

func TestHeartbeat(t *testing.T) {
	c := newClock()
	s := New(Options{Now: c.Now})

	testutil.Assert(t, false, s.Heartbeat(7, alice.UserID), "heartbeat without session")
	_, ok := s.Session(7, alice.UserID)
	testutil.Assert(t, false, ok, "heartbeat does not create a session")

	s.Join(7, alice)
	c.Advance(30 * time.Second)
	testutil.Assert(t, true, s.Heartbeat(7, alice.UserID), "heartbeat with session")

	sess, _ := s.Session(7, alice.UserID)
	testutil.Assert(t, c.Now(), sess.LastSeenAt, "lastSeenAt refreshed")
	testutil.Assert(t, c.Now().Add(-30*time.Second), sess.ConnectedAt, "connectedAt kept")
}

func TestHeartbeatDoesNotResurrect(t *testing.T) {
	c := newClock()
	s := New(Options{Now: c.Now})

	s.Join(7, alice)
	s.Leave(7, alice.UserID)

	before, _ := s.Session(7, alice.UserID)

	c.Advance(time.Second)
	testutil.Assert(t, false, s.Heartbeat(7, alice.UserID), "heartbeat after leave")

	after, _ := s.Session(7, alice.UserID)
	testutil.Assert(t, before, after, "state unchanged")
	testutil.Assert(t, false, after.Active, "still inactive")
}

func TestLeave(t *testing.T) {
	s := New(Options{})

	testutil.Assert(t, false, s.Leave(7, alice.UserID), "leave without session")

	s.Join(7, alice)
	testutil.Assert(t, true, s.Leave(7, alice.UserID), "leave active session")
	testutil.Assert(t, false, s.Leave(7, alice.UserID), "second leave")

	testutil.Assert(t, true, s.Join(7, alice), "rejoin after leave creates a session")
}

func TestActiveParticipantsScenario(t *testing.T) {
	s := New(Options{})

	s.Join(7, alice)
	testutil.AssertSlice(t, []model.Participant{{UserID: 1, Username: "alice"}}, s.ActiveParticipants(7), "after A joins")

	s.Join(7, bob)
	testutil.AssertSlice(t, []model.Participant{
		{UserID: 1, Username: "alice"},
		{UserID: 2, Username: "bob"},
	}, s.ActiveParticipants(7), "after B joins")

	s.Leave(7, alice.UserID)
	testutil.AssertSlice(t, []model.Participant{{UserID: 2, Username: "bob"}}, s.ActiveParticipants(7), "after A leaves")
}

func TestActiveParticipantsOrderedByUsername(t *testing.T) {
	s := New(Options{})

	s.Join(1, carol)
	s.Join(1, alice)
	s.Join(1, bob)
	s.Join(1, model.Identity{UserID: 0x10, Username: "alice"})

	got := s.ActiveParticipants(1)
	testutil.Assert(t, 4, len(got), "participants")
	testutil.Assert(t, model.UserID(1), got[0].UserID, "alice first")
	testutil.Assert(t, model.UserID(0x10), got[1].UserID, "duplicate username ordered by id")
	testutil.Assert(t, "bob", got[2].Username, "bob third")
	testutil.Assert(t, "carol", got[3].Username, "carol last")
}

func TestActiveParticipantsExcludesStale(t *testing.T) {
	c := newClock()
	s := New(Options{Now: c.Now, StalenessWindow: 120 * time.Second})

	s.Join(7, alice)
	s.Join(7, bob)

	c.Advance(100 * time.Second)
	s.Heartbeat(7, bob.UserID)

	c.Advance(21 * time.Second)

	testutil.AssertSlice(t, []model.Participant{{UserID: 2, Username: "bob"}}, s.ActiveParticipants(7), "alice went stale")

	// the stored record is untouched by the read
	sess, _ := s.Session(7, alice.UserID)
	testutil.Assert(t, true, sess.Active, "alice still active in storage")

	// a heartbeat brings a stale but active session back
	s.Heartbeat(7, alice.UserID)
	testutil.Assert(t, 2, len(s.ActiveParticipants(7)), "alice visible again")
}

func TestBoardsAreIsolated(t *testing.T) {
	s := New(Options{})

	s.Join(1, alice)
	s.Join(2, bob)

	testutil.Assert(t, 1, len(s.ActiveParticipants(1)), "board 1")
	testutil.Assert(t, "bob", s.ActiveParticipants(2)[0].Username, "board 2")
}

func TestConcurrentJoinCreatesOneSession(t *testing.T) {
	s := New(Options{})

	var (
		created int32
		wg      sync.WaitGroup
	)

	for i := 0; i < 64; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if s.Join(7, alice) {
				atomic.AddInt32(&created, 1)
			}
		}()
	}

	wg.Wait()

	testutil.Assert(t, int32(1), created, "sessions created")
	testutil.Assert(t, 1, len(s.ActiveParticipants(7)), "one participant")
}

func TestConcurrentJoinLeave(t *testing.T) {
	s := New(Options{})

	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(2)

		go func() {
			defer wg.Done()
			s.Join(7, alice)
		}()

		go func() {
			defer wg.Done()
			s.Leave(7, alice.UserID)
		}()

		testutil.Assert(t, true, len(s.ActiveParticipants(7)) <= 1, "at most one active session")
	}

	wg.Wait()

	testutil.Assert(t, true, len(s.ActiveParticipants(7)) <= 1, "at most one active session")
}

func TestReap(t *testing.T) {
	c := newClock()
	s := New(Options{Now: c.Now, StalenessWindow: time.Minute})

	s.Join(1, alice)
	s.Join(1, bob)
	s.Join(2, carol)
	s.Leave(1, bob.UserID)

	testutil.Assert(t, 1, s.Reap(time.Hour), "closed session reaped")

	_, ok := s.Session(1, bob.UserID)
	testutil.Assert(t, false, ok, "bob removed")

	c.Advance(30 * time.Second)
	s.Heartbeat(1, alice.UserID)
	c.Advance(45 * time.Second)

	// maxIdle below the staleness window is raised to it
	testutil.Assert(t, 1, s.Reap(time.Second), "only carol is idle past the window")

	_, ok = s.Session(1, alice.UserID)
	testutil.Assert(t, true, ok, "alice kept")

	// board 2 was emptied and removed, joining again must still work
	testutil.Assert(t, true, s.Join(2, carol), "rejoin reaped board")
	testutil.Assert(t, 1, len(s.ActiveParticipants(2)), "carol present")
}
