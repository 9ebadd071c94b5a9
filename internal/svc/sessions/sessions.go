package sessions

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/collabodraw/live/data/model"
	"github.com/seventv/common/sync_map"
	"go.uber.org/zap"
)

const DefaultStalenessWindow = 120 * time.Second

type Instance interface {
	// Join opens a session for the user, unless one is already active. Returns true if a session was created.
	Join(boardID model.BoardID, user model.Identity) bool
	// Heartbeat refreshes the active session's last activity. Returns false when there is no active session.
	Heartbeat(boardID model.BoardID, userID model.UserID) bool
	// Leave closes the active session. Returns false when there is no active session.
	Leave(boardID model.BoardID, userID model.UserID) bool
	// ActiveParticipants lists users with an active session seen within the staleness window, ordered by username.
	ActiveParticipants(boardID model.BoardID) []model.Participant
	// Session returns the most recent session record of the user on the board.
	Session(boardID model.BoardID, userID model.UserID) (Session, bool)
	// Reap drops closed sessions and sessions idle for longer than maxIdle, returning how many were removed.
	Reap(maxIdle time.Duration) int
}

type Session struct {
	BoardID     model.BoardID
	UserID      model.UserID
	Username    string
	ConnectedAt time.Time
	LastSeenAt  time.Time
	Active      bool
}

type Options struct {
	StalenessWindow time.Duration
	// Now overrides the clock, for tests
	Now func() time.Time
}

type inst struct {
	boards    *sync_map.Map[model.BoardID, *board]
	staleness time.Duration
	now       func() time.Time
}

// board holds the latest session record of each user on one board
type board struct {
	mx       sync.RWMutex
	sessions map[model.UserID]*Session
	// dead is set once the reaper has removed this board from the registry
	dead bool
}

func New(opt Options) Instance {
	if opt.StalenessWindow <= 0 {
		opt.StalenessWindow = DefaultStalenessWindow
	}

	if opt.Now == nil {
		opt.Now = time.Now
	}

	return &inst{
		boards:    &sync_map.Map[model.BoardID, *board]{},
		staleness: opt.StalenessWindow,
		now:       opt.Now,
	}
}

// lock returns the board's state locked for writing, creating it if needed
func (p *inst) lock(boardID model.BoardID) *board {
	for {
		b, _ := p.boards.LoadOrStore(boardID, &board{
			sessions: make(map[model.UserID]*Session),
		})

		b.mx.Lock()
		if !b.dead {
			return b
		}
		b.mx.Unlock()
	}
}

func (p *inst) Join(boardID model.BoardID, user model.Identity) bool {
	if !user.Known() {
		return false
	}

	b := p.lock(boardID)
	defer b.mx.Unlock()

	if s, ok := b.sessions[user.UserID]; ok && s.Active {
		return false
	}

	now := p.now()
	b.sessions[user.UserID] = &Session{
		BoardID:     boardID,
		UserID:      user.UserID,
		Username:    user.Username,
		ConnectedAt: now,
		LastSeenAt:  now,
		Active:      true,
	}

	zap.S().Debugw("session opened",
		"board_id", boardID,
		"user_id", user.UserID,
	)

	return true
}

func (p *inst) Heartbeat(boardID model.BoardID, userID model.UserID) bool {
	b, ok := p.boards.Load(boardID)
	if !ok {
		return false
	}

	b.mx.Lock()
	defer b.mx.Unlock()

	s, ok := b.sessions[userID]
	if !ok || !s.Active {
		return false
	}

	s.LastSeenAt = p.now()

	return true
}

func (p *inst) Leave(boardID model.BoardID, userID model.UserID) bool {
	b, ok := p.boards.Load(boardID)
	if !ok {
		return false
	}

	b.mx.Lock()
	defer b.mx.Unlock()

	s, ok := b.sessions[userID]
	if !ok || !s.Active {
		return false
	}

	s.Active = false

	zap.S().Debugw("session closed",
		"board_id", boardID,
		"user_id", userID,
	)

	return true
}

func (p *inst) ActiveParticipants(boardID model.BoardID) []model.Participant {
	result := []model.Participant{}

	b, ok := p.boards.Load(boardID)
	if !ok {
		return result
	}

	cutoff := p.now().Add(-p.staleness)

	b.mx.RLock()
	for _, s := range b.sessions {
		if !s.Active || s.LastSeenAt.Before(cutoff) {
			continue
		}

		result = append(result, model.Participant{
			UserID:   s.UserID,
			Username: s.Username,
		})
	}
	b.mx.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].Username == result[j].Username {
			return result[i].UserID < result[j].UserID
		}

		return result[i].Username < result[j].Username
	})

	return result
}

func (p *inst) Session(boardID model.BoardID, userID model.UserID) (Session, bool) {
	b, ok := p.boards.Load(boardID)
	if !ok {
		return Session{}, false
	}

	b.mx.RLock()
	defer b.mx.RUnlock()

	s, ok := b.sessions[userID]
	if !ok {
		return Session{}, false
	}

	return *s, true
}

func (p *inst) Reap(maxIdle time.Duration) int {
	// never hide a session that the participant view would still show
	if maxIdle < p.staleness {
		maxIdle = p.staleness
	}

	cutoff := p.now().Add(-maxIdle)
	removed := 0

	p.boards.Range(func(boardID model.BoardID, b *board) bool {
		b.mx.Lock()
		defer b.mx.Unlock()

		for userID, s := range b.sessions {
			if !s.Active || s.LastSeenAt.Before(cutoff) {
				delete(b.sessions, userID)
				removed++
			}
		}

		if len(b.sessions) == 0 {
			b.dead = true
			p.boards.Delete(boardID)
		}

		return true
	})

	return removed
}

// RunReaper calls Reap every interval until ctx is done
func RunReaper(ctx context.Context, sessions Instance, interval time.Duration, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Reap(maxIdle); n > 0 {
				zap.S().Infow("reaped sessions",
					"count", n,
				)
			}
		}
	}
}
