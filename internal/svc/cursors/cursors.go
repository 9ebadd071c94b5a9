package cursors

import (
	"sort"
	"sync"
	"time"

	"github.com/collabodraw/live/data/model"
	"github.com/seventv/common/sync_map"
)

type Instance interface {
	// Upsert stores the user's pointer position, replacing any previous one
	Upsert(boardID model.BoardID, userID model.UserID, x, y float64)
	// Seed stores a position only if the user has none yet. Returns true if one was stored.
	Seed(boardID model.BoardID, userID model.UserID, x, y float64) bool
	Get(boardID model.BoardID, userID model.UserID) (Position, bool)
	// Board lists every stored position on the board, most recently updated first
	Board(boardID model.BoardID) []Position
}

type Position struct {
	BoardID   model.BoardID `json:"boardId"`
	UserID    model.UserID  `json:"userId"`
	X         float64       `json:"x"`
	Y         float64       `json:"y"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

type Options struct {
	Now func() time.Time
}

type inst struct {
	boards *sync_map.Map[model.BoardID, *board]
	now    func() time.Time
}

type board struct {
	mx        sync.RWMutex
	positions map[model.UserID]Position
}

func New(opt Options) Instance {
	if opt.Now == nil {
		opt.Now = time.Now
	}

	return &inst{
		boards: &sync_map.Map[model.BoardID, *board]{},
		now:    opt.Now,
	}
}

func (c *inst) board(boardID model.BoardID) *board {
	b, _ := c.boards.LoadOrStore(boardID, &board{
		positions: make(map[model.UserID]Position),
	})

	return b
}

func (c *inst) Upsert(boardID model.BoardID, userID model.UserID, x, y float64) {
	b := c.board(boardID)

	b.mx.Lock()
	b.positions[userID] = Position{
		BoardID:   boardID,
		UserID:    userID,
		X:         x,
		Y:         y,
		UpdatedAt: c.now(),
	}
	b.mx.Unlock()
}

func (c *inst) Seed(boardID model.BoardID, userID model.UserID, x, y float64) bool {
	b := c.board(boardID)

	b.mx.Lock()
	defer b.mx.Unlock()

	if _, ok := b.positions[userID]; ok {
		return false
	}

	b.positions[userID] = Position{
		BoardID:   boardID,
		UserID:    userID,
		X:         x,
		Y:         y,
		UpdatedAt: c.now(),
	}

	return true
}

func (c *inst) Get(boardID model.BoardID, userID model.UserID) (Position, bool) {
	b, ok := c.boards.Load(boardID)
	if !ok {
		return Position{}, false
	}

	b.mx.RLock()
	p, ok := b.positions[userID]
	b.mx.RUnlock()

	return p, ok
}

func (c *inst) Board(boardID model.BoardID) []Position {
	result := []Position{}

	b, ok := c.boards.Load(boardID)
	if !ok {
		return result
	}

	b.mx.RLock()
	for _, p := range b.positions {
		result = append(result, p)
	}
	b.mx.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].UserID < result[j].UserID
		}

		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})

	return result
}
