package eventlog

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/collabodraw/live/data/model"
	"github.com/seventv/common/sync_map"
)

const DefaultCapacity = 5000

type Kind string

const (
	KindElement Kind = "element"
	KindVersion Kind = "version"
)

// Event is one logged envelope. Events are never modified after Append.
type Event struct {
	BoardID   model.BoardID   `json:"board_id"`
	Sequence  uint64          `json:"sequence"`
	Kind      Kind            `json:"kind"`
	Author    string          `json:"author"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

type Instance interface {
	// Append adds an event to the tail of the board's log, evicting the oldest event once the log is full.
	// The evicted return is true when an event was dropped to make room.
	Append(boardID model.BoardID, kind Kind, author string, payload json.RawMessage) (evt Event, evicted bool)
	// Events returns a copy of the board's log in append order
	Events(boardID model.BoardID) []Event
	Len(boardID model.BoardID) int
	Cap() int
}

type Options struct {
	Capacity int
	Now      func() time.Time
}

type inst struct {
	boards   *sync_map.Map[model.BoardID, *ring]
	capacity int
	now      func() time.Time
}

// ring is a fixed capacity buffer; once full, head points at the oldest entry
type ring struct {
	mx   sync.RWMutex
	buf  []Event
	head int
	seq  uint64
}

func New(opt Options) Instance {
	if opt.Capacity <= 0 {
		opt.Capacity = DefaultCapacity
	}

	if opt.Now == nil {
		opt.Now = time.Now
	}

	return &inst{
		boards:   &sync_map.Map[model.BoardID, *ring]{},
		capacity: opt.Capacity,
		now:      opt.Now,
	}
}

func (l *inst) Append(boardID model.BoardID, kind Kind, author string, payload json.RawMessage) (Event, bool) {
	r, _ := l.boards.LoadOrStore(boardID, &ring{})

	p := make(json.RawMessage, len(payload))
	copy(p, payload)

	r.mx.Lock()
	defer r.mx.Unlock()

	r.seq++

	evt := Event{
		BoardID:   boardID,
		Sequence:  r.seq,
		Kind:      kind,
		Author:    author,
		Payload:   p,
		Timestamp: l.now(),
	}

	if len(r.buf) < l.capacity {
		r.buf = append(r.buf, evt)

		return evt, false
	}

	r.buf[r.head] = evt
	r.head = (r.head + 1) % l.capacity

	return evt, true
}

func (l *inst) Events(boardID model.BoardID) []Event {
	r, ok := l.boards.Load(boardID)
	if !ok {
		return []Event{}
	}

	r.mx.RLock()
	defer r.mx.RUnlock()

	result := make([]Event, len(r.buf))
	n := copy(result, r.buf[r.head:])
	copy(result[n:], r.buf[:r.head])

	return result
}

func (l *inst) Len(boardID model.BoardID) int {
	r, ok := l.boards.Load(boardID)
	if !ok {
		return 0
	}

	r.mx.RLock()
	defer r.mx.RUnlock()

	return len(r.buf)
}

func (l *inst) Cap() int {
	return l.capacity
}
