package events

import (
	"encoding/json"
	"time"

	"github.com/collabodraw/live/data/model"
)

// Action is an inbound collaboration action
type Action string

const (
	ActionJoin      Action = "join"
	ActionLeave     Action = "leave"
	ActionHeartbeat Action = "heartbeat"
	ActionCursor    Action = "cursor"
	ActionElement   Action = "element"
	ActionVersion   Action = "version"
)

func (a Action) Valid() bool {
	switch a {
	case ActionJoin, ActionLeave, ActionHeartbeat, ActionCursor, ActionElement, ActionVersion:
		return true
	}

	return false
}

// EventType is the type tag of an outbound envelope
type EventType string

const (
	EventTypeParticipants EventType = "participants"
	EventTypeCursor       EventType = "cursor"
	EventTypeElement      EventType = "element"
	EventTypeVersion      EventType = "version"
)

// Channel is the board-scoped logical channel name an envelope type is published on
func (et EventType) Channel() string {
	switch et {
	case EventTypeParticipants:
		return "participants"
	case EventTypeCursor:
		return "cursors"
	case EventTypeElement:
		return "elements"
	case EventTypeVersion:
		return "versions"
	default:
		return string(et)
	}
}

// EventTypes lists every envelope type, in the order a subscriber joins their channels
var EventTypes = []EventType{
	EventTypeParticipants,
	EventTypeCursor,
	EventTypeElement,
	EventTypeVersion,
}

type ParticipantsEnvelope struct {
	Type  EventType           `json:"type"`
	Items []model.Participant `json:"items"`
}

type CursorEnvelope struct {
	Type EventType `json:"type"`
	// UserID is null for guests
	UserID    *model.UserID `json:"userId"`
	Username  string        `json:"username"`
	X         float64       `json:"x"`
	Y         float64       `json:"y"`
	Timestamp time.Time     `json:"timestamp"`
}

type ElementEnvelope struct {
	Type      EventType       `json:"type"`
	By        string          `json:"by"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
	Meta      ElementMeta     `json:"meta"`
}

type ElementMeta struct {
	Kind ElementKind `json:"kind"`
}

type VersionEnvelope struct {
	Type        EventType `json:"type"`
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Timestamp   string    `json:"timestamp"`
	By          string    `json:"by"`
}

// ElementKind tags an element mutation. Unknown kinds are carried through untouched.
type ElementKind string

const (
	ElementKindStroke ElementKind = "stroke"
	ElementKindSticky ElementKind = "sticky"
	ElementKindText   ElementKind = "text"
	ElementKindShape  ElementKind = "shape"
	ElementKindErase  ElementKind = "erase"
	ElementKindClear  ElementKind = "clear"
)

func (k ElementKind) Known() bool {
	switch k {
	case ElementKindStroke, ElementKindSticky, ElementKindText, ElementKindShape, ElementKindErase, ElementKindClear:
		return true
	}

	return false
}
