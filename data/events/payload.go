package events

import (
	"encoding/json"

	"github.com/collabodraw/live/data/model"
)

type AnyActionBody interface {
	json.RawMessage | EmptyBody | CursorBody | ElementBody | VersionBody
}

type EmptyBody = struct{}

type CursorBody struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type ElementBody struct {
	Kind    ElementKind     `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

type VersionBody struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Timestamp   string `json:"timestamp"`
}

// Command is one inbound action addressed to a board
type Command[B AnyActionBody] struct {
	Action  Action        `json:"action"`
	BoardID model.BoardID `json:"board_id"`
	// Actor is the resolved caller, zero when unidentified
	Actor model.Identity `json:"actor"`
	// ConnectionID identifies the delivering connection, used to label guests
	ConnectionID string `json:"connection_id,omitempty"`
	Body         B      `json:"body"`
}

func ConvertCommand[B AnyActionBody](c Command[json.RawMessage]) (Command[B], error) {
	var b B

	var err error
	if len(c.Body) > 0 {
		err = json.Unmarshal(c.Body, &b)
	}

	return Command[B]{
		Action:       c.Action,
		BoardID:      c.BoardID,
		Actor:        c.Actor,
		ConnectionID: c.ConnectionID,
		Body:         b,
	}, err
}
