package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/collabodraw/live/data/events"
	"github.com/collabodraw/live/data/model"
	"github.com/collabodraw/live/internal/svc/access"
	"github.com/collabodraw/live/internal/svc/broadcast"
	"github.com/collabodraw/live/internal/svc/cursors"
	"github.com/collabodraw/live/internal/svc/eventlog"
	"github.com/collabodraw/live/internal/svc/prometheus"
	"github.com/collabodraw/live/internal/svc/sessions"
	jsoniter "github.com/json-iterator/go"
	"github.com/seventv/common/utils"
	"github.com/valyala/fasttemplate"
	"go.uber.org/zap"
)

var encoder = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	ErrUnidentified  = errors.New("caller is not identified")
	ErrAccessDenied  = errors.New("caller cannot read this board")
	ErrUnknownAction = errors.New("unknown action")
)

const DefaultChannelTemplate = "board.{{board}}.{{kind}}"

type Options struct {
	Sessions   sessions.Instance
	Cursors    cursors.Instance
	EventLog   eventlog.Instance
	Broadcast  broadcast.Instance
	Access     access.Instance
	Prometheus prometheus.Instance

	// Local receives the envelopes that describe this node only, Broadcast when unset
	Local broadcast.Instance

	// ChannelTemplate names the channel of a board's envelope kind, using the {{board}} and {{kind}} tags
	ChannelTemplate string
	GuestPrefix     string
	LogVersions     bool
	Now             func() time.Time
}

// Dispatcher applies inbound actions to the stores and publishes the resulting envelopes.
// It keeps no state of its own, every action is handled independently.
type Dispatcher struct {
	sessions  sessions.Instance
	cursors   cursors.Instance
	log       eventlog.Instance
	broadcast broadcast.Instance
	local     broadcast.Instance
	access    access.Instance
	metrics   prometheus.Instance

	channels    *fasttemplate.Template
	guestPrefix string
	logVersions bool
	now         func() time.Time
}

func New(o Options) (*Dispatcher, error) {
	if o.Sessions == nil || o.Cursors == nil || o.EventLog == nil || o.Broadcast == nil {
		return nil, errors.New("dispatch: sessions, cursors, event log and broadcast are required")
	}

	if o.ChannelTemplate == "" {
		o.ChannelTemplate = DefaultChannelTemplate
	}

	tpl, err := fasttemplate.NewTemplate(o.ChannelTemplate, "{{", "}}")
	if err != nil {
		return nil, fmt.Errorf("dispatch: bad channel template: %w", err)
	}

	if o.Local == nil {
		o.Local = o.Broadcast
	}

	if o.Access == nil {
		o.Access = access.NewOpen()
	}

	if o.Prometheus == nil {
		o.Prometheus = prometheus.New(prometheus.Options{})
	}

	if o.GuestPrefix == "" {
		o.GuestPrefix = "Guest"
	}

	if o.Now == nil {
		o.Now = time.Now
	}

	return &Dispatcher{
		sessions:    o.Sessions,
		cursors:     o.Cursors,
		log:         o.EventLog,
		broadcast:   o.Broadcast,
		local:       o.Local,
		access:      o.Access,
		metrics:     o.Prometheus,
		channels:    tpl,
		guestPrefix: o.GuestPrefix,
		logVersions: o.LogVersions,
		now:         o.Now,
	}, nil
}

// Channel returns the logical channel an envelope type is published on for a board
func (d *Dispatcher) Channel(boardID model.BoardID, et events.EventType) string {
	return d.channels.ExecuteString(map[string]interface{}{
		"board": boardID.String(),
		"kind":  et.Channel(),
	})
}

// Channels lists every channel of a board
func (d *Dispatcher) Channels(boardID model.BoardID) []string {
	result := make([]string, len(events.EventTypes))
	for i, et := range events.EventTypes {
		result[i] = d.Channel(boardID, et)
	}

	return result
}

// GuestLabel is the display name of an unidentified caller
func (d *Dispatcher) GuestLabel(connectionID string) string {
	if connectionID == "" {
		return d.guestPrefix
	}

	if len(connectionID) > 6 {
		connectionID = connectionID[:6]
	}

	return d.guestPrefix + "-" + connectionID
}

func (d *Dispatcher) label(actor model.Identity, connectionID string) string {
	return utils.Ternary(actor.Known(), actor.Username, d.GuestLabel(connectionID))
}

// Join opens a presence session and seeds the user's cursor at the origin, then rebroadcasts the participant list.
// Unidentified callers are ignored.
func (d *Dispatcher) Join(ctx context.Context, boardID model.BoardID, actor model.Identity) {
	d.metrics.Action(string(events.ActionJoin))

	if !actor.Known() {
		return
	}

	if d.sessions.Join(boardID, actor) {
		d.cursors.Seed(boardID, actor.UserID, 0, 0)
	}

	d.publishParticipants(ctx, boardID)
}

// Leave closes the caller's session and rebroadcasts the participant list
func (d *Dispatcher) Leave(ctx context.Context, boardID model.BoardID, actor model.Identity) {
	d.metrics.Action(string(events.ActionLeave))

	if !actor.Known() {
		return
	}

	d.sessions.Leave(boardID, actor.UserID)
	d.publishParticipants(ctx, boardID)
}

func (d *Dispatcher) Heartbeat(ctx context.Context, boardID model.BoardID, actor model.Identity) {
	d.metrics.Action(string(events.ActionHeartbeat))

	if !actor.Known() {
		return
	}

	d.sessions.Heartbeat(boardID, actor.UserID)
}

// Cursor broadcasts a pointer move. Only identified users have their position stored.
func (d *Dispatcher) Cursor(ctx context.Context, boardID model.BoardID, actor model.Identity, connectionID string, x, y float64) {
	d.metrics.Action(string(events.ActionCursor))

	env := events.CursorEnvelope{
		Type:      events.EventTypeCursor,
		Username:  d.label(actor, connectionID),
		X:         x,
		Y:         y,
		Timestamp: d.now(),
	}

	if actor.Known() {
		d.cursors.Upsert(boardID, actor.UserID, x, y)
		env.UserID = utils.PointerOf(actor.UserID)
	}

	d.publish(ctx, boardID, events.EventTypeCursor, env)
}

// Element logs a drawing mutation for late joiners and broadcasts it
func (d *Dispatcher) Element(ctx context.Context, boardID model.BoardID, actor model.Identity, connectionID string, body events.ElementBody) {
	d.metrics.Action(string(events.ActionElement))

	if !body.Kind.Known() {
		zap.S().Debugw("element with unrecognised kind",
			"board_id", boardID,
			"kind", body.Kind,
		)
	}

	payload := body.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}

	b, err := encoder.Marshal(events.ElementEnvelope{
		Type:      events.EventTypeElement,
		By:        d.label(actor, connectionID),
		Timestamp: d.now(),
		Payload:   payload,
		Meta: events.ElementMeta{
			Kind: body.Kind,
		},
	})
	if err != nil {
		zap.S().Errorw("failed to encode element envelope",
			"error", err,
			"board_id", boardID,
		)

		return
	}

	d.append(boardID, eventlog.KindElement, d.label(actor, connectionID), b)
	d.send(ctx, boardID, events.EventTypeElement, b)
}

// Version broadcasts a version tag. It is only replayable when version logging is enabled.
func (d *Dispatcher) Version(ctx context.Context, boardID model.BoardID, actor model.Identity, connectionID string, body events.VersionBody) {
	d.metrics.Action(string(events.ActionVersion))

	b, err := encoder.Marshal(events.VersionEnvelope{
		Type:        events.EventTypeVersion,
		ID:          body.ID,
		Description: body.Description,
		Timestamp:   body.Timestamp,
		By:          d.label(actor, connectionID),
	})
	if err != nil {
		zap.S().Errorw("failed to encode version envelope",
			"error", err,
			"board_id", boardID,
		)

		return
	}

	if d.logVersions {
		d.append(boardID, eventlog.KindVersion, d.label(actor, connectionID), b)
	}

	d.send(ctx, boardID, events.EventTypeVersion, b)
}

// LiveEvents returns the board's replay log, oldest first, for a caller allowed to read the board
func (d *Dispatcher) LiveEvents(ctx context.Context, boardID model.BoardID, actor model.Identity) ([]json.RawMessage, error) {
	if err := d.Authorize(ctx, boardID, actor); err != nil {
		return nil, err
	}

	evts := d.log.Events(boardID)

	result := make([]json.RawMessage, len(evts))
	for i, e := range evts {
		result[i] = e.Payload
	}

	return result, nil
}

// Authorize checks that the caller is identified and may read the board
func (d *Dispatcher) Authorize(ctx context.Context, boardID model.BoardID, actor model.Identity) error {
	if !actor.Known() {
		return ErrUnidentified
	}

	ok, err := d.access.CanRead(ctx, boardID, actor)
	if err != nil {
		return err
	}

	if !ok {
		return ErrAccessDenied
	}

	return nil
}

func (d *Dispatcher) Participants(boardID model.BoardID) []model.Participant {
	return d.sessions.ActiveParticipants(boardID)
}

func (d *Dispatcher) Cursors(boardID model.BoardID) []cursors.Position {
	return d.cursors.Board(boardID)
}

// Handle routes a decoded command to its action
func (d *Dispatcher) Handle(ctx context.Context, cmd events.Command[json.RawMessage]) error {
	switch cmd.Action {
	case events.ActionJoin:
		d.Join(ctx, cmd.BoardID, cmd.Actor)
	case events.ActionLeave:
		d.Leave(ctx, cmd.BoardID, cmd.Actor)
	case events.ActionHeartbeat:
		d.Heartbeat(ctx, cmd.BoardID, cmd.Actor)
	case events.ActionCursor:
		c, err := events.ConvertCommand[events.CursorBody](cmd)
		if err != nil {
			return err
		}

		d.Cursor(ctx, c.BoardID, c.Actor, c.ConnectionID, c.Body.X, c.Body.Y)
	case events.ActionElement:
		c, err := events.ConvertCommand[events.ElementBody](cmd)
		if err != nil {
			return err
		}

		d.Element(ctx, c.BoardID, c.Actor, c.ConnectionID, c.Body)
	case events.ActionVersion:
		c, err := events.ConvertCommand[events.VersionBody](cmd)
		if err != nil {
			return err
		}

		d.Version(ctx, c.BoardID, c.Actor, c.ConnectionID, c.Body)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}

	return nil
}

func (d *Dispatcher) publishParticipants(ctx context.Context, boardID model.BoardID) {
	d.publish(ctx, boardID, events.EventTypeParticipants, events.ParticipantsEnvelope{
		Type:  events.EventTypeParticipants,
		Items: d.sessions.ActiveParticipants(boardID),
	})
}

func (d *Dispatcher) publish(ctx context.Context, boardID model.BoardID, et events.EventType, v any) {
	b, err := encoder.Marshal(v)
	if err != nil {
		zap.S().Errorw("failed to encode envelope",
			"error", err,
			"board_id", boardID,
			"type", et,
		)

		return
	}

	d.send(ctx, boardID, et, b)
}

func (d *Dispatcher) append(boardID model.BoardID, kind eventlog.Kind, author string, payload []byte) {
	_, evicted := d.log.Append(boardID, kind, author, payload)
	d.metrics.EventAppended(string(kind), evicted)
}

// send is fire and forget, a failed delivery never fails the action
func (d *Dispatcher) send(ctx context.Context, boardID model.BoardID, et events.EventType, payload []byte) {
	channel := d.Channel(boardID, et)

	sink := d.broadcast
	if et == events.EventTypeParticipants {
		// sessions live in this node's memory, another node's list would replace ours
		sink = d.local
	}

	if err := sink.Publish(ctx, channel, payload); err != nil {
		d.metrics.PublishFailed(et.Channel())

		zap.S().Warnw("broadcast failed",
			"error", err,
			"channel", channel,
		)
	}
}
