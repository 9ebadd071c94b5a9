package broadcast

import (
	"context"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

type NatsOptions struct {
	URL           string
	Name          string
	SubjectPrefix string
}

// NatsInstance relays envelopes to other nodes. Channels map to subjects under the configured prefix.
type NatsInstance struct {
	conn   *nats.Conn
	prefix string
}

func NewNats(ctx context.Context, o NatsOptions) (*NatsInstance, error) {
	conn, err := nats.Connect(o.URL,
		nats.Name(o.Name),
		// the local hub already delivered what this node publishes
		nats.NoEcho(),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second*2),
		nats.DisconnectErrHandler(func(c *nats.Conn, err error) {
			zap.S().Warnw("nats disconnected",
				"error", err,
			)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			zap.S().Infow("nats reconnected",
				"url", c.ConnectedUrl(),
			)
		}),
	)
	if err != nil {
		return nil, err
	}

	go func() {
		<-ctx.Done()
		_ = conn.Drain()
	}()

	return &NatsInstance{
		conn:   conn,
		prefix: o.SubjectPrefix,
	}, nil
}

func (i *NatsInstance) Subject(channel string) string {
	if i.prefix == "" {
		return channel
	}

	return i.prefix + "." + channel
}

func (i *NatsInstance) Publish(ctx context.Context, channel string, payload []byte) error {
	return i.conn.Publish(i.Subject(channel), payload)
}

// Channel reverses Subject, reporting false for subjects outside the prefix
func (i *NatsInstance) Channel(subject string) (string, bool) {
	if i.prefix == "" {
		return subject, true
	}

	if !strings.HasPrefix(subject, i.prefix+".") {
		return "", false
	}

	return subject[len(i.prefix)+1:], true
}

// Wildcard matches every subject under the prefix
func (i *NatsInstance) Wildcard() string {
	if i.prefix == "" {
		return ">"
	}

	return i.prefix + ".>"
}

func (i *NatsInstance) Conn() *nats.Conn {
	return i.conn
}

func (i *NatsInstance) Connected() bool {
	return i.conn.IsConnected()
}
