package broadcast

import (
	"context"

	"github.com/hashicorp/go-multierror"
)

// Instance delivers an encoded envelope to everyone listening on a logical channel.
// Delivery is best effort.
type Instance interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

type Message struct {
	Channel string
	Payload []byte
}

type fanout struct {
	sinks []Instance
}

// Fanout publishes to every sink, collecting the errors of the ones that failed.
// A failing sink does not prevent delivery to the others.
func Fanout(sinks ...Instance) Instance {
	s := make([]Instance, 0, len(sinks))

	for _, sink := range sinks {
		if sink != nil {
			s = append(s, sink)
		}
	}

	return &fanout{sinks: s}
}

func (f *fanout) Publish(ctx context.Context, channel string, payload []byte) error {
	var err error

	for _, sink := range f.sinks {
		if e := sink.Publish(ctx, channel, payload); e != nil {
			err = multierror.Append(err, e)
		}
	}

	return err
}
