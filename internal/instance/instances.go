package instance

import (
	"github.com/collabodraw/live/internal/dispatch"
	"github.com/collabodraw/live/internal/svc/access"
	"github.com/collabodraw/live/internal/svc/auth"
	"github.com/collabodraw/live/internal/svc/broadcast"
	"github.com/collabodraw/live/internal/svc/cursors"
	"github.com/collabodraw/live/internal/svc/eventlog"
	"github.com/collabodraw/live/internal/svc/prometheus"
	"github.com/collabodraw/live/internal/svc/sessions"
)

type Instances struct {
	Sessions   sessions.Instance
	Cursors    cursors.Instance
	EventLog   eventlog.Instance
	Hub        *broadcast.Hub
	Nats       *broadcast.NatsInstance
	Broadcast  broadcast.Instance
	Access     access.Instance
	Auth       auth.Authorizer
	Prometheus prometheus.Instance

	Dispatch *dispatch.Dispatcher
}
