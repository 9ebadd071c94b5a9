package rest

type Key string

const (
	ActorKey    Key = "CURRENT_ACTOR"
	ClientIPKey Key = "CLIENT_IP"
)
