package redis

const (
	KeyRateLimit = "ratelimit:%s:%s"

	// EventsChannel carries match lifecycle events between processes.
	EventsChannel = "stakeduel:events"
)
