package common

const (
	AppName = "correlation-service"

	DefaultRunListLimit = 20
	MaxRunListLimit     = 200

	// WarmupLockKey guards the scheduled warmup so only one instance sharing a redis runs it.
	WarmupLockKey = "correlation.warmup.lock"
)
