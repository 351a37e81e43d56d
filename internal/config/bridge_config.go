package config

import "time"

type BridgeConfig interface {
	GetBridgeBackend() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetSweepInterval() time.Duration
}

type Bridge struct{}

var _ BridgeConfig = Bridge{}

// GetBridgeBackend selects the session bridge store: "memory" for
// single-instance deployments, "redis" when multiple instances share flows.
func (Bridge) GetBridgeBackend() string {
	return GetEnv("BRIDGE_BACKEND", "memory")
}

func (Bridge) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Bridge) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

func (Bridge) GetRedisDB() int {
	return 0
}

func (Bridge) GetSweepInterval() time.Duration {
	return time.Minute
}
