package config

type Config interface {
	EnvConfig
	OAuthConfig
	BridgeConfig
	CorsConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetBaseURL() string
	GetEnv() string
}

type mainConfig struct {
	EnvVars
	OAuth
	Bridge
	Cors
}

func New() Config {
	return mainConfig{}
}
