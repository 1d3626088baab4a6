package config

type Config interface {
	EnvConfig
	SessionConfig
	TenantConfig
}

type mainConfig struct {
	EnvVars
	Session
	Tenant
}

func New() Config {
	return mainConfig{}
}
