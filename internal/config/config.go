package config

type Config interface {
	EnvConfig
	CorsConfig
	AuthConfig
	SecurityConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetFrontendBaseURL() string
	GetSmtpHost() string
	GetSmtpPort() string
	GetSmtpPassword() string
	GetSmtpAccount() string
	GetSmtpSender() string
	GetPostgresDSN() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetEnv() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Auth
	Security
}

func New() Config {
	return mainConfig{}
}
