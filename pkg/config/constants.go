package config

const (
	// EnvPrefix namespaces every environment variable the service reads.
	EnvPrefix = "STOCKBOOK"

	AppEnvDev  = "development"
	AppEnvProd = "production"
)
