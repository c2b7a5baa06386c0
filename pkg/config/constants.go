package config

// EnvPrefix is passed to envconfig; variable names already carry the
// PHOTOSORT_ prefix in their tags.
const EnvPrefix = ""

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)
