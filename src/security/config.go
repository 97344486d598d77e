package security

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// SecretsKey is a base64 encoded 32 byte key, e.g. from `openssl rand -base64 32`.
	SecretsKey string `envconfig:"SECRETS_KEY" default:""`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
