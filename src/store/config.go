package store

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

const (
	BackendFile = "file"
	BackendSQL  = "sql"
)

type Config struct {
	Backend string `envconfig:"STORE_BACKEND" default:"file"` // file | sql
	DataDir string `envconfig:"DATA_DIR" default:"data"`
	// Symbol given to a legacy data.json ledger.
	DefaultSymbol string `envconfig:"DEFAULT_SYMBOL" default:"ETH"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
