package app

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	AppName   string `envconfig:"APP_NAME" default:"tradejournal"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"` // text | json

	// Ledgers whose capital drifts further than this from average*asset are logged.
	DriftTolerance string `envconfig:"DRIFT_TOLERANCE" default:"0.000001"`
	// Runs the zone watcher inside serve and poll.
	WatchEnabled bool `envconfig:"WATCH_ENABLED" default:"true"`
	// Period of the expired-session sweep.
	SweepInterval time.Duration `envconfig:"SESSION_SWEEP_INTERVAL" default:"1m"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
