package watcher

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	AlertsFile string        `envconfig:"ALERTS_FILE" default:""`
	Interval   time.Duration `envconfig:"WATCH_INTERVAL" default:"20s"`
	MaxBackoff time.Duration `envconfig:"WATCH_MAX_BACKOFF" default:"5m"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
