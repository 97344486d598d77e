package scheduler

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	ReportCron string `envconfig:"REPORT_CRON" default:"0 9 * * *"`
	Timezone   string `envconfig:"TZ_NAME" default:"UTC"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
