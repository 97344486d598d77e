package controller

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	ReportSubject string `envconfig:"REPORT_SUBJECT" default:"Trade journal report"`
	ExportDir     string `envconfig:"EXPORT_DIR" default:"export"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
