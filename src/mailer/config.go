package mailer

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Host        string `envconfig:"SMTP_HOST" default:"localhost"`
	Port        int    `envconfig:"SMTP_PORT" default:"587"`
	User        string `envconfig:"SMTP_USER" default:""`
	Password    string `envconfig:"SMTP_PASSWORD" default:""`
	PasswordEnc string `envconfig:"SMTP_PASSWORD_ENC" default:""` // sealed with security.EncryptString
	From        string `envconfig:"MAIL_FROM" default:"tradejournal@localhost"`
	To          string `envconfig:"MAIL_TO" default:""`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
