package telegram

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Token         string `envconfig:"BOT_TOKEN" default:""`
	OwnerID       int64  `envconfig:"OWNER_ID" default:"0"`
	DefaultSymbol string `envconfig:"DEFAULT_SYMBOL" default:"ETH"`
	HistoryLimit  int    `envconfig:"HISTORY_LIMIT" default:"10"`
	PollTimeout   int    `envconfig:"POLL_TIMEOUT" default:"30"`

	// Public base URL; the webhook is registered at WebhookURL + WebhookPath.
	WebhookURL    string `envconfig:"WEBHOOK_URL" default:""`
	WebhookPath   string `envconfig:"WEBHOOK_PATH" default:"/webhook"`
	WebhookSecret string `envconfig:"WEBHOOK_SECRET" default:""`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
