package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	logger "github.com/sirupsen/logrus"
)

// RequestMaker issues raw Bot API calls.
type RequestMaker interface {
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
}

// SetWebhook registers baseURL+path with Telegram. A non-empty secret is sent
// back by Telegram in the X-Telegram-Bot-Api-Secret-Token header.
func SetWebhook(api RequestMaker, baseURL, path, secret string) error {
	if baseURL == "" {
		return fmt.Errorf("WEBHOOK_URL is not set")
	}
	url := strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/")

	params := tgbotapi.Params{"url": url}
	if secret != "" {
		params["secret_token"] = secret
	}
	resp, err := api.MakeRequest("setWebhook", params)
	if err != nil {
		return fmt.Errorf("setWebhook: %w", err)
	}
	if !resp.Ok {
		return fmt.Errorf("setWebhook: %s", resp.Description)
	}
	logger.WithField("url", url).Info("Telegram webhook registered")
	return nil
}

// DeleteWebhook switches the bot back to getUpdates.
func DeleteWebhook(api RequestMaker) error {
	resp, err := api.MakeRequest("deleteWebhook", tgbotapi.Params{})
	if err != nil {
		return fmt.Errorf("deleteWebhook: %w", err)
	}
	if !resp.Ok {
		return fmt.Errorf("deleteWebhook: %s", resp.Description)
	}
	return nil
}
