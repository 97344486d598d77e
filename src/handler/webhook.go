package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	logger "github.com/sirupsen/logrus"
)

const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// UpdateHandler consumes Telegram updates.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, u tgbotapi.Update)
}

// WebhookHandler accepts Telegram updates carrying secret in the secret token
// header. An empty secret rejects every request.
func WebhookHandler(bot UpdateHandler, secret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(SecretTokenHeader)
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			logger.WithField("remote", r.RemoteAddr).Warn("webhook call with a wrong secret token")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		var update tgbotapi.Update
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&update); err != nil {
			logger.WithError(err).Warn("invalid webhook payload")
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		// finish the update even if Telegram drops the connection
		bot.HandleUpdate(context.WithoutCancel(r.Context()), update)
		w.WriteHeader(http.StatusOK)
	}
}
