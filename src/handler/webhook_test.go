package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBot struct {
	updates []tgbotapi.Update
	ctxErr  error
}

func (b *recordingBot) HandleUpdate(ctx context.Context, u tgbotapi.Update) {
	b.ctxErr = ctx.Err()
	b.updates = append(b.updates, u)
}

const updateJSON = `{"update_id":10,"message":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"},"from":{"id":42,"is_bot":false,"first_name":"x"},"text":"/status"}}`

func TestWebhookHandler_WrongSecret(t *testing.T) {
	bot := &recordingBot{}
	handler := WebhookHandler(bot, "s3cret")

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(updateJSON))
	req.Header.Set(SecretTokenHeader, "nope")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Empty(t, bot.updates)
}

func TestWebhookHandler_EmptySecretRejectsEverything(t *testing.T) {
	bot := &recordingBot{}
	handler := WebhookHandler(bot, "")

	for _, header := range []string{"", "anything"} {
		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"update_id":10,"message":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"},"from":{"id":42,"is_bot":false,"first_name":"x"},"text":"/reset ETH"}}`))
		if header != "" {
			req.Header.Set(SecretTokenHeader, header)
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	}
	assert.Empty(t, bot.updates)
}

func TestWebhookHandler_MissingHeader(t *testing.T) {
	bot := &recordingBot{}
	handler := WebhookHandler(bot, "s3cret")

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(updateJSON))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Empty(t, bot.updates)
}

func TestWebhookHandler_InvalidPayload(t *testing.T) {
	bot := &recordingBot{}
	handler := WebhookHandler(bot, "s3cret")

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{"))
	req.Header.Set(SecretTokenHeader, "s3cret")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, bot.updates)
}

func TestWebhookHandler_DispatchesUpdate(t *testing.T) {
	bot := &recordingBot{}
	handler := WebhookHandler(bot, "s3cret")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(updateJSON)).WithContext(ctx)
	req.Header.Set(SecretTokenHeader, "s3cret")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, bot.updates, 1)
	assert.Equal(t, 10, bot.updates[0].UpdateID)
	assert.Equal(t, "/status", bot.updates[0].Message.Text)
	assert.NoError(t, bot.ctxErr, "handling must not inherit request cancellation")
}
