package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	logger "github.com/sirupsen/logrus"

	"tradejournal/src/store"
)

const (
	actionSelectSymbol = "symbol"
	actionResetConfirm = "reset_yes"
	actionResetCancel  = "reset_no"
)

func callbackData(action, symbol string) string {
	return action + ":" + symbol
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	var userID int64
	if cb.From != nil {
		userID = cb.From.ID
	}
	var chatID int64
	var messageID int
	if cb.Message != nil && cb.Message.Chat != nil {
		chatID = cb.Message.Chat.ID
		messageID = cb.Message.MessageID
	}

	if !b.authorized(chatID, userID) {
		b.answer(cb.ID, textUnauthorized)
		return
	}
	if userID == 0 {
		userID = chatID
	}

	action, arg, _ := strings.Cut(cb.Data, ":")
	sym, err := store.NormalizeSymbol(arg)
	if err != nil {
		b.answer(cb.ID, textInvalidSymbol)
		return
	}

	switch action {
	case actionSelectSymbol:
		b.sessions.Select(userID, sym)
		b.answer(cb.ID, sym)
		if chatID != 0 {
			b.edit(chatID, messageID, fmt.Sprintf("Working with <b>%s</b> now.", sym))
		}

	case actionResetConfirm:
		if err := b.journal.Reset(ctx, sym); err != nil {
			logger.WithField("symbol", sym).WithError(err).Error("Reset from callback failed")
			b.answer(cb.ID, textStoreFailure)
			return
		}
		b.answer(cb.ID, "Done")
		if chatID != 0 {
			b.edit(chatID, messageID, fmt.Sprintf("<b>%s</b> ledger reset. You can start a new session.", sym))
		}

	case actionResetCancel:
		b.answer(cb.ID, "Cancelled")
		if chatID != 0 {
			b.edit(chatID, messageID, "Reset cancelled.")
		}

	default:
		b.answer(cb.ID, textUnknownCommand)
	}
}

func (b *Bot) answer(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		logger.WithError(err).Error("Failed to answer callback query")
	}
}
