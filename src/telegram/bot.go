// Package telegram serves the trading journal over a Telegram bot.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	logger "github.com/sirupsen/logrus"

	"tradejournal/src/connectors"
	"tradejournal/src/journal"
	"tradejournal/src/session"
	"tradejournal/src/store"
)

// Sender is the subset of *tgbotapi.BotAPI the bot talks through.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Reporter mails the ledger export.
type Reporter interface {
	Send(ctx context.Context) error
}

type Bot struct {
	api      Sender
	journal  *journal.Journal
	sessions *session.Sessions
	prices   connectors.PriceSource
	reporter Reporter

	ownerID       int64
	defaultSymbol string
	historyLimit  int
}

type Option func(*Bot)

func WithPrices(p connectors.PriceSource) Option {
	return func(b *Bot) { b.prices = p }
}

func WithReporter(r Reporter) Option {
	return func(b *Bot) { b.reporter = r }
}

func New(api Sender, j *journal.Journal, sessions *session.Sessions, cfg Config, opts ...Option) (*Bot, error) {
	if cfg.OwnerID == 0 {
		return nil, errors.New("OWNER_ID is not set")
	}
	def, err := store.NormalizeSymbol(cfg.DefaultSymbol)
	if err != nil {
		return nil, fmt.Errorf("DEFAULT_SYMBOL: %w", err)
	}
	b := &Bot{
		api:           api,
		journal:       j,
		sessions:      sessions,
		ownerID:       cfg.OwnerID,
		defaultSymbol: def,
		historyLimit:  cfg.HistoryLimit,
	}
	if b.historyLimit <= 0 {
		b.historyLimit = 10
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *Bot) authorized(chatID, userID int64) bool {
	return chatID == b.ownerID || userID == b.ownerID
}

// HandleUpdate routes one update. It never returns an error: every failure is
// answered in the chat and logged.
func (b *Bot) HandleUpdate(ctx context.Context, u tgbotapi.Update) {
	defer b.handlePanic(u.UpdateID)
	switch {
	case u.CallbackQuery != nil:
		b.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil:
		b.handleMessage(ctx, u.Message)
	}
}

func (b *Bot) handlePanic(updateID int) {
	if r := recover(); r != nil {
		logger.WithFields(map[string]interface{}{
			"service": "TelegramBot",
			"update":  updateID,
			"stack":   string(debug.Stack()),
		}).WithError(fmt.Errorf("%+v", r)).Error("Update handler panic")
	}
}

// Poll handles updates until ctx is done or the channel closes.
func (b *Bot) Poll(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			b.HandleUpdate(ctx, u)
		}
	}
}

// Notify sends text to the owner chat.
func (b *Bot) Notify(_ context.Context, text string) error {
	msg := tgbotapi.NewMessage(b.ownerID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("send to owner: %w", err)
	}
	return nil
}

func (b *Bot) handleMessage(ctx context.Context, m *tgbotapi.Message) {
	if m.Chat == nil {
		return
	}
	var userID int64
	if m.From != nil {
		userID = m.From.ID
	}
	chatID := m.Chat.ID

	name, args, ok := parseCommand(m.Text)
	if !ok {
		return
	}

	log := logger.WithFields(map[string]interface{}{
		"service": "TelegramBot",
		"command": name,
		"chat":    chatID,
	})
	if !b.authorized(chatID, userID) {
		log.WithField("user", userID).Warn("Rejected command from unknown chat")
		b.reply(chatID, textUnauthorized, nil)
		return
	}
	log.Debug("Command received")

	if userID == 0 {
		userID = chatID
	}
	req := request{chatID: chatID, userID: userID, args: args}

	h, found := b.commands()[name]
	if !found {
		b.reply(chatID, textUnknownCommand, nil)
		return
	}
	h(ctx, req)
}

// parseCommand splits "/cmd@bot a b" into "cmd" and its arguments.
func parseCommand(text string) (string, []string, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil, false
	}
	name := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return "", nil, false
	}
	return strings.ToLower(name), fields[1:], true
}

func (b *Bot) reply(chatID int64, text string, markup interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := b.api.Send(msg); err != nil {
		logger.WithField("chat", chatID).WithError(err).Error("Failed to send telegram message")
	}
}

func (b *Bot) edit(chatID int64, messageID int, text string) {
	msg := tgbotapi.NewEditMessageText(chatID, messageID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		logger.WithField("chat", chatID).WithError(err).Error("Failed to edit telegram message")
	}
}
