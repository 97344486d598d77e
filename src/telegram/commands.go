package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradejournal/src/ledger"
	"tradejournal/src/store"
)

type request struct {
	chatID int64
	userID int64
	args   []string
}

type handlerFunc func(ctx context.Context, r request)

func (b *Bot) commands() map[string]handlerFunc {
	return map[string]handlerFunc{
		"start":    b.cmdStart,
		"help":     b.cmdHelp,
		"status":   b.cmdStatus,
		"add":      b.cmdAdd,
		"fix":      b.cmdFix,
		"avgprice": b.cmdAvgPrice,
		"history":  b.cmdHistory,
		"reset":    b.cmdReset,
		"symbol":   b.cmdSymbol,
		"price":    b.cmdPrice,
		"export":   b.cmdExport,
	}
}

// symbolArg takes an optional leading symbol off args. Anything that parses
// as a number is left for the operation.
func (b *Bot) symbolArg(r request) (string, []string, error) {
	if len(r.args) > 0 {
		if _, err := ledger.ParseNumber(r.args[0]); errors.Is(err, ledger.ErrNotNumeric) {
			sym, err := store.NormalizeSymbol(r.args[0])
			if err != nil {
				return "", nil, err
			}
			return sym, r.args[1:], nil
		}
	}
	return b.sessions.SymbolOr(r.userID, b.defaultSymbol), r.args, nil
}

func (b *Bot) cmdStart(_ context.Context, r request) {
	b.reply(r.chatID, textGreeting, nil)
}

func (b *Bot) cmdHelp(_ context.Context, r request) {
	b.reply(r.chatID, textHelp, nil)
}

func (b *Bot) cmdStatus(ctx context.Context, r request) {
	sym, _, err := b.symbolArg(r)
	if err != nil {
		b.replyError(r.chatID, err, usageStatus)
		return
	}
	st, err := b.journal.Get(ctx, sym)
	if err != nil {
		b.replyError(r.chatID, err, usageStatus)
		return
	}

	l := st.Ledger
	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>%s</b>\n", sym)
	fmt.Fprintf(&sb, "<b>Average entry:</b> %s USDT\n", money(l.AveragePrice))
	fmt.Fprintf(&sb, "<b>Held:</b> %s %s\n", qty(l.AssetTotal), sym)
	fmt.Fprintf(&sb, "<b>Deployed:</b> %s USDT", money(l.CapitalTotal))
	if b.prices != nil && l.AssetTotal.IsPositive() {
		if price, err := b.prices.LastPrice(ctx, sym); err == nil {
			fmt.Fprintf(&sb, "\n<b>Unrealized:</b> %s USDT at %s", signed(ledger.Unrealized(l, price)), money(price))
		} else {
			logger.WithField("symbol", sym).WithError(err).Debug("No price for status")
		}
	}
	b.reply(r.chatID, sb.String(), nil)
}

func (b *Bot) cmdAdd(ctx context.Context, r request) {
	sym, args, err := b.symbolArg(r)
	if err != nil {
		b.replyError(r.chatID, err, usageAdd)
		return
	}
	price, amount, err := ledger.ParseAddArgs(args)
	if err != nil {
		b.replyError(r.chatID, err, usageAdd)
		return
	}
	l, err := b.journal.Add(ctx, sym, price, amount)
	if err != nil {
		b.replyError(r.chatID, err, usageAdd)
		return
	}
	b.reply(r.chatID, fmt.Sprintf("Added %s %s at %s USDT\nNew average: %s USDT",
		amount.String(), sym, price.String(), money(l.AveragePrice)), nil)
}

func (b *Bot) cmdFix(ctx context.Context, r request) {
	sym, args, err := b.symbolArg(r)
	if err != nil {
		b.replyError(r.chatID, err, usageFix)
		return
	}
	price, percent, err := ledger.ParseFixArgs(args)
	if err != nil {
		b.replyError(r.chatID, err, usageFix)
		return
	}
	res, err := b.journal.Fix(ctx, sym, price, percent)
	if err != nil {
		b.replyError(r.chatID, err, usageFix)
		return
	}
	b.reply(r.chatID, fmt.Sprintf("Closed %s %s at %s USDT\nReceived: %s USDT\nRealized PnL: %s USDT",
		qty(res.Closed), sym, price.String(), money(res.Gained), signed(res.Realized)), nil)
}

func (b *Bot) cmdAvgPrice(ctx context.Context, r request) {
	sym, _, err := b.symbolArg(r)
	if err != nil {
		b.replyError(r.chatID, err, usageStatus)
		return
	}
	st, err := b.journal.Get(ctx, sym)
	if err != nil {
		b.replyError(r.chatID, err, usageStatus)
		return
	}
	b.reply(r.chatID, fmt.Sprintf("Current average price of %s: %s USDT", sym, money(st.Ledger.AveragePrice)), nil)
}

func (b *Bot) cmdHistory(ctx context.Context, r request) {
	sym, _, err := b.symbolArg(r)
	if err != nil {
		b.replyError(r.chatID, err, usageHistory)
		return
	}
	events, err := b.journal.History(ctx, sym, b.historyLimit)
	if err != nil {
		b.replyError(r.chatID, err, usageHistory)
		return
	}
	if len(events) == 0 {
		b.reply(r.chatID, fmt.Sprintf("No trades recorded for %s yet.", sym), nil)
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>%s</b>, last %d:\n", sym, len(events))
	for _, ev := range events {
		ts := "-"
		if ev.Time != nil {
			ts = ev.Time.UTC().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(&sb, "<code>%s</code> %s %s @ %s\n", ts, ev.Action, ev.Amount.String(), ev.Price.String())
	}
	b.reply(r.chatID, strings.TrimRight(sb.String(), "\n"), nil)
}

func (b *Bot) cmdReset(_ context.Context, r request) {
	sym, _, err := b.symbolArg(r)
	if err != nil {
		b.replyError(r.chatID, err, usageReset)
		return
	}
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Cancel", callbackData(actionResetCancel, sym)),
			tgbotapi.NewInlineKeyboardButtonData("Yes, reset", callbackData(actionResetConfirm, sym)),
		),
	)
	b.reply(r.chatID, fmt.Sprintf("Reset the <b>%s</b> ledger? Its history will be deleted.", sym), keyboard)
}

func (b *Bot) cmdSymbol(ctx context.Context, r request) {
	symbols, err := b.journal.Symbols(ctx)
	if err != nil {
		b.replyError(r.chatID, err, "")
		return
	}
	current := b.sessions.SymbolOr(r.userID, b.defaultSymbol)
	symbols = withSymbol(symbols, b.defaultSymbol)

	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, sym := range symbols {
		label := sym
		if sym == current {
			label = "• " + sym
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, callbackData(actionSelectSymbol, sym)))
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	b.reply(r.chatID, "Pick the symbol to work with:", tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (b *Bot) cmdPrice(ctx context.Context, r request) {
	if b.prices == nil {
		b.reply(r.chatID, textNoPriceFeed, nil)
		return
	}
	sym, _, err := b.symbolArg(r)
	if err != nil {
		b.replyError(r.chatID, err, usagePrice)
		return
	}
	price, err := b.prices.LastPrice(ctx, sym)
	if err != nil {
		logger.WithField("symbol", sym).WithError(err).Warn("Price lookup failed")
		b.reply(r.chatID, textPriceUnavailable, nil)
		return
	}
	b.reply(r.chatID, fmt.Sprintf("<b>%s</b>: %s USDT", sym, money(price)), nil)
}

func (b *Bot) cmdExport(ctx context.Context, r request) {
	if b.reporter == nil {
		b.reply(r.chatID, textNoMailer, nil)
		return
	}
	if err := b.reporter.Send(ctx); err != nil {
		b.reply(r.chatID, textExportFailed, nil)
		return
	}
	b.reply(r.chatID, textExportSent, nil)
}

func withSymbol(symbols []string, sym string) []string {
	for _, s := range symbols {
		if s == sym {
			return symbols
		}
	}
	return append([]string{sym}, symbols...)
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func qty(d decimal.Decimal) string { return d.StringFixed(4) }

func signed(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + d.StringFixed(2)
	}
	return d.StringFixed(2)
}
