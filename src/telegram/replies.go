package telegram

import (
	"errors"

	"tradejournal/src/ledger"
	"tradejournal/src/store"
)

const (
	textGreeting = "Hi! I keep the journal of your spot position. Send /status to see it or /help for all commands."
	textHelp     = "<b>Commands</b>\n" +
		"/status [SYM] position summary\n" +
		"/add [SYM] &lt;price&gt; &lt;amount&gt; record a buy\n" +
		"/fix [SYM] &lt;price&gt; &lt;percent&gt; close part of the position\n" +
		"/avgprice [SYM] average entry price\n" +
		"/history [SYM] recent trades\n" +
		"/reset [SYM] clear the ledger\n" +
		"/symbol pick the default symbol\n" +
		"/price [SYM] current market price\n" +
		"/export mail the CSV report"

	usageStatus  = "Format: /status [SYM]"
	usageAdd     = "Format: /add [SYM] &lt;price&gt; &lt;amount&gt;"
	usageFix     = "Format: /fix [SYM] &lt;price&gt; &lt;percent of position&gt;"
	usageHistory = "Format: /history [SYM]"
	usageReset   = "Format: /reset [SYM]"
	usagePrice   = "Format: /price [SYM]"

	textUnauthorized     = "Unauthorized."
	textUnknownCommand   = "Unknown command. Try /help"
	textInvalidSymbol    = "That is not a valid symbol. Use letters and digits only, e.g. ETH."
	textNotPositive      = "Price and amount must be greater than zero."
	textPercentRange     = "Percent must be greater than 0 and at most 100."
	textOutOfBounds      = "That number is too large or has too many decimal places."
	textNoOpenPosition   = "There is no open position to fix."
	textDegenerate       = "That would leave the position without any asset, nothing was changed."
	textConflict         = "The ledger was changed by someone else at the same time. Please try again."
	textStoreFailure     = "Could not read or save the ledger. Nothing was changed, please try again later."
	textNoPriceFeed      = "Price feed is not configured."
	textPriceUnavailable = "Price is unavailable right now."
	textNoMailer         = "Export by mail is not configured."
	textExportSent       = "Report sent by mail."
	textExportFailed     = "Could not send the report."
)

// errorText maps a failure to the reply for it. usage is shown for input that
// could not be parsed.
func errorText(err error, usage string) string {
	switch {
	case errors.Is(err, ledger.ErrPercentOutOfRange):
		return textPercentRange
	case errors.Is(err, ledger.ErrOutOfBounds):
		return textOutOfBounds
	case errors.Is(err, ledger.ErrNotPositive):
		return textNotPositive
	case errors.Is(err, ledger.ErrNoOpenPosition):
		return textNoOpenPosition
	case errors.Is(err, ledger.ErrDegenerateState):
		return textDegenerate
	case errors.Is(err, ledger.ErrInvalidInput):
		// missing or non-numeric arguments
		if usage == "" {
			return textUnknownCommand
		}
		return usage
	case errors.Is(err, store.ErrInvalidSymbol):
		return textInvalidSymbol
	case errors.Is(err, store.ErrVersionConflict):
		return textConflict
	default:
		return textStoreFailure
	}
}

func (b *Bot) replyError(chatID int64, err error, usage string) {
	b.reply(chatID, errorText(err, usage), nil)
}
