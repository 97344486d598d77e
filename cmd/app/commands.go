package app

import (
	"context"
	"fmt"
	"io"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	logger "github.com/sirupsen/logrus"

	"tradejournal/src/controller"
	"tradejournal/src/database"
	"tradejournal/src/security"
	"tradejournal/src/server"
	"tradejournal/src/telegram"
)

// Serve runs the HTTP server with the Telegram webhook, the watcher and the
// report schedule until ctx is done.
func Serve(ctx context.Context) error {
	tgCfg := telegram.GetConfig()
	if tgCfg.WebhookSecret == "" {
		return fmt.Errorf("WEBHOOK_SECRET must be set to serve the webhook")
	}

	rt, err := NewRuntime()
	if err != nil {
		return err
	}
	prices, err := rt.PriceSource(ctx)
	if err != nil {
		return err
	}
	reports, err := rt.Reports()
	if err != nil {
		return err
	}
	bot, api, err := rt.Bot(ctx, prices, reports)
	if err != nil {
		return err
	}

	if tgCfg.WebhookURL != "" {
		if err := telegram.SetWebhook(api, tgCfg.WebhookURL, tgCfg.WebhookPath, tgCfg.WebhookSecret); err != nil {
			return err
		}
	} else {
		logger.Warn("WEBHOOK_URL is not set, updates must be registered by hand")
	}

	if err := rt.Background(ctx, prices, bot, reports); err != nil {
		return err
	}

	srvCfg := server.GetConfig()
	router := server.NewRouter(server.Routes{
		Bot:           bot,
		WebhookPath:   tgCfg.WebhookPath,
		WebhookSecret: tgCfg.WebhookSecret,
		Journal:       rt.Journal,
		APIToken:      srvCfg.APIToken,
	})
	return server.Run(ctx, srvCfg.Port, router, srvCfg.ShutdownTimeout)
}

// Poll runs the bot over long polling instead of a webhook.
func Poll(ctx context.Context) error {
	rt, err := NewRuntime()
	if err != nil {
		return err
	}
	prices, err := rt.PriceSource(ctx)
	if err != nil {
		return err
	}
	reports, err := rt.Reports()
	if err != nil {
		return err
	}
	bot, api, err := rt.Bot(ctx, prices, reports)
	if err != nil {
		return err
	}

	if err := telegram.DeleteWebhook(api); err != nil {
		return err
	}
	if err := rt.Background(ctx, prices, bot, reports); err != nil {
		return err
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = telegram.GetConfig().PollTimeout
	updates := api.GetUpdatesChan(u)
	defer api.StopReceivingUpdates()

	logger.Info("Polling Telegram for updates")
	bot.Poll(ctx, updates)
	return nil
}

// Watch runs only the price watcher, alerting through the bot.
func Watch(ctx context.Context) error {
	rt, err := NewRuntime()
	if err != nil {
		return err
	}
	prices, err := rt.PriceSource(ctx)
	if err != nil {
		return err
	}
	bot, _, err := rt.Bot(ctx, prices, nil)
	if err != nil {
		return err
	}
	w, err := rt.Watcher(prices, bot)
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

// Export writes the report files into dir and, when mail is set, mails them.
func Export(ctx context.Context, dir string, mail bool) error {
	rt, err := NewRuntime()
	if err != nil {
		return err
	}
	if dir == "" {
		dir = controller.GetConfig().ExportDir
	}

	written, err := controller.NewReportController(rt.Journal, nil, "").WriteDir(ctx, dir)
	if err != nil {
		return err
	}
	logger.WithFields(map[string]interface{}{
		"dir":   dir,
		"files": len(written),
	}).Info("Report written")

	if !mail {
		return nil
	}
	reports, err := rt.Reports()
	if err != nil {
		return err
	}
	if reports == nil {
		return fmt.Errorf("MAIL_TO is not set")
	}
	return reports.Send(ctx)
}

// Migrate connects the main database and applies schema and data migrations.
func Migrate() error {
	return database.InitMainDB()
}

// Encrypt seals plain with SECRETS_KEY and prints the result to out.
func Encrypt(out io.Writer, plain string) error {
	if plain == "" {
		return fmt.Errorf("nothing to encrypt")
	}
	sealed, err := security.EncryptString(plain)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, sealed)
	return err
}
