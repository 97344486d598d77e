// Package app wires the configured packages into the running services
// shared by the command line and the server binary.
package app

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradejournal/src/connectors"
	"tradejournal/src/controller"
	"tradejournal/src/database"
	"tradejournal/src/journal"
	"tradejournal/src/mailer"
	"tradejournal/src/repository"
	"tradejournal/src/scheduler"
	"tradejournal/src/session"
	"tradejournal/src/store"
	"tradejournal/src/telegram"
	"tradejournal/src/watcher"
)

// Runtime holds the ledger side of the application: store, journal and
// the exception sink.
type Runtime struct {
	Config     Config
	Store      store.Store
	Journal    *journal.Journal
	Exceptions controller.ExceptionCreator
}

// NewRuntime opens the backend selected by STORE_BACKEND. The sql backend
// connects the main database and runs its migrations first.
func NewRuntime() (*Runtime, error) {
	cfg := GetConfig()
	rt := &Runtime{Config: cfg}

	storeCfg := store.GetConfig()
	switch storeCfg.Backend {
	case store.BackendFile, "":
		fs, err := store.NewFileStore(storeCfg.DataDir)
		if err != nil {
			return nil, err
		}
		if _, err := fs.AdoptLegacy(context.Background(), storeCfg.DefaultSymbol); err != nil {
			return nil, err
		}
		rt.Store = fs
	case store.BackendSQL:
		if err := database.InitMainDB(); err != nil {
			return nil, fmt.Errorf("init database: %w", err)
		}
		rt.Store = repository.NewLedgerRepository()
		rt.Exceptions = repository.NewExceptionRepository()
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", storeCfg.Backend)
	}

	tolerance, err := decimal.NewFromString(cfg.DriftTolerance)
	if err != nil {
		return nil, fmt.Errorf("DRIFT_TOLERANCE: %w", err)
	}
	rt.Journal = journal.New(rt.Store,
		journal.WithCorruptionHook(controller.CorruptionCapture(rt.Exceptions)),
		journal.WithDriftTolerance(tolerance),
	)

	logger.WithFields(map[string]interface{}{
		"backend":  storeCfg.Backend,
		"data_dir": storeCfg.DataDir,
	}).Info("Ledger store ready")
	return rt, nil
}

// PriceSource builds the configured price source. A stream source is
// started in the background and stops with ctx.
func (rt *Runtime) PriceSource(ctx context.Context) (connectors.PriceSource, error) {
	src, err := connectors.NewPriceSource(connectors.GetConfig())
	if err != nil {
		return nil, err
	}
	if stream, ok := src.(*connectors.BinanceStream); ok {
		go func() {
			if err := stream.Run(ctx); err != nil && ctx.Err() == nil {
				logger.WithError(err).Error("Price stream stopped")
			}
		}()
	}
	return src, nil
}

// Reports returns the report controller, or nil when MAIL_TO is unset.
func (rt *Runtime) Reports() (*controller.ReportController, error) {
	mailCfg := mailer.GetConfig()
	if mailCfg.To == "" {
		return nil, nil
	}
	m, err := mailer.New(mailCfg)
	if err != nil {
		return nil, err
	}
	return controller.NewReportController(rt.Journal, m, controller.GetConfig().ReportSubject), nil
}

// Bot connects to the Telegram API and builds the journal bot on top of
// it. Expired symbol selections are swept until ctx is done.
func (rt *Runtime) Bot(ctx context.Context, prices connectors.PriceSource, reports *controller.ReportController) (*telegram.Bot, *tgbotapi.BotAPI, error) {
	tgCfg := telegram.GetConfig()
	if tgCfg.Token == "" {
		return nil, nil, fmt.Errorf("BOT_TOKEN is not set")
	}
	api, err := tgbotapi.NewBotAPI(tgCfg.Token)
	if err != nil {
		return nil, nil, fmt.Errorf("connect telegram: %w", err)
	}
	logger.WithField("bot", api.Self.UserName).Info("Authorized on Telegram")

	sessions := session.New(session.GetConfig().TTL)
	go sweepSessions(ctx, sessions, rt.Config.SweepInterval)

	opts := []telegram.Option{}
	if prices != nil {
		opts = append(opts, telegram.WithPrices(prices))
	}
	if reports != nil {
		opts = append(opts, telegram.WithReporter(reports))
	}
	bot, err := telegram.New(api, rt.Journal, sessions, tgCfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	return bot, api, nil
}

func sweepSessions(ctx context.Context, sessions *session.Sessions, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := sessions.Sweep(now); n > 0 {
				logger.WithField("expired", n).Debug("Swept symbol selections")
			}
		}
	}
}

// Watcher builds the zone watcher from ALERTS_FILE, or the built-in zones
// when no file is configured.
func (rt *Runtime) Watcher(prices connectors.PriceSource, notifier watcher.Notifier) (*watcher.Watcher, error) {
	cfg := watcher.GetConfig()
	zones, err := watcher.LoadZones(cfg.AlertsFile)
	if err != nil {
		return nil, err
	}
	return watcher.New(prices, notifier, zones, cfg.Interval, cfg.MaxBackoff), nil
}

// Scheduler registers the daily report job. It returns nil when reports
// are not configured.
func (rt *Runtime) Scheduler(ctx context.Context, reports *controller.ReportController) (*scheduler.Scheduler, error) {
	if reports == nil {
		return nil, nil
	}
	cfg := scheduler.GetConfig()
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TZ_NAME: %w", err)
	}
	s := scheduler.New(loc)
	err = s.Register("daily_report", cfg.ReportCron, func() {
		if err := reports.Send(ctx); err != nil {
			controller.Capture(ctx, rt.Exceptions, rt.Config.AppName, "scheduler", "daily_report", "error", err, nil)
		}
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Background starts the watcher and the scheduler next to the bot.
func (rt *Runtime) Background(ctx context.Context, prices connectors.PriceSource, bot *telegram.Bot, reports *controller.ReportController) error {
	if rt.Config.WatchEnabled {
		w, err := rt.Watcher(prices, bot)
		if err != nil {
			return err
		}
		go func() { _ = w.Run(ctx) }()
	}

	s, err := rt.Scheduler(ctx, reports)
	if err != nil {
		return err
	}
	if s != nil {
		go s.Run(ctx)
	}
	return nil
}
