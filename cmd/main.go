package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"tradejournal/cmd/app"
)

var Version string

func main() {
	cliApp := cli.NewApp()
	cliApp.Name = "tradejournal"
	cliApp.Usage = "Telegram trading journal"
	cliApp.Version = Version
	cliApp.Before = func(_ *cli.Context) error {
		// a missing .env is fine, the environment may already be set
		_ = godotenv.Load()
		app.SetupLogger(app.GetConfig())
		return nil
	}

	cliApp.Commands = []cli.Command{
		serveCMD,
		pollCMD,
		watchCMD,
		exportCMD,
		migrateCMD,
		encryptCMD,
	}

	if err := cliApp.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	serveCMD = cli.Command{
		Name:        "serve",
		Usage:       "run the webhook server",
		Action:      serveAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Serve the Telegram webhook and the ledger API, with the price watcher and report schedule`,
	}
	pollCMD = cli.Command{
		Name:        "poll",
		Usage:       "run the bot with long polling",
		Action:      pollAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Remove any webhook and receive Telegram updates by polling`,
	}
	watchCMD = cli.Command{
		Name:        "watch",
		Usage:       "run the price watcher",
		Action:      watchAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Watch buy/sell zones and alert the owner on Telegram`,
	}
	exportCMD = cli.Command{
		Name:      "export",
		Usage:     "export ledgers to CSV",
		Action:    exportAction,
		ArgsUsage: "",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "dir", Usage: "output directory (default EXPORT_DIR)"},
			cli.BoolFlag{Name: "mail", Usage: "also mail the report to MAIL_TO"},
		},
		Description: `Write summary.csv and one history file per symbol`,
	}
	migrateCMD = cli.Command{
		Name:        "migrate",
		Usage:       "run database migrations",
		Action:      migrateAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Create the ledger tables and import ledger files from DATA_DIR`,
	}
	encryptCMD = cli.Command{
		Name:        "encrypt",
		Usage:       "encrypt a secret with SECRETS_KEY",
		Action:      encryptAction,
		ArgsUsage:   "<value>",
		Flags:       []cli.Flag{},
		Description: `Print the sealed form of a value, e.g. for SMTP_PASSWORD_ENC`,
	}
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func serveAction(_ *cli.Context) error {
	logrus.WithField("cmd", "serve").Info("Starting serve CMD")

	ctx, stop := signalContext()
	defer stop()

	if err := app.Serve(ctx); err != nil {
		logrus.WithError(err).Error("Serve stopped")
		return err
	}
	return nil
}

func pollAction(_ *cli.Context) error {
	logrus.WithField("cmd", "poll").Info("Starting poll CMD")

	ctx, stop := signalContext()
	defer stop()

	if err := app.Poll(ctx); err != nil {
		logrus.WithError(err).Error("Poll stopped")
		return err
	}
	return nil
}

func watchAction(_ *cli.Context) error {
	logrus.WithField("cmd", "watch").Info("Starting watch CMD")

	ctx, stop := signalContext()
	defer stop()

	if err := app.Watch(ctx); err != nil {
		logrus.WithError(err).Error("Watch stopped")
		return err
	}
	return nil
}

func exportAction(c *cli.Context) error {
	logrus.WithField("cmd", "export").Info("Starting export CMD")

	ctx, stop := signalContext()
	defer stop()

	return app.Export(ctx, c.String("dir"), c.Bool("mail"))
}

func migrateAction(_ *cli.Context) error {
	logrus.WithField("cmd", "migrate").Info("Starting migrate CMD")

	if err := app.Migrate(); err != nil {
		logrus.WithError(err).Error("Migration failed")
		return err
	}
	return nil
}

func encryptAction(c *cli.Context) error {
	return app.Encrypt(os.Stdout, strings.TrimSpace(c.Args().First()))
}
