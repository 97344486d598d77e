package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	logger "github.com/sirupsen/logrus"

	"tradejournal/cmd/app"
)

func main() {
	_ = godotenv.Load()
	config := app.GetConfig()
	app.SetupLogger(config)
	defer handlePanic(config.AppName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Serve(ctx); err != nil {
		logger.WithError(err).Fatal("Server stopped")
	}
}

func handlePanic(appName string) {
	if r := recover(); r != nil {
		logger.WithError(fmt.Errorf("%+v", r)).Error(fmt.Sprintf("Application %s panic", appName))
		//nolint
		time.Sleep(time.Second * 5)
	}
}
