package controller

import (
	"context"
	"encoding/json"
	"errors"
	"runtime/debug"
	"time"

	logger "github.com/sirupsen/logrus"

	"tradejournal/src/journal"
	"tradejournal/src/model"
)

const serviceName = "tradejournal"

var ErrCorruptLedger = errors.New("ledger record unreadable, replaced by an empty ledger")

// ExceptionCreator persists captured exceptions.
type ExceptionCreator interface {
	Create(ctx context.Context, exc *model.Exception) error
}

// Capture records a system exception, logs it locally, and optionally
// persists it in the database.
func Capture(
	ctx context.Context,
	repo ExceptionCreator,
	service string,
	module string,
	method string,
	level string,
	err error,
	contextData map[string]interface{},
) {

	if err == nil {
		return
	}

	var ctxJSON string
	if contextData != nil {
		if b, e := json.Marshal(contextData); e == nil {
			ctxJSON = string(b)
		}
	}

	exc := &model.Exception{
		Service:   service,
		Module:    module,
		Method:    method,
		Message:   err.Error(),
		Stack:     string(debug.Stack()),
		Level:     level,
		Context:   ctxJSON,
		CreatedAt: time.Now(),
	}

	// Local log
	logger.WithFields(map[string]interface{}{
		"service": service,
		"module":  module,
		"method":  method,
		"level":   level,
	}).WithError(err).Error("System exception captured")

	// Persist in database
	if repo != nil {
		if e := repo.Create(ctx, exc); e != nil {
			logger.WithError(e).Error("Failed to persist exception")
		}
	}
}

// CorruptionCapture turns unreadable ledger records into captured exceptions.
func CorruptionCapture(repo ExceptionCreator) journal.CorruptionHook {
	return func(ctx context.Context, symbol string) {
		Capture(ctx, repo, serviceName, "journal", "Load", "warn", ErrCorruptLedger,
			map[string]interface{}{"symbol": symbol})
	}
}
