package controller

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"

	"tradejournal/src/export"
	"tradejournal/src/journal"
)

// LedgerReader is the part of the journal a report needs.
type LedgerReader interface {
	Symbols(ctx context.Context) ([]string, error)
	Get(ctx context.Context, symbol string) (journal.Status, error)
}

// ReportSender delivers a rendered report.
type ReportSender interface {
	Send(subject, body string, files []export.File) error
}

type ReportController struct {
	ledgers LedgerReader
	sender  ReportSender
	subject string
	now     func() time.Time
}

func NewReportController(ledgers LedgerReader, sender ReportSender, subject string) *ReportController {
	return &ReportController{ledgers: ledgers, sender: sender, subject: subject, now: time.Now}
}

// Build renders the summary and history files of every tracked symbol.
func (c *ReportController) Build(ctx context.Context) ([]export.File, error) {
	symbols, err := c.ledgers.Symbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	entries := make([]export.Entry, 0, len(symbols))
	for _, sym := range symbols {
		st, err := c.ledgers.Get(ctx, sym)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", sym, err)
		}
		entries = append(entries, export.Entry{Symbol: st.Symbol, Ledger: st.Ledger})
	}
	return export.Report(entries)
}

// Send builds the report and mails it.
func (c *ReportController) Send(ctx context.Context) error {
	if c.sender == nil {
		return fmt.Errorf("report sender not configured")
	}
	batch := uuid.NewString()
	log := logger.WithFields(map[string]interface{}{
		"controller": "ReportController",
		"op":         "Send",
		"batch":      batch,
	})

	files, err := c.Build(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to build report")
		return err
	}

	subject := fmt.Sprintf("%s %s", c.subject, c.now().UTC().Format("2006-01-02"))
	body := fmt.Sprintf("Ledger export %s with %d file(s).", batch, len(files))
	if err := c.sender.Send(subject, body, files); err != nil {
		log.WithError(err).Error("Failed to send report")
		return err
	}
	log.WithField("files", len(files)).Info("Report sent")
	return nil
}

// WriteDir builds the report into dir and returns the written paths.
func (c *ReportController) WriteDir(ctx context.Context, dir string) ([]string, error) {
	files, err := c.Build(ctx)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	paths := make([]string, 0, len(files))
	for _, f := range files {
		p := filepath.Join(dir, f.Name)
		if err := os.WriteFile(p, f.Content, 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", p, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}
