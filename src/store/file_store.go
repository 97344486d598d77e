package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"

	"tradejournal/src/model"
)

const fileExt = ".json"

// LegacyFile is the single-asset ledger written by the first version of the bot.
const LegacyFile = "data.json"

// FileStore keeps one JSON document per symbol in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("empty data dir")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir is the directory holding the ledger files.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(symbol string) string {
	return filepath.Join(s.dir, symbol+fileExt)
}

func (s *FileStore) Load(ctx context.Context, symbol string) (model.Ledger, LoadStatus, error) {
	if err := ctx.Err(); err != nil {
		return model.ZeroLedger(), StatusNotFound, err
	}
	sym, err := NormalizeSymbol(symbol)
	if err != nil {
		return model.ZeroLedger(), StatusNotFound, err
	}

	return s.read(s.path(sym), sym)
}

// LoadLegacy reads LegacyFile, if present, without moving it.
func (s *FileStore) LoadLegacy(ctx context.Context) (model.Ledger, LoadStatus, error) {
	if err := ctx.Err(); err != nil {
		return model.ZeroLedger(), StatusNotFound, err
	}
	return s.read(filepath.Join(s.dir, LegacyFile), LegacyFile)
}

func (s *FileStore) read(p, name string) (model.Ledger, LoadStatus, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return model.ZeroLedger(), StatusNotFound, nil
		}
		return model.ZeroLedger(), StatusNotFound, fmt.Errorf("read ledger %s: %w", name, err)
	}

	var l model.Ledger
	if err := json.Unmarshal(data, &l); err != nil {
		quarantined := s.quarantine(p)
		logger.WithFields(map[string]interface{}{
			"store":       "FileStore",
			"op":          "Load",
			"symbol":      name,
			"quarantined": quarantined,
		}).WithError(err).Warn("Ledger file unreadable, starting from an empty ledger")
		return model.ZeroLedger(), StatusCorrupt, nil
	}
	return l, StatusFound, nil
}

// AdoptLegacy renames LegacyFile to the ledger file of symbol. It does nothing
// when there is no legacy file, and keeps both files when symbol already has one.
func (s *FileStore) AdoptLegacy(ctx context.Context, symbol string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	sym, err := NormalizeSymbol(symbol)
	if err != nil {
		return false, err
	}
	legacy := filepath.Join(s.dir, LegacyFile)
	if _, err := os.Stat(legacy); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat legacy ledger: %w", err)
	}

	log := logger.WithFields(map[string]interface{}{
		"store":  "FileStore",
		"op":     "AdoptLegacy",
		"symbol": sym,
	})
	target := s.path(sym)
	if _, err := os.Stat(target); err == nil {
		log.Warn("Legacy ledger left in place, symbol already has a ledger file")
		return false, nil
	}
	if err := os.Rename(legacy, target); err != nil {
		return false, fmt.Errorf("adopt legacy ledger: %w", err)
	}
	log.Info("Legacy ledger adopted")
	return true, nil
}

// quarantine moves an unreadable file aside so the next Save does not destroy it.
func (s *FileStore) quarantine(p string) string {
	target := fmt.Sprintf("%s.corrupt-%s", p, time.Now().UTC().Format("20060102T150405.000000000"))
	if err := os.Rename(p, target); err != nil {
		logger.WithField("path", p).WithError(err).Error("Failed to quarantine ledger file")
		return ""
	}
	return target
}

func (s *FileStore) Save(ctx context.Context, symbol string, l model.Ledger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sym, err := NormalizeSymbol(symbol)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger %s: %w", sym, err)
	}

	tmp, err := os.CreateTemp(s.dir, sym+fileExt+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write ledger %s: %w", sym, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync ledger %s: %w", sym, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close ledger %s: %w", sym, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod ledger %s: %w", sym, err)
	}
	if err := os.Rename(tmpName, s.path(sym)); err != nil {
		cleanup()
		return fmt.Errorf("replace ledger %s: %w", sym, err)
	}

	logger.WithFields(map[string]interface{}{
		"store":  "FileStore",
		"op":     "Save",
		"symbol": sym,
		"events": len(l.History),
	}).Debug("Ledger saved")
	return nil
}

func (s *FileStore) Reset(ctx context.Context, symbol string) error {
	return s.Save(ctx, symbol, model.ZeroLedger())
}

func (s *FileStore) Symbols(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list data dir: %w", err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == LegacyFile || !strings.HasSuffix(name, fileExt) {
			continue
		}
		sym, err := NormalizeSymbol(strings.TrimSuffix(name, fileExt))
		if err != nil {
			continue
		}
		out = append(out, sym)
	}
	sort.Strings(out)
	return out, nil
}
