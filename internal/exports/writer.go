// Package exports persists shared games as standalone .game files and
// prunes old ones on a schedule.
package exports

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/justinlawrence/disc-golf-tracker/internal/logging"
	"github.com/justinlawrence/disc-golf-tracker/internal/snapshot"
)

const gamesDir = "games"

// Writer owns an export directory. Each export lands as
// <dir>/games/<course> on <date>.game, with a manifest.json beside the
// games directory tracking what was written when.
type Writer struct {
	baseDir       string
	retentionDays int
	logger        *slog.Logger
	now           func() time.Time
}

// NewWriter constructs a Writer rooted at baseDir. Retention <= 0 disables
// pruning.
func NewWriter(baseDir string, retentionDays int, logger *slog.Logger) *Writer {
	return &Writer{
		baseDir:       baseDir,
		retentionDays: retentionDays,
		logger:        logger,
		now:           time.Now,
	}
}

// Write persists a snapshot and returns the file path. The file is written
// to a temp name and renamed so a crash never leaves a half-written export,
// and re-exporting the same game replaces the previous file in place.
func (w *Writer) Write(snap snapshot.SharedGame) (string, error) {
	if snap.UUID == "" {
		return "", fmt.Errorf("snapshot has no game uuid")
	}
	dir := filepath.Join(w.baseDir, gamesDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating export dir: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding snapshot: %w", err)
	}
	path := filepath.Join(dir, snap.Filename())

	tmp, err := os.CreateTemp(dir, ".export-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("writing export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("closing export: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("placing export: %w", err)
	}

	if err := w.recordEntry(snap, filepath.Base(path)); err != nil {
		return "", err
	}
	logging.Info(w.logger, "game exported", logging.FieldGameID, snap.UUID, logging.FieldPath, path)
	return path, nil
}

// Read loads a .game file. Files that do not decode into a usable game
// are rejected rather than half-imported.
func (w *Writer) Read(path string) (snapshot.SharedGame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return snapshot.SharedGame{}, fmt.Errorf("reading game file: %w", err)
	}
	var snap snapshot.SharedGame
	if err := json.Unmarshal(data, &snap); err != nil {
		return snapshot.SharedGame{}, fmt.Errorf("unrecognized game file %s: %w", filepath.Base(path), err)
	}
	if snap.UUID == "" || snap.CourseID == "" {
		return snapshot.SharedGame{}, fmt.Errorf("unrecognized game file %s: missing identity", filepath.Base(path))
	}
	return snap, nil
}

// Prune removes exports older than the retention window and reports how
// many files were deleted.
func (w *Writer) Prune() (int, error) {
	if w.retentionDays <= 0 {
		return 0, nil
	}
	m, err := w.manifest()
	if err != nil {
		return 0, err
	}
	cutoff := w.now().AddDate(0, 0, -w.retentionDays)

	removed := 0
	kept := make([]ManifestEntry, 0, len(m.Entries))
	for _, e := range m.Entries {
		if e.WrittenAt.After(cutoff) {
			kept = append(kept, e)
			continue
		}
		path := filepath.Join(w.baseDir, gamesDir, e.Filename)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("removing %s: %w", e.Filename, err)
		}
		removed++
	}
	if removed > 0 {
		m.Entries = kept
		m.LastPruned = w.now()
		if err := w.writeManifest(m); err != nil {
			return removed, err
		}
		logging.Info(w.logger, "pruned old exports", logging.FieldCount, removed)
	}
	return removed, nil
}

func (w *Writer) recordEntry(snap snapshot.SharedGame, filename string) error {
	m, err := w.manifest()
	if err != nil {
		return err
	}
	entry := ManifestEntry{
		Filename:  filename,
		GameUUID:  snap.UUID,
		WrittenAt: w.now(),
	}
	replaced := false
	for i := range m.Entries {
		if m.Entries[i].GameUUID == snap.UUID {
			m.Entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		m.Entries = append(m.Entries, entry)
	}
	m.RetentionDays = w.retentionDays
	return w.writeManifest(m)
}
