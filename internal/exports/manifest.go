package exports

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const manifestName = "manifest.json"

// Manifest indexes the export directory so pruning never has to guess a
// file's age from filesystem metadata.
type Manifest struct {
	Entries       []ManifestEntry `json:"entries"`
	RetentionDays int             `json:"retentionDays"`
	LastPruned    time.Time       `json:"lastPruned,omitempty"`
}

// ManifestEntry records one exported game file.
type ManifestEntry struct {
	Filename  string    `json:"filename"`
	GameUUID  string    `json:"gameUuid"`
	WrittenAt time.Time `json:"writtenAt"`
}

func (w *Writer) manifestPath() string {
	return filepath.Join(w.baseDir, manifestName)
}

func (w *Writer) manifest() (Manifest, error) {
	data, err := os.ReadFile(w.manifestPath())
	if os.IsNotExist(err) {
		return Manifest{}, nil
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		// A corrupt manifest only loses pruning history, not game data.
		return Manifest{}, nil
	}
	return m, nil
}

func (w *Writer) writeManifest(m Manifest) error {
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return fmt.Errorf("creating export dir: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	tmp := w.manifestPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := os.Rename(tmp, w.manifestPath()); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("placing manifest: %w", err)
	}
	return nil
}
