// Package artifact persists trained models and metrics under per-symbol
// directories:
//
//	<models>/<SYMBOL>/<kind>_model.gob
//	<reports>/<SYMBOL>/metrics.json
//
// Each symbol owns its directory, so runs for different symbols never touch
// the same files. Writes go through a temp file and rename; the last write
// wins and nothing is versioned.
package artifact

import (
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Isaadqurashi/mlops-project/internal/model"
)

const metricsFile = "metrics.json"

// Meta describes the training run that produced an artifact.
type Meta struct {
	Symbol    string
	Kind      string
	RunID     string
	TrainedAt time.Time
	// Features lists the input columns in the order the model expects them.
	Features []string
}

// Artifact is a model bound to one symbol and one training run.
type Artifact[T any] struct {
	Meta  Meta
	Model T
}

// Store reads and writes artifacts on the local filesystem.
type Store struct {
	modelsDir  string
	reportsDir string
}

func NewStore(modelsDir, reportsDir string) *Store {
	return &Store{modelsDir: modelsDir, reportsDir: reportsDir}
}

// ModelPath returns the file an artifact of kind is stored in.
func (s *Store) ModelPath(symbol, kind string) string {
	return filepath.Join(s.modelsDir, symbol, kind+"_model.gob")
}

// MetricsPath returns the metrics document of symbol.
func (s *Store) MetricsPath(symbol string) string {
	return filepath.Join(s.reportsDir, symbol, metricsFile)
}

// Save gob-encodes a and replaces the stored artifact of its symbol and kind.
func Save[T any](s *Store, a Artifact[T]) error {
	if a.Meta.Symbol == "" || a.Meta.Kind == "" {
		return errors.New("artifact: symbol and kind are required")
	}
	path := s.ModelPath(a.Meta.Symbol, a.Meta.Kind)
	err := writeAtomic(path, func(w io.Writer) error {
		return gob.NewEncoder(w).Encode(&a)
	})
	if err != nil {
		return fmt.Errorf("save %s %s: %w", a.Meta.Symbol, a.Meta.Kind, err)
	}
	return nil
}

// Load decodes the artifact of kind for symbol. A missing file yields
// model.ErrArtifactNotFound, an undecodable one model.ErrArtifactUnreadable.
func Load[T any](s *Store, symbol, kind string) (Artifact[T], error) {
	var a Artifact[T]
	f, err := os.Open(s.ModelPath(symbol, kind))
	if errors.Is(err, fs.ErrNotExist) {
		return a, fmt.Errorf("%w: %s %s", model.ErrArtifactNotFound, symbol, kind)
	}
	if err != nil {
		return a, err
	}
	defer f.Close()

	if err := gob.NewDecoder(f).Decode(&a); err != nil {
		return a, fmt.Errorf("%w: %s %s: %v", model.ErrArtifactUnreadable, symbol, kind, err)
	}
	return a, nil
}

// SaveMetrics writes the metrics record of symbol as indented JSON.
func (s *Store) SaveMetrics(symbol string, rec model.MetricsRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}
	return writeAtomic(s.MetricsPath(symbol), func(w io.Writer) error {
		_, err := w.Write(append(data, '\n'))
		return err
	})
}

// LoadMetrics reads the metrics record of symbol.
func (s *Store) LoadMetrics(symbol string) (model.MetricsRecord, error) {
	var rec model.MetricsRecord
	data, err := os.ReadFile(s.MetricsPath(symbol))
	if errors.Is(err, fs.ErrNotExist) {
		return rec, fmt.Errorf("%w: %s metrics", model.ErrArtifactNotFound, symbol)
	}
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("%w: %s metrics: %v", model.ErrArtifactUnreadable, symbol, err)
	}
	return rec, nil
}

// Symbols lists the symbols that have a regression artifact, sorted.
func (s *Store) Symbols() ([]string, error) {
	entries, err := os.ReadDir(s.modelsDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(s.ModelPath(e.Name(), model.KindRegression)); err == nil {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

func writeAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
