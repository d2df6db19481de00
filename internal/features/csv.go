package features

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Isaadqurashi/mlops-project/internal/model"
)

var barColumns = []string{model.ColTimestamp, model.ColOpen, model.ColHigh, model.ColLow, model.ColClose, model.ColVolume}

// headerAliases maps provider spellings onto canonical column names.
var headerAliases = map[string]string{
	"date":     model.ColTimestamp,
	"datetime": model.ColTimestamp,
	"time":     model.ColTimestamp,
}

var timeLayouts = []string{model.DateLayout, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02 15:04:05-07:00"}

// ReadBars parses a raw OHLCV CSV. Headers are matched case-insensitively;
// extra columns are ignored. Rows come back in file order.
func ReadBars(r io.Reader) ([]model.Bar, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := indexHeader(header)
	for _, col := range barColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("raw csv: missing column %q", col)
		}
	}

	var bars []model.Bar
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		ts, err := parseTime(rec[idx[model.ColTimestamp]])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bar := model.Bar{Timestamp: ts}
		for _, f := range []struct {
			col string
			dst *float64
		}{
			{model.ColOpen, &bar.Open},
			{model.ColHigh, &bar.High},
			{model.ColLow, &bar.Low},
			{model.ColClose, &bar.Close},
			{model.ColVolume, &bar.Volume},
		} {
			if *f.dst, err = parseFloat(rec[idx[f.col]]); err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, f.col, err)
			}
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// WriteBars writes bars in the canonical raw layout.
func WriteBars(w io.Writer, bars []model.Bar) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(barColumns); err != nil {
		return err
	}
	for _, b := range bars {
		rec := []string{
			b.Timestamp.Format(model.DateLayout),
			formatFloat(b.Open), formatFloat(b.High), formatFloat(b.Low),
			formatFloat(b.Close), formatFloat(b.Volume),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTable writes the table's present columns. Floats use the shortest
// representation that round-trips exactly.
func WriteTable(w io.Writer, t *model.FeatureTable) error {
	cols := t.Columns()
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return err
	}
	rec := make([]string, len(cols))
	for i := range t.Rows {
		row := &t.Rows[i]
		for j, col := range cols {
			switch col {
			case model.ColTimestamp:
				rec[j] = row.Timestamp.Format(model.DateLayout)
			case model.ColTargetDirection:
				rec[j] = strconv.Itoa(row.TargetDirection)
			default:
				v, _ := row.Value(col)
				rec[j] = formatFloat(v)
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadTable parses a processed feature CSV. The returned table reports only
// the known columns found in the header as present.
func ReadTable(r io.Reader, symbol string) (*model.FeatureTable, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := indexHeader(header)
	if _, ok := idx[model.ColTimestamp]; !ok {
		return nil, fmt.Errorf("feature csv: missing column %q", model.ColTimestamp)
	}

	var present []string
	for _, col := range model.AllColumns {
		if _, ok := idx[col]; ok {
			present = append(present, col)
		}
	}

	var rows []model.FeatureRow
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		var row model.FeatureRow
		for _, col := range present {
			raw := rec[idx[col]]
			if col == model.ColTimestamp {
				if row.Timestamp, err = parseTime(raw); err != nil {
					return nil, fmt.Errorf("line %d: %w", line, err)
				}
				continue
			}
			v, err := parseFloat(raw)
			if err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, col, err)
			}
			row.Set(col, v)
		}
		rows = append(rows, row)
	}
	return model.NewFeatureTable(symbol, rows).WithColumns(present), nil
}

// ReadBarsFile reads a raw CSV from disk.
func ReadBarsFile(path string) ([]model.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	bars, err := ReadBars(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bars, nil
}

// ReadTableFile reads a processed feature CSV from disk. The symbol is taken
// from the file name.
func ReadTableFile(path string) (*model.FeatureTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := ReadTable(f, SymbolFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// WriteTableFile writes t to path, creating parent directories.
func WriteTableFile(path string, t *model.FeatureTable) error {
	return writeFile(path, func(w io.Writer) error { return WriteTable(w, t) })
}

// WriteBarsFile writes bars to path, creating parent directories.
func WriteBarsFile(path string, bars []model.Bar) error {
	return writeFile(path, func(w io.Writer) error { return WriteBars(w, bars) })
}

// SymbolFromPath derives the ticker from names like AAPL_daily.csv or
// AAPL_processed.csv.
func SymbolFromPath(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for _, suffix := range []string{"_daily", "_processed", "_raw"} {
		name = strings.TrimSuffix(name, suffix)
	}
	return name
}

func writeFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}

func indexHeader(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if alias, ok := headerAliases[name]; ok {
			name = alias
		}
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}
	return idx
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return model.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
