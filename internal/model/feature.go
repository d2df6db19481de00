package model

import (
	"fmt"
	"time"
)

// Feature table column names. The order of AllColumns is the persisted order.
const (
	ColTimestamp       = "timestamp"
	ColOpen            = "open"
	ColHigh            = "high"
	ColLow             = "low"
	ColClose           = "close"
	ColVolume          = "volume"
	ColLogReturn       = "log_return"
	ColPctReturn       = "pct_return"
	ColVolatility20    = "volatility_20"
	ColPriceZScore     = "price_zscore"
	ColSMA20           = "sma_20"
	ColSMA50           = "sma_50"
	ColRSI             = "rsi"
	ColMACD            = "macd"
	ColMACDSignal      = "macd_signal"
	ColTargetDirection = "target_direction"
	ColTargetPrice     = "target_price"
)

// AllColumns lists every column of a feature table in persisted order.
var AllColumns = []string{
	ColTimestamp, ColOpen, ColHigh, ColLow, ColClose, ColVolume,
	ColLogReturn, ColPctReturn, ColVolatility20, ColPriceZScore,
	ColSMA20, ColSMA50, ColRSI, ColMACD, ColMACDSignal,
	ColTargetDirection, ColTargetPrice,
}

// BaseFeatureColumns are the technical indicators every trained model can use.
var BaseFeatureColumns = []string{ColSMA20, ColSMA50, ColRSI, ColMACD}

// StationaryFeatureColumns are the drift-resistant features added on top of
// the base set when present.
var StationaryFeatureColumns = []string{ColLogReturn, ColPctReturn, ColVolatility20, ColPriceZScore}

// FeatureRow is one trading day of the model-ready table.
type FeatureRow struct {
	Bar

	LogReturn    float64
	PctReturn    float64
	Volatility20 float64
	PriceZScore  float64

	SMA20      float64
	SMA50      float64
	RSI        float64
	MACD       float64
	MACDSignal float64

	// TargetDirection is 1 when the next close is strictly higher, else 0.
	TargetDirection int
	// TargetPrice is the next day's close.
	TargetPrice float64
}

// Value returns the numeric value of col. ok is false for unknown columns
// and for the timestamp.
func (r *FeatureRow) Value(col string) (v float64, ok bool) {
	switch col {
	case ColOpen:
		return r.Open, true
	case ColHigh:
		return r.High, true
	case ColLow:
		return r.Low, true
	case ColClose:
		return r.Close, true
	case ColVolume:
		return r.Volume, true
	case ColLogReturn:
		return r.LogReturn, true
	case ColPctReturn:
		return r.PctReturn, true
	case ColVolatility20:
		return r.Volatility20, true
	case ColPriceZScore:
		return r.PriceZScore, true
	case ColSMA20:
		return r.SMA20, true
	case ColSMA50:
		return r.SMA50, true
	case ColRSI:
		return r.RSI, true
	case ColMACD:
		return r.MACD, true
	case ColMACDSignal:
		return r.MACDSignal, true
	case ColTargetDirection:
		return float64(r.TargetDirection), true
	case ColTargetPrice:
		return r.TargetPrice, true
	}
	return 0, false
}

// Set assigns a numeric column. It returns false for unknown columns.
func (r *FeatureRow) Set(col string, v float64) bool {
	switch col {
	case ColOpen:
		r.Open = v
	case ColHigh:
		r.High = v
	case ColLow:
		r.Low = v
	case ColClose:
		r.Close = v
	case ColVolume:
		r.Volume = v
	case ColLogReturn:
		r.LogReturn = v
	case ColPctReturn:
		r.PctReturn = v
	case ColVolatility20:
		r.Volatility20 = v
	case ColPriceZScore:
		r.PriceZScore = v
	case ColSMA20:
		r.SMA20 = v
	case ColSMA50:
		r.SMA50 = v
	case ColRSI:
		r.RSI = v
	case ColMACD:
		r.MACD = v
	case ColMACDSignal:
		r.MACDSignal = v
	case ColTargetDirection:
		r.TargetDirection = int(v)
	case ColTargetPrice:
		r.TargetPrice = v
	default:
		return false
	}
	return true
}

// FeatureTable is an ordered, per-symbol set of feature rows. A table read
// back from disk may carry only a subset of the columns; Has reports which.
type FeatureTable struct {
	Symbol string
	Rows   []FeatureRow

	present map[string]bool // nil means every column is present
}

// NewFeatureTable wraps rows that carry every column.
func NewFeatureTable(symbol string, rows []FeatureRow) *FeatureTable {
	return &FeatureTable{Symbol: symbol, Rows: rows}
}

// WithColumns restricts the set of columns the table reports as present.
func (t *FeatureTable) WithColumns(cols []string) *FeatureTable {
	t.present = make(map[string]bool, len(cols))
	for _, c := range cols {
		t.present[c] = true
	}
	return t
}

// Len returns the number of rows.
func (t *FeatureTable) Len() int { return len(t.Rows) }

// Has reports whether col is present in the table.
func (t *FeatureTable) Has(col string) bool {
	if t.present == nil {
		for _, c := range AllColumns {
			if c == col {
				return true
			}
		}
		return false
	}
	return t.present[col]
}

// Columns returns the present columns in persisted order.
func (t *FeatureTable) Columns() []string {
	out := make([]string, 0, len(AllColumns))
	for _, c := range AllColumns {
		if t.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// Slice returns rows [from, to) as a new table sharing the column set.
func (t *FeatureTable) Slice(from, to int) *FeatureTable {
	return &FeatureTable{Symbol: t.Symbol, Rows: t.Rows[from:to], present: t.present}
}

// Column extracts one numeric column.
func (t *FeatureTable) Column(col string) ([]float64, error) {
	if !t.Has(col) {
		return nil, fmt.Errorf("%w: %s", ErrMissingFeature, col)
	}
	out := make([]float64, len(t.Rows))
	for i := range t.Rows {
		v, ok := t.Rows[i].Value(col)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not numeric", ErrMissingFeature, col)
		}
		out[i] = v
	}
	return out, nil
}

// Matrix extracts the given columns as a row-major matrix.
func (t *FeatureTable) Matrix(cols []string) ([][]float64, error) {
	for _, c := range cols {
		if !t.Has(c) {
			return nil, fmt.Errorf("%w: %s", ErrMissingFeature, c)
		}
	}
	out := make([][]float64, len(t.Rows))
	for i := range t.Rows {
		row := make([]float64, len(cols))
		for j, c := range cols {
			v, ok := t.Rows[i].Value(c)
			if !ok {
				return nil, fmt.Errorf("%w: %s is not numeric", ErrMissingFeature, c)
			}
			row[j] = v
		}
		out[i] = row
	}
	return out, nil
}

// Directions returns the classification targets.
func (t *FeatureTable) Directions() []int {
	out := make([]int, len(t.Rows))
	for i := range t.Rows {
		out[i] = t.Rows[i].TargetDirection
	}
	return out
}

// FirstTimestamp and LastTimestamp bound the table. Both are zero for an
// empty table.
func (t *FeatureTable) FirstTimestamp() time.Time {
	if len(t.Rows) == 0 {
		return time.Time{}
	}
	return t.Rows[0].Timestamp
}

func (t *FeatureTable) LastTimestamp() time.Time {
	if len(t.Rows) == 0 {
		return time.Time{}
	}
	return t.Rows[len(t.Rows)-1].Timestamp
}
