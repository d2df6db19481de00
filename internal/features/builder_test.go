package features

import (
	"bytes"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Isaadqurashi/mlops-project/internal/model"
)

var day0 = time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)

// linearBars returns n daily bars with close = start + step*i.
func linearBars(n int, start, step float64) []model.Bar {
	bars := make([]model.Bar, n)
	for i := range bars {
		c := start + step*float64(i)
		bars[i] = model.Bar{
			Timestamp: day0.AddDate(0, 0, i),
			Open:      c - 0.5,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    1000 + float64(i),
		}
	}
	return bars
}

// wavyBars returns n bars with a trend and a weekly oscillation so both
// directions appear.
func wavyBars(n int) []model.Bar {
	bars := linearBars(n, 100, 0.1)
	for i := range bars {
		bars[i].Close += 3 * math.Sin(float64(i)*2*math.Pi/7)
	}
	return bars
}

func TestBuild_LinearSeries(t *testing.T) {
	// 120 closes rising 100 → 219. Rows 0..48 lack SMA-50, the last row has
	// no next close: 120 - 49 - 1 = 70 rows, all "up".
	bars := linearBars(120, 100, 1)
	require.Equal(t, 219.0, bars[119].Close)

	table, err := NewBuilder(DefaultConfig()).Build("LIN", bars)
	require.NoError(t, err)
	require.Equal(t, 70, table.Len())

	for i, row := range table.Rows {
		assert.Equal(t, 1, row.TargetDirection, "row %d", i)
		assert.Equal(t, row.Close+1, row.TargetPrice, "row %d", i)
		assert.Equal(t, 100.0, row.RSI, "row %d", i)
	}
	assert.Equal(t, day0.AddDate(0, 0, 49), table.FirstTimestamp())
	assert.Equal(t, day0.AddDate(0, 0, 118), table.LastTimestamp())
}

func TestBuild_TargetPriceIsNextClose(t *testing.T) {
	table, err := NewBuilder(DefaultConfig()).Build("WAVY", wavyBars(200))
	require.NoError(t, err)

	for i := 0; i < table.Len()-1; i++ {
		assert.Equal(t, table.Rows[i+1].Close, table.Rows[i].TargetPrice, "row %d", i)
		want := 0
		if table.Rows[i+1].Close > table.Rows[i].Close {
			want = 1
		}
		assert.Equal(t, want, table.Rows[i].TargetDirection, "row %d", i)
	}
}

func TestBuild_EqualClosesAreDown(t *testing.T) {
	bars := linearBars(80, 100, 1)
	bars[60].Close = bars[59].Close

	table, err := NewBuilder(DefaultConfig()).Build("TIE", bars)
	require.NoError(t, err)

	for _, row := range table.Rows {
		if row.Timestamp.Equal(bars[59].Timestamp) {
			assert.Equal(t, 0, row.TargetDirection)
			return
		}
	}
	t.Fatal("row 59 not found")
}

func TestBuild_RollingWindow(t *testing.T) {
	b := NewBuilder(DefaultConfig())

	// 1000 bars are cut to 700 before indicators: 700 - 49 - 1 rows remain.
	table, err := b.Build("LONG", linearBars(1000, 50, 0.25))
	require.NoError(t, err)
	assert.Equal(t, 650, table.Len())
	assert.Equal(t, day0.AddDate(0, 0, 300+49), table.FirstTimestamp())

	// 500 bars are left untruncated.
	table, err = b.Build("SHORT", linearBars(500, 50, 0.25))
	require.NoError(t, err)
	assert.Equal(t, 450, table.Len())
}

func TestBuild_WindowDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RollingWindowDays = 0
	table, err := NewBuilder(cfg).Build("ALL", linearBars(1000, 50, 0.25))
	require.NoError(t, err)
	assert.Equal(t, 950, table.Len())
}

func TestBuild_InsufficientHistory(t *testing.T) {
	_, err := NewBuilder(DefaultConfig()).Build("TINY", linearBars(10, 100, 1))
	require.ErrorIs(t, err, model.ErrInsufficientHistory)

	_, err = NewBuilder(DefaultConfig()).Build("NONE", nil)
	require.ErrorIs(t, err, model.ErrInsufficientHistory)
}

func TestBuild_SortsAndDedupes(t *testing.T) {
	ordered := wavyBars(150)

	shuffled := append([]model.Bar(nil), ordered...)
	rand.New(rand.NewSource(7)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	// A stale copy of day 100 placed before the real one is overwritten.
	stale := ordered[100]
	stale.Close = -1
	shuffled = append([]model.Bar{stale}, shuffled...)

	b := NewBuilder(DefaultConfig())
	want, err := b.Build("X", ordered)
	require.NoError(t, err)
	got, err := b.Build("X", shuffled)
	require.NoError(t, err)

	assert.Equal(t, want.Rows, got.Rows)
	assert.Equal(t, -1.0, shuffled[0].Close, "input must not be modified")
}

func TestBuild_Idempotent(t *testing.T) {
	b := NewBuilder(DefaultConfig())
	bars := wavyBars(300)

	first, err := b.Build("IDEM", bars)
	require.NoError(t, err)
	second, err := b.Build("IDEM", bars)
	require.NoError(t, err)

	var out1, out2 bytes.Buffer
	require.NoError(t, WriteTable(&out1, first))
	require.NoError(t, WriteTable(&out2, second))
	assert.Equal(t, out1.Bytes(), out2.Bytes())

	// Rebuilding from the persisted raw series gives the same bytes too.
	var raw bytes.Buffer
	require.NoError(t, WriteBars(&raw, bars))
	reloaded, err := ReadBars(&raw)
	require.NoError(t, err)
	third, err := b.Build("IDEM", reloaded)
	require.NoError(t, err)
	var out3 bytes.Buffer
	require.NoError(t, WriteTable(&out3, third))
	assert.Equal(t, out1.Bytes(), out3.Bytes())
}

func TestRows_LiveVector(t *testing.T) {
	bars := linearBars(120, 100, 1)
	rows := NewBuilder(DefaultConfig()).Rows(bars)
	require.Len(t, rows, 120)

	last := rows[len(rows)-1]
	assert.True(t, math.IsNaN(last.TargetPrice))
	for _, col := range model.BaseFeatureColumns {
		v, _ := last.Value(col)
		assert.False(t, math.IsNaN(v), col)
	}
	assert.InDelta(t, 194.5, last.SMA50, 1e-9) // mean of 170..219
}

func TestRegimePoints(t *testing.T) {
	table, err := NewBuilder(DefaultConfig()).Build("LIN", linearBars(120, 100, 1))
	require.NoError(t, err)

	points, err := RegimePoints(table, DefaultRegimeWindow)
	require.NoError(t, err)
	// Percentage returns start at table row 1; a 20-row window is first full at row 20.
	require.Len(t, points, table.Len()-DefaultRegimeWindow)
	for _, p := range points {
		require.Len(t, p, 2)
		assert.Greater(t, p[0], 0.0)
		assert.Equal(t, 100.0, p[1])
	}
}

func TestProcess(t *testing.T) {
	dir := t.TempDir()
	rawPath := filepath.Join(dir, "raw", "AAPL_daily.csv")
	outPath := filepath.Join(dir, "processed", "AAPL_processed.csv")

	var raw bytes.Buffer
	raw.WriteString("Date,Open,High,Low,Close,Volume,Adj Close\n")
	for _, b := range linearBars(120, 100, 1) {
		raw.WriteString(b.Timestamp.Format(model.DateLayout))
		raw.WriteString(",1,2,0.5,")
		raw.WriteString(formatFloat(b.Close))
		raw.WriteString(",1000,0\n")
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(rawPath), 0o755))
	require.NoError(t, os.WriteFile(rawPath, raw.Bytes(), 0o644))

	table, err := NewBuilder(DefaultConfig()).Process(rawPath, outPath)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", table.Symbol)
	assert.Equal(t, 70, table.Len())

	back, err := ReadTableFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", back.Symbol)
	assert.Equal(t, model.AllColumns, back.Columns())
	assert.Equal(t, table.Rows, back.Rows)
}

func TestProcess_NoOutput(t *testing.T) {
	dir := t.TempDir()
	rawPath := filepath.Join(dir, "MSFT_daily.csv")
	require.NoError(t, WriteBarsFile(rawPath, linearBars(120, 100, 1)))

	_, err := NewBuilder(DefaultConfig()).Process(rawPath, "")
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLatestRegimePoint(t *testing.T) {
	rows := NewBuilder(DefaultConfig()).Rows(wavyBars(80))
	p, ok := LatestRegimePoint(rows, DefaultRegimeWindow)
	require.True(t, ok)

	closes := model.Closes(wavyBars(80))
	all := RegimeSeries(closes, func() []float64 {
		rsi := make([]float64, len(rows))
		for i := range rows {
			rsi[i] = rows[i].RSI
		}
		return rsi
	}(), DefaultRegimeWindow)
	assert.Equal(t, all[len(all)-1], p)

	_, ok = LatestRegimePoint(rows[:15], DefaultRegimeWindow)
	assert.False(t, ok)
	_, ok = LatestRegimePoint(nil, DefaultRegimeWindow)
	assert.False(t, ok)
}
