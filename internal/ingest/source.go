package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Isaadqurashi/mlops-project/internal/features"
	"github.com/Isaadqurashi/mlops-project/internal/model"
)

var (
	// ErrNoData is returned when a provider answers without any bar.
	ErrNoData = errors.New("no data returned")
	// ErrProviderRejected is returned when a provider answers with an
	// error document instead of data, e.g. an unknown symbol or rate limit.
	ErrProviderRejected = errors.New("provider rejected request")
)

// YahooSource reads daily bars from the Yahoo chart API. It covers US and
// international listings and needs no API key.
type YahooSource struct {
	get func(*chart.Params) *chart.Iter
}

func NewYahooSource() *YahooSource { return &YahooSource{get: chart.Get} }

func (y *YahooSource) Name() string { return "yahoo" }

// FetchDaily returns split and dividend adjusted bars in [start, end].
func (y *YahooSource) FetchDaily(ctx context.Context, symbol string, start, end time.Time) ([]model.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	params := &chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	}

	iter := y.get(params)
	var bars []model.Bar
	for iter.Next() {
		b := iter.Bar()
		bars = append(bars, adjustedBar(int64(b.Timestamp), b.Open, b.High, b.Low, b.Close, b.AdjClose, int64(b.Volume)))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("yahoo %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("yahoo %s: %w", symbol, ErrNoData)
	}
	return bars, nil
}

// adjustedBar scales open, high and low by adjClose/close so the whole bar
// is on the adjusted scale. A missing adjusted close leaves prices as is.
func adjustedBar(ts int64, o, h, l, c, adj decimal.Decimal, volume int64) model.Bar {
	factor := decimal.NewFromInt(1)
	if !c.IsZero() && !adj.IsZero() {
		factor = adj.Div(c)
		c = adj
	}
	return model.Bar{
		Timestamp: model.Day(time.Unix(ts, 0).UTC()),
		Open:      o.Mul(factor).InexactFloat64(),
		High:      h.Mul(factor).InexactFloat64(),
		Low:       l.Mul(factor).InexactFloat64(),
		Close:     c.InexactFloat64(),
		Volume:    float64(volume),
	}
}

// AlphaVantageSource reads TIME_SERIES_DAILY as CSV.
type AlphaVantageSource struct {
	client     *resty.Client
	apiKey     string
	outputSize string
}

// NewAlphaVantageSource creates a client for baseURL, usually
// https://www.alphavantage.co/query.
func NewAlphaVantageSource(baseURL, apiKey, outputSize string, timeout time.Duration) *AlphaVantageSource {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)

	return &AlphaVantageSource{client: client, apiKey: apiKey, outputSize: outputSize}
}

func (a *AlphaVantageSource) Name() string { return "alphavantage" }

func (a *AlphaVantageSource) FetchDaily(ctx context.Context, symbol string, start, end time.Time) ([]model.Bar, error) {
	resp, err := a.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"function":   "TIME_SERIES_DAILY",
			"symbol":     symbol,
			"apikey":     a.apiKey,
			"datatype":   "csv",
			"outputsize": a.outputSize,
		}).
		Get("")
	if err != nil {
		return nil, fmt.Errorf("alphavantage %s: %w", symbol, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("alphavantage %s: API error %d: %s", symbol, resp.StatusCode(), resp.String())
	}

	body := resp.Body()
	if msg, rejected := rejection(body); rejected {
		return nil, fmt.Errorf("alphavantage %s: %w: %s", symbol, ErrProviderRejected, msg)
	}
	bars, err := features.ReadBars(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("alphavantage %s: %w", symbol, err)
	}

	kept := bars[:0]
	for _, b := range bars {
		if b.Timestamp.Before(model.Day(start)) || b.Timestamp.After(end) {
			continue
		}
		kept = append(kept, b)
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("alphavantage %s: %w", symbol, ErrNoData)
	}
	return kept, nil
}

// rejection detects the JSON error documents Alpha Vantage returns with a
// 200 status in place of CSV.
func rejection(body []byte) (string, bool) {
	text := strings.TrimSpace(string(body))
	for _, marker := range []string{"Error Message", "Information", "Note"} {
		if strings.Contains(text, `"`+marker+`"`) {
			return text, true
		}
	}
	if strings.HasPrefix(text, "{") {
		return text, true
	}
	return "", false
}

// FallbackSource routes a symbol to Alpha Vantage or Yahoo. Symbols with an
// international suffix, or every symbol when no primary is configured, go
// straight to Yahoo. Otherwise Alpha Vantage is tried first through a
// circuit breaker and any failure falls back to Yahoo.
type FallbackSource struct {
	primary  model.PriceSource
	fallback model.PriceSource
	suffixes []string
	breaker  *CircuitBreaker
}

// NewFallbackSource wires the chain. primary may be nil.
func NewFallbackSource(primary, fallback model.PriceSource, suffixes []string, breaker *CircuitBreaker) *FallbackSource {
	if breaker == nil {
		breaker = NewCircuitBreaker("primary", 0, 0)
	}
	return &FallbackSource{primary: primary, fallback: fallback, suffixes: suffixes, breaker: breaker}
}

func (f *FallbackSource) Name() string { return "fallback" }

// FallbackOnly reports whether symbol is always served by the fallback.
func (f *FallbackSource) FallbackOnly(symbol string) bool {
	if f.primary == nil {
		return true
	}
	s := strings.ToUpper(symbol)
	for _, suffix := range f.suffixes {
		if strings.HasSuffix(s, strings.ToUpper(suffix)) {
			return true
		}
	}
	return false
}

func (f *FallbackSource) FetchDaily(ctx context.Context, symbol string, start, end time.Time) ([]model.Bar, error) {
	if f.FallbackOnly(symbol) {
		return f.fallback.FetchDaily(ctx, symbol, start, end)
	}

	var bars []model.Bar
	err := f.breaker.Execute(func() error {
		var err error
		bars, err = f.primary.FetchDaily(ctx, symbol, start, end)
		return err
	})
	if err == nil {
		return bars, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	log.Warn().Err(err).
		Str("symbol", symbol).
		Str("primary", f.primary.Name()).
		Str("fallback", f.fallback.Name()).
		Msg("primary provider failed, falling back")
	bars, fbErr := f.fallback.FetchDaily(ctx, symbol, start, end)
	if fbErr != nil {
		return nil, fmt.Errorf("%w (primary: %v)", fbErr, err)
	}
	return bars, nil
}
