// Package alphavantage implements the market-data port against the Alpha
// Vantage HTTP API, fronted by the Redis and PostgreSQL cache tiers.
package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/zebutrade/papertrade/internal/marketdata/domain"
)

// ErrThrottled means the provider itself reported rate limiting. Callers
// should pin the local limiter and fall back to cached data.
var ErrThrottled = errors.New("alphavantage: throttled by provider")

// TransientError wraps network, HTTP and malformed-payload failures. The
// adapter absorbs these into partial results instead of propagating them.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("alphavantage: transient failure during %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// ClientConfig configures the raw HTTP client.
type ClientConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client is the lowest tier: one HTTP GET per call, no caching, no rate
// limiting. Quota enforcement lives in the adapter so the client stays a
// pure codec.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a Client with a bounded request timeout.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.alphavantage.co/query"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// globalQuoteResponse is the GLOBAL_QUOTE payload. Alpha Vantage reports
// errors in-band: "Error Message" for unknown symbols, "Note"/"Information"
// for call-frequency throttling.
type globalQuoteResponse struct {
	GlobalQuote  map[string]string `json:"Global Quote"`
	ErrorMessage string            `json:"Error Message"`
	Note         string            `json:"Note"`
	Information  string            `json:"Information"`
}

type dailySeriesResponse struct {
	TimeSeries   map[string]map[string]string `json:"Time Series (Daily)"`
	ErrorMessage string                       `json:"Error Message"`
	Note         string                       `json:"Note"`
	Information  string                       `json:"Information"`
}

// FetchQuote retrieves the latest price for ticker via GLOBAL_QUOTE.
func (c *Client) FetchQuote(ctx context.Context, ticker domain.Ticker) (*domain.PricePoint, error) {
	body, err := c.get(ctx, url.Values{
		"function": {"GLOBAL_QUOTE"},
		"symbol":   {ticker.Symbol()},
		"apikey":   {c.apiKey},
	})
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp globalQuoteResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, &TransientError{Op: "quote decode", Err: err}
	}
	if err := providerError(resp.ErrorMessage, resp.Note, resp.Information, ticker); err != nil {
		return nil, err
	}
	if len(resp.GlobalQuote) == 0 || resp.GlobalQuote["05. price"] == "" {
		// An empty quote object is how the provider answers for symbols it
		// does not know.
		return nil, &domain.TickerNotFoundError{Ticker: ticker}
	}

	// Provider prices carry 4+ decimals; this is the rounding boundary.
	price, err := domain.USDFromProviderString(resp.GlobalQuote["05. price"])
	if err != nil {
		return nil, &TransientError{Op: "quote parse", Err: err}
	}
	// The free tier has no real-time timestamp field; observation time is
	// receipt time.
	return domain.NewPricePoint(ticker, price, time.Now().UTC(), domain.SourceAPI, domain.IntervalRealTime)
}

// FetchDailySeries retrieves the daily OHLC series keyed by UTC calendar
// day. full selects the provider's complete history instead of the recent
// ~100 trading days.
func (c *Client) FetchDailySeries(ctx context.Context, ticker domain.Ticker, full bool) (map[time.Time]*domain.PricePoint, error) {
	outputSize := "compact"
	if full {
		outputSize = "full"
	}
	body, err := c.get(ctx, url.Values{
		"function":   {"TIME_SERIES_DAILY"},
		"symbol":     {ticker.Symbol()},
		"outputsize": {outputSize},
		"apikey":     {c.apiKey},
	})
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp dailySeriesResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, &TransientError{Op: "series decode", Err: err}
	}
	if err := providerError(resp.ErrorMessage, resp.Note, resp.Information, ticker); err != nil {
		return nil, err
	}
	if len(resp.TimeSeries) == 0 {
		return nil, &domain.TickerNotFoundError{Ticker: ticker}
	}

	points := make(map[time.Time]*domain.PricePoint, len(resp.TimeSeries))
	for rawDay, bar := range resp.TimeSeries {
		day, err := time.ParseInLocation("2006-01-02", rawDay, time.UTC)
		if err != nil {
			return nil, &TransientError{Op: "series parse", Err: fmt.Errorf("bad day %q: %w", rawDay, err)}
		}
		point, err := dailyBarToPoint(ticker, day, bar)
		if err != nil {
			return nil, &TransientError{Op: "series parse", Err: err}
		}
		points[day] = point
	}
	return points, nil
}

// dailyBarToPoint converts one provider bar, rounding every monetary field
// half-up to cents before it enters the domain.
func dailyBarToPoint(ticker domain.Ticker, day time.Time, bar map[string]string) (*domain.PricePoint, error) {
	open, err := domain.USDFromProviderString(bar["1. open"])
	if err != nil {
		return nil, err
	}
	high, err := domain.USDFromProviderString(bar["2. high"])
	if err != nil {
		return nil, err
	}
	low, err := domain.USDFromProviderString(bar["3. low"])
	if err != nil {
		return nil, err
	}
	closing, err := domain.USDFromProviderString(bar["4. close"])
	if err != nil {
		return nil, err
	}
	// Daily bars are timestamped at UTC midnight of the trading day, which
	// keeps the per-day cache key and the durable row in lockstep.
	point, err := domain.NewPricePoint(ticker, closing, day, domain.SourceAPI, domain.Interval1Day)
	if err != nil {
		return nil, err
	}
	point.OHLC = &domain.OHLC{Open: open, High: high, Low: low, Close: closing}
	return point, nil
}

// get performs the HTTP request and normalizes transport failures.
func (c *Client) get(ctx context.Context, params url.Values) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &TransientError{Op: "request build", Err: err}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransientError{Op: "request", Err: err}
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		resp.Body.Close()
		return nil, ErrThrottled
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, &TransientError{Op: "request", Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, body)}
	}
	return resp.Body, nil
}

// providerError maps the provider's in-band error fields. A "Note" or
// "Information" field is its rate-limit signal.
func providerError(errorMessage, note, information string, ticker domain.Ticker) error {
	if errorMessage != "" {
		return &domain.TickerNotFoundError{Ticker: ticker}
	}
	if note != "" || information != "" {
		return ErrThrottled
	}
	return nil
}
