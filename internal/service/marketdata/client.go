package marketdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"MarketSweep/internal/domain/models"
	xhttp "MarketSweep/pkg/http"
)

// Client is the HTTP bar provider. It speaks a grouped-candles API: one
// request carries a comma-joined symbol list and returns per-symbol OHLCV
// arrays, so a 500-symbol batch costs one round trip.
type Client struct {
	http    *xhttp.Client
	baseURL string
	apiKey  string
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		http:    xhttp.NewClient(xhttp.WithTimeout(timeout)),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

// groupedResponse is the upstream payload: column-oriented candles keyed by
// symbol, with s="ok"/"no_data" per the usual candle-API convention.
type groupedResponse struct {
	Results map[string]struct {
		Status string    `json:"s"`
		T      []int64   `json:"t"`
		O      []float64 `json:"o"`
		H      []float64 `json:"h"`
		L      []float64 `json:"l"`
		C      []float64 `json:"c"`
		V      []float64 `json:"v"`
	} `json:"results"`
}

// FetchBatch retrieves daily bars for all symbols in one call. Symbols the
// upstream has no data for are simply absent from the returned map.
func (c *Client) FetchBatch(ctx context.Context, symbols []string, rng models.DateRange) (map[string][]models.Bar, error) {
	var payload groupedResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/v1/grouped/candles",
		QueryParams: map[string][]string{
			"symbols":    {strings.Join(symbols, ",")},
			"resolution": {"D"},
			"from":       {fmt.Sprintf("%d", rng.Start.UTC().Unix())},
			"to":         {fmt.Sprintf("%d", rng.End.UTC().Unix())},
		},
		Headers: map[string]string{"X-Api-Key": c.apiKey},
	}, &payload)
	if err != nil {
		return nil, fmt.Errorf("grouped candles: %w", err)
	}

	out := make(map[string][]models.Bar, len(payload.Results))
	for sym, r := range payload.Results {
		if r.Status != "ok" || len(r.T) == 0 {
			continue
		}
		n := len(r.T)
		if len(r.O) != n || len(r.H) != n || len(r.L) != n || len(r.C) != n || len(r.V) != n {
			continue // malformed column lengths, treat as missing
		}
		bars := make([]models.Bar, n)
		for i := 0; i < n; i++ {
			bars[i] = models.Bar{
				Symbol:    sym,
				Timestamp: time.Unix(r.T[i], 0).UTC(),
				Open:      r.O[i],
				High:      r.H[i],
				Low:       r.L[i],
				Close:     r.C[i],
				Volume:    r.V[i],
			}
		}
		out[sym] = bars
	}
	return out, nil
}

// ListSymbols returns the upstream's full listed universe.
func (c *Client) ListSymbols(ctx context.Context) ([]string, error) {
	var payload struct {
		Symbols []string `json:"symbols"`
	}
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     c.baseURL + "/v1/symbols",
		Headers: map[string]string{"X-Api-Key": c.apiKey},
	}, &payload)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	return payload.Symbols, nil
}

// Health probes the upstream status endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     c.baseURL + "/v1/status",
		Headers: map[string]string{"X-Api-Key": c.apiKey},
	}, nil)
}
