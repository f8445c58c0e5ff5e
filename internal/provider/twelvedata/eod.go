package twelvedata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"

	"github.com/shopspring/decimal"

	"tdquotes/internal/provider"
)

// Fields read from the end-of-day response.
const (
	FieldClose    = "close"
	FieldDatetime = "datetime"
)

// Fetch retrieves the latest end-of-day quote for ticker. The date and price
// are returned exactly as Twelve Data sent them.
//
// Any failure is a *provider.Error. Error envelopes such as
//
//	{"code": 400, "message": "**symbol** not found: BADSYM", "status": "error"}
//
// carry no close or datetime and are reported as KindMissingField.
func (c *Client) Fetch(ctx context.Context, ticker string) (provider.Quote, error) {
	query := maps.Clone(c.query)
	query.Set("symbol", ticker)

	url := fmt.Sprintf("%s/eod?%s", c.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return provider.Quote{}, &provider.Error{Kind: provider.KindNetwork, Ticker: ticker, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header = c.header.Clone()

	res, err := c.httpClient.Do(req)
	if err != nil {
		return provider.Quote{}, &provider.Error{Kind: provider.KindNetwork, Ticker: ticker, Err: fmt.Errorf("performing request: %w", err)}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 2<<10))
		return provider.Quote{}, &provider.Error{Kind: provider.KindNetwork, Ticker: ticker, Err: fmt.Errorf("unexpected status code %d: %s", res.StatusCode, b)}
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return provider.Quote{}, &provider.Error{Kind: provider.KindNetwork, Ticker: ticker, Err: fmt.Errorf("reading response: %w", err)}
	}
	c.log.Debug("twelvedata response", "ticker", ticker, "body", string(body))

	return c.parse(ticker, body)
}

func (c *Client) parse(ticker string, body []byte) (provider.Quote, error) {
	// {
	//   "symbol": "AAPL",
	//   "exchange": "NASDAQ",
	//   "currency": "USD",
	//   "datetime": "2024-01-02",
	//   "timestamp": 1704205800,
	//   "close": "185.50"
	// }
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return provider.Quote{}, &provider.Error{Kind: provider.KindDecode, Ticker: ticker, Err: err}
	}

	price, ok := rawString(payload[FieldClose])
	if !ok {
		return provider.Quote{}, missing(ticker, FieldClose, payload)
	}
	date, ok := rawString(payload[FieldDatetime])
	if !ok {
		return provider.Quote{}, missing(ticker, FieldDatetime, payload)
	}

	if _, err := decimal.NewFromString(price); err != nil {
		c.log.Warn("close is not a decimal number", "ticker", ticker, "close", price)
	}
	return provider.Quote{Symbol: ticker, Date: date, Price: price}, nil
}

// rawString returns a JSON string's contents, or the literal text of any
// other scalar, so numbers pass through without float rounding.
func rawString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

func missing(ticker, field string, payload map[string]json.RawMessage) *provider.Error {
	var msg string
	if raw, ok := payload["message"]; ok {
		_ = json.Unmarshal(raw, &msg)
	}
	return &provider.Error{Kind: provider.KindMissingField, Ticker: ticker, Field: field, Message: msg}
}
