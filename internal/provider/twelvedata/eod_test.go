package twelvedata_test

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"tdquotes/internal/provider"
	"tdquotes/internal/provider/twelvedata"
)

func newClient(t *testing.T, do func(req *http.Request) (*http.Response, error)) *twelvedata.Client {
	t.Helper()
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().Do(gomock.Any()).DoAndReturn(do).Times(1)

	client, err := twelvedata.New("test-key", twelvedata.WithHTTPClient(httpClient))
	require.NoError(t, err)
	return client
}

func rawResponse(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func TestFetch(t *testing.T) {
	t.Parallel()

	client := newClient(t, func(req *http.Request) (*http.Response, error) {
		require.Equal(t, http.MethodGet, req.Method)
		require.Equal(t, "/eod", req.URL.Path)
		require.Equal(t, "api.twelvedata.com", req.URL.Host)
		require.Equal(t, "AAPL", req.URL.Query().Get("symbol"))
		require.Equal(t, "test-key", req.URL.Query().Get("apikey"))
		return okResponse(t, map[string]any{
			"symbol":    "AAPL",
			"exchange":  "NASDAQ",
			"currency":  "USD",
			"datetime":  "2024-01-02",
			"timestamp": 1704205800,
			"close":     "185.50",
		}), nil
	})

	q, err := client.Fetch(t.Context(), "AAPL")
	require.NoError(t, err)
	require.Equal(t, provider.Quote{Symbol: "AAPL", Date: "2024-01-02", Price: "185.50"}, q)
}

func TestFetch_NumericCloseKeptVerbatim(t *testing.T) {
	t.Parallel()

	client := newClient(t, func(req *http.Request) (*http.Response, error) {
		return rawResponse(http.StatusOK, `{"datetime":"2024-01-03","close":190.000}`), nil
	})

	q, err := client.Fetch(t.Context(), "AAPL")
	require.NoError(t, err)
	require.Equal(t, "190.000", q.Price)
	require.Equal(t, "2024-01-03", q.Date)
}

func TestFetch_NetworkError(t *testing.T) {
	t.Parallel()

	client := newClient(t, func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("dial tcp: connection refused")
	})

	_, err := client.Fetch(t.Context(), "AAPL")
	require.Error(t, err)
	require.Equal(t, provider.KindNetwork, provider.KindOf(err))
	require.ErrorContains(t, err, "connection refused")
}

func TestFetch_BadStatus(t *testing.T) {
	t.Parallel()

	client := newClient(t, func(req *http.Request) (*http.Response, error) {
		return rawResponse(http.StatusBadGateway, "upstream down"), nil
	})

	_, err := client.Fetch(t.Context(), "AAPL")
	require.Equal(t, provider.KindNetwork, provider.KindOf(err))
	require.ErrorContains(t, err, "502")
}

func TestFetch_DecodeError(t *testing.T) {
	t.Parallel()

	client := newClient(t, func(req *http.Request) (*http.Response, error) {
		return rawResponse(http.StatusOK, "<html>maintenance</html>"), nil
	})

	_, err := client.Fetch(t.Context(), "AAPL")
	require.Equal(t, provider.KindDecode, provider.KindOf(err))
}

func TestFetch_MissingClose(t *testing.T) {
	t.Parallel()

	client := newClient(t, func(req *http.Request) (*http.Response, error) {
		return rawResponse(http.StatusOK, `{"code":400,"message":"**symbol** not found: BADSYM","status":"error"}`), nil
	})

	_, err := client.Fetch(t.Context(), "BADSYM")
	var pe *provider.Error
	require.ErrorAs(t, err, &pe)
	require.Equal(t, provider.KindMissingField, pe.Kind)
	require.Equal(t, twelvedata.FieldClose, pe.Field)
	require.Equal(t, "BADSYM", pe.Ticker)
	require.Contains(t, pe.Message, "not found")
}

func TestFetch_MissingDatetime(t *testing.T) {
	t.Parallel()

	client := newClient(t, func(req *http.Request) (*http.Response, error) {
		return rawResponse(http.StatusOK, `{"close":"10.00","datetime":null}`), nil
	})

	_, err := client.Fetch(t.Context(), "AAPL")
	var pe *provider.Error
	require.ErrorAs(t, err, &pe)
	require.Equal(t, provider.KindMissingField, pe.Kind)
	require.Equal(t, twelvedata.FieldDatetime, pe.Field)
}
