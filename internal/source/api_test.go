package source_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ledgersync/backend/internal/models"
	"github.com/ledgersync/backend/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func apiAdapter(t *testing.T, serverURL string, maxRetries int) source.Adapter {
	t.Helper()

	adapter, err := source.New(source.Config{
		Name:       "mercury",
		Kind:       source.KindAPI,
		BaseURL:    serverURL,
		APIKey:     "test-key",
		Entities:   []string{"transaction"},
		PageSize:   2,
		MaxRetries: maxRetries,
	})
	require.NoError(t, err)
	require.NoError(t, adapter.Open(context.Background()))
	return adapter
}

func transactionItem(id int) map[string]any {
	return map[string]any{
		"external_transaction_id": fmt.Sprintf("merc_txn_%05d", id),
		"account_id":              "merc_acc_001",
		"posted_date":             "2024-03-10",
		"amount":                  -149.99,
		"description":             "AWS Services",
	}
}

func TestAPIFetchPaginates(t *testing.T) {
	var requests []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.RawQuery)

		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "/transactions", r.URL.Path)

		page := map[string]any{"data": []any{}}
		switch r.URL.Query().Get("cursor") {
		case "":
			page["data"] = []any{transactionItem(1), transactionItem(2)}
			page["next_cursor"] = "page-2"
		case "page-2":
			page["data"] = []any{transactionItem(3)}
		}
		json.NewEncoder(w).Encode(page)
	}))
	defer server.Close()

	adapter := apiAdapter(t, server.URL, 0)
	raws := collect(t, adapter, time.Time{})

	require.Len(t, raws, 3)
	assert.Len(t, requests, 2)
	assert.Equal(t, models.KindTransaction, raws[0].Entity)
	assert.Equal(t, "merc_txn_00001", raws[0].Fields["external_transaction_id"])
	assert.Equal(t, "-149.99", raws[0].Fields["amount"], "Amounts must not pass through float64")
}

func TestAPIFetchSendsSince(t *testing.T) {
	since := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, since.Format(time.RFC3339), r.URL.Query().Get("since"))
		json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	}))
	defer server.Close()

	adapter := apiAdapter(t, server.URL, 0)
	raws := collect(t, adapter, since)
	assert.Empty(t, raws)
}

func TestAPIRetriesRateLimit(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"data": []any{transactionItem(1)}})
	}))
	defer server.Close()

	adapter := apiAdapter(t, server.URL, 5)
	raws := collect(t, adapter, time.Time{})

	require.Len(t, raws, 1)
	assert.NoError(t, raws[0].Err)
	assert.Equal(t, 3, attempts)
}

func TestAPIGivesUpAfterRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	adapter := apiAdapter(t, server.URL, 2)
	raws := collect(t, adapter, time.Time{})

	require.Len(t, raws, 1)
	require.Error(t, raws[0].Err)
	assert.ErrorIs(t, raws[0].Err, source.ErrFetchFailed)
	assert.ErrorContains(t, raws[0].Err, "giving up after 2 attempts")
}

// A timeout that interrupts a page fetch must surface as a terminal error
// record, not as a cleanly finished stream.
func TestAPIFetchTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("cursor") == "" {
			json.NewEncoder(w).Encode(map[string]any{
				"data":        []any{transactionItem(1)},
				"next_cursor": "page-2",
			})
			return
		}

		time.Sleep(300 * time.Millisecond)
		json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	}))
	defer server.Close()

	adapter := apiAdapter(t, server.URL, 5)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	ch, err := adapter.Fetch(ctx, time.Time{})
	require.NoError(t, err)

	var raws []source.Raw
	for raw := range ch {
		raws = append(raws, raw)
	}

	require.Len(t, raws, 2)
	assert.NoError(t, raws[0].Err)
	require.Error(t, raws[1].Err)
	assert.ErrorIs(t, raws[1].Err, source.ErrFetchFailed)
}

// Authentication failures are terminal, retrying them would only burn the
// rate limit.
func TestAPIAuthFailureIsTerminal(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	adapter := apiAdapter(t, server.URL, 5)
	raws := collect(t, adapter, time.Time{})

	require.Len(t, raws, 1)
	assert.ErrorIs(t, raws[0].Err, source.ErrFetchFailed)
	assert.Equal(t, 1, attempts)
}

func TestAPIOpenValidatesConfig(t *testing.T) {
	adapter, err := source.New(source.Config{Name: "mercury", Kind: source.KindAPI, APIKey: "k"})
	require.NoError(t, err)
	assert.ErrorContains(t, adapter.Open(context.Background()), "no base URL")

	adapter, err = source.New(source.Config{Name: "mercury", Kind: source.KindAPI, BaseURL: "http://localhost"})
	require.NoError(t, err)
	assert.ErrorContains(t, adapter.Open(context.Background()), "no API key")
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"2024-01-15", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"01/15/2024", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"2024-01-15T10:30:00Z", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		parsed, err := source.ParseDate(tt.input)
		require.NoError(t, err, tt.input)
		assert.True(t, parsed.Equal(tt.want), tt.input)
	}

	_, err := source.ParseDate("someday")
	assert.Error(t, err)
}
