package dune

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		APIKey:            "test-key",
		BaseURL:           srv.URL,
		PollInterval:      time.Millisecond,
		Timeout:           time.Second,
		RequestsPerMinute: 100000,
	}, nil)
}

func TestRunQuery(t *testing.T) {
	var statusCalls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/query/123/execute", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-Dune-API-Key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		params, _ := body["query_parameters"].(map[string]any)
		assert.Equal(t, "uniswap", params["protocol"])

		json.NewEncoder(w).Encode(map[string]string{
			"execution_id": "exec-1",
			"state":        "QUERY_STATE_PENDING",
		})
	})
	mux.HandleFunc("GET /api/v1/execution/exec-1/status", func(w http.ResponseWriter, r *http.Request) {
		state := "QUERY_STATE_EXECUTING"
		if statusCalls.Add(1) >= 2 {
			state = "QUERY_STATE_COMPLETED"
		}
		json.NewEncoder(w).Encode(map[string]string{"state": state})
	})
	mux.HandleFunc("GET /api/v1/execution/exec-1/results", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"result": {
				"rows": [
					{"block_time": "2024-01-01", "trader": "0xaaa", "amount_usd": 12.5},
					{"block_time": "2024-01-02", "trader": null, "amount_usd": 7}
				],
				"metadata": {"column_names": ["block_time", "trader", "amount_usd"]}
			}
		}`)
	})

	client := testClient(t, mux)
	ds, err := client.RunQuery(context.Background(), 123, map[string]string{"protocol": "uniswap"})
	require.NoError(t, err)

	assert.Equal(t, []string{"block_time", "trader", "amount_usd"}, ds.ColumnNames())
	require.Equal(t, 2, ds.NumRows())
	assert.GreaterOrEqual(t, statusCalls.Load(), int32(2), "polls until completed")

	cell, _ := ds.Cell(0, "amount_usd")
	n, isNum := cell.Number()
	require.True(t, isNum)
	assert.InDelta(t, 12.5, n, 1e-9)

	cell, _ = ds.Cell(1, "trader")
	assert.True(t, cell.Missing, "null cells become missing")
}

func TestRunQuery_MissingAPIKey(t *testing.T) {
	client := NewClient(Config{}, nil)

	_, err := client.RunQuery(context.Background(), 1, nil)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestRunQuery_FailureStates(t *testing.T) {
	states := []string{"QUERY_STATE_FAILED", "QUERY_STATE_CANCELLED", "QUERY_STATE_EXPIRED"}
	for _, state := range states {
		t.Run(state, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("POST /api/v1/query/1/execute", func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]string{"execution_id": "exec-x"})
			})
			mux.HandleFunc("GET /api/v1/execution/exec-x/status", func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{
					"state": state,
					"error": map[string]string{"message": "boom"},
				})
			})

			client := testClient(t, mux)
			_, err := client.RunQuery(context.Background(), 1, nil)
			require.ErrorIs(t, err, ErrQueryFailed)
			assert.Contains(t, err.Error(), "boom")
		})
	}
}

func TestRunQuery_HTTPError(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))

	_, err := client.RunQuery(context.Background(), 1, nil)
	require.ErrorIs(t, err, ErrQueryFailed)
	assert.Contains(t, err.Error(), "401")
}

func TestRunQuery_ContextCancelledWhilePolling(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/query/1/execute", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"execution_id": "exec-y"})
	})
	mux.HandleFunc("GET /api/v1/execution/exec-y/status", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"state": "QUERY_STATE_EXECUTING"})
	})

	client := testClient(t, mux)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.RunQuery(ctx, 1, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
