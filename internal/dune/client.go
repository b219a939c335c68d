// Package dune fetches query results from the Dune Analytics API and
// converts them into datasets, so a remote query can feed the same
// analytics pipeline as a file upload.
package dune

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"wdicli/internal/dataset"
)

const defaultBaseURL = "https://api.dune.com"

// Sentinel errors for callers to branch on.
var (
	ErrMissingAPIKey = errors.New("dune API key not configured")
	ErrQueryFailed   = errors.New("dune query execution failed")
)

// Config controls client behavior. Zero values fall back to defaults.
type Config struct {
	APIKey       string
	BaseURL      string
	PollInterval time.Duration
	Timeout      time.Duration
	// RequestsPerMinute bounds calls against the Dune API; the free tier
	// throttles hard, so default conservatively.
	RequestsPerMinute float64
}

// Client is a minimal Dune Analytics API client: execute a query, poll the
// execution until it settles, fetch the result rows.
type Client struct {
	apiKey       string
	baseURL      string
	pollInterval time.Duration
	httpClient   *http.Client
	limiter      *rate.Limiter
	logger       *slog.Logger
}

// NewClient builds a client. The logger may be nil.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 30
	}
	return &Client{
		apiKey:       cfg.APIKey,
		baseURL:      baseURL,
		pollInterval: pollInterval,
		httpClient:   &http.Client{Timeout: timeout},
		limiter:      rate.NewLimiter(rate.Limit(rpm/60), 1),
		logger:       logger.With(slog.String("component", "dune_client")),
	}
}

type executeResponse struct {
	ExecutionID string `json:"execution_id"`
	State       string `json:"state"`
}

type statusResponse struct {
	State string `json:"state"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type resultsResponse struct {
	Result struct {
		Rows     []map[string]any `json:"rows"`
		Metadata struct {
			ColumnNames []string `json:"column_names"`
		} `json:"metadata"`
	} `json:"result"`
}

const (
	stateCompleted = "QUERY_STATE_COMPLETED"
	stateFailed    = "QUERY_STATE_FAILED"
	stateCancelled = "QUERY_STATE_CANCELLED"
	stateExpired   = "QUERY_STATE_EXPIRED"
)

// RunQuery executes the query, waits for completion and returns the result
// rows as a dataset. Parameters are passed through as Dune query
// parameters. The context bounds the whole execute/poll/fetch cycle.
func (c *Client) RunQuery(ctx context.Context, queryID int, parameters map[string]string) (*dataset.Dataset, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	executionID, err := c.execute(ctx, queryID, parameters)
	if err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "dune query executing",
		slog.Int("query_id", queryID),
		slog.String("execution_id", executionID),
	)

	if err := c.awaitCompletion(ctx, executionID); err != nil {
		return nil, err
	}

	ds, err := c.fetchResults(ctx, executionID)
	if err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "dune query completed",
		slog.Int("query_id", queryID),
		slog.Int("rows", ds.NumRows()),
		slog.Int("columns", ds.NumColumns()),
	)
	return ds, nil
}

func (c *Client) execute(ctx context.Context, queryID int, parameters map[string]string) (string, error) {
	body := map[string]any{}
	if len(parameters) > 0 {
		body["query_parameters"] = parameters
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode execute request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/query/%d/execute", c.baseURL, queryID)
	var resp executeResponse
	if err := c.do(ctx, http.MethodPost, url, payload, &resp); err != nil {
		return "", err
	}
	if resp.ExecutionID == "" {
		return "", fmt.Errorf("%w: no execution id returned", ErrQueryFailed)
	}
	return resp.ExecutionID, nil
}

func (c *Client) awaitCompletion(ctx context.Context, executionID string) error {
	url := fmt.Sprintf("%s/api/v1/execution/%s/status", c.baseURL, executionID)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		var status statusResponse
		if err := c.do(ctx, http.MethodGet, url, nil, &status); err != nil {
			return err
		}

		switch status.State {
		case stateCompleted:
			return nil
		case stateFailed, stateCancelled, stateExpired:
			if status.Error.Message != "" {
				return fmt.Errorf("%w: %s", ErrQueryFailed, status.Error.Message)
			}
			return fmt.Errorf("%w: state %s", ErrQueryFailed, status.State)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for dune execution: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) fetchResults(ctx context.Context, executionID string) (*dataset.Dataset, error) {
	url := fmt.Sprintf("%s/api/v1/execution/%s/results", c.baseURL, executionID)
	var results resultsResponse
	if err := c.do(ctx, http.MethodGet, url, nil, &results); err != nil {
		return nil, err
	}
	return toDataset(results)
}

// do performs one rate-limited API request and decodes the JSON response.
func (c *Client) do(ctx context.Context, method, url string, body []byte, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Dune-API-Key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("dune API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %d from %s", ErrQueryFailed, resp.StatusCode, url)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode dune response: %w", err)
	}
	return nil
}

// toDataset converts Dune result rows into a dataset, preserving the
// column order reported by the result metadata.
func toDataset(results resultsResponse) (*dataset.Dataset, error) {
	names := results.Result.Metadata.ColumnNames
	if len(names) == 0 && len(results.Result.Rows) > 0 {
		return nil, fmt.Errorf("%w: result metadata has no column names", ErrQueryFailed)
	}

	rows := make([][]dataset.Value, 0, len(results.Result.Rows))
	for _, record := range results.Result.Rows {
		cells := make([]dataset.Value, len(names))
		for i, name := range names {
			cells[i] = toCell(record[name])
		}
		rows = append(rows, cells)
	}

	ds, err := dataset.New(names, rows)
	if err != nil {
		return nil, fmt.Errorf("build dataset: %w", err)
	}
	return ds, nil
}

func toCell(v any) dataset.Value {
	switch val := v.(type) {
	case nil:
		return dataset.MissingValue()
	case float64:
		return dataset.NumberValue(strconv.FormatFloat(val, 'f', -1, 64), val)
	case bool:
		return dataset.TextValue(strconv.FormatBool(val))
	case string:
		return dataset.TextValue(val)
	default:
		return dataset.TextValue(fmt.Sprintf("%v", val))
	}
}
