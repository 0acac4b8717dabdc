package sqlassist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/sqlassist/sqlassist/internal/apperr"
	"github.com/sqlassist/sqlassist/internal/assist"
	"github.com/sqlassist/sqlassist/internal/schema"
)

// Client talks to a running sqlassist API instead of an in-process pipeline.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: durationOr(timeout, 30*time.Second)}
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		http:    httpClient,
	}
}

type remoteEnvelope struct {
	SQL         string           `json:"sql"`
	Explanation string           `json:"explanation"`
	Columns     []string         `json:"columns"`
	Data        []map[string]any `json:"data"`
	RowCount    int              `json:"row_count"`
}

type remoteError struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	SQL       string `json:"sql"`
}

func (c *Client) Ask(ctx context.Context, question string) (assist.Envelope, error) {
	payload, err := json.Marshal(map[string]string{"query": question})
	if err != nil {
		return assist.Envelope{}, fmt.Errorf("encode question: %w", err)
	}
	code, body, err := c.do(ctx, http.MethodPost, "/api/query", payload)
	if err != nil {
		return assist.Envelope{}, err
	}
	if code >= 400 {
		return assist.Envelope{}, decodeRemoteError(code, body)
	}

	var remote remoteEnvelope
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	if err := decoder.Decode(&remote); err != nil {
		return assist.Envelope{}, fmt.Errorf("decode query response: %w", err)
	}

	records := make([]assist.Record, 0, len(remote.Data))
	for _, row := range remote.Data {
		values := make([]any, len(remote.Columns))
		for i, column := range remote.Columns {
			values[i] = row[column]
		}
		records = append(records, assist.Record{Columns: remote.Columns, Values: values})
	}
	return assist.Envelope{
		SQL:         remote.SQL,
		Explanation: remote.Explanation,
		Columns:     remote.Columns,
		Data:        records,
		RowCount:    remote.RowCount,
	}, nil
}

// Schema reads the table layout from /api/database-info. Tables are returned
// in name order.
func (c *Client) Schema(ctx context.Context) (schema.Descriptor, error) {
	code, body, err := c.do(ctx, http.MethodGet, "/api/database-info", nil)
	if err != nil {
		return schema.Descriptor{}, err
	}
	if code >= 400 {
		return schema.Descriptor{}, decodeRemoteError(code, body)
	}

	var info struct {
		Schema map[string][]string `json:"schema"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return schema.Descriptor{}, fmt.Errorf("decode database info: %w", err)
	}
	names := make([]string, 0, len(info.Schema))
	for name := range info.Schema {
		names = append(names, name)
	}
	sort.Strings(names)

	descriptor := schema.Descriptor{Tables: make([]schema.Table, 0, len(names))}
	for _, name := range names {
		descriptor.Tables = append(descriptor.Tables, schema.Table{Name: name, Columns: info.Schema[name]})
	}
	return descriptor, nil
}

// GetJSON fetches path and returns the indented response body.
func (c *Client) GetJSON(ctx context.Context, path string) (string, error) {
	code, body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	if code >= 400 {
		return "", fmt.Errorf("http %d: %s", code, strings.TrimSpace(string(body)))
	}
	if pretty, ok := prettyJSON(body); ok {
		return pretty, nil
	}
	return string(body), nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, apperr.Wrap(apperr.ServiceUnavailable, "sqlassist api is unreachable", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, apperr.Wrap(apperr.ServiceUnavailable, "read api response", err)
	}
	return resp.StatusCode, body, nil
}

func decodeRemoteError(status int, body []byte) error {
	var remote remoteError
	if err := json.Unmarshal(body, &remote); err != nil || remote.ErrorCode == "" {
		return fmt.Errorf("http %d: %s", status, strings.TrimSpace(string(body)))
	}
	kind, ok := apperr.KindFromCode(remote.ErrorCode)
	if !ok {
		if remote.ErrorCode == "ASSISTANT_NOT_READY" {
			kind = apperr.ConfigurationError
		} else {
			return fmt.Errorf("%s: %s", remote.ErrorCode, remote.Message)
		}
	}
	return apperr.WithSQL(kind, remote.Message, remote.SQL, nil)
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
