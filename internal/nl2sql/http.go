package nl2sql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sqlassist/sqlassist/internal/apperr"
)

const (
	maxErrorBody = 512
	// maxResponseBody bounds how much of a completion response is read.
	maxResponseBody = 4 << 20
)

var errResponseTooLarge = fmt.Errorf("completion response exceeds %d bytes", maxResponseBody)

func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return apperr.Wrap(apperr.ServiceUnavailable, "marshal completion payload", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return apperr.Wrap(apperr.ServiceUnavailable, "build completion request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return apperr.Wrap(apperr.ServiceUnavailable, "completion request timed out", err)
		}
		return apperr.Wrap(apperr.ServiceUnavailable, "request completion", err)
	}
	defer func() { _ = resp.Body.Close() }()

	rawRespBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody+1))
	if err != nil {
		return apperr.Wrap(apperr.ServiceUnavailable, "read completion response body", err)
	}
	if len(rawRespBody) > maxResponseBody {
		if resp.StatusCode >= 400 {
			return statusError(resp.StatusCode, rawRespBody)
		}
		return apperr.Wrap(apperr.ServiceUnavailable, "read completion response body", errResponseTooLarge)
	}
	if resp.StatusCode >= 400 {
		return statusError(resp.StatusCode, rawRespBody)
	}

	if err := json.Unmarshal(rawRespBody, out); err != nil {
		return apperr.Wrap(apperr.ServiceUnavailable, "decode completion response", err)
	}
	return nil
}

func statusError(status int, body []byte) error {
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > maxErrorBody {
		snippet = snippet[:maxErrorBody]
	}
	cause := fmt.Errorf("completion failed status=%d body=%s", status, snippet)
	if status == http.StatusUnauthorized || status == http.StatusForbidden || strings.Contains(snippet, "API_KEY_INVALID") {
		return apperr.Wrap(apperr.ConfigurationError, "completion service rejected the credential", cause)
	}
	return apperr.Wrap(apperr.ServiceUnavailable, "completion service returned an error", cause)
}
