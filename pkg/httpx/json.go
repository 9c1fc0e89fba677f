package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"advisor-backend/pkg/errs"
)

// DefaultClient is shared by the provider adapters.
var DefaultClient = &http.Client{Timeout: 60 * time.Second}

// DoJSON sends in as a JSON body (when non-nil) and decodes a 2xx response into out.
// Non-2xx responses and transport failures come back as *errs.ProviderError.
func DoJSON(ctx context.Context, client *http.Client, provider, method, url string, headers map[string]string, in, out any) error {
	if client == nil {
		client = DefaultClient
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", provider, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", provider, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return errs.NewTransportError(provider, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.NewTransportError(provider, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errs.NewStatusError(provider, resp.StatusCode, respBody)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return errs.NewTransportError(provider, fmt.Errorf("failed to parse response: %w", err))
	}
	return nil
}

// PostJSON is DoJSON with POST.
func PostJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, in, out any) error {
	return DoJSON(ctx, client, provider, http.MethodPost, url, headers, in, out)
}
