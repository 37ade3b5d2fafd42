package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/crystaldolphin/mcpchat/internal/schema"
)

const maxErrorBody = 1000

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 120 * time.Second}
}

// postJSON sends body to url and returns the raw response. Non-200 answers
// and transport failures come back as classified *schema.Error values.
func postJSON(ctx context.Context, client *http.Client, provider, url string, headers map[string]string, body any) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, transportError(provider, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(provider, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(provider, resp.StatusCode, raw)
	}
	return raw, nil
}

// statusError maps a vendor HTTP failure to an error kind. The vendor body
// is kept in the message so callers can inspect it.
func statusError(provider string, code int, body []byte) error {
	detail := vendorMessage(body)
	var kind schema.ErrorKind
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = schema.KindAuth
	case http.StatusNotFound:
		kind = schema.KindModelUnavailable
	case http.StatusTooManyRequests:
		kind = schema.KindRateLimited
		if strings.Contains(strings.ToLower(detail), "quota") {
			kind = schema.KindQuotaExceeded
		}
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		kind = schema.KindTimeout
	default:
		kind = schema.KindProvider
	}
	return schema.NewError(kind, fmt.Sprintf("%s: HTTP %d: %s", provider, code, detail), nil)
}

func transportError(provider string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return schema.NewError(schema.KindTimeout, provider+": request timed out", err)
	}
	return schema.NewError(schema.KindProvider, provider+": request failed", err)
}

func missingKey(provider string) error {
	return schema.NewError(schema.KindAuth, provider+": API key not configured", nil)
}

// vendorMessage extracts error.message from a JSON error body, falling back
// to the truncated raw body.
func vendorMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	raw := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &envelope) == nil && envelope.Error.Message != "" {
		raw = envelope.Error.Message
	}
	if len(raw) > maxErrorBody {
		raw = raw[:maxErrorBody]
	}
	return raw
}

// repairJSON attempts to unmarshal JSON, retrying after stripping trailing
// garbage characters. Some models emit truncated tool arguments.
func repairJSON(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, nil
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err == nil {
		return out, nil
	}

	stripped := strings.TrimRight(raw, " \t\n\r}]")
	if !strings.HasSuffix(stripped, "}") {
		stripped += "}"
	}
	if err := json.Unmarshal([]byte(stripped), &out); err == nil {
		return out, nil
	}

	if i := strings.LastIndex(raw, "}"); i >= 0 {
		if err := json.Unmarshal([]byte(raw[:i+1]), &out); err == nil {
			return out, nil
		}
	}

	return map[string]any{}, fmt.Errorf("cannot repair JSON: %s", raw)
}
