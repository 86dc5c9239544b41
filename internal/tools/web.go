package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultMaxResponseBytes = 1 << 20 // 1 MiB

// HTTPGetTool fetches a URL over HTTP(S). Outbound requests are effectful
// from a data-exfiltration standpoint, so every call requires approval.
// Hosts are checked against an allowlist supporting "*.example.com"
// wildcard entries; an empty allowlist permits any host.
type HTTPGetTool struct {
	allowedHosts []string
	maxBytes     int64
	client       *http.Client
}

func NewHTTPGetTool(allowedHosts []string, timeout time.Duration) *HTTPGetTool {
	normalized := make([]string, 0, len(allowedHosts))
	for _, h := range allowedHosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			normalized = append(normalized, h)
		}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPGetTool{
		allowedHosts: normalized,
		maxBytes:     defaultMaxResponseBytes,
		client:       &http.Client{Timeout: timeout},
	}
}

func (t *HTTPGetTool) Name() string        { return "http_get" }
func (t *HTTPGetTool) Description() string { return "Fetch the contents of a URL" }
func (t *HTTPGetTool) Category() Category  { return CategoryWeb }

func (t *HTTPGetTool) RequiresApproval() bool { return true }

func (t *HTTPGetTool) ArgumentSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{"type": "string", "minLength": 1},
		},
		"required":             []any{"url"},
		"additionalProperties": false,
	}
}

func (t *HTTPGetTool) ValidateInput(args map[string]any) bool {
	raw, ok := args["url"].(string)
	if !ok || raw == "" {
		return false
	}
	_, err := t.validateURL(raw)
	return err == nil
}

func (t *HTTPGetTool) Execute(ctx context.Context, args map[string]any) Result {
	raw, _ := args["url"].(string)

	parsed, err := t.validateURL(raw)
	if err != nil {
		return Failure(err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return Failure(fmt.Sprintf("build request: %v", err))
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return Failure(fmt.Sprintf("fetch %s: %v", raw, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBytes))
	if err != nil {
		return Failure(fmt.Sprintf("read response from %s: %v", raw, err))
	}

	return Result{
		Success: true,
		Result:  string(body),
		Metadata: map[string]any{
			"url":          raw,
			"status_code":  resp.StatusCode,
			"content_type": resp.Header.Get("Content-Type"),
			"bytes":        len(body),
		},
	}
}

func (t *HTTPGetTool) validateURL(raw string) (*url.URL, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %v", raw, err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme %q", parsed.Scheme)
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return nil, fmt.Errorf("URL must include a hostname")
	}
	if !t.hostAllowed(host) {
		return nil, fmt.Errorf("host %q is not allowlisted", host)
	}
	return parsed, nil
}

func (t *HTTPGetTool) hostAllowed(host string) bool {
	if len(t.allowedHosts) == 0 {
		return true
	}
	for _, allowed := range t.allowedHosts {
		if strings.HasPrefix(allowed, "*.") {
			suffix := allowed[1:] // ".example.com"
			if strings.HasSuffix(host, suffix) || host == strings.TrimPrefix(suffix, ".") {
				return true
			}
		} else if host == allowed {
			return true
		}
	}
	return false
}
