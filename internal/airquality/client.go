package airquality

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/oriys/airgate/internal/observability"
)

const (
	// DefaultBaseURL is the API Ninjas endpoint root.
	DefaultBaseURL = "https://api.api-ninjas.com"
	// DefaultTimeout bounds a single upstream request, body included.
	DefaultTimeout = 10 * time.Second

	airQualityPath = "/v1/airquality"
	apiKeyHeader   = "X-Api-Key"
	maxBodyBytes   = 1 << 20 // 1MB
)

// Fetcher performs one upstream lookup and classifies its outcome.
type Fetcher interface {
	Fetch(ctx context.Context, city string) Result
}

// ClientConfig configures the upstream client.
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client // optional; Timeout is ignored when set
}

// Client talks to the air-quality provider.
type Client struct {
	endpoint   *url.URL
	apiKey     string
	httpClient *http.Client
}

// NewClient builds a provider client. An API key is required.
func NewClient(cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("upstream API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse upstream URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported upstream URL scheme %q", base.Scheme)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("upstream URL %q has no host", cfg.BaseURL)
	}
	endpoint := base.JoinPath(airQualityPath)

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		endpoint:   endpoint,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
	}, nil
}

// Fetch queries the provider for city, passed through exactly as given.
func (c *Client) Fetch(ctx context.Context, city string) Result {
	ctx, span := observability.StartClientSpan(ctx, "airquality.upstream",
		observability.AttrCity.String(city),
	)
	defer span.End()

	res := c.fetch(ctx, city)

	span.SetAttributes(observability.AttrOutcome.String(res.Kind.String()))
	if res.Status != 0 {
		span.SetAttributes(observability.AttrUpstream.Int(res.Status))
	}
	if res.OK() {
		observability.SetSpanOK(span)
	} else if res.Err != nil {
		observability.SetSpanError(span, res.Err)
	}
	return res
}

func (c *Client) fetch(ctx context.Context, city string) Result {
	u := *c.endpoint
	u.RawQuery = url.Values{"city": {city}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return failure(KindUnknown, fmt.Errorf("build upstream request: %w", err))
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")
	observability.InjectHTTPHeaders(ctx, req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return failure(classifyTransportError(err), fmt.Errorf("upstream request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		kind := KindUnknown
		if isTimeout(err) {
			kind = KindTimeout
		}
		return failure(kind, fmt.Errorf("read upstream body: %w", err))
	}

	return classifyResponse(resp.StatusCode, body)
}

// classifyResponse maps a received upstream response onto a Result.
func classifyResponse(status int, body []byte) Result {
	switch {
	case status == http.StatusNotFound:
		return Result{Kind: KindNotFoundByStatus, Status: status, Err: fmt.Errorf("upstream status %d", status)}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return Result{Kind: KindAuth, Status: status, Err: fmt.Errorf("upstream status %d", status)}
	case status >= 400:
		text := strings.TrimSpace(string(body))
		return Result{Kind: KindUpstreamHTTP, Status: status, Body: text, Err: fmt.Errorf("upstream status %d: %s", status, text)}
	}

	payload := bytes.TrimSpace(body)
	if !json.Valid(payload) {
		return failure(KindUnknown, fmt.Errorf("decode upstream payload: invalid JSON (%d bytes)", len(body)))
	}
	if isEmptyPayload(payload) {
		return Result{Kind: KindNotFoundEmpty, Status: status, Err: errors.New("upstream returned an empty payload")}
	}
	return Result{Kind: KindSuccess, Payload: json.RawMessage(payload), Status: status}
}

// isEmptyPayload reports whether a valid JSON document carries no data. The
// provider answers unknown cities with 200 and "{}"; null, empty arrays,
// empty strings, false and zero are treated the same way.
func isEmptyPayload(payload []byte) bool {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return false
	}
	switch t := v.(type) {
	case nil:
		return true
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	case string:
		return t == ""
	case bool:
		return !t
	case json.Number:
		f, err := t.Float64()
		return err == nil && f == 0
	}
	return false
}

// classifyTransportError maps an error returned by http.Client.Do.
func classifyTransportError(err error) Kind {
	if isTimeout(err) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindUnknown
	}

	var dnsErr *net.DNSError
	var opErr *net.OpError
	var recordErr tls.RecordHeaderError
	var certErr *tls.CertificateVerificationError
	switch {
	case errors.As(err, &dnsErr),
		errors.As(err, &opErr),
		errors.As(err, &recordErr),
		errors.As(err, &certErr),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		return KindConnection
	}
	return KindUnknown
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
