package airquality

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, baseURL string, timeout time.Duration) *Client {
	t.Helper()
	c, err := NewClient(ClientConfig{BaseURL: baseURL, APIKey: "test-key", Timeout: timeout})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func TestClientSendsKeyAndRawCity(t *testing.T) {
	var gotPath, gotCity, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotCity = r.URL.Query().Get("city")
		gotKey = r.Header.Get("X-Api-Key")
		w.Write([]byte(`{"overall_aqi": 57}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL+"/", time.Second)
	res := c.Fetch(context.Background(), "São Paulo")

	if res.Kind != KindSuccess {
		t.Fatalf("expected success, got %v (%v)", res.Kind, res.Err)
	}
	if string(res.Payload) != `{"overall_aqi": 57}` {
		t.Fatalf("payload should be returned verbatim, got %s", res.Payload)
	}
	if gotPath != "/v1/airquality" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotCity != "São Paulo" {
		t.Fatalf("city should be sent unnormalized, got %q", gotCity)
	}
	if gotKey != "test-key" {
		t.Fatalf("expected X-Api-Key header, got %q", gotKey)
	}
}

func TestClientClassifiesResponses(t *testing.T) {
	cases := []struct {
		name       string
		status     int
		body       string
		wantKind   Kind
		wantStatus int
		wantBody   string
	}{
		{"success", 200, `{"CO":{"concentration":223.64,"aqi":2},"overall_aqi":2}`, KindSuccess, 200, ""},
		{"empty object", 200, `{}`, KindNotFoundEmpty, 200, ""},
		{"empty object with whitespace", 200, " {}\n", KindNotFoundEmpty, 200, ""},
		{"empty array", 200, `[]`, KindNotFoundEmpty, 200, ""},
		{"null", 200, `null`, KindNotFoundEmpty, 200, ""},
		{"not found", 404, `{"error":"nope"}`, KindNotFoundByStatus, 404, ""},
		{"unauthorized", 401, `{"error":"Invalid API Key."}`, KindAuth, 401, ""},
		{"forbidden", 403, ``, KindAuth, 403, ""},
		{"bad request", 400, `{"error":"city is required"}`, KindUpstreamHTTP, 400, `{"error":"city is required"}`},
		{"rate limited", 429, "too many\n", KindUpstreamHTTP, 429, "too many"},
		{"server error", 500, `oops`, KindUpstreamHTTP, 500, "oops"},
		{"invalid json", 200, `<html>`, KindUnknown, 0, ""},
		{"empty body", 200, ``, KindUnknown, 0, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			res := newTestClient(t, srv.URL, time.Second).Fetch(context.Background(), "Lisbon")
			if res.Kind != tc.wantKind {
				t.Fatalf("expected %v, got %v (%v)", tc.wantKind, res.Kind, res.Err)
			}
			if res.Status != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, res.Status)
			}
			if res.Body != tc.wantBody {
				t.Fatalf("expected body %q, got %q", tc.wantBody, res.Body)
			}
			if res.Kind != KindSuccess && res.Payload != nil {
				t.Fatalf("failure should carry no payload, got %s", res.Payload)
			}
		})
	}
}

func TestClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	res := newTestClient(t, srv.URL, 30*time.Millisecond).Fetch(context.Background(), "Lima")
	if res.Kind != KindTimeout {
		t.Fatalf("expected timeout, got %v (%v)", res.Kind, res.Err)
	}
	if res.HTTPStatus() != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", res.HTTPStatus())
	}
}

func TestClientConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	res := newTestClient(t, url, time.Second).Fetch(context.Background(), "Quito")
	if res.Kind != KindConnection {
		t.Fatalf("expected connection error, got %v (%v)", res.Kind, res.Err)
	}
	if res.HTTPStatus() != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.HTTPStatus())
	}
}

func TestClientConnectionDropped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, _, err := w.(http.Hijacker).Hijack()
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	res := newTestClient(t, srv.URL, time.Second).Fetch(context.Background(), "Bogotá")
	if res.Kind != KindConnection {
		t.Fatalf("expected connection error, got %v (%v)", res.Kind, res.Err)
	}
}

func TestClientCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"overall_aqi":1}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := newTestClient(t, srv.URL, time.Second).Fetch(ctx, "Caracas")
	if res.Kind != KindUnknown {
		t.Fatalf("expected unknown error for cancelled request, got %v (%v)", res.Kind, res.Err)
	}
}

func TestNewClientValidation(t *testing.T) {
	cases := []struct {
		name string
		cfg  ClientConfig
		want string
	}{
		{"missing key", ClientConfig{BaseURL: "https://example.com"}, "API key is required"},
		{"bad scheme", ClientConfig{BaseURL: "ftp://example.com", APIKey: "k"}, "unsupported upstream URL scheme"},
		{"no host", ClientConfig{BaseURL: "https://", APIKey: "k"}, "has no host"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewClient(tc.cfg)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}

	c, err := NewClient(ClientConfig{APIKey: "k"})
	if err != nil {
		t.Fatalf("defaults should be valid: %v", err)
	}
	if got := c.endpoint.String(); got != DefaultBaseURL+"/v1/airquality" {
		t.Fatalf("unexpected default endpoint %q", got)
	}
}

func TestIsEmptyPayload(t *testing.T) {
	cases := map[string]bool{
		`{}`:                true,
		`[]`:                true,
		`null`:              true,
		`""`:                true,
		`false`:             true,
		`0`:                 true,
		`0.0`:               true,
		`{"a":1}`:           false,
		`[1]`:               false,
		`"x"`:               false,
		`true`:              false,
		`12`:                false,
		`{"overall_aqi":0}`: false,
	}
	for in, want := range cases {
		if got := isEmptyPayload([]byte(in)); got != want {
			t.Fatalf("isEmptyPayload(%s): expected %v, got %v", in, want, got)
		}
	}
}
