// Package airquality resolves air-quality readings for a city. A Resolver
// serves fresh payloads from the cache store and otherwise asks the upstream
// provider through a Fetcher. Every outcome, including failures, is reported
// as a Result whose Kind maps onto exactly one client-facing response.
package airquality

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies the outcome of a lookup.
type Kind int

const (
	KindSuccess          Kind = iota // payload available, from cache or upstream
	KindValidation                   // city parameter missing
	KindConnection                   // could not reach the provider
	KindTimeout                      // provider did not answer in time
	KindNotFoundByStatus             // provider answered 404
	KindNotFoundEmpty                // provider answered 2xx with an empty body
	KindAuth                         // provider answered 401 or 403
	KindUpstreamHTTP                 // provider answered any other 4xx/5xx
	KindUnknown                      // anything else
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindValidation:
		return "validation"
	case KindConnection:
		return "connection_error"
	case KindTimeout:
		return "timeout"
	case KindNotFoundByStatus:
		return "not_found_status"
	case KindNotFoundEmpty:
		return "not_found_empty"
	case KindAuth:
		return "auth_error"
	case KindUpstreamHTTP:
		return "upstream_http_error"
	case KindUnknown:
		return "unknown_error"
	default:
		return "invalid"
	}
}

// CacheState records what the resolver found in the cache store.
type CacheState string

const (
	CacheHit   CacheState = "hit"
	CacheMiss  CacheState = "miss"
	CacheStale CacheState = "stale"
)

// ErrCityRequired is carried by KindValidation results.
var ErrCityRequired = errors.New("city required")

// Client-facing messages.
const (
	msgCityRequired  = "city parameter is required"
	msgCityNotFound  = "city not found"
	msgAuth          = "authentication or permission error with external API"
	msgConnection    = "could not connect to external API"
	msgTimeout       = "external API took too long to respond"
	msgUnknown       = "could not retrieve air quality data"
	msgUpstreamHTTPf = "external API error: %d - %s"
)

// Result is the outcome of a lookup or of a single upstream fetch.
type Result struct {
	Kind    Kind
	Payload json.RawMessage // set for KindSuccess
	Status  int             // upstream status for KindAuth and KindUpstreamHTTP
	Body    string          // upstream body for KindUpstreamHTTP
	Err     error           // underlying cause, never shown to clients

	Cache  CacheState // set by Resolver
	Shared bool       // true when the payload came from another caller's fetch
}

// OK reports whether the result carries a payload.
func (r Result) OK() bool {
	return r.Kind == KindSuccess
}

// HTTPStatus returns the status code the gateway answers with.
func (r Result) HTTPStatus() int {
	switch r.Kind {
	case KindSuccess:
		return http.StatusOK
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFoundByStatus, KindNotFoundEmpty:
		return http.StatusNotFound
	case KindAuth, KindUpstreamHTTP:
		if r.Status >= 400 && r.Status <= 599 {
			return r.Status
		}
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindConnection, KindUnknown:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-facing error message. It is empty on success.
func (r Result) Message() string {
	switch r.Kind {
	case KindSuccess:
		return ""
	case KindValidation:
		return msgCityRequired
	case KindNotFoundByStatus, KindNotFoundEmpty:
		return msgCityNotFound
	case KindAuth:
		return msgAuth
	case KindUpstreamHTTP:
		return fmt.Sprintf(msgUpstreamHTTPf, r.Status, r.Body)
	case KindConnection:
		return msgConnection
	case KindTimeout:
		return msgTimeout
	case KindUnknown:
		return msgUnknown
	default:
		return msgUnknown
	}
}

// Reason describes the failure for logs. It is empty on success.
func (r Result) Reason() string {
	if r.Kind == KindSuccess {
		return ""
	}
	if r.Err != nil {
		return fmt.Sprintf("%s: %v", r.Kind, r.Err)
	}
	return r.Kind.String()
}

func failure(kind Kind, err error) Result {
	return Result{Kind: kind, Err: err}
}
