package action

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an outcome.
type Kind int

const (
	KindSuccess Kind = iota
	KindClientError
	KindServerError
	KindNetworkError
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindClientError:
		return "client_error"
	case KindServerError:
		return "server_error"
	case KindNetworkError:
		return "network_error"
	default:
		return "unknown"
	}
}

// ErrInvalidRequest marks a request that failed locally before it was sent.
var ErrInvalidRequest = errors.New("invalid request")

// Response is the raw result handed back by a transport.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Outcome is the classified result of one dispatched request.
// Body is never nil.
type Outcome struct {
	Kind   Kind
	Status int
	Body   Body
	// Reason tags endpoint-specific variants inside one kind,
	// e.g. "already_activated" for a 2xx tri-state body.
	Reason string
	// Malformed is set when a non-empty body could not be parsed.
	Malformed bool
	Err       error
}

// OK reports whether the outcome is a success.
func (o Outcome) OK() bool { return o.Kind == KindSuccess }

// Message returns the body's "message" field.
func (o Outcome) Message() string {
	return o.Body.String("message")
}

// Classifier re-examines an interpreted outcome, typically to route a 2xx
// body carrying a failure flag to ClientError handling.
type Classifier func(Outcome) Outcome

// Interpret classifies a transport result. It never panics and never
// returns a nil Body:
//   - err wraps ErrInvalidRequest          -> ClientError, status 0
//   - err != nil or resp == nil            -> NetworkError
//   - status in [200,300)                  -> Success
//   - status in [500,...)                  -> ServerError
//   - any other status                     -> ClientError
//
// A malformed body degrades to an empty Body with Malformed set.
func Interpret(resp *Response, err error) Outcome {
	if errors.Is(err, ErrInvalidRequest) {
		return Outcome{Kind: KindClientError, Body: Body{}, Err: err}
	}
	if err != nil || resp == nil {
		if err == nil {
			err = fmt.Errorf("no response received")
		}
		return Outcome{Kind: KindNetworkError, Body: Body{}, Err: err}
	}

	body, malformed := parseBody(resp.Body)
	out := Outcome{Status: resp.Status, Body: body, Malformed: malformed}

	switch {
	case resp.Status >= 200 && resp.Status < 300:
		out.Kind = KindSuccess
	case resp.Status >= 500:
		out.Kind = KindServerError
	default:
		out.Kind = KindClientError
	}
	return out
}

func parseBody(raw []byte) (Body, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Body{}, false
	}
	var body Body
	if err := json.Unmarshal(raw, &body); err != nil || body == nil {
		return Body{}, true
	}
	return body, false
}

// StatusError reports a non-success outcome as an error value.
type StatusError struct {
	Outcome Outcome
}

func (e *StatusError) Error() string {
	switch e.Outcome.Kind {
	case KindNetworkError:
		return fmt.Sprintf("network error: %v", e.Outcome.Err)
	default:
		if e.Outcome.Status == 0 && e.Outcome.Err != nil {
			return fmt.Sprintf("%s: %v", e.Outcome.Kind, e.Outcome.Err)
		}
		if msg := e.Outcome.Message(); msg != "" {
			return fmt.Sprintf("%s (status %d): %s", e.Outcome.Kind, e.Outcome.Status, msg)
		}
		return fmt.Sprintf("%s (status %d)", e.Outcome.Kind, e.Outcome.Status)
	}
}

func (e *StatusError) Unwrap() error { return e.Outcome.Err }

// AsError returns nil for a success and a *StatusError otherwise.
func (o Outcome) AsError() error {
	if o.OK() {
		return nil
	}
	return &StatusError{Outcome: o}
}
