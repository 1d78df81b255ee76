package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies fetch failures for user-facing messages.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindHTTP
	KindDecode
	KindTimeout
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindHTTP:
		return "http"
	case KindDecode:
		return "decode"
	case KindTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// statusCoder is implemented by errors carrying an HTTP response status.
// Only 4xx and 5xx codes count as HTTP failures.
type statusCoder interface {
	HTTPStatus() int
}

// PanicError wraps a value recovered from a panicking fetch.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return fmt.Sprintf("aggregate: fetch panicked: %v", e.Value) }

// Classify maps err onto the failure taxonomy.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	var sc statusCoder
	if errors.As(err, &sc) && sc.HTTPStatus() >= http.StatusBadRequest {
		return KindHTTP
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return KindDecode
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return KindNetwork
	}
	return KindUnknown
}

// Describe turns err into the message shown for an Error result.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	switch Classify(err) {
	case KindTimeout:
		return "Request timed out: " + err.Error()
	case KindCanceled:
		return "Request was cancelled"
	case KindNetwork:
		return "Network error, check your connection: " + err.Error()
	case KindDecode:
		return "Unexpected response from server: " + err.Error()
	case KindHTTP:
		var sc statusCoder
		errors.As(err, &sc)
		code := sc.HTTPStatus()
		if text := http.StatusText(code); text != "" {
			return fmt.Sprintf("Server error %d %s: %s", code, text, err.Error())
		}
		return fmt.Sprintf("Server error %d: %s", code, err.Error())
	default:
		return err.Error()
	}
}
