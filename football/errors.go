package football

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound      = errors.New("football: not found")
	ErrDecode        = errors.New("football: decode response")
	ErrUnknownLeague = errors.New("football: unknown league")
)

// APIError is a failed call to the remote API: either a non-2xx status, or a
// 2xx whose envelope carries an errors object.
type APIError struct {
	Endpoint   string
	StatusCode int
	Body       string
	Messages   map[string]string
}

func (e *APIError) Error() string {
	if len(e.Messages) > 0 {
		keys := make([]string, 0, len(e.Messages))
		for k := range e.Messages {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+e.Messages[k])
		}
		return fmt.Sprintf("football: %s: %s", e.Endpoint, strings.Join(parts, "; "))
	}
	if e.Body != "" {
		return fmt.Sprintf("football: %s: http %d: %s", e.Endpoint, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("football: %s: http %d", e.Endpoint, e.StatusCode)
}

// HTTPStatus exposes the response status code.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// envelope is the wrapper every API response shares. Errors is [] when the
// call succeeded and an object (occasionally an array of strings) otherwise.
type envelope[T any] struct {
	Get      string          `json:"get"`
	Errors   json.RawMessage `json:"errors"`
	Results  int             `json:"results"`
	Response T               `json:"response"`
	Paging   struct {
		Current int `json:"current"`
		Total   int `json:"total"`
	} `json:"paging"`
}

func (e envelope[T]) errorMessages() map[string]string {
	raw := strings.TrimSpace(string(e.Errors))
	switch raw {
	case "", "null", "[]", "{}", `""`:
		return nil
	}
	var obj map[string]string
	if err := json.Unmarshal(e.Errors, &obj); err == nil {
		if len(obj) == 0 {
			return nil
		}
		return obj
	}
	var list []string
	if err := json.Unmarshal(e.Errors, &list); err == nil {
		if len(list) == 0 {
			return nil
		}
		out := make(map[string]string, len(list))
		for i, msg := range list {
			out[fmt.Sprintf("error%d", i)] = msg
		}
		return out
	}
	return map[string]string{"error": raw}
}
