// Package aggregate runs independent remote fetches concurrently, waits for
// all of them and folds the outcome into a single tagged Result.
package aggregate

import (
	"encoding/json"
	"fmt"
)

// State tags which variant of a Result is active.
type State int

const (
	StateLoading State = iota
	StateSuccess
	StateError
	StateEmpty
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	case StateEmpty:
		return "empty"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the lowercase state name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Result is exactly one of Loading, Success(Data), Error(Message) or Empty.
// Data is meaningful only for Success; Message and Err only for Error.
type Result[T any] struct {
	State   State
	Data    T
	Message string
	Err     error
}

func Loading[T any]() Result[T] { return Result[T]{State: StateLoading} }

func Success[T any](data T) Result[T] { return Result[T]{State: StateSuccess, Data: data} }

// Failure builds an Error result whose message is Describe(err).
func Failure[T any](err error) Result[T] {
	return Result[T]{State: StateError, Message: Describe(err), Err: err}
}

func Empty[T any]() Result[T] { return Result[T]{State: StateEmpty} }

func (r Result[T]) IsLoading() bool { return r.State == StateLoading }
func (r Result[T]) IsSuccess() bool { return r.State == StateSuccess }
func (r Result[T]) IsError() bool   { return r.State == StateError }
func (r Result[T]) IsEmpty() bool   { return r.State == StateEmpty }

// Terminal reports whether no further state will follow.
func (r Result[T]) Terminal() bool { return r.State != StateLoading }

// Unwrap returns the data and the failure, if any. Loading and Empty yield the
// zero value and a nil error.
func (r Result[T]) Unwrap() (T, error) {
	if r.State == StateError {
		var zero T
		if r.Err != nil {
			return zero, r.Err
		}
		return zero, fmt.Errorf("aggregate: %s", r.Message)
	}
	return r.Data, nil
}

type wireResult[T any] struct {
	State   State  `json:"state"`
	Data    *T     `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// MarshalJSON emits {"state":"success","data":...} or
// {"state":"error","message":"..."}; the other states carry only the tag.
func (r Result[T]) MarshalJSON() ([]byte, error) {
	w := wireResult[T]{State: r.State}
	switch r.State {
	case StateSuccess:
		w.Data = &r.Data
	case StateError:
		w.Message = r.Message
	}
	return json.Marshal(w)
}
