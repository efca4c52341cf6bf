// Package result holds the outcome type returned or published by every data operation.
package result

import (
	"errors"
	"fmt"
)

// Kind discriminates the three variants of a Result.
type Kind int

const (
	KindLoading Kind = iota
	KindSuccess
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindError:
		return "error"
	case KindLoading:
		return "loading"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Result is a closed sum of Success(data), Error(cause) and Loading.
// The zero value is Loading.
type Result[T any] struct {
	kind Kind
	data T
	err  error
}

// Success wraps data.
func Success[T any](data T) Result[T] {
	return Result[T]{kind: KindSuccess, data: data}
}

// Failure wraps cause as the Error variant. A nil cause is replaced with a generic error.
func Failure[T any](cause error) Result[T] {
	if cause == nil {
		cause = errors.New("unknown error")
	}
	return Result[T]{kind: KindError, err: cause}
}

// Loading marks an in-flight fetch. It is only ever published on streams.
func Loading[T any]() Result[T] {
	return Result[T]{kind: KindLoading}
}

func (r Result[T]) Kind() Kind { return r.kind }

// Succeeded is true only for Success.
func (r Result[T]) Succeeded() bool { return r.kind == KindSuccess }

// Data returns the payload; it is the zero value unless Succeeded.
func (r Result[T]) Data() T { return r.data }

// Err returns the cause of an Error and nil otherwise.
func (r Result[T]) Err() error { return r.err }

// Unwrap converts the result to a Go (value, error) pair. Loading yields ErrLoading.
func (r Result[T]) Unwrap() (T, error) {
	switch r.kind {
	case KindSuccess:
		return r.data, nil
	case KindError:
		var zero T
		return zero, r.err
	default:
		var zero T
		return zero, ErrLoading
	}
}

// ErrLoading is returned by Unwrap on a Loading result.
var ErrLoading = errors.New("result is still loading")

// Match calls exactly one of the handlers. All three are required.
func (r Result[T]) Match(onSuccess func(T), onError func(error), onLoading func()) {
	if onSuccess == nil || onError == nil || onLoading == nil {
		panic("result: Match requires all three handlers")
	}
	switch r.kind {
	case KindSuccess:
		onSuccess(r.data)
	case KindError:
		onError(r.err)
	default:
		onLoading()
	}
}

// Fold maps every variant to a value of type R.
func Fold[T, R any](r Result[T], onSuccess func(T) R, onError func(error) R, onLoading func() R) R {
	var out R
	r.Match(
		func(data T) { out = onSuccess(data) },
		func(err error) { out = onError(err) },
		func() { out = onLoading() },
	)
	return out
}

// Map transforms a Success payload; Error and Loading pass through.
func Map[T, R any](r Result[T], f func(T) Result[R]) Result[R] {
	return Fold(r,
		f,
		func(err error) Result[R] { return Failure[R](err) },
		func() Result[R] { return Loading[R]() },
	)
}

func (r Result[T]) String() string {
	return Fold(r,
		func(data T) string { return fmt.Sprintf("Success[data=%v]", data) },
		func(err error) string { return fmt.Sprintf("Error[exception=%v]", err) },
		func() string { return "Loading" },
	)
}
