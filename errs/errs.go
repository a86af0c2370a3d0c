// Package errs carries the error taxonomy the HTTP layer maps to status codes.
package errs

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindBadRequest Kind = iota + 1
	KindNotFound
	KindUnavailable
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func BadRequest(msg string) error { return &Error{Kind: KindBadRequest, Msg: msg} }
func NotFound(msg string) error   { return &Error{Kind: KindNotFound, Msg: msg} }
func Unavailable(msg string, err error) error {
	return &Error{Kind: KindUnavailable, Msg: msg, Err: err}
}

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func IsBadRequest(err error) bool  { return KindOf(err) == KindBadRequest }
func IsNotFound(err error) bool    { return KindOf(err) == KindNotFound }
func IsUnavailable(err error) bool { return KindOf(err) == KindUnavailable }
