package types

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidImage        = errors.New("invalid image")
	ErrLoadFailed          = errors.New("load failed")
	ErrDegenerateCrop      = errors.New("degenerate crop")
	ErrRasterizationFailed = errors.New("rasterization failed")
)

// CropError carries one of the Err* kinds plus a detail message.
type CropError struct {
	Kind error
	Msg  string
	Err  error
}

func (e *CropError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Kind.Error()
	if e.Msg != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the kind and the underlying cause to errors.Is / errors.As.
func (e *CropError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Errorf builds a CropError of the given kind.
func Errorf(kind error, format string, args ...any) error {
	return &CropError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds a CropError of the given kind around a cause.
func Wrap(kind error, err error, msg string) error {
	return &CropError{Kind: kind, Msg: msg, Err: err}
}
