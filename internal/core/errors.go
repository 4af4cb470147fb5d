package core

import (
	"errors"
	"fmt"
)

// Error kinds. Callers match them with errors.Is; every error produced by
// the engine wraps exactly one of these.
var (
	ErrParse      = errors.New("parse error")
	ErrValidation = errors.New("validation error")
	ErrConfig     = errors.New("config error")
	ErrNotFound   = errors.New("not found")
)

func Parsef(format string, args ...any) error {
	return kindf(ErrParse, format, args...)
}

func Validationf(format string, args ...any) error {
	return kindf(ErrValidation, format, args...)
}

func Configf(format string, args ...any) error {
	return kindf(ErrConfig, format, args...)
}

func NotFoundf(format string, args ...any) error {
	return kindf(ErrNotFound, format, args...)
}

func kindf(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// Kind returns the error kind wrapped by err, or nil for unclassified errors.
func Kind(err error) error {
	for _, k := range []error{ErrParse, ErrValidation, ErrConfig, ErrNotFound} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
