// Package errs holds the error kinds shared by the scoring packages.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks invalid split or metric parameters.
	ErrConfiguration = errors.New("configuration error")
	// ErrAlignment marks assemblies that cannot be matched on their labels.
	ErrAlignment = errors.New("alignment error")
	// ErrUnfittedModel is returned when a regression predicts before it was fitted.
	ErrUnfittedModel = errors.New("unfitted model")
	// ErrNumeric marks degenerate numerics such as a singular design matrix.
	ErrNumeric = errors.New("numeric error")
)

func Configurationf(format string, args ...any) error {
	return wrapf(ErrConfiguration, format, args...)
}

func Alignmentf(format string, args ...any) error {
	return wrapf(ErrAlignment, format, args...)
}

func Numericf(format string, args ...any) error {
	return wrapf(ErrNumeric, format, args...)
}

func wrapf(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}
