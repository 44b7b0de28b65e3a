// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package veil

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindOracleUnavailable
	KindEncryptionTimeout
	KindEncryptionFailed
	KindNetworkSwitchFailed
	KindWillRevert
	KindTransactionFailed
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindOracleUnavailable:
		return "oracle unavailable"
	case KindEncryptionTimeout:
		return "encryption timeout"
	case KindEncryptionFailed:
		return "encryption failed"
	case KindNetworkSwitchFailed:
		return "network switch failed"
	case KindWillRevert:
		return "transaction will revert"
	case KindTransactionFailed:
		return "transaction failed"
	case KindValidation:
		return "validation error"
	default:
		return "unknown"
	}
}

// Retryable reports whether the user may retry the same action unchanged.
func (k Kind) Retryable() bool {
	return k == KindEncryptionTimeout || k == KindEncryptionFailed
}

var (
	ErrOracleUnavailable   = &Error{Kind: KindOracleUnavailable}
	ErrEncryptionTimeout   = &Error{Kind: KindEncryptionTimeout}
	ErrEncryptionFailed    = &Error{Kind: KindEncryptionFailed}
	ErrNetworkSwitchFailed = &Error{Kind: KindNetworkSwitchFailed}
	ErrWillRevert          = &Error{Kind: KindWillRevert}
	ErrTransactionFailed   = &Error{Kind: KindTransactionFailed}
	ErrValidation          = &Error{Kind: KindValidation}
)

// Error represents a classified pipeline error. Reason is the most specific
// human-readable message available; Err is the underlying cause, if any.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

// NewError returns an error of the given kind. An empty reason falls back to
// the message of err.
func NewError(kind Kind, reason string, err error) *Error {
	if reason == "" && err != nil {
		reason = err.Error()
	}
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// Errorf returns an error of the given kind with a formatted reason.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Reason == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the package sentinels can be
// used with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Reason returns the human-readable reason carried by err.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Reason != "" {
		return e.Reason
	}
	return err.Error()
}
