// Package apperr defines the error kinds surfaced by the question pipeline.
// Every failure that crosses the pipeline boundary carries exactly one Kind
// so collaborators can map it to an exit code, HTTP status or message.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// ConfigurationError means a missing or invalid completion credential.
	ConfigurationError Kind = "ConfigurationError"
	// ServiceUnavailable covers transient completion-service failures and timeouts.
	ServiceUnavailable Kind = "ServiceUnavailable"
	// DisallowedOperation means the guard rejected the generated statement.
	DisallowedOperation Kind = "DisallowedOperation"
	// QuerySyntaxError means the store rejected guarded SQL.
	QuerySyntaxError Kind = "QuerySyntaxError"
	// StoreUnavailable means the embedded store could not be opened.
	StoreUnavailable Kind = "StoreUnavailable"
)

var codes = map[Kind]string{
	ConfigurationError:  "CONFIGURATION_ERROR",
	ServiceUnavailable:  "SERVICE_UNAVAILABLE",
	DisallowedOperation: "DISALLOWED_OPERATION",
	QuerySyntaxError:    "QUERY_SYNTAX_ERROR",
	StoreUnavailable:    "STORE_UNAVAILABLE",
}

// Code is the form of the kind used in HTTP error bodies.
func (k Kind) Code() string {
	if code, ok := codes[k]; ok {
		return code
	}
	return "INTERNAL"
}

func KindFromCode(code string) (Kind, bool) {
	for kind, candidate := range codes {
		if candidate == code {
			return kind, true
		}
	}
	return "", false
}

type Error struct {
	Kind    Kind
	Message string
	// SQL is set for QuerySyntaxError so callers can show the offending statement.
	SQL string
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error             { return &Error{Kind: kind, Message: msg} }
func Wrap(kind Kind, msg string, err error) *Error { return &Error{Kind: kind, Message: msg, Err: err} }

func WithSQL(kind Kind, msg, sqlText string, err error) *Error {
	return &Error{Kind: kind, Message: msg, SQL: sqlText, Err: err}
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind, true
	}
	return "", false
}

func Is(err error, kind Kind) bool {
	got, ok := KindOf(err)
	return ok && got == kind
}

func Retryable(err error) bool {
	return Is(err, ServiceUnavailable)
}

func SQLOf(err error) string {
	var target *Error
	if errors.As(err, &target) {
		return target.SQL
	}
	return ""
}

func MessageOf(err error) string {
	var target *Error
	if errors.As(err, &target) {
		return target.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// DetailOf is MessageOf followed by the text of the wrapped cause, such as the
// store's reason for rejecting a statement. DisallowedOperation keeps its
// fixed message.
func DetailOf(err error) string {
	var target *Error
	if !errors.As(err, &target) {
		return MessageOf(err)
	}
	if target.Err == nil || target.Kind == DisallowedOperation {
		return target.Message
	}
	return target.Message + ": " + DetailOf(target.Err)
}
