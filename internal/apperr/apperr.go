// Package apperr classifies service errors and renders them as JSON error bodies.
package apperr

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/georgemunganga/onchain-storefront/internal/chain"
)

type Kind string

const (
	KindValidation        Kind = "validation"
	KindPrecondition      Kind = "precondition"
	KindTransactionFailed Kind = "transaction_failed"
	KindReverted          Kind = "reverted"
	KindTransport         Kind = "transport"
	KindNotFound          Kind = "not_found"
	KindUnauthorized      Kind = "unauthorized"
	KindForbidden         Kind = "forbidden"
)

// Error is a classified error. Fields carries per-field validation messages.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
	TxHash  string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: "validation failed", Fields: fields}
}

func ValidationField(field, msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: map[string]string{field: msg}}
}

func Precondition(msg string) *Error {
	return &Error{Kind: KindPrecondition, Message: msg}
}

func Preconditionf(format string, args ...interface{}) *Error {
	return Precondition(fmt.Sprintf(format, args...))
}

func NotFound(msg string) *Error     { return &Error{Kind: KindNotFound, Message: msg} }
func Unauthorized(msg string) *Error { return &Error{Kind: KindUnauthorized, Message: msg} }
func Forbidden(msg string) *Error    { return &Error{Kind: KindForbidden, Message: msg} }

// KindOf classifies err. Anything unrecognised is a transport error.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	var revert *chain.RevertError
	switch {
	case errors.Is(err, chain.ErrTransactionFailed):
		return KindTransactionFailed
	case errors.As(err, &revert):
		return KindReverted
	case errors.Is(err, sql.ErrNoRows):
		return KindNotFound
	case errors.Is(err, chain.ErrNoSigner), errors.Is(err, chain.ErrWrongChain):
		return KindPrecondition
	}
	return KindTransport
}

func Status(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindPrecondition, KindReverted:
		return http.StatusConflict
	case KindTransactionFailed:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// Body is the JSON shape of every error response.
type Body struct {
	Error  string            `json:"error"`
	Kind   Kind              `json:"kind"`
	Fields map[string]string `json:"fields,omitempty"`
	TxHash string            `json:"tx_hash,omitempty"`
}

func BodyOf(err error) Body {
	body := Body{Error: err.Error(), Kind: KindOf(err)}

	var appErr *Error
	if errors.As(err, &appErr) {
		body.Fields = appErr.Fields
		body.TxHash = appErr.TxHash
	}
	var failed *chain.TxFailedError
	if errors.As(err, &failed) && body.TxHash == "" {
		body.TxHash = failed.Hash.Hex()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		body.Error = "timed out: " + body.Error
	}
	return body
}

// Write renders err with the status code of its kind.
func Write(w http.ResponseWriter, err error) {
	body := BodyOf(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(Status(body.Kind))
	json.NewEncoder(w).Encode(body)
}
