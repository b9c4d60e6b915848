// Package cmderr defines the command layer's error taxonomy as typed Go
// errors (spec §4.8), so engine-facing code returns values instead of
// raising exceptions. A single mapping step at the dispatcher boundary
// turns any error into the {ok, errmsg, code, codeName, errorLabels?}
// wire envelope (spec §6).
package cmderr

import "fmt"

// Code mirrors the fixed, named integer codes the wire protocol uses.
type Code int32

const (
	BadValue          Code = 2
	TypeMismatch      Code = 14
	CursorNotFound    Code = 43
	CommandNotFound   Code = 59
	WriteConflict     Code = 112
	NotImplemented    Code = 238
	NoSuchTransaction Code = 251
	TransactionCommitted Code = 256
	DuplicateKey      Code = 11000
)

// codeNames maps each Code to its wire-visible codeName string.
var codeNames = map[Code]string{
	BadValue:             "BadValue",
	TypeMismatch:         "TypeMismatch",
	CursorNotFound:       "CursorNotFound",
	CommandNotFound:      "CommandNotFound",
	WriteConflict:        "WriteConflict",
	NotImplemented:       "NotImplemented",
	NoSuchTransaction:    "NoSuchTransaction",
	TransactionCommitted: "TransactionCommitted",
	DuplicateKey:         "DuplicateKey",
}

func (c Code) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return "UnknownError"
}

// Label is an errorLabels entry attached to transaction-related errors so
// drivers know whether to retry (spec §4.5/§7).
type Label string

const (
	TransientTransactionError       Label = "TransientTransactionError"
	UnknownTransactionCommitResult  Label = "UnknownTransactionCommitResult"
	UnsupportedFeature              Label = "UnsupportedFeature"
)

// CommandError is the typed error every handler and engine-facing
// component returns on failure; it carries everything the dispatcher
// needs to build the wire envelope.
type CommandError struct {
	Code   Code
	Errmsg string
	Labels []Label
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Code, e.Errmsg)
}

// New builds a CommandError with no labels.
func New(code Code, format string, args ...any) *CommandError {
	return &CommandError{Code: code, Errmsg: fmt.Sprintf(format, args...)}
}

// WithLabels returns a copy of err with the given labels attached.
func WithLabels(err *CommandError, labels ...Label) *CommandError {
	out := *err
	out.Labels = append(append([]Label{}, out.Labels...), labels...)
	return &out
}

// Errorf is a convenience constructor for the common BadValue case.
func Errorf(format string, args ...any) *CommandError {
	return New(BadValue, format, args...)
}

// CommandNotFoundError builds the fixed-shape error for an unregistered
// command name.
func CommandNotFoundError(name string) *CommandError {
	return New(CommandNotFound, "no such command: '%s'", name)
}

// CursorNotFoundError builds the fixed-shape error for an unknown or
// already-exhausted cursor id.
func CursorNotFoundError(cursorID int64) *CommandError {
	return New(CursorNotFound, "cursor id %d not found", cursorID)
}

// DuplicateKeyError builds the fixed-shape error for a unique-index
// violation.
func DuplicateKeyError(namespace, index string) *CommandError {
	return New(DuplicateKey, "E11000 duplicate key error collection: %s index: %s", namespace, index)
}

// NoSuchTransactionError builds the fixed-shape error, carrying the
// TransientTransactionError label so drivers retry the whole transaction.
func NoSuchTransactionError(txnNumber int64) *CommandError {
	return WithLabels(
		New(NoSuchTransaction, "Given transaction number %d does not match any in-progress transactions", txnNumber),
		TransientTransactionError,
	)
}

// TransactionCommittedError builds the fixed-shape error for a write
// issued after the transaction already committed.
func TransactionCommittedError() *CommandError {
	return New(TransactionCommitted, "Transaction has been committed")
}

// NotImplementedError builds the fixed-shape error for recognized-but-
// unsupported command options.
func NotImplementedError(what string) *CommandError {
	return WithLabels(New(NotImplemented, "%s is not implemented", what), UnsupportedFeature)
}
