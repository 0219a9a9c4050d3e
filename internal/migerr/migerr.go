// Package migerr defines the typed error kinds a migration run can produce,
// per the error handling design: configuration, connection, mapping, DDL,
// data, integrity, and cancellation errors. Each wraps an underlying cause
// so callers can still errors.As/errors.Is through to the driver error.
package migerr

import "fmt"

// Kind classifies a migration error for reporting and for the CLI wrapper's
// exit-code mapping.
type Kind string

const (
	KindConfig     Kind = "config"
	KindConnection Kind = "connection"
	KindMapping    Kind = "mapping"
	KindDDL        Kind = "ddl"
	KindData       Kind = "data"
	KindIntegrity  Kind = "integrity"
	KindCancelled  Kind = "cancelled"
)

// Error is the common shape for all typed migration errors.
type Error struct {
	Kind  Kind
	Table string // empty when not table-scoped
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Table != "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s: %s: %v", e.Kind, e.Table, e.Msg, e.Cause)
		}
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Table, e.Msg)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

func newErr(kind Kind, table, msg string, cause error) *Error {
	return &Error{Kind: kind, Table: table, Msg: msg, Cause: cause}
}

func Config(msg string, cause error) *Error         { return newErr(KindConfig, "", msg, cause) }
func Connection(msg string, cause error) *Error     { return newErr(KindConnection, "", msg, cause) }
func Mapping(table, msg string, cause error) *Error { return newErr(KindMapping, table, msg, cause) }
func DDL(table, msg string, cause error) *Error     { return newErr(KindDDL, table, msg, cause) }
func Data(table, msg string, cause error) *Error    { return newErr(KindData, table, msg, cause) }
func Integrity(table, msg string, cause error) *Error {
	return newErr(KindIntegrity, table, msg, cause)
}
func Cancelled(table string) *Error {
	return newErr(KindCancelled, table, "migration cancelled", nil)
}

// IsKind reports whether err (or something it wraps) is a *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	for err != nil {
		if me, ok := err.(*Error); ok {
			e = me
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == k
}
