// Package errs defines Concerto's structured error taxonomy (spec §7).
//
// Every subsystem constructs errors through this package rather than bare
// fmt.Errorf so that compile diagnostics and runtime errors surfaced back
// into Concerto code share one shape: {kind, message, source?, code?, details?}.
package errs

import "fmt"

// Kind classifies a ConcertoError along the taxonomy in spec §7.
type Kind string

const (
	// Compile errors.
	KindLex              Kind = "LexError"
	KindParse            Kind = "ParseError"
	KindName             Kind = "NameError"
	KindType             Kind = "TypeError"
	KindArity            Kind = "ArityError"
	KindCast             Kind = "CastError"
	KindNonExhaustive    Kind = "NonExhaustiveMatch"
	KindUnresolvedModule Kind = "UnresolvedModule"

	// Runtime errors.
	KindRuntimeType    Kind = "TypeError"
	KindRuntimeName    Kind = "NameError"
	KindIndexOOB       Kind = "IndexOutOfBounds"
	KindDivideByZero   Kind = "DivideByZero"
	KindCastFailure    Kind = "CastFailure"
	KindSchemaMismatch Kind = "SchemaMismatch"
	KindContractFailed Kind = "ContractFailure"

	// I/O errors.
	KindFile Kind = "FileError"
	KindHTTP Kind = "HttpError"
	KindJSON Kind = "JsonError"

	// Agent errors.
	KindModel Kind = "ModelError"

	// Host errors.
	KindSpawn          Kind = "SpawnError"
	KindTimeout        Kind = "TimeoutError"
	KindProtocol       Kind = "ProtocolError"
	KindListenSchema   Kind = "ListenSchemaError"
	KindHostExited     Kind = "HostExited"
	KindPanic          Kind = "Panic"
)

// ConcertoError is the uniform error shape exposed to Concerto code and
// used internally for diagnostics. It implements error and Unwrap so Go
// call sites can still use errors.Is/As against the wrapped Source.
type ConcertoError struct {
	Kind    Kind
	Message string
	Code    string
	Source  error
	Details map[string]any

	// Span locates the error in source text, when known (compile errors,
	// and runtime errors that can be attributed back to a call site).
	Span *Span
}

// Span mirrors lexer/parser SourceSpan without importing internal/token,
// keeping this package dependency-free (leaf of the dependency graph).
type Span struct {
	File  string
	Start int
	End   int
	Line  int
	Col   int
}

func (e *ConcertoError) Error() string {
	if e.Span != nil {
		return fmt.Sprintf("%s: %s (%s:%d:%d)", e.Kind, e.Message, e.Span.File, e.Span.Line, e.Span.Col)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ConcertoError) Unwrap() error { return e.Source }

// New builds a bare ConcertoError of the given kind.
func New(kind Kind, format string, args ...any) *ConcertoError {
	return &ConcertoError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a ConcertoError that wraps an underlying Go error as Source.
func Wrap(kind Kind, src error, format string, args ...any) *ConcertoError {
	return &ConcertoError{Kind: kind, Message: fmt.Sprintf(format, args...), Source: src}
}

// WithSpan attaches a source span and returns the same error for chaining.
func (e *ConcertoError) WithSpan(s Span) *ConcertoError {
	e.Span = &s
	return e
}

// WithDetail attaches a single detail key/value and returns the same error.
func (e *ConcertoError) WithDetail(key string, value any) *ConcertoError {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

// WithCode attaches a machine-readable code and returns the same error.
func (e *ConcertoError) WithCode(code string) *ConcertoError {
	e.Code = code
	return e
}

// Message returns e.Message if e is a *ConcertoError, or err.Error()
// otherwise. This is the adapter mentioned in spec §7: "Adapter code at
// the error-surface converts bare strings" so `.message` is always
// accessible regardless of whether the source error was a String or a
// typed error.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if ce, ok := err.(*ConcertoError); ok {
		return ce.Message
	}
	return err.Error()
}

// Batch collects multiple compile errors (spec §7: "compile errors batch
// per file and are all reported").
type Batch struct {
	Errors []*ConcertoError
}

func (b *Batch) Add(e *ConcertoError) {
	b.Errors = append(b.Errors, e)
}

// HasErrors reports whether the batch holds any entry that is not a
// warning (an entry whose "severity" detail is "warning").
func (b *Batch) HasErrors() bool {
	for _, e := range b.Errors {
		if sev, _ := e.Details["severity"].(string); sev != "warning" {
			return true
		}
	}
	return false
}

func (b *Batch) Error() string {
	if len(b.Errors) == 0 {
		return "no errors"
	}
	msg := fmt.Sprintf("%d compile error(s):", len(b.Errors))
	for _, e := range b.Errors {
		msg += "\n  " + e.Error()
	}
	return msg
}
