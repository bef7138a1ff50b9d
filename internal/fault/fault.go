// Package fault is the error model shared by the builder, the code generator,
// the runtime and the public entry points.
//
// Three kinds of failure exist:
//
//   - Misuse: the host program drove the builder or runtime incorrectly
//     (malformed tree, unbalanced scopes, swizzle on the wrong width). These
//     are raised with panic and stay fatal.
//   - Device: a native driver call failed. The error carries the native status
//     code and its symbolic name.
//   - Compile: the device compiler rejected generated source. The error
//     carries the complete build log.
//
// Internal code returns errors. Public entry points run through Guard, which
// normalizes whatever comes back into a *Error.
package fault

import (
	"errors"
	"fmt"
	"strings"
)

type Kind uint8

const (
	KindInternal Kind = iota
	KindMisuse
	KindDevice
	KindCompile
)

func (k Kind) String() string {
	switch k {
	case KindInternal:
		return "internal"
	case KindMisuse:
		return "misuse"
	case KindDevice:
		return "device"
	case KindCompile:
		return "compile"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

var (
	ErrNoPlatform = errors.New("no compute platform available")
	ErrClosed     = errors.New("context closed")
	ErrReleased   = errors.New("resource released")
)

// Error is the single error type that crosses the public boundary.
type Error struct {
	Kind   Kind
	Op     string
	Msg    string
	Code   int32
	Symbol string
	Log    string
	Err    error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Op)
	if e.Msg != "" {
		if sb.Len() > 0 {
			sb.WriteString(": ")
		}
		sb.WriteString(e.Msg)
	}
	if e.Symbol != "" {
		if sb.Len() > 0 {
			sb.WriteString(": ")
		}
		fmt.Fprintf(&sb, "%s (%d)", e.Symbol, e.Code)
	}
	if e.Err != nil {
		if sb.Len() > 0 {
			sb.WriteString(": ")
		}
		sb.WriteString(e.Err.Error())
	}
	if e.Log != "" && e.Err == nil {
		sb.WriteString("\nbuild log:\n")
		sb.WriteString(strings.TrimRight(e.Log, "\n"))
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind so callers can test
// errors.Is(err, &fault.Error{Kind: fault.KindCompile}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Msg == "" && t.Err == nil
}

func Misusef(op, format string, args ...any) *Error {
	return &Error{Kind: KindMisuse, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Assert panics with a misuse error when cond is false.
func Assert(cond bool, op, format string, args ...any) {
	if !cond {
		panic(Misusef(op, format, args...))
	}
}

// Device reports a failed native call.
func Device(op string, code int32, symbol string) *Error {
	return &Error{Kind: KindDevice, Op: op, Code: code, Symbol: symbol}
}

// Compile reports rejected kernel source together with the compiler's log.
func Compile(op, log string, code int32, symbol string) *Error {
	return &Error{Kind: KindCompile, Op: op, Msg: "program build failed", Code: code, Symbol: symbol, Log: log}
}

func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// As returns the outermost *Error in err's chain.
func As(err error) (*Error, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// KindOf reports the kind of the first *Error in the chain, or KindInternal.
func KindOf(err error) Kind {
	if fe, ok := As(err); ok {
		return fe.Kind
	}
	return KindInternal
}

// Normalize turns any error into a *Error, keeping the original chain.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}
	if fe, ok := err.(*Error); ok {
		return fe
	}
	out := &Error{Kind: KindInternal, Err: err}
	if inner, ok := As(err); ok {
		out.Kind = inner.Kind
		out.Code = inner.Code
		out.Log = inner.Log
	}
	return out
}

// Guard runs fn at a public entry point. Returned errors come back as *Error;
// a panic that is not a misuse error is converted into an internal error.
// Misuse panics propagate unchanged.
func Guard(fn func() error) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if fe, ok := r.(*Error); ok {
			if fe.Kind == KindMisuse {
				panic(fe)
			}
			err = fe
			return
		}
		if e, ok := r.(error); ok {
			err = &Error{Kind: KindInternal, Op: "recovered", Err: e}
			return
		}
		err = &Error{Kind: KindInternal, Op: "recovered", Msg: fmt.Sprint(r)}
	}()
	if fe := Normalize(fn()); fe != nil {
		return fe
	}
	return nil
}

// Recover converts a misuse panic into an error. Tests and tools that probe
// builder misuse use it; library entry points do not.
func Recover(fn func()) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if fe, ok := r.(*Error); ok {
			err = fe
			return
		}
		panic(r)
	}()
	fn()
	return nil
}
