package strata

import (
	"errors"
	"fmt"
	"strings"
)

// Failure classes. Every error of a class matches its sentinel with
// errors.Is.
var (
	// ErrConfig marks declarations the graph cannot be built from. They
	// are found once, by graph.Build, and abort it.
	ErrConfig      = errors.New("strata: invalid configuration")
	ErrQuery       = errors.New("strata: invalid query")
	ErrMaterialize = errors.New("strata: materialization failed")
	// ErrFramework marks interrupted internal waits. They are never retried.
	ErrFramework = errors.New("strata: framework failure")

	ErrNotFound    = errors.New("strata: entity not found")
	ErrNotSingular = errors.New("strata: entity not singular")
)

// is reports whether err holds a *T in its chain.
func is[T error](err error) bool {
	var target T
	return err != nil && errors.As(err, &target)
}

// ConfigError is a missing or contradictory declaration, an unresolvable
// reference or a name collision.
type ConfigError struct {
	Entity  string
	Column  string // column or property, when the error concerns one
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	parts := []string{"strata: config"}
	if e.Entity != "" {
		parts = append(parts, "entity "+e.Entity)
	}
	if e.Column != "" {
		parts = append(parts, e.Column)
	}
	parts = append(parts, e.Message)
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfig }
func (e *ConfigError) Unwrap() error        { return e.Cause }

// NewConfigError reports a problem of an entity as a whole.
func NewConfigError(entity, format string, args ...any) *ConfigError {
	return &ConfigError{Entity: entity, Message: fmt.Sprintf(format, args...)}
}

// NewColumnConfigError reports a problem of one column or property.
func NewColumnConfigError(entity, column, format string, args ...any) *ConfigError {
	return &ConfigError{Entity: entity, Column: column, Message: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err is a configuration error.
func IsConfigError(err error) bool { return is[*ConfigError](err) || errors.Is(err, ErrConfig) }

// QueryError is a query the compiler rejects or the database fails.
type QueryError struct {
	Entity string // selected entity, if known
	Op     string // compile, exec, ...
	Err    error
}

func (e *QueryError) Error() string {
	if e.Entity == "" {
		return fmt.Sprintf("strata: query (%s): %v", e.Op, e.Err)
	}
	if e.Op == "" {
		return fmt.Sprintf("strata: querying %s: %v", e.Entity, e.Err)
	}
	return fmt.Sprintf("strata: querying %s (%s): %v", e.Entity, e.Op, e.Err)
}

func (e *QueryError) Is(target error) bool { return target == ErrQuery }
func (e *QueryError) Unwrap() error        { return e.Err }

func NewQueryError(entity, op string, err error) *QueryError {
	return &QueryError{Entity: entity, Op: op, Err: err}
}

func IsQueryError(err error) bool { return is[*QueryError](err) }

// MaterializeError is a row that cannot become an object. It fails the
// whole result set.
type MaterializeError struct {
	Entity string
	Field  string // field or relation, if any
	Err    error
}

func (e *MaterializeError) Error() string {
	at := e.Entity
	if e.Field != "" {
		at += "." + e.Field
	}
	return fmt.Sprintf("strata: materialize %s: %v", at, e.Err)
}

func (e *MaterializeError) Is(target error) bool { return target == ErrMaterialize }
func (e *MaterializeError) Unwrap() error        { return e.Err }

func NewMaterializeError(entity, field string, err error) *MaterializeError {
	return &MaterializeError{Entity: entity, Field: field, Err: err}
}

func IsMaterializeError(err error) bool { return is[*MaterializeError](err) }

// FrameworkError is an internal wait interrupted, typically by a
// cancelled context during schema resolution.
type FrameworkError struct {
	Op  string
	Err error
}

func (e *FrameworkError) Error() string {
	return fmt.Sprintf("strata: %s interrupted: %v", e.Op, e.Err)
}

func (e *FrameworkError) Is(target error) bool { return target == ErrFramework }
func (e *FrameworkError) Unwrap() error        { return e.Err }

func NewFrameworkError(op string, err error) *FrameworkError {
	return &FrameworkError{Op: op, Err: err}
}

func IsFrameworkError(err error) bool { return is[*FrameworkError](err) }

// NotFoundError is returned by lookups that match no row.
type NotFoundError struct{ label string }

func NewNotFoundError(label string) *NotFoundError { return &NotFoundError{label: label} }

func (e *NotFoundError) Error() string        { return "strata: " + e.label + " not found" }
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
func (e *NotFoundError) Label() string        { return e.label }
func IsNotFound(err error) bool               { return is[*NotFoundError](err) || errors.Is(err, ErrNotFound) }

// NotSingularError is returned by lookups expecting one row that match
// several.
type NotSingularError struct {
	label string
	count int // -1 when unknown
}

func NewNotSingularError(label string) *NotSingularError {
	return &NotSingularError{label: label, count: -1}
}

func NewNotSingularErrorWithCount(label string, count int) *NotSingularError {
	return &NotSingularError{label: label, count: count}
}

func (e *NotSingularError) Error() string {
	msg := "strata: " + e.label + " not singular"
	if e.count >= 0 {
		msg += fmt.Sprintf(" (got %d results, expected 1)", e.count)
	}
	return msg
}

func (e *NotSingularError) Is(target error) bool { return target == ErrNotSingular }

// Count is the number of rows found, -1 when unknown.
func (e *NotSingularError) Count() int { return e.count }

func IsNotSingular(err error) bool {
	return is[*NotSingularError](err) || errors.Is(err, ErrNotSingular)
}

// NotLoadedError is a deferred collection read before a loader was bound.
type NotLoadedError struct{ name string }

func NewNotLoadedError(name string) *NotLoadedError { return &NotLoadedError{name: name} }

func (e *NotLoadedError) Error() string {
	return fmt.Sprintf("strata: collection %q has no loader bound", e.name)
}

func IsNotLoaded(err error) bool { return is[*NotLoadedError](err) }

// AggregateError carries every error of an operation that does not stop
// at the first one. errors.Is and errors.As see all of them.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "strata: no errors"
	case 1:
		return e.Errors[0].Error()
	}
	var b strings.Builder
	b.WriteString("strata: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&b, "\n  [%d] %v", i+1, err)
	}
	return b.String()
}

func (e *AggregateError) Unwrap() []error { return e.Errors }

// NewAggregateError drops the nil errors. It returns nil when none is
// left and the error itself when one is.
func NewAggregateError(errs ...error) error {
	var kept []error
	for _, err := range errs {
		if err != nil {
			kept = append(kept, err)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return &AggregateError{Errors: kept}
}
