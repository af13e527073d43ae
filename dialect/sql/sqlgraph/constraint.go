package sqlgraph

import (
	"errors"
	"strings"

	sqlite3 "modernc.org/sqlite/lib"
)

// ConstraintKind is the kind of a violated constraint.
type ConstraintKind uint8

// Constraint kinds.
const (
	CheckConstraint ConstraintKind = iota + 1
	ForeignKeyConstraint
	NotNullConstraint
	PrimaryKeyConstraint
	UniqueConstraint
)

var kindNames = [...]string{
	CheckConstraint:      "CHECK",
	ForeignKeyConstraint: "FOREIGN KEY",
	NotNullConstraint:    "NOT NULL",
	PrimaryKeyConstraint: "PRIMARY KEY",
	UniqueConstraint:     "UNIQUE",
}

// String returns the SQL name of the constraint kind.
func (k ConstraintKind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "unknown"
}

// ConstraintError is returned by statements failing on a database
// constraint.
type ConstraintError struct {
	Kind ConstraintKind
	msg  string
	wrap error
}

// Error implements the error interface.
func (e *ConstraintError) Error() string {
	return "strata: " + e.Kind.String() + " constraint failed: " + e.msg
}

// Unwrap implements the errors.Wrapper interface.
func (e *ConstraintError) Unwrap() error {
	return e.wrap
}

// WrapConstraint returns err wrapped in a *ConstraintError if it reports a
// constraint violation, and err unchanged otherwise.
func WrapConstraint(err error) error {
	if err == nil {
		return nil
	}
	var ce *ConstraintError
	if errors.As(err, &ce) {
		return err
	}
	kind, ok := classify(err)
	if !ok {
		return err
	}
	return &ConstraintError{Kind: kind, msg: err.Error(), wrap: err}
}

// IsConstraintError returns true if the error resulted from a database constraint violation.
func IsConstraintError(err error) bool {
	_, ok := kindOf(err)
	return ok
}

// IsUniqueConstraintError reports if the error resulted from a DB uniqueness
// constraint violation, primary keys included.
func IsUniqueConstraintError(err error) bool {
	k, ok := kindOf(err)
	return ok && (k == UniqueConstraint || k == PrimaryKeyConstraint)
}

// IsForeignKeyConstraintError reports if the error resulted from a database foreign-key constraint violation.
func IsForeignKeyConstraintError(err error) bool {
	k, ok := kindOf(err)
	return ok && k == ForeignKeyConstraint
}

// IsNotNullConstraintError reports if the error resulted from a NULL stored in a NOT NULL column.
func IsNotNullConstraintError(err error) bool {
	k, ok := kindOf(err)
	return ok && k == NotNullConstraint
}

// IsCheckConstraintError reports if the error resulted from a database check constraint violation.
func IsCheckConstraintError(err error) bool {
	k, ok := kindOf(err)
	return ok && k == CheckConstraint
}

func kindOf(err error) (ConstraintKind, bool) {
	if err == nil {
		return 0, false
	}
	var ce *ConstraintError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return classify(err)
}

// coder is implemented by the errors of modernc.org/sqlite. Codes are
// extended result codes.
type coder interface {
	Code() int
}

var kindCodes = map[int]ConstraintKind{
	sqlite3.SQLITE_CONSTRAINT_CHECK:      CheckConstraint,
	sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY: ForeignKeyConstraint,
	sqlite3.SQLITE_CONSTRAINT_NOTNULL:    NotNullConstraint,
	sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY: PrimaryKeyConstraint,
	sqlite3.SQLITE_CONSTRAINT_UNIQUE:     UniqueConstraint,
}

// Messages of drivers without result codes.
var kindMessages = []struct {
	text string
	kind ConstraintKind
}{
	{"UNIQUE constraint failed", UniqueConstraint},
	{"FOREIGN KEY constraint failed", ForeignKeyConstraint},
	{"NOT NULL constraint failed", NotNullConstraint},
	{"CHECK constraint failed", CheckConstraint},
}

func classify(err error) (ConstraintKind, bool) {
	if e, ok := asError[coder](err); ok {
		if k, ok := kindCodes[e.Code()]; ok {
			return k, true
		}
	}
	return classifyMessage(err.Error())
}

func classifyMessage(msg string) (ConstraintKind, bool) {
	for _, m := range kindMessages {
		if strings.Contains(msg, m.text) {
			return m.kind, true
		}
	}
	return 0, false
}

// asError attempts to extract an error implementing interface T from the error chain.
func asError[T any](err error) (T, bool) {
	var target T
	for err != nil {
		if e, ok := err.(T); ok {
			return e, true
		}
		err = errors.Unwrap(err)
	}
	return target, false
}
