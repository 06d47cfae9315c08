package esd

import (
	"errors"
	"fmt"

	"github.com/ezstate/esdc/script"
)

// ErrorKind classifies compile errors.
type ErrorKind string

const (
	// KindStructure marks an illegal construct, ordering or member.
	KindStructure ErrorKind = "structure"
	// KindValue marks a bad literal kind, range or argument count.
	KindValue ErrorKind = "value"
	// KindUnresolved marks an unknown command, test, state or constant.
	KindUnresolved ErrorKind = "unresolved"
	// KindImport marks a constants file that could not be loaded.
	KindImport ErrorKind = "import"
)

// Error is a compile error with a source position. Compilation stops at the
// first error in traversal order.
type Error struct {
	Kind ErrorKind
	Pos  script.Position
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d: %s", e.Pos.Line, e.Msg)
}

// Errorf builds a compile error of the given kind.
func Errorf(kind ErrorKind, pos script.Position, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is a compile error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == kind
}
