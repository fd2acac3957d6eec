package matching

import (
	"fmt"

	"github.com/pkg/errors"
)

// MalformedField reports a field whose raw value could not be parsed into
// the type its normalizer expects (e.g. a non-numeric elevation). Normalize
// stops at the first such field and Score returns it as its error, with no
// Result.
type MalformedField struct {
	Field    string
	RawValue any
}

func (e *MalformedField) Error() string {
	return fmt.Sprintf("matching: malformed value for field %q: %v", e.Field, e.RawValue)
}

// invariant panics with a stack-bearing error. It signals a programmer
// error in the registry or aggregation logic, never a data problem, so the
// only correct response is to fix the code, not to make scoring more
// defensive.
func invariant(format string, args ...any) {
	panic(errors.Errorf("matching: internal invariant violated: "+format, args...))
}
