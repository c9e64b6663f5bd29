package combine

import "fmt"

// MalformedPathError reports a file under the input tree that does not match
// the <geography>/<measure>_<year>.<ext> template. It aborts the whole run:
// skipping an unparseable path would silently leave its years out of the
// combined output.
type MalformedPathError struct {
	Path   string
	Reason string
}

func (e *MalformedPathError) Error() string {
	return fmt.Sprintf("malformed input path %s: %s", e.Path, e.Reason)
}

// SchemaError reports an input file whose header violates the wide-format
// assumptions: exactly one non-digit-leading identifier column, and value
// columns named <date>_<aggregation> with an 8-digit date. It aborts the
// affected partition; columns are never dropped silently.
type SchemaError struct {
	Path   string
	Column string
	Reason string
}

func (e *SchemaError) Error() string {
	msg := e.Reason
	if e.Column != "" {
		msg = fmt.Sprintf("column %q: %s", e.Column, e.Reason)
	}
	if e.Path == "" {
		return "schema error: " + msg
	}
	return fmt.Sprintf("schema error in %s: %s", e.Path, msg)
}
