package testcase

import "fmt"

// TemplateError reports a {{placeholder}} with no binding in the case's
// input. This is a hard error for the case: silently substituting an
// empty string would let a misconfigured dataset pass its tests.
type TemplateError struct {
	Var   string
	Where string // "prompt" or the assertion label it occurred in
}

func (e *TemplateError) Error() string {
	if e == nil {
		return "testcase: template error <nil>"
	}
	return fmt.Sprintf("testcase: unresolved template variable {{%s}} in %s", e.Var, e.Where)
}

// DataSourceError reports an unreadable or malformed bulk data source.
// It is fatal to the owning test definition, not to the run.
type DataSourceError struct {
	Path string
	Err  error
}

func (e *DataSourceError) Error() string {
	if e == nil {
		return "testcase: data source error <nil>"
	}
	return fmt.Sprintf("testcase: data source %q: %v", e.Path, e.Err)
}

func (e *DataSourceError) Unwrap() error {
	return e.Err
}
