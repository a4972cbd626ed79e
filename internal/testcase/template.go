package testcase

import "regexp"

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// Render substitutes {{var}} placeholders in tmpl from vars. Any
// placeholder without a binding fails with a *TemplateError naming the
// first missing variable; where describes the templated location for
// the error message.
func Render(tmpl string, vars map[string]string, where string) (string, error) {
	missing := ""
	out := placeholderPattern.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := placeholderPattern.FindStringSubmatch(m)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		if missing == "" {
			missing = name
		}
		return m
	})
	if missing != "" {
		return "", &TemplateError{Var: missing, Where: where}
	}
	return out, nil
}
