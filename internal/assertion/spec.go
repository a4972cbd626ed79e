package assertion

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// Kind identifies an assertion type.
type Kind string

const (
	KindContains    Kind = "contains"
	KindNotContains Kind = "not-contains"
	KindLatencyMax  Kind = "latency_max"
	KindSnapshot    Kind = "snapshot"
	KindRegex       Kind = "regex"
	KindJSONValid   Kind = "json_valid"
	KindMinLength   Kind = "min_length"
	KindMaxLength   Kind = "max_length"
)

// Spec is a parsed, strongly typed assertion. Str holds the value for
// string-valued kinds, Num for numeric ones.
type Spec struct {
	Kind Kind
	Str  string
	Num  uint64
}

// ParseSpec converts a raw (kind, value) pair from the test file into a
// typed Spec. Values arrive as whatever YAML produced: string, int, or
// float64.
func ParseSpec(kind string, value any) (Spec, error) {
	switch Kind(strings.TrimSpace(kind)) {
	case KindContains:
		s, err := stringValue(kind, value)
		return Spec{Kind: KindContains, Str: s}, err
	case KindNotContains:
		s, err := stringValue(kind, value)
		return Spec{Kind: KindNotContains, Str: s}, err
	case KindLatencyMax:
		n, err := numberValue(kind, value)
		return Spec{Kind: KindLatencyMax, Num: n}, err
	case KindSnapshot:
		return Spec{Kind: KindSnapshot}, nil
	case KindRegex:
		s, err := stringValue(kind, value)
		if err != nil {
			return Spec{}, err
		}
		if _, err := regexp.Compile(s); err != nil {
			return Spec{}, fmt.Errorf("invalid regex %q: %v", s, err)
		}
		return Spec{Kind: KindRegex, Str: s}, nil
	case KindJSONValid:
		return Spec{Kind: KindJSONValid}, nil
	case KindMinLength:
		n, err := numberValue(kind, value)
		return Spec{Kind: KindMinLength, Num: n}, err
	case KindMaxLength:
		n, err := numberValue(kind, value)
		return Spec{Kind: KindMaxLength, Num: n}, err
	default:
		return Spec{}, fmt.Errorf("unknown assertion type %q", kind)
	}
}

func stringValue(kind string, value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("%s value must be a string", kind)
	}
	return s, nil
}

func numberValue(kind string, value any) (uint64, error) {
	switch n := value.(type) {
	case int:
		if n < 0 {
			return 0, fmt.Errorf("%s value must be non-negative", kind)
		}
		return uint64(n), nil
	case int64:
		if n < 0 {
			return 0, fmt.Errorf("%s value must be non-negative", kind)
		}
		return uint64(n), nil
	case uint64:
		return n, nil
	case float64:
		if n < 0 || math.Trunc(n) != n {
			return 0, fmt.Errorf("%s value must be a non-negative integer", kind)
		}
		return uint64(n), nil
	case string:
		return 0, fmt.Errorf("%s value must be a number, got %q", kind, n)
	default:
		return 0, fmt.Errorf("%s value must be a number, got %T", kind, value)
	}
}
