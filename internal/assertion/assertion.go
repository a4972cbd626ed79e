package assertion

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/promptsentinel/sentinel/internal/snapshot"
)

// Verdict is the outcome of one assertion check.
type Verdict struct {
	Label  string `json:"label"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// Context carries everything an assertion can inspect: the provider's
// response text, the measured latency, and the snapshot store scoped to
// this case's key.
type Context struct {
	Response        string
	Latency         time.Duration
	Key             snapshot.Key
	Snapshots       snapshot.Store
	UpdateSnapshots bool
}

// Evaluate checks one assertion against a response. It never panics on
// bad specs; an unusable spec (e.g. a regex that no longer compiles
// after templating) yields a failed verdict with a config-error detail.
// All kinds except snapshot are pure; snapshot may create a golden
// value on first sight.
func Evaluate(spec Spec, ectx Context) Verdict {
	switch spec.Kind {
	case KindContains:
		return evalContains(spec.Str, ectx.Response)
	case KindNotContains:
		return evalNotContains(spec.Str, ectx.Response)
	case KindLatencyMax:
		return evalLatencyMax(spec.Num, ectx.Latency)
	case KindMinLength:
		return evalMinLength(spec.Num, ectx.Response)
	case KindMaxLength:
		return evalMaxLength(spec.Num, ectx.Response)
	case KindRegex:
		return evalRegex(spec.Str, ectx.Response)
	case KindJSONValid:
		return evalJSONValid(ectx.Response)
	case KindSnapshot:
		return evalSnapshot(ectx)
	default:
		return Verdict{
			Label:  string(spec.Kind),
			Passed: false,
			Detail: fmt.Sprintf("config error: unknown assertion kind %q", spec.Kind),
		}
	}
}

// Contains and not-contains are case-insensitive, matching the behavior
// existing test files depend on.
func evalContains(expected, response string) Verdict {
	passed := strings.Contains(strings.ToLower(response), strings.ToLower(expected))
	detail := "found in output"
	if !passed {
		detail = "NOT found in output"
	}
	return Verdict{
		Label:  fmt.Sprintf("contains %q", expected),
		Passed: passed,
		Detail: detail,
	}
}

func evalNotContains(unexpected, response string) Verdict {
	passed := !strings.Contains(strings.ToLower(response), strings.ToLower(unexpected))
	detail := "correctly absent from output"
	if !passed {
		detail = "unexpectedly found in output"
	}
	return Verdict{
		Label:  fmt.Sprintf("not-contains %q", unexpected),
		Passed: passed,
		Detail: detail,
	}
}

func evalLatencyMax(maxMs uint64, latency time.Duration) Verdict {
	actual := latency.Milliseconds()
	return Verdict{
		Label:  fmt.Sprintf("latency_max %dms", maxMs),
		Passed: actual >= 0 && uint64(actual) <= maxMs,
		Detail: fmt.Sprintf("actual: %dms", actual),
	}
}

// Length checks count characters (runes) of the trimmed response.
func evalMinLength(min uint64, response string) Verdict {
	n := uint64(len([]rune(strings.TrimSpace(response))))
	return Verdict{
		Label:  fmt.Sprintf("min_length %d", min),
		Passed: n >= min,
		Detail: fmt.Sprintf("actual: %d chars", n),
	}
}

func evalMaxLength(max uint64, response string) Verdict {
	n := uint64(len([]rune(strings.TrimSpace(response))))
	return Verdict{
		Label:  fmt.Sprintf("max_length %d", max),
		Passed: n <= max,
		Detail: fmt.Sprintf("actual: %d chars", n),
	}
}

func evalRegex(pattern, response string) Verdict {
	label := fmt.Sprintf("regex /%s/", pattern)
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Verdict{
			Label:  label,
			Passed: false,
			Detail: fmt.Sprintf("config error: invalid pattern: %v", err),
		}
	}

	passed := re.MatchString(response)
	detail := "pattern matched"
	if !passed {
		detail = "pattern NOT matched"
	}
	return Verdict{Label: label, Passed: passed, Detail: detail}
}

func evalJSONValid(response string) Verdict {
	var v any
	passed := json.Unmarshal([]byte(strings.TrimSpace(response)), &v) == nil
	detail := "output is valid JSON"
	if !passed {
		detail = "output is NOT valid JSON"
	}
	return Verdict{Label: "json_valid", Passed: passed, Detail: detail}
}
