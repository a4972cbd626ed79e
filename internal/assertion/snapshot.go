package assertion

import (
	"fmt"
	"strings"
)

const snapshotLabel = "snapshot"

// evalSnapshot compares the response against the stored golden value
// for this case's key. A missing golden value passes and is captured;
// update mode overwrites unconditionally.
func evalSnapshot(ectx Context) Verdict {
	out := strings.TrimSpace(ectx.Response)

	if ectx.Snapshots == nil {
		return Verdict{
			Label:  snapshotLabel,
			Passed: false,
			Detail: "no snapshot store configured",
		}
	}

	if ectx.UpdateSnapshots {
		if err := ectx.Snapshots.Update(ectx.Key, out); err != nil {
			return Verdict{
				Label:  snapshotLabel,
				Passed: false,
				Detail: fmt.Sprintf("failed to write snapshot: %v", err),
			}
		}
		return Verdict{Label: snapshotLabel, Passed: true, Detail: "updated"}
	}

	existing, ok, err := ectx.Snapshots.Get(ectx.Key)
	if err != nil {
		return Verdict{
			Label:  snapshotLabel,
			Passed: false,
			Detail: fmt.Sprintf("failed to read snapshot: %v", err),
		}
	}

	if !ok {
		if err := ectx.Snapshots.Put(ectx.Key, out); err != nil {
			return Verdict{
				Label:  snapshotLabel,
				Passed: false,
				Detail: fmt.Sprintf("failed to write snapshot: %v", err),
			}
		}
		return Verdict{Label: snapshotLabel, Passed: true, Detail: "created (first run)"}
	}

	existing = strings.TrimSpace(existing)
	if out == existing {
		return Verdict{Label: snapshotLabel, Passed: true, Detail: "matches saved snapshot"}
	}

	return Verdict{
		Label:  snapshotLabel,
		Passed: false,
		Detail: fmt.Sprintf("differs from snapshot. %s. Run with --update-snapshots to accept.",
			diffSummary(existing, out)),
	}
}

// diffSummary pinpoints the first differing line between the stored
// golden value and the new output.
func diffSummary(expected, actual string) string {
	expLines := strings.Split(expected, "\n")
	actLines := strings.Split(actual, "\n")

	n := len(expLines)
	if len(actLines) < n {
		n = len(actLines)
	}
	for i := 0; i < n; i++ {
		if expLines[i] != actLines[i] {
			return fmt.Sprintf("First diff at line %d: expected '%s', got '%s'",
				i+1, truncate(expLines[i], 40), truncate(actLines[i], 40))
		}
	}

	if len(expLines) != len(actLines) {
		return fmt.Sprintf("Line count differs: snapshot has %d, output has %d",
			len(expLines), len(actLines))
	}
	return "Content differs"
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}
