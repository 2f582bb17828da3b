// Package status maps the inconsistent status vocabularies of remote render
// providers onto the canonical three-state model used by reconciliation.
package status

import (
	"math"
	"strings"
)

// Canonical is the normalized lifecycle state. The zero value Undefined means
// "no decision": callers must leave the job's current status untouched.
type Canonical string

const (
	Undefined Canonical = ""
	Pending   Canonical = "pending"
	Completed Canonical = "completed"
	Failed    Canonical = "failed"
)

var completedWords = map[string]struct{}{
	"completed": {}, "success": {}, "succeeded": {}, "finished": {},
}

var failedWords = map[string]struct{}{
	"failed": {}, "error": {}, "errored": {}, "cancelled": {}, "canceled": {},
	"aborted": {}, "timeout": {}, "timed_out": {}, "not_found": {},
	"missing": {}, "expired": {}, "unknown": {},
}

var pendingWords = map[string]struct{}{
	"pending": {}, "running": {}, "queued": {}, "processing": {},
	"in_progress": {}, "created": {}, "waiting": {},
}

// Normalize classifies a raw provider status together with whether the
// provider delivered playable media.
//
// Media presence outranks the literal status word: any status accompanied by
// a playable artifact is treated as completed, even a failed-looking one.
// Providers disagree on status vocabulary but an artifact is an artifact, so
// the artifact wins. This precedence is intentional and pinned by tests.
func Normalize(raw string, hasMedia bool) Canonical {
	word := strings.ToLower(strings.TrimSpace(raw))
	if word == "" {
		if hasMedia {
			return Completed
		}
		return Undefined
	}
	_, isCompleted := completedWords[word]
	_, isFailed := failedWords[word]
	_, isPending := pendingWords[word]

	if isCompleted || hasMedia {
		return Completed
	}
	if isFailed {
		return Failed
	}
	if isPending || !hasMedia {
		return Pending
	}
	return Undefined
}

// NormalizeProgress returns a progress value in [0,100], or nil when the input
// gives no grounds to move progress; callers must never regress a stored
// progress on a nil return.
func NormalizeProgress(raw *float64, st Canonical, hasMedia bool) *int {
	if raw != nil && !math.IsNaN(*raw) && !math.IsInf(*raw, 0) && *raw > 0 {
		v := int(math.Round(*raw))
		if v > 100 {
			v = 100
		}
		return &v
	}
	if st == Completed && hasMedia {
		v := 100
		return &v
	}
	return nil
}

// NormalizeMessage trims the value and returns nil for anything empty.
func NormalizeMessage(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
