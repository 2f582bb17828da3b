package status

import "testing"

func TestNormalizeCompletedVocabulary(t *testing.T) {
	for _, raw := range []string{"completed", "success", "succeeded", "finished", "SUCCEEDED", " Finished "} {
		for _, hasMedia := range []bool{true, false} {
			if got := Normalize(raw, hasMedia); got != Completed {
				t.Fatalf("Normalize(%q, %v) = %q, want completed", raw, hasMedia, got)
			}
		}
	}
}

func TestNormalizeFailedVocabulary(t *testing.T) {
	words := []string{
		"failed", "error", "errored", "cancelled", "canceled", "aborted",
		"timeout", "timed_out", "not_found", "missing", "expired", "unknown",
	}
	for _, raw := range words {
		if got := Normalize(raw, false); got != Failed {
			t.Fatalf("Normalize(%q, false) = %q, want failed", raw, got)
		}
	}
}

func TestNormalizeMediaOutranksFailedStatus(t *testing.T) {
	// The artifact wins over the status word, including explicit failure
	// words. These cases pin the precedence order of the media override.
	for _, raw := range []string{
		"failed", "error", "errored", "cancelled", "canceled", "aborted",
		"timeout", "timed_out", "not_found", "missing", "expired", "unknown",
	} {
		if got := Normalize(raw, true); got != Completed {
			t.Fatalf("Normalize(%q, media) = %q, want completed", raw, got)
		}
	}
	if got := Normalize("some_new_vocab", true); got != Completed {
		t.Fatalf("Normalize(unrecognized, media) = %q, want completed", got)
	}
	if got := Normalize("running", true); got != Completed {
		t.Fatalf("Normalize(running, media) = %q, want completed", got)
	}
}

func TestNormalizeAbsentStatus(t *testing.T) {
	if got := Normalize("", false); got != Undefined {
		t.Fatalf("Normalize(absent, no media) = %q, want undefined", got)
	}
	if got := Normalize("", true); got != Completed {
		t.Fatalf("Normalize(absent, media) = %q, want completed", got)
	}
}

func TestNormalizePendingAndUnrecognized(t *testing.T) {
	for _, raw := range []string{"pending", "running", "queued", "processing", "in_progress", "created", "waiting"} {
		if got := Normalize(raw, false); got != Pending {
			t.Fatalf("Normalize(%q, false) = %q, want pending", raw, got)
		}
	}
	// Unrecognized without media falls into pending, never failed.
	if got := Normalize("warming_up_gpus", false); got != Pending {
		t.Fatalf("Normalize(unrecognized, false) = %q, want pending", got)
	}
}

func f64(v float64) *float64 { return &v }

func TestNormalizeProgressClamping(t *testing.T) {
	if got := NormalizeProgress(f64(150), Pending, false); got == nil || *got != 100 {
		t.Fatalf("NormalizeProgress(150) = %v, want 100", got)
	}
	if got := NormalizeProgress(f64(42.4), Pending, false); got == nil || *got != 42 {
		t.Fatalf("NormalizeProgress(42.4) = %v, want 42", got)
	}
	if got := NormalizeProgress(f64(99.5), Pending, false); got == nil || *got != 100 {
		t.Fatalf("NormalizeProgress(99.5) = %v, want 100", got)
	}
}

func TestNormalizeProgressNegativeNeverLeaks(t *testing.T) {
	if got := NormalizeProgress(f64(-5), Pending, false); got != nil {
		t.Fatalf("NormalizeProgress(-5, pending) = %v, want nil", got)
	}
	if got := NormalizeProgress(f64(-5), Completed, true); got == nil || *got != 100 {
		t.Fatalf("NormalizeProgress(-5, completed+media) = %v, want 100", got)
	}
}

func TestNormalizeProgressAbsent(t *testing.T) {
	if got := NormalizeProgress(nil, Pending, false); got != nil {
		t.Fatalf("NormalizeProgress(nil, pending) = %v, want nil", got)
	}
	if got := NormalizeProgress(nil, Completed, true); got == nil || *got != 100 {
		t.Fatalf("NormalizeProgress(nil, completed+media) = %v, want 100", got)
	}
	if got := NormalizeProgress(nil, Completed, false); got != nil {
		t.Fatalf("NormalizeProgress(nil, completed, no media) = %v, want nil", got)
	}
}

func TestNormalizeMessage(t *testing.T) {
	if got := NormalizeMessage("  render queued  "); got == nil || *got != "render queued" {
		t.Fatalf("NormalizeMessage trimmed = %v", got)
	}
	if got := NormalizeMessage("   "); got != nil {
		t.Fatalf("NormalizeMessage(blank) = %v, want nil", got)
	}
	if got := NormalizeMessage(""); got != nil {
		t.Fatalf("NormalizeMessage(empty) = %v, want nil", got)
	}
}
