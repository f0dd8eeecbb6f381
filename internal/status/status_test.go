package status_test

import (
	"testing"

	"field-ticket-service/internal/status"
)

func TestStyleForKnownStatusesAreDistinct(t *testing.T) {
	seenLabels := map[string]bool{}
	seenColors := map[string]bool{}
	for _, s := range status.All {
		style := status.StyleFor(string(s))
		if style == status.FallbackStyle {
			t.Fatalf("status %q resolved to fallback style", s)
		}
		if seenLabels[style.Label] {
			t.Fatalf("duplicate label %q", style.Label)
		}
		if seenColors[style.ColorClasses] {
			t.Fatalf("duplicate color classes %q", style.ColorClasses)
		}
		seenLabels[style.Label] = true
		seenColors[style.ColorClasses] = true

		if again := status.StyleFor(string(s)); again != style {
			t.Fatalf("style for %q is not stable: %+v vs %+v", s, style, again)
		}
	}
}

func TestStyleForUnknownReturnsFallback(t *testing.T) {
	for _, raw := range []string{"", "Archived", "open!!", "\x00", "Closed but not really"} {
		if got := status.StyleFor(raw); got != status.FallbackStyle {
			t.Fatalf("StyleFor(%q) = %+v, want fallback", raw, got)
		}
	}
}

func TestParseAcceptsSlugsAndCasing(t *testing.T) {
	cases := map[string]status.Status{
		"Need to Receive": status.NeedToReceive,
		"need_to_receive": status.NeedToReceive,
		"IN PROGRESS":     status.InProgress,
		"in-progress":     status.InProgress,
		" closed ":        status.Closed,
	}
	for raw, want := range cases {
		got, err := status.Parse(raw)
		if err != nil {
			t.Fatalf("Parse(%q): %v", raw, err)
		}
		if got != want {
			t.Fatalf("Parse(%q) = %q, want %q", raw, got, want)
		}
	}
	if _, err := status.Parse("resolved"); err == nil {
		t.Fatalf("expected unknown status to be rejected")
	}
}

func TestActiveExcludesOnlyClosed(t *testing.T) {
	active := status.ActiveValues()
	if len(active) != 4 {
		t.Fatalf("expected 4 active statuses got %d", len(active))
	}
	for _, s := range active {
		if s == status.Closed {
			t.Fatalf("closed must not be active")
		}
	}
}

func TestCountsActiveEqualsTotalMinusClosed(t *testing.T) {
	sets := []map[string]int64{
		{},
		{"Open": 3},
		{"Closed": 7},
		{"Open": 1, "Need to Receive": 2, "In Progress": 3, "Finish": 4, "Closed": 5},
		{"in_progress": 10, "closed": 1, "finish": 0},
	}
	for i, set := range sets {
		counts := status.Counts{}
		for raw, n := range set {
			if err := counts.Add(raw, n); err != nil {
				t.Fatalf("set %d: add %q: %v", i, raw, err)
			}
		}
		if got, want := counts.Active(), counts.Total()-counts[status.Closed]; got != want {
			t.Fatalf("set %d: active %d want %d", i, got, want)
		}
	}

	counts := status.Counts{}
	if err := counts.Add("Archived", 4); err == nil {
		t.Fatalf("expected unknown status to be rejected by Counts.Add")
	}
	if counts.Total() != 0 {
		t.Fatalf("rejected status must not be tallied")
	}
}

func TestPriorityVocabulary(t *testing.T) {
	if _, err := status.ParsePriority("HIGH"); err != nil {
		t.Fatalf("ParsePriority(HIGH): %v", err)
	}
	if _, err := status.ParsePriority("urgent"); err == nil {
		t.Fatalf("expected unknown priority to be rejected")
	}
	if status.PriorityStyleFor("urgent") != status.FallbackStyle {
		t.Fatalf("expected fallback style for unknown priority")
	}
}
