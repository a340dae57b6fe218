package source

import (
	"testing"
	"time"

	"github.com/agis/avail/internal/contract"
)

func recurringEvent(rules ...string) contract.Event {
	return contract.Event{
		ID:         "standup",
		Summary:    "Daily standup",
		Start:      contract.NewDateTime(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)),
		End:        contract.NewDateTime(time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)),
		Recurrence: rules,
	}
}

func TestExpandRecurringWeeklyRule(t *testing.T) {
	events := []contract.Event{recurringEvent("RRULE:FREQ=WEEKLY;BYDAY=MO")}
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)

	out := ExpandRecurring(events, from, to, time.UTC)
	if len(out) != 5 {
		t.Fatalf("occurrence count mismatch: got=%d want=5", len(out))
	}
	first, err := out[0].Start.Resolve(time.UTC)
	if err != nil {
		t.Fatalf("resolve first occurrence: %v", err)
	}
	want := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	if !first.At.Equal(want) {
		t.Fatalf("first occurrence mismatch: got=%v want=%v", first.At, want)
	}
	end, err := out[0].End.Resolve(time.UTC)
	if err != nil {
		t.Fatalf("resolve first end: %v", err)
	}
	if got := end.At.Sub(first.At); got != 30*time.Minute {
		t.Fatalf("occurrence duration mismatch: got=%v want=30m", got)
	}
	if out[0].Recurrence != nil {
		t.Fatalf("expanded occurrence should not carry recurrence rules")
	}
}

func TestExpandRecurringHonorsExDate(t *testing.T) {
	events := []contract.Event{recurringEvent(
		"RRULE:FREQ=WEEKLY;BYDAY=MO",
		"EXDATE:20260309T100000Z",
	)}
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)

	out := ExpandRecurring(events, from, to, time.UTC)
	if len(out) != 4 {
		t.Fatalf("occurrence count mismatch: got=%d want=4", len(out))
	}
	for _, ev := range out {
		start, err := ev.Start.Resolve(time.UTC)
		if err != nil {
			t.Fatalf("resolve occurrence: %v", err)
		}
		if start.At.Day() == 9 {
			t.Fatalf("excluded occurrence still present: %v", start.At)
		}
	}
}

func TestExpandRecurringPassesThroughPlainEvents(t *testing.T) {
	plain := contract.Event{
		ID:    "one-off",
		Start: contract.NewDateTime(time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)),
		End:   contract.NewDateTime(time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)),
	}
	out := ExpandRecurring([]contract.Event{plain},
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), time.UTC)
	if len(out) != 1 || out[0].ID != "one-off" {
		t.Fatalf("plain event should pass through unchanged: %+v", out)
	}
}

func TestExpandRecurringKeepsEventWithBadRule(t *testing.T) {
	events := []contract.Event{recurringEvent("RRULE:NOT-A-RULE")}
	out := ExpandRecurring(events,
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), time.UTC)
	if len(out) != 1 || len(out[0].Recurrence) == 0 {
		t.Fatalf("unparsable rule should keep the original event: %+v", out)
	}
}
