package app

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/agis/avail/internal/source"
)

func TestHistoryRecordsAndClears(t *testing.T) {
	isolateHome(t)
	fb := &fakeEventSource{}
	origFactory := sourceFactory
	sourceFactory = func(*globalOptions, *time.Location) (source.Source, error) { return fb, nil }
	t.Cleanup(func() { sourceFactory = origFactory })

	if _, err := runCommand(t, "slots", "--day", "2026-03-02", "--tz", "UTC", "--json"); err != nil {
		t.Fatalf("slots failed: %v", err)
	}
	if _, err := runCommand(t, "days", "--from", "2026-03-02", "--days", "2", "--tz", "UTC", "--json"); err != nil {
		t.Fatalf("days failed: %v", err)
	}

	stdout, err := runCommand(t, "history", "list", "--json")
	if err != nil {
		t.Fatalf("history list failed: %v", err)
	}
	var got struct {
		Data []queryRecord  `json:"data"`
		Meta map[string]any `json:"meta"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(got.Data) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(got.Data))
	}
	if got.Data[0].Command != "slots" || got.Data[1].Command != "days" {
		t.Fatalf("unexpected order: %s, %s", got.Data[0].Command, got.Data[1].Command)
	}

	if _, err := runCommand(t, "history", "clear", "--json"); err != nil {
		t.Fatalf("history clear failed: %v", err)
	}
	stdout, err = runCommand(t, "history", "list", "--json")
	if err != nil {
		t.Fatalf("history list after clear failed: %v", err)
	}
	got.Data = nil
	if err := json.Unmarshal(stdout.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(got.Data) != 0 {
		t.Fatalf("expected empty history, got %d entries", len(got.Data))
	}
}

func TestHistoryPagination(t *testing.T) {
	isolateHome(t)
	for i := 0; i < 5; i++ {
		appendQueryRecord(queryRecord{At: time.Now().UTC(), Command: "slots", Params: map[string]any{"n": i}})
	}
	page, hasMore, err := readQueryHistoryPage(2, 0)
	if err != nil {
		t.Fatalf("page read failed: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(page))
	}
	if !hasMore {
		t.Fatalf("expected more entries to remain")
	}
	if page[1].Params["n"].(float64) != 4 {
		t.Fatalf("expected newest entry last in page, got %v", page[1].Params["n"])
	}

	page, hasMore, err = readQueryHistoryPage(2, 4)
	if err != nil {
		t.Fatalf("offset page read failed: %v", err)
	}
	if len(page) != 1 || hasMore {
		t.Fatalf("expected final single entry, got %d (more=%t)", len(page), hasMore)
	}
	if page[0].Params["n"].(float64) != 0 {
		t.Fatalf("expected oldest entry, got %v", page[0].Params["n"])
	}
}
