package app

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/agis/avail/internal/contract"
	"github.com/agis/avail/internal/source"
)

func TestSnapshotSaveAndReadBack(t *testing.T) {
	isolateHome(t)
	dbPath := filepath.Join(t.TempDir(), "snapshots.db")
	fb := &fakeEventSource{events: eventFixtures()}
	origFactory := sourceFactory
	sourceFactory = func(*globalOptions, *time.Location) (source.Source, error) { return fb, nil }

	stdout, err := runCommand(t, "snapshot", "save", "--from", "2026-03-01", "--to", "2026-03-31", "--snapshot-db", dbPath, "--tz", "UTC", "--json")
	if err != nil {
		t.Fatalf("snapshot save failed: %v", err)
	}
	var saved struct {
		Data source.SnapshotInfo `json:"data"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &saved); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if saved.Data.EventCount != 3 {
		t.Fatalf("expected 3 events stored, got %d", saved.Data.EventCount)
	}
	if saved.Data.ID == "" {
		t.Fatalf("expected snapshot id")
	}

	stdout, err = runCommand(t, "snapshot", "list", "--snapshot-db", dbPath, "--json")
	if err != nil {
		t.Fatalf("snapshot list failed: %v", err)
	}
	var listed struct {
		Data []source.SnapshotInfo `json:"data"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &listed); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(listed.Data) != 1 {
		t.Fatalf("expected one snapshot, got %d", len(listed.Data))
	}

	// Reading back goes through the real snapshot source, not the fake.
	sourceFactory = origFactory
	stdout, err = runCommand(t, "events", "list", "--source", "snapshot", "--snapshot-db", dbPath, "--from", "2026-03-01", "--to", "2026-03-31", "--tz", "UTC", "--json")
	sourceFactory = func(*globalOptions, *time.Location) (source.Source, error) { return fb, nil }
	t.Cleanup(func() { sourceFactory = origFactory })
	if err != nil {
		t.Fatalf("events list from snapshot failed: %v", err)
	}
	var events struct {
		Data []contract.Event `json:"data"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &events); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(events.Data) != 3 {
		t.Fatalf("expected 3 events from snapshot, got %d", len(events.Data))
	}
}

func TestSnapshotShowLatestAndPrune(t *testing.T) {
	isolateHome(t)
	dbPath := filepath.Join(t.TempDir(), "snapshots.db")
	fb := &fakeEventSource{events: eventFixtures()}
	origFactory := sourceFactory
	sourceFactory = func(*globalOptions, *time.Location) (source.Source, error) { return fb, nil }
	t.Cleanup(func() { sourceFactory = origFactory })

	for i := 0; i < 3; i++ {
		if _, err := runCommand(t, "snapshot", "save", "--from", "2026-03-01", "--to", "2026-03-31", "--snapshot-db", dbPath, "--tz", "UTC", "--json"); err != nil {
			t.Fatalf("snapshot save %d failed: %v", i, err)
		}
	}

	stdout, err := runCommand(t, "snapshot", "show", "--snapshot-db", dbPath, "--json")
	if err != nil {
		t.Fatalf("snapshot show failed: %v", err)
	}
	var shown struct {
		Data struct {
			Snapshot source.SnapshotInfo `json:"snapshot"`
			Events   []contract.Event    `json:"events"`
		} `json:"data"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &shown); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(shown.Data.Events) != 3 {
		t.Fatalf("expected 3 events in latest snapshot, got %d", len(shown.Data.Events))
	}

	stdout, err = runCommand(t, "snapshot", "prune", "--keep", "1", "--snapshot-db", dbPath, "--json")
	if err != nil {
		t.Fatalf("snapshot prune failed: %v", err)
	}
	var pruned struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &pruned); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if got := pruned.Data["removed"].(float64); got != 2 {
		t.Fatalf("expected 2 snapshots removed, got %v", got)
	}

	_, err = runCommand(t, "snapshot", "show", "missing-id", "--snapshot-db", dbPath, "--json")
	if got := ExitCode(err); got != 4 {
		t.Fatalf("expected exit code 4 for missing snapshot, got %d", got)
	}
}

func TestSnapshotSaveRefusesSnapshotSource(t *testing.T) {
	isolateHome(t)
	dbPath := filepath.Join(t.TempDir(), "snapshots.db")
	fb := &fakeEventSource{}
	origFactory := sourceFactory
	sourceFactory = func(*globalOptions, *time.Location) (source.Source, error) { return fb, nil }
	t.Cleanup(func() { sourceFactory = origFactory })

	_, err := runCommand(t, "snapshot", "save", "--source", "snapshot", "--snapshot-db", dbPath, "--json")
	if got := ExitCode(err); got != 2 {
		t.Fatalf("expected exit code 2, got %d", got)
	}
}
