package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/agis/avail/internal/contract"
)

func TestSchemaVersionDefault(t *testing.T) {
	p := Printer{}
	if p.schemaVersion() != contract.SchemaVersion {
		t.Fatalf("expected default schema version %q", contract.SchemaVersion)
	}
}

func TestFlattenWithFields(t *testing.T) {
	s := contract.TimeSlot{
		StartISO: "2026-03-02T08:00:00Z",
		Display:  "8:00 AM",
	}
	got := flatten(s, []string{"start_iso", "display"})
	if got != "2026-03-02T08:00:00Z\t8:00 AM" {
		t.Fatalf("unexpected flatten result: %q", got)
	}
}

func TestSuccessJSONEnvelope(t *testing.T) {
	var buf bytes.Buffer
	p := Printer{Mode: ModeJSON, Command: "slots", Out: &buf}
	if err := p.Success([]string{"a"}, map[string]any{"count": 1}, nil); err != nil {
		t.Fatalf("success failed: %v", err)
	}
	var env contract.SuccessEnvelope
	if err := json.Unmarshal(buf.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if env.Command != "slots" || env.SchemaVersion != contract.SchemaVersion {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestErrorPlainHint(t *testing.T) {
	var buf bytes.Buffer
	p := Printer{Mode: ModePlain, Err: &buf}
	if err := p.Error(contract.ErrInvalidUsage, "bad flag", "use --day"); err != nil {
		t.Fatalf("error failed: %v", err)
	}
	if got := buf.String(); got != "error: bad flag\nhint: use --day\n" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestEffectiveSuccessModeNonTTY(t *testing.T) {
	var buf bytes.Buffer
	p := Printer{Mode: ModeAuto, Out: &buf}
	if got := p.EffectiveSuccessMode(); got != ModeJSON {
		t.Fatalf("piped auto mode should resolve to json, got %s", got)
	}
}
