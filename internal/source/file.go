package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/agis/avail/internal/contract"
)

// FileSource reads events from a JSON document, either a file path or "-"
// for stdin. Agents that already hold calendar data can pipe it in without
// any Google credentials. The document is either a bare event array or an
// object with "calendars" and "events" keys.
type FileSource struct {
	Path  string
	Loc   *time.Location
	Stdin io.Reader

	doc    *fileDocument
	docErr error
}

type fileDocument struct {
	Calendars []contract.Calendar `json:"calendars"`
	Events    []contract.Event    `json:"events"`
}

func NewFileSource(path string, loc *time.Location) *FileSource {
	return &FileSource{Path: path, Loc: loc}
}

func (s *FileSource) load() (*fileDocument, error) {
	if s.doc != nil || s.docErr != nil {
		return s.doc, s.docErr
	}
	var raw []byte
	var err error
	if s.Path == "-" {
		in := s.Stdin
		if in == nil {
			in = os.Stdin
		}
		raw, err = io.ReadAll(in)
	} else {
		raw, err = os.ReadFile(s.Path)
	}
	if err != nil {
		s.docErr = fmt.Errorf("read events file: %w", err)
		return nil, s.docErr
	}

	doc := &fileDocument{}
	if err := json.Unmarshal(raw, doc); err != nil {
		var events []contract.Event
		if arrErr := json.Unmarshal(raw, &events); arrErr != nil {
			s.docErr = fmt.Errorf("parse events file %s: %w", s.Path, err)
			return nil, s.docErr
		}
		doc.Events = events
	}
	s.doc = doc
	return doc, nil
}

func (s *FileSource) Doctor(ctx context.Context) ([]contract.SourceCheck, error) {
	doc, err := s.load()
	if err != nil {
		return []contract.SourceCheck{{Name: "events file", Status: "fail", Message: err.Error()}}, nil
	}
	return []contract.SourceCheck{{
		Name:    "events file",
		Status:  "ok",
		Message: fmt.Sprintf("%d events, %d calendars", len(doc.Events), len(doc.Calendars)),
	}}, nil
}

func (s *FileSource) ListCalendars(ctx context.Context) ([]contract.Calendar, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	if len(doc.Calendars) > 0 {
		return doc.Calendars, nil
	}
	// Derive calendars from the events when the document carries none.
	seen := map[string]bool{}
	var cals []contract.Calendar
	for _, ev := range doc.Events {
		id := ev.CalendarID
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		cals = append(cals, contract.Calendar{ID: id, Summary: id})
	}
	sort.Slice(cals, func(i, j int) bool { return cals[i].ID < cals[j].ID })
	return cals, nil
}

func (s *FileSource) ListEvents(ctx context.Context, f Filter) ([]contract.Event, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	events := doc.Events
	if !f.From.IsZero() && !f.To.IsZero() {
		events = ExpandRecurring(events, f.From, f.To, s.Loc)
	}
	var out []contract.Event
	for _, ev := range events {
		if matchesFilter(ev, f, s.Loc) {
			out = append(out, ev)
		}
	}
	sortEventsByStart(out, s.Loc)
	return applyLimit(out, f.Limit), nil
}

func sortEventsByStart(events []contract.Event, loc *time.Location) {
	sort.SliceStable(events, func(i, j int) bool {
		a, errA := events[i].Start.Resolve(loc)
		b, errB := events[j].Start.Resolve(loc)
		if errA != nil || errB != nil {
			return errB != nil && errA == nil
		}
		return a.At.Before(b.At)
	})
}
