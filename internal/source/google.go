package source

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/agis/avail/internal/contract"
)

// GoogleSource reads events from the Google Calendar API. The API expands
// recurring events for us (SingleEvents), so no local rrule work is needed
// on this path.
type GoogleSource struct {
	Loc *time.Location

	svc *calendar.Service
}

func NewGoogleSource(ctx context.Context, loc *time.Location) (*GoogleSource, error) {
	ts, err := tokenSource(ctx)
	if err != nil {
		return nil, err
	}
	client := oauth2.NewClient(ctx, ts)
	svc, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return &GoogleSource{Loc: loc, svc: svc}, nil
}

func (s *GoogleSource) Doctor(ctx context.Context) ([]contract.SourceCheck, error) {
	checks := []contract.SourceCheck{
		{Name: "stored token", Status: "ok", Message: "token file present"},
	}
	list, err := s.svc.CalendarList.List().MaxResults(1).Context(ctx).Do()
	if err != nil {
		checks = append(checks, contract.SourceCheck{
			Name: "calendar API", Status: "fail", Message: err.Error(),
		})
		return checks, nil
	}
	checks = append(checks, contract.SourceCheck{
		Name: "calendar API", Status: "ok",
		Message: fmt.Sprintf("reachable, %d calendar(s) visible", len(list.Items)),
	})
	return checks, nil
}

func (s *GoogleSource) ListCalendars(ctx context.Context) ([]contract.Calendar, error) {
	list, err := s.svc.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list calendars: %w", err)
	}
	cals := make([]contract.Calendar, 0, len(list.Items))
	for _, entry := range list.Items {
		cals = append(cals, contract.Calendar{
			ID:       entry.Id,
			Summary:  entry.Summary,
			TimeZone: entry.TimeZone,
			Primary:  entry.Primary,
		})
	}
	return cals, nil
}

func (s *GoogleSource) ListEvents(ctx context.Context, f Filter) ([]contract.Event, error) {
	calendars := f.Calendars
	if len(calendars) == 0 {
		calendars = []string{"primary"}
	}

	var out []contract.Event
	for _, calID := range calendars {
		call := s.svc.Events.List(calID).
			SingleEvents(true).
			OrderBy("startTime").
			Context(ctx)
		if !f.From.IsZero() {
			call = call.TimeMin(f.From.Format(time.RFC3339))
		}
		if !f.To.IsZero() {
			call = call.TimeMax(f.To.Format(time.RFC3339))
		}
		if f.Query != "" {
			call = call.Q(f.Query)
		}
		if f.Limit > 0 {
			call = call.MaxResults(int64(f.Limit))
		}
		events, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("list events for %s: %w", calID, err)
		}
		for _, item := range events.Items {
			out = append(out, toContractEvent(calID, item))
		}
	}
	sortEventsByStart(out, s.Loc)
	return applyLimit(out, f.Limit), nil
}

func toContractEvent(calendarID string, item *calendar.Event) contract.Event {
	ev := contract.Event{
		ID:          item.Id,
		CalendarID:  calendarID,
		Summary:     item.Summary,
		Description: item.Description,
		Location:    item.Location,
		Status:      item.Status,
		Recurrence:  item.Recurrence,
	}
	if item.Start != nil {
		ev.Start = contract.EventTime{
			DateTime: item.Start.DateTime,
			Date:     item.Start.Date,
			TimeZone: item.Start.TimeZone,
		}
	}
	if item.End != nil {
		ev.End = contract.EventTime{
			DateTime: item.End.DateTime,
			Date:     item.End.Date,
			TimeZone: item.End.TimeZone,
		}
	}
	if item.Updated != "" {
		if t, err := time.Parse(time.RFC3339, item.Updated); err == nil {
			ev.UpdatedAt = t
		}
	}
	return ev
}
