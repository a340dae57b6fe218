package contract

import "time"

const SchemaVersion = "v1"

type ErrorCode string

const (
	ErrGeneric           ErrorCode = "GENERIC_FAILURE"
	ErrInvalidUsage      ErrorCode = "INVALID_USAGE"
	ErrPermissionDenied  ErrorCode = "PERMISSION_DENIED"
	ErrNotFound          ErrorCode = "NOT_FOUND"
	ErrSourceUnavailable ErrorCode = "SOURCE_UNAVAILABLE"
)

type ErrorEnvelope struct {
	SchemaVersion string         `json:"schema_version"`
	Error         ErrorBody      `json:"error"`
	Meta          map[string]any `json:"meta,omitempty"`
}

type ErrorBody struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Hint    string    `json:"hint,omitempty"`
}

type SuccessEnvelope struct {
	SchemaVersion string         `json:"schema_version"`
	Command       string         `json:"command"`
	GeneratedAt   time.Time      `json:"generated_at"`
	Data          any            `json:"data"`
	Meta          map[string]any `json:"meta"`
	Warnings      []string       `json:"warnings"`
}

type Calendar struct {
	ID       string `json:"id"`
	Summary  string `json:"summary"`
	TimeZone string `json:"time_zone,omitempty"`
	Primary  bool   `json:"primary,omitempty"`
}

// Event is the read model for a calendar event as the Google Calendar API
// shapes it: start and end each carry either an all-day date or a zoned
// date-time. Events are never written back through this tool.
type Event struct {
	ID          string    `json:"id"`
	CalendarID  string    `json:"calendar_id,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Status      string    `json:"status,omitempty"`
	Start       EventTime `json:"start"`
	End         EventTime `json:"end"`
	Recurrence  []string  `json:"recurrence,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// ProposedEvent is an event the caller would like to book. It uses the same
// dual start/end representation as Event so upstream payloads pass through
// unchanged.
type ProposedEvent struct {
	Summary string    `json:"summary,omitempty"`
	Start   EventTime `json:"start"`
	End     EventTime `json:"end"`
}

// TimeSlot is one candidate free interval of exactly the requested duration.
type TimeSlot struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	StartISO string    `json:"start_iso"`
	EndISO   string    `json:"end_iso"`
	Display  string    `json:"display"`
}

// DaySlots groups the free slots discovered on one calendar date.
type DaySlots struct {
	Date  string     `json:"date"`
	Slots []TimeSlot `json:"slots"`
}

// ConflictAvailability is the full answer to "this proposal collides, what
// now": structured slots, short reschedule phrases, and a text block ready to
// be interpolated into a prompt or chat message.
type ConflictAvailability struct {
	AvailableSlots   []DaySlots `json:"available_slots"`
	SmartSuggestions []string   `json:"smart_suggestions"`
	FormattedForLLM  string     `json:"formatted_for_llm"`
}

type SourceCheck struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
}
