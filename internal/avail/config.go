// Package avail computes free time slots and reschedule suggestions from
// already-fetched calendar events. Every function is a pure computation over
// its inputs: no I/O, no clocks, no shared state, safe for concurrent use.
package avail

import "time"

const (
	DefaultWorkStartHour   = 8
	DefaultWorkEndHour     = 22
	DefaultSlotInterval    = 30 * time.Minute
	DefaultMaxSlots        = 10
	DefaultMaxSlotsPerDay  = 5
	defaultSameDayCap      = 3
	defaultNextDayCap      = 2
	defaultLookaheadDays   = 7
	defaultLLMDayLimit     = 3
	maxSmartSuggestions    = 4
)

// Config tunes the slot search. The zero value means "use defaults";
// normalize fills in anything left unset.
type Config struct {
	// WorkStartHour and WorkEndHour bound the daily search window in local
	// wall-clock hours.
	WorkStartHour int
	WorkEndHour   int
	// SlotInterval is the candidate step between slot starts.
	SlotInterval time.Duration
	// MaxSlots caps a single day's results; MaxSlotsPerDay applies per day in
	// multi-day searches.
	MaxSlots       int
	MaxSlotsPerDay int
	SkipWeekends   bool
	// DisplayFormat is a strftime pattern for rendering slot times. Empty
	// means the built-in 12-hour clock.
	DisplayFormat string
}

func (c Config) normalize() Config {
	if c.WorkStartHour <= 0 {
		c.WorkStartHour = DefaultWorkStartHour
	}
	if c.WorkEndHour <= 0 {
		c.WorkEndHour = DefaultWorkEndHour
	}
	if c.SlotInterval <= 0 {
		c.SlotInterval = DefaultSlotInterval
	}
	if c.MaxSlots <= 0 {
		c.MaxSlots = DefaultMaxSlots
	}
	if c.MaxSlotsPerDay <= 0 {
		c.MaxSlotsPerDay = DefaultMaxSlotsPerDay
	}
	return c
}
