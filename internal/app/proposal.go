package app

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/agis/avail/internal/contract"
	"github.com/agis/avail/internal/timeparse"
)

var clockRe = regexp.MustCompile(`^\d{1,2}:\d{2}$`)

// parseProposalText turns natural text like "tomorrow 14:00 Team sync 45m"
// into a proposed event. The leading tokens carry the start, a trailing Go
// duration token overrides the default length, everything else becomes the
// summary. Summary is optional; duration defaults when absent.
func parseProposalText(input string, now time.Time, loc *time.Location, defaultDuration time.Duration) (contract.ProposedEvent, error) {
	text := strings.TrimSpace(input)
	if text == "" {
		return contract.ProposedEvent{}, fmt.Errorf("proposal text is required")
	}
	tokens := strings.Fields(text)
	start, consumed, err := parseProposalStart(tokens, now, loc)
	if err != nil {
		return contract.ProposedEvent{}, err
	}
	duration := defaultDuration
	summaryParts := make([]string, 0, len(tokens)-consumed)
	for _, tok := range tokens[consumed:] {
		if d, ok := parseDurationToken(tok); ok {
			duration = d
			continue
		}
		summaryParts = append(summaryParts, tok)
	}
	if duration <= 0 {
		return contract.ProposedEvent{}, fmt.Errorf("duration must be positive")
	}
	return contract.ProposedEvent{
		Summary: strings.Join(summaryParts, " "),
		Start:   contract.NewDateTime(start),
		End:     contract.NewDateTime(start.Add(duration)),
	}, nil
}

func parseProposalStart(tokens []string, now time.Time, loc *time.Location) (time.Time, int, error) {
	if len(tokens) == 0 {
		return time.Time{}, 0, fmt.Errorf("missing date/time")
	}
	if len(tokens) >= 2 && isDayToken(tokens[0]) && clockRe.MatchString(tokens[1]) {
		day, err := timeparse.ParseDateTime(tokens[0], now, loc)
		if err != nil {
			return time.Time{}, 0, fmt.Errorf("invalid day: %w", err)
		}
		hour, minute, err := timeparse.ParseClock(tokens[1])
		if err != nil {
			return time.Time{}, 0, err
		}
		return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc), 2, nil
	}
	if len(tokens) >= 2 {
		joined := tokens[0] + " " + tokens[1]
		if ts, err := timeparse.ParseDateTime(joined, now, loc); err == nil {
			return ts, 2, nil
		}
	}
	ts, err := timeparse.ParseDateTime(tokens[0], now, loc)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("invalid date/time: %s", tokens[0])
	}
	return ts, 1, nil
}

func parseDurationToken(token string) (time.Duration, bool) {
	if token == "" {
		return 0, false
	}
	d, err := time.ParseDuration(token)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

func isDayToken(token string) bool {
	s := strings.ToLower(strings.TrimSpace(token))
	switch s {
	case "today", "tomorrow", "yesterday":
		return true
	}
	if strings.HasSuffix(s, "d") && (strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-")) {
		return true
	}
	if isWeekdayToken(s) {
		return true
	}
	if _, err := time.Parse("2006-01-02", token); err == nil {
		return true
	}
	return false
}

func isWeekdayToken(s string) bool {
	switch s {
	case "monday", "mon", "tuesday", "tue", "wednesday", "wed",
		"thursday", "thu", "friday", "fri", "saturday", "sat", "sunday", "sun":
		return true
	}
	return false
}
