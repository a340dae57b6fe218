package app

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/agis/avail/internal/contract"
)

type predicate struct {
	field string
	op    string
	value string
}

func parsePredicates(wheres []string) ([]predicate, error) {
	out := make([]predicate, 0, len(wheres))
	ops := []string{"==", "!=", "~", ">=", "<=", ">", "<"}
	for _, w := range wheres {
		s := strings.TrimSpace(w)
		if s == "" {
			continue
		}
		var op string
		var idx int
		for _, candidate := range ops {
			if i := strings.Index(s, candidate); i > 0 {
				op = candidate
				idx = i
				break
			}
		}
		if op == "" {
			return nil, fmt.Errorf("invalid where clause: %s", w)
		}
		field := strings.TrimSpace(s[:idx])
		val := strings.Trim(strings.TrimSpace(s[idx+len(op):]), "\"")
		if field == "" || val == "" {
			return nil, fmt.Errorf("invalid where clause: %s", w)
		}
		out = append(out, predicate{field: strings.ToLower(field), op: op, value: val})
	}
	return out, nil
}

func applyPredicates(items []contract.Event, preds []predicate, loc *time.Location) ([]contract.Event, error) {
	filtered := make([]contract.Event, 0, len(items))
	for _, e := range items {
		ok, err := matchesAll(e, preds, loc)
		if err != nil {
			return nil, err
		}
		if ok {
			filtered = append(filtered, e)
		}
	}
	return filtered, nil
}

func matchesAll(e contract.Event, preds []predicate, loc *time.Location) (bool, error) {
	for _, p := range preds {
		ok, err := matchesOne(e, p, loc)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func matchesOne(e contract.Event, p predicate, loc *time.Location) (bool, error) {
	switch p.field {
	case "summary", "title":
		return compareString(e.Summary, p.op, p.value)
	case "calendar", "calendar_id":
		return compareString(e.CalendarID, p.op, p.value)
	case "location":
		return compareString(e.Location, p.op, p.value)
	case "description", "notes":
		return compareString(e.Description, p.op, p.value)
	case "status":
		return compareString(e.Status, p.op, p.value)
	case "id":
		return compareString(e.ID, p.op, p.value)
	case "start":
		return compareEventTime(e.Start, p.op, p.value, loc)
	case "end":
		return compareEventTime(e.End, p.op, p.value, loc)
	default:
		return false, fmt.Errorf("unsupported field in --where: %s", p.field)
	}
}

func compareString(actual, op, expected string) (bool, error) {
	a := strings.ToLower(actual)
	e := strings.ToLower(expected)
	switch op {
	case "==":
		return a == e, nil
	case "!=":
		return a != e, nil
	case "~":
		return strings.Contains(a, e), nil
	default:
		return false, fmt.Errorf("operator %s not supported for string fields", op)
	}
}

func compareEventTime(actual contract.EventTime, op, expected string, loc *time.Location) (bool, error) {
	inst, err := actual.Resolve(loc)
	if err != nil {
		return false, nil
	}
	parsed, err := time.Parse(time.RFC3339, expected)
	if err != nil {
		return false, fmt.Errorf("time predicate expects RFC3339 value, got %q", expected)
	}
	switch op {
	case "==":
		return inst.At.Equal(parsed), nil
	case "!=":
		return !inst.At.Equal(parsed), nil
	case ">":
		return inst.At.After(parsed), nil
	case ">=":
		return !inst.At.Before(parsed), nil
	case "<":
		return inst.At.Before(parsed), nil
	case "<=":
		return !inst.At.After(parsed), nil
	default:
		return false, fmt.Errorf("operator %s not supported for time fields", op)
	}
}

func sortEvents(items []contract.Event, sortField, order string, loc *time.Location) {
	desc := strings.EqualFold(order, "desc")
	startOf := func(e contract.Event) time.Time {
		if inst, err := e.Start.Resolve(loc); err == nil {
			return inst.At
		}
		return time.Time{}
	}
	endOf := func(e contract.Event) time.Time {
		if inst, err := e.End.Resolve(loc); err == nil {
			return inst.At
		}
		return time.Time{}
	}
	sort.SliceStable(items, func(i, j int) bool {
		var less bool
		switch strings.ToLower(sortField) {
		case "summary", "title":
			less = items[i].Summary < items[j].Summary
		case "end":
			less = endOf(items[i]).Before(endOf(items[j]))
		case "updated_at":
			less = items[i].UpdatedAt.Before(items[j].UpdatedAt)
		case "calendar":
			less = items[i].CalendarID < items[j].CalendarID
		default:
			less = startOf(items[i]).Before(startOf(items[j]))
		}
		if desc {
			return !less
		}
		return less
	})
}
