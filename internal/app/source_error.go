package app

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type sourceContextError struct {
	Phase    string
	Kind     string
	Deadline *time.Time
	Err      error
}

func (e *sourceContextError) Error() string {
	if e == nil {
		return "source error"
	}
	switch e.Kind {
	case "timeout":
		if e.Deadline != nil {
			return fmt.Sprintf("%s timed out after deadline %s: %v", e.Phase, e.Deadline.Format(time.RFC3339), e.Err)
		}
		return fmt.Sprintf("%s timed out: %v", e.Phase, e.Err)
	case "canceled":
		return fmt.Sprintf("%s canceled: %v", e.Phase, e.Err)
	default:
		return e.Err.Error()
	}
}

func (e *sourceContextError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func annotateSourceError(ctx context.Context, phase string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		var dl *time.Time
		if deadline, ok := ctx.Deadline(); ok {
			deadline = deadline.UTC()
			dl = &deadline
		}
		return &sourceContextError{
			Phase:    phase,
			Kind:     "timeout",
			Deadline: dl,
			Err:      err,
		}
	}
	if errors.Is(err, context.Canceled) {
		return &sourceContextError{
			Phase: phase,
			Kind:  "canceled",
			Err:   err,
		}
	}
	return err
}

func sourceErrorMeta(err error) map[string]any {
	var se *sourceContextError
	if !errors.As(err, &se) || se == nil {
		return nil
	}
	meta := map[string]any{
		"phase": se.Phase,
		"kind":  se.Kind,
	}
	if se.Deadline != nil {
		meta["deadline"] = se.Deadline.Format(time.RFC3339)
	}
	return meta
}
