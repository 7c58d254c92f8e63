package task

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// ParseStatus normalizes a provider status string.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "succeeded", "completed", "done", "success":
		return StatusSucceeded
	case "failed", "error", "canceled", "cancelled":
		return StatusFailed
	default:
		return StatusPending
	}
}

func (s Status) Terminal() bool { return s == StatusSucceeded || s == StatusFailed }

// State is one observation of a provider task.
type State struct {
	ID     string
	Status Status
	URL    string
	Data   []byte
	Reason string
}

type Probe func(ctx context.Context) (State, error)

type Options struct {
	Interval    time.Duration
	Timeout     time.Duration
	MaxAttempts int // 0 = bounded by Timeout only
	// RetryProbeErrors keeps polling after a failed probe.
	RetryProbeErrors bool
	OnAttempt        func(attempt int, st State, err error)
}

var ErrTimeout = errors.New("task: timed out waiting for completion")

type FailedError struct {
	ID     string
	Reason string
}

func (e *FailedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("task %s failed", e.ID)
	}
	return fmt.Sprintf("task %s failed: %s", e.ID, e.Reason)
}

// Poll probes until the task reaches a terminal state. It probes once
// immediately and then every Interval. A failed task is returned as
// *FailedError together with its last State.
func Poll(ctx context.Context, probe Probe, opts Options) (State, error) {
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	pctx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	var (
		last    State
		lastErr error
	)
	timer := time.NewTimer(0)
	defer timer.Stop()

	for attempt := 1; ; attempt++ {
		select {
		case <-pctx.Done():
			return last, expired(ctx, lastErr)
		case <-timer.C:
		}

		st, err := probe(pctx)
		if opts.OnAttempt != nil {
			opts.OnAttempt(attempt, st, err)
		}
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
			if pctx.Err() != nil {
				return last, expired(ctx, err)
			}
			if !opts.RetryProbeErrors {
				return last, err
			}
			lastErr = err
		case st.Status == StatusSucceeded:
			return st, nil
		case st.Status == StatusFailed:
			return st, &FailedError{ID: st.ID, Reason: st.Reason}
		default:
			last, lastErr = st, nil
		}

		if opts.MaxAttempts > 0 && attempt >= opts.MaxAttempts {
			return last, expired(ctx, lastErr)
		}
		timer.Reset(opts.Interval)
	}
}

func expired(parent context.Context, lastErr error) error {
	if err := parent.Err(); err != nil {
		return err
	}
	if lastErr != nil {
		return fmt.Errorf("%w: last probe: %w", ErrTimeout, lastErr)
	}
	return ErrTimeout
}
