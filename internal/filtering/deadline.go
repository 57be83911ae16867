package filtering

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spigell/jobmatch/internal/ranking"
	"go.uber.org/zap"
)

const (
	DeadlineLayout  = "2006-01-02"
	ClosingSoonDays = 7
)

// Deadline is the application window of a result relative to a reference day.
type Deadline struct {
	Raw string
	// Known is false when apply_by is empty or not a date.
	Known       bool
	Expired     bool
	ClosingSoon bool
	DaysLeft    int
}

// DeadlineOf evaluates applyBy against the calendar day of now.
func DeadlineOf(applyBy string, now time.Time) Deadline {
	d := Deadline{Raw: strings.TrimSpace(applyBy)}
	if d.Raw == "" {
		return d
	}

	due, err := time.ParseInLocation(DeadlineLayout, d.Raw, now.Location())
	if err != nil {
		return d
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	d.Known = true
	if due.Before(today) {
		d.Expired = true
		return d
	}

	d.DaysLeft = int(math.Round(due.Sub(today).Hours() / 24))
	d.ClosingSoon = d.DaysLeft <= ClosingSoonDays
	return d
}

type hideClosedFilter struct {
	toggle
}

// NewHideClosed drops results whose application deadline has passed.
func NewHideClosed() Filter {
	return &hideClosedFilter{}
}

func (f *hideClosedFilter) Name() string { return "hide_closed" }

func (f *hideClosedFilter) Validate() error { return nil }

func (f *hideClosedFilter) Apply(_ context.Context, deps Deps, results []ranking.Result) ([]ranking.Result, Step, error) {
	initial := len(results)
	kept, dropped := keep(results, func(r ranking.Result) bool {
		return !DeadlineOf(r.ApplyBy, deps.Now).Expired
	})
	if len(dropped) > 0 {
		deps.Logger.Info("excluding closed jobs", zap.Strings("excluded_jobs", dropped), zap.Int("jobs_left", len(kept)))
	}
	return kept, Step{Initial: initial, Dropped: len(dropped), Left: len(kept)}, nil
}

func (f *hideClosedFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason}
}

type closingSoonFilter struct {
	toggle
}

// NewClosingSoon keeps only open results due within ClosingSoonDays.
func NewClosingSoon() Filter {
	return &closingSoonFilter{}
}

func (f *closingSoonFilter) Name() string { return "closing_soon" }

func (f *closingSoonFilter) Validate() error { return nil }

func (f *closingSoonFilter) Apply(_ context.Context, deps Deps, results []ranking.Result) ([]ranking.Result, Step, error) {
	initial := len(results)
	kept, dropped := keep(results, func(r ranking.Result) bool {
		d := DeadlineOf(r.ApplyBy, deps.Now)
		return d.ClosingSoon && !d.Expired
	})
	if len(dropped) > 0 {
		deps.Logger.Info("keeping only jobs closing soon", zap.Strings("excluded_jobs", dropped), zap.Int("jobs_left", len(kept)))
	}
	return kept, Step{Initial: initial, Dropped: len(dropped), Left: len(kept)}, nil
}

func (f *closingSoonFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"days": strconv.Itoa(ClosingSoonDays)},
	}
}
