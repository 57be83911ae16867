// Package filtering applies presentation-side filters to ranked results.
package filtering

import (
	"context"
	"fmt"
	"time"

	"github.com/spigell/jobmatch/internal/ranking"
	"go.uber.org/zap"
)

// Filter represents a single filtering step applied to ranked results.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate() error
	Apply(ctx context.Context, deps Deps, results []ranking.Result) ([]ranking.Result, Step, error)
}

// Deps aggregates dependencies shared across all filtering steps.
type Deps struct {
	Logger *zap.Logger
	// Now is the reference time for deadline filters.
	Now time.Time
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// toggle carries the enabled state shared by every filter.
type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *toggle) IsEnabled() bool { return !t.disabled }

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Run validates every enabled filter and then applies them in order.
func Run(ctx context.Context, deps Deps, steps []Filter, results []ranking.Result) ([]ranking.Result, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now.IsZero() {
		deps.Now = time.Now()
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			deps.Logger.Debug("filter disabled", zap.String("name", step.Name()))
			continue
		}

		next, info, err := step.Apply(ctx, deps, results)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		deps.Logger.Debug("filter step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)

		results = next
	}

	return results, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}

// keep returns the results for which fn is true and the IDs it dropped.
func keep(results []ranking.Result, fn func(ranking.Result) bool) ([]ranking.Result, []string) {
	kept := make([]ranking.Result, 0, len(results))
	var dropped []string
	for _, r := range results {
		if fn(r) {
			kept = append(kept, r)
			continue
		}
		dropped = append(dropped, r.ID)
	}
	return kept, dropped
}
