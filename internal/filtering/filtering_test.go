package filtering

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spigell/jobmatch/internal/ranking"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var refNow = time.Date(2025, time.March, 10, 15, 30, 0, 0, time.UTC)

func results() []ranking.Result {
	return []ranking.Result{
		{ID: "1", Title: "Open", ApplyBy: "2025-04-30"},
		{ID: "2", Title: "Closed", ApplyBy: "2025-03-09"},
		{ID: "3", Title: "Soon", ApplyBy: "2025-03-14"},
		{ID: "4", Title: "No deadline"},
		{ID: "5", Title: "Garbage deadline", ApplyBy: "not-a-date"},
		{ID: "6", Title: "Today", ApplyBy: "2025-03-10"},
	}
}

func ids(rs []ranking.Result) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.ID)
	}
	return out
}

func TestDeadlineOf(t *testing.T) {
	t.Parallel()

	cases := []struct {
		applyBy string
		want    Deadline
	}{
		{applyBy: "", want: Deadline{}},
		{applyBy: "soon", want: Deadline{Raw: "soon"}},
		{applyBy: "2025-03-09", want: Deadline{Raw: "2025-03-09", Known: true, Expired: true}},
		{applyBy: "2025-03-10", want: Deadline{Raw: "2025-03-10", Known: true, ClosingSoon: true, DaysLeft: 0}},
		{applyBy: " 2025-03-17 ", want: Deadline{Raw: "2025-03-17", Known: true, ClosingSoon: true, DaysLeft: 7}},
		{applyBy: "2025-03-18", want: Deadline{Raw: "2025-03-18", Known: true, DaysLeft: 8}},
	}

	for _, tc := range cases {
		if got := DeadlineOf(tc.applyBy, refNow); got != tc.want {
			t.Fatalf("DeadlineOf(%q) = %+v, want %+v", tc.applyBy, got, tc.want)
		}
	}
}

func TestRunDeadlineFilters(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		steps []Filter
		want  []string
	}{
		{name: "no filters", steps: nil, want: []string{"1", "2", "3", "4", "5", "6"}},
		{name: "hide closed", steps: []Filter{NewHideClosed()}, want: []string{"1", "3", "4", "5", "6"}},
		{name: "closing soon", steps: []Filter{NewClosingSoon()}, want: []string{"3", "6"}},
		{name: "both", steps: []Filter{NewHideClosed(), NewClosingSoon()}, want: []string{"3", "6"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := Run(context.Background(), Deps{Now: refNow}, tc.steps, results())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(ids(got), tc.want) {
				t.Fatalf("got %v, want %v", ids(got), tc.want)
			}
		})
	}
}

func TestDisabledFilterIsSkipped(t *testing.T) {
	t.Parallel()

	steps := []Filter{NewHideClosed(), NewClosingSoon()}
	DisableByName(steps, "closing_soon", "not requested")

	got, err := Run(context.Background(), Deps{Now: refNow}, steps, results())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 results, got %v", ids(got))
	}

	statuses := Describe(steps)
	if statuses[1].Enabled || statuses[1].Reason != "not requested" {
		t.Fatalf("unexpected status %+v", statuses[1])
	}
	if statuses[1].Details["days"] != "7" {
		t.Fatalf("unexpected details %+v", statuses[1].Details)
	}
}

func TestExcludeFileFilter(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "excluded.json")
	shown := ToExcluded([]ranking.Result{{ID: "1", Title: "Open"}, {ID: "3", Title: "Soon"}}, refNow)
	if err := shown.ToFile(path); err != nil {
		t.Fatalf("write exclude file: %v", err)
	}

	core, observed := observer.New(zapcore.InfoLevel)
	got, err := Run(context.Background(), Deps{Logger: zap.New(core), Now: refNow}, []Filter{NewExcludeFile(path)}, results())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if want := []string{"2", "4", "5", "6"}; !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("got %v, want %v", ids(got), want)
	}
	entries := observed.FilterMessage("excluding jobs based on exclude file").All()
	if len(entries) != 1 {
		t.Fatalf("expected one exclude log entry, got %d", len(entries))
	}
}

func TestExcludeFileMissingOrEmpty(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	for _, path := range []string{"", filepath.Join(dir, "absent.json"), empty} {
		got, err := Run(context.Background(), Deps{Now: refNow}, []Filter{NewExcludeFile(path)}, results())
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", path, err)
		}
		if len(got) != 6 {
			t.Fatalf("%q: expected all results, got %v", path, ids(got))
		}
	}
}

func TestExcludeFileInvalidJSONFailsValidation(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := Run(context.Background(), Deps{}, []Filter{NewExcludeFile(path)}, results())
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestExcludedJobsAppendSkipsDuplicates(t *testing.T) {
	t.Parallel()

	base := ToExcluded([]ranking.Result{{ID: "1"}, {ID: "2"}}, refNow)
	base.Append(ToExcluded([]ranking.Result{{ID: "2"}, {ID: "3"}}, refNow))

	if want := []string{"1", "2", "3"}; !reflect.DeepEqual(base.IDs(), want) {
		t.Fatalf("got %v, want %v", base.IDs(), want)
	}
}

type failingFilter struct{ toggle }

func (f *failingFilter) Name() string    { return "failing" }
func (f *failingFilter) Validate() error { return nil }
func (f *failingFilter) Apply(context.Context, Deps, []ranking.Result) ([]ranking.Result, Step, error) {
	return nil, Step{}, errors.New("boom")
}

func TestRunWrapsStepErrors(t *testing.T) {
	t.Parallel()

	_, err := Run(context.Background(), Deps{}, []Filter{&failingFilter{}}, results())
	if err == nil || err.Error() != "failing: boom" {
		t.Fatalf("unexpected error: %v", err)
	}
}
