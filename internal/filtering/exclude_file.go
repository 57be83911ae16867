package filtering

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spigell/jobmatch/internal/ranking"
	"go.uber.org/zap"
)

// ExcludedJobs is the on-disk list of jobs the user does not want to see again.
type ExcludedJobs struct {
	Items []*ExcludedJob `json:"items"`
}

type ExcludedJob struct {
	ID         string    `json:"id"`
	Title      string    `json:"title,omitempty"`
	Company    string    `json:"company,omitempty"`
	ApplyURL   string    `json:"apply_url,omitempty"`
	ExcludedAt time.Time `json:"excluded_at"`
}

// ToExcluded converts results into exclude entries stamped with now.
func ToExcluded(results []ranking.Result, now time.Time) *ExcludedJobs {
	excluded := &ExcludedJobs{}
	for _, r := range results {
		excluded.Items = append(excluded.Items, &ExcludedJob{
			ID:         r.ID,
			Title:      r.Title,
			Company:    r.Company,
			ApplyURL:   r.ApplyURL,
			ExcludedAt: now.UTC(),
		})
	}
	return excluded
}

// ExcludedFromFile reads an exclude file. A missing or empty file is an empty list.
func ExcludedFromFile(path string) (*ExcludedJobs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ExcludedJobs{}, nil
		}
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return &ExcludedJobs{}, nil
	}

	var excluded ExcludedJobs
	if err := json.Unmarshal(data, &excluded); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return &excluded, nil
}

// Append adds entries whose IDs are not yet listed.
func (e *ExcludedJobs) Append(other *ExcludedJobs) {
	seen := make(map[string]struct{}, len(e.Items))
	for _, item := range e.Items {
		seen[item.ID] = struct{}{}
	}
	for _, item := range other.Items {
		if _, ok := seen[item.ID]; ok {
			continue
		}
		seen[item.ID] = struct{}{}
		e.Items = append(e.Items, item)
	}
}

func (e *ExcludedJobs) IDs() []string {
	ids := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		ids = append(ids, item.ID)
	}
	return ids
}

func (e *ExcludedJobs) ToFile(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(e)
}

type excludeFileFilter struct {
	toggle
	path string
	ids  map[string]struct{}
}

// NewExcludeFile creates a filter that removes results listed in the exclude file at path.
func NewExcludeFile(path string) Filter {
	return &excludeFileFilter{path: strings.TrimSpace(path)}
}

func (f *excludeFileFilter) Name() string { return "exclude_file" }

func (f *excludeFileFilter) Validate() error {
	f.ids = nil
	if f.path == "" {
		return nil
	}

	excluded, err := ExcludedFromFile(f.path)
	if err != nil {
		return fmt.Errorf("getting excluded jobs from file: %w", err)
	}

	f.ids = make(map[string]struct{}, len(excluded.Items))
	for _, id := range excluded.IDs() {
		f.ids[id] = struct{}{}
	}
	return nil
}

func (f *excludeFileFilter) Apply(_ context.Context, deps Deps, results []ranking.Result) ([]ranking.Result, Step, error) {
	initial := len(results)
	if len(f.ids) == 0 {
		return results, Step{Initial: initial, Dropped: 0, Left: initial}, nil
	}

	kept, dropped := keep(results, func(r ranking.Result) bool {
		_, excluded := f.ids[r.ID]
		return !excluded
	})
	if len(dropped) > 0 {
		deps.Logger.Info("excluding jobs based on exclude file",
			zap.String("path", f.path),
			zap.Strings("excluded_jobs", dropped),
			zap.Int("jobs_left", len(kept)),
		)
	}

	return kept, Step{Initial: initial, Dropped: len(dropped), Left: len(kept)}, nil
}

func (f *excludeFileFilter) Status() Status {
	details := map[string]string{}
	if f.path != "" {
		details["path"] = f.path
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
