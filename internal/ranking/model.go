package ranking

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/spigell/jobmatch/internal/index"
	"github.com/spigell/jobmatch/internal/profile"
	"github.com/spigell/jobmatch/internal/utils"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

//go:embed prompt.md
var systemInstruction string

//go:embed schema.json
var responseSchemaJSON string

var responseSchema = mustSchema(responseSchemaJSON)

var (
	errNoJSONArray   = errors.New("response does not contain a JSON array")
	errNoKnownJobIDs = errors.New("response references no known job_id")
)

type modelPayload struct {
	User modelUser  `json:"user"`
	Jobs []modelJob `json:"jobs"`
}

type modelUser struct {
	Skills   []string `json:"skills"`
	Location string   `json:"location,omitempty"`
	JobType  string   `json:"job_type,omitempty"`
}

type modelJob struct {
	JobID  string   `json:"job_id"`
	Title  string   `json:"title"`
	Skills []string `json:"skills"`
}

type modelEntry struct {
	JobID  any    `json:"job_id"`
	Score  any    `json:"score"`
	Reason string `json:"reason"`
}

func (e *Engine) rankWithModel(ctx context.Context, p profile.UserProfile, candidates []index.Candidate) ([]Result, error) {
	prompt, err := buildPrompt(p, candidates)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("model ranking request",
		zap.Int("candidates", len(candidates)),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, e.maxLogLen)),
	)

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	raw, err := e.generator.GenerateContent(callCtx, systemInstruction, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate ranking: %w", err)
	}

	e.logger.Debug("model ranking response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
	)

	results, dropped, err := parseResponse(raw, candidates)
	if err != nil {
		return nil, err
	}
	if dropped > 0 {
		e.logger.Debug("dropped model entries", zap.Int("dropped", dropped))
	}

	return results, nil
}

func buildPrompt(p profile.UserProfile, candidates []index.Candidate) (string, error) {
	payload := modelPayload{
		User: modelUser{Skills: p.Skills, Location: p.Location, JobType: p.JobType},
		Jobs: make([]modelJob, 0, len(candidates)),
	}
	if payload.User.Skills == nil {
		payload.User.Skills = []string{}
	}
	for _, c := range candidates {
		skills := c.Job.SkillsList
		if skills == nil {
			skills = []string{}
		}
		payload.Jobs = append(payload.Jobs, modelJob{JobID: c.Job.ID, Title: c.Job.Title, Skills: skills})
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal ranking payload: %w", err)
	}
	return string(data), nil
}

// parseResponse validates raw against the response schema and hydrates the
// entries that reference a candidate. dropped counts unknown or duplicate entries.
func parseResponse(raw string, candidates []index.Candidate) ([]Result, int, error) {
	doc, err := extractJSONArray(raw)
	if err != nil {
		return nil, 0, err
	}

	validation, err := responseSchema.Validate(gojsonschema.NewStringLoader(doc))
	if err != nil {
		return nil, 0, fmt.Errorf("parse model response: %w", err)
	}
	if !validation.Valid() {
		msgs := make([]string, 0, len(validation.Errors()))
		for _, e := range validation.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, 0, fmt.Errorf("model response does not match schema: %s", strings.Join(msgs, "; "))
	}

	var entries []modelEntry
	decoder := json.NewDecoder(strings.NewReader(doc))
	decoder.UseNumber()
	if err := decoder.Decode(&entries); err != nil {
		return nil, 0, fmt.Errorf("decode model response: %w", err)
	}

	byID := make(map[string]index.Candidate, len(candidates))
	for _, c := range candidates {
		if _, exists := byID[c.Job.ID]; !exists {
			byID[c.Job.ID] = c
		}
	}

	results := make([]Result, 0, len(entries))
	used := make(map[string]struct{}, len(entries))
	dropped := 0
	for _, entry := range entries {
		id := coerceID(entry.JobID)
		candidate, known := byID[id]
		if _, dup := used[id]; !known || dup {
			dropped++
			continue
		}
		score := coerceFloat(entry.Score)
		if math.IsNaN(score) {
			dropped++
			continue
		}
		used[id] = struct{}{}

		reason := utils.TruncateWords(entry.Reason, maxReasonWords)
		results = append(results, hydrate(candidate.Job, clamp01(score), reason))
	}

	if len(results) == 0 {
		return nil, dropped, errNoKnownJobIDs
	}

	sortByScore(results)
	return results, dropped, nil
}

// extractJSONArray strips markdown fences and returns the outermost [...] span.
func extractJSONArray(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}

	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start == -1 || end < start {
		return "", errNoJSONArray
	}
	return raw[start : end+1], nil
}

func coerceID(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return ""
	}
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return math.NaN()
		}
		return f
	case float64:
		return val
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func mustSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("ranking response schema: %v", err))
	}
	return schema
}
