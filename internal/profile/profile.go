// Package profile builds the user side of a recommendation request.
package profile

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const maxExtractedSkills = 50

var (
	skillTokenizer = regexp.MustCompile(`[^a-zA-Z0-9+#]+`)
	listSeparators = regexp.MustCompile(`[,;\n\r]+`)

	skillAliases = map[string]string{
		"ml":  "machine learning",
		"ai":  "artificial intelligence",
		"nlp": "natural language processing",
	}
)

// UserProfile is immutable once built.
type UserProfile struct {
	Skills   []string `json:"skills"`
	Location string   `json:"location,omitempty"`
	JobType  string   `json:"job_type,omitempty"`
}

// New normalizes skills (trimmed, lower-cased, deduplicated in order) and preferences.
func New(skills []string, location, jobType string) UserProfile {
	return UserProfile{
		Skills:   Dedupe(skills),
		Location: strings.TrimSpace(location),
		JobType:  strings.TrimSpace(jobType),
	}
}

func (p UserProfile) Empty() bool { return len(p.Skills) == 0 }

// Query is the retrieval text: skills followed by the optional preferences.
func (p UserProfile) Query() string {
	parts := append([]string(nil), p.Skills...)
	if p.Location != "" {
		parts = append(parts, p.Location)
	}
	if p.JobType != "" {
		parts = append(parts, p.JobType)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// Dedupe lower-cases and trims skills, dropping empties and repeats while
// keeping the first occurrence.
func Dedupe(skills []string) []string {
	seen := make(map[string]struct{}, len(skills))
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// ParseList splits a manually entered skill list on commas, semicolons and newlines.
func ParseList(raw string) []string {
	return Dedupe(listSeparators.Split(raw, -1))
}

// ExtractSkills pulls candidate skill tokens out of free resume text.
// Tokens keep '+' and '#' (c++, c#), common abbreviations are expanded and
// single characters are skipped.
func ExtractSkills(text string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, token := range skillTokenizer.Split(text, -1) {
		token = strings.ToLower(strings.TrimSpace(token))
		if alias, ok := skillAliases[token]; ok {
			token = alias
		}
		if utf8.RuneCountInString(token) < 2 {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
		if len(out) == maxExtractedSkills {
			break
		}
	}
	return out
}
