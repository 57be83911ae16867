package utils

import "testing"

func TestTruncateForLog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		limit  int
		expect string
	}{
		{name: "non-positive limit hides the value", input: `[{"job_id":"1"}]`, limit: 0, expect: ""},
		{name: "prompt within limit", input: `{"user":{"skills":["go"]}}`, limit: 200, expect: `{"user":{"skills":["go"]}}`},
		{name: "long response is cut", input: `[{"job_id":"1","score":0.9}]`, limit: 12, expect: `[{"job_id":"...`},
		{name: "counts runes not bytes", input: "Müller GmbH Berlin", limit: 6, expect: "Müller..."},
		{name: "surrounding whitespace ignored", input: "\n  ok  \n", limit: 2, expect: "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := TruncateForLog(tt.input, tt.limit); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

func TestTruncateWords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		limit  int
		expect string
	}{
		{name: "short reason kept", input: "Strong Python match.", limit: 25, expect: "Strong Python match."},
		{name: "whitespace collapsed", input: "  Uses \n Go  and SQL ", limit: 25, expect: "Uses Go and SQL"},
		{name: "long reason cut", input: "one two three four five", limit: 3, expect: "one two three..."},
		{name: "no limit", input: "one two three", limit: 0, expect: "one two three"},
		{name: "empty", input: "   ", limit: 5, expect: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := TruncateWords(tt.input, tt.limit); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}
