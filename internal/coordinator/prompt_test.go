package coordinator

import (
	"strings"
	"testing"

	"github.com/dlemos/formfill/internal/protocol"
)

func TestBuildPromptFieldLines(t *testing.T) {
	fields := []protocol.FormFieldDescriptor{
		{ID: "name", TagName: "input", Type: "text", Name: "name", Label: "Full name"},
		{
			ID: "country", TagName: "select", Type: "select", Name: "country",
			Autocomplete: "country", Options: []string{"Brazil", "Portugal"},
		},
	}

	prompt := BuildPrompt("RESUME BODY", fields)

	if !strings.Contains(prompt, "---\nRESUME BODY\n---") {
		t.Fatal("resume not embedded verbatim between separators")
	}

	if !strings.Contains(prompt, `- id="name", tag=input, type=text, name="name", label="Full name"`) {
		t.Fatalf("unexpected field line:\n%s", prompt)
	}

	if !strings.Contains(prompt, `options=[Brazil, Portugal]`) {
		t.Fatalf("options missing:\n%s", prompt)
	}

	// Optional attributes are omitted when empty.
	if strings.Contains(prompt, `placeholder=""`) || strings.Contains(prompt, "options=[]") {
		t.Fatalf("empty attributes leaked into prompt:\n%s", prompt)
	}

	if !strings.Contains(prompt, "Return ONLY a JSON object") {
		t.Fatal("strict JSON instruction missing")
	}
}

func TestParseMapping(t *testing.T) {
	cases := []struct {
		name     string
		raw      string
		expected map[string]string
		wantErr  bool
	}{
		{
			name:     "plain json",
			raw:      `{"name": "Maria", "email": "m@example.com"}`,
			expected: map[string]string{"name": "Maria", "email": "m@example.com"},
		},
		{
			name:     "fenced json",
			raw:      "```json\n{\"name\": \"Maria\"}\n```",
			expected: map[string]string{"name": "Maria"},
		},
		{
			name:     "bare fences",
			raw:      "```\n{\"name\": \"Maria\"}\n```",
			expected: map[string]string{"name": "Maria"},
		},
		{
			name:     "numeric value coerced",
			raw:      `{"age": 34}`,
			expected: map[string]string{"age": "34"},
		},
		{
			name:     "empty and null values dropped",
			raw:      `{"a": "", "b": null, "c": "keep"}`,
			expected: map[string]string{"c": "keep"},
		},
		{
			name:    "not json",
			raw:     "sorry, I cannot do that",
			wantErr: true,
		},
		{
			name:    "empty response",
			raw:     "",
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mapping, err := ParseMapping(tc.raw)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}

			if len(mapping) != len(tc.expected) {
				t.Fatalf("expected %v, got %v", tc.expected, mapping)
			}
			for k, v := range tc.expected {
				if mapping[k] != v {
					t.Fatalf("key %q: expected %q, got %q", k, v, mapping[k])
				}
			}
		})
	}
}
