package coordinator

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/dlemos/formfill/internal/protocol"
)

const promptTemplate = `You are an assistant that fills out job application forms using data from a resume.

Below is the resume content:
---
%s
---

Below are the form fields found on the page:
%s

Your task: map each field to the most appropriate value from the resume.
- Use the field's label, name, placeholder, autocomplete attribute, and type to determine what data it expects.
- For select fields, pick only from the available options.
- If a field cannot be confidently mapped, omit it from the result.
- Return ONLY a JSON object where keys are field IDs and values are the strings to fill in.
- Do NOT include any explanation, only the JSON.`

// BuildPrompt embeds the verbatim resume text and one line per field.
// Placeholder, autocomplete, and options appear only when non-empty.
func BuildPrompt(resumeText string, fields []protocol.FormFieldDescriptor) string {
	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		var b strings.Builder
		fmt.Fprintf(&b, "- id=%q, tag=%s, type=%s, name=%q, label=%q", f.ID, f.TagName, f.Type, f.Name, f.Label)
		if f.Placeholder != "" {
			fmt.Fprintf(&b, ", placeholder=%q", f.Placeholder)
		}
		if f.Autocomplete != "" {
			fmt.Fprintf(&b, ", autocomplete=%q", f.Autocomplete)
		}
		if len(f.Options) > 0 {
			fmt.Fprintf(&b, ", options=[%s]", strings.Join(f.Options, ", "))
		}
		lines = append(lines, b.String())
	}

	return fmt.Sprintf(promptTemplate, resumeText, strings.Join(lines, "\n"))
}

// ParseMapping parses the model's response into a field-id-to-value mapping.
// Markdown code fences are tolerated; non-string scalar values are coerced.
func ParseMapping(raw string) (map[string]string, error) {
	cleaned := stripFences(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse mapping: %w", err)
	}

	mapping := make(map[string]string, len(data))
	for id, value := range data {
		if s := coerceString(value); s != "" {
			mapping[id] = s
		}
	}

	return mapping, nil
}

func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}
