package inference

import "strings"

// DefaultPrompt instructs the model to describe findings and to skip the
// viewer's overlay caption, which otherwise shows up verbatim in reports.
const DefaultPrompt = "Describe the findings in this chest X-ray in plain text. " +
	"Ignore any overlaid text such as 'Please refer to arrow(s) in key image(s)' — " +
	"that is a software annotation, not part of the X-ray. Do not include it in your response."

// Clean reduces raw model output to the text worth typing into a report.
// Endpoints that echo the prompt get it stripped when it leads the output,
// and everything after the first blank line is dropped because the model
// tends to restate itself in later paragraphs.
func Clean(raw, prompt string) string {
	content := raw
	if prompt != "" && strings.HasPrefix(content, prompt) {
		content = strings.TrimSpace(content[len(prompt):])
	}
	content, _, _ = strings.Cut(content, "\n\n")
	return strings.TrimSpace(content)
}
