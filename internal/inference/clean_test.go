package inference

import "testing"

func TestClean(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		prompt string
		want   string
	}{
		{
			name:   "prompt echo stripped",
			raw:    "describe this. Findings: clear lungs.",
			prompt: "describe this.",
			want:   "Findings: clear lungs.",
		},
		{
			name:   "prompt mid-text left alone",
			raw:    "Findings precede describe this. here",
			prompt: "describe this.",
			want:   "Findings precede describe this. here",
		},
		{
			name:   "first paragraph only",
			raw:    "Findings: clear lungs.\n\nFindings: clear lungs.\n\nAgain.",
			prompt: "",
			want:   "Findings: clear lungs.",
		},
		{
			name:   "echo then truncation",
			raw:    "p\nFirst paragraph\nstill first.\n\nSecond paragraph.",
			prompt: "p",
			want:   "First paragraph\nstill first.",
		},
		{
			name:   "surrounding whitespace trimmed",
			raw:    "  No acute cardiopulmonary findings.  \n",
			prompt: "",
			want:   "No acute cardiopulmonary findings.",
		},
		{
			name:   "crlf paragraphs pass through uncut",
			raw:    "one\r\n\r\ntwo",
			prompt: "",
			want:   "one\r\n\r\ntwo",
		},
		{
			name:   "empty input",
			raw:    "",
			prompt: "x",
			want:   "",
		},
		{
			name:   "only the echo",
			raw:    "describe this.",
			prompt: "describe this.",
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.raw, tt.prompt); got != tt.want {
				t.Errorf("Clean(%q, %q) = %q, want %q", tt.raw, tt.prompt, got, tt.want)
			}
		})
	}
}
