package inference

import (
	"errors"
	"testing"
)

func TestDecodeResponse_KnownShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"list with generated_text", `[{"generated_text": "clear lungs"}]`, "clear lungs"},
		{"list with text", `[{"text": "clear lungs"}]`, "clear lungs"},
		{"object with generated_text", `{"generated_text": "clear lungs"}`, "clear lungs"},
		{"object with text", `{"text": "clear lungs"}`, "clear lungs"},
		{"empty generated_text falls through to text", `{"generated_text": "", "text": "clear lungs"}`, "clear lungs"},
		{"leading whitespace", "\n\t [{\"generated_text\": \"x\"}]", "x"},
		{"extra fields ignored", `[{"generated_text": "x", "score": 0.9}]`, "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeResponse([]byte(tt.body))
			if err != nil {
				t.Fatalf("DecodeResponse(%s) error: %v", tt.body, err)
			}
			if got != tt.want {
				t.Errorf("DecodeResponse(%s) = %q, want %q", tt.body, got, tt.want)
			}
		})
	}
}

func TestDecodeResponse_UnknownShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bare string", `"just text"`},
		{"number", `42`},
		{"null", `null`},
		{"object without text fields", `{"score": 0.9}`},
		{"list element without text fields", `[{"score": 0.9}]`},
		{"non-string generated_text", `{"generated_text": 7}`},
		{"malformed json", `{"generated_text": `},
		{"empty body", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeResponse([]byte(tt.body))
			if !errors.Is(err, ErrUnknownShape) {
				t.Errorf("DecodeResponse(%s) error = %v, want ErrUnknownShape", tt.body, err)
			}
		})
	}
}

func TestDecodeResponse_EmptyGeneration(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty list", `[]`},
		{"empty generated_text", `[{"generated_text": ""}]`},
		{"whitespace generated_text", `{"generated_text": "   "}`},
		{"both fields empty", `{"generated_text": "", "text": ""}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeResponse([]byte(tt.body))
			if !errors.Is(err, ErrEmptyGeneration) {
				t.Errorf("DecodeResponse(%s) error = %v, want ErrEmptyGeneration", tt.body, err)
			}
		})
	}
}
