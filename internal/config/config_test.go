package config

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestCleanToken_StripsQuotesAndWhitespace(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hf_abc123", "hf_abc123"},
		{"double quoted", `"hf_abc123"`, "hf_abc123"},
		{"single quoted", `'hf_abc123'`, "hf_abc123"},
		{"padded", "  hf_abc123  ", "hf_abc123"},
		{"quoted and padded", `  "hf_abc123" `, "hf_abc123"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanToken(tt.in); got != tt.want {
				t.Errorf("CleanToken(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCleanEndpoint_StripsTrailingSlash(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no slash", "https://x.endpoints.huggingface.cloud", "https://x.endpoints.huggingface.cloud"},
		{"one slash", "https://x.endpoints.huggingface.cloud/", "https://x.endpoints.huggingface.cloud"},
		{"many slashes", "https://x.endpoints.huggingface.cloud///", "https://x.endpoints.huggingface.cloud"},
		{"quoted with slash", `"https://x.endpoints.huggingface.cloud/"`, "https://x.endpoints.huggingface.cloud"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanEndpoint(tt.in); got != tt.want {
				t.Errorf("CleanEndpoint(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidate_MissingValues(t *testing.T) {
	c := Config{}
	err := c.Validate()
	if err == nil {
		t.Fatal("Validate() with no token succeeded, want error")
	}
	if !strings.Contains(err.Error(), "HF_TOKEN") || !strings.Contains(err.Error(), "run.bat") {
		t.Errorf("token error lacks remediation: %v", err)
	}

	c.Token = "hf_abc"
	err = c.Validate()
	if err == nil {
		t.Fatal("Validate() with no endpoint succeeded, want error")
	}
	if !strings.Contains(err.Error(), "HF_ENDPOINT_URL") || !strings.Contains(err.Error(), "endpoints.huggingface.co") {
		t.Errorf("endpoint error lacks remediation: %v", err)
	}

	c.Endpoint = "https://x.endpoints.huggingface.cloud"
	if err := c.Validate(); err != nil {
		t.Errorf("Validate() with both values set: %v", err)
	}
}

func TestLoad_ReadsEnvironment(t *testing.T) {
	t.Setenv("HF_TOKEN", `"hf_secret"`)
	t.Setenv("HF_ENDPOINT_URL", "https://demo.endpoints.huggingface.cloud/")

	c := Load()
	if c.Token != "hf_secret" {
		t.Errorf("Token = %q, want %q", c.Token, "hf_secret")
	}
	if c.Endpoint != "https://demo.endpoints.huggingface.cloud" {
		t.Errorf("Endpoint = %q, want trailing slash stripped", c.Endpoint)
	}
	if !c.ArchiveDICOM {
		t.Error("ArchiveDICOM should default to true")
	}
}

func TestPaths_JoinOutputDir(t *testing.T) {
	c := Config{OutputDir: filepath.Join("some", "dir")}
	if got := c.ImagePath(); got != filepath.Join("some", "dir", "extracted_xray.png") {
		t.Errorf("ImagePath() = %q", got)
	}
	if got := c.ReportPath(); got != filepath.Join("some", "dir", "report.txt") {
		t.Errorf("ReportPath() = %q", got)
	}
	if got := c.LogPath(); got != filepath.Join("some", "dir", "workflow_log.txt") {
		t.Errorf("LogPath() = %q", got)
	}
	if got := c.RawOutputPath(); got != filepath.Join("some", "dir", "raw_output.txt") {
		t.Errorf("RawOutputPath() = %q", got)
	}
	if got := c.CapturesDir(); got != filepath.Join("some", "dir", "captures") {
		t.Errorf("CapturesDir() = %q", got)
	}
}
