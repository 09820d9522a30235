// Package config assembles the runtime configuration from defaults, the
// environment and command-line flags. The resulting struct is built once in
// main and handed down; nothing in the program reads the environment after
// startup.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Artifact file names. Operators find these next to the binary, so the
// names never change between versions.
const (
	imageFile     = "extracted_xray.png"
	reportFile    = "report.txt"
	logFile       = "workflow_log.txt"
	rawOutputFile = "raw_output.txt"
	pidFile       = "radbull.pid"
	capturesDir   = "captures"
)

// Config is the full runtime configuration.
type Config struct {
	// Token is the bearer token for the inference endpoint (HF_TOKEN).
	Token string
	// Endpoint is the inference endpoint base URL (HF_ENDPOINT_URL),
	// without a trailing slash.
	Endpoint string
	// OutputDir is where every artifact lands. Defaults to the directory
	// of the executable so double-click launches keep everything together.
	OutputDir string
	// LayoutFile optionally points at a YAML overlay for the RIS layout
	// and timing tables.
	LayoutFile string
	// ArchiveDICOM controls the secondary-capture archive under captures/.
	ArchiveDICOM bool
}

// Load builds a Config from the environment. Flag values are applied by the
// caller afterwards.
func Load() Config {
	return Config{
		Token:        CleanToken(os.Getenv("HF_TOKEN")),
		Endpoint:     CleanEndpoint(os.Getenv("HF_ENDPOINT_URL")),
		OutputDir:    defaultOutputDir(),
		ArchiveDICOM: true,
	}
}

// defaultOutputDir resolves the executable's directory, falling back to the
// working directory when the executable path is unavailable.
func defaultOutputDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// CleanToken normalizes a token value pasted into a batch file: surrounding
// whitespace and quotes are common there and must not reach the
// Authorization header.
func CleanToken(v string) string {
	return strings.Trim(strings.TrimSpace(v), `"'`)
}

// CleanEndpoint normalizes an endpoint URL the same way and drops any
// trailing slash so request paths join cleanly.
func CleanEndpoint(v string) string {
	return strings.TrimRight(CleanToken(v), "/")
}

// Validate checks that the endpoint credentials are present. The messages
// carry the remediation steps because they surface directly to operators
// who launch the tool from run.bat.
func (c Config) Validate() error {
	if c.Token == "" {
		return errors.New("HF_TOKEN environment variable is not set; set it in run.bat or via: $env:HF_TOKEN = 'your-hf-token'")
	}
	if c.Endpoint == "" {
		return errors.New("HF_ENDPOINT_URL environment variable is not set; deploy the model at https://endpoints.huggingface.co/ and set it in run.bat or via: $env:HF_ENDPOINT_URL = 'https://your-endpoint.endpoints.huggingface.cloud'")
	}
	return nil
}

// ImagePath is the working location of the anonymized capture.
func (c Config) ImagePath() string { return filepath.Join(c.OutputDir, imageFile) }

// ReportPath is the cleaned findings file.
func (c Config) ReportPath() string { return filepath.Join(c.OutputDir, reportFile) }

// LogPath is the append-only workflow log.
func (c Config) LogPath() string { return filepath.Join(c.OutputDir, logFile) }

// RawOutputPath is the append-only raw model output audit file.
func (c Config) RawOutputPath() string { return filepath.Join(c.OutputDir, rawOutputFile) }

// PIDPath is the single-instance guard file.
func (c Config) PIDPath() string { return filepath.Join(c.OutputDir, pidFile) }

// CapturesDir is the DICOM secondary-capture archive directory.
func (c Config) CapturesDir() string { return filepath.Join(c.OutputDir, capturesDir) }
