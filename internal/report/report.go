// Package report persists the workflow's artifacts: the cleaned findings
// file, the raw model output audit log and the DICOM capture archive.
package report

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// rawBanner separates entries in raw_output.txt.
var rawBanner = strings.Repeat("=", 60)

// WriteFindings replaces the report file with the cleaned findings.
func WriteFindings(path, findings string) error {
	if err := os.WriteFile(path, []byte(findings), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// AppendRaw appends one model response to the raw output file, exactly as
// returned and before any cleanup, under a timestamped banner. The file
// answers "what did the model actually say" when a report looks wrong.
func AppendRaw(path, raw string, now time.Time) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open raw output: %w", err)
	}
	_, err = fmt.Fprintf(f, "\n%s\n[%s]\n%s\n%s\n", rawBanner, now.Format("2006-01-02 15:04:05"), rawBanner, raw)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("append raw output: %w", err)
	}
	return nil
}
