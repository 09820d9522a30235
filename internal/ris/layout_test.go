package ris

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestDefaultTables(t *testing.T) {
	tables := DefaultTables()
	if !strings.Contains(tables.Layout.MainWindowTitle, "主系統") {
		t.Errorf("main window pattern %q does not name the RIS main system", tables.Layout.MainWindowTitle)
	}
	if tables.Layout.ExamPartCode != "32001CXM" {
		t.Errorf("exam part code = %q, want 32001CXM", tables.Layout.ExamPartCode)
	}
	if tables.Layout.SearchFallback != (Offset{X: 910, Y: 204}) {
		t.Errorf("search fallback = %+v, want {910 204}", tables.Layout.SearchFallback)
	}
	if got := tables.Timing.CopyAttempts; got != 3 {
		t.Errorf("copy attempts = %d, want 3", got)
	}
	if got := tables.Timing.ViewerPollAttempts; got != 15 {
		t.Errorf("viewer poll attempts = %d, want 15", got)
	}
	if got := tables.Timing.ViewerPollInterval.Std(); got != time.Second {
		t.Errorf("viewer poll interval = %s, want 1s", got)
	}
}

func TestApplyOverlay_MergesOnlyPresentKeys(t *testing.T) {
	overlay := `
layout:
  search_button_id: btnQuery
  search_fallback: {x: 800, y: 180}
  physician_all_values: ["全部醫師"]
timing:
  copy_wait: 5s
  viewer_poll_attempts: 30
`
	path := filepath.Join(t.TempDir(), "layout.yaml")
	if err := os.WriteFile(path, []byte(overlay), 0o644); err != nil {
		t.Fatal(err)
	}

	tables := DefaultTables()
	if err := tables.ApplyOverlay(path); err != nil {
		t.Fatalf("ApplyOverlay returned error: %v", err)
	}

	if tables.Layout.SearchButtonID != "btnQuery" {
		t.Errorf("search button id = %q, want btnQuery", tables.Layout.SearchButtonID)
	}
	if tables.Layout.SearchFallback != (Offset{X: 800, Y: 180}) {
		t.Errorf("search fallback = %+v, want {800 180}", tables.Layout.SearchFallback)
	}
	if !slices.Equal(tables.Layout.PhysicianAllValues, []string{"全部醫師"}) {
		t.Errorf("physician values = %v, want [全部醫師]", tables.Layout.PhysicianAllValues)
	}
	if got := tables.Timing.CopyWait.Std(); got != 5*time.Second {
		t.Errorf("copy wait = %s, want 5s", got)
	}
	if got := tables.Timing.ViewerPollAttempts; got != 30 {
		t.Errorf("viewer poll attempts = %d, want 30", got)
	}

	// Untouched keys keep their defaults.
	if tables.Layout.GridID != "DataGridView1" {
		t.Errorf("grid id = %q, want DataGridView1", tables.Layout.GridID)
	}
	if got := tables.Timing.ComboSettle.Std(); got != 300*time.Millisecond {
		t.Errorf("combo settle = %s, want 300ms", got)
	}
}

func TestApplyOverlay_RejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.yaml")
	if err := os.WriteFile(path, []byte("timing:\n  copy_wait: fast\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tables := DefaultTables()
	err := tables.ApplyOverlay(path)
	if err == nil || !strings.Contains(err.Error(), "bad duration") {
		t.Fatalf("ApplyOverlay error = %v, want bad duration", err)
	}
}

func TestApplyOverlay_MissingFile(t *testing.T) {
	tables := DefaultTables()
	if err := tables.ApplyOverlay(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("ApplyOverlay succeeded on a missing file")
	}
}
