// Package ris drives the hospital RIS main window and the PACS viewer
// through one reporting cycle: search and open a study, capture the
// anonymized image, type the findings back in.
//
// Every control identifier, window-title pattern and coordinate offset in
// here describes a specific RIS build the hospital runs. None of it is
// guaranteed to survive a host upgrade; the layout table exists so the
// inevitable chase after a new build is a YAML edit, not a rebuild.
package ris

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that YAML-decodes from strings like "300ms"
// or "2s".
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("bad duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// ComboSetting maps a combo box, identified by its current text, to the
// value it should be set to.
type ComboSetting struct {
	Current string `yaml:"current"`
	Desired string `yaml:"desired"`
}

// Offset is a click position relative to a window or control origin.
type Offset struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

// Layout names every hook the controllers use to find their way around the
// RIS build.
type Layout struct {
	MainWindowTitle    string         `yaml:"main_window_title"`
	ViewerTitlePrefix  string         `yaml:"viewer_title_prefix"`
	ViewerTitleExclude string         `yaml:"viewer_title_exclude"`
	DialogTitle        string         `yaml:"dialog_title"`
	DialogDismissKeys  string         `yaml:"dialog_dismiss_keys"`
	ComboClass         string         `yaml:"combo_class"`
	DatePickerClass    string         `yaml:"date_picker_class"`
	ComboSettings      []ComboSetting `yaml:"combo_settings"`
	PhysicianAllValues []string       `yaml:"physician_all_values"`
	ExamPartMatchers   []string       `yaml:"exam_part_matchers"`
	ExamPartCode       string         `yaml:"exam_part_code"`
	SearchButtonID     string         `yaml:"search_button_id"`
	SearchFallback     Offset         `yaml:"search_fallback"`
	GridID             string         `yaml:"grid_id"`
	GridFirstRow       Offset         `yaml:"grid_first_row"`
	FindingsBoxID      string         `yaml:"findings_box_id"`
	DateYearClickX     int            `yaml:"date_year_click_x"`
}

// Timing holds every wait the controllers take. Defaults are tuned against
// the production RIS; tests shrink them to keep suites fast.
type Timing struct {
	ComboSettle        Duration `yaml:"combo_settle"`
	DateKeyPause       Duration `yaml:"date_key_pause"`
	DateFieldSettle    Duration `yaml:"date_field_settle"`
	DateClickSettle    Duration `yaml:"date_click_settle"`
	DateConfirmSettle  Duration `yaml:"date_confirm_settle"`
	DateRetryDelay     Duration `yaml:"date_retry_delay"`
	DateAttempts       int      `yaml:"date_attempts"`
	DialogPollAttempts int      `yaml:"dialog_poll_attempts"`
	DialogPollInterval Duration `yaml:"dialog_poll_interval"`
	SearchResultsWait  Duration `yaml:"search_results_wait"`
	GridPollAttempts   int      `yaml:"grid_poll_attempts"`
	GridPollInterval   Duration `yaml:"grid_poll_interval"`
	ViewerPollAttempts int      `yaml:"viewer_poll_attempts"`
	ViewerPollInterval Duration `yaml:"viewer_poll_interval"`
	FocusSettle        Duration `yaml:"focus_settle"`
	AnonymizeWait      Duration `yaml:"anonymize_wait"`
	CopyAttempts       int      `yaml:"copy_attempts"`
	CopyFocusSettle    Duration `yaml:"copy_focus_settle"`
	CopyWait           Duration `yaml:"copy_wait"`
	CopyRetryDelay     Duration `yaml:"copy_retry_delay"`
	EditorWait         Duration `yaml:"editor_wait"`
	EditorExtraWait    Duration `yaml:"editor_extra_wait"`
	EntryClickSettle   Duration `yaml:"entry_click_settle"`
	EntryCaretSettle   Duration `yaml:"entry_caret_settle"`
	EntryKeyPause      Duration `yaml:"entry_key_pause"`
	PageTurnWait       Duration `yaml:"page_turn_wait"`
	ViewerRefreshWait  Duration `yaml:"viewer_refresh_wait"`
}

// Tables bundles layout and timing, the unit the YAML overlay applies to.
type Tables struct {
	Layout Layout `yaml:"layout"`
	Timing Timing `yaml:"timing"`
}

// DefaultTables returns the built-in tables for the hospital's current RIS
// build.
func DefaultTables() Tables {
	return Tables{
		Layout: Layout{
			MainWindowTitle:    `.*放射線資訊管理系統.*主系統.*`,
			ViewerTitlePrefix:  "[總院]",
			ViewerTitleExclude: "放射線",
			DialogTitle:        `.*kReport.*`,
			DialogDismissKeys:  "%y",
			ComboClass:         "COMBOBOX",
			DatePickerClass:    "DateTimePick",
			ComboSettings: []ComboSetting{
				{Current: "所有類別", Desired: "一般攝影"},
				{Current: "所有檢查地", Desired: "台大總院"},
			},
			PhysicianAllValues: []string{"所有報告醫師", "所有撰打住院醫師", "所有執行住院醫師"},
			ExamPartMatchers:   []string{"檢查部位", "32001", "Chest"},
			ExamPartCode:       "32001CXM",
			SearchButtonID:     "cmdSearch",
			SearchFallback:     Offset{X: 910, Y: 204},
			GridID:             "DataGridView1",
			GridFirstRow:       Offset{X: 50, Y: 50},
			FindingsBoxID:      "EXAM",
			DateYearClickX:     30,
		},
		Timing: Timing{
			ComboSettle:        Duration(300 * time.Millisecond),
			DateKeyPause:       Duration(100 * time.Millisecond),
			DateFieldSettle:    Duration(300 * time.Millisecond),
			DateClickSettle:    Duration(500 * time.Millisecond),
			DateConfirmSettle:  Duration(500 * time.Millisecond),
			DateRetryDelay:     Duration(500 * time.Millisecond),
			DateAttempts:       3,
			DialogPollAttempts: 10,
			DialogPollInterval: Duration(500 * time.Millisecond),
			SearchResultsWait:  Duration(2 * time.Second),
			GridPollAttempts:   20,
			GridPollInterval:   Duration(500 * time.Millisecond),
			ViewerPollAttempts: 15,
			ViewerPollInterval: Duration(time.Second),
			FocusSettle:        Duration(500 * time.Millisecond),
			AnonymizeWait:      Duration(2 * time.Second),
			CopyAttempts:       3,
			CopyFocusSettle:    Duration(300 * time.Millisecond),
			CopyWait:           Duration(2 * time.Second),
			CopyRetryDelay:     Duration(time.Second),
			EditorWait:         Duration(2 * time.Second),
			EditorExtraWait:    Duration(3 * time.Second),
			EntryClickSettle:   Duration(300 * time.Millisecond),
			EntryCaretSettle:   Duration(200 * time.Millisecond),
			EntryKeyPause:      Duration(50 * time.Millisecond),
			PageTurnWait:       Duration(3 * time.Second),
			ViewerRefreshWait:  Duration(2 * time.Second),
		},
	}
}

// FastTables returns tables with every wait shrunk to a microsecond scale.
// Only tests use it.
func FastTables() Tables {
	t := DefaultTables()
	shrink := func(d *Duration) { *d = Duration(time.Microsecond) }
	for _, d := range []*Duration{
		&t.Timing.ComboSettle, &t.Timing.DateKeyPause, &t.Timing.DateFieldSettle,
		&t.Timing.DateClickSettle, &t.Timing.DateConfirmSettle, &t.Timing.DateRetryDelay,
		&t.Timing.DialogPollInterval, &t.Timing.SearchResultsWait, &t.Timing.GridPollInterval,
		&t.Timing.ViewerPollInterval, &t.Timing.FocusSettle, &t.Timing.AnonymizeWait,
		&t.Timing.CopyFocusSettle, &t.Timing.CopyWait, &t.Timing.CopyRetryDelay,
		&t.Timing.EditorWait, &t.Timing.EditorExtraWait, &t.Timing.EntryClickSettle,
		&t.Timing.EntryCaretSettle, &t.Timing.EntryKeyPause, &t.Timing.PageTurnWait,
		&t.Timing.ViewerRefreshWait,
	} {
		shrink(d)
	}
	return t
}

// ApplyOverlay merges a YAML overlay file into the tables. Keys absent
// from the file keep their current values, so an overlay only needs the
// fields that changed.
func (t *Tables) ApplyOverlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read layout overlay: %w", err)
	}
	if err := yaml.Unmarshal(data, t); err != nil {
		return fmt.Errorf("parse layout overlay %s: %w", path, err)
	}
	return nil
}
