package ris

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/johnsonhungm/Rad-bull/internal/retry"
	"github.com/johnsonhungm/Rad-bull/internal/uiauto"
)

// comboBox pairs a combo control with the text it showed when the search
// screen was first scanned. Filters are matched on that initial text, so
// changing one combo never shifts how the others are found.
type comboBox struct {
	initialText string
	ctrl        uiauto.Control
}

// SearchAndOpen fills in the search screen for the given study date, runs
// the search and opens the first result. Optional filters that cannot be
// set are logged and skipped; the study list never appearing is fatal.
func (c *Controller) SearchAndOpen(ctx context.Context, date time.Time) error {
	main, err := c.mainWindow()
	if err != nil {
		return err
	}
	if err := main.Focus(); err != nil {
		c.Log.Warn("Could not focus RIS main window: " + err.Error())
	}
	if err := c.sleep(ctx, c.Tables.Timing.FocusSettle); err != nil {
		return err
	}

	combos, pickers, err := c.scanSearchScreen(main)
	if err != nil {
		return err
	}
	c.Log.Info(fmt.Sprintf("Search screen scanned: %d combo boxes, %d date pickers", len(combos), len(pickers)))

	if err := c.applyComboSettings(ctx, combos); err != nil {
		return err
	}
	if err := c.resetPhysicianFilters(ctx, combos); err != nil {
		return err
	}
	if err := c.selectExamPart(ctx, main, combos); err != nil {
		return err
	}
	if err := c.setStudyDates(ctx, pickers, date); err != nil {
		return err
	}
	if err := c.clickSearch(main); err != nil {
		return err
	}
	if err := c.dismissConfirmDialog(ctx); err != nil {
		return err
	}
	c.Log.Info("Waiting for search results...")
	if err := c.sleep(ctx, c.Tables.Timing.SearchResultsWait); err != nil {
		return err
	}
	return c.openFirstResult(ctx, main)
}

// scanSearchScreen walks the main window's direct children for combo
// boxes and date pickers. Some RIS builds nest the pickers one container
// deeper, so an empty result falls back to a full descendant walk.
func (c *Controller) scanSearchScreen(main uiauto.Window) ([]comboBox, []uiauto.Control, error) {
	children, err := main.Children()
	if err != nil {
		return nil, nil, fmt.Errorf("list search screen controls: %w", err)
	}
	var combos []comboBox
	var pickers []uiauto.Control
	for _, child := range children {
		if classMatches(child, c.Tables.Layout.ComboClass) {
			if text := child.Text(); text != "" {
				combos = append(combos, comboBox{initialText: text, ctrl: child})
			}
		}
		if classMatches(child, c.Tables.Layout.DatePickerClass) {
			pickers = append(pickers, child)
		}
	}
	if len(pickers) == 0 {
		all, err := main.Descendants()
		if err != nil {
			return nil, nil, fmt.Errorf("list search screen descendants: %w", err)
		}
		for _, ctrl := range all {
			if classMatches(ctrl, c.Tables.Layout.DatePickerClass) {
				pickers = append(pickers, ctrl)
			}
		}
	}
	return combos, pickers, nil
}

// applyComboSettings moves each configured combo from its known current
// value to the desired one. A combo that is missing or refuses the value
// is logged and left alone.
func (c *Controller) applyComboSettings(ctx context.Context, combos []comboBox) error {
	c.Log.Info("Setting search filters...")
	for _, setting := range c.Tables.Layout.ComboSettings {
		var target uiauto.Control
		for _, combo := range combos {
			if combo.initialText == setting.Current {
				target = combo.ctrl
				break
			}
		}
		if target == nil {
			c.Log.Warn(fmt.Sprintf("[WARN] Combo showing %q not found, skipping", setting.Current))
			continue
		}
		if err := target.Select(setting.Desired); err != nil {
			c.Log.Warn(fmt.Sprintf("[WARN] Could not set %q to %q: %v", setting.Current, setting.Desired, err))
			continue
		}
		if err := target.TypeKeys("{TAB}", 0); err != nil {
			c.Log.Warn("[WARN] Could not confirm combo selection: " + err.Error())
		}
		if err := c.sleep(ctx, c.Tables.Timing.ComboSettle); err != nil {
			return err
		}
		c.Log.Info(fmt.Sprintf("[OK] Set %q to %q", setting.Current, setting.Desired))
	}
	return nil
}

// resetPhysicianFilters clears leftover per-physician filters. A combo
// whose initial text already contains 所有 ("all") is untouched; the rest
// are walked through the known "all" values until one sticks.
func (c *Controller) resetPhysicianFilters(ctx context.Context, combos []comboBox) error {
	for _, combo := range combos {
		if strings.Contains(combo.initialText, "所有") {
			continue
		}
		reset := false
		for _, allValue := range c.Tables.Layout.PhysicianAllValues {
			if err := combo.ctrl.Select(allValue); err != nil {
				continue
			}
			if combo.ctrl.Text() != allValue {
				continue
			}
			if err := combo.ctrl.TypeKeys("{TAB}", 0); err != nil {
				c.Log.Warn("[WARN] Could not confirm physician reset: " + err.Error())
			}
			if err := c.sleep(ctx, c.Tables.Timing.ComboSettle); err != nil {
				return err
			}
			c.Log.Info(fmt.Sprintf("[OK] Reset physician filter %q to %q", combo.initialText, allValue))
			reset = true
			break
		}
		if !reset {
			c.Log.Warn(fmt.Sprintf("[WARN] Could not reset combo %q to an all-physicians value", combo.initialText))
		}
	}
	return nil
}

// selectExamPart finds the exam-part combo and types the chest X-ray code
// into it. The combo autocompletes, so the code is followed by a DOWN to
// pick the suggestion and a TAB to commit it.
func (c *Controller) selectExamPart(ctx context.Context, main uiauto.Window, combos []comboBox) error {
	exam := c.findExamCombo(main, combos)
	if exam == nil {
		c.Log.Warn("[WARN] Exam part combo not found, search will use the current value")
		return nil
	}
	if err := exam.Click(); err != nil {
		c.Log.Warn("[WARN] Could not click exam part combo: " + err.Error())
		return nil
	}
	if err := c.sleep(ctx, c.Tables.Timing.ComboSettle); err != nil {
		return err
	}
	if err := exam.TypeKeys(c.Tables.Layout.ExamPartCode, 0); err != nil {
		c.Log.Warn("[WARN] Could not type exam part code: " + err.Error())
		return nil
	}
	if err := c.sleep(ctx, c.Tables.Timing.ComboSettle); err != nil {
		return err
	}
	for _, seq := range []string{"{DOWN}", "{TAB}"} {
		if err := c.Driver.Input.SendKeys(seq, 0); err != nil {
			return fmt.Errorf("confirm exam part: %w", err)
		}
		if err := c.sleep(ctx, c.Tables.Timing.ComboSettle); err != nil {
			return err
		}
	}
	c.Log.Info(fmt.Sprintf("[OK] Exam part set to %s", c.Tables.Layout.ExamPartCode))
	return nil
}

func (c *Controller) findExamCombo(main uiauto.Window, combos []comboBox) uiauto.Control {
	matches := func(text string) bool {
		for _, m := range c.Tables.Layout.ExamPartMatchers {
			if strings.Contains(text, m) {
				return true
			}
		}
		return false
	}
	for _, combo := range combos {
		if matches(combo.initialText) {
			return combo.ctrl
		}
	}
	all, err := main.Descendants()
	if err != nil {
		return nil
	}
	for _, ctrl := range all {
		if classMatches(ctrl, c.Tables.Layout.ComboClass) && matches(ctrl.Text()) {
			return ctrl
		}
	}
	return nil
}

// setStudyDates types the study date into every date picker on the search
// screen. The picker has year, month and day segments navigated with
// RIGHT; each picker gets a few attempts because the first click
// sometimes lands before the control accepts focus.
func (c *Controller) setStudyDates(ctx context.Context, pickers []uiauto.Control, date time.Time) error {
	if len(pickers) == 0 {
		c.Log.Warn("[WARN] No date pickers found, search will use the current date range")
		return nil
	}
	year, month, day := date.Date()
	expected := fmt.Sprintf("%d/%d/%d", year, int(month), day)
	for i, picker := range pickers {
		attemptErr := retry.Do(c.Tables.Timing.DateAttempts, c.Tables.Timing.DateRetryDelay.Std(), func(int) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := c.typeDate(ctx, picker, year, int(month), day); err != nil {
				return err
			}
			got := picker.Text()
			if !strings.Contains(got, expected) {
				return fmt.Errorf("picker shows %q, want %s", got, expected)
			}
			c.Log.Info(fmt.Sprintf("[OK] Date picker %d set to %s", i+1, got))
			return nil
		})
		if attemptErr != nil {
			if err := ctx.Err(); err != nil {
				return err
			}
			c.Log.Warn(fmt.Sprintf("[WARN] Date picker %d not verified: %v", i+1, attemptErr))
		}
	}
	return nil
}

// typeDate runs one keyboard pass over a picker: click into the year
// segment, type the three segments with RIGHT between them, commit with
// ENTER and leave with TAB.
func (c *Controller) typeDate(ctx context.Context, picker uiauto.Control, year, month, day int) error {
	rect, err := picker.Rect()
	if err != nil {
		return fmt.Errorf("date picker rect: %w", err)
	}
	yearPos := uiauto.Point{X: rect.Left + c.Tables.Layout.DateYearClickX, Y: (rect.Top + rect.Bottom) / 2}
	if err := c.Driver.Input.Click(yearPos); err != nil {
		return fmt.Errorf("click date picker: %w", err)
	}
	if err := c.sleep(ctx, c.Tables.Timing.DateClickSettle); err != nil {
		return err
	}
	steps := []struct {
		seq   string
		pause time.Duration
		wait  Duration
	}{
		{strconv.Itoa(year), c.Tables.Timing.DateKeyPause.Std(), c.Tables.Timing.DateFieldSettle},
		{"{RIGHT}", 0, c.Tables.Timing.DateFieldSettle},
		{strconv.Itoa(month), c.Tables.Timing.DateKeyPause.Std(), c.Tables.Timing.DateFieldSettle},
		{"{RIGHT}", 0, c.Tables.Timing.DateFieldSettle},
		{strconv.Itoa(day), c.Tables.Timing.DateKeyPause.Std(), c.Tables.Timing.DateFieldSettle},
		{"{ENTER}", 0, c.Tables.Timing.DateFieldSettle},
		{"{TAB}", 0, c.Tables.Timing.DateConfirmSettle},
	}
	for _, step := range steps {
		if err := c.Driver.Input.SendKeys(step.seq, step.pause); err != nil {
			return fmt.Errorf("type date: %w", err)
		}
		if err := c.sleep(ctx, step.wait); err != nil {
			return err
		}
	}
	return nil
}

// clickSearch presses the search button, falling back to a fixed offset
// from the window origin when the button is not exposed by automation id.
func (c *Controller) clickSearch(main uiauto.Window) error {
	btn, err := main.ControlByID(c.Tables.Layout.SearchButtonID)
	if err == nil {
		if err := btn.Click(); err != nil {
			return fmt.Errorf("click search button: %w", err)
		}
		c.Log.Info("[OK] Search started")
		return nil
	}
	rect, err := main.Rect()
	if err != nil {
		return fmt.Errorf("main window rect: %w", err)
	}
	fallback := uiauto.Point{
		X: rect.Left + c.Tables.Layout.SearchFallback.X,
		Y: rect.Top + c.Tables.Layout.SearchFallback.Y,
	}
	if err := c.Driver.Input.Click(fallback); err != nil {
		return fmt.Errorf("click search fallback position: %w", err)
	}
	c.Log.Warn("[WARN] Search button not found by id, clicked fallback position")
	return nil
}

// dismissConfirmDialog waits briefly for the report confirmation dialog
// some builds raise after a search and answers it. No dialog showing up
// is the normal case.
func (c *Controller) dismissConfirmDialog(ctx context.Context) error {
	re, err := regexp.Compile(c.Tables.Layout.DialogTitle)
	if err != nil {
		return fmt.Errorf("dialog title pattern: %w", err)
	}
	var dlg uiauto.Window
	pollErr := retry.Poll(c.Tables.Timing.DialogPollAttempts, c.Tables.Timing.DialogPollInterval.Std(), func() bool {
		w, err := c.Driver.Desktop.WindowMatching(re)
		if err != nil || !w.Visible() {
			return false
		}
		dlg = w
		return true
	})
	if pollErr != nil {
		return ctx.Err()
	}
	if err := dlg.Focus(); err != nil {
		c.Log.Warn("[WARN] Could not focus confirmation dialog: " + err.Error())
	}
	if err := c.Driver.Input.SendKeys(c.Tables.Layout.DialogDismissKeys, 0); err != nil {
		return fmt.Errorf("dismiss confirmation dialog: %w", err)
	}
	c.Log.Info("[OK] Confirmation dialog dismissed")
	return ctx.Err()
}

// openFirstResult waits for the results grid and double-clicks its first
// row. The grid never appearing means the search produced nothing to
// work on, which ends the run.
func (c *Controller) openFirstResult(ctx context.Context, main uiauto.Window) error {
	var grid uiauto.Control
	pollErr := retry.Poll(c.Tables.Timing.GridPollAttempts, c.Tables.Timing.GridPollInterval.Std(), func() bool {
		g, err := main.ControlByID(c.Tables.Layout.GridID)
		if err != nil {
			return false
		}
		grid = g
		return true
	})
	if pollErr != nil {
		return fmt.Errorf("results grid %s did not appear: %w", c.Tables.Layout.GridID, uiauto.ErrControlNotFound)
	}
	rect, err := grid.Rect()
	if err != nil {
		return fmt.Errorf("results grid rect: %w", err)
	}
	first := uiauto.Point{
		X: rect.Left + c.Tables.Layout.GridFirstRow.X,
		Y: rect.Top + c.Tables.Layout.GridFirstRow.Y,
	}
	if err := c.Driver.Input.DoubleClick(first); err != nil {
		return fmt.Errorf("open first study: %w", err)
	}
	c.Log.Info("[OK] Opening first study in the results grid...")
	return ctx.Err()
}
