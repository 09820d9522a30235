package ris

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/johnsonhungm/Rad-bull/internal/uiauto"
	"github.com/johnsonhungm/Rad-bull/internal/worklog"
)

// EnterReport appends the findings to the report editor of the study the
// RIS currently shows. The cursor is moved to the end of the existing
// text first, so whatever the editor pre-fills survives. Empty findings
// are a warning and a no-op.
func (c *Controller) EnterReport(ctx context.Context, findings string) error {
	c.Log.Info(fmt.Sprintf("Entering findings (%d chars)", utf8.RuneCountInString(findings)))
	if findings == "" {
		c.Log.Warn("[WARN] WARNING: Findings are empty!")
		return nil
	}
	c.Log.Info("Preview: "+worklog.Sanitize(findings, 100), worklog.ConsoleOnly())

	if err := c.sleep(ctx, c.Tables.Timing.EditorWait); err != nil {
		return err
	}
	main, err := c.mainWindow()
	if err != nil {
		return err
	}
	if c.searchScreenStillVisible(main) {
		c.Log.Warn("[WARN] Still on search screen (date pickers visible), waiting...")
		if err := c.sleep(ctx, c.Tables.Timing.EditorExtraWait); err != nil {
			return err
		}
	}
	if err := main.Focus(); err != nil {
		c.Log.Warn("Could not focus RIS main window: " + err.Error())
	}
	if err := c.sleep(ctx, c.Tables.Timing.FocusSettle); err != nil {
		return err
	}

	box, err := main.ControlByID(c.Tables.Layout.FindingsBoxID)
	if err != nil {
		c.Log.Warn(fmt.Sprintf("[FAIL] Findings box %s not found", c.Tables.Layout.FindingsBoxID))
		return fmt.Errorf("findings box %s: %w", c.Tables.Layout.FindingsBoxID, uiauto.ErrControlNotFound)
	}
	if err := box.Click(); err != nil {
		return fmt.Errorf("click findings box: %w", err)
	}
	if err := c.sleep(ctx, c.Tables.Timing.EntryClickSettle); err != nil {
		return err
	}
	if err := box.TypeKeys("^{END}", 0); err != nil {
		return fmt.Errorf("move cursor to end of report: %w", err)
	}
	if err := c.sleep(ctx, c.Tables.Timing.EntryCaretSettle); err != nil {
		return err
	}
	seq := "{ENTER}" + uiauto.EscapeText(findings)
	if err := box.TypeKeys(seq, c.Tables.Timing.EntryKeyPause.Std()); err != nil {
		return fmt.Errorf("type findings: %w", err)
	}
	c.Log.Info("[OK] Findings entered into report editor")
	return nil
}

// searchScreenStillVisible reports whether the main window still shows
// the search screen. The date pickers only exist there, so a visible one
// means the double-clicked study has not opened yet.
func (c *Controller) searchScreenStillVisible(main uiauto.Window) bool {
	all, err := main.Descendants()
	if err != nil {
		return false
	}
	for _, ctrl := range all {
		if classMatches(ctrl, c.Tables.Layout.DatePickerClass) && ctrl.Visible() {
			return true
		}
	}
	return false
}
