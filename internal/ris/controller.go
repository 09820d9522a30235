package ris

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/johnsonhungm/Rad-bull/internal/uiauto"
)

// Controller drives the RIS and the PACS viewer through one report cycle.
// It never aborts on a missing optional control; the host GUI shifts
// between builds and a best-effort pass over the search screen beats a
// hard stop. Steps that make the rest of the cycle impossible, like the
// results grid never appearing, do return errors.
type Controller struct {
	Driver uiauto.Driver
	Tables Tables
	Log    *slog.Logger
}

// New returns a controller over the given driver. A nil logger discards.
func New(driver uiauto.Driver, tables Tables, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Controller{Driver: driver, Tables: tables, Log: log}
}

// mainWindow finds the RIS main window by its configured title pattern.
func (c *Controller) mainWindow() (uiauto.Window, error) {
	re, err := regexp.Compile(c.Tables.Layout.MainWindowTitle)
	if err != nil {
		return nil, fmt.Errorf("main window title pattern: %w", err)
	}
	win, err := c.Driver.Desktop.WindowMatching(re)
	if err != nil {
		return nil, fmt.Errorf("RIS main window: %w", err)
	}
	return win, nil
}

func (c *Controller) sleep(ctx context.Context, d Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d.Std())
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// classMatches reports whether a control's class name contains the
// configured fragment. The host reports decorated WinForms class names
// like "WindowsForms10.COMBOBOX.app.0.1a2b3c", so substring is the only
// stable test.
func classMatches(ctrl uiauto.Control, fragment string) bool {
	return strings.Contains(ctrl.ClassName(), fragment)
}

// AdvanceViewer presses F4 so the RIS moves to the next study, then waits
// out the page turn and the viewer refresh.
func (c *Controller) AdvanceViewer(ctx context.Context) error {
	c.Log.Info("Pressing F4 to move to the next report...")
	if err := c.Driver.Input.SendKeys("{F4}", 0); err != nil {
		return fmt.Errorf("press F4: %w", err)
	}
	if err := c.sleep(ctx, c.Tables.Timing.PageTurnWait); err != nil {
		return err
	}
	c.Log.Info("Waiting for PACS viewer to update...")
	return c.sleep(ctx, c.Tables.Timing.ViewerRefreshWait)
}
