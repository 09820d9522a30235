package ris

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/johnsonhungm/Rad-bull/internal/retry"
	"github.com/johnsonhungm/Rad-bull/internal/uiauto"
	"github.com/johnsonhungm/Rad-bull/internal/worklog"
)

// ExtractImage waits for the PACS viewer to open the selected study,
// switches the display to its anonymized mode and captures the image off
// the clipboard. The viewer title carries patient identifiers, so it is
// logged to the console only and never written to the log file.
func (c *Controller) ExtractImage(ctx context.Context) (image.Image, error) {
	viewer, err := c.findViewer(ctx)
	if err != nil {
		return nil, err
	}
	c.Log.Info("Found PACS: "+viewer.Title(), worklog.ConsoleOnly())
	c.Log.Info("Found PACS viewer window")

	if err := viewer.Focus(); err != nil {
		c.Log.Warn("[WARN] Could not focus PACS viewer: " + err.Error())
	}
	if err := c.sleep(ctx, c.Tables.Timing.FocusSettle); err != nil {
		return nil, err
	}
	if err := c.Driver.Clipboard.Clear(); err != nil {
		c.Log.Warn("[WARN] Could not clear clipboard: " + err.Error())
	}
	if err := viewer.Focus(); err != nil {
		c.Log.Warn("[WARN] Could not refocus PACS viewer: " + err.Error())
	}
	if err := c.sleep(ctx, c.Tables.Timing.FocusSettle); err != nil {
		return nil, err
	}

	c.Log.Info("Anonymizing viewer display (Ctrl+I)...")
	if err := c.Driver.Input.SendKeys("^i", 0); err != nil {
		return nil, fmt.Errorf("send anonymize shortcut: %w", err)
	}
	if err := c.sleep(ctx, c.Tables.Timing.AnonymizeWait); err != nil {
		return nil, err
	}

	img, err := c.copyImage(ctx, viewer)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	c.Log.Info(fmt.Sprintf("[OK] Image captured (%dx%d px)", b.Dx(), b.Dy()))
	return img, nil
}

// findViewer polls the desktop for the PACS viewer window. The viewer is
// recognized by its title prefix; windows of the RIS itself share the
// prefix and are excluded by a title fragment.
func (c *Controller) findViewer(ctx context.Context) (uiauto.Window, error) {
	layout := c.Tables.Layout
	var viewer uiauto.Window
	pollErr := retry.Poll(c.Tables.Timing.ViewerPollAttempts, c.Tables.Timing.ViewerPollInterval.Std(), func() bool {
		wins, err := c.Driver.Desktop.Windows()
		if err != nil {
			return false
		}
		for _, w := range wins {
			title := w.Title()
			if !w.Visible() || !strings.HasPrefix(title, layout.ViewerTitlePrefix) {
				continue
			}
			if layout.ViewerTitleExclude != "" && strings.Contains(title, layout.ViewerTitleExclude) {
				continue
			}
			viewer = w
			return true
		}
		return false
	})
	if pollErr != nil {
		return nil, fmt.Errorf("PACS viewer did not open: %w", uiauto.ErrWindowNotFound)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return viewer, nil
}

// copyImage sends Ctrl+C to the viewer and reads the capture back from
// the clipboard, retrying because the viewer fills the clipboard
// asynchronously after the shortcut.
func (c *Controller) copyImage(ctx context.Context, viewer uiauto.Window) (image.Image, error) {
	attempts := c.Tables.Timing.CopyAttempts
	var img image.Image
	err := retry.Do(attempts, c.Tables.Timing.CopyRetryDelay.Std(), func(attempt int) error {
		if err := viewer.Focus(); err != nil {
			c.Log.Warn("[WARN] Could not focus PACS viewer: " + err.Error())
		}
		if err := c.sleep(ctx, c.Tables.Timing.CopyFocusSettle); err != nil {
			return err
		}
		if err := c.Driver.Input.SendKeys("^c", 0); err != nil {
			return fmt.Errorf("send copy shortcut: %w", err)
		}
		if err := c.sleep(ctx, c.Tables.Timing.CopyWait); err != nil {
			return err
		}
		got, err := c.Driver.Clipboard.ReadImage()
		if err != nil {
			c.Log.Info(fmt.Sprintf("Clipboard empty, retrying (%d/%d)...", attempt, attempts))
			return err
		}
		img = got
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("no image on clipboard after %d attempts: %w", attempts, uiauto.ErrClipboardEmpty)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return img, nil
}
