// Package uiauto abstracts the desktop automation surface the workflow
// drives: top-level window discovery, child control access, keyboard and
// mouse injection, and the image clipboard. The RIS controllers only ever
// talk to these interfaces; the Win32 backend implements them on Windows
// and uiautotest provides a scriptable fake for everything else.
//
// The host application is a black box. Controls are reached by class-name
// substring, by window text, by WinForms automation id, or as a last resort
// by screen coordinates, and any of those can silently stop matching when
// the hospital ships a new build. Nothing here pretends otherwise.
package uiauto

import (
	"errors"
	"image"
	"regexp"
	"time"
)

var (
	// ErrWindowNotFound reports that no top-level window matched.
	ErrWindowNotFound = errors.New("window not found")
	// ErrControlNotFound reports that a child control lookup failed.
	ErrControlNotFound = errors.New("control not found")
	// ErrClipboardEmpty reports that the clipboard held no image data.
	ErrClipboardEmpty = errors.New("clipboard holds no image")
)

// Point is a position in screen coordinates.
type Point struct {
	X, Y int
}

// Rect is a window or control rectangle in screen coordinates.
type Rect struct {
	Left, Top, Right, Bottom int
}

// Width returns the rectangle width in pixels.
func (r Rect) Width() int { return r.Right - r.Left }

// Height returns the rectangle height in pixels.
func (r Rect) Height() int { return r.Bottom - r.Top }

// Center returns the midpoint of the rectangle.
func (r Rect) Center() Point {
	return Point{X: (r.Left + r.Right) / 2, Y: (r.Top + r.Bottom) / 2}
}

// Offset returns the point dx,dy pixels from the rectangle origin.
func (r Rect) Offset(dx, dy int) Point {
	return Point{X: r.Left + dx, Y: r.Top + dy}
}

// Desktop enumerates and locates top-level windows.
type Desktop interface {
	// Windows lists the currently visible top-level windows.
	Windows() ([]Window, error)
	// WindowMatching returns the first top-level window whose title matches
	// the pattern, or ErrWindowNotFound.
	WindowMatching(title *regexp.Regexp) (Window, error)
}

// Window is a top-level window of the host application.
type Window interface {
	// Title returns the current window text.
	Title() string
	// Visible reports whether the window is shown on screen.
	Visible() bool
	// Focus restores the window and brings it to the foreground.
	Focus() error
	// Rect returns the window rectangle in screen coordinates.
	Rect() (Rect, error)
	// Children lists the immediate child controls.
	Children() ([]Control, error)
	// Descendants lists every control below the window, depth-first.
	Descendants() ([]Control, error)
	// ControlByID locates a descendant by its automation id (the WinForms
	// control name), returning ErrControlNotFound when absent.
	ControlByID(id string) (Control, error)
	// TypeKeys focuses the window and sends a key sequence to it.
	TypeKeys(seq string, pause time.Duration) error
}

// Control is a child control (combo box, date picker, button, text box).
type Control interface {
	// Text returns the control's current window text.
	Text() string
	// ClassName returns the Win32 class name.
	ClassName() string
	// AutomationID returns the WinForms control name, if exposed.
	AutomationID() string
	// Visible reports whether the control is shown.
	Visible() bool
	// Rect returns the control rectangle in screen coordinates.
	Rect() (Rect, error)
	// Click moves the real cursor to the control's center and clicks.
	Click() error
	// TypeKeys focuses the control and sends a key sequence.
	TypeKeys(seq string, pause time.Duration) error
	// Select picks the named option from a combo box list.
	Select(option string) error
}

// Input injects keyboard and mouse events at the desktop level. Key
// sequences go to whichever window currently has the focus, exactly like an
// operator at the keyboard.
type Input interface {
	// SendKeys sends a key sequence, pausing pause between keystrokes.
	SendKeys(seq string, pause time.Duration) error
	// Click moves the cursor to p and performs a single left click.
	Click(p Point) error
	// DoubleClick moves the cursor to p and performs a double left click.
	DoubleClick(p Point) error
}

// Clipboard is the system clipboard, used as the only viable image channel
// out of the PACS viewer.
type Clipboard interface {
	// Clear empties the clipboard so a stale image cannot be mistaken for
	// the current capture.
	Clear() error
	// ReadImage decodes the clipboard bitmap, or returns ErrClipboardEmpty.
	ReadImage() (image.Image, error)
}

// Driver bundles the automation surfaces a controller needs.
type Driver struct {
	Desktop   Desktop
	Input     Input
	Clipboard Clipboard
}
