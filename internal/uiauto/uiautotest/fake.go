// Package uiautotest provides an in-memory uiauto backend for tests.
// Windows, controls, input and the clipboard are plain structs the test
// arranges up front; hooks let a scenario react to clicks and keystrokes
// the way the live RIS would.
package uiautotest

import (
	"fmt"
	"image"
	"regexp"
	"time"

	"github.com/johnsonhungm/Rad-bull/internal/uiauto"
)

// Desktop is a fake top-level window list.
type Desktop struct {
	Wins []*Window
}

// Add appends a window and returns it for further setup.
func (d *Desktop) Add(w *Window) *Window {
	d.Wins = append(d.Wins, w)
	return w
}

func (d *Desktop) Windows() ([]uiauto.Window, error) {
	out := make([]uiauto.Window, 0, len(d.Wins))
	for _, w := range d.Wins {
		out = append(out, w)
	}
	return out, nil
}

func (d *Desktop) WindowMatching(title *regexp.Regexp) (uiauto.Window, error) {
	for _, w := range d.Wins {
		if title.MatchString(w.TitleText) {
			return w, nil
		}
	}
	return nil, fmt.Errorf("%w: no fake window matches %q", uiauto.ErrWindowNotFound, title)
}

// Window is a fake top-level window holding a flat control list.
type Window struct {
	TitleText string
	Hidden    bool
	Bounds    uiauto.Rect
	Ctrls     []*Control

	FocusCount int
	FocusErr   error
	Typed      []string
}

// AddControl appends a control and returns it for further setup.
func (w *Window) AddControl(c *Control) *Control {
	w.Ctrls = append(w.Ctrls, c)
	return c
}

func (w *Window) Title() string { return w.TitleText }
func (w *Window) Visible() bool { return !w.Hidden }

func (w *Window) Focus() error {
	w.FocusCount++
	return w.FocusErr
}

func (w *Window) Rect() (uiauto.Rect, error) { return w.Bounds, nil }

func (w *Window) Children() ([]uiauto.Control, error) { return w.controls(), nil }

// Descendants is the same flat list as Children; the fake has no nesting.
func (w *Window) Descendants() ([]uiauto.Control, error) { return w.controls(), nil }

func (w *Window) controls() []uiauto.Control {
	out := make([]uiauto.Control, 0, len(w.Ctrls))
	for _, c := range w.Ctrls {
		out = append(out, c)
	}
	return out
}

func (w *Window) ControlByID(id string) (uiauto.Control, error) {
	for _, c := range w.Ctrls {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: no fake control named %q", uiauto.ErrControlNotFound, id)
}

func (w *Window) TypeKeys(seq string, pause time.Duration) error {
	w.Typed = append(w.Typed, seq)
	return nil
}

// Control is a fake child control. The hook fields run after the call is
// recorded and may mutate the fake to mimic the application reacting.
type Control struct {
	TextValue string
	Class     string
	ID        string
	Hidden    bool
	Bounds    uiauto.Rect

	ClickCount int
	Typed      []string
	Selections []string

	ClickFunc  func()
	TypeFunc   func(seq string)
	SelectFunc func(option string) error
}

func (c *Control) Text() string               { return c.TextValue }
func (c *Control) ClassName() string          { return c.Class }
func (c *Control) AutomationID() string       { return c.ID }
func (c *Control) Visible() bool              { return !c.Hidden }
func (c *Control) Rect() (uiauto.Rect, error) { return c.Bounds, nil }

func (c *Control) Click() error {
	c.ClickCount++
	if c.ClickFunc != nil {
		c.ClickFunc()
	}
	return nil
}

func (c *Control) TypeKeys(seq string, pause time.Duration) error {
	c.Typed = append(c.Typed, seq)
	if c.TypeFunc != nil {
		c.TypeFunc(seq)
	}
	return nil
}

func (c *Control) Select(option string) error {
	c.Selections = append(c.Selections, option)
	if c.SelectFunc != nil {
		return c.SelectFunc(option)
	}
	c.TextValue = option
	return nil
}

// Input records desktop-level injection.
type Input struct {
	Sent         []string
	Clicks       []uiauto.Point
	DoubleClicks []uiauto.Point

	KeysFunc func(seq string)
}

func (in *Input) SendKeys(seq string, pause time.Duration) error {
	in.Sent = append(in.Sent, seq)
	if in.KeysFunc != nil {
		in.KeysFunc(seq)
	}
	return nil
}

func (in *Input) Click(p uiauto.Point) error {
	in.Clicks = append(in.Clicks, p)
	return nil
}

func (in *Input) DoubleClick(p uiauto.Point) error {
	in.DoubleClicks = append(in.DoubleClicks, p)
	return nil
}

// Clipboard holds at most one image. ReadFunc, when set, replaces the
// default read behavior entirely.
type Clipboard struct {
	Img        image.Image
	ClearCount int

	ReadFunc func() (image.Image, error)
}

// SetImage puts an image on the fake clipboard.
func (c *Clipboard) SetImage(img image.Image) { c.Img = img }

func (c *Clipboard) Clear() error {
	c.ClearCount++
	c.Img = nil
	return nil
}

func (c *Clipboard) ReadImage() (image.Image, error) {
	if c.ReadFunc != nil {
		return c.ReadFunc()
	}
	if c.Img == nil {
		return nil, uiauto.ErrClipboardEmpty
	}
	return c.Img, nil
}

// NewDriver bundles fakes into a uiauto.Driver. Nil parts get fresh
// zero-value fakes.
func NewDriver(d *Desktop, in *Input, cb *Clipboard) uiauto.Driver {
	if d == nil {
		d = &Desktop{}
	}
	if in == nil {
		in = &Input{}
	}
	if cb == nil {
		cb = &Clipboard{}
	}
	return uiauto.Driver{Desktop: d, Input: in, Clipboard: cb}
}
