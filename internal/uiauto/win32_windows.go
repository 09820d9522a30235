//go:build windows

package uiauto

import (
	"fmt"
	"image"
	"regexp"
	"strings"
	"sync"
	"syscall"
	"time"
	"unicode/utf16"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32   = windows.NewLazySystemDLL("user32.dll")
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procEnumWindows              = user32.NewProc("EnumWindows")
	procEnumChildWindows         = user32.NewProc("EnumChildWindows")
	procGetParent                = user32.NewProc("GetParent")
	procGetWindowTextW           = user32.NewProc("GetWindowTextW")
	procGetWindowTextLengthW     = user32.NewProc("GetWindowTextLengthW")
	procGetClassNameW            = user32.NewProc("GetClassNameW")
	procGetDlgCtrlID             = user32.NewProc("GetDlgCtrlID")
	procIsWindowVisible          = user32.NewProc("IsWindowVisible")
	procGetWindowRect            = user32.NewProc("GetWindowRect")
	procSetForegroundWindow      = user32.NewProc("SetForegroundWindow")
	procGetForegroundWindow      = user32.NewProc("GetForegroundWindow")
	procShowWindow               = user32.NewProc("ShowWindow")
	procAttachThreadInput        = user32.NewProc("AttachThreadInput")
	procGetWindowThreadProcessId = user32.NewProc("GetWindowThreadProcessId")
	procSendMessageW             = user32.NewProc("SendMessageW")
	procSendMessageTimeoutW      = user32.NewProc("SendMessageTimeoutW")
	procRegisterWindowMessageW   = user32.NewProc("RegisterWindowMessageW")
	procSetCursorPos             = user32.NewProc("SetCursorPos")
	procSendInput                = user32.NewProc("SendInput")
	procVkKeyScanW               = user32.NewProc("VkKeyScanW")
	procOpenClipboard            = user32.NewProc("OpenClipboard")
	procCloseClipboard           = user32.NewProc("CloseClipboard")
	procEmptyClipboard           = user32.NewProc("EmptyClipboard")
	procGetClipboardData         = user32.NewProc("GetClipboardData")
	procIsClipboardFormatAvail   = user32.NewProc("IsClipboardFormatAvailable")

	procGlobalLock         = kernel32.NewProc("GlobalLock")
	procGlobalUnlock       = kernel32.NewProc("GlobalUnlock")
	procGlobalSize         = kernel32.NewProc("GlobalSize")
	procVirtualAllocEx     = kernel32.NewProc("VirtualAllocEx")
	procVirtualFreeEx      = kernel32.NewProc("VirtualFreeEx")
	procReadProcessMemory  = kernel32.NewProc("ReadProcessMemory")
	procGetCurrentThreadId = kernel32.NewProc("GetCurrentThreadId")
)

const (
	wmGetText       = 0x000D
	wmGetTextLength = 0x000E
	wmCommand       = 0x0111

	cbErr             = ^uintptr(0)
	cbSetCurSel       = 0x014E
	cbFindStringExact = 0x0158
	cbnSelChange      = 1
	cbnSelEndOK       = 9

	swRestore = 9

	smtoAbortIfHung = 0x0002

	cfDIB = 8

	memCommit  = 0x1000
	memReserve = 0x2000
	memRelease = 0x8000
	pageRW     = 0x04

	processVMOperation = 0x0008
	processVMRead      = 0x0010
	processVMWrite     = 0x0020
	processQueryInfo   = 0x0400

	vkShift   = 0x10
	vkControl = 0x11
	vkMenu    = 0x12

	keyEventfKeyUp   = 0x0002
	keyEventfUnicode = 0x0004

	mouseEventfLeftDown = 0x0002
	mouseEventfLeftUp   = 0x0004
)

// WM_GETCONTROLNAME is a registered message WinForms applications answer
// with the designer name of a control, which is the only stable handle the
// RIS exposes for its buttons. The buffer must live in the target process.
var wmGetControlName = registerWindowMessage("WM_GETCONTROLNAME")

func registerWindowMessage(name string) uint32 {
	p, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return 0
	}
	r, _, _ := procRegisterWindowMessageW.Call(uintptr(unsafe.Pointer(p)))
	return uint32(r)
}

// NewDriver returns a Driver backed by the live Win32 desktop.
func NewDriver() (Driver, error) {
	return Driver{
		Desktop:   win32Desktop{},
		Input:     win32Input{},
		Clipboard: win32Clipboard{},
	}, nil
}

// Window enumeration callbacks are registered once; syscall.NewCallback
// allocations are permanent, so per-call registration would eventually
// exhaust the callback table.
var (
	enumMu        sync.Mutex
	enumCollected []uintptr

	enumCallback = syscall.NewCallback(func(hwnd, _ uintptr) uintptr {
		enumCollected = append(enumCollected, hwnd)
		return 1
	})
)

func enumTopLevel() []uintptr {
	enumMu.Lock()
	defer enumMu.Unlock()
	enumCollected = nil
	procEnumWindows.Call(enumCallback, 0)
	out := make([]uintptr, len(enumCollected))
	copy(out, enumCollected)
	return out
}

func enumDescendants(hwnd uintptr) []uintptr {
	enumMu.Lock()
	defer enumMu.Unlock()
	enumCollected = nil
	procEnumChildWindows.Call(hwnd, enumCallback, 0)
	out := make([]uintptr, len(enumCollected))
	copy(out, enumCollected)
	return out
}

type win32Desktop struct{}

func (win32Desktop) Windows() ([]Window, error) {
	var out []Window
	for _, h := range enumTopLevel() {
		w := &win32Window{hwnd: h}
		if w.Visible() && w.Title() != "" {
			out = append(out, w)
		}
	}
	return out, nil
}

func (d win32Desktop) WindowMatching(title *regexp.Regexp) (Window, error) {
	wins, err := d.Windows()
	if err != nil {
		return nil, err
	}
	for _, w := range wins {
		if title.MatchString(w.Title()) {
			return w, nil
		}
	}
	return nil, fmt.Errorf("%w: no top-level window matches %q", ErrWindowNotFound, title)
}

type win32Window struct {
	hwnd uintptr
}

func windowText(hwnd uintptr) string {
	// GetWindowText cannot read across processes; WM_GETTEXT is marshaled
	// by the system and SendMessageTimeout keeps a hung RIS from blocking
	// the workflow forever.
	var length uintptr
	procSendMessageTimeoutW.Call(hwnd, wmGetTextLength, 0, 0, smtoAbortIfHung, 2000, uintptr(unsafe.Pointer(&length)))
	if length == 0 {
		return ""
	}
	buf := make([]uint16, length+1)
	var copied uintptr
	procSendMessageTimeoutW.Call(hwnd, wmGetText, length+1, uintptr(unsafe.Pointer(&buf[0])),
		smtoAbortIfHung, 2000, uintptr(unsafe.Pointer(&copied)))
	return windows.UTF16ToString(buf)
}

func (w *win32Window) Title() string { return windowText(w.hwnd) }

func (w *win32Window) Visible() bool {
	r, _, _ := procIsWindowVisible.Call(w.hwnd)
	return r != 0
}

func (w *win32Window) Focus() error {
	procShowWindow.Call(w.hwnd, swRestore)
	procSetForegroundWindow.Call(w.hwnd)
	time.Sleep(50 * time.Millisecond)
	fg, _, _ := procGetForegroundWindow.Call()
	if fg == w.hwnd {
		return nil
	}
	// The foreground lock refuses focus changes from background processes.
	// Attaching to the current foreground thread's input queue is the
	// standard workaround.
	fgThread, _, _ := procGetWindowThreadProcessId.Call(fg, 0)
	cur, _, _ := procGetCurrentThreadId.Call()
	procAttachThreadInput.Call(fgThread, cur, 1)
	procSetForegroundWindow.Call(w.hwnd)
	procAttachThreadInput.Call(fgThread, cur, 0)
	time.Sleep(50 * time.Millisecond)
	if fg, _, _ = procGetForegroundWindow.Call(); fg != w.hwnd {
		return fmt.Errorf("could not bring %q to the foreground", w.Title())
	}
	return nil
}

func (w *win32Window) Rect() (Rect, error) { return windowRect(w.hwnd) }

func windowRect(hwnd uintptr) (Rect, error) {
	var r struct{ Left, Top, Right, Bottom int32 }
	ok, _, err := procGetWindowRect.Call(hwnd, uintptr(unsafe.Pointer(&r)))
	if ok == 0 {
		return Rect{}, fmt.Errorf("GetWindowRect: %w", err)
	}
	return Rect{Left: int(r.Left), Top: int(r.Top), Right: int(r.Right), Bottom: int(r.Bottom)}, nil
}

func (w *win32Window) Children() ([]Control, error) {
	var out []Control
	for _, h := range enumDescendants(w.hwnd) {
		parent, _, _ := procGetParent.Call(h)
		if parent == w.hwnd {
			out = append(out, &win32Control{hwnd: h})
		}
	}
	return out, nil
}

func (w *win32Window) Descendants() ([]Control, error) {
	hs := enumDescendants(w.hwnd)
	out := make([]Control, 0, len(hs))
	for _, h := range hs {
		out = append(out, &win32Control{hwnd: h})
	}
	return out, nil
}

func (w *win32Window) ControlByID(id string) (Control, error) {
	for _, h := range enumDescendants(w.hwnd) {
		if controlName(h) == id {
			return &win32Control{hwnd: h}, nil
		}
	}
	return nil, fmt.Errorf("%w: no control named %q under %q", ErrControlNotFound, id, w.Title())
}

func (w *win32Window) TypeKeys(seq string, pause time.Duration) error {
	if err := w.Focus(); err != nil {
		return err
	}
	return win32Input{}.SendKeys(seq, pause)
}

// controlName asks a WinForms control for its designer name. The reply
// buffer has to live inside the owning process, so one is allocated there,
// filled via the registered message and read back out.
func controlName(hwnd uintptr) string {
	if wmGetControlName == 0 {
		return ""
	}
	var pid uint32
	procGetWindowThreadProcessId.Call(hwnd, uintptr(unsafe.Pointer(&pid)))
	if pid == 0 {
		return ""
	}
	hProc, err := windows.OpenProcess(processVMOperation|processVMRead|processVMWrite|processQueryInfo, false, pid)
	if err != nil {
		return ""
	}
	defer windows.CloseHandle(hProc)

	const maxChars = 256
	size := uintptr(maxChars * 2)
	remote, _, _ := procVirtualAllocEx.Call(uintptr(hProc), 0, size, memCommit|memReserve, pageRW)
	if remote == 0 {
		return ""
	}
	defer procVirtualFreeEx.Call(uintptr(hProc), remote, 0, memRelease)

	var reply uintptr
	procSendMessageTimeoutW.Call(hwnd, uintptr(wmGetControlName), maxChars, remote,
		smtoAbortIfHung, 2000, uintptr(unsafe.Pointer(&reply)))
	if reply == 0 {
		return ""
	}

	buf := make([]uint16, maxChars)
	var read uintptr
	ok, _, _ := procReadProcessMemory.Call(uintptr(hProc), remote,
		uintptr(unsafe.Pointer(&buf[0])), size, uintptr(unsafe.Pointer(&read)))
	if ok == 0 {
		return ""
	}
	return windows.UTF16ToString(buf)
}

type win32Control struct {
	hwnd uintptr
}

func (c *win32Control) Text() string { return windowText(c.hwnd) }

func (c *win32Control) ClassName() string {
	buf := make([]uint16, 256)
	n, _, _ := procGetClassNameW.Call(c.hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	return string(utf16.Decode(buf[:n]))
}

func (c *win32Control) AutomationID() string { return controlName(c.hwnd) }

func (c *win32Control) Visible() bool {
	r, _, _ := procIsWindowVisible.Call(c.hwnd)
	return r != 0
}

func (c *win32Control) Rect() (Rect, error) { return windowRect(c.hwnd) }

func (c *win32Control) Click() error {
	r, err := c.Rect()
	if err != nil {
		return err
	}
	return win32Input{}.Click(r.Center())
}

func (c *win32Control) TypeKeys(seq string, pause time.Duration) error {
	// Clicking is the reliable way to give a WinForms child the keyboard
	// focus from outside the process.
	if err := c.Click(); err != nil {
		return err
	}
	time.Sleep(100 * time.Millisecond)
	return win32Input{}.SendKeys(seq, pause)
}

func (c *win32Control) Select(option string) error {
	if !strings.Contains(strings.ToUpper(c.ClassName()), "COMBOBOX") {
		return fmt.Errorf("control class %q is not a combo box", c.ClassName())
	}
	text, err := windows.UTF16PtrFromString(option)
	if err != nil {
		return err
	}
	idx, _, _ := procSendMessageW.Call(c.hwnd, cbFindStringExact, cbErr, uintptr(unsafe.Pointer(text)))
	if idx == cbErr {
		return fmt.Errorf("%w: combo box has no item %q", ErrControlNotFound, option)
	}
	procSendMessageW.Call(c.hwnd, cbSetCurSel, idx, 0)

	// WinForms only reacts to the selection once the parent sees the
	// change notifications.
	ctrlID, _, _ := procGetDlgCtrlID.Call(c.hwnd)
	parent, _, _ := procGetParent.Call(c.hwnd)
	if parent != 0 {
		wparam := ctrlID&0xFFFF | cbnSelEndOK<<16
		procSendMessageW.Call(parent, wmCommand, wparam, c.hwnd)
		wparam = ctrlID&0xFFFF | cbnSelChange<<16
		procSendMessageW.Call(parent, wmCommand, wparam, c.hwnd)
	}
	return nil
}

type win32Input struct{}

type keybdInput struct {
	VK        uint16
	Scan      uint16
	Flags     uint32
	Time      uint32
	ExtraInfo uintptr
}

type keyboardEvent struct {
	Type uint32
	_    uint32
	Ki   keybdInput
	_    [8]byte
}

type mouseInput struct {
	Dx        int32
	Dy        int32
	MouseData uint32
	Flags     uint32
	Time      uint32
	ExtraInfo uintptr
}

type mouseEvent struct {
	Type uint32
	_    uint32
	Mi   mouseInput
}

func sendKeyEvent(vk, scan uint16, flags uint32) {
	ev := keyboardEvent{Type: 1, Ki: keybdInput{VK: vk, Scan: scan, Flags: flags}}
	procSendInput.Call(1, uintptr(unsafe.Pointer(&ev)), unsafe.Sizeof(ev))
}

func sendMouseEvent(flags uint32) {
	ev := mouseEvent{Type: 0, Mi: mouseInput{Flags: flags}}
	procSendInput.Call(1, uintptr(unsafe.Pointer(&ev)), unsafe.Sizeof(ev))
}

func (win32Input) SendKeys(seq string, pause time.Duration) error {
	strokes, err := ParseSequence(seq)
	if err != nil {
		return err
	}
	for i, ks := range strokes {
		if i > 0 && pause > 0 {
			time.Sleep(pause)
		}
		pressStroke(ks)
	}
	return nil
}

func pressStroke(ks Keystroke) {
	if ks.Mods&ModCtrl != 0 {
		sendKeyEvent(vkControl, 0, 0)
	}
	if ks.Mods&ModAlt != 0 {
		sendKeyEvent(vkMenu, 0, 0)
	}
	if ks.Mods&ModShift != 0 {
		sendKeyEvent(vkShift, 0, 0)
	}

	switch {
	case ks.Name != "":
		sendKeyEvent(ks.VK, 0, 0)
		sendKeyEvent(ks.VK, 0, keyEventfKeyUp)
	default:
		pressRune(ks.Rune, ks.Mods)
	}

	if ks.Mods&ModShift != 0 {
		sendKeyEvent(vkShift, 0, keyEventfKeyUp)
	}
	if ks.Mods&ModAlt != 0 {
		sendKeyEvent(vkMenu, 0, keyEventfKeyUp)
	}
	if ks.Mods&ModCtrl != 0 {
		sendKeyEvent(vkControl, 0, keyEventfKeyUp)
	}
}

func pressRune(r rune, mods Modifier) {
	scan, _, _ := procVkKeyScanW.Call(uintptr(r))
	mapped := int16(scan)
	// Characters the keyboard layout cannot produce, CJK report text
	// included, go in as Unicode events instead of virtual keys.
	if mapped == -1 || r > 0x7F {
		for _, u := range utf16.Encode([]rune{r}) {
			sendKeyEvent(0, u, keyEventfUnicode)
			sendKeyEvent(0, u, keyEventfUnicode|keyEventfKeyUp)
		}
		return
	}
	vk := uint16(mapped & 0xFF)
	needShift := mapped&0x100 != 0 && mods&ModShift == 0
	if needShift {
		sendKeyEvent(vkShift, 0, 0)
	}
	sendKeyEvent(vk, 0, 0)
	sendKeyEvent(vk, 0, keyEventfKeyUp)
	if needShift {
		sendKeyEvent(vkShift, 0, keyEventfKeyUp)
	}
}

func (win32Input) Click(p Point) error {
	procSetCursorPos.Call(uintptr(p.X), uintptr(p.Y))
	time.Sleep(20 * time.Millisecond)
	sendMouseEvent(mouseEventfLeftDown)
	sendMouseEvent(mouseEventfLeftUp)
	return nil
}

func (in win32Input) DoubleClick(p Point) error {
	if err := in.Click(p); err != nil {
		return err
	}
	time.Sleep(50 * time.Millisecond)
	sendMouseEvent(mouseEventfLeftDown)
	sendMouseEvent(mouseEventfLeftUp)
	return nil
}

type win32Clipboard struct{}

func openClipboard() error {
	// Another process may hold the clipboard for a moment after a copy.
	for attempt := 0; attempt < 5; attempt++ {
		if r, _, _ := procOpenClipboard.Call(0); r != 0 {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("clipboard is held by another process")
}

func (win32Clipboard) Clear() error {
	if err := openClipboard(); err != nil {
		return err
	}
	defer procCloseClipboard.Call()
	if r, _, err := procEmptyClipboard.Call(); r == 0 {
		return fmt.Errorf("EmptyClipboard: %w", err)
	}
	return nil
}

func (win32Clipboard) ReadImage() (image.Image, error) {
	if err := openClipboard(); err != nil {
		return nil, err
	}
	defer procCloseClipboard.Call()

	if avail, _, _ := procIsClipboardFormatAvail.Call(cfDIB); avail == 0 {
		return nil, ErrClipboardEmpty
	}
	h, _, _ := procGetClipboardData.Call(cfDIB)
	if h == 0 {
		return nil, ErrClipboardEmpty
	}
	ptr, _, _ := procGlobalLock.Call(h)
	if ptr == 0 {
		return nil, fmt.Errorf("GlobalLock failed on clipboard data")
	}
	defer procGlobalUnlock.Call(h)
	size, _, _ := procGlobalSize.Call(h)
	if size == 0 {
		return nil, ErrClipboardEmpty
	}

	data := make([]byte, size)
	copy(data, unsafe.Slice((*byte)(unsafe.Pointer(ptr)), size))
	return DecodeDIB(data)
}
