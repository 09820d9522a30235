package uiauto

import (
	"fmt"
	"strconv"
	"strings"
)

// Key sequences use the classic send-keys dialect: ^ % + prefix the next
// keystroke with Ctrl, Alt and Shift, {ENTER} and friends name special
// keys, and {c} types the literal character c. EscapeText produces
// sequences in this dialect from free text, ParseSequence consumes them.

// Modifier is a bitmask of held modifier keys.
type Modifier uint8

const (
	ModShift Modifier = 1 << iota
	ModCtrl
	ModAlt
)

// String renders the modifier set in dialect order, e.g. "^+" for
// Ctrl+Shift.
func (m Modifier) String() string {
	var b strings.Builder
	if m&ModCtrl != 0 {
		b.WriteByte('^')
	}
	if m&ModAlt != 0 {
		b.WriteByte('%')
	}
	if m&ModShift != 0 {
		b.WriteByte('+')
	}
	return b.String()
}

// Keystroke is one parsed keystroke: either a literal rune or a named key,
// with any modifiers held around it.
type Keystroke struct {
	Mods Modifier
	// Rune is the literal character to type. Zero when Name is set.
	Rune rune
	// Name is the named key token, e.g. "ENTER". Empty for literal runes.
	Name string
	// VK is the virtual-key code for a named key. Zero for literal runes.
	VK uint16
}

// Virtual-key codes for the named keys the dialect knows. Plain numbers so
// the table stays portable; only the Windows backend ever injects them.
var namedKeys = map[string]uint16{
	"BACKSPACE": 0x08,
	"BS":        0x08,
	"TAB":       0x09,
	"ENTER":     0x0D,
	"ESC":       0x1B,
	"SPACE":     0x20,
	"PGUP":      0x21,
	"PGDN":      0x22,
	"END":       0x23,
	"HOME":      0x24,
	"LEFT":      0x25,
	"UP":        0x26,
	"RIGHT":     0x27,
	"DOWN":      0x28,
	"INS":       0x2D,
	"INSERT":    0x2D,
	"DEL":       0x2E,
	"DELETE":    0x2E,
	"F1":        0x70,
	"F2":        0x71,
	"F3":        0x72,
	"F4":        0x73,
	"F5":        0x74,
	"F6":        0x75,
	"F7":        0x76,
	"F8":        0x77,
	"F9":        0x78,
	"F10":       0x79,
	"F11":       0x7A,
	"F12":       0x7B,
}

// EscapeText converts free text into a key sequence that types it
// verbatim. Characters the dialect reserves are wrapped in literal braces,
// line endings are normalized to LF and emitted as {ENTER} so multi-line
// reports land as separate lines in the editor.
func EscapeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	var b strings.Builder
	b.Grow(len(text))
	for _, ch := range text {
		switch ch {
		case '{':
			b.WriteString("{{}")
		case '}':
			b.WriteString("{}}")
		case '+':
			b.WriteString("{+}")
		case '^':
			b.WriteString("{^}")
		case '%':
			b.WriteString("{%}")
		case '(':
			b.WriteString("{(}")
		case ')':
			b.WriteString("{)}")
		case '\n':
			b.WriteString("{ENTER}")
		default:
			b.WriteRune(ch)
		}
	}
	return b.String()
}

// ParseSequence parses a key sequence into individual keystrokes. Named
// tokens may carry a repeat count, as in {DOWN 3}. Unescaped reserved
// characters and unknown tokens are errors rather than silent no-ops, so a
// malformed layout file fails loudly instead of typing garbage into a
// medical record.
func ParseSequence(seq string) ([]Keystroke, error) {
	var out []Keystroke
	var mods Modifier
	rs := []rune(seq)
	for i := 0; i < len(rs); i++ {
		switch ch := rs[i]; ch {
		case '^':
			mods |= ModCtrl
		case '%':
			mods |= ModAlt
		case '+':
			mods |= ModShift
		case '{':
			strokes, next, err := parseBraced(rs, i, mods)
			if err != nil {
				return nil, err
			}
			out = append(out, strokes...)
			mods = 0
			i = next
		case '}', '(', ')':
			return nil, fmt.Errorf("unescaped %q at position %d in key sequence", ch, i)
		default:
			out = append(out, Keystroke{Mods: mods, Rune: ch})
			mods = 0
		}
	}
	if mods != 0 {
		return nil, fmt.Errorf("key sequence ends with dangling modifier %q", mods.String())
	}
	return out, nil
}

// parseBraced consumes one {...} group starting at rs[open] and returns the
// keystrokes it encodes plus the index of the closing brace.
func parseBraced(rs []rune, open int, mods Modifier) ([]Keystroke, int, error) {
	// {}} encodes a literal closing brace; the scan below would stop at the
	// first } and read an empty token.
	if open+2 < len(rs) && rs[open+1] == '}' && rs[open+2] == '}' {
		return []Keystroke{{Mods: mods, Rune: '}'}}, open + 2, nil
	}
	end := -1
	for j := open + 1; j < len(rs); j++ {
		if rs[j] == '}' {
			end = j
			break
		}
	}
	if end < 0 {
		return nil, 0, fmt.Errorf("unterminated brace group at position %d in key sequence", open)
	}
	body := rs[open+1 : end]
	if len(body) == 0 {
		return nil, 0, fmt.Errorf("empty brace group at position %d in key sequence", open)
	}
	if len(body) == 1 {
		// Literal escape such as {{} or {+}.
		return []Keystroke{{Mods: mods, Rune: body[0]}}, end, nil
	}
	name := string(body)
	count := 1
	if fields := strings.Fields(name); len(fields) == 2 {
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 1 {
			return nil, 0, fmt.Errorf("bad repeat count in token {%s}", name)
		}
		name, count = fields[0], n
	}
	vk, ok := namedKeys[strings.ToUpper(name)]
	if !ok {
		return nil, 0, fmt.Errorf("unknown key token {%s}", name)
	}
	ks := Keystroke{Mods: mods, Name: strings.ToUpper(name), VK: vk}
	strokes := make([]Keystroke, count)
	for i := range strokes {
		strokes[i] = ks
	}
	return strokes, end, nil
}
