package term

import "unicode/utf8"

// KeyCode identifies a non-printable key. Printable input arrives as
// KeyRune with the Rune field set.
type KeyCode int

const (
	KeyNone KeyCode = iota
	KeyRune
	KeyEnter
	KeyEscape
	KeyBackspace
	KeyTab
	KeyShiftTab
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyHome
	KeyEnd
	KeyPgUp
	KeyPgDn
	KeyDelete
	KeyInsert
	KeySpace
	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyF11
	KeyF12
	KeyCtrlA
	KeyCtrlC
	KeyCtrlD
	KeyCtrlF
	KeyCtrlU
)

// Key is one decoded keystroke.
type Key struct {
	Code  KeyCode
	Rune  rune
	Shift bool
	Alt   bool
}

// csiFinal maps a bare CSI final byte to a key.
var csiFinal = map[byte]KeyCode{
	'A': KeyUp,
	'B': KeyDown,
	'C': KeyRight,
	'D': KeyLeft,
	'H': KeyHome,
	'F': KeyEnd,
	'Z': KeyShiftTab,
}

// csiTilde maps the numeric parameter of a CSI ...~ sequence to a key.
var csiTilde = map[int]KeyCode{
	1:  KeyHome,
	2:  KeyInsert,
	3:  KeyDelete,
	4:  KeyEnd,
	5:  KeyPgUp,
	6:  KeyPgDn,
	7:  KeyHome,
	8:  KeyEnd,
	11: KeyF1,
	12: KeyF2,
	13: KeyF3,
	14: KeyF4,
	15: KeyF5,
	17: KeyF6,
	18: KeyF7,
	19: KeyF8,
	20: KeyF9,
	21: KeyF10,
	23: KeyF11,
	24: KeyF12,
}

// ss3Final maps ESC O sequences (application cursor mode, F1-F4).
var ss3Final = map[byte]KeyCode{
	'A': KeyUp,
	'B': KeyDown,
	'C': KeyRight,
	'D': KeyLeft,
	'H': KeyHome,
	'F': KeyEnd,
	'P': KeyF1,
	'Q': KeyF2,
	'R': KeyF3,
	'S': KeyF4,
}

// decodeKey decodes the first keystroke in buf, returning the key and the
// number of bytes consumed. A zero count means buf holds an incomplete
// sequence and more bytes are needed.
func decodeKey(buf []byte) (Key, int) {
	if len(buf) == 0 {
		return Key{}, 0
	}
	b := buf[0]
	switch {
	case b == 0x1b:
		return decodeEscape(buf)
	case b == '\r' || b == '\n':
		return Key{Code: KeyEnter}, 1
	case b == '\t':
		return Key{Code: KeyTab}, 1
	case b == 0x7f || b == 0x08:
		return Key{Code: KeyBackspace}, 1
	case b == ' ':
		return Key{Code: KeySpace, Rune: ' '}, 1
	case b < 0x20:
		// Control characters worth distinguishing; the rest map to runes
		// so callers can ignore them.
		switch b {
		case 0x01:
			return Key{Code: KeyCtrlA}, 1
		case 0x03:
			return Key{Code: KeyCtrlC}, 1
		case 0x04:
			return Key{Code: KeyCtrlD}, 1
		case 0x06:
			return Key{Code: KeyCtrlF}, 1
		case 0x15:
			return Key{Code: KeyCtrlU}, 1
		}
		return Key{Code: KeyRune, Rune: rune(b)}, 1
	default:
		r, size := utf8.DecodeRune(buf)
		if r == utf8.RuneError && size <= 1 && !utf8.FullRune(buf) {
			return Key{}, 0
		}
		return Key{Code: KeyRune, Rune: r}, size
	}
}

// decodeEscape handles everything starting with ESC: CSI and SS3 sequences,
// Alt-modified characters, and the bare escape key.
func decodeEscape(buf []byte) (Key, int) {
	if len(buf) == 1 {
		// Could be a lone Escape or the start of a sequence still in
		// flight. Report incomplete; the reader's follow-up timeout turns
		// a lingering bare ESC into the Escape key.
		return Key{}, 0
	}
	switch buf[1] {
	case '[':
		return decodeCSI(buf)
	case 'O':
		if len(buf) < 3 {
			return Key{}, 0
		}
		if code, ok := ss3Final[buf[2]]; ok {
			return Key{Code: code}, 3
		}
		return Key{Code: KeyEscape}, 1
	default:
		// Alt+key: ESC prefixing a regular keystroke.
		k, n := decodeKey(buf[1:])
		if n == 0 {
			return Key{}, 0
		}
		k.Alt = true
		return k, n + 1
	}
}

func decodeCSI(buf []byte) (Key, int) {
	// buf[0]='\x1b', buf[1]='['; scan parameters up to the final byte.
	i := 2
	params := []int{0}
	for i < len(buf) {
		b := buf[i]
		switch {
		case b >= '0' && b <= '9':
			params[len(params)-1] = params[len(params)-1]*10 + int(b-'0')
			i++
		case b == ';':
			params = append(params, 0)
			i++
		case b >= 0x40 && b <= 0x7e:
			return finishCSI(params, b, i+1)
		default:
			// Unrecognized intermediate byte; drop the sequence.
			return Key{Code: KeyNone}, i + 1
		}
	}
	return Key{}, 0
}

func finishCSI(params []int, final byte, consumed int) (Key, int) {
	shift := len(params) >= 2 && params[1] == 2
	if final == '~' {
		if code, ok := csiTilde[params[0]]; ok {
			return Key{Code: code, Shift: shift}, consumed
		}
		return Key{Code: KeyNone}, consumed
	}
	if code, ok := csiFinal[final]; ok {
		return Key{Code: code, Shift: shift}, consumed
	}
	return Key{Code: KeyNone}, consumed
}
