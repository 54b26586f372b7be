package types

import (
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"
)

// ErrUnknownKey is returned when a key name is not in the name table
var ErrUnknownKey = errors.New("unknown key")

// Key identifies a keyboard key, either by its virtual-key code or by the
// printable character it produces. Codes follow the Windows virtual-key table.
type Key struct {
	Code uint16 // virtual-key code, 0 when only the character is known
	Char rune   // printable character, 0 for named keys
}

// named keys, matched by exact string
var namedKeys = map[string]uint16{
	"ctrl_l":    0xA2,
	"ctrl_r":    0xA3,
	"alt_l":     0xA4,
	"alt_r":     0xA5,
	"alt_gr":    0xA5,
	"shift_l":   0xA0,
	"shift_r":   0xA1,
	"caps_lock": 0x14,
	"tab":       0x09,
	"space":     0x20,
	"insert":    0x2D,
	"delete":    0x2E,
	"home":      0x24,
	"end":       0x23,
	"page_up":   0x21,
	"page_down": 0x22,
	"up":        0x26,
	"down":      0x28,
	"left":      0x25,
	"right":     0x27,
	"f1":        0x70,
	"f2":        0x71,
	"f3":        0x72,
	"f4":        0x73,
	"f5":        0x74,
	"f6":        0x75,
	"f7":        0x76,
	"f8":        0x77,
	"f9":        0x78,
	"f10":       0x79,
	"f11":       0x7A,
	"f12":       0x7B,
}

var codeNames = func() map[uint16]string {
	m := make(map[uint16]string, len(namedKeys))
	for name, code := range namedKeys {
		// alt_gr and alt_r share a code; alt_r is canonical
		if name == "alt_gr" {
			continue
		}
		m[code] = name
	}
	return m
}()

// punctuation on a US layout: unshifted and shifted character per key
var oemKeys = map[uint16][2]rune{
	0xBA: {';', ':'},
	0xBB: {'=', '+'},
	0xBC: {',', '<'},
	0xBD: {'-', '_'},
	0xBE: {'.', '>'},
	0xBF: {'/', '?'},
	0xC0: {'`', '~'},
	0xDB: {'[', '{'},
	0xDC: {'\\', '|'},
	0xDD: {']', '}'},
	0xDE: {'\'', '"'},
}

// shifted digit row, indexed by digit
const shiftedDigits = ")!@#$%^&*("

var charCodes = func() map[rune]uint16 {
	m := make(map[rune]uint16, 2*len(oemKeys)+len(shiftedDigits))
	for code, chars := range oemKeys {
		m[chars[0]] = code
		m[chars[1]] = code
	}
	for i, r := range shiftedDigits {
		m[r] = uint16('0' + i)
	}
	return m
}()

// KeyFromCode returns the canonical key for a virtual-key code.
// Letters map to their lower-case character, digits and punctuation keys to
// their unshifted character.
func KeyFromCode(code uint16) Key {
	if _, ok := codeNames[code]; ok {
		return Key{Code: code}
	}
	switch {
	case code >= 'A' && code <= 'Z':
		return Key{Code: code, Char: rune(code) + ('a' - 'A')}
	case code >= '0' && code <= '9':
		return Key{Code: code, Char: rune(code)}
	}
	if chars, ok := oemKeys[code]; ok {
		return Key{Code: code, Char: chars[0]}
	}
	return Key{Code: code}
}

// KeyFromChar returns the key that types r. Shifted characters carry the
// code of the key they sit on. Characters outside the US layout keep Code 0.
func KeyFromChar(r rune) Key {
	switch {
	case r == ' ':
		return Key{Code: namedKeys["space"]}
	case r >= 'a' && r <= 'z':
		return Key{Code: uint16(r - ('a' - 'A')), Char: r}
	case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return Key{Code: uint16(r), Char: r}
	}
	if code, ok := charCodes[r]; ok {
		return Key{Code: code, Char: r}
	}
	return Key{Char: r}
}

// Physical returns the key as the keyboard reports it, without the shift
// state: the canonical key for its code. Keys without a code are unchanged.
func (k Key) Physical() Key {
	if k.Code == 0 {
		return k
	}
	return KeyFromCode(k.Code)
}

// KeyByName looks a named key up in the name table
func KeyByName(name string) (Key, error) {
	code, ok := namedKeys[name]
	if !ok {
		return Key{}, fmt.Errorf("%w: %q", ErrUnknownKey, name)
	}
	return Key{Code: code}, nil
}

// ParseKey resolves a key argument. A single printable character
// passes through directly, anything longer must be a named key.
func ParseKey(s string) (Key, error) {
	if utf8.RuneCountInString(s) == 1 {
		r, _ := utf8.DecodeRuneInString(s)
		if unicode.IsPrint(r) {
			return KeyFromChar(r), nil
		}
	}
	return KeyByName(s)
}

// KeyNames returns every name accepted by KeyByName
func KeyNames() []string {
	names := make([]string, 0, len(namedKeys))
	for n := range namedKeys {
		names = append(names, n)
	}
	return names
}

// Name returns the symbolic name of a named key, or "" for characters
func (k Key) Name() string {
	if k.Char != 0 {
		return ""
	}
	return codeNames[k.Code]
}

// IsZero reports whether k identifies no key at all
func (k Key) IsZero() bool {
	return k.Code == 0 && k.Char == 0
}

// Matches reports whether two keys denote the same physical key.
// Codes are compared when both sides carry one, characters otherwise.
func (k Key) Matches(o Key) bool {
	if k.Code != 0 && o.Code != 0 {
		return k.Code == o.Code
	}
	return k.Char != 0 && k.Char == o.Char
}

func (k Key) String() string {
	if name := k.Name(); name != "" {
		return name
	}
	if k.Char != 0 {
		return string(k.Char)
	}
	return fmt.Sprintf("vk(%d)", k.Code)
}
