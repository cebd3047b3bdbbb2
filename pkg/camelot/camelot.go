// Package camelot classifies tracks for harmonic mixing. It maps a semitone
// key and mode to a Camelot wheel code and a tempo to a BPM band. All lookup
// tables are fixed at compile time and never modified.
package camelot

import (
	"fmt"
	"regexp"
	"strconv"
)

// Code is a Camelot wheel position such as "8A" (minor) or "8B" (major).
type Code string

// Unknown is returned when a key/mode pair has no wheel position. It never
// compares equal to any of the 24 valid codes.
const Unknown Code = "Unknown"

// keyNames lists the chromatic names indexed by semitone, starting at C.
var keyNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// wheel maps key names to codes. Pairs sharing a code are kept together.
var wheel = map[string]Code{
	"C": "8B", "G": "8B",
	"D": "10B", "A": "10B",
	"E": "12B", "B": "12B",
	"F#": "2B", "C#": "2B",
	"G#": "4B", "D#": "4B",
	"A#": "6B", "F": "6B",
	"Am": "8A", "Em": "8A",
	"Bm": "10A", "F#m": "10A",
	"C#m": "12A", "G#m": "12A",
	"D#m": "2A", "A#m": "2A",
	"Fm": "4A", "Cm": "4A",
	"Gm": "6A", "Dm": "6A",
}

// KeyName returns the chromatic name for key, suffixed with "m" when mode is
// minor. ok is false when key is outside 0-11 or mode is not 0 or 1.
func KeyName(key, mode int) (name string, ok bool) {
	if key < 0 || key >= len(keyNames) || (mode != 0 && mode != 1) {
		return "", false
	}
	name = keyNames[key]
	if mode == 0 {
		name += "m"
	}
	return name, true
}

// Classify returns the Camelot code for key and mode, or Unknown.
func Classify(key, mode int) Code {
	name, ok := KeyName(key, mode)
	if !ok {
		return Unknown
	}
	if c, ok := wheel[name]; ok {
		return c
	}
	return Unknown
}

// Valid reports whether c is one of the 24 wheel positions.
func (c Code) Valid() bool {
	_, _, err := parse(string(c))
	return err == nil
}

func (c Code) String() string { return string(c) }

var codeRegex = regexp.MustCompile(`^(\d{1,2})([AB])$`)

// ParseCode parses a code such as "8A".
func ParseCode(s string) (Code, error) {
	if _, _, err := parse(s); err != nil {
		return "", err
	}
	return Code(s), nil
}

func parse(s string) (int, string, error) {
	m := codeRegex.FindStringSubmatch(s)
	if len(m) != 3 {
		return 0, "", fmt.Errorf("invalid camelot code: %q", s)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 || n > 12 {
		return 0, "", fmt.Errorf("invalid camelot number: %q", m[1])
	}
	return n, m[2], nil
}

// Compatible returns the codes that mix harmonically with c: c itself, its
// relative major/minor and its neighbours one step either way on the wheel.
// Unknown has no compatible codes.
func (c Code) Compatible() []Code {
	n, letter, err := parse(string(c))
	if err != nil {
		return nil
	}
	other := "B"
	if letter == "B" {
		other = "A"
	}
	prev := n - 1
	if prev < 1 {
		prev = 12
	}
	next := n%12 + 1
	return []Code{
		c,
		Code(fmt.Sprintf("%d%s", n, other)),
		Code(fmt.Sprintf("%d%s", prev, letter)),
		Code(fmt.Sprintf("%d%s", next, letter)),
	}
}
