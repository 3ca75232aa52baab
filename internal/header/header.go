// Package header detects system-specific ROM dump headers so that
// checksumming can address the bare content instead of the physical file.
package header

import (
	"bytes"
	"errors"
)

// ErrShortSample is returned when the sample ends before a rule could be
// decided. Callers checksum the file as unheadered when they see it.
var ErrShortSample = errors.New("sample too short for header lookup")

// rule matches a byte signature at a fixed offset from the start of the file.
type rule struct {
	offset    int
	signature []byte
}

// Definition describes one known header format. A definition matches when
// every one of its rules matches the sample.
type Definition struct {
	System    string
	Extension string
	rules     []rule
	length    int
}

// Definitions are tried in order; the first full match wins.
var definitions = []Definition{
	{
		System:    "Famicom Disk System",
		Extension: ".fds",
		rules:     []rule{{0, []byte("FDS")}},
		length:    16,
	},
	{
		System:    "Nintendo Entertainment System",
		Extension: ".nes",
		rules:     []rule{{0, []byte("NES")}},
		length:    16,
	},
	{
		System:    "Atari Lynx",
		Extension: ".lnx",
		rules:     []rule{{0, []byte("LYNX")}},
		length:    64,
	},
	{
		System:    "Atari 7800",
		Extension: ".a78",
		rules:     []rule{{1, []byte("ATARI7800")}, {96, []byte("ACTUAL CART DATA STARTS HERE")}},
		length:    128,
	},
}

// maxRuleEnd is the number of sample bytes needed to decide every rule.
var maxRuleEnd = func() int {
	max := 0
	for _, d := range definitions {
		for _, r := range d.rules {
			if end := r.offset + len(r.signature); end > max {
				max = end
			}
		}
	}
	return max
}()

// SampleSize returns the number of leading bytes Lookup needs to decide
// every known header format.
func SampleSize() int { return maxRuleEnd }

// Lookup matches the sample against the known header table and returns the
// matched definition. It returns (nil, nil) when no format matches, and
// ErrShortSample when a rule needed bytes past the end of the sample.
func Lookup(sample []byte) (*Definition, error) {
	for i := range definitions {
		d := &definitions[i]
		matched := true
		for _, r := range d.rules {
			end := r.offset + len(r.signature)
			if end > len(sample) {
				// Cannot rule the format in or out.
				return nil, ErrShortSample
			}
			if !bytes.Equal(sample[r.offset:end], r.signature) {
				matched = false
				break
			}
		}
		if matched {
			return d, nil
		}
	}
	return nil, nil
}

// Length returns the header byte length for the sample, or 0 when the
// sample carries no recognized header. A short sample that prevents a
// decision counts as unheadered.
func Length(sample []byte) int {
	d, err := Lookup(sample)
	if err != nil || d == nil {
		return 0
	}
	return d.length
}

// System returns the system name for the sample's header, or "".
func System(sample []byte) string {
	d, err := Lookup(sample)
	if err != nil || d == nil {
		return ""
	}
	return d.System
}

// HeaderLength exposes a definition's header size in bytes.
func (d *Definition) HeaderLength() int { return d.length }
