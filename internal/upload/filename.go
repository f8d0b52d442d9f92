package upload

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// windowsDeviceNames cannot be used as file names on Windows, with or
// without an extension.
var windowsDeviceNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM0": true, "COM1": true, "COM2": true, "COM3": true, "COM4": true,
	"COM5": true, "COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT0": true, "LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true,
	"LPT5": true, "LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// SecureFilename reduces a client-supplied file name to a flat, ASCII-only
// basename that is safe to join onto a storage directory:
//
//	"My cool movie.mov"    → "My_cool_movie.mov"
//	"../../../etc/passwd"  → "etc_passwd"
//	"i contain cool ümläuts.txt" → "i_contain_cool_umlauts.txt"
//
// The result may be empty (for example for "../.."); callers must handle
// that.
func SecureFilename(name string) string {
	// Decompose accented letters so the ASCII base letter survives the
	// filter below.
	name = norm.NFKD.String(name)

	name = strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\':
			return ' '
		case r > 127:
			return -1
		}
		return r
	}, name)

	name = strings.Join(strings.Fields(name), "_")

	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == '_' || r == '.' || r == '-':
			return r
		}
		return -1
	}, name)

	name = strings.Trim(name, "._")

	if name != "" && windowsDeviceNames[strings.ToUpper(strings.Split(name, ".")[0])] {
		name = "_" + name
	}
	return name
}
