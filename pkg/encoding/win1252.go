package encoding

import (
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// ToUTF8 converts a slice of bytes (WIN1252) to a UTF-8 string. Firebird
// databases created with the legacy WIN1252 charset hand text columns back
// as raw bytes; verification reads must decode them before comparing
// against the other stores. Data that is already valid UTF-8 passes
// through unchanged.
func ToUTF8(b []byte) string {
	if len(b) == 0 {
		return ""
	}

	decoded, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		// Fallback: raw string beats dropping the read
		return string(b)
	}

	return strings.TrimSpace(string(decoded))
}
