package misc

import (
	"strings"
	"unicode"
)

var (
	Seperator = []byte("\n")
)

// SanitizeFilename keeps letters, digits, dash, dot and underscore; everything else becomes "_"
// e.g "my db/prod" => "my_db_prod"
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	result := strings.Trim(b.String(), ".")
	if result == "" {
		return "_"
	}
	return result
}
