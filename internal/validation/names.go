// Package validation checks identifiers before they are sent to the backend.
package validation

import (
	"fmt"
	"strings"
	"unicode"
)

// invisibleChars are dropped by SanitizeName. They survive copy and paste
// from web pages and make otherwise identical names differ.
var invisibleChars = []string{
	"\u200B", // Zero-width space
	"\u200C", // Zero-width non-joiner
	"\u200D", // Zero-width joiner
	"\uFEFF", // Zero-width no-break space (BOM)
	"\u00AD", // Soft hyphen
	"\u2060", // Word joiner
}

// SanitizeName removes invisible characters and surrounding whitespace.
func SanitizeName(name string) string {
	for _, c := range invisibleChars {
		name = strings.ReplaceAll(name, c, "")
	}
	return strings.TrimSpace(name)
}

// ValidateFlowsheetID checks a flowsheet id. Ids are dotted module paths
// such as watertap.flowsheets.ro_erd and become one URL path segment.
//
// Returns an error if the id:
//   - Is empty
//   - Contains characters other than letters, digits, '_', '-' and '.'
//   - Is "." or ".."
func ValidateFlowsheetID(id string) error {
	if id == "" {
		return fmt.Errorf("flowsheet id cannot be empty")
	}
	if id == "." || id == ".." {
		return fmt.Errorf("flowsheet id cannot be %q", id)
	}
	for _, r := range id {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.') {
			return fmt.Errorf("flowsheet id %q contains invalid character %q", id, r)
		}
	}
	return nil
}

// ValidateConfigName checks a saved config name. Names are free text but
// must not be blank or carry control characters.
func ValidateConfigName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("config name cannot be empty")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("config name %q contains a control character", name)
		}
	}
	return nil
}
