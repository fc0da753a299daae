package services

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxDatasetNameLength is the longest accepted dataset name, in characters
const MaxDatasetNameLength = 100

// NormalizeDatasetName trims and NFC-normalises a dataset name and checks
// that it can be stored and addressed in a URL path
func NormalizeDatasetName(name string) (string, error) {
	if !utf8.ValidString(name) {
		return "", NewServiceError(CodeInvalidName, "Dataset name must be valid UTF-8")
	}

	name = norm.NFC.String(strings.TrimSpace(name))
	if name == "" {
		return "", NewServiceError(CodeInvalidName, "Dataset name must be a non-empty string")
	}
	if n := utf8.RuneCountInString(name); n > MaxDatasetNameLength {
		return "", NewServiceErrorWithDetails(CodeInvalidName, "Dataset name is too long",
			map[string]interface{}{"max_length": MaxDatasetNameLength, "length": n})
	}
	if strings.ContainsRune(name, '/') {
		return "", NewServiceError(CodeInvalidName, "Dataset name must not contain '/'")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return "", NewServiceError(CodeInvalidName, "Dataset name must not contain control characters")
		}
	}
	return name, nil
}

// lookupName canonicalises a name taken from a request path so it matches
// the stored, normalised form
func lookupName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}
