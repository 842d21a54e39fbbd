package catalog

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// ErrEmptyAlias is returned when an alias edit is blank
	ErrEmptyAlias = errors.New("alias cannot be empty")

	// ErrDuplicateAlias is returned when an alias is already used by another file or sheet
	ErrDuplicateAlias = errors.New("alias is already in use")

	// ErrInvalidAlias is returned when an alias cannot form a field reference
	ErrInvalidAlias = errors.New("invalid alias")
)

const maxAliasLength = 100

var (
	aliasUnsafe = regexp.MustCompile(`[^а-яА-Яa-zA-Z0-9]`)
	underscores = regexp.MustCompile(`_+`)
)

// ValidateAlias checks an already trimmed alias.
// A dot would split "alias.field" in the wrong place, so it is rejected.
func ValidateAlias(alias string) error {
	if alias == "" {
		return ErrEmptyAlias
	}
	if n := utf8.RuneCountInString(alias); n > maxAliasLength {
		return fmt.Errorf("%w: length %d exceeds maximum of %d characters", ErrInvalidAlias, n, maxAliasLength)
	}
	if strings.ContainsAny(alias, ". \t\n") {
		return fmt.Errorf("%w: %q must not contain dots or whitespace", ErrInvalidAlias, alias)
	}
	return nil
}

// sanitize replaces every character outside Cyrillic/Latin letters and digits
// with an underscore. File aliases additionally collapse underscore runs and
// trim them at the edges.
func sanitize(name string, collapse bool) string {
	out := aliasUnsafe.ReplaceAllString(name, "_")
	if !collapse {
		return out
	}
	out = underscores.ReplaceAllString(out, "_")
	return strings.Trim(out, "_")
}

func stripExtension(fileName string) string {
	ext := path.Ext(fileName)
	if ext == "" || ext == fileName {
		return fileName
	}
	return strings.TrimSuffix(fileName, ext)
}
