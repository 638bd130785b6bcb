package pattern

import (
	"fmt"
	"regexp"
	"strings"
)

// SchemaVersion is the current catalog file schema version
const SchemaVersion = "1.0.0"

// ValidationError represents a schema validation error with context
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

func (e ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	if len(errs) == 0 {
		return "no errors"
	}
	if len(errs) == 1 {
		return errs[0].Error()
	}
	messages := make([]string, len(errs))
	for i, err := range errs {
		messages[i] = err.Error()
	}
	return fmt.Sprintf("%d validation errors:\n  - %s", len(errs), strings.Join(messages, "\n  - "))
}

// ValidateSchema checks a catalog file and reports every problem found.
// Exception targets are only checked against the file's own patterns when
// it declares some; overlays are checked when the catalog is built.
func ValidateSchema(f *CatalogFile) ValidationErrors {
	var errs ValidationErrors

	if f.Name == "" {
		errs = append(errs, ValidationError{Field: "name", Message: "required field is missing"})
	} else if !isValidName(f.Name) {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "must be lowercase alphanumeric with hyphens, starting with a letter",
			Value:   f.Name,
		})
	}

	if f.Version == "" {
		errs = append(errs, ValidationError{Field: "version", Message: "required field is missing"})
	} else if !isValidVersion(f.Version) {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: "must be semantic version (e.g., 1.0.0)",
			Value:   f.Version,
		})
	}

	if f.MaxPrefixLength < 0 {
		errs = append(errs, ValidationError{
			Field:   "max_prefix_length",
			Message: "must not be negative",
			Value:   f.MaxPrefixLength,
		})
	}

	errs = append(errs, validatePatterns(f.Patterns)...)

	if len(f.Patterns) > 0 {
		known := make(map[string]bool, len(f.Patterns))
		for _, p := range f.Patterns {
			known[p.Name] = true
		}
		errs = append(errs, validateExceptions(f.Exceptions, known)...)
	} else {
		errs = append(errs, validateExceptions(f.Exceptions, nil)...)
	}

	return errs
}

func validatePatterns(defs []PatternDef) ValidationErrors {
	var errs ValidationErrors
	seen := make(map[string]bool, len(defs))

	for i, d := range defs {
		field := fmt.Sprintf("patterns[%d]", i)

		if d.Name == "" {
			errs = append(errs, ValidationError{Field: field + ".name", Message: "name is required"})
		} else if !isValidName(d.Name) {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: "must be lowercase alphanumeric with hyphens, starting with a letter",
				Value:   d.Name,
			})
		} else if seen[d.Name] {
			errs = append(errs, ValidationError{Field: field + ".name", Message: "duplicate pattern name", Value: d.Name})
		}
		seen[d.Name] = true

		if d.Regexp == "" {
			errs = append(errs, ValidationError{Field: field + ".regexp", Message: "regexp is required"})
		} else if _, err := regexp.Compile(d.Regexp); err != nil {
			errs = append(errs, ValidationError{Field: field + ".regexp", Message: "invalid regular expression", Value: err.Error()})
		}

		if d.Sequence != "" {
			if _, ok := sequences[d.Sequence]; !ok {
				errs = append(errs, ValidationError{Field: field + ".sequence", Message: "unknown sequence", Value: d.Sequence})
			}
			if strings.Count(d.PrefixFormat, "%s") != 1 {
				errs = append(errs, ValidationError{
					Field:   field + ".prefix_format",
					Message: "must contain exactly one %s",
					Value:   d.PrefixFormat,
				})
			}
		} else if d.PrefixFormat != "" {
			errs = append(errs, ValidationError{Field: field + ".prefix_format", Message: "set without a sequence"})
		}
	}

	return errs
}

func validateExceptions(defs []ExceptionDef, known map[string]bool) ValidationErrors {
	var errs ValidationErrors
	for i, e := range defs {
		field := fmt.Sprintf("exceptions[%d]", i)
		if e.Prefix == "" {
			errs = append(errs, ValidationError{Field: field + ".prefix", Message: "prefix is required"})
		}
		if known != nil && e.Pattern != "" && !known[e.Pattern] {
			errs = append(errs, ValidationError{Field: field + ".pattern", Message: "unknown pattern", Value: e.Pattern})
		}
	}
	return errs
}

func isValidName(id string) bool {
	if len(id) == 0 {
		return false
	}
	// Must start with lowercase letter
	if id[0] < 'a' || id[0] > 'z' {
		return false
	}
	// Rest must be lowercase alphanumeric or hyphen
	for _, c := range id[1:] {
		if !((c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-') {
			return false
		}
	}
	return true
}

func isValidVersion(v string) bool {
	parts := strings.Split(v, ".")
	if len(parts) != 3 {
		return false
	}
	for _, part := range parts {
		if len(part) == 0 {
			return false
		}
		for _, c := range part {
			if c < '0' || c > '9' {
				return false
			}
		}
	}
	return true
}
