// Package schema validates component payloads against their declared field
// maps and masks secret-tagged fields before capture.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/arjanchaudharyy/flowdeck/pkg/models"
)

// ValidationError reports a payload that does not match its schema. It always
// carries per-field error lists, never a single opaque message.
type ValidationError struct {
	Subject     string              // what was validated, e.g. "params" or "result"
	FieldErrors map[string][]string // field name -> messages
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.FieldErrors))
	for f := range e.FieldErrors {
		fields = append(fields, f)
	}

	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, strings.Join(e.FieldErrors[f], "; ")))
	}

	return fmt.Sprintf("invalid %s: %s", e.Subject, strings.Join(parts, ", "))
}

// Kind implements models.Kinder.
func (e *ValidationError) Kind() models.ErrorKind {
	return models.KindValidation
}

// ConfigurationError reports a missing or unusable required configuration key.
type ConfigurationError struct {
	Key     string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("configuration key %q: %s", e.Key, e.Message)
	}

	return fmt.Sprintf("missing required configuration key %q", e.Key)
}

// Kind implements models.Kinder.
func (e *ConfigurationError) Kind() models.ErrorKind {
	return models.KindConfiguration
}
