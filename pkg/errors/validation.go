package errors

import (
	"net/url"
	"strings"
	"unicode"
)

// maxLocatorLength bounds locators accepted by the coordinator.
const maxLocatorLength = 2048

// ValidateLocator validates a resource locator before a coordinator is built.
//
// The validation rules are intentionally conservative:
//   - No empty locators
//   - No control characters or null bytes
//   - Maximum length of 2048 characters
//   - Absolute URL with an http or https scheme and a host
func ValidateLocator(locator string) error {
	if locator == "" {
		return New(ErrCodeInvalidLocator, "locator cannot be empty")
	}

	if len(locator) > maxLocatorLength {
		return New(ErrCodeInvalidLocator, "locator too long (max %d characters)", maxLocatorLength)
	}

	for _, r := range locator {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidLocator, "locator contains invalid control characters")
		}
	}

	u, err := url.Parse(locator)
	if err != nil {
		return Wrap(ErrCodeInvalidLocator, err, "parse locator %q", locator)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return New(ErrCodeInvalidLocator, "locator must use http or https scheme: %q", locator)
	}

	if u.Host == "" {
		return New(ErrCodeInvalidLocator, "locator has no host: %q", locator)
	}

	return nil
}

// ValidateNamespace validates a cache namespace name.
// Namespaces become part of backend keys, so separators and whitespace are rejected.
func ValidateNamespace(ns string) error {
	if ns == "" {
		return New(ErrCodeInvalidInput, "namespace cannot be empty")
	}

	const maxNamespaceLength = 128
	if len(ns) > maxNamespaceLength {
		return New(ErrCodeInvalidInput, "namespace too long (max %d characters)", maxNamespaceLength)
	}

	if strings.ContainsRune(ns, ':') {
		return New(ErrCodeInvalidInput, "namespace cannot contain ':': %q", ns)
	}

	for _, r := range ns {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "namespace contains invalid characters: %q", ns)
		}
	}

	return nil
}
