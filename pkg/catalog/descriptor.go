// Package catalog holds the static, versioned catalog of known upstream
// provider kinds. A Descriptor captures everything the router needs to
// know about a vendor: which credential fields a channel must supply,
// which models the vendor serves, and how to classify its native errors.
//
// Descriptors are immutable at runtime. They are compiled in and may be
// replaced wholesale through an administrative reload; request traffic
// never mutates them.
package catalog

import (
	"fmt"
	"regexp"
	"strings"

	"conduit-hq/conduit/pkg/relay"
)

// CredentialField describes one credential field a channel must or may
// supply when binding to this provider kind.
type CredentialField struct {
	// Name is the field key (e.g., "api_key")
	Name string `yaml:"name"`

	// Required fields fail validation when absent or empty
	Required bool `yaml:"required"`

	// Pattern is an optional regular expression the value must match
	Pattern string `yaml:"pattern,omitempty"`

	compiled *regexp.Regexp
}

// ErrorRule maps a native error signature to a unified error kind.
// Rules are evaluated in order; the first match wins.
type ErrorRule struct {
	// Status matches the upstream HTTP status code, 0 matches any
	Status int `yaml:"status,omitempty"`

	// MessageContains matches a substring of the native error message,
	// case-insensitively; empty matches any
	MessageContains string `yaml:"message_contains,omitempty"`

	// Kind is the unified classification for matching errors
	Kind relay.ErrorKind `yaml:"kind"`
}

// Matches reports whether the rule applies to the given native failure.
func (r ErrorRule) Matches(status int, message string) bool {
	if r.Status != 0 && r.Status != status {
		return false
	}
	if r.MessageContains != "" && !strings.Contains(strings.ToLower(message), strings.ToLower(r.MessageContains)) {
		return false
	}
	return true
}

// Descriptor is the identity of an upstream provider kind.
type Descriptor struct {
	// ID is the stable descriptor identifier (e.g., "openai")
	ID string `yaml:"id"`

	// DisplayName is the human-readable vendor name
	DisplayName string `yaml:"display_name"`

	// DefaultBaseURL is used when a channel supplies no endpoint override
	DefaultBaseURL string `yaml:"default_base_url"`

	// CredentialFields lists the credential schema for channels of this kind
	CredentialFields []CredentialField `yaml:"credential_fields"`

	// Models is the vendor's supported model identifiers
	Models []string `yaml:"models"`

	// ErrorRules is the ordered native-error classification table
	ErrorRules []ErrorRule `yaml:"error_rules"`
}

// SupportsModel reports whether the vendor serves the given model.
// An empty model list means the descriptor imposes no restriction
// (OpenAI-compatible endpoints serve arbitrary model names).
func (d *Descriptor) SupportsModel(model string) bool {
	if len(d.Models) == 0 {
		return true
	}
	for _, m := range d.Models {
		if m == model {
			return true
		}
	}
	return false
}

// ValidateCredentials checks the supplied credential fields against the
// descriptor's schema. It verifies presence of required fields and
// pattern conformance; it does not contact the upstream.
func (d *Descriptor) ValidateCredentials(creds map[string]string) error {
	for i := range d.CredentialFields {
		f := &d.CredentialFields[i]
		value, ok := creds[f.Name]
		if f.Required && (!ok || value == "") {
			return fmt.Errorf("credential field %q is required for provider %q", f.Name, d.ID)
		}
		if !ok || value == "" || f.Pattern == "" {
			continue
		}
		// Patterns are compiled at store construction; the shared
		// descriptor is never written to on the validation path.
		re := f.compiled
		if re == nil {
			var err error
			re, err = regexp.Compile(f.Pattern)
			if err != nil {
				return fmt.Errorf("descriptor %q: invalid pattern for field %q: %w", d.ID, f.Name, err)
			}
		}
		if !re.MatchString(value) {
			return fmt.Errorf("credential field %q does not match the expected format for provider %q", f.Name, d.ID)
		}
	}
	return nil
}

// compilePatterns compiles the credential field patterns, rejecting a
// malformed pattern at load time rather than at first validation.
func (d *Descriptor) compilePatterns() error {
	for i := range d.CredentialFields {
		f := &d.CredentialFields[i]
		if f.Pattern == "" {
			continue
		}
		re, err := regexp.Compile(f.Pattern)
		if err != nil {
			return fmt.Errorf("descriptor %q: invalid pattern for field %q: %w", d.ID, f.Name, err)
		}
		f.compiled = re
	}
	return nil
}

// ClassifyNative maps a native failure signature to a unified error kind
// using the descriptor's rule table. Unmatched errors default to
// relay.KindUnknown rather than being dropped.
func (d *Descriptor) ClassifyNative(status int, message string) relay.ErrorKind {
	for _, rule := range d.ErrorRules {
		if rule.Matches(status, message) {
			return rule.Kind
		}
	}
	return relay.KindUnknown
}
