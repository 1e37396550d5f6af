// Package secrets provides the credential vault used to store channel
// secrets at rest, plus resolution of ${secret:name} references in
// configuration values.
package secrets

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Vault seals and opens channel credential blobs. The registry never
// persists plaintext credentials; it stores the sealed blob and opens it
// only when constructing an adapter for a dispatch or probe.
type Vault interface {
	// Seal encrypts plaintext into an opaque blob safe to persist.
	Seal(plaintext []byte) ([]byte, error)

	// Open decrypts a blob previously produced by Seal.
	Open(blob []byte) ([]byte, error)
}

// secretRefRegex matches ${secret:name} patterns in configuration values.
var secretRefRegex = regexp.MustCompile(`\$\{secret:([^}]+)\}`)

// Resolver looks up named secrets for configuration references.
// The environment-backed implementation maps "name" to the environment
// variable CONDUIT_SECRET_<NAME>.
type Resolver interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// EnvResolver resolves secrets from process environment variables.
type EnvResolver struct {
	// Prefix is prepended to the upper-cased secret name. Default
	// "CONDUIT_SECRET_".
	Prefix string
}

// GetSecret implements Resolver.
func (r *EnvResolver) GetSecret(_ context.Context, name string) (string, error) {
	prefix := r.Prefix
	if prefix == "" {
		prefix = "CONDUIT_SECRET_"
	}
	key := prefix + strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name))
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", fmt.Errorf("secret not found: %q (environment variable %s unset)", name, key)
	}
	return value, nil
}

// ResolveReferences replaces ${secret:name} patterns in the input with
// values from the resolver. Unresolvable references are kept verbatim
// and reported in the returned error.
func ResolveReferences(ctx context.Context, r Resolver, input string) (string, error) {
	var failures []string

	output := secretRefRegex.ReplaceAllStringFunc(input, func(match string) string {
		name := secretRefRegex.FindStringSubmatch(match)[1]
		value, err := r.GetSecret(ctx, name)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%q: %v", name, err))
			return match
		}
		return value
	})

	if len(failures) > 0 {
		return output, fmt.Errorf("failed to resolve secret references: %s", strings.Join(failures, "; "))
	}
	return output, nil
}
