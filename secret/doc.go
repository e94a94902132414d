// Package secret provides a small, dependency-light secret resolution layer
// for client credentials.
//
// It supports:
//   - Strict environment expansion (see ExpandEnvStrict)
//   - Pluggable secret providers (see Provider)
//   - Resolving secret references in configuration values (see Resolver)
//
// References use the prefix "secretref:":
//   - Full value:  secretref:env:DEXCOM_CLIENT_SECRET
//   - Inline use:  Basic secretref:env:DEXCOM_BASIC_CREDENTIALS
//
// Providers are handed to NewResolver explicitly; there is no global
// registry. Resolved values are secrets: callers must not log them.
package secret
