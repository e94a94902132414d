package secret

import (
	"context"
	"fmt"
	"os"
)

// EnvProvider resolves secret references against process environment
// variables. The ref is the variable name: secretref:env:DEXCOM_CLIENT_SECRET.
type EnvProvider struct{}

// NewEnvProvider creates a provider backed by the process environment.
func NewEnvProvider() *EnvProvider {
	return &EnvProvider{}
}

func (p *EnvProvider) Name() string { return "env" }

// Resolve looks up ref as an environment variable. A set-but-empty variable
// resolves to the empty string; an unset variable is an error.
func (p *EnvProvider) Resolve(_ context.Context, ref string) (string, error) {
	val, ok := os.LookupEnv(ref)
	if !ok {
		return "", fmt.Errorf("secret: environment variable %q is not set", ref)
	}
	return val, nil
}

func (p *EnvProvider) Close() error { return nil }

var _ Provider = (*EnvProvider)(nil)
