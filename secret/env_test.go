package secret

import (
	"context"
	"testing"
)

func TestEnvProvider_Resolve(t *testing.T) {
	t.Setenv("CLIENT_SECRET_TEST", "s3cret")

	p := NewEnvProvider()
	got, err := p.Resolve(context.Background(), "CLIENT_SECRET_TEST")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != "s3cret" {
		t.Errorf("Resolve() = %q, want %q", got, "s3cret")
	}
}

func TestEnvProvider_UnsetErrors(t *testing.T) {
	p := NewEnvProvider()
	if _, err := p.Resolve(context.Background(), "DEFINITELY_NOT_SET_XYZ"); err == nil {
		t.Error("Resolve() of unset variable: expected error")
	}
}

func TestResolver_WithEnvProvider(t *testing.T) {
	t.Setenv("API_CREDENTIAL", "abc123")

	r := NewResolver(true, NewEnvProvider())
	got, err := r.ResolveValue(context.Background(), "secretref:env:API_CREDENTIAL")
	if err != nil {
		t.Fatalf("ResolveValue() error = %v", err)
	}
	if got != "abc123" {
		t.Errorf("ResolveValue() = %q, want %q", got, "abc123")
	}
}
