package httpapi

import (
	"testing"
	"time"
)

func TestSetMaxBodyBytes_DefaultWhenNonPositive(t *testing.T) {
	SetMaxBodyBytes(-1)
	if maxBodyBytes != 1<<20 {
		t.Fatalf("expected default 1MiB, got %d", maxBodyBytes)
	}
	SetMaxBodyBytes(0)
	if maxBodyBytes != 1<<20 {
		t.Fatalf("expected default 1MiB on zero, got %d", maxBodyBytes)
	}
}

func TestSetMaxBodyBytes_PositiveSetsValue(t *testing.T) {
	defer SetMaxBodyBytes(0)
	SetMaxBodyBytes(1234)
	if maxBodyBytes != 1234 {
		t.Fatalf("expected 1234, got %d", maxBodyBytes)
	}
}

func TestSetWaitTimeout_NormalizesNegativeToZero(t *testing.T) {
	defer SetWaitTimeout(15 * time.Second)
	SetWaitTimeout(-time.Second)
	if waitTimeout != 0 {
		t.Fatalf("expected 0, got %v", waitTimeout)
	}
	SetWaitTimeout(3 * time.Second)
	if waitTimeout != 3*time.Second {
		t.Fatalf("expected 3s, got %v", waitTimeout)
	}
}

func TestCORSMiddlewareDisabledByDefault(t *testing.T) {
	SetCORSOptions(false, nil, nil, nil)
	if corsMiddleware() != nil {
		t.Fatalf("expected no CORS middleware when disabled")
	}
	SetCORSOptions(true, nil, nil, nil)
	defer SetCORSOptions(false, nil, nil, nil)
	if corsMiddleware() == nil {
		t.Fatalf("expected CORS middleware when enabled")
	}
}
