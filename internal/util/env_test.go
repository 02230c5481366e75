package util

import (
	"testing"
	"time"
)

func TestGetEnvFloat(t *testing.T) {
	tests := []struct {
		name  string
		value string
		set   bool
		want  float64
	}{
		{name: "unset", want: 0.8},
		{name: "valid", value: "0.65", set: true, want: 0.65},
		{name: "invalid", value: "high", set: true, want: 0.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.set {
				t.Setenv("KGRAPH_TEST_FLOAT", tt.value)
			}
			if got := GetEnvFloat("KGRAPH_TEST_FLOAT", 0.8); got != tt.want {
				t.Fatalf("unexpected value: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvIntAndBool(t *testing.T) {
	t.Setenv("KGRAPH_TEST_INT", "4")
	t.Setenv("KGRAPH_TEST_BAD_INT", "four")
	t.Setenv("KGRAPH_TEST_BOOL", "true")

	if got := GetEnvInt("KGRAPH_TEST_INT", 1); got != 4 {
		t.Fatalf("expected 4, got %d", got)
	}
	if got := GetEnvInt("KGRAPH_TEST_BAD_INT", 1); got != 1 {
		t.Fatalf("expected default 1, got %d", got)
	}
	if !GetEnvBool("KGRAPH_TEST_BOOL", false) {
		t.Fatal("expected true")
	}
	if GetEnvBool("KGRAPH_TEST_UNSET_BOOL", false) {
		t.Fatal("expected default false")
	}
	if got := GetEnvString("KGRAPH_TEST_UNSET_STRING", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("KGRAPH_TEST_DURATION", "90s")
	t.Setenv("KGRAPH_TEST_BAD_DURATION", "soon")

	if got := GetEnvDuration("KGRAPH_TEST_DURATION", time.Minute); got != 90*time.Second {
		t.Fatalf("expected 90s, got %v", got)
	}
	if got := GetEnvDuration("KGRAPH_TEST_BAD_DURATION", time.Minute); got != time.Minute {
		t.Fatalf("expected default 1m, got %v", got)
	}
}
