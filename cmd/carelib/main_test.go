package main

import (
	"testing"
)

func TestGetEnvReturnsValueWhenSet(t *testing.T) {
	const key = "TEST_GETENV_SET"
	const expected = "custom-value"

	t.Setenv(key, expected)

	result := getEnv(key, "fallback")
	if result != expected {
		t.Errorf("expected %q, got %q", expected, result)
	}
}

func TestGetEnvReturnsFallbackWhenUnset(t *testing.T) {
	const key = "TEST_GETENV_UNSET"
	const fallback = "default-value"

	result := getEnv(key, fallback)
	if result != fallback {
		t.Errorf("expected fallback %q, got %q", fallback, result)
	}
}

func TestSplitCSV(t *testing.T) {
	if got := splitCSV(""); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}

	got := splitCSV("https://liff.line.me, https://example.com ,,")
	want := []string{"https://liff.line.me", "https://example.com"}
	if len(got) != len(want) {
		t.Fatalf("expected %d origins, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("origin %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}
