package config

import (
	"testing"
	"time"
)

func TestGetenv(t *testing.T) {
	t.Setenv("AGENTPIPE_TEST_VAL", "  set  ")
	if got := Getenv("AGENTPIPE_TEST_VAL", "fallback"); got != "set" {
		t.Fatalf("unexpected value: %q", got)
	}
	if got := Getenv("AGENTPIPE_TEST_MISSING", "fallback"); got != "fallback" {
		t.Fatalf("unexpected fallback: %q", got)
	}
}

func TestParseIntEnv(t *testing.T) {
	t.Setenv("AGENTPIPE_TEST_INT", "42")
	if got := ParseIntEnv("AGENTPIPE_TEST_INT", 7); got != 42 {
		t.Fatalf("unexpected value: %d", got)
	}
	t.Setenv("AGENTPIPE_TEST_INT", "not a number")
	if got := ParseIntEnv("AGENTPIPE_TEST_INT", 7); got != 7 {
		t.Fatalf("expected fallback, got %d", got)
	}
}

func TestParseDurationEnv(t *testing.T) {
	t.Setenv("AGENTPIPE_TEST_DUR", "250ms")
	if got := ParseDurationEnv("AGENTPIPE_TEST_DUR", time.Second); got != 250*time.Millisecond {
		t.Fatalf("unexpected value: %v", got)
	}
	if got := ParseDurationEnv("AGENTPIPE_TEST_DUR_MISSING", time.Second); got != time.Second {
		t.Fatalf("expected fallback, got %v", got)
	}
}

func TestParseBoolString(t *testing.T) {
	cases := map[string]bool{
		"1": true, "true": true, "YES": true, "on": true,
		"0": false, "false": false, "No": false, "off": false,
	}
	for raw, want := range cases {
		if got := ParseBoolString(raw, !want); got != want {
			t.Fatalf("ParseBoolString(%q) = %v, want %v", raw, got, want)
		}
	}
	if !ParseBoolString("garbage", true) {
		t.Fatalf("expected fallback for unparseable input")
	}
}
