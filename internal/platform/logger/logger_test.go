package logger

import (
	"strings"
	"testing"
)

func TestSanitizeKVsHashesUserAndRedactsHealthValues(t *testing.T) {
	out := sanitizeKVs([]interface{}{
		"user_id", "2b6f0cc9-4a1c-4f5e-9b7e-2f6a3d1c8e10",
		"latest_weight_kg", 81.4,
		"version_number", 3,
		"dangling",
	})
	if len(out) != 7 {
		t.Fatalf("want 7 values, got %d", len(out))
	}
	if s, _ := out[1].(string); !strings.HasPrefix(s, "hash:") || len(s) != len("hash:")+12 {
		t.Fatalf("user_id not hashed: %v", out[1])
	}
	if out[3] != "[REDACTED]" {
		t.Fatalf("weight not redacted: %v", out[3])
	}
	if out[5] != 3 {
		t.Fatalf("plain value changed: %v", out[5])
	}
	if out[6] != "dangling" {
		t.Fatalf("odd trailing key dropped: %v", out[6])
	}
}

func TestNopLoggerAcceptsCalls(t *testing.T) {
	l := Nop().With("service", "test")
	l.Info("hello", "user_id", "u1")
	l.Warn("warn")
	l.Sync()
}
