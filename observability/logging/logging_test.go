package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestSetupWithOptionsEmitsStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithOptions(Options{Service: "vaultd", Env: "test", Level: "debug", Output: &buf})
	logger.Debug("vault deposit", "amount", "10")

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	for key, want := range map[string]string{
		"service":  "vaultd",
		"env":      "test",
		"severity": "DEBUG",
		"message":  "vault deposit",
		"amount":   "10",
	} {
		if line[key] != want {
			t.Fatalf("expected %s=%q, got %v", key, want, line[key])
		}
	}
	if _, ok := line["timestamp"]; !ok {
		t.Fatalf("missing timestamp key")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithOptions(Options{Service: "vaultd", Level: "warn", Output: &buf})
	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info line should be filtered at warn level")
	}
	if ParseLevel("bogus") != slog.LevelInfo {
		t.Fatalf("unknown levels default to info")
	}
}

func TestMaskField(t *testing.T) {
	if attr := MaskField("signature", "0xdeadbeef"); attr.Value.String() != RedactedValue {
		t.Fatalf("signature should be redacted, got %s", attr.Value)
	}
	if attr := MaskField("code", "VaultLocked"); attr.Value.String() != "VaultLocked" {
		t.Fatalf("allowlisted key should pass through, got %s", attr.Value)
	}
	if got := Fingerprint("0123456789abcdef0123"); got != "0123…0123" {
		t.Fatalf("unexpected fingerprint %q", got)
	}
	if got := Fingerprint("short"); got != RedactedValue {
		t.Fatalf("short values are fully masked, got %q", got)
	}
}
