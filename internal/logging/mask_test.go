package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestMaskSensitive(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"bearer", "Authorization: Bearer abc123.xyz", "Authorization: Bearer ****"},
		{"bearer lowercase", "bearer secret-token", "Bearer ****"},
		{"api key equals", "api_key=sk-12345", "api_key=****"},
		{"api key colon", "apikey: sk-12345", "apikey=****"},
		{"password", "password=hunter2!", "password=****"},
		{"pwd", "pwd: hunter2", "pwd=****"},
		{"token", "token=deadbeef", "token=****"},
		{"clean", "nothing secret here", "nothing secret here"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaskSensitive(tt.in); got != tt.want {
				t.Errorf("MaskSensitive(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSetupMasksMessagesAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(Options{Level: slog.LevelInfo, Console: &buf})

	logger.Info("upload with Bearer super-secret-token", "auth", "token=abcdef")

	out := buf.String()
	if strings.Contains(out, "super-secret-token") || strings.Contains(out, "abcdef") {
		t.Fatalf("secret leaked into log output: %s", out)
	}
	if !strings.Contains(out, "Bearer ****") {
		t.Errorf("masked bearer missing from output: %s", out)
	}
}

func TestSetupBroadcastsInfoAndAbove(t *testing.T) {
	var lines []string
	logger := Setup(Options{
		Level:   slog.LevelInfo,
		Console: &bytes.Buffer{},
		Broadcast: func(_ slog.Level, line string) {
			lines = append(lines, line)
		},
	})

	logger.Debug("quiet")
	logger.Info("hello", "key", "value")
	logger.Error("boom with token=secret123")

	if len(lines) != 2 {
		t.Fatalf("broadcast lines = %d, want 2: %v", len(lines), lines)
	}
	if !strings.Contains(lines[0], "hello") || !strings.Contains(lines[0], "key=value") {
		t.Errorf("unexpected broadcast line: %s", lines[0])
	}
	if strings.Contains(lines[1], "secret123") {
		t.Errorf("broadcast leaked secret: %s", lines[1])
	}
}
