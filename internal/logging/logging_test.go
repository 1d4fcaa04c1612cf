package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    zapcore.Level
		wantErr bool
	}{
		{input: "", want: zapcore.InfoLevel},
		{input: "debug", want: zapcore.DebugLevel},
		{input: "WARN", want: zapcore.WarnLevel},
		{input: "error", want: zapcore.ErrorLevel},
		{input: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestNewWithoutOutputs(t *testing.T) {
	logger, err := New(Config{Level: "info"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logger.Core().Enabled(zapcore.ErrorLevel) {
		t.Error("expected a no-op logger when no outputs are configured")
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(Config{Level: "loud"}); err == nil {
		t.Error("expected error for invalid level")
	}
}

func TestFileReceivesDebug(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "debug.log")
	logger, err := New(Config{Level: "error", File: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	logger.Debug("handshake posted", zap.String("modal_id", "modal.products.1"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	got := string(data)
	if !strings.Contains(got, `"message":"handshake posted"`) {
		t.Errorf("expected debug entry in file, got %q", got)
	}
	if !strings.Contains(got, `"modal_id":"modal.products.1"`) {
		t.Errorf("expected modal_id field in file, got %q", got)
	}
}

func TestEnableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	logger, err := EnableFile(zap.NewNop(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.Warn("no live channel, dropping message")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one entry, got %d lines: %q", len(lines), data)
	}
	if !strings.Contains(lines[0], "debug session started") {
		t.Errorf("expected session header, got %q", lines[0])
	}
	if !strings.Contains(lines[1], `"level":"warn"`) {
		t.Errorf("expected warn entry, got %q", lines[1])
	}
}
