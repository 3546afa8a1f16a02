package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T, cats map[string]bool) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	UseLogger(zap.New(core), cats)
	t.Cleanup(func() { UseLogger(zap.NewNop(), nil) })
	return logs
}

func TestGet_TagsCategory(t *testing.T) {
	logs := observe(t, nil)

	Perception("parsed intent %s", "CreateTask")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Message != "parsed intent CreateTask" {
		t.Errorf("message = %q", entries[0].Message)
	}
	if got := entries[0].ContextMap()["category"]; got != "perception" {
		t.Errorf("category = %v, want perception", got)
	}
}

func TestGet_DisabledCategoryIsSilent(t *testing.T) {
	logs := observe(t, map[string]bool{"store": false})

	Store("should not appear")
	Planner("should appear")

	if logs.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", logs.Len())
	}
	if logs.All()[0].ContextMap()["category"] != "planner" {
		t.Errorf("unexpected entry: %+v", logs.All()[0])
	}
}

func TestWith_AddsFields(t *testing.T) {
	logs := observe(t, nil)

	Get(CategorySession).With("session_id", "abc").Info("turn started")

	fields := logs.All()[0].ContextMap()
	if fields["session_id"] != "abc" {
		t.Errorf("session_id = %v", fields["session_id"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"", zapcore.InfoLevel, false},
		{"debug", zapcore.DebugLevel, false},
		{"WARNING", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) err = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInitialize_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tasknerd.log")
	logger, err := Initialize(Options{Level: "debug", Format: "json", File: path})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { UseLogger(zap.NewNop(), nil) })

	Executor("executed plan %s", "create_task")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "executed plan create_task") {
		t.Errorf("log file missing entry: %s", data)
	}

	if err := SetLevel("error"); err != nil {
		t.Fatalf("SetLevel: %v", err)
	}
	if Level() != zapcore.ErrorLevel {
		t.Errorf("Level() = %v, want error", Level())
	}
	_ = SetLevel("info")
}
