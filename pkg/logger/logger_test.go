package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestLoggerInit(t *testing.T) {
	// Test development mode
	err := Init()
	if err != nil {
		t.Fatalf("failed to initialize development logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	logger := Get()
	if logger == nil {
		t.Fatal("logger is nil after initialization")
	}

	// Test production mode
	err = Init()
	if err != nil {
		t.Fatalf("failed to initialize production logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	logger = Get()
	if logger == nil {
		t.Fatal("logger is nil after initialization")
	}
}

// Basic logging test (slog-backed; no Sugar)
func TestLoggerBasic(t *testing.T) {
	err := Init()
	if err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	logger := Get()
	if logger == nil {
		t.Fatal("logger is nil")
	}

	ctx := context.Background()
	logger.Info(ctx, "test message", String("k", "v"))
}

func TestLoggerNamed(t *testing.T) {
	err := Init()
	if err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	namedLogger := Named("test")
	if namedLogger == nil {
		t.Fatal("named logger is nil")
	}

	ctx := context.Background()
	namedLogger.Info(ctx, "test message")
}

func TestLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf, FormatJSON); err != nil {
		t.Fatalf("failed to initialize json logger: %v", err)
	}
	Named("service").Info(context.Background(), "recompute finished", Int("updated", 3), Bool("partial", false), Duration("took", time.Second))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected a json line, got %q: %v", buf.String(), err)
	}
	if line["msg"] != "recompute finished" {
		t.Errorf("unexpected message %v", line["msg"])
	}
	group, ok := line["service"].(map[string]any)
	if !ok || group["updated"] != float64(3) {
		t.Errorf("expected named group with fields, got %v", line)
	}

	if err := InitWithWriter(&buf, "xml"); err == nil {
		t.Error("expected unknown format to fail")
	}
}

func TestSetLevelString(t *testing.T) {
	var buf bytes.Buffer
	if err := InitWithWriter(&buf, FormatText); err != nil {
		t.Fatalf("init: %v", err)
	}
	ctx := context.Background()

	Get().Debug(ctx, "hidden")
	if strings.Contains(buf.String(), "hidden") {
		t.Error("debug line written at info level")
	}
	if err := SetLevelString("debug"); err != nil {
		t.Fatalf("set level: %v", err)
	}
	Get().Debug(ctx, "shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Error("debug line missing after lowering the level")
	}
	if err := SetLevelString("loud"); err == nil {
		t.Error("expected unknown level to fail")
	}
}

func TestStandaloneLoggers(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, FormatText)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	l.Warn(context.Background(), "skipped record", String("user_id", "u7"))
	if !strings.Contains(buf.String(), "user_id=u7") {
		t.Errorf("expected field in output, got %q", buf.String())
	}
	if _, err := New(&buf, "xml"); err == nil {
		t.Error("expected unknown format to fail")
	}

	// Discard must be usable without Init.
	Discard().Error(context.Background(), "dropped")
}
