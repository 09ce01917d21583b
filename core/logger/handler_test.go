package logger

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newTestHandler(format logFormat) (*structuredHandler, *asyncWriter, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	h := newStructuredHandler(handlerConfig{
		level:  slog.LevelInfo,
		writer: aw,
		format: format,
	})
	return h, aw, buf
}

func flushLine(t *testing.T, aw *asyncWriter, buf *bytes.Buffer) string {
	t.Helper()
	if err := aw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("expected log line")
	}
	return line
}

func TestStructuredHandlerKVOrder(t *testing.T) {
	h, aw, buf := newTestHandler(formatKV)
	ctx := WithRID(context.Background(), "rid-123")
	ctx = WithUpdateMeta(ctx, 42, 7, 9)

	LogEvent(ctx, slog.New(h).With("component", "onboarding"), slog.LevelInfo, "session.transition",
		slog.String("status", "ok"),
		slog.String("cause", "unit"),
	)
	line := flushLine(t, aw, buf)

	tokens := strings.Split(line, " ")
	expected := []string{"ts=", "level=INFO", "component=onboarding", "event=session.transition", "status=ok", "rid=rid-123", "update_id=42", "user_id=7", "chat_id=9"}
	if len(tokens) < len(expected) {
		t.Fatalf("unexpected token count: %d (%s)", len(tokens), line)
	}
	for i, prefix := range expected {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, expected prefix %s", i, tokens[i], prefix)
		}
	}
}

func TestStructuredHandlerJSONOrder(t *testing.T) {
	h, aw, buf := newTestHandler(formatJSON)
	ctx := WithJob(WithRID(context.Background(), "run-1"), "weekly")

	LogEvent(ctx, slog.New(h).With("component", "notify"), slog.LevelError, "dispatch.fail",
		slog.String("status", "FAIL"),
		slog.Any("err", errors.New("boom")),
	)
	line := flushLine(t, aw, buf)

	prefixes := []string{`{"ts":`, `"level":"ERROR"`, `"component":"notify"`, `"event":"dispatch.fail"`, `"status":"fail"`, `"rid":"run-1"`, `"job":"weekly"`, `"err":"boom"`}
	pos := -1
	for _, pref := range prefixes {
		idx := strings.Index(line, pref)
		if idx == -1 || idx < pos {
			t.Fatalf("prefix %s not found in order within %s", pref, line)
		}
		pos = idx
	}
}

func TestStructuredHandlerCompactRID(t *testing.T) {
	h, aw, buf := newTestHandler(formatKV)
	rawRID := "123:456:789"
	LogEvent(WithRID(context.Background(), rawRID), slog.New(h), slog.LevelInfo, "rid.test")
	line := flushLine(t, aw, buf)

	if !strings.Contains(line, "rid="+CompactRID(rawRID)) {
		t.Fatalf("expected compact rid, got %s", line)
	}
	if strings.Contains(line, "rid_full=") || strings.Contains(line, "ts_unix_nano=") {
		t.Fatalf("json-only keys leaked into KV output: %s", line)
	}
	if !strings.Contains(line, "component=app") {
		t.Fatalf("expected default component, got %s", line)
	}
}

func TestStructuredHandlerCompactRIDJSON(t *testing.T) {
	h, aw, buf := newTestHandler(formatJSON)
	rawRID := "12:34:56"
	LogEvent(WithRID(context.Background(), rawRID), slog.New(h), slog.LevelInfo, "rid.test")
	line := flushLine(t, aw, buf)

	if !strings.Contains(line, `"rid":"`+CompactRID(rawRID)+`"`) {
		t.Fatalf("expected compact rid in JSON, got %s", line)
	}
	if !strings.Contains(line, `"rid_full":"`+rawRID+`"`) {
		t.Fatalf("expected rid_full in JSON output, got %s", line)
	}
	if !strings.Contains(line, `"ts_unix_nano"`) {
		t.Fatalf("expected ts_unix_nano in JSON output, got %s", line)
	}
}

func TestStructuredHandlerDurationsAndLevels(t *testing.T) {
	h, aw, buf := newTestHandler(formatKV)
	log := slog.New(h)
	log.Debug("hidden")
	log.Info("job.done",
		slog.Duration("duration", 1234*time.Microsecond),
		slog.Duration("dispatch_timeout", 2*time.Second),
		slog.String("outcome", "bogus"),
		slog.String("empty", ""),
	)
	line := flushLine(t, aw, buf)

	if strings.Contains(line, "hidden") {
		t.Fatalf("debug line should be filtered: %s", line)
	}
	for _, want := range []string{"event=job.done", "duration_ms=1", "dispatch_timeout_ms=2000"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %s", want, line)
		}
	}
	if strings.Contains(line, "outcome=") || strings.Contains(line, "empty=") {
		t.Fatalf("unexpected keys in %s", line)
	}
}

func TestWriteAfterClose(t *testing.T) {
	aw := newAsyncWriter([]io.Writer{io.Discard}, 0)
	if err := aw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := aw.Write([]byte("late\n")); !errors.Is(err, errWriterClosed) {
		t.Fatalf("expected errWriterClosed, got %v", err)
	}
}

func TestCompactRIDPassthrough(t *testing.T) {
	if got := CompactRID("weekly-8f1c"); got != "weekly-8f1c" {
		t.Fatalf("non-update rid changed: %s", got)
	}
	if got := CompactRID("35:36:37"); got != "z.10.11" {
		t.Fatalf("compact = %s", got)
	}
}
