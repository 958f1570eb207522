//go:build !integration

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"jobsee-orchestrator/internal/config"
)

func TestWith(t *testing.T) {
	t.Run("should attach run fields from context", func(t *testing.T) {
		var buf bytes.Buffer
		base := newWithWriter(config.LogConfig{Level: "info", Format: "json"}, false, &buf)

		ctx := WithTaskID(WithUserID(WithTraceID(context.Background(), "tr-1"), "u-1"), "task-1")
		ctx = WithPlatform(ctx, "LinkedIn")
		With(ctx, base).Info().Msg("hello")

		var line map[string]any
		if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
			t.Fatalf("expected json log line, got %q: %v", buf.String(), err)
		}
		for k, want := range map[string]string{"trace_id": "tr-1", "user_id": "u-1", "task_id": "task-1", "platform": "LinkedIn"} {
			if line[k] != want {
				t.Errorf("expected %s=%s, got %v", k, want, line[k])
			}
		}
	})
}

func TestRedact(t *testing.T) {
	if got := Redact("jane.doe@example.com", false); got != "jane...om" {
		t.Errorf("unexpected redaction %q", got)
	}
	if got := Redact("short", false); got != "***" {
		t.Errorf("expected short values fully hidden, got %q", got)
	}
	if got := Redact("visible", true); got != "visible" {
		t.Errorf("expected dev mode passthrough, got %q", got)
	}
}
