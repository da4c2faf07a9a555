package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":    slog.LevelDebug,
		"info":     slog.LevelInfo,
		"warn":     slog.LevelWarn,
		"error":    slog.LevelError,
		"":         slog.LevelInfo,
		"nonsense": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestJSONFormatEmitsParseableRecords(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, "info", "json"))

	log.Info("Ticket settled", "ticket", "01X", "allowed", true)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("record is not JSON: %v\n%s", err, buf.String())
	}
	if rec["msg"] != "Ticket settled" || rec["ticket"] != "01X" {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestTextFormatRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, "warn", "text"))

	log.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("info record leaked past warn level: %s", buf.String())
	}
	log.Warn("visible")
	if buf.Len() == 0 {
		t.Error("warn record was dropped")
	}
}

func TestContextCarriesTraceAndScope(t *testing.T) {
	ctx := context.Background()
	if GetTraceID(ctx) != "" || GetScopeKey(ctx) != "" {
		t.Error("empty context should carry no identifiers")
	}

	ctx = WithTraceID(ctx, "01HX4")
	ctx = WithScopeKey(ctx, "U1:C1:direct")

	if got := GetTraceID(ctx); got != "01HX4" {
		t.Errorf("trace id = %q", got)
	}
	if got := GetScopeKey(ctx); got != "U1:C1:direct" {
		t.Errorf("scope key = %q", got)
	}
}
