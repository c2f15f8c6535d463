package debug

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDisabledLoggerWritesNothing(t *testing.T) {
	base := filepath.Join(t.TempDir(), "dumps")
	l := New(false, base, "cat")
	l.LogUpstreamRequest("gpt-4o", map[string]string{"a": "b"})
	l.LogToolArguments(`{"content":"<svg/>"}`)
	l.LogSummary("gpt-4o", nil)

	if l.Dir() != "" {
		t.Fatalf("Dir()=%q want empty", l.Dir())
	}
	if _, err := os.Stat(base); !os.IsNotExist(err) {
		t.Fatalf("expected no dump directory, stat err=%v", err)
	}
}

func TestEnabledLoggerWritesDumpFiles(t *testing.T) {
	base := t.TempDir()
	l := New(true, base, "cat")
	if !strings.HasSuffix(l.Dir(), "_cat") {
		t.Fatalf("Dir()=%q want suffix _cat", l.Dir())
	}

	l.LogUpstreamRequest("gpt-4o", map[string]string{"prompt": "cat"})
	l.LogToolArguments(`{"content":"<svg/>"}`)
	l.LogContent("<svg/>")
	l.LogSummary("gpt-4o", errors.New("boom"))

	for _, name := range []string{"1_upstream_request.json", "2_tool_arguments.json", "3_content.svg", "4_summary.json"} {
		if _, err := os.Stat(filepath.Join(l.Dir(), name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}
	summary, err := os.ReadFile(filepath.Join(l.Dir(), "4_summary.json"))
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	if !strings.Contains(string(summary), `"error": "boom"`) {
		t.Fatalf("unexpected summary: %s", summary)
	}
}

func TestCleanupOldDirsKeepsNewest(t *testing.T) {
	base := t.TempDir()
	for _, name := range []string{"2024-01-01", "2024-01-02", "2024-01-03"} {
		if err := os.MkdirAll(filepath.Join(base, name), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	cleanupOldDirs(base, 2)

	if _, err := os.Stat(filepath.Join(base, "2024-01-01")); !os.IsNotExist(err) {
		t.Fatalf("expected oldest dir removed, stat err=%v", err)
	}
	if _, err := os.Stat(filepath.Join(base, "2024-01-03")); err != nil {
		t.Fatalf("expected newest dir kept: %v", err)
	}
}
