package utils

import (
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestColorWriterPrefixesEachLine(t *testing.T) {
	color.NoColor = true

	var sb strings.Builder
	w := NewColorWriter("bundle", &sb, true)

	if _, err := w.Write([]byte("first\nsecond\n")); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimRight(sb.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), sb.String())
	}
	for _, line := range lines {
		if !strings.Contains(line, "bundle") || !strings.Contains(line, "|") {
			t.Errorf("line missing prefix: %q", line)
		}
	}
}

func TestColorWriterPartialWritesShareOneLine(t *testing.T) {
	color.NoColor = true

	var sb strings.Builder
	w := NewColorWriter("db", &sb, true)

	for _, chunk := range []string{"par", "tial line\n", "next\n"} {
		if _, err := w.Write([]byte(chunk)); err != nil {
			t.Fatal(err)
		}
	}

	got := sb.String()
	if n := strings.Count(got, "|"); n != 2 {
		t.Fatalf("expected one prefix per completed line, got %d in %q", n, got)
	}
	if !strings.Contains(got, "partial line\n") {
		t.Errorf("partial chunks were split across prefixes: %q", got)
	}
}

func TestColorWriterTruncatesLongNames(t *testing.T) {
	color.NoColor = true

	var sb strings.Builder
	w := NewColorWriter("a-service-name-well-past-the-column-width", &sb, true)

	if _, err := w.Write([]byte("x\n")); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(sb.String(), "...") {
		t.Errorf("expected truncated name marker in %q", sb.String())
	}
}
