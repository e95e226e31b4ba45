package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, []string{"CONN", "STATUS"}, &TableOptions{NoColor: true})
	table.AddRow("main", "ok")
	table.AddStatusRow(StatusFailed, "replica", "connection refused")
	table.Render()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d:\n%s", len(lines), buf.String())
	}
	if lines[0] != "CONN     STATUS" {
		t.Errorf("unexpected header %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "───────  ──") {
		t.Errorf("unexpected separator %q", lines[1])
	}
	if lines[2] != "main     ok" {
		t.Errorf("unexpected row %q", lines[2])
	}
	if lines[3] != "replica  connection refused" {
		t.Errorf("unexpected row %q", lines[3])
	}
	if table.Len() != 2 {
		t.Errorf("expected 2 rows, got %d", table.Len())
	}
}

func TestTable_Empty(t *testing.T) {
	var buf bytes.Buffer
	NewTable(&buf, nil, nil).Render()

	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestTable_StatusColor(t *testing.T) {
	prev := color.NoColor
	color.NoColor = false
	defer func() { color.NoColor = prev }()

	var buf bytes.Buffer
	table := NewTable(&buf, []string{"CONN", "STATUS"}, nil)
	table.AddStatusRow(StatusFailed, "replica", "down")
	table.AddStatusRow(StatusOK, "main", "ok")
	table.Render()

	out := buf.String()
	// cells are padded before coloring
	if !strings.Contains(out, "\x1b[31mreplica\x1b[0m  ") {
		t.Errorf("expected red padded cell in %q", out)
	}
	if !strings.Contains(out, "\x1b[32mmain   \x1b[0m") {
		t.Errorf("expected green padded cell in %q", out)
	}
}
