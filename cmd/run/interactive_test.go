package main

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func keys(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestTraceViewer_Filter(t *testing.T) {
	v := newTraceViewer("trace.csv", []traceRow{
		{Seq: 1, Call: "fd_write", Errno: "ESUCCESS"},
		{Seq: 2, Call: "path_open", Errno: "ENOENT", ErrnoCode: 44},
		{Seq: 3, Call: "fd_read", Errno: "ESUCCESS"},
	}, 0)

	if n := len(v.table.Rows()); n != 3 {
		t.Fatalf("expected 3 rows, got %d", n)
	}

	v.Update(keys("/"))
	if !v.filter.Focused() {
		t.Fatalf("expected / to focus the filter")
	}
	v.Update(keys("fd_"))
	if n := len(v.table.Rows()); n != 2 {
		t.Errorf("expected 2 fd_ rows, got %d", n)
	}
	v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if v.filter.Focused() {
		t.Errorf("expected enter to leave the filter")
	}

	v.filter.SetValue("")
	v.Update(keys("e"))
	if rows := v.table.Rows(); len(rows) != 1 || rows[0][1] != "path_open" {
		t.Errorf("expected only the failed call, got %v", rows)
	}
	if view := v.View(); !strings.Contains(view, "1 of 3 calls (errors only)") {
		t.Errorf("unexpected status line in view:\n%s", view)
	}

	if _, cmd := v.Update(keys("q")); cmd == nil {
		t.Errorf("expected q to quit")
	}
}

func TestTraceViewer_Empty(t *testing.T) {
	v := newTraceViewer("empty", nil, 4)
	view := v.View()
	if !strings.Contains(view, "No calls recorded.") || !strings.Contains(view, "4 older calls dropped") {
		t.Errorf("unexpected view:\n%s", view)
	}
}
