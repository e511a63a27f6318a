package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/stacksolve/internal/testrepo"
	"github.com/matzehuels/stacksolve/pkg/materialize"
	"github.com/matzehuels/stacksolve/pkg/pipeline"
)

func solveHDF5(t *testing.T) *materialize.Result {
	t.Helper()
	runner := pipeline.NewRunner(testrepo.Repository(), nil, nil, nil, log.New(io.Discard))
	res, err := runner.Execute(context.Background(), pipeline.Options{
		Specs:   []string{"hdf5~mpi"},
		Formats: []string{pipeline.FormatJSON},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	return res.Solution
}

func TestValidateOutput(t *testing.T) {
	for _, f := range []string{outputText, outputTree, outputJSON} {
		if err := validateOutput(f); err != nil {
			t.Errorf("validateOutput(%q) = %v", f, err)
		}
	}
	if err := validateOutput("xml"); err == nil {
		t.Error("validateOutput(xml) should fail")
	}
}

func TestShortHash(t *testing.T) {
	if got := shortHash("abcdefghij"); got != "abcdefg" {
		t.Errorf("shortHash = %q", got)
	}
	if got := shortHash("abc"); got != "abc" {
		t.Errorf("shortHash = %q", got)
	}
}

func TestWriteText(t *testing.T) {
	res := solveHDF5(t)
	var buf bytes.Buffer
	if err := writeText(&buf, res); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "hdf5@") || strings.Contains(lines[0], "^") {
		t.Errorf("root line = %q", lines[0])
	}
	for _, l := range lines[1:] {
		if !strings.Contains(l, "^") {
			t.Errorf("dependency line %q not marked", l)
		}
	}
}

func TestWriteTree(t *testing.T) {
	res := solveHDF5(t)
	var buf bytes.Buffer
	if err := writeTree(&buf, res); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"hdf5@", "cmake@", "zlib@", "[build]"} {
		if !strings.Contains(out, want) {
			t.Errorf("tree missing %q:\n%s", want, out)
		}
	}
}

func TestBrowseModel(t *testing.T) {
	res := solveHDF5(t)
	m := NewBrowseModel(res)
	if len(m.Nodes) != 3 {
		t.Fatalf("nodes = %d, want 3", len(m.Nodes))
	}

	key := func(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }
	step := func(m BrowseModel, msg tea.Msg) BrowseModel {
		next, _ := m.Update(msg)
		return next.(BrowseModel)
	}

	m = step(m, key("j"))
	if m.Cursor != 1 {
		t.Errorf("cursor after j = %d", m.Cursor)
	}
	m = step(m, key("G"))
	if m.Cursor != 2 {
		t.Errorf("cursor after G = %d", m.Cursor)
	}
	m = step(m, key("j"))
	if m.Cursor != 2 {
		t.Errorf("cursor moved past the end: %d", m.Cursor)
	}
	m = step(m, key("g"))
	if m.Cursor != 0 || m.Selected() != m.Nodes[0] {
		t.Errorf("cursor after g = %d", m.Cursor)
	}
	m = step(m, key(" "))
	if m.Details {
		t.Error("space should hide the detail pane")
	}
	m = step(m, tea.WindowSizeMsg{Width: 80, Height: 10})
	if m.Height != 5 {
		t.Errorf("height = %d, want the minimum 5", m.Height)
	}

	if _, cmd := m.Update(key("q")); cmd == nil {
		t.Error("q should quit")
	}
	view := m.View()
	if !strings.Contains(view, "Concrete DAG") || !strings.Contains(view, "Deps") {
		t.Error("view missing title or dependency column")
	}
	for _, n := range m.Nodes {
		if n.Name == "zlib" && !strings.Contains(m.detail(n), "needed by: hdf5") {
			t.Errorf("zlib detail = %q, want its dependent listed", m.detail(n))
		}
	}
}
