package cli

import (
	"fmt"
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/stacksolve/pkg/dag"
	"github.com/matzehuels/stacksolve/pkg/materialize"
	"github.com/matzehuels/stacksolve/pkg/spec"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
	detailBoxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorDim).Padding(0, 1)
)

// =============================================================================
// BrowseModel - Interactive solution browser
// =============================================================================

// BrowseModel is the bubbletea model for browsing a concrete DAG node by
// node. Nodes are listed dependencies first; the detail pane shows the
// selected node's edges in both directions.
type BrowseModel struct {
	Nodes   []*spec.Spec
	Reused  map[string]bool
	Graph   *dag.DAG
	Cursor  int
	Height  int
	Offset  int
	Details bool

	byHash map[string]*spec.Spec
}

// NewBrowseModel creates a browser over a materialized solution.
func NewBrowseModel(res *materialize.Result) BrowseModel {
	return BrowseModel{
		Nodes:   res.Specs(),
		Reused:  res.Reused,
		Graph:   res.Graph,
		Height:  15,
		Details: true,
		byHash:  res.Nodes,
	}
}

func (m BrowseModel) Init() tea.Cmd {
	return nil
}

func (m BrowseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Nodes)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "home", "g":
			m.Cursor, m.Offset = 0, 0
		case "end", "G":
			m.Cursor = max(len(m.Nodes)-1, 0)
			m.Offset = max(m.Cursor-m.Height+1, 0)
		case "enter", " ":
			m.Details = !m.Details
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-16, 5)
	}
	return m, nil
}

func (m BrowseModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Concrete DAG"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ details  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Nodes))
	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		n := m.Nodes[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		v, _ := n.Version()
		reused := ""
		if m.Reused[n.Hash] {
			reused = "✓"
		}
		deps := fmt.Sprint(len(m.Graph.Children(n.Hash)))
		rows = append(rows, []string{cursor, n.Name, v.String(), shortHash(n.Hash), deps, reused})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Package", "Version", "Hash", "Deps", "Reused").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			idx := m.Offset + row
			if idx == m.Cursor {
				return listSelectedStyle
			}
			if idx < len(m.Nodes) && m.Reused[m.Nodes[idx].Hash] {
				return StyleSuccess
			}
			return lipgloss.NewStyle()
		})

	b.WriteString(t.Render())
	b.WriteString("\n")
	if m.Details && len(m.Nodes) > 0 {
		b.WriteString(detailBoxStyle.Render(m.detail(m.Nodes[m.Cursor])))
		b.WriteString("\n")
	}
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Nodes))))
	return b.String()
}

func (m BrowseModel) detail(n *spec.Spec) string {
	var b strings.Builder
	b.WriteString(StyleHighlight.Render(n.NodeString()))
	b.WriteString("\n")
	b.WriteString(StyleDim.Render("/" + n.Hash))
	if m.Reused[n.Hash] {
		b.WriteString(" " + StyleSuccess.Render("installed"))
	}
	b.WriteString("\n")

	deps := n.Dependencies()
	if len(deps) > 0 {
		b.WriteString("\ndepends on:\n")
		for _, e := range deps {
			fmt.Fprintf(&b, "  %s %s\n", e.Spec.Name+"/"+shortHash(e.Spec.Hash), StyleDim.Render("["+e.Types.String()+"]"))
		}
	}
	if users := m.Graph.Parents(n.Hash); len(users) > 0 {
		names := make([]string, len(users))
		for i, h := range users {
			names[i] = m.byHash[h].Name
		}
		slices.Sort(names)
		b.WriteString("\nneeded by: " + strings.Join(slices.Compact(names), ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

// Selected returns the node under the cursor.
func (m BrowseModel) Selected() *spec.Spec {
	if len(m.Nodes) == 0 {
		return nil
	}
	return m.Nodes[m.Cursor]
}

// runBrowser runs the browser until the user quits.
func runBrowser(res *materialize.Result) error {
	_, err := tea.NewProgram(NewBrowseModel(res), tea.WithAltScreen()).Run()
	return err
}
