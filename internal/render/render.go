// Package render draws an organized layout as two text columns, and as a
// document for JSON or YAML output.
package render

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/watertap-org/flowsheet-int/internal/constants"
	"github.com/watertap-org/flowsheet-int/internal/models"
	"github.com/watertap-org/flowsheet-int/internal/organize"
)

// UncategorizedTitle heads the section of variables without a category.
const UncategorizedTitle = "(uncategorized)"

// Options controls text rendering.
type Options struct {
	// Width is the total width available. Zero means DefaultTerminalWidth.
	Width int
	// ShowAll includes sections that have no input variables.
	ShowAll bool
	// SolveType decides whether sweep settings are shown.
	SolveType models.SolveType
}

// TerminalWidth returns the width of f if it is a terminal, otherwise the default.
func TerminalWidth(f *os.File) int {
	if f != nil && term.IsTerminal(int(f.Fd())) {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			return w
		}
	}
	return constants.DefaultTerminalWidth
}

// ColumnWidths splits width like the panel's grid: two columns of 5.8/12
// with the rest as gutter.
func ColumnWidths(width int) (column, gutter int) {
	if width <= 0 {
		width = constants.DefaultTerminalWidth
	}
	column = width * 58 / 120
	return column, width - 2*column
}

type styles struct {
	title    lipgloss.Style
	label    lipgloss.Style
	value    lipgloss.Style
	muted    lipgloss.Style
	section  lipgloss.Style
	renderer *lipgloss.Renderer
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("#89b4fa")),
		label:    r.NewStyle().Foreground(lipgloss.Color("#cdd6f4")),
		value:    r.NewStyle().Foreground(lipgloss.Color("#a6e3a1")),
		muted:    r.NewStyle().Foreground(lipgloss.Color("#7f849c")),
		section:  r.NewStyle().MarginBottom(1),
		renderer: r,
	}
}

// Columns writes res as two columns. Columns narrower than MinColumnWidth
// are stacked, left above right.
func Columns(w io.Writer, res *organize.Result, opts Options) error {
	st := newStyles(w)
	colWidth, gutter := ColumnWidths(opts.Width)

	var out string
	if colWidth < constants.MinColumnWidth {
		full := colWidth*2 + gutter
		out = lipgloss.JoinVertical(lipgloss.Left,
			renderColumn(st, res.Left, full, opts),
			renderColumn(st, res.Right, full, opts),
		)
	} else {
		out = lipgloss.JoinHorizontal(lipgloss.Top,
			renderColumn(st, res.Left, colWidth, opts),
			strings.Repeat(" ", gutter),
			renderColumn(st, res.Right, colWidth, opts),
		)
	}

	if _, err := io.WriteString(w, strings.TrimRight(out, " \n")+"\n"); err != nil {
		return fmt.Errorf("write layout: %w", err)
	}
	return nil
}

func renderColumn(st styles, sections []*organize.Section, width int, opts Options) string {
	var blocks []string
	for _, sec := range sections {
		if sec == nil || (!opts.ShowAll && !sec.HasInputs()) {
			continue
		}
		blocks = append(blocks, renderSection(st, sec, width, opts))
	}
	col := st.renderer.NewStyle().Width(width)
	if len(blocks) == 0 {
		return col.Render("")
	}
	return col.Render(lipgloss.JoinVertical(lipgloss.Left, blocks...))
}

func renderSection(st styles, sec *organize.Section, width int, opts Options) string {
	title := sec.DisplayName
	if title == "" {
		title = UncategorizedTitle
	}

	lines := []string{st.title.Render(title)}
	vars := sec.InputVariables
	if opts.ShowAll {
		vars = sec.Variables
	}
	vars.Range(func(key string, v *models.Variable) bool {
		lines = append(lines, renderVariable(st, key, v, opts)...)
		return true
	})
	return st.section.Width(width).Render(strings.Join(lines, "\n"))
}

func renderVariable(st styles, key string, v *models.Variable, opts Options) []string {
	label := v.Label()
	if label == "" {
		label = key
	}

	value := v.Value.String()
	if v.DisplayUnits != "" {
		value += " " + v.DisplayUnits
	}

	mode := "fixed"
	if !v.Fixed {
		mode = "free"
		if opts.SolveType == models.SolveSweep && v.IsSweep {
			mode = "sweep"
		}
	}
	if !v.IsInput {
		mode = "output"
	}

	lines := []string{fmt.Sprintf("  %s: %s %s",
		st.label.Render(label), st.value.Render(value), st.muted.Render("("+mode+")"))}

	if v.IsInput && !v.Fixed {
		detail := fmt.Sprintf("    bounds [%s, %s]", formatBound(v.LowerBound), formatBound(v.UpperBound))
		if mode == "sweep" {
			detail += fmt.Sprintf(" samples %d", v.NumSamples)
		}
		lines = append(lines, st.muted.Render(detail))
	}
	return lines
}

func formatBound(b *float64) string {
	if b == nil {
		return "-"
	}
	return strconv.FormatFloat(*b, 'g', -1, 64)
}
