// Package output renders CLI results: styled status lines and the run
// summary tables.
package output

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/tabmap-io/tabmap/pkg/core"
)

// Styles used for status lines.
var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

// Renderer writes human-facing command output.
type Renderer struct {
	out   io.Writer
	errW  io.Writer
	color bool
}

// NewRenderer creates a renderer. mode is auto, always or never; auto
// enables color only when out is a terminal that supports it.
func NewRenderer(out, errW io.Writer, mode string) *Renderer {
	return &Renderer{out: out, errW: errW, color: colorEnabled(out, mode)}
}

// colorEnabled decides the color switch for a writer and mode.
func colorEnabled(out io.Writer, mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return false
	}
	return termenv.EnvColorProfile() != termenv.Ascii
}

func (r *Renderer) styled(style lipgloss.Style, s string) string {
	if !r.color {
		return s
	}
	return style.Render(s)
}

// Successf prints a success status line.
func (r *Renderer) Successf(format string, args ...any) {
	fmt.Fprintln(r.out, r.styled(successStyle, fmt.Sprintf(format, args...)))
}

// Warnf prints a warning status line.
func (r *Renderer) Warnf(format string, args ...any) {
	fmt.Fprintln(r.out, r.styled(warnStyle, fmt.Sprintf(format, args...)))
}

// Errorf prints an error status line to the error stream.
func (r *Renderer) Errorf(format string, args ...any) {
	fmt.Fprintln(r.errW, r.styled(errorStyle, fmt.Sprintf(format, args...)))
}

// Infof prints a plain status line.
func (r *Renderer) Infof(format string, args ...any) {
	fmt.Fprintf(r.out, format+"\n", args...)
}

// Dimf prints a de-emphasized status line.
func (r *Renderer) Dimf(format string, args ...any) {
	fmt.Fprintln(r.out, r.styled(dimStyle, fmt.Sprintf(format, args...)))
}

// RunSummary renders the run's scope counts and per-field outcomes.
func (r *Renderer) RunSummary(run core.RunSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"", "Total", "Detail"})
	t.AppendRows([]table.Row{
		{"Files", run.Files, ""},
		{"Sheets", run.Sheets, ""},
		{"Tables", run.Tables, ""},
		{"Rows", run.Counts.Rows.Total, fmt.Sprintf("%d empty", run.Counts.Rows.Empty)},
		{"Columns", run.Counts.Columns.Total, fmt.Sprintf("%d empty", run.Counts.Columns.Empty)},
		{"Fields", run.Counts.Fields.Total, fmt.Sprintf("%d mapped, %d unmapped", run.Counts.Fields.Mapped, run.Counts.Fields.Unmapped)},
		{"Issues", run.Validation.Total, validationDetail(run.Validation)},
	})
	t.Render()

	if len(run.Fields) > 0 {
		ft := table.NewWriter()
		ft.SetOutputMirror(r.out)
		ft.SetStyle(table.StyleLight)
		ft.AppendHeader(table.Row{"Field", "Required", "Mapped", "Max score"})
		for _, f := range run.Fields {
			ft.AppendRow(table.Row{f.Name, yesNo(f.Required), yesNo(f.Mapped), fmt.Sprintf("%.2f", f.MaxScore)})
		}
		ft.Render()
	}
}

// validationDetail summarizes the severity breakdown of a scope.
func validationDetail(v core.ValidationAggregate) string {
	if v.Total == 0 {
		return ""
	}
	detail := ""
	for _, sev := range []core.Severity{core.SeverityCritical, core.SeverityError, core.SeverityWarning} {
		if n := v.BySeverity[string(sev)]; n > 0 {
			if detail != "" {
				detail += ", "
			}
			detail += fmt.Sprintf("%d %s", n, sev)
		}
	}
	if detail == "" {
		detail = "max " + string(v.MaxSeverity)
	}
	return detail
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
