package diagnostics

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	warningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	locationStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	codeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF"))
)

// Renderer writes diagnostics, one per line.
type Renderer struct {
	w     io.Writer
	color bool
}

// NewRenderer creates a renderer. mode is auto, always or never; auto
// enables styling only when w is a terminal.
func NewRenderer(w io.Writer, mode string) *Renderer {
	return &Renderer{w: w, color: useColor(w, mode)}
}

func useColor(w io.Writer, mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Render writes all diagnostics and returns the number of errors among them.
func (r *Renderer) Render(diags []Diagnostic) (int, error) {
	errs := 0
	for _, d := range diags {
		if d.Severity == Error {
			errs++
		}
		if _, err := fmt.Fprintln(r.w, r.Format(d)); err != nil {
			return errs, err
		}
	}
	return errs, nil
}

// Format renders one diagnostic.
func (r *Renderer) Format(d Diagnostic) string {
	location := d.Span.String()
	severity := d.Severity.String()
	code := string(d.Code)
	if r.color {
		location = locationStyle.Render(location)
		code = codeStyle.Render(code)
		if d.Severity == Error {
			severity = errorStyle.Render(severity)
		} else {
			severity = warningStyle.Render(severity)
		}
	}
	return fmt.Sprintf("%s: %s[%s]: %s", location, severity, code, d.Message)
}
