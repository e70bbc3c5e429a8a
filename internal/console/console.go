// Package console renders user-facing output: section rules, status lines,
// the launch URL and progress bars. Styling is dropped when the writer is not
// a terminal.
package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"

	"github.com/jeanhaley32/reflexctl/internal/terminal"
)

// Console writes styled output to a writer.
type Console struct {
	w     io.Writer
	tty   bool
	width int

	rule    lipgloss.Style
	success lipgloss.Style
	warn    lipgloss.Style
	err     lipgloss.Style
	url     lipgloss.Style
}

// New creates a Console writing to w.
func New(w io.Writer) *Console {
	r := lipgloss.NewRenderer(w)
	return &Console{
		w:       w,
		tty:     terminal.IsTerminal(w),
		width:   terminal.Width(w),
		rule:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("62")),
		success: r.NewStyle().Foreground(lipgloss.Color("42")),
		warn:    r.NewStyle().Foreground(lipgloss.Color("214")),
		err:     r.NewStyle().Foreground(lipgloss.Color("196")),
		url:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
	}
}

// Writer returns the underlying writer.
func (c *Console) Writer() io.Writer {
	return c.w
}

// Rule prints a horizontal rule with title centred in it.
func (c *Console) Rule(title string) {
	fill := c.width - len(title) - 2
	if title == "" {
		fill = c.width
	}
	if fill < 4 {
		fill = 4
	}
	left := fill / 2
	line := strings.Repeat("─", left)
	if title != "" {
		line += " " + title + " "
	}
	line += strings.Repeat("─", fill-left)
	fmt.Fprintln(c.w, c.rule.Render(line))
}

// Print writes an unstyled line.
func (c *Console) Print(format string, args ...any) {
	fmt.Fprintln(c.w, fmt.Sprintf(format, args...))
}

// Success writes a line in the success colour.
func (c *Console) Success(format string, args ...any) {
	fmt.Fprintln(c.w, c.success.Render(fmt.Sprintf(format, args...)))
}

// Warn writes a warning line.
func (c *Console) Warn(format string, args ...any) {
	fmt.Fprintln(c.w, c.warn.Render(fmt.Sprintf(format, args...)))
}

// Error writes an error line.
func (c *Console) Error(format string, args ...any) {
	fmt.Fprintln(c.w, c.err.Render(fmt.Sprintf(format, args...)))
}

// URL prints the label followed by the highlighted url.
func (c *Console) URL(label, url string) {
	fmt.Fprintf(c.w, "%s %s\n", label, c.url.Render(url))
}

// ProgressBar returns a bar counting to total. It is hidden when the output is
// not a terminal.
func (c *Console) ProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(c.w),
		progressbar.OptionSetVisibility(c.tty),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if c.tty {
				_, _ = fmt.Fprint(c.w, "\n")
			}
		}),
	)
}
