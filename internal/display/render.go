package display

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/harrison/shellagent/internal/models"
)

// IsTerminal reports whether w is a terminal that should get color.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Renderer writes human-readable output.
type Renderer struct {
	w       io.Writer
	label   *color.Color
	ok      *color.Color
	fail    *color.Color
	warn    *color.Color
	dim     *color.Color
	section *color.Color
}

// NewRenderer enables color only when w is a terminal.
func NewRenderer(w io.Writer) *Renderer {
	return NewRendererWithColor(w, IsTerminal(w))
}

// NewRendererWithColor forces color on or off.
func NewRendererWithColor(w io.Writer, useColor bool) *Renderer {
	r := &Renderer{
		w:       w,
		label:   color.New(color.FgCyan, color.Bold),
		ok:      color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		warn:    color.New(color.FgYellow),
		dim:     color.New(color.FgHiBlack),
		section: color.New(color.Bold),
	}
	for _, c := range []*color.Color{r.label, r.ok, r.fail, r.warn, r.dim, r.section} {
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return r
}

// Result prints the command, status, output, analysis and similar commands.
func (r *Renderer) Result(res models.StructuredResult) {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s\n", r.label.Sprint("Command:"), orPlaceholder(res.Command, "(none)"))

	status := r.ok.Sprint("success")
	if !res.Succeeded {
		status = r.fail.Sprint("failed")
	}
	if res.Fallback {
		status += " " + r.warn.Sprint("(fallback)")
	}
	fmt.Fprintf(&b, "%s %s\n", r.label.Sprint("Status:"), status)

	if out := strings.TrimRight(res.Output, "\n"); out != "" {
		fmt.Fprintf(&b, "%s\n%s\n", r.label.Sprint("Output:"), indent(out, "  "))
	}

	if !res.Succeeded && res.HasAnalysis() {
		fmt.Fprintf(&b, "%s\n%s\n", r.label.Sprint("Analysis:"), indent(res.ErrorAnalysis, "  "))
	}

	if len(res.SimilarMatches) > 0 {
		fmt.Fprintf(&b, "%s\n", r.label.Sprint("Similar commands:"))
		for i, m := range res.SimilarMatches {
			mark := r.ok.Sprint("✓")
			if !m.Record.Success {
				mark = r.fail.Sprint("✗")
			}
			fmt.Fprintf(&b, "  %d. %s %s %s\n", i+1, mark, m.Record.Command,
				r.dim.Sprintf("(%s, distance %.3f)", m.Record.Intent, m.Score))
		}
	}

	fmt.Fprint(r.w, b.String())
}

// History prints records newest first as they were given.
func (r *Renderer) History(records []models.CommandRecord) {
	if len(records) == 0 {
		fmt.Fprintln(r.w, r.dim.Sprint("No history yet."))
		return
	}

	var b strings.Builder
	for _, rec := range records {
		mark := r.ok.Sprint("✓")
		if !rec.Success {
			mark = r.fail.Sprint("✗")
		}
		when := ""
		if !rec.CreatedAt.IsZero() {
			when = rec.CreatedAt.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(&b, "%s %s %s\n", r.dim.Sprint(when), mark, rec.Command)
		fmt.Fprintf(&b, "    %s\n", r.dim.Sprint(rec.Intent))
	}
	fmt.Fprint(r.w, b.String())
}

// Section prints a bold heading.
func (r *Renderer) Section(title string) {
	fmt.Fprintln(r.w, r.section.Sprint(title))
}

// KeyValue prints one aligned "key: value" line.
func (r *Renderer) KeyValue(key string, value any) {
	fmt.Fprintf(r.w, "  %s %v\n", r.label.Sprintf("%-12s", key+":"), value)
}

// Check prints a pass/fail line for a diagnostic.
func (r *Renderer) Check(description string, passed bool, detail string) {
	mark := r.ok.Sprint("✓")
	if !passed {
		mark = r.fail.Sprint("✗")
	}
	line := fmt.Sprintf("%s %s", mark, description)
	if detail != "" {
		line += " " + r.dim.Sprint(detail)
	}
	fmt.Fprintln(r.w, line)
}

// JSON writes v as indented JSON.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

func orPlaceholder(s, placeholder string) string {
	if strings.TrimSpace(s) == "" {
		return placeholder
	}
	return s
}
