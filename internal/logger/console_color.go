package logger

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/harrison/shellagent/internal/models"
)

// colorScheme defines consistent colors for result output.
// Green: success, Red: failure, Yellow: fallback, Cyan: labels.
type colorScheme struct {
	success *color.Color
	fail    *color.Color
	warn    *color.Color
	label   *color.Color
	header  *color.Color
}

// newColorScheme returns the standard scheme. When enabled is false every
// color prints plain text.
func newColorScheme(enabled bool) *colorScheme {
	s := &colorScheme{
		success: color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		warn:    color.New(color.FgYellow),
		label:   color.New(color.FgCyan),
		header:  color.New(color.Bold),
	}
	if !enabled {
		for _, c := range []*color.Color{s.success, s.fail, s.warn, s.label, s.header} {
			c.DisableColor()
		}
	} else {
		for _, c := range []*color.Color{s.success, s.fail, s.warn, s.label, s.header} {
			c.EnableColor()
		}
	}
	return s
}

// formatResultLine renders "Run <id>: <command> -> OK|FAILED [fallback]".
func formatResultLine(result models.StructuredResult, useColor bool) string {
	scheme := newColorScheme(useColor)

	status := scheme.success.Sprint("OK")
	if !result.Succeeded {
		status = scheme.fail.Sprint("FAILED")
	}

	line := fmt.Sprintf("%s %s: %q -> %s", scheme.label.Sprint("Run"), shortID(result.RunID), result.Command, status)
	if result.Fallback {
		line += " " + scheme.warn.Sprint("[fallback]")
	}
	if n := len(result.SimilarMatches); n > 0 {
		line += fmt.Sprintf(" (%d similar)", n)
	}
	return line
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

type batchSummary struct {
	total, succeeded, failed, fallbacks int
}

func summarize(results []models.StructuredResult) batchSummary {
	s := batchSummary{total: len(results)}
	for _, r := range results {
		if r.Succeeded {
			s.succeeded++
		} else {
			s.failed++
		}
		if r.Fallback {
			s.fallbacks++
		}
	}
	return s
}
