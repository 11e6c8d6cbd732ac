// Package display renders results, history and diagnostics for the terminal.
//
// Every function writes to an io.Writer. Color is used only when the writer
// is a terminal:
//
//	r := display.NewRenderer(os.Stdout)
//	r.Result(result)
//
// Warnings go to stderr the same way:
//
//	display.Warning{
//	    Title:      "Embedding provider unavailable",
//	    Message:    "GEMINI_API_KEY is not set",
//	    Suggestion: "Falling back to the hash embedder",
//	}.Display(os.Stderr)
package display
