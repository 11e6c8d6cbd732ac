package generator

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var markdown = goldmark.New()

// ExtractCommand pulls a shell command out of a model reply.
//
// The first fenced code block wins. Without one, the first non-empty line
// is used, stripped of a leading "$ " prompt and surrounding backticks.
func ExtractCommand(reply string) string {
	if block, ok := firstCodeBlock(reply); ok {
		return cleanLine(block)
	}
	for _, line := range strings.Split(reply, "\n") {
		if line = cleanLine(line); line != "" {
			return line
		}
	}
	return ""
}

func firstCodeBlock(reply string) (string, bool) {
	source := []byte(reply)
	doc := markdown.Parser().Parse(text.NewReader(source))

	var (
		body  strings.Builder
		found bool
	)
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || found {
			return ast.WalkContinue, nil
		}
		fenced, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		lines := fenced.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			body.Write(seg.Value(source))
		}
		found = true
		return ast.WalkStop, nil
	})

	block := strings.TrimSpace(body.String())
	return block, found && block != ""
}

// cleanLine trims one line or a multi-line block. Multi-line blocks keep
// their inner newlines; each line loses a "$ " prompt.
func cleanLine(s string) string {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "\n") {
		lines := strings.Split(s, "\n")
		for i, l := range lines {
			lines[i] = strings.TrimPrefix(strings.TrimRight(l, " \t\r"), "$ ")
		}
		return strings.TrimSpace(strings.Join(lines, "\n"))
	}
	s = strings.TrimPrefix(s, "$ ")
	s = strings.Trim(s, "`")
	return strings.TrimSpace(s)
}
