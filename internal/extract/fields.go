package extract

import "strings"

// Field identifies one recognized marker in free text.
type Field int

const (
	FieldIntent Field = iota
	FieldCommand
	FieldResult
	FieldOutput
)

func (f Field) String() string {
	switch f {
	case FieldIntent:
		return "intent"
	case FieldCommand:
		return "command"
	case FieldResult:
		return "result"
	case FieldOutput:
		return "output"
	default:
		return "unknown"
	}
}

// markers lists the recognized prefixes per field. The Chinese forms are the
// canonical document format written by the memory store.
var markers = []struct {
	field    Field
	prefixes []string
}{
	{FieldIntent, []string{"用户请求", "user request"}},
	{FieldCommand, []string{"执行命令", "command"}},
	{FieldResult, []string{"执行结果", "result"}},
	{FieldOutput, []string{"输出内容", "output"}},
}

// Canonical marker labels used when rendering a record as text.
const (
	MarkerIntent  = "用户请求"
	MarkerCommand = "执行命令"
	MarkerResult  = "执行结果"
	MarkerOutput  = "输出内容"

	ResultSuccess = "成功"
	ResultFailure = "失败"
)

var successValues = map[string]bool{
	"true":    true,
	"yes":     true,
	"1":       true,
	"success": true,
	"成功":      true,
}

// IsSuccessValue reports whether a result value means success.
func IsSuccessValue(v string) bool {
	return successValues[strings.ToLower(strings.TrimSpace(v))]
}

// Fields is a best-effort, possibly partial, parse of a free-text record.
type Fields struct {
	Intent    string
	Command   string
	Result    string
	Output    string
	Succeeded bool

	set uint8
}

// Has reports whether the field was recognized in the text.
func (f Fields) Has(field Field) bool {
	return f.set&(1<<uint(field)) != 0
}

// Empty reports whether no field was recognized.
func (f Fields) Empty() bool {
	return f.set == 0
}

func (f *Fields) assign(field Field, value string) bool {
	if f.Has(field) {
		return false
	}
	f.set |= 1 << uint(field)
	switch field {
	case FieldIntent:
		f.Intent = value
	case FieldCommand:
		f.Command = value
	case FieldResult:
		f.Result = value
		f.Succeeded = IsSuccessValue(value)
	case FieldOutput:
		f.Output = value
	}
	return true
}

// merge copies fields from other that f does not already have.
func (f *Fields) merge(other Fields) {
	for _, field := range []Field{FieldIntent, FieldCommand, FieldResult, FieldOutput} {
		if !other.Has(field) || f.Has(field) {
			continue
		}
		switch field {
		case FieldIntent:
			f.assign(field, other.Intent)
		case FieldCommand:
			f.assign(field, other.Command)
		case FieldResult:
			f.assign(field, other.Result)
		case FieldOutput:
			f.assign(field, other.Output)
		}
	}
}

// matchMarker reports which field s starts with and the value after the
// marker's colon. Matching ignores ASCII case and accepts ':' or '：'.
func matchMarker(s string) (Field, string, bool) {
	trimmed := strings.TrimLeft(s, " \t")

	for _, m := range markers {
		for _, p := range m.prefixes {
			if len(trimmed) < len(p) || !strings.EqualFold(trimmed[:len(p)], p) {
				continue
			}
			rest := strings.TrimLeft(trimmed[len(p):], " \t")
			switch {
			case strings.HasPrefix(rest, ":"):
				return m.field, strings.TrimSpace(rest[1:]), true
			case strings.HasPrefix(rest, "："):
				return m.field, strings.TrimSpace(rest[len("："):]), true
			}
		}
	}
	return 0, "", false
}

// Format renders a record in the canonical line-oriented marker format.
func Format(intent, command string, success bool, output string) string {
	result := ResultFailure
	if success {
		result = ResultSuccess
	}

	var b strings.Builder
	b.WriteString(MarkerIntent + ": " + intent + "\n")
	b.WriteString(MarkerCommand + ": " + command + "\n")
	b.WriteString(MarkerResult + ": " + result + "\n")
	b.WriteString(MarkerOutput + ": " + output)
	return b.String()
}
