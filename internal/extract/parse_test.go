package extract

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

// view is the exported surface of Fields used for comparisons.
type view struct {
	Intent, Command, Result, Output string
	Succeeded                       bool
}

func toView(f Fields) view {
	return view{f.Intent, f.Command, f.Result, f.Output, f.Succeeded}
}

func TestParseText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want view
	}{
		{
			name: "dash separated",
			text: "用户请求: X - 执行命令: Y - 执行结果: 成功",
			want: view{Intent: "X", Command: "Y", Result: "成功", Succeeded: true},
		},
		{
			name: "line separated",
			text: "用户请求: X\n执行命令: Y\n执行结果: 成功",
			want: view{Intent: "X", Command: "Y", Result: "成功", Succeeded: true},
		},
		{
			name: "canonical document with multi-line output",
			text: "用户请求: list files\n执行命令: ls\n执行结果: 成功\n输出内容: a.txt\nb.txt",
			want: view{Intent: "list files", Command: "ls", Result: "成功", Output: "a.txt\nb.txt", Succeeded: true},
		},
		{
			name: "english markers any case",
			text: "User Request: clean up\nCOMMAND: rm -rf build\nResult: yes",
			want: view{Intent: "clean up", Command: "rm -rf build", Result: "yes", Succeeded: true},
		},
		{
			name: "failure value",
			text: "command: rm ghost.txt - result: 失败",
			want: view{Command: "rm ghost.txt", Result: "失败"},
		},
		{
			name: "full width colon",
			text: "执行命令：pwd\n执行结果：true",
			want: view{Command: "pwd", Result: "true", Succeeded: true},
		},
		{
			name: "command containing a dash is kept whole on its line",
			text: "执行命令: ls -la - foo\n执行结果: 1",
			want: view{Command: "ls -la - foo", Result: "1", Succeeded: true},
		},
		{
			name: "unrecognized text",
			text: "the model said something unexpected",
			want: view{},
		},
		{
			name: "empty",
			text: "",
			want: view{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toView(ParseText(tt.text))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseText() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseWith_EarlierStrategyWins(t *testing.T) {
	// The line strategy reads "first"; the dash strategy finds a command
	// too but must not overwrite it.
	text := "执行命令: first\n用户请求: q - 执行命令: second"
	f := ParseText(text)
	assert.Equal(t, "first", f.Command)
}

func TestParseWith_OrderMatters(t *testing.T) {
	text := "执行命令: first\n用户请求: q - 执行命令: second"
	f := ParseWith(text, DashStrategy{}, LineStrategy{})
	assert.Equal(t, "first\n用户请求: q", f.Command)
}

func TestFieldsHas(t *testing.T) {
	f := ParseText("执行命令: ls")
	assert.True(t, f.Has(FieldCommand))
	assert.False(t, f.Has(FieldResult))
	assert.False(t, f.Empty())
	assert.True(t, ParseText("nothing").Empty())
}

func TestIsSuccessValue(t *testing.T) {
	for _, v := range []string{"true", "TRUE", "yes", "Yes", "1", "success", "SUCCESS", "成功", " true "} {
		assert.True(t, IsSuccessValue(v), v)
	}
	for _, v := range []string{"false", "no", "0", "失败", "", "succeeded"} {
		assert.False(t, IsSuccessValue(v), v)
	}
}

func TestFormatRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		ok     bool
		output string
	}{
		{"plain lines", true, "a.txt\nb.txt"},
		{"output repeats a set marker", true, "ok pkg/a\nResult: 3 passed\nok pkg/b"},
		{"output repeats the canonical markers", false, "用户请求: nested\n执行命令: echo hi\n输出内容: inner\ntail"},
		{"empty output", true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ResultFailure
			if tt.ok {
				result = ResultSuccess
			}
			f := ParseText(Format("run tests", "go test ./...", tt.ok, tt.output))
			want := view{Intent: "run tests", Command: "go test ./...", Result: result, Output: tt.output, Succeeded: tt.ok}
			if diff := cmp.Diff(want, toView(f)); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLineStrategyOutputStopsAtUnsetMarker(t *testing.T) {
	f := LineStrategy{}.Parse("output: line one\nline two\ncommand: ls\nafter")
	if f.Output != "line one\nline two" {
		t.Errorf("Output = %q, want %q", f.Output, "line one\nline two")
	}
	if f.Command != "ls" {
		t.Errorf("Command = %q, want %q", f.Command, "ls")
	}
}

func TestParseTextProperties(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("never panics", prop.ForAll(
		func(s string) bool {
			_ = ParseText(s)
			return true
		},
		gen.AnyString(),
	))

	properties.Property("dash and line encodings agree", prop.ForAll(
		func(intent, command string, ok bool) bool {
			result := ResultFailure
			if ok {
				result = ResultSuccess
			}
			dash := ParseText(fmt.Sprintf("用户请求: %s - 执行命令: %s - 执行结果: %s", intent, command, result))
			line := ParseText(fmt.Sprintf("用户请求: %s\n执行命令: %s\n执行结果: %s", intent, command, result))
			return dash.Command == command && line.Command == command &&
				dash.Intent == intent && line.Intent == intent &&
				dash.Succeeded == ok && line.Succeeded == ok
		},
		gen.Identifier(),
		gen.Identifier(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
