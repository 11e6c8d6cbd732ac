package llm

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantContent string
		wantSession string
		wantErr     bool
	}{
		{
			name:        "result envelope",
			raw:         `{"type":"result","result":"ls -la","session_id":"abc"}`,
			wantContent: "ls -la",
			wantSession: "abc",
		},
		{
			name:        "structured output wins",
			raw:         `{"type":"result","result":"ignored","structured_output":{"tool":"execute"},"session_id":"s1"}`,
			wantContent: `{"tool":"execute"}`,
			wantSession: "s1",
		},
		{
			name:        "null structured output falls back to result",
			raw:         `{"type":"result","result":"pwd","structured_output":null}`,
			wantContent: "pwd",
		},
		{
			name:        "content field",
			raw:         `{"content":"echo hi"}`,
			wantContent: "echo hi",
		},
		{
			name:        "warning line before envelope",
			raw:         "Warning: something\n{\"type\":\"result\",\"result\":\"ok\"}",
			wantContent: "ok",
		},
		{
			name:        "code fenced bare object",
			raw:         "```json\n{\"status\":\"success\"}\n```",
			wantContent: `{"status":"success"}`,
		},
		{
			name:        "bare object",
			raw:         `{"status":"success"}`,
			wantContent: `{"status":"success"}`,
		},
		{
			name:        "plain text",
			raw:         "no json here",
			wantContent: "",
		},
		{
			name:        "empty",
			raw:         "   ",
			wantContent: "",
		},
		{
			name:        "is_error",
			raw:         `{"type":"result","is_error":true,"result":"rate limited","session_id":"x"}`,
			wantSession: "x",
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, session, err := ParseResponse([]byte(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantSession, session)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantContent, content)
			assert.Equal(t, tt.wantSession, session)
		})
	}
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a":{"b":1}}`, ExtractJSON(`text {"a":{"b":1}} trailing`))
	assert.Equal(t, "", ExtractJSON("nothing"))
	assert.Equal(t, "", ExtractJSON("} backwards {"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdef", 2))
}

func TestClaudeCLI_Args(t *testing.T) {
	c := NewClaudeCLI()
	c.Model = "haiku"

	args, err := c.Args(Request{Prompt: "list files", Schema: `{"type":"object"}`})
	require.NoError(t, err)

	joined := strings.Join(args, " ")
	assert.Equal(t, "--system-prompt", args[0])
	assert.Equal(t, DefaultSystemPrompt, args[1])
	assert.Contains(t, joined, "-p list files")
	assert.Contains(t, joined, `--json-schema {"type":"object"}`)
	assert.Contains(t, joined, "--model haiku")
	assert.Contains(t, joined, "--output-format json")
	assert.Contains(t, args, `{"disableAllHooks": true}`)
}

func TestClaudeCLI_ArgsWithoutOptionalFlags(t *testing.T) {
	c := NewClaudeCLI()

	args, err := c.Args(Request{System: "be brief", Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "be brief", args[1])
	assert.NotContains(t, args, "--json-schema")
	assert.NotContains(t, args, "--model")
}

func TestClaudeCLI_ArgsRequiresPrompt(t *testing.T) {
	_, err := NewClaudeCLI().Args(Request{})
	assert.Error(t, err)
}

func TestClaudeCLI_Name(t *testing.T) {
	c := NewClaudeCLI()
	assert.Equal(t, "claude-cli", c.Name())
	c.Model = "sonnet"
	assert.Equal(t, "claude-cli:sonnet", c.Name())
}

func TestClaudeCLI_MissingBinary(t *testing.T) {
	c := &ClaudeCLI{ClaudePath: "/nonexistent/claude-binary"}
	_, err := c.Complete(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "claude invocation failed")
}

func TestSetCleanEnv(t *testing.T) {
	t.Setenv("TMPDIR", "/some/where")

	cmd := exec.Command("true")
	SetCleanEnv(cmd)

	var found []string
	for _, env := range cmd.Env {
		if strings.HasPrefix(env, "TMPDIR=") {
			found = append(found, env)
		}
	}
	require.Len(t, found, 1)
	assert.Equal(t, "TMPDIR="+CleanTmpDir(), found[0])
}

func TestRequest_Defaults(t *testing.T) {
	assert.Equal(t, DefaultMaxTokens, Request{}.maxTokens())
	assert.Equal(t, 10, Request{MaxTokens: 10}.maxTokens())

	assert.Equal(t, "p", Request{Prompt: "p"}.promptWithSchema())
	withSchema := Request{Prompt: "p", Schema: "{}"}.promptWithSchema()
	assert.True(t, strings.HasPrefix(withSchema, "p\n"))
	assert.True(t, strings.HasSuffix(withSchema, "{}"))
}

func TestEcho(t *testing.T) {
	e := NewEcho("fixed").Queue("first", "second")
	ctx := context.Background()

	for _, want := range []string{"first", "second", "fixed", "fixed"} {
		got, err := e.Complete(ctx, Request{Prompt: "x"})
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Len(t, e.Calls(), 4)

	boom := errors.New("boom")
	e.FailWith(boom)
	_, err := e.Complete(ctx, Request{Prompt: "x"})
	assert.ErrorIs(t, err, boom)
}

func TestEcho_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEcho("x").Complete(ctx, Request{Prompt: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRateLimited(t *testing.T) {
	echo := NewEcho("ok")
	rl := NewRateLimited(echo, 60)
	assert.Equal(t, ProviderEcho, rl.Name())

	got, err := rl.Complete(context.Background(), Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)

	// The burst is spent; the next call must wait about a second.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = rl.Complete(ctx, Request{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit wait")
	assert.Len(t, echo.Calls(), 1)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantName string
		wantErr  string
	}{
		{name: "default is claude cli", cfg: Config{}, wantName: "claude-cli"},
		{name: "claude cli with model", cfg: Config{Provider: "claude-cli", Model: "opus"}, wantName: "claude-cli:opus"},
		{name: "echo", cfg: Config{Provider: "ECHO"}, wantName: "echo"},
		{name: "anthropic needs key", cfg: Config{Provider: "anthropic"}, wantErr: "API key"},
		{name: "openai needs key", cfg: Config{Provider: "openai"}, wantErr: "API key"},
		{name: "anthropic", cfg: Config{Provider: "anthropic", APIKey: "k", Model: "m"}, wantName: "anthropic:m"},
		{name: "openai default model", cfg: Config{Provider: "openai", APIKey: "k"}, wantName: "openai:" + DefaultOpenAIModel},
		{name: "unknown", cfg: Config{Provider: "bard"}, wantErr: "unsupported llm provider"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, c.Name())
		})
	}
}

func TestNew_RateLimitedWrapper(t *testing.T) {
	c, err := New(Config{Provider: ProviderEcho, RequestsPerMinute: 30})
	require.NoError(t, err)
	_, ok := c.(*RateLimited)
	assert.True(t, ok)
}
