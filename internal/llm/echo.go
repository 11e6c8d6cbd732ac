package llm

import (
	"context"
	"fmt"
	"sync"
)

// Echo is an offline client that replies with fixed text. It backs demos
// without credentials and the tests of every LLM-driven component.
type Echo struct {
	mu      sync.Mutex
	reply   string
	replies []string
	err     error
	calls   []Request
}

// NewEcho returns a client that always answers reply.
func NewEcho(reply string) *Echo {
	return &Echo{reply: reply}
}

// Queue makes the next calls answer with replies in order, then fall back
// to the fixed reply.
func (e *Echo) Queue(replies ...string) *Echo {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.replies = append(e.replies, replies...)
	return e
}

// FailWith makes every call fail with err.
func (e *Echo) FailWith(err error) *Echo {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
	return e
}

func (e *Echo) Name() string { return ProviderEcho }

func (e *Echo) Complete(ctx context.Context, req Request) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls = append(e.calls, req)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if e.err != nil {
		return "", e.err
	}
	if req.Prompt == "" {
		return "", fmt.Errorf("prompt is required")
	}
	if len(e.replies) > 0 {
		r := e.replies[0]
		e.replies = e.replies[1:]
		return r, nil
	}
	return e.reply, nil
}

// Calls returns the requests received so far.
func (e *Echo) Calls() []Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Request(nil), e.calls...)
}
