package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/harrison/shellagent/internal/models"
)

type fakeMemory struct {
	mu         sync.Mutex
	matches    []models.SimilarityMatch
	queryErr   error
	persistErr error
	queries    int
	persisted  []models.CommandRecord
}

func (m *fakeMemory) Query(_ context.Context, _ string, k int) ([]models.SimilarityMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries++
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	if len(m.matches) > k {
		return m.matches[:k], nil
	}
	return m.matches, nil
}

func (m *fakeMemory) Persist(_ context.Context, rec models.CommandRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persisted = append(m.persisted, rec)
	return m.persistErr
}

type fakeSynth struct {
	mu      sync.Mutex
	command string
	err     error
	calls   int
	seen    []models.SimilarityMatch
}

func (s *fakeSynth) Synthesize(_ context.Context, _ string, matches []models.SimilarityMatch) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.seen = matches
	if s.err != nil {
		return "", s.err
	}
	return s.command, nil
}

type fakeAnalyzer struct {
	mu       sync.Mutex
	analysis string
	err      error
	calls    int
	output   string
}

func (a *fakeAnalyzer) Analyze(_ context.Context, _, _, errorOutput string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	a.output = errorOutput
	if a.err != nil {
		return "", a.err
	}
	return a.analysis, nil
}

// fakeExecutor answers from a table keyed by command.
type fakeExecutor struct {
	mu       sync.Mutex
	results  map[string]models.ExecutionResult
	commands []string
	timeouts []time.Duration
	panicMsg string
}

func (e *fakeExecutor) Execute(_ context.Context, command string, timeout time.Duration) models.ExecutionResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commands = append(e.commands, command)
	e.timeouts = append(e.timeouts, timeout)
	if e.panicMsg != "" {
		panic(e.panicMsg)
	}
	if r, ok := e.results[command]; ok {
		return r
	}
	return models.ExecutionResult{Output: "sh: " + command + ": not found", Kind: models.FailureNonZeroExit, ExitCode: 127}
}

type plannerFunc func(ctx context.Context, snap Snapshot) (Decision, error)

func (f plannerFunc) Next(ctx context.Context, snap Snapshot) (Decision, error) {
	return f(ctx, snap)
}

// failAt delegates to the rule table until state is reached.
func failAt(state State, err error) Planner {
	return plannerFunc(func(ctx context.Context, snap Snapshot) (Decision, error) {
		if snap.State == state {
			return Decision{}, err
		}
		return RulePlanner{}.Next(ctx, snap)
	})
}

func panicAt(state State) Planner {
	return plannerFunc(func(ctx context.Context, snap Snapshot) (Decision, error) {
		if snap.State == state {
			panic("planner blew up")
		}
		return RulePlanner{}.Next(ctx, snap)
	})
}

var errPlanner = errors.New("planner unavailable")

type recordingLogger struct {
	mu    sync.Mutex
	warns []string
	errs  []string
}

func (l *recordingLogger) LogDebug(string) {}
func (l *recordingLogger) LogInfo(string)  {}

func (l *recordingLogger) LogWarn(m string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, m)
}

func (l *recordingLogger) LogError(m string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, m)
}
