package cmd

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/shellagent/internal/display"
	"github.com/harrison/shellagent/internal/executor"
	"github.com/harrison/shellagent/internal/llm"
)

// doctorCheckTimeout bounds each shell probe.
const doctorCheckTimeout = 10 * time.Second

// ErrDoctorFailed is returned when at least one check fails.
var ErrDoctorFailed = errors.New("one or more checks failed")

func newDoctorCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that the shell, memory and model backend are usable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			a, err := openApp(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := a.close(); cerr != nil && err == nil {
					err = cerr
				}
			}()

			r := display.NewRenderer(a.out)
			failed := false

			engine := executor.NewEngine()
			engine.DefaultTimeout = doctorCheckTimeout
			engine.WorkDir = a.cfg.Execution.WorkDir

			r.Section("Shell")
			r.KeyValue("Interpreter", engine.Shell().Path)
			for _, res := range executor.RunChecksWithResults(ctx, engine, executor.HostChecks(engine.Shell())) {
				detail := strings.TrimSpace(res.Output)
				if !res.Passed() {
					failed = true
					detail = res.Error.Error()
				}
				r.Check(res.Description, res.Passed(), detail)
			}

			r.Section("Memory")
			st, err := a.store.Stats(ctx)
			if err != nil {
				failed = true
				r.Check("memory readable", false, err.Error())
			} else {
				r.Check("memory readable", true, fmt.Sprintf("%s, %d records", a.store.Path(), st.Records))
			}

			r.Section("Model")
			r.KeyValue("Provider", a.cfg.LLM.Provider)
			passed, detail := checkModelBackend(a)
			if !passed {
				failed = true
			}
			r.Check("backend configured", passed, detail)

			if failed {
				return ErrDoctorFailed
			}
			return nil
		},
	}
}

// checkModelBackend verifies configuration without spending a model call.
func checkModelBackend(a *app) (bool, string) {
	cfg := a.cfg
	switch cfg.LLM.Provider {
	case llm.ProviderClaudeCLI:
		bin := cfg.LLM.ClaudePath
		if bin == "" {
			bin = "claude"
		}
		path, err := exec.LookPath(bin)
		if err != nil {
			return false, fmt.Sprintf("%s not found in PATH", bin)
		}
		return true, path
	case llm.ProviderAnthropic, llm.ProviderOpenAI:
		if llmKey(cfg) == "" {
			return false, "API key not set"
		}
		return true, "API key set"
	default:
		return true, cfg.LLM.Provider
	}
}
