package orchestrator

import (
	"strings"

	"github.com/harrison/shellagent/internal/models"
)

// State is the phase a request is in. Each state is entered by performing
// the capability of the same name.
type State int

const (
	StateIdle State = iota
	StateRetrieving
	StateSynthesizing
	StateExecuting
	StateAnalyzing
	StatePersisting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRetrieving:
		return "retrieving"
	case StateSynthesizing:
		return "synthesizing"
	case StateExecuting:
		return "executing"
	case StateAnalyzing:
		return "analyzing"
	case StatePersisting:
		return "persisting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Capability is one step the loop can take. The set is closed.
type Capability int

const (
	CapRetrieve Capability = iota + 1
	CapSynthesize
	CapExecute
	CapAnalyze
	CapPersist
	CapFinish
)

var capabilityNames = map[Capability]string{
	CapRetrieve:   models.ToolRetrieve,
	CapSynthesize: models.ToolSynthesize,
	CapExecute:    models.ToolExecute,
	CapAnalyze:    models.ToolAnalyze,
	CapPersist:    models.ToolPersist,
	CapFinish:     "finish",
}

func (c Capability) String() string {
	if name, ok := capabilityNames[c]; ok {
		return name
	}
	return "unknown"
}

// ParseCapability maps a name such as "execute" to its Capability.
func ParseCapability(name string) (Capability, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for c, n := range capabilityNames {
		if n == name {
			return c, true
		}
	}
	return 0, false
}

// AllCapabilities lists every capability in step order.
func AllCapabilities() []Capability {
	return []Capability{CapRetrieve, CapSynthesize, CapExecute, CapAnalyze, CapPersist, CapFinish}
}

// Typed inputs and outputs recorded in the trace for each capability.
type (
	RetrieveInput struct {
		Intent string `json:"intent"`
		K      int    `json:"k"`
	}
	RetrieveOutput struct {
		Matches []models.SimilarityMatch `json:"matches"`
	}
	SynthesizeInput struct {
		Intent  string `json:"intent"`
		Matches int    `json:"matches"`
	}
	SynthesizeOutput struct {
		Command string `json:"command"`
	}
	ExecuteInput struct {
		Command string `json:"command"`
	}
	AnalyzeInput struct {
		Intent  string `json:"intent"`
		Command string `json:"command"`
		Output  string `json:"output"`
	}
	PersistInput struct {
		Record models.CommandRecord `json:"record"`
	}
	PersistOutput struct {
		Stored bool   `json:"stored"`
		Error  string `json:"error,omitempty"`
	}
)
