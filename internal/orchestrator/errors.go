package orchestrator

import (
	"errors"
	"fmt"
)

// ErrMechanism marks a failure of the adaptive loop itself, as opposed to a
// failure of the command being run.
var ErrMechanism = errors.New("orchestration mechanism fault")

// MechanismFault describes why the adaptive loop gave up.
type MechanismFault struct {
	State  State
	Reason string
	Err    error
}

func (f *MechanismFault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%v in state %s: %s: %v", ErrMechanism, f.State, f.Reason, f.Err)
	}
	return fmt.Sprintf("%v in state %s: %s", ErrMechanism, f.State, f.Reason)
}

func (f *MechanismFault) Unwrap() []error {
	if f.Err != nil {
		return []error{ErrMechanism, f.Err}
	}
	return []error{ErrMechanism}
}

func newFault(state State, reason string, err error) *MechanismFault {
	return &MechanismFault{State: state, Reason: reason, Err: err}
}
