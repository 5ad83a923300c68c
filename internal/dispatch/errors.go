package dispatch

import (
	"fmt"
	"strings"

	"github.com/xaenox/mailsift/internal/models"
)

// Cause is the last failure seen from one provider.
type Cause struct {
	Provider string
	Role     models.ProviderRole
	Err      error
}

// ProviderError is returned once the primary and fallback are exhausted.
// Interrupted holds the context error when the schedule was cut short.
type ProviderError struct {
	Task        models.TaskType
	Causes      []Cause
	Interrupted error
}

func (e *ProviderError) Error() string {
	parts := make([]string, 0, len(e.Causes))
	for _, c := range e.Causes {
		parts = append(parts, fmt.Sprintf("%s (%s): %v", c.Provider, c.Role, c.Err))
	}
	if e.Interrupted != nil {
		parts = append(parts, fmt.Sprintf("interrupted: %v", e.Interrupted))
	}
	return fmt.Sprintf("task %s: all providers failed: %s", e.Task, strings.Join(parts, "; "))
}

func (e *ProviderError) Unwrap() []error {
	errs := make([]error, 0, len(e.Causes))
	for _, c := range e.Causes {
		errs = append(errs, c.Err)
	}
	if e.Interrupted != nil {
		errs = append(errs, e.Interrupted)
	}
	return errs
}

func (e *ProviderError) record(step Step, err error) {
	for i := range e.Causes {
		if e.Causes[i].Provider == step.Endpoint.Config.Name {
			e.Causes[i].Err = err
			return
		}
	}
	e.Causes = append(e.Causes, Cause{Provider: step.Endpoint.Config.Name, Role: step.Role, Err: err})
}
