package dispatch

import (
	"fmt"

	"github.com/xaenox/mailsift/internal/models"
	"github.com/xaenox/mailsift/internal/provider"
)

// Step is one provider attempt of a call.
type Step struct {
	Role     models.ProviderRole
	Attempt  int
	Endpoint provider.Endpoint
}

func (s Step) String() string {
	return fmt.Sprintf("%s-attempt-%d(%s)", s.Role, s.Attempt, s.Endpoint.Config.Name)
}

// Schedule enumerates every attempt of a call in order: primary attempts
// 1..N followed by fallback attempts 1..M. Running past the last step means
// the call is exhausted.
func Schedule(b provider.Binding) []Step {
	steps := appendSteps(nil, models.RolePrimary, b.Primary)
	if b.Fallback != nil {
		steps = appendSteps(steps, models.RoleFallback, *b.Fallback)
	}
	return steps
}

func appendSteps(steps []Step, role models.ProviderRole, ep provider.Endpoint) []Step {
	n := ep.Config.RetryAttempts
	if n < 1 {
		n = 1
	}
	for i := 1; i <= n; i++ {
		steps = append(steps, Step{Role: role, Attempt: i, Endpoint: ep})
	}
	return steps
}
