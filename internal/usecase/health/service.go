package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates an optional component is failing.
	Degraded Status = "degraded"
	// Unhealthy indicates a required component is failing.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

type component struct {
	name     string
	checker  Checker
	required bool
}

// Service coordinates health checks.
type Service struct {
	components []component
}

// New creates a Service with no checks.
func New() *Service {
	return &Service{}
}

// WithRequired adds a component whose failure makes the service unhealthy.
func (s *Service) WithRequired(name string, c Checker) *Service {
	s.components = append(s.components, component{name: name, checker: c, required: true})
	return s
}

// WithOptional adds a component whose failure only degrades the service.
// A nil checker is ignored.
func (s *Service) WithOptional(name string, c Checker) *Service {
	if c != nil {
		s.components = append(s.components, component{name: name, checker: c})
	}
	return s
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, len(s.components))
	status := Healthy
	for _, c := range s.components {
		if err := c.checker.HealthCheck(ctx); err != nil {
			checks[c.name] = CheckError
			if c.required {
				status = Unhealthy
			} else if status == Healthy {
				status = Degraded
			}
			continue
		}
		checks[c.name] = CheckOK
	}
	return Report{Status: status, Checks: checks}
}
