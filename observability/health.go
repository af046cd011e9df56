package observability

import "time"

// HealthStatus is the reported state of a backend or of the whole service.
type HealthStatus string

const (
	HealthStatusUp       HealthStatus = "up"
	HealthStatusDown     HealthStatus = "down"
	HealthStatusDegraded HealthStatus = "degraded"
)

// Health is the report of one backend (BigQuery, the activation transport).
type Health struct {
	Name    string            `json:"name"`
	Status  HealthStatus      `json:"status"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// ServiceHealth is the report printed by the health command.
type ServiceHealth struct {
	Service    string       `json:"service"`
	Status     HealthStatus `json:"status"`
	Version    string       `json:"version,omitempty"`
	Checked    time.Time    `json:"checked"`
	Components []Health     `json:"components,omitempty"`
}

// NewServiceHealth starts an up report checked now.
func NewServiceHealth(service, version string) *ServiceHealth {
	return &ServiceHealth{
		Service: service,
		Status:  HealthStatusUp,
		Version: version,
		Checked: time.Now().UTC(),
	}
}

// AddComponent records ch. Down wins over degraded, which wins over up.
func (sh *ServiceHealth) AddComponent(ch Health) {
	sh.Components = append(sh.Components, ch)
	switch ch.Status {
	case HealthStatusDown:
		sh.Status = HealthStatusDown
	case HealthStatusDegraded:
		if sh.Status != HealthStatusDown {
			sh.Status = HealthStatusDegraded
		}
	}
}

// IsUp reports whether every component is up.
func (sh *ServiceHealth) IsUp() bool { return sh.Status == HealthStatusUp }

// Unhealthy returns the names of components that are not up.
func (sh *ServiceHealth) Unhealthy() []string {
	var names []string
	for _, c := range sh.Components {
		if c.Status != HealthStatusUp {
			names = append(names, c.Name)
		}
	}
	return names
}
