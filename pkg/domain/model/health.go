package model

// HealthStatus represents the health check status
type HealthStatus struct {
	Status     string `json:"status"`
	Service    string `json:"service"`
	Version    string `json:"version"`
	Repository string `json:"repository,omitempty"`

	// Notices lists degraded detection channels
	Notices []*Advisory `json:"notices,omitempty"`
}
